package weathercache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/yanqian/zephyre/internal/domain/weather"
)

// ValkeyCache shares lookups and lookup counts across instances through Valkey.
type ValkeyCache struct {
	client valkey.Client
	prefix string
}

// NewValkeyCache constructs a cache backed by Valkey.
func NewValkeyCache(client valkey.Client, prefix string) *ValkeyCache {
	if prefix == "" {
		prefix = "weather"
	}
	return &ValkeyCache{client: client, prefix: prefix}
}

func (c *ValkeyCache) Get(ctx context.Context, key string) (weather.Observation, bool, error) {
	payload, err := c.client.Do(ctx, c.client.B().Get().Key(c.entryKey(key)).Build()).ToString()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return weather.Observation{}, false, nil
		}
		return weather.Observation{}, false, err
	}
	var obs weather.Observation
	if err := json.Unmarshal([]byte(payload), &obs); err != nil {
		return weather.Observation{}, false, err
	}
	return obs, true, nil
}

func (c *ValkeyCache) Set(ctx context.Context, key string, obs weather.Observation, ttl time.Duration) error {
	payload, err := json.Marshal(obs)
	if err != nil {
		return err
	}
	builder := c.client.B().Set().Key(c.entryKey(key)).Value(string(payload))
	var cmd valkey.Completed
	if ttl > 0 {
		if ttl < time.Second {
			ttl = time.Second
		}
		cmd = builder.Ex(ttl).Build()
	} else {
		cmd = builder.Build()
	}
	return c.client.Do(ctx, cmd).Error()
}

func (c *ValkeyCache) IncrementLookup(ctx context.Context, key, display string) error {
	if key == "" {
		return nil
	}
	if err := c.client.Do(ctx, c.client.B().Zincrby().Key(c.popularKey()).Increment(1).Member(key).Build()).Error(); err != nil {
		return err
	}
	if display != "" {
		_ = c.client.Do(ctx, c.client.B().Set().Key(c.displayKey(key)).Value(display).Nx().Build()).Error()
	}
	return nil
}

func (c *ValkeyCache) TopLookups(ctx context.Context, limit int) ([]weather.PopularPlace, error) {
	if limit <= 0 {
		limit = 10
	}
	resp := c.client.Do(ctx, c.client.B().Zrevrange().Key(c.popularKey()).Start(0).Stop(int64(limit-1)).Withscores().Build())
	arr, err := resp.ToArray()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return nil, nil
		}
		return nil, err
	}
	out := make([]weather.PopularPlace, 0, len(arr))
	for i := 0; i < len(arr); {
		var (
			member string
			score  float64
		)
		if tuple, tupleErr := arr[i].ToArray(); tupleErr == nil && len(tuple) == 2 {
			// RESP3 returns [member, score] per element
			if member, err = tuple[0].ToString(); err != nil {
				return nil, err
			}
			if score, err = tuple[1].ToFloat64(); err != nil {
				return nil, err
			}
			i++
		} else {
			// RESP2 returns a flat alternating array.
			if i+1 >= len(arr) {
				break
			}
			if member, err = arr[i].ToString(); err != nil {
				return nil, err
			}
			if score, err = arr[i+1].ToFloat64(); err != nil {
				return nil, err
			}
			i += 2
		}
		out = append(out, weather.PopularPlace{Place: c.fetchDisplay(ctx, member), Count: int64(score)})
	}
	return out, nil
}

func (c *ValkeyCache) fetchDisplay(ctx context.Context, key string) string {
	display, err := c.client.Do(ctx, c.client.B().Get().Key(c.displayKey(key)).Build()).ToString()
	if err != nil || display == "" {
		return key
	}
	return display
}

func (c *ValkeyCache) entryKey(key string) string {
	return fmt.Sprintf("%s:obs:%s", c.prefix, key)
}

func (c *ValkeyCache) popularKey() string {
	return fmt.Sprintf("%s:popular", c.prefix)
}

func (c *ValkeyCache) displayKey(key string) string {
	return fmt.Sprintf("%s:display:%s", c.prefix, key)
}

var _ weather.Cache = (*ValkeyCache)(nil)
