package sessionstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/valkey-io/valkey-go"

	"github.com/yanqian/zephyre/internal/domain/session"
)

// ValkeyStore persists sessions as JSON documents with an expiry.
type ValkeyStore struct {
	client valkey.Client
	prefix string
}

// NewValkeyStore constructs a new store backed by Valkey.
func NewValkeyStore(client valkey.Client, prefix string) *ValkeyStore {
	if prefix == "" {
		prefix = "session"
	}
	return &ValkeyStore{client: client, prefix: prefix}
}

func (s *ValkeyStore) Load(ctx context.Context, id uuid.UUID) (session.State, bool, error) {
	payload, err := s.client.Do(ctx, s.client.B().Get().Key(s.key(id)).Build()).ToString()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return session.State{}, false, nil
		}
		return session.State{}, false, err
	}
	var state session.State
	if err := json.Unmarshal([]byte(payload), &state); err != nil {
		return session.State{}, false, err
	}
	return state, true, nil
}

func (s *ValkeyStore) Save(ctx context.Context, state session.State, ttl time.Duration) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return err
	}
	builder := s.client.B().Set().Key(s.key(state.ID)).Value(string(payload))
	var cmd valkey.Completed
	if ttl > 0 {
		if ttl < time.Second {
			ttl = time.Second
		}
		cmd = builder.Ex(ttl).Build()
	} else {
		cmd = builder.Build()
	}
	return s.client.Do(ctx, cmd).Error()
}

func (s *ValkeyStore) key(id uuid.UUID) string {
	return fmt.Sprintf("%s:state:%s", s.prefix, id.String())
}

var _ session.Store = (*ValkeyStore)(nil)
