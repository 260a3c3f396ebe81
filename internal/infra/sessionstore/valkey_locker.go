package sessionstore

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/valkey-io/valkey-go"

	"github.com/yanqian/zephyre/internal/domain/session"
	"github.com/yanqian/zephyre/pkg/util"
)

const (
	defaultLockTTL   = 10 * time.Second
	lockPollInterval = 25 * time.Millisecond
)

// releaseScript deletes the lock only while it still carries our token.
var releaseScript = valkey.NewLuaScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// ValkeyLocker is a lease lock shared by every instance using the same Valkey.
type ValkeyLocker struct {
	client valkey.Client
	prefix string
	logger *slog.Logger
}

// NewValkeyLocker constructs a locker.
func NewValkeyLocker(client valkey.Client, prefix string, logger *slog.Logger) *ValkeyLocker {
	if prefix == "" {
		prefix = "lock"
	}
	return &ValkeyLocker{client: client, prefix: prefix, logger: logger.With("component", "sessionstore.locker")}
}

// Lock polls SET NX PX until acquired or ctx ends. The lease expires after ttl if never released.
func (l *ValkeyLocker) Lock(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	lockKey := l.prefix + ":" + key
	token := uuid.NewString()
	for {
		err := l.client.Do(ctx, l.client.B().Set().Key(lockKey).Value(token).Nx().PxMilliseconds(ttl.Milliseconds()).Build()).Error()
		if err == nil {
			return l.release(lockKey, token), nil
		}
		if !valkey.IsValkeyNil(err) {
			return nil, err
		}
		if err := util.Sleep(ctx, lockPollInterval); err != nil {
			return nil, err
		}
	}
}

func (l *ValkeyLocker) release(lockKey, token string) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := releaseScript.Exec(ctx, l.client, []string{lockKey}, []string{token}).Error(); err != nil {
			l.logger.Warn("failed to release lock", "key", lockKey, "error", err)
		}
	}
}

var _ session.Locker = (*ValkeyLocker)(nil)
