package database

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"miniquest-server/shared/interfaces"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	sessionLockKeyPrefix      = "quest_lock:"
	defaultSessionLockTTL     = 30 * time.Second
	defaultSessionLockBackoff = 50 * time.Millisecond
)

// Deletes the key only while it still holds our token.
var releaseSessionLockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
end
return 0
`)

var _ interfaces.SessionLocker = (*RedisSessionLocker)(nil)

// RedisSessionLocker is a per-quest lock shared by every replica that talks to the same Redis.
type RedisSessionLocker struct {
	client       *redis.Client
	ttl          time.Duration
	pollInterval time.Duration
	logger       *zap.Logger
}

// NewRedisSessionLocker creates a locker. ttl bounds how long a crashed holder can block a
// quest; it must exceed the longest turn (generation timeout included).
func NewRedisSessionLocker(client *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisSessionLocker {
	if ttl <= 0 {
		ttl = defaultSessionLockTTL
	}
	return &RedisSessionLocker{
		client:       client,
		ttl:          ttl,
		pollInterval: defaultSessionLockBackoff,
		logger:       logger.Named("RedisSessionLocker"),
	}
}

// Lock polls SET NX until it wins or ctx is done.
func (l *RedisSessionLocker) Lock(ctx context.Context, questID uuid.UUID) (func(), error) {
	key := sessionLockKeyPrefix + questID.String()
	token := uuid.NewString()

	ticker := time.NewTicker(l.pollInterval)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			l.logger.Error("Failed to acquire session lock", zap.String("questID", questID.String()), zap.Error(err))
			return nil, fmt.Errorf("failed to acquire lock for quest %s: %w", questID, err)
		}
		if ok {
			return l.releaser(key, token, questID), nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (l *RedisSessionLocker) releaser(key, token string, questID uuid.UUID) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			// The caller's context may already be cancelled; release regardless.
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := releaseSessionLockScript.Run(ctx, l.client, []string{key}, token).Err(); err != nil {
				l.logger.Warn("Failed to release session lock, it will expire by TTL",
					zap.String("questID", questID.String()), zap.Error(err))
			}
		})
	}
}
