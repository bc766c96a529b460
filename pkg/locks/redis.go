package locks

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

const (
	DefaultLeaseTTL     = 30 * time.Second
	DefaultRetryBackoff = 50 * time.Millisecond
	keyPrefix           = "chatflow:lease:"
)

// Release and extension only touch the key while it still holds our token.
var (
	releaseScript = redis.NewScript(`
		if redis.call("GET", KEYS[1]) == ARGV[1] then
			return redis.call("DEL", KEYS[1])
		end
		return 0
	`)

	extendScript = redis.NewScript(`
		if redis.call("GET", KEYS[1]) == ARGV[1] then
			return redis.call("PEXPIRE", KEYS[1], ARGV[2])
		end
		return 0
	`)
)

// RedisLocker is a Locker shared by every worker process. A lease is a key set
// with NX and a TTL; a held lease is extended until released so long turns
// keep it, and a crashed holder loses it after the TTL.
type RedisLocker struct {
	client       redis.UniversalClient
	logger       *slog.Logger
	ttl          time.Duration
	retryBackoff time.Duration
}

func NewRedisLocker(client redis.UniversalClient, logger *slog.Logger, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = DefaultLeaseTTL
	}

	return &RedisLocker{
		client:       client,
		logger:       logger,
		ttl:          ttl,
		retryBackoff: DefaultRetryBackoff,
	}
}

// NewRedisClient parses a redis:// URL.
func NewRedisClient(redisURL string) (*redis.Client, error) {
	options, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	return redis.NewClient(options), nil
}

func (r *RedisLocker) Lock(ctx context.Context, key string) (Unlock, error) {
	redisKey := keyPrefix + key
	token := uuid.NewString()

	for {
		acquired, err := r.client.SetNX(ctx, redisKey, token, r.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to acquire lease %s: %w", key, err)
		}

		if acquired {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(r.retryBackoff):
		}
	}

	stop := make(chan struct{})
	done := make(chan struct{})

	go r.keepAlive(redisKey, token, stop, done)

	var once sync.Once

	return func() {
		once.Do(func() {
			close(stop)
			<-done

			// The caller's context may already be cancelled; release regardless.
			releaseCtx, cancel := context.WithTimeout(context.Background(), r.ttl)
			defer cancel()

			err := r.release(releaseCtx, redisKey, token)
			if err != nil {
				r.logger.Warn("Failed to release conversation lease", "key", key, "error", err)
			}
		})
	}, nil
}

func (r *RedisLocker) keepAlive(redisKey, token string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(r.ttl / 3)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), r.ttl/3)
			extended, err := extendScript.Run(ctx, r.client, []string{redisKey}, token, r.ttl.Milliseconds()).Int()
			cancel()

			if err != nil {
				r.logger.Warn("Failed to extend conversation lease", "key", redisKey, "error", err)

				continue
			}

			if extended == 0 {
				r.logger.Error("Conversation lease lost", "key", redisKey)

				return
			}
		}
	}
}

func (r *RedisLocker) release(ctx context.Context, redisKey, token string) error {
	deleted, err := releaseScript.Run(ctx, r.client, []string{redisKey}, token).Int()
	if err != nil {
		return err
	}

	if deleted == 0 {
		return ErrNotHeld
	}

	return nil
}
