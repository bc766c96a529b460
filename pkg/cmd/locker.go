package cmd

import (
	"fmt"
	"log/slog"

	"github.com/dukex/chatflow/pkg/locks"
)

// NewLocker returns the Redis conversation lease when redisURL is set and the
// in-process keyed mutex otherwise.
func NewLocker(redisURL string, logger *slog.Logger) (locks.Locker, func() error, error) {
	if redisURL == "" {
		return locks.NewKeyedMutex(), func() error { return nil }, nil
	}

	client, err := locks.NewRedisClient(redisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create redis client: %w", err)
	}

	return locks.NewRedisLocker(client, logger, 0), client.Close, nil
}
