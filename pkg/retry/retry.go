// Package retry provides the exponential backoff policy used for AI calls.
package retry

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy retries an operation with exponential backoff and jitter.
type Policy struct {
	// Retries is the number of attempts after the first one.
	Retries int

	InitialInterval time.Duration
	MaxInterval     time.Duration

	logger *slog.Logger
}

// NewPolicy creates a retry policy.
func NewPolicy(logger *slog.Logger, retries int, initialInterval time.Duration) *Policy {
	return &Policy{
		Retries:         retries,
		InitialInterval: initialInterval,
		MaxInterval:     10 * initialInterval,
		logger:          logger.With("module", "retry"),
	}
}

// Do runs operation until it succeeds, returns a permanent error, the retries
// are exhausted or ctx is done. It returns the last error.
func (p *Policy) Do(ctx context.Context, operation func(ctx context.Context) error) error {
	attempt := 0

	return backoff.RetryNotify(
		func() error {
			attempt++

			return operation(ctx)
		},
		backoff.WithContext(backoff.WithMaxRetries(p.backOff(), uint64(max(p.Retries, 0))), ctx),
		func(err error, wait time.Duration) {
			p.logger.WarnContext(ctx, "Operation failed, retrying",
				"attempt", attempt,
				"wait", wait,
				"error", err)
		},
	)
}

func (p *Policy) backOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialInterval
	b.MaxInterval = p.MaxInterval
	b.Multiplier = 2
	b.RandomizationFactor = 0.2
	b.MaxElapsedTime = 0
	b.Reset()

	return b
}

// Permanent marks err so the policy does not retry it.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// IsPermanent reports whether err was marked permanent.
func IsPermanent(err error) bool {
	var permanent *backoff.PermanentError

	return errors.As(err, &permanent)
}
