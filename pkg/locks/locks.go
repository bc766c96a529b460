// Package locks serializes turns of the same conversation. Engines take the
// lease before loading a conversation state and release it after saving.
package locks

import (
	"context"
	"errors"
)

// ErrNotHeld is returned when releasing a lease that expired or was never held.
var ErrNotHeld = errors.New("lease not held")

// Unlock releases a lease.
type Unlock func()

// Locker grants exclusive per-conversation leases.
type Locker interface {
	// Lock blocks until the lease of key is acquired or ctx is done.
	Lock(ctx context.Context, key string) (Unlock, error)
}
