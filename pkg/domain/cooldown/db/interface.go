package db

import (
	"context"
	"time"
)

// CooldownInterface is a shared expiring key-value namespace used to
// throttle tackle strategies.
//
// The check-then-set is not atomic against true concurrent duplicate
// triggers of the identical rule; that minor race is accepted.
type CooldownInterface interface {
	// SetNX arms key for ttl unless it is already armed.
	//
	// Returns
	//
	// - bool: true when the key was set by this call, false when it was
	// armed already (the existing ttl is left untouched).
	SetNX(ctx context.Context, key string, ttl time.Duration) (bool, error)
}
