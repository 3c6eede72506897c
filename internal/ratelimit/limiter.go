// Package ratelimit counts login attempts per key in fixed windows.
package ratelimit

import (
	"context"
	"time"
)

// Limiter reports whether another attempt for key is allowed at now and, if
// not, how long until the window resets.
type Limiter interface {
	Allow(ctx context.Context, key string, now time.Time) (bool, time.Duration, error)
}
