// Package limiter bounds how many CSV batches run at once, either inside one
// process or across replicas sharing a redis.
package limiter

import (
	"context"
	"errors"
	"time"
)

// ErrSaturated is returned when no batch slot frees up within the wait budget.
var ErrSaturated = errors.New("too many concurrent batches, please try again later")

// ErrUnavailable wraps failures of the shared limiter backend.
var ErrUnavailable = errors.New("batch limiter unavailable")

const (
	DefaultMaxConcurrent = 4
	DefaultMaxWait       = 30 * time.Second
)

// Limiter admits batches. release must be called exactly once after a
// successful Acquire.
type Limiter interface {
	Acquire(ctx context.Context) (release func(), err error)
}
