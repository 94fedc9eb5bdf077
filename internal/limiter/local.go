package limiter

import (
	"context"
	"sync"
	"time"
)

// Local is an in-process semaphore.
type Local struct {
	semaphore chan struct{}
	maxWait   time.Duration

	mu     sync.RWMutex
	active int
}

func NewLocal(maxConcurrent int, maxWait time.Duration) *Local {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrent
	}
	if maxWait <= 0 {
		maxWait = DefaultMaxWait
	}
	return &Local{
		semaphore: make(chan struct{}, maxConcurrent),
		maxWait:   maxWait,
	}
}

func (l *Local) Acquire(ctx context.Context) (func(), error) {
	waitCtx, cancel := context.WithTimeout(ctx, l.maxWait)
	defer cancel()

	select {
	case l.semaphore <- struct{}{}:
		l.mu.Lock()
		l.active++
		l.mu.Unlock()
		return l.releaseOnce(), nil
	case <-waitCtx.Done():
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, ErrSaturated
	}
}

func (l *Local) releaseOnce() func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			l.active--
			l.mu.Unlock()
			<-l.semaphore
		})
	}
}

// Active is the number of batches currently holding a slot.
func (l *Local) Active() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.active
}

func (l *Local) MaxConcurrent() int { return cap(l.semaphore) }

// WaitForDrain blocks until every admitted batch has released its slot.
func (l *Local) WaitForDrain(ctx context.Context) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		if l.Active() == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
