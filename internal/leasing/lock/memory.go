// Package lock serializes operations on one domain.
package lock

import (
	"context"
	"sync"
	"time"

	dErrors "leasehold/pkg/domain-errors"
)

// Memory is an in-process keyed lock. Waiters give up after the wait window
// or when their context ends.
type Memory struct {
	mu      sync.Mutex
	entries map[string]*entry
	wait    time.Duration
}

type entry struct {
	sem  chan struct{}
	refs int
}

func NewMemory(wait time.Duration) *Memory {
	return &Memory{entries: make(map[string]*entry), wait: wait}
}

func (m *Memory) Lock(ctx context.Context, key string) (func(), error) {
	m.mu.Lock()
	e, ok := m.entries[key]
	if !ok {
		e = &entry{sem: make(chan struct{}, 1)}
		m.entries[key] = e
	}
	e.refs++
	m.mu.Unlock()

	var timeout <-chan time.Time
	if m.wait > 0 {
		timer := time.NewTimer(m.wait)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case e.sem <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-e.sem
				m.release(key, e)
			})
		}, nil
	case <-ctx.Done():
		m.release(key, e)
		return nil, dErrors.Wrap(ctx.Err(), dErrors.CodeTimeout, "waiting for domain lock")
	case <-timeout:
		m.release(key, e)
		return nil, dErrors.Newf(dErrors.CodeConflict, "domain %s is busy, retry", key)
	}
}

func (m *Memory) release(key string, e *entry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(m.entries, key)
	}
}
