// Package circuit provides a consecutive-failure circuit breaker for calls to
// remote collaborators.
package circuit

import (
	"sync"
	"time"
)

// State of a breaker.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half_open"
)

// StateChange reports a transition caused by a Record call.
type StateChange struct {
	Opened bool
	Closed bool
}

// Breaker opens after a run of failures, stays open for the cooldown, then
// lets calls through half-open until enough successes close it again.
type Breaker struct {
	mu sync.Mutex

	name             string
	failureThreshold int
	successThreshold int
	cooldown         time.Duration
	now              func() time.Time

	state     State
	failures  int
	successes int
	openedAt  time.Time
}

type Option func(*Breaker)

func WithFailureThreshold(n int) Option {
	return func(b *Breaker) {
		if n > 0 {
			b.failureThreshold = n
		}
	}
}

func WithSuccessThreshold(n int) Option {
	return func(b *Breaker) {
		if n > 0 {
			b.successThreshold = n
		}
	}
}

func WithCooldown(d time.Duration) Option {
	return func(b *Breaker) {
		if d > 0 {
			b.cooldown = d
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(b *Breaker) {
		b.now = now
	}
}

// New creates a closed breaker. Defaults: 5 failures to open, 1 success to
// close, 30s cooldown.
func New(name string, opts ...Option) *Breaker {
	b := &Breaker{
		name:             name,
		failureThreshold: 5,
		successThreshold: 1,
		cooldown:         30 * time.Second,
		now:              time.Now,
		state:            StateClosed,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Breaker) Name() string { return b.name }

// State returns the current state, moving open to half-open once the cooldown elapsed.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.advance()
	return b.state
}

// IsOpen reports whether calls are currently refused.
func (b *Breaker) IsOpen() bool {
	return b.State() == StateOpen
}

// Allow reports whether a call may proceed.
func (b *Breaker) Allow() bool {
	return !b.IsOpen()
}

// RecordFailure counts a failed call.
func (b *Breaker) RecordFailure() StateChange {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.advance()

	b.successes = 0
	switch b.state {
	case StateOpen:
		return StateChange{}
	case StateHalfOpen:
		b.trip()
		return StateChange{Opened: true}
	}
	b.failures++
	if b.failures >= b.failureThreshold {
		b.trip()
		return StateChange{Opened: true}
	}
	return StateChange{}
}

// RecordSuccess counts a successful call.
func (b *Breaker) RecordSuccess() StateChange {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.advance()

	b.failures = 0
	if b.state == StateClosed {
		return StateChange{}
	}
	b.successes++
	if b.successes >= b.successThreshold {
		b.state = StateClosed
		b.successes = 0
		return StateChange{Closed: true}
	}
	return StateChange{}
}

// Reset closes the breaker and clears its counters.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = StateClosed
	b.failures = 0
	b.successes = 0
}

func (b *Breaker) trip() {
	b.state = StateOpen
	b.failures = 0
	b.openedAt = b.now()
}

// advance must be called with mu held.
func (b *Breaker) advance() {
	if b.state == StateOpen && !b.now().Before(b.openedAt.Add(b.cooldown)) {
		b.state = StateHalfOpen
	}
}
