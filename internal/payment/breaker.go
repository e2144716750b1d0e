package payment

import (
	"errors"
	"sync"
	"time"
)

// ErrBreakerOpen is returned while the breaker refuses calls after
// repeated provider failures.
var ErrBreakerOpen = errors.New("circuit breaker is open")

type breakerState int

const (
	stateClosed breakerState = iota
	stateHalfOpen
	stateOpen
)

// Breaker is a small three-state circuit breaker.  It opens once the
// failure ratio inside the current interval crosses the threshold,
// rejects calls for the cooldown period, then lets traffic probe
// through in half-open state.
type Breaker struct {
	name         string
	maxRequests  uint32
	interval     time.Duration
	cooldown     time.Duration
	failureRatio float64

	mu       sync.Mutex
	state    breakerState
	requests uint32
	failures uint32
	expiry   time.Time
}

// NewBreaker returns a breaker with defaults suited to a remote
// payment API: 60s counting window, 60s cooldown, trip at 60% failures
// over at least 10 requests.
func NewBreaker(name string) *Breaker {
	return &Breaker{
		name:         name,
		maxRequests:  10,
		interval:     60 * time.Second,
		cooldown:     60 * time.Second,
		failureRatio: 0.6,
		state:        stateClosed,
	}
}

// Execute runs fn unless the breaker is open, and feeds the outcome
// back into the trip accounting.
func (b *Breaker) Execute(fn func() error) error {
	if err := b.before(); err != nil {
		return err
	}
	err := fn()
	b.after(err == nil)
	return err
}

func (b *Breaker) before() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	switch b.state {
	case stateOpen:
		if now.Before(b.expiry) {
			return ErrBreakerOpen
		}
		b.state = stateHalfOpen
		b.requests, b.failures = 0, 0
	case stateClosed:
		if !b.expiry.IsZero() && now.After(b.expiry) {
			b.requests, b.failures = 0, 0
			b.expiry = now.Add(b.interval)
		} else if b.expiry.IsZero() {
			b.expiry = now.Add(b.interval)
		}
	}
	b.requests++
	return nil
}

func (b *Breaker) after(success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if success {
		if b.state == stateHalfOpen {
			b.state = stateClosed
			b.requests, b.failures = 0, 0
			b.expiry = time.Now().Add(b.interval)
		}
		return
	}

	b.failures++
	if b.state == stateHalfOpen ||
		(b.requests >= b.maxRequests && float64(b.failures)/float64(b.requests) >= b.failureRatio) {
		b.state = stateOpen
		b.expiry = time.Now().Add(b.cooldown)
	}
}
