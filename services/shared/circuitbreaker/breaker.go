// Package circuitbreaker stops calling an upstream API after repeated
// failures and tries it again once a cool-down has passed.
package circuitbreaker

import (
	"context"
	"sync"
	"time"

	apperrors "github.com/carlossalguero/socialauth/services/shared/errors"
)

// State is the breaker state.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrOpen is returned without calling the upstream while the breaker is open.
var ErrOpen = apperrors.New(apperrors.CodeUnavailable, "upstream temporarily unavailable")

// Config configures a Breaker.
type Config struct {
	// FailureThreshold is the number of consecutive failures that opens the breaker.
	FailureThreshold int `mapstructure:"failure_threshold"`
	// OpenTimeout is how long the breaker stays open before letting a trial request through.
	OpenTimeout time.Duration `mapstructure:"open_timeout"`

	// IsFailure decides which errors count against the upstream. Defaults to
	// every non-nil error.
	IsFailure func(error) bool `mapstructure:"-"`
	// OnStateChange is called synchronously, outside the lock, on every transition.
	OnStateChange func(name string, from, to State) `mapstructure:"-"`
}

// Breaker guards calls to a single upstream.
type Breaker struct {
	name string
	cfg  Config
	now  func() time.Time

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	probing  bool
}

// New creates a closed Breaker.
func New(name string, cfg Config) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}
	if cfg.IsFailure == nil {
		cfg.IsFailure = func(err error) bool { return err != nil }
	}
	return &Breaker{name: name, cfg: cfg, now: time.Now}
}

// Name returns the breaker name.
func (b *Breaker) Name() string {
	return b.name
}

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current()
}

// Do calls fn unless the breaker is open. While half-open only one trial request
// runs at a time; concurrent callers get ErrOpen. A call that fails because
// ctx ended says nothing about the upstream and leaves the state unchanged.
func (b *Breaker) Do(ctx context.Context, fn func(context.Context) error) error {
	if err := b.acquire(); err != nil {
		return err
	}
	err := fn(ctx)
	if err != nil && ctx.Err() != nil {
		b.abandon()
		return err
	}
	b.release(b.cfg.IsFailure(err))
	return err
}

// Reset closes the breaker and clears its failure count.
func (b *Breaker) Reset() {
	b.mu.Lock()
	from := b.state
	b.state, b.failures, b.probing = StateClosed, 0, false
	b.mu.Unlock()
	b.notify(from, StateClosed)
}

func (b *Breaker) current() State {
	if b.state == StateOpen && b.now().Sub(b.openedAt) >= b.cfg.OpenTimeout {
		return StateHalfOpen
	}
	return b.state
}

func (b *Breaker) acquire() error {
	b.mu.Lock()
	from := b.state
	state := b.current()
	switch state {
	case StateOpen:
		b.mu.Unlock()
		return ErrOpen
	case StateHalfOpen:
		if b.probing {
			b.mu.Unlock()
			return ErrOpen
		}
		b.state, b.probing = StateHalfOpen, true
	}
	b.mu.Unlock()
	b.notify(from, state)
	return nil
}

func (b *Breaker) release(failed bool) {
	b.mu.Lock()
	from := b.state
	b.probing = false
	switch {
	case !failed:
		b.state, b.failures = StateClosed, 0
	case b.state == StateHalfOpen:
		b.state, b.openedAt = StateOpen, b.now()
	default:
		b.failures++
		if b.failures >= b.cfg.FailureThreshold {
			b.state, b.openedAt, b.failures = StateOpen, b.now(), 0
		}
	}
	to := b.state
	b.mu.Unlock()
	b.notify(from, to)
}

func (b *Breaker) abandon() {
	b.mu.Lock()
	b.probing = false
	b.mu.Unlock()
}

func (b *Breaker) notify(from, to State) {
	if from != to && b.cfg.OnStateChange != nil {
		b.cfg.OnStateChange(b.name, from, to)
	}
}
