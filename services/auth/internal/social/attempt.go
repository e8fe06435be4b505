package social

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Attempt is one login or profile sync. It resolves exactly once; later
// results are dropped.
type Attempt struct {
	id       string
	provider ProviderKind
	started  time.Time
	callback Callback

	once   sync.Once
	done   chan struct{}
	result Result

	// onResolve runs after the result is stored and before the callback.
	onResolve func(*Attempt, Result)
}

func newAttempt(provider ProviderKind, cb Callback, onResolve func(*Attempt, Result)) *Attempt {
	return &Attempt{
		id:        uuid.NewString(),
		provider:  provider,
		started:   time.Now(),
		callback:  cb,
		done:      make(chan struct{}),
		onResolve: onResolve,
	}
}

// ID returns the attempt ID.
func (a *Attempt) ID() string { return a.id }

// Provider returns the provider the attempt was started for.
func (a *Attempt) Provider() ProviderKind { return a.provider }

// Started returns when the attempt began.
func (a *Attempt) Started() time.Time { return a.started }

// Done is closed once the attempt has a result.
func (a *Attempt) Done() <-chan struct{} { return a.done }

// Result returns the result if the attempt is resolved.
func (a *Attempt) Result() (Result, bool) {
	select {
	case <-a.done:
		return a.result, true
	default:
		return Result{}, false
	}
}

// Wait blocks until the attempt resolves or ctx is done. A ctx deadline only
// stops the wait; the attempt keeps running.
func (a *Attempt) Wait(ctx context.Context) (Result, error) {
	select {
	case <-a.done:
		return a.result, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// resolve stores r and notifies. It returns false if the attempt was already
// resolved.
func (a *Attempt) resolve(r Result) bool {
	resolved := false
	a.once.Do(func() {
		a.result = r
		resolved = true
		close(a.done)
	})
	if !resolved {
		return false
	}

	if a.onResolve != nil {
		a.onResolve(a, r)
	}
	if a.callback != nil {
		a.callback(r)
	}
	return true
}
