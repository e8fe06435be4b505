package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker(cfg Config) (*Breaker, *clock) {
	c := &clock{t: time.Unix(1700000000, 0)}
	b := New("graph", cfg)
	b.now = c.now
	return b, c
}

var (
	succeed = func(context.Context) error { return nil }
	fail    = func(context.Context) error { return errors.New("boom") }
)

func TestBreaker_Transitions(t *testing.T) {
	cfg := Config{FailureThreshold: 3, OpenTimeout: time.Minute}

	t.Run("opens after consecutive failures", func(t *testing.T) {
		b, _ := newTestBreaker(cfg)
		for i := 0; i < 3; i++ {
			assert.Equal(t, StateClosed, b.State())
			assert.Error(t, b.Do(context.Background(), fail))
		}
		assert.Equal(t, StateOpen, b.State())

		called := false
		err := b.Do(context.Background(), func(context.Context) error { called = true; return nil })
		assert.ErrorIs(t, err, ErrOpen)
		assert.False(t, called)
	})

	t.Run("success resets the failure count", func(t *testing.T) {
		b, _ := newTestBreaker(cfg)
		_ = b.Do(context.Background(), fail)
		_ = b.Do(context.Background(), fail)
		require.NoError(t, b.Do(context.Background(), succeed))
		_ = b.Do(context.Background(), fail)
		assert.Equal(t, StateClosed, b.State())
	})

	t.Run("half-open trial closes on success", func(t *testing.T) {
		b, c := newTestBreaker(cfg)
		for i := 0; i < 3; i++ {
			_ = b.Do(context.Background(), fail)
		}
		c.advance(time.Minute)
		assert.Equal(t, StateHalfOpen, b.State())

		require.NoError(t, b.Do(context.Background(), succeed))
		assert.Equal(t, StateClosed, b.State())
	})

	t.Run("half-open trial reopens on failure", func(t *testing.T) {
		b, c := newTestBreaker(cfg)
		for i := 0; i < 3; i++ {
			_ = b.Do(context.Background(), fail)
		}
		c.advance(time.Minute)

		assert.Error(t, b.Do(context.Background(), fail))
		assert.Equal(t, StateOpen, b.State())
	})

	t.Run("reset closes", func(t *testing.T) {
		b, _ := newTestBreaker(cfg)
		for i := 0; i < 3; i++ {
			_ = b.Do(context.Background(), fail)
		}
		b.Reset()
		assert.Equal(t, StateClosed, b.State())
	})
}

func TestBreaker_CancelledCallLeavesState(t *testing.T) {
	cancelled := func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}

	t.Run("half-open trial stays half-open", func(t *testing.T) {
		b, c := newTestBreaker(Config{FailureThreshold: 1, OpenTimeout: time.Second})
		_ = b.Do(context.Background(), fail)
		c.advance(time.Second)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		assert.ErrorIs(t, b.Do(ctx, cancelled), context.Canceled)
		assert.Equal(t, StateHalfOpen, b.State())

		// The trial slot is free again.
		require.NoError(t, b.Do(context.Background(), succeed))
		assert.Equal(t, StateClosed, b.State())
	})

	t.Run("closed breaker does not count it", func(t *testing.T) {
		b, _ := newTestBreaker(Config{FailureThreshold: 1})
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_ = b.Do(ctx, cancelled)
		assert.Equal(t, StateClosed, b.State())
	})
}

func TestBreaker_SingleTrialRequest(t *testing.T) {
	b, c := newTestBreaker(Config{FailureThreshold: 1, OpenTimeout: time.Second})
	_ = b.Do(context.Background(), fail)
	c.advance(time.Second)

	probing := make(chan struct{})
	release := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = b.Do(context.Background(), func(context.Context) error {
			close(probing)
			<-release
			return nil
		})
	}()

	<-probing
	assert.ErrorIs(t, b.Do(context.Background(), succeed), ErrOpen)
	close(release)
	wg.Wait()
	assert.Equal(t, StateClosed, b.State())
}

func TestBreaker_IsFailure(t *testing.T) {
	ignored := errors.New("client error")
	b, _ := newTestBreaker(Config{
		FailureThreshold: 1,
		IsFailure:        func(err error) bool { return err != nil && !errors.Is(err, ignored) },
	})

	assert.ErrorIs(t, b.Do(context.Background(), func(context.Context) error { return ignored }), ignored)
	assert.Equal(t, StateClosed, b.State())
}

func TestBreaker_OnStateChange(t *testing.T) {
	var got []string
	b, c := newTestBreaker(Config{
		FailureThreshold: 1,
		OpenTimeout:      time.Second,
		OnStateChange: func(name string, from, to State) {
			got = append(got, name+":"+from.String()+"->"+to.String())
		},
	})

	_ = b.Do(context.Background(), fail)
	c.advance(time.Second)
	_ = b.Do(context.Background(), succeed)

	assert.Equal(t, []string{
		"graph:closed->open",
		"graph:open->half-open",
		"graph:half-open->closed",
	}, got)
}
