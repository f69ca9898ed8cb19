package cache

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker/v2"

	"sociapi/logging"
)

// Breaker stops calling a failing backend for a while, so that a dead
// cache server costs one fast error per lookup instead of a timeout.
type Breaker struct {
	next Store
	cb   *gobreaker.CircuitBreaker[[]byte]
}

// NewBreaker wraps next. The circuit opens after failures consecutive
// errors and probes the backend again after timeout.
func NewBreaker(next Store, failures uint32, timeout time.Duration) *Breaker {
	if failures == 0 {
		failures = 5
	}
	settings := gobreaker.Settings{
		Name:        "profile-cache",
		MaxRequests: 1,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrMiss)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("cache circuit breaker changed state")
		},
	}
	return &Breaker{next: next, cb: gobreaker.NewCircuitBreaker[[]byte](settings)}
}

func (b *Breaker) Get(ctx context.Context, key string) ([]byte, error) {
	return b.cb.Execute(func() ([]byte, error) {
		return b.next.Get(ctx, key)
	})
}

func (b *Breaker) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	_, err := b.cb.Execute(func() ([]byte, error) {
		return nil, b.next.Set(ctx, key, value, ttl)
	})
	return err
}

func (b *Breaker) Del(ctx context.Context, key string) error {
	_, err := b.cb.Execute(func() ([]byte, error) {
		return nil, b.next.Del(ctx, key)
	})
	return err
}

func (b *Breaker) Close() error {
	return b.next.Close()
}

// State reports the current state of the circuit.
func (b *Breaker) State() gobreaker.State {
	return b.cb.State()
}
