package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// ErrExhausted is returned when every backend of a [Failover] failed or was
// rejected by its breaker.
var ErrExhausted = errors.New("resilience: all backends failed")

type backend[T any] struct {
	name    string
	value   T
	breaker *Breaker
}

// Failover holds an ordered list of interchangeable backends, each guarded by
// its own [Breaker]. Backends must be registered before the first call.
type Failover[T any] struct {
	cfg      BreakerConfig
	backends []backend[T]
}

// NewFailover returns a Failover whose first backend is primary.
func NewFailover[T any](primaryName string, primary T, cfg BreakerConfig) *Failover[T] {
	f := &Failover[T]{cfg: cfg}
	f.Add(primaryName, primary)
	return f
}

// Add appends a backend tried after every previously added one.
func (f *Failover[T]) Add(name string, value T) {
	cfg := f.cfg
	cfg.Name = name
	f.backends = append(f.backends, backend[T]{name: name, value: value, breaker: NewBreaker(cfg)})
}

// Primary returns the first backend.
func (f *Failover[T]) Primary() T {
	return f.backends[0].value
}

// Call runs fn against each backend in order until one succeeds. It stops
// early once ctx is done. Go has no method type parameters, hence the
// package-level function.
func Call[T, R any](ctx context.Context, f *Failover[T], fn func(context.Context, T) (R, error)) (R, error) {
	var (
		zero    R
		lastErr error
	)
	for i := range f.backends {
		b := &f.backends[i]
		var out R
		err := b.breaker.Do(ctx, func(ctx context.Context) error {
			var err error
			out, err = fn(ctx, b.value)
			return err
		})
		if err == nil {
			return out, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return zero, err
		}
		if errors.Is(err, ErrOpen) {
			slog.Debug("backend skipped, circuit open", "backend", b.name)
			continue
		}
		slog.Warn("backend failed, trying next", "backend", b.name, "err", err)
	}
	return zero, fmt.Errorf("%w: %w", ErrExhausted, lastErr)
}
