package resilience

import (
	"errors"
	"fmt"
	"log/slog"
)

// ErrExhausted is returned when every entry in a [Chain] failed or had an
// open breaker.
var ErrExhausted = errors.New("resilience: all providers failed")

type chainEntry[T any] struct {
	name    string
	value   T
	breaker *Breaker
}

// Chain is an ordered list of same-typed providers, each behind its own
// breaker. Calls go to the first entry whose breaker admits them and that
// succeeds.
type Chain[T any] struct {
	entries []chainEntry[T]
	cfg     BreakerConfig
}

// NewChain creates a Chain with primary as the preferred entry. cfg.Name is
// overridden per entry.
func NewChain[T any](name string, primary T, cfg BreakerConfig) *Chain[T] {
	c := &Chain[T]{cfg: cfg}
	c.Add(name, primary)
	return c
}

// Add appends a fallback, tried after all earlier entries.
func (c *Chain[T]) Add(name string, value T) {
	cfg := c.cfg
	cfg.Name = name
	c.entries = append(c.entries, chainEntry[T]{
		name:    name,
		value:   value,
		breaker: NewBreaker(cfg),
	})
}

// Names returns the entry names in trial order.
func (c *Chain[T]) Names() []string {
	names := make([]string, len(c.entries))
	for i, e := range c.entries {
		names[i] = e.name
	}
	return names
}

// Each visits every entry value regardless of breaker state, e.g. to close
// all providers on shutdown.
func (c *Chain[T]) Each(fn func(name string, value T)) {
	for _, e := range c.entries {
		fn(e.name, e.value)
	}
}

// Do tries fn against each entry in order until one succeeds. Entries with an
// open breaker are skipped. When every entry fails, the returned error wraps
// [ErrExhausted] and carries the last failure.
func (c *Chain[T]) Do(fn func(T) error) error {
	_, err := ChainResult(c, func(v T) (struct{}, error) {
		return struct{}{}, fn(v)
	})
	return err
}

// ChainResult is [Chain.Do] for calls that produce a value. Package-level
// because methods cannot introduce type parameters.
func ChainResult[T, R any](c *Chain[T], fn func(T) (R, error)) (R, error) {
	var lastErr error
	for i := range c.entries {
		entry := &c.entries[i]
		var result R
		err := entry.breaker.Do(func() error {
			var callErr error
			result, callErr = fn(entry.value)
			return callErr
		})
		if err == nil {
			return result, nil
		}
		lastErr = err
		if errors.Is(err, ErrOpen) {
			slog.Debug("resilience: skipping provider, breaker open", "provider", entry.name)
		} else {
			slog.Warn("resilience: provider failed, trying next",
				"provider", entry.name, "error", err)
		}
	}
	var zero R
	return zero, fmt.Errorf("%w: %v", ErrExhausted, lastErr)
}
