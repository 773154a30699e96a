// Package resilience protects the transcription path from flaky backends.
//
// [Breaker] is a three-state circuit breaker (closed → open → half-open);
// [Chain] composes several providers of one type behind per-entry breakers so
// a failing primary is bypassed in favour of healthy fallbacks. All types are
// safe for concurrent use.
package resilience

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrOpen is returned by [Breaker.Do] while the breaker is open and the
// cooldown has not yet elapsed.
var ErrOpen = errors.New("resilience: circuit open")

// BreakerState is the operating mode of a [Breaker].
type BreakerState int

const (
	// BreakerClosed forwards all calls.
	BreakerClosed BreakerState = iota

	// BreakerOpen rejects calls with [ErrOpen] until the cooldown elapses.
	BreakerOpen

	// BreakerHalfOpen lets one probe call through; its outcome decides
	// whether the breaker closes or re-opens.
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig tunes a [Breaker]. Zero fields take defaults.
type BreakerConfig struct {
	// Name labels the breaker in logs.
	Name string

	// MaxFailures is the consecutive-failure count that opens the breaker.
	// Default 3.
	MaxFailures int

	// Cooldown is how long the breaker stays open before allowing a probe.
	// Default 30s.
	Cooldown time.Duration
}

// Breaker trips after consecutive failures, rejects calls during a cooldown,
// then admits a single probe whose outcome closes or re-opens it.
type Breaker struct {
	name        string
	maxFailures int
	cooldown    time.Duration
	now         func() time.Time

	mu       sync.Mutex
	state    BreakerState
	failures int
	openedAt time.Time
	probing  bool
}

// NewBreaker creates a Breaker from cfg.
func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 3
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	return &Breaker{
		name:        cfg.Name,
		maxFailures: cfg.MaxFailures,
		cooldown:    cfg.Cooldown,
		now:         time.Now,
	}
}

// Do runs fn when the breaker admits the call, otherwise returns [ErrOpen]
// without invoking it.
func (b *Breaker) Do(fn func() error) error {
	b.mu.Lock()
	switch b.state {
	case BreakerOpen:
		if b.now().Sub(b.openedAt) < b.cooldown {
			b.mu.Unlock()
			return ErrOpen
		}
		b.state = BreakerHalfOpen
		b.probing = false
		slog.Info("resilience: breaker half-open", "name", b.name)
		fallthrough
	case BreakerHalfOpen:
		if b.probing {
			b.mu.Unlock()
			return ErrOpen
		}
		b.probing = true
	}
	probe := b.state == BreakerHalfOpen
	b.mu.Unlock()

	err := fn()

	b.mu.Lock()
	defer b.mu.Unlock()
	if err != nil {
		b.onFailure(probe)
	} else {
		b.onSuccess(probe)
	}
	return err
}

// onFailure runs with b.mu held.
func (b *Breaker) onFailure(probe bool) {
	if probe {
		b.state = BreakerOpen
		b.openedAt = b.now()
		b.probing = false
		slog.Warn("resilience: probe failed, breaker re-opened", "name", b.name)
		return
	}
	b.failures++
	if b.failures >= b.maxFailures {
		b.state = BreakerOpen
		b.openedAt = b.now()
		slog.Warn("resilience: breaker opened",
			"name", b.name, "consecutive_failures", b.failures)
	}
}

// onSuccess runs with b.mu held.
func (b *Breaker) onSuccess(probe bool) {
	if probe {
		slog.Info("resilience: probe succeeded, breaker closed", "name", b.name)
	}
	b.state = BreakerClosed
	b.failures = 0
	b.probing = false
}

// State reports the breaker's mode. An elapsed cooldown shows as half-open
// even though the transition happens on the next [Breaker.Do].
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == BreakerOpen && b.now().Sub(b.openedAt) >= b.cooldown {
		return BreakerHalfOpen
	}
	return b.state
}

// Reset forces the breaker closed and clears failure accounting.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = BreakerClosed
	b.failures = 0
	b.probing = false
}
