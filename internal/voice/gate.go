// Package voice holds the per-speaker voice pipeline state machines: the
// wake-word gate that turns raw detector-rate audio into wake events, and the
// capture manager that records the utterance following a wake, endpoints it
// on silence or timeout, and runs the transcribe/dispatch completion path.
package voice

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lumabyte/chantey/internal/observe"
	"github.com/lumabyte/chantey/pkg/audio"
	"github.com/lumabyte/chantey/pkg/provider/wake"
)

const defaultCooldown = 3000 * time.Millisecond

// WakeEvent is emitted when a speaker says a configured keyword.
type WakeEvent struct {
	UserID  string
	Keyword string
	At      time.Time
}

// speakerState is the per-speaker detector stream. Detectors are stateful, so
// each speaker gets their own instance plus a partial-frame accumulator that
// realigns transport-frame boundaries to the detector's frame length.
type speakerState struct {
	detector wake.Provider
	pending  []int16
	lastHit  time.Time
}

// Gate runs one wake-word detector per speaker behind a cooldown window and
// publishes wake events on a buffered channel. When the consumer lags, events
// are dropped and counted rather than blocking the frame path.
type Gate struct {
	factory  wake.Factory
	cooldown time.Duration
	now      func() time.Time
	metrics  *observe.Metrics

	events  chan WakeEvent
	dropped atomic.Int64
	errored atomic.Int64

	mu       sync.Mutex
	speakers map[string]*speakerState
	closed   bool
}

// GateOption is a functional option for configuring the Gate.
type GateOption func(*Gate)

// WithCooldown sets the per-speaker window after a detection during which the
// detector is not invoked at all.
func WithCooldown(d time.Duration) GateOption {
	return func(g *Gate) {
		if d > 0 {
			g.cooldown = d
		}
	}
}

// WithEventBuffer sets the wake-event channel capacity.
func WithEventBuffer(n int) GateOption {
	return func(g *Gate) {
		if n > 0 {
			g.events = make(chan WakeEvent, n)
		}
	}
}

// WithGateMetrics routes the gate's instrumentation to m instead of the
// process-wide default.
func WithGateMetrics(m *observe.Metrics) GateOption {
	return func(g *Gate) {
		if m != nil {
			g.metrics = m
		}
	}
}

// NewGate creates a Gate backed by the given detector factory.
func NewGate(factory wake.Factory, opts ...GateOption) *Gate {
	g := &Gate{
		factory:  factory,
		cooldown: defaultCooldown,
		now:      time.Now,
		metrics:  observe.DefaultMetrics(),
		events:   make(chan WakeEvent, 16),
		speakers: make(map[string]*speakerState),
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Events returns the wake-event stream.
func (g *Gate) Events() <-chan WakeEvent { return g.events }

// Dropped reports how many wake events were discarded because the consumer
// lagged.
func (g *Gate) Dropped() int64 { return g.dropped.Load() }

// DetectorErrors reports how many frames failed detector processing.
func (g *Gate) DetectorErrors() int64 { return g.errored.Load() }

// Feed scans one detector-rate mono PCM chunk from a speaker. Chunks need not
// align with the detector frame length; leftover samples carry over to the
// next call. Within the cooldown window the chunk is discarded without
// touching the detector.
//
// Callers must feed each speaker's audio sequentially; different speakers may
// be fed concurrently.
func (g *Gate) Feed(ctx context.Context, userID string, pcm []byte) {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return
	}
	st := g.speakers[userID]
	if st == nil {
		detector, err := g.factory.New(ctx)
		if err != nil {
			g.mu.Unlock()
			g.errored.Add(1)
			slog.Error("voice: wake detector creation failed", "user_id", userID, "error", err)
			return
		}
		st = &speakerState{detector: detector}
		g.speakers[userID] = st
		g.metrics.ActiveSpeakers.Add(ctx, 1)
	}
	g.mu.Unlock()

	now := g.now()
	if !st.lastHit.IsZero() && now.Sub(st.lastHit) < g.cooldown {
		st.pending = st.pending[:0]
		return
	}

	st.pending = append(st.pending, audio.Int16s(pcm)...)
	frameLen := st.detector.FrameLength()

	for len(st.pending) >= frameLen {
		frame := st.pending[:frameLen]
		st.pending = st.pending[frameLen:]

		idx, err := st.detector.Process(frame)
		if err != nil {
			g.errored.Add(1)
			slog.Warn("voice: wake detector frame failed", "user_id", userID, "error", err)
			continue
		}
		if idx == wake.NotDetected {
			continue
		}

		st.lastHit = now
		st.pending = st.pending[:0]
		g.emit(ctx, WakeEvent{UserID: userID, Keyword: g.keywordName(st, idx), At: now})
		return
	}
}

func (g *Gate) keywordName(st *speakerState, idx int) string {
	keywords := st.detector.Keywords()
	if idx >= 0 && idx < len(keywords) {
		return keywords[idx]
	}
	return ""
}

func (g *Gate) emit(ctx context.Context, ev WakeEvent) {
	select {
	case g.events <- ev:
	default:
		g.dropped.Add(1)
		g.metrics.WakeEventsDropped.Add(ctx, 1)
		slog.Warn("voice: wake event dropped, consumer lagging",
			"user_id", ev.UserID, "dropped_total", g.dropped.Load())
	}
}

// Forget releases the detector for a speaker, e.g. when they leave the
// channel.
func (g *Gate) Forget(userID string) {
	g.mu.Lock()
	st := g.speakers[userID]
	delete(g.speakers, userID)
	g.mu.Unlock()
	if st != nil {
		g.metrics.ActiveSpeakers.Add(context.Background(), -1)
		if err := st.detector.Close(); err != nil {
			slog.Warn("voice: wake detector close failed", "user_id", userID, "error", err)
		}
	}
}

// Close releases all detectors and closes the event channel. Feed becomes a
// no-op afterwards.
func (g *Gate) Close() error {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return nil
	}
	g.closed = true
	speakers := g.speakers
	g.speakers = map[string]*speakerState{}
	g.mu.Unlock()

	for userID, st := range speakers {
		if err := st.detector.Close(); err != nil {
			slog.Warn("voice: wake detector close failed", "user_id", userID, "error", err)
		}
	}
	if n := len(speakers); n > 0 {
		g.metrics.ActiveSpeakers.Add(context.Background(), -int64(n))
	}
	close(g.events)
	return nil
}
