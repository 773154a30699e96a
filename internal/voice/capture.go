package voice

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/lumabyte/chantey/internal/command"
	"github.com/lumabyte/chantey/internal/observe"
	"github.com/lumabyte/chantey/pkg/audio"
)

const (
	defaultSilenceThreshold = 400.0
	defaultSilenceDuration  = 800 * time.Millisecond
	defaultCaptureTimeout   = 8000 * time.Millisecond

	// transcribeTimeout bounds the completion path's transcription call so a
	// hung backend cannot pin a goroutine forever.
	transcribeTimeout = 30 * time.Second

	didntHearReply = "Sorry, I didn't hear anything. Try again!"

	tracerName = "github.com/lumabyte/chantey/internal/voice"
)

// Transcriber converts a complete detector-rate PCM buffer into text.
type Transcriber interface {
	Transcribe(ctx context.Context, pcm []byte) (string, error)
}

// Dispatcher routes a transcript to a command handler and returns the reply.
type Dispatcher interface {
	Dispatch(ctx context.Context, text, userID string) command.Response
}

// Messenger delivers a reply to the bot's home text channel and identifies
// the sent message so it can be edited later.
type Messenger interface {
	Send(content string) (channelID, messageID string, err error)
}

// Registrar records a sent message for a later title rewrite.
type Registrar interface {
	Register(songID, channelID, messageID, originalText string)
}

// Ducker is the playback-side ducking toggle.
type Ducker interface {
	SetDucking(enabled bool)
}

// session is one in-flight capture. All fields are guarded by the Manager
// mutex except buf ownership, which transfers to the completion goroutine
// once the session is removed from the map.
type session struct {
	buf     []byte
	silence int
	timer   *time.Timer
	started time.Time
}

// Manager owns the per-speaker capture state machines. A wake event starts a
// session; subsequent frames for that speaker accumulate into its buffer
// until either sustained silence or the timeout completes it.
//
// Exactly one of the two triggers completes a given session: both paths
// remove the session from the map under the mutex, and only the remover runs
// the completion. The loser observes an absent session and does nothing.
type Manager struct {
	transcriber Transcriber
	dispatcher  Dispatcher
	messenger   Messenger
	registrar   Registrar
	ducker      Ducker
	metrics     *observe.Metrics

	// sttName labels transcription metrics; taken from the transcriber when
	// it identifies itself.
	sttName string

	silenceThreshold float64
	silenceFrames    int
	timeout          time.Duration

	// onStart runs when a session begins, before any frame is buffered. The
	// pipeline uses it to clear the speaker's lookback ring.
	onStart func(userID string)

	mu       sync.Mutex
	sessions map[string]*session
}

// ManagerOption is a functional option for configuring the Manager.
type ManagerOption func(*Manager)

// WithSilenceThreshold sets the mean-amplitude level below which a frame
// counts as silence.
func WithSilenceThreshold(level float64) ManagerOption {
	return func(m *Manager) {
		if level > 0 {
			m.silenceThreshold = level
		}
	}
}

// WithSilenceDuration sets how long sustained silence must last before the
// session completes. Converted to a whole frame count at the 20ms cadence.
func WithSilenceDuration(d time.Duration) ManagerOption {
	return func(m *Manager) {
		if d > 0 {
			m.silenceFrames = framesFor(d)
		}
	}
}

// WithCaptureTimeout sets the hard deadline for a capture session.
func WithCaptureTimeout(d time.Duration) ManagerOption {
	return func(m *Manager) {
		if d > 0 {
			m.timeout = d
		}
	}
}

// WithSessionStart registers a hook invoked when a capture session begins.
func WithSessionStart(fn func(userID string)) ManagerOption {
	return func(m *Manager) { m.onStart = fn }
}

// WithCaptureMetrics routes the manager's instrumentation to m instead of the
// process-wide default.
func WithCaptureMetrics(met *observe.Metrics) ManagerOption {
	return func(m *Manager) {
		if met != nil {
			m.metrics = met
		}
	}
}

func framesFor(d time.Duration) int {
	frames := int((d + audio.FrameDuration - 1) / audio.FrameDuration)
	if frames < 1 {
		frames = 1
	}
	return frames
}

// NewManager creates a capture Manager.
func NewManager(transcriber Transcriber, dispatcher Dispatcher, messenger Messenger, registrar Registrar, ducker Ducker, opts ...ManagerOption) *Manager {
	m := &Manager{
		transcriber:      transcriber,
		dispatcher:       dispatcher,
		messenger:        messenger,
		registrar:        registrar,
		ducker:           ducker,
		metrics:          observe.DefaultMetrics(),
		sttName:          "stt",
		silenceThreshold: defaultSilenceThreshold,
		silenceFrames:    framesFor(defaultSilenceDuration),
		timeout:          defaultCaptureTimeout,
		sessions:         make(map[string]*session),
	}
	if named, ok := transcriber.(interface{ Name() string }); ok {
		m.sttName = named.Name()
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Start begins a capture session for a speaker. A speaker has at most one
// session; a wake event while one is already active is ignored.
func (m *Manager) Start(userID string) bool {
	m.mu.Lock()
	if _, exists := m.sessions[userID]; exists {
		m.mu.Unlock()
		return false
	}
	s := &session{started: time.Now()}
	s.timer = time.AfterFunc(m.timeout, func() { m.expire(userID) })
	m.sessions[userID] = s
	m.mu.Unlock()

	m.metrics.ActiveSessions.Add(context.Background(), 1)
	if m.onStart != nil {
		m.onStart(userID)
	}
	slog.Info("voice: capture session started", "user_id", userID)
	return true
}

// Active reports whether a speaker has a capture session in flight.
func (m *Manager) Active(userID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.sessions[userID]
	return ok
}

// ActiveCount returns the number of in-flight sessions.
func (m *Manager) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Feed appends one detector-rate mono PCM frame to the speaker's session and
// runs silence endpointing. Returns false when the speaker has no session.
//
// When the silence window fills, Feed removes the session, cancels its
// timeout, and runs completion on a fresh goroutine so the frame path never
// blocks on transcription.
func (m *Manager) Feed(userID string, pcm []byte) bool {
	m.mu.Lock()
	s, ok := m.sessions[userID]
	if !ok {
		m.mu.Unlock()
		return false
	}

	s.buf = append(s.buf, pcm...)
	if audio.Level(pcm) < m.silenceThreshold {
		s.silence++
	} else {
		s.silence = 0
	}
	if s.silence < m.silenceFrames {
		m.mu.Unlock()
		return true
	}

	// Silence window filled: this path owns completion iff it removes the
	// session before the timeout does.
	delete(m.sessions, userID)
	m.mu.Unlock()

	s.timer.Stop()
	m.metrics.ActiveSessions.Add(context.Background(), -1)
	slog.Info("voice: capture endpointed on silence",
		"user_id", userID, "buffered_bytes", len(s.buf), "elapsed", time.Since(s.started))
	go m.complete(userID, s.buf, "silence")
	return true
}

// expire is the timeout trigger. It completes the session only if it wins the
// removal race against the silence path.
func (m *Manager) expire(userID string) {
	m.mu.Lock()
	s, ok := m.sessions[userID]
	if ok {
		delete(m.sessions, userID)
	}
	m.mu.Unlock()
	if !ok {
		return
	}
	m.metrics.ActiveSessions.Add(context.Background(), -1)
	slog.Info("voice: capture session timed out",
		"user_id", userID, "buffered_bytes", len(s.buf))
	m.complete(userID, s.buf, "timeout")
}

// Cancel discards a speaker's session without running completion, e.g. when
// the bot leaves the channel mid-capture.
func (m *Manager) Cancel(userID string) {
	m.mu.Lock()
	s, ok := m.sessions[userID]
	if ok {
		delete(m.sessions, userID)
	}
	m.mu.Unlock()
	if ok {
		s.timer.Stop()
		m.metrics.ActiveSessions.Add(context.Background(), -1)
	}
}

// CancelAll discards every in-flight session without completion, e.g. when
// the bot disconnects from voice.
func (m *Manager) CancelAll() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*session)
	m.mu.Unlock()
	for _, s := range sessions {
		s.timer.Stop()
	}
	if n := len(sessions); n > 0 {
		m.metrics.ActiveSessions.Add(context.Background(), -int64(n))
	}
}

// complete runs the post-capture pipeline: lift ducking, transcribe, dispatch
// and deliver the reply. Every step is error-isolated; a failure downstream
// never reaches the frame path.
func (m *Manager) complete(userID string, buf []byte, trigger string) {
	m.ducker.SetDucking(false)

	ctx, cancel := context.WithTimeout(context.Background(), transcribeTimeout)
	defer cancel()
	ctx, span := otel.Tracer(tracerName).Start(ctx, "voice.complete",
		trace.WithAttributes(
			attribute.String("trigger", trigger),
			attribute.Int("buffered_bytes", len(buf)),
		))
	defer span.End()
	m.metrics.RecordCaptureCompleted(ctx, trigger)

	text := ""
	if len(buf) > 0 {
		start := time.Now()
		transcript, err := m.transcriber.Transcribe(ctx, buf)
		status := "ok"
		if err != nil {
			status = "error"
			observe.Logger(ctx).Error("voice: transcription failed", "user_id", userID, "error", err)
		} else {
			text = transcript
		}
		m.metrics.RecordTranscription(ctx, m.sttName, status, time.Since(start).Seconds())
	}

	if text == "" {
		m.deliver(userID, command.Response{Message: mention(userID, didntHearReply)})
		return
	}

	observe.Logger(ctx).Info("voice: transcript dispatched", "user_id", userID, "text", text)
	span.SetAttributes(attribute.String("transcript", text))
	m.deliver(userID, m.dispatcher.Dispatch(ctx, text, userID))
}

func (m *Manager) deliver(userID string, resp command.Response) {
	if resp.Message == "" {
		return
	}
	channelID, messageID, err := m.messenger.Send(resp.Message)
	if err != nil {
		slog.Error("voice: reply delivery failed", "user_id", userID, "error", err)
		return
	}
	if resp.SongID != "" && m.registrar != nil {
		m.registrar.Register(resp.SongID, channelID, messageID, resp.Message)
	}
}

func mention(userID, msg string) string {
	return "<@" + userID + "> " + msg
}
