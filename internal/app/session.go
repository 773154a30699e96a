package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/lumabyte/chantey/internal/discord"
	"github.com/lumabyte/chantey/internal/voice"
	"github.com/lumabyte/chantey/pkg/audio"
)

const (
	// lookbackFrames is the per-speaker ring capacity: one second of 20ms
	// transport frames before the current moment.
	lookbackFrames = 50

	// chirpVolume is the overlay level for the wake acknowledgment sound.
	chirpVolume = 0.8
)

// voiceSession is one active voice-channel connection with its per-speaker
// lookback rings. At most one session exists at a time.
type voiceSession struct {
	guildID string
	conn    audio.Connection
	cancel  context.CancelFunc
	done    chan struct{}

	mu    sync.Mutex
	rings map[string]*audio.FrameRing
}

func (s *voiceSession) ring(userID string) *audio.FrameRing {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.rings[userID]
	if r == nil {
		r = audio.NewFrameRing(lookbackFrames)
		s.rings[userID] = r
	}
	return r
}

// joinVoice handles a "!join": connect to the requester's voice channel and
// start the frame loop. A session in another guild blocks the join; a session
// in the same guild is replaced, which moves the bot between channels.
func (a *App) joinVoice(req discord.JoinRequest) error {
	a.mu.Lock()
	existing := a.session
	a.mu.Unlock()
	if existing != nil {
		if existing.guildID != req.GuildID {
			return fmt.Errorf("app: already active in another guild")
		}
		if err := a.Leave(existing.guildID); err != nil {
			return err
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	conn, err := a.platform.Connect(ctx, req.GuildID, req.VoiceChannelID)
	if err != nil {
		return fmt.Errorf("app: join voice: %w", err)
	}

	loopCtx, loopCancel := context.WithCancel(context.Background())
	s := &voiceSession{
		guildID: req.GuildID,
		conn:    conn,
		cancel:  loopCancel,
		done:    make(chan struct{}),
		rings:   make(map[string]*audio.FrameRing),
	}

	a.mu.Lock()
	a.session = s
	a.mu.Unlock()

	go a.frameLoop(loopCtx, s)

	slog.Info("app: joined voice channel",
		"guild_id", req.GuildID, "channel_id", req.VoiceChannelID, "user_id", req.UserID)

	// Songs queued before the join (or left over from a previous session) can
	// start immediately.
	a.playNext()
	return nil
}

// Leave implements the voice-command and "!leave" disconnect. In-flight
// captures are discarded, playback stops, and the current song returns to
// limbo until the next session dequeues a ready head.
func (a *App) Leave(guildID string) error {
	a.mu.Lock()
	s := a.session
	if s == nil || s.guildID != guildID {
		a.mu.Unlock()
		return fmt.Errorf("app: no active voice session in this guild")
	}
	a.session = nil
	a.mu.Unlock()

	a.capture.CancelAll()
	a.controller.Stop()
	a.queue.ClearCurrent()

	s.cancel()
	err := s.conn.Disconnect()
	<-s.done

	slog.Info("app: left voice channel", "guild_id", guildID)
	if err != nil {
		return fmt.Errorf("app: leave voice: %w", err)
	}
	return nil
}

// PlayTest plays the configured test asset as an overlay, leaving any running
// music untouched.
func (a *App) PlayTest(guildID string) error {
	a.mu.Lock()
	s := a.session
	a.mu.Unlock()
	if s == nil || s.guildID != guildID {
		return fmt.Errorf("app: no active voice session in this guild")
	}

	asset := a.cfg.Playback.TestAsset
	if asset == "" {
		return fmt.Errorf("app: no test asset configured")
	}
	if _, err := os.Stat(asset); err != nil {
		return fmt.Errorf("app: test asset: %w", err)
	}
	return a.controller.PlayOverlay(asset, s.conn.OutputStream(), 1.0)
}

// frameLoop fans inbound frames out to the capture manager or the wake gate.
// A speaker with an active capture session feeds the session; everyone else
// feeds their wake detector. The lookback ring sees every frame either way.
func (a *App) frameLoop(ctx context.Context, s *voiceSession) {
	defer close(s.done)
	frames := s.conn.Frames()
	for {
		select {
		case <-ctx.Done():
			go audio.Drain(frames)
			return
		case sf, ok := <-frames:
			if !ok {
				return
			}
			s.ring(sf.UserID).Push(sf.Frame)
			det := audio.DownmixToDetector(sf.Frame)
			if a.capture.Feed(sf.UserID, det.Data) {
				continue
			}
			a.gate.Feed(ctx, sf.UserID, det.Data)
		}
	}
}

// consumeWakeEvents starts a capture session per wake event and plays the
// acknowledgment chirp over ducked music.
func (a *App) consumeWakeEvents(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-a.gate.Events():
			if !ok {
				return nil
			}
			a.handleWake(ctx, ev)
		}
	}
}

func (a *App) handleWake(ctx context.Context, ev voice.WakeEvent) {
	if !a.capture.Start(ev.UserID) {
		return
	}
	a.metrics.RecordWakeDetection(ctx, ev.Keyword)
	slog.Info("app: wake detected", "user_id", ev.UserID, "keyword", ev.Keyword)

	a.mu.Lock()
	s := a.session
	a.mu.Unlock()
	if s == nil {
		return
	}
	sink := s.conn.OutputStream()

	chirp := a.cfg.Playback.ChirpAsset
	if chirp != "" {
		if _, err := os.Stat(chirp); err == nil {
			if err := a.controller.PlayDuckedOverlay(chirp, sink, chirpVolume); err == nil {
				return
			}
			slog.Warn("app: chirp playback failed", "asset", chirp)
		} else {
			slog.Warn("app: chirp asset missing", "asset", chirp)
		}
	}
	// No chirp: music still ducks for the capture window.
	a.controller.SetDucking(true)
}

// clearLookback resets a speaker's ring when their capture session begins.
func (a *App) clearLookback(userID string) {
	a.mu.Lock()
	s := a.session
	a.mu.Unlock()
	if s == nil {
		return
	}
	s.ring(userID).Clear()
}

// playNext dequeues the next ready song and starts it. No-op while something
// is already playing or when no voice session is up. Serialised so completion
// callbacks and enqueue kicks cannot race a double dequeue.
func (a *App) playNext() {
	a.playMu.Lock()
	defer a.playMu.Unlock()

	a.mu.Lock()
	s := a.session
	a.mu.Unlock()
	if s == nil || a.controller.Playing() {
		return
	}

	song, ok := a.queue.DequeueReady()
	if !ok {
		return
	}
	if err := a.controller.PlayMain(song.FilePath, s.conn.OutputStream()); err != nil {
		slog.Warn("app: playback start failed", "title", song.Title, "error", err)
		a.queue.ClearCurrent()
		return
	}
	slog.Info("app: playback started", "title", song.Title, "requester", song.Requester)
}
