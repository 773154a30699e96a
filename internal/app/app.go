// Package app wires all Chantey subsystems into a running application.
//
// New builds the pipeline from injected providers: the wake gate, capture
// manager, command dispatcher, song queue with its enrichment workers, and
// the playback controller. Run opens the gateway, starts the background
// loops, and blocks until the context is cancelled; Shutdown tears everything
// down in reverse order.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/lumabyte/chantey/internal/command"
	"github.com/lumabyte/chantey/internal/config"
	"github.com/lumabyte/chantey/internal/discord"
	"github.com/lumabyte/chantey/internal/health"
	"github.com/lumabyte/chantey/internal/mcp"
	"github.com/lumabyte/chantey/internal/observe"
	"github.com/lumabyte/chantey/internal/playback"
	"github.com/lumabyte/chantey/internal/queue"
	"github.com/lumabyte/chantey/internal/voice"
	"github.com/lumabyte/chantey/pkg/audio"
	"github.com/lumabyte/chantey/pkg/provider/songsource"
	"github.com/lumabyte/chantey/pkg/provider/stt"
	"github.com/lumabyte/chantey/pkg/provider/wake"
)

const (
	// connectTimeout bounds a voice-channel join attempt.
	connectTimeout = 10 * time.Second

	// adminShutdownTimeout bounds the admin listener's graceful shutdown.
	adminShutdownTimeout = 5 * time.Second
)

// Deps are the externally constructed collaborators. main.go populates them
// from the config registry; tests inject mocks.
type Deps struct {
	Config      *config.Config
	Bot         *discord.Bot
	Platform    audio.Platform
	WakeFactory wake.Factory
	Transcriber stt.Provider
	Source      songsource.Provider
	Metrics     *observe.Metrics
	Version     string
}

// App owns the subsystem lifetimes and the single active voice session.
type App struct {
	cfg         *config.Config
	bot         *discord.Bot
	platform    audio.Platform
	transcriber stt.Provider
	source      songsource.Provider
	metrics     *observe.Metrics

	gate       *voice.Gate
	capture    *voice.Manager
	controller *playback.Controller
	queue      *queue.Queue
	records    *queue.AttemptRecords
	updates    *queue.UpdateRegistry
	enricher   *queue.Enricher
	dispatcher *command.Dispatcher
	messenger  *discord.Messenger
	admin      *mcp.Server
	checkers   []health.Checker

	// mu guards the active voice session.
	mu      sync.Mutex
	session *voiceSession

	// playMu serialises queue-driver passes so concurrent completion and
	// enqueue kicks cannot double-dequeue.
	playMu sync.Mutex

	stopOnce sync.Once
}

// New wires the pipeline. The bot session is not opened yet; Run does that.
func New(deps Deps) (*App, error) {
	switch {
	case deps.Config == nil:
		return nil, fmt.Errorf("app: config is required")
	case deps.Bot == nil:
		return nil, fmt.Errorf("app: bot is required")
	case deps.Platform == nil:
		return nil, fmt.Errorf("app: audio platform is required")
	case deps.WakeFactory == nil:
		return nil, fmt.Errorf("app: wake factory is required")
	case deps.Transcriber == nil:
		return nil, fmt.Errorf("app: transcriber is required")
	case deps.Source == nil:
		return nil, fmt.Errorf("app: song source is required")
	}

	metrics := deps.Metrics
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}

	a := &App{
		cfg:         deps.Config,
		bot:         deps.Bot,
		platform:    deps.Platform,
		transcriber: deps.Transcriber,
		source:      deps.Source,
		metrics:     metrics,
	}

	a.controller = playback.New(playback.WithDuckVolume(deps.Config.Playback.DuckVolume))
	a.queue = queue.New()
	a.records = queue.NewAttemptRecords()
	a.messenger = discord.NewMessenger(deps.Bot.Session(), a.homeChannel)
	a.updates = queue.NewUpdateRegistry(a.messenger)
	a.enricher = queue.NewEnricher(a.queue, deps.Source, a.records, a.updates,
		queue.WithMetrics(metrics))
	a.enricher.OnReady(a.playNext)

	presence := discord.NewPresence(deps.Bot.Session().State)
	a.dispatcher = command.NewDispatcher(presence, a, deps.Source, a.queue, func() {
		a.enricher.Kick()
		a.playNext()
	}, command.WithMetrics(metrics))

	a.gate = voice.NewGate(deps.WakeFactory,
		voice.WithCooldown(deps.Config.Wake.Cooldown()),
		voice.WithGateMetrics(metrics))
	a.capture = voice.NewManager(deps.Transcriber, a.dispatcher, a.messenger, a.updates, a.controller,
		voice.WithSilenceThreshold(deps.Config.Capture.SilenceThreshold),
		voice.WithSilenceDuration(deps.Config.Capture.Silence()),
		voice.WithCaptureTimeout(deps.Config.Capture.Timeout()),
		voice.WithSessionStart(a.clearLookback),
		voice.WithCaptureMetrics(metrics),
	)

	a.controller.OnComplete(func() {
		a.queue.ClearCurrent()
		a.playNext()
	})

	a.admin = mcp.NewServer(deps.Version, a.queue, a.controller, a.skip)
	a.checkers = []health.Checker{
		health.FuncCheck("gateway", func(context.Context) error { return a.bot.Gateway() }),
		health.ReadyCheck("wake", deps.WakeFactory),
		health.ReadyCheck("stt", deps.Transcriber),
		health.ReadyCheck("songsource", deps.Source),
		health.BinaryCheck("ffmpeg", "ffmpeg"),
		health.BinaryCheck("yt-dlp", deps.Config.Music.YtdlpBinary),
		health.WritableDirCheck("cache_dir", deps.Config.Music.CacheDir),
	}
	if p := deps.Config.Playback.ChirpAsset; p != "" {
		a.checkers = append(a.checkers, health.FileCheck("chirp_asset", p))
	}
	if p := deps.Config.Playback.TestAsset; p != "" {
		a.checkers = append(a.checkers, health.FileCheck("test_asset", p))
	}

	deps.Bot.OnJoin(a.joinVoice)
	deps.Bot.OnLeave(a.Leave)

	return a, nil
}

// Run opens the gateway and drives the background loops until ctx is
// cancelled. It always returns the group error, nil on clean cancellation.
func (a *App) Run(ctx context.Context) error {
	if err := a.bot.Open(); err != nil {
		return fmt.Errorf("app: open gateway: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.enricher.Run(ctx)
		return nil
	})
	g.Go(func() error {
		return a.consumeWakeEvents(ctx)
	})
	if addr := a.cfg.Admin.ListenAddr; addr != "" {
		a.runAdmin(ctx, g, addr)
	}

	slog.Info("app: running", "admin_addr", a.cfg.Admin.ListenAddr)
	<-ctx.Done()

	a.gate.Close()
	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Shutdown disconnects voice, stops playback, and closes the gateway. Safe to
// call more than once.
func (a *App) Shutdown(ctx context.Context) error {
	var errs []error
	a.stopOnce.Do(func() {
		a.mu.Lock()
		s := a.session
		a.mu.Unlock()
		if s != nil {
			if err := a.Leave(s.guildID); err != nil {
				errs = append(errs, err)
			}
		}

		a.controller.Stop()
		a.gate.Close()

		if err := a.bot.Close(); err != nil {
			errs = append(errs, err)
		}
		if err := a.transcriber.Close(); err != nil {
			errs = append(errs, err)
		}
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
		}
		slog.Info("app: shutdown complete")
	})
	return errors.Join(errs...)
}

// adminHandler assembles the operational mux: Prometheus metrics, health
// probes, and the MCP tool endpoint, all behind the tracing middleware.
func (a *App) adminHandler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.Handler())
	health.New(a.checkers...).Register(mux)
	mux.Handle("/mcp", a.admin.Handler())
	return observe.Middleware(a.metrics)(mux)
}

func (a *App) runAdmin(ctx context.Context, g *errgroup.Group, addr string) {
	srv := &http.Server{
		Addr:              addr,
		Handler:           a.adminHandler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	g.Go(func() error {
		slog.Info("app: admin listener started", "addr", addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("app: admin listener: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), adminShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}

// skip is the MCP skip tool's action: abort the current song and advance.
func (a *App) skip() error {
	a.controller.Stop()
	a.queue.ClearCurrent()
	a.playNext()
	return nil
}

// homeChannel resolves the reply channel for the active voice session's guild.
func (a *App) homeChannel() (string, bool) {
	a.mu.Lock()
	s := a.session
	a.mu.Unlock()
	if s == nil {
		return "", false
	}
	return a.bot.HomeChannel(s.guildID)
}
