// Command chantey is the Chantey Discord voice bot.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lumabyte/chantey/internal/app"
	"github.com/lumabyte/chantey/internal/config"
	discordbot "github.com/lumabyte/chantey/internal/discord"
	"github.com/lumabyte/chantey/internal/observe"
	"github.com/lumabyte/chantey/internal/resilience"
	audiodiscord "github.com/lumabyte/chantey/pkg/audio/discord"
	"github.com/lumabyte/chantey/pkg/provider/songsource/ytdlp"
	"github.com/lumabyte/chantey/pkg/provider/stt"
	"github.com/lumabyte/chantey/pkg/provider/stt/deepgram"
	"github.com/lumabyte/chantey/pkg/provider/stt/whisper"
	"github.com/lumabyte/chantey/pkg/provider/wake/porcupine"
)

// version is stamped via -ldflags at release builds.
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "chantey: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "chantey: %v\n", err)
		}
		return 1
	}

	logger := newLogger(cfg.Admin.LogLevel)
	slog.SetDefault(logger)

	slog.Info("chantey starting",
		"version", version,
		"config", *configPath,
		"admin_addr", cfg.Admin.ListenAddr,
		"log_level", cfg.Admin.LogLevel,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceVersion: version,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(flushCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()
	metrics := observe.DefaultMetrics()

	// ── Providers ─────────────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	transcriber, err := buildTranscriber(cfg, reg)
	if err != nil {
		slog.Error("failed to build transcriber", "err", err)
		return 1
	}

	wakeFactory, err := porcupine.NewFactory(cfg.Wake.AccessKey, cfg.Wake.Keywords,
		porcupine.WithSensitivities(cfg.Wake.Sensitivities))
	if err != nil {
		slog.Error("failed to create wake detector factory", "err", err)
		return 1
	}

	source, err := ytdlp.New(cfg.Music.CacheDir,
		ytdlp.WithBinary(cfg.Music.YtdlpBinary),
		ytdlp.WithSearchLimit(cfg.Music.SearchLimit))
	if err != nil {
		slog.Error("failed to create song source", "err", err)
		return 1
	}

	// ── Bot + application ─────────────────────────────────────────────────────
	bot, err := discordbot.New(cfg.Discord.Token, cfg.Discord.CommandPrefix)
	if err != nil {
		slog.Error("failed to create Discord bot", "err", err)
		return 1
	}

	application, err := app.New(app.Deps{
		Config:      cfg,
		Bot:         bot,
		Platform:    audiodiscord.New(bot.Session()),
		WakeFactory: wakeFactory,
		Transcriber: transcriber,
		Source:      source,
		Metrics:     metrics,
		Version:     version,
	})
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	printStartupSummary(cfg)
	slog.Info("bot ready — press Ctrl+C to shut down")

	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	slog.Info("shutdown signal received, stopping…")
	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// registerBuiltinProviders wires the STT backends that ship with Chantey.
func registerBuiltinProviders(reg *config.Registry) {
	reg.RegisterSTT("whisper", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []whisper.Option
		if entry.Language != "" {
			opts = append(opts, whisper.WithLanguage(entry.Language))
		}
		return whisper.New(entry.ModelPath, opts...)
	})

	reg.RegisterSTT("deepgram", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []deepgram.Option
		if entry.Model != "" {
			opts = append(opts, deepgram.WithModel(entry.Model))
		}
		if entry.Language != "" {
			opts = append(opts, deepgram.WithLanguage(entry.Language))
		}
		return deepgram.New(entry.APIKey, opts...)
	})
}

// buildTranscriber assembles the STT fallback chain: the configured primary
// plus each fallback behind its own circuit breaker.
func buildTranscriber(cfg *config.Config, reg *config.Registry) (stt.Provider, error) {
	primary, err := reg.CreateSTT(cfg.STT.Primary)
	if err != nil {
		return nil, fmt.Errorf("create stt provider %q: %w", cfg.STT.Primary.Name, err)
	}
	if len(cfg.STT.Fallbacks) == 0 {
		return primary, nil
	}

	chain := resilience.NewTranscriber(primary, resilience.BreakerConfig{})
	for _, entry := range cfg.STT.Fallbacks {
		p, err := reg.CreateSTT(entry)
		if err != nil {
			return nil, fmt.Errorf("create stt fallback %q: %w", entry.Name, err)
		}
		chain.AddFallback(p)
	}
	slog.Info("transcriber chain assembled", "chain", chain.Name())
	return chain, nil
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║         Chantey — startup summary     ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printField("Wake keywords", fmt.Sprintf("%d configured", len(cfg.Wake.Keywords)))
	printField("STT primary", cfg.STT.Primary.Name)
	printField("STT fallbacks", fmt.Sprintf("%d", len(cfg.STT.Fallbacks)))
	printField("Music cache", cfg.Music.CacheDir)
	if cfg.Admin.ListenAddr != "" {
		printField("Admin addr", cfg.Admin.ListenAddr)
	} else {
		printField("Admin addr", "(disabled)")
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printField(name, value string) {
	if value == "" {
		value = "(not configured)"
	}
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-14s  : %-19s ║\n", name, value)
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
