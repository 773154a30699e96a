// Package config provides the configuration schema, loader, and STT provider
// registry for the Chantey voice bot.
package config

import "time"

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration, typically loaded from a YAML file via
// [Load] or [LoadFromReader].
type Config struct {
	Discord  DiscordConfig  `yaml:"discord"`
	Admin    AdminConfig    `yaml:"admin"`
	Wake     WakeConfig     `yaml:"wake"`
	Capture  CaptureConfig  `yaml:"capture"`
	STT      STTConfig      `yaml:"stt"`
	Music    MusicConfig    `yaml:"music"`
	Playback PlaybackConfig `yaml:"playback"`
}

// DiscordConfig holds the bot's gateway credentials and text-command surface.
type DiscordConfig struct {
	// Token is the Discord bot token.
	Token string `yaml:"token"`

	// CommandPrefix introduces text commands like "!join". Default "!".
	CommandPrefix string `yaml:"command_prefix"`
}

// AdminConfig configures the operational HTTP listener serving metrics,
// health probes, and the MCP endpoint.
type AdminConfig struct {
	// ListenAddr is the TCP address of the admin listener (e.g. ":8080").
	// Empty disables the listener.
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity. Default "info".
	LogLevel LogLevel `yaml:"log_level"`
}

// WakeConfig configures wake-word detection.
type WakeConfig struct {
	// AccessKey is the Picovoice access key.
	AccessKey string `yaml:"access_key"`

	// Keywords lists built-in keyword names (e.g. "porcupine", "jarvis") or
	// paths to .ppn keyword files. The two forms cannot be mixed.
	Keywords []string `yaml:"keywords"`

	// Sensitivities holds one detection sensitivity in [0.1, 1.0] per keyword.
	// Empty applies the default to every keyword.
	Sensitivities []float32 `yaml:"sensitivities"`

	// CooldownMS is the per-speaker window after a detection during which the
	// detector is not invoked. Default 3000.
	CooldownMS int `yaml:"cooldown_ms"`
}

// CaptureConfig tunes utterance endpointing.
type CaptureConfig struct {
	// SilenceThreshold is the mean-amplitude level below which a frame counts
	// as silence. Default 400.
	SilenceThreshold float64 `yaml:"silence_threshold"`

	// SilenceMS is how long sustained silence must last to end a capture.
	// Default 800.
	SilenceMS int `yaml:"silence_ms"`

	// TimeoutMS is the hard capture deadline. Default 8000.
	TimeoutMS int `yaml:"timeout_ms"`
}

// STTConfig selects the transcription backend chain.
type STTConfig struct {
	// Primary is the preferred backend.
	Primary ProviderEntry `yaml:"primary"`

	// Fallbacks are tried in order when earlier backends fail.
	Fallbacks []ProviderEntry `yaml:"fallbacks"`
}

// ProviderEntry selects and parameterises one STT backend. Name is looked up
// in the [Registry].
type ProviderEntry struct {
	// Name selects the registered implementation ("whisper", "deepgram").
	Name string `yaml:"name"`

	// APIKey authenticates against hosted backends.
	APIKey string `yaml:"api_key"`

	// Model selects the backend's model (e.g. "nova-2") where applicable.
	Model string `yaml:"model"`

	// ModelPath points at a local model file for on-device backends.
	ModelPath string `yaml:"model_path"`

	// Language hints the spoken language (e.g. "en").
	Language string `yaml:"language"`
}

// MusicConfig configures song search, metadata, and downloads.
type MusicConfig struct {
	// YtdlpBinary is the yt-dlp executable. Default "yt-dlp".
	YtdlpBinary string `yaml:"ytdlp_binary"`

	// CacheDir is where downloaded audio files land.
	CacheDir string `yaml:"cache_dir"`

	// SearchLimit caps how many search hits are ranked. Default 5.
	SearchLimit int `yaml:"search_limit"`
}

// PlaybackConfig configures the outbound audio path.
type PlaybackConfig struct {
	// DuckVolume is the volume multiplier for ducked playback, in (0, 1).
	// Default 0.3.
	DuckVolume float64 `yaml:"duck_volume"`

	// ChirpAsset is the acknowledgment sound played on wake. Optional.
	ChirpAsset string `yaml:"chirp_asset"`

	// TestAsset is the file played by the "playtest" voice command.
	TestAsset string `yaml:"test_asset"`
}

// Defaults for optional settings.
const (
	DefaultCommandPrefix    = "!"
	DefaultCooldown         = 3000 * time.Millisecond
	DefaultSilenceThreshold = 400.0
	DefaultSilence          = 800 * time.Millisecond
	DefaultCaptureTimeout   = 8000 * time.Millisecond
	DefaultYtdlpBinary      = "yt-dlp"
	DefaultSearchLimit      = 5
	DefaultDuckVolume       = 0.3
)

// ApplyDefaults fills unset optional fields in place.
func (c *Config) ApplyDefaults() {
	if c.Discord.CommandPrefix == "" {
		c.Discord.CommandPrefix = DefaultCommandPrefix
	}
	if c.Admin.LogLevel == "" {
		c.Admin.LogLevel = LogInfo
	}
	if c.Wake.CooldownMS <= 0 {
		c.Wake.CooldownMS = int(DefaultCooldown / time.Millisecond)
	}
	if c.Capture.SilenceThreshold <= 0 {
		c.Capture.SilenceThreshold = DefaultSilenceThreshold
	}
	if c.Capture.SilenceMS <= 0 {
		c.Capture.SilenceMS = int(DefaultSilence / time.Millisecond)
	}
	if c.Capture.TimeoutMS <= 0 {
		c.Capture.TimeoutMS = int(DefaultCaptureTimeout / time.Millisecond)
	}
	if c.Music.YtdlpBinary == "" {
		c.Music.YtdlpBinary = DefaultYtdlpBinary
	}
	if c.Music.SearchLimit <= 0 {
		c.Music.SearchLimit = DefaultSearchLimit
	}
	if c.Playback.DuckVolume <= 0 || c.Playback.DuckVolume >= 1 {
		c.Playback.DuckVolume = DefaultDuckVolume
	}
}

// Cooldown returns the wake cooldown as a duration.
func (c WakeConfig) Cooldown() time.Duration {
	return time.Duration(c.CooldownMS) * time.Millisecond
}

// Silence returns the endpointing window as a duration.
func (c CaptureConfig) Silence() time.Duration {
	return time.Duration(c.SilenceMS) * time.Millisecond
}

// Timeout returns the capture deadline as a duration.
func (c CaptureConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMS) * time.Millisecond
}
