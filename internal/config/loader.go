package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// ValidSTTNames lists the STT backend names shipped with Chantey. [Validate]
// warns about names outside this list instead of rejecting them, since a
// deployment may register its own.
var ValidSTTNames = []string{"whisper", "deepgram"}

// Load reads the YAML configuration file at path, applies defaults, and
// validates the result.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults, and
// validates the result. Useful in tests where configs are string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	cfg.ApplyDefaults()
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values. It returns a
// joined error listing every validation failure found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Discord.Token == "" {
		errs = append(errs, errors.New("discord.token is required"))
	}
	if !cfg.Admin.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("admin.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Admin.LogLevel))
	}

	// Wake
	if cfg.Wake.AccessKey == "" {
		errs = append(errs, errors.New("wake.access_key is required"))
	}
	if len(cfg.Wake.Keywords) == 0 {
		errs = append(errs, errors.New("wake.keywords must list at least one keyword"))
	}
	if mixesKeywordForms(cfg.Wake.Keywords) {
		errs = append(errs, errors.New("wake.keywords cannot mix built-in names and .ppn file paths"))
	}
	if n := len(cfg.Wake.Sensitivities); n != 0 && n != len(cfg.Wake.Keywords) {
		errs = append(errs, fmt.Errorf("wake.sensitivities has %d entries for %d keywords", n, len(cfg.Wake.Keywords)))
	}
	for i, s := range cfg.Wake.Sensitivities {
		if s < 0.1 || s > 1.0 {
			errs = append(errs, fmt.Errorf("wake.sensitivities[%d] %.2f is out of range [0.1, 1.0]", i, s))
		}
	}

	// STT chain
	if cfg.STT.Primary.Name == "" {
		errs = append(errs, errors.New("stt.primary.name is required"))
	} else {
		validateSTTEntry("stt.primary", cfg.STT.Primary, &errs)
	}
	for i, entry := range cfg.STT.Fallbacks {
		prefix := fmt.Sprintf("stt.fallbacks[%d]", i)
		if entry.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
			continue
		}
		validateSTTEntry(prefix, entry, &errs)
	}

	// Music
	if cfg.Music.CacheDir == "" {
		errs = append(errs, errors.New("music.cache_dir is required"))
	}

	return errors.Join(errs...)
}

// validateSTTEntry checks backend-specific required fields and warns on
// unrecognised names.
func validateSTTEntry(prefix string, entry ProviderEntry, errs *[]error) {
	if !slices.Contains(ValidSTTNames, entry.Name) {
		slog.Warn("config: unknown stt backend name, may be a typo or custom registration",
			"entry", prefix, "name", entry.Name, "known", ValidSTTNames)
	}
	switch entry.Name {
	case "whisper":
		if entry.ModelPath == "" {
			*errs = append(*errs, fmt.Errorf("%s.model_path is required for whisper", prefix))
		}
	case "deepgram":
		if entry.APIKey == "" {
			*errs = append(*errs, fmt.Errorf("%s.api_key is required for deepgram", prefix))
		}
	}
}

// mixesKeywordForms reports whether keywords contains both built-in names and
// .ppn file paths.
func mixesKeywordForms(keywords []string) bool {
	files, names := 0, 0
	for _, k := range keywords {
		if strings.HasSuffix(k, ".ppn") {
			files++
		} else {
			names++
		}
	}
	return files > 0 && names > 0
}
