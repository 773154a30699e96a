// Package porcupine provides a Picovoice Porcupine-backed wake-word detector.
//
// Porcupine runs fully on-device; each detector instance holds its own
// keyword-spotting state, so one instance is created per speaker stream. The
// engine requires a Picovoice access key and either built-in keyword names or
// paths to trained .ppn keyword files.
package porcupine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	picovoice "github.com/Picovoice/porcupine/binding/go/v3"
	"github.com/lumabyte/chantey/pkg/provider/wake"
)

// Compile-time interface assertions.
var (
	_ wake.Factory  = (*Factory)(nil)
	_ wake.Provider = (*Detector)(nil)
)

// Factory builds Porcupine detectors from a shared configuration.
type Factory struct {
	accessKey     string
	builtIns      []picovoice.BuiltInKeyword
	keywordPaths  []string
	sensitivities []float32
	names         []string
}

// Option is a functional option for configuring the Factory.
type Option func(*Factory)

// WithSensitivities sets per-keyword detection sensitivities in [0,1].
// Higher values reduce misses at the cost of false wakes. Must match the
// keyword count; defaults to 0.5 for every keyword.
func WithSensitivities(s []float32) Option {
	return func(f *Factory) { f.sensitivities = s }
}

// NewFactory creates a Factory for the given keywords. Each keyword is either
// the name of a Porcupine built-in (e.g. "porcupine", "jarvis", "computer")
// or a path to a trained .ppn file (anything containing a path separator or
// the .ppn suffix).
func NewFactory(accessKey string, keywords []string, opts ...Option) (*Factory, error) {
	if accessKey == "" {
		return nil, errors.New("porcupine: accessKey must not be empty")
	}
	if len(keywords) == 0 {
		return nil, errors.New("porcupine: at least one keyword is required")
	}

	f := &Factory{accessKey: accessKey}
	for _, kw := range keywords {
		if strings.ContainsAny(kw, `/\`) || strings.HasSuffix(kw, ".ppn") {
			f.keywordPaths = append(f.keywordPaths, kw)
			f.names = append(f.names, keywordFileName(kw))
			continue
		}
		builtIn, err := builtInFromName(kw)
		if err != nil {
			return nil, err
		}
		f.builtIns = append(f.builtIns, builtIn)
		f.names = append(f.names, strings.ToLower(kw))
	}
	if len(f.builtIns) > 0 && len(f.keywordPaths) > 0 {
		// The engine accepts either built-ins or paths per instance, not both.
		return nil, errors.New("porcupine: built-in keywords and keyword files cannot be mixed")
	}

	for _, o := range opts {
		o(f)
	}
	if f.sensitivities != nil && len(f.sensitivities) != len(keywords) {
		return nil, fmt.Errorf("porcupine: got %d sensitivities for %d keywords", len(f.sensitivities), len(keywords))
	}
	return f, nil
}

// Ready verifies the engine can be initialised by building and discarding a
// throwaway instance.
func (f *Factory) Ready(ctx context.Context) error {
	d, err := f.New(ctx)
	if err != nil {
		return err
	}
	return d.Close()
}

// New creates a fresh detector with its own stream state.
func (f *Factory) New(ctx context.Context) (wake.Provider, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("porcupine: new detector: %w", err)
	}

	engine := picovoice.Porcupine{
		AccessKey:       f.accessKey,
		BuiltInKeywords: f.builtIns,
		KeywordPaths:    f.keywordPaths,
		Sensitivities:   f.sensitivities,
	}
	if err := engine.Init(); err != nil {
		return nil, fmt.Errorf("porcupine: init engine: %w", err)
	}

	return &Detector{engine: engine, names: f.names}, nil
}

// Detector is one Porcupine engine instance bound to a single stream.
type Detector struct {
	mu     sync.Mutex
	engine picovoice.Porcupine
	names  []string
	closed bool
}

// FrameLength is the number of int16 samples each Process call expects.
func (d *Detector) FrameLength() int { return picovoice.FrameLength }

// SampleRate is the PCM sample rate the engine was built for.
func (d *Detector) SampleRate() int { return picovoice.SampleRate }

// Keywords returns the configured keyword names, indexed by Process results.
func (d *Detector) Keywords() []string { return d.names }

// Process scans one frame and returns the detected keyword index, or
// [wake.NotDetected].
func (d *Detector) Process(pcm []int16) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return wake.NotDetected, errors.New("porcupine: detector is closed")
	}
	idx, err := d.engine.Process(pcm)
	if err != nil {
		return wake.NotDetected, fmt.Errorf("porcupine: process frame: %w", err)
	}
	if idx < 0 {
		return wake.NotDetected, nil
	}
	return idx, nil
}

// Close releases the engine. Safe to call more than once.
func (d *Detector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	if err := d.engine.Delete(); err != nil {
		return fmt.Errorf("porcupine: delete engine: %w", err)
	}
	return nil
}

// builtInFromName maps a keyword name to the Porcupine built-in constant.
func builtInFromName(name string) (picovoice.BuiltInKeyword, error) {
	kw := picovoice.BuiltInKeyword(strings.ToLower(strings.TrimSpace(name)))
	for _, b := range picovoice.BuiltInKeywords {
		if b == kw {
			return kw, nil
		}
	}
	return "", fmt.Errorf("porcupine: unknown built-in keyword %q", name)
}

// keywordFileName derives a display name from a .ppn keyword file path.
func keywordFileName(path string) string {
	name := path
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	name = strings.TrimSuffix(name, ".ppn")
	if i := strings.IndexByte(name, '_'); i > 0 {
		// Picovoice console files look like "hey-chantey_en_linux_v3_0_0".
		name = name[:i]
	}
	return strings.ToLower(name)
}
