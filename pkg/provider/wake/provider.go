// Package wake defines the Provider interface for wake-word detection
// backends.
//
// A wake detector consumes fixed-size 16kHz mono PCM frames and reports which
// configured keyword, if any, was spotted in each frame. Detection state is
// per audio stream, so the voice gate creates one Provider instance per
// speaker through a Factory.
package wake

import "context"

// NotDetected is the Process result when no keyword was spotted in the frame.
const NotDetected = -1

// Provider is one detector instance bound to a single audio stream.
//
// Process must be called with consecutive frames of exactly FrameLength
// samples; implementations keep internal state across calls.
type Provider interface {
	// FrameLength is the number of int16 samples each Process call expects.
	FrameLength() int

	// SampleRate is the PCM sample rate the detector was built for.
	SampleRate() int

	// Keywords returns the configured keyword names, indexed by the value
	// Process reports.
	Keywords() []string

	// Process scans one frame and returns the index of the detected keyword,
	// or NotDetected.
	Process(pcm []int16) (int, error)

	// Close releases detector resources. Safe to call more than once.
	Close() error
}

// Factory builds detector instances. One instance is created per speaker;
// Ready lets health checks probe the backend without allocating a stream.
type Factory interface {
	// New creates a fresh detector with its own stream state.
	New(ctx context.Context) (Provider, error)

	// Ready reports whether the factory can currently build detectors.
	Ready(ctx context.Context) error
}
