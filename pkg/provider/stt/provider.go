// Package stt defines the Provider interface for speech-to-text backends.
//
// Chantey transcribes short command utterances that have already been
// captured and endpointed, so the contract is batch: one bounded PCM buffer
// in, one text result out. Implementations wrap either a local model
// (whisper.cpp) or a hosted API (Deepgram).
//
// Implementations must be safe for concurrent use; captures from several
// speakers may complete at the same time.
package stt

import "context"

// SampleRate is the PCM sample rate every provider receives: 16kHz mono
// little-endian int16, the pipeline's detector rate.
const SampleRate = 16000

// Provider is the abstraction over any STT backend.
type Provider interface {
	// Name identifies the provider in logs and fallback-chain reporting.
	Name() string

	// Transcribe runs recognition over one complete utterance buffer and
	// returns the recognized text, trimmed. An empty string with a nil error
	// means the provider heard nothing intelligible.
	Transcribe(ctx context.Context, pcm []byte) (string, error)

	// Ready reports whether the provider can currently serve requests.
	// Used by health checks and the fallback chain.
	Ready(ctx context.Context) error

	// Close releases provider resources. Calling Close more than once is safe.
	Close() error
}
