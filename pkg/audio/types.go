package audio

import "time"

// Pipeline-wide audio constants. The Discord voice transport is fixed at
// 48kHz stereo with 20ms Opus frames; wake-word detection and transcription
// run on 16kHz mono PCM derived from it.
const (
	// VoiceSampleRate is the sample rate of the Discord voice transport.
	VoiceSampleRate = 48000

	// DetectorSampleRate is the sample rate consumed by wake-word detection
	// and transcription.
	DetectorSampleRate = 16000

	// FrameDuration is the duration of one transport frame.
	FrameDuration = 20 * time.Millisecond

	// VoiceFrameSamples is the per-channel sample count of one 20ms frame at
	// the transport rate (48000 * 0.020).
	VoiceFrameSamples = 960

	// DetectorFrameSamples is the sample count of one 20ms frame at the
	// detector rate (16000 * 0.020).
	DetectorFrameSamples = 320
)

// Frame is a single frame of PCM audio flowing through the pipeline. Frames
// are the atomic unit of transport: decoded from inbound Opus packets,
// downmixed and decimated for the detectors, and buffered for capture.
type Frame struct {
	// Data is little-endian int16 PCM, interleaved when stereo.
	Data []byte

	// SampleRate in Hz (48000 on the transport side, 16000 downstream).
	SampleRate int

	// Channels: 2 for the transport, 1 downstream.
	Channels int

	// Timestamp marks when this frame was received, relative to stream start.
	Timestamp time.Duration
}

// Samples returns the number of int16 samples in the frame (all channels).
func (f Frame) Samples() int { return len(f.Data) / 2 }
