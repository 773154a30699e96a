// Package audio defines the types and interfaces for voice-channel
// connectivity and the PCM frame pipeline in Chantey.
//
// The two primary abstractions are:
//
//   - [Platform] — joins a voice channel and returns a [Connection].
//   - [Connection] — an active session on that channel, delivering
//     speaker-attributed inbound frames and accepting outbound playback PCM.
//
// Implementations are provided by platform-specific adapter packages
// (currently audio/discord). The interfaces stay narrow so the voice pipeline
// never touches provider SDKs directly.
package audio

import "context"

// SpeakerFrame pairs one decoded inbound transport frame with the speaker it
// came from. Until the platform has resolved a stream's speaker identity,
// UserID carries the platform stream key instead.
type SpeakerFrame struct {
	UserID string
	Frame  Frame
}

// Connection is an active session on a voice channel.
//
// A Connection is obtained from [Platform.Connect] and remains valid until
// [Connection.Disconnect] is called. Implementations must be safe for
// concurrent use.
type Connection interface {
	// Frames returns the inbound frame stream. Every decoded 20ms transport
	// frame from every speaker arrives here in receive order, attributed to
	// its speaker. The channel is closed on Disconnect.
	Frames() <-chan SpeakerFrame

	// OutputStream returns the write-only channel for playback output.
	// Frames written here are encoded and sent to the channel.
	//
	// Ownership: the caller owns the returned channel and may close it; the
	// platform never closes it. Writes after Disconnect are dropped, not a
	// panic.
	OutputStream() chan<- Frame

	// ChannelID reports the voice channel this connection is bound to.
	ChannelID() string

	// Disconnect tears down the connection and closes the inbound stream.
	// Safe to call more than once; subsequent calls return nil.
	Disconnect() error
}

// Platform is the entry point for a voice-channel provider.
//
// Implementations must be safe for concurrent use.
type Platform interface {
	// Connect joins the voice channel identified by guildID and channelID and
	// returns an active [Connection]. ctx governs the connection attempt only;
	// the returned Connection lives until Disconnect.
	Connect(ctx context.Context, guildID, channelID string) (Connection, error)
}

// Drain reads from ch until it is closed, discarding all values. Use it to
// keep a producer from blocking when the consumer side shuts down first.
func Drain[T any](ch <-chan T) {
	for range ch {
	}
}
