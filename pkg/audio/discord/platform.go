// Package discord provides an [audio.Platform] implementation backed by
// Discord voice channels via the bwmarrin/discordgo library. It bridges
// Discord's Opus-based voice transport with Chantey's PCM [audio.Frame]
// pipeline.
//
// The platform requires an active *discordgo.Session (owned by the bot
// layer). Each call to [Platform.Connect] joins the requested voice channel
// and returns a [Connection] that decodes per-speaker inbound audio and
// encodes playback output.
package discord

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/lumabyte/chantey/pkg/audio"
)

// Compile-time interface assertion.
var _ audio.Platform = (*Platform)(nil)

// Platform implements [audio.Platform] using discordgo voice connections.
//
// Platform is safe for concurrent use.
type Platform struct {
	session *discordgo.Session
}

// New creates a Discord Platform for the given session.
func New(session *discordgo.Session) *Platform {
	return &Platform{session: session}
}

// Connect joins the voice channel identified by guildID and channelID and
// returns an active [audio.Connection]. ctx governs the connection-setup
// phase only; the Connection lives until [Connection.Disconnect].
func (p *Platform) Connect(ctx context.Context, guildID, channelID string) (audio.Connection, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("discord: connect: %w", err)
	}

	// mute=false (we send audio), deaf=false (we receive audio).
	vc, err := p.session.ChannelVoiceJoin(guildID, channelID, false, false)
	if err != nil {
		return nil, fmt.Errorf("discord: join voice channel %q: %w", channelID, err)
	}

	return newConnection(vc, channelID), nil
}
