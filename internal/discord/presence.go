package discord

import "github.com/bwmarrin/discordgo"

// Presence answers voice-presence questions from the gateway state cache.
// The command dispatcher uses it to resolve which guild a speaker is acting
// in; resolution fails closed when the speaker is in no voice channel.
type Presence struct {
	state *discordgo.State
}

// NewPresence creates a Presence over the session's state cache.
func NewPresence(state *discordgo.State) *Presence {
	return &Presence{state: state}
}

// GuildForUser returns the guild where userID currently sits in a voice
// channel. False when the user is in none.
func (p *Presence) GuildForUser(userID string) (string, bool) {
	for _, g := range p.state.Guilds {
		vs, err := p.state.VoiceState(g.ID, userID)
		if err == nil && vs != nil && vs.ChannelID != "" {
			return g.ID, true
		}
	}
	return "", false
}

// VoiceChannelOf returns the voice channel userID occupies in guildID, or
// false when they are not in one.
func (p *Presence) VoiceChannelOf(guildID, userID string) (string, bool) {
	vs, err := p.state.VoiceState(guildID, userID)
	if err != nil || vs == nil || vs.ChannelID == "" {
		return "", false
	}
	return vs.ChannelID, true
}
