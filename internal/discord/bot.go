// Package discord provides the bot layer: it owns the discordgo.Session
// lifecycle, serves the "!join"/"!leave" text commands that summon and
// dismiss the bot, tracks each guild's home text channel, and exposes
// messenger and voice-presence adapters for the rest of the pipeline.
package discord

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/bwmarrin/discordgo"
)

// JoinRequest describes a "!join" command: where the requester is sitting
// and which text channel replies should go to.
type JoinRequest struct {
	GuildID        string
	VoiceChannelID string
	TextChannelID  string
	UserID         string
}

// Bot owns the gateway connection and the text-command surface. Voice-channel
// joining and leaving is delegated to the handlers the app wires in.
type Bot struct {
	session *discordgo.Session
	prefix  string

	mu   sync.RWMutex
	home map[string]string // guildID → home text channel

	onJoin  func(req JoinRequest) error
	onLeave func(guildID string) error

	closeOnce sync.Once

	// sendReply is the message-send path, overridable in tests.
	sendReply func(channelID, content string)
}

// New creates a Bot for the given token. The session is not opened yet; wire
// handlers first, then call Open.
func New(token, prefix string) (*Bot, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("discord: create session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildVoiceStates |
		discordgo.IntentsMessageContent

	b := &Bot{
		session: session,
		prefix:  prefix,
		home:    make(map[string]string),
	}
	b.sendReply = func(channelID, content string) {
		if _, err := session.ChannelMessageSend(channelID, content); err != nil {
			slog.Warn("discord: reply failed", "channel_id", channelID, "error", err)
		}
	}
	return b, nil
}

// OnJoin registers the handler invoked for "!join".
func (b *Bot) OnJoin(fn func(req JoinRequest) error) { b.onJoin = fn }

// OnLeave registers the handler invoked for "!leave".
func (b *Bot) OnLeave(fn func(guildID string) error) { b.onLeave = fn }

// Session exposes the underlying session for the audio platform and
// messenger adapters.
func (b *Bot) Session() *discordgo.Session { return b.session }

// Open connects to the gateway and starts handling messages.
func (b *Bot) Open() error {
	b.session.AddHandler(func(_ *discordgo.Session, m *discordgo.MessageCreate) {
		b.handleMessage(m)
	})
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("discord: open session: %w", err)
	}
	slog.Info("discord: gateway connected", "user", b.session.State.User.Username)
	return nil
}

// Close disconnects from the gateway. Safe to call more than once.
func (b *Bot) Close() error {
	var closeErr error
	b.closeOnce.Do(func() {
		if err := b.session.Close(); err != nil {
			closeErr = fmt.Errorf("discord: close session: %w", err)
		}
	})
	return closeErr
}

// HomeChannel returns the text channel replies for a guild should go to: the
// channel the most recent "!join" was issued from.
func (b *Bot) HomeChannel(guildID string) (string, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	ch, ok := b.home[guildID]
	return ch, ok
}

// ClearHome forgets a guild's home channel, e.g. after leaving.
func (b *Bot) ClearHome(guildID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.home, guildID)
}

// Gateway reports whether the websocket session is connected and identified.
// Used as a readiness check.
func (b *Bot) Gateway() error {
	if b.session.State == nil || b.session.State.User == nil {
		return fmt.Errorf("discord: gateway not connected")
	}
	return nil
}

func (b *Bot) handleMessage(m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot || m.GuildID == "" {
		return
	}
	content := strings.TrimSpace(m.Content)
	if !strings.HasPrefix(content, b.prefix) {
		return
	}

	switch strings.ToLower(strings.TrimPrefix(content, b.prefix)) {
	case "join":
		b.handleJoin(m)
	case "leave":
		b.handleLeave(m)
	}
}

func (b *Bot) handleJoin(m *discordgo.MessageCreate) {
	vs, err := b.session.State.VoiceState(m.GuildID, m.Author.ID)
	if err != nil || vs == nil || vs.ChannelID == "" {
		b.sendReply(m.ChannelID, fmt.Sprintf("<@%s> Join a voice channel first, then try again.", m.Author.ID))
		return
	}

	b.mu.Lock()
	b.home[m.GuildID] = m.ChannelID
	b.mu.Unlock()

	if b.onJoin == nil {
		return
	}
	req := JoinRequest{
		GuildID:        m.GuildID,
		VoiceChannelID: vs.ChannelID,
		TextChannelID:  m.ChannelID,
		UserID:         m.Author.ID,
	}
	if err := b.onJoin(req); err != nil {
		slog.Error("discord: join failed", "guild_id", m.GuildID, "error", err)
		b.sendReply(m.ChannelID, fmt.Sprintf("<@%s> I couldn't join your voice channel.", m.Author.ID))
		return
	}
	b.sendReply(m.ChannelID, fmt.Sprintf("<@%s> Joined! Say the wake word to give me a command.", m.Author.ID))
}

func (b *Bot) handleLeave(m *discordgo.MessageCreate) {
	if b.onLeave == nil {
		return
	}
	if err := b.onLeave(m.GuildID); err != nil {
		slog.Error("discord: leave failed", "guild_id", m.GuildID, "error", err)
		b.sendReply(m.ChannelID, fmt.Sprintf("<@%s> I couldn't leave the voice channel.", m.Author.ID))
		return
	}
	b.ClearHome(m.GuildID)
	b.sendReply(m.ChannelID, fmt.Sprintf("<@%s> Bye!", m.Author.ID))
}
