package discord

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
)

// messageAPI is the subset of discordgo.Session the messenger uses.
// Narrowed for testability.
type messageAPI interface {
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageEdit(channelID, messageID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Messenger delivers pipeline replies to the active home text channel and
// edits previously sent messages for title rewrites.
type Messenger struct {
	api     messageAPI
	resolve func() (channelID string, ok bool)
}

// NewMessenger creates a Messenger. resolve supplies the current home text
// channel; it is consulted per send so replies follow the latest "!join".
func NewMessenger(api messageAPI, resolve func() (string, bool)) *Messenger {
	return &Messenger{api: api, resolve: resolve}
}

// Send posts content to the home channel and returns the sent message's
// coordinates for later edits.
func (m *Messenger) Send(content string) (channelID, messageID string, err error) {
	ch, ok := m.resolve()
	if !ok {
		return "", "", fmt.Errorf("discord: no home text channel, was !join issued?")
	}
	msg, err := m.api.ChannelMessageSend(ch, content)
	if err != nil {
		return "", "", fmt.Errorf("discord: send message: %w", err)
	}
	return ch, msg.ID, nil
}

// EditMessage replaces the content of a previously sent message.
func (m *Messenger) EditMessage(channelID, messageID, content string) error {
	if _, err := m.api.ChannelMessageEdit(channelID, messageID, content); err != nil {
		return fmt.Errorf("discord: edit message %s: %w", messageID, err)
	}
	return nil
}
