package discord

import (
	"errors"
	"testing"

	"github.com/bwmarrin/discordgo"
)

type fakeMessageAPI struct {
	sent    []string
	edits   []string
	sendErr error
	editErr error
}

func (f *fakeMessageAPI) ChannelMessageSend(channelID, content string, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	f.sent = append(f.sent, channelID+": "+content)
	return &discordgo.Message{ID: "m-1", ChannelID: channelID}, nil
}

func (f *fakeMessageAPI) ChannelMessageEdit(channelID, messageID, content string, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	if f.editErr != nil {
		return nil, f.editErr
	}
	f.edits = append(f.edits, channelID+"/"+messageID+": "+content)
	return &discordgo.Message{ID: messageID}, nil
}

func TestMessengerSend(t *testing.T) {
	t.Parallel()

	api := &fakeMessageAPI{}
	m := NewMessenger(api, func() (string, bool) { return "tc1", true })

	channelID, messageID, err := m.Send("hello")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if channelID != "tc1" || messageID != "m-1" {
		t.Errorf("coordinates = %q/%q", channelID, messageID)
	}
	if len(api.sent) != 1 || api.sent[0] != "tc1: hello" {
		t.Errorf("sent = %v", api.sent)
	}
}

func TestMessengerSendWithoutHomeChannel(t *testing.T) {
	t.Parallel()

	m := NewMessenger(&fakeMessageAPI{}, func() (string, bool) { return "", false })
	if _, _, err := m.Send("hello"); err == nil {
		t.Error("Send without a home channel succeeded")
	}
}

func TestMessengerSendError(t *testing.T) {
	t.Parallel()

	api := &fakeMessageAPI{sendErr: errors.New("missing permissions")}
	m := NewMessenger(api, func() (string, bool) { return "tc1", true })
	if _, _, err := m.Send("hello"); err == nil {
		t.Error("Send error swallowed")
	}
}

func TestMessengerEdit(t *testing.T) {
	t.Parallel()

	api := &fakeMessageAPI{}
	m := NewMessenger(api, func() (string, bool) { return "tc1", true })

	if err := m.EditMessage("tc1", "m-1", "updated"); err != nil {
		t.Fatalf("EditMessage: %v", err)
	}
	if len(api.edits) != 1 || api.edits[0] != "tc1/m-1: updated" {
		t.Errorf("edits = %v", api.edits)
	}

	api.editErr = errors.New("message deleted")
	if err := m.EditMessage("tc1", "m-1", "updated"); err == nil {
		t.Error("edit error swallowed")
	}
}
