// Package mock provides in-memory implementations of [audio.Platform] and
// [audio.Connection] for unit tests.
//
// All mocks are safe for concurrent use. They record calls so tests can
// assert on counts and arguments, and expose exported fields the test sets to
// control return values.
package mock

import (
	"context"
	"sync"

	"github.com/lumabyte/chantey/pkg/audio"
)

// Connection is a mock [audio.Connection]. Set the exported Result fields
// before use; inspect the CallCount fields after.
type Connection struct {
	mu sync.Mutex

	// FramesResult is returned by Frames. Defaults to a closed channel when
	// left nil.
	FramesResult <-chan audio.SpeakerFrame

	// OutputStreamResult is returned by OutputStream. Defaults to a discarded
	// buffered channel when left nil.
	OutputStreamResult chan<- audio.Frame

	// ChannelIDResult is returned by ChannelID.
	ChannelIDResult string

	// DisconnectError is returned by the first Disconnect call.
	DisconnectError error

	CallCountFrames       int
	CallCountOutputStream int
	CallCountDisconnect   int
}

var _ audio.Connection = (*Connection)(nil)

func (c *Connection) Frames() <-chan audio.SpeakerFrame {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.CallCountFrames++
	if c.FramesResult == nil {
		ch := make(chan audio.SpeakerFrame)
		close(ch)
		c.FramesResult = ch
	}
	return c.FramesResult
}

func (c *Connection) OutputStream() chan<- audio.Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.CallCountOutputStream++
	if c.OutputStreamResult == nil {
		ch := make(chan audio.Frame, 64)
		c.OutputStreamResult = ch
	}
	return c.OutputStreamResult
}

func (c *Connection) ChannelID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ChannelIDResult
}

func (c *Connection) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.CallCountDisconnect++
	if c.CallCountDisconnect > 1 {
		return nil
	}
	return c.DisconnectError
}

// Platform is a mock [audio.Platform].
type Platform struct {
	mu sync.Mutex

	// ConnectResult is returned by Connect when ConnectError is nil.
	ConnectResult audio.Connection

	// ConnectError is returned by Connect.
	ConnectError error

	// CallCountConnect records how many times Connect was called.
	CallCountConnect int

	// RecordedGuildIDs and RecordedChannelIDs hold the arguments of each
	// Connect call in order.
	RecordedGuildIDs   []string
	RecordedChannelIDs []string
}

var _ audio.Platform = (*Platform)(nil)

func (p *Platform) Connect(_ context.Context, guildID, channelID string) (audio.Connection, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.CallCountConnect++
	p.RecordedGuildIDs = append(p.RecordedGuildIDs, guildID)
	p.RecordedChannelIDs = append(p.RecordedChannelIDs, channelID)
	if p.ConnectError != nil {
		return nil, p.ConnectError
	}
	return p.ConnectResult, nil
}
