package discord

import (
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/lumabyte/chantey/pkg/audio"
)

// Compile-time interface assertion.
var _ audio.Connection = (*Connection)(nil)

const (
	framesChannelBuffer = 256
	outputChannelBuffer = 64
)

// Connection wraps a discordgo.VoiceConnection and adapts it to the
// [audio.Connection] interface. Inbound Opus packets are decoded per SSRC and
// delivered as speaker-attributed PCM frames on a single stream; outbound PCM
// frames are chunked to exact Opus frame size, encoded, and sent.
//
// Speaker identity arrives out of band: Discord announces the SSRC→user
// binding in VoiceSpeakingUpdate events. Packets seen before the binding are
// attributed to the SSRC itself, rendered as a decimal string.
//
// Connection is safe for concurrent use.
type Connection struct {
	vc        *discordgo.VoiceConnection
	channelID string

	frames chan audio.SpeakerFrame
	output chan audio.Frame

	ssrcMu   sync.RWMutex
	ssrcUser map[uint32]string

	done      chan struct{}
	closeOnce sync.Once

	// disconnectVC is called during Disconnect to tear down the voice
	// connection. Defaults to vc.Disconnect; overridden in tests.
	disconnectVC func() error
}

// newConnection initialises a Connection for an already-joined voice channel
// and starts the receive and send loops.
func newConnection(vc *discordgo.VoiceConnection, channelID string) *Connection {
	c := &Connection{
		vc:           vc,
		channelID:    channelID,
		frames:       make(chan audio.SpeakerFrame, framesChannelBuffer),
		output:       make(chan audio.Frame, outputChannelBuffer),
		ssrcUser:     make(map[uint32]string),
		done:         make(chan struct{}),
		disconnectVC: vc.Disconnect,
	}

	vc.AddHandler(c.handleSpeakingUpdate)

	go c.recvLoop()
	go c.sendLoop()

	return c
}

// Frames returns the inbound speaker-attributed frame stream.
func (c *Connection) Frames() <-chan audio.SpeakerFrame {
	return c.frames
}

// OutputStream returns the write-only channel for playback output.
func (c *Connection) OutputStream() chan<- audio.Frame {
	return c.output
}

// ChannelID reports the voice channel this connection is bound to.
func (c *Connection) ChannelID() string {
	return c.channelID
}

// Disconnect tears down the voice connection and stops the background loops.
// Safe to call more than once; subsequent calls return nil.
//
// The frame stream is closed by recvLoop when it observes done, never here:
// recvLoop may be mid-decode with a frame still to deliver, and a send on a
// closed channel would panic.
func (c *Connection) Disconnect() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		if c.disconnectVC != nil {
			err = c.disconnectVC()
		}
	})
	return err
}

// handleSpeakingUpdate records the SSRC→user binding Discord announces when a
// participant starts or stops speaking.
func (c *Connection) handleSpeakingUpdate(_ *discordgo.VoiceConnection, vs *discordgo.VoiceSpeakingUpdate) {
	if vs == nil || vs.UserID == "" {
		return
	}
	c.ssrcMu.Lock()
	c.ssrcUser[uint32(vs.SSRC)] = vs.UserID
	c.ssrcMu.Unlock()
}

// speakerFor resolves an SSRC to a user ID, falling back to the SSRC itself
// when no binding has been seen yet.
func (c *Connection) speakerFor(ssrc uint32) string {
	c.ssrcMu.RLock()
	userID, ok := c.ssrcUser[ssrc]
	c.ssrcMu.RUnlock()
	if !ok {
		return strconv.FormatUint(uint64(ssrc), 10)
	}
	return userID
}

// recvLoop reads Opus packets from the voice connection, decodes them with a
// per-SSRC decoder, and delivers speaker-attributed PCM frames downstream.
// As the only sender on c.frames it is also the only closer.
func (c *Connection) recvLoop() {
	defer close(c.frames)
	decoders := make(map[uint32]*opusDecoder)

	for {
		select {
		case <-c.done:
			return
		case pkt, ok := <-c.vc.OpusRecv:
			if !ok {
				return
			}
			if pkt == nil {
				continue
			}

			dec, exists := decoders[pkt.SSRC]
			if !exists {
				var err error
				dec, err = newOpusDecoder()
				if err != nil {
					slog.Error("discord: create opus decoder", "ssrc", pkt.SSRC, "error", err)
					continue
				}
				decoders[pkt.SSRC] = dec
			}

			pcm, err := dec.decode(pkt.Opus)
			if err != nil {
				slog.Warn("discord: opus decode error", "ssrc", pkt.SSRC, "error", err)
				continue
			}

			sf := audio.SpeakerFrame{
				UserID: c.speakerFor(pkt.SSRC),
				Frame: audio.Frame{
					Data:       pcm,
					SampleRate: opusSampleRate,
					Channels:   opusChannels,
					Timestamp:  time.Duration(pkt.Timestamp) * time.Second / time.Duration(opusSampleRate),
				},
			}

			select {
			case c.frames <- sf:
			default:
				// Stream full — drop the frame rather than stall the decoder.
			}
		}
	}
}

// sendLoop reads PCM frames from the output channel, accumulates exact Opus
// frame-sized chunks, encodes them, and sends them to Discord. The speaking
// flag is raised on the first outbound frame and lowered on shutdown.
func (c *Connection) sendLoop() {
	enc, err := newOpusEncoder()
	if err != nil {
		slog.Error("discord: create opus encoder", "error", err)
		return
	}

	speakingSet := false
	var buf []byte

	for {
		select {
		case <-c.done:
			if speakingSet {
				c.setSpeaking(false)
			}
			return
		case frame, ok := <-c.output:
			if !ok {
				return
			}

			if !speakingSet {
				c.setSpeaking(true)
				speakingSet = true
			}

			data := frame.Data
			if frame.Channels == 1 {
				data = audio.MonoToStereo(data)
			}
			buf = append(buf, data...)

			for len(buf) >= opusFrameBytes {
				opus, eErr := enc.encode(buf[:opusFrameBytes])
				if eErr != nil {
					slog.Warn("discord: opus encode error", "error", eErr)
					buf = buf[opusFrameBytes:]
					continue
				}
				buf = buf[opusFrameBytes:]

				select {
				case c.vc.OpusSend <- opus:
				case <-c.done:
					return
				}
			}
		}
	}
}

// setSpeaking sends a speaking notification to Discord, logging any errors.
func (c *Connection) setSpeaking(b bool) {
	if err := c.vc.Speaking(b); err != nil {
		slog.Warn("discord: speaking notification error", "speaking", b, "error", err)
	}
}
