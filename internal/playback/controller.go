package playback

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/lumabyte/chantey/pkg/audio"
)

const (
	// frameBytes is one 20ms frame of 48kHz stereo s16le PCM, the exact
	// chunk size the voice connection encodes per Opus frame.
	frameBytes = audio.VoiceFrameSamples * 2 * 2

	// settleDelay gives a killed process a moment to release the sink before
	// the replacement starts.
	settleDelay = 100 * time.Millisecond

	defaultDuckVolume = 0.3
)

// mainStream is the single tracked main playback.
type mainStream struct {
	file   string
	sink   chan<- audio.Frame
	cancel context.CancelFunc
	done   chan struct{}
}

// Controller owns the one active main playback stream and the process-wide
// ducking flag. Volume is an ffmpeg launch-time filter, so ducking changes
// only affect subsequently (re)started streams; SetDucking restarts the main
// stream when it must take effect immediately.
//
// One mutex guards the process handle and the ducking flag together, since
// ducking decisions inspect and swap that same state.
type Controller struct {
	mu      sync.Mutex
	main    *mainStream
	ducking bool

	duckVolume float64
	launch     launchFunc

	// onComplete fires after a main stream ends on clean process exit (not
	// on cancellation or error). May be nil.
	onComplete func()
}

// Option is a functional option for configuring the Controller.
type Option func(*Controller)

// WithDuckVolume sets the volume multiplier applied to ducked streams.
func WithDuckVolume(v float64) Option {
	return func(c *Controller) {
		if v > 0 && v < 1 {
			c.duckVolume = v
		}
	}
}

// New creates a Controller.
func New(opts ...Option) *Controller {
	c := &Controller{
		duckVolume: defaultDuckVolume,
		launch:     launchFFmpeg,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// OnComplete registers the callback fired when main playback finishes
// cleanly. The playback driver uses it to advance the queue.
func (c *Controller) OnComplete(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onComplete = fn
}

// PlayMain replaces any running main playback with a transcode of file into
// sink. The new stream picks up the ducked volume filter when ducking is
// currently enabled.
func (c *Controller) PlayMain(file string, sink chan<- audio.Frame) error {
	c.mu.Lock()
	stopped := c.stopMainLocked()
	ducked := c.ducking
	c.mu.Unlock()
	awaitStream(stopped)

	time.Sleep(settleDelay)

	volume := 1.0
	if ducked {
		volume = c.duckVolume
	}
	return c.startMain(file, sink, volume)
}

// PlayOverlay streams file into sink at the given volume without touching
// main playback. Used for short acknowledgment sounds.
func (c *Controller) PlayOverlay(file string, sink chan<- audio.Frame, volume float64) error {
	ctx, cancel := context.WithCancel(context.Background())
	out, wait, err := c.launch(ctx, file, volume)
	if err != nil {
		cancel()
		return err
	}
	go func() {
		defer cancel()
		c.pump(ctx, out, sink)
		if err := wait(); err != nil && ctx.Err() == nil {
			slog.Warn("playback: overlay process failed", "file", file, "error", err)
		}
	}()
	return nil
}

// PlayDuckedOverlay stops main playback, plays the overlay at the given
// volume, enables ducking, and restarts the interrupted main stream so it
// picks up the ducked filter. Ducking stays enabled until the caller
// disables it; the capture pipeline does so when its session completes, so
// music stays quiet for the whole capture window, not just the chirp.
func (c *Controller) PlayDuckedOverlay(file string, sink chan<- audio.Frame, volume float64) error {
	c.mu.Lock()
	var resumeFile string
	var resumeSink chan<- audio.Frame
	if c.main != nil {
		resumeFile = c.main.file
		resumeSink = c.main.sink
	}
	stopped := c.stopMainLocked()
	c.ducking = true
	c.mu.Unlock()
	awaitStream(stopped)

	if err := c.PlayOverlay(file, sink, volume); err != nil {
		return err
	}

	if resumeFile != "" {
		go func() {
			if err := c.PlayMain(resumeFile, resumeSink); err != nil {
				slog.Warn("playback: ducked restart failed", "file", resumeFile, "error", err)
			}
		}()
	}
	return nil
}

// SetDucking toggles the ducking flag. No-op when unchanged. Disabling while
// a main stream is active restarts it at full volume, since a running
// process cannot have its volume changed in place.
func (c *Controller) SetDucking(enabled bool) {
	c.mu.Lock()
	if c.ducking == enabled {
		c.mu.Unlock()
		return
	}
	c.ducking = enabled

	var resumeFile string
	var resumeSink chan<- audio.Frame
	var stopped *mainStream
	if !enabled && c.main != nil {
		resumeFile = c.main.file
		resumeSink = c.main.sink
		stopped = c.stopMainLocked()
	}
	c.mu.Unlock()
	awaitStream(stopped)

	if resumeFile != "" {
		go func() {
			if err := c.PlayMain(resumeFile, resumeSink); err != nil {
				slog.Warn("playback: full-volume restart failed", "file", resumeFile, "error", err)
			}
		}()
	}
}

// Ducking reports the current ducking flag.
func (c *Controller) Ducking() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ducking
}

// Playing reports whether a main stream is active.
func (c *Controller) Playing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.main != nil
}

// Stop cancels main playback and clears tracked state. Safe to call when
// nothing is playing.
func (c *Controller) Stop() {
	c.mu.Lock()
	stopped := c.stopMainLocked()
	c.mu.Unlock()
	awaitStream(stopped)
}

// stopMainLocked untracks and cancels the main stream. The caller holds c.mu
// and must await the returned stream after releasing it; waiting under the
// lock would deadlock against the pump goroutine's own exit bookkeeping.
func (c *Controller) stopMainLocked() *mainStream {
	m := c.main
	c.main = nil
	if m != nil {
		m.cancel()
	}
	return m
}

// awaitStream blocks until a stopped stream's pump has drained. nil is a
// no-op.
func awaitStream(m *mainStream) {
	if m != nil {
		<-m.done
	}
}

// startMain launches a transcode of file and tracks it as the main stream.
func (c *Controller) startMain(file string, sink chan<- audio.Frame, volume float64) error {
	ctx, cancel := context.WithCancel(context.Background())
	out, wait, err := c.launch(ctx, file, volume)
	if err != nil {
		cancel()
		slog.Warn("playback: launch failed", "file", file, "error", err)
		return err
	}

	m := &mainStream{
		file:   file,
		sink:   sink,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	c.mu.Lock()
	prev := c.stopMainLocked() // a racing PlayMain may have won the settle window
	c.main = m
	c.mu.Unlock()
	awaitStream(prev)

	go func() {
		defer close(m.done)
		defer cancel()

		c.pump(ctx, out, sink)
		err := wait()
		cancelled := ctx.Err() != nil

		c.mu.Lock()
		current := c.main == m
		if current {
			c.main = nil
		}
		complete := c.onComplete
		c.mu.Unlock()

		if cancelled || !current {
			return
		}
		if err != nil {
			slog.Warn("playback: main process failed", "file", file, "error", err)
			return
		}
		if complete != nil {
			complete()
		}
	}()
	return nil
}

// pump copies frame-sized PCM chunks from the transcode output into the
// sink until EOF or cancellation.
func (c *Controller) pump(ctx context.Context, out io.ReadCloser, sink chan<- audio.Frame) {
	defer out.Close()
	buf := make([]byte, frameBytes)
	for {
		if ctx.Err() != nil {
			return
		}
		n, err := io.ReadFull(out, buf)
		if n > 0 {
			frame := audio.Frame{
				Data:       append([]byte(nil), buf[:n]...),
				SampleRate: audio.VoiceSampleRate,
				Channels:   2,
			}
			select {
			case sink <- frame:
			case <-ctx.Done():
				return
			}
		}
		if err != nil {
			return
		}
	}
}
