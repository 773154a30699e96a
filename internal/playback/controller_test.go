package playback

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/lumabyte/chantey/pkg/audio"
)

// launchRecord captures one fake transcode launch.
type launchRecord struct {
	file   string
	volume float64
}

// fakeLauncher replaces the ffmpeg seam. Each launch returns a stream that
// emits frames until its writer is closed (clean exit) or the context is
// cancelled.
type fakeLauncher struct {
	mu       sync.Mutex
	launches []launchRecord
	writers  []*io.PipeWriter
}

func (f *fakeLauncher) launch(ctx context.Context, file string, volume float64) (io.ReadCloser, func() error, error) {
	r, w := io.Pipe()
	f.mu.Lock()
	f.launches = append(f.launches, launchRecord{file: file, volume: volume})
	f.writers = append(f.writers, w)
	f.mu.Unlock()

	go func() {
		<-ctx.Done()
		w.CloseWithError(ctx.Err())
	}()
	wait := func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		return nil
	}
	return r, wait, nil
}

func (f *fakeLauncher) recorded() []launchRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]launchRecord, len(f.launches))
	copy(out, f.launches)
	return out
}

// finish closes the i-th launch's writer, simulating clean process exit.
func (f *fakeLauncher) finish(i int) {
	f.mu.Lock()
	w := f.writers[i]
	f.mu.Unlock()
	w.Close()
}

// feed writes one PCM frame into the i-th launch.
func (f *fakeLauncher) feed(i int, data []byte) {
	f.mu.Lock()
	w := f.writers[i]
	f.mu.Unlock()
	w.Write(data)
}

func (f *fakeLauncher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.launches)
}

func newTestController(t *testing.T) (*Controller, *fakeLauncher, chan audio.Frame) {
	t.Helper()
	fl := &fakeLauncher{}
	c := New()
	c.launch = fl.launch
	sink := make(chan audio.Frame, 256)
	t.Cleanup(c.Stop)
	return c, fl, sink
}

func waitLaunches(t *testing.T, fl *fakeLauncher, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if fl.count() >= n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d launches, have %d", n, fl.count())
}

func TestPlayMainStreamsToSink(t *testing.T) {
	t.Parallel()

	c, fl, sink := newTestController(t)
	if err := c.PlayMain("/cache/a", sink); err != nil {
		t.Fatalf("PlayMain: %v", err)
	}
	if !c.Playing() {
		t.Fatal("Playing() = false after PlayMain")
	}

	fl.feed(0, make([]byte, frameBytes))
	select {
	case frame := <-sink:
		if len(frame.Data) != frameBytes {
			t.Errorf("frame size = %d, want %d", len(frame.Data), frameBytes)
		}
		if frame.SampleRate != audio.VoiceSampleRate || frame.Channels != 2 {
			t.Errorf("frame format = %dHz %dch", frame.SampleRate, frame.Channels)
		}
	case <-time.After(time.Second):
		t.Fatal("no frame reached the sink")
	}
}

func TestPlayMainFullVolumeByDefault(t *testing.T) {
	t.Parallel()

	c, fl, sink := newTestController(t)
	if err := c.PlayMain("/cache/a", sink); err != nil {
		t.Fatal(err)
	}
	if got := fl.recorded()[0].volume; got != 1.0 {
		t.Errorf("volume = %v, want 1.0", got)
	}
}

func TestCompletionFiresOnCleanExitOnly(t *testing.T) {
	t.Parallel()

	c, fl, sink := newTestController(t)

	var mu sync.Mutex
	completions := 0
	c.OnComplete(func() {
		mu.Lock()
		completions++
		mu.Unlock()
	})

	// Cancelled stream: no completion.
	if err := c.PlayMain("/cache/a", sink); err != nil {
		t.Fatal(err)
	}
	c.Stop()
	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	if completions != 0 {
		t.Fatalf("completions after Stop = %d, want 0", completions)
	}
	mu.Unlock()

	// Clean exit: exactly one completion.
	if err := c.PlayMain("/cache/b", sink); err != nil {
		t.Fatal(err)
	}
	fl.finish(1)
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := completions
		mu.Unlock()
		if n == 1 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("completion callback never fired on clean exit")
}

func TestDuckingAppliesAtLaunchOnly(t *testing.T) {
	t.Parallel()

	c, fl, sink := newTestController(t)
	if err := c.PlayMain("/cache/a", sink); err != nil {
		t.Fatal(err)
	}

	// Enabling ducking must not touch the running stream.
	c.SetDucking(true)
	time.Sleep(50 * time.Millisecond)
	if got := fl.count(); got != 1 {
		t.Fatalf("launches after enabling ducking = %d, want 1 (no restart)", got)
	}

	// A subsequently started stream picks up the ducked volume.
	if err := c.PlayMain("/cache/b", sink); err != nil {
		t.Fatal(err)
	}
	recs := fl.recorded()
	if recs[1].volume != defaultDuckVolume {
		t.Errorf("ducked launch volume = %v, want %v", recs[1].volume, defaultDuckVolume)
	}
}

func TestDisableDuckingRestartsAtFullVolume(t *testing.T) {
	t.Parallel()

	c, fl, sink := newTestController(t)
	c.SetDucking(true)
	if err := c.PlayMain("/cache/a", sink); err != nil {
		t.Fatal(err)
	}
	if got := fl.recorded()[0].volume; got != defaultDuckVolume {
		t.Fatalf("ducked launch volume = %v", got)
	}

	c.SetDucking(false)
	waitLaunches(t, fl, 2)
	recs := fl.recorded()
	last := recs[len(recs)-1]
	if last.file != "/cache/a" || last.volume != 1.0 {
		t.Errorf("restart = %+v, want /cache/a at 1.0", last)
	}
}

func TestSetDuckingUnchangedIsNoop(t *testing.T) {
	t.Parallel()

	c, fl, sink := newTestController(t)
	if err := c.PlayMain("/cache/a", sink); err != nil {
		t.Fatal(err)
	}
	c.SetDucking(false) // already off
	time.Sleep(50 * time.Millisecond)
	if got := fl.count(); got != 1 {
		t.Errorf("launches = %d, want 1", got)
	}
}

func TestPlayDuckedOverlayRestartsMainDucked(t *testing.T) {
	t.Parallel()

	c, fl, sink := newTestController(t)
	if err := c.PlayMain("/cache/music", sink); err != nil {
		t.Fatal(err)
	}

	if err := c.PlayDuckedOverlay("/assets/chirp", sink, 0.8); err != nil {
		t.Fatalf("PlayDuckedOverlay: %v", err)
	}
	if !c.Ducking() {
		t.Error("ducking not enabled by PlayDuckedOverlay")
	}

	// main + overlay + ducked main restart
	waitLaunches(t, fl, 3)
	recs := fl.recorded()

	var overlay, restart *launchRecord
	for i := range recs[1:] {
		r := &recs[1+i]
		switch r.file {
		case "/assets/chirp":
			overlay = r
		case "/cache/music":
			restart = r
		}
	}
	if overlay == nil || overlay.volume != 0.8 {
		t.Errorf("overlay launch = %+v, want /assets/chirp at 0.8", overlay)
	}
	if restart == nil || restart.volume != defaultDuckVolume {
		t.Errorf("restart launch = %+v, want /cache/music at %v", restart, defaultDuckVolume)
	}
}

func TestPlayDuckedOverlayWithoutMain(t *testing.T) {
	t.Parallel()

	c, fl, sink := newTestController(t)
	if err := c.PlayDuckedOverlay("/assets/chirp", sink, 0.8); err != nil {
		t.Fatal(err)
	}
	time.Sleep(50 * time.Millisecond)
	if got := fl.count(); got != 1 {
		t.Errorf("launches = %d, want only the overlay", got)
	}
	if !c.Ducking() {
		t.Error("ducking not enabled")
	}
}

func TestStopIdempotent(t *testing.T) {
	t.Parallel()

	c, _, sink := newTestController(t)
	c.Stop() // nothing playing
	if err := c.PlayMain("/cache/a", sink); err != nil {
		t.Fatal(err)
	}
	c.Stop()
	c.Stop()
	if c.Playing() {
		t.Error("Playing() = true after Stop")
	}
}
