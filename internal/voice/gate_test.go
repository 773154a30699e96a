package voice

import (
	"context"
	"errors"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/lumabyte/chantey/internal/observe"
	"github.com/lumabyte/chantey/pkg/provider/wake"
	wakemock "github.com/lumabyte/chantey/pkg/provider/wake/mock"
)

// pcmBytes builds little-endian PCM of n samples, all set to value.
func pcmBytes(n int, value int16) []byte {
	out := make([]byte, n*2)
	for i := range n {
		out[i*2] = byte(value)
		out[i*2+1] = byte(value >> 8)
	}
	return out
}

func newTestGate(detectors []wake.Provider, opts ...GateOption) (*Gate, *wakemock.Factory) {
	factory := &wakemock.Factory{Detectors: detectors}
	return NewGate(factory, opts...), factory
}

// newPipelineMetrics builds a Metrics instance backed by a manual reader so
// tests can assert recorded values.
func newPipelineMetrics(t *testing.T) (*observe.Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

// sumValue collects the reader and returns the total of all data points for
// the named counter.
func sumValue(t *testing.T, reader *sdkmetric.ManualReader, name string) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("metric %s: unexpected data type %T", name, m.Data)
			}
			var total int64
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
			return total
		}
	}
	t.Fatalf("metric %s not collected", name)
	return 0
}

// histCount collects the reader and returns the total sample count of the
// named histogram.
func histCount(t *testing.T, reader *sdkmetric.ManualReader, name string) uint64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			hist, ok := m.Data.(metricdata.Histogram[float64])
			if !ok {
				t.Fatalf("metric %s: unexpected data type %T", name, m.Data)
			}
			var total uint64
			for _, dp := range hist.DataPoints {
				total += dp.Count
			}
			return total
		}
	}
	t.Fatalf("metric %s not collected", name)
	return 0
}

func TestGateEmitsWakeEvent(t *testing.T) {
	t.Parallel()

	det := &wakemock.Detector{FrameLen: 4, Names: []string{"hey chantey"}, Results: []int{0}}
	g, _ := newTestGate([]wake.Provider{det})
	defer g.Close()

	g.Feed(context.Background(), "user-1", pcmBytes(4, 100))

	select {
	case ev := <-g.Events():
		if ev.UserID != "user-1" || ev.Keyword != "hey chantey" {
			t.Errorf("event = %+v", ev)
		}
		if ev.At.IsZero() {
			t.Error("event timestamp not set")
		}
	default:
		t.Fatal("no wake event emitted")
	}
}

func TestGatePartialFrameAccumulation(t *testing.T) {
	t.Parallel()

	det := &wakemock.Detector{FrameLen: 4}
	g, _ := newTestGate([]wake.Provider{det})
	defer g.Close()

	ctx := context.Background()
	g.Feed(ctx, "user-1", pcmBytes(3, 0))
	if got := det.FrameCount(); got != 0 {
		t.Fatalf("frames after 3 samples = %d, want 0", got)
	}
	g.Feed(ctx, "user-1", pcmBytes(3, 0))
	if got := det.FrameCount(); got != 1 {
		t.Errorf("frames after 6 samples = %d, want 1 (2 leftover)", got)
	}
	g.Feed(ctx, "user-1", pcmBytes(2, 0))
	if got := det.FrameCount(); got != 2 {
		t.Errorf("frames after 8 samples = %d, want 2", got)
	}
}

func TestGateFirstMatchSuppressesRemainingFrames(t *testing.T) {
	t.Parallel()

	det := &wakemock.Detector{FrameLen: 2, Results: []int{0, 0, 0}}
	g, _ := newTestGate([]wake.Provider{det})
	defer g.Close()

	// Four complete frames in one call; only the first should be scanned.
	g.Feed(context.Background(), "user-1", pcmBytes(8, 0))

	if got := det.FrameCount(); got != 1 {
		t.Errorf("frames scanned = %d, want 1", got)
	}
	if got := len(g.Events()); got != 1 {
		t.Errorf("events emitted = %d, want 1", got)
	}
}

func TestGateCooldownSkipsDetector(t *testing.T) {
	t.Parallel()

	det := &wakemock.Detector{FrameLen: 4, Results: []int{0, 0}}
	g, _ := newTestGate([]wake.Provider{det}, WithCooldown(3*time.Second))
	defer g.Close()

	current := time.Unix(1000, 0)
	g.now = func() time.Time { return current }

	ctx := context.Background()
	g.Feed(ctx, "user-1", pcmBytes(4, 0))
	if got := det.FrameCount(); got != 1 {
		t.Fatalf("frames = %d, want 1", got)
	}

	// Inside the window the detector is never invoked.
	current = current.Add(time.Second)
	g.Feed(ctx, "user-1", pcmBytes(4, 0))
	if got := det.FrameCount(); got != 1 {
		t.Errorf("frames inside cooldown = %d, want 1", got)
	}

	// After the window expires, scanning resumes.
	current = current.Add(3 * time.Second)
	g.Feed(ctx, "user-1", pcmBytes(4, 0))
	if got := det.FrameCount(); got != 2 {
		t.Errorf("frames after cooldown = %d, want 2", got)
	}
}

func TestGateDetectorErrorIsNotDetected(t *testing.T) {
	t.Parallel()

	det := &wakemock.Detector{FrameLen: 4, Err: errors.New("engine fault")}
	g, _ := newTestGate([]wake.Provider{det})
	defer g.Close()

	g.Feed(context.Background(), "user-1", pcmBytes(8, 0))

	if got := len(g.Events()); got != 0 {
		t.Errorf("events after detector errors = %d, want 0", got)
	}
	if got := g.DetectorErrors(); got != 2 {
		t.Errorf("detector error count = %d, want 2", got)
	}
}

func TestGateDropsEventsWhenConsumerLags(t *testing.T) {
	t.Parallel()

	det := &wakemock.Detector{FrameLen: 4, Results: []int{0, 0}}
	g, _ := newTestGate([]wake.Provider{det}, WithEventBuffer(1))
	defer g.Close()

	current := time.Unix(1000, 0)
	g.now = func() time.Time { return current }

	ctx := context.Background()
	g.Feed(ctx, "user-1", pcmBytes(4, 0))
	current = current.Add(5 * time.Second)
	g.Feed(ctx, "user-1", pcmBytes(4, 0))

	if got := g.Dropped(); got != 1 {
		t.Errorf("dropped = %d, want 1", got)
	}
	if got := len(g.Events()); got != 1 {
		t.Errorf("buffered events = %d, want 1", got)
	}
}

func TestGateRecordsDropsAndActiveSpeakers(t *testing.T) {
	t.Parallel()

	m, reader := newPipelineMetrics(t)
	det := &wakemock.Detector{FrameLen: 4, Results: []int{0, 0}}
	g, _ := newTestGate([]wake.Provider{det},
		WithEventBuffer(1), WithGateMetrics(m))
	defer g.Close()

	current := time.Unix(1000, 0)
	g.now = func() time.Time { return current }

	ctx := context.Background()
	g.Feed(ctx, "user-1", pcmBytes(4, 0))
	current = current.Add(5 * time.Second)
	g.Feed(ctx, "user-1", pcmBytes(4, 0))

	if got := sumValue(t, reader, "chantey.wake.events_dropped"); got != 1 {
		t.Errorf("dropped metric = %d, want 1", got)
	}
	if got := sumValue(t, reader, "chantey.wake.active_speakers"); got != 1 {
		t.Errorf("active speakers = %d, want 1", got)
	}

	g.Forget("user-1")
	if got := sumValue(t, reader, "chantey.wake.active_speakers"); got != 0 {
		t.Errorf("active speakers after Forget = %d, want 0", got)
	}
}

func TestGateOneDetectorPerSpeaker(t *testing.T) {
	t.Parallel()

	g, factory := newTestGate(nil)
	defer g.Close()

	ctx := context.Background()
	g.Feed(ctx, "user-1", pcmBytes(4, 0))
	g.Feed(ctx, "user-2", pcmBytes(4, 0))
	g.Feed(ctx, "user-1", pcmBytes(4, 0))

	if factory.CallCountNew != 2 {
		t.Errorf("detectors created = %d, want 2", factory.CallCountNew)
	}
}

func TestGateFactoryErrorIsIsolated(t *testing.T) {
	t.Parallel()

	factory := &wakemock.Factory{NewErr: errors.New("access key rejected")}
	g := NewGate(factory)
	defer g.Close()

	g.Feed(context.Background(), "user-1", pcmBytes(4, 0))
	if got := g.DetectorErrors(); got != 1 {
		t.Errorf("error count = %d, want 1", got)
	}
}

func TestGateForgetClosesDetector(t *testing.T) {
	t.Parallel()

	det := &wakemock.Detector{FrameLen: 4}
	g, _ := newTestGate([]wake.Provider{det})
	defer g.Close()

	g.Feed(context.Background(), "user-1", pcmBytes(4, 0))
	g.Forget("user-1")
	if det.CallCountClose != 1 {
		t.Errorf("detector close count = %d, want 1", det.CallCountClose)
	}
}

func TestGateCloseIdempotent(t *testing.T) {
	t.Parallel()

	det := &wakemock.Detector{FrameLen: 4}
	g, _ := newTestGate([]wake.Provider{det})

	g.Feed(context.Background(), "user-1", pcmBytes(4, 0))
	if err := g.Close(); err != nil {
		t.Fatal(err)
	}
	if err := g.Close(); err != nil {
		t.Fatal(err)
	}
	if det.CallCountClose != 1 {
		t.Errorf("detector close count = %d, want 1", det.CallCountClose)
	}

	// Feed after close is a no-op.
	g.Feed(context.Background(), "user-1", pcmBytes(4, 0))
	if det.FrameCount() != 1 {
		t.Error("frame processed after Close")
	}

	if _, open := <-g.Events(); open {
		t.Error("events channel still open after Close")
	}
}
