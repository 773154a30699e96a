// Package mock provides test doubles for the wake package interfaces.
//
// Detector scans frames with a scripted result sequence; Factory hands out
// detectors and records how many were created.
package mock

import (
	"context"
	"sync"

	"github.com/lumabyte/chantey/pkg/provider/wake"
)

// Detector is a mock implementation of wake.Provider.
//
// Results is consumed one entry per Process call; once exhausted, Process
// returns wake.NotDetected. Set Err to force a detector error instead.
type Detector struct {
	mu sync.Mutex

	// FrameLen is returned by FrameLength. Defaults to 512.
	FrameLen int

	// Rate is returned by SampleRate. Defaults to 16000.
	Rate int

	// Names is returned by Keywords. Defaults to ["mock"].
	Names []string

	// Results holds the scripted Process return values, consumed in order.
	Results []int

	// Err, if non-nil, is returned by every Process call.
	Err error

	// ProcessedFrames records a copy of every frame passed to Process.
	ProcessedFrames [][]int16

	// CallCountClose records how many times Close was called.
	CallCountClose int
}

var _ wake.Provider = (*Detector)(nil)

func (d *Detector) FrameLength() int {
	if d.FrameLen == 0 {
		return 512
	}
	return d.FrameLen
}

func (d *Detector) SampleRate() int {
	if d.Rate == 0 {
		return 16000
	}
	return d.Rate
}

func (d *Detector) Keywords() []string {
	if d.Names == nil {
		return []string{"mock"}
	}
	return d.Names
}

func (d *Detector) Process(pcm []int16) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	cp := make([]int16, len(pcm))
	copy(cp, pcm)
	d.ProcessedFrames = append(d.ProcessedFrames, cp)
	if d.Err != nil {
		return wake.NotDetected, d.Err
	}
	if len(d.Results) == 0 {
		return wake.NotDetected, nil
	}
	res := d.Results[0]
	d.Results = d.Results[1:]
	return res, nil
}

func (d *Detector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.CallCountClose++
	return nil
}

// FrameCount returns how many frames Process has received.
func (d *Detector) FrameCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.ProcessedFrames)
}

// Factory is a mock implementation of wake.Factory.
type Factory struct {
	mu sync.Mutex

	// NewFunc, if set, builds each detector. Otherwise Detectors is consumed
	// in order, and once exhausted a fresh zero-value Detector is returned.
	NewFunc func(ctx context.Context) (wake.Provider, error)

	// Detectors are handed out by New in order.
	Detectors []wake.Provider

	// NewErr, if non-nil, is returned by New.
	NewErr error

	// ReadyErr is returned by Ready.
	ReadyErr error

	// CallCountNew records how many detectors were requested.
	CallCountNew int
}

var _ wake.Factory = (*Factory)(nil)

func (f *Factory) New(ctx context.Context) (wake.Provider, error) {
	f.mu.Lock()
	f.CallCountNew++
	fn := f.NewFunc
	err := f.NewErr
	var d wake.Provider
	if fn == nil && err == nil {
		if len(f.Detectors) > 0 {
			d = f.Detectors[0]
			f.Detectors = f.Detectors[1:]
		} else {
			d = &Detector{}
		}
	}
	f.mu.Unlock()

	if fn != nil {
		return fn(ctx)
	}
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (f *Factory) Ready(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ReadyErr
}
