// Package mock provides a test double for the stt.Provider interface.
//
// Set Text/Err before use to control Transcribe results, or supply
// TranscribeFunc for per-call behaviour. Every call is recorded so tests can
// assert on the audio that was delivered.
package mock

import (
	"context"
	"sync"

	"github.com/lumabyte/chantey/pkg/provider/stt"
)

// TranscribeCall records a single invocation of Provider.Transcribe.
type TranscribeCall struct {
	// PCM is a copy of the audio bytes passed to Transcribe.
	PCM []byte
}

// Provider is a mock implementation of stt.Provider.
type Provider struct {
	mu sync.Mutex

	// NameValue is returned by Name. Defaults to "mock".
	NameValue string

	// Text is returned by Transcribe when TranscribeFunc is nil.
	Text string

	// Err, if non-nil, is returned as the error from Transcribe.
	Err error

	// ReadyErr is returned by Ready.
	ReadyErr error

	// TranscribeFunc, if set, replaces the Text/Err behaviour entirely.
	TranscribeFunc func(ctx context.Context, pcm []byte) (string, error)

	// TranscribeCalls records every call to Transcribe.
	TranscribeCalls []TranscribeCall

	// CallCountClose records how many times Close was called.
	CallCountClose int
}

// Ensure Provider implements stt.Provider at compile time.
var _ stt.Provider = (*Provider)(nil)

func (p *Provider) Name() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.NameValue == "" {
		return "mock"
	}
	return p.NameValue
}

// Transcribe records the call and returns the configured result.
func (p *Provider) Transcribe(ctx context.Context, pcm []byte) (string, error) {
	p.mu.Lock()
	cp := make([]byte, len(pcm))
	copy(cp, pcm)
	p.TranscribeCalls = append(p.TranscribeCalls, TranscribeCall{PCM: cp})
	fn := p.TranscribeFunc
	text, err := p.Text, p.Err
	p.mu.Unlock()

	if fn != nil {
		return fn(ctx, pcm)
	}
	return text, err
}

func (p *Provider) Ready(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ReadyErr
}

func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.CallCountClose++
	return nil
}

// Calls returns a snapshot of the recorded Transcribe calls.
func (p *Provider) Calls() []TranscribeCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]TranscribeCall, len(p.TranscribeCalls))
	copy(out, p.TranscribeCalls)
	return out
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.TranscribeCalls = nil
	p.CallCountClose = 0
}
