package resilience

import (
	"context"
	"errors"
	"strings"

	"github.com/lumabyte/chantey/pkg/provider/stt"
)

// Transcriber implements [stt.Provider] with automatic failover across
// several STT backends, each behind its own circuit breaker. The capture
// pipeline sees one provider; a flaky primary degrades to the next backend
// instead of dropping the utterance.
type Transcriber struct {
	chain *Chain[stt.Provider]
}

var _ stt.Provider = (*Transcriber)(nil)

// NewTranscriber creates a Transcriber with primary as the preferred backend.
func NewTranscriber(primary stt.Provider, cfg BreakerConfig) *Transcriber {
	return &Transcriber{chain: NewChain(primary.Name(), primary, cfg)}
}

// AddFallback registers an additional backend, tried after earlier ones.
func (t *Transcriber) AddFallback(provider stt.Provider) {
	t.chain.Add(provider.Name(), provider)
}

// Name lists the chain in trial order, e.g. "whisper→deepgram".
func (t *Transcriber) Name() string {
	return strings.Join(t.chain.Names(), "→")
}

// Transcribe runs the utterance through the first healthy backend.
func (t *Transcriber) Transcribe(ctx context.Context, pcm []byte) (string, error) {
	return ChainResult(t.chain, func(p stt.Provider) (string, error) {
		return p.Transcribe(ctx, pcm)
	})
}

// Ready succeeds when at least one backend reports ready.
func (t *Transcriber) Ready(ctx context.Context) error {
	var errs []error
	ok := false
	t.chain.Each(func(name string, p stt.Provider) {
		if err := p.Ready(ctx); err != nil {
			errs = append(errs, err)
		} else {
			ok = true
		}
	})
	if ok {
		return nil
	}
	return errors.Join(errs...)
}

// Close closes every backend and joins their errors.
func (t *Transcriber) Close() error {
	var errs []error
	t.chain.Each(func(name string, p stt.Provider) {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	})
	return errors.Join(errs...)
}
