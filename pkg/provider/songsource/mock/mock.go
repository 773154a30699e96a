// Package mock provides a test double for the songsource.Provider interface.
package mock

import (
	"context"
	"sync"

	"github.com/lumabyte/chantey/pkg/provider/songsource"
)

// Provider is a mock implementation of songsource.Provider. Set the Result
// fields to control return values, or the Func fields for per-call behaviour.
type Provider struct {
	mu sync.Mutex

	// SearchResult and SearchErr are returned by Search when SearchFunc is nil.
	SearchResult songsource.Result
	SearchErr    error
	SearchFunc   func(ctx context.Context, query string) (songsource.Result, error)

	// TitleResult and TitleErr are returned by Title when TitleFunc is nil.
	TitleResult string
	TitleErr    error
	TitleFunc   func(ctx context.Context, locator string) (string, error)

	// DownloadResult and DownloadErr are returned by Download when
	// DownloadFunc is nil.
	DownloadResult string
	DownloadErr    error
	DownloadFunc   func(ctx context.Context, locator string) (string, error)

	// ReadyErr is returned by Ready.
	ReadyErr error

	// Recorded arguments, in call order.
	SearchQueries    []string
	TitleLocators    []string
	DownloadLocators []string
}

var _ songsource.Provider = (*Provider)(nil)

func (p *Provider) Search(ctx context.Context, query string) (songsource.Result, error) {
	p.mu.Lock()
	p.SearchQueries = append(p.SearchQueries, query)
	fn, res, err := p.SearchFunc, p.SearchResult, p.SearchErr
	p.mu.Unlock()
	if fn != nil {
		return fn(ctx, query)
	}
	return res, err
}

func (p *Provider) Title(ctx context.Context, locator string) (string, error) {
	p.mu.Lock()
	p.TitleLocators = append(p.TitleLocators, locator)
	fn, res, err := p.TitleFunc, p.TitleResult, p.TitleErr
	p.mu.Unlock()
	if fn != nil {
		return fn(ctx, locator)
	}
	return res, err
}

func (p *Provider) Download(ctx context.Context, locator string) (string, error) {
	p.mu.Lock()
	p.DownloadLocators = append(p.DownloadLocators, locator)
	fn, res, err := p.DownloadFunc, p.DownloadResult, p.DownloadErr
	p.mu.Unlock()
	if fn != nil {
		return fn(ctx, locator)
	}
	return res, err
}

func (p *Provider) Ready(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ReadyErr
}

// Downloads returns a snapshot of the locators passed to Download.
func (p *Provider) Downloads() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.DownloadLocators))
	copy(out, p.DownloadLocators)
	return out
}
