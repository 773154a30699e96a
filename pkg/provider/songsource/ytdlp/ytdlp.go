// Package ytdlp provides a songsource.Provider backed by the yt-dlp binary.
//
// yt-dlp handles search, metadata, and audio download; this package shells
// out to it with machine-readable --print output and ranks search hits by
// Jaro-Winkler similarity between the query and each hit's title, so a literal
// title match beats whatever the site's own ranking put first.
package ytdlp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/antzucaro/matchr"
	"github.com/lumabyte/chantey/pkg/provider/songsource"
)

const (
	defaultBinary      = "yt-dlp"
	defaultSearchLimit = 5
)

// Compile-time interface assertion.
var _ songsource.Provider = (*Provider)(nil)

// Provider implements songsource.Provider by shelling out to yt-dlp.
type Provider struct {
	binary      string
	cacheDir    string
	searchLimit int

	// runCmd executes a prepared command and returns its stdout. Overridden
	// in tests.
	runCmd func(cmd *exec.Cmd) ([]byte, error)
}

// Option is a functional option for configuring the Provider.
type Option func(*Provider)

// WithBinary sets the yt-dlp executable path. Defaults to "yt-dlp" on PATH.
func WithBinary(path string) Option {
	return func(p *Provider) {
		if path != "" {
			p.binary = path
		}
	}
}

// WithSearchLimit sets how many search hits are fetched and ranked per query.
func WithSearchLimit(n int) Option {
	return func(p *Provider) {
		if n > 0 {
			p.searchLimit = n
		}
	}
}

// New creates a Provider that downloads into cacheDir. cacheDir must not be
// empty.
func New(cacheDir string, opts ...Option) (*Provider, error) {
	if cacheDir == "" {
		return nil, errors.New("ytdlp: cacheDir must not be empty")
	}
	p := &Provider{
		binary:      defaultBinary,
		cacheDir:    cacheDir,
		searchLimit: defaultSearchLimit,
		runCmd:      runCmd,
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Ready reports whether the yt-dlp binary is available.
func (p *Provider) Ready(_ context.Context) error {
	if _, err := exec.LookPath(p.binary); err != nil {
		return fmt.Errorf("ytdlp: binary not found: %w", err)
	}
	return nil
}

// Search runs a site search for query and returns the hit whose title is
// closest to the query text.
func (p *Provider) Search(ctx context.Context, query string) (songsource.Result, error) {
	target := fmt.Sprintf("ytsearch%d:%s", p.searchLimit, query)
	cmd := exec.CommandContext(ctx, p.binary,
		"--flat-playlist",
		"--skip-download",
		"--print", "%(url)s\t%(title)s",
		target,
	)
	out, err := p.runCmd(cmd)
	if err != nil {
		return songsource.Result{}, fmt.Errorf("ytdlp: search %q: %w", query, err)
	}

	hits := parseSearchOutput(out)
	if len(hits) == 0 {
		return songsource.Result{}, fmt.Errorf("ytdlp: search %q: no results", query)
	}
	return rankHits(query, hits), nil
}

// Title fetches the title for a known locator.
func (p *Provider) Title(ctx context.Context, locator string) (string, error) {
	cmd := exec.CommandContext(ctx, p.binary,
		"--no-playlist",
		"--skip-download",
		"--print", "%(title)s",
		locator,
	)
	out, err := p.runCmd(cmd)
	if err != nil {
		return "", fmt.Errorf("ytdlp: title %q: %w", locator, err)
	}
	title := strings.TrimSpace(string(out))
	if title == "" {
		return "", fmt.Errorf("ytdlp: title %q: empty result", locator)
	}
	return title, nil
}

// Download retrieves the best audio stream behind locator into the cache
// directory and returns the downloaded file path.
func (p *Provider) Download(ctx context.Context, locator string) (string, error) {
	cmd := exec.CommandContext(ctx, p.binary,
		"--no-playlist",
		"--no-simulate",
		"-f", "bestaudio/best",
		"-o", p.cacheDir+"/%(id)s.%(ext)s",
		"--print", "after_move:filepath",
		locator,
	)
	out, err := p.runCmd(cmd)
	if err != nil {
		return "", fmt.Errorf("ytdlp: download %q: %w", locator, err)
	}
	path := strings.TrimSpace(string(out))
	if path == "" {
		return "", fmt.Errorf("ytdlp: download %q: no output path reported", locator)
	}
	return path, nil
}

// parseSearchOutput splits yt-dlp --print output into hits. Lines without a
// tab or with an empty URL are skipped.
func parseSearchOutput(out []byte) []songsource.Result {
	var hits []songsource.Result
	for _, line := range strings.Split(string(out), "\n") {
		url, title, ok := strings.Cut(strings.TrimSpace(line), "\t")
		if !ok || url == "" {
			continue
		}
		hits = append(hits, songsource.Result{Locator: url, Title: title})
	}
	return hits
}

// rankHits returns the hit whose title best matches the query under
// Jaro-Winkler similarity. Earlier hits win ties, preserving the site's own
// ranking as the secondary order.
func rankHits(query string, hits []songsource.Result) songsource.Result {
	best := hits[0]
	bestScore := titleScore(query, best.Title)
	for _, h := range hits[1:] {
		if score := titleScore(query, h.Title); score > bestScore {
			best = h
			bestScore = score
		}
	}
	return best
}

func titleScore(query, title string) float64 {
	return matchr.JaroWinkler(strings.ToLower(query), strings.ToLower(title), true)
}

// runCmd executes cmd, returning stdout and folding stderr into the error.
func runCmd(cmd *exec.Cmd) ([]byte, error) {
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return nil, fmt.Errorf("%w: %s", err, msg)
		}
		return nil, err
	}
	return stdout.Bytes(), nil
}
