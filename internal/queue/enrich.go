package queue

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/lumabyte/chantey/internal/observe"
	"github.com/lumabyte/chantey/pkg/provider/songsource"
	"golang.org/x/sync/semaphore"
)

const (
	defaultInterval    = time.Second
	maxConcurrentFetch = 5
	maxConcurrentLoad  = 3
)

// Enricher runs the background pipeline that resolves placeholder titles and
// downloads audio for queued songs. Each pass looks at the current song
// first, then the pending queue; work is bounded by counting semaphores and
// de-duplicated per locator by in-flight sets.
type Enricher struct {
	queue   *Queue
	source  songsource.Provider
	records *AttemptRecords
	updates *UpdateRegistry
	metrics *observe.Metrics

	metaSem     *semaphore.Weighted
	downloadSem *semaphore.Weighted

	inflightMu       sync.Mutex
	metaInflight     map[string]struct{}
	downloadInflight map[string]struct{}

	interval time.Duration
	kick     chan struct{}

	// onReady is invoked after a download lands, so the playback driver can
	// pick up a song that was waiting. May be nil.
	onReady func()
}

// EnricherOption is a functional option for configuring the Enricher.
type EnricherOption func(*Enricher)

// WithMetrics routes enrichment instrumentation to m instead of the
// process-wide default.
func WithMetrics(m *observe.Metrics) EnricherOption {
	return func(e *Enricher) {
		if m != nil {
			e.metrics = m
		}
	}
}

// NewEnricher wires the pipeline. updates may be nil when no message
// correction is wanted (tests).
func NewEnricher(q *Queue, source songsource.Provider, records *AttemptRecords, updates *UpdateRegistry, opts ...EnricherOption) *Enricher {
	e := &Enricher{
		queue:            q,
		source:           source,
		records:          records,
		updates:          updates,
		metrics:          observe.DefaultMetrics(),
		metaSem:          semaphore.NewWeighted(maxConcurrentFetch),
		downloadSem:      semaphore.NewWeighted(maxConcurrentLoad),
		metaInflight:     make(map[string]struct{}),
		downloadInflight: make(map[string]struct{}),
		interval:         defaultInterval,
		kick:             make(chan struct{}, 1),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// OnReady registers the callback fired after each successful download.
func (e *Enricher) OnReady(fn func()) { e.onReady = fn }

// Kick requests an immediate enrichment pass, coalescing with any pending
// request. Called on enqueue so new songs don't wait for the next tick.
func (e *Enricher) Kick() {
	select {
	case e.kick <- struct{}{}:
	default:
	}
}

// Run drives enrichment passes until ctx is cancelled.
func (e *Enricher) Run(ctx context.Context) {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.pass(ctx)
		case <-e.kick:
			e.pass(ctx)
		}
	}
}

// pass scans the candidates and spawns bounded workers for whatever is
// missing. The pass itself never blocks on provider calls.
func (e *Enricher) pass(ctx context.Context) {
	for _, song := range e.queue.Candidates() {
		if song.NeedsMetadata() {
			e.spawnMetadata(ctx, song)
		}
		if e.queue.NeedsDownload(song) && e.records.Allowed(song.Locator) {
			e.spawnDownload(ctx, song)
		}
	}
}

func (e *Enricher) spawnMetadata(ctx context.Context, song Song) {
	if !e.claim(e.metaInflight, song.Locator) {
		return
	}
	if !e.metaSem.TryAcquire(1) {
		e.release(e.metaInflight, song.Locator)
		return
	}
	go func() {
		defer e.metaSem.Release(1)
		defer e.release(e.metaInflight, song.Locator)

		title, err := e.source.Title(ctx, song.Locator)
		if err != nil {
			slog.Warn("queue: metadata fetch failed", "locator", song.Locator, "error", err)
			return
		}
		if title == "" || !e.queue.SetTitle(song.ID, title) {
			return
		}
		slog.Debug("queue: title resolved", "songID", song.ID, "title", title)
		if e.updates != nil {
			e.updates.OnResolved(song.ID, title)
		}
	}()
}

func (e *Enricher) spawnDownload(ctx context.Context, song Song) {
	if !e.claim(e.downloadInflight, song.Locator) {
		return
	}
	if !e.downloadSem.TryAcquire(1) {
		e.release(e.downloadInflight, song.Locator)
		return
	}
	go func() {
		defer e.downloadSem.Release(1)
		defer e.release(e.downloadInflight, song.Locator)

		start := time.Now()
		path, err := e.source.Download(ctx, song.Locator)
		if err != nil {
			e.metrics.RecordDownload(ctx, "error", time.Since(start).Seconds())
			e.records.RecordFailure(song.Locator)
			slog.Warn("queue: download failed",
				"locator", song.Locator,
				"failures", e.records.Failures(song.Locator),
				"error", err)
			return
		}
		e.metrics.RecordDownload(ctx, "ok", time.Since(start).Seconds())
		e.records.RecordSuccess(song.Locator)
		if !e.queue.SetFilePath(song.ID, path) {
			return
		}
		slog.Debug("queue: download complete", "songID", song.ID, "path", path)
		if e.onReady != nil {
			e.onReady()
		}
	}()
}

// claim marks the locator as in flight in the given set; false when another
// worker already owns it.
func (e *Enricher) claim(set map[string]struct{}, locator string) bool {
	e.inflightMu.Lock()
	defer e.inflightMu.Unlock()
	if _, busy := set[locator]; busy {
		return false
	}
	set[locator] = struct{}{}
	return true
}

func (e *Enricher) release(set map[string]struct{}, locator string) {
	e.inflightMu.Lock()
	defer e.inflightMu.Unlock()
	delete(set, locator)
}
