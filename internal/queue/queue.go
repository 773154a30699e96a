package queue

import (
	"os"
	"sync"
)

// Queue is a thread-safe FIFO of pending songs plus the currently playing
// song, tracked separately. Command handlers enqueue, enrichment workers
// mutate titles and file paths in place, and the playback driver dequeues.
type Queue struct {
	mu      sync.Mutex
	pending []Song
	current *Song

	// fileExists reports whether a downloaded file is still on disk.
	// Overridden in tests.
	fileExists func(path string) bool
}

// New creates an empty Queue.
func New() *Queue {
	return &Queue{
		fileExists: func(path string) bool {
			info, err := os.Stat(path)
			return err == nil && !info.IsDir()
		},
	}
}

// Enqueue appends the song and returns its 1-based position counting the new
// item, plus whether the queue was idle (nothing pending and nothing playing)
// before the insert. Idle enqueues should start the playback driver.
func (q *Queue) Enqueue(s Song) (position int, wasIdle bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	wasIdle = len(q.pending) == 0 && q.current == nil
	q.pending = append(q.pending, s)
	return len(q.pending), wasIdle
}

// DequeueReady removes and returns the head of the queue if its local file
// exists on disk, making it the current song. An unready head blocks the
// queue; the enrichment cadence retries until its download lands.
func (q *Queue) DequeueReady() (Song, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return Song{}, false
	}
	head := q.pending[0]
	if head.FilePath == "" || !q.fileExists(head.FilePath) {
		return Song{}, false
	}
	q.pending = q.pending[1:]
	cp := head
	q.current = &cp
	return head, true
}

// Current returns a copy of the currently playing song.
func (q *Queue) Current() (Song, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.current == nil {
		return Song{}, false
	}
	return *q.current, true
}

// ClearCurrent marks playback of the current song as finished.
func (q *Queue) ClearCurrent() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.current = nil
}

// Len reports the number of pending songs.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// IsEmpty reports whether nothing is pending.
func (q *Queue) IsEmpty() bool {
	return q.Len() == 0
}

// Snapshot returns copies of the pending songs in queue order.
func (q *Queue) Snapshot() []Song {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Song, len(q.pending))
	copy(out, q.pending)
	return out
}

// Candidates returns the songs enrichment should look at this pass: the
// current song first, then the pending queue in order.
func (q *Queue) Candidates() []Song {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Song, 0, len(q.pending)+1)
	if q.current != nil {
		out = append(out, *q.current)
	}
	out = append(out, q.pending...)
	return out
}

// SetTitle rewrites the title of the song with the given ID, wherever it
// lives. Returns false when the song is no longer tracked.
func (q *Queue) SetTitle(id, title string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.current != nil && q.current.ID == id {
		q.current.Title = title
		return true
	}
	for i := range q.pending {
		if q.pending[i].ID == id {
			q.pending[i].Title = title
			return true
		}
	}
	return false
}

// SetFilePath records the downloaded file for the song with the given ID.
func (q *Queue) SetFilePath(id, path string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.current != nil && q.current.ID == id {
		q.current.FilePath = path
		return true
	}
	for i := range q.pending {
		if q.pending[i].ID == id {
			q.pending[i].FilePath = path
			return true
		}
	}
	return false
}

// NeedsDownload reports whether the song has no usable local file yet.
func (q *Queue) NeedsDownload(s Song) bool {
	q.mu.Lock()
	exists := q.fileExists
	q.mu.Unlock()
	return s.FilePath == "" || !exists(s.FilePath)
}
