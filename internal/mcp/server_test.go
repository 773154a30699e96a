package mcp

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/lumabyte/chantey/internal/queue"
)

type fakePlayback struct {
	playing bool
	ducking bool
}

func (f *fakePlayback) Playing() bool { return f.playing }
func (f *fakePlayback) Ducking() bool { return f.ducking }

// playableSong enqueues a song backed by a real file so DequeueReady accepts it.
func playableSong(t *testing.T, q *queue.Queue, id, title, requester string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), id+".opus")
	if err := os.WriteFile(path, []byte("audio"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	q.Enqueue(queue.Song{ID: id, Title: title, Requester: requester, FilePath: path})
}

func TestQueueStatusEmpty(t *testing.T) {
	t.Parallel()

	s := NewServer("test", queue.New(), &fakePlayback{}, nil)
	_, res, err := s.queueStatus(context.Background(), nil, struct{}{})
	if err != nil {
		t.Fatalf("queueStatus: %v", err)
	}
	if res.Current != nil {
		t.Errorf("current = %+v, want nil", res.Current)
	}
	if res.Length != 0 || len(res.Pending) != 0 {
		t.Errorf("pending = %v (length %d), want empty", res.Pending, res.Length)
	}
}

func TestQueueStatusCurrentAndPending(t *testing.T) {
	t.Parallel()

	q := queue.New()
	playableSong(t, q, "s1", "First Song", "alice")
	if _, ok := q.DequeueReady(); !ok {
		t.Fatal("DequeueReady refused a playable song")
	}
	q.Enqueue(queue.Song{ID: "s2", Title: "Second Song", Requester: "bob", Locator: "loc-2"})

	s := NewServer("test", q, &fakePlayback{playing: true}, nil)
	_, res, err := s.queueStatus(context.Background(), nil, struct{}{})
	if err != nil {
		t.Fatalf("queueStatus: %v", err)
	}
	if res.Current == nil || res.Current.Title != "First Song" || !res.Current.Ready {
		t.Errorf("current = %+v", res.Current)
	}
	if res.Length != 1 || len(res.Pending) != 1 {
		t.Fatalf("pending = %v (length %d), want 1", res.Pending, res.Length)
	}
	got := res.Pending[0]
	if got.Title != "Second Song" || got.Requester != "bob" || got.Locator != "loc-2" || got.Ready {
		t.Errorf("pending[0] = %+v", got)
	}
}

func TestNowPlaying(t *testing.T) {
	t.Parallel()

	q := queue.New()
	playableSong(t, q, "s1", "Sea Shanty", "alice")
	if _, ok := q.DequeueReady(); !ok {
		t.Fatal("DequeueReady refused a playable song")
	}

	s := NewServer("test", q, &fakePlayback{playing: true, ducking: true}, nil)
	_, res, err := s.nowPlaying(context.Background(), nil, struct{}{})
	if err != nil {
		t.Fatalf("nowPlaying: %v", err)
	}
	if !res.Playing || !res.Ducked {
		t.Errorf("playing/ducked = %v/%v", res.Playing, res.Ducked)
	}
	if res.Title != "Sea Shanty" || res.By != "alice" {
		t.Errorf("title/by = %q/%q", res.Title, res.By)
	}
}

func TestNowPlayingIdle(t *testing.T) {
	t.Parallel()

	s := NewServer("test", queue.New(), &fakePlayback{}, nil)
	_, res, err := s.nowPlaying(context.Background(), nil, struct{}{})
	if err != nil {
		t.Fatalf("nowPlaying: %v", err)
	}
	if res.Playing || res.Title != "" {
		t.Errorf("idle result = %+v", res)
	}
}

func TestSkip(t *testing.T) {
	t.Parallel()

	q := queue.New()
	playableSong(t, q, "s1", "Sea Shanty", "alice")
	if _, ok := q.DequeueReady(); !ok {
		t.Fatal("DequeueReady refused a playable song")
	}

	skips := 0
	s := NewServer("test", q, &fakePlayback{playing: true}, func() error {
		skips++
		return nil
	})
	_, res, err := s.skipTool(context.Background(), nil, struct{}{})
	if err != nil {
		t.Fatalf("skip: %v", err)
	}
	if skips != 1 {
		t.Errorf("skip callback calls = %d, want 1", skips)
	}
	if res.Skipped != "Sea Shanty" {
		t.Errorf("skipped = %q", res.Skipped)
	}
}

func TestSkipNothingPlaying(t *testing.T) {
	t.Parallel()

	s := NewServer("test", queue.New(), &fakePlayback{}, func() error {
		t.Error("skip callback invoked with nothing playing")
		return nil
	})
	_, res, err := s.skipTool(context.Background(), nil, struct{}{})
	if err != nil {
		t.Fatalf("skip: %v", err)
	}
	if res.Message != "nothing is playing" {
		t.Errorf("message = %q", res.Message)
	}
}

func TestSkipError(t *testing.T) {
	t.Parallel()

	q := queue.New()
	playableSong(t, q, "s1", "Sea Shanty", "alice")
	q.DequeueReady()

	s := NewServer("test", q, &fakePlayback{playing: true}, func() error {
		return errors.New("ffmpeg refused to die")
	})
	if _, _, err := s.skipTool(context.Background(), nil, struct{}{}); err == nil {
		t.Error("skip error swallowed")
	}
}

func TestHandler(t *testing.T) {
	t.Parallel()

	s := NewServer("test", queue.New(), &fakePlayback{}, nil)
	if s.Handler() == nil {
		t.Fatal("Handler returned nil")
	}
}
