package ytdlp

import (
	"context"
	"errors"
	"os/exec"
	"strings"
	"testing"
)

// fakeRun installs a runCmd stub that records the argv and returns the given
// output.
func fakeRun(p *Provider, out string, err error) *[][]string {
	var calls [][]string
	p.runCmd = func(cmd *exec.Cmd) ([]byte, error) {
		calls = append(calls, cmd.Args)
		if err != nil {
			return nil, err
		}
		return []byte(out), nil
	}
	return &calls
}

func TestNewRequiresCacheDir(t *testing.T) {
	t.Parallel()

	if _, err := New(""); err == nil {
		t.Fatal("New with empty cacheDir: want error, got nil")
	}
}

func TestSearchRanksByTitleSimilarity(t *testing.T) {
	t.Parallel()

	p, err := New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	out := strings.Join([]string{
		"https://example.com/1\tUnrelated upload",
		"https://example.com/2\tNever Gonna Give You Up",
		"https://example.com/3\tnever gonna give you up (live cover)",
	}, "\n")
	fakeRun(p, out, nil)

	got, err := p.Search(context.Background(), "never gonna give you up")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if got.Locator != "https://example.com/2" {
		t.Errorf("Locator = %q, want the exact title match", got.Locator)
	}
}

func TestSearchNoResults(t *testing.T) {
	t.Parallel()

	p, err := New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	fakeRun(p, "\n\n", nil)

	if _, err := p.Search(context.Background(), "anything"); err == nil {
		t.Fatal("Search with empty output: want error, got nil")
	}
}

func TestSearchLimitInArgv(t *testing.T) {
	t.Parallel()

	p, err := New(t.TempDir(), WithSearchLimit(3), WithBinary("yt-dlp-test"))
	if err != nil {
		t.Fatal(err)
	}
	calls := fakeRun(p, "https://example.com/1\tSong", nil)

	if _, err := p.Search(context.Background(), "song"); err != nil {
		t.Fatalf("Search: %v", err)
	}
	argv := (*calls)[0]
	if argv[0] != "yt-dlp-test" {
		t.Errorf("binary = %q, want yt-dlp-test", argv[0])
	}
	if argv[len(argv)-1] != "ytsearch3:song" {
		t.Errorf("search target = %q, want ytsearch3:song", argv[len(argv)-1])
	}
}

func TestTitle(t *testing.T) {
	t.Parallel()

	p, err := New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	fakeRun(p, "My Song Title\n", nil)

	title, err := p.Title(context.Background(), "https://example.com/v")
	if err != nil {
		t.Fatalf("Title: %v", err)
	}
	if title != "My Song Title" {
		t.Errorf("title = %q, want %q", title, "My Song Title")
	}
}

func TestTitleEmptyOutput(t *testing.T) {
	t.Parallel()

	p, err := New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	fakeRun(p, "  \n", nil)

	if _, err := p.Title(context.Background(), "https://example.com/v"); err == nil {
		t.Fatal("Title with empty output: want error, got nil")
	}
}

func TestDownloadReportsPath(t *testing.T) {
	t.Parallel()

	p, err := New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	fakeRun(p, "/cache/abc123.webm\n", nil)

	path, err := p.Download(context.Background(), "https://example.com/v")
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if path != "/cache/abc123.webm" {
		t.Errorf("path = %q, want /cache/abc123.webm", path)
	}
}

func TestDownloadError(t *testing.T) {
	t.Parallel()

	p, err := New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	wantErr := errors.New("exit status 1")
	fakeRun(p, "", wantErr)

	if _, err := p.Download(context.Background(), "https://example.com/v"); !errors.Is(err, wantErr) {
		t.Fatalf("Download error = %v, want wrapped %v", err, wantErr)
	}
}

func TestParseSearchOutputSkipsMalformedLines(t *testing.T) {
	t.Parallel()

	out := "no-tab-here\n\thas tab but no url\nhttps://ok\tTitle\n"
	hits := parseSearchOutput([]byte(out))
	if len(hits) != 1 {
		t.Fatalf("got %d hits, want 1", len(hits))
	}
	if hits[0].Locator != "https://ok" || hits[0].Title != "Title" {
		t.Errorf("unexpected hit: %+v", hits[0])
	}
}
