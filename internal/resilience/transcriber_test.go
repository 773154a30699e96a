package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	sttmock "github.com/lumabyte/chantey/pkg/provider/stt/mock"
)

func TestTranscriberUsesPrimary(t *testing.T) {
	t.Parallel()

	primary := &sttmock.Provider{NameValue: "whisper", Text: "play some jazz"}
	fallback := &sttmock.Provider{NameValue: "deepgram", Text: "wrong"}
	tr := NewTranscriber(primary, BreakerConfig{})
	tr.AddFallback(fallback)

	text, err := tr.Transcribe(context.Background(), []byte{1, 2})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if text != "play some jazz" {
		t.Errorf("text = %q", text)
	}
	if len(fallback.Calls()) != 0 {
		t.Error("fallback invoked while primary healthy")
	}
}

func TestTranscriberFailsOver(t *testing.T) {
	t.Parallel()

	primary := &sttmock.Provider{NameValue: "whisper", Err: errors.New("model load failed")}
	fallback := &sttmock.Provider{NameValue: "deepgram", Text: "hello"}
	tr := NewTranscriber(primary, BreakerConfig{})
	tr.AddFallback(fallback)

	text, err := tr.Transcribe(context.Background(), []byte{1, 2})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if text != "hello" {
		t.Errorf("text = %q", text)
	}
}

func TestTranscriberAllFail(t *testing.T) {
	t.Parallel()

	primary := &sttmock.Provider{NameValue: "whisper", Err: errBackend}
	tr := NewTranscriber(primary, BreakerConfig{})

	if _, err := tr.Transcribe(context.Background(), []byte{1}); !errors.Is(err, ErrExhausted) {
		t.Errorf("err = %v, want ErrExhausted", err)
	}
}

func TestTranscriberBreakerShieldsPrimary(t *testing.T) {
	t.Parallel()

	primary := &sttmock.Provider{NameValue: "whisper", Err: errBackend}
	fallback := &sttmock.Provider{NameValue: "deepgram", Text: "ok"}
	tr := NewTranscriber(primary, BreakerConfig{MaxFailures: 2, Cooldown: time.Hour})
	tr.AddFallback(fallback)

	for range 3 {
		if _, err := tr.Transcribe(context.Background(), []byte{1}); err != nil {
			t.Fatalf("Transcribe: %v", err)
		}
	}
	// Two failures trip the breaker; the third call skips the primary.
	if got := len(primary.Calls()); got != 2 {
		t.Errorf("primary calls = %d, want 2", got)
	}
}

func TestTranscriberName(t *testing.T) {
	t.Parallel()

	tr := NewTranscriber(&sttmock.Provider{NameValue: "whisper"}, BreakerConfig{})
	tr.AddFallback(&sttmock.Provider{NameValue: "deepgram"})
	if got := tr.Name(); got != "whisper→deepgram" {
		t.Errorf("Name() = %q", got)
	}
}

func TestTranscriberReady(t *testing.T) {
	t.Parallel()

	primary := &sttmock.Provider{NameValue: "whisper", ReadyErr: errors.New("model missing")}
	fallback := &sttmock.Provider{NameValue: "deepgram"}
	tr := NewTranscriber(primary, BreakerConfig{})
	tr.AddFallback(fallback)

	if err := tr.Ready(context.Background()); err != nil {
		t.Errorf("Ready with one healthy backend = %v, want nil", err)
	}

	fallback.ReadyErr = errors.New("api key rejected")
	if err := tr.Ready(context.Background()); err == nil {
		t.Error("Ready with no healthy backend = nil, want error")
	}
}

func TestTranscriberCloseClosesAll(t *testing.T) {
	t.Parallel()

	primary := &sttmock.Provider{NameValue: "whisper"}
	fallback := &sttmock.Provider{NameValue: "deepgram"}
	tr := NewTranscriber(primary, BreakerConfig{})
	tr.AddFallback(fallback)

	if err := tr.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if primary.CallCountClose != 1 || fallback.CallCountClose != 1 {
		t.Error("not every backend was closed")
	}
}
