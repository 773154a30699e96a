package deepgram

import (
	"strings"
	"testing"
)

func TestNewRequiresAPIKey(t *testing.T) {
	t.Parallel()

	if _, err := New(""); err == nil {
		t.Fatal("New with empty apiKey: want error, got nil")
	}
	p, err := New("key", WithModel("base"), WithLanguage("de"))
	if err != nil {
		t.Fatalf("New: unexpected error: %v", err)
	}
	if p.model != "base" || p.language != "de" {
		t.Errorf("options not applied: model=%q language=%q", p.model, p.language)
	}
}

func TestBuildURL(t *testing.T) {
	t.Parallel()

	p, err := New("key")
	if err != nil {
		t.Fatal(err)
	}
	u, err := p.buildURL()
	if err != nil {
		t.Fatalf("buildURL: %v", err)
	}
	for _, want := range []string{
		"model=nova-3",
		"language=en",
		"encoding=linear16",
		"sample_rate=16000",
		"channels=1",
		"interim_results=false",
	} {
		if !strings.Contains(u, want) {
			t.Errorf("URL %q missing %q", u, want)
		}
	}
}

func TestParseResult(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		data   string
		want   string
		wantOK bool
	}{
		{
			name:   "final result",
			data:   `{"type":"Results","is_final":true,"channel":{"alternatives":[{"transcript":"play some jazz","confidence":0.98}]}}`,
			want:   "play some jazz",
			wantOK: true,
		},
		{
			name:   "interim result ignored",
			data:   `{"type":"Results","is_final":false,"channel":{"alternatives":[{"transcript":"play"}]}}`,
			wantOK: false,
		},
		{
			name:   "metadata ignored",
			data:   `{"type":"Metadata","duration":1.5}`,
			wantOK: false,
		},
		{
			name:   "empty transcript ignored",
			data:   `{"type":"Results","is_final":true,"channel":{"alternatives":[{"transcript":"  "}]}}`,
			wantOK: false,
		},
		{
			name:   "invalid json ignored",
			data:   `{nope`,
			wantOK: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := parseResult([]byte(tt.data))
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if got != tt.want {
				t.Errorf("text = %q, want %q", got, tt.want)
			}
		})
	}
}
