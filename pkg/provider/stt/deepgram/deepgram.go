// Package deepgram provides a Deepgram-backed STT provider.
//
// Deepgram exposes a streaming WebSocket API. Chantey transcribes bounded,
// already-endpointed command utterances, so each Transcribe call opens a
// session, streams the whole buffer, signals CloseStream, and collects the
// final results the server flushes before closing.
package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/coder/websocket"
	"github.com/lumabyte/chantey/pkg/provider/stt"
)

const (
	deepgramEndpoint = "wss://api.deepgram.com/v1/listen"
	defaultModel     = "nova-3"
	defaultLanguage  = "en"

	// audioChunkBytes is the payload size of one binary audio message.
	audioChunkBytes = 8192
)

// Compile-time assertion that Provider satisfies stt.Provider.
var _ stt.Provider = (*Provider)(nil)

// Option is a functional option for configuring the Deepgram Provider.
type Option func(*Provider)

// WithModel sets the Deepgram model to use (e.g., "nova-3", "base").
func WithModel(model string) Option {
	return func(p *Provider) { p.model = model }
}

// WithLanguage sets the BCP-47 language code for recognition (e.g., "en", "de-DE").
func WithLanguage(language string) Option {
	return func(p *Provider) { p.language = language }
}

// Provider implements stt.Provider backed by the Deepgram streaming API.
type Provider struct {
	apiKey   string
	model    string
	language string
}

// New creates a new Deepgram Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("deepgram: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:   apiKey,
		model:    defaultModel,
		language: defaultLanguage,
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Name identifies the provider in logs and fallback reporting.
func (p *Provider) Name() string { return "deepgram" }

// Ready reports whether the provider is configured. Network reachability is
// left to the first Transcribe; a probe per readiness poll would waste quota.
func (p *Provider) Ready(_ context.Context) error {
	if p.apiKey == "" {
		return errors.New("deepgram: apiKey not configured")
	}
	return nil
}

// Close releases provider resources. The provider holds no persistent
// connection, so this is a no-op.
func (p *Provider) Close() error { return nil }

// Transcribe streams the utterance buffer to Deepgram and returns the
// concatenated final transcripts.
func (p *Provider) Transcribe(ctx context.Context, pcm []byte) (string, error) {
	if len(pcm) == 0 {
		return "", nil
	}

	wsURL, err := p.buildURL()
	if err != nil {
		return "", fmt.Errorf("deepgram: build URL: %w", err)
	}

	headers := http.Header{}
	headers.Set("Authorization", "Token "+p.apiKey)

	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		HTTPHeader: headers,
	})
	if err != nil {
		return "", fmt.Errorf("deepgram: dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "transcription done")

	// Collect finals concurrently while audio is written; the server emits
	// results as it goes and closes the stream after CloseStream.
	type readResult struct {
		parts []string
		err   error
	}
	readCh := make(chan readResult, 1)
	go func() {
		var parts []string
		for {
			_, msg, rErr := conn.Read(ctx)
			if rErr != nil {
				// Deepgram closes the socket once the stream is flushed;
				// a normal closure is the expected end of the session.
				if websocket.CloseStatus(rErr) == websocket.StatusNormalClosure || errors.Is(rErr, context.Canceled) {
					rErr = nil
				}
				readCh <- readResult{parts: parts, err: rErr}
				return
			}
			if text, ok := parseResult(msg); ok {
				parts = append(parts, text)
			}
		}
	}()

	for off := 0; off < len(pcm); off += audioChunkBytes {
		end := min(off+audioChunkBytes, len(pcm))
		if wErr := conn.Write(ctx, websocket.MessageBinary, pcm[off:end]); wErr != nil {
			return "", fmt.Errorf("deepgram: write audio: %w", wErr)
		}
	}
	if wErr := conn.Write(ctx, websocket.MessageText, []byte(`{"type":"CloseStream"}`)); wErr != nil {
		return "", fmt.Errorf("deepgram: close stream: %w", wErr)
	}

	select {
	case res := <-readCh:
		if res.err != nil {
			return "", fmt.Errorf("deepgram: read results: %w", res.err)
		}
		return strings.TrimSpace(strings.Join(res.parts, " ")), nil
	case <-ctx.Done():
		return "", fmt.Errorf("deepgram: transcribe: %w", ctx.Err())
	}
}

// buildURL constructs the Deepgram streaming endpoint URL.
func (p *Provider) buildURL() (string, error) {
	u, err := url.Parse(deepgramEndpoint)
	if err != nil {
		return "", err
	}

	q := u.Query()
	q.Set("model", p.model)
	q.Set("language", p.language)
	q.Set("punctuate", "true")
	q.Set("interim_results", "false")
	q.Set("encoding", "linear16")
	q.Set("sample_rate", strconv.Itoa(stt.SampleRate))
	q.Set("channels", "1")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// resultMessage is the JSON structure Deepgram returns for a Results event.
type resultMessage struct {
	Type    string `json:"type"`
	IsFinal bool   `json:"is_final"`
	Channel struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
		} `json:"alternatives"`
	} `json:"channel"`
}

// parseResult extracts the transcript text from a raw Deepgram message.
// Returns ("", false) for non-final, empty, or non-Results messages.
func parseResult(data []byte) (string, bool) {
	var resp resultMessage
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", false
	}
	if resp.Type != "Results" || !resp.IsFinal {
		return "", false
	}
	if len(resp.Channel.Alternatives) == 0 {
		return "", false
	}
	text := strings.TrimSpace(resp.Channel.Alternatives[0].Transcript)
	if text == "" {
		return "", false
	}
	return text, true
}
