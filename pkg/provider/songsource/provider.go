// Package songsource defines the Provider interface for music lookup and
// retrieval backends.
//
// A song source resolves free-text queries to playable locators, fetches
// human-readable titles, and downloads audio into the local cache for the
// transcoder. The queue's enrichment workers are the only callers; they
// bound concurrency and own retry policy, so providers can stay simple
// one-shot operations.
package songsource

import "context"

// Result is one resolved search hit.
type Result struct {
	// Locator is the canonical URL of the hit.
	Locator string

	// Title is the human-readable title, when the backend returned one.
	Title string
}

// Provider is the abstraction over any song lookup/retrieval backend.
//
// Implementations must be safe for concurrent use; enrichment runs several
// lookups and downloads in parallel.
type Provider interface {
	// Search resolves a free-text query to the best-matching hit.
	Search(ctx context.Context, query string) (Result, error)

	// Title fetches the title for a known locator.
	Title(ctx context.Context, locator string) (string, error)

	// Download retrieves the audio behind locator into the local cache and
	// returns the path of the downloaded file.
	Download(ctx context.Context, locator string) (string, error)

	// Ready reports whether the backend can currently serve requests.
	Ready(ctx context.Context) error
}
