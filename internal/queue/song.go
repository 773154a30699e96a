// Package queue holds the song queue and its background enrichment pipeline.
//
// Songs enter the queue from voice commands with only a locator and a
// placeholder title. Enrichment workers resolve real titles and download the
// audio in the background; the playback driver consumes songs once their
// local file exists on disk.
package queue

import (
	"strings"

	"github.com/google/uuid"
)

// Placeholder titles shown until enrichment resolves the real one.
const (
	PlaceholderYouTube = "YouTube Video"
	PlaceholderAudio   = "Audio Track"

	foundPrefix = "Found: "
)

// PlaceholderFound builds the placeholder title for a free-text search query.
func PlaceholderFound(query string) string {
	return foundPrefix + query
}

// IsPlaceholderTitle reports whether title is one of the known placeholder
// forms, meaning the song still needs metadata enrichment.
func IsPlaceholderTitle(title string) bool {
	return title == PlaceholderYouTube ||
		title == PlaceholderAudio ||
		strings.HasPrefix(title, foundPrefix)
}

// Song is one queued track.
type Song struct {
	// ID is the song's opaque unique identity.
	ID string

	// Title starts as a placeholder and is rewritten by enrichment.
	Title string

	// Locator is the source URL.
	Locator string

	// Requester is the user who asked for the song.
	Requester string

	// FilePath is the downloaded local file; empty until the download
	// completes.
	FilePath string
}

// NewSong creates a Song with a fresh ID.
func NewSong(locator, title, requester string) Song {
	return Song{
		ID:        uuid.NewString(),
		Title:     title,
		Locator:   locator,
		Requester: requester,
	}
}

// NeedsMetadata reports whether the song still carries a placeholder title.
func (s Song) NeedsMetadata() bool {
	return IsPlaceholderTitle(s.Title)
}
