package queue

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// MessageEditor edits a previously sent chat message in place. Implemented by
// the bot's messenger.
type MessageEditor interface {
	EditMessage(channelID, messageID, content string) error
}

// registration is one pending title correction.
type registration struct {
	channelID    string
	messageID    string
	originalText string
}

// UpdateRegistry tracks sent messages that still show a placeholder title so
// that metadata resolution can correct them in place. A registration is
// consumed by its first resolution; a second resolution for the same song
// finds nothing registered and is a no-op, which keeps the rewrite idempotent.
//
// Safe for concurrent use.
type UpdateRegistry struct {
	mu      sync.Mutex
	pending map[string]registration // keyed by song ID

	editor MessageEditor
}

// NewUpdateRegistry creates a registry that edits messages through editor.
func NewUpdateRegistry(editor MessageEditor) *UpdateRegistry {
	return &UpdateRegistry{
		pending: make(map[string]registration),
		editor:  editor,
	}
}

// Register records that the message shows a placeholder title for the song.
func (r *UpdateRegistry) Register(songID, channelID, messageID, originalText string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending[songID] = registration{
		channelID:    channelID,
		messageID:    messageID,
		originalText: originalText,
	}
}

// OnResolved rewrites the registered message's placeholder span with the
// resolved title and removes the registration. Unknown song IDs are a no-op.
func (r *UpdateRegistry) OnResolved(songID, newTitle string) {
	r.mu.Lock()
	reg, ok := r.pending[songID]
	if ok {
		delete(r.pending, songID)
	}
	r.mu.Unlock()
	if !ok {
		return
	}

	rewritten, changed := rewriteTitle(reg.originalText, newTitle)
	if !changed {
		return
	}
	if err := r.editor.EditMessage(reg.channelID, reg.messageID, rewritten); err != nil {
		slog.Warn("queue: title correction edit failed",
			"songID", songID, "messageID", reg.messageID, "error", err)
	}
}

// Pending reports whether a registration exists for the song.
func (r *UpdateRegistry) Pending(songID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.pending[songID]
	return ok
}

// rewriteTitle replaces the placeholder span in text with newTitle. The
// "Found: {query}" form extends up to the next "**" (the bold marker the
// enqueue message wraps titles in); the fixed placeholders are replaced as
// plain substrings. Returns the rewritten text and whether anything changed.
func rewriteTitle(text, newTitle string) (string, bool) {
	if i := strings.Index(text, foundPrefix); i >= 0 {
		rest := text[i:]
		end := strings.Index(rest, "**")
		if end < 0 {
			end = len(rest)
		}
		return text[:i] + newTitle + rest[end:], true
	}
	for _, ph := range []string{PlaceholderYouTube, PlaceholderAudio} {
		if strings.Contains(text, ph) {
			return strings.Replace(text, ph, newTitle, 1), true
		}
	}
	return text, false
}

// FormatEnqueueMessage builds the reply sent when a song is added. wasIdle
// selects the "starting playback" phrasing; otherwise position is the
// 1-based queue position including the new song.
func FormatEnqueueMessage(title string, position int, wasIdle bool) string {
	if wasIdle {
		return fmt.Sprintf("✅ Added **%s** to queue and starting playback!", title)
	}
	return fmt.Sprintf("✅ Added **%s** to queue at position %d.", title, position)
}
