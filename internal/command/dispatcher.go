package command

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/lumabyte/chantey/internal/observe"
	"github.com/lumabyte/chantey/internal/queue"
	"github.com/lumabyte/chantey/pkg/provider/songsource"
)

// VoicePresence locates the guild where a user currently occupies a voice
// channel. Implemented by the bot layer.
type VoicePresence interface {
	// GuildForUser returns the guild of the user's current voice channel.
	// ok is false when the user is not in voice anywhere the bot can see.
	GuildForUser(userID string) (guildID string, ok bool)
}

// VoiceControl is the subset of bot actions voice commands can trigger.
type VoiceControl interface {
	// Leave disconnects from the guild's voice channel.
	Leave(guildID string) error

	// PlayTest plays the fixed local test asset in the guild.
	PlayTest(guildID string) error
}

// Searcher resolves free-text play queries. Implemented by the song source.
type Searcher interface {
	Search(ctx context.Context, query string) (songsource.Result, error)
}

// Response is the dispatcher's reply for one command.
type Response struct {
	// Message is the mention-prefixed text to send back.
	Message string

	// SongID is set for play commands so the caller can register the sent
	// message for later title correction.
	SongID string
}

// Dispatcher routes normalized transcripts through the grammar and executes
// the matched action. Action errors never propagate; every branch ends in a
// user-facing message.
type Dispatcher struct {
	presence VoicePresence
	voice    VoiceControl
	search   Searcher
	queue    *queue.Queue
	metrics  *observe.Metrics

	// kick nudges the enrichment pipeline and playback driver after an
	// enqueue. May be nil.
	kick func()
}

// DispatcherOption is a functional option for configuring the Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithMetrics routes the dispatcher's instrumentation to m instead of the
// process-wide default.
func WithMetrics(m *observe.Metrics) DispatcherOption {
	return func(d *Dispatcher) {
		if m != nil {
			d.metrics = m
		}
	}
}

// NewDispatcher wires the dispatcher's collaborators.
func NewDispatcher(presence VoicePresence, voice VoiceControl, search Searcher, q *queue.Queue, kick func(), opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		presence: presence,
		voice:    voice,
		search:   search,
		queue:    q,
		metrics:  observe.DefaultMetrics(),
		kick:     kick,
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Dispatch classifies text and executes the matched command for userID.
func (d *Dispatcher) Dispatch(ctx context.Context, text, userID string) Response {
	m := Classify(text)
	slog.Info("command: dispatching", "kind", m.Kind.String(), "user", userID)
	d.metrics.RecordCommand(ctx, m.Kind.String())

	// Everything except pure text replies needs the acting guild. Resolution
	// fails closed: without voice presence no guild is ever guessed.
	guildID, inVoice := d.presence.GuildForUser(userID)

	switch m.Kind {
	case KindLeave:
		if !inVoice {
			return d.noGuild(userID)
		}
		if err := d.voice.Leave(guildID); err != nil {
			slog.Warn("command: leave failed", "guild", guildID, "error", err)
			return reply(userID, "😓 Sorry, I couldn't leave the voice channel.")
		}
		return reply(userID, "👋 Leaving the voice channel. See you!")

	case KindPlaytest:
		if !inVoice {
			return d.noGuild(userID)
		}
		if err := d.voice.PlayTest(guildID); err != nil {
			slog.Warn("command: playtest failed", "guild", guildID, "error", err)
			return reply(userID, "⚠️ Couldn't play the test sound — the test asset seems to be missing.")
		}
		return reply(userID, "🔊 Playing the test sound!")

	case KindPlay:
		if !inVoice {
			return d.noGuild(userID)
		}
		return d.play(ctx, m.Arg, userID)

	case KindSay:
		return reply(userID, m.Arg)

	case KindGreeting:
		return reply(userID, "👋 Hello there!")

	case KindPing:
		return reply(userID, "🏓 Pong!")

	default:
		return reply(userID, helpText)
	}
}

const helpText = "I didn't catch that. Try: `play <song or URL>`, `say <something>`, `leave`, `playtest`, `hello`, or `ping`."

// play resolves the query to a song, enqueues it, and formats the reply.
func (d *Dispatcher) play(ctx context.Context, query, userID string) Response {
	if query == "" {
		return reply(userID, "🎵 Tell me what to play, e.g. \"play some jazz\".")
	}

	var locator, title string
	if isURL(query) {
		locator = query
		title = placeholderForURL(query)
	} else {
		res, err := d.search.Search(ctx, query)
		if err != nil {
			slog.Warn("command: search failed", "query", query, "error", err)
			return reply(userID, fmt.Sprintf("😕 No results found for **%s**.", query))
		}
		locator = res.Locator
		title = res.Title
		if title == "" {
			title = queue.PlaceholderFound(query)
		}
	}

	song := queue.NewSong(locator, title, userID)
	position, wasIdle := d.queue.Enqueue(song)
	d.metrics.SongsEnqueued.Add(ctx, 1)
	if d.kick != nil {
		d.kick()
	}

	resp := reply(userID, queue.FormatEnqueueMessage(title, position, wasIdle))
	resp.SongID = song.ID
	return resp
}

func (d *Dispatcher) noGuild(userID string) Response {
	return reply(userID, "🤔 I couldn't determine which server you're in. Join a voice channel and try again.")
}

// reply mention-prefixes a message for the requesting user.
func reply(userID, message string) Response {
	return Response{Message: fmt.Sprintf("<@%s> %s", userID, message)}
}

// isURL reports whether query is an absolute http(s) URL.
func isURL(query string) bool {
	return strings.HasPrefix(query, "http://") || strings.HasPrefix(query, "https://")
}

// placeholderForURL derives the placeholder title from the URL shape.
func placeholderForURL(url string) string {
	if strings.Contains(url, "youtube.com") || strings.Contains(url, "youtu.be") {
		return queue.PlaceholderYouTube
	}
	return queue.PlaceholderAudio
}
