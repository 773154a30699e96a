// Package command parses transcribed voice commands and dispatches them.
//
// The grammar is a fixed, prioritized rule list evaluated in order over
// normalized text; the first matching rule wins. Every input matches exactly
// one rule because the list ends with a fallback, which keeps classification
// deterministic and total.
package command

import "strings"

// Kind identifies which grammar rule matched.
type Kind int

const (
	KindLeave Kind = iota
	KindPlaytest
	KindPlay
	KindSay
	KindGreeting
	KindPing
	KindFallback
)

// String returns the rule name for logs and metrics.
func (k Kind) String() string {
	switch k {
	case KindLeave:
		return "leave"
	case KindPlaytest:
		return "playtest"
	case KindPlay:
		return "play"
	case KindSay:
		return "say"
	case KindGreeting:
		return "greeting"
	case KindPing:
		return "ping"
	default:
		return "fallback"
	}
}

// Match is the outcome of classifying one normalized input.
type Match struct {
	Kind Kind

	// Arg carries the play query or say content; empty for other kinds.
	Arg string
}

// Rule is one grammar entry: a pure predicate over normalized text.
type Rule interface {
	// Try reports whether the rule matches text, with any extracted argument.
	Try(text string) (Match, bool)
}

// Rules is the grammar in priority order. Classification walks this list and
// stops at the first match; the final FallbackRule always matches.
var Rules = []Rule{
	LeaveRule{},
	PlaytestRule{},
	PlayRule{},
	SayRule{},
	GreetingRule{},
	PingRule{},
	FallbackRule{},
}

// Classify normalizes text and returns its unique grammar match.
func Classify(text string) Match {
	norm := Normalize(text)
	for _, r := range Rules {
		if m, ok := r.Try(norm); ok {
			return m
		}
	}
	return Match{Kind: KindFallback}
}

// Normalize lowercases, trims, strips terminal punctuation, and collapses
// internal whitespace.
func Normalize(text string) string {
	t := strings.ToLower(strings.TrimSpace(text))
	t = strings.TrimRight(t, ".,!?;:")
	return strings.Join(strings.Fields(t), " ")
}

// LeaveRule matches requests to leave the voice channel.
type LeaveRule struct{}

func (LeaveRule) Try(text string) (Match, bool) {
	switch text {
	case "leave", "disconnect", "exit", "quit":
		return Match{Kind: KindLeave}, true
	}
	if strings.Contains(text, "leave voice") || strings.Contains(text, "disconnect from voice") {
		return Match{Kind: KindLeave}, true
	}
	if strings.HasPrefix(text, "leave ") {
		return Match{Kind: KindLeave}, true
	}
	return Match{}, false
}

// PlaytestRule matches requests to play the local test asset. It sits above
// PlayRule so "play test" never becomes a search for "test".
type PlaytestRule struct{}

func (PlaytestRule) Try(text string) (Match, bool) {
	switch text {
	case "playtest", "play test", "test play":
		return Match{Kind: KindPlaytest}, true
	}
	for _, phrase := range []string{"play test", "test audio", "test sound"} {
		if strings.Contains(text, phrase) {
			return Match{Kind: KindPlaytest}, true
		}
	}
	return Match{}, false
}

// PlayRule matches play requests and extracts the query.
type PlayRule struct{}

func (PlayRule) Try(text string) (Match, bool) {
	if rest, ok := strings.CutPrefix(text, "play "); ok {
		return Match{Kind: KindPlay, Arg: strings.TrimSpace(rest)}, true
	}
	if _, after, ok := strings.Cut(text, " play "); ok {
		return Match{Kind: KindPlay, Arg: strings.TrimSpace(after)}, true
	}
	return Match{}, false
}

// SayRule matches echo requests and extracts the content.
type SayRule struct{}

func (SayRule) Try(text string) (Match, bool) {
	if rest, ok := strings.CutPrefix(text, "say "); ok {
		return Match{Kind: KindSay, Arg: strings.TrimSpace(rest)}, true
	}
	if _, after, ok := strings.Cut(text, " say "); ok {
		return Match{Kind: KindSay, Arg: strings.TrimSpace(after)}, true
	}
	return Match{}, false
}

// GreetingRule matches greetings.
type GreetingRule struct{}

func (GreetingRule) Try(text string) (Match, bool) {
	switch text {
	case "hello", "hi", "hey":
		return Match{Kind: KindGreeting}, true
	}
	if strings.Contains(text, "hello") || strings.Contains(text, "hi there") {
		return Match{Kind: KindGreeting}, true
	}
	for _, daypart := range []string{"good morning", "good afternoon", "good evening"} {
		if strings.Contains(text, daypart) {
			return Match{Kind: KindGreeting}, true
		}
	}
	return Match{}, false
}

// PingRule matches liveness checks.
type PingRule struct{}

func (PingRule) Try(text string) (Match, bool) {
	if text == "ping" || strings.Contains(text, "ping") {
		return Match{Kind: KindPing}, true
	}
	return Match{}, false
}

// FallbackRule matches everything; it terminates the rule list.
type FallbackRule struct{}

func (FallbackRule) Try(string) (Match, bool) {
	return Match{Kind: KindFallback}, true
}
