// Package mcp exposes read-only queue and playback state, plus a skip
// action, as Model Context Protocol tools on the admin listener. The server
// speaks the streamable HTTP transport so any MCP-capable client can inspect
// what the bot is doing without touching Discord.
package mcp

import (
	"context"
	"fmt"
	"net/http"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/lumabyte/chantey/internal/queue"
)

// PlaybackInfo is the playback state the tools report.
type PlaybackInfo interface {
	Playing() bool
	Ducking() bool
}

// Server wires the queue and playback state into MCP tools.
type Server struct {
	version string
	queue   *queue.Queue
	play    PlaybackInfo

	// skip advances playback past the current song. Wired by the app; nil
	// disables the skip tool's action.
	skip func() error
}

// NewServer creates a Server over the given queue and playback state.
func NewServer(version string, q *queue.Queue, play PlaybackInfo, skip func() error) *Server {
	return &Server{version: version, queue: q, play: play, skip: skip}
}

// songView is the wire form of one queued song.
type songView struct {
	Title     string `json:"title"`
	Requester string `json:"requester"`
	Locator   string `json:"locator"`
	Ready     bool   `json:"ready"`
}

func viewOf(s queue.Song) songView {
	return songView{
		Title:     s.Title,
		Requester: s.Requester,
		Locator:   s.Locator,
		Ready:     s.FilePath != "",
	}
}

type queueStatusResult struct {
	Current *songView  `json:"current,omitempty"`
	Pending []songView `json:"pending"`
	Length  int        `json:"length"`
}

func (s *Server) queueStatus(_ context.Context, _ *sdk.CallToolRequest, _ struct{}) (*sdk.CallToolResult, queueStatusResult, error) {
	res := queueStatusResult{Pending: []songView{}}
	if cur, ok := s.queue.Current(); ok {
		v := viewOf(cur)
		res.Current = &v
	}
	for _, song := range s.queue.Snapshot() {
		res.Pending = append(res.Pending, viewOf(song))
	}
	res.Length = len(res.Pending)
	return nil, res, nil
}

type nowPlayingResult struct {
	Playing bool   `json:"playing"`
	Ducked  bool   `json:"ducked"`
	Title   string `json:"title,omitempty"`
	By      string `json:"by,omitempty"`
}

func (s *Server) nowPlaying(_ context.Context, _ *sdk.CallToolRequest, _ struct{}) (*sdk.CallToolResult, nowPlayingResult, error) {
	res := nowPlayingResult{
		Playing: s.play.Playing(),
		Ducked:  s.play.Ducking(),
	}
	if cur, ok := s.queue.Current(); ok {
		res.Title = cur.Title
		res.By = cur.Requester
	}
	return nil, res, nil
}

type skipResult struct {
	Skipped string `json:"skipped,omitempty"`
	Message string `json:"message"`
}

func (s *Server) skipTool(_ context.Context, _ *sdk.CallToolRequest, _ struct{}) (*sdk.CallToolResult, skipResult, error) {
	cur, ok := s.queue.Current()
	if !ok {
		return nil, skipResult{Message: "nothing is playing"}, nil
	}
	if s.skip == nil {
		return nil, skipResult{}, fmt.Errorf("mcp: skip is not wired")
	}
	if err := s.skip(); err != nil {
		return nil, skipResult{}, fmt.Errorf("mcp: skip: %w", err)
	}
	return nil, skipResult{Skipped: cur.Title, Message: "skipped"}, nil
}

// build assembles the SDK server with all tools registered.
func (s *Server) build() *sdk.Server {
	srv := sdk.NewServer(&sdk.Implementation{Name: "chantey", Version: s.version}, nil)
	sdk.AddTool(srv, &sdk.Tool{
		Name:        "queue_status",
		Description: "List the current song and the pending playback queue.",
	}, s.queueStatus)
	sdk.AddTool(srv, &sdk.Tool{
		Name:        "now_playing",
		Description: "Report whether audio is playing and which song it is.",
	}, s.nowPlaying)
	sdk.AddTool(srv, &sdk.Tool{
		Name:        "skip",
		Description: "Stop the current song and advance to the next ready one.",
	}, s.skipTool)
	return srv
}

// Handler returns the streamable HTTP handler for mounting on the admin mux.
func (s *Server) Handler() http.Handler {
	srv := s.build()
	return sdk.NewStreamableHTTPHandler(func(*http.Request) *sdk.Server { return srv }, nil)
}
