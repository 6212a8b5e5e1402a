package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/analog-buddy/iotdash/internal/config"
	"github.com/analog-buddy/iotdash/internal/ingest"
	"github.com/analog-buddy/iotdash/internal/telemetry"
)

// telemetryMsg carries one validated message into the update loop.
type telemetryMsg struct {
	msg telemetry.Message
}

// feedClosedMsg reports that the feed stopped.
type feedClosedMsg struct {
	err error
}

// Feed follows a server's /api/v1/telemetry/ws stream. Messages are validated
// by an Ingestor and handed to the program through a channel.
type Feed struct {
	upstream *ingest.Upstream
	out      chan telemetry.Message
	done     chan error
}

// channelPublisher forwards accepted messages to the feed channel.
type channelPublisher struct {
	ctx context.Context
	out chan<- telemetry.Message
}

func (p channelPublisher) PublishMessage(msg telemetry.Message) {
	select {
	case p.out <- msg:
	case <-p.ctx.Done():
	}
}

// NewFeed prepares a feed for cfg.URL. Reconnects follow cfg's backoff.
func NewFeed(ctx context.Context, cfg config.UpstreamConfig, logger *zap.Logger) *Feed {
	out := make(chan telemetry.Message, 64)
	ing := ingest.New(channelPublisher{ctx: ctx, out: out}, nil, logger)
	return &Feed{
		upstream: ingest.NewUpstream(cfg, ing, logger),
		out:      out,
		done:     make(chan error, 1),
	}
}

// Run connects and relays until ctx is cancelled.
func (f *Feed) Run(ctx context.Context) {
	f.done <- f.upstream.Run(ctx)
	close(f.done)
}

// next waits for the next message or the end of the feed.
func (f *Feed) next() tea.Cmd {
	return func() tea.Msg {
		select {
		case msg := <-f.out:
			return telemetryMsg{msg: msg}
		case err := <-f.done:
			return feedClosedMsg{err: err}
		}
	}
}
