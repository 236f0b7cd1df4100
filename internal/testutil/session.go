package testutil

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/roach88/simctl/internal/message"
	"github.com/roach88/simctl/internal/session"
)

// DiscardLogger returns a logger that drops everything.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// NewSession starts a session and closes it when the test ends.
func NewSession(t *testing.T, cfg session.Config) *session.Session {
	t.Helper()
	if cfg.Logger == nil {
		cfg.Logger = DiscardLogger()
	}
	s := session.New(cfg)
	s.Start(context.Background())
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// Drain returns every message currently queued, in order, without blocking.
func Drain(q *message.Queue) []string {
	var out []string
	for {
		msg, ok := q.TryGet()
		if !ok {
			return out
		}
		out = append(out, string(msg))
	}
}

// NextMessage waits up to a second for the next queued message.
func NextMessage(t *testing.T, q *message.Queue) string {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	msg, err := q.Get(ctx)
	if err != nil {
		t.Fatalf("no message on send queue: %v", err)
	}
	return string(msg)
}
