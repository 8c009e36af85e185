package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/medkit/livefeed/internal/biz/domain"
	"github.com/medkit/livefeed/internal/biz/repo"
	"github.com/medkit/livefeed/internal/conf"
	"github.com/medkit/livefeed/internal/infra/feed"
	"github.com/medkit/livefeed/internal/logger"
)

// feed-tail opens one feed subscription and prints every decoded event as a JSON line.
// It does not reconnect; the exit status is 1 when the stream ends.
func main() {
	godotenv.Load()
	cfg := conf.LoadFromEnv()

	subject := cfg.Feed.SubjectID
	since := ""
	if len(os.Args) > 1 {
		subject = os.Args[1]
	}
	if len(os.Args) > 2 {
		since = os.Args[2]
	}
	if cfg.Feed.URL == "" || subject == "" {
		fmt.Println("Usage: feed-tail [subject_id] [since]  (FEED_URL must be set)")
		os.Exit(1)
	}

	root := logger.New(logger.Config{Level: cfg.Log.Level, Pretty: true, Output: os.Stderr})
	transport := feed.NewTransport(feed.Config{
		URL:         cfg.Feed.URL,
		Token:       cfg.Feed.Token,
		EventMarker: cfg.Feed.EventMarker,
	}, root, nil)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	done := make(chan error, 1)
	enc := json.NewEncoder(os.Stdout)
	h := transport.Open(since, subject, repo.FeedCallbacks{
		OnOpen: func() {
			fmt.Fprintf(os.Stderr, "=== connected (subject=%s since=%q) ===\n", subject, since)
		},
		OnEvent: func(ev domain.StreamEvent) {
			enc.Encode(map[string]interface{}{
				"kind":        ev.Kind.String(),
				"raw_kind":    ev.RawKind,
				"received_at": ev.ReceivedAt,
				"payload":     ev.Payload,
			})
		},
		OnClosed: func(reason error) {
			done <- reason
		},
	})
	defer h.Close()

	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "=== interrupted ===")
	case reason := <-done:
		fmt.Fprintf(os.Stderr, "=== stream closed: %v ===\n", reason)
		os.Exit(1)
	}
}
