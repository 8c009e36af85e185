package feed

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"github.com/rs/zerolog"

	"github.com/medkit/livefeed/internal/biz/domain"
	"github.com/medkit/livefeed/internal/biz/repo"
	"github.com/medkit/livefeed/internal/metrics"
)

// ErrStreamEnded is reported when the server closes the feed body
var ErrStreamEnded = errors.New("stream ended by server")

// Config contains feed transport configuration
type Config struct {
	URL         string
	Token       string
	EventMarker string
}

// Transport opens streaming requests against the feed endpoint
type Transport struct {
	cfg     Config
	client  *http.Client
	log     zerolog.Logger
	metrics *metrics.Metrics
}

// NewTransport creates a feed transport.
// The HTTP client has no timeout: the feed request is meant to be long-lived.
func NewTransport(cfg Config, log zerolog.Logger, m *metrics.Metrics) *Transport {
	return &Transport{
		cfg:     cfg,
		client:  &http.Client{},
		log:     log,
		metrics: m,
	}
}

// handle is one open subscription
type handle struct {
	ctx    context.Context
	cancel context.CancelFunc

	// mu is held for the duration of every onEvent call so Close can wait it out
	mu     sync.Mutex
	closed bool
}

// Close aborts the request. After Close returns no further events are delivered.
// It must not be called from inside onEvent.
func (h *handle) Close() {
	h.cancel()
	h.mu.Lock()
	h.closed = true
	h.mu.Unlock()
}

// deliver runs fn unless the handle has been closed
func (h *handle) deliver(fn func()) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	fn()
	return true
}

// finish reports the terminal reason once, unless Close got there first
func (h *handle) finish(onClosed func(error), reason error) {
	h.mu.Lock()
	already := h.closed
	h.closed = true
	h.mu.Unlock()

	if already || h.ctx.Err() != nil {
		return
	}
	onClosed(reason)
}

// Open implements repo.FeedTransport
func (t *Transport) Open(since, subjectID string, cb repo.FeedCallbacks) repo.FeedHandle {
	ctx, cancel := context.WithCancel(context.Background())
	h := &handle{ctx: ctx, cancel: cancel}
	go t.run(h, since, subjectID, cb)
	return h
}

func (t *Transport) run(h *handle, since, subjectID string, cb repo.FeedCallbacks) {
	reason := t.stream(h, since, subjectID, cb)
	t.log.Debug().Err(reason).Msg("Feed read loop finished")
	if cb.OnClosed != nil {
		h.finish(cb.OnClosed, reason)
	}
}

func (t *Transport) stream(h *handle, since, subjectID string, cb repo.FeedCallbacks) error {
	feedURL, err := t.buildURL(since, subjectID)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(h.ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return fmt.Errorf("failed to build feed request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	if t.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+t.cfg.Token)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("feed request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("feed returned status %d", resp.StatusCode)
	}

	t.log.Info().Str("since", since).Msg("Feed stream open")
	if cb.OnOpen != nil && !h.deliver(cb.OnOpen) {
		return ErrStreamEnded
	}

	lr := newLineReader(t.cfg.EventMarker)
	lr.onMalformed = func(line []byte, err error) {
		t.metrics.MalformedLine()
		t.log.Warn().Err(err).Int("bytes", len(line)).Msg("Dropping malformed feed line")
	}

	err = lr.read(resp.Body, func(ev domain.StreamEvent) bool {
		return h.deliver(func() {
			if cb.OnEvent != nil {
				cb.OnEvent(ev)
			}
		})
	})
	if err != nil {
		return fmt.Errorf("feed read: %w", err)
	}
	return ErrStreamEnded
}

func (t *Transport) buildURL(since, subjectID string) (string, error) {
	u, err := url.Parse(t.cfg.URL)
	if err != nil {
		return "", fmt.Errorf("invalid feed url: %w", err)
	}
	q := u.Query()
	q.Set("since", since)
	q.Set("subject_id", subjectID)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
