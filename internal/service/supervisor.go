package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/medkit/livefeed/internal/biz/domain"
	"github.com/medkit/livefeed/internal/biz/repo"
	"github.com/medkit/livefeed/internal/metrics"
)

// DefaultRetryDelay is the fixed wait between a closed feed and the next attempt
const DefaultRetryDelay = 5 * time.Second

// stopper is the part of *time.Timer the supervisor needs
type stopper interface {
	Stop() bool
}

// SupervisorConfig configures the reconnection supervisor
type SupervisorConfig struct {
	SubjectID  string
	RetryDelay time.Duration
}

// subscription is one connection attempt. It is recorded before the transport
// is asked to open, so a concurrent Stop always finds it.
type subscription struct {
	gen    uint64
	cancel context.CancelFunc

	// ready is closed once handle is set
	ready  chan struct{}
	handle repo.FeedHandle
}

// close cancels the attempt's context and closes its handle once Open has returned.
// Handle.Close waits for an in-flight delivery, so no event reaches the sink afterwards.
func (sub *subscription) close() {
	sub.cancel()
	<-sub.ready
	sub.handle.Close()
}

// Supervisor keeps one feed subscription alive, reopening it after a fixed delay
// whenever it closes. Retries are unbounded.
type Supervisor struct {
	transport repo.FeedTransport
	sink      func(context.Context, domain.StreamEvent)
	since     func() string
	cfg       SupervisorConfig
	log       zerolog.Logger
	metrics   *metrics.Metrics

	afterFunc func(time.Duration, func()) stopper
	now       func() time.Time

	// gen changes on every Start, Stop and connection attempt;
	// callbacks carrying an older value are stale and ignored
	gen atomic.Uint64

	mu        sync.Mutex
	running   bool
	current   *subscription
	retry     stopper
	state     domain.ConnectionState
	observers []func(domain.ConnectionState)
}

// NewSupervisor creates a stopped supervisor. sink receives every event of the live
// subscription with a context cancelled when that subscription is torn down;
// since supplies the watermark for each new attempt.
func NewSupervisor(
	transport repo.FeedTransport,
	sink func(context.Context, domain.StreamEvent),
	since func() string,
	cfg SupervisorConfig,
	log zerolog.Logger,
	m *metrics.Metrics,
) *Supervisor {
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}
	if since == nil {
		since = func() string { return "" }
	}
	s := &Supervisor{
		transport: transport,
		sink:      sink,
		since:     since,
		cfg:       cfg,
		log:       log,
		metrics:   m,
		afterFunc: func(d time.Duration, f func()) stopper { return time.AfterFunc(d, f) },
		now:       time.Now,
	}
	s.state = domain.ConnectionState{Phase: domain.PhaseIdle, At: s.now()}
	m.SetPhase(domain.PhaseIdle)
	return s
}

// OnStateChange registers fn for every transition. Observers run synchronously
// under the supervisor lock and must not call back into the supervisor.
func (s *Supervisor) OnStateChange(fn func(domain.ConnectionState)) {
	s.mu.Lock()
	s.observers = append(s.observers, fn)
	s.mu.Unlock()
}

// State returns the current connection state
func (s *Supervisor) State() domain.ConnectionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start opens the feed. Calling Start while running replaces the current subscription.
func (s *Supervisor) Start() {
	s.mu.Lock()
	old := s.detachLocked()
	s.running = true
	gen := s.gen.Add(1)
	s.mu.Unlock()

	if old != nil {
		old.close()
	}
	s.log.Info().Str("subject", s.cfg.SubjectID).Dur("retry_delay", s.cfg.RetryDelay).Msg("Supervisor started")
	s.connect(gen)
}

// Stop closes the feed and cancels any pending retry. Idempotent.
// No event reaches the sink after Stop returns, and a sink call in progress
// sees its context cancelled.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.gen.Add(1)
	old := s.detachLocked()
	s.setStateLocked(domain.ConnectionState{Phase: domain.PhaseIdle})
	s.mu.Unlock()

	if old != nil {
		old.close()
	}
	s.log.Info().Msg("Supervisor stopped")
}

// detachLocked cancels the retry timer and hands back the current subscription
// for closing outside the lock
func (s *Supervisor) detachLocked() *subscription {
	if s.retry != nil {
		s.retry.Stop()
		s.retry = nil
	}
	sub := s.current
	s.current = nil
	return sub
}

// connect opens a new subscription if expected is still the current generation
func (s *Supervisor) connect(expected uint64) {
	s.mu.Lock()
	if !s.running || s.gen.Load() != expected {
		s.mu.Unlock()
		return
	}
	s.retry = nil
	gen := s.gen.Add(1)
	ctx, cancel := context.WithCancel(context.Background())
	sub := &subscription{gen: gen, cancel: cancel, ready: make(chan struct{})}
	s.current = sub
	s.setStateLocked(domain.ConnectionState{Phase: domain.PhaseConnecting})
	s.mu.Unlock()

	since := s.since()
	sub.handle = s.transport.Open(since, s.cfg.SubjectID, repo.FeedCallbacks{
		OnOpen: func() { s.opened(gen) },
		OnEvent: func(ev domain.StreamEvent) {
			if s.gen.Load() == gen {
				s.sink(ctx, ev)
			}
		},
		OnClosed: func(reason error) { s.closed(gen, reason) },
	})
	close(sub.ready)
	s.log.Debug().Str("since", since).Msg("Feed subscription opened")
}

func (s *Supervisor) opened(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running || s.gen.Load() != gen {
		return
	}
	s.setStateLocked(domain.ConnectionState{Phase: domain.PhaseOpen})
}

func (s *Supervisor) closed(gen uint64, reason error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running || s.gen.Load() != gen {
		return
	}
	if s.current != nil && s.current.gen == gen {
		s.current.cancel()
		s.current = nil
	}

	if reason == nil {
		reason = errors.New("stream closed")
	}
	s.setStateLocked(domain.ConnectionState{Phase: domain.PhaseClosed, Reason: reason.Error()})
	s.log.Warn().Err(reason).Dur("retry_in", s.cfg.RetryDelay).Msg("Feed closed, scheduling reconnect")

	s.metrics.Reconnect()
	s.setStateLocked(domain.ConnectionState{Phase: domain.PhaseReconnecting, RetryAfter: s.cfg.RetryDelay})
	s.retry = s.afterFunc(s.cfg.RetryDelay, func() { s.connect(gen) })
}

func (s *Supervisor) setStateLocked(st domain.ConnectionState) {
	st.At = s.now()
	s.state = st
	s.metrics.SetPhase(st.Phase)
	s.log.Debug().Str("state", st.String()).Msg("Connection state changed")
	for _, fn := range s.observers {
		fn(st)
	}
}
