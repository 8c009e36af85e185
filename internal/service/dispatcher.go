package service

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/medkit/livefeed/internal/biz/domain"
	"github.com/medkit/livefeed/internal/metrics"
)

// ErrUnroutableKind is returned when registering a handler for an unrecognized kind
var ErrUnroutableKind = errors.New("cannot register handler for unrecognized event kind")

// EventHandler processes one decoded event. ctx is cancelled when the subscription that
// delivered ev is torn down. Returned errors are logged by the dispatcher.
type EventHandler func(ctx context.Context, ev domain.StreamEvent) error

type route struct {
	kind    domain.EventKind
	handler EventHandler
}

// Dispatcher routes stream events to the handler registered for their kind.
// A later registration for the same kind replaces the earlier one.
type Dispatcher struct {
	routes  *Registry[route]
	log     zerolog.Logger
	metrics *metrics.Metrics
	closed  atomic.Bool
}

// NewDispatcher creates a dispatcher with no handlers
func NewDispatcher(log zerolog.Logger, m *metrics.Metrics) *Dispatcher {
	d := &Dispatcher{
		routes:  NewRegistry[route](),
		log:     log,
		metrics: m,
	}
	d.routes.Observe(func(r route) {
		d.log.Debug().Str("kind", r.kind.String()).Msg("Handler registered")
	})
	return d
}

// Register installs h for kind
func (d *Dispatcher) Register(kind domain.EventKind, h EventHandler) error {
	if !kind.Known() {
		return ErrUnroutableKind
	}
	if h == nil {
		return fmt.Errorf("nil handler for %s", kind)
	}
	d.routes.Add(route{kind: kind, handler: h})
	return nil
}

// Handlers returns the number of registrations, replaced ones included
func (d *Dispatcher) Handlers() int {
	return d.routes.Len()
}

// Dispatch runs the handler for ev synchronously. It never panics or returns an error;
// unknown kinds and handler faults are logged and dropped.
func (d *Dispatcher) Dispatch(ctx context.Context, ev domain.StreamEvent) {
	if d.closed.Load() {
		return
	}

	label := ev.Kind.String()
	if !ev.Kind.Known() {
		d.log.Debug().Str("kind", ev.RawKind).Msg("Ignoring event with unrecognized kind")
		d.metrics.EventDispatched(label)
		return
	}

	r, ok := d.routes.FindLast(func(r route) bool { return r.kind == ev.Kind })
	if !ok {
		d.log.Debug().Str("kind", label).Msg("No handler registered")
		d.metrics.EventDispatched(label)
		return
	}

	d.metrics.EventDispatched(label)
	if err := d.invoke(ctx, r.handler, ev); err != nil {
		d.metrics.HandlerFault(label)
		d.log.Error().Err(err).Str("kind", label).Msg("Event handler failed")
	}
}

// Close stops routing; later Dispatch calls are no-ops
func (d *Dispatcher) Close() {
	d.closed.Store(true)
}

func (d *Dispatcher) invoke(ctx context.Context, h EventHandler, ev domain.StreamEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h(ctx, ev)
}
