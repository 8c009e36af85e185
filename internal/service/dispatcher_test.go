package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"

	"github.com/medkit/livefeed/internal/biz/domain"
	"github.com/medkit/livefeed/internal/metrics"
)

func event(raw string, payload map[string]any) domain.StreamEvent {
	if payload == nil {
		payload = map[string]any{}
	}
	payload["type"] = raw
	return domain.StreamEvent{
		Kind:       domain.ParseEventKind(raw),
		RawKind:    raw,
		Payload:    payload,
		ReceivedAt: time.Now(),
	}
}

func TestDispatcher_RoutesByKind(t *testing.T) {
	d := NewDispatcher(zerolog.Nop(), nil)
	var got []string
	d.Register(domain.EventKindNewMessage, func(ctx context.Context, ev domain.StreamEvent) error {
		got = append(got, "message:"+ev.StringField("text"))
		return nil
	})
	d.Register(domain.EventKindSystemNotification, func(ctx context.Context, ev domain.StreamEvent) error {
		got = append(got, "system")
		return nil
	})

	d.Dispatch(context.Background(), event("new_message", map[string]any{"text": "hi"}))
	d.Dispatch(context.Background(), event("system_notification", nil))
	d.Dispatch(context.Background(), event("appointment_reminder", nil))

	if len(got) != 2 || got[0] != "message:hi" || got[1] != "system" {
		t.Errorf("Expected [message:hi system], got %v", got)
	}
}

func TestDispatcher_LaterRegistrationWins(t *testing.T) {
	d := NewDispatcher(zerolog.Nop(), nil)
	calls := ""
	d.Register(domain.EventKindNewMessage, func(context.Context, domain.StreamEvent) error { calls += "first"; return nil })
	d.Register(domain.EventKindNewMessage, func(context.Context, domain.StreamEvent) error { calls += "second"; return nil })

	d.Dispatch(context.Background(), event("new_message", nil))

	if calls != "second" {
		t.Errorf("Expected only second handler, got %q", calls)
	}
	if d.Handlers() != 2 {
		t.Errorf("Expected registry to keep both entries, got %d", d.Handlers())
	}
}

func TestDispatcher_UnknownKindIsIgnored(t *testing.T) {
	m := metrics.New()
	d := NewDispatcher(zerolog.Nop(), m)
	called := false
	d.Register(domain.EventKindNewMessage, func(context.Context, domain.StreamEvent) error { called = true; return nil })

	d.Dispatch(context.Background(), event("lab_result_ready", nil))

	if called {
		t.Error("Expected no handler for unknown kind")
	}
	if got := testutil.ToFloat64(m.EventsTotal.WithLabelValues("unrecognized")); got != 1 {
		t.Errorf("Expected unrecognized counter 1, got %v", got)
	}
}

func TestDispatcher_RegisterRejectsUnrecognized(t *testing.T) {
	d := NewDispatcher(zerolog.Nop(), nil)

	err := d.Register(domain.EventKindUnrecognized, func(context.Context, domain.StreamEvent) error { return nil })
	if !errors.Is(err, ErrUnroutableKind) {
		t.Errorf("Expected ErrUnroutableKind, got %v", err)
	}
	if err := d.Register(domain.EventKindNewMessage, nil); err == nil {
		t.Error("Expected error for nil handler")
	}
}

func TestDispatcher_HandlerFaultsAreContained(t *testing.T) {
	m := metrics.New()
	d := NewDispatcher(zerolog.Nop(), m)
	d.Register(domain.EventKindNewMessage, func(context.Context, domain.StreamEvent) error { panic("boom") })
	d.Register(domain.EventKindSystemNotification, func(context.Context, domain.StreamEvent) error { return errors.New("bad payload") })

	d.Dispatch(context.Background(), event("new_message", nil))
	d.Dispatch(context.Background(), event("system_notification", nil))

	if got := testutil.ToFloat64(m.HandlerFaultsTotal.WithLabelValues("new_message")); got != 1 {
		t.Errorf("Expected 1 new_message fault, got %v", got)
	}
	if got := testutil.ToFloat64(m.HandlerFaultsTotal.WithLabelValues("system_notification")); got != 1 {
		t.Errorf("Expected 1 system_notification fault, got %v", got)
	}
}

func TestDispatcher_CloseStopsRouting(t *testing.T) {
	d := NewDispatcher(zerolog.Nop(), nil)
	calls := 0
	d.Register(domain.EventKindNewMessage, func(context.Context, domain.StreamEvent) error { calls++; return nil })

	d.Dispatch(context.Background(), event("new_message", nil))
	d.Close()
	d.Dispatch(context.Background(), event("new_message", nil))

	if calls != 1 {
		t.Errorf("Expected 1 call before close, got %d", calls)
	}
}
