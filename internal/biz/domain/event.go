package domain

import (
	"encoding/json"
	"time"
)

// EventKind is the closed set of feed event kinds the client understands.
// Anything else decodes to EventKindUnrecognized with the raw string kept on the event.
type EventKind int

const (
	EventKindUnrecognized EventKind = iota
	EventKindNewMessage
	EventKindAppointmentReminder
	EventKindSystemNotification
)

var eventKindNames = map[EventKind]string{
	EventKindNewMessage:          "new_message",
	EventKindAppointmentReminder: "appointment_reminder",
	EventKindSystemNotification:  "system_notification",
}

// ParseEventKind maps the server's "type" field onto a kind
func ParseEventKind(raw string) EventKind {
	for k, name := range eventKindNames {
		if name == raw {
			return k
		}
	}
	return EventKindUnrecognized
}

// String returns the wire name, or "unrecognized"
func (k EventKind) String() string {
	if name, ok := eventKindNames[k]; ok {
		return name
	}
	return "unrecognized"
}

// Known reports whether the kind is one of the recognised variants
func (k EventKind) Known() bool {
	_, ok := eventKindNames[k]
	return ok
}

// StreamEvent is one decoded record of the feed
type StreamEvent struct {
	Kind       EventKind
	RawKind    string
	Payload    map[string]any
	ReceivedAt time.Time
}

// DecodeStreamEvent parses a feed JSON document of the form {"type": "...", ...fields}
func DecodeStreamEvent(doc []byte, receivedAt time.Time) (StreamEvent, error) {
	var payload map[string]any
	if err := json.Unmarshal(doc, &payload); err != nil {
		return StreamEvent{}, err
	}
	raw, _ := payload["type"].(string)
	return StreamEvent{
		Kind:       ParseEventKind(raw),
		RawKind:    raw,
		Payload:    payload,
		ReceivedAt: receivedAt,
	}, nil
}

// StringField reads a string field from the payload, or "" when absent
func (e StreamEvent) StringField(name string) string {
	s, _ := e.Payload[name].(string)
	return s
}
