package service

import (
	"testing"
)

func TestNotifier_Defaults(t *testing.T) {
	n, err := NewNotifier(nil)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	title, message := n.Render(event("new_message", nil))
	if title != "New message from unknown" || message != "" {
		t.Errorf("Expected fallbacks for empty payload, got %q / %q", title, message)
	}

	title, _ = n.Render(event("lab_result_ready", nil))
	if title != "unrecognized" {
		t.Errorf("Expected kind name for untemplated kind, got %q", title)
	}
}

func TestNotifier_Overrides(t *testing.T) {
	n, err := NewNotifier(map[string]NotificationTemplate{
		"appointment_reminder": {Title: "Visit with {{.doctor}}"},
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	title, message := n.Render(event("appointment_reminder", map[string]any{"doctor": "Dr. Lee", "message": "Room 4"}))
	if title != "Visit with Dr. Lee" {
		t.Errorf("Expected override title, got %q", title)
	}
	if message != "Room 4" {
		t.Errorf("Expected default message kept, got %q", message)
	}
}

func TestNotifier_RejectsBadTemplates(t *testing.T) {
	if _, err := NewNotifier(map[string]NotificationTemplate{"new_message": {Title: "{{.sender"}}); err == nil {
		t.Error("Expected parse error")
	}
	if _, err := NewNotifier(map[string]NotificationTemplate{"billing": {Title: "x"}}); err == nil {
		t.Error("Expected error for unknown kind")
	}
}
