package service

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/medkit/livefeed/internal/biz/domain"
)

// NotificationTemplate holds the text/template sources for one event kind.
// Templates execute against the event payload map; missing fields are nil.
type NotificationTemplate struct {
	Title   string
	Message string
}

// DefaultNotificationTemplates are used for kinds without a configured template
var DefaultNotificationTemplates = map[string]NotificationTemplate{
	"new_message": {
		Title:   `New message from {{or .sender "unknown"}}`,
		Message: `{{with .text}}{{.}}{{end}}`,
	},
	"appointment_reminder": {
		Title:   `{{or .title "Appointment reminder"}}`,
		Message: `{{or .message .text ""}}`,
	},
	"system_notification": {
		Title:   `{{or .title "System notification"}}`,
		Message: `{{or .message .text ""}}`,
	},
}

type compiledTemplate struct {
	title   *template.Template
	message *template.Template
}

// Notifier renders notification titles and bodies from event payloads
type Notifier struct {
	templates map[string]compiledTemplate
}

// NewNotifier compiles templates, falling back to the defaults per kind.
// Fields left empty in an override keep the default for that field.
func NewNotifier(overrides map[string]NotificationTemplate) (*Notifier, error) {
	n := &Notifier{templates: make(map[string]compiledTemplate)}

	for kind, def := range DefaultNotificationTemplates {
		src := def
		if o, ok := overrides[kind]; ok {
			if strings.TrimSpace(o.Title) != "" {
				src.Title = o.Title
			}
			if strings.TrimSpace(o.Message) != "" {
				src.Message = o.Message
			}
		}

		title, err := template.New(kind + ".title").Option("missingkey=zero").Parse(src.Title)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s title template: %w", kind, err)
		}
		message, err := template.New(kind + ".message").Option("missingkey=zero").Parse(src.Message)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s message template: %w", kind, err)
		}
		n.templates[kind] = compiledTemplate{title: title, message: message}
	}

	for kind := range overrides {
		if _, ok := DefaultNotificationTemplates[kind]; !ok {
			return nil, fmt.Errorf("notification template for unknown kind %q", kind)
		}
	}
	return n, nil
}

// Render produces the title and message for ev. Execution errors fall back to the raw kind.
func (n *Notifier) Render(ev domain.StreamEvent) (string, string) {
	kind := ev.Kind.String()
	t, ok := n.templates[kind]
	if !ok {
		return kind, ""
	}
	return execute(t.title, ev.Payload, kind), execute(t.message, ev.Payload, "")
}

func execute(t *template.Template, data map[string]any, fallback string) string {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return fallback
	}
	return strings.TrimSpace(buf.String())
}
