package domain

import "time"

// Notification is a user-facing entry derived from a live event
type Notification struct {
	ID        string         `json:"id"`
	Kind      string         `json:"kind"`
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	CreatedAt time.Time      `json:"createdAt"`
	Read      bool           `json:"read"`
	Data      map[string]any `json:"data,omitempty"`
}
