package usecase

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/medkit/livefeed/internal/biz/domain"
	"github.com/medkit/livefeed/internal/metrics"
)

// DefaultNotificationCapacity bounds the notification list when no capacity is configured
const DefaultNotificationCapacity = 50

// NotificationDraft is the caller-supplied part of a notification
type NotificationDraft struct {
	Kind    string
	Title   string
	Message string
	Data    map[string]any

	// CreatedAt defaults to now when zero
	CreatedAt time.Time
}

// NotificationStore keeps a bounded, newest-first list of notifications.
// The unread count is always derived from the list.
type NotificationStore struct {
	capacity int
	metrics  *metrics.Metrics
	newID    func() string
	now      func() time.Time

	mu    sync.RWMutex
	items []domain.Notification
}

// NewNotificationStore creates a store holding at most capacity entries
func NewNotificationStore(capacity int, m *metrics.Metrics) *NotificationStore {
	if capacity <= 0 {
		capacity = DefaultNotificationCapacity
	}
	return &NotificationStore{
		capacity: capacity,
		metrics:  m,
		newID:    uuid.NewString,
		now:      time.Now,
	}
}

// Capacity returns the configured bound
func (s *NotificationStore) Capacity() int {
	return s.capacity
}

// Add prepends a new unread notification, evicting the oldest entries beyond capacity
func (s *NotificationStore) Add(d NotificationDraft) domain.Notification {
	n := domain.Notification{
		ID:        s.newID(),
		Kind:      d.Kind,
		Title:     d.Title,
		Message:   d.Message,
		CreatedAt: d.CreatedAt,
		Data:      d.Data,
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = s.now()
	}

	s.mu.Lock()
	items := make([]domain.Notification, 0, min(len(s.items)+1, s.capacity))
	items = append(items, n)
	items = append(items, s.items...)
	if len(items) > s.capacity {
		items = items[:s.capacity]
	}
	s.items = items
	s.publishLocked()
	s.mu.Unlock()
	return n
}

// MarkRead flags one notification as read; unknown ids are a no-op
func (s *NotificationStore) MarkRead(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.items {
		if s.items[i].ID == id {
			s.items[i].Read = true
			s.publishLocked()
			return true
		}
	}
	return false
}

// MarkAllRead flags every notification as read and returns how many changed
func (s *NotificationStore) MarkAllRead() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	changed := 0
	for i := range s.items {
		if !s.items[i].Read {
			s.items[i].Read = true
			changed++
		}
	}
	s.publishLocked()
	return changed
}

// Remove deletes one notification; unknown ids are a no-op
func (s *NotificationStore) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.items {
		if s.items[i].ID == id {
			s.items = append(s.items[:i:i], s.items[i+1:]...)
			s.publishLocked()
			return true
		}
	}
	return false
}

// Clear removes every notification
func (s *NotificationStore) Clear() {
	s.mu.Lock()
	s.items = nil
	s.publishLocked()
	s.mu.Unlock()
}

// UnreadCount returns the number of unread notifications
func (s *NotificationStore) UnreadCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.unreadLocked()
}

// Recent returns up to limit notifications, newest first. limit <= 0 returns all.
func (s *NotificationStore) Recent(limit int) []domain.Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 || limit > len(s.items) {
		limit = len(s.items)
	}
	out := make([]domain.Notification, limit)
	copy(out, s.items[:limit])
	return out
}

// All returns every notification, newest first
func (s *NotificationStore) All() []domain.Notification {
	return s.Recent(0)
}

// Len returns the number of stored notifications
func (s *NotificationStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

func (s *NotificationStore) unreadLocked() int {
	n := 0
	for _, item := range s.items {
		if !item.Read {
			n++
		}
	}
	return n
}

func (s *NotificationStore) publishLocked() {
	s.metrics.SetUnread(s.unreadLocked())
}
