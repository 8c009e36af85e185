package usecase

import (
	"fmt"
	"testing"
)

func TestNotificationStore_AddNewestFirst(t *testing.T) {
	s := NewNotificationStore(10, nil)

	s.Add(NotificationDraft{Kind: "new_message", Title: "first"})
	s.Add(NotificationDraft{Kind: "new_message", Title: "second"})

	items := s.Recent(0)
	if len(items) != 2 {
		t.Fatalf("Expected 2 notifications, got %d", len(items))
	}
	if items[0].Title != "second" || items[1].Title != "first" {
		t.Errorf("Expected newest first, got %q, %q", items[0].Title, items[1].Title)
	}
	if items[0].Read || items[0].ID == "" || items[0].CreatedAt.IsZero() {
		t.Errorf("Expected unread with id and timestamp, got %+v", items[0])
	}
	if items[0].ID == items[1].ID {
		t.Error("Expected unique ids")
	}
}

func TestNotificationStore_CapacityEvictsOldest(t *testing.T) {
	s := NewNotificationStore(0, nil)
	total := DefaultNotificationCapacity + 5

	for i := 0; i < total; i++ {
		s.Add(NotificationDraft{Title: fmt.Sprintf("n%d", i)})
	}

	if s.Len() != DefaultNotificationCapacity {
		t.Fatalf("Expected %d notifications, got %d", DefaultNotificationCapacity, s.Len())
	}
	items := s.Recent(0)
	if items[0].Title != fmt.Sprintf("n%d", total-1) {
		t.Errorf("Expected newest n%d first, got %s", total-1, items[0].Title)
	}
	if last := items[len(items)-1].Title; last != "n5" {
		t.Errorf("Expected oldest surviving n5, got %s", last)
	}
}

func TestNotificationStore_UnreadCountTracksMutations(t *testing.T) {
	s := NewNotificationStore(3, nil)

	check := func(step string, want int) {
		t.Helper()
		if got := s.UnreadCount(); got != want {
			t.Errorf("%s: expected unread %d, got %d", step, want, got)
		}
		manual := 0
		for _, n := range s.Recent(0) {
			if !n.Read {
				manual++
			}
		}
		if manual != s.UnreadCount() {
			t.Errorf("%s: derived count %d disagrees with list %d", step, s.UnreadCount(), manual)
		}
	}

	a := s.Add(NotificationDraft{Title: "a"})
	b := s.Add(NotificationDraft{Title: "b"})
	check("two added", 2)

	s.MarkRead(a.ID)
	check("a read", 1)

	s.MarkRead(a.ID)
	check("a read twice", 1)

	s.MarkRead("missing")
	check("unknown read", 1)

	s.Add(NotificationDraft{Title: "c"})
	s.Add(NotificationDraft{Title: "d"})
	check("a evicted", 3)

	s.Remove(b.ID)
	check("b removed", 2)

	if s.Remove("missing") {
		t.Error("Expected removing unknown id to report false")
	}

	if n := s.MarkAllRead(); n != 2 {
		t.Errorf("Expected 2 changed by mark all, got %d", n)
	}
	check("all read", 0)

	s.Add(NotificationDraft{Title: "e"})
	s.Clear()
	check("cleared", 0)
	if s.Len() != 0 {
		t.Errorf("Expected empty after clear, got %d", s.Len())
	}
}

func TestNotificationStore_RecentLimit(t *testing.T) {
	s := NewNotificationStore(10, nil)
	for i := 0; i < 5; i++ {
		s.Add(NotificationDraft{Title: fmt.Sprintf("n%d", i)})
	}

	items := s.Recent(2)
	if len(items) != 2 || items[0].Title != "n4" {
		t.Errorf("Expected two newest, got %+v", items)
	}
	items[0].Title = "mutated"
	if s.Recent(1)[0].Title != "n4" {
		t.Error("Expected Recent to return a copy")
	}
}
