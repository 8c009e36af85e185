package mcp

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestClient_ListConversations(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/conversations" || r.Method != http.MethodGet {
			t.Errorf("Unexpected request %s %s", r.Method, r.URL.Path)
		}
		w.Write([]byte(`{"conversations":[{"id":"42","name":"Bob","messageCount":3}],"selected":"42"}`))
	}))
	defer srv.Close()

	convs, selected, err := NewClient(srv.URL).ListConversations(context.Background())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(convs) != 1 || convs[0].MessageCount != 3 || selected != "42" {
		t.Errorf("Unexpected result: %+v selected=%q", convs, selected)
	}
}

func TestClient_SendMessage(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/conversations/7/messages" || r.Method != http.MethodPost {
			t.Errorf("Unexpected request %s %s", r.Method, r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &got)
		w.Write([]byte(`{"success":true}`))
	}))
	defer srv.Close()

	if err := NewClient(srv.URL).SendMessage(context.Background(), "7", "hello"); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if got["text"] != "hello" {
		t.Errorf("Expected text hello, got %v", got)
	}
}

func TestClient_Notifications(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/api/notifications":
			if r.URL.Query().Get("limit") != "5" {
				t.Errorf("Expected limit 5, got %s", r.URL.Query().Get("limit"))
			}
			w.Write([]byte(`{"notifications":[{"id":"n-1","kind":"new_message","createdAt":"2024-05-01T10:00:00Z"}],"unread":1}`))
		case r.URL.Path == "/api/notifications/n-1/read":
			w.Write([]byte(`{"success":true}`))
		case r.URL.Path == "/api/notifications/read-all":
			w.Write([]byte(`{"success":true,"changed":2}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()
	c := NewClient(srv.URL)
	ctx := context.Background()

	notes, unread, err := c.ListNotifications(ctx, 5)
	if err != nil || len(notes) != 1 || unread != 1 {
		t.Fatalf("Unexpected result: %+v unread=%d err=%v", notes, unread, err)
	}
	if ok, err := c.MarkNotificationRead(ctx, "n-1"); err != nil || !ok {
		t.Errorf("Expected read ok, got %v %v", ok, err)
	}
	if n, err := c.MarkAllNotificationsRead(ctx); err != nil || n != 2 {
		t.Errorf("Expected 2 changed, got %d %v", n, err)
	}
}

func TestClient_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "conversation not found", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).GetConversation(context.Background(), "404")
	if err == nil || !strings.Contains(err.Error(), "HTTP 404") {
		t.Errorf("Expected HTTP 404 error, got %v", err)
	}
}
