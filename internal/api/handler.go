package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/medkit/livefeed/internal/biz/domain"
	"github.com/medkit/livefeed/internal/biz/usecase"
)

// ConversationReader reads the conversation store
type ConversationReader interface {
	List() []domain.Conversation
	Get(id domain.ConversationID) (domain.Conversation, bool)
	Selected() (domain.ConversationID, bool)
}

// ConversationActions performs user-facing conversation operations
type ConversationActions interface {
	Select(ctx context.Context, id domain.ConversationID) error
	SendMessage(ctx context.Context, id domain.ConversationID, text string) error
	Refresh(ctx context.Context) error
	CreateConversation(ctx context.Context, name string, participantIDs []string, ai bool) (domain.ConversationID, error)
}

// NotificationList is the notification store surface
type NotificationList interface {
	Recent(limit int) []domain.Notification
	MarkRead(id string) bool
	MarkAllRead() int
	Remove(id string) bool
	Clear()
	UnreadCount() int
}

// FeedStatus reports the live connection state
type FeedStatus interface {
	State() domain.ConnectionState
}

// Deps are the collaborators the API serves
type Deps struct {
	Conversations ConversationReader
	Actions       ConversationActions
	Notifications NotificationList
	Feed          FeedStatus
	Metrics       http.Handler
}

// Server provides a local HTTP API for inspecting and driving the live feed state
type Server struct {
	deps   Deps
	log    zerolog.Logger
	server *http.Server
	port   int
}

// NewServer creates a new API server
func NewServer(deps Deps, port int, log zerolog.Logger) *Server {
	return &Server{
		deps: deps,
		log:  log,
		port: port,
	}
}

// Handler builds the request router
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Conversations
	mux.HandleFunc("/api/conversations", s.handleConversations)
	mux.HandleFunc("/api/conversations/refresh", s.handleRefresh)
	mux.HandleFunc("/api/conversations/", s.handleConversationItem)

	// Notifications
	mux.HandleFunc("/api/notifications", s.handleNotifications)
	mux.HandleFunc("/api/notifications/read-all", s.handleReadAll)
	mux.HandleFunc("/api/notifications/", s.handleNotificationItem)

	// Feed
	mux.HandleFunc("/api/feed/state", s.handleFeedState)

	if s.deps.Metrics != nil {
		mux.Handle("/metrics", s.deps.Metrics)
	}

	// Health check
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	return mux
}

// Start starts the HTTP server and blocks until it stops
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:    fmt.Sprintf("127.0.0.1:%d", s.port),
		Handler: s.Handler(),
	}

	s.log.Info().Int("port", s.port).Msg("Starting HTTP server")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// ============ Conversation Handlers ============

func (s *Server) handleConversations(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		selected, _ := s.deps.Conversations.Selected()
		s.writeJSON(w, map[string]interface{}{
			"conversations": summarize(s.deps.Conversations.List()),
			"selected":      selected,
		})

	case http.MethodPost:
		var req struct {
			Name           string   `json:"name"`
			ParticipantIDs []string `json:"participant_ids"`
			AI             bool     `json:"ai"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if !req.AI && len(req.ParticipantIDs) == 0 {
			http.Error(w, "participant_ids is required", http.StatusBadRequest)
			return
		}
		id, err := s.deps.Actions.CreateConversation(r.Context(), req.Name, req.ParticipantIDs, req.AI)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, map[string]interface{}{"id": id})

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := s.deps.Actions.Refresh(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, map[string]interface{}{"success": true, "count": len(s.deps.Conversations.List())})
}

func (s *Server) handleConversationItem(w http.ResponseWriter, r *http.Request) {
	// Parse path: /api/conversations/{id}[/select|/messages]
	path := strings.TrimPrefix(r.URL.Path, "/api/conversations/")
	parts := strings.Split(path, "/")
	id := domain.ConversationID(parts[0])
	if id == "" {
		http.Error(w, "conversation id is required", http.StatusBadRequest)
		return
	}

	action := ""
	if len(parts) > 1 {
		action = parts[1]
	}

	switch action {
	case "":
		s.handleConversationGet(w, r, id)
	case "select":
		s.handleSelect(w, r, id)
	case "messages":
		s.handleSendMessage(w, r, id)
	default:
		http.Error(w, "unknown action", http.StatusNotFound)
	}
}

func (s *Server) handleConversationGet(w http.ResponseWriter, r *http.Request, id domain.ConversationID) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	conv, ok := s.deps.Conversations.Get(id)
	if !ok {
		http.Error(w, "conversation not found", http.StatusNotFound)
		return
	}
	s.writeJSON(w, conv)
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request, id domain.ConversationID) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := s.deps.Actions.Select(r.Context(), id); err != nil {
		// Selection stands even when the history fetch fails
		s.log.Warn().Err(err).Str("conversation", string(id)).Msg("History fetch after select failed")
	}
	s.writeJSON(w, map[string]interface{}{"success": true, "selected": id})
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request, id domain.ConversationID) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		http.Error(w, "text is required", http.StatusBadRequest)
		return
	}

	if err := s.deps.Actions.SendMessage(r.Context(), id, req.Text); err != nil {
		if errors.Is(err, usecase.ErrConversationNotFound) {
			http.Error(w, "conversation not found", http.StatusNotFound)
			return
		}
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, map[string]interface{}{"success": true})
}

// ============ Notification Handlers ============

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		limit := 20
		if l := r.URL.Query().Get("limit"); l != "" {
			if parsed, err := strconv.Atoi(l); err == nil {
				limit = parsed
			}
		}
		s.writeJSON(w, map[string]interface{}{
			"notifications": s.deps.Notifications.Recent(limit),
			"unread":        s.deps.Notifications.UnreadCount(),
		})

	case http.MethodDelete:
		s.deps.Notifications.Clear()
		s.writeJSON(w, map[string]interface{}{"success": true})

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleReadAll(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	changed := s.deps.Notifications.MarkAllRead()
	s.writeJSON(w, map[string]interface{}{"success": true, "changed": changed})
}

func (s *Server) handleNotificationItem(w http.ResponseWriter, r *http.Request) {
	// Parse path: /api/notifications/{id}[/read]
	path := strings.TrimPrefix(r.URL.Path, "/api/notifications/")
	parts := strings.Split(path, "/")
	id := parts[0]
	if id == "" {
		http.Error(w, "notification id is required", http.StatusBadRequest)
		return
	}

	switch {
	case len(parts) == 2 && parts[1] == "read" && r.Method == http.MethodPost:
		s.writeJSON(w, map[string]interface{}{"success": s.deps.Notifications.MarkRead(id)})
	case len(parts) == 1 && r.Method == http.MethodDelete:
		s.writeJSON(w, map[string]interface{}{"success": s.deps.Notifications.Remove(id)})
	case len(parts) > 2 || (len(parts) == 2 && parts[1] != "read"):
		http.Error(w, "unknown action", http.StatusNotFound)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// ============ Feed Handlers ============

func (s *Server) handleFeedState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	st := s.deps.Feed.State()
	s.writeJSON(w, map[string]interface{}{
		"phase":       st.Phase,
		"description": st.String(),
		"reason":      st.Reason,
		"retry_ms":    st.RetryAfter.Milliseconds(),
		"since":       st.At,
	})
}

// ConversationSummary is the list view of a conversation
type ConversationSummary struct {
	ID                 domain.ConversationID `json:"id"`
	Name               string                `json:"name"`
	LastMessagePreview string                `json:"lastMessagePreview"`
	AvatarRef          string                `json:"avatarRef"`
	MessageCount       int                   `json:"messageCount"`
	IsAIConversation   bool                  `json:"isAIConversation"`
}

func summarize(convs []domain.Conversation) []ConversationSummary {
	result := make([]ConversationSummary, len(convs))
	for i, c := range convs {
		result[i] = ConversationSummary{
			ID:                 c.ID,
			Name:               c.Name,
			LastMessagePreview: c.LastMessagePreview,
			AvatarRef:          c.AvatarRef,
			MessageCount:       len(c.Messages),
			IsAIConversation:   c.IsAIConversation,
		}
	}
	return result
}

func (s *Server) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
