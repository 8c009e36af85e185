package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/medkit/livefeed/internal/biz/domain"
	"github.com/medkit/livefeed/internal/biz/repo"
	"github.com/medkit/livefeed/internal/biz/usecase"
)

// SenderSelf marks messages written by the local user
const SenderSelf = "me"

// FeedService applies live events to the conversation and notification stores
// and exposes the user-facing conversation operations.
type FeedService struct {
	dispatcher *Dispatcher
	convs      *usecase.ConversationStore
	notifs     *usecase.NotificationStore
	chat       repo.ChatRepo
	notifier   *Notifier
	log        zerolog.Logger

	mu        sync.RWMutex
	watermark string
}

// NewFeedService registers the event handlers on d
func NewFeedService(
	d *Dispatcher,
	convs *usecase.ConversationStore,
	notifs *usecase.NotificationStore,
	chat repo.ChatRepo,
	notifier *Notifier,
	log zerolog.Logger,
) (*FeedService, error) {
	s := &FeedService{
		dispatcher: d,
		convs:      convs,
		notifs:     notifs,
		chat:       chat,
		notifier:   notifier,
		log:        log,
	}

	handlers := map[domain.EventKind]EventHandler{
		domain.EventKindNewMessage:          s.handleNewMessage,
		domain.EventKindAppointmentReminder: s.handleNotification,
		domain.EventKindSystemNotification:  s.handleNotification,
	}
	for kind, h := range handlers {
		if err := d.Register(kind, h); err != nil {
			return nil, fmt.Errorf("failed to register %s handler: %w", kind, err)
		}
	}
	return s, nil
}

// HandleEvent dispatches ev and advances the watermark. It is the supervisor's sink;
// ctx ends with the subscription that delivered ev.
func (s *FeedService) HandleEvent(ctx context.Context, ev domain.StreamEvent) {
	s.dispatcher.Dispatch(ctx, ev)

	mark := ev.StringField("timestamp")
	if mark == "" {
		mark = ev.ReceivedAt.UTC().Format(time.RFC3339Nano)
	}
	s.mu.Lock()
	s.watermark = mark
	s.mu.Unlock()
}

// Watermark returns the since value for the next subscription
func (s *FeedService) Watermark() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.watermark
}

// Close stops event routing
func (s *FeedService) Close() {
	s.dispatcher.Close()
}

func (s *FeedService) handleNewMessage(ctx context.Context, ev domain.StreamEvent) error {
	id, ok := domain.ParseConversationID(ev.Payload["conversation_id"])
	if !ok {
		return errors.New("new_message without conversation_id")
	}
	msg := domain.ChatMessage{
		Sender:    ev.StringField("sender"),
		Text:      ev.StringField("text"),
		ToolsUsed: stringList(ev.Payload["tools_used"]),
	}

	// Store writes outlive the subscription; only the refetch is cut short by teardown
	storeCtx := context.WithoutCancel(ctx)
	if !s.convs.ApplyNewMessage(storeCtx, id, msg) {
		s.log.Debug().Str("conversation", string(id)).Msg("Message for conversation not loaded")
	}
	s.addNotification(ev)

	if s.convs.IsSelected(id) && ctx.Err() == nil {
		if err := s.refetch(ctx, storeCtx, id); err != nil {
			s.log.Warn().Err(err).Str("conversation", string(id)).Msg("Failed to refetch selected conversation")
		}
	}
	return nil
}

func (s *FeedService) handleNotification(ctx context.Context, ev domain.StreamEvent) error {
	s.addNotification(ev)
	return nil
}

func (s *FeedService) addNotification(ev domain.StreamEvent) {
	title, message := s.notifier.Render(ev)
	s.notifs.Add(usecase.NotificationDraft{
		Kind:    ev.Kind.String(),
		Title:   title,
		Message: message,
		Data:    ev.Payload,
	})
}

// refetch replaces a conversation's history with the server's canonical copy.
// ctx bounds the REST call; storeCtx is used for the store write.
func (s *FeedService) refetch(ctx, storeCtx context.Context, id domain.ConversationID) error {
	conv, ok := s.convs.Get(id)
	if !ok {
		return nil
	}

	var history []domain.ChatMessage
	var err error
	if conv.IsAIConversation {
		history, err = s.chat.GetAssistantHistory(ctx, string(id))
	} else {
		history, err = s.chat.GetMessages(ctx, id)
	}
	if err != nil {
		return fmt.Errorf("failed to get messages: %w", err)
	}
	s.convs.AdoptHistory(storeCtx, id, history)
	return nil
}

// Refresh pulls the conversation list from the server and merges it
func (s *FeedService) Refresh(ctx context.Context) error {
	list, err := s.chat.ListConversations(ctx)
	if err != nil {
		return fmt.Errorf("failed to list conversations: %w", err)
	}
	s.convs.MergeFromServer(ctx, list)
	s.log.Debug().Int("conversations", len(list)).Msg("Conversations refreshed")
	return nil
}

// Select marks a conversation as viewed and loads its canonical history
func (s *FeedService) Select(ctx context.Context, id domain.ConversationID) error {
	s.convs.Select(ctx, id)
	if id == "" {
		return nil
	}
	return s.refetch(ctx, ctx, id)
}

// SendMessage posts text to a conversation. AI sessions get the user's message
// and the assistant's reply appended locally; user conversations adopt the
// server history after the post.
func (s *FeedService) SendMessage(ctx context.Context, id domain.ConversationID, text string) error {
	conv, ok := s.convs.Get(id)
	if !ok {
		return usecase.ErrConversationNotFound
	}

	if conv.IsAIConversation {
		s.convs.ApplyNewMessage(ctx, id, domain.ChatMessage{Sender: SenderSelf, Text: text})
		reply, err := s.chat.SendAssistantMessage(ctx, string(id), text)
		if err != nil {
			return fmt.Errorf("failed to send assistant message: %w", err)
		}
		s.convs.ApplyNewMessage(ctx, id, *reply)
		return nil
	}

	if err := s.chat.SendMessage(ctx, id, text); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	if err := s.refetch(ctx, ctx, id); err != nil {
		// The post succeeded; show it locally until the next refetch
		s.log.Warn().Err(err).Str("conversation", string(id)).Msg("Failed to refetch after send")
		s.convs.ApplyNewMessage(ctx, id, domain.ChatMessage{Sender: SenderSelf, Text: text})
	}
	return nil
}

// CreateConversation starts an AI session locally, or creates a direct
// conversation on the server and stores it under the server's id.
func (s *FeedService) CreateConversation(ctx context.Context, name string, participantIDs []string, ai bool) (domain.ConversationID, error) {
	if ai {
		return s.convs.CreateConversation(ctx, domain.ConversationSpec{Name: name, IsAI: true})
	}
	if len(participantIDs) == 0 {
		return "", errors.New("direct conversation needs at least one participant")
	}

	created, err := s.chat.CreateConversation(ctx, participantIDs, repo.ConversationKindDirect)
	if err != nil {
		return "", fmt.Errorf("failed to create conversation: %w", err)
	}
	spec := domain.ConversationSpec{
		ID:            created.ID,
		Name:          created.Name,
		AvatarRef:     created.AvatarRef,
		ParticipantID: created.ParticipantID,
	}
	if spec.Name == "" {
		spec.Name = name
	}
	if spec.ParticipantID == "" {
		spec.ParticipantID = participantIDs[0]
	}
	return s.convs.CreateConversation(ctx, spec)
}

func stringList(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
