package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medkit/livefeed/internal/biz/domain"
	"github.com/medkit/livefeed/internal/biz/repo"
	"github.com/medkit/livefeed/internal/metrics"
)

// Durable store keys
const (
	KeyConversations          = "conversations"
	KeySelectedConversationID = "selectedConversationId"
)

var (
	// ErrMissingServerID is returned when a user conversation is created without the server's id
	ErrMissingServerID = errors.New("user conversation requires a server-assigned id")

	// ErrConversationNotFound is returned for operations on an unknown id
	ErrConversationNotFound = errors.New("conversation not found")
)

// ConversationStore is the authoritative in-memory conversation collection for a session.
// Every mutation is written back to the durable store; write failures never undo the mutation.
type ConversationStore struct {
	kv      repo.KVStore
	log     zerolog.Logger
	metrics *metrics.Metrics
	newID   func() (uuid.UUID, error)

	mu       sync.RWMutex
	order    []domain.ConversationID
	byID     map[domain.ConversationID]*domain.Conversation
	selected domain.ConversationID
	version  uint64

	persistMu sync.Mutex
	written   uint64
}

// NewConversationStore creates the store and hydrates it from kv
func NewConversationStore(ctx context.Context, kv repo.KVStore, log zerolog.Logger, m *metrics.Metrics) *ConversationStore {
	s := &ConversationStore{
		kv:      kv,
		log:     log,
		metrics: m,
		newID:   uuid.NewV7,
		byID:    make(map[domain.ConversationID]*domain.Conversation),
	}
	s.Hydrate(ctx)
	return s
}

// Hydrate replaces in-memory state with the persisted snapshot.
// Missing or corrupt data falls back to an empty store.
func (s *ConversationStore) Hydrate(ctx context.Context) {
	var convs []domain.Conversation
	if raw, ok, err := s.kv.Get(ctx, KeyConversations); err != nil {
		s.metrics.PersistFailure("get")
		s.log.Warn().Err(err).Msg("Failed to read persisted conversations, starting empty")
	} else if ok {
		if err := json.Unmarshal([]byte(raw), &convs); err != nil {
			s.log.Warn().Err(err).Msg("Persisted conversations are corrupt, starting empty")
			convs = nil
		}
	}

	var selected domain.ConversationID
	if raw, ok, err := s.kv.Get(ctx, KeySelectedConversationID); err != nil {
		s.metrics.PersistFailure("get")
		s.log.Warn().Err(err).Msg("Failed to read selected conversation")
	} else if ok {
		selected = domain.ConversationID(raw)
	}

	s.mu.Lock()
	s.order = nil
	s.byID = make(map[domain.ConversationID]*domain.Conversation, len(convs))
	for _, c := range convs {
		s.insertLocked(c)
	}
	s.selected = selected
	count := len(s.order)
	s.mu.Unlock()

	s.log.Info().Int("conversations", count).Str("selected", string(selected)).Msg("Conversation store hydrated")
}

// MergeFromServer reconciles a freshly fetched server list with local state.
//   - a local twin keeps its messages when non-empty; metadata follows the server
//   - an empty server list never wipes a non-empty store (feed unavailable)
//   - local conversations missing from a non-empty list are dropped, except AI sessions,
//     which only exist on this client
func (s *ConversationStore) MergeFromServer(ctx context.Context, server []domain.Conversation) {
	s.mu.Lock()
	if len(server) == 0 && len(s.order) > 0 {
		s.mu.Unlock()
		s.log.Debug().Msg("Empty server conversation list, keeping local state")
		return
	}

	prevOrder, prev := s.order, s.byID
	s.order = nil
	s.byID = make(map[domain.ConversationID]*domain.Conversation, len(server))

	for _, sc := range server {
		if sc.ID == "" {
			continue
		}
		if local, ok := prev[sc.ID]; ok {
			s.insertLocked(local.MergeServer(sc))
		} else {
			s.insertLocked(sc.Clone())
		}
	}
	// Server presence decides membership for everything except AI sessions:
	// they are created on this client and never appear in the server list.
	for _, id := range prevOrder {
		if c := prev[id]; c.IsAIConversation {
			s.insertLocked(*c)
		}
	}
	data, version := s.snapshotLocked()
	s.mu.Unlock()

	s.persist(ctx, data, version)
}

// ApplyNewMessage appends msg to a conversation. Unknown ids are ignored and reported as false.
func (s *ConversationStore) ApplyNewMessage(ctx context.Context, id domain.ConversationID, msg domain.ChatMessage) bool {
	s.mu.Lock()
	c, ok := s.byID[id]
	if !ok {
		s.mu.Unlock()
		return false
	}
	c.Append(msg)
	data, version := s.snapshotLocked()
	s.mu.Unlock()

	s.persist(ctx, data, version)
	return true
}

// AdoptHistory replaces a conversation's history with the server's canonical copy.
// A shorter server copy is ignored so local messages are never truncated.
func (s *ConversationStore) AdoptHistory(ctx context.Context, id domain.ConversationID, msgs []domain.ChatMessage) bool {
	s.mu.Lock()
	c, ok := s.byID[id]
	if !ok || len(msgs) < len(c.Messages) {
		s.mu.Unlock()
		return false
	}
	c.Messages = domain.Conversation{Messages: msgs}.Clone().Messages
	if len(msgs) > 0 {
		c.LastMessagePreview = msgs[len(msgs)-1].Text
	}
	data, version := s.snapshotLocked()
	s.mu.Unlock()

	s.persist(ctx, data, version)
	return true
}

// CreateConversation adds a conversation locally and returns its id.
// AI sessions get a time-ordered client id; user conversations must carry the server's id.
// Creating an id that already exists returns it unchanged.
func (s *ConversationStore) CreateConversation(ctx context.Context, spec domain.ConversationSpec) (domain.ConversationID, error) {
	id := spec.ID
	if spec.IsAI {
		u, err := s.newID()
		if err != nil {
			return "", err
		}
		id = domain.ConversationID("ai-" + u.String())
	} else if id == "" {
		return "", ErrMissingServerID
	}

	s.mu.Lock()
	if _, exists := s.byID[id]; exists {
		s.mu.Unlock()
		return id, nil
	}
	s.insertLocked(domain.Conversation{
		ID:               id,
		Name:             spec.Name,
		AvatarRef:        spec.AvatarRef,
		ParticipantID:    spec.ParticipantID,
		IsAIConversation: spec.IsAI,
	})
	data, version := s.snapshotLocked()
	s.mu.Unlock()

	s.persist(ctx, data, version)
	return id, nil
}

// Select records the conversation being viewed; an empty id clears the selection.
// The id may reference a conversation that isn't loaded.
func (s *ConversationStore) Select(ctx context.Context, id domain.ConversationID) {
	s.mu.Lock()
	s.selected = id
	s.mu.Unlock()

	var err error
	if id == "" {
		err = s.kv.Remove(ctx, KeySelectedConversationID)
	} else {
		err = s.kv.Set(ctx, KeySelectedConversationID, string(id))
	}
	if err != nil {
		s.metrics.PersistFailure("set")
		s.log.Warn().Err(err).Msg("Failed to persist selection")
	}
}

// Selected returns the selected conversation id
func (s *ConversationStore) Selected() (domain.ConversationID, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selected, s.selected != ""
}

// IsSelected reports whether id is the selected conversation
func (s *ConversationStore) IsSelected(id domain.ConversationID) bool {
	selected, ok := s.Selected()
	return ok && selected == id
}

// Get returns a copy of one conversation
func (s *ConversationStore) Get(id domain.ConversationID) (domain.Conversation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.byID[id]
	if !ok {
		return domain.Conversation{}, false
	}
	return c.Clone(), true
}

// List returns copies of all conversations in store order
func (s *ConversationStore) List() []domain.Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]domain.Conversation, 0, len(s.order))
	for _, id := range s.order {
		result = append(result, s.byID[id].Clone())
	}
	return result
}

// Persist writes the current list to the durable store
func (s *ConversationStore) Persist(ctx context.Context) {
	s.mu.Lock()
	data, version := s.snapshotLocked()
	s.mu.Unlock()
	s.persist(ctx, data, version)
}

func (s *ConversationStore) insertLocked(c domain.Conversation) {
	if _, exists := s.byID[c.ID]; exists {
		return
	}
	cp := c
	s.byID[c.ID] = &cp
	s.order = append(s.order, c.ID)
}

// snapshotLocked serialises the list and stamps it with a new version
func (s *ConversationStore) snapshotLocked() ([]byte, uint64) {
	list := make([]domain.Conversation, 0, len(s.order))
	for _, id := range s.order {
		list = append(list, *s.byID[id])
	}
	s.version++
	data, err := json.Marshal(list)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to serialise conversations")
		return nil, s.version
	}
	return data, s.version
}

// persist writes a snapshot unless a newer one has already been written
func (s *ConversationStore) persist(ctx context.Context, data []byte, version uint64) {
	if data == nil {
		return
	}
	s.persistMu.Lock()
	defer s.persistMu.Unlock()
	if version <= s.written {
		return
	}
	if err := s.kv.Set(ctx, KeyConversations, string(data)); err != nil {
		s.metrics.PersistFailure("set")
		s.log.Warn().Err(err).Msg("Failed to persist conversations")
		return
	}
	s.written = version
}
