package data

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/medkit/livefeed/internal/biz/domain"
	"github.com/medkit/livefeed/internal/biz/repo"
)

// ChatAPIConfig configures the REST collaborator client
type ChatAPIConfig struct {
	BaseURL     string
	Token       string
	Timeout     time.Duration // ordinary calls
	LongTimeout time.Duration // AI generation calls
}

// chatAPI implements repo.ChatRepo over the backend REST API
type chatAPI struct {
	cfg    ChatAPIConfig
	client *http.Client
}

// NewChatAPI creates the REST collaborator client
func NewChatAPI(cfg ChatAPIConfig) repo.ChatRepo {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.LongTimeout <= 0 {
		cfg.LongTimeout = 60 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &chatAPI{cfg: cfg, client: &http.Client{}}
}

// ListConversations gets the user's conversations
func (c *chatAPI) ListConversations(ctx context.Context) ([]domain.Conversation, error) {
	var result []domain.Conversation
	if err := c.do(ctx, c.cfg.Timeout, http.MethodGet, "/conversations", nil, &result); err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	return result, nil
}

// GetMessages gets a conversation's message history
func (c *chatAPI) GetMessages(ctx context.Context, conversationID domain.ConversationID) ([]domain.ChatMessage, error) {
	var result []domain.ChatMessage
	path := "/conversations/" + url.PathEscape(string(conversationID)) + "/messages"
	if err := c.do(ctx, c.cfg.Timeout, http.MethodGet, path, nil, &result); err != nil {
		return nil, fmt.Errorf("get messages: %w", err)
	}
	return result, nil
}

// SendMessage posts a message
func (c *chatAPI) SendMessage(ctx context.Context, conversationID domain.ConversationID, text string) error {
	path := "/conversations/" + url.PathEscape(string(conversationID)) + "/messages"
	body := map[string]string{"text": text}
	if err := c.do(ctx, c.cfg.Timeout, http.MethodPost, path, body, nil); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

// CreateConversation creates a conversation on the server
func (c *chatAPI) CreateConversation(ctx context.Context, participantIDs []string, kind repo.ConversationKind) (*domain.Conversation, error) {
	body := map[string]interface{}{
		"participant_ids": participantIDs,
		"kind":            kind,
	}
	var result domain.Conversation
	if err := c.do(ctx, c.cfg.Timeout, http.MethodPost, "/conversations", body, &result); err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}
	if result.ID == "" {
		return nil, fmt.Errorf("create conversation: server returned empty id")
	}
	return &result, nil
}

// SendAssistantMessage sends a prompt to an assistant
func (c *chatAPI) SendAssistantMessage(ctx context.Context, assistantID, prompt string) (*domain.ChatMessage, error) {
	path := "/assistants/" + url.PathEscape(assistantID) + "/messages"
	var result domain.ChatMessage
	if err := c.do(ctx, c.cfg.LongTimeout, http.MethodPost, path, map[string]string{"prompt": prompt}, &result); err != nil {
		return nil, fmt.Errorf("send assistant message: %w", err)
	}
	return &result, nil
}

// GetAssistantHistory gets an assistant transcript
func (c *chatAPI) GetAssistantHistory(ctx context.Context, assistantID string) ([]domain.ChatMessage, error) {
	path := "/assistants/" + url.PathEscape(assistantID) + "/history"
	var result []domain.ChatMessage
	if err := c.do(ctx, c.cfg.Timeout, http.MethodGet, path, nil, &result); err != nil {
		return nil, fmt.Errorf("get assistant history: %w", err)
	}
	return result, nil
}

// APIError is a non-2xx response from the backend
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error %d: %s", e.StatusCode, e.Body)
}

func (c *chatAPI) do(ctx context.Context, timeout time.Duration, method, path string, body, out interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
