package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/medkit/livefeed/internal/biz/domain"
)

// Client is the HTTP client for the livefeed inspection API
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new API client
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// ConversationSummary is the list view of a conversation
type ConversationSummary struct {
	ID                 string `json:"id"`
	Name               string `json:"name"`
	LastMessagePreview string `json:"lastMessagePreview"`
	MessageCount       int    `json:"messageCount"`
	IsAIConversation   bool   `json:"isAIConversation"`
}

// FeedState is the live connection state
type FeedState struct {
	Phase       string `json:"phase"`
	Description string `json:"description"`
	Reason      string `json:"reason,omitempty"`
}

// ============ Conversation Operations ============

// ListConversations gets all conversations and the selected id
func (c *Client) ListConversations(ctx context.Context) ([]ConversationSummary, string, error) {
	var result struct {
		Conversations []ConversationSummary `json:"conversations"`
		Selected      string                `json:"selected"`
	}
	if err := c.get(ctx, "/api/conversations", &result); err != nil {
		return nil, "", err
	}
	return result.Conversations, result.Selected, nil
}

// GetConversation gets one conversation with its history
func (c *Client) GetConversation(ctx context.Context, id string) (*domain.Conversation, error) {
	var conv domain.Conversation
	if err := c.get(ctx, "/api/conversations/"+url.PathEscape(id), &conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

// SendMessage posts a message to a conversation
func (c *Client) SendMessage(ctx context.Context, id, text string) error {
	body := map[string]string{"text": text}
	return c.post(ctx, fmt.Sprintf("/api/conversations/%s/messages", url.PathEscape(id)), body, nil)
}

// RefreshConversations reloads the conversation list from the server
func (c *Client) RefreshConversations(ctx context.Context) (int, error) {
	var result struct {
		Count int `json:"count"`
	}
	if err := c.post(ctx, "/api/conversations/refresh", nil, &result); err != nil {
		return 0, err
	}
	return result.Count, nil
}

// ============ Notification Operations ============

// ListNotifications gets up to limit notifications and the unread count
func (c *Client) ListNotifications(ctx context.Context, limit int) ([]domain.Notification, int, error) {
	var result struct {
		Notifications []domain.Notification `json:"notifications"`
		Unread        int                   `json:"unread"`
	}
	if err := c.get(ctx, fmt.Sprintf("/api/notifications?limit=%d", limit), &result); err != nil {
		return nil, 0, err
	}
	return result.Notifications, result.Unread, nil
}

// MarkNotificationRead flags one notification as read
func (c *Client) MarkNotificationRead(ctx context.Context, id string) (bool, error) {
	var result struct {
		Success bool `json:"success"`
	}
	if err := c.post(ctx, fmt.Sprintf("/api/notifications/%s/read", url.PathEscape(id)), nil, &result); err != nil {
		return false, err
	}
	return result.Success, nil
}

// MarkAllNotificationsRead flags every notification as read
func (c *Client) MarkAllNotificationsRead(ctx context.Context) (int, error) {
	var result struct {
		Changed int `json:"changed"`
	}
	if err := c.post(ctx, "/api/notifications/read-all", nil, &result); err != nil {
		return 0, err
	}
	return result.Changed, nil
}

// ============ Feed Operations ============

// GetFeedState gets the live connection state
func (c *Client) GetFeedState(ctx context.Context) (*FeedState, error) {
	var st FeedState
	if err := c.get(ctx, "/api/feed/state", &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// ============ HTTP Helpers ============

func (c *Client) get(ctx context.Context, path string, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	return c.do(req, result)
}

func (c *Client) post(ctx context.Context, path string, body interface{}, result interface{}) error {
	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal body: %w", err)
		}
		reader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, result)
}

func (c *Client) do(req *http.Request, result interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP %s failed: %w", req.Method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(bytes.TrimSpace(body)))
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}
