package mcpserver

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/medkit/livefeed/internal/biz/domain"
	apiclient "github.com/medkit/livefeed/internal/mcp"
)

// Backend is the livefeed API surface the tools call into
type Backend interface {
	ListConversations(ctx context.Context) ([]apiclient.ConversationSummary, string, error)
	GetConversation(ctx context.Context, id string) (*domain.Conversation, error)
	SendMessage(ctx context.Context, id, text string) error
	RefreshConversations(ctx context.Context) (int, error)
	ListNotifications(ctx context.Context, limit int) ([]domain.Notification, int, error)
	MarkNotificationRead(ctx context.Context, id string) (bool, error)
	MarkAllNotificationsRead(ctx context.Context) (int, error)
	GetFeedState(ctx context.Context) (*apiclient.FeedState, error)
}

// LiveFeedMCPServer exposes conversation and notification state as MCP tools
type LiveFeedMCPServer struct {
	server  *mcp.Server
	backend Backend
}

// NewServer creates the MCP server and registers its tools
func NewServer(backend Backend, version string) *LiveFeedMCPServer {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "livefeed-tools",
		Version: version,
	}, nil)

	s := &LiveFeedMCPServer{
		server:  server,
		backend: backend,
	}
	s.registerTools()
	return s
}

func (s *LiveFeedMCPServer) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_conversations",
		Description: "List the user's conversations with their latest message preview and the currently selected conversation.",
	}, s.handleListConversations)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "get_conversation",
		Description: "Get one conversation with its full message history.",
	}, s.handleGetConversation)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "send_message",
		Description: "Send a message to a conversation. For AI conversations the assistant's reply is appended too.",
	}, s.handleSendMessage)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "refresh_conversations",
		Description: "Reload the conversation list from the server, keeping local message history.",
	}, s.handleRefreshConversations)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_notifications",
		Description: "List recent notifications, newest first, with the unread count.",
	}, s.handleListNotifications)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "mark_notification_read",
		Description: "Mark a notification as read. Omit the id to mark all notifications read.",
	}, s.handleMarkNotificationRead)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "unread_count",
		Description: "Get the number of unread notifications.",
	}, s.handleUnreadCount)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "feed_state",
		Description: "Get the live feed connection state (connecting, open, reconnecting...).",
	}, s.handleFeedState)
}

// Run starts the MCP server with stdio transport
func (s *LiveFeedMCPServer) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// GetServer returns the underlying MCP server
func (s *LiveFeedMCPServer) GetServer() *mcp.Server {
	return s.server
}

// ============ Conversation Tools ============

// ListConversationsInput is empty - no input needed
type ListConversationsInput struct{}

// ConversationItem is one entry of the conversation list
type ConversationItem struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Preview      string `json:"preview"`
	MessageCount int    `json:"message_count"`
	IsAI         bool   `json:"is_ai"`
}

// ListConversationsOutput contains the conversation list
type ListConversationsOutput struct {
	Conversations []ConversationItem `json:"conversations"`
	Selected      string             `json:"selected,omitempty"`
	Error         string             `json:"error,omitempty"`
}

func (s *LiveFeedMCPServer) handleListConversations(ctx context.Context, req *mcp.CallToolRequest, input ListConversationsInput) (*mcp.CallToolResult, ListConversationsOutput, error) {
	convs, selected, err := s.backend.ListConversations(ctx)
	if err != nil {
		return nil, ListConversationsOutput{Conversations: []ConversationItem{}, Error: err.Error()}, nil
	}

	items := make([]ConversationItem, 0, len(convs))
	for _, c := range convs {
		items = append(items, ConversationItem{
			ID:           c.ID,
			Name:         c.Name,
			Preview:      c.LastMessagePreview,
			MessageCount: c.MessageCount,
			IsAI:         c.IsAIConversation,
		})
	}
	return nil, ListConversationsOutput{Conversations: items, Selected: selected}, nil
}

// GetConversationInput is the input for get_conversation tool
type GetConversationInput struct {
	ID string `json:"id" jsonschema:"The conversation id"`
}

// MessageItem is one message of a conversation
type MessageItem struct {
	Sender string `json:"sender"`
	Text   string `json:"text"`
	Tools  string `json:"tools,omitempty"`
}

// GetConversationOutput contains the conversation history
type GetConversationOutput struct {
	ID       string        `json:"id"`
	Name     string        `json:"name"`
	IsAI     bool          `json:"is_ai"`
	Messages []MessageItem `json:"messages"`
	Error    string        `json:"error,omitempty"`
}

func (s *LiveFeedMCPServer) handleGetConversation(ctx context.Context, req *mcp.CallToolRequest, input GetConversationInput) (*mcp.CallToolResult, GetConversationOutput, error) {
	out := GetConversationOutput{ID: input.ID, Messages: []MessageItem{}}
	if input.ID == "" {
		out.Error = "id is required"
		return nil, out, nil
	}

	conv, err := s.backend.GetConversation(ctx, input.ID)
	if err != nil {
		out.Error = err.Error()
		return nil, out, nil
	}

	out.Name = conv.Name
	out.IsAI = conv.IsAIConversation
	for _, m := range conv.Messages {
		item := MessageItem{Sender: m.Sender, Text: m.Text}
		for i, tool := range m.ToolsUsed {
			if i > 0 {
				item.Tools += ", "
			}
			item.Tools += tool
		}
		out.Messages = append(out.Messages, item)
	}
	return nil, out, nil
}

// SendMessageInput is the input for send_message tool
type SendMessageInput struct {
	ID   string `json:"id" jsonschema:"The conversation id"`
	Text string `json:"text" jsonschema:"The message content to send"`
}

// SendMessageOutput is the output for send_message tool
type SendMessageOutput struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

func (s *LiveFeedMCPServer) handleSendMessage(ctx context.Context, req *mcp.CallToolRequest, input SendMessageInput) (*mcp.CallToolResult, SendMessageOutput, error) {
	if input.ID == "" || input.Text == "" {
		return nil, SendMessageOutput{Success: false, Error: "id and text are required"}, nil
	}
	if err := s.backend.SendMessage(ctx, input.ID, input.Text); err != nil {
		return nil, SendMessageOutput{Success: false, Error: err.Error()}, nil
	}
	return nil, SendMessageOutput{Success: true}, nil
}

// RefreshConversationsInput is empty - no input needed
type RefreshConversationsInput struct{}

// RefreshConversationsOutput reports the conversation count after the refresh
type RefreshConversationsOutput struct {
	Success bool   `json:"success"`
	Count   int    `json:"count"`
	Error   string `json:"error,omitempty"`
}

func (s *LiveFeedMCPServer) handleRefreshConversations(ctx context.Context, req *mcp.CallToolRequest, input RefreshConversationsInput) (*mcp.CallToolResult, RefreshConversationsOutput, error) {
	count, err := s.backend.RefreshConversations(ctx)
	if err != nil {
		return nil, RefreshConversationsOutput{Success: false, Error: err.Error()}, nil
	}
	return nil, RefreshConversationsOutput{Success: true, Count: count}, nil
}

// ============ Notification Tools ============

// ListNotificationsInput is the input for list_notifications tool
type ListNotificationsInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"Maximum number of notifications to return (default 20)"`
}

// NotificationItem is one notification
type NotificationItem struct {
	ID        string `json:"id"`
	Kind      string `json:"kind"`
	Title     string `json:"title"`
	Message   string `json:"message"`
	CreatedAt string `json:"created_at"`
	Read      bool   `json:"read"`
}

// ListNotificationsOutput contains the notifications
type ListNotificationsOutput struct {
	Notifications []NotificationItem `json:"notifications"`
	Unread        int                `json:"unread"`
	Error         string             `json:"error,omitempty"`
}

func (s *LiveFeedMCPServer) handleListNotifications(ctx context.Context, req *mcp.CallToolRequest, input ListNotificationsInput) (*mcp.CallToolResult, ListNotificationsOutput, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = 20
	}

	notes, unread, err := s.backend.ListNotifications(ctx, limit)
	if err != nil {
		return nil, ListNotificationsOutput{Notifications: []NotificationItem{}, Error: err.Error()}, nil
	}

	items := make([]NotificationItem, 0, len(notes))
	for _, n := range notes {
		items = append(items, NotificationItem{
			ID:        n.ID,
			Kind:      n.Kind,
			Title:     n.Title,
			Message:   n.Message,
			CreatedAt: n.CreatedAt.Format("2006-01-02 15:04:05"),
			Read:      n.Read,
		})
	}
	return nil, ListNotificationsOutput{Notifications: items, Unread: unread}, nil
}

// MarkNotificationReadInput is the input for mark_notification_read tool
type MarkNotificationReadInput struct {
	ID string `json:"id,omitempty" jsonschema:"The notification id. Empty marks every notification read."`
}

// MarkNotificationReadOutput reports how many notifications changed
type MarkNotificationReadOutput struct {
	Success bool   `json:"success"`
	Changed int    `json:"changed"`
	Error   string `json:"error,omitempty"`
}

func (s *LiveFeedMCPServer) handleMarkNotificationRead(ctx context.Context, req *mcp.CallToolRequest, input MarkNotificationReadInput) (*mcp.CallToolResult, MarkNotificationReadOutput, error) {
	if input.ID == "" {
		changed, err := s.backend.MarkAllNotificationsRead(ctx)
		if err != nil {
			return nil, MarkNotificationReadOutput{Error: err.Error()}, nil
		}
		return nil, MarkNotificationReadOutput{Success: true, Changed: changed}, nil
	}

	found, err := s.backend.MarkNotificationRead(ctx, input.ID)
	if err != nil {
		return nil, MarkNotificationReadOutput{Error: err.Error()}, nil
	}
	if !found {
		return nil, MarkNotificationReadOutput{Error: "notification not found"}, nil
	}
	return nil, MarkNotificationReadOutput{Success: true, Changed: 1}, nil
}

// UnreadCountInput is empty - no input needed
type UnreadCountInput struct{}

// UnreadCountOutput contains the unread count
type UnreadCountOutput struct {
	Unread int    `json:"unread"`
	Error  string `json:"error,omitempty"`
}

func (s *LiveFeedMCPServer) handleUnreadCount(ctx context.Context, req *mcp.CallToolRequest, input UnreadCountInput) (*mcp.CallToolResult, UnreadCountOutput, error) {
	_, unread, err := s.backend.ListNotifications(ctx, 1)
	if err != nil {
		return nil, UnreadCountOutput{Error: err.Error()}, nil
	}
	return nil, UnreadCountOutput{Unread: unread}, nil
}

// ============ Feed Tools ============

// FeedStateInput is empty - no input needed
type FeedStateInput struct{}

// FeedStateOutput contains the connection state
type FeedStateOutput struct {
	Phase       string `json:"phase"`
	Description string `json:"description"`
	Error       string `json:"error,omitempty"`
}

func (s *LiveFeedMCPServer) handleFeedState(ctx context.Context, req *mcp.CallToolRequest, input FeedStateInput) (*mcp.CallToolResult, FeedStateOutput, error) {
	st, err := s.backend.GetFeedState(ctx)
	if err != nil {
		return nil, FeedStateOutput{Error: err.Error()}, nil
	}
	return nil, FeedStateOutput{Phase: st.Phase, Description: st.Description}, nil
}
