package repo

import (
	"context"

	"github.com/medkit/livefeed/internal/biz/domain"
)

// ConversationKind distinguishes user-to-user conversations from AI sessions
type ConversationKind string

const (
	ConversationKindDirect ConversationKind = "direct"
	ConversationKindAI     ConversationKind = "ai"
)

// ChatRepo is the conversation/message REST collaborator
type ChatRepo interface {
	// ListConversations gets the user's conversations from the server
	ListConversations(ctx context.Context) ([]domain.Conversation, error)

	// GetMessages gets the canonical message history of a conversation
	GetMessages(ctx context.Context, conversationID domain.ConversationID) ([]domain.ChatMessage, error)

	// SendMessage posts a message to a conversation
	SendMessage(ctx context.Context, conversationID domain.ConversationID, text string) error

	// CreateConversation creates a conversation and returns the server copy
	CreateConversation(ctx context.Context, participantIDs []string, kind ConversationKind) (*domain.Conversation, error)

	AssistantRepo
}

// AssistantRepo talks to an AI assistant
type AssistantRepo interface {
	// SendAssistantMessage sends a prompt and returns the assistant's reply
	SendAssistantMessage(ctx context.Context, assistantID, prompt string) (*domain.ChatMessage, error)

	// GetAssistantHistory gets the transcript of an assistant session
	GetAssistantHistory(ctx context.Context, assistantID string) ([]domain.ChatMessage, error)
}
