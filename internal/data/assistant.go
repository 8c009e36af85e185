package data

import (
	"context"
	"fmt"
	"sync"

	openai "github.com/sashabaranov/go-openai"

	"github.com/medkit/livefeed/internal/biz/domain"
	"github.com/medkit/livefeed/internal/biz/repo"
)

const assistantSender = "assistant"

// AssistantConfig configures the OpenAI-compatible assistant backend
type AssistantConfig struct {
	APIKey       string
	BaseURL      string // empty for api.openai.com
	Model        string
	SystemPrompt string
}

// completionClient is the subset of the go-openai client we use
type completionClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// openaiAssistant implements repo.AssistantRepo against an OpenAI-compatible API.
// Each assistant id keeps its own transcript in memory so follow-up prompts have context.
type openaiAssistant struct {
	client completionClient
	cfg    AssistantConfig

	mu          sync.Mutex
	transcripts map[string][]openai.ChatCompletionMessage
}

// NewOpenAIAssistant creates the assistant backend
func NewOpenAIAssistant(cfg AssistantConfig) repo.AssistantRepo {
	if cfg.Model == "" {
		cfg.Model = openai.GPT4oMini
	}
	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}
	return newOpenAIAssistant(openai.NewClientWithConfig(config), cfg)
}

func newOpenAIAssistant(client completionClient, cfg AssistantConfig) *openaiAssistant {
	return &openaiAssistant{
		client:      client,
		cfg:         cfg,
		transcripts: make(map[string][]openai.ChatCompletionMessage),
	}
}

// SendAssistantMessage sends a prompt with the session transcript as context
func (a *openaiAssistant) SendAssistantMessage(ctx context.Context, assistantID, prompt string) (*domain.ChatMessage, error) {
	a.mu.Lock()
	history := append([]openai.ChatCompletionMessage(nil), a.transcripts[assistantID]...)
	a.mu.Unlock()

	userMsg := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: prompt}

	var messages []openai.ChatCompletionMessage
	if a.cfg.SystemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: a.cfg.SystemPrompt})
	}
	messages = append(messages, history...)
	messages = append(messages, userMsg)

	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    a.cfg.Model,
		Messages: messages,
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response choices")
	}

	reply := resp.Choices[0].Message
	var tools []string
	for _, call := range reply.ToolCalls {
		tools = append(tools, call.Function.Name)
	}

	a.mu.Lock()
	a.transcripts[assistantID] = append(a.transcripts[assistantID], userMsg,
		openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: reply.Content})
	a.mu.Unlock()

	return &domain.ChatMessage{Sender: assistantSender, Text: reply.Content, ToolsUsed: tools}, nil
}

// GetAssistantHistory returns the in-memory transcript of a session
func (a *openaiAssistant) GetAssistantHistory(ctx context.Context, assistantID string) ([]domain.ChatMessage, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	var result []domain.ChatMessage
	for _, m := range a.transcripts[assistantID] {
		sender := "me"
		if m.Role == openai.ChatMessageRoleAssistant {
			sender = assistantSender
		}
		result = append(result, domain.ChatMessage{Sender: sender, Text: m.Content})
	}
	return result, nil
}

// chatWithAssistant routes assistant calls to a dedicated backend and everything else to the REST API
type chatWithAssistant struct {
	repo.ChatRepo
	assistant repo.AssistantRepo
}

// WithAssistant overrides the assistant half of a ChatRepo
func WithAssistant(chat repo.ChatRepo, assistant repo.AssistantRepo) repo.ChatRepo {
	if assistant == nil {
		return chat
	}
	return &chatWithAssistant{ChatRepo: chat, assistant: assistant}
}

func (c *chatWithAssistant) SendAssistantMessage(ctx context.Context, assistantID, prompt string) (*domain.ChatMessage, error) {
	return c.assistant.SendAssistantMessage(ctx, assistantID, prompt)
}

func (c *chatWithAssistant) GetAssistantHistory(ctx context.Context, assistantID string) ([]domain.ChatMessage, error) {
	return c.assistant.GetAssistantHistory(ctx, assistantID)
}
