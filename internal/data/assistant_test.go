package data

import (
	"context"
	"errors"
	"testing"

	openai "github.com/sashabaranov/go-openai"
)

type mockCompletionClient struct {
	requests []openai.ChatCompletionRequest
	reply    string
	err      error
}

func (m *mockCompletionClient) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	m.requests = append(m.requests, req)
	if m.err != nil {
		return openai.ChatCompletionResponse{}, m.err
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: m.reply}},
		},
	}, nil
}

func TestOpenAIAssistant_KeepsTranscriptPerSession(t *testing.T) {
	client := &mockCompletionClient{reply: "Take with food."}
	a := newOpenAIAssistant(client, AssistantConfig{Model: "test-model", SystemPrompt: "You are a clinical assistant."})
	ctx := context.Background()

	reply, err := a.SendAssistantMessage(ctx, "ai-1", "How to take ibuprofen?")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if reply.Sender != "assistant" || reply.Text != "Take with food." {
		t.Errorf("Unexpected reply: %+v", reply)
	}

	_, _ = a.SendAssistantMessage(ctx, "ai-1", "And dosage?")
	second := client.requests[1]
	// system + first user + first assistant + second user
	if len(second.Messages) != 4 {
		t.Fatalf("Expected 4 messages in second request, got %d", len(second.Messages))
	}
	if second.Model != "test-model" {
		t.Errorf("Expected model 'test-model', got '%s'", second.Model)
	}

	history, _ := a.GetAssistantHistory(ctx, "ai-1")
	if len(history) != 4 {
		t.Fatalf("Expected 4 history entries, got %d", len(history))
	}
	if history[0].Sender != "me" || history[1].Sender != "assistant" {
		t.Errorf("Unexpected senders: %s, %s", history[0].Sender, history[1].Sender)
	}

	other, _ := a.GetAssistantHistory(ctx, "ai-2")
	if len(other) != 0 {
		t.Errorf("Expected separate sessions, got %d entries", len(other))
	}
}

func TestOpenAIAssistant_ErrorLeavesTranscriptUntouched(t *testing.T) {
	client := &mockCompletionClient{err: errors.New("rate limited")}
	a := newOpenAIAssistant(client, AssistantConfig{})

	if _, err := a.SendAssistantMessage(context.Background(), "ai-1", "hi"); err == nil {
		t.Fatal("Expected error")
	}
	history, _ := a.GetAssistantHistory(context.Background(), "ai-1")
	if len(history) != 0 {
		t.Errorf("Expected empty transcript, got %d", len(history))
	}
}

func TestWithAssistant_NilKeepsChatRepo(t *testing.T) {
	chat := NewChatAPI(ChatAPIConfig{BaseURL: "http://example.invalid"})
	if WithAssistant(chat, nil) != chat {
		t.Error("Expected the same repo when no assistant is configured")
	}
}
