package domain

import (
	"encoding/json"
	"testing"
)

func TestConversationID_UnmarshalStringAndNumber(t *testing.T) {
	var convs []Conversation
	data := `[{"id":"42","name":"Bob"},{"id":7,"name":"Alice"}]`
	if err := json.Unmarshal([]byte(data), &convs); err != nil {
		t.Fatalf("Failed to unmarshal: %v", err)
	}
	if convs[0].ID != "42" {
		t.Errorf("Expected id '42', got '%s'", convs[0].ID)
	}
	if convs[1].ID != "7" {
		t.Errorf("Expected id '7', got '%s'", convs[1].ID)
	}
}

func TestParseConversationID(t *testing.T) {
	if id, ok := ParseConversationID("42"); !ok || id != "42" {
		t.Errorf("Expected '42', got '%s' (ok=%v)", id, ok)
	}
	if id, ok := ParseConversationID(float64(42)); !ok || id != "42" {
		t.Errorf("Expected '42' from number, got '%s' (ok=%v)", id, ok)
	}
	if _, ok := ParseConversationID(nil); ok {
		t.Error("Expected nil to be rejected")
	}
	if _, ok := ParseConversationID(""); ok {
		t.Error("Expected empty string to be rejected")
	}
}

func TestConversation_MergeServer_KeepsLocalMessages(t *testing.T) {
	local := Conversation{
		ID:   "1",
		Name: "Old name",
		Messages: []ChatMessage{
			{Sender: "me", Text: "a"},
			{Sender: "Bob", Text: "b"},
			{Sender: "me", Text: "c"},
		},
	}
	server := Conversation{ID: "1", Name: "New name", AvatarRef: "new.png"}

	merged := local.MergeServer(server)

	if len(merged.Messages) != 3 {
		t.Fatalf("Expected 3 messages, got %d", len(merged.Messages))
	}
	if merged.Name != "New name" || merged.AvatarRef != "new.png" {
		t.Errorf("Expected server metadata, got name=%q avatar=%q", merged.Name, merged.AvatarRef)
	}
}

func TestConversation_MergeServer_AdoptsServerWhenLocalEmpty(t *testing.T) {
	local := Conversation{ID: "1"}
	server := Conversation{ID: "1", Messages: []ChatMessage{{Sender: "Bob", Text: "hi"}}}

	merged := local.MergeServer(server)

	if len(merged.Messages) != 1 || merged.Messages[0].Text != "hi" {
		t.Errorf("Expected server history, got %+v", merged.Messages)
	}
}

func TestConversation_MergeServer_AIFlagImmutable(t *testing.T) {
	local := Conversation{ID: "1", IsAIConversation: true}
	server := Conversation{ID: "1", IsAIConversation: false}

	if !local.MergeServer(server).IsAIConversation {
		t.Error("Expected IsAIConversation to keep the local value")
	}
}

func TestConversation_CloneIsIndependent(t *testing.T) {
	orig := Conversation{ID: "1", Messages: []ChatMessage{{Text: "a", ToolsUsed: []string{"x"}}}}
	cp := orig.Clone()
	cp.Messages[0].Text = "changed"
	cp.Messages[0].ToolsUsed[0] = "y"

	if orig.Messages[0].Text != "a" || orig.Messages[0].ToolsUsed[0] != "x" {
		t.Error("Expected clone mutation not to leak into original")
	}
}

func TestConversation_Append(t *testing.T) {
	c := Conversation{ID: "1"}
	c.Append(ChatMessage{Sender: "Bob", Text: "hello"})

	if len(c.Messages) != 1 {
		t.Fatalf("Expected 1 message, got %d", len(c.Messages))
	}
	if c.LastMessagePreview != "hello" {
		t.Errorf("Expected preview 'hello', got '%s'", c.LastMessagePreview)
	}
}
