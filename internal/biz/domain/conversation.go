package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// ConversationID is a server-assigned or client-generated conversation identifier.
// The server sends ids either as JSON strings or numbers; both normalise to a string.
type ConversationID string

// UnmarshalJSON accepts both "42" and 42
func (id *ConversationID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ConversationID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("conversation id: %w", err)
	}
	*id = ConversationID(n.String())
	return nil
}

// ParseConversationID converts a decoded JSON value (string or number) into an id
func ParseConversationID(v any) (ConversationID, bool) {
	switch t := v.(type) {
	case string:
		return ConversationID(t), t != ""
	case float64:
		return ConversationID(strconv.FormatFloat(t, 'f', -1, 64)), true
	case json.Number:
		return ConversationID(t.String()), true
	case int:
		return ConversationID(strconv.Itoa(t)), true
	case int64:
		return ConversationID(strconv.FormatInt(t, 10)), true
	}
	return "", false
}

// ChatMessage is a single entry of a conversation's history
type ChatMessage struct {
	Sender    string   `json:"sender"`
	Text      string   `json:"text"`
	ToolsUsed []string `json:"toolsUsed,omitempty"`
}

// Conversation represents the conversation aggregate root
type Conversation struct {
	ID                 ConversationID `json:"id"`
	Name               string         `json:"name"`
	LastMessagePreview string         `json:"lastMessagePreview"`
	AvatarRef          string         `json:"avatarRef"`
	Messages           []ChatMessage  `json:"messages"`
	ParticipantID      string         `json:"participantId,omitempty"`
	IsAIConversation   bool           `json:"isAIConversation"`
}

// Clone returns a deep copy so callers can't mutate store-owned history
func (c Conversation) Clone() Conversation {
	out := c
	if c.Messages != nil {
		out.Messages = make([]ChatMessage, len(c.Messages))
		for i, m := range c.Messages {
			out.Messages[i] = m
			if m.ToolsUsed != nil {
				out.Messages[i].ToolsUsed = append([]string(nil), m.ToolsUsed...)
			}
		}
	}
	return out
}

// Append adds a message to the end of the history and refreshes the preview
func (c *Conversation) Append(msg ChatMessage) {
	c.Messages = append(c.Messages, msg)
	c.LastMessagePreview = msg.Text
}

// MergeServer folds a fresh server copy into the local one.
// Metadata follows the server; history follows the keep-local rule.
func (c Conversation) MergeServer(server Conversation) Conversation {
	merged := server.Clone()
	merged.IsAIConversation = c.IsAIConversation
	if len(c.Messages) > 0 {
		merged.Messages = c.Clone().Messages
	}
	return merged
}

// ConversationSpec describes a conversation to create locally
type ConversationSpec struct {
	// ID is the server-assigned id; required unless IsAI is set
	ID            ConversationID
	Name          string
	AvatarRef     string
	ParticipantID string
	IsAI          bool
}
