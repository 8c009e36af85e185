package data

import (
	"github.com/medkit/livefeed/internal/biz/repo"
)

// Repositories contains all repositories
type Repositories struct {
	KV   repo.KVStore
	Chat repo.ChatRepo
}

// NewRepositories creates all repositories.
// assistantCfg is optional; without an API key assistant calls go to the REST API.
func NewRepositories(dbPath string, chatCfg ChatAPIConfig, assistantCfg *AssistantConfig) (*Repositories, error) {
	kv, err := NewKVStore(dbPath)
	if err != nil {
		return nil, err
	}

	chat := NewChatAPI(chatCfg)
	if assistantCfg != nil && assistantCfg.APIKey != "" {
		chat = WithAssistant(chat, NewOpenAIAssistant(*assistantCfg))
	}

	return &Repositories{
		KV:   kv,
		Chat: chat,
	}, nil
}

// Close releases repository resources
func (r *Repositories) Close() error {
	return r.KV.Close()
}
