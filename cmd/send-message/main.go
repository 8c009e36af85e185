package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/medkit/livefeed/internal/biz/domain"
	"github.com/medkit/livefeed/internal/conf"
	"github.com/medkit/livefeed/internal/data"
)

func main() {
	godotenv.Load()
	cfg := conf.LoadFromEnv()

	if cfg.API.BaseURL == "" {
		fmt.Println("Error: API_BASE_URL must be set")
		os.Exit(1)
	}

	if len(os.Args) < 3 {
		fmt.Println("Usage: send-message <conversation_id> <message>")
		os.Exit(1)
	}

	conversationID := domain.ConversationID(os.Args[1])
	message := os.Args[2]

	chat := data.NewChatAPI(data.ChatAPIConfig{
		BaseURL: cfg.API.BaseURL,
		Token:   cfg.API.Token,
		Timeout: cfg.API.Timeout,
	})

	ctx := context.Background()
	if err := chat.SendMessage(ctx, conversationID, message); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	history, err := chat.GetMessages(ctx, conversationID)
	if err != nil {
		fmt.Printf("Message sent; failed to load history: %v\n", err)
		return
	}
	fmt.Printf("Message sent. Conversation %s now has %d messages.\n", conversationID, len(history))
}
