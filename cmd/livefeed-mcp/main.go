package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/medkit/livefeed/internal/logger"
	"github.com/medkit/livefeed/internal/mcp"
	"github.com/medkit/livefeed/mcpserver"
)

const version = "v1.0.0"

// This MCP server exposes the running livefeed process's state over stdio.
// It relays tool calls to the livefeed HTTP API.

func main() {
	// stdout carries the MCP protocol; logs go to stderr
	logger.Init(logger.Config{
		Level:  os.Getenv("LOG_LEVEL"),
		Output: os.Stderr,
	})

	apiURL := os.Getenv("LIVEFEED_API_URL")
	if apiURL == "" {
		port := os.Getenv("HTTP_PORT")
		if port == "" {
			port = "9876"
		}
		apiURL = fmt.Sprintf("http://127.0.0.1:%s", port)
	}

	server := mcpserver.NewServer(mcp.NewClient(apiURL), version)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Info().Str("api", apiURL).Msg("livefeed MCP server starting")
	if err := server.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatal().Err(err).Msg("MCP server error")
	}
}
