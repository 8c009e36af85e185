package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/medkit/livefeed/internal/api"
	"github.com/medkit/livefeed/internal/biz/usecase"
	"github.com/medkit/livefeed/internal/conf"
	"github.com/medkit/livefeed/internal/data"
	"github.com/medkit/livefeed/internal/infra/feed"
	"github.com/medkit/livefeed/internal/logger"
	"github.com/medkit/livefeed/internal/metrics"
	"github.com/medkit/livefeed/internal/service"
)

func main() {
	// Load .env file
	envErr := godotenv.Load()

	// Load configuration
	cfg := conf.LoadFromEnv()
	level := cfg.Log.Level
	if cfg.Debug {
		level = "debug"
	}
	root := logger.Init(logger.Config{Level: level, Pretty: cfg.Log.Pretty})
	if envErr != nil {
		log.Info().Msg("No .env file found, using environment variables")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid config")
	}

	m := metrics.New()

	// Initialize repository layer
	var assistantCfg *data.AssistantConfig
	if cfg.Assistant.Enabled() {
		assistantCfg = &data.AssistantConfig{
			APIKey:  cfg.Assistant.APIKey,
			BaseURL: cfg.Assistant.BaseURL,
			Model:   cfg.Assistant.Model,
		}
		log.Info().Msg("Local assistant backend enabled")
	}
	repos, err := data.NewRepositories(cfg.Store.DBPath, data.ChatAPIConfig{
		BaseURL:     cfg.API.BaseURL,
		Token:       cfg.API.Token,
		Timeout:     cfg.API.Timeout,
		LongTimeout: cfg.API.AITimeout,
	}, assistantCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create repositories")
	}
	log.Info().Str("path", cfg.Store.DBPath).Msg("Store opened")

	// Initialize usecase layer
	ctx := context.Background()
	convs := usecase.NewConversationStore(ctx, repos.KV, logger.Component(root, "conversations"), m)
	notifs := usecase.NewNotificationStore(cfg.Store.NotificationCapacity, m)

	// Initialize service layer
	notifier, err := service.NewNotifier(notificationTemplates(cfg.Notifications))
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid notification templates")
	}
	dispatcher := service.NewDispatcher(logger.Component(root, "dispatcher"), m)
	feedSvc, err := service.NewFeedService(dispatcher, convs, notifs, repos.Chat, notifier, logger.Component(root, "feed"))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create feed service")
	}

	transport := feed.NewTransport(feed.Config{
		URL:         cfg.Feed.URL,
		Token:       cfg.Feed.Token,
		EventMarker: cfg.Feed.EventMarker,
	}, logger.Component(root, "transport"), m)
	supervisor := service.NewSupervisor(transport, feedSvc.HandleEvent, feedSvc.Watermark, service.SupervisorConfig{
		SubjectID:  cfg.Feed.SubjectID,
		RetryDelay: cfg.Feed.RetryDelay,
	}, logger.Component(root, "supervisor"), m)

	refresher := service.NewRefreshScheduler(feedSvc, cfg.API.RefreshInterval, cfg.API.Timeout, logger.Component(root, "refresh"))

	// Initialize HTTP API server
	apiServer := api.NewServer(api.Deps{
		Conversations: convs,
		Actions:       feedSvc,
		Notifications: notifs,
		Feed:          supervisor,
		Metrics:       m.Handler(),
	}, cfg.HTTP.Port, logger.Component(root, "api"))
	go func() {
		if err := apiServer.Start(); err != nil {
			log.Error().Err(err).Msg("API server error")
		}
	}()

	// Start live feed
	runCtx, cancel := context.WithCancel(ctx)
	refresher.Start(runCtx)
	supervisor.Start()
	log.Info().Str("feed", cfg.Feed.URL).Str("subject", cfg.Feed.SubjectID).Msg("Live feed started")

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info().Msg("Shutting down...")
	supervisor.Stop()
	feedSvc.Close()
	cancel()
	refresher.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 5*time.Second)
	defer shutdownCancel()
	if err := apiServer.Stop(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("API server shutdown")
	}
	convs.Persist(shutdownCtx)
	if err := repos.Close(); err != nil {
		log.Warn().Err(err).Msg("Failed to close store")
	}
}

func notificationTemplates(cfg *conf.NotificationsConfig) map[string]service.NotificationTemplate {
	result := make(map[string]service.NotificationTemplate)
	if cfg == nil {
		return result
	}
	for kind, t := range cfg.Templates {
		result[kind] = service.NotificationTemplate{Title: t.Title, Message: t.Message}
	}
	return result
}
