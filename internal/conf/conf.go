package conf

import (
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Config represents application configuration
type Config struct {
	// Feed configuration
	Feed FeedConfig

	// REST collaborator configuration
	API APIConfig

	// Assistant configuration (optional)
	Assistant AssistantConfig

	// Store configuration
	Store StoreConfig

	// Notification templates (loaded from YAML)
	Notifications *NotificationsConfig

	// HTTP inspection server configuration
	HTTP HTTPConfig

	// Log configuration
	Log LogConfig

	// Debug mode
	Debug bool

	notificationsErr error
}

// FeedConfig contains live feed configuration
type FeedConfig struct {
	URL         string
	SubjectID   string
	Token       string
	EventMarker string
	RetryDelay  time.Duration
}

// APIConfig contains REST collaborator configuration
type APIConfig struct {
	BaseURL         string
	Token           string
	Timeout         time.Duration
	AITimeout       time.Duration
	RefreshInterval time.Duration
}

// AssistantConfig contains OpenAI-compatible assistant configuration
type AssistantConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// Enabled reports whether a local assistant backend is configured
func (c AssistantConfig) Enabled() bool {
	return c.APIKey != ""
}

// StoreConfig contains durable store configuration
type StoreConfig struct {
	DBPath               string
	NotificationCapacity int
}

// HTTPConfig contains inspection server configuration
type HTTPConfig struct {
	Port int
}

// LogConfig contains logging configuration
type LogConfig struct {
	Level  string
	Pretty bool
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() *Config {
	// Store DB path
	dbPath := os.Getenv("STORE_DB_PATH")
	if dbPath == "" {
		homeDir, _ := os.UserHomeDir()
		dbPath = filepath.Join(homeDir, ".livefeed", "store.db")
	}

	// API token falls back to the feed token
	feedToken := os.Getenv("FEED_TOKEN")
	apiToken := os.Getenv("API_TOKEN")
	if apiToken == "" {
		apiToken = feedToken
	}

	// Load notification templates from YAML
	notificationsPath := os.Getenv("NOTIFICATIONS_CONFIG_PATH")
	notifications, notificationsErr := LoadNotificationsConfig(notificationsPath)
	if notificationsErr != nil {
		notifications = &NotificationsConfig{}
	}

	return &Config{
		Feed: FeedConfig{
			URL:         os.Getenv("FEED_URL"),
			SubjectID:   os.Getenv("FEED_SUBJECT_ID"),
			Token:       feedToken,
			EventMarker: envString("FEED_EVENT_MARKER", "data:"),
			RetryDelay:  time.Duration(envInt("FEED_RETRY_DELAY_MS", 5000)) * time.Millisecond,
		},
		API: APIConfig{
			BaseURL:         os.Getenv("API_BASE_URL"),
			Token:           apiToken,
			Timeout:         time.Duration(envInt("API_TIMEOUT_SECONDS", 10)) * time.Second,
			AITimeout:       time.Duration(envInt("AI_TIMEOUT_SECONDS", 60)) * time.Second,
			RefreshInterval: time.Duration(envInt("REFRESH_INTERVAL_SECONDS", 300)) * time.Second,
		},
		Assistant: AssistantConfig{
			APIKey:  os.Getenv("OPENAI_API_KEY"),
			BaseURL: os.Getenv("OPENAI_BASE_URL"),
			Model:   os.Getenv("OPENAI_MODEL"),
		},
		Store: StoreConfig{
			DBPath:               dbPath,
			NotificationCapacity: envInt("NOTIFICATION_CAPACITY", 50),
		},
		Notifications: notifications,
		HTTP: HTTPConfig{
			Port: envInt("HTTP_PORT", 9876),
		},
		Log: LogConfig{
			Level:  envString("LOG_LEVEL", "info"),
			Pretty: os.Getenv("LOG_PRETTY") == "true",
		},
		Debug:            os.Getenv("DEBUG") == "true",
		notificationsErr: notificationsErr,
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Feed.URL == "" {
		return &ConfigError{Field: "FEED_URL", Message: "required"}
	}
	if c.Feed.SubjectID == "" {
		return &ConfigError{Field: "FEED_SUBJECT_ID", Message: "required"}
	}
	if c.API.BaseURL == "" {
		return &ConfigError{Field: "API_BASE_URL", Message: "required"}
	}
	if c.Feed.RetryDelay <= 0 {
		return &ConfigError{Field: "FEED_RETRY_DELAY_MS", Message: "must be positive"}
	}
	if c.notificationsErr != nil {
		return &ConfigError{Field: "NOTIFICATIONS_CONFIG_PATH", Message: c.notificationsErr.Error()}
	}
	if c.Store.NotificationCapacity <= 0 {
		return &ConfigError{Field: "NOTIFICATION_CAPACITY", Message: "must be positive"}
	}
	return nil
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Field + ": " + e.Message
}

func envString(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func envInt(key string, def int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return def
}
