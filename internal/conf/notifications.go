package conf

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// NotificationsConfig contains per-kind notification templates loaded from YAML
type NotificationsConfig struct {
	Templates map[string]NotificationTemplate `yaml:"templates"`
}

// NotificationTemplate is the text/template source for one event kind
type NotificationTemplate struct {
	Title   string `yaml:"title"`
	Message string `yaml:"message"`
}

// LoadNotificationsConfig loads notification templates from a YAML file.
// Without an explicit path it searches the usual locations and returns an
// empty config when nothing is found, so the built-in templates apply.
func LoadNotificationsConfig(configPath string) (*NotificationsConfig, error) {
	paths := []string{configPath}
	if configPath == "" {
		paths = []string{
			"configs/notifications.yaml",
			"/etc/livefeed/notifications.yaml",
		}
		if execPath, err := os.Executable(); err == nil {
			paths = append(paths, filepath.Join(filepath.Dir(execPath), "configs", "notifications.yaml"))
		}
	}

	var data []byte
	var loadedPath string
	for _, p := range paths {
		if b, err := os.ReadFile(p); err == nil {
			data = b
			loadedPath = p
			break
		}
	}

	if data == nil {
		if configPath != "" {
			return nil, fmt.Errorf("failed to read %s", configPath)
		}
		return &NotificationsConfig{}, nil
	}

	var config NotificationsConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", loadedPath, err)
	}
	if config.Templates == nil {
		config.Templates = map[string]NotificationTemplate{}
	}
	return &config, nil
}
