package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config represents the main application configuration structure
// containing all configuration sections
type Config struct {
	Server        ServerConfig        `toml:"server"`        // Local front-end host settings
	Speech        SpeechConfig        `toml:"speech"`        // Remote speech-to-text service settings
	TTS           TTSConfig           `toml:"tts"`           // Remote text-to-speech service settings
	Logging       LoggingConfig       `toml:"logging"`       // Application logging settings
	Storage       StorageConfig       `toml:"storage"`       // History/settings persistence settings
	Notifications NotificationsConfig `toml:"notifications"` // Notification lifetime settings
}

// ServerConfig contains settings for the local HTTP server that hosts
// the front-end assets and the backend-for-frontend API
type ServerConfig struct {
	Port               int      `toml:"port"`                  // Primary HTTP port for the server
	Host               string   `toml:"host"`                  // Host address to bind to (e.g., 127.0.0.1 for localhost only)
	CORSAllowedOrigins []string `toml:"cors_allowed_origins"`  // List of origins allowed for CORS requests (use ["*"] for all origins)
	ReadTimeoutSecs    int      `toml:"read_timeout_seconds"`  // Maximum duration for reading the entire request (0 = no timeout)
	WriteTimeoutSecs   int      `toml:"write_timeout_seconds"` // Maximum duration for writing the response (0 = no timeout, required for audio streaming)
	IdleTimeoutSecs    int      `toml:"idle_timeout_seconds"`  // Maximum duration to wait for the next request when keep-alives are enabled
	AdditionalPorts    []int    `toml:"additional_ports"`      // Additional HTTP ports to listen on
	StaticFilesDir     string   `toml:"static_files_dir"`      // Directory to serve front-end assets from (e.g., "www")
}

// SpeechConfig contains settings for the remote transcription service
type SpeechConfig struct {
	BaseURL               string `toml:"base_url"`                // Base URL of the speech service (e.g., http://localhost:8080)
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"` // Per-request timeout when the caller supplies no deadline (default 300)
	DefaultLanguage       string `toml:"default_language"`        // Language code used when a submission carries none (e.g., "en", "auto")
	DefaultResponseFormat string `toml:"default_response_format"` // Response format used when a submission carries none (e.g., "json")
}

// TTSConfig contains settings for the remote text-to-speech service
type TTSConfig struct {
	BaseURL               string `toml:"base_url"`                // Base URL of the TTS service
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"` // Per-request timeout (streaming calls should keep this generous)
	MaxTextLength         int    `toml:"max_text_length"`         // Maximum input text length in characters (default 4000)
}

// LoggingConfig contains application logging configuration
type LoggingConfig struct {
	Level  string `toml:"level"`  // Log level: "debug", "info", "warn", or "error"
	Format string `toml:"format"` // Log format: "json" (structured) or "console" (human-readable)
}

// StorageConfig contains history/settings persistence configuration
type StorageConfig struct {
	SQLitePath    string `toml:"sqlite_path"`     // Path to the SQLite database file (e.g., "data/voxdeck.db")
	MaxHistoryAPI int    `toml:"max_history_api"` // Maximum number of history entries to return in the /ui/history response
}

// NotificationsConfig contains notification lifetime configuration
type NotificationsConfig struct {
	DefaultDurationMs int `toml:"default_duration_ms"` // Auto-dismiss delay for non-persistent notifications (default 5000)
}

// Load loads the configuration from the specified file path
func Load(path string) (*Config, error) {
	var config Config

	// Check if the file exists
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	// Read the config file
	if _, err := toml.DecodeFile(path, &config); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	config.applyDefaults()

	return &config, nil
}

// LoadWithFallback loads the configuration by checking multiple locations in order of preference
func LoadWithFallback(preferredPath string) (*Config, error) {
	// List of paths to check in order of preference
	searchPaths := []string{
		preferredPath,          // User-specified path (if provided)
		"configs/voxdeck.toml", // configs/ folder
		"voxdeck.toml",         // Root directory
	}

	// Remove duplicates while preserving order
	uniquePaths := make([]string, 0, len(searchPaths))
	seen := make(map[string]bool)
	for _, path := range searchPaths {
		if path != "" && !seen[path] {
			uniquePaths = append(uniquePaths, path)
			seen[path] = true
		}
	}

	var lastErr error
	for _, path := range uniquePaths {
		if _, err := os.Stat(path); err == nil {
			// File exists, try to load it
			config, err := Load(path)
			if err != nil {
				lastErr = fmt.Errorf("failed to load config from %s: %w", path, err)
				continue
			}
			return config, nil
		}
		lastErr = fmt.Errorf("config file not found: %s", path)
	}

	return nil, fmt.Errorf("config file not found in any of the expected locations: %v. Last error: %w", uniquePaths, lastErr)
}

// applyDefaults fills in defaults for settings that were omitted from the file
func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8090
	}
	if c.Server.Host == "" {
		c.Server.Host = "127.0.0.1"
	}
	if c.Server.StaticFilesDir == "" {
		c.Server.StaticFilesDir = "www"
	}
	if c.Speech.RequestTimeoutSeconds == 0 {
		c.Speech.RequestTimeoutSeconds = 300
	}
	if c.TTS.RequestTimeoutSeconds == 0 {
		c.TTS.RequestTimeoutSeconds = 300
	}
	if c.TTS.MaxTextLength == 0 {
		c.TTS.MaxTextLength = 4000
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Storage.SQLitePath == "" {
		c.Storage.SQLitePath = "data/voxdeck.db"
	}
	if c.Storage.MaxHistoryAPI == 0 {
		c.Storage.MaxHistoryAPI = 100
	}
	if c.Notifications.DefaultDurationMs == 0 {
		c.Notifications.DefaultDurationMs = 5000
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	for _, port := range c.Server.AdditionalPorts {
		if port <= 0 || port > 65535 {
			return fmt.Errorf("invalid additional server port: %d", port)
		}
	}

	if c.Speech.BaseURL == "" {
		return fmt.Errorf("speech.base_url is required")
	}
	if !strings.HasPrefix(c.Speech.BaseURL, "http://") && !strings.HasPrefix(c.Speech.BaseURL, "https://") {
		return fmt.Errorf("speech.base_url must start with http:// or https://: %s", c.Speech.BaseURL)
	}

	if c.TTS.BaseURL != "" &&
		!strings.HasPrefix(c.TTS.BaseURL, "http://") && !strings.HasPrefix(c.TTS.BaseURL, "https://") {
		return fmt.Errorf("tts.base_url must start with http:// or https://: %s", c.TTS.BaseURL)
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid logging level: %s", c.Logging.Level)
	}

	return nil
}
