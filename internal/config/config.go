// Package config loads the application configuration from viper.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Veraticus/casa/internal/common"
)

// MaxHistoryTurns bounds how much conversation history is sent upstream.
const MaxHistoryTurns = 5

// Config is the typed application configuration.
type Config struct {
	Logging   LoggingConfig   `mapstructure:"logging"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Remote    RemoteConfig    `mapstructure:"remote"`
	Assistant AssistantConfig `mapstructure:"assistant"`
	Knowledge KnowledgeConfig `mapstructure:"knowledge"`
	Server    ServerConfig    `mapstructure:"server"`
	Sheets    SheetsConfig    `mapstructure:"sheets"`
}

// LoggingConfig selects the slog level and handler.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DatabaseConfig locates the SQLite database.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// RemoteConfig configures the hosted answer, defense and storage functions.
type RemoteConfig struct {
	BaseURL           string        `mapstructure:"base_url"`
	APIKey            string        `mapstructure:"api_key"`
	Bucket            string        `mapstructure:"bucket"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute"`
	Timeout           time.Duration `mapstructure:"timeout"`
}

// AssistantConfig identifies the household and tunes the conversation.
type AssistantConfig struct {
	Domain       string `mapstructure:"domain"`
	HouseholdID  string `mapstructure:"household_id"`
	UserID       string `mapstructure:"user_id"`
	HistoryTurns int    `mapstructure:"history_turns"`
}

// KnowledgeConfig tunes the knowledge cache.
type KnowledgeConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr           string   `mapstructure:"addr"`
	CertDir        string   `mapstructure:"cert_dir"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	// TLSHosts are extra names or IPs, besides localhost, the generated
	// certificate is valid for.
	TLSHosts []string `mapstructure:"tls_hosts"`
	TLS      bool     `mapstructure:"tls"`
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("database.path", "~/.local/share/casa/casa.db")
	v.SetDefault("remote.requests_per_minute", 60)
	v.SetDefault("remote.timeout", 30*time.Second)
	v.SetDefault("remote.bucket", "uploads")
	v.SetDefault("assistant.domain", "geral")
	v.SetDefault("assistant.history_turns", MaxHistoryTurns)
	v.SetDefault("knowledge.ttl", 720*time.Hour)
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:5173"})
	v.SetDefault("server.cert_dir", "~/.config/casa/certs")
	v.SetDefault("sheets.token_file", "~/.config/casa/sheets-token.json")
}

// Load unmarshals v into a Config, expands paths and validates the result.
func Load(v *viper.Viper) (Config, error) {
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %v", common.ErrInvalidConfig, err)
	}

	cfg.Database.Path = ExpandPath(cfg.Database.Path)
	cfg.Sheets.ServiceAccountPath = ExpandPath(cfg.Sheets.ServiceAccountPath)
	cfg.Sheets.TokenFile = ExpandPath(cfg.Sheets.TokenFile)
	cfg.Server.CertDir = ExpandPath(cfg.Server.CertDir)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports ErrInvalidConfig for out-of-range values.
func (c Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("%w: database.path is required", common.ErrInvalidConfig)
	}
	if c.Remote.RequestsPerMinute < 0 {
		return fmt.Errorf("%w: remote.requests_per_minute cannot be negative", common.ErrInvalidConfig)
	}
	if c.Remote.Timeout < 0 {
		return fmt.Errorf("%w: remote.timeout cannot be negative", common.ErrInvalidConfig)
	}
	if c.Assistant.HistoryTurns < 0 || c.Assistant.HistoryTurns > MaxHistoryTurns {
		return fmt.Errorf("%w: assistant.history_turns must be between 0 and %d", common.ErrInvalidConfig, MaxHistoryTurns)
	}
	if c.Knowledge.TTL <= 0 {
		return fmt.Errorf("%w: knowledge.ttl must be positive", common.ErrInvalidConfig)
	}
	if c.Server.Addr == "" {
		return fmt.Errorf("%w: server.addr is required", common.ErrInvalidConfig)
	}
	if c.Server.TLS && c.Server.CertDir == "" {
		return fmt.Errorf("%w: server.cert_dir is required when server.tls is on", common.ErrInvalidConfig)
	}
	return nil
}

// RequireRemote reports ErrMissingConfig when the remote functions are not configured.
func (c Config) RequireRemote() error {
	if c.Remote.BaseURL == "" {
		return fmt.Errorf("%w: remote.base_url (or CASA_REMOTE_BASE_URL)", common.ErrMissingConfig)
	}
	return nil
}

// RequireIdentity reports ErrMissingConfig when no household or user is configured.
func (c Config) RequireIdentity() error {
	if c.Assistant.HouseholdID == "" || c.Assistant.UserID == "" {
		return common.NewUserError("Defina a casa e o usuário em assistant.household_id e assistant.user_id.",
			fmt.Errorf("%w: assistant.household_id and assistant.user_id", common.ErrMissingConfig))
	}
	return nil
}

// ExpandPath resolves a leading ~ to the home directory and then expands
// $VARS. Paths are returned unchanged when the home directory is unknown.
func ExpandPath(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, strings.TrimPrefix(path[1:], "/"))
		}
	}
	return os.ExpandEnv(path)
}
