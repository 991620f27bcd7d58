// Package config loads and exposes application configuration (TOML).
package config

import (
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

// Default configuration values used when a field is missing in TOML.
const (
	DefaultConfigPath         = "config.toml"
	DefaultHTTPAddr           = ":8080"
	DefaultPGHost             = "127.0.0.1"
	DefaultPGPort             = 5432
	DefaultPGUser             = "postgres"
	DefaultPGDatabase         = "forumgram"
	DefaultPGSSLMode          = "disable"
	DefaultSendTimeoutSeconds = 5
	DefaultForumTimeoutSecs   = 10
)

// Config is the root application configuration loaded from TOML.
type Config struct {
	Log      LogConfig      `toml:"log"`
	Server   ServerConfig   `toml:"server"`
	Access   AccessConfig   `toml:"access"`
	Telegram TelegramConfig `toml:"telegram"`
	Forum    ForumConfig    `toml:"forum"`
	Postgres PostgresConfig `toml:"postgres"`
}

// LogConfig holds logging level and format (e.g. level=info, format=text).
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// ServerConfig holds the HTTP server listen address.
type ServerConfig struct {
	Addr string `toml:"addr"`
}

// AccessConfig holds the shared API token and the caller IP allow-list
// (comma-separated exact-match addresses).
type AccessConfig struct {
	APIToken    string `toml:"api_token"`
	IPAllowlist string `toml:"ip_allowlist"`
}

// Allowlist returns the parsed allow-list entries with whitespace trimmed
// and empty entries dropped.
func (c AccessConfig) Allowlist() []string {
	parts := strings.Split(c.IPAllowlist, ",")
	entries := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			entries = append(entries, trimmed)
		}
	}
	return entries
}

// TelegramConfig holds the bot credential and outbound send limits.
type TelegramConfig struct {
	BotToken           string `toml:"bot_token"`
	APIEndpoint        string `toml:"api_endpoint"`
	SendTimeoutSeconds int    `toml:"send_timeout_seconds"`
}

// ForumConfig holds the host forum API endpoint and credentials.
type ForumConfig struct {
	BaseURL        string `toml:"base_url"`
	APIKey         string `toml:"api_key"`
	APIUsername    string `toml:"api_username"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	Database string `toml:"database"`
	SSLMode  string `toml:"sslmode"`
}

// Load reads and parses the TOML config file at path and applies default values for missing fields.
func Load(path string) (Config, error) {
	cfg := Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Addr: DefaultHTTPAddr,
		},
		Telegram: TelegramConfig{
			SendTimeoutSeconds: DefaultSendTimeoutSeconds,
		},
		Forum: ForumConfig{
			APIUsername:    "system",
			TimeoutSeconds: DefaultForumTimeoutSecs,
		},
		Postgres: PostgresConfig{
			Host:     DefaultPGHost,
			Port:     DefaultPGPort,
			User:     DefaultPGUser,
			Database: DefaultPGDatabase,
			SSLMode:  DefaultPGSSLMode,
		},
	}

	if path == "" {
		path = DefaultConfigPath
	}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}
