// Package server provides configuration helpers that define runtime defaults,
// validation, and file/environment loading for the auction chat relay.
package server

import (
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/Tyrowin/auction-relay/internal/history"
)

// Broadcast scopes.
const (
	// ScopeAll delivers every chat message to every open connection and
	// leaves room filtering to the receiving UI.
	ScopeAll = "all"
	// ScopeRoom delivers a chat message only to connections whose last join
	// named the message's auction.
	ScopeRoom = "room"
)

const (
	defaultPort           = 3001
	defaultMaxMessageSize = 64 * 1024
	defaultSendBuffer     = 256
)

// Config holds the relay settings.
type Config struct {
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	MaxMessageSize int64    `yaml:"max_message_size"`
	HistoryLimit   int      `yaml:"history_limit"`
	SendBuffer     int      `yaml:"send_buffer"`
	BroadcastScope string   `yaml:"broadcast_scope"`
	LogLevel       string   `yaml:"log_level"`
	LogFormat      string   `yaml:"log_format"`
}

// NewConfig creates a Config populated with default values for all settings.
func NewConfig() *Config {
	return &Config{
		Port:           defaultPort,
		AllowedOrigins: []string{"*"},
		MaxMessageSize: defaultMaxMessageSize,
		HistoryLimit:   history.DefaultLimit,
		SendBuffer:     defaultSendBuffer,
		BroadcastScope: ScopeAll,
		LogLevel:       "info",
		LogFormat:      "json",
	}
}

// Addr returns the listen address for the configured port.
func (c *Config) Addr() string {
	return ":" + strconv.Itoa(c.Port)
}

// LoadFile overlays the YAML document at path onto c. Keys missing from the
// file keep their current values.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "read config %s", path)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return errors.Wrapf(err, "parse config %s", path)
	}
	return nil
}

// ApplyEnv overlays environment variables onto c. Unparseable numeric
// values are ignored.
func (c *Config) ApplyEnv() {
	c.applyEnv(os.Getenv)
}

func (c *Config) applyEnv(getenv func(string) string) {
	if port := getenv("PORT"); port != "" {
		c.Port = parseIntValue(port, c.Port)
	}

	if origins := getenv("ALLOWED_ORIGINS"); origins != "" {
		c.AllowedOrigins = parseOrigins(origins)
	}

	if maxSize := getenv("MAX_MESSAGE_SIZE"); maxSize != "" {
		c.MaxMessageSize = parseMaxMessageSize(maxSize, c.MaxMessageSize)
	}

	if limit := getenv("HISTORY_LIMIT"); limit != "" {
		c.HistoryLimit = parseIntValue(limit, c.HistoryLimit)
	}

	if buf := getenv("SEND_BUFFER"); buf != "" {
		c.SendBuffer = parseIntValue(buf, c.SendBuffer)
	}

	if scope := getenv("BROADCAST_SCOPE"); scope != "" {
		c.BroadcastScope = scope
	}

	if level := getenv("LOG_LEVEL"); level != "" {
		c.LogLevel = level
	}

	if format := getenv("LOG_FORMAT"); format != "" {
		c.LogFormat = format
	}
}

// Sanitize replaces out-of-range values with defaults and normalizes the
// broadcast scope.
func (c *Config) Sanitize() {
	if c.Port <= 0 || c.Port > 65535 {
		c.Port = defaultPort
	}

	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = defaultMaxMessageSize
	}

	if c.HistoryLimit <= 0 {
		c.HistoryLimit = history.DefaultLimit
	}

	if c.SendBuffer <= 0 {
		c.SendBuffer = defaultSendBuffer
	}

	switch scope := strings.ToLower(strings.TrimSpace(c.BroadcastScope)); scope {
	case ScopeRoom:
		c.BroadcastScope = ScopeRoom
	default:
		c.BroadcastScope = ScopeAll
	}
}

// ParseOrigins splits a comma separated origin list.
func ParseOrigins(origins string) []string {
	return parseOrigins(origins)
}

func parseOrigins(origins string) []string {
	parts := strings.Split(origins, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func parseMaxMessageSize(value string, defaultValue int64) int64 {
	if size, err := strconv.ParseInt(value, 10, 64); err == nil && size > 0 {
		return size
	}
	return defaultValue
}

func parseIntValue(value string, defaultValue int) int {
	if parsed, err := strconv.Atoi(strings.TrimSpace(value)); err == nil && parsed > 0 {
		return parsed
	}
	return defaultValue
}
