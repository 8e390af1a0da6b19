package config

import (
	"fmt"
	"os"
	"strings"
)

// Config holds all client configuration.
// We use a struct (not globals) so it's testable and explicit.
type Config struct {
	// Remote service
	APIBaseURL string // e.g., "https://api.liberty.social"
	SocketURL  string // e.g., "wss://api.liberty.social/ws/notifications/"

	// Credential (bearer token). Usually obtained via login rather than env,
	// but settable for scripted sessions.
	Token string

	// WebRTC / ICE
	STUNURLs     []string
	TURNURLs     []string
	TURNUsername string
	TURNPassword string
}

// Load reads configuration from environment variables.
// In CI these come from the host, in dev from .env via direnv or similar.
func Load() (*Config, error) {
	cfg := &Config{
		APIBaseURL: getEnvOrDefault("LIBERTY_API_URL", "http://localhost:8000"),
		SocketURL:  os.Getenv("LIBERTY_WS_URL"),
		Token:      os.Getenv("LIBERTY_TOKEN"),
	}

	if cfg.SocketURL == "" {
		cfg.SocketURL = deriveSocketURL(cfg.APIBaseURL)
	}

	cfg.STUNURLs = splitEnv("LIBERTY_STUN_URLS", "stun:stun.l.google.com:19302")
	cfg.TURNURLs = splitEnv("LIBERTY_TURN_URLS", "")
	cfg.TURNUsername = os.Getenv("LIBERTY_TURN_USERNAME")
	cfg.TURNPassword = os.Getenv("LIBERTY_TURN_PASSWORD")

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.APIBaseURL == "" {
		return fmt.Errorf("LIBERTY_API_URL is required")
	}
	if !strings.HasPrefix(c.SocketURL, "ws://") && !strings.HasPrefix(c.SocketURL, "wss://") {
		return fmt.Errorf("socket URL must use ws:// or wss://, got %q", c.SocketURL)
	}
	return nil
}

// deriveSocketURL maps the API base URL to the notification socket endpoint.
func deriveSocketURL(apiBase string) string {
	ws := apiBase
	switch {
	case strings.HasPrefix(ws, "https://"):
		ws = "wss://" + strings.TrimPrefix(ws, "https://")
	case strings.HasPrefix(ws, "http://"):
		ws = "ws://" + strings.TrimPrefix(ws, "http://")
	}
	return strings.TrimRight(ws, "/") + "/ws/notifications/"
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// splitEnv splits a comma-separated env var into a slice
func splitEnv(key, defaultVal string) []string {
	val := os.Getenv(key)
	if val == "" {
		val = defaultVal
	}
	if val == "" {
		return nil
	}
	parts := strings.Split(val, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
