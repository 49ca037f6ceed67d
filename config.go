package livesession

import (
	"fmt"
	"net/url"
	"os"
	"strings"
)

// Config holds the configuration for a live session.
type Config struct {
	// URL is the WebSocket URL of the STOMP endpoint.
	// Fallback: LIVESESSION_URL environment variable.
	URL string

	// SessionKey identifies the live session, e.g. a quiz join code.
	// Fallback: LIVESESSION_KEY environment variable.
	SessionKey string

	// Token is the bearer credential sent in the CONNECT frame.
	// Fallback: LIVESESSION_TOKEN environment variable.
	Token string
}

// resolveConfig fills empty fields from environment variables and validates required fields.
func resolveConfig(cfg Config) (Config, error) {
	if cfg.URL == "" {
		cfg.URL = os.Getenv("LIVESESSION_URL")
	}
	if cfg.SessionKey == "" {
		cfg.SessionKey = os.Getenv("LIVESESSION_KEY")
	}
	if cfg.Token == "" {
		cfg.Token = os.Getenv("LIVESESSION_TOKEN")
	}
	return cfg, validateConfig(cfg)
}

func validateConfig(cfg Config) error {
	if cfg.URL == "" {
		return fmt.Errorf("URL is required (set in Config or LIVESESSION_URL env)")
	}
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return fmt.Errorf("parse URL: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("URL scheme must be ws or wss, got %q", u.Scheme)
	}
	if cfg.SessionKey == "" {
		return fmt.Errorf("SessionKey is required (set in Config or LIVESESSION_KEY env)")
	}
	if strings.Contains(cfg.SessionKey, "/") {
		return fmt.Errorf("SessionKey must not contain '/', got %q", cfg.SessionKey)
	}
	if cfg.Token == "" {
		return fmt.Errorf("Token is required (set in Config or LIVESESSION_TOKEN env)")
	}
	if strings.ContainsAny(cfg.Token, "\r\n") {
		return fmt.Errorf("Token must not contain line breaks")
	}
	return nil
}

// TopicDestination returns the server-to-client feed for stream, e.g.
// /topic/session/ABC123/participants.
func TopicDestination(key, stream string) string {
	return "/topic/session/" + key + "/" + stream
}

// AppDestination returns the client-to-server address for action, e.g.
// /app/session/ABC123/answer.
func AppDestination(key, action string) string {
	return "/app/session/" + key + "/" + action
}
