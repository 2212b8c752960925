package socket

import "time"

const (
	DefaultHeartbeatInterval    = 30 * time.Second
	DefaultReconnectBaseDelay   = 3 * time.Second
	DefaultMaxReconnectAttempts = 5
	DefaultHandshakeTimeout     = 10 * time.Second
)

// Config holds the settings of a real-time transport client.
type Config struct {
	// BaseURL is the ws:// or wss:// origin of the backend, without a path.
	BaseURL string

	// HeartbeatInterval is the period of outbound {"type":"ping"} frames.
	HeartbeatInterval time.Duration

	// ReconnectBaseDelay is multiplied by the attempt number to get the
	// delay before each reconnect attempt.
	ReconnectBaseDelay time.Duration

	MaxReconnectAttempts int
	HandshakeTimeout     time.Duration
}

// NewConfig returns a Config with default values.
func NewConfig() *Config {
	return &Config{
		BaseURL:              "ws://localhost:8000",
		HeartbeatInterval:    DefaultHeartbeatInterval,
		ReconnectBaseDelay:   DefaultReconnectBaseDelay,
		MaxReconnectAttempts: DefaultMaxReconnectAttempts,
		HandshakeTimeout:     DefaultHandshakeTimeout,
	}
}

func (c *Config) setDefaults() {
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if c.ReconnectBaseDelay <= 0 {
		c.ReconnectBaseDelay = DefaultReconnectBaseDelay
	}
	if c.MaxReconnectAttempts <= 0 {
		c.MaxReconnectAttempts = DefaultMaxReconnectAttempts
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = DefaultHandshakeTimeout
	}
}
