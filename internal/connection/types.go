package connection

import (
	"encoding/json"
	"errors"
	"time"
)

// Errors
var (
	ErrNotConnected       = errors.New("not connected")
	ErrAlreadyClosed      = errors.New("already closed")
	ErrMissingToken       = errors.New("auth token required")
	ErrReconnectExhausted = errors.New("reconnect attempts exhausted")
)

// State is the externally visible connection state snapshot.
// Invariant: Authenticated implies Connected.
type State struct {
	Connected        bool
	Authenticated    bool
	Reconnecting     bool
	LastConnectedAt  time.Time // zero until the first successful open
	LastError        string
	ConnectedClients int
}

// TimestampedMessage wraps raw message data with receive timestamp.
type TimestampedMessage struct {
	Data       []byte    // Raw message bytes from WebSocket
	ReceivedAt time.Time // Local timestamp when ReadMessage() returned
}

// authenticateMsg is the outbound handshake sent right after the
// transport opens.
type authenticateMsg struct {
	Type     string   `json:"type"`
	Token    string   `json:"token"`
	UserInfo userInfo `json:"userInfo"`
}

type userInfo struct {
	Name      string `json:"name"`
	Page      string `json:"page"`
	UserAgent string `json:"userAgent"`
	ClientID  string `json:"clientId"`
}

// pingMsg is the periodic application-level liveness ping.
type pingMsg struct {
	Type string `json:"type"`
}

// messageEnvelope is used for fast type extraction on inbound messages.
type messageEnvelope struct {
	Type string `json:"type"`
}

// authenticatedWire is the server's reply to a successful handshake.
type authenticatedWire struct {
	Type             string            `json:"type"`
	ConnectedClients []json.RawMessage `json:"connectedClients"`
}

// authErrorWire is the server's reply to a rejected handshake.
type authErrorWire struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// heartbeatWire carries server-side telemetry on heartbeat messages.
type heartbeatWire struct {
	Type        string `json:"type"`
	ServerStats struct {
		ConnectedClients int `json:"connectedClients"`
	} `json:"serverStats"`
}

// EndpointResolver derives the push endpoint from the current host
// context. Called at connect time and on the periodic endpoint check.
type EndpointResolver func() (string, error)

// ClientConfig configures a WebSocket client.
type ClientConfig struct {
	URL          string        // WebSocket URL (e.g., wss://shop.example.com/ws)
	WriteTimeout time.Duration // Write deadline for sends
	BufferSize   int           // Message channel buffer size
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		WriteTimeout: 5 * time.Second,
		BufferSize:   256,
	}
}

// ManagerConfig configures the Connection Manager.
type ManagerConfig struct {
	Endpoint   string           // Static endpoint, used when Resolver is nil
	Resolver   EndpointResolver // Dynamic endpoint resolution
	Token      string           // Auth token for the handshake
	ClientName string           // Display name sent in the handshake
	ClientPage string           // Current page sent in the handshake
	UserAgent  string           // User agent sent in the handshake

	ReconnectBaseDelay    time.Duration // First reconnect delay
	ReconnectMaxDelay     time.Duration // Backoff cap
	MaxReconnectAttempts  int           // Retry ceiling before giving up
	HeartbeatInterval     time.Duration // Application-level ping cadence
	EndpointCheckInterval time.Duration // Endpoint re-resolution cadence
	WriteTimeout          time.Duration // Transport write deadline
	BufferSize            int           // Transport message buffer size
}

// DefaultManagerConfig returns sensible defaults.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		ReconnectBaseDelay:    1 * time.Second,
		ReconnectMaxDelay:     30 * time.Second,
		MaxReconnectAttempts:  10,
		HeartbeatInterval:     30 * time.Second,
		EndpointCheckInterval: 60 * time.Second,
		WriteTimeout:          5 * time.Second,
		BufferSize:            256,
	}
}
