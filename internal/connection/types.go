package connection

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Errors
var (
	ErrNotConnected    = errors.New("not connected")
	ErrStaleConnection = errors.New("connection stale (no ping)")
	ErrAlreadyClosed   = errors.New("already closed")
)

// TimestampedMessage wraps raw message data with receive timestamp.
type TimestampedMessage struct {
	Data       []byte    // Raw message bytes from WebSocket
	ReceivedAt time.Time // Local timestamp when ReadMessage() returned
}

// Frame is a raw inbound message handed to the Handler.
type Frame struct {
	Data       []byte
	ReceivedAt time.Time
	SessionID  uuid.UUID
}

// Session identifies one established connection.
type Session struct {
	ID          uuid.UUID
	Reconnect   bool // false only for the first session of a Run
	ConnectedAt time.Time
}

// Handler consumes the stream. Both methods are called from the Run
// goroutine, never concurrently with each other.
type Handler interface {
	// OnConnected runs before any frame of the session is delivered. An
	// error ends the session and triggers a reconnect.
	OnConnected(ctx context.Context, s Session) error

	// OnFrame processes one inbound frame.
	OnFrame(f Frame)
}

// State is the Manager's connection state.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "disconnected"
	}
}

// Status is a snapshot of the Manager.
type Status struct {
	State       string    `json:"state"`
	SessionID   string    `json:"session_id,omitempty"`
	ConnectedAt time.Time `json:"connected_at,omitzero"`
	Reconnects  int       `json:"reconnects"`
	LastError   string    `json:"last_error,omitempty"`
}

// ClientConfig configures a WebSocket client.
type ClientConfig struct {
	URL                string        // WebSocket URL (e.g., wss://openapi.ls-sec.co.kr:9443/websocket)
	InsecureSkipVerify bool          // Skip TLS certificate verification (provider uses a self-signed endpoint)
	HandshakeTimeout   time.Duration // Dial + upgrade timeout
	WriteTimeout       time.Duration // Write deadline for sends
	PingInterval       time.Duration // Keepalive ping interval (0 = no pings)
	PingTimeout        time.Duration // Max time without ping/pong before considering connection stale (0 = never)
	BufferSize         int           // Message channel buffer size
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		InsecureSkipVerify: true,
		HandshakeTimeout:   10 * time.Second,
		WriteTimeout:       5 * time.Second,
		PingInterval:       30 * time.Second,
		BufferSize:         1000,
	}
}

// ManagerConfig configures the Connection Manager.
type ManagerConfig struct {
	Client         ClientConfig
	ReconnectDelay time.Duration // Fixed wait between connection attempts
}

// DefaultManagerConfig returns sensible defaults.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		Client:         DefaultClientConfig(),
		ReconnectDelay: 5 * time.Second,
	}
}
