package dispatcher

import (
	"time"

	"github.com/google/uuid"

	"github.com/rickgao/vi-monitor/internal/protocol"
	"github.com/rickgao/vi-monitor/internal/registry"
)

// Config holds Dispatcher configuration.
type Config struct {
	GracePeriod time.Duration // Delay between a VI release and the unsubscribe check
}

// DefaultConfig returns default configuration.
func DefaultConfig() Config {
	return Config{GracePeriod: 60 * time.Second}
}

// Sender writes an encoded command to the stream.
type Sender interface {
	Send(data []byte) error
}

// VIUpdate is a decoded VI event together with the state change it caused.
type VIUpdate struct {
	Event      protocol.VIEvent
	Transition registry.Transition
	SessionID  uuid.UUID
	ReceivedAt time.Time
}

// TickUpdate is a forwarded tick together with the instrument's record.
type TickUpdate struct {
	Event      protocol.TickEvent
	Record     registry.Record
	SessionID  uuid.UUID
	ReceivedAt time.Time
}

// Sink receives dispatched events. Calls are made from the dispatch loop
// and must not block.
type Sink interface {
	OnVI(u VIUpdate)
	OnTick(u TickUpdate)
}

// Stats contains runtime statistics.
type Stats struct {
	FramesReceived int64 `json:"frames_received"`
	DecodeErrors   int64 `json:"decode_errors"`
	Acks           int64 `json:"acks"`
	Ignored        int64 `json:"ignored"`
	VIEvents       int64 `json:"vi_events"`
	Subscribes     int64 `json:"subscribes"`
	Releases       int64 `json:"releases"`
	TicksForwarded int64 `json:"ticks_forwarded"`
	TicksDropped   int64 `json:"ticks_dropped"`
	Unsubscribes   int64 `json:"unsubscribes"`
	Superseded     int64 `json:"superseded"`
	SendErrors     int64 `json:"send_errors"`
}
