package registry

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/rickgao/vi-monitor/internal/protocol"
)

// Action is the side effect a transition asks the caller to perform.
type Action int

const (
	// ActionNone means no state changed (idle release, unrecognized status).
	ActionNone Action = iota
	// ActionSubscribe means Idle -> Active; a tick subscribe must be sent.
	ActionSubscribe
	// ActionRefresh means Active -> Active; fields were refreshed in place.
	ActionRefresh
	// ActionRelease means Active -> Idle; a deferred cancellation must be armed.
	ActionRelease
)

func (a Action) String() string {
	switch a {
	case ActionSubscribe:
		return "subscribe"
	case ActionRefresh:
		return "refresh"
	case ActionRelease:
		return "release"
	default:
		return "none"
	}
}

// Record is the subscription record of an active instrument.
type Record struct {
	Instrument      protocol.Instrument `json:"instrument"`
	Status          protocol.VIStatus   `json:"status"`
	TriggerPrice    decimal.Decimal     `json:"trigger_price"`
	StaticRefPrice  decimal.Decimal     `json:"static_ref_price"`
	DynamicRefPrice decimal.Decimal     `json:"dynamic_ref_price"`
	TriggerTime     string              `json:"trigger_time"`
	SubscribedAt    time.Time           `json:"subscribed_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
}

// Transition is the result of applying a VI event.
type Transition struct {
	Action Action
	// Record is the record after the transition. For ActionRelease it is the
	// record that was removed, so callers can use its exchange.
	Record Record
	// Previous is the status before the event. Zero when the instrument was idle.
	Previous protocol.VIStatus
	// WasActive reports whether a record existed before the event.
	WasActive bool
}
