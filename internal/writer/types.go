package writer

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Config holds Journal configuration.
type Config struct {
	// BatchSize is the number of rows to accumulate before flushing.
	BatchSize int

	// FlushInterval is the maximum time between flushes.
	FlushInterval time.Duration

	// BufferSize is the maximum number of rows held in memory. Rows beyond
	// it are dropped and counted.
	BufferSize int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		BatchSize:     500,
		FlushInterval: time.Second,
		BufferSize:    100000,
	}
}

// VIRow is one journaled VI event.
type VIRow struct {
	ID              uuid.UUID
	SessionID       uuid.UUID
	Code            string
	Exchange        string
	Status          int
	Action          string
	TriggerPrice    decimal.Decimal
	StaticRefPrice  decimal.Decimal
	DynamicRefPrice decimal.Decimal
	TriggerTime     string
	ReceivedAt      time.Time
}

// TickRow is one journaled tick.
type TickRow struct {
	ID         uuid.UUID
	SessionID  uuid.UUID
	Code       string
	TrCd       string
	Price      decimal.Decimal
	Change     decimal.Decimal
	ChangeRate decimal.Decimal
	Volume     decimal.Decimal
	Value      decimal.Decimal
	Bid        decimal.Decimal
	Offer      decimal.Decimal
	ExecTime   string
	VIStatus   int
	ReceivedAt time.Time
}

// Store persists journal rows.
type Store interface {
	InsertVIEvents(ctx context.Context, rows []VIRow) error
	InsertTicks(ctx context.Context, rows []TickRow) error
	Close() error
}

// Stats contains journal statistics.
type Stats struct {
	VIRows  int64      `json:"vi_rows"`
	Ticks   int64      `json:"ticks"`
	Errors  int64      `json:"errors"`
	Flushes int64      `json:"flushes"`
	Queue   QueueStats `json:"queue"`
}

// entry is a queued row. Exactly one field is set.
type entry struct {
	vi   *VIRow
	tick *TickRow
}
