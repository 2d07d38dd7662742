package writer

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore writes journal rows to PostgreSQL using pgx batches.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore wraps an open pool. Close closes the pool.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// InsertVIEvents inserts rows with ON CONFLICT DO NOTHING on the row ID.
func (s *PostgresStore) InsertVIEvents(ctx context.Context, rows []VIRow) error {
	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(`
			INSERT INTO vi_events (id, session_id, code, exchange, status, action,
				trigger_price, static_ref_price, dynamic_ref_price, trigger_time, received_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			ON CONFLICT (id) DO NOTHING
		`, r.ID, r.SessionID, r.Code, r.Exchange, r.Status, r.Action,
			r.TriggerPrice, r.StaticRefPrice, r.DynamicRefPrice, r.TriggerTime, r.ReceivedAt)
	}
	return s.send(ctx, batch, len(rows))
}

// InsertTicks inserts rows with ON CONFLICT DO NOTHING on the row ID.
func (s *PostgresStore) InsertTicks(ctx context.Context, rows []TickRow) error {
	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(`
			INSERT INTO ticks (id, session_id, code, tr_cd, price, change, change_rate,
				volume, value, bid, offer, exec_time, vi_status, received_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
			ON CONFLICT (id) DO NOTHING
		`, r.ID, r.SessionID, r.Code, r.TrCd, r.Price, r.Change, r.ChangeRate,
			r.Volume, r.Value, r.Bid, r.Offer, r.ExecTime, r.VIStatus, r.ReceivedAt)
	}
	return s.send(ctx, batch, len(rows))
}

func (s *PostgresStore) send(ctx context.Context, batch *pgx.Batch, n int) error {
	if n == 0 {
		return nil
	}
	results := s.db.SendBatch(ctx, batch)
	defer results.Close()

	for i := range n {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("batch row %d: %w", i, err)
		}
	}
	return nil
}

// Close closes the pool.
func (s *PostgresStore) Close() error {
	s.db.Close()
	return nil
}
