package writer

import (
	"context"
	"database/sql"
	"fmt"
)

// SQLiteStore writes journal rows to a SQLite database in one transaction
// per batch.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore wraps an open database. Close closes it.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// InsertVIEvents inserts rows, ignoring duplicate IDs.
func (s *SQLiteStore) InsertVIEvents(ctx context.Context, rows []VIRow) error {
	if len(rows) == 0 {
		return nil
	}
	return s.inTx(ctx, `
		INSERT OR IGNORE INTO vi_events (id, session_id, code, exchange, status, action,
			trigger_price, static_ref_price, dynamic_ref_price, trigger_time, received_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, func(stmt *sql.Stmt) error {
		for _, r := range rows {
			_, err := stmt.ExecContext(ctx, r.ID.String(), r.SessionID.String(), r.Code, r.Exchange,
				r.Status, r.Action, r.TriggerPrice.String(), r.StaticRefPrice.String(),
				r.DynamicRefPrice.String(), r.TriggerTime, r.ReceivedAt.UnixMicro())
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// InsertTicks inserts rows, ignoring duplicate IDs.
func (s *SQLiteStore) InsertTicks(ctx context.Context, rows []TickRow) error {
	if len(rows) == 0 {
		return nil
	}
	return s.inTx(ctx, `
		INSERT OR IGNORE INTO ticks (id, session_id, code, tr_cd, price, change, change_rate,
			volume, value, bid, offer, exec_time, vi_status, received_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, func(stmt *sql.Stmt) error {
		for _, r := range rows {
			_, err := stmt.ExecContext(ctx, r.ID.String(), r.SessionID.String(), r.Code, r.TrCd,
				r.Price.String(), r.Change.String(), r.ChangeRate.String(), r.Volume.String(),
				r.Value.String(), r.Bid.String(), r.Offer.String(), r.ExecTime, r.VIStatus,
				r.ReceivedAt.UnixMicro())
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *SQLiteStore) inTx(ctx context.Context, query string, exec func(*sql.Stmt) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	if err := exec(stmt); err != nil {
		return fmt.Errorf("insert: %w", err)
	}
	return tx.Commit()
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
