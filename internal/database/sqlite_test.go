package database

import (
	"context"
	"path/filepath"
	"testing"
)

func TestOpenSQLiteMigrate(t *testing.T) {
	ctx := context.Background()
	db, err := OpenSQLite(ctx, filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("OpenSQLite() error = %v", err)
	}
	defer db.Close()

	if err := MigrateSQLite(ctx, db); err != nil {
		t.Fatalf("MigrateSQLite() error = %v", err)
	}
	// Idempotent.
	if err := MigrateSQLite(ctx, db); err != nil {
		t.Fatalf("second MigrateSQLite() error = %v", err)
	}

	for _, table := range []string{TableVIEvents, TableTicks} {
		var n int
		err := db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&n)
		if err != nil {
			t.Fatalf("query sqlite_master: %v", err)
		}
		if n != 1 {
			t.Errorf("table %s count = %d, want 1", table, n)
		}
	}

	var mode string
	if err := db.QueryRowContext(ctx, `PRAGMA journal_mode`).Scan(&mode); err != nil {
		t.Fatalf("PRAGMA journal_mode: %v", err)
	}
	if mode != "wal" {
		t.Errorf("journal_mode = %q, want wal", mode)
	}
}
