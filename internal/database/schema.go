package database

// Table names shared by both journal backends.
const (
	TableVIEvents = "vi_events"
	TableTicks    = "ticks"
)

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS vi_events (
		id                UUID PRIMARY KEY,
		session_id        UUID NOT NULL,
		code              TEXT NOT NULL,
		exchange          TEXT NOT NULL,
		status            SMALLINT NOT NULL,
		action            TEXT NOT NULL,
		trigger_price     NUMERIC NOT NULL,
		static_ref_price  NUMERIC NOT NULL,
		dynamic_ref_price NUMERIC NOT NULL,
		trigger_time      TEXT NOT NULL,
		received_at       TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS vi_events_code_received_idx ON vi_events (code, received_at)`,
	`CREATE TABLE IF NOT EXISTS ticks (
		id           UUID PRIMARY KEY,
		session_id   UUID NOT NULL,
		code         TEXT NOT NULL,
		tr_cd        TEXT NOT NULL,
		price        NUMERIC NOT NULL,
		change       NUMERIC NOT NULL,
		change_rate  NUMERIC NOT NULL,
		volume       NUMERIC NOT NULL,
		value        NUMERIC NOT NULL,
		bid          NUMERIC NOT NULL,
		offer        NUMERIC NOT NULL,
		exec_time    TEXT NOT NULL,
		vi_status    SMALLINT NOT NULL,
		received_at  TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS ticks_code_received_idx ON ticks (code, received_at)`,
}

// Decimals are stored as TEXT in SQLite to keep exact values.
var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS vi_events (
		id                TEXT PRIMARY KEY,
		session_id        TEXT NOT NULL,
		code              TEXT NOT NULL,
		exchange          TEXT NOT NULL,
		status            INTEGER NOT NULL,
		action            TEXT NOT NULL,
		trigger_price     TEXT NOT NULL,
		static_ref_price  TEXT NOT NULL,
		dynamic_ref_price TEXT NOT NULL,
		trigger_time      TEXT NOT NULL,
		received_at       INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS vi_events_code_received_idx ON vi_events (code, received_at)`,
	`CREATE TABLE IF NOT EXISTS ticks (
		id           TEXT PRIMARY KEY,
		session_id   TEXT NOT NULL,
		code         TEXT NOT NULL,
		tr_cd        TEXT NOT NULL,
		price        TEXT NOT NULL,
		change       TEXT NOT NULL,
		change_rate  TEXT NOT NULL,
		volume       TEXT NOT NULL,
		value        TEXT NOT NULL,
		bid          TEXT NOT NULL,
		offer        TEXT NOT NULL,
		exec_time    TEXT NOT NULL,
		vi_status    INTEGER NOT NULL,
		received_at  INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS ticks_code_received_idx ON ticks (code, received_at)`,
}
