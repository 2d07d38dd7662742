package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if c.Credentials.AppKey == "" {
		return fmt.Errorf("credentials.app_key is required (or set %s)", EnvAppKey)
	}
	if c.Credentials.AppSecret == "" {
		return fmt.Errorf("credentials.app_secret is required (or set %s)", EnvAppSecret)
	}

	if err := validateURL("api.token_url", c.API.TokenURL, "http", "https"); err != nil {
		return err
	}
	if err := validateURL("api.ws_url", c.API.WSURL, "ws", "wss"); err != nil {
		return err
	}

	if c.Connection.ReconnectDelay < 0 {
		return errors.New("connection.reconnect_delay must be >= 0")
	}
	if c.Connection.BufferSize < 1 {
		return errors.New("connection.buffer_size must be >= 1")
	}
	if c.Connection.WriteTimeout <= 0 {
		return errors.New("connection.write_timeout must be > 0")
	}
	if c.Connection.PingTimeout < 0 {
		return errors.New("connection.ping_timeout must be >= 0")
	}

	if c.Subscriptions.GracePeriod <= 0 {
		return errors.New("subscriptions.grace_period must be > 0")
	}

	switch c.Journal.Driver {
	case JournalNone:
	case JournalSQLite:
		if c.Journal.SQLitePath == "" {
			return errors.New("journal.sqlite_path is required for the sqlite driver")
		}
	case JournalPostgres:
		if err := c.Journal.Postgres.validate("journal.postgres"); err != nil {
			return err
		}
	default:
		return fmt.Errorf("journal.driver must be one of none, sqlite, postgres, got %q", c.Journal.Driver)
	}
	if c.Journal.BatchSize < 1 {
		return errors.New("journal.batch_size must be >= 1")
	}
	if c.Journal.BufferSize < 1 {
		return errors.New("journal.buffer_size must be >= 1")
	}

	if !ValidLogLevel(c.Log.Level) {
		return fmt.Errorf("log.level must be one of debug, info, warn, warning, error, got %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}

	return nil
}

// ValidLogLevel reports whether s names a log level. Matching is case
// insensitive and "warning" is accepted as an alias of "warn".
func ValidLogLevel(s string) bool {
	switch strings.ToLower(s) {
	case "debug", "info", "warn", "warning", "error":
		return true
	}
	return false
}

func validateURL(field, raw string, schemes ...string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return fmt.Errorf("%s is not a valid URL: %q", field, raw)
	}
	for _, s := range schemes {
		if u.Scheme == s {
			return nil
		}
	}
	return fmt.Errorf("%s scheme must be one of %v, got %q", field, schemes, u.Scheme)
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}
