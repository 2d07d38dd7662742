package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultTokenURL         = "https://openapi.ls-sec.co.kr:8080/oauth2/token"
	DefaultWSURL            = "wss://openapi.ls-sec.co.kr:9443/websocket"
	DefaultScope            = "oob"
	DefaultAPITimeout       = 10 * time.Second
	DefaultReconnectDelay   = 5 * time.Second
	DefaultHandshakeTimeout = 10 * time.Second
	DefaultWriteTimeout     = 5 * time.Second
	DefaultPingInterval     = 30 * time.Second
	DefaultConnBufferSize   = 1000
	DefaultGracePeriod      = 60 * time.Second
	DefaultVIKey            = "000000"
	DefaultJournalDriver    = JournalNone
	DefaultSQLitePath       = "vimonitor.db"
	DefaultDBPort           = 5432
	DefaultDBSSLMode        = "prefer"
	DefaultMaxConns         = 4
	DefaultMinConns         = 1
	DefaultBatchSize        = 500
	DefaultFlushInterval    = 1 * time.Second
	DefaultBufferSize       = 1000
	DefaultStatusAddr       = ":8080"
	DefaultLogLevel         = "info"
	DefaultLogFormat        = "text"
)

// Default returns a configuration built only from defaults and the
// environment.
func Default() *Config {
	cfg := &Config{}
	cfg.applyEnv()
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	// API defaults
	if c.API.TokenURL == "" {
		c.API.TokenURL = DefaultTokenURL
	}
	if c.API.WSURL == "" {
		c.API.WSURL = DefaultWSURL
	}
	if c.API.Scope == "" {
		c.API.Scope = DefaultScope
	}
	if c.API.Timeout == 0 {
		c.API.Timeout = DefaultAPITimeout
	}

	// Connection defaults
	if c.Connection.ReconnectDelay == 0 {
		c.Connection.ReconnectDelay = DefaultReconnectDelay
	}
	if c.Connection.HandshakeTimeout == 0 {
		c.Connection.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if c.Connection.WriteTimeout == 0 {
		c.Connection.WriteTimeout = DefaultWriteTimeout
	}
	if c.Connection.PingInterval == 0 {
		c.Connection.PingInterval = DefaultPingInterval
	}
	if c.Connection.BufferSize == 0 {
		c.Connection.BufferSize = DefaultConnBufferSize
	}

	// Subscription defaults
	if c.Subscriptions.GracePeriod == 0 {
		c.Subscriptions.GracePeriod = DefaultGracePeriod
	}
	if c.Subscriptions.VIKey == "" {
		c.Subscriptions.VIKey = DefaultVIKey
	}

	// Journal defaults
	if c.Journal.Driver == "" {
		c.Journal.Driver = DefaultJournalDriver
	}
	if c.Journal.SQLitePath == "" {
		c.Journal.SQLitePath = DefaultSQLitePath
	}
	applyDBDefaults(&c.Journal.Postgres)
	if c.Journal.BatchSize == 0 {
		c.Journal.BatchSize = DefaultBatchSize
	}
	if c.Journal.FlushInterval == 0 {
		c.Journal.FlushInterval = DefaultFlushInterval
	}
	if c.Journal.BufferSize == 0 {
		c.Journal.BufferSize = DefaultBufferSize
	}

	// Status defaults
	if c.Status.Addr == "" {
		c.Status.Addr = DefaultStatusAddr
	}

	// Log defaults
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}
