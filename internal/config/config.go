package config

import "time"

// Config is the root configuration for the monitor.
type Config struct {
	Credentials   CredentialsConfig   `yaml:"credentials"`
	API           APIConfig           `yaml:"api"`
	Connection    ConnectionConfig    `yaml:"connection"`
	Subscriptions SubscriptionsConfig `yaml:"subscriptions"`
	Journal       JournalConfig       `yaml:"journal"`
	Console       ConsoleConfig       `yaml:"console"`
	Status        StatusConfig        `yaml:"status"`
	Log           LogConfig           `yaml:"log"`
}

// CredentialsConfig holds the application key pair. Empty values fall back
// to the LS_APP_KEY / LS_SECRET_KEY environment variables.
type CredentialsConfig struct {
	AppKey    string `yaml:"app_key"`
	AppSecret string `yaml:"app_secret"`
}

// APIConfig holds provider endpoints.
type APIConfig struct {
	TokenURL string        `yaml:"token_url"`
	WSURL    string        `yaml:"ws_url"`
	Scope    string        `yaml:"scope"`
	Timeout  time.Duration `yaml:"timeout"`
	// InsecureSkipVerify relaxes certificate checks for the provider's
	// self-signed endpoints. Defaults to true.
	InsecureSkipVerify *bool `yaml:"insecure_skip_verify"`
}

// ConnectionConfig holds streaming connection settings.
type ConnectionConfig struct {
	ReconnectDelay   time.Duration `yaml:"reconnect_delay"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	PingInterval     time.Duration `yaml:"ping_interval"`
	PingTimeout      time.Duration `yaml:"ping_timeout"` // 0 disables stale detection
	BufferSize       int           `yaml:"buffer_size"`
}

// SubscriptionsConfig holds subscription lifecycle settings.
type SubscriptionsConfig struct {
	GracePeriod time.Duration `yaml:"grace_period"`
	VIKey       string        `yaml:"vi_key"`
}

// Journal drivers.
const (
	JournalNone     = "none"
	JournalPostgres = "postgres"
	JournalSQLite   = "sqlite"
)

// JournalConfig holds event journal settings.
type JournalConfig struct {
	Driver        string        `yaml:"driver"`
	SQLitePath    string        `yaml:"sqlite_path"`
	Postgres      DBConfig      `yaml:"postgres"`
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	BufferSize    int           `yaml:"buffer_size"`
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// ConsoleConfig controls the console presenter.
type ConsoleConfig struct {
	Enabled *bool `yaml:"enabled"`
}

// StatusConfig controls the HTTP status server.
type StatusConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn (or warning), error
	Format string `yaml:"format"` // text, json
}

// InsecureTLS reports whether certificate verification is relaxed.
func (a APIConfig) InsecureTLS() bool {
	return a.InsecureSkipVerify == nil || *a.InsecureSkipVerify
}

// IsEnabled reports whether the console presenter runs.
func (c ConsoleConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}
