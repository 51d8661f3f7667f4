package config

import "time"

// WatcherConfig is the root configuration for a quickwatch instance.
type WatcherConfig struct {
	Instance      InstanceConfig      `yaml:"instance"`
	Server        ServerConfig        `yaml:"server"`
	Auth          AuthConfig          `yaml:"auth"`
	Connection    ConnectionConfig    `yaml:"connection"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Journal       JournalConfig       `yaml:"journal"`
	Stats         StatsConfig         `yaml:"stats"`
}

// InstanceConfig identifies this watcher on the shop floor.
type InstanceConfig struct {
	Name      string `yaml:"name"`       // Display name sent in the auth handshake
	Page      string `yaml:"page"`       // Logical page/screen reported to the server
	UserAgent string `yaml:"user_agent"` // User agent reported to the server
}

// ServerConfig holds QuickCheck server endpoints.
type ServerConfig struct {
	RestURL    string        `yaml:"rest_url"`
	WSURL      string        `yaml:"ws_url"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
}

// AuthConfig holds the bearer token source. Exactly one of Token,
// TokenEnv, or TokenFile should be set; Token wins when several are.
type AuthConfig struct {
	Token     string `yaml:"token"`
	TokenEnv  string `yaml:"token_env"`
	TokenFile string `yaml:"token_file"`
}

// ConnectionConfig holds websocket connection manager settings.
type ConnectionConfig struct {
	ReconnectBaseDelay    time.Duration `yaml:"reconnect_base_delay"`
	ReconnectMaxDelay     time.Duration `yaml:"reconnect_max_delay"`
	MaxReconnectAttempts  int           `yaml:"max_reconnect_attempts"`
	HeartbeatInterval     time.Duration `yaml:"heartbeat_interval"`
	EndpointCheckInterval time.Duration `yaml:"endpoint_check_interval"`
	WriteTimeout          time.Duration `yaml:"write_timeout"`
	BufferSize            int           `yaml:"buffer_size"`
}

// NotificationsConfig holds notification coordinator settings.
type NotificationsConfig struct {
	MaxVisible  int           `yaml:"max_visible"`
	TTL         time.Duration `yaml:"ttl"`
	DedupWindow time.Duration `yaml:"dedup_window"`
}

// JournalConfig holds the optional mutation journal settings. When
// Enabled is false the database section is ignored entirely.
type JournalConfig struct {
	Enabled       bool          `yaml:"enabled"`
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	BufferSize    int           `yaml:"buffer_size"`
	Database      DBConfig      `yaml:"database"`
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

// StatsConfig holds the local HTTP stats/health endpoint settings.
type StatsConfig struct {
	Port int    `yaml:"port"`
	Path string `yaml:"path"`
}
