package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultAPITimeout            = 30 * time.Second
	DefaultMaxRetries            = 3
	DefaultDBPort                = 5432
	DefaultDBSSLMode             = "prefer"
	DefaultMaxConns              = 10
	DefaultMinConns              = 2
	DefaultReconnectBaseDelay    = 1 * time.Second
	DefaultReconnectMaxDelay     = 30 * time.Second
	DefaultMaxReconnectAttempts  = 10
	DefaultHeartbeatInterval     = 30 * time.Second
	DefaultEndpointCheckInterval = 60 * time.Second
	DefaultWriteTimeout          = 5 * time.Second
	DefaultBufferSize            = 256
	DefaultMaxVisible            = 3
	DefaultNotificationTTL       = 60 * time.Second
	DefaultDedupWindow           = 5 * time.Second
	DefaultBatchSize             = 100
	DefaultFlushInterval         = 1 * time.Second
	DefaultJournalBuffer         = 1000
	DefaultStatsPort             = 8990
	DefaultStatsPath             = "/stats"
)

func (c *WatcherConfig) applyDefaults() {
	// Server defaults
	if c.Server.Timeout == 0 {
		c.Server.Timeout = DefaultAPITimeout
	}
	if c.Server.MaxRetries == 0 {
		c.Server.MaxRetries = DefaultMaxRetries
	}

	// Connection defaults
	if c.Connection.ReconnectBaseDelay == 0 {
		c.Connection.ReconnectBaseDelay = DefaultReconnectBaseDelay
	}
	if c.Connection.ReconnectMaxDelay == 0 {
		c.Connection.ReconnectMaxDelay = DefaultReconnectMaxDelay
	}
	if c.Connection.MaxReconnectAttempts == 0 {
		c.Connection.MaxReconnectAttempts = DefaultMaxReconnectAttempts
	}
	if c.Connection.HeartbeatInterval == 0 {
		c.Connection.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if c.Connection.EndpointCheckInterval == 0 {
		c.Connection.EndpointCheckInterval = DefaultEndpointCheckInterval
	}
	if c.Connection.WriteTimeout == 0 {
		c.Connection.WriteTimeout = DefaultWriteTimeout
	}
	if c.Connection.BufferSize == 0 {
		c.Connection.BufferSize = DefaultBufferSize
	}

	// Notification defaults
	if c.Notifications.MaxVisible == 0 {
		c.Notifications.MaxVisible = DefaultMaxVisible
	}
	if c.Notifications.TTL == 0 {
		c.Notifications.TTL = DefaultNotificationTTL
	}
	if c.Notifications.DedupWindow == 0 {
		c.Notifications.DedupWindow = DefaultDedupWindow
	}

	// Journal defaults
	if c.Journal.BatchSize == 0 {
		c.Journal.BatchSize = DefaultBatchSize
	}
	if c.Journal.FlushInterval == 0 {
		c.Journal.FlushInterval = DefaultFlushInterval
	}
	if c.Journal.BufferSize == 0 {
		c.Journal.BufferSize = DefaultJournalBuffer
	}
	if c.Journal.Enabled {
		applyDBDefaults(&c.Journal.Database)
	}

	// Stats defaults
	if c.Stats.Port == 0 {
		c.Stats.Port = DefaultStatsPort
	}
	if c.Stats.Path == "" {
		c.Stats.Path = DefaultStatsPath
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
