// Package config provides centralized configuration management for the
// service. It loads configuration from environment variables with
// sensible defaults and validates all settings on startup to fail fast
// on misconfiguration.
package config

import "time"

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Fetch    FetchConfig
	Pipeline PipelineConfig
	Server   ServerConfig
	Database DatabaseConfig
	Logging  LoggingConfig
}

// FetchConfig holds open-data portal client settings.
type FetchConfig struct {
	// BaseURL is the portal root, ending in a slash.
	BaseURL string `env:"ANS_BASE_URL" default:"https://dadosabertos.ans.gov.br/FTP/PDA/"`

	// DataDir caches downloaded archives and snapshots (default: dados)
	DataDir string `env:"ANS_DATA_DIR" default:"dados"`

	// Timeout bounds directory listing requests (default: 30s)
	Timeout time.Duration `env:"ANS_LIST_TIMEOUT" default:"30s"`

	// DownloadTimeout bounds archive downloads (default: 120s)
	DownloadTimeout time.Duration `env:"ANS_DOWNLOAD_TIMEOUT" default:"120s"`

	// MaxPeriods caps how many quarter filings are processed, newest
	// first; 0 means all available (default: 3)
	MaxPeriods int `env:"ANS_MAX_PERIODS" default:"3"`
}

// PipelineConfig holds processing settings.
type PipelineConfig struct {
	// ResultsDir receives the output CSVs and ZIPs (default: resultados)
	ResultsDir string `env:"RESULTS_DIR" default:"resultados"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
}

// DatabaseConfig holds database connection settings. The URL is
// optional for the batch runner, which skips persistence when unset;
// the API server requires it.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	// MaxConns is the maximum number of connections in the pool (default: 20)
	MaxConns int `env:"DB_MAX_CONNS" default:"20"`

	// MinConns is the minimum number of connections to keep open (default: 4)
	MinConns int `env:"DB_MIN_CONNS" default:"4"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	if c.Host == "" {
		return ":" + itoa(c.Port)
	}
	return c.Host + ":" + itoa(c.Port)
}

// itoa converts an int to string without importing strconv in this file.
func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	var b [20]byte
	n := len(b)
	neg := i < 0
	if neg {
		i = -i
	}
	for i > 0 {
		n--
		b[n] = byte('0' + i%10)
		i /= 10
	}
	if neg {
		n--
		b[n] = '-'
	}
	return string(b[n:])
}
