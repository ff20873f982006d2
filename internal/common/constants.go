package common

import "time"

// Environment variable keys
const (
	EnvConfigFile     = "CONFIG_FILE"
	EnvEnvFile        = "ENV_FILE"
	EnvContextSize    = "CONTEXT_SIZE"
	EnvListenPort     = "LISTEN_PORT"
	EnvMetricsPort    = "METRICS_PORT"
	EnvDataPath       = "DATA_PATH"
	EnvSessionIdleTTL = "SESSION_IDLE_TTL"
	EnvSweepInterval  = "SWEEP_INTERVAL"
	EnvMaxSessions    = "MAX_SESSIONS"
	EnvLogLevel       = "LOG_LEVEL"
	EnvWSReadLimit    = "WS_READ_LIMIT"
	EnvServerURL      = "PATTERN_SERVER_URL"
)

// Configuration defaults
const (
	DefaultContextSize    = 5
	DefaultListenPort     = 8090
	DefaultMetricsPort    = 8080
	DefaultSessionIdleTTL = 30 * time.Minute
	DefaultSweepInterval  = time.Minute
	DefaultMaxSessions    = 1000
	DefaultLogLevel       = "info"
	DefaultWSReadLimit    = 1024
	DefaultServerURL      = "http://localhost:8090"
)

// Validation constants
const (
	MinContextSize    = 1
	MaxContextSize    = 20
	MinPort           = 1024
	MaxPort           = 65535
	MinSessionIdleTTL = time.Second
	MaxSessionIdleTTL = 24 * time.Hour
	MinSweepInterval  = 100 * time.Millisecond
	MaxSweepInterval  = time.Hour
	MaxMaxSessions    = 1_000_000
	MinWSReadLimit    = 16
	MaxWSReadLimit    = 64 * 1024
)

// Journal database file name inside DATA_PATH
const JournalFile = "pattern-journal.db"
