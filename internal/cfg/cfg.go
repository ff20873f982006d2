package cfg

import (
	"fmt"
	"os"
	"time"

	"pattern-bot/internal/common"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

type Settings struct {
	ContextSize    int
	ListenPort     int
	MetricsPort    int
	DataPath       string
	SessionIdleTTL time.Duration
	SweepInterval  time.Duration
	MaxSessions    int
	LogLevel       string
	WSReadLimit    int64
}

type ConfigFile struct {
	Tracker struct {
		ContextSize int `yaml:"contextSize"`
	} `yaml:"tracker"`

	Sessions struct {
		IdleTTL       string `yaml:"idleTTL"`
		SweepInterval string `yaml:"sweepInterval"`
		MaxSessions   int    `yaml:"maxSessions"`
	} `yaml:"sessions"`

	Server struct {
		ListenPort  int   `yaml:"listenPort"`
		WSReadLimit int64 `yaml:"wsReadLimit"`
	} `yaml:"server"`

	System struct {
		DataPath    string `yaml:"dataPath"`
		MetricsPort int    `yaml:"metricsPort"`
		LogLevel    string `yaml:"logLevel"`
	} `yaml:"system"`
}

func Load() (Settings, error) {
	if err := loadDotEnv(os.Getenv(common.EnvEnvFile)); err != nil {
		return Settings{}, err
	}

	// Try to load from YAML file first
	if configPath := os.Getenv(common.EnvConfigFile); configPath != "" {
		return loadFromYAML(configPath)
	}

	// Fallback to environment variables
	return loadFromEnv()
}

func loadFromYAML(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config ConfigFile
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Settings{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	idleTTL, err := time.ParseDuration(config.Sessions.IdleTTL)
	if err != nil {
		idleTTL = common.DefaultSessionIdleTTL
	}

	sweep, err := time.ParseDuration(config.Sessions.SweepInterval)
	if err != nil {
		sweep = common.DefaultSweepInterval
	}

	settings := Settings{
		ContextSize:    getIntFromEnvOrConfig(common.EnvContextSize, config.Tracker.ContextSize, common.DefaultContextSize),
		ListenPort:     getIntFromEnvOrConfig(common.EnvListenPort, config.Server.ListenPort, common.DefaultListenPort),
		MetricsPort:    getIntFromEnvOrConfig(common.EnvMetricsPort, config.System.MetricsPort, common.DefaultMetricsPort),
		DataPath:       getEnvOrDefault(common.EnvDataPath, config.System.DataPath),
		SessionIdleTTL: getDurationOrDefault(common.EnvSessionIdleTTL, idleTTL),
		SweepInterval:  getDurationOrDefault(common.EnvSweepInterval, sweep),
		MaxSessions:    getIntFromEnvOrConfig(common.EnvMaxSessions, config.Sessions.MaxSessions, common.DefaultMaxSessions),
		LogLevel:       getEnvOrDefault(common.EnvLogLevel, orDefault(config.System.LogLevel, common.DefaultLogLevel)),
		WSReadLimit:    int64(getIntFromEnvOrConfig(common.EnvWSReadLimit, int(config.Server.WSReadLimit), common.DefaultWSReadLimit)),
	}

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

func loadFromEnv() (Settings, error) {
	settings := Settings{
		ContextSize:    getIntOrDefault(common.EnvContextSize, common.DefaultContextSize),
		ListenPort:     getIntOrDefault(common.EnvListenPort, common.DefaultListenPort),
		MetricsPort:    getIntOrDefault(common.EnvMetricsPort, common.DefaultMetricsPort),
		DataPath:       os.Getenv(common.EnvDataPath), // optional
		SessionIdleTTL: getDurationOrDefault(common.EnvSessionIdleTTL, common.DefaultSessionIdleTTL),
		SweepInterval:  getDurationOrDefault(common.EnvSweepInterval, common.DefaultSweepInterval),
		MaxSessions:    getIntOrDefault(common.EnvMaxSessions, common.DefaultMaxSessions),
		LogLevel:       getEnvOrDefault(common.EnvLogLevel, common.DefaultLogLevel),
		WSReadLimit:    int64(getIntOrDefault(common.EnvWSReadLimit, common.DefaultWSReadLimit)),
	}

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

// Level returns the parsed zerolog level, defaulting to info.
func (s *Settings) Level() zerolog.Level {
	level, err := zerolog.ParseLevel(s.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return level
}

// validateSettings performs range checks on every configuration value
func validateSettings(settings *Settings) error {
	if settings.ContextSize < common.MinContextSize || settings.ContextSize > common.MaxContextSize {
		return fmt.Errorf("context size must be between %d and %d, got %d",
			common.MinContextSize, common.MaxContextSize, settings.ContextSize)
	}

	if settings.ListenPort < common.MinPort || settings.ListenPort > common.MaxPort {
		return fmt.Errorf("listen port must be between %d and %d, got %d", common.MinPort, common.MaxPort, settings.ListenPort)
	}
	if settings.MetricsPort < common.MinPort || settings.MetricsPort > common.MaxPort {
		return fmt.Errorf("metrics port must be between %d and %d, got %d", common.MinPort, common.MaxPort, settings.MetricsPort)
	}
	if settings.ListenPort == settings.MetricsPort {
		return fmt.Errorf("listen port and metrics port must differ, both are %d", settings.ListenPort)
	}

	if settings.SessionIdleTTL < common.MinSessionIdleTTL || settings.SessionIdleTTL > common.MaxSessionIdleTTL {
		return fmt.Errorf("session idle TTL must be between %v and %v, got %v",
			common.MinSessionIdleTTL, common.MaxSessionIdleTTL, settings.SessionIdleTTL)
	}
	if settings.SweepInterval < common.MinSweepInterval || settings.SweepInterval > common.MaxSweepInterval {
		return fmt.Errorf("sweep interval must be between %v and %v, got %v",
			common.MinSweepInterval, common.MaxSweepInterval, settings.SweepInterval)
	}

	if settings.MaxSessions <= 0 || settings.MaxSessions > common.MaxMaxSessions {
		return fmt.Errorf("max sessions must be between 1 and %d, got %d", common.MaxMaxSessions, settings.MaxSessions)
	}
	if settings.WSReadLimit < common.MinWSReadLimit || settings.WSReadLimit > common.MaxWSReadLimit {
		return fmt.Errorf("websocket read limit must be between %d and %d, got %d",
			common.MinWSReadLimit, common.MaxWSReadLimit, settings.WSReadLimit)
	}

	if _, err := zerolog.ParseLevel(settings.LogLevel); err != nil {
		return fmt.Errorf("invalid log level %q: %w", settings.LogLevel, err)
	}

	return nil
}
