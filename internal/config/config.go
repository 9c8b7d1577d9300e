package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"loanaudit/domain/provenance"
	"loanaudit/internal/errors"
	"loanaudit/internal/profiling"
)

// Config represents the complete application configuration
type Config struct {
	Database  DatabaseConfig
	Server    ServerConfig
	Profiling ProfilingConfig
	Audit     AuditConfig
	Log       LogConfig
}

// DatabaseConfig holds database connection settings. An empty URL keeps the
// provenance ledger in memory.
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	RunMigrations   bool
}

// Enabled reports whether a PostgreSQL ledger is configured
func (d DatabaseConfig) Enabled() bool {
	return d.URL != ""
}

// ServerConfig holds API server settings
type ServerConfig struct {
	Port         string
	GinMode      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// ProfilingConfig holds the ops server settings (metrics, health, pprof)
type ProfilingConfig struct {
	Port    string
	Enabled bool
}

// AuditConfig holds defaults for the audit stages
type AuditConfig struct {
	Actor      string
	DataFile   string
	Sheet      string
	Seed       int64
	Multiplier float64
}

// LogConfig holds logger settings
type LogConfig struct {
	Level       string
	Development bool
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	config := &Config{
		Database:  *loadDatabaseConfig(),
		Server:    *loadServerConfig(),
		Profiling: *loadProfilingConfig(),
		Audit:     *loadAuditConfig(),
		Log:       *loadLogConfig(),
	}

	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}
	return config, nil
}

func loadDatabaseConfig() *DatabaseConfig {
	return &DatabaseConfig{
		URL:             os.Getenv("DATABASE_URL"),
		MaxOpenConns:    getEnvIntOrDefault("DB_MAX_OPEN_CONNS", 10),
		MaxIdleConns:    getEnvIntOrDefault("DB_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime: getEnvDurationOrDefault("DB_CONN_MAX_LIFETIME", 30*time.Minute),
		RunMigrations:   getEnvBoolOrDefault("DB_AUTO_MIGRATE", true),
	}
}

func loadServerConfig() *ServerConfig {
	return &ServerConfig{
		Port:         getEnvOrDefault("PORT", "8080"),
		GinMode:      getEnvOrDefault("GIN_MODE", "release"),
		ReadTimeout:  getEnvDurationOrDefault("HTTP_READ_TIMEOUT", 30*time.Second),
		WriteTimeout: getEnvDurationOrDefault("HTTP_WRITE_TIMEOUT", 60*time.Second),
	}
}

func loadProfilingConfig() *ProfilingConfig {
	return &ProfilingConfig{
		Port:    getEnvOrDefault("PPROF_PORT", "6060"),
		Enabled: getEnvBoolOrDefault("PPROF_ENABLED", true),
	}
}

func loadAuditConfig() *AuditConfig {
	return &AuditConfig{
		Actor:      getEnvOrDefault("AUDIT_ACTOR", provenance.DefaultActor),
		DataFile:   getEnvOrDefault("LOAN_DATA_FILE", ""),
		Sheet:      getEnvOrDefault("LOAN_DATA_SHEET", ""),
		Seed:       getEnvInt64OrDefault("SIMULATION_SEED", 42),
		Multiplier: getEnvFloatOrDefault("IQR_MULTIPLIER", profiling.DefaultMultiplier),
	}
}

func loadLogConfig() *LogConfig {
	return &LogConfig{
		Level:       strings.ToLower(getEnvOrDefault("LOG_LEVEL", "info")),
		Development: getEnvBoolOrDefault("LOG_DEVELOPMENT", false),
	}
}

func validateConfig(config *Config) error {
	if config.Server.Port == "" {
		return errors.ConfigInvalid("PORT is required")
	}
	if config.Profiling.Enabled && config.Profiling.Port == config.Server.Port {
		return errors.ConfigInvalid("PPROF_PORT must differ from PORT")
	}
	if strings.TrimSpace(config.Audit.Actor) == "" {
		return errors.ConfigInvalid("AUDIT_ACTOR cannot be blank")
	}
	if !profiling.ValidMultiplier(config.Audit.Multiplier) {
		return errors.ConfigurationOutOfRange("IQR_MULTIPLIER", config.Audit.Multiplier, profiling.MinMultiplier, profiling.MaxMultiplier)
	}
	switch config.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return errors.ConfigInvalid("LOG_LEVEL must be one of debug, info, warn, error")
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64OrDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
