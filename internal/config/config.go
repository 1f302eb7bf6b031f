package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/subosito/gotenv"
)

const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
)

type Config struct {
	AppEnv   string
	Port     string
	LogLevel string
	LogDir   string

	// Persistence
	DBDriver           string
	DBUser             string
	DBPass             string
	DBHost             string
	DBPort             string
	DBName             string
	FullDSN            string
	SQLitePath         string
	PersistenceTimeout time.Duration
	StoreIdleTTL       time.Duration

	// Sessions
	SessionTTL time.Duration

	CORSOrigins []string
}

// Load reads an optional .env file and then the environment.
func Load() (*Config, error) {
	if err := gotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load env variables: %w", err)
	}

	cfg := &Config{
		AppEnv:   getEnv("APP_ENV", "development"),
		Port:     getEnv("APP_PORT", "8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		LogDir:   getEnv("LOG_DIR", ""),

		DBDriver:           strings.ToLower(getEnv("DB_DRIVER", DriverSQLite)),
		DBUser:             getEnv("DB_USER", ""),
		DBPass:             getEnv("DB_PASS", ""),
		DBHost:             getEnv("DB_HOST", ""),
		DBPort:             getEnv("DB_PORT", "3306"),
		DBName:             getEnv("DB_NAME", "dinarwise"),
		FullDSN:            getEnv("FULL_DSN", ""),
		SQLitePath:         getEnv("SQLITE_PATH", "./data/dinarwise.db"),
		PersistenceTimeout: getEnvDuration("PERSISTENCE_TIMEOUT", 15*time.Second),
		StoreIdleTTL:       getEnvDuration("STORE_IDLE_TTL", 30*time.Minute),

		SessionTTL: getEnvDuration("SESSION_TTL", 30*24*time.Hour),

		CORSOrigins: splitList(getEnv("CORS_ORIGINS", "*")),
	}

	return cfg, nil
}

// Validate returns every problem with the configuration in a single error.
func (c *Config) Validate() error {
	var problems []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		problems = append(problems, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		problems = append(problems, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	switch c.DBDriver {
	case DriverMySQL:
		if c.FullDSN == "" && (c.DBUser == "" || c.DBPass == "" || c.DBHost == "" || c.DBPort == "") {
			problems = append(problems, "mysql driver needs FULL_DSN or DB_USER, DB_PASS, DB_HOST and DB_PORT")
		}
	case DriverSQLite:
		if c.SQLitePath == "" {
			problems = append(problems, "SQLITE_PATH cannot be empty when using sqlite driver")
		}
	case DriverMemory:
	default:
		problems = append(problems, fmt.Sprintf("invalid DB_DRIVER '%s': must be one of mysql, sqlite, memory", c.DBDriver))
	}

	if c.PersistenceTimeout <= 0 {
		problems = append(problems, fmt.Sprintf("invalid persistence timeout %v: must be positive", c.PersistenceTimeout))
	}
	if c.StoreIdleTTL < time.Minute {
		problems = append(problems, fmt.Sprintf("invalid store idle ttl %v: must be at least one minute", c.StoreIdleTTL))
	}
	if c.SessionTTL < time.Minute {
		problems = append(problems, fmt.Sprintf("invalid session ttl %v: must be at least one minute", c.SessionTTL))
	}

	if len(problems) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(problems, "\n- "))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
