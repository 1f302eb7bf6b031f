package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DB_DRIVER", "")
	t.Setenv("APP_PORT", "")
	t.Setenv("PERSISTENCE_TIMEOUT", "")
	t.Setenv("STORE_IDLE_TTL", "")
	t.Setenv("CORS_ORIGINS", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DriverSQLite, cfg.DBDriver)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 15*time.Second, cfg.PersistenceTimeout)
	assert.Equal(t, 30*time.Minute, cfg.StoreIdleTTL)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
	require.NoError(t, cfg.Validate())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("DB_DRIVER", "MySQL")
	t.Setenv("FULL_DSN", "user:pass@tcp(localhost:3306)/dinarwise?parseTime=true")
	t.Setenv("PERSISTENCE_TIMEOUT", "2s")
	t.Setenv("CORS_ORIGINS", "http://localhost:3000, https://dinarwise.app")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DriverMySQL, cfg.DBDriver)
	assert.Equal(t, 2*time.Second, cfg.PersistenceTimeout)
	assert.Equal(t, []string{"http://localhost:3000", "https://dinarwise.app"}, cfg.CORSOrigins)
	require.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{
			name:    "Fail - Port not a number",
			mutate:  func(c *Config) { c.Port = "http" },
			wantErr: "must be a number",
		},
		{
			name:    "Fail - Port out of range",
			mutate:  func(c *Config) { c.Port = "70000" },
			wantErr: "between 1 and 65535",
		},
		{
			name:    "Fail - Unknown driver",
			mutate:  func(c *Config) { c.DBDriver = "mongo" },
			wantErr: "invalid DB_DRIVER",
		},
		{
			name:    "Fail - MySQL without credentials",
			mutate:  func(c *Config) { c.DBDriver = DriverMySQL },
			wantErr: "mysql driver needs",
		},
		{
			name:    "Fail - Zero timeout",
			mutate:  func(c *Config) { c.PersistenceTimeout = 0 },
			wantErr: "invalid persistence timeout",
		},
		{
			name:    "Fail - Store idle ttl too short",
			mutate:  func(c *Config) { c.StoreIdleTTL = time.Second },
			wantErr: "invalid store idle ttl",
		},
		{
			name:   "Success - Memory driver",
			mutate: func(c *Config) { c.DBDriver = DriverMemory },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				Port:               "8080",
				DBDriver:           DriverSQLite,
				SQLitePath:         "./data/test.db",
				PersistenceTimeout: 15 * time.Second,
				StoreIdleTTL:       30 * time.Minute,
				SessionTTL:         time.Hour,
			}
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
