package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("STORAGE_DRIVER", "")
	t.Setenv("KAFKA_BROKERS", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DriverPostgres, cfg.Storage.Driver)
	assert.Equal(t, 8080, cfg.API.Port)
	assert.Equal(t, []string{"*"}, cfg.API.CORSOrigins)
	assert.Equal(t, 100, cfg.Inventory.MovementListLimit)
	assert.Equal(t, 1000, cfg.Inventory.MaxMovementListLimit)
	assert.False(t, cfg.Kafka.Enabled())
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("STORAGE_DRIVER", DriverMemory)
	t.Setenv("API_PORT", "9090")
	t.Setenv("API_READ_TIMEOUT", "5s")
	t.Setenv("API_ENABLE_CORS", "false")
	t.Setenv("API_CORS_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("INVENTORY_DEFAULT_LOCATION_ID", "3")
	t.Setenv("INVENTORY_MOVEMENT_LIST_LIMIT", "20")
	t.Setenv("INVENTORY_MAX_MOVEMENT_LIST_LIMIT", "200")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DriverMemory, cfg.Storage.Driver)
	assert.Equal(t, 9090, cfg.API.Port)
	assert.Equal(t, 5*time.Second, cfg.API.ReadTimeout)
	assert.False(t, cfg.API.EnableCORS)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.API.CORSOrigins)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
	assert.True(t, cfg.Kafka.Enabled())
	assert.Equal(t, "debug", cfg.Logging.Level)

	manager := cfg.Inventory.ManagerConfig()
	assert.Equal(t, int64(3), manager.DefaultLocationID)
	assert.Equal(t, 20, manager.MovementListLimit)
	assert.Equal(t, 200, manager.MaxMovementListLimit)
}

func TestLoad_InvalidNumberKeepsDefault(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("STORAGE_DRIVER", DriverMemory)
	t.Setenv("API_PORT", "not-a-port")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.API.Port)
}

func TestLoad_YAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
storage:
  driver: memory
api:
  port: 7070
  shutdown_timeout: 45s
inventory:
  default_location_id: 2
  movement_list_limit: 10
  max_movement_list_limit: 50
kafka:
  brokers: ["localhost:9092"]
  topic: stock
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("STORAGE_DRIVER", "")
	t.Setenv("API_PORT", "")
	t.Setenv("KAFKA_BROKERS", "")
	t.Setenv("KAFKA_TOPIC", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DriverMemory, cfg.Storage.Driver)
	assert.Equal(t, 7070, cfg.API.Port)
	assert.Equal(t, 45*time.Second, cfg.API.ShutdownTimeout)
	assert.Equal(t, int64(2), cfg.Inventory.DefaultLocationID)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "stock", cfg.Kafka.Topic)
	// ファイルに無い項目は既定値のまま
	assert.Equal(t, "localhost", cfg.Database.Host)
}

func TestLoad_MissingFile(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))

	_, err := Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"memory ignores database", func(c *Config) { c.Storage.Driver = DriverMemory; c.Database.Host = "" }, false},
		{"unknown driver", func(c *Config) { c.Storage.Driver = "sqlite" }, true},
		{"missing host", func(c *Config) { c.Database.Host = "" }, true},
		{"bad database port", func(c *Config) { c.Database.Port = 70000 }, true},
		{"missing db name", func(c *Config) { c.Database.DBName = "" }, true},
		{"bad api port", func(c *Config) { c.API.Port = 0 }, true},
		{"bad default location", func(c *Config) { c.Inventory.DefaultLocationID = 0 }, true},
		{"limit above max", func(c *Config) { c.Inventory.MovementListLimit = 2000 }, true},
		{"bad log level", func(c *Config) { c.Logging.Level = "trace" }, true},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, true},
		{"kafka without topic", func(c *Config) { c.Kafka.Brokers = []string{"k:9092"}; c.Kafka.Topic = "" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDSN(t *testing.T) {
	cfg := Default()
	assert.Equal(t,
		"host=localhost port=5432 user=inventory password=password dbname=inventory_db sslmode=disable",
		cfg.DSN(),
	)
}
