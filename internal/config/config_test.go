package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pixelatlas/conquest-engine/internal/config"
)

func TestLoadAPIConfig_FromEnv(t *testing.T) {
	t.Setenv("CONQUEST_DATABASE_HOST", "db.internal")
	t.Setenv("CONQUEST_DATABASE_DBNAME", "conquest")
	t.Setenv("CONQUEST_DATABASE_USER", "conquest")
	t.Setenv("CONQUEST_DATABASE_PASSWORD", "secret")
	t.Setenv("CONQUEST_SERVER_PORT", "9090")
	t.Setenv("CONQUEST_POLICY_PROTECTION_WINDOW", "48h")

	cfg, err := config.LoadAPIConfig("", "")
	require.NoError(t, err)

	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, "conquest", cfg.Database.DBName)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 48*time.Hour, cfg.Policy.ProtectionWindow)

	// Defaults fill what the environment leaves out
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, int64(100), cfg.Policy.DefaultFloorPrice)
	assert.Equal(t, 3, cfg.Policy.MinReporters)
	assert.Equal(t, "CONQUEST_EVENTS", cfg.NATS.StreamName)
	assert.Equal(t, 10, cfg.Worker.WorkerPoolSize)
}

func TestLoadAPIConfig_MissingDatabase(t *testing.T) {
	t.Setenv("CONQUEST_DATABASE_HOST", "")
	t.Setenv("CONQUEST_DATABASE_DBNAME", "")

	_, err := config.LoadAPIConfig("", "")
	assert.Error(t, err)
}

func TestLoadSweeperConfig_Defaults(t *testing.T) {
	t.Setenv("CONQUEST_DATABASE_HOST", "db.internal")
	t.Setenv("CONQUEST_DATABASE_DBNAME", "conquest")

	cfg, err := config.LoadSweeperConfig("", "")
	require.NoError(t, err)

	assert.Equal(t, time.Minute, cfg.Intervals.Lifecycle)
	assert.Equal(t, 30*time.Second, cfg.Intervals.Settlement)
	assert.Equal(t, 10*time.Minute, cfg.Intervals.Rankings)
	assert.Equal(t, 30*24*time.Hour, cfg.Policy.AbandonmentThreshold)
	assert.Equal(t, 7*24*time.Hour, cfg.Policy.AbandonmentWarningGrace)
}

func TestDatabaseConfig_DSN(t *testing.T) {
	db := config.DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "conquest",
		Password: "secret",
		DBName:   "conquest",
		SSLMode:  "disable",
	}

	assert.Equal(t,
		"host=localhost port=5432 user=conquest password=secret dbname=conquest sslmode=disable",
		db.DSN())
}
