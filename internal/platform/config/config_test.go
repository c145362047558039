package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isolate(t *testing.T) {
	t.Helper()
	t.Chdir(t.TempDir())
	t.Setenv(ConfigPathEnvVar, "")
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 22, cfg.Stats.DefaultWorkingDays)
	assert.Equal(t, "presence.audit", cfg.Kafka.Topic)
	assert.Equal(t, 8, cfg.Revalidation.Concurrency)
	assert.Empty(t, cfg.Database.URL)
	assert.Equal(t, time.UTC, cfg.StatsLocation())
}

func TestLoad_FileThenEnv(t *testing.T) {
	isolate(t)

	path := filepath.Join(t.TempDir(), "presence.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":9090"
  admin_token: from-file
stats:
  location: America/Mexico_City
revalidation:
  concurrency: 4
`), 0o600))
	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("PRESENCE_SERVER__ADMIN_TOKEN", "from-env")
	t.Setenv("PRESENCE_KAFKA__BROKERS", "k1:9092, k2:9092")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "from-env", cfg.Server.AdminToken)
	assert.Equal(t, 4, cfg.Revalidation.Concurrency)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "America/Mexico_City", cfg.StatsLocation().String())
}

func TestLoad_RejectsInvalid(t *testing.T) {
	isolate(t)

	t.Run("log level", func(t *testing.T) {
		t.Setenv("PRESENCE_LOG__LEVEL", "loud")
		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "level")
	})

	t.Run("unknown location", func(t *testing.T) {
		t.Setenv("PRESENCE_STATS__LOCATION", "Mars/Olympus")
		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "stats.location")
	})
}
