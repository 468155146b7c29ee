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
	chdir(t, t.TempDir())

	cfg, err := Load(New(), "")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "./config", cfg.Store.Dir)
	assert.Equal(t, 100, cfg.History.Limit)
	assert.Empty(t, cfg.History.DB)
	assert.Equal(t, 30*time.Second, cfg.Engine.HTTPTimeout)
	assert.Equal(t, 4, cfg.Engine.TransformWorkers)
	assert.Equal(t, 1, cfg.Notify.Retry.MaxAttempts)
	assert.False(t, cfg.Notify.Kafka.Enabled())
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pipeline.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":9090"
store:
  dir: /var/lib/etl
history:
  limit: 25
  db: /var/lib/etl/history.db
engine:
  http_timeout: 5s
  disable_fixtures: true
notify:
  webhook_url: https://hooks.example.com/etl
  retry:
    max_attempts: 3
    initial_delay: 250ms
log:
  level: debug
  format: json
`), 0644))

	t.Setenv("ETL_HISTORY_LIMIT", "40")
	t.Setenv("ETL_NOTIFY_KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("ETL_NOTIFY_KAFKA_TOPIC", "etl.runs")

	cfg, err := Load(New(), path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "/var/lib/etl", cfg.Store.Dir)
	assert.Equal(t, 40, cfg.History.Limit)
	assert.Equal(t, "/var/lib/etl/history.db", cfg.History.DB)
	assert.Equal(t, 5*time.Second, cfg.Engine.HTTPTimeout)
	assert.True(t, cfg.Engine.DisableFixtures)
	assert.Equal(t, "https://hooks.example.com/etl", cfg.Notify.WebhookURL)
	assert.Equal(t, 3, cfg.Notify.Retry.MaxAttempts)
	assert.Equal(t, 250*time.Millisecond, cfg.Notify.Retry.InitialDelay)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Notify.Kafka.Brokers)
	assert.Equal(t, "etl.runs", cfg.Notify.Kafka.Topic)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(New(), filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	chdir(t, t.TempDir())
	cfg, err := Load(New(), "")
	require.NoError(t, err)

	bad := *cfg
	bad.History.Limit = 0
	assert.Error(t, bad.Validate())

	bad = *cfg
	bad.Notify.WebhookURL = "not a url"
	assert.Error(t, bad.Validate())

	bad = *cfg
	bad.Notify.Kafka.Topic = "etl.runs"
	assert.ErrorContains(t, bad.Validate(), "needs both brokers and topic")
}

// chdir mirrors testing.T.Chdir (Go 1.24+) for older toolchains.
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}
