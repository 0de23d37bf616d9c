package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdirTemp runs the test from an empty directory so no stray .env is loaded.
func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return dir
}

// TestLoadDefaults verifies the values used when nothing is configured.
func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load("")
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Server.LogLevel)

	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 0, cfg.Redis.BrokerDB)
	assert.Equal(t, 1, cfg.Redis.BackendDB)
	assert.Equal(t, 5*time.Second, cfg.Redis.SocketTimeout)
	assert.Equal(t, 30*time.Second, cfg.Redis.HealthCheckInterval)

	assert.Equal(t, []string{"priority", "default"}, cfg.Task.Queues)
	assert.Equal(t, 24*time.Hour, cfg.Task.ResultTTL)
	assert.Equal(t, 3, cfg.Task.MaxRetries)
	assert.Equal(t, "priority", cfg.Task.Routes["send_notification"])
	assert.Equal(t, 5*time.Minute, cfg.Task.Schedule["check_pending_orders"])
	assert.Equal(t, 24*time.Hour, cfg.Task.Schedule["daily_stock_report"])

	assert.False(t, cfg.Email.Enabled)
}

// TestLoadFromEnv verifies that environment variables override defaults.
func TestLoadFromEnv(t *testing.T) {
	chdirTemp(t)
	t.Setenv("ORDERFLOW_SERVER_PORT", "9090")
	t.Setenv("ORDERFLOW_SERVER_LOG_LEVEL", "debug")
	t.Setenv("ORDERFLOW_REDIS_ADDR", "redis.internal:6380")
	t.Setenv("ORDERFLOW_REDIS_PASSWORD", "s3cret")
	t.Setenv("ORDERFLOW_TASK_WORKER_COUNT", "8")
	t.Setenv("ORDERFLOW_TASK_QUEUES", "priority,default,bulk")
	t.Setenv("ORDERFLOW_TASK_RETRY_BACKOFF", "30s")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Server.LogLevel)
	assert.Equal(t, "redis.internal:6380", cfg.Redis.Addr)
	assert.Equal(t, "s3cret", cfg.Redis.Password)
	assert.Equal(t, 8, cfg.Task.WorkerCount)
	assert.Equal(t, []string{"priority", "default", "bulk"}, cfg.Task.Queues)
	assert.Equal(t, 30*time.Second, cfg.Task.RetryBackoff)
}

// TestLoadFromDotEnv verifies that a .env file in the working directory is read.
func TestLoadFromDotEnv(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"),
		[]byte("ORDERFLOW_SERVER_PORT=7070\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("ORDERFLOW_SERVER_PORT") })

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port)
}

// TestLoadFromFile verifies routes and schedule tables read from a config file.
func TestLoadFromFile(t *testing.T) {
	dir := chdirTemp(t)
	path := filepath.Join(dir, "orderflow.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 8181
task:
  routes:
    generate_invoice: bulk
  schedule:
    dispatch_outbox: 30s
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8181, cfg.Server.Port)
	assert.Equal(t, "bulk", cfg.Task.Routes["generate_invoice"])
	assert.Equal(t, "priority", cfg.Task.Routes["send_notification"])
	assert.Equal(t, 30*time.Second, cfg.Task.Schedule["dispatch_outbox"])
	assert.Equal(t, 5*time.Minute, cfg.Task.Schedule["check_pending_orders"],
		"entries the file leaves out keep their defaults")
	assert.Equal(t, 24*time.Hour, cfg.Task.Schedule["daily_stock_report"])
	assert.Len(t, cfg.Task.Schedule, 3)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

// TestLoadValidationErrors verifies that invalid values are rejected.
func TestLoadValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"invalid port", map[string]string{"ORDERFLOW_SERVER_PORT": "70000"}},
		{"invalid log level", map[string]string{"ORDERFLOW_SERVER_LOG_LEVEL": "verbose"}},
		{"redis address without port", map[string]string{"ORDERFLOW_REDIS_ADDR": "localhost"}},
		{"same broker and backend db", map[string]string{"ORDERFLOW_REDIS_BACKEND_DB": "0"}},
		{"no workers", map[string]string{"ORDERFLOW_TASK_WORKER_COUNT": "0"}},
		{"poll timeout under a second", map[string]string{"ORDERFLOW_TASK_POLL_TIMEOUT": "100ms"}},
		{"mailgun enabled without domain", map[string]string{
			"ORDERFLOW_EMAIL_ENABLED":         "true",
			"ORDERFLOW_EMAIL_MAILGUN_API_KEY": "key-123",
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chdirTemp(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			cfg, err := Load("")
			require.Error(t, err)
			assert.Nil(t, cfg)
			assert.Contains(t, err.Error(), "config validation failed")
		})
	}
}
