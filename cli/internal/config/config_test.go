package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BDNK1/apiflow/plugins/auth"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "apiflow.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestFromSettings_Defaults(t *testing.T) {
	cfg, err := FromSettings(map[string]any{})
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.Runner.Concurrency)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, 30*time.Second, cfg.HTTP.Timeout)
	assert.Equal(t, 3, cfg.HTTP.MaxRetries)
	assert.Equal(t, []string{"markdown"}, cfg.Report.Formats)
	assert.Equal(t, "reports", cfg.Report.Dir)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "apiflow", cfg.Telemetry.ServiceName)
	assert.Empty(t, cfg.Telemetry.Endpoint)
}

func TestLoad_File(t *testing.T) {
	t.Setenv("APIFLOW_TEST_ADMIN_PASSWORD", "hunter2")
	path := writeConfig(t, `
base_url: https://staging.example.com
concurrency: 8
log:
  level: debug
http:
  timeout: 5s
  retry_wait_ms: 10
auth:
  profiles:
    admin:
      type: bearer
      login_url: https://staging.example.com/auth/login
      username: admin
      password: ${APIFLOW_TEST_ADMIN_PASSWORD}
report:
  formats: [json, junit]
  dir: out
telemetry:
  otlp_endpoint: localhost:4317
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://staging.example.com", cfg.Runner.BaseURL)
	assert.Equal(t, 8, cfg.Runner.Concurrency)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 5*time.Second, cfg.HTTP.Timeout)
	assert.Equal(t, 10, cfg.HTTP.RetryWaitMS)
	assert.Equal(t, []string{"json", "junit"}, cfg.Report.Formats)
	assert.Equal(t, "out", cfg.Report.Dir)
	assert.Equal(t, "localhost:4317", cfg.Telemetry.Endpoint)

	require.Contains(t, cfg.Auth.Profiles, "admin")
	admin := cfg.Auth.Profiles["admin"]
	assert.Equal(t, auth.TypeBearer, admin.Type)
	assert.Equal(t, "hunter2", admin.Password)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "base_url: http://from-file\nconcurrency: 2\n")
	t.Setenv("APIFLOW_BASE_URL", "http://from-env")
	t.Setenv("APIFLOW_SERVER_ADDR", ":9090")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "http://from-env", cfg.Runner.BaseURL)
	assert.Equal(t, 2, cfg.Runner.Concurrency)
	assert.Equal(t, ":9090", cfg.Server.Addr)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "concurrency out of range", content: "concurrency: 0\n"},
		{name: "unknown log level", content: "log:\n  level: loud\n"},
		{name: "unknown report format", content: "report:\n  formats: [pdf]\n"},
		{name: "bearer without login url", content: "auth:\n  profiles:\n    a:\n      type: bearer\n"},
		{name: "missing env var", content: "base_url: ${APIFLOW_TEST_UNSET_URL}\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			assert.Error(t, err)
		})
	}
}

func TestLoad_DocsExamples(t *testing.T) {
	t.Setenv("STRIPE_SECRET_KEY", "sk_test_123")

	cfg, err := Load(filepath.Join("..", "..", "..", "docs", "examples", "stripe-integration", "apiflow.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "https://api.stripe.com", cfg.Runner.BaseURL)
	require.Contains(t, cfg.Auth.Profiles, "stripe")
	assert.Equal(t, auth.TypeToken, cfg.Auth.Profiles["stripe"].Type)
	assert.Equal(t, "sk_test_123", cfg.Auth.Profiles["stripe"].Token)
	assert.Equal(t, []string{"markdown", "json"}, cfg.Report.Formats)

	cfg, err = Load(filepath.Join("..", "..", "..", "docs", "examples", "payment-system-integration", "apiflow.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080", cfg.Runner.BaseURL)
	assert.Equal(t, 10*time.Second, cfg.HTTP.Timeout)
	assert.Equal(t, 2, cfg.HTTP.MaxRetries)
}
