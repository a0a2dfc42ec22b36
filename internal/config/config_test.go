package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad(t *testing.T) {
	configPath := writeConfig(t, `
server:
  port: 9090
  host: "0.0.0.0"
environment: staging
log_level: debug

validation:
  remove_gmail_aliases: false
  known_valid_ttl_days: 7

hubspot:
  client_secret: "file-secret"
  timeout_seconds: 10

storage:
  type: "redis"
  known_valid_path: "./test-data/kv.csv"

redis:
  url: "redis://localhost:6379/2"
`)

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, "staging", cfg.Environment)
	assert.Equal(t, "debug", cfg.LogLevel)

	assert.False(t, cfg.Validation.RemoveGmailAliases)
	assert.True(t, cfg.Validation.CheckAustralianTLDs, "keys absent from the file keep their default")
	assert.Equal(t, 7*24*time.Hour, cfg.Validation.KnownValidTTL())
	assert.Equal(t, 90*24*time.Hour, cfg.Validation.ResultLogTTL())

	assert.Equal(t, "file-secret", cfg.HubSpot.ClientSecret)
	assert.Equal(t, 10*time.Second, cfg.HubSpot.Timeout())
	assert.Equal(t, "https://api.hubapi.com", cfg.HubSpot.BaseURL)

	assert.Equal(t, "redis", cfg.Storage.Type)
	assert.Equal(t, "./test-data/kv.csv", cfg.Storage.KnownValidPath)
	assert.Equal(t, "data/validation_results.csv", cfg.Storage.ResultsPath)
	assert.Equal(t, "redis://localhost:6379/2", cfg.Redis.URL)
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "log_level: warn\n"))
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, 15*time.Second, cfg.Server.ShutdownTimeout())
	assert.Equal(t, "development", cfg.Environment)
	assert.True(t, cfg.Validation.RemoveGmailAliases)
	assert.True(t, cfg.Validation.CheckAustralianTLDs)
	assert.Equal(t, 30, cfg.Validation.KnownValidTTLDays)
	assert.Equal(t, 90, cfg.Validation.ResultLogTTLDays)
	assert.False(t, cfg.HubSpot.SkipSignatureVerification)
	assert.Equal(t, 60*time.Second, cfg.Webhook.TaskTimeout())
	assert.Equal(t, 10*time.Minute, cfg.Webhook.DedupeTTL())
	assert.Equal(t, "local", cfg.Storage.Type)
	assert.Equal(t, "data/known_valid_emails.csv", cfg.Storage.KnownValidPath)
}

func TestLoadFileNotFound(t *testing.T) {
	cfg, err := Load("/nonexistent/path/config.yaml")
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
}

func TestLoadInvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "server: [unterminated"))
	assert.Error(t, err)
}

func TestLoadFromEnv(t *testing.T) {
	configPath := writeConfig(t, `
hubspot:
  client_secret: "file-secret"
`)

	t.Setenv("PORT", "8081")
	t.Setenv("NODE_ENV", "production")
	t.Setenv("HUBSPOT_CLIENT_SECRET", "env-secret")
	t.Setenv("HUBSPOT_API_KEY", "pat-123")
	t.Setenv("REMOVE_GMAIL_ALIASES", "false")
	t.Setenv("CHECK_AUSTRALIAN_TLDS", "no")
	t.Setenv("SKIP_SIGNATURE_VERIFICATION", "true")
	t.Setenv("KNOWN_VALID_TTL_DAYS", "14")
	t.Setenv("STORAGE_TYPE", "postgres")
	t.Setenv("DATABASE_URL", "postgres://localhost/emails")
	t.Setenv("KNOWN_VALID_EMAILS_PATH", "/tmp/kv.csv")

	cfg, err := LoadFromEnv(configPath)
	require.NoError(t, err)

	assert.Equal(t, 8081, cfg.Server.Port)
	assert.Equal(t, "production", cfg.Environment)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "env-secret", cfg.HubSpot.ClientSecret)
	assert.Equal(t, "pat-123", cfg.HubSpot.APIKey)
	assert.False(t, cfg.Validation.RemoveGmailAliases)
	// Anything other than "false" leaves the rule on.
	assert.True(t, cfg.Validation.CheckAustralianTLDs)
	assert.True(t, cfg.HubSpot.SkipSignatureVerification)
	assert.Equal(t, 14, cfg.Validation.KnownValidTTLDays)
	assert.Equal(t, "postgres", cfg.Storage.Type)
	assert.Equal(t, "postgres://localhost/emails", cfg.Storage.DatabaseURL)
	assert.Equal(t, "/tmp/kv.csv", cfg.Storage.KnownValidPath)
}

func TestLoadFromEnv_SkipVerificationNeedsLiteralTrue(t *testing.T) {
	t.Setenv("SKIP_SIGNATURE_VERIFICATION", "1")

	cfg, err := LoadFromEnv(writeConfig(t, "hubspot:\n  skip_signature_verification: true\n"))
	require.NoError(t, err)
	assert.False(t, cfg.HubSpot.SkipSignatureVerification)
}

func TestLoadFromEnv_InvalidNumbers(t *testing.T) {
	t.Setenv("PORT", "eighty")
	_, err := LoadFromEnv(writeConfig(t, ""))
	assert.ErrorContains(t, err, "PORT")

	t.Setenv("PORT", "")
	t.Setenv("RESULT_LOG_TTL_DAYS", "-3")
	_, err = LoadFromEnv(writeConfig(t, ""))
	assert.ErrorContains(t, err, "RESULT_LOG_TTL_DAYS")
}

func TestIsProduction(t *testing.T) {
	assert.True(t, (&Config{Environment: "Production"}).IsProduction())
	assert.False(t, (&Config{Environment: "development"}).IsProduction())
	assert.False(t, (&Config{}).IsProduction())
}
