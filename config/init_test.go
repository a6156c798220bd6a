package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("SESSION_SECRET", "session-secret")
	t.Setenv("SECRET_KEY", "field-key")
	t.Setenv("CONFIG_FILE", "")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "5000", cfg.Server.HTTPPort)
	assert.Equal(t, 24*time.Hour, cfg.Auth.SessionTTL)
	assert.Equal(t, 15*time.Second, cfg.DocuSeal.PollInterval)
	assert.Equal(t, 10*time.Second, cfg.DocuSeal.WatchInterval)
	assert.Equal(t, 12, cfg.DocuSeal.WatchTicks)
	assert.Equal(t, 30, cfg.Expiry.ExpiringSoonDays)
	assert.False(t, cfg.Auth.SecureCookie)
}

func TestLoad_EnvOverrides(t *testing.T) {
	setRequired(t)
	t.Chdir(t.TempDir())
	t.Setenv("PORT", "8081")
	t.Setenv("APP_ENV", "production")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8081", cfg.Server.HTTPPort)
	assert.True(t, cfg.Auth.SecureCookie, "production forces secure cookies")
}

func TestLoad_File(t *testing.T) {
	setRequired(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "staffdesk.yaml")
	content := []byte(`database:
  driver: postgres
  dsn: postgres://u:p@db:5432/hr?sslmode=disable
docuseal:
  api_key: key
  onboarding_templates: [11, 12]
expiry:
  medium_days: 45
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))
	t.Setenv("CONFIG_FILE", path)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, []int64{11, 12}, cfg.DocuSeal.OnboardingTemplates)
	assert.Equal(t, 45, cfg.Expiry.MediumDays)
}

func TestLoad_MissingSecrets(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("SESSION_SECRET", "")
	t.Setenv("SECRET_KEY", "x")

	_, err := Load()
	require.Error(t, err)

	t.Setenv("SESSION_SECRET", "s")
	t.Setenv("SECRET_KEY", "CHANGE_ME")
	_, err = Load()
	require.Error(t, err)
}

func TestPublicBaseURL(t *testing.T) {
	t.Parallel()

	var c Config
	c.Server.HTTPPort = "5000"
	assert.Equal(t, "http://localhost:5000", c.PublicBaseURL())

	c.App.Domains = " app.example.repl.co ,other.example"
	assert.Equal(t, "https://app.example.repl.co", c.PublicBaseURL())

	c.App.BaseURL = "https://hr.example.com/"
	assert.Equal(t, "https://hr.example.com", c.PublicBaseURL())
}
