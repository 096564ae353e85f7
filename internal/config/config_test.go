package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"OPENROUTER_API_KEY", "OPENROUTER_MODEL", "OPENROUTER_BASE_URL",
		"GOOGLE_CLIENT_ID", "GOOGLE_CLIENT_SECRET", "SMARTCAL_DB",
		"SMARTCAL_LISTEN", "PRIMARY_TIMEZONE", "SMARTCAL_REFRESH",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "openai/gpt-4o-mini", cfg.OpenRouter.Model)
	assert.Equal(t, "https://openrouter.ai/api/v1", cfg.OpenRouter.BaseURL)
	assert.Equal(t, "smartcal.db", cfg.DatabasePath)
	assert.Equal(t, "@every 5m", cfg.Refresh)
	assert.Empty(t, cfg.OpenRouter.APIKey)
}

func TestLoadFileThenEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "smartcal.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
openrouter:
  model: anthropic/claude-3-haiku
  title: Mi Calendario
google:
  client_id: file-id
database: /tmp/file.db
timezone: America/Argentina/Buenos_Aires
`), 0600))

	t.Setenv("GOOGLE_CLIENT_ID", "env-id")
	t.Setenv("OPENROUTER_API_KEY", "sk-or-test")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "anthropic/claude-3-haiku", cfg.OpenRouter.Model)
	assert.Equal(t, "Mi Calendario", cfg.OpenRouter.Title)
	assert.Equal(t, "env-id", cfg.Google.ClientID)
	assert.Equal(t, "/tmp/file.db", cfg.DatabasePath)
	assert.Equal(t, "sk-or-test", cfg.OpenRouter.APIKey)
	assert.Equal(t, "America/Argentina/Buenos_Aires", cfg.Location().String())
}

func TestLoadRejectsBadTimezone(t *testing.T) {
	clearEnv(t)
	t.Setenv("PRIMARY_TIMEZONE", "Mars/Olympus")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid timezone")
}

func TestCallbackURL(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "http://127.0.0.1:8080/oauth/callback", cfg.CallbackURL())

	cfg.Google.RedirectURL = "https://cal.example.com/oauth/callback"
	assert.Equal(t, "https://cal.example.com/oauth/callback", cfg.CallbackURL())
}
