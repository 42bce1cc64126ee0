package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("NOCTURN_PROPERTY_ID", "prop-1")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DefaultAPIURL, cfg.Widget.APIURL)
	assert.Equal(t, "prop-1", cfg.Widget.PropertyID)
	assert.Equal(t, DefaultTitle, cfg.Widget.Title)
	assert.Equal(t, "file", cfg.Storage.Driver)
	assert.Equal(t, "default", cfg.Storage.Scope)
	assert.Equal(t, 5*time.Second, cfg.Transport.ReconnectDelay)
	assert.Equal(t, ":8000", cfg.Server.Addr)
	require.NoError(t, cfg.Validate())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("NOCTURN_API_URL", "https://api.example.com/")
	t.Setenv("NOCTURN_RECONNECT_DELAY", "1500")
	t.Setenv("NOCTURN_PING_INTERVAL", "0s")
	t.Setenv("PORT", "127.0.0.1:9000")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://api.example.com", cfg.Widget.APIURL)
	assert.Equal(t, 1500*time.Millisecond, cfg.Transport.ReconnectDelay)
	assert.Equal(t, time.Duration(0), cfg.Transport.PingInterval)
	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)
}

func TestLoadRejectsBadDuration(t *testing.T) {
	t.Setenv("NOCTURN_DIAL_TIMEOUT", "soon")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadRejectsBadPort(t *testing.T) {
	t.Setenv("PORT", "eighty")

	_, err := Load()
	require.Error(t, err)
}

func TestValidateRequiresProperty(t *testing.T) {
	cfg := Default()
	require.ErrorIs(t, cfg.Validate(), ErrTenantRequired)

	cfg.Widget.PropertyID = "   "
	require.ErrorIs(t, cfg.Validate(), ErrTenantRequired)
}

func TestApplyFileOverlaysOnlyPresentKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "widget.yaml")
	doc := []byte(`
widget:
  property_id: from-file
  title: Front Desk
storage:
  driver: sqlite
  dsn: /tmp/widget.db
transport:
  reconnect_delay: 2s
`)
	require.NoError(t, os.WriteFile(path, doc, 0o600))

	cfg := Default()
	require.NoError(t, cfg.ApplyFile(path))

	assert.Equal(t, "from-file", cfg.Widget.PropertyID)
	assert.Equal(t, "Front Desk", cfg.Widget.Title)
	assert.Equal(t, DefaultGreeting, cfg.Widget.Greeting)
	assert.Equal(t, "sqlite", cfg.Storage.Driver)
	assert.Equal(t, "default", cfg.Storage.Scope)
	assert.Equal(t, 2*time.Second, cfg.Transport.ReconnectDelay)
	assert.Equal(t, 30*time.Second, cfg.Transport.HTTPTimeout)
}

func TestApplyFileMissing(t *testing.T) {
	cfg := Default()
	require.Error(t, cfg.ApplyFile(filepath.Join(t.TempDir(), "absent.yaml")))
}
