package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "/api/v1", cfg.API.Prefix)
	require.Zero(t, cfg.API.Timeout)
	require.Equal(t, 10*time.Minute, cfg.API.UploadTimeout)
	require.Equal(t, 10, cfg.API.PageSize)
	require.Equal(t, DriverFile, cfg.Storage.Driver)
	require.Equal(t, 2*time.Second, cfg.Realtime.ReconnectInterval)
	require.NoError(t, cfg.Validate())
}

func TestLoad_ExpandsEnv(t *testing.T) {
	t.Setenv("MEDIADESK_TEST_DSN", "postgres://u:p@db:5432/desk")
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
api:
  base_url: https://admin.example.com
  timeout: 15s
  page_size: 25
storage:
  driver: postgres
  dsn: ${MEDIADESK_TEST_DSN}
realtime:
  url: wss://rt.example.com
log:
  level: debug
  format: json
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "https://admin.example.com", cfg.API.BaseURL)
	require.Equal(t, 15*time.Second, cfg.API.Timeout)
	require.Equal(t, 25, cfg.API.PageSize)
	require.Equal(t, "postgres://u:p@db:5432/desk", cfg.Storage.DSN)
	require.Equal(t, "/podcast", cfg.Realtime.Namespace)
	require.NoError(t, cfg.Validate())
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("api: [unclosed"), 0o600))
	_, err = Load(path)
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	cfg.API.BaseURL = "ftp://x"
	cfg.Storage.Driver = DriverPostgres
	cfg.Realtime.URL = "http://not-ws"
	cfg.Log.Format = "xml"

	err = cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{"api.base_url", "storage.dsn", "realtime.url", "log.format"} {
		require.Contains(t, err.Error(), want)
	}
}
