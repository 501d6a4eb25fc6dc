package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/barambur26/go-aidock-client/internal/config"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8000", cfg.BaseURL)
	assert.Equal(t, 2*time.Minute, cfg.RefreshMargin)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.NotEmpty(t, cfg.DataDir)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("AIDOCK_BASE_URL", "https://api.example.com")
	t.Setenv("AIDOCK_DATA_DIR", "/tmp/aidock-test")
	t.Setenv("AIDOCK_REFRESH_MARGIN", "45s")
	t.Setenv("AIDOCK_REQUEST_TIMEOUT", "5s")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "https://api.example.com", cfg.BaseURL)
	assert.Equal(t, "/tmp/aidock-test", cfg.DataDir)
	assert.Equal(t, 45*time.Second, cfg.RefreshMargin)
	assert.Equal(t, 5*time.Second, cfg.RequestTimeout)
}
