package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"newtab/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "newtab.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := config.LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, 30*time.Minute, cfg.Storage.CacheTTL.Duration)
	assert.Equal(t, 12, cfg.Layout.GridCols)
	assert.Len(t, cfg.Layout.Widgets, 5)
	assert.Equal(t, 16*1024*1024, cfg.Server.BodyLimit)
}

func TestLoadConfigExampleFile(t *testing.T) {
	cfg, err := config.LoadConfig("newtab.toml")
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Feeds.ForecastDays)
	assert.Len(t, cfg.Layout.Widgets, 6)
	assert.False(t, cfg.Layout.Widgets[5].Visible)
	assert.Equal(t, 33554432, cfg.Server.BodyLimit)
}

func TestLoadConfigOverrides(t *testing.T) {
	path := writeConfig(t, `
[storage]
cache_ttl = "10m"

[feeds.endpoints]
github = "http://localhost:9999/search"
`)

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 10*time.Minute, cfg.Storage.CacheTTL.Duration)
	assert.Equal(t, "http://localhost:9999/search", cfg.Feeds.Endpoints.GitHub)
	// Untouched keys keep their defaults
	assert.Equal(t, "https://www.zhihu.com/api/v3/feed/topstory/hot-lists/total", cfg.Feeds.Endpoints.Zhihu)
	assert.Len(t, cfg.Layout.Widgets, 5)
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name:    "bad duration",
			content: "[storage]\ncache_ttl = \"soon\"\n",
		},
		{
			name:    "invalid toml",
			content: "[storage\n",
		},
		{
			name: "duplicate widget",
			content: `
[[layout.widgets]]
id = "search"
[[layout.widgets]]
id = "search"
`,
		},
		{
			name:    "zero body limit",
			content: "[server]\nbody_limit = 0\n",
		},
		{
			name:    "zero grid cols",
			content: "[layout]\ngrid_cols = 0\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.LoadConfig(writeConfig(t, tt.content))
			assert.Error(t, err)
		})
	}

	_, err := config.LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestDefaultLayoutIsACopy(t *testing.T) {
	cfg := config.Default()
	layout := cfg.DefaultLayout()
	layout.Widgets[0].Y = 99

	assert.Equal(t, 2, cfg.Layout.Widgets[0].Y)
}
