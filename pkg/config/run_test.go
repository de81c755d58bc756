package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(vars map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.False(t, cfg.DryRun)
	assert.Equal(t, "chrome-headless", cfg.BrowserName)
	assert.Equal(t, filepath.Join("target/seauto", "logs"), cfg.LogDirectory())
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seauto.yaml")
	content := `
dry_run: true
skip_after_failure: true
debug: true
output_directory: /tmp/stories
browser: FIREFOX
site_url: https://www.bing.com
story_filter: "search/*"
concurrency: 4
logging:
  directory: /var/log/seauto
  console: false
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.True(t, cfg.DryRun)
	assert.True(t, cfg.SkipAfterFailure)
	assert.True(t, cfg.DebugEnabled)
	assert.Equal(t, "/tmp/stories", cfg.OutputDirectory)
	assert.Equal(t, "FIREFOX", cfg.BrowserName)
	assert.Equal(t, "https://www.bing.com", cfg.SiteURL)
	assert.Equal(t, "search/*", cfg.StoryFilter)
	assert.Equal(t, 4, cfg.Concurrency)
	assert.Equal(t, "/var/log/seauto", cfg.LogDirectory())
	assert.False(t, cfg.Logging.Console)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("concurrency: [1, 2"), 0600))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config file")
}

func TestApplyEnv(t *testing.T) {
	cfg := DefaultConfig()
	err := cfg.ApplyEnv(env(map[string]string{
		EnvDryRun:    "true",
		EnvBrowser:   "htmlunit",
		EnvOutputDir: "/out",
		EnvSiteURL:   "http://localhost:8080",
		EnvRemoteURL: "ws://grid:3000/",
	}))
	require.NoError(t, err)

	assert.True(t, cfg.DryRun)
	assert.Equal(t, "htmlunit", cfg.BrowserName)
	assert.Equal(t, "/out", cfg.OutputDirectory)
	assert.Equal(t, "http://localhost:8080", cfg.SiteURL)
	assert.Equal(t, "ws://grid:3000/", cfg.RemoteURL)
}

func TestApplyEnv_InvalidBool(t *testing.T) {
	cfg := DefaultConfig()
	err := cfg.ApplyEnv(env(map[string]string{EnvDryRun: "sometimes"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), EnvDryRun)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*RunConfig)
		wantErr string
	}{
		{"unknown browser", func(c *RunConfig) { c.BrowserName = "netscape" }, "unknown browser"},
		{"missing output", func(c *RunConfig) { c.OutputDirectory = "" }, "output_directory is required"},
		{"remote without url", func(c *RunConfig) { c.BrowserName = "remote" }, "requires remote_url"},
		{"zero concurrency", func(c *RunConfig) { c.Concurrency = 0 }, "concurrency must be at least 1"},
		{"bad filter", func(c *RunConfig) { c.StoryFilter = "[" }, "invalid story_filter"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
