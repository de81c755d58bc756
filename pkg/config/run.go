// Package config loads the read-only settings of a story run.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/entrhq/seauto/pkg/browser"
	"github.com/gobwas/glob"
	"gopkg.in/yaml.v3"
)

// Environment variables that override the configuration file at load time
const (
	EnvDryRun    = "SEAUTO_DRY_RUN"
	EnvBrowser   = "SEAUTO_BROWSER"
	EnvOutputDir = "SEAUTO_OUTPUT_DIR"
	EnvSiteURL   = "SEAUTO_SITE_URL"
	EnvRemoteURL = "SEAUTO_REMOTE_URL"
)

// RunConfig holds the settings of one run. It is loaded once and passed by
// value, so every story reads it without synchronization.
type RunConfig struct {
	// DryRun walks the stories without starting browsers or contexts
	DryRun bool `yaml:"dry_run" json:"dry_run"`

	// SkipAfterFailure skips the remaining scenarios of a story once one fails
	SkipAfterFailure bool `yaml:"skip_after_failure" json:"skip_after_failure"`

	// DebugEnabled pauses before each visible browser is closed
	DebugEnabled bool `yaml:"debug" json:"debug"`

	// OutputDirectory receives screenshots/ and logs/
	OutputDirectory string `yaml:"output_directory" json:"output_directory"`

	// BrowserName selects the browser kind, case-insensitively
	BrowserName string `yaml:"browser" json:"browser"`

	// SiteURL is the root of the application under test
	SiteURL string `yaml:"site_url" json:"site_url"`

	// RemoteURL is the playwright server endpoint for the remote browser
	RemoteURL string `yaml:"remote_url" json:"remote_url"`

	// InstallBrowsers downloads playwright browsers before the first launch
	InstallBrowsers bool `yaml:"install_browsers" json:"install_browsers"`

	// StoryFilter is a glob matched against story names; empty runs all
	StoryFilter string `yaml:"story_filter" json:"story_filter"`

	// Concurrency is the number of stories run at once
	Concurrency int `yaml:"concurrency" json:"concurrency"`

	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// LoggingConfig defines logging configuration
type LoggingConfig struct {
	// Directory for run logs; defaults to <output_directory>/logs
	Directory string `yaml:"directory" json:"directory"`

	// Console mirrors INFO and above to stderr
	Console bool `yaml:"console" json:"console"`
}

// DefaultConfig returns a configuration suitable for a local headless run
func DefaultConfig() RunConfig {
	return RunConfig{
		OutputDirectory: "target/seauto",
		BrowserName:     string(browser.ChromeHeadless),
		Concurrency:     1,
		Logging: LoggingConfig{
			Console: true,
		},
	}
}

// Validate validates the configuration
func (c RunConfig) Validate() error {
	if c.OutputDirectory == "" {
		return fmt.Errorf("output_directory is required")
	}

	kind, err := browser.ParseKind(c.BrowserName)
	if err != nil {
		return err
	}
	if kind == browser.Remote && c.RemoteURL == "" {
		return fmt.Errorf("browser %q requires remote_url", c.BrowserName)
	}

	if c.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1, got %d", c.Concurrency)
	}

	if c.StoryFilter != "" {
		if _, err := glob.Compile(c.StoryFilter); err != nil {
			return fmt.Errorf("invalid story_filter %q: %w", c.StoryFilter, err)
		}
	}

	return nil
}

// LogDirectory returns where run logs are written
func (c RunConfig) LogDirectory() string {
	if c.Logging.Directory != "" {
		return c.Logging.Directory
	}
	return filepath.Join(c.OutputDirectory, "logs")
}

// Load reads a YAML file on top of DefaultConfig and applies environment
// overrides. An empty path loads defaults plus environment only.
func Load(path string) (RunConfig, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return RunConfig{}, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return RunConfig{}, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return RunConfig{}, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from the environment seen through lookup.
func (c *RunConfig) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvDryRun); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s value %q: %w", EnvDryRun, v, err)
		}
		c.DryRun = b
	}
	if v, ok := lookup(EnvBrowser); ok && v != "" {
		c.BrowserName = v
	}
	if v, ok := lookup(EnvOutputDir); ok && v != "" {
		c.OutputDirectory = v
	}
	if v, ok := lookup(EnvSiteURL); ok && v != "" {
		c.SiteURL = v
	}
	if v, ok := lookup(EnvRemoteURL); ok && v != "" {
		c.RemoteURL = v
	}
	return nil
}
