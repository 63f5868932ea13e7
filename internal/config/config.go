// Package config loads the root steward configuration: environment
// variables first (STEWARD_ prefix), optionally overlaid on a
// steward.yaml file. Per-engine tuning lives with each engine; this
// package only carries the shared surface.
package config

import (
	"fmt"
	"os"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config is the root steward configuration
type Config struct {
	// DBPath is the SQLite database location
	DBPath string `envconfig:"DB_PATH" yaml:"db_path"`

	// Model overrides the Anthropic model used by the dedup oracle
	Model string `envconfig:"MODEL" yaml:"model"`

	// APIKey is the Anthropic API key. ANTHROPIC_API_KEY is honored as a
	// fallback by the oracle client itself; this field wins when set.
	APIKey string `envconfig:"API_KEY" yaml:"api_key"`

	// DryRun makes every mutating batch command report instead of write
	DryRun bool `envconfig:"DRY_RUN" yaml:"dry_run"`
}

// Default returns the baseline configuration
func Default() Config {
	return Config{
		DBPath: ".steward/steward.db",
	}
}

// Load builds the effective configuration: defaults, then the YAML file
// at path (skipped when path is empty or the file does not exist), then
// STEWARD_* environment variables on top.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// No config file is fine.
		case err != nil:
			return cfg, fmt.Errorf("reading config file %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parsing config file %s: %w", path, err)
			}
		}
	}

	if err := envconfig.Process("steward", &cfg); err != nil {
		return cfg, fmt.Errorf("reading environment: %w", err)
	}
	return cfg, nil
}
