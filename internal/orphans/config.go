package orphans

import (
	"fmt"
	"os"
	"strconv"
)

// Config controls the orphan resolution strategy chain
type Config struct {
	// FuzzyThreshold is the minimum name similarity for the fuzzy strategy
	FuzzyThreshold float64

	// EnableFuzzy toggles the fuzzy similarity strategy
	EnableFuzzy bool

	// MinContainmentLen is the minimum normalized project name length
	// considered by the containment strategy
	MinContainmentLen int

	// BatchMetadataKey is the metadata key identifying tasks ingested together
	BatchMetadataKey string

	// UnsortedProjectName is the sentinel project used as a last resort
	UnsortedProjectName string
}

// DefaultConfig returns the default orphan resolution configuration
func DefaultConfig() Config {
	return Config{
		FuzzyThreshold:      0.6,
		EnableFuzzy:         true,
		MinContainmentLen:   3,
		BatchMetadataKey:    "batch_id",
		UnsortedProjectName: "Unsorted Tasks",
	}
}

// Validate checks the configuration for invalid values
func (c *Config) Validate() error {
	if c.FuzzyThreshold < 0.0 || c.FuzzyThreshold > 1.0 {
		return fmt.Errorf("fuzzy threshold must be between 0.0 and 1.0, got %.2f", c.FuzzyThreshold)
	}
	if c.MinContainmentLen < 1 {
		return fmt.Errorf("min containment length must be at least 1, got %d", c.MinContainmentLen)
	}
	if c.BatchMetadataKey == "" {
		return fmt.Errorf("batch metadata key cannot be empty")
	}
	if c.UnsortedProjectName == "" {
		return fmt.Errorf("unsorted project name cannot be empty")
	}
	return nil
}

// ConfigFromEnv returns a Config with environment variable overrides applied.
//
// Environment variables:
//   - STEWARD_ORPHANS_FUZZY_THRESHOLD: minimum fuzzy match similarity
//   - STEWARD_ORPHANS_ENABLE_FUZZY: "true" or "false"
//   - STEWARD_ORPHANS_BATCH_KEY: metadata key for batch grouping
//   - STEWARD_ORPHANS_UNSORTED_NAME: sentinel project name
func ConfigFromEnv() Config {
	config := DefaultConfig()

	if v := os.Getenv("STEWARD_ORPHANS_FUZZY_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			config.FuzzyThreshold = f
		}
	}
	if v := os.Getenv("STEWARD_ORPHANS_ENABLE_FUZZY"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			config.EnableFuzzy = b
		}
	}
	if v := os.Getenv("STEWARD_ORPHANS_BATCH_KEY"); v != "" {
		config.BatchMetadataKey = v
	}
	if v := os.Getenv("STEWARD_ORPHANS_UNSORTED_NAME"); v != "" {
		config.UnsortedProjectName = v
	}

	return config
}
