package dedup

import (
	"fmt"
	"os"
	"strconv"
)

// JobConfig tunes the batch dedup job. The thresholds are heuristics tuned
// on observed data, not domain constants, so all of them are configurable.
type JobConfig struct {
	// ScanFloor is the minimum embedding similarity for a pair to be
	// considered at all. Below it pairs are never surfaced.
	// Default: 0.60
	ScanFloor float64

	// AutoMergeThreshold is the embedding similarity at or above which a
	// pair merges without consulting the oracle.
	// Default: 0.92
	AutoMergeThreshold float64

	// OracleConfidence is the minimum oracle confidence to merge a
	// mid-band pair (ScanFloor <= similarity < AutoMergeThreshold).
	// Default: 0.80
	OracleConfidence float64

	// MaxPairsPerRun caps the pairs examined per invocation so each run
	// stays short. Remaining pairs wait for the next scheduled run.
	// Default: 25
	MaxPairsPerRun int

	// OracleBatchSize is how many pairs go into a single oracle call.
	// Default: 10
	OracleBatchSize int

	// DryRun reports what would merge without writing anything.
	DryRun bool
}

// DefaultJobConfig returns the default batch job configuration
func DefaultJobConfig() JobConfig {
	return JobConfig{
		ScanFloor:          0.60,
		AutoMergeThreshold: 0.92,
		OracleConfidence:   0.80,
		MaxPairsPerRun:     25,
		OracleBatchSize:    10,
	}
}

// Validate checks the configuration for coherent values
func (c JobConfig) Validate() error {
	if c.ScanFloor < 0 || c.ScanFloor > 1 {
		return fmt.Errorf("scan_floor must be between 0.0 and 1.0 (got %.2f)", c.ScanFloor)
	}
	if c.AutoMergeThreshold < 0 || c.AutoMergeThreshold > 1 {
		return fmt.Errorf("auto_merge_threshold must be between 0.0 and 1.0 (got %.2f)", c.AutoMergeThreshold)
	}
	if c.AutoMergeThreshold < c.ScanFloor {
		return fmt.Errorf("auto_merge_threshold (%.2f) must be >= scan_floor (%.2f)",
			c.AutoMergeThreshold, c.ScanFloor)
	}
	if c.OracleConfidence < 0 || c.OracleConfidence > 1 {
		return fmt.Errorf("oracle_confidence must be between 0.0 and 1.0 (got %.2f)", c.OracleConfidence)
	}
	if c.MaxPairsPerRun <= 0 {
		return fmt.Errorf("max_pairs_per_run must be positive (got %d)", c.MaxPairsPerRun)
	}
	if c.MaxPairsPerRun > 500 {
		return fmt.Errorf("max_pairs_per_run too large (got %d, max 500)", c.MaxPairsPerRun)
	}
	if c.OracleBatchSize <= 0 {
		return fmt.Errorf("oracle_batch_size must be positive (got %d)", c.OracleBatchSize)
	}
	if c.OracleBatchSize > 100 {
		return fmt.Errorf("oracle_batch_size too large (got %d, max 100)", c.OracleBatchSize)
	}
	return nil
}

// JobConfigFromEnv creates a JobConfig from environment variables, falling
// back to defaults.
//
// Environment variables:
//   - STEWARD_DEDUP_SCAN_FLOOR: minimum similarity to surface a pair (default: 0.60)
//   - STEWARD_DEDUP_AUTO_THRESHOLD: similarity for oracle-free merge (default: 0.92)
//   - STEWARD_DEDUP_ORACLE_CONFIDENCE: minimum oracle confidence (default: 0.80)
//   - STEWARD_DEDUP_MAX_PAIRS: pairs examined per run (default: 25)
//   - STEWARD_DEDUP_ORACLE_BATCH: pairs per oracle call (default: 10)
func JobConfigFromEnv() (JobConfig, error) {
	cfg := DefaultJobConfig()

	if err := parseEnvFloat("STEWARD_DEDUP_SCAN_FLOOR", &cfg.ScanFloor); err != nil {
		return cfg, err
	}
	if err := parseEnvFloat("STEWARD_DEDUP_AUTO_THRESHOLD", &cfg.AutoMergeThreshold); err != nil {
		return cfg, err
	}
	if err := parseEnvFloat("STEWARD_DEDUP_ORACLE_CONFIDENCE", &cfg.OracleConfidence); err != nil {
		return cfg, err
	}
	if err := parseEnvInt("STEWARD_DEDUP_MAX_PAIRS", &cfg.MaxPairsPerRun); err != nil {
		return cfg, err
	}
	if err := parseEnvInt("STEWARD_DEDUP_ORACLE_BATCH", &cfg.OracleBatchSize); err != nil {
		return cfg, err
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration from environment: %w", err)
	}
	return cfg, nil
}

func parseEnvFloat(key string, dest *float64) error {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
}

func parseEnvInt(key string, dest *int) error {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
}
