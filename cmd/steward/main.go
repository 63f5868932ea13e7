// steward is the activity-hierarchy data-quality CLI: it audits the
// activity store, finds and merges duplicates, re-homes orphaned tasks,
// and links clients.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/stewardhq/steward/internal/config"
	"github.com/stewardhq/steward/internal/storage"
)

var (
	// store is shared by every command; opened by the root pre-run
	store storage.Storage
	cfg   config.Config

	flagConfigPath string
	flagDBPath     string
)

var rootCmd = &cobra.Command{
	Use:   "steward",
	Short: "Data-quality engine for activity hierarchies",
	Long: `steward keeps an activity hierarchy clean: it audits data quality,
detects and merges duplicate activities, assigns orphaned tasks to
projects, and resolves missing client links.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// init creates the database; everything else requires it.
		if cmd.Name() == "init" || cmd.Name() == "help" {
			return nil
		}

		var err error
		cfg, err = config.Load(flagConfigPath)
		if err != nil {
			return err
		}
		if flagDBPath != "" {
			cfg.DBPath = flagDBPath
		}

		if _, err := os.Stat(cfg.DBPath); os.IsNotExist(err) {
			return fmt.Errorf("no database at %s (run 'steward init' first)", cfg.DBPath)
		}

		store, err = storage.NewStorage(cmd.Context(), &storage.Config{Path: cfg.DBPath})
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if store != nil {
			_ = store.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfigPath, "config", "steward.yaml", "Path to the YAML config file")
	rootCmd.PersistentFlags().StringVar(&flagDBPath, "db", "", "SQLite database path (overrides config)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
