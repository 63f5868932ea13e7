package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/stewardhq/steward/internal/config"
	"github.com/stewardhq/steward/internal/storage"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the steward database in the current directory",
	Long: `Create the .steward/ directory and initialize the SQLite database.

Example:
  cd ~/myworkspace
  steward init
  steward audit`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load(flagConfigPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if flagDBPath != "" {
			cfg.DBPath = flagDBPath
		}

		if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
			fmt.Fprintf(os.Stderr, "Error: creating %s: %v\n", filepath.Dir(cfg.DBPath), err)
			os.Exit(1)
		}

		// Opening the database applies the schema.
		db, err := storage.NewStorage(cmd.Context(), &storage.Config{Path: cfg.DBPath})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: initializing database: %v\n", err)
			os.Exit(1)
		}
		_ = db.Close()

		green := color.New(color.FgGreen).SprintFunc()
		cyan := color.New(color.FgCyan).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()

		fmt.Printf("\n%s Initialized steward database\n\n", green("✓"))
		fmt.Printf("  Database: %s\n", cyan(cfg.DBPath))
		fmt.Println()
		fmt.Printf("%s Next steps:\n", gray("→"))
		fmt.Printf("  %s\n", gray("steward audit          # Run a data-quality audit"))
		fmt.Printf("  %s\n", gray("steward dedupe         # Report duplicate activities"))
		fmt.Println()
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
