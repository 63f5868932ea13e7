package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/stewardhq/steward/internal/merge"
)

var mergeCmd = &cobra.Command{
	Use:   "merge <keep-id> <merge-id> [merge-id...]",
	Short: "Merge activities into a keeper",
	Long: `Consolidate one or more activities into the keeper: their children,
members and commitments move to the keeper and the merged activities are
archived. The whole merge is one transaction.

Example:
  steward merge 7f3a... 9c1b... 4e2d...`,
	Args: cobra.MinimumNArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		engine := merge.NewEngine(store)
		keepID, mergeIDs := args[0], args[1:]

		if err := engine.Merge(cmd.Context(), keepID, mergeIDs); err != nil {
			fmt.Fprintf(os.Stderr, "Error: merge failed: %v\n", err)
			os.Exit(1)
		}

		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s Merged %d activities into %s\n", green("✓"), len(mergeIDs), keepID)
	},
}

func init() {
	rootCmd.AddCommand(mergeCmd)
}
