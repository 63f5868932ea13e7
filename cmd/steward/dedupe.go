package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/stewardhq/steward/internal/ai"
	"github.com/stewardhq/steward/internal/dedup"
	"github.com/stewardhq/steward/internal/merge"
	"github.com/stewardhq/steward/internal/types"
)

var (
	dedupeAuto   bool
	dedupeBatch  bool
	dedupeDryRun bool
)

var dedupeCmd = &cobra.Command{
	Use:   "dedupe",
	Short: "Find and merge duplicate activities",
	Long: `Report duplicate activity groups (same normalized name and type).

With --auto, merge every group into its best keeper. With --batch, run the
embedding-similarity pass instead: near-certain pairs merge directly and
mid-confidence pairs are arbitrated by the LLM oracle (requires
ANTHROPIC_API_KEY). --dry-run reports what would merge without writing.

Example:
  steward dedupe
  steward dedupe --auto
  steward dedupe --batch --dry-run`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		detector := dedup.NewDetector(store)
		engine := merge.NewEngine(store)

		if dedupeBatch {
			runBatchDedupe(cmd, engine)
			return
		}

		groups, err := detector.FindDuplicateGroups(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		green := color.New(color.FgGreen).SprintFunc()
		if len(groups) == 0 {
			fmt.Printf("%s No duplicate groups found\n", green("✓"))
			return
		}

		yellow := color.New(color.FgYellow).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()
		fmt.Printf("%s\n", yellow(fmt.Sprintf("Duplicate groups (%d):", len(groups))))
		for _, g := range groups {
			fmt.Printf("  %s (%s, %d copies)\n", g.NormalizedName, g.Type, g.Count)
			for _, m := range g.Members {
				fmt.Printf("    %s  %s  %s\n", gray(m.ID), m.Name, gray(m.CreatedAt.Format("2006-01-02")))
			}
		}

		if !dedupeAuto {
			fmt.Printf("\n%s\n", gray("Run with --auto to merge each group into its best keeper"))
			return
		}

		result, err := engine.AutoMergeAll(ctx, groups, dedupeDryRun)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		printAutoMergeResult(result)
	},
}

func runBatchDedupe(cmd *cobra.Command, engine *merge.Engine) {
	jobConfig, err := dedup.JobConfigFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	jobConfig.DryRun = jobConfig.DryRun || dedupeDryRun || cfg.DryRun

	// The oracle is optional: without an API key only the near-certain
	// band merges.
	var oracle ai.Oracle
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if apiKey != "" {
		arbiter, err := ai.NewArbiter(&ai.Config{APIKey: apiKey, Model: cfg.Model})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		oracle = arbiter
	} else {
		gray := color.New(color.FgHiBlack).SprintFunc()
		fmt.Printf("%s\n", gray("No ANTHROPIC_API_KEY set; skipping oracle arbitration"))
	}

	job, err := dedup.NewJob(store, engine, oracle, jobConfig)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	result, err := job.Run(cmd.Context())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: batch dedup failed: %v\n", err)
		os.Exit(1)
	}

	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	fmt.Printf("\n%s\n\n", cyan("=== Batch Dedup ==="))
	fmt.Printf("  Pairs scanned:   %d\n", result.PairsScanned)
	fmt.Printf("  Auto-merged:     %d\n", result.AutoMerged)
	fmt.Printf("  Oracle merged:   %d\n", result.OracleMerged)
	fmt.Printf("  Oracle rejected: %d\n", result.OracleRejected)
	fmt.Printf("  Oracle calls:    %d\n", result.OracleCalls)
	fmt.Printf("  Skipped:         %d\n", result.Skipped)
	fmt.Printf("  Duration:        %dms\n", result.DurationMs)
	if result.DryRun {
		yellow := color.New(color.FgYellow).SprintFunc()
		fmt.Printf("  %s\n", yellow("dry run: nothing was written"))
	}
	printItemErrors(result.Errors)
}

func printAutoMergeResult(result *merge.AutoMergeResult) {
	green := color.New(color.FgGreen).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()

	fmt.Println()
	if result.DryRun {
		fmt.Printf("%s\n", yellow("Dry run: nothing was written"))
		for _, p := range result.Planned {
			fmt.Printf("  would keep %s, merge %v (%s)\n", p.Keeper, p.MergeIDs, gray(p.Name))
		}
		return
	}
	fmt.Printf("%s Merged %d activities across %d groups\n",
		green("✓"), result.ActivitiesMerged, result.GroupsMerged)
	printItemErrors(result.Errors)
}

func printItemErrors(errs []types.ItemError) {
	if len(errs) == 0 {
		return
	}
	red := color.New(color.FgRed).SprintFunc()
	fmt.Printf("%s\n", red(fmt.Sprintf("Errors (%d):", len(errs))))
	for _, e := range errs {
		fmt.Printf("  %s: %s\n", e.ID, e.Err)
	}
}

func init() {
	rootCmd.AddCommand(dedupeCmd)
	dedupeCmd.Flags().BoolVar(&dedupeAuto, "auto", false, "Merge every duplicate group into its best keeper")
	dedupeCmd.Flags().BoolVar(&dedupeBatch, "batch", false, "Run the embedding-similarity batch pass")
	dedupeCmd.Flags().BoolVar(&dedupeDryRun, "dry-run", false, "Report what would merge without writing")
}
