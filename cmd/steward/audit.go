package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/stewardhq/steward/internal/audit"
	"github.com/stewardhq/steward/internal/types"
)

var (
	auditResolveBy     string
	auditResolveAction string
	auditHistoryLimit  int
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Run a data-quality audit and save the report",
	Long: `Scan the activity store for duplicates, orphaned tasks and missing
client links, compute quality metrics, and persist a report.

Example:
  steward audit
  steward audit metrics
  steward audit resolve <report-id> 3 --by=dana --action="merged duplicates"`,
	Run: func(cmd *cobra.Command, args []string) {
		auditor, err := audit.NewAuditor(store)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		report, err := auditor.RunFullAudit(cmd.Context())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: audit failed: %v\n", err)
			os.Exit(1)
		}

		printReport(report)
	},
}

var auditMetricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Show current quality metrics without saving a report",
	Run: func(cmd *cobra.Command, args []string) {
		auditor, err := audit.NewAuditor(store)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		metrics, err := auditor.GetCurrentMetrics(cmd.Context())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		printMetrics(metrics)
	},
}

var auditHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent audit reports",
	Run: func(cmd *cobra.Command, args []string) {
		auditor, err := audit.NewAuditor(store)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		reports, err := auditor.History(cmd.Context(), auditHistoryLimit)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		gray := color.New(color.FgHiBlack).SprintFunc()
		if len(reports) == 0 {
			fmt.Printf("%s\n", gray("No audit reports yet"))
			return
		}
		for _, r := range reports {
			fmt.Printf("%s  %s  %s  %d issues\n",
				r.ReportDate.Format("2006-01-02 15:04"),
				r.ID,
				statusColor(r.Status)(string(r.Status)),
				len(r.Issues))
		}
	},
}

var auditResolveCmd = &cobra.Command{
	Use:   "resolve <report-id> <issue-index>",
	Short: "Mark an issue on a report as addressed",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		index, err := strconv.Atoi(args[1])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: issue index must be a number: %v\n", err)
			os.Exit(1)
		}

		auditor, err := audit.NewAuditor(store)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		report, err := auditor.ResolveIssue(cmd.Context(), args[0], index, auditResolveBy, auditResolveAction)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s Issue %d resolved; report is now %s\n", green("✓"), index, report.Status)
	},
}

func statusColor(s types.ReportStatus) func(a ...interface{}) string {
	switch s {
	case types.ReportResolved:
		return color.New(color.FgGreen).SprintFunc()
	case types.ReportReviewed:
		return color.New(color.FgYellow).SprintFunc()
	default:
		return color.New(color.FgRed).SprintFunc()
	}
}

func severityColor(s types.IssueSeverity) func(a ...interface{}) string {
	switch s {
	case types.SeverityHigh:
		return color.New(color.FgRed).SprintFunc()
	case types.SeverityMedium:
		return color.New(color.FgYellow).SprintFunc()
	default:
		return color.New(color.FgHiBlack).SprintFunc()
	}
}

func printMetrics(m types.QualityMetrics) {
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	fmt.Printf("\n%s\n\n", cyan("=== Quality Metrics ==="))
	fmt.Printf("  Activities:          %d\n", m.TotalActivities)
	fmt.Printf("  Duplicate groups:    %d\n", m.DuplicateGroups)
	fmt.Printf("  Orphaned tasks:      %d\n", m.OrphanedTasks)
	fmt.Printf("  Missing client:      %d\n", m.MissingClient)
	fmt.Printf("  Member coverage:     %.0f%%\n", m.MemberCoverageRate*100)
	fmt.Printf("  Commitment linkage:  %.0f%%\n", m.CommitmentLinkRate*100)
	fmt.Printf("  Inferred relations:  %d\n", m.InferredRelations)
	fmt.Printf("  Field fill rate:     %.0f%%\n", m.FieldFillRate*100)
	fmt.Println()
}

func printReport(r *types.DataQualityReport) {
	printMetrics(r.Metrics)

	yellow := color.New(color.FgYellow).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()

	if len(r.Issues) == 0 {
		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s No issues found\n\n", green("✓"))
		return
	}

	fmt.Printf("%s\n", yellow(fmt.Sprintf("Issues (%d):", len(r.Issues))))
	for i, issue := range r.Issues {
		fmt.Printf("  [%d] %s %s\n", i, severityColor(issue.Severity)(string(issue.Type)), issue.Description)
		if issue.SuggestedAction != "" {
			fmt.Printf("      %s\n", gray(issue.SuggestedAction))
		}
	}
	fmt.Println()
	fmt.Printf("Report %s saved (%s)\n", r.ID, r.Status)
}

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.AddCommand(auditMetricsCmd)
	auditCmd.AddCommand(auditHistoryCmd)
	auditCmd.AddCommand(auditResolveCmd)

	auditHistoryCmd.Flags().IntVar(&auditHistoryLimit, "limit", 10, "Maximum reports to list")
	auditResolveCmd.Flags().StringVar(&auditResolveBy, "by", "", "Who resolved the issue")
	auditResolveCmd.Flags().StringVar(&auditResolveAction, "action", "", "What was done")
}
