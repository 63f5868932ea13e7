package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/stewardhq/steward/internal/orphans"
)

var orphansResolve bool

var orphansCmd = &cobra.Command{
	Use:   "orphans",
	Short: "List or resolve tasks with no live parent project",
	Long: `List tasks whose parent is missing or archived. With --resolve, try
to assign each one to a project: name containment, fuzzy name match,
batch sibling, the owner's only project, and finally the owner's
"Unsorted Tasks" holding project.

Example:
  steward orphans
  steward orphans --resolve`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		resolver, err := orphans.NewResolver(store, orphans.ConfigFromEnv())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		tasks, err := resolver.FindOrphanedTasks(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		green := color.New(color.FgGreen).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()

		if len(tasks) == 0 {
			fmt.Printf("%s No orphaned tasks\n", green("✓"))
			return
		}

		yellow := color.New(color.FgYellow).SprintFunc()
		fmt.Printf("%s\n", yellow(fmt.Sprintf("Orphaned tasks (%d):", len(tasks))))
		for _, task := range tasks {
			fmt.Printf("  %s  %s\n", gray(task.ID), task.Name)
		}

		if !orphansResolve {
			fmt.Printf("\n%s\n", gray("Run with --resolve to assign them to projects"))
			return
		}

		result, err := resolver.ResolveOrphans(ctx, tasks)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		fmt.Println()
		for _, res := range result.Resolved {
			fmt.Printf("%s %q -> %s %s\n", green("✓"), res.TaskName, res.ParentID, gray("("+res.Method+")"))
		}
		if len(result.Unresolved) > 0 {
			fmt.Printf("%s\n", yellow(fmt.Sprintf("Unresolved: %d", len(result.Unresolved))))
		}
		printItemErrors(result.Errors)
	},
}

func init() {
	rootCmd.AddCommand(orphansCmd)
	orphansCmd.Flags().BoolVar(&orphansResolve, "resolve", false, "Assign orphans to projects")
}
