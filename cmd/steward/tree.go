package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/stewardhq/steward/internal/types"
)

var treeCmd = &cobra.Command{
	Use:   "tree [activity-id]",
	Short: "Show an activity subtree",
	Long: `Print the subtree rooted at the given activity, or every root
activity when no id is given.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()

		var roots []*types.Activity
		if len(args) == 1 {
			root, err := store.GetActivity(ctx, args[0])
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			roots = []*types.Activity{root}
		} else {
			all, err := store.ListActivities(ctx, types.ActivityFilter{})
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			for _, a := range all {
				if a.ParentID == "" {
					roots = append(roots, a)
				}
			}
		}

		for _, root := range roots {
			subtree, err := store.GetSubtree(ctx, root.ID)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			printSubtree(root, subtree)
		}
	},
}

// printSubtree renders the root and its descendants depth-first
func printSubtree(root *types.Activity, descendants []*types.Activity) {
	children := make(map[string][]*types.Activity)
	for _, a := range descendants {
		children[a.ParentID] = append(children[a.ParentID], a)
	}

	var walk func(a *types.Activity, level int)
	walk = func(a *types.Activity, level int) {
		printNode(a, level)
		for _, child := range children[a.ID] {
			walk(child, level+1)
		}
	}
	walk(root, 0)
}

func printNode(a *types.Activity, level int) {
	gray := color.New(color.FgHiBlack).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()

	marker := ""
	if a.Status != types.StatusActive {
		marker = gray(" [" + string(a.Status) + "]")
	}
	fmt.Printf("%s%s %s%s %s\n", strings.Repeat("  ", level), cyan(string(a.Type)), a.Name, marker, gray(a.ID))
}

func init() {
	rootCmd.AddCommand(treeCmd)
}
