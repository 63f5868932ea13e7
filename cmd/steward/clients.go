package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/stewardhq/steward/internal/clients"
)

var clientsApply bool

var clientsCmd = &cobra.Command{
	Use:   "clients",
	Short: "Resolve missing client links on projects and businesses",
	Long: `Find projects and businesses with no client and infer one from an
ingestion-supplied client name, a client-role member, or an organization
member. Reports by default; --apply writes the links.

Example:
  steward clients
  steward clients --apply`,
	Run: func(cmd *cobra.Command, args []string) {
		resolver, err := clients.NewResolver(store)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		result, err := resolver.AutoResolveClients(cmd.Context(), !clientsApply)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		green := color.New(color.FgGreen).SprintFunc()
		yellow := color.New(color.FgYellow).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()

		fmt.Printf("Scanned %d activities missing a client\n\n", result.Scanned)
		for _, a := range result.Assigned {
			fmt.Printf("%s %q -> %s %s\n", green("✓"), a.ActivityName, a.ClientName, gray("("+a.Method+")"))
		}
		if result.Unresolved > 0 {
			fmt.Printf("%s\n", yellow(fmt.Sprintf("Unresolved: %d", result.Unresolved)))
		}
		if result.DryRun && len(result.Assigned) > 0 {
			fmt.Printf("\n%s\n", gray("Dry run: re-run with --apply to write these links"))
		}
		printItemErrors(result.Errors)
	},
}

func init() {
	rootCmd.AddCommand(clientsCmd)
	clientsCmd.Flags().BoolVar(&clientsApply, "apply", false, "Write the resolved client links")
}
