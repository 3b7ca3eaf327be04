package cmd

import (
	"github.com/spf13/cobra"

	"github.com/amarra-project/amarra/pkg/runner"
)

var destroyCheck bool

var destroyCmd = &cobra.Command{
	Use:   "destroy <document>",
	Short: "Delete every resource the document manages",
	Long: `Destroy deletes the document's resources in reverse document order,
so dependents are removed before the resources they depend on.
Resources that are already gone count as converged, which makes
destroy safe to re-run after a partial failure.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDocument(cmd, args[0], runner.Options{
			Destroy:   true,
			CheckMode: destroyCheck,
		})
	},
}

func init() {
	destroyCmd.Flags().
		BoolVar(&destroyCheck, "check", false, "Show what would be deleted without deleting")
}
