package cmd

import (
	"github.com/spf13/cobra"

	"github.com/amarra-project/amarra/pkg/runner"
)

var planCmd = &cobra.Command{
	Use:   "plan <document>",
	Short: "Show what apply would change without changing anything",
	Long: `Plan computes the change set for the document without issuing a
single mutating AWS call. Resources that would be created, modified,
or deleted are listed with their attribute changes.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDocument(cmd, args[0], runner.Options{CheckMode: true})
	},
}
