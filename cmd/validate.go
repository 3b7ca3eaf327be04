package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/amarra-project/amarra/pkg/models"
)

var validateCmd = &cobra.Command{
	Use:   "validate <document>",
	Short: "Check a document for structural problems",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := models.LoadDocument(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(),
			"Document %s is valid (%d resources)\n", doc.Name, len(doc.Resources))
		return nil
	},
}
