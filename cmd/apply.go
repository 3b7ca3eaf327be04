package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/briandowns/spinner"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/amarra-project/amarra/pkg/config"
	"github.com/amarra-project/amarra/pkg/display"
	"github.com/amarra-project/amarra/pkg/models"
	"github.com/amarra-project/amarra/pkg/runner"
)

var applyCmd = &cobra.Command{
	Use:   "apply <document>",
	Short: "Converge AWS resources to the document",
	Long: `Apply reads the desired-state document and converges every resource
in it. Resources are processed in document order within each region;
regions run concurrently.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDocument(cmd, args[0], runner.Options{})
	},
}

func runDocument(cmd *cobra.Command, path string, opts runner.Options) error {
	settings, err := config.FromViper(viper.GetViper())
	if err != nil {
		return err
	}
	opts.Region = settings.Region
	opts.Profile = settings.Profile
	if settings.DocumentDir != "" && !filepath.IsAbs(path) {
		path = filepath.Join(settings.DocumentDir, path)
	}

	doc, err := models.LoadDocument(path)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), settings.Timeout)
	defer cancel()

	stop := startSpinner(runVerb(opts), doc.Name)
	summary, err := runner.New(opts).Run(ctx, doc)
	stop()
	if err != nil {
		return err
	}

	fmt.Fprint(cmd.OutOrStdout(), display.RenderSummary(summary))
	if summary.Failed() {
		return fmt.Errorf("document %s did not fully converge", doc.Name)
	}
	return nil
}

func runVerb(opts runner.Options) string {
	switch {
	case opts.Destroy:
		return "Destroying"
	case opts.CheckMode:
		return "Planning"
	default:
		return "Applying"
	}
}

// startSpinner shows progress while AWS waiters run. It is a no-op
// when stdout is not a terminal so piped output stays clean.
func startSpinner(verb, document string) func() {
	if !isatty.IsTerminal(os.Stdout.Fd()) {
		return func() {}
	}
	s := spinner.New(spinner.CharSets[9], 100*time.Millisecond)
	s.Suffix = fmt.Sprintf(" %s %s...", verb, document)
	s.Start()
	return s.Stop
}
