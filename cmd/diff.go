package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/BDNK1/schedstack/internal/diff"
	"github.com/BDNK1/schedstack/internal/remote"
	"github.com/BDNK1/schedstack/internal/synth"
	"github.com/BDNK1/schedstack/internal/template"
)

var (
	againstFile string
	againstURL  string
	failOnDiff  bool
)

// errDifferences makes --fail-on-diff exit non-zero
var errDifferences = errors.New("templates differ")

var diffCmd = &cobra.Command{
	Use:   "diff [project-dir]",
	Short: "Compare the synthesized template with a previous one",
	Long: `Diff synthesizes the project in memory and compares its template with a
template file or with one fetched over HTTP (for example from
"schedstack serve").

Example:
  schedstack diff . --against cdk.out/sms-notify.template.json
  schedstack diff . --remote http://localhost:8080/template
`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDiff,
}

func init() {
	diffCmd.Flags().StringVar(&againstFile, "against", "", "Template file to compare with")
	diffCmd.Flags().StringVar(&againstURL, "remote", "", "URL of a template to compare with")
	diffCmd.Flags().BoolVar(&failOnDiff, "fail-on-diff", false, "Exit with an error when the templates differ")
	diffCmd.MarkFlagsMutuallyExclusive("against", "remote")
	diffCmd.MarkFlagsOneRequired("against", "remote")
}

func runDiff(cmd *cobra.Command, args []string) error {
	opts, err := synthOptions(args)
	if err != nil {
		return err
	}

	a, err := synth.Build(opts)
	if err != nil {
		return err
	}

	var previous *template.Template
	if againstURL != "" {
		client, err := remote.New(remote.Config{})
		if err != nil {
			return err
		}
		if previous, err = client.FetchTemplate(cmd.Context(), againstURL); err != nil {
			return err
		}
	} else {
		data, err := os.ReadFile(againstFile)
		if err != nil {
			return fmt.Errorf("failed to read template %q: %w", againstFile, err)
		}
		if previous, err = template.Parse(data); err != nil {
			return fmt.Errorf("failed to parse template %q: %w", againstFile, err)
		}
	}

	changes, err := diff.Templates(previous, a.Template)
	if err != nil {
		return err
	}

	fmt.Fprint(cmd.OutOrStdout(), diff.Summary(changes))
	if failOnDiff && len(changes) > 0 {
		return errDifferences
	}
	return nil
}
