package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/BDNK1/schedstack/internal/synth"
)

var (
	outDir         string
	templateFormat string
)

var synthCmd = &cobra.Command{
	Use:   "synth [project-dir]",
	Short: "Synthesize the cloud assembly",
	Long: `Synth reads stack.yaml, packages the handler directory, renders the
CloudFormation template, runs the synthesis checks and writes the assembly
(template, asset archive, manifest.json) to the output directory.

Example:
  schedstack synth .
  schedstack synth ./sms-notify --out build --format yaml
  schedstack synth . --set schedule.cron="0/10 * * * ? *"
`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSynth,
}

func init() {
	synthCmd.Flags().StringVar(&outDir, "out", "", "Output directory (default: output.dir from stack.yaml)")
	synthCmd.Flags().StringVar(&templateFormat, "format", "", "Template format: json or yaml (default: output.format from stack.yaml)")
}

func runSynth(cmd *cobra.Command, args []string) error {
	opts, err := synthOptions(args)
	if err != nil {
		return err
	}
	opts.OutDir = outDir
	opts.Format = templateFormat

	a, dir, err := synth.Run(opts)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "✓ %s synthesized to %s\n", a.Config.Name, dir)
	fmt.Fprintf(out, "  Template: %s\n", a.Manifest.Template)
	fmt.Fprintf(out, "  Asset:    %s (%d files)\n", a.Asset.FileName(), len(a.Asset.Files))
	fmt.Fprintf(out, "  Workflow: %s\n", a.Definition.Workflow.Shape())
	fmt.Fprintf(out, "  Schedule: %s\n", a.Manifest.Schedule.Expression)
	return nil
}
