package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/BDNK1/schedstack/internal/assertions"
	"github.com/BDNK1/schedstack/internal/synth"
)

var checkCmd = &cobra.Command{
	Use:   "check [project-dir]",
	Short: "Run the synthesis checks without writing the assembly",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runCheck,
}

func runCheck(cmd *cobra.Command, args []string) error {
	opts, err := synthOptions(args)
	if err != nil {
		return err
	}

	a, err := synth.Build(opts)
	var failure *assertions.Failure
	if err != nil && !errors.As(err, &failure) {
		return err
	}

	out := cmd.OutOrStdout()
	for _, r := range a.Results {
		switch {
		case r.Passed:
			fmt.Fprintf(out, "✓ %s\n", r.Check.Name)
		case r.Err != nil:
			fmt.Fprintf(out, "✗ %s: %v\n", r.Check.Name, r.Err)
		default:
			fmt.Fprintf(out, "✗ %s\n", r.Check.Name)
		}
	}

	if failure != nil {
		return failure
	}
	fmt.Fprintf(out, "\n%d checks passed\n", len(a.Results))
	return nil
}
