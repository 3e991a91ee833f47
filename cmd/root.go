package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/BDNK1/schedstack/internal/config"
	"github.com/BDNK1/schedstack/internal/logging"
	"github.com/BDNK1/schedstack/internal/synth"
)

var (
	setValues []string
	logLevel  string
	logFormat string

	logger = logging.Discard()
)

var rootCmd = &cobra.Command{
	Use:   "schedstack",
	Short: "schedstack - scheduled workflow stack synthesizer",
	Long: `schedstack declares a scheduled serverless workflow (Lambda functions chained
in a Step Functions state machine, started by an EventBridge cron rule) and
synthesizes it into a deterministic CloudFormation cloud assembly.

Deploying the assembly is left to an external provisioning tool.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		l, err := logging.New(cmd.ErrOrStderr(), logFormat, logLevel)
		if err != nil {
			return err
		}
		logger = l
		slog.SetDefault(l)
		return nil
	},
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringArrayVar(&setValues, "set", nil, "Override a stack.yaml value (key=value, repeatable)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn or error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", logging.FormatText, "Log format: text or json")

	// Add subcommands
	rootCmd.AddCommand(synthCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(diffCmd)
	rootCmd.AddCommand(scheduleCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(publishCmd)
}

// projectDir returns the optional positional project directory
func projectDir(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return "."
}

// synthOptions collects the flags shared by every synthesizing command
func synthOptions(args []string) (synth.Options, error) {
	overrides, err := config.ParseOverrides(setValues)
	if err != nil {
		return synth.Options{}, err
	}
	return synth.Options{
		ProjectDir: projectDir(args),
		Overrides:  overrides,
		Logger:     logger,
	}, nil
}
