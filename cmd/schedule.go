package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/BDNK1/schedstack/internal/config"
	"github.com/BDNK1/schedstack/internal/schedule"
)

var (
	previewCount int
	previewFrom  string
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule [project-dir]",
	Short: "Preview the next fire times of the trigger rule",
	Long: `Schedule converts the rule's cron expression and prints the next fire
times in UTC. Expressions using a year, L, W or # cannot be previewed; they
are still synthesized unchanged.

Example:
  schedstack schedule . --count 10
  schedstack schedule . --from 2024-03-01T10:00:00Z
`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSchedule,
}

func init() {
	scheduleCmd.Flags().IntVar(&previewCount, "count", 5, "Number of fire times to print")
	scheduleCmd.Flags().StringVar(&previewFrom, "from", "", "Start time in RFC3339 (default: now)")
}

func runSchedule(cmd *cobra.Command, args []string) error {
	if previewCount < 1 {
		return fmt.Errorf("--count must be at least 1")
	}

	from := time.Now()
	if previewFrom != "" {
		t, err := time.Parse(time.RFC3339, previewFrom)
		if err != nil {
			return fmt.Errorf("invalid --from: %w", err)
		}
		from = t
	}

	overrides, err := config.ParseOverrides(setValues)
	if err != nil {
		return err
	}
	cfg, err := config.Load(projectDir(args), overrides)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	times, err := schedule.Next(cfg.Schedule.Cron, from, previewCount)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	state := "enabled"
	if !cfg.Schedule.IsEnabled() {
		state = "disabled"
	}
	fmt.Fprintf(out, "%s: cron(%s) (%s)\n", cfg.Schedule.Name, cfg.Schedule.Cron, state)
	for _, t := range times {
		fmt.Fprintf(out, "  %s\n", t.Format(time.RFC3339))
	}
	return nil
}
