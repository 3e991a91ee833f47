package definition

import (
	"fmt"

	"github.com/BDNK1/schedstack/internal/config"
)

// FromConfig declares the stack described by stack.yaml: one unit per function,
// chained in file order, with the configured waits, bound to the schedule.
func FromConfig(cfg *config.StackConfig, assetPath string) (*Definition, error) {
	b := NewBuilder(cfg.Name)

	links := make([]Link, 0, len(cfg.Functions))
	for _, fn := range cfg.Functions {
		unit, err := b.DeclareComputeUnit(UnitSpec{
			Name:             fn.Name,
			Handler:          fn.Handler,
			Runtime:          cfg.Runtime,
			AssetPath:        assetPath,
			MemoryMB:         fn.MemoryMB,
			LogRetentionDays: cfg.LogRetentionDays,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to declare function %s: %w", fn.Name, err)
		}
		links = append(links, Link{Unit: unit, StepName: fn.Step})
	}

	delays := make([]Delay, 0, len(cfg.Workflow.Waits))
	for _, w := range cfg.Workflow.Waits {
		delays = append(delays, Delay{After: w.After, Duration: w.Duration, StepName: w.Step})
	}

	wf, err := b.BuildChain(cfg.Workflow.Name, links, delays, cfg.Workflow.Timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to build workflow: %w", err)
	}

	if _, err := b.BindSchedule(wf, cfg.Schedule.Name, cfg.Schedule.Cron, cfg.Schedule.IsEnabled()); err != nil {
		return nil, fmt.Errorf("failed to bind schedule: %w", err)
	}

	return b.Build()
}
