// Package definition declares the scheduled workflow: the compute units, the
// linear chain of steps invoking them, and the cron rule that starts each run.
//
// Nothing here executes. Retries, error transitions and run isolation belong to
// the orchestrator the definition is deployed to.
package definition

import (
	"fmt"
	"time"
)

// PayloadPath is the only output projection an invoke step applies: the unit's
// raw result is replaced by its Payload field before reaching the next step.
const PayloadPath = "$.Payload"

// ComputeUnit is a stateless function referenced by entry point only.
type ComputeUnit struct {
	Name             string
	Handler          string // entry point inside the asset, resolved at provisioning time
	Runtime          string
	AssetPath        string
	MemoryMB         int
	LogRetentionDays int
}

// StepKind distinguishes invocations from timed pauses
type StepKind int

const (
	StepInvoke StepKind = iota
	StepWait
)

func (k StepKind) String() string {
	switch k {
	case StepInvoke:
		return "invoke"
	case StepWait:
		return "wait"
	default:
		return "unknown"
	}
}

// Step is one node of the chain.
type Step struct {
	Name       string
	Kind       StepKind
	Unit       string        // StepInvoke: name of the invoked compute unit
	OutputPath string        // StepInvoke: always PayloadPath
	Duration   time.Duration // StepWait
}

func (s Step) String() string {
	if s.Kind == StepWait {
		return fmt.Sprintf("wait(%s)", s.Duration)
	}
	return fmt.Sprintf("invoke(%s)", s.Unit)
}

// Workflow is an ordered chain of steps run as one execution.
type Workflow struct {
	Name    string
	Steps   []Step
	Timeout time.Duration // applies to the whole run, not per step
}

// Next returns the name of the step following index i, or "" for the last step.
func (w *Workflow) Next(i int) string {
	if i+1 >= len(w.Steps) {
		return ""
	}
	return w.Steps[i+1].Name
}

// StartAt returns the first step name.
func (w *Workflow) StartAt() string {
	if len(w.Steps) == 0 {
		return ""
	}
	return w.Steps[0].Name
}

// Shape renders the chain as "invoke(a) -> wait(1s) -> ...".
func (w *Workflow) Shape() string {
	shape := ""
	for i, step := range w.Steps {
		if i > 0 {
			shape += " -> "
		}
		shape += step.String()
	}
	return shape
}

// TriggerRule starts one run of Target per cron tick, regardless of
// whether earlier runs have finished.
type TriggerRule struct {
	Name    string
	Cron    string // AWS six-field syntax, without the cron(...) wrapper
	Target  string // workflow name
	Enabled bool
}

// ScheduleExpression is the rule expression as the scheduler expects it.
func (r *TriggerRule) ScheduleExpression() string {
	return fmt.Sprintf("cron(%s)", r.Cron)
}

// Definition is the complete declaration synthesized into a template.
type Definition struct {
	Stack    string
	Units    []ComputeUnit // declaration order
	Workflow Workflow
	Rule     TriggerRule
}

// Unit looks up a declared compute unit by name.
func (d *Definition) Unit(name string) (ComputeUnit, bool) {
	for _, u := range d.Units {
		if u.Name == name {
			return u, true
		}
	}
	return ComputeUnit{}, false
}
