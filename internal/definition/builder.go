package definition

import (
	"time"
)

// UnitSpec holds the arguments of DeclareComputeUnit.
type UnitSpec struct {
	Name             string
	Handler          string
	Runtime          string
	AssetPath        string
	MemoryMB         int
	LogRetentionDays int
}

// Link places a declared unit in the chain under a step name.
// An empty StepName defaults to the unit name.
type Link struct {
	Unit     ComputeUnit
	StepName string
}

// Delay inserts a wait step after the link at index After.
type Delay struct {
	After    int
	Duration time.Duration
	StepName string
}

// Builder collects declarations and produces a Definition.
// Declarations are evaluated once; a Builder is not safe for concurrent use.
type Builder struct {
	stack    string
	units    []ComputeUnit
	index    map[string]int
	workflow *Workflow
	rule     *TriggerRule
}

// NewBuilder creates a builder for the named stack
func NewBuilder(stack string) *Builder {
	return &Builder{
		stack: stack,
		index: make(map[string]int),
	}
}

// DeclareComputeUnit registers a compute unit. Names are unique per builder.
// The handler reference is not resolved here; a dangling reference only fails
// when the template is provisioned.
func (b *Builder) DeclareComputeUnit(spec UnitSpec) (ComputeUnit, error) {
	if spec.Name == "" {
		return ComputeUnit{}, newError(ErrorInvalidUnit, "", "name is required")
	}
	if _, exists := b.index[spec.Name]; exists {
		return ComputeUnit{}, newError(ErrorDuplicateUnit, spec.Name, "compute unit already declared")
	}
	if spec.Handler == "" {
		return ComputeUnit{}, newError(ErrorInvalidUnit, spec.Name, "entry point reference is required")
	}
	if spec.MemoryMB <= 0 {
		return ComputeUnit{}, newError(ErrorInvalidUnit, spec.Name, "memory must be positive, got %d", spec.MemoryMB)
	}
	if spec.LogRetentionDays <= 0 {
		return ComputeUnit{}, newError(ErrorInvalidUnit, spec.Name, "log retention must be positive, got %d", spec.LogRetentionDays)
	}

	unit := ComputeUnit(spec)
	b.index[unit.Name] = len(b.units)
	b.units = append(b.units, unit)

	return unit, nil
}

// BuildChain composes the linear workflow: one invoke step per link, in order,
// with a wait step after each link named by delays. Every invoke step forwards
// only the unit's payload. There are no branches, retries or catch transitions.
func (b *Builder) BuildChain(name string, links []Link, delays []Delay, timeout time.Duration) (*Workflow, error) {
	if name == "" {
		return nil, newError(ErrorEmptyChain, "", "workflow name is required")
	}
	if len(links) == 0 {
		return nil, newError(ErrorEmptyChain, name, "at least one compute unit is required")
	}
	if timeout <= 0 {
		return nil, newError(ErrorInvalidTimeout, name, "timeout must be positive, got %s", timeout)
	}
	if timeout%time.Second != 0 {
		return nil, newError(ErrorInvalidTimeout, name, "timeout must be a whole number of seconds, got %s", timeout)
	}

	after := make(map[int][]Delay, len(delays))
	for _, d := range delays {
		if d.After < 0 || d.After >= len(links) {
			return nil, newError(ErrorInvalidDelay, d.StepName, "position %d is outside the chain of %d units", d.After, len(links))
		}
		if d.Duration <= 0 {
			return nil, newError(ErrorInvalidDelay, d.StepName, "duration must be positive, got %s", d.Duration)
		}
		after[d.After] = append(after[d.After], d)
	}

	wf := &Workflow{Name: name, Timeout: timeout}
	seen := make(map[string]bool)

	add := func(step Step) error {
		if seen[step.Name] {
			return newError(ErrorDuplicateStep, step.Name, "step name used twice in workflow %q", name)
		}
		seen[step.Name] = true
		wf.Steps = append(wf.Steps, step)
		return nil
	}

	for i, link := range links {
		if _, declared := b.index[link.Unit.Name]; !declared {
			return nil, newError(ErrorUnknownUnit, link.Unit.Name, "compute unit was not declared on this builder")
		}

		stepName := link.StepName
		if stepName == "" {
			stepName = link.Unit.Name
		}
		if err := add(Step{Name: stepName, Kind: StepInvoke, Unit: link.Unit.Name, OutputPath: PayloadPath}); err != nil {
			return nil, err
		}

		for _, d := range after[i] {
			stepName := d.StepName
			if stepName == "" {
				stepName = "Wait " + d.Duration.String()
			}
			if err := add(Step{Name: stepName, Kind: StepWait, Duration: d.Duration}); err != nil {
				return nil, err
			}
		}
	}

	b.workflow = wf
	return wf, nil
}

// BindSchedule binds the workflow to a cron expression. One rule targets
// exactly one workflow and a builder holds a single rule. The expression is
// passed through; the scheduler validates it at provisioning time.
func (b *Builder) BindSchedule(wf *Workflow, ruleName, cron string, enabled bool) (*TriggerRule, error) {
	if wf == nil {
		return nil, newError(ErrorInvalidSchedule, ruleName, "target workflow is required")
	}
	if b.workflow != wf {
		return nil, newError(ErrorInvalidSchedule, ruleName, "workflow %q was not built by this builder", wf.Name)
	}
	if ruleName == "" {
		return nil, newError(ErrorInvalidSchedule, "", "rule name is required")
	}
	if cron == "" {
		return nil, newError(ErrorInvalidSchedule, ruleName, "cron expression is required")
	}
	if b.rule != nil {
		return nil, newError(ErrorRuleAlreadyBound, ruleName, "builder already binds rule %q", b.rule.Name)
	}

	b.rule = &TriggerRule{
		Name:    ruleName,
		Cron:    cron,
		Target:  wf.Name,
		Enabled: enabled,
	}
	return b.rule, nil
}

// Build returns the finished definition.
func (b *Builder) Build() (*Definition, error) {
	if b.workflow == nil {
		return nil, newError(ErrorIncomplete, b.stack, "no workflow was built")
	}
	if b.rule == nil {
		return nil, newError(ErrorIncomplete, b.stack, "no schedule was bound")
	}

	units := make([]ComputeUnit, len(b.units))
	copy(units, b.units)

	steps := make([]Step, len(b.workflow.Steps))
	copy(steps, b.workflow.Steps)

	wf := *b.workflow
	wf.Steps = steps

	return &Definition{
		Stack:    b.stack,
		Units:    units,
		Workflow: wf,
		Rule:     *b.rule,
	}, nil
}
