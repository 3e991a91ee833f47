// Package assertions evaluates synthesis-time checks against a definition
// and the template rendered from it.
package assertions

import (
	"fmt"
	"strings"

	"github.com/expr-lang/expr"
)

// Check is a named boolean expression over the environment built by Collect.
type Check struct {
	Name string
	Expr string
}

// Builtin holds the checks run on every synthesis: the rendered template must
// agree with the declared chain, timeout, schedule and sizing.
var Builtin = []Check{
	{
		Name: "chain is linear",
		Expr: `state_count == len(steps) && len(state_order) == len(steps) && count(states, .end) == 1 && count(states, .next != "") == len(states) - 1`,
	},
	{
		Name: "states follow declared order",
		Expr: `state_order == step_order`,
	},
	{
		Name: "invocations forward only the payload",
		Expr: `all(filter(states, .type == "Task"), .output_path == "$.Payload")`,
	},
	{
		Name: "no retry or catch transitions",
		Expr: `none(states, .has_retry || .has_catch)`,
	},
	{
		Name: "waits last whole seconds",
		Expr: `all(filter(states, .type == "Wait"), .seconds >= 1)`,
	},
	{
		Name: "timeout covers the whole run",
		Expr: `machine_timeout_seconds == timeout_seconds && timeout_seconds > 0`,
	},
	{
		Name: "rule uses declared schedule",
		Expr: `rule_expression == schedule_expression`,
	},
	{
		Name: "rule targets one workflow",
		Expr: `rule_targets == 1`,
	},
	{
		Name: "compute unit names are unique",
		Expr: `unique_unit_names == len(units) && len(functions) == len(units)`,
	},
	{
		Name: "functions carry declared memory",
		Expr: `all(functions, .unit != "" && .memory == memory[.unit])`,
	},
}

// Result is the outcome of one check.
type Result struct {
	Check  Check
	Passed bool
	Err    error // compile or runtime error; the check counts as failed
}

// Failure lists every check that did not pass.
type Failure struct {
	Results []Result
}

func (f *Failure) Error() string {
	lines := make([]string, 0, len(f.Results))
	for _, r := range f.Results {
		if r.Err != nil {
			lines = append(lines, fmt.Sprintf("%s: %v", r.Check.Name, r.Err))
		} else {
			lines = append(lines, fmt.Sprintf("%s: %s evaluated to false", r.Check.Name, r.Check.Expr))
		}
	}
	return fmt.Sprintf("%d check(s) failed:\n  - %s", len(f.Results), strings.Join(lines, "\n  - "))
}

// Run evaluates checks in order. It returns all results and a *Failure when
// at least one check did not pass.
func Run(env map[string]any, checks []Check) ([]Result, error) {
	results := make([]Result, 0, len(checks))
	var failed []Result

	for _, c := range checks {
		r := Result{Check: c}
		r.Passed, r.Err = eval(c.Expr, env)
		if !r.Passed {
			failed = append(failed, r)
		}
		results = append(results, r)
	}

	if len(failed) > 0 {
		return results, &Failure{Results: failed}
	}
	return results, nil
}

func eval(expression string, env map[string]any) (bool, error) {
	program, err := expr.Compile(expression, expr.Env(env), expr.AsBool())
	if err != nil {
		return false, fmt.Errorf("invalid expression: %w", err)
	}

	out, err := expr.Run(program, env)
	if err != nil {
		return false, err
	}

	passed, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("expression returned %T, expected bool", out)
	}
	return passed, nil
}
