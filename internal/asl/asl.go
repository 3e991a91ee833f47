// Package asl renders a workflow chain as an Amazon States Language document.
package asl

import (
	"fmt"
	"time"

	"github.com/Jeffail/gabs/v2"

	"github.com/BDNK1/schedstack/internal/definition"
)

// Resolver supplies late-bound values the document cannot know on its own,
// such as function ARNs. The template layer returns placeholder tokens here.
type Resolver interface {
	FunctionArn(unit string) string
	LambdaInvokeResource() string
}

// Render builds the state machine document for wf. Invoke steps become
// lambda:invoke Task states projecting $.Payload; wait steps become Wait
// states. No Retry or Catch blocks are emitted.
func Render(wf *definition.Workflow, r Resolver) (*gabs.Container, error) {
	if len(wf.Steps) == 0 {
		return nil, fmt.Errorf("workflow %q has no steps", wf.Name)
	}

	doc := gabs.New()
	if _, err := doc.Set(wf.StartAt(), "StartAt"); err != nil {
		return nil, err
	}
	if _, err := doc.Set(int(wf.Timeout.Seconds()), "TimeoutSeconds"); err != nil {
		return nil, err
	}

	for i, step := range wf.Steps {
		state, err := renderState(step, r)
		if err != nil {
			return nil, fmt.Errorf("state %q: %w", step.Name, err)
		}

		if next := wf.Next(i); next != "" {
			state["Next"] = next
		} else {
			state["End"] = true
		}

		if _, err := doc.Set(state, "States", step.Name); err != nil {
			return nil, fmt.Errorf("state %q: %w", step.Name, err)
		}
	}

	return doc, nil
}

func renderState(step definition.Step, r Resolver) (map[string]any, error) {
	switch step.Kind {
	case definition.StepInvoke:
		return map[string]any{
			"Type":     "Task",
			"Resource": r.LambdaInvokeResource(),
			"Parameters": map[string]any{
				"FunctionName": r.FunctionArn(step.Unit),
				"Payload.$":    "$",
			},
			"OutputPath": step.OutputPath,
		}, nil
	case definition.StepWait:
		if step.Duration < time.Second || step.Duration%time.Second != 0 {
			return nil, fmt.Errorf("wait must be a whole number of seconds, at least one, got %s", step.Duration)
		}
		seconds := int(step.Duration / time.Second)
		return map[string]any{
			"Type":    "Wait",
			"Seconds": seconds,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported step kind %s", step.Kind)
	}
}
