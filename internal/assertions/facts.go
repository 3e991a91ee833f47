package assertions

import (
	"fmt"

	"github.com/BDNK1/schedstack/internal/definition"
	"github.com/BDNK1/schedstack/internal/template"
)

// Collect builds the expression environment: what the definition declares
// next to what the template actually contains.
//
// Variables:
//
//	stack                    stack name
//	steps                    [{name, kind, unit, seconds}] declared chain
//	step_order               declared step names
//	units                    [{name, handler, memory, log_retention}]
//	unique_unit_names        number of distinct unit names
//	memory                   unit name -> declared memory
//	timeout_seconds          declared workflow timeout
//	schedule                 declared cron expression
//	schedule_expression      declared cron(...) expression
//	states                   [{name, type, next, end, output_path, seconds, has_retry, has_catch}] in chain order
//	state_order              state names from StartAt along Next
//	state_count              number of states in the document
//	machine_timeout_seconds  TimeoutSeconds of the rendered state machine
//	functions                [{id, unit, handler, memory}] rendered functions
//	rule_expression          rendered ScheduleExpression
//	rule_state               ENABLED or DISABLED
//	rule_targets             number of rule targets
//	resources                resource type -> count
func Collect(def *definition.Definition, tmpl *template.Template) (map[string]any, error) {
	env := map[string]any{
		"stack":               def.Stack,
		"timeout_seconds":     int(def.Workflow.Timeout.Seconds()),
		"schedule":            def.Rule.Cron,
		"schedule_expression": def.Rule.ScheduleExpression(),
	}

	steps := make([]any, 0, len(def.Workflow.Steps))
	stepOrder := make([]string, 0, len(def.Workflow.Steps))
	for _, s := range def.Workflow.Steps {
		steps = append(steps, map[string]any{
			"name":    s.Name,
			"kind":    s.Kind.String(),
			"unit":    s.Unit,
			"seconds": int(s.Duration.Seconds()),
		})
		stepOrder = append(stepOrder, s.Name)
	}
	env["steps"] = steps
	env["step_order"] = stepOrder

	units := make([]any, 0, len(def.Units))
	memory := make(map[string]any, len(def.Units))
	unitByID := make(map[string]string, len(def.Units))
	for _, u := range def.Units {
		units = append(units, map[string]any{
			"name":          u.Name,
			"handler":       u.Handler,
			"memory":        u.MemoryMB,
			"log_retention": u.LogRetentionDays,
		})
		memory[u.Name] = u.MemoryMB
		unitByID[template.LogicalID(u.Name)] = u.Name
	}
	env["units"] = units
	env["unique_unit_names"] = len(memory)
	env["memory"] = memory

	_, machine, err := tmpl.StateMachineDefinition()
	if err != nil {
		return nil, fmt.Errorf("failed to read state machine: %w", err)
	}

	stateOrder := template.StatesInOrder(machine)
	states := make([]any, 0, len(stateOrder))
	for _, name := range stateOrder {
		st := machine.Search("States", name)
		next, _ := st.Search("Next").Data().(string)
		end, _ := st.Search("End").Data().(bool)
		outputPath, _ := st.Search("OutputPath").Data().(string)
		stateType, _ := st.Search("Type").Data().(string)
		states = append(states, map[string]any{
			"name":        name,
			"type":        stateType,
			"next":        next,
			"end":         end,
			"output_path": outputPath,
			"seconds":     toInt(st.Search("Seconds").Data()),
			"has_retry":   st.Exists("Retry"),
			"has_catch":   st.Exists("Catch"),
		})
	}
	env["states"] = states
	env["state_order"] = stateOrder
	env["state_count"] = len(machine.Search("States").ChildrenMap())
	env["machine_timeout_seconds"] = toInt(machine.Search("TimeoutSeconds").Data())

	var functions []any
	for _, id := range tmpl.ResourceIDs(template.TypeFunction) {
		fn := tmpl.Doc().Search("Resources", id, "Properties")
		handler, _ := fn.Search("Handler").Data().(string)
		functions = append(functions, map[string]any{
			"id":      id,
			"unit":    unitByID[id],
			"handler": handler,
			"memory":  toInt(fn.Search("MemorySize").Data()),
		})
	}
	env["functions"] = functions

	ruleIDs := tmpl.ResourceIDs(template.TypeRule)
	if len(ruleIDs) != 1 {
		return nil, fmt.Errorf("expected exactly one schedule rule, found %d", len(ruleIDs))
	}
	rule := tmpl.Doc().Search("Resources", ruleIDs[0], "Properties")
	env["rule_expression"], _ = rule.Search("ScheduleExpression").Data().(string)
	env["rule_state"], _ = rule.Search("State").Data().(string)
	env["rule_targets"] = len(rule.Search("Targets").Children())

	resources := map[string]any{}
	for _, res := range tmpl.Resources("") {
		if typ, ok := res.Search("Type").Data().(string); ok {
			count, _ := resources[typ].(int)
			resources[typ] = count + 1
		}
	}
	env["resources"] = resources

	return env, nil
}

// toInt normalizes numbers that may come from Go values or parsed JSON
func toInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}
