package template

import (
	"fmt"
	"strings"

	"github.com/Jeffail/gabs/v2"
)

// StateMachineDefinition parses the DefinitionString of the template's single
// state machine. Intrinsics inside it are replaced by readable placeholders:
// ${ID.Attr} for Fn::GetAtt, ${ID} for Ref and ${?} for anything else.
func (t *Template) StateMachineDefinition() (string, *gabs.Container, error) {
	machines := t.Resources(TypeStateMachine)
	if len(machines) != 1 {
		return "", nil, fmt.Errorf("expected exactly one state machine, found %d", len(machines))
	}

	var id string
	var machine *gabs.Container
	for k, v := range machines {
		id, machine = k, v
	}

	raw := machine.Search("Properties", "DefinitionString").Data()
	text, err := flattenString(raw)
	if err != nil {
		return "", nil, fmt.Errorf("state machine %s: %w", id, err)
	}

	doc, err := gabs.ParseJSON([]byte(text))
	if err != nil {
		return "", nil, fmt.Errorf("state machine %s: invalid definition: %w", id, err)
	}
	return id, doc, nil
}

func flattenString(v any) (string, error) {
	switch val := v.(type) {
	case string:
		return val, nil
	case map[string]any:
		if args, ok := val["Fn::Join"].([]any); ok && len(args) == 2 {
			sep, _ := args[0].(string)
			parts, ok := args[1].([]any)
			if !ok {
				return "", fmt.Errorf("malformed Fn::Join")
			}
			out := make([]string, 0, len(parts))
			for _, p := range parts {
				s, err := flattenString(p)
				if err != nil {
					return "", err
				}
				out = append(out, s)
			}
			return strings.Join(out, sep), nil
		}
		return placeholder(val), nil
	default:
		return "", fmt.Errorf("unsupported definition value %T", v)
	}
}

func placeholder(intrinsic map[string]any) string {
	if ref, ok := intrinsic["Ref"].(string); ok {
		return "${" + ref + "}"
	}
	if att, ok := intrinsic["Fn::GetAtt"].([]any); ok && len(att) == 2 {
		return fmt.Sprintf("${%v.%v}", att[0], att[1])
	}
	return "${?}"
}

// StatesInOrder walks a state machine document from StartAt along Next.
// It stops at End, at a missing state, or when a state repeats.
func StatesInOrder(doc *gabs.Container) []string {
	var order []string
	seen := map[string]bool{}

	current, _ := doc.Search("StartAt").Data().(string)
	for current != "" && !seen[current] {
		state := doc.Search("States", current)
		if state == nil {
			break
		}
		seen[current] = true
		order = append(order, current)
		current, _ = state.Search("Next").Data().(string)
	}
	return order
}
