package config

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// ParseOverrides turns "key.path=value" pairs from --set flags into a map.
func ParseOverrides(pairs []string) (map[string]string, error) {
	overrides := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid override %q: expected key=value", pair)
		}
		overrides[key] = value
	}
	return overrides, nil
}

// ApplyOverrides decodes dotted overrides (e.g. "workflow.timeout=10m") onto the config.
// Keys use the yaml field names; unknown keys are rejected.
func ApplyOverrides(config *StackConfig, overrides map[string]string) error {
	if len(overrides) == 0 {
		return nil
	}

	// Sorted so a conflicting pair always fails the same way
	keys := make([]string, 0, len(overrides))
	for key := range overrides {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	tree := map[string]any{}
	for _, key := range keys {
		if err := setPath(tree, strings.Split(key, "."), overrides[key]); err != nil {
			return fmt.Errorf("override %q: %w", key, err)
		}
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           config,
		TagName:          "yaml",
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return fmt.Errorf("failed to create decoder: %w", err)
	}

	if err := decoder.Decode(tree); err != nil {
		return fmt.Errorf("failed to apply overrides: %w", err)
	}

	return nil
}

func setPath(tree map[string]any, path []string, value string) error {
	for i, segment := range path {
		if segment == "" {
			return fmt.Errorf("empty path segment")
		}

		if i == len(path)-1 {
			if _, exists := tree[segment]; exists {
				return fmt.Errorf("conflicts with another override")
			}
			tree[segment] = value
			return nil
		}

		next, exists := tree[segment]
		if !exists {
			child := map[string]any{}
			tree[segment] = child
			tree = child
			continue
		}

		child, ok := next.(map[string]any)
		if !ok {
			return fmt.Errorf("conflicts with another override")
		}
		tree = child
	}
	return nil
}

