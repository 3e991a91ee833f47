package template

import (
	"fmt"
	"regexp"
	"strconv"
)

// Intrinsic is a CloudFormation intrinsic function value, e.g. {"Ref": "X"}.
type Intrinsic = map[string]any

// Ref references a resource or pseudo parameter.
func Ref(logicalID string) Intrinsic {
	return Intrinsic{"Ref": logicalID}
}

// GetAtt reads an attribute of a resource.
func GetAtt(logicalID, attribute string) Intrinsic {
	return Intrinsic{"Fn::GetAtt": []any{logicalID, attribute}}
}

// Join concatenates parts with sep.
func Join(sep string, parts ...any) Intrinsic {
	return Intrinsic{"Fn::Join": []any{sep, parts}}
}

// Sub substitutes ${...} references in s.
func Sub(s string) Intrinsic {
	return Intrinsic{"Fn::Sub": s}
}

// Partition is the current AWS partition.
func Partition() Intrinsic {
	return Ref("AWS::Partition")
}

var tokenPattern = regexp.MustCompile(`\$\{Token\[(\d+)\]\}`)

// Tokens embeds intrinsics into plain strings (such as a serialized state
// machine document) and later expands such strings into an Fn::Join.
type Tokens struct {
	values []any
}

// Token registers v and returns its placeholder.
func (t *Tokens) Token(v any) string {
	t.values = append(t.values, v)
	return fmt.Sprintf("${Token[%d]}", len(t.values)-1)
}

// Resolve turns s into a string when it holds no tokens, otherwise into
// Fn::Join("", ...) of the literal runs and the registered intrinsics.
// Nested Fn::Join("") values are inlined.
func (t *Tokens) Resolve(s string) (any, error) {
	matches := tokenPattern.FindAllStringSubmatchIndex(s, -1)
	if len(matches) == 0 {
		return s, nil
	}

	var parts []any
	appendLiteral := func(lit string) {
		if lit == "" {
			return
		}
		if n := len(parts); n > 0 {
			if prev, ok := parts[n-1].(string); ok {
				parts[n-1] = prev + lit
				return
			}
		}
		parts = append(parts, lit)
	}

	pos := 0
	for _, m := range matches {
		appendLiteral(s[pos:m[0]])

		idx, err := strconv.Atoi(s[m[2]:m[3]])
		if err != nil || idx >= len(t.values) {
			return nil, fmt.Errorf("unknown token %s", s[m[0]:m[1]])
		}

		value := t.values[idx]
		if inner, ok := joinParts(value); ok {
			for _, p := range inner {
				if lit, ok := p.(string); ok {
					appendLiteral(lit)
				} else {
					parts = append(parts, p)
				}
			}
		} else {
			parts = append(parts, value)
		}

		pos = m[1]
	}
	appendLiteral(s[pos:])

	return Join("", parts...), nil
}

// joinParts returns the parts of an Fn::Join with an empty separator.
func joinParts(v any) ([]any, bool) {
	m, ok := v.(Intrinsic)
	if !ok || len(m) != 1 {
		return nil, false
	}
	args, ok := m["Fn::Join"].([]any)
	if !ok || len(args) != 2 || args[0] != "" {
		return nil, false
	}
	parts, ok := args[1].([]any)
	return parts, ok
}
