package config

import (
	"fmt"
	"regexp"
	"strings"
)

// EnvVarSpec represents a parsed environment variable reference in stack.yaml
type EnvVarSpec struct {
	// VarName is the environment variable name (e.g., "ASSET_BUCKET")
	VarName string

	// HasDefault indicates if a default value was provided
	HasDefault bool

	// DefaultValue is the default value if HasDefault is true
	DefaultValue string

	// IsLiteral indicates if this is a literal value (not an env var)
	IsLiteral bool

	// LiteralValue is the literal value if IsLiteral is true
	LiteralValue string
}

// LookupFunc resolves an environment variable, os.LookupEnv in production
type LookupFunc func(name string) (string, bool)

// envVarPattern matches ${VAR} and ${VAR:default} syntax
var envVarPattern = regexp.MustCompile(`^\$\{([A-Z_][A-Z0-9_]*)(:[^}]*)?\}$`)

// ParseEnvVar parses a config value that may contain environment variable syntax
//
// Supported formats:
//   - ${VAR}         - Required environment variable
//   - ${VAR:default} - Optional environment variable with default
//   - literal        - Plain literal value (no env var)
//
// Examples:
//
//	ParseEnvVar("${ASSET_BUCKET}") -> required env var "ASSET_BUCKET"
//	ParseEnvVar("${AWS_REGION:us-east-1}") -> env var with default
//	ParseEnvVar("cron(0/5 * * * ? *)") -> literal value
func ParseEnvVar(value string) (*EnvVarSpec, error) {
	if value == "" {
		return &EnvVarSpec{
			IsLiteral:    true,
			LiteralValue: "",
		}, nil
	}

	// Check if it matches env var pattern
	matches := envVarPattern.FindStringSubmatch(value)
	if matches == nil {
		// Not an env var pattern - treat as literal
		return &EnvVarSpec{
			IsLiteral:    true,
			LiteralValue: value,
		}, nil
	}

	varName := matches[1]
	defaultPart := matches[2] // Will be ":default" or empty

	if !isValidEnvVarName(varName) {
		return nil, fmt.Errorf("invalid environment variable name: %s", varName)
	}

	spec := &EnvVarSpec{
		VarName:    varName,
		IsLiteral:  false,
		HasDefault: defaultPart != "",
	}

	if spec.HasDefault {
		spec.DefaultValue = strings.TrimPrefix(defaultPart, ":")
	}

	return spec, nil
}

// Resolve returns the final value, looking the variable up when needed.
// A required variable that is unset is an error.
func (s *EnvVarSpec) Resolve(lookup LookupFunc) (string, error) {
	if s.IsLiteral {
		return s.LiteralValue, nil
	}

	if value, ok := lookup(s.VarName); ok {
		return value, nil
	}

	if s.HasDefault {
		return s.DefaultValue, nil
	}

	return "", fmt.Errorf("required environment variable %s is not set", s.VarName)
}

// isValidEnvVarName checks if a string is a valid environment variable name
// Valid names: Start with A-Z or underscore, contain only A-Z, 0-9, underscore
func isValidEnvVarName(name string) bool {
	if name == "" {
		return false
	}

	first := name[0]
	if !((first >= 'A' && first <= 'Z') || first == '_') {
		return false
	}

	for i := 1; i < len(name); i++ {
		c := name[i]
		if !((c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_') {
			return false
		}
	}

	return true
}
