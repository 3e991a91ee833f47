package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/BDNK1/schedstack/internal/security"
)

// FileName is the project file read by Load.
const FileName = "stack.yaml"

var validate = validator.New()

// StackConfig represents the stack.yaml structure
type StackConfig struct {
	Name             string           `yaml:"name" validate:"required,max=128"` // Optional: defaults to directory name
	Region           string           `yaml:"region,omitempty"`                 // Optional: only used by publish
	Runtime          string           `yaml:"runtime" default:"nodejs20.x" validate:"required"`
	MemoryMB         int              `yaml:"memory_mb" default:"128" validate:"gte=128,lte=10240"`
	LogRetentionDays int              `yaml:"log_retention_days" default:"1" validate:"oneof=1 3 5 7 14 30 60 90 120 150 180 365 400 545 731 1096 1827 2192 2557 2922 3288 3653"`
	Assets           AssetsConfig     `yaml:"assets"`
	Functions        []FunctionConfig `yaml:"functions" validate:"min=1,dive"`
	Workflow         WorkflowConfig   `yaml:"workflow"`
	Schedule         ScheduleConfig   `yaml:"schedule"`
	Checks           []CheckConfig    `yaml:"checks,omitempty" validate:"dive"`
	Output           OutputConfig     `yaml:"output"`
}

// AssetsConfig locates the handler code shared by all functions
type AssetsConfig struct {
	Path   string `yaml:"path" default:"handlers" validate:"required"`
	Bucket string `yaml:"bucket,omitempty"` // Optional: defaults to the bootstrap assets bucket
	Prefix string `yaml:"prefix,omitempty"`
}

// FunctionConfig declares one compute unit and the workflow step invoking it
type FunctionConfig struct {
	Name     string `yaml:"name" validate:"required,alphanum"`
	Handler  string `yaml:"handler" validate:"required"`
	Step     string `yaml:"step,omitempty"`      // Optional: state name, defaults to Name
	MemoryMB int    `yaml:"memory_mb,omitempty"` // Optional: overrides the stack default
}

// WorkflowConfig configures the state machine
type WorkflowConfig struct {
	Name    string        `yaml:"name" default:"StateMachine" validate:"required"`
	Timeout time.Duration `yaml:"timeout" default:"5m" validate:"gte=1s,lte=8760h"`
	Waits   []WaitConfig  `yaml:"waits,omitempty" validate:"dive"`
}

// WaitConfig inserts a pause after the function at index After
type WaitConfig struct {
	After    int           `yaml:"after" validate:"gte=0"`
	Duration time.Duration `yaml:"duration" validate:"gte=1s"`
	Step     string        `yaml:"step,omitempty"`
}

// ScheduleConfig configures the trigger rule
type ScheduleConfig struct {
	Name    string `yaml:"name" default:"scheduleRule" validate:"required"`
	Cron    string `yaml:"cron" default:"0/5 * * * ? *" validate:"required"`
	Enabled *bool  `yaml:"enabled,omitempty"` // Optional: defaults to true
}

// CheckConfig is a user-defined synthesis assertion
type CheckConfig struct {
	Name string `yaml:"name" validate:"required"`
	Expr string `yaml:"expr" validate:"required"`
}

// OutputConfig controls where and how the assembly is written
type OutputConfig struct {
	Dir    string `yaml:"dir" default:"cdk.out" validate:"required"`
	Format string `yaml:"format" default:"json" validate:"oneof=json yaml"`
}

// DefaultFunctions are the four handlers of the SMS notification pipeline.
func DefaultFunctions() []FunctionConfig {
	return []FunctionConfig{
		{Name: "querySmsTable", Handler: "query-sms-table.handler", Step: "Query Sms Table"},
		{Name: "queryCustomer", Handler: "query-customer-table.handler", Step: "Query Customer Table"},
		{Name: "sendNotification", Handler: "send-notification.handler", Step: "Send Notification"},
		{Name: "updateSmsTable", Handler: "update-sms-table.handler", Step: "Update Sms Table"},
	}
}

// DefaultWaits pauses one second after the first function.
func DefaultWaits() []WaitConfig {
	return []WaitConfig{{After: 0, Duration: time.Second, Step: "Wait 1 Second"}}
}

// Load reads and parses stack.yaml from the given directory.
// A missing file is not an error: the default stack is returned.
func Load(projectDir string, overrides map[string]string) (*StackConfig, error) {
	configPath := filepath.Join(projectDir, FileName)

	// Security: Validate configPath is within project directory
	if err := security.ValidatePathWithinBoundary(projectDir, configPath); err != nil {
		return nil, fmt.Errorf("invalid config path: %w", err)
	}

	var config StackConfig

	data, err := os.ReadFile(configPath)
	switch {
	case err == nil:
		if err := Parse(data, &config); err != nil {
			return nil, err
		}
	case os.IsNotExist(err):
	default:
		return nil, fmt.Errorf("failed to read %s from %q: %w", FileName, configPath, err)
	}

	if err := ApplyOverrides(&config, overrides); err != nil {
		return nil, err
	}

	if err := config.ApplyDefaults(projectDir); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Parse decodes stack.yaml content, substituting ${VAR} references in string values.
func Parse(data []byte, config *StackConfig) error {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return fmt.Errorf("failed to parse %s: %w", FileName, err)
	}

	if err := substituteEnv(&root); err != nil {
		return fmt.Errorf("failed to resolve %s: %w", FileName, err)
	}

	if err := root.Decode(config); err != nil {
		return fmt.Errorf("failed to decode %s: %w", FileName, err)
	}

	return nil
}

// substituteEnv walks the document and resolves scalar env var references in place
func substituteEnv(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode && node.ShortTag() == "!!str" {
		spec, err := ParseEnvVar(node.Value)
		if err != nil {
			return err
		}
		if spec.IsLiteral {
			return nil
		}
		value, err := spec.Resolve(os.LookupEnv)
		if err != nil {
			return fmt.Errorf("line %d: %w", node.Line, err)
		}
		// Re-resolve the tag so "${MEMORY:256}" can land in an int field
		node.Value = value
		node.Tag = ""
		node.Style = 0
		return nil
	}

	for _, child := range node.Content {
		if err := substituteEnv(child); err != nil {
			return err
		}
	}
	return nil
}

// ApplyDefaults fills in missing optional fields with defaults
func (c *StackConfig) ApplyDefaults(projectDir string) error {
	if err := defaults.Set(c); err != nil {
		return fmt.Errorf("failed to apply default values: %w", err)
	}

	// Default stack name to directory name
	if c.Name == "" {
		c.Name = getDirectoryName(projectDir)
	}

	if len(c.Functions) == 0 {
		c.Functions = DefaultFunctions()
		if len(c.Workflow.Waits) == 0 {
			c.Workflow.Waits = DefaultWaits()
		}
	}

	for i := range c.Functions {
		if c.Functions[i].Step == "" {
			c.Functions[i].Step = c.Functions[i].Name
		}
		if c.Functions[i].MemoryMB == 0 {
			c.Functions[i].MemoryMB = c.MemoryMB
		}
	}

	for i := range c.Workflow.Waits {
		if c.Workflow.Waits[i].Step == "" {
			c.Workflow.Waits[i].Step = fmt.Sprintf("Wait %s", c.Workflow.Waits[i].Duration)
		}
	}

	if c.Schedule.Enabled == nil {
		enabled := true
		c.Schedule.Enabled = &enabled
	}

	c.Schedule.Cron = NormalizeCron(c.Schedule.Cron)

	return nil
}

// Validate checks that the config is complete and consistent
func (c *StackConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		// Format validation errors for better readability
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			var errMessages []string
			for _, fieldErr := range validationErrors {
				errMessages = append(errMessages, fmt.Sprintf(
					"field '%s' failed validation (rule: %s)",
					fieldErr.Namespace(),
					fieldErr.Tag(),
				))
			}
			return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errMessages, "\n  - "))
		}
		return fmt.Errorf("config validation failed: %w", err)
	}

	seen := make(map[string]int, len(c.Functions))
	for i, fn := range c.Functions {
		if prev, ok := seen[fn.Name]; ok {
			return fmt.Errorf("function #%d: name %q already used by function #%d", i, fn.Name, prev)
		}
		seen[fn.Name] = i
	}

	for i, wait := range c.Workflow.Waits {
		if wait.After >= len(c.Functions) {
			return fmt.Errorf("wait #%d: after=%d but only %d functions are declared", i, wait.After, len(c.Functions))
		}
	}

	return nil
}

// IsEnabled reports whether the trigger rule is enabled.
func (s ScheduleConfig) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

// NormalizeCron strips an optional cron(...) wrapper and collapses whitespace.
func NormalizeCron(expr string) string {
	expr = strings.TrimSpace(expr)
	if strings.HasPrefix(expr, "cron(") && strings.HasSuffix(expr, ")") {
		expr = strings.TrimSuffix(strings.TrimPrefix(expr, "cron("), ")")
	}
	return strings.Join(strings.Fields(expr), " ")
}

// AssetDir returns the absolute handler directory, kept inside the project.
func (c *StackConfig) AssetDir(projectDir string) (string, error) {
	dir := c.Assets.Path
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(projectDir, dir)
	}

	if err := security.ValidatePathWithinBoundary(projectDir, dir); err != nil {
		return "", fmt.Errorf("invalid assets path: %w", err)
	}

	return filepath.Abs(dir)
}

// getDirectoryName extracts the last component of a path
func getDirectoryName(path string) string {
	// Handle "." case
	if path == "." {
		cwd, err := os.Getwd()
		if err != nil {
			return "schedstack-app"
		}
		path = cwd
	}

	// Use filepath.Base for platform-independent path parsing
	return filepath.Base(path)
}
