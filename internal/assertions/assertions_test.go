package assertions

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BDNK1/schedstack/internal/config"
	"github.com/BDNK1/schedstack/internal/definition"
	"github.com/BDNK1/schedstack/internal/template"
)

func synthesized(t *testing.T) (*definition.Definition, *template.Template) {
	t.Helper()
	cfg, err := config.Load(t.TempDir(), nil)
	require.NoError(t, err)
	def, err := definition.FromConfig(cfg, "/project/handlers")
	require.NoError(t, err)
	tmpl, err := template.Synthesize(def, template.Asset{Hash: "h", Key: "h.zip"})
	require.NoError(t, err)
	return def, tmpl
}

func TestCollect(t *testing.T) {
	env, err := Collect(synthesized(t))
	require.NoError(t, err)

	assert.Equal(t, 300, env["timeout_seconds"])
	assert.Equal(t, 300, env["machine_timeout_seconds"])
	assert.Equal(t, "0/5 * * * ? *", env["schedule"])
	assert.Equal(t, "cron(0/5 * * * ? *)", env["rule_expression"])
	assert.Equal(t, "ENABLED", env["rule_state"])
	assert.Equal(t, 1, env["rule_targets"])
	assert.Equal(t, 4, env["unique_unit_names"])
	assert.Equal(t, 5, env["state_count"])
	assert.Len(t, env["states"], 5)
	assert.Len(t, env["functions"], 4)
	assert.Equal(t, env["step_order"], env["state_order"])

	resources := env["resources"].(map[string]any)
	assert.Equal(t, 4, resources[template.TypeFunction])
	assert.Equal(t, 1, resources[template.TypeStateMachine])
}

func TestRun_BuiltinsPassOnDefaultStack(t *testing.T) {
	env, err := Collect(synthesized(t))
	require.NoError(t, err)

	results, err := Run(env, Builtin)
	require.NoError(t, err)
	require.Len(t, results, len(Builtin))
	for _, r := range results {
		assert.True(t, r.Passed, r.Check.Name)
		assert.NoError(t, r.Err, r.Check.Name)
	}
}

func TestRun_DefaultStackProperties(t *testing.T) {
	env, err := Collect(synthesized(t))
	require.NoError(t, err)

	checks := []Check{
		{Name: "five steps", Expr: `len(steps) == 5`},
		{Name: "shape", Expr: `map(steps, .kind) == ["invoke", "wait", "invoke", "invoke", "invoke"]`},
		{Name: "one second wait", Expr: `steps[1].seconds == 1 && states[1].seconds == 1`},
		{Name: "timeout", Expr: `timeout_seconds == 300`},
		{Name: "cron", Expr: `schedule == "0/5 * * * ? *"`},
		{Name: "memory", Expr: `all(units, .memory == 128)`},
	}

	_, err = Run(env, checks)
	assert.NoError(t, err)
}

func TestRun_ReportsEveryFailure(t *testing.T) {
	def, tmpl := synthesized(t)
	env, err := Collect(def, tmpl)
	require.NoError(t, err)

	// Pretend the rendered machine drifted from the declaration
	env["machine_timeout_seconds"] = 60
	env["rule_expression"] = "rate(5 minutes)"

	checks := append([]Check{}, Builtin...)
	checks = append(checks, Check{Name: "broken", Expr: `timeout_seconds +`})

	results, err := Run(env, checks)
	require.Error(t, err)
	assert.Len(t, results, len(checks))

	var failure *Failure
	require.True(t, errors.As(err, &failure))
	require.Len(t, failure.Results, 3)
	assert.Equal(t, "timeout covers the whole run", failure.Results[0].Check.Name)
	assert.Equal(t, "rule uses declared schedule", failure.Results[1].Check.Name)
	assert.Equal(t, "broken", failure.Results[2].Check.Name)
	assert.Error(t, failure.Results[2].Err)
	assert.Contains(t, err.Error(), "3 check(s) failed")
}

func TestRun_NonBoolExpression(t *testing.T) {
	_, err := Run(map[string]any{"n": 1}, []Check{{Name: "number", Expr: `n + 1`}})
	assert.Error(t, err)
}
