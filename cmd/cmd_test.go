package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newProject(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	handlers := filepath.Join(dir, "handlers")
	require.NoError(t, os.MkdirAll(handlers, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(handlers, "index.js"), []byte("exports.handler = async (e) => e;\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "stack.yaml"), []byte("name: sms\n"), 0644))
	return dir
}

// run executes the root command with fresh flag state
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	setValues, outDir, templateFormat = nil, "", ""
	againstFile, againstURL, failOnDiff = "", "", false
	previewCount, previewFrom = 5, ""

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs(append(args, "--log-level", "error"))
	err := rootCmd.Execute()
	return out.String(), err
}

func TestSynthAndDiff(t *testing.T) {
	project := newProject(t)

	out, err := run(t, "synth", project)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ sms synthesized to "+filepath.Join(project, "cdk.out"))
	assert.Contains(t, out, "invoke(querySmsTable) -> wait(1s) -> invoke(queryCustomer) -> invoke(sendNotification) -> invoke(updateSmsTable)")
	assert.Contains(t, out, "cron(0/5 * * * ? *)")

	previous := filepath.Join(project, "cdk.out", "sms.template.json")

	out, err = run(t, "diff", project, "--against", previous, "--fail-on-diff")
	require.NoError(t, err)
	assert.Equal(t, "no differences\n", out)

	out, err = run(t, "diff", project, "--against", previous, "--set", "memory_mb=256", "--fail-on-diff")
	assert.ErrorIs(t, err, errDifferences)
	assert.Contains(t, out, ".Properties.MemorySize: 128 -> 256")
}

func TestCheck(t *testing.T) {
	project := newProject(t)

	out, err := run(t, "check", project)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ chain is linear")
	assert.Contains(t, out, "10 checks passed")

	require.NoError(t, os.WriteFile(filepath.Join(project, "stack.yaml"), []byte("name: sms\nchecks:\n  - name: tiny\n    expr: len(steps) < 2\n"), 0644))
	out, err = run(t, "check", project)
	require.Error(t, err)
	assert.Contains(t, out, "✗ tiny")
}

func TestSchedule(t *testing.T) {
	project := newProject(t)

	out, err := run(t, "schedule", project, "--count", "2", "--from", "2024-03-01T10:02:30Z")
	require.NoError(t, err)
	assert.Equal(t, "scheduleRule: cron(0/5 * * * ? *) (enabled)\n  2024-03-01T10:05:00Z\n  2024-03-01T10:10:00Z\n", out)
}

func TestInvalidOverride(t *testing.T) {
	project := newProject(t)

	_, err := run(t, "synth", project, "--set", "nonsense")
	assert.ErrorContains(t, err, "expected key=value")
}
