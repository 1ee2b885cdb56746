package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const passingScenario = `name: toggle_mid
clip:
  fps: 25
  duration: 125
flow:
  - op: seek
    value: 62
  - op: toggle
    expect:
      keyframes: [[0, 0], [62, 62], [124, 124]]
assertions:
  - type: final_keyframes
    keyframes: [[0, 0], [62, 62], [124, 124]]
`

const failingScenario = `name: wrong_expectation
clip:
  fps: 25
  duration: 125
flow:
  - op: seek
    value: 62
  - op: toggle
assertions:
  - type: final_keyframes
    keyframes: [[0, 0], [124, 124]]
`

func writeScenarios(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	return dir
}

func TestTestCommand_MissingArgs(t *testing.T) {
	_, err := execute(t, NewTestCommand(textOpts()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}

func TestTestCommand_NonExistentDir(t *testing.T) {
	_, err := execute(t, NewTestCommand(textOpts()), "/nonexistent/scenarios")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "scenarios directory not found")
}

func TestTestCommand_EmptyDir(t *testing.T) {
	out, err := execute(t, NewTestCommand(textOpts()), t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "No scenarios found.\n", out)
}

func TestTestCommand_GoldenLifecycle(t *testing.T) {
	dir := writeScenarios(t, map[string]string{"toggle_mid.yaml": passingScenario})
	golden := filepath.Join(dir, "golden", "toggle_mid.golden")

	// no golden yet: the scenario still passes
	out, err := execute(t, NewTestCommand(jsonOpts()), dir)
	require.NoError(t, err)
	resp := decodeResponse[TestResult](t, out)
	require.Len(t, resp.Data.Scenarios, 1)
	assert.Equal(t, goldenMissing, resp.Data.Scenarios[0].Golden)

	out, err = execute(t, NewTestCommand(textOpts()), dir, "--update")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ toggle_mid (golden updated)")
	data, err := os.ReadFile(golden)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"scenario_name":"toggle_mid"`)

	out, err = execute(t, NewTestCommand(jsonOpts()), dir)
	require.NoError(t, err)
	resp = decodeResponse[TestResult](t, out)
	assert.Equal(t, goldenMatch, resp.Data.Scenarios[0].Golden)
	assert.Equal(t, 1, resp.Data.Passed)

	require.NoError(t, os.WriteFile(golden, []byte(`{"scenario_name":"toggle_mid"}`), 0o644))
	out, err = execute(t, NewTestCommand(jsonOpts()), dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	resp = decodeResponse[TestResult](t, out)
	assert.Equal(t, goldenMismatch, resp.Data.Scenarios[0].Golden)
	assert.False(t, resp.Data.Scenarios[0].Pass)
}

func TestTestCommand_FailingScenario(t *testing.T) {
	dir := writeScenarios(t, map[string]string{
		"a.yaml": passingScenario,
		"b.yaml": failingScenario,
	})

	out, err := execute(t, NewTestCommand(textOpts()), dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✓ toggle_mid\n")
	assert.Contains(t, out, "✗ wrong_expectation\n")
	assert.Contains(t, out, "Assertion failed: final_keyframes")
	assert.Contains(t, out, "1 passed, 1 failed, 2 total")
}

func TestTestCommand_Filter(t *testing.T) {
	dir := writeScenarios(t, map[string]string{
		"a.yaml": passingScenario,
		"b.yaml": failingScenario,
	})

	out, err := execute(t, NewTestCommand(jsonOpts()), dir, "--filter", "toggle_*")
	require.NoError(t, err)
	resp := decodeResponse[TestResult](t, out)
	assert.Equal(t, 1, resp.Data.Total)
	assert.Equal(t, "toggle_mid", resp.Data.Scenarios[0].Name)
}

func TestTestCommand_InvalidScenario(t *testing.T) {
	dir := writeScenarios(t, map[string]string{"bad.yaml": "name: bad\nclip: {fps: 25}\n"})

	_, err := execute(t, NewTestCommand(jsonOpts()), dir)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
