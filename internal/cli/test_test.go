package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTestCommand_AllScenariosPassWithGolden(t *testing.T) {
	stdout, _, err := execute(t, "test", scenariosDir, "--golden", goldenDir)
	require.NoError(t, err)

	assert.Contains(t, stdout, "✓ collated_roundtrip")
	assert.Contains(t, stdout, "✓ forks_window")
	assert.Contains(t, stdout, "✓ keyed_upsert")
	assert.Contains(t, stdout, "✓ sorted_shift")
	assert.Contains(t, stdout, "Test Summary: 4 passed, 0 failed, 4 total")
	assert.Contains(t, stdout, "✓ All scenarios passed")
}

func TestTestCommand_WithoutGoldenUsesAssertions(t *testing.T) {
	// testdata/scenarios has no golden/ subdirectory.
	stdout, _, err := execute(t, "test", scenariosDir)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Test Summary: 4 passed, 0 failed, 4 total")
}

func TestTestCommand_Filter(t *testing.T) {
	stdout, _, err := execute(t, "test", scenariosDir, "--filter", "keyed*")
	require.NoError(t, err)
	assert.Contains(t, stdout, "✓ keyed_upsert")
	assert.NotContains(t, stdout, "sorted_shift")
	assert.Contains(t, stdout, "Test Summary: 1 passed, 0 failed, 1 total")
}

func TestTestCommand_InvalidFilter(t *testing.T) {
	_, _, err := execute(t, "test", scenariosDir, "--filter", "[")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTestCommand_UpdateThenCompare(t *testing.T) {
	dir := t.TempDir()
	data, err := os.ReadFile(filepath.Join(scenariosDir, "keyed_upsert.yaml"))
	require.NoError(t, err)
	writeFile(t, dir, "keyed_upsert.yaml", string(data))

	stdout, _, err := execute(t, "test", dir, "--update")
	require.NoError(t, err)
	assert.Contains(t, stdout, "✓ keyed_upsert (golden updated)")

	goldenPath := filepath.Join(dir, "golden", "keyed_upsert.golden")
	written, err := os.ReadFile(goldenPath)
	require.NoError(t, err)
	want, err := os.ReadFile(filepath.Join(goldenDir, "keyed_upsert.golden"))
	require.NoError(t, err)
	assert.Equal(t, string(want), string(written))

	_, _, err = execute(t, "test", dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(goldenPath, []byte(`{"tampered":true}`), 0o644))
	stdout, _, err = execute(t, "test", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, stdout, "✗ keyed_upsert")
	assert.Contains(t, stdout, "trace does not match golden file")
}

func TestTestCommand_FailuresJSON(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "broken.yaml", brokenScenario)
	writeFile(t, dir, "garbage.yaml", "name: [\n")
	data, err := os.ReadFile(filepath.Join(scenariosDir, "sorted_shift.yaml"))
	require.NoError(t, err)
	writeFile(t, dir, "sorted_shift.yaml", string(data))

	stdout, _, err := execute(t, "--format", "json", "test", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
		Error  *CLIError  `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))

	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeTestFailed, resp.Error.Code)
	assert.Equal(t, 3, resp.Data.Total)
	assert.Equal(t, 1, resp.Data.Passed)
	assert.Equal(t, 2, resp.Data.Failed)

	require.Len(t, resp.Data.Scenarios, 3)
	assert.Equal(t, "broken", resp.Data.Scenarios[0].Name)
	assert.False(t, resp.Data.Scenarios[0].Pass)
	assert.Equal(t, "garbage.yaml", resp.Data.Scenarios[1].Name)
	assert.Contains(t, resp.Data.Scenarios[1].Errors[0], "failed to load scenario")
	assert.True(t, resp.Data.Scenarios[2].Pass)
}

func TestTestCommand_EmptyDirectory(t *testing.T) {
	stdout, _, err := execute(t, "test", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, stdout, "No scenarios found.")
}

func TestTestCommand_MissingPath(t *testing.T) {
	_, _, err := execute(t, "test", filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "scenario path not found")
}

func TestTestCommand_MissingArgs(t *testing.T) {
	_, _, err := execute(t, "test")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}
