package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	scenariosDir = filepath.Join("..", "harness", "testdata", "scenarios")
	goldenDir    = filepath.Join("..", "harness", "testdata", "golden")
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const brokenScenario = `name: broken
description: "Expects the wrong output"
steps:
  - op: append
    record: { name: a }
assertions:
  - type: output
    field: name
    values: [b]
`

func TestRun_TextOutput(t *testing.T) {
	stdout, _, err := execute(t, "run", filepath.Join(scenariosDir, "sorted_shift.yaml"))
	require.NoError(t, err)

	assert.Contains(t, stdout, "Scenario: sorted_shift")
	assert.Contains(t, stdout, "Trace (6 notifications):")
	assert.Contains(t, stdout, "[1] step 0 set_sort default: reset(5)")
	assert.Contains(t, stdout, "[2] step 1 shift default: shift(4,-1) n=4 in")
	assert.Contains(t, stdout, "[6] step 2 shift default: reset(0)")
	assert.Contains(t, stdout, "default (0 records)")
	assert.Contains(t, stdout, "Collection size: 0")
	assert.Contains(t, stdout, "✓ sorted_shift passed")
	assert.NotContains(t, stdout, "Metrics:")
}

func TestRun_TextOutputsRecords(t *testing.T) {
	stdout, _, err := execute(t, "run", filepath.Join(scenariosDir, "keyed_upsert.yaml"))
	require.NoError(t, err)

	assert.Contains(t, stdout, "default (3 records)")
	assert.Contains(t, stdout, `0 {"id":"coffee","qty":2}`)
	assert.Contains(t, stdout, `2 {"id":"tea","qty":5}`)
}

func TestRun_VerboseShowsMetrics(t *testing.T) {
	stdout, _, err := execute(t, "run", "--verbose", filepath.Join(scenariosDir, "sorted_shift.yaml"))
	require.NoError(t, err)

	assert.Contains(t, stdout, "Metrics:")
	assert.Contains(t, stdout, "liveview_collection_mutations_total{op=append} 5")
	assert.Contains(t, stdout, "liveview_collection_mutations_total{op=clear} 1")
	assert.Contains(t, stdout, "liveview_view_rebuilds_total{reason=sort,view=default} 1")
}

func TestRun_JSONOutput(t *testing.T) {
	stdout, _, err := execute(t, "--format", "json", "run", filepath.Join(scenariosDir, "forks_window.yaml"))
	require.NoError(t, err)

	var resp struct {
		Status string `json:"status"`
		Data   struct {
			Scenario string `json:"scenario"`
			Result   struct {
				Pass    bool                        `json:"pass"`
				Trace   []map[string]any            `json:"trace"`
				Outputs map[string][]map[string]any `json:"outputs"`
				Size    int                         `json:"size"`
			} `json:"result"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))

	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "forks_window", resp.Data.Scenario)
	assert.True(t, resp.Data.Result.Pass)
	assert.Len(t, resp.Data.Result.Trace, 10)
	assert.Len(t, resp.Data.Result.Outputs["alerts"], 4)
	assert.Equal(t, 5, resp.Data.Result.Size)
}

func TestRun_FailingScenario(t *testing.T) {
	path := writeFile(t, t.TempDir(), "broken.yaml", brokenScenario)

	stdout, _, err := execute(t, "run", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, stdout, "✗ broken failed")
	assert.Contains(t, stdout, "Assertion failed: output")
}

func TestRun_FailingScenarioJSON(t *testing.T) {
	path := writeFile(t, t.TempDir(), "broken.yaml", brokenScenario)

	stdout, _, err := execute(t, "--format", "json", "run", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeTestFailed, resp.Error.Code)
}

func TestRun_CommandErrors(t *testing.T) {
	dir := t.TempDir()
	invalid := writeFile(t, dir, "invalid.yaml", "name: x\ndescription: y\nstep: []\n")
	badSetup := writeFile(t, dir, "setup.yaml", `name: setup
description: "Seed records share a key"
collection:
  key: id
records:
  - { id: a }
  - { id: a }
assertions:
  - type: size
    count: 0
`)

	tests := []struct {
		name string
		path string
		want string
	}{
		{"missing file", filepath.Join(dir, "nope.yaml"), "Error [E_NOT_FOUND]"},
		{"invalid scenario", invalid, "Error [E_INVALID_INPUT]: failed to load scenario"},
		{"setup failure", badSetup, "Error [E_INVALID_INPUT]: failed to set up scenario"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stdout, _, err := execute(t, "run", tt.path)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Contains(t, stdout, tt.want)
		})
	}
}

func TestRun_MissingArgs(t *testing.T) {
	_, _, err := execute(t, "run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}
