package harness

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestGoldenScenarios runs every scenario under testdata/scenarios and
// compares its trace with testdata/golden/<name>.golden.
//
// Regenerate with:
//
//	go test ./internal/harness -run TestGoldenScenarios -update
func TestGoldenScenarios(t *testing.T) {
	paths, err := DiscoverScenarios(filepath.Join("testdata", "scenarios"))
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		t.Run(name, func(t *testing.T) {
			scenario, err := LoadScenario(path)
			require.NoError(t, err)
			assert.Equal(t, name, scenario.Name, "file name and scenario name must match")

			result, err := RunWithGolden(t, scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors:\n%s", strings.Join(result.Errors, "\n"))
		})
	}
}

func TestTraceSnapshot_MarshalCanonical(t *testing.T) {
	result := NewResult()
	result.AddTrace(0, OpAppend, "default", "shift", "shift(0,+1) n=1 in")
	result.Outputs["default"] = []map[string]any{{"name": "a", "n": int64(1)}}
	result.Size = 1

	data, err := Snapshot("demo", result).MarshalCanonical()
	require.NoError(t, err)

	want := `{"outputs":{"default":[{"n":1,"name":"a"}]},"scenario_name":"demo","size":1,` +
		`"trace":[{"event":"shift(0,+1) n=1 in","kind":"shift","op":"append","seq":1,"step":0,"view":"default"}]}`
	assert.Equal(t, want, string(data))
}

func TestTraceSnapshot_EmptyOutput(t *testing.T) {
	result := NewResult()
	result.Outputs["default"] = []map[string]any{}

	data, err := Snapshot("empty", result).MarshalCanonical()
	require.NoError(t, err)
	assert.Equal(t, `{"outputs":{"default":[]},"scenario_name":"empty","size":0,"trace":[]}`, string(data))
}

func TestTraceSnapshot_RejectsNull(t *testing.T) {
	result := NewResult()
	result.Outputs["default"] = []map[string]any{{"name": nil}}

	_, err := Snapshot("null", result).MarshalCanonical()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "null")
}

func TestSnapshot_CopiesTrace(t *testing.T) {
	result := NewResult()
	result.AddTrace(0, OpClear, "default", "reset", "reset(0)")

	snap := Snapshot("copy", result)
	result.AddTrace(1, OpClear, "default", "reset", "reset(0)")
	result.Trace[0].Event = "changed"

	require.Len(t, snap.Trace, 1)
	assert.Equal(t, "reset(0)", snap.Trace[0].Event)
}
