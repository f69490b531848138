package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/liveview/internal/ir"
)

// Obj builds an ir.IRObject from Go values, failing the test on
// unsupported values (floats with a fraction, channels, ...).
func Obj(t testing.TB, fields map[string]any) ir.IRObject {
	t.Helper()
	obj, err := ir.ObjectFromGo(fields)
	require.NoError(t, err)
	return obj
}

// Names returns the "name" string field of each record; records without
// one contribute "".
func Names(records []ir.IRObject) []string {
	out := make([]string, len(records))
	for i, r := range records {
		if s, ok := r.Field("name").(ir.IRString); ok {
			out[i] = string(s)
		}
	}
	return out
}
