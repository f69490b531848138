package engine

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/liveview/internal/ir"
)

func TestNormalizeKey(t *testing.T) {
	tests := []struct {
		name string
		raw  any
		want ir.IRValue
	}{
		{"string", "abc", ir.IRString("abc")},
		{"ir string", ir.IRString("abc"), ir.IRString("abc")},
		{"int", 42, ir.IRInt(42)},
		{"int64", int64(-7), ir.IRInt(-7)},
		{"uint8", uint8(3), ir.IRInt(3)},
		{"ir int", ir.IRInt(9), ir.IRInt(9)},
		{"integral float", 12.0, ir.IRInt(12)},
		{"json number", json.Number("5"), ir.IRInt(5)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeKey(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeKey_Invalid(t *testing.T) {
	for _, raw := range []any{
		nil, "", ir.IRString(""), ir.IRNull{}, true, ir.IRBool(false),
		1.5, []any{1}, ir.IRArray{ir.IRInt(1)}, ir.IRObject{}, struct{}{},
	} {
		_, err := NormalizeKey(raw)
		require.Error(t, err, "%#v", raw)
		assert.True(t, IsInvalidKeyValue(err), "%#v", raw)
	}
}

func TestErrorFormatting(t *testing.T) {
	err := newDuplicateKey(ir.IRString("a"), 3)
	assert.Equal(t, ErrCodeDuplicateKey, err.Code)
	assert.Contains(t, err.Error(), "DUPLICATE_KEY")
	assert.Equal(t, `"a"`, err.Details["key"])

	corrupt := newCorruptIndexState("v1", 9)
	assert.Contains(t, corrupt.Error(), "view=v1")
	assert.True(t, IsCorruptIndexState(corrupt))

	assert.Equal(t, ErrorCode(""), CodeOf(assert.AnError))
	assert.False(t, IsDuplicateKey(nil))
}

func TestSameValue(t *testing.T) {
	obj := ir.IRObject{"a": ir.IRInt(1)}
	slice := []int{1, 2}
	p := &struct{ n int }{1}

	assert.True(t, sameValue(obj, obj))
	assert.False(t, sameValue(obj, obj.Clone()))
	assert.True(t, sameValue(slice, slice))
	assert.False(t, sameValue(slice, slice[:1]))
	assert.True(t, sameValue(p, p))
	assert.False(t, sameValue(p, &struct{ n int }{1}))
	assert.True(t, sameValue("x", "x"))
	assert.True(t, sameValue[any](1, 1))
	assert.False(t, sameValue[any](1, "1"))
}
