package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompareKinds(t *testing.T) {
	ordered := []IRValue{
		IRNull{},
		IRBool(false),
		IRBool(true),
		IRInt(-10),
		IRInt(3),
		IRString(""),
		IRString("a"),
		IRString("b"),
		IRArray{},
		IRArray{IRInt(1)},
		IRArray{IRInt(1), IRInt(0)},
		IRObject{"a": IRInt(1)},
	}

	for i := range ordered {
		for j := range ordered {
			got := Compare(ordered[i], ordered[j])
			switch {
			case i < j:
				assert.Equal(t, -1, got, "Compare(%v, %v)", ordered[i], ordered[j])
			case i > j:
				assert.Equal(t, 1, got, "Compare(%v, %v)", ordered[i], ordered[j])
			default:
				assert.Equal(t, 0, got, "Compare(%v, %v)", ordered[i], ordered[j])
			}
		}
	}
}

func TestCompareNilIsNull(t *testing.T) {
	assert.Equal(t, 0, Compare(nil, IRNull{}))
	assert.Equal(t, -1, Compare(nil, IRInt(0)))
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal(IRString("x"), IRString("x")))
	assert.False(t, Equal(IRString("1"), IRInt(1)))
	assert.True(t, Equal(IRObject{"a": IRInt(1)}, IRObject{"a": IRInt(1)}))
}
