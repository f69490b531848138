package engine_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/liveview/internal/engine"
	"github.com/roach88/liveview/internal/ir"
)

func TestParseSort(t *testing.T) {
	none, err := engine.ParseSort("", "en")
	require.NoError(t, err)
	assert.False(t, none.IsSet())

	plain, err := engine.ParseSort("name", "")
	require.NoError(t, err)
	assert.True(t, plain.Same(engine.SortByField[ir.IRObject]("name")))

	collated, err := engine.ParseSort("name", "sv")
	require.NoError(t, err)
	assert.Equal(t, "name@sv", collated.Name())
	assert.False(t, collated.Same(plain))

	again, err := engine.ParseSort("name", "sv")
	require.NoError(t, err)
	assert.True(t, collated.Same(again), "same field and tag is the same configuration")

	_, err = engine.ParseSort("name", "!!")
	assert.ErrorContains(t, err, `collate "!!"`)
}

func TestParseFilter(t *testing.T) {
	none, err := engine.ParseFilter("")
	require.NoError(t, err)
	assert.False(t, none.IsSet())

	f, err := engine.ParseFilter(`n: >1`)
	require.NoError(t, err)
	assert.True(t, f.Match(ir.IRObject{"n": ir.IRInt(2)}))
	assert.False(t, f.Match(ir.IRObject{"n": ir.IRInt(1)}))
	assert.False(t, f.Match(ir.IRObject{"m": ir.IRInt(5)}))

	_, err = engine.ParseFilter(`n: >`)
	assert.Error(t, err)
}
