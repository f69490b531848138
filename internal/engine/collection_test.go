package engine_test

import (
	"math/rand/v2"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/liveview/internal/engine"
	"github.com/roach88/liveview/internal/ir"
	"github.com/roach88/liveview/internal/metrics"
	tu "github.com/roach88/liveview/internal/testutil"
)

func ints(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

func appendAll[T any](t *testing.T, c *engine.Collection[T], values ...T) {
	t.Helper()
	for _, v := range values {
		require.NoError(t, c.Append(v))
	}
}

// intKey keys int records by themselves.
func intKey(v int) any { return v }

// assertKeyIndex checks that every key resolves to the position holding it.
func assertKeyIndex(t *testing.T, c *engine.Collection[int]) {
	t.Helper()
	keys, err := c.Keys()
	require.NoError(t, err)
	for pos, k := range keys {
		idx, err := c.IndexOfKey(k)
		require.NoError(t, err)
		require.Equal(t, pos, idx, "key %v", k)
		v, ok := c.At(idx)
		require.True(t, ok)
		require.Equal(t, ir.IRInt(v), k)
	}
}

func TestCollection_AppendAssignsIncreasingIDs(t *testing.T) {
	c := engine.New[string]()
	appendAll(t, c, "a", "b", "c")

	assert.Equal(t, 3, c.Len())
	var last uint64
	for i := 0; i < c.Len(); i++ {
		r, ok := c.Default().Record(i)
		require.True(t, ok)
		assert.Greater(t, r.ID, last)
		last = r.ID
	}
}

func TestCollection_CapacityEvictsOldest(t *testing.T) {
	tests := []struct {
		name       string
		limit      int
		dropFactor float64
		appends    int
		wantFirst  int
		wantLen    int
	}{
		{"default drop factor evicts one", 10, 0, 11, 1, 10},
		{"quarter evicts ceil(2.5)=3", 10, 0.25, 11, 3, 8},
		{"float noise does not round up", 100, 0.1, 101, 10, 91},
		{"limit one", 1, 0, 5, 4, 1},
		{"whole limit", 4, 1, 9, 8, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := engine.New[int](engine.WithLimit(tt.limit), engine.WithDropFactor(tt.dropFactor))
			for i := 0; i < tt.appends; i++ {
				require.NoError(t, c.Append(i))
				require.LessOrEqual(t, c.Len(), tt.limit)
			}
			assert.Equal(t, tt.wantLen, c.Len())
			first, ok := c.At(0)
			require.True(t, ok)
			assert.Equal(t, tt.wantFirst, first)
			last, _ := c.At(c.Len() - 1)
			assert.Equal(t, tt.appends-1, last)
		})
	}
}

func TestCollection_EvictionNotifiesAsShift(t *testing.T) {
	c := engine.New[int](engine.WithLimit(3))
	appendAll(t, c, 1, 2, 3)
	rec := &tu.Recorder{}
	c.Default().AddListener(rec.Listener())

	require.NoError(t, c.Append(4))

	assert.Equal(t, []string{"shift(0,-1) n=2 in", "shift(2,+1) n=3 in"}, rec.Lines())
	assert.Equal(t, []int{2, 3, 4}, c.Default().Output())
}

func TestCollection_KeyedAppendErrorsLeaveNoTrace(t *testing.T) {
	c := engine.NewKeyed(engine.KeyField("id"))
	require.NoError(t, c.Append(tu.Obj(t, map[string]any{"id": "a"})))
	rec := &tu.Recorder{}
	c.Default().AddListener(rec.Listener())

	err := c.Append(tu.Obj(t, map[string]any{"id": "a", "n": 2}))
	require.Error(t, err)
	assert.True(t, engine.IsDuplicateKey(err))

	err = c.Append(tu.Obj(t, map[string]any{"name": "no id"}))
	assert.True(t, engine.IsInvalidKeyValue(err))

	err = c.Append(tu.Obj(t, map[string]any{"id": ""}))
	assert.True(t, engine.IsInvalidKeyValue(err))

	err = c.Append(tu.Obj(t, map[string]any{"id": true}))
	assert.True(t, engine.IsInvalidKeyValue(err))

	assert.Equal(t, 1, c.Len())
	assert.Empty(t, rec.Events())
}

func TestCollection_DuplicateOfEvictedRecordIsAllowed(t *testing.T) {
	c := engine.NewKeyed(intKey, engine.WithLimit(2), engine.WithDropFactor(0.5))
	appendAll(t, c, 1, 2)

	require.NoError(t, c.Append(1))
	assert.Equal(t, []int{2, 1}, c.Serialize())
	assertKeyIndex(t, c)

	err := c.Append(1)
	assert.True(t, engine.IsDuplicateKey(err))
	assert.Equal(t, []int{2, 1}, c.Serialize())
}

func TestCollection_StringAndIntKeysDiffer(t *testing.T) {
	c := engine.NewKeyed(func(v any) any { return v })
	require.NoError(t, c.Append("1"))
	require.NoError(t, c.Append(1))

	idx, err := c.IndexOfKey(1)
	require.NoError(t, err)
	assert.Equal(t, 1, idx)
	idx, err = c.IndexOfKey("1")
	require.NoError(t, err)
	assert.Equal(t, 0, idx)
	idx, err = c.IndexOfKey(1.0)
	require.NoError(t, err)
	assert.Equal(t, 1, idx, "integral float normalizes to the integer key")
}

func TestCollection_UpdateErrors(t *testing.T) {
	c := engine.NewKeyed(intKey)
	appendAll(t, c, 1, 2)

	err := c.Update(2, 5)
	assert.True(t, engine.IsIndexOutOfRange(err))
	err = c.Update(-1, 5)
	assert.True(t, engine.IsIndexOutOfRange(err))

	err = c.Update(0, 2)
	assert.True(t, engine.IsDuplicateKey(err))
	assert.Equal(t, []int{1, 2}, c.Serialize())
}

func TestCollection_UpdateSameValueIsNoop(t *testing.T) {
	rec1 := tu.Obj(t, map[string]any{"id": "a"})
	c := engine.NewKeyed(engine.KeyField("id"))
	require.NoError(t, c.Append(rec1))
	rec := &tu.Recorder{}
	c.Default().AddListener(rec.Listener())

	require.NoError(t, c.Update(0, rec1))
	assert.Empty(t, rec.Events())

	// An equal but distinct record is a real update.
	require.NoError(t, c.Update(0, rec1.Clone()))
	assert.Equal(t, []string{"updated(0)"}, rec.Lines())
}

func TestCollection_UpdateMigratesKey(t *testing.T) {
	c := engine.NewKeyed(intKey)
	appendAll(t, c, 1, 2, 3)

	require.NoError(t, c.Update(1, 20))

	has, err := c.Has(2)
	require.NoError(t, err)
	assert.False(t, has)
	idx, err := c.IndexOfKey(20)
	require.NoError(t, err)
	assert.Equal(t, 1, idx)
	assertKeyIndex(t, c)
}

func TestCollection_DeleteKeepsKeyIndex(t *testing.T) {
	c := engine.NewKeyed(intKey)
	appendAll(t, c, ints(6)...)

	require.NoError(t, c.Delete(0))
	assertKeyIndex(t, c)
	require.NoError(t, c.Delete(2))
	assertKeyIndex(t, c)
	require.NoError(t, c.Delete(c.Len()-1))
	assertKeyIndex(t, c)

	assert.Equal(t, []int{1, 2, 4}, c.Serialize())
	err := c.Delete(3)
	assert.True(t, engine.IsIndexOutOfRange(err))
}

func TestCollection_KeyIndexSurvivesRandomMutations(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	c := engine.NewKeyed(intKey, engine.WithLimit(50), engine.WithDropFactor(0.2))
	next := 0

	for step := 0; step < 2000; step++ {
		switch op := rng.IntN(10); {
		case op < 5 || c.Len() == 0:
			require.NoError(t, c.Append(next))
			next++
		case op < 7:
			require.NoError(t, c.Delete(rng.IntN(c.Len())))
		case op < 8:
			c.Shift(rng.IntN(c.Len()/4 + 1))
		default:
			require.NoError(t, c.Update(rng.IntN(c.Len()), next))
			next++
		}
		assertKeyIndex(t, c)
		require.Equal(t, c.Serialize(), c.Default().Output())
	}
}

func TestCollection_KeyedScenario(t *testing.T) {
	c := engine.NewKeyed(engine.KeyField("id"))
	for _, id := range []string{"cookie", "coffee", "bug"} {
		require.NoError(t, c.Append(tu.Obj(t, map[string]any{"id": id, "name": id})))
	}
	rec := &tu.Recorder{}
	c.Default().AddListener(rec.Listener())

	espresso := tu.Obj(t, map[string]any{"id": "coffee", "name": "espresso"})
	updated, err := c.Upsert(espresso)
	require.NoError(t, err)
	assert.True(t, updated)
	idx, err := c.IndexOfKey("coffee")
	require.NoError(t, err)
	assert.Equal(t, 1, idx)
	got, ok, err := c.GetByKey("coffee")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, espresso, got)
	assert.Equal(t, []string{"updated(1)"}, rec.Lines())

	rec.Reset()
	updated, err = c.Upsert(tu.Obj(t, map[string]any{"id": "tea", "name": "tea"}))
	require.NoError(t, err)
	assert.False(t, updated)
	assert.Equal(t, []string{"shift(3,+1) n=4 in"}, rec.Lines())
	assert.Equal(t, []string{"cookie", "espresso", "bug", "tea"}, tu.Names(c.Default().Output()))

	rec.Reset()
	deleted, err := c.DeleteByKey("nope")
	require.NoError(t, err)
	assert.False(t, deleted)
	assert.Empty(t, rec.Events())

	deleted, err = c.DeleteByKey("cookie")
	require.NoError(t, err)
	assert.True(t, deleted)
	assert.Equal(t, []string{"shift(0,-1) n=3 in"}, rec.Lines())

	keys, err := c.Keys()
	require.NoError(t, err)
	assert.Equal(t, []ir.IRValue{ir.IRString("coffee"), ir.IRString("bug"), ir.IRString("tea")}, keys)

	entries, err := c.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, ir.IRString("bug"), entries[1].Key)
}

func TestCollection_KeyOperationsRequireKey(t *testing.T) {
	c := engine.New[int]()
	appendAll(t, c, 1)

	_, err := c.Upsert(1)
	assert.True(t, engine.IsKeyNotConfigured(err))
	_, err = c.IndexOfKey(1)
	assert.True(t, engine.IsKeyNotConfigured(err))
	_, err = c.Has(1)
	assert.True(t, engine.IsKeyNotConfigured(err))
	_, _, err = c.GetByKey(1)
	assert.True(t, engine.IsKeyNotConfigured(err))
	_, err = c.DeleteByKey(1)
	assert.True(t, engine.IsKeyNotConfigured(err))
	_, err = c.Keys()
	assert.True(t, engine.IsKeyNotConfigured(err))
	_, err = c.Entries()
	assert.True(t, engine.IsKeyNotConfigured(err))
	assert.Equal(t, engine.ErrCodeKeyNotConfigured, engine.CodeOf(err))
}

func TestCollection_SerializeRoundTrip(t *testing.T) {
	c := engine.NewKeyed(intKey)
	appendAll(t, c, 5, 3, 9, 1)
	c.Default().SetSortBy(engine.SortByFunc("n", func(v int) ir.IRValue { return ir.IRInt(v) }))

	raw := c.Serialize()
	assert.Equal(t, []int{5, 3, 9, 1}, raw, "serialization ignores view order")

	d := engine.NewKeyed(intKey)
	require.NoError(t, d.Deserialize(raw))
	assert.Equal(t, raw, d.Serialize())
	assertKeyIndex(t, d)

	require.NoError(t, c.Deserialize(c.Serialize()))
	assert.Equal(t, raw, c.Serialize())
	assert.Equal(t, []int{1, 3, 5, 9}, c.Default().Output())
}

func TestCollection_DeserializeRejectsBadInputUpFront(t *testing.T) {
	c := engine.NewKeyed(intKey)
	appendAll(t, c, 1, 2)

	err := c.Deserialize([]int{7, 8, 7})
	assert.True(t, engine.IsDuplicateKey(err))
	assert.Equal(t, []int{1, 2}, c.Serialize())
}

func TestCollection_ClearRebuildsEveryView(t *testing.T) {
	c := engine.New[int]()
	appendAll(t, c, 1, 2, 3)
	forked, err := c.Fork("other")
	require.NoError(t, err)

	recDefault, recFork := &tu.Recorder{}, &tu.Recorder{}
	c.Default().AddListener(recDefault.Listener())
	forked.AddListener(recFork.Listener())

	c.Clear()

	assert.Equal(t, []string{"reset(0)"}, recDefault.Lines())
	assert.Equal(t, []string{"reset(0)"}, recFork.Lines())
	assert.Zero(t, c.Len())

	// Ids keep increasing across Clear.
	appendAll(t, c, 4)
	r, ok := c.Default().Record(0)
	require.True(t, ok)
	assert.Equal(t, uint64(4), r.ID)
}

func TestCollection_ForkAndDetach(t *testing.T) {
	c := engine.New[int](engine.WithViewIDGenerator(tu.NewSequentialIDGenerator("fork")))
	appendAll(t, c, 3, 1, 2)

	v, err := c.Fork("")
	require.NoError(t, err)
	assert.Equal(t, "fork-1", v.ID())
	assert.Equal(t, []int{3, 1, 2}, v.Output())

	_, err = c.Fork("fork-1")
	require.Error(t, err)
	assert.Equal(t, engine.ErrCodeDuplicateView, engine.CodeOf(err))
	_, err = c.Fork(engine.DefaultViewID)
	assert.Equal(t, engine.ErrCodeDuplicateView, engine.CodeOf(err))

	got, ok := c.View("fork-1")
	require.True(t, ok)
	assert.Same(t, v, got)
	assert.Len(t, c.Views(), 2)

	assert.False(t, c.Detach(c.Default()))
	v.Close()
	_, ok = c.View("fork-1")
	assert.False(t, ok)
	assert.False(t, c.Detach(v))

	appendAll(t, c, 4)
	assert.Equal(t, 3, v.Len(), "detached view keeps its last output")
	assert.Equal(t, 4, c.Default().Len())
}

func TestCollection_Metrics(t *testing.T) {
	m := metrics.New(nil)
	c := engine.New[int](engine.WithLimit(2), engine.WithDropFactor(0.5), engine.WithMetrics(m))
	appendAll(t, c, 1, 2, 3)
	require.NoError(t, c.Update(0, 5))

	assert.Equal(t, 3.0, testutil.ToFloat64(m.Mutations.WithLabelValues("append")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Mutations.WithLabelValues("shift")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Mutations.WithLabelValues("update")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Evictions))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.Notifications.WithLabelValues(engine.DefaultViewID, "shift")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Notifications.WithLabelValues(engine.DefaultViewID, "updated")))
}
