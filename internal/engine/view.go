package engine

import (
	"cmp"
	"math"
	"slices"
	"sort"

	"github.com/roach88/liveview/internal/ir"
)

// DefaultViewID is the id of the view every collection is created with.
const DefaultViewID = "default"

// placement is a view's private bookkeeping for one entry.
type placement struct {
	visible bool
	// approx is the entry's last known output position; -1 if never placed.
	// It is a hint and may be stale after other mutations.
	approx int
}

// View is a filtered, sorted, optionally reversed, windowed projection of a
// Collection, kept up to date incrementally as the collection mutates.
type View[T any] struct {
	coll *Collection[T]
	id   string

	sortBy  SortBy[T]
	filter  Filter[T]
	reverse bool

	windowStart int
	windowEnd   int

	// output is filtered and sorted but not reversed or windowed.
	output []*entry[T]
	state  map[uint64]placement

	listeners    []listenerSlot
	nextListener int
}

func newView[T any](c *Collection[T], id string) *View[T] {
	return &View[T]{
		coll:      c,
		id:        id,
		windowEnd: math.MaxInt,
		state:     make(map[uint64]placement),
	}
}

// ID returns the view id.
func (v *View[T]) ID() string { return v.id }

// SortBy returns the current sort strategy.
func (v *View[T]) SortBy() SortBy[T] { return v.sortBy }

// Filter returns the current filter strategy.
func (v *View[T]) Filter() Filter[T] { return v.filter }

// Reversed reports whether reads and notifications are reversed.
func (v *View[T]) Reversed() bool { return v.reverse }

// Window returns the current window bounds [start, end).
func (v *View[T]) Window() (start, end int) { return v.windowStart, v.windowEnd }

// Len returns the number of records in the view's output.
func (v *View[T]) Len() int { return len(v.output) }

// AddListener registers fn for notifications and returns a function that
// unregisters it. Calling the returned function more than once is harmless.
func (v *View[T]) AddListener(fn Listener) (unsubscribe func()) {
	v.nextListener++
	id := v.nextListener
	v.listeners = append(v.listeners, listenerSlot{id: id, fn: fn})
	return func() {
		v.listeners = slices.DeleteFunc(v.listeners, func(s listenerSlot) bool {
			return s.id == id
		})
	}
}

// SetSortBy changes the sort strategy and rebuilds the output.
// Setting the same strategy again is a no-op.
func (v *View[T]) SetSortBy(s SortBy[T]) {
	if v.sortBy.Same(s) {
		return
	}
	v.sortBy = s
	v.rebuild("sort")
}

// SetFilter changes the filter strategy and rebuilds the output.
// Setting the same strategy again is a no-op.
func (v *View[T]) SetFilter(f Filter[T]) {
	if v.filter.Same(f) {
		return
	}
	v.filter = f
	v.rebuild("filter")
}

// SetReversed flips the read order. Reversal is applied at read time, so
// the output is not rebuilt; listeners still get a Reset.
func (v *View[T]) SetReversed(reverse bool) {
	if v.reverse == reverse {
		return
	}
	v.reverse = reverse
	v.emit(Notification{Kind: NotifyReset, NewCount: len(v.output)})
}

// SetWindow declares the display range [start, end) a consumer is showing.
// Negative starts clamp to 0 and an end below start clamps to start.
// Unchanged bounds emit nothing.
func (v *View[T]) SetWindow(start, end int) {
	start = max(start, 0)
	end = max(end, start)
	if start == v.windowStart && end == v.windowEnd {
		return
	}
	v.windowStart, v.windowEnd = start, end
	v.emit(Notification{Kind: NotifyWindowChange, Start: start, End: end})
}

// Reset restores the default configuration (no sort, no filter, not
// reversed, unbounded window) and rebuilds.
func (v *View[T]) Reset() {
	v.sortBy = SortNone[T]()
	v.filter = FilterNone[T]()
	v.reverse = false
	v.windowStart, v.windowEnd = 0, math.MaxInt
	v.rebuild("reset")
}

// Rebuild re-derives the output from scratch. Needed only when a named
// strategy's behavior changed without its name changing.
func (v *View[T]) Rebuild() {
	v.rebuild("manual")
}

// Close detaches the view from its collection. The default view cannot be closed.
func (v *View[T]) Close() {
	if v.coll != nil {
		v.coll.Detach(v)
	}
}

// Output returns a copy of the whole output in display order.
func (v *View[T]) Output() []T {
	return v.Range(0, len(v.output))
}

// WindowOutput returns a copy of the records inside the current window.
func (v *View[T]) WindowOutput() []T {
	return v.Range(v.windowStart, v.windowEnd)
}

// Range returns a copy of display positions [start, end), clamped to the output.
func (v *View[T]) Range(start, end int) []T {
	n := len(v.output)
	start = min(max(start, 0), n)
	end = min(max(end, start), n)

	out := make([]T, 0, end-start)
	if v.reverse {
		for i := n - 1 - start; i >= n-end; i-- {
			out = append(out, v.output[i].value)
		}
		return out
	}
	for i := start; i < end; i++ {
		out = append(out, v.output[i].value)
	}
	return out
}

// Get returns the record value at display position i.
func (v *View[T]) Get(i int) (T, bool) {
	r, ok := v.Record(i)
	return r.Value, ok
}

// Record returns the record (value and insertion id) at display position i.
func (v *View[T]) Record(i int) (Record[T], bool) {
	n := len(v.output)
	if i < 0 || i >= n {
		return Record[T]{}, false
	}
	e := v.output[v.display(i, n)]
	return Record[T]{ID: e.id, Value: e.value}, true
}

// processEvent applies one collection mutation to the output.
func (v *View[T]) processEvent(m mutation[T]) {
	switch m.kind {
	case mutationAppend:
		v.onAppend(m.entry)
	case mutationUpdate:
		v.onUpdate(m.entry, m.oldValue, m.index)
	case mutationRemove:
		v.onRemove(m.entry)
	case mutationShift:
		v.onShift(m.removed)
	}
}

func (v *View[T]) onAppend(e *entry[T]) {
	p := placement{visible: v.filter.Match(e.value), approx: -1}
	if !p.visible {
		v.state[e.id] = p
		return
	}
	if !v.sortBy.IsSet() {
		v.output = append(v.output, e)
		n := len(v.output)
		p.approx = n - 1
		v.state[e.id] = p
		v.emitShift(v.display(n-1, n), 1)
		return
	}
	v.insertSorted(e)
}

func (v *View[T]) onUpdate(e *entry[T], old T, index int) {
	p := v.state[e.id]
	wasVisible := p.visible
	nowVisible := v.filter.Match(e.value)

	if !v.filter.IsSet() && !v.sortBy.IsSet() {
		// The output mirrors the collection, so the collection index is the output index.
		v.state[e.id] = placement{visible: true, approx: index}
		v.emitUpdated(v.display(index, len(v.output)))
		return
	}

	switch {
	case !wasVisible && !nowVisible:
		return
	case !wasVisible && nowVisible:
		v.insertSorted(e)
		return
	}

	i := v.sortedIndex(e, old)
	if !nowVisible {
		v.removeAt(i)
		v.state[e.id] = placement{visible: false, approx: -1}
		return
	}
	if !v.sortBy.IsSet() || ir.Equal(v.sortBy.Key(old), v.sortBy.Key(e.value)) {
		v.state[e.id] = placement{visible: true, approx: i}
		v.emitUpdated(v.display(i, len(v.output)))
		return
	}

	// Sort key changed: remove then reinsert, two notifications by contract.
	v.removeAt(i)
	v.insertSorted(e)
}

func (v *View[T]) onRemove(e *entry[T]) {
	p, ok := v.state[e.id]
	if !ok || !p.visible {
		delete(v.state, e.id)
		return
	}
	i := v.sortedIndex(e, e.value)
	delete(v.state, e.id)
	v.removeAt(i)
}

func (v *View[T]) onShift(removed []*entry[T]) {
	if !v.sortBy.IsSet() {
		// Unsorted output is in insertion order, so the removed (oldest)
		// visible entries are exactly its first count elements.
		count := 0
		for _, e := range removed {
			if v.state[e.id].visible {
				count++
			}
			delete(v.state, e.id)
		}
		if count == 0 {
			return
		}
		n := len(v.output)
		v.output = slices.Delete(v.output, 0, count)
		index := 0
		if v.reverse {
			index = n - count
		}
		v.emitShift(index, -count)
		return
	}

	if v.shiftNeedsRebuild(len(removed)) {
		v.rebuild("shift")
		return
	}
	// Back to front, so hints of not yet processed entries stay valid longer.
	for i := len(removed) - 1; i >= 0; i-- {
		v.onRemove(removed[i])
	}
}

// shiftNeedsRebuild reports whether removing n entries from a sorted output
// one at a time would cost more than re-deriving it.
func (v *View[T]) shiftNeedsRebuild(n int) bool {
	const floor = 10
	const ratio = 0.05
	remaining := v.coll.Len()
	return n > floor && float64(n) > ratio*float64(remaining)
}

// insertSorted places e at the upper bound of (sort key, id), so an entry
// tying with existing ones lands after those with smaller ids.
func (v *View[T]) insertSorted(e *entry[T]) {
	key := v.sortBy.Key(e.value)
	i := sort.Search(len(v.output), func(j int) bool {
		return v.compareEntry(v.output[j], key, e.id) > 0
	})
	v.output = slices.Insert(v.output, i, e)
	v.state[e.id] = placement{visible: true, approx: i}
	v.emitShift(v.display(i, len(v.output)), 1)
}

// compareEntry orders x against the position (key, id). Unsorted views
// compare ids only.
func (v *View[T]) compareEntry(x *entry[T], key ir.IRValue, id uint64) int {
	if v.sortBy.IsSet() {
		if c := ir.Compare(v.sortBy.Key(x.value), key); c != 0 {
			return c
		}
	}
	return cmp.Compare(x.id, id)
}

// sortedIndex returns e's current position in the output.
//
// Contract: the approx hint may be stale. When it is, e is found by binary
// search on its previous sort key (old, the value it was placed under), then
// by probing forward past ties until e itself is reached. During the search
// e is compared under old even if its value has since changed, so a pending
// update cannot mislead the search. Running off the end means the view's
// bookkeeping is broken; that panics with CORRUPT_INDEX_STATE.
func (v *View[T]) sortedIndex(e *entry[T], old T) int {
	if p, ok := v.state[e.id]; ok && p.approx >= 0 && p.approx < len(v.output) && v.output[p.approx] == e {
		return p.approx
	}

	var i int
	if v.sortBy.IsSet() {
		oldKey := v.sortBy.Key(old)
		i = sort.Search(len(v.output), func(j int) bool {
			x := v.output[j]
			k := oldKey
			if x != e {
				k = v.sortBy.Key(x.value)
			}
			return ir.Compare(k, oldKey) >= 0
		})
	} else {
		i = sort.Search(len(v.output), func(j int) bool {
			return v.output[j].id >= e.id
		})
	}

	for ; i < len(v.output); i++ {
		if v.output[i] == e {
			return i
		}
	}
	panic(newCorruptIndexState(v.id, e.id))
}

func (v *View[T]) removeAt(i int) {
	n := len(v.output)
	v.output = slices.Delete(v.output, i, i+1)
	v.emitShift(v.display(i, n), -1)
}

// rebuild re-derives the output in O(n log n) and emits a single Reset.
func (v *View[T]) rebuild(reason string) {
	entries := v.coll.entries
	v.state = make(map[uint64]placement, len(entries))

	out := make([]*entry[T], 0, len(entries))
	for _, e := range entries {
		visible := v.filter.Match(e.value)
		v.state[e.id] = placement{visible: visible, approx: -1}
		if visible {
			out = append(out, e)
		}
	}

	if v.sortBy.IsSet() {
		type keyed struct {
			key ir.IRValue
			e   *entry[T]
		}
		ks := make([]keyed, len(out))
		for i, e := range out {
			ks[i] = keyed{key: v.sortBy.Key(e.value), e: e}
		}
		// Ties break on id, so the result is stable whatever the sort algorithm.
		slices.SortFunc(ks, func(a, b keyed) int {
			if c := ir.Compare(a.key, b.key); c != 0 {
				return c
			}
			return cmp.Compare(a.e.id, b.e.id)
		})
		for i := range ks {
			out[i] = ks[i].e
		}
	}

	for i, e := range out {
		v.state[e.id] = placement{visible: true, approx: i}
	}
	v.output = out

	v.coll.metrics.Rebuilt(v.id, reason)
	v.coll.logger.Debug("view rebuilt",
		"view", v.id,
		"reason", reason,
		"count", len(out),
		"sorted", v.sortBy.IsSet(),
		"filtered", v.filter.IsSet(),
	)
	v.emit(Notification{Kind: NotifyReset, NewCount: len(out)})
}

// display maps between output and display positions for an output of length n.
// The mapping is its own inverse.
func (v *View[T]) display(i, n int) int {
	if v.reverse {
		return n - 1 - i
	}
	return i
}

func (v *View[T]) location(i int) Location {
	switch {
	case i < v.windowStart:
		return LocationBefore
	case i >= v.windowEnd:
		return LocationAfter
	default:
		return LocationIn
	}
}

func (v *View[T]) emitShift(index, delta int) {
	v.emit(Notification{
		Kind:     NotifyShift,
		Index:    index,
		Delta:    delta,
		NewCount: len(v.output),
		Location: v.location(index),
	})
}

func (v *View[T]) emitUpdated(index int) {
	if index < v.windowStart || index >= v.windowEnd {
		return
	}
	v.emit(Notification{Kind: NotifyUpdated, Index: index})
}

func (v *View[T]) emit(n Notification) {
	n.View = v.id
	v.coll.metrics.Notified(v.id, n.Kind.String())
	for _, l := range slices.Clone(v.listeners) {
		l.fn(n)
	}
}
