package engine

import (
	"log/slog"
	"math"
	"slices"

	"github.com/roach88/liveview/internal/ir"
	"github.com/roach88/liveview/internal/metrics"
)

// Record is a stored value together with its insertion id.
type Record[T any] struct {
	ID    uint64
	Value T
}

// KeyedRecord pairs a record value with its normalized key.
type KeyedRecord[T any] struct {
	Key   ir.IRValue
	Value T
}

// entry is the collection-owned wrapper shared (read-only) by all views.
type entry[T any] struct {
	id    uint64
	key   ir.IRValue // nil when the collection is unkeyed
	value T
}

type mutationKind int

const (
	mutationAppend mutationKind = iota + 1
	mutationUpdate
	mutationRemove
	mutationShift
)

// mutation describes one collection change delivered to every view.
type mutation[T any] struct {
	kind     mutationKind
	entry    *entry[T]
	oldValue T
	index    int
	removed  []*entry[T]
}

// Collection is the record store: an ordered sequence of records with
// insertion ids, an optional unique-key index, a capacity limit with
// oldest-first eviction, and the set of views kept in sync with it.
//
// A Collection is not safe for concurrent use.
type Collection[T any] struct {
	entries []*entry[T]

	keyOf    KeyFunc[T]
	keyIndex map[ir.IRValue]int
	// shiftOffset corrects keyIndex after front trims: a key's position is
	// keyIndex[key] + shiftOffset.
	shiftOffset int

	limit      int
	dropFactor float64
	clock      *Clock

	defaultView *View[T]
	views       []*View[T]

	idGen   IDGenerator
	logger  *slog.Logger
	metrics *metrics.Collector
}

// New creates an unkeyed collection.
func New[T any](opts ...Option) *Collection[T] {
	return NewKeyed[T](nil, opts...)
}

// NewKeyed creates a collection whose records are unique by keyOf.
// A nil keyOf creates an unkeyed collection.
func NewKeyed[T any](keyOf KeyFunc[T], opts ...Option) *Collection[T] {
	o := buildOptions(opts)
	c := &Collection[T]{
		keyOf:      keyOf,
		limit:      o.limit,
		dropFactor: o.dropFactor,
		clock:      NewClock(),
		idGen:      o.idGen,
		logger:     o.logger,
		metrics:    o.metrics,
	}
	if keyOf != nil {
		c.keyIndex = make(map[ir.IRValue]int)
	}
	c.defaultView = newView(c, DefaultViewID)
	c.views = []*View[T]{c.defaultView}
	return c
}

// Default returns the view created with the collection.
func (c *Collection[T]) Default() *View[T] {
	return c.defaultView
}

// View returns the attached view with the given id.
func (c *Collection[T]) View(id string) (*View[T], bool) {
	for _, v := range c.views {
		if v.id == id {
			return v, true
		}
	}
	return nil, false
}

// Views returns the attached views, default first.
func (c *Collection[T]) Views() []*View[T] {
	return slices.Clone(c.views)
}

// Len returns the number of records.
func (c *Collection[T]) Len() int {
	return len(c.entries)
}

// Keyed reports whether the collection was created with a key function.
func (c *Collection[T]) Keyed() bool {
	return c.keyOf != nil
}

// At returns the record value at collection position i (insertion order).
func (c *Collection[T]) At(i int) (T, bool) {
	if i < 0 || i >= len(c.entries) {
		var zero T
		return zero, false
	}
	return c.entries[i].value, true
}

// Append adds value as the newest record.
//
// When the collection is at its limit, the oldest ceil(limit*dropFactor)
// records are evicted first (a Shift). A key clash with a record that this
// eviction removes is not a conflict. All validation happens before any
// state changes.
func (c *Collection[T]) Append(value T) error {
	evict := 0
	if c.limit > 0 && len(c.entries) >= c.limit {
		evict = min(c.evictCount(), len(c.entries))
	}

	var key ir.IRValue
	if c.Keyed() {
		k, err := c.extractKey(value)
		if err != nil {
			return err
		}
		if pos, ok := c.position(k); ok && pos >= evict {
			return newDuplicateKey(k, pos)
		}
		key = k
	}

	if evict > 0 {
		c.logger.Debug("collection at capacity, evicting oldest records",
			"limit", c.limit,
			"evict", evict,
		)
		c.metrics.Evicted(evict)
		c.Shift(evict)
	}

	e := &entry[T]{id: c.clock.Next(), key: key, value: value}
	if key != nil {
		c.keyIndex[key] = len(c.entries) - c.shiftOffset
	}
	c.entries = append(c.entries, e)

	c.metrics.Mutation("append")
	c.broadcast(mutation[T]{kind: mutationAppend, entry: e, index: len(c.entries) - 1})
	return nil
}

// evictCount is ceil(limit * dropFactor), at least 1.
func (c *Collection[T]) evictCount() int {
	// The epsilon keeps products like 100*0.1 = 10.000000000000002 at 10.
	n := int(math.Ceil(float64(c.limit)*c.dropFactor - 1e-9))
	return max(n, 1)
}

// Update replaces the record at index. Replacing a value with the very same
// value (same map, pointer, or comparable value) is a no-op.
func (c *Collection[T]) Update(index int, value T) error {
	if index < 0 || index >= len(c.entries) {
		return newIndexOutOfRange(index, len(c.entries))
	}
	e := c.entries[index]
	if sameValue(e.value, value) {
		return nil
	}

	if c.Keyed() {
		newKey, err := c.extractKey(value)
		if err != nil {
			return err
		}
		if newKey != e.key {
			if pos, ok := c.position(newKey); ok && pos != index {
				return newDuplicateKey(newKey, pos)
			}
			delete(c.keyIndex, e.key)
			c.keyIndex[newKey] = index - c.shiftOffset
			e.key = newKey
		}
	}

	old := e.value
	e.value = value

	c.metrics.Mutation("update")
	c.broadcast(mutation[T]{kind: mutationUpdate, entry: e, oldValue: old, index: index})
	return nil
}

// Delete removes the record at index.
//
// Deleting the first record is O(1) for the key index; deleting anywhere
// else walks every key. Bulk front removal should use Shift.
func (c *Collection[T]) Delete(index int) error {
	if index < 0 || index >= len(c.entries) {
		return newIndexOutOfRange(index, len(c.entries))
	}
	e := c.entries[index]
	c.entries = slices.Delete(c.entries, index, index+1)

	if c.Keyed() {
		delete(c.keyIndex, e.key)
		if index == 0 {
			c.shiftOffset--
		} else {
			for k, stored := range c.keyIndex {
				if stored+c.shiftOffset > index {
					c.keyIndex[k] = stored - 1
				}
			}
		}
	}

	c.metrics.Mutation("delete")
	c.broadcast(mutation[T]{kind: mutationRemove, entry: e, index: index})
	return nil
}

// DeleteByKey deletes the record with key and reports whether it existed.
func (c *Collection[T]) DeleteByKey(key any) (bool, error) {
	pos, err := c.IndexOfKey(key)
	if err != nil {
		return false, err
	}
	if pos < 0 {
		return false, nil
	}
	return true, c.Delete(pos)
}

// Shift removes the oldest amount records. Removing everything is a Clear.
func (c *Collection[T]) Shift(amount int) {
	if amount <= 0 {
		return
	}
	if amount >= len(c.entries) {
		c.Clear()
		return
	}

	removed := slices.Clone(c.entries[:amount])
	c.entries = slices.Delete(c.entries, 0, amount)
	c.shiftOffset -= amount
	if c.Keyed() {
		for _, e := range removed {
			delete(c.keyIndex, e.key)
		}
	}

	c.metrics.Mutation("shift")
	c.broadcast(mutation[T]{kind: mutationShift, removed: removed, index: 0})
}

// Clear removes every record and rebuilds every view.
func (c *Collection[T]) Clear() {
	c.entries = nil
	c.shiftOffset = 0
	if c.Keyed() {
		c.keyIndex = make(map[ir.IRValue]int)
	}

	c.metrics.Mutation("clear")
	for _, v := range c.views {
		v.rebuild("clear")
	}
}

// Upsert updates the record sharing value's key in place and returns true,
// or appends value and returns false.
func (c *Collection[T]) Upsert(value T) (bool, error) {
	if !c.Keyed() {
		return false, newKeyNotConfigured("upsert")
	}
	key, err := c.extractKey(value)
	if err != nil {
		return false, err
	}
	if pos, ok := c.position(key); ok {
		return true, c.Update(pos, value)
	}
	return false, c.Append(value)
}

// IndexOfKey returns the collection position of key, or -1 if absent. O(1).
func (c *Collection[T]) IndexOfKey(key any) (int, error) {
	if !c.Keyed() {
		return -1, newKeyNotConfigured("index of key")
	}
	k, err := NormalizeKey(key)
	if err != nil {
		return -1, err
	}
	if pos, ok := c.position(k); ok {
		return pos, nil
	}
	return -1, nil
}

// Has reports whether a record with key exists.
func (c *Collection[T]) Has(key any) (bool, error) {
	pos, err := c.IndexOfKey(key)
	return pos >= 0, err
}

// GetByKey returns the record with key.
func (c *Collection[T]) GetByKey(key any) (T, bool, error) {
	var zero T
	pos, err := c.IndexOfKey(key)
	if err != nil || pos < 0 {
		return zero, false, err
	}
	return c.entries[pos].value, true, nil
}

// Keys returns every key in insertion order.
func (c *Collection[T]) Keys() ([]ir.IRValue, error) {
	if !c.Keyed() {
		return nil, newKeyNotConfigured("keys")
	}
	keys := make([]ir.IRValue, len(c.entries))
	for i, e := range c.entries {
		keys[i] = e.key
	}
	return keys, nil
}

// Entries returns every (key, value) pair in insertion order.
func (c *Collection[T]) Entries() ([]KeyedRecord[T], error) {
	if !c.Keyed() {
		return nil, newKeyNotConfigured("entries")
	}
	out := make([]KeyedRecord[T], len(c.entries))
	for i, e := range c.entries {
		out[i] = KeyedRecord[T]{Key: e.key, Value: e.value}
	}
	return out, nil
}

// Serialize returns the raw record values in insertion order. No view
// state is included.
func (c *Collection[T]) Serialize() []T {
	out := make([]T, len(c.entries))
	for i, e := range c.entries {
		out[i] = e.value
	}
	return out
}

// Deserialize replaces the contents with values, appended in order.
// Keys are validated up front, so a bad input leaves the collection untouched.
func (c *Collection[T]) Deserialize(values []T) error {
	if c.Keyed() {
		seen := make(map[ir.IRValue]int, len(values))
		for i, v := range values {
			k, err := c.extractKey(v)
			if err != nil {
				return err
			}
			if first, dup := seen[k]; dup {
				return newDuplicateKey(k, first)
			}
			seen[k] = i
		}
	}

	c.Clear()
	for _, v := range values {
		if err := c.Append(v); err != nil {
			return err
		}
	}
	return nil
}

// Fork attaches a new view with its own configuration, built from the
// current records. An empty id is generated.
func (c *Collection[T]) Fork(id string) (*View[T], error) {
	if id == "" {
		id = c.idGen.Generate()
	}
	if _, exists := c.View(id); exists {
		return nil, newDuplicateView(id)
	}

	v := newView(c, id)
	c.views = append(c.views, v)
	c.logger.Debug("view forked", "view", id, "views", len(c.views))
	v.rebuild("fork")
	return v, nil
}

// Detach stops delivering mutations to v and reports whether it was attached.
// The default view is never detached. A detached view keeps its last output.
func (c *Collection[T]) Detach(v *View[T]) bool {
	if v == c.defaultView {
		return false
	}
	i := slices.Index(c.views, v)
	if i < 0 {
		return false
	}
	c.views = slices.Delete(c.views, i, i+1)
	c.logger.Debug("view detached", "view", v.id, "views", len(c.views))
	return true
}

func (c *Collection[T]) broadcast(m mutation[T]) {
	for _, v := range c.views {
		v.processEvent(m)
	}
}

func (c *Collection[T]) extractKey(value T) (ir.IRValue, error) {
	return NormalizeKey(c.keyOf(value))
}

// position resolves a key to its current collection position.
func (c *Collection[T]) position(key ir.IRValue) (int, bool) {
	stored, ok := c.keyIndex[key]
	if !ok {
		return 0, false
	}
	return stored + c.shiftOffset, true
}
