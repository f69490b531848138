package engine

import "sync/atomic"

// Clock issues the strictly increasing insertion ids stamped on records.
//
// Ids order records with equal sort keys, so a view's ordering of ties is
// always insertion order regardless of how its output was built. Clear and
// Deserialize keep the clock running: an id is never reused for the
// lifetime of a collection.
type Clock struct {
	last atomic.Uint64
}

// NewClock creates a clock whose first id is 1.
func NewClock() *Clock {
	return &Clock{}
}

// Next returns the next id.
func (c *Clock) Next() uint64 {
	return c.last.Add(1)
}

// Current returns the last id issued, or 0 if none.
func (c *Clock) Current() uint64 {
	return c.last.Load()
}
