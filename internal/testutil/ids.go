package testutil

import (
	"fmt"
	"sync"
)

// FixedIDGenerator generates the same view id every time.
//
// Useful with a single Fork("") in golden tests. A second Fork("") on the
// same collection fails with DUPLICATE_VIEW.
//
// Implements engine.IDGenerator.
type FixedIDGenerator struct {
	id string
}

// NewFixedIDGenerator creates a fixed id generator. An empty id becomes
// "test-view-default".
func NewFixedIDGenerator(id string) *FixedIDGenerator {
	if id == "" {
		id = "test-view-default"
	}
	return &FixedIDGenerator{id: id}
}

// Generate returns the fixed id.
func (g *FixedIDGenerator) Generate() string {
	return g.id
}

// SequentialIDGenerator generates prefix-1, prefix-2, ...
//
// Thread-safety: safe for concurrent use.
type SequentialIDGenerator struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequentialIDGenerator creates a generator. An empty prefix becomes "view".
func NewSequentialIDGenerator(prefix string) *SequentialIDGenerator {
	if prefix == "" {
		prefix = "view"
	}
	return &SequentialIDGenerator{prefix: prefix}
}

// Generate returns the next id in sequence.
func (g *SequentialIDGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}
