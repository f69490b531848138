package engine

import (
	"log/slog"
	"math"

	"github.com/roach88/liveview/internal/metrics"
)

// DefaultDropFactor is the fraction of the capacity evicted at once when an
// append finds the collection full.
const DefaultDropFactor = 0.1

type options struct {
	limit      int
	dropFactor float64
	logger     *slog.Logger
	metrics    *metrics.Collector
	idGen      IDGenerator
}

// Option configures a Collection.
type Option func(*options)

// WithLimit caps the number of records. Zero or negative means unlimited.
func WithLimit(limit int) Option {
	return func(o *options) {
		o.limit = limit
	}
}

// WithDropFactor sets the fraction of the limit evicted (oldest first) when
// an append finds the collection full. Values outside (0, 1] fall back to
// DefaultDropFactor.
func WithDropFactor(f float64) Option {
	return func(o *options) {
		o.dropFactor = f
	}
}

// WithLogger sets the logger used for evictions, rebuilds, and view lifecycle.
// Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithMetrics instruments the collection and all of its views.
func WithMetrics(m *metrics.Collector) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithViewIDGenerator sets the generator used by Fork("").
// Default: UUIDv7Generator.
func WithViewIDGenerator(g IDGenerator) Option {
	return func(o *options) {
		o.idGen = g
	}
}

func buildOptions(opts []Option) options {
	o := options{dropFactor: DefaultDropFactor}
	for _, opt := range opts {
		opt(&o)
	}
	if o.dropFactor <= 0 || o.dropFactor > 1 || math.IsNaN(o.dropFactor) {
		o.dropFactor = DefaultDropFactor
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.idGen == nil {
		o.idGen = UUIDv7Generator{}
	}
	return o
}
