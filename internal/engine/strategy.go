package engine

import (
	"sync/atomic"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/roach88/liveview/internal/ir"
)

// anonymousStrategies hands out identity tokens to unnamed strategies so
// that two separately built unnamed strategies never compare as the same.
var anonymousStrategies atomic.Uint64

func strategyToken(name string) uint64 {
	if name != "" {
		return 0
	}
	return anonymousStrategies.Add(1)
}

type sortKind int

const (
	sortNone sortKind = iota
	sortFunc
	sortField
	sortCollatedField
)

// SortBy is a view's sort strategy.
//
// Strategies are compared by kind and name, never by function identity:
// setting a strategy with the same kind and name as the current one is a
// no-op. A caller that changes what a named function computes must pick a
// new name or call View.Rebuild.
type SortBy[T any] struct {
	kind  sortKind
	name  string
	token uint64
	key   func(T) ir.IRValue
}

// SortNone keeps a view in insertion order.
func SortNone[T any]() SortBy[T] {
	return SortBy[T]{}
}

// SortByFunc sorts by the key fn returns. name identifies the strategy; an
// empty name makes this value unique, so only this exact value is a no-op.
func SortByFunc[T any](name string, fn func(T) ir.IRValue) SortBy[T] {
	if fn == nil {
		return SortNone[T]()
	}
	return SortBy[T]{kind: sortFunc, name: name, token: strategyToken(name), key: fn}
}

// SortByField sorts by a record field using ir.Compare.
func SortByField[T ir.Fielder](field string) SortBy[T] {
	return SortBy[T]{
		kind: sortField,
		name: field,
		key: func(v T) ir.IRValue {
			return v.Field(field)
		},
	}
}

// SortByCollatedField sorts by a record field, ordering string values with
// the collation rules of lang (case and accent aware). Non-string values
// keep their ir.Compare order and sort before all strings.
func SortByCollatedField[T ir.Fielder](field string, lang language.Tag) SortBy[T] {
	c := collate.New(lang)
	buf := &collate.Buffer{}
	return SortBy[T]{
		kind: sortCollatedField,
		name: field + "@" + lang.String(),
		key: func(v T) ir.IRValue {
			s, ok := v.Field(field).(ir.IRString)
			if !ok {
				return v.Field(field)
			}
			key := ir.IRString(c.KeyFromString(buf, string(s)))
			buf.Reset()
			return key
		},
	}
}

// IsSet reports whether the strategy orders the output.
func (s SortBy[T]) IsSet() bool {
	return s.kind != sortNone
}

// Name returns the strategy's identity name ("" for SortNone).
func (s SortBy[T]) Name() string {
	return s.name
}

// Same reports whether s and o are the same configuration.
func (s SortBy[T]) Same(o SortBy[T]) bool {
	return s.kind == o.kind && s.name == o.name && s.token == o.token
}

// Key returns the sort key of v.
func (s SortBy[T]) Key(v T) ir.IRValue {
	if s.key == nil {
		return ir.IRNull{}
	}
	return s.key(v)
}

type filterKind int

const (
	filterNone filterKind = iota
	filterFunc
	filterFieldEquals
	filterCUE
)

// Filter is a view's filter strategy. Identity follows the same rules as SortBy.
type Filter[T any] struct {
	kind  filterKind
	name  string
	token uint64
	pred  func(T) bool
}

// FilterNone admits every record.
func FilterNone[T any]() Filter[T] {
	return Filter[T]{}
}

// FilterFunc admits records for which fn returns true.
func FilterFunc[T any](name string, fn func(T) bool) Filter[T] {
	if fn == nil {
		return FilterNone[T]()
	}
	return Filter[T]{kind: filterFunc, name: name, token: strategyToken(name), pred: fn}
}

// FilterFieldEquals admits records whose field equals value.
func FilterFieldEquals[T ir.Fielder](field string, value ir.IRValue) Filter[T] {
	encoded, err := ir.MarshalIRValue(value)
	if err != nil {
		encoded = []byte("?")
	}
	return Filter[T]{
		kind: filterFieldEquals,
		name: field + "=" + string(encoded),
		pred: func(v T) bool {
			return ir.Equal(v.Field(field), value)
		},
	}
}

// IsSet reports whether the strategy excludes anything.
func (f Filter[T]) IsSet() bool {
	return f.kind != filterNone
}

// Name returns the strategy's identity name ("" for FilterNone).
func (f Filter[T]) Name() string {
	return f.name
}

// Same reports whether f and o are the same configuration.
func (f Filter[T]) Same(o Filter[T]) bool {
	return f.kind == o.kind && f.name == o.name && f.token == o.token
}

// Match reports whether v passes the filter.
func (f Filter[T]) Match(v T) bool {
	if f.pred == nil {
		return true
	}
	return f.pred(v)
}
