package engine

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/roach88/liveview/internal/ir"
)

// Error is returned (or, for CORRUPT_INDEX_STATE, panicked) by collection
// and view operations.
//
// Every code is a caller or programmer error. None is transient, so none is
// retried. A failing mutation returns before changing any state.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// View identifies the affected view, when one is involved.
	View string

	// Details contains additional context (index, size, key).
	Details map[string]string
}

// ErrorCode categorizes engine errors.
type ErrorCode string

const (
	// ErrCodeKeyNotConfigured indicates a key operation on an unkeyed collection.
	ErrCodeKeyNotConfigured ErrorCode = "KEY_NOT_CONFIGURED"

	// ErrCodeInvalidKeyValue indicates a key that is empty or not a string/integer.
	ErrCodeInvalidKeyValue ErrorCode = "INVALID_KEY_VALUE"

	// ErrCodeDuplicateKey indicates a mutation would give two records one key.
	ErrCodeDuplicateKey ErrorCode = "DUPLICATE_KEY"

	// ErrCodeIndexOutOfRange indicates an index outside [0, size).
	ErrCodeIndexOutOfRange ErrorCode = "INDEX_OUT_OF_RANGE"

	// ErrCodeCorruptIndexState indicates a view lost track of an entry.
	ErrCodeCorruptIndexState ErrorCode = "CORRUPT_INDEX_STATE"

	// ErrCodeDuplicateView indicates a fork with an id already attached.
	ErrCodeDuplicateView ErrorCode = "DUPLICATE_VIEW"
)

// Error implements the error interface.
func (e *Error) Error() string {
	if e.View != "" {
		return fmt.Sprintf("%s: %s (view=%s)", e.Code, e.Message, e.View)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// CodeOf returns the engine error code carried by err, or "" if err is not
// (and does not wrap) an *Error.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsKeyNotConfigured reports whether err is a KEY_NOT_CONFIGURED error.
func IsKeyNotConfigured(err error) bool { return CodeOf(err) == ErrCodeKeyNotConfigured }

// IsInvalidKeyValue reports whether err is an INVALID_KEY_VALUE error.
func IsInvalidKeyValue(err error) bool { return CodeOf(err) == ErrCodeInvalidKeyValue }

// IsDuplicateKey reports whether err is a DUPLICATE_KEY error.
func IsDuplicateKey(err error) bool { return CodeOf(err) == ErrCodeDuplicateKey }

// IsIndexOutOfRange reports whether err is an INDEX_OUT_OF_RANGE error.
func IsIndexOutOfRange(err error) bool { return CodeOf(err) == ErrCodeIndexOutOfRange }

// IsCorruptIndexState reports whether err is a CORRUPT_INDEX_STATE error.
func IsCorruptIndexState(err error) bool { return CodeOf(err) == ErrCodeCorruptIndexState }

func newKeyNotConfigured(op string) *Error {
	return &Error{
		Code:    ErrCodeKeyNotConfigured,
		Message: op + " requires a collection created with a key",
	}
}

func newInvalidKeyValue(raw any) *Error {
	return &Error{
		Code:    ErrCodeInvalidKeyValue,
		Message: fmt.Sprintf("key must be a non-empty string or an integer, got %T (%v)", raw, raw),
	}
}

func newDuplicateKey(key ir.IRValue, existing int) *Error {
	return &Error{
		Code:    ErrCodeDuplicateKey,
		Message: fmt.Sprintf("key %s already exists", keyString(key)),
		Details: map[string]string{
			"key":   keyString(key),
			"index": strconv.Itoa(existing),
		},
	}
}

func newIndexOutOfRange(index, size int) *Error {
	return &Error{
		Code:    ErrCodeIndexOutOfRange,
		Message: fmt.Sprintf("index %d out of range [0, %d)", index, size),
		Details: map[string]string{
			"index": strconv.Itoa(index),
			"size":  strconv.Itoa(size),
		},
	}
}

func newCorruptIndexState(view string, id uint64) *Error {
	return &Error{
		Code:    ErrCodeCorruptIndexState,
		Message: fmt.Sprintf("entry %d not found in view output", id),
		View:    view,
		Details: map[string]string{
			"entry_id": strconv.FormatUint(id, 10),
		},
	}
}

func newDuplicateView(id string) *Error {
	return &Error{
		Code:    ErrCodeDuplicateView,
		Message: "a view with this id is already attached",
		View:    id,
	}
}
