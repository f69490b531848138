package engine

import (
	"strconv"

	"github.com/roach88/liveview/internal/ir"
)

// KeyFunc extracts the unique key of a record. The result must normalize to
// a non-empty string or an integer (see NormalizeKey).
type KeyFunc[T any] func(T) any

// KeyField keys IRObject records by the named field.
func KeyField(name string) KeyFunc[ir.IRObject] {
	return func(r ir.IRObject) any {
		return r.Field(name)
	}
}

// NormalizeKey converts a raw key into its canonical form, ir.IRString or
// ir.IRInt. Strings must be non-empty; numbers must be integral. Anything
// else is an INVALID_KEY_VALUE error.
//
// The string "1" and the integer 1 are different keys.
func NormalizeKey(raw any) (ir.IRValue, error) {
	switch k := raw.(type) {
	case ir.IRString:
		if k == "" {
			return nil, newInvalidKeyValue(raw)
		}
		return k, nil
	case string:
		if k == "" {
			return nil, newInvalidKeyValue(raw)
		}
		return ir.IRString(k), nil
	case ir.IRInt:
		return k, nil
	case nil, ir.IRNull, ir.IRBool, bool, ir.IRArray, ir.IRObject:
		return nil, newInvalidKeyValue(raw)
	}

	v, err := ir.FromGo(raw)
	if err != nil {
		return nil, newInvalidKeyValue(raw)
	}
	if n, ok := v.(ir.IRInt); ok {
		return n, nil
	}
	return nil, newInvalidKeyValue(raw)
}

func keyString(k ir.IRValue) string {
	switch v := k.(type) {
	case ir.IRString:
		return strconv.Quote(string(v))
	case ir.IRInt:
		return strconv.FormatInt(int64(v), 10)
	default:
		return "<invalid>"
	}
}
