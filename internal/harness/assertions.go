package harness

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/liveview/internal/engine"
	"github.com/roach88/liveview/internal/ir"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	// Header with assertion type
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)

	// Expected vs Actual (most important info)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] step %d %s %s: %s\n", event.Seq, event.Step, event.Op, event.View, event.Event)
		}
	}

	return buf.String()
}

// AssertionContext provides the final collection state to assertions.
type AssertionContext struct {
	Collection *engine.Collection[ir.IRObject]
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errs []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertOutput:
			err = assertOutput(actx, a)
		case AssertNotifications:
			err = assertNotifications(result.Trace, a)
		case AssertNotificationCount:
			err = assertNotificationCount(result.Trace, a)
		case AssertSize:
			err = assertSize(actx, a)
		case AssertKeysConsistent:
			err = assertKeysConsistent(actx)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return errs
}

func viewID(id string) string {
	if id == "" {
		return engine.DefaultViewID
	}
	return id
}

// assertOutput compares a view's output with whole records, or with the
// values of one field.
func assertOutput(actx *AssertionContext, a Assertion) error {
	id := viewID(a.View)
	v, ok := actx.Collection.View(id)
	if !ok {
		return &AssertionError{
			Type:     AssertOutput,
			Expected: fmt.Sprintf("view %q attached", id),
			Actual:   "not attached",
		}
	}
	output := v.Output()
	if a.Windowed {
		output = v.WindowOutput()
	}

	var actual, expected ir.IRArray
	if a.Field != "" {
		for _, r := range output {
			actual = append(actual, r.Field(a.Field))
		}
		for _, raw := range a.Values {
			val, err := ir.FromGo(raw)
			if err != nil {
				return fmt.Errorf("output: expected value: %w", err)
			}
			expected = append(expected, val)
		}
	} else {
		for _, r := range output {
			actual = append(actual, r)
		}
		for _, raw := range a.Records {
			rec, err := convertRecord(raw)
			if err != nil {
				return fmt.Errorf("output: expected record: %w", err)
			}
			expected = append(expected, rec)
		}
	}

	if !ir.Equal(actual, expected) {
		return &AssertionError{
			Type:     AssertOutput,
			Expected: formatValues(expected),
			Actual:   formatValues(actual),
		}
	}
	return nil
}

// assertNotifications compares a view's rendered notifications, optionally
// limited to one step, with the expected sequence.
func assertNotifications(trace []TraceEvent, a Assertion) error {
	id := viewID(a.View)
	actual := []string{}
	for _, event := range trace {
		if event.View != id {
			continue
		}
		if a.Step != nil && event.Step != *a.Step {
			continue
		}
		actual = append(actual, event.Event)
	}
	expected := a.Events
	if expected == nil {
		expected = []string{}
	}

	if !slices.Equal(actual, expected) {
		scope := "all steps"
		if a.Step != nil {
			scope = fmt.Sprintf("step %d", *a.Step)
		}
		return &AssertionError{
			Type:     AssertNotifications,
			Expected: fmt.Sprintf("%s (%s, view %s)", formatEvents(expected), scope, id),
			Actual:   formatEvents(actual),
			Trace:    trace,
		}
	}
	return nil
}

// assertNotificationCount checks how many notifications of a kind a view emitted.
func assertNotificationCount(trace []TraceEvent, a Assertion) error {
	id := viewID(a.View)
	count := 0
	for _, event := range trace {
		if event.View == id && event.Kind == a.Kind {
			count++
		}
	}

	if count != a.Count {
		return &AssertionError{
			Type:     AssertNotificationCount,
			Expected: fmt.Sprintf("%d %s notifications on view %s", a.Count, a.Kind, id),
			Actual:   fmt.Sprintf("%d", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertSize checks the collection length.
func assertSize(actx *AssertionContext, a Assertion) error {
	if n := actx.Collection.Len(); n != a.Count {
		return &AssertionError{
			Type:     AssertSize,
			Expected: fmt.Sprintf("%d records", a.Count),
			Actual:   fmt.Sprintf("%d records", n),
		}
	}
	return nil
}

// assertKeysConsistent checks that every key resolves to the position of
// the record holding it.
func assertKeysConsistent(actx *AssertionContext) error {
	keys, err := actx.Collection.Keys()
	if err != nil {
		return err
	}
	for pos, k := range keys {
		idx, err := actx.Collection.IndexOfKey(k)
		if err != nil {
			return err
		}
		if idx != pos {
			return &AssertionError{
				Type:     AssertKeysConsistent,
				Expected: fmt.Sprintf("key %s at index %d", formatValue(k), pos),
				Actual:   fmt.Sprintf("index %d", idx),
			}
		}
	}
	return nil
}

func formatValue(v ir.IRValue) string {
	data, err := ir.MarshalIRValue(v)
	if err != nil {
		return fmt.Sprintf("<%v>", err)
	}
	return string(data)
}

func formatValues(vals ir.IRArray) string {
	if vals == nil {
		return "[]"
	}
	return formatValue(vals)
}

func formatEvents(events []string) string {
	return "[" + strings.Join(events, ", ") + "]"
}
