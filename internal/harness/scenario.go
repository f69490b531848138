package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario defines a view engine scenario: a seeded collection, view
// configuration, a sequence of steps, and assertions on the outcome.
type Scenario struct {
	// Name uniquely identifies this scenario (and names its golden file).
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Collection configures the collection under test.
	Collection CollectionConfig `yaml:"collection"`

	// Records are appended before views are configured and before
	// listeners attach; they produce no trace events.
	Records []map[string]any `yaml:"records,omitempty"`

	// Views configures the default view (id "default") and forks the rest.
	Views []ViewConfig `yaml:"views,omitempty"`

	// Steps are applied in order; each one's notifications are traced.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final trace and state.
	Assertions []Assertion `yaml:"assertions"`
}

// CollectionConfig mirrors the collection constructor options.
type CollectionConfig struct {
	// Key is the record field records are unique by. Empty means unkeyed.
	Key string `yaml:"key,omitempty"`

	// Limit caps the collection size. Zero means unlimited.
	Limit int `yaml:"limit,omitempty"`

	// DropFactor is the fraction of Limit evicted at once (default 0.1).
	DropFactor float64 `yaml:"drop_factor,omitempty"`
}

// ViewConfig is the initial configuration of one view.
type ViewConfig struct {
	ID      string `yaml:"id"`
	Sort    string `yaml:"sort,omitempty"`
	Collate string `yaml:"collate,omitempty"`
	Reverse bool   `yaml:"reverse,omitempty"`
	Filter  string `yaml:"filter,omitempty"`
	Window  []int  `yaml:"window,omitempty"`
}

// Step is one operation against the collection or a view.
type Step struct {
	// Op selects the operation (see the Op constants).
	Op string `yaml:"op"`

	// View targets a view for view ops; defaults to "default".
	// For fork it is the new view's id (empty generates one).
	View string `yaml:"view,omitempty"`

	// Record is the value for append, update, and upsert.
	Record map[string]any `yaml:"record,omitempty"`

	// Index is the collection position for update and delete.
	Index int `yaml:"index,omitempty"`

	// Key is the key for delete_key.
	Key any `yaml:"key,omitempty"`

	// Amount is the record count for shift.
	Amount int `yaml:"amount,omitempty"`

	// Sort is the field for set_sort; empty removes sorting.
	Sort string `yaml:"sort,omitempty"`

	// Collate is a BCP 47 tag enabling collated string ordering for set_sort.
	Collate string `yaml:"collate,omitempty"`

	// Filter is a CUE constraint for set_filter; empty removes filtering.
	Filter string `yaml:"filter,omitempty"`

	// Reverse is the flag for set_reversed.
	Reverse bool `yaml:"reverse,omitempty"`

	// Window is [start, end] for set_window.
	Window []int `yaml:"window,omitempty"`

	// ExpectError is the error code the step must fail with
	// (e.g. DUPLICATE_KEY). Empty means the step must succeed.
	ExpectError string `yaml:"expect_error,omitempty"`

	// ExpectResult is the boolean delete_key or upsert must return.
	ExpectResult *bool `yaml:"expect_result,omitempty"`
}

// Step ops.
const (
	OpAppend      = "append"
	OpUpdate      = "update"
	OpDelete      = "delete"
	OpDeleteKey   = "delete_key"
	OpUpsert      = "upsert"
	OpShift       = "shift"
	OpClear       = "clear"
	OpSetSort     = "set_sort"
	OpSetFilter   = "set_filter"
	OpSetReversed = "set_reversed"
	OpSetWindow   = "set_window"
	OpReset       = "reset"
	OpRebuild     = "rebuild"
	OpFork        = "fork"
	OpDetach      = "detach"
	OpRoundtrip   = "roundtrip"
)

// Assertion validates the trace or final state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "output": View output equals Records, or its Field projection equals Values
	// - "notifications": View's events (for Step, if set) equal Events
	// - "notification_count": View emitted Count events of Kind
	// - "size": collection length equals Count
	// - "keys_consistent": every key maps to the record holding it
	Type string `yaml:"type"`

	// View is the view id; defaults to "default".
	View string `yaml:"view,omitempty"`

	// Windowed compares only the records inside the view window (output).
	Windowed bool `yaml:"windowed,omitempty"`

	// Field projects output records onto one field (output).
	Field string `yaml:"field,omitempty"`

	// Values are the expected projected values (output with Field).
	Values []any `yaml:"values,omitempty"`

	// Records are the expected whole records (output without Field).
	Records []map[string]any `yaml:"records,omitempty"`

	// Step restricts notifications to one step's events.
	Step *int `yaml:"step,omitempty"`

	// Events are the expected rendered notifications (notifications).
	Events []string `yaml:"events,omitempty"`

	// Kind is the notification kind to count (notification_count).
	Kind string `yaml:"kind,omitempty"`

	// Count is the expected count (notification_count, size).
	Count int `yaml:"count"`
}

// Assertion type constants.
const (
	AssertOutput            = "output"
	AssertNotifications     = "notifications"
	AssertNotificationCount = "notification_count"
	AssertSize              = "size"
	AssertKeysConsistent    = "keys_consistent"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Parse YAML with strict field validation (catches typos like "assertion:" vs "assertions:")
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Steps) == 0 && len(s.Assertions) == 0 {
		return fmt.Errorf("steps or assertions are required")
	}

	if s.Collection.DropFactor < 0 || s.Collection.DropFactor > 1 {
		return fmt.Errorf("collection.drop_factor must be in [0, 1]")
	}

	seen := make(map[string]bool)
	for i, v := range s.Views {
		if v.ID == "" {
			return fmt.Errorf("views[%d]: id is required", i)
		}
		if seen[v.ID] {
			return fmt.Errorf("views[%d]: duplicate id %q", i, v.ID)
		}
		seen[v.ID] = true
		if v.Window != nil && len(v.Window) != 2 {
			return fmt.Errorf("views[%d]: window must be [start, end]", i)
		}
	}

	for i, step := range s.Steps {
		if err := validateStep(i, &step); err != nil {
			return err
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

func validateStep(index int, st *Step) error {
	switch st.Op {
	case OpAppend, OpUpdate, OpUpsert:
		if st.Record == nil {
			return fmt.Errorf("steps[%d]: record is required for %s", index, st.Op)
		}
	case OpDeleteKey:
		if st.Key == nil {
			return fmt.Errorf("steps[%d]: key is required for delete_key", index)
		}
	case OpSetWindow:
		if len(st.Window) != 2 {
			return fmt.Errorf("steps[%d]: window must be [start, end]", index)
		}
	case OpDetach:
		if st.View == "" {
			return fmt.Errorf("steps[%d]: view is required for detach", index)
		}
	case OpDelete, OpShift, OpClear, OpSetSort, OpSetFilter, OpSetReversed,
		OpReset, OpRebuild, OpFork, OpRoundtrip:
	case "":
		return fmt.Errorf("steps[%d]: op is required", index)
	default:
		return fmt.Errorf("steps[%d]: unknown op %q", index, st.Op)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertOutput:
		if a.Field == "" && a.Values != nil {
			return fmt.Errorf("assertions[%d]: values require field for output", index)
		}
	case AssertNotifications:
	case AssertNotificationCount:
		if a.Kind == "" {
			return fmt.Errorf("assertions[%d]: kind is required for notification_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative", index)
		}
	case AssertSize:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative", index)
		}
	case AssertKeysConsistent:
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
