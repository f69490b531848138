package harness

// TraceEvent is one notification emitted during a scenario step.
type TraceEvent struct {
	// Seq orders events across all views, starting at 1.
	Seq int64 `json:"seq"`

	// Step is the index of the step that caused the event.
	Step int `json:"step"`

	// Op is that step's op.
	Op string `json:"op"`

	// View is the id of the view that emitted the event.
	View string `json:"view"`

	// Kind is the notification kind (shift, updated, reset, window_change).
	Kind string `json:"kind"`

	// Event is the compact rendering, e.g. "shift(0,-1) n=4 in".
	Event string `json:"event"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every step behaved as expected and every assertion held.
	Pass bool `json:"pass"`

	// Trace contains every notification in delivery order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains step and assertion failures.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Outputs maps each attached view id to its final output.
	Outputs map[string][]map[string]any `json:"outputs"`

	// Size is the final collection length.
	Size int `json:"size"`

	// Metrics holds the non-zero counters recorded during the run.
	Metrics map[string]float64 `json:"metrics,omitempty"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:    true,
		Trace:   []TraceEvent{},
		Errors:  []string{},
		Outputs: make(map[string][]map[string]any),
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends a notification to the trace.
func (r *Result) AddTrace(step int, op, view, kind, event string) {
	r.Trace = append(r.Trace, TraceEvent{
		Seq:   int64(len(r.Trace) + 1),
		Step:  step,
		Op:    op,
		View:  view,
		Kind:  kind,
		Event: event,
	})
}
