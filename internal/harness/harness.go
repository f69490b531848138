package harness

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/liveview/internal/engine"
	"github.com/roach88/liveview/internal/ir"
	"github.com/roach88/liveview/internal/metrics"
	"github.com/roach88/liveview/internal/testutil"
)

// Harness is the scenario execution state.
type Harness struct {
	coll   *engine.Collection[ir.IRObject]
	result *Result
	logger *slog.Logger

	// step and op label notifications with the step that caused them.
	step int
	op   string
}

// Run executes a scenario and returns the result.
//
// Each scenario runs against a fresh collection. Step failures and
// assertion failures are reported in the Result; the returned error is
// reserved for scenarios that cannot be set up (bad seed records, bad
// view configuration).
//
// Execution flow:
// 1. Create the collection from scenario.Collection
// 2. Append seed records
// 3. Configure the default view and fork the others
// 4. Attach trace listeners to every view
// 5. Apply steps, checking expect_error and expect_result
// 6. Evaluate assertions and capture final outputs
func Run(scenario *Scenario) (*Result, error) {
	reg := prometheus.NewRegistry()
	h := &Harness{
		result: NewResult(),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)), // Suppress logs in tests
		step:   -1,
	}

	opts := []engine.Option{
		engine.WithLogger(h.logger),
		engine.WithMetrics(metrics.New(reg)),
		engine.WithViewIDGenerator(testutil.NewSequentialIDGenerator("fork")),
		engine.WithLimit(scenario.Collection.Limit),
	}
	if scenario.Collection.DropFactor > 0 {
		opts = append(opts, engine.WithDropFactor(scenario.Collection.DropFactor))
	}
	if scenario.Collection.Key != "" {
		h.coll = engine.NewKeyed(engine.KeyField(scenario.Collection.Key), opts...)
	} else {
		h.coll = engine.New[ir.IRObject](opts...)
	}

	for i, raw := range scenario.Records {
		rec, err := convertRecord(raw)
		if err != nil {
			return nil, fmt.Errorf("records[%d]: %w", i, err)
		}
		if err := h.coll.Append(rec); err != nil {
			return nil, fmt.Errorf("records[%d]: %w", i, err)
		}
	}

	for i, vc := range scenario.Views {
		if err := h.configureView(vc); err != nil {
			return nil, fmt.Errorf("views[%d]: %w", i, err)
		}
	}

	for _, v := range h.coll.Views() {
		h.watch(v)
	}

	for i, st := range scenario.Steps {
		h.runStep(i, st)
	}

	actx := &AssertionContext{Collection: h.coll}
	for _, errMsg := range EvaluateAssertions(h.result, scenario.Assertions, actx) {
		h.result.AddError(errMsg)
	}

	for _, v := range h.coll.Views() {
		h.result.Outputs[v.ID()] = recordsToGo(v.Output())
	}
	h.result.Size = h.coll.Len()

	summary, err := metrics.Summarize(reg)
	if err != nil {
		return nil, err
	}
	h.result.Metrics = summary

	return h.result, nil
}

func (h *Harness) configureView(vc ViewConfig) error {
	var v *engine.View[ir.IRObject]
	if vc.ID == engine.DefaultViewID {
		v = h.coll.Default()
	} else {
		forked, err := h.coll.Fork(vc.ID)
		if err != nil {
			return err
		}
		v = forked
	}

	sortBy, err := engine.ParseSort(vc.Sort, vc.Collate)
	if err != nil {
		return err
	}
	filter, err := engine.ParseFilter(vc.Filter)
	if err != nil {
		return err
	}
	v.SetSortBy(sortBy)
	v.SetFilter(filter)
	v.SetReversed(vc.Reverse)
	if len(vc.Window) == 2 {
		v.SetWindow(vc.Window[0], vc.Window[1])
	}

	h.logger.Info("view configured",
		"view", vc.ID,
		"sort", vc.Sort,
		"filter", vc.Filter,
		"reverse", vc.Reverse,
	)
	return nil
}

// watch traces every notification of v.
func (h *Harness) watch(v *engine.View[ir.IRObject]) {
	v.AddListener(func(n engine.Notification) {
		h.result.AddTrace(h.step, h.op, n.View, n.Kind.String(), testutil.Format(n))
	})
}

// runStep applies one step and records any mismatch with its expectations.
func (h *Harness) runStep(i int, st Step) {
	h.step, h.op = i, st.Op
	got, err := h.apply(st)

	switch {
	case st.ExpectError != "" && err == nil:
		h.result.AddError(fmt.Sprintf("steps[%d] %s: expected error %s, got success", i, st.Op, st.ExpectError))
	case st.ExpectError != "" && string(engine.CodeOf(err)) != st.ExpectError:
		h.result.AddError(fmt.Sprintf("steps[%d] %s: expected error %s, got %v", i, st.Op, st.ExpectError, err))
	case st.ExpectError == "" && err != nil:
		h.result.AddError(fmt.Sprintf("steps[%d] %s: %v", i, st.Op, err))
	}

	if st.ExpectResult != nil && err == nil {
		switch {
		case got == nil:
			h.result.AddError(fmt.Sprintf("steps[%d] %s: op returns no result", i, st.Op))
		case *got != *st.ExpectResult:
			h.result.AddError(fmt.Sprintf("steps[%d] %s: expected result %t, got %t", i, st.Op, *st.ExpectResult, *got))
		}
	}

	h.logger.Info("step completed",
		"step", i,
		"op", st.Op,
		"error", err,
	)
}

// apply performs one step. A CORRUPT_INDEX_STATE panic is returned as its error.
func (h *Harness) apply(st Step) (result *bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = e
				return
			}
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	switch st.Op {
	case OpAppend:
		rec, err := convertRecord(st.Record)
		if err != nil {
			return nil, err
		}
		return nil, h.coll.Append(rec)

	case OpUpdate:
		rec, err := convertRecord(st.Record)
		if err != nil {
			return nil, err
		}
		return nil, h.coll.Update(st.Index, rec)

	case OpUpsert:
		rec, err := convertRecord(st.Record)
		if err != nil {
			return nil, err
		}
		updated, err := h.coll.Upsert(rec)
		return &updated, err

	case OpDelete:
		return nil, h.coll.Delete(st.Index)

	case OpDeleteKey:
		deleted, err := h.coll.DeleteByKey(st.Key)
		return &deleted, err

	case OpShift:
		h.coll.Shift(st.Amount)
		return nil, nil

	case OpClear:
		h.coll.Clear()
		return nil, nil

	case OpRoundtrip:
		return nil, h.coll.Deserialize(h.coll.Serialize())

	case OpFork:
		v, err := h.coll.Fork(st.View)
		if err != nil {
			return nil, err
		}
		h.watch(v)
		return nil, nil
	}

	v, err := h.view(st.View)
	if err != nil {
		return nil, err
	}

	switch st.Op {
	case OpSetSort:
		sortBy, err := engine.ParseSort(st.Sort, st.Collate)
		if err != nil {
			return nil, err
		}
		v.SetSortBy(sortBy)
	case OpSetFilter:
		filter, err := engine.ParseFilter(st.Filter)
		if err != nil {
			return nil, err
		}
		v.SetFilter(filter)
	case OpSetReversed:
		v.SetReversed(st.Reverse)
	case OpSetWindow:
		v.SetWindow(st.Window[0], st.Window[1])
	case OpReset:
		v.Reset()
	case OpRebuild:
		v.Rebuild()
	case OpDetach:
		detached := h.coll.Detach(v)
		return &detached, nil
	default:
		return nil, fmt.Errorf("unknown op %q", st.Op)
	}
	return nil, nil
}

// view resolves an attached view id; empty means the default view.
func (h *Harness) view(id string) (*engine.View[ir.IRObject], error) {
	if id == "" {
		id = engine.DefaultViewID
	}
	v, ok := h.coll.View(id)
	if !ok {
		return nil, fmt.Errorf("view %q is not attached", id)
	}
	return v, nil
}

func recordsToGo(records []ir.IRObject) []map[string]any {
	out := make([]map[string]any, len(records))
	for i, r := range records {
		out[i] = ir.ToGo(r).(map[string]any)
	}
	return out
}

// convertRecord converts a YAML-parsed record to ir.IRObject.
func convertRecord(raw map[string]any) (ir.IRObject, error) {
	if raw == nil {
		return ir.IRObject{}, nil
	}

	result := make(ir.IRObject, len(raw))
	for key, val := range raw {
		irVal, err := convertToIRValue(val)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", key, err)
		}
		result[key] = irVal
	}
	return result, nil
}

// convertToIRValue converts a YAML-parsed value to an IRValue.
// Returns an error for null values since records must stay encodable as
// canonical JSON (snapshots and golden traces reject null).
func convertToIRValue(val any) (ir.IRValue, error) {
	if val == nil {
		return nil, fmt.Errorf("null values are forbidden in records")
	}

	switch v := val.(type) {
	case []any:
		arr := make(ir.IRArray, len(v))
		for i, elem := range v {
			irElem, err := convertToIRValue(elem)
			if err != nil {
				return nil, fmt.Errorf("array[%d]: %w", i, err)
			}
			arr[i] = irElem
		}
		return arr, nil
	case map[string]any:
		return convertRecord(v)
	default:
		// Scalars: YAML integers decode as int, integral floats are accepted,
		// fractional floats are forbidden.
		return ir.FromGo(v)
	}
}
