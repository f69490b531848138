package engine

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/roach88/liveview/internal/ir"
)

// FilterCUE builds a filter from a CUE constraint such as
//
//	level: "error" | "warn"
//	size:  >10
//
// A record passes when it unifies with the constraint to a concrete value
// and unification adds nothing to it, i.e. every constrained field is
// present and satisfies its constraint. Fields the constraint does not
// mention are ignored.
func FilterCUE(expr string) (Filter[ir.IRObject], error) {
	ctx := cuecontext.New()
	constraint := ctx.CompileString(expr)
	if err := constraint.Err(); err != nil {
		return Filter[ir.IRObject]{}, fmt.Errorf("compile filter %q: %w", expr, err)
	}

	pred := func(r ir.IRObject) bool {
		record := ctx.Encode(ir.ToGo(r))
		if record.Err() != nil {
			return false
		}
		unified := constraint.Unify(record)
		if err := unified.Validate(cue.Concrete(true)); err != nil {
			return false
		}
		return unified.Equals(record)
	}

	return Filter[ir.IRObject]{kind: filterCUE, name: expr, pred: pred}, nil
}
