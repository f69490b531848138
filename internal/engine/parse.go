package engine

import (
	"fmt"

	"golang.org/x/text/language"

	"github.com/roach88/liveview/internal/ir"
)

// ParseSort builds a record sort from its textual configuration, as given
// on the command line or in a scenario. An empty field means no sorting. A
// non-empty collate is a BCP 47 tag selecting collated string ordering.
func ParseSort(field, collate string) (SortBy[ir.IRObject], error) {
	switch {
	case field == "":
		return SortNone[ir.IRObject](), nil
	case collate != "":
		tag, err := language.Parse(collate)
		if err != nil {
			return SortBy[ir.IRObject]{}, fmt.Errorf("collate %q: %w", collate, err)
		}
		return SortByCollatedField[ir.IRObject](field, tag), nil
	default:
		return SortByField[ir.IRObject](field), nil
	}
}

// ParseFilter builds a CUE record filter. An empty expression means no filtering.
func ParseFilter(expr string) (Filter[ir.IRObject], error) {
	if expr == "" {
		return FilterNone[ir.IRObject](), nil
	}
	return FilterCUE(expr)
}
