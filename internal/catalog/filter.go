package catalog

import (
	"strings"

	"golang.org/x/text/cases"
)

// AllCategories is the category value that disables category filtering.
const AllCategories = "all"

// FilterState is the current category and search term driving visibility.
type FilterState struct {
	Category   string
	SearchTerm string
}

// DefaultFilterState shows every product.
func DefaultFilterState() FilterState {
	return FilterState{Category: AllCategories}
}

// Filter returns the products matching state, in their original order.
//
// Category matching is exact and case-sensitive; the search term matches as a
// case-insensitive substring of the product name and is used as given, without
// trimming. The result is never nil.
func Filter(products []Product, state FilterState) []Product {
	out := make([]Product, 0, len(products))
	// Casers hold state and are not safe for concurrent use.
	fold := cases.Fold()
	term := fold.String(state.SearchTerm)
	for _, p := range products {
		if state.Category != AllCategories && p.Type != state.Category {
			continue
		}
		if term != "" && !strings.Contains(fold.String(p.Name), term) {
			continue
		}
		out = append(out, p)
	}
	return out
}
