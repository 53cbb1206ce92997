package listview

import (
	"cmp"
	"slices"
	"strings"
	"time"
)

// Apply runs the local pipeline: free-text search, then every declared
// filter (AND across dimensions), then a stable sort. The input slice is not
// modified.
func Apply(records []Record, state State, spec *Spec, now time.Time) []Record {
	term := state.TrimmedSearch()
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if !MatchSearch(r, spec.SearchFields, term) {
			continue
		}
		if !matchFilters(r, state, spec, now) {
			continue
		}
		out = append(out, r)
	}
	if state.Sort != nil {
		SortRecords(out, *state.Sort)
	}
	return out
}

func matchFilters(r Record, state State, spec *Spec, now time.Time) bool {
	for _, def := range spec.Filters {
		value, _ := state.Filter(spec, def.Key)
		if !Matches(r, def.FieldName(), value, now) {
			return false
		}
	}
	return true
}

// SortRecords sorts in place, keeping the original order of ties. Missing
// values sort before present ones in ascending order.
func SortRecords(records []Record, s Sort) {
	slices.SortStableFunc(records, func(a, b Record) int {
		c := compareField(a, b, s.Field)
		if s.Descending {
			return -c
		}
		return c
	})
}

func compareField(a, b Record, field string) int {
	av, aok := a.Field(field)
	bv, bok := b.Field(field)
	aok = aok && av != nil
	bok = bok && bv != nil
	switch {
	case !aok && !bok:
		return 0
	case !aok:
		return -1
	case !bok:
		return 1
	}
	if at, ok := av.(time.Time); ok {
		if bt, ok := bv.(time.Time); ok {
			return at.Compare(bt)
		}
	}
	if af, ok := toFloat(av); ok {
		if bf, ok := toFloat(bv); ok {
			return cmp.Compare(af, bf)
		}
	}
	if ab, ok := av.(bool); ok {
		if bb, ok := bv.(bool); ok {
			switch {
			case ab == bb:
				return 0
			case !ab:
				return -1
			default:
				return 1
			}
		}
	}
	return strings.Compare(strings.ToLower(stringify(av)), strings.ToLower(stringify(bv)))
}

// Paginate slices one page out of rows. Out-of-range pages are empty.
func Paginate(rows []Record, p Pagination) []Record {
	if p.PageSize <= 0 {
		return nil
	}
	start := p.Offset()
	if start >= len(rows) || start < 0 {
		return []Record{}
	}
	end := min(start+p.PageSize, len(rows))
	return rows[start:end]
}

// PageCount returns the number of pages needed for total rows.
func PageCount(total, size int) int {
	if total <= 0 || size <= 0 {
		return 0
	}
	return (total + size - 1) / size
}
