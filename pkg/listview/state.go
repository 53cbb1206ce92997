package listview

import (
	"maps"
	"strings"
)

// Sort is the single active sort column.
type Sort struct {
	Field      string `json:"field"`
	Descending bool   `json:"descending"`
}

// Order returns "asc" or "desc".
func (s Sort) Order() string {
	if s.Descending {
		return orderDesc
	}
	return orderAsc
}

// Pagination is a 0-based page index and a page size.
type Pagination struct {
	PageIndex int `json:"page_index"`
	PageSize  int `json:"page_size"`
}

// Offset returns the index of the first row of the page.
func (p Pagination) Offset() int {
	return p.PageIndex * p.PageSize
}

// State is everything a list view needs to decide which rows are visible.
// Filters holds only non-default values; a missing key means the
// declared default applies.
type State struct {
	Search     string                 `json:"search"`
	Filters    map[string]FilterValue `json:"-"`
	Sort       *Sort                  `json:"sort,omitempty"`
	Pagination Pagination             `json:"pagination"`
}

// DefaultState returns the state of a freshly mounted view.
func DefaultState(spec *Spec) State {
	return State{
		Filters:    map[string]FilterValue{},
		Pagination: Pagination{PageIndex: 0, PageSize: spec.defaultPageSize()},
	}
}

// TrimmedSearch is the search term used for matching and requests.
func (s State) TrimmedSearch() string {
	return strings.TrimSpace(s.Search)
}

// Clone returns a deep copy safe to hand to another goroutine.
func (s State) Clone() State {
	out := s
	out.Filters = maps.Clone(s.Filters)
	if out.Filters == nil {
		out.Filters = map[string]FilterValue{}
	}
	if s.Sort != nil {
		srt := *s.Sort
		out.Sort = &srt
	}
	return out
}

// canonical drops undeclared keys, values of the wrong kind and values equal
// to the declared default.
func (s State) canonical(spec *Spec) State {
	out := s.Clone()
	for k, v := range out.Filters {
		def, ok := spec.Filter(k)
		if !ok || v == nil {
			delete(out.Filters, k)
			continue
		}
		nv, ok := normalizeValue(def, v)
		if !ok || filterValuesEqual(nv, def.DefaultValue()) {
			delete(out.Filters, k)
			continue
		}
		out.Filters[k] = nv
	}
	if out.Sort != nil && !spec.Sortable(out.Sort.Field) {
		out.Sort = nil
	}
	return out
}

// Filter returns the effective value of a declared filter, falling back to
// its default.
func (s State) Filter(spec *Spec, key string) (FilterValue, bool) {
	def, ok := spec.Filter(key)
	if !ok {
		return nil, false
	}
	if v, ok := s.Filters[key]; ok {
		return v, true
	}
	return def.DefaultValue(), true
}

// Equal compares two states exactly, including the untrimmed search.
func (s State) Equal(o State) bool {
	return s.Search == o.Search && s.sameQuery(o) && s.Pagination == o.Pagination
}

// Equivalent compares two states the way list views observe them: search is
// compared trimmed.
func (s State) Equivalent(o State) bool {
	return s.TrimmedSearch() == o.TrimmedSearch() && s.sameQuery(o) && s.Pagination == o.Pagination
}

func (s State) sameQuery(o State) bool {
	if len(s.Filters) != len(o.Filters) {
		return false
	}
	for k, v := range s.Filters {
		ov, ok := o.Filters[k]
		if !ok || !filterValuesEqual(v, ov) {
			return false
		}
	}
	return sortEqual(s.Sort, o.Sort)
}

func sortEqual(a, b *Sort) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
