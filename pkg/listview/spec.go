package listview

import (
	"errors"
	"fmt"
	"slices"
)

// DefaultPageSizes is the page-size allow-list used when a view declares none.
var DefaultPageSizes = []int{10, 20, 30, 50, 100}

const (
	DefaultSearchKey      = "search"
	DefaultTimestampField = "timestamp"
)

// MultiValuePolicy controls how a membership filter with several selected
// values is sent to a remote source.
type MultiValuePolicy int

const (
	// MultiOmit sends only single selections; zero or many are left out of the request.
	MultiOmit MultiValuePolicy = iota
	// MultiJoin sends every selection comma-joined.
	MultiJoin
)

// FilterDef declares one filter dimension of a view.
type FilterDef struct {
	Key     string      // address-bar key and map key in State.Filters
	Kind    FilterKind  // predicate family
	Field   string      // record field tested; defaults to Key
	Label   string      // human label for summaries; defaults to Key
	Param   string      // remote request param; defaults to Field
	Default FilterValue // value when absent; defaults to the kind's no-constraint value
	Multi   MultiValuePolicy
	Options []string // known membership values, informational
}

// FieldName is the record field the filter tests.
func (d FilterDef) FieldName() string {
	if d.Field != "" {
		return d.Field
	}
	return d.Key
}

// ParamName is the remote request param the filter is sent as.
func (d FilterDef) ParamName() string {
	if d.Param != "" {
		return d.Param
	}
	return d.FieldName()
}

// DisplayLabel is the human label used in summaries.
func (d FilterDef) DisplayLabel() string {
	if d.Label != "" {
		return d.Label
	}
	return d.Key
}

// DefaultValue is the value that applies when the filter is absent.
func (d FilterDef) DefaultValue() FilterValue {
	if d.Default != nil {
		return d.Default
	}
	return zeroValue(d.Kind)
}

// Spec is the static declaration of a list view. It must not be modified
// after a view is mounted on it.
type Spec struct {
	Name            string
	Filters         []FilterDef
	SearchFields    []string
	SortFields      []string // empty allows any field
	PageSizes       []int
	DefaultPageSize int
	SearchKey       string // address-bar key for free text
	SearchParam     string // request param for free text
}

// Validate checks the declaration and fills defaults in place.
func (s *Spec) Validate() error {
	if s.Name == "" {
		return errors.New("spec: name is required")
	}
	if len(s.PageSizes) == 0 {
		s.PageSizes = slices.Clone(DefaultPageSizes)
	}
	for _, size := range s.PageSizes {
		if size <= 0 {
			return fmt.Errorf("spec %s: page size %d must be positive", s.Name, size)
		}
	}
	if s.DefaultPageSize == 0 {
		s.DefaultPageSize = s.PageSizes[0]
	}
	if !slices.Contains(s.PageSizes, s.DefaultPageSize) {
		return fmt.Errorf("spec %s: default page size %d not in allow-list", s.Name, s.DefaultPageSize)
	}
	if s.SearchKey == "" {
		s.SearchKey = DefaultSearchKey
	}
	if s.SearchParam == "" {
		s.SearchParam = DefaultSearchKey
	}

	reserved := map[string]bool{s.SearchKey: true, KeySortBy: true, KeySortOrder: true, KeyPage: true, KeyLimit: true}
	seen := make(map[string]bool, len(s.Filters))
	for i := range s.Filters {
		d := &s.Filters[i]
		if d.Key == "" {
			return fmt.Errorf("spec %s: filter %d has no key", s.Name, i)
		}
		if reserved[d.Key] {
			return fmt.Errorf("spec %s: filter key %q is reserved", s.Name, d.Key)
		}
		if seen[d.Key] {
			return fmt.Errorf("spec %s: duplicate filter key %q", s.Name, d.Key)
		}
		seen[d.Key] = true
		if zeroValue(d.Kind) == nil {
			return fmt.Errorf("spec %s: filter %q has unknown kind", s.Name, d.Key)
		}
		if d.Default != nil && d.Default.Kind() != d.Kind {
			return fmt.Errorf("spec %s: filter %q default is %s, want %s", s.Name, d.Key, d.Default.Kind(), d.Kind)
		}
	}
	return nil
}

// Filter looks up a declared filter.
func (s *Spec) Filter(key string) (FilterDef, bool) {
	for _, d := range s.Filters {
		if d.Key == key {
			return d, true
		}
	}
	return FilterDef{}, false
}

// Sortable reports whether field may be used as a sort column.
func (s *Spec) Sortable(field string) bool {
	if field == "" {
		return false
	}
	return len(s.SortFields) == 0 || slices.Contains(s.SortFields, field)
}

// AllowsPageSize reports whether size is in the allow-list.
func (s *Spec) AllowsPageSize(size int) bool {
	return slices.Contains(s.pageSizes(), size)
}

func (s *Spec) pageSizes() []int {
	if len(s.PageSizes) == 0 {
		return DefaultPageSizes
	}
	return s.PageSizes
}

func (s *Spec) defaultPageSize() int {
	if s.DefaultPageSize > 0 {
		return s.DefaultPageSize
	}
	return s.pageSizes()[0]
}

func (s *Spec) searchKey() string {
	if s.SearchKey != "" {
		return s.SearchKey
	}
	return DefaultSearchKey
}

func (s *Spec) searchParam() string {
	if s.SearchParam != "" {
		return s.SearchParam
	}
	return DefaultSearchKey
}
