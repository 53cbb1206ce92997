package listview

import (
	"net/url"
	"strconv"
	"strings"
)

// Address-bar keys.
const (
	KeySortBy    = "sortBy"
	KeySortOrder = "sortOrder"
	KeyPage      = "page"
	KeyLimit     = "limit"
)

// Remote request params.
const (
	ParamPage      = "page"
	ParamLimit     = "limit"
	ParamSortBy    = "sort_by"
	ParamSortOrder = "sort_order"

	orderAsc  = "asc"
	orderDesc = "desc"
)

// ToRequestParams maps a state onto the flat params a paginated list
// endpoint understands. Pages are 1-based on the wire.
//
// Membership filters follow the backend convention of a single expected
// value: exactly one selection is sent as a scalar, zero or several are
// omitted unless the filter opts into MultiJoin.
func ToRequestParams(state State, spec *Spec) url.Values {
	v := url.Values{}
	v.Set(ParamPage, strconv.Itoa(state.Pagination.PageIndex+1))
	v.Set(ParamLimit, strconv.Itoa(state.Pagination.PageSize))
	if state.Sort != nil {
		v.Set(ParamSortBy, state.Sort.Field)
		v.Set(ParamSortOrder, state.Sort.Order())
	}
	if q := state.TrimmedSearch(); q != "" {
		v.Set(spec.searchParam(), q)
	}
	for _, def := range spec.Filters {
		value, ok := state.Filter(spec, def.Key)
		if !ok || value.IsZero() {
			continue
		}
		param := def.ParamName()
		switch fv := value.(type) {
		case Membership:
			switch {
			case len(fv) == 1:
				v.Set(param, fv[0])
			case def.Multi == MultiJoin:
				v.Set(param, strings.Join(fv, ","))
			}
		case Substring:
			v.Set(param, strings.TrimSpace(string(fv)))
		case Range:
			if fv.Min != nil {
				v.Set(param+"_min", formatNumber(*fv.Min))
			}
			if fv.Max != nil {
				v.Set(param+"_max", formatNumber(*fv.Max))
			}
		case Flag:
			v.Set(param, "true")
		case TimeWindow:
			v.Set(param, string(fv))
		}
	}
	return v
}

// DroppedSelections lists membership filters whose selection cannot be
// expressed in a remote request under MultiOmit.
func DroppedSelections(state State, spec *Spec) []string {
	var dropped []string
	for _, def := range spec.Filters {
		if def.Kind != KindMembership || def.Multi == MultiJoin {
			continue
		}
		if m, ok := state.Filters[def.Key].(Membership); ok && len(m) > 1 {
			dropped = append(dropped, def.Key)
		}
	}
	return dropped
}

// FromRequestParams is the inverse of ToRequestParams, for servers that
// accept the same contract. Unknown or malformed params fall back to
// defaults.
func FromRequestParams(values url.Values, spec *Spec) State {
	s := DefaultState(spec)
	s.Search = values.Get(spec.searchParam())
	s.Pagination = parsePagination(values.Get(ParamPage), values.Get(ParamLimit), spec)
	s.Sort = parseSort(values.Get(ParamSortBy), values.Get(ParamSortOrder), spec)

	for _, def := range spec.Filters {
		param := def.ParamName()
		var value FilterValue
		switch def.Kind {
		case KindRange:
			r, ok := parseBounds(values.Get(param+"_min"), values.Get(param+"_max"))
			if !ok {
				continue
			}
			value = r
		default:
			raw, ok := values[param]
			if !ok || len(raw) == 0 {
				continue
			}
			parsed, ok := parseFilterValue(def, raw[0])
			if !ok {
				continue
			}
			value = parsed
		}
		setCanonical(&s, def, value)
	}
	return s
}

// ToQueryString renders the non-default slices of state for the address
// bar. The output is deterministic: keys are sorted.
func ToQueryString(state State, spec *Spec) string {
	v := url.Values{}
	if q := state.TrimmedSearch(); q != "" {
		v.Set(spec.searchKey(), state.Search)
	}
	for _, def := range spec.Filters {
		value, ok := state.Filters[def.Key]
		if !ok || filterValuesEqual(value, def.DefaultValue()) {
			continue
		}
		v.Set(def.Key, formatFilterValue(value))
	}
	if state.Sort != nil {
		v.Set(KeySortBy, state.Sort.Field)
		v.Set(KeySortOrder, state.Sort.Order())
	}
	if state.Pagination.PageIndex > 0 {
		v.Set(KeyPage, strconv.Itoa(state.Pagination.PageIndex+1))
	}
	if state.Pagination.PageSize != spec.defaultPageSize() {
		v.Set(KeyLimit, strconv.Itoa(state.Pagination.PageSize))
	}
	return v.Encode()
}

// FromQueryString parses an address-bar query string. It never fails:
// unknown keys are ignored and each malformed field falls back to its
// default, so the result is always a complete, valid State.
func FromQueryString(query string, spec *Spec) State {
	query = strings.TrimPrefix(query, "?")
	// ParseQuery keeps every pair it could decode alongside the first error.
	values, _ := url.ParseQuery(query)

	s := DefaultState(spec)
	if q := values.Get(spec.searchKey()); strings.TrimSpace(q) != "" {
		s.Search = q
	}
	for _, def := range spec.Filters {
		raw, ok := values[def.Key]
		if !ok || len(raw) == 0 {
			continue
		}
		value, ok := parseFilterValue(def, raw[0])
		if !ok {
			continue
		}
		setCanonical(&s, def, value)
	}
	s.Sort = parseSort(values.Get(KeySortBy), values.Get(KeySortOrder), spec)
	s.Pagination = parsePagination(values.Get(KeyPage), values.Get(KeyLimit), spec)
	return s
}

func setCanonical(s *State, def FilterDef, value FilterValue) {
	if filterValuesEqual(value, def.DefaultValue()) {
		delete(s.Filters, def.Key)
		return
	}
	s.Filters[def.Key] = value
}

func formatFilterValue(value FilterValue) string {
	switch fv := value.(type) {
	case Membership:
		parts := make([]string, len(fv))
		for i, item := range fv {
			parts[i] = url.QueryEscape(item)
		}
		return strings.Join(parts, ",")
	case Substring:
		return string(fv)
	case Range:
		return formatRange(fv)
	case Flag:
		return strconv.FormatBool(bool(fv))
	case TimeWindow:
		return string(fv)
	}
	return ""
}

func parseFilterValue(def FilterDef, raw string) (FilterValue, bool) {
	switch def.Kind {
	case KindMembership:
		parts := strings.Split(raw, ",")
		items := make([]string, 0, len(parts))
		for _, p := range parts {
			item, err := url.QueryUnescape(p)
			if err != nil {
				item = p
			}
			items = append(items, item)
		}
		return NewMembership(items...), true
	case KindSubstring:
		return Substring(raw), true
	case KindRange:
		r, err := parseRange(raw)
		if err != nil {
			return nil, false
		}
		return r, true
	case KindFlag:
		b, err := strconv.ParseBool(strings.TrimSpace(raw))
		if err != nil {
			return nil, false
		}
		return Flag(b), true
	case KindWindow:
		w, ok := ParseTimeWindow(raw)
		if !ok {
			return nil, false
		}
		return w, true
	}
	return nil, false
}

func parseBounds(min, max string) (Range, bool) {
	if min == "" && max == "" {
		return Range{}, false
	}
	r, err := parseRange(min + ".." + max)
	if err != nil {
		return Range{}, false
	}
	return r, true
}

func parseSort(field, order string, spec *Spec) *Sort {
	if field == "" || !spec.Sortable(field) {
		return nil
	}
	return &Sort{Field: field, Descending: strings.EqualFold(order, orderDesc)}
}

func parsePagination(page, limit string, spec *Spec) Pagination {
	p := Pagination{PageIndex: 0, PageSize: spec.defaultPageSize()}
	if n := parseIntParam(page, 1); n > 1 {
		p.PageIndex = n - 1
	}
	if n := parseIntParam(limit, p.PageSize); spec.AllowsPageSize(n) {
		p.PageSize = n
	}
	return p
}

// parseIntParam returns defaultVal for empty or malformed input.
func parseIntParam(s string, defaultVal int) int {
	if s == "" {
		return defaultVal
	}
	if v, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
		return v
	}
	return defaultVal
}

// ParseFilterValue reads a filter value in its address-bar form, e.g.
// "active,invited" for membership or "1..5" for a range.
func ParseFilterValue(def FilterDef, raw string) (FilterValue, bool) {
	return parseFilterValue(def, raw)
}

// FormatFilterValue renders a value in its address-bar form.
func FormatFilterValue(value FilterValue) string {
	return formatFilterValue(value)
}
