package listview

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Record is one row of a list. The engine reads only the fields a Spec
// declares.
type Record interface {
	Field(name string) (any, bool)
}

// Fields is a Record backed by a map, the shape decoded JSON rows take.
type Fields map[string]any

// Field implements Record. Dotted names descend into nested maps.
func (f Fields) Field(name string) (any, bool) {
	if v, ok := f[name]; ok {
		return v, true
	}
	head, rest, ok := strings.Cut(name, ".")
	if !ok {
		return nil, false
	}
	switch nested := f[head].(type) {
	case map[string]any:
		return Fields(nested).Field(rest)
	case Fields:
		return nested.Field(rest)
	}
	return nil, false
}

// Matches tests r against one filter value. A zero value always matches.
func Matches(r Record, field string, value FilterValue, now time.Time) bool {
	if value == nil || value.IsZero() {
		return true
	}
	switch v := value.(type) {
	case Membership:
		return MatchMembership(r, field, v)
	case Substring:
		return MatchSubstring(r, field, v)
	case Range:
		return MatchRange(r, field, v)
	case Flag:
		return MatchFlag(r, field, v)
	case TimeWindow:
		return MatchWindow(r, field, v, now)
	}
	return true
}

// MatchMembership passes when the set is empty or the field's value is in
// it. A list-valued field passes when any element is in the set.
func MatchMembership(r Record, field string, set Membership) bool {
	if len(set) == 0 {
		return true
	}
	raw, ok := r.Field(field)
	if !ok || raw == nil {
		return false
	}
	switch vs := raw.(type) {
	case []string:
		for _, v := range vs {
			if set.Has(v) {
				return true
			}
		}
		return false
	case []any:
		for _, v := range vs {
			if set.Has(stringify(v)) {
				return true
			}
		}
		return false
	}
	return set.Has(stringify(raw))
}

// MatchSubstring is a case-insensitive contains on the trimmed needle.
func MatchSubstring(r Record, field string, needle Substring) bool {
	n := strings.TrimSpace(string(needle))
	if n == "" {
		return true
	}
	raw, ok := r.Field(field)
	if !ok || raw == nil {
		return false
	}
	return containsFold(stringify(raw), n)
}

// MatchRange checks inclusive bounds. Non-numeric fields fail any bounded
// range.
func MatchRange(r Record, field string, rng Range) bool {
	if rng.IsZero() {
		return true
	}
	raw, ok := r.Field(field)
	if !ok {
		return false
	}
	n, ok := toFloat(raw)
	if !ok {
		return false
	}
	if rng.Min != nil && n < *rng.Min {
		return false
	}
	if rng.Max != nil && n > *rng.Max {
		return false
	}
	return true
}

// MatchFlag requires a truthy field when the flag is set.
func MatchFlag(r Record, field string, flag Flag) bool {
	if !flag {
		return true
	}
	raw, ok := r.Field(field)
	if !ok {
		return false
	}
	return truthy(raw)
}

// MatchWindow admits records whose timestamp is at or after now minus the
// window. Unparseable timestamps are excluded by any bounded window.
func MatchWindow(r Record, field string, w TimeWindow, now time.Time) bool {
	cutoff, ok := w.Cutoff(now)
	if !ok {
		return true
	}
	raw, ok := r.Field(field)
	if !ok {
		return false
	}
	ts, ok := toTime(raw)
	if !ok {
		return false
	}
	return !ts.Before(cutoff)
}

// MatchSearch passes when term is blank or any of fields contains it,
// ignoring case.
func MatchSearch(r Record, fields []string, term string) bool {
	term = strings.TrimSpace(term)
	if term == "" {
		return true
	}
	for _, f := range fields {
		raw, ok := r.Field(f)
		if !ok || raw == nil {
			continue
		}
		if containsFold(stringify(raw), term) {
			return true
		}
	}
	return false
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case time.Time:
		return t.Format(time.RFC3339)
	case fmt.Stringer:
		return t.String()
	case float64:
		return formatNumber(t)
	case float32:
		return formatNumber(float64(t))
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	case nil:
		return ""
	}
	return fmt.Sprint(v)
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case uint:
		return float64(t), true
	case uint64:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	}
	return 0, false
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		b, err := strconv.ParseBool(t)
		if err != nil {
			return t != ""
		}
		return b
	}
	if f, ok := toFloat(v); ok {
		return f != 0
	}
	return true
}

// toTime accepts time.Time, RFC 3339 strings and Unix seconds.
func toTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, !t.IsZero()
	case *time.Time:
		if t == nil {
			return time.Time{}, false
		}
		return *t, true
	case string:
		if ts, err := time.Parse(time.RFC3339Nano, t); err == nil {
			return ts, true
		}
	}
	if f, ok := toFloat(v); ok {
		return time.Unix(int64(f), 0), true
	}
	return time.Time{}, false
}
