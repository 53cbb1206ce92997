package listview

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

// FilterKind identifies which predicate a filter dimension uses.
type FilterKind int

const (
	KindMembership FilterKind = iota + 1
	KindSubstring
	KindRange
	KindFlag
	KindWindow
)

// String returns the name used in view catalogs.
func (k FilterKind) String() string {
	switch k {
	case KindMembership:
		return "membership"
	case KindSubstring:
		return "substring"
	case KindRange:
		return "range"
	case KindFlag:
		return "flag"
	case KindWindow:
		return "window"
	default:
		return "unknown"
	}
}

// ParseFilterKind converts a catalog name to a FilterKind.
func ParseFilterKind(s string) (FilterKind, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "membership", "multi", "select":
		return KindMembership, true
	case "substring", "text":
		return KindSubstring, true
	case "range", "numeric":
		return KindRange, true
	case "flag", "bool", "boolean":
		return KindFlag, true
	case "window", "time", "time_window":
		return KindWindow, true
	default:
		return 0, false
	}
}

// FilterValue is the value of one filter dimension. The set of implementations
// is closed: Membership, Substring, Range, Flag and TimeWindow.
type FilterValue interface {
	Kind() FilterKind
	// IsZero reports whether the value imposes no constraint.
	IsZero() bool
	// Label renders the value for active-filter descriptors.
	Label() string
	sealed()
}

// Membership is a multi-select set, kept sorted and de-duplicated.
type Membership []string

// NewMembership builds a canonical Membership from the given values.
// Blank values are dropped.
func NewMembership(values ...string) Membership {
	seen := make(map[string]struct{}, len(values))
	out := make(Membership, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

func (m Membership) Kind() FilterKind { return KindMembership }
func (m Membership) IsZero() bool     { return len(m) == 0 }
func (m Membership) Label() string    { return strings.Join(m, ", ") }
func (Membership) sealed()            {}

// Has reports whether v is selected.
func (m Membership) Has(v string) bool {
	i := sort.SearchStrings(m, v)
	return i < len(m) && m[i] == v
}

// Substring is a case-insensitive contains match.
type Substring string

func (s Substring) Kind() FilterKind { return KindSubstring }
func (s Substring) IsZero() bool     { return strings.TrimSpace(string(s)) == "" }
func (s Substring) Label() string    { return strconv.Quote(strings.TrimSpace(string(s))) }
func (Substring) sealed()            {}

// Range bounds a numeric field. A nil bound is open.
type Range struct {
	Min *float64
	Max *float64
}

// NewRange returns a Range with both bounds set.
func NewRange(min, max float64) Range {
	return Range{Min: &min, Max: &max}
}

// AtLeast returns a Range with only a lower bound.
func AtLeast(min float64) Range { return Range{Min: &min} }

// AtMost returns a Range with only an upper bound.
func AtMost(max float64) Range { return Range{Max: &max} }

func (r Range) Kind() FilterKind { return KindRange }
func (r Range) IsZero() bool     { return r.Min == nil && r.Max == nil }
func (Range) sealed()            {}

func (r Range) Label() string {
	switch {
	case r.Min != nil && r.Max != nil:
		return formatNumber(*r.Min) + " – " + formatNumber(*r.Max)
	case r.Min != nil:
		return "≥ " + formatNumber(*r.Min)
	case r.Max != nil:
		return "≤ " + formatNumber(*r.Max)
	default:
		return "any"
	}
}

// Equal compares bounds by value.
func (r Range) Equal(o Range) bool {
	return floatPtrEqual(r.Min, o.Min) && floatPtrEqual(r.Max, o.Max)
}

// Flag requires a truthy field when set.
type Flag bool

func (f Flag) Kind() FilterKind { return KindFlag }
func (f Flag) IsZero() bool     { return !bool(f) }
func (f Flag) Label() string    { return "yes" }
func (Flag) sealed()            {}

// TimeWindow is a relative lookback ending at now.
type TimeWindow string

const (
	Window5m  TimeWindow = "5m"
	Window15m TimeWindow = "15m"
	Window1h  TimeWindow = "1h"
	Window6h  TimeWindow = "6h"
	Window24h TimeWindow = "24h"
	Window7d  TimeWindow = "7d"
	Window30d TimeWindow = "30d"
	WindowAll TimeWindow = "all"
)

var windowDurations = map[TimeWindow]time.Duration{
	Window5m:  5 * time.Minute,
	Window15m: 15 * time.Minute,
	Window1h:  time.Hour,
	Window6h:  6 * time.Hour,
	Window24h: 24 * time.Hour,
	Window7d:  7 * 24 * time.Hour,
	Window30d: 30 * 24 * time.Hour,
}

var windowLabels = map[TimeWindow]string{
	Window5m:  "Last 5 minutes",
	Window15m: "Last 15 minutes",
	Window1h:  "Last hour",
	Window6h:  "Last 6 hours",
	Window24h: "Last 24 hours",
	Window7d:  "Last 7 days",
	Window30d: "Last 30 days",
	WindowAll: "All time",
}

// ParseTimeWindow accepts only the fixed window names.
func ParseTimeWindow(s string) (TimeWindow, bool) {
	w := TimeWindow(strings.ToLower(strings.TrimSpace(s)))
	if w == WindowAll {
		return w, true
	}
	_, ok := windowDurations[w]
	return w, ok
}

// Duration returns the lookback. ok is false for "all".
func (w TimeWindow) Duration() (time.Duration, bool) {
	d, ok := windowDurations[w]
	return d, ok
}

// Cutoff returns the earliest admitted timestamp. ok is false for "all".
func (w TimeWindow) Cutoff(now time.Time) (time.Time, bool) {
	d, ok := w.Duration()
	if !ok {
		return time.Time{}, false
	}
	return now.Add(-d), true
}

func (w TimeWindow) Kind() FilterKind { return KindWindow }
func (w TimeWindow) IsZero() bool     { return w == "" || w == WindowAll }
func (TimeWindow) sealed()            {}

func (w TimeWindow) Label() string {
	if l, ok := windowLabels[w]; ok {
		return l
	}
	return string(w)
}

// filterValuesEqual compares two values of any kind.
func filterValuesEqual(a, b FilterValue) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Kind() != b.Kind() {
		return false
	}
	switch av := a.(type) {
	case Membership:
		bv := b.(Membership)
		if len(av) != len(bv) {
			return false
		}
		for i := range av {
			if av[i] != bv[i] {
				return false
			}
		}
		return true
	case Substring:
		return strings.TrimSpace(string(av)) == strings.TrimSpace(string(b.(Substring)))
	case Range:
		return av.Equal(b.(Range))
	case Flag:
		return av == b.(Flag)
	case TimeWindow:
		return av == b.(TimeWindow)
	}
	return false
}

// zeroValue returns the no-constraint value of a kind.
func zeroValue(k FilterKind) FilterValue {
	switch k {
	case KindMembership:
		return Membership{}
	case KindSubstring:
		return Substring("")
	case KindRange:
		return Range{}
	case KindFlag:
		return Flag(false)
	case KindWindow:
		return WindowAll
	}
	return nil
}

func floatPtrEqual(a, b *float64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// parseRange reads "min..max" with either side optional.
func parseRange(s string) (Range, error) {
	lo, hi, ok := strings.Cut(strings.TrimSpace(s), "..")
	if !ok {
		return Range{}, fmt.Errorf("range %q: missing ..", s)
	}
	var r Range
	if lo = strings.TrimSpace(lo); lo != "" {
		v, err := strconv.ParseFloat(lo, 64)
		if err != nil {
			return Range{}, fmt.Errorf("range min: %w", err)
		}
		if math.IsNaN(v) {
			return Range{}, fmt.Errorf("range min %q: not a number", lo)
		}
		r.Min = &v
	}
	if hi = strings.TrimSpace(hi); hi != "" {
		v, err := strconv.ParseFloat(hi, 64)
		if err != nil {
			return Range{}, fmt.Errorf("range max: %w", err)
		}
		if math.IsNaN(v) {
			return Range{}, fmt.Errorf("range max %q: not a number", hi)
		}
		r.Max = &v
	}
	if r.Min != nil && r.Max != nil && *r.Min > *r.Max {
		return Range{}, fmt.Errorf("range %q: min greater than max", s)
	}
	return r, nil
}

func formatRange(r Range) string {
	var b strings.Builder
	if r.Min != nil {
		b.WriteString(formatNumber(*r.Min))
	}
	b.WriteString("..")
	if r.Max != nil {
		b.WriteString(formatNumber(*r.Max))
	}
	return b.String()
}

// normalizeValue returns the canonical form of a value for def, or false when
// the value cannot belong to def.
func normalizeValue(def FilterDef, value FilterValue) (FilterValue, bool) {
	if value == nil {
		return def.DefaultValue(), true
	}
	if value.Kind() != def.Kind {
		return nil, false
	}
	switch v := value.(type) {
	case Membership:
		return NewMembership(v...), true
	case Range:
		if (v.Min != nil && math.IsNaN(*v.Min)) || (v.Max != nil && math.IsNaN(*v.Max)) {
			return nil, false
		}
		if v.Min != nil && v.Max != nil && *v.Min > *v.Max {
			return nil, false
		}
	case TimeWindow:
		if v == "" {
			return WindowAll, true
		}
		w, ok := ParseTimeWindow(string(v))
		return w, ok
	}
	return value, true
}
