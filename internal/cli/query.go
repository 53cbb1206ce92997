package cli

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/telhawk-systems/console/pkg/listview"
)

// queryFlags are the list-shaping flags shared by list, logs and saved.
type queryFlags struct {
	query   string
	search  string
	filters []string
	sort    string
	page    int
	limit   int
}

func addQueryFlags(cmd *cobra.Command) {
	cmd.Flags().String("query", "", "start from a bookmarked query string, e.g. 'status=active&page=2'")
	cmd.Flags().StringP("search", "s", "", "free-text search")
	cmd.Flags().StringArrayP("filter", "f", nil, "filter as key=value (repeatable); an empty value clears it")
	cmd.Flags().String("sort", "", "sort column, optionally field:desc")
	cmd.Flags().Int("page", 0, "1-based page number")
	cmd.Flags().Int("limit", 0, "page size")
}

func readQueryFlags(cmd *cobra.Command) (queryFlags, error) {
	var q queryFlags
	var err error
	if q.query, err = cmd.Flags().GetString("query"); err != nil {
		return q, err
	}
	if q.search, err = cmd.Flags().GetString("search"); err != nil {
		return q, err
	}
	if q.filters, err = cmd.Flags().GetStringArray("filter"); err != nil {
		return q, err
	}
	if q.sort, err = cmd.Flags().GetString("sort"); err != nil {
		return q, err
	}
	if q.page, err = cmd.Flags().GetInt("page"); err != nil {
		return q, err
	}
	if q.limit, err = cmd.Flags().GetInt("limit"); err != nil {
		return q, err
	}
	return q, nil
}

// build merges the flags over --query and returns the canonical address-bar
// string. Unlike address-bar parsing, bad flag values are errors.
func (q queryFlags) build(spec *listview.Spec) (string, error) {
	values, err := url.ParseQuery(strings.TrimPrefix(strings.TrimSpace(q.query), "?"))
	if err != nil {
		return "", fmt.Errorf("invalid --query: %w", err)
	}
	if q.search != "" {
		values.Set(spec.SearchKey, q.search)
	}
	for _, f := range q.filters {
		key, raw, err := parseFilterArg(spec, f)
		if err != nil {
			return "", err
		}
		if raw == "" {
			values.Del(key)
			continue
		}
		values.Set(key, raw)
	}
	if q.sort != "" {
		field, order, err := parseSortArg(spec, q.sort)
		if err != nil {
			return "", err
		}
		values.Set(listview.KeySortBy, field)
		values.Set(listview.KeySortOrder, order)
	}
	if q.page < 0 {
		return "", fmt.Errorf("--page must be positive, got %d", q.page)
	}
	if q.page > 0 {
		values.Set(listview.KeyPage, strconv.Itoa(q.page))
	}
	if q.limit != 0 {
		if !spec.AllowsPageSize(q.limit) {
			return "", fmt.Errorf("--limit %d is not allowed for %s (choose from %s)", q.limit, spec.Name, joinInts(spec.PageSizes))
		}
		values.Set(listview.KeyLimit, strconv.Itoa(q.limit))
	}

	state := listview.FromQueryString(values.Encode(), spec)
	return listview.ToQueryString(state, spec), nil
}

// parseFilterArg validates a key=value filter against spec. The value stays
// in its address-bar form.
func parseFilterArg(spec *listview.Spec, arg string) (string, string, error) {
	key, raw, ok := strings.Cut(arg, "=")
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		return "", "", fmt.Errorf("invalid filter %q (expected key=value)", arg)
	}
	def, ok := spec.Filter(key)
	if !ok {
		return "", "", fmt.Errorf("view %s has no filter %q (have %s)", spec.Name, key, strings.Join(filterKeys(spec), ", "))
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return key, "", nil
	}
	if _, ok := listview.ParseFilterValue(def, raw); !ok {
		return "", "", fmt.Errorf("invalid %s value %q for filter %q%s", def.Kind, raw, key, kindHint(def.Kind))
	}
	return key, raw, nil
}

// parseSortArg accepts "field", "field:asc" and "field:desc".
func parseSortArg(spec *listview.Spec, arg string) (string, string, error) {
	field, order, _ := strings.Cut(strings.TrimSpace(arg), ":")
	if !spec.Sortable(field) {
		return "", "", fmt.Errorf("view %s cannot sort by %q (sortable: %s)", spec.Name, field, strings.Join(spec.SortFields, ", "))
	}
	switch order = strings.ToLower(order); order {
	case "":
		order = "asc"
	case "asc", "desc":
	default:
		return "", "", fmt.Errorf("invalid sort order %q (want asc or desc)", order)
	}
	return field, order, nil
}

func kindHint(kind listview.FilterKind) string {
	switch kind {
	case listview.KindRange:
		return " (want min..max, min.. or ..max)"
	case listview.KindFlag:
		return " (want true or false)"
	case listview.KindWindow:
		return " (want 5m, 15m, 1h, 6h, 24h, 7d, 30d or all)"
	}
	return ""
}

func filterKeys(spec *listview.Spec) []string {
	keys := make([]string, len(spec.Filters))
	for i, def := range spec.Filters {
		keys[i] = def.Key
	}
	return keys
}

func joinInts(ns []int) string {
	parts := make([]string, len(ns))
	for i, n := range ns {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ", ")
}
