package cli

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/telhawk-systems/console/internal/output"
	"github.com/telhawk-systems/console/internal/views"
	"github.com/telhawk-systems/console/pkg/listview"
)

const maxCellWidth = 60

// pageReport is the JSON form of one rendered page.
type pageReport struct {
	View      string                      `json:"view"`
	Query     string                      `json:"query"`
	Search    string                      `json:"search,omitempty"`
	Sort      *listview.Sort              `json:"sort,omitempty"`
	Page      int                         `json:"page"`
	PageSize  int                         `json:"page_size"`
	PageCount int                         `json:"page_count"`
	Total     int                         `json:"total"`
	Filters   []listview.FilterDescriptor `json:"filters"`
	Rows      []map[string]any            `json:"rows"`
}

func newPageReport(view *views.View, spec *listview.Spec, res listview.Result) pageReport {
	report := pageReport{
		View:      view.Name,
		Query:     listview.ToQueryString(res.State, spec),
		Search:    res.State.TrimmedSearch(),
		Sort:      res.State.Sort,
		Page:      res.State.Pagination.PageIndex + 1,
		PageSize:  res.State.Pagination.PageSize,
		PageCount: res.PageCount,
		Total:     res.TotalCount,
		Filters:   res.ActiveFilters,
		Rows:      make([]map[string]any, 0, len(res.Rows)),
	}
	if report.Filters == nil {
		report.Filters = []listview.FilterDescriptor{}
	}
	for _, rec := range res.Rows {
		report.Rows = append(report.Rows, recordMap(rec, columnsFor(view, res.Rows)))
	}
	return report
}

// renderPage prints one page of a view as a table with a summary footer, or
// as a JSON report.
func renderPage(p *output.Printer, format output.Format, view *views.View, spec *listview.Spec, res listview.Result) error {
	if format == output.FormatJSON {
		return p.JSON(newPageReport(view, spec, res))
	}

	if len(res.Rows) == 0 {
		p.Info("No %s match.", strings.ToLower(view.Title))
	} else {
		columns := columnsFor(view, res.Rows)
		headers := make([]string, len(columns))
		for i, col := range columns {
			headers[i] = strings.ToUpper(col)
		}
		table := output.NewTable(headers...)
		for _, rec := range res.Rows {
			cells := make([]string, len(columns))
			for i, col := range columns {
				cells[i] = formatCell(rec.Field(col))
			}
			table.AddRow(cells...)
		}
		p.Table(table)
	}
	renderSummary(p, view, spec, res)
	return nil
}

func renderSummary(p *output.Printer, view *views.View, spec *listview.Spec, res listview.Result) {
	p.Muted("page %d of %d, %d total", res.State.Pagination.PageIndex+1, max(res.PageCount, 1), res.TotalCount)
	if q := res.State.TrimmedSearch(); q != "" {
		p.Muted("search: %q", q)
	}
	if len(res.ActiveFilters) > 0 {
		labels := make([]string, len(res.ActiveFilters))
		for i, f := range res.ActiveFilters {
			labels[i] = f.Label
		}
		p.Muted("filters: %s", strings.Join(labels, "; "))
	}
	if res.State.Sort != nil {
		p.Muted("sort: %s %s", res.State.Sort.Field, res.State.Sort.Order())
	}
	p.Muted("link: %s", viewLink(view, listview.ToQueryString(res.State, spec)))
}

// viewLink is the bookmarkable form of a view and its query.
func viewLink(view *views.View, query string) string {
	if query == "" {
		return view.Name
	}
	return view.Name + "?" + query
}

// columnsFor returns the declared columns, or the sorted field names of the
// first row for views that declare none.
func columnsFor(view *views.View, rows []listview.Record) []string {
	if len(view.Columns) > 0 {
		return view.Columns
	}
	if len(rows) == 0 {
		return nil
	}
	fields, ok := rows[0].(listview.Fields)
	if !ok {
		return nil
	}
	cols := make([]string, 0, len(fields))
	for k := range fields {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	return cols
}

func recordMap(rec listview.Record, columns []string) map[string]any {
	if f, ok := rec.(listview.Fields); ok {
		return f
	}
	out := make(map[string]any, len(columns))
	for _, col := range columns {
		if v, ok := rec.Field(col); ok {
			out[col] = v
		}
	}
	return out
}

// formatCell renders one field for a table cell.
func formatCell(v any, ok bool) string {
	if !ok || v == nil {
		return "-"
	}
	var s string
	switch t := v.(type) {
	case string:
		s = t
	case time.Time:
		s = t.UTC().Format(time.RFC3339)
	case bool:
		s = strconv.FormatBool(t)
	case float64:
		s = strconv.FormatFloat(t, 'f', -1, 64)
	case []string:
		s = strings.Join(t, ",")
	case []any:
		parts := make([]string, len(t))
		for i, item := range t {
			parts[i] = formatCell(item, true)
		}
		s = strings.Join(parts, ",")
	case map[string]any:
		b, err := json.Marshal(t)
		if err != nil {
			s = fmt.Sprint(t)
		} else {
			s = string(b)
		}
	default:
		s = fmt.Sprint(v)
	}
	if s == "" {
		return "-"
	}
	return truncate(s, maxCellWidth)
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n-1]) + "…"
}
