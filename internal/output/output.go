// Package output renders command results as colored status lines, aligned
// tables or indented JSON.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

// Format selects how results are rendered.
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
)

// ParseFormat accepts "table" and "json".
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatTable, FormatJSON:
		return f, nil
	case "":
		return FormatTable, nil
	}
	return "", fmt.Errorf("unknown output format %q (want table or json)", s)
}

var (
	successColor = NewColor(FgGreen, Bold)
	errorColor   = NewColor(FgRed, Bold)
	infoColor    = NewColor(FgCyan)
	warnColor    = NewColor(FgYellow)
	headerColor  = NewColor(FgWhite, Bold)
	mutedColor   = NewColor(Dim)
)

// Printer writes results to out and diagnostics to errOut.
type Printer struct {
	out    io.Writer
	errOut io.Writer
	color  bool
}

// New returns a Printer. Colors are emitted only when color is true.
func New(out, errOut io.Writer, color bool) *Printer {
	return &Printer{out: out, errOut: errOut, color: color}
}

// Out is the result writer.
func (p *Printer) Out() io.Writer { return p.out }

func (p *Printer) paint(c *Color, s string) string {
	if !p.color {
		return s
	}
	return c.Sprint(s)
}

func (p *Printer) Success(format string, a ...any) {
	fmt.Fprintln(p.out, p.paint(successColor, "✓ "+fmt.Sprintf(format, a...)))
}

func (p *Printer) Error(format string, a ...any) {
	fmt.Fprintln(p.errOut, p.paint(errorColor, "✗ "+fmt.Sprintf(format, a...)))
}

func (p *Printer) Info(format string, a ...any) {
	fmt.Fprintln(p.out, p.paint(infoColor, fmt.Sprintf(format, a...)))
}

func (p *Printer) Warn(format string, a ...any) {
	fmt.Fprintln(p.errOut, p.paint(warnColor, "⚠ "+fmt.Sprintf(format, a...)))
}

// Muted prints a secondary line such as a footer.
func (p *Printer) Muted(format string, a ...any) {
	fmt.Fprintln(p.out, p.paint(mutedColor, fmt.Sprintf(format, a...)))
}

// JSON writes v indented.
func (p *Printer) JSON(v any) error {
	enc := json.NewEncoder(p.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Table renders t with a highlighted header.
func (p *Printer) Table(t *Table) {
	t.render(p.out, func(s string) string { return p.paint(headerColor, s) })
}

// Table is a column-aligned text table.
type Table struct {
	headers []string
	rows    [][]string
}

func NewTable(headers ...string) *Table {
	return &Table{headers: headers}
}

// AddRow appends a row. Missing cells render empty and extra cells are dropped.
func (t *Table) AddRow(cells ...string) {
	row := make([]string, len(t.headers))
	copy(row, cells)
	t.rows = append(t.rows, row)
}

// Len is the number of rows.
func (t *Table) Len() int { return len(t.rows) }

// Render writes t to w without color.
func (t *Table) Render(w io.Writer) {
	t.render(w, func(s string) string { return s })
}

func (t *Table) render(w io.Writer, header func(string) string) {
	widths := make([]int, len(t.headers))
	for i, h := range t.headers {
		widths[i] = utf8.RuneCountInString(h)
	}
	for _, row := range t.rows {
		for i, cell := range row {
			if n := utf8.RuneCountInString(cell); n > widths[i] {
				widths[i] = n
			}
		}
	}

	fmt.Fprintln(w, header(joinPadded(t.headers, widths)))
	seps := make([]string, len(widths))
	for i, n := range widths {
		seps[i] = strings.Repeat("-", n)
	}
	fmt.Fprintln(w, joinPadded(seps, widths))
	for _, row := range t.rows {
		fmt.Fprintln(w, joinPadded(row, widths))
	}
}

func joinPadded(cells []string, widths []int) string {
	var b strings.Builder
	for i, cell := range cells {
		if i > 0 {
			b.WriteString("  ")
		}
		b.WriteString(cell)
		if i < len(cells)-1 {
			b.WriteString(strings.Repeat(" ", widths[i]-utf8.RuneCountInString(cell)))
		}
	}
	return b.String()
}
