package output

import (
	"fmt"
	"strconv"
	"strings"
)

// Attr is an ANSI SGR parameter.
type Attr int

const (
	Bold      Attr = 1
	Dim       Attr = 2
	Underline Attr = 4

	FgRed     Attr = 31
	FgGreen   Attr = 32
	FgYellow  Attr = 33
	FgBlue    Attr = 34
	FgMagenta Attr = 35
	FgCyan    Attr = 36
	FgWhite   Attr = 37
)

const reset = "\033[0m"

// Color is a set of attributes applied to a whole string.
type Color struct {
	seq string
}

// NewColor builds the escape sequence for attrs once.
func NewColor(attrs ...Attr) *Color {
	if len(attrs) == 0 {
		return &Color{}
	}
	parts := make([]string, len(attrs))
	for i, a := range attrs {
		parts[i] = strconv.Itoa(int(a))
	}
	return &Color{seq: "\033[" + strings.Join(parts, ";") + "m"}
}

// Sprint wraps s in the color's escape sequence.
func (c *Color) Sprint(s string) string {
	if c == nil || c.seq == "" {
		return s
	}
	return c.seq + s + reset
}

// Sprintf formats and wraps the result.
func (c *Color) Sprintf(format string, a ...any) string {
	return c.Sprint(fmt.Sprintf(format, a...))
}
