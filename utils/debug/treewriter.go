// Package debug renders internal structures as indented text trees for
// inspection in debug reports.
package debug

import (
	"fmt"
	"strconv"
	"strings"
)

const indentStep = "  "

// TreeWriter accumulates lines at explicit nesting depths. It exists solely
// for producing human readable dumps, output format is not a contract.
type TreeWriter struct {
	w strings.Builder
}

func NewTreeWriter() *TreeWriter {
	return &TreeWriter{}
}

func (tw *TreeWriter) String() string {
	return tw.w.String()
}

// Line appends one formatted line at the given depth.
func (tw *TreeWriter) Line(depth int, format string, args ...any) {
	tw.indent(depth)
	fmt.Fprintf(&tw.w, format, args...)
	tw.w.WriteByte('\n')
}

// TextBlock appends a labeled text value at the given depth. Non-empty values
// are quoted so control characters never mangle the dump layout.
func (tw *TreeWriter) TextBlock(depth int, label, value string) {
	tw.indent(depth)
	tw.w.WriteString(label)
	tw.w.WriteString(": ")
	if value != "" {
		value = strconv.Quote(value)
	}
	tw.w.WriteString(value)
	tw.w.WriteByte('\n')
}

func (tw *TreeWriter) indent(depth int) {
	for range depth {
		tw.w.WriteString(indentStep)
	}
}
