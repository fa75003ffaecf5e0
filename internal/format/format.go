// Package format renders bugs, verdicts, targets and stats as terminal or
// Markdown tables.
package format

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// Mode controls the output format.
type Mode int

const (
	ASCII    Mode = iota // Box-drawing tables for interactive terminals
	Plain                // Pure ASCII tables for pipes and logs
	Markdown             // GitHub-flavoured Markdown tables
)

// ParseMode maps "ascii", "plain" or "markdown" to a Mode.
func ParseMode(s string) (Mode, bool) {
	switch s {
	case "ascii", "":
		return ASCII, true
	case "plain":
		return Plain, true
	case "markdown", "md":
		return Markdown, true
	default:
		return ASCII, false
	}
}

// ColumnAlign specifies the horizontal alignment for a column.
type ColumnAlign int

const (
	AlignDefault ColumnAlign = iota
	AlignLeft
	AlignCenter
	AlignRight
)

// ColumnConfig controls per-column formatting. Number is 1-based;
// MaxWidth 0 means unlimited.
type ColumnConfig struct {
	Number   int
	Align    ColumnAlign
	MaxWidth int
}

var aligns = map[ColumnAlign]text.Align{
	AlignLeft:   text.AlignLeft,
	AlignCenter: text.AlignCenter,
	AlignRight:  text.AlignRight,
}

// Table accumulates a header, rows and an optional footer and renders them
// in the Mode it was created with.
type Table struct {
	w    table.Writer
	mode Mode
}

// NewTable starts a table for m.
func NewTable(m Mode) *Table {
	w := table.NewWriter()
	switch m {
	case ASCII:
		w.SetStyle(table.StyleLight)
	case Plain:
		w.SetStyle(table.StyleDefault)
	}
	return &Table{w: w, mode: m}
}

// Header sets the column headers.
func (t *Table) Header(cols ...string) {
	t.w.AppendHeader(toRow(cols...))
}

// Row appends a data row; values are printed with fmt.Sprint semantics.
func (t *Table) Row(vals ...any) { t.w.AppendRow(table.Row(vals)) }

// Footer appends a totals row.
func (t *Table) Footer(vals ...any) { t.w.AppendFooter(table.Row(vals)) }

// Columns applies per-column alignment and width limits.
func (t *Table) Columns(cfgs ...ColumnConfig) {
	out := make([]table.ColumnConfig, 0, len(cfgs))
	for _, c := range cfgs {
		out = append(out, table.ColumnConfig{Number: c.Number, Align: aligns[c.Align], WidthMax: c.MaxWidth})
	}
	t.w.SetColumnConfigs(out)
}

func (t *Table) String() string {
	if t.mode == Markdown {
		return t.w.RenderMarkdown()
	}
	return t.w.Render()
}

func toRow(cols ...string) table.Row {
	row := make(table.Row, len(cols))
	for i, c := range cols {
		row[i] = c
	}
	return row
}
