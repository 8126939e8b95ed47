// SPDX-License-Identifier: MPL-2.0

package report

import (
	"io"

	"github.com/olekukonko/tablewriter"
)

// Table is a headed table.
type Table struct {
	headers []string
	rows    [][]string
}

// NewTable creates a Table with the given headers.
func NewTable(headers ...string) *Table {
	return &Table{headers: headers}
}

// AddRow appends a row.
func (t *Table) AddRow(row ...string) {
	t.rows = append(t.rows, row)
}

// Render writes the table to w.
func (t *Table) Render(w io.Writer) {
	table := tablewriter.NewWriter(w)
	table.SetHeader(t.headers)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("  ")
	table.SetNoWhiteSpace(true)
	table.AppendBulk(t.rows)
	table.Render()
}

// KeyValues writes label/value pairs as a two-column table.
func KeyValues(w io.Writer, pairs [][2]string) {
	table := tablewriter.NewWriter(w)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator(":")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("  ")
	table.SetNoWhiteSpace(true)
	for _, p := range pairs {
		table.Append([]string{p[0], p[1]})
	}
	table.Render()
}
