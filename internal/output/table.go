package output

import (
	"github.com/jedib0t/go-pretty/v6/table"
)

// LimitRow is one effective-setting line in the limits table.
type LimitRow struct {
	Setting     string
	Value       string
	Description string
}

// LimitsTable renders the effective admission limits as an ASCII table.
func LimitsTable(rows []LimitRow) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Setting", "Value", "Description"})

	for _, row := range rows {
		t.AppendRow(table.Row{row.Setting, row.Value, row.Description})
	}

	return t.Render()
}
