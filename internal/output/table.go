package output

import (
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// maxCellWidth bounds the display width of a single cell.
const maxCellWidth = 40

// RenderTable renders rows of cell text under headers. The first column is
// the row index. width, when positive, caps the table width.
func RenderTable(headers []string, rows [][]string, width int) string {
	cellStyle := lipgloss.NewStyle().Padding(0, 1)
	headerStyle := titleStyle.Padding(0, 1)

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(subtleStyle).
		Headers(append([]string{"#"}, headers...)...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if col == 0 {
				return cellStyle.Foreground(lipgloss.Color("241"))
			}
			return cellStyle
		})

	for i, r := range rows {
		cells := make([]string, 0, len(r)+1)
		cells = append(cells, strconv.Itoa(i))
		for _, c := range r {
			cells = append(cells, Truncate(SingleLine(c), maxCellWidth))
		}
		t.Row(cells...)
	}
	out := t.String()
	if width > 0 && lipgloss.Width(out) > width {
		out = t.Width(width).String()
	}
	return out
}
