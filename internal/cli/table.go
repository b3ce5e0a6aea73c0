package cli

import (
	"bufio"
	"io"
	"strings"

	"github.com/muesli/reflow/ansi"
)

const tablePadding = 2

// writeTable writes rows as space-aligned columns. Widths are measured in
// terminal cells with escape sequences ignored, so styled cells line up.
func writeTable(out io.Writer, headers []string, rows [][]string) error {
	colCount := len(headers)
	for _, row := range rows {
		colCount = max(colCount, len(row))
	}
	if colCount == 0 {
		return nil
	}

	widths := make([]int, colCount)
	measure := func(row []string) {
		for idx, cell := range row {
			widths[idx] = max(widths[idx], ansi.PrintableRuneWidth(cell))
		}
	}
	measure(headers)
	for _, row := range rows {
		measure(row)
	}

	writer := bufio.NewWriter(out)
	writeRow := func(row []string) {
		for idx := range colCount {
			cell := ""
			if idx < len(row) {
				cell = row[idx]
			}
			writer.WriteString(cell)
			if idx < colCount-1 {
				padding := max(0, widths[idx]-ansi.PrintableRuneWidth(cell))
				writer.WriteString(strings.Repeat(" ", padding+tablePadding))
			}
		}
		writer.WriteString("\n")
	}

	if len(headers) > 0 {
		writeRow(headers)
	}
	for _, row := range rows {
		writeRow(row)
	}
	return writer.Flush()
}
