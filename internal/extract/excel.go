package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// extractExcel returns the first sheet as a table and the text of every
// sheet, one row per line with tab-separated cells.
func extractExcel(content []byte) (*Table, string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, "", fmt.Errorf("open Excel: %w", err)
	}
	defer f.Close()

	var (
		buf   strings.Builder
		first *Table
	)
	for i, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, "", fmt.Errorf("get rows for sheet %q: %w", sheet, err)
		}
		if i == 0 {
			first = newTable(rows)
		}
		for _, row := range rows {
			buf.WriteString(strings.Join(row, "\t"))
			buf.WriteByte('\n')
		}
	}
	if first == nil {
		first = &Table{}
	}
	return first, strings.TrimSpace(buf.String()), nil
}
