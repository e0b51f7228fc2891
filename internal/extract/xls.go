package extract

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/extrame/xls"
)

// rowSource yields the cells of 0-based rows. ok is false for rows the sheet
// does not store.
type rowSource interface {
	MaxRow() int
	RowCells(i int) (cells []string, ok bool)
}

type xlsSheet struct {
	s *xls.WorkSheet
}

func (x xlsSheet) MaxRow() int { return int(x.s.MaxRow) }

// RowCells recovers from the nil dereference extrame/xls performs when a row
// index is missing from the sheet.
func (x xlsSheet) RowCells(i int) (cells []string, ok bool) {
	defer func() {
		if recover() != nil {
			cells, ok = nil, false
		}
	}()
	row := x.s.Row(i)
	if row == nil {
		return nil, false
	}
	// LastCol is one past the last stored cell.
	for c := 0; c < row.LastCol(); c++ {
		cells = append(cells, row.Col(c))
	}
	return trimTrailingEmpty(cells), true
}

// sheetRows collects stored rows in order. Missing rows are skipped.
func sheetRows(src rowSource) [][]string {
	var rows [][]string
	for i := 0; i <= src.MaxRow(); i++ {
		if cells, ok := src.RowCells(i); ok {
			rows = append(rows, cells)
		}
	}
	return rows
}

func trimTrailingEmpty(cells []string) []string {
	n := len(cells)
	for n > 0 && strings.TrimSpace(cells[n-1]) == "" {
		n--
	}
	return cells[:n]
}

// extractXLS reads a legacy BIFF workbook. Like extractExcel it returns the
// first sheet as a table and the text of every sheet.
func extractXLS(content []byte) (table *Table, text string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			table, text, err = nil, "", fmt.Errorf("open XLS: %v", rec)
		}
	}()
	wb, err := xls.OpenReader(bytes.NewReader(content), "utf-8")
	if err != nil {
		return nil, "", fmt.Errorf("open XLS: %w", err)
	}
	if wb == nil {
		return nil, "", errors.New("open XLS: no workbook stream")
	}

	var buf strings.Builder
	for i := 0; i < wb.NumSheets(); i++ {
		sheet := wb.GetSheet(i)
		if sheet == nil {
			continue
		}
		rows := sheetRows(xlsSheet{s: sheet})
		if i == 0 {
			table = newTable(rows)
		}
		for _, row := range rows {
			buf.WriteString(strings.Join(row, "\t"))
			buf.WriteByte('\n')
		}
	}
	if table == nil {
		table = &Table{}
	}
	return table, strings.TrimSpace(buf.String()), nil
}
