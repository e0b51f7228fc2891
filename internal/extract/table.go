package extract

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"
)

// Table is a header row plus data rows from tabular input. Rows may be
// ragged; cells are kept as read.
type Table struct {
	Header []string
	Rows   [][]string
}

// Columns returns the number of columns, taking the widest row.
func (t *Table) Columns() int {
	n := len(t.Header)
	for _, r := range t.Rows {
		if len(r) > n {
			n = len(r)
		}
	}
	return n
}

// Head returns up to n data rows.
func (t *Table) Head(n int) [][]string {
	if n > len(t.Rows) {
		n = len(t.Rows)
	}
	if n <= 0 {
		return nil
	}
	return t.Rows[:n]
}

// String renders the table one row per line, cells tab-separated, header first.
func (t *Table) String() string {
	var b strings.Builder
	writeRow := func(row []string) {
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(strings.Join(row, "\t"))
	}
	if len(t.Header) > 0 {
		writeRow(t.Header)
	}
	for _, r := range t.Rows {
		writeRow(r)
	}
	return b.String()
}

func newTable(records [][]string) *Table {
	if len(records) == 0 {
		return &Table{}
	}
	return &Table{Header: records[0], Rows: records[1:]}
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// readCSV parses comma-separated content. The first record is the header.
func readCSV(content []byte) (*Table, error) {
	r := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(content, utf8BOM)))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse CSV: %w", err)
	}
	return newTable(records), nil
}
