// Package refparse turns an uploaded reference spreadsheet (XLSX or CSV)
// into a table.Matrix. A parse failure is an input error: the caller logs it
// and runs the pipeline without a reference table.
package refparse

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/knagasawa/bidsheet/internal/table"
)

// ErrUnsupported reports a file extension the parser does not handle.
var ErrUnsupported = errors.New("unsupported reference file type")

// Parse dispatches on the file extension. Workbooks are read from their
// first sheet; delimited text is read as comma-separated with ragged rows
// allowed.
func Parse(fileName string, data []byte) (table.Matrix, error) {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".xlsx", ".xls":
		return parseWorkbook(data)
	case ".csv":
		return parseCSV(data)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, fileName)
	}
}

func parseWorkbook(data []byte) (table.Matrix, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	return squeeze(rows), nil
}

func parseCSV(data []byte) (table.Matrix, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}

	var m table.Matrix
	for _, rec := range records {
		row := make([]string, len(rec))
		empty := true
		for i, c := range rec {
			row[i] = strings.TrimSpace(c)
			if row[i] != "" {
				empty = false
			}
		}
		if empty {
			continue
		}
		m = append(m, row)
	}
	return m, nil
}

// squeeze keeps the header row and drops every body row whose first cell is
// blank. Reference workbooks carry subtotal and spacer rows with an empty
// leading item column; those must not consume a position during the
// index-aligned merge.
func squeeze(rows [][]string) table.Matrix {
	if len(rows) == 0 {
		return nil
	}
	out := table.Matrix{rows[0]}
	for _, row := range rows[1:] {
		if len(row) == 0 || strings.TrimSpace(row[0]) == "" {
			continue
		}
		out = append(out, row)
	}
	return out
}
