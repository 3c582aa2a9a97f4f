package table

import "strings"

// Project filters and reorders m to the given target column set. The output
// header is exactly needColumns; each data row carries one cell per target
// column, empty when the source has no column of that name. Rows whose
// projected cells are all blank are dropped — OCR noise tends to produce
// fully-empty rows and they must not reach the combined output.
//
// Projecting an already-projected matrix onto the same columns is a no-op.
func Project(m Matrix, needColumns []string) Matrix {
	if len(needColumns) == 0 || len(m) == 0 {
		return m
	}

	idx := headerIndex(m.Header())

	out := make(Matrix, 0, len(m))
	header := make([]string, len(needColumns))
	copy(header, needColumns)
	out = append(out, header)

	for _, row := range m.Body() {
		projected := make([]string, len(needColumns))
		blank := true
		for c, name := range needColumns {
			i, ok := idx[name]
			if !ok {
				continue
			}
			v := cell(row, i)
			projected[c] = v
			if strings.TrimSpace(v) != "" {
				blank = false
			}
		}
		if blank {
			continue
		}
		out = append(out, projected)
	}
	return out
}
