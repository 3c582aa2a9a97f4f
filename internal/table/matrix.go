package table

import "strings"

// Matrix is an ordered grid of string cells. Row 0 is the header row when
// the matrix is non-empty. Data rows may be shorter than the header (readers
// treat missing cells as empty) or longer (excess cells are ignored by
// readers that address columns by name).
type Matrix [][]string

// Header returns row 0, or nil for an empty matrix.
func (m Matrix) Header() []string {
	if len(m) == 0 {
		return nil
	}
	return m[0]
}

// Body returns all rows after the header.
func (m Matrix) Body() [][]string {
	if len(m) < 2 {
		return nil
	}
	return m[1:]
}

// PadRow returns row extended with empty cells up to width. The input slice
// is never mutated; a padded copy is returned when growth is needed.
func PadRow(row []string, width int) []string {
	if len(row) >= width {
		return row
	}
	out := make([]string, width)
	copy(out, row)
	return out
}

// headerIndex builds a name -> first-index map over a header row.
// The first occurrence wins on duplicate names.
func headerIndex(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.TrimSpace(h)
		if _, ok := idx[name]; !ok {
			idx[name] = i
		}
	}
	return idx
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}
