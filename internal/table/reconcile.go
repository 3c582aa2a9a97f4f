package table

// OCRSuffix disambiguates source columns whose name collides with a
// reference column.
const OCRSuffix = "_OCR"

// Combined is the result of merging a reference table with an OCR-derived
// table: the reference columns on the left, the source columns on the right.
type Combined struct {
	Headers []string
	Rows    [][]string
}

// Reconcile merges ref and src into one combined table. The reference header
// is the base; every source header is appended after it, renamed with
// OCRSuffix when the name is already taken. Rows are aligned purely by index
// — the two inputs are assumed to share physical ordering (same bid items in
// the same order) and no value-based matching is attempted. Downstream
// consumers rely on that positional contract. The row count is the longer of
// the two bodies; the shorter side contributes empty cells.
//
// Reconcile never fails: short rows are padded, long rows are clipped to
// their side's header width, and a nil input behaves as an empty table.
func Reconcile(ref, src Matrix) Combined {
	refHeader := append([]string(nil), ref.Header()...)
	srcHeader := src.Header()

	seen := make(map[string]struct{}, len(refHeader)+len(srcHeader))
	for _, h := range refHeader {
		seen[h] = struct{}{}
	}

	combined := refHeader
	for _, h := range srcHeader {
		name := h
		if _, taken := seen[name]; taken {
			name = h + OCRSuffix
		}
		seen[h] = struct{}{}
		seen[name] = struct{}{}
		combined = append(combined, name)
	}

	refBody := ref.Body()
	srcBody := src.Body()
	count := len(refBody)
	if len(srcBody) > count {
		count = len(srcBody)
	}

	rows := make([][]string, 0, count)
	for i := 0; i < count; i++ {
		row := make([]string, 0, len(combined))
		row = append(row, sideCells(refBody, i, len(refHeader))...)
		row = append(row, sideCells(srcBody, i, len(srcHeader))...)
		rows = append(rows, row)
	}
	return Combined{Headers: combined, Rows: rows}
}

// sideCells returns row i of body clipped and padded to width.
func sideCells(body [][]string, i, width int) []string {
	out := make([]string, width)
	if i < len(body) {
		copy(out, body[i])
	}
	return out
}
