package extract

import (
	"strings"

	"github.com/knagasawa/bidsheet/internal/table"
)

// FallbackHeader is the single-column header used when a document yields no
// tables at all; its rows carry the file names so the run still produces
// something inspectable.
const FallbackHeader = "ファイル"

// Accumulator folds per-document analysis results into one matrix. Scanned
// batches repeat the same printed header on every page, so an identical
// header row is emitted only once across the batch.
type Accumulator struct {
	matrix      table.Matrix
	headersSeen map[string]struct{}
}

func NewAccumulator() *Accumulator {
	return &Accumulator{headersSeen: make(map[string]struct{})}
}

// AddDocument appends the first table of one analyzed document. Cells are
// placed by their reported coordinates; row 0 is the header. When the
// document has no tables the file name is recorded under FallbackHeader.
func (a *Accumulator) AddDocument(tables []Table, fileName string) {
	if len(tables) == 0 {
		a.addFallback(fileName)
		return
	}

	header, rows := gridFromCells(tables[0].Cells)
	key := strings.Join(header, "|")
	if _, dup := a.headersSeen[key]; !dup {
		a.headersSeen[key] = struct{}{}
		a.matrix = append(a.matrix, header)
	}
	a.matrix = append(a.matrix, rows...)
}

func (a *Accumulator) addFallback(fileName string) {
	if len(a.matrix) == 0 {
		a.matrix = append(a.matrix, []string{FallbackHeader})
	}
	a.matrix = append(a.matrix, []string{fileName})
}

// Matrix returns the accumulated table. An empty batch yields nil.
func (a *Accumulator) Matrix() table.Matrix {
	return a.matrix
}

// gridFromCells lays positioned cells into a header row plus body rows.
// Coordinates may be sparse; unmentioned positions stay empty.
func gridFromCells(cells []Cell) (header []string, rows [][]string) {
	maxCol := 0
	maxRow := 0
	for _, c := range cells {
		if c.Row < 0 || c.Col < 0 {
			continue
		}
		if c.Col > maxCol {
			maxCol = c.Col
		}
		if c.Row > maxRow {
			maxRow = c.Row
		}
	}

	header = make([]string, maxCol+1)
	if maxRow > 0 {
		rows = make([][]string, maxRow)
		for i := range rows {
			rows[i] = make([]string, maxCol+1)
		}
	}

	for _, c := range cells {
		if c.Row < 0 || c.Col < 0 {
			continue
		}
		content := strings.TrimSpace(c.Content)
		if c.Row == 0 {
			header[c.Col] = content
		} else {
			rows[c.Row-1][c.Col] = content
		}
	}
	return header, rows
}
