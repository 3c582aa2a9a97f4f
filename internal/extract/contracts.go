// Package extract wraps the external document-analysis capability: give it
// a document's bytes, get back zero or more tables of positioned cells.
package extract

import "context"

// Cell is one recognized table cell with its grid coordinates.
type Cell struct {
	Row     int
	Col     int
	Content string
}

// Table is one recognized table.
type Table struct {
	Cells []Cell
}

// Analyzer is the layout-analysis capability. Implementations are remote
// services; construction fails fast when the capability is unavailable or
// unconfigured so a batch run can stop before touching documents.
type Analyzer interface {
	AnalyzeLayout(ctx context.Context, doc []byte) ([]Table, error)
}
