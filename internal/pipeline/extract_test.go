package pipeline

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/knagasawa/bidsheet/internal/event"
	"github.com/knagasawa/bidsheet/internal/extract"
	"github.com/knagasawa/bidsheet/internal/table"
	"github.com/knagasawa/bidsheet/internal/tenant"
)

// stubCenters serves fixed configs from memory.
type stubCenters struct {
	configs map[string]*tenant.Config
}

func (s stubCenters) Load(_ context.Context, id string) (*tenant.Config, error) {
	cfg, ok := s.configs[id]
	if !ok {
		return nil, fmt.Errorf("center %q: %w", id, tenant.ErrNotFound)
	}
	return cfg, nil
}

// stubAnalyzer returns canned tables per document index.
type stubAnalyzer struct {
	results [][]extract.Table
	errs    []error
	calls   int
}

func (s *stubAnalyzer) AnalyzeLayout(_ context.Context, _ []byte) ([]extract.Table, error) {
	i := s.calls
	s.calls++
	var err error
	if i < len(s.errs) {
		err = s.errs[i]
	}
	if err != nil {
		return nil, err
	}
	if i < len(s.results) {
		return s.results[i], nil
	}
	return nil, nil
}

func bidTable(header []string, rows ...[]string) []extract.Table {
	var cells []extract.Cell
	for c, h := range header {
		cells = append(cells, extract.Cell{Row: 0, Col: c, Content: h})
	}
	for r, row := range rows {
		for c, v := range row {
			cells = append(cells, extract.Cell{Row: r + 1, Col: c, Content: v})
		}
	}
	return []extract.Table{{Cells: cells}}
}

func TestExtractorRunFullPipeline(t *testing.T) {
	centers := stubCenters{configs: map[string]*tenant.Config{
		"nishi": {
			ID:          "nishi",
			DisplayName: "西センター",
			Headers:     tenant.Headers{NeedColumns: []string{"品名", "メーカー", "成分表", "見本"}},
		},
	}}
	analyzer := &stubAnalyzer{results: [][]extract.Table{
		bidTable(
			[]string{"品名", "メーカー", "銘柄・条件"},
			[]string{"パン", "A社", "成分表提出"},
			[]string{"牛乳", "B社", "見本"},
		),
	}}

	e := &Extractor{Centers: centers, Analyzer: analyzer}
	rec := &event.Recorder{}

	res, err := e.Run(context.Background(), ExtractRequest{
		CenterID:  "nishi",
		SheetKind: SheetBid,
		Documents: []Document{{Name: "scan.pdf", Data: []byte("x")}},
		Reference: &Document{Name: "ref.csv", Data: []byte("品名,数量\nコッペパン,5\n")},
	}, rec)
	require.NoError(t, err)

	// Flags derived, then projected onto needColumns.
	require.NotNil(t, res.Normalized)
	assert.Equal(t, []string{"品名", "メーカー", "成分表", "見本"}, res.Normalized.Header())
	assert.Equal(t, []string{"パン", "A社", table.MarkYes, table.MarkNone}, res.Normalized[1])

	// Reference merged against the normalized table, 品名 collides.
	require.NotNil(t, res.Combined)
	assert.Equal(t, []string{"品名", "数量", "品名_OCR", "メーカー", "成分表", "見本"}, res.Combined.Headers)
	require.Len(t, res.Combined.Rows, 2)
	assert.Equal(t, []string{"コッペパン", "5", "パン", "A社", table.MarkYes, table.MarkNone}, res.Combined.Rows[0])
	assert.Equal(t, []string{"", "", "牛乳", "B社", table.MarkNone, table.MarkSample}, res.Combined.Rows[1])

	// Selections need 商品CD which this table lacks.
	assert.Empty(t, res.Selections)

	kinds := rec.Kinds()
	assert.Contains(t, kinds, "ref_table")
	assert.Contains(t, kinds, "ocr_table")
	assert.Contains(t, kinds, "normalized_table")
	assert.Contains(t, kinds, "combined_table")
	assert.Contains(t, kinds, "selections")
}

func TestExtractorContinuesAfterPerDocumentFailure(t *testing.T) {
	analyzer := &stubAnalyzer{
		errs: []error{errors.New("blurry scan"), nil},
		results: [][]extract.Table{
			nil,
			bidTable([]string{"品名"}, []string{"パン"}),
		},
	}
	e := &Extractor{Centers: stubCenters{}, Analyzer: analyzer}
	rec := &event.Recorder{}

	res, err := e.Run(context.Background(), ExtractRequest{
		CenterID:  "none",
		Documents: []Document{{Name: "bad.pdf"}, {Name: "good.pdf"}},
	}, rec)
	require.NoError(t, err)

	assert.Equal(t, 2, analyzer.calls)
	assert.Equal(t, table.Matrix{{"品名"}, {"パン"}}, res.Processed)

	var ocrErrors []event.ErrorEvent
	for _, ev := range rec.Events {
		if ev.Kind == event.KindError {
			ocrErrors = append(ocrErrors, ev.Data.(event.ErrorEvent))
		}
	}
	require.Len(t, ocrErrors, 1)
	assert.Equal(t, extract.CodeFailure, ocrErrors[0].Code)
}

func TestExtractorStopsBatchOnCredentialsError(t *testing.T) {
	analyzer := &stubAnalyzer{errs: []error{extract.ErrCredentialsMissing}}
	e := &Extractor{Centers: stubCenters{}, Analyzer: analyzer}
	rec := &event.Recorder{}

	res, err := e.Run(context.Background(), ExtractRequest{
		CenterID:  "none",
		Documents: []Document{{Name: "a.pdf"}, {Name: "b.pdf"}, {Name: "c.pdf"}},
	}, rec)
	require.NoError(t, err)

	assert.Equal(t, 1, analyzer.calls, "remaining documents must not be analyzed")

	// Fallback matrix lists the file names.
	assert.Equal(t, table.Matrix{
		{extract.FallbackHeader},
		{"a.pdf"},
		{"b.pdf"},
		{"c.pdf"},
	}, res.Processed)
}

func TestExtractorMissingAnalyzerIsFatalPerBatch(t *testing.T) {
	e := &Extractor{Centers: stubCenters{}}
	rec := &event.Recorder{}

	_, err := e.Run(context.Background(), ExtractRequest{
		CenterID:  "none",
		Documents: []Document{{Name: "a.pdf"}},
	}, rec)
	require.NoError(t, err)

	found := false
	for _, ev := range rec.Events {
		if ev.Kind == event.KindError && ev.Data.(event.ErrorEvent).Code == extract.CodeCapabilityMissing {
			found = true
		}
	}
	assert.True(t, found)
}

func TestExtractorUnparseableReferenceDegrades(t *testing.T) {
	analyzer := &stubAnalyzer{results: [][]extract.Table{bidTable([]string{"品名"}, []string{"パン"})}}
	e := &Extractor{Centers: stubCenters{}, Analyzer: analyzer}

	res, err := e.Run(context.Background(), ExtractRequest{
		CenterID:  "none",
		Documents: []Document{{Name: "a.pdf"}},
		Reference: &Document{Name: "ref.xlsx", Data: []byte("not a workbook")},
	}, &event.Recorder{})
	require.NoError(t, err)

	assert.Nil(t, res.Reference)
	assert.Nil(t, res.Combined)
	assert.Equal(t, table.Matrix{{"品名"}, {"パン"}}, res.Processed)
}

func TestExtractorSkipsUnsupportedDocumentFormats(t *testing.T) {
	analyzer := &stubAnalyzer{results: [][]extract.Table{bidTable([]string{"品名"}, []string{"パン"})}}
	e := &Extractor{Centers: stubCenters{}, Analyzer: analyzer}
	rec := &event.Recorder{}

	res, err := e.Run(context.Background(), ExtractRequest{
		CenterID:  "none",
		Documents: []Document{{Name: "notes.docx"}, {Name: "scan.pdf"}},
	}, rec)
	require.NoError(t, err)

	assert.Equal(t, 1, analyzer.calls, "only the supported document is analyzed")
	assert.Equal(t, table.Matrix{{"品名"}, {"パン"}}, res.Processed)

	var skips []event.ErrorEvent
	for _, ev := range rec.Events {
		if ev.Kind == event.KindError {
			skips = append(skips, ev.Data.(event.ErrorEvent))
		}
	}
	require.Len(t, skips, 1)
	assert.Equal(t, "notes.docx", skips[0].Detail)
}

func TestExtractorNoFlagsForNonBidSheets(t *testing.T) {
	analyzer := &stubAnalyzer{results: [][]extract.Table{bidTable([]string{"品名"}, []string{"パン"})}}
	e := &Extractor{Centers: stubCenters{}, Analyzer: analyzer}

	res, err := e.Run(context.Background(), ExtractRequest{
		CenterID:  "none",
		SheetKind: "納品書",
		Documents: []Document{{Name: "a.pdf"}},
	}, &event.Recorder{})
	require.NoError(t, err)

	assert.Equal(t, []string{"品名"}, res.Processed.Header())
}
