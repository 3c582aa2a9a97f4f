// Package pipeline wires the stages of one run: layout analysis, flag
// derivation, projection, reconciliation and publication. Stages are pure
// except publication; every stage reports onto the run's event sink.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/knagasawa/bidsheet/constants"
	"github.com/knagasawa/bidsheet/internal/event"
	"github.com/knagasawa/bidsheet/internal/extract"
	"github.com/knagasawa/bidsheet/internal/refparse"
	"github.com/knagasawa/bidsheet/internal/table"
	"github.com/knagasawa/bidsheet/internal/tenant"
)

// SheetBid marks the bid-sheet document kind, the one that gets flag
// derivation.
const SheetBid = "入札書"

// Preview limits for table events; full tables can run to thousands of rows
// and the stream only needs enough for the client to render.
const (
	previewRef        = 150
	previewOCR        = 300
	previewNormalized = 500
	previewCombined   = 500
	previewSelections = 50
)

// Document is one uploaded file.
type Document struct {
	Name string
	Data []byte
}

// ExtractRequest is the input of the extraction half of the pipeline.
type ExtractRequest struct {
	CenterID  string
	SheetKind string
	Documents []Document
	Reference *Document
}

// ExtractResult carries every intermediate the client or a later publish
// call may need.
type ExtractResult struct {
	Reference  table.Matrix
	Processed  table.Matrix
	Normalized table.Matrix
	Combined   *table.Combined
	Selections []table.Selection
}

// TablePayload is the headers/rows shape emitted for normalized and
// combined tables.
type TablePayload struct {
	Headers []string   `json:"headers"`
	Rows    [][]string `json:"rows"`
}

// Extractor runs the analysis-and-reconciliation stages.
type Extractor struct {
	Centers  tenant.Provider
	Analyzer extract.Analyzer
	Logger   *slog.Logger
}

func (e *Extractor) logger() *slog.Logger {
	if e.Logger == nil {
		return slog.Default()
	}
	return e.Logger
}

// Run executes extraction for one batch. Per-document analysis failures are
// reported and skipped; capability or credential failures stop the remaining
// documents. Run itself only fails on cancellation.
func (e *Extractor) Run(ctx context.Context, req ExtractRequest, sink event.Sink) (ExtractResult, error) {
	if sink == nil {
		sink = event.Nop{}
	}
	var res ExtractResult

	sink.Debug(fmt.Sprintf("[STEP1] start center=%s sheet=%s", req.CenterID, req.SheetKind))
	sink.Debug(fmt.Sprintf("[STEP1] files=%d ref=%s", len(req.Documents), refName(req.Reference)))

	cfg := e.loadCenter(ctx, req.CenterID, sink)

	res.Reference = e.parseReference(req.Reference, sink)

	matrix, err := e.analyzeBatch(ctx, req.Documents, sink)
	if err != nil {
		return res, err
	}

	res.Processed = matrix
	if req.SheetKind == SheetBid {
		res.Processed = table.DeriveFlags(matrix)
	}
	sink.Table("ocr_table", previewMatrix(res.Processed, previewOCR))

	if cfg != nil && len(cfg.Headers.NeedColumns) > 0 && len(res.Processed) > 0 {
		res.Normalized = table.Project(res.Processed, cfg.Headers.NeedColumns)
		sink.Table("normalized_table", TablePayload{
			Headers: res.Normalized.Header(),
			Rows:    previewRows(res.Normalized.Body(), previewNormalized),
		})
		sink.Debug(fmt.Sprintf("[NORMALIZE] generated cols=%d rows=%d",
			len(res.Normalized.Header()), len(res.Normalized.Body())))
	}

	if len(res.Reference) > 0 {
		src := res.Normalized
		if src == nil {
			src = res.Processed
		}
		combined := table.Reconcile(res.Reference, src)
		res.Combined = &combined
		sink.Table("combined_table", TablePayload{
			Headers: combined.Headers,
			Rows:    previewRows(combined.Rows, previewCombined),
		})
		sink.Debug(fmt.Sprintf("[COMBINED] refCols=%d totalCols=%d rows=%d",
			len(res.Reference.Header()), len(combined.Headers), len(combined.Rows)))
	}

	res.Selections = table.BuildSelections(res.Processed)
	sink.Table("selections", previewSelectionList(res.Selections, previewSelections))

	centerName := ""
	if cfg != nil {
		centerName = cfg.DisplayName
	}
	sink.Table("calculation_complete", mockCalculation(res.Selections, centerName))

	sink.Debug("[STEP1] done")
	return res, nil
}

// CalculationComplete is the catalog-lookup payload closing an extraction
// stream. Until per-center catalogs exist the maker data is a single mock
// maker assembled from the selections.
type CalculationComplete struct {
	MakerData   map[string][][]string `json:"maker_data"`
	MakerCDs    map[string][]string   `json:"maker_cds"`
	Flags       [][]string            `json:"flags"`
	CenterName  string                `json:"center_name"`
	CenterMonth string                `json:"center_month"`
}

func mockCalculation(selections []table.Selection, centerName string) CalculationComplete {
	const makerKey = "MOCKメーカー"
	cds := make([]string, len(selections))
	data := make([][]string, len(selections))
	flags := make([][]string, len(selections))
	for i, s := range selections {
		cds[i] = fmt.Sprintf("CD%03d", i+1)
		data[i] = []string{makerKey, s.ProductCode, "規格X", ""}
		flags[i] = []string{makerKey, cds[i], s.SpecSheet, s.Sample}
	}
	return CalculationComplete{
		MakerData:  map[string][][]string{makerKey: data},
		MakerCDs:   map[string][]string{makerKey: cds},
		Flags:      flags,
		CenterName: centerName,
	}
}

func (e *Extractor) loadCenter(ctx context.Context, centerID string, sink event.Sink) *tenant.Config {
	cfg, err := e.Centers.Load(ctx, centerID)
	if err != nil {
		if errors.Is(err, tenant.ErrNotFound) {
			sink.Debug(fmt.Sprintf("[WARN] center config not found: %s", centerID))
		} else {
			sink.Debug(fmt.Sprintf("[WARN] center config load failed: %v", err))
			e.logger().Warn("pipeline.center_config_failed", "center_id", centerID, "error", err)
		}
		return nil
	}
	sink.Debug(fmt.Sprintf("[CFG] needColumns=%s", strings.Join(cfg.Headers.NeedColumns, ",")))
	return cfg
}

// parseReference turns the optional reference upload into a matrix. Failures
// degrade to "no reference table"; the pipeline continues with source-only
// data.
func (e *Extractor) parseReference(ref *Document, sink event.Sink) table.Matrix {
	if ref == nil {
		return nil
	}
	sink.Debug(fmt.Sprintf("[REF] parse %s", ref.Name))
	m, err := refparse.Parse(ref.Name, ref.Data)
	if err != nil {
		sink.Debug(fmt.Sprintf("[REF][ERROR] %v", err))
		e.logger().Warn("pipeline.ref_parse_failed", "file", ref.Name, "error", err)
		return nil
	}
	sink.Table("ref_table", previewMatrix(m, previewRef))
	return m
}

// analyzeBatch runs layout analysis over every document, accumulating the
// recognized tables. The returned error is only ever a context error.
func (e *Extractor) analyzeBatch(ctx context.Context, docs []Document, sink event.Sink) (table.Matrix, error) {
	acc := extract.NewAccumulator()

	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if !constants.SupportedDocument(doc.Name) {
			sink.Error(event.ErrorEvent{
				Stage:   "ocr",
				Code:    extract.CodeFailure,
				Message: "未対応のファイル形式です",
				Detail:  doc.Name,
			})
			continue
		}
		sink.Debug(fmt.Sprintf("[OCR] analyze %s", doc.Name))

		if e.Analyzer == nil {
			sink.Error(event.ErrorEvent{
				Stage:   "ocr",
				Code:    extract.CodeCapabilityMissing,
				Message: "文書解析サービスが構成されていません",
			})
			break
		}

		tables, err := e.Analyzer.AnalyzeLayout(ctx, doc.Data)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			code := extract.CodeFor(err)
			sink.Error(event.ErrorEvent{
				Stage:   "ocr",
				Code:    code,
				Message: analyzeErrorMessage(code),
				Detail:  err.Error(),
			})
			e.logger().Warn("pipeline.analyze_failed", "file", doc.Name, "code", code, "error", err)
			if extract.Fatal(err) {
				// The remaining documents would fail the same way.
				break
			}
			continue
		}
		acc.AddDocument(tables, doc.Name)
	}

	matrix := acc.Matrix()
	if len(matrix) == 0 {
		matrix = table.Matrix{{extract.FallbackHeader}}
		for _, doc := range docs {
			matrix = append(matrix, []string{doc.Name})
		}
	}
	return matrix, nil
}

func analyzeErrorMessage(code string) string {
	switch code {
	case extract.CodeCapabilityMissing:
		return "文書解析サービスが利用できません"
	case extract.CodeCredentialsMissing:
		return "文書解析サービスの資格情報が設定されていません"
	default:
		return "OCR 処理に失敗しました"
	}
}

func refName(ref *Document) string {
	if ref == nil {
		return "none"
	}
	return ref.Name
}

func previewMatrix(m table.Matrix, n int) table.Matrix {
	if len(m) <= n {
		return m
	}
	return m[:n]
}

func previewRows(rows [][]string, n int) [][]string {
	if len(rows) <= n {
		return rows
	}
	return rows[:n]
}

func previewSelectionList(sel []table.Selection, n int) []table.Selection {
	if len(sel) <= n {
		return sel
	}
	return sel[:n]
}

