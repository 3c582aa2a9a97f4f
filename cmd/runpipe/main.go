package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/xuri/excelize/v2"

	"github.com/knagasawa/bidsheet/internal/common"
	"github.com/knagasawa/bidsheet/internal/event"
	"github.com/knagasawa/bidsheet/internal/extract"
	"github.com/knagasawa/bidsheet/internal/pipeline"
	"github.com/knagasawa/bidsheet/internal/tenant"
)

// runpipe runs the extraction pipeline offline and writes the resulting
// table to a local workbook, without touching the spreadsheet host.
func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	center := flag.String("center", "default", "center id")
	sheet := flag.String("sheet", pipeline.SheetBid, "document kind")
	ref := flag.String("ref", "", "reference workbook or CSV path")
	out := flag.String("out", "output.xlsx", "output workbook path")
	flag.Parse()

	if flag.NArg() == 0 {
		logger.Error("usage", "cmd", "runpipe [flags] <document>...")
		os.Exit(2)
	}

	_ = godotenv.Load()
	cfg := common.LoadConfig()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	centers, err := tenant.NewFileProvider(cfg.Centers.Dir, cfg.Centers.CacheMax)
	if err != nil {
		logger.Error("center configs", "error", err)
		os.Exit(1)
	}

	var analyzer extract.Analyzer
	if azure, err := extract.NewAzureClient(cfg.Azure.Endpoint, cfg.Azure.Key, nil, logger); err != nil {
		logger.Warn("document analysis disabled", "error", err)
	} else {
		analyzer = azure
	}

	req := pipeline.ExtractRequest{CenterID: *center, SheetKind: *sheet}
	for _, path := range flag.Args() {
		data, err := os.ReadFile(path)
		if err != nil {
			logger.Error("read document", "path", path, "error", err)
			os.Exit(1)
		}
		req.Documents = append(req.Documents, pipeline.Document{Name: path, Data: data})
	}
	if *ref != "" {
		data, err := os.ReadFile(*ref)
		if err != nil {
			logger.Error("read reference", "path", *ref, "error", err)
			os.Exit(1)
		}
		req.Reference = &pipeline.Document{Name: *ref, Data: data}
	}

	e := &pipeline.Extractor{Centers: centers, Analyzer: analyzer, Logger: logger}

	start := time.Now()
	res, err := e.Run(ctx, req, event.Logger{Log: logger})
	if err != nil {
		logger.Error("extraction failed", "error", err, "duration_ms", time.Since(start).Milliseconds())
		os.Exit(1)
	}

	headers, rows := resultTable(res)
	if err := writeWorkbook(*out, headers, rows); err != nil {
		logger.Error("write workbook", "path", *out, "error", err)
		os.Exit(1)
	}

	logger.Info("extraction OK",
		"documents", len(req.Documents),
		"columns", len(headers),
		"rows", len(rows),
		"out", *out,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

// resultTable prefers the reconciled table, then the normalized one, then
// the raw processed matrix.
func resultTable(res pipeline.ExtractResult) ([]string, [][]string) {
	switch {
	case res.Combined != nil:
		return res.Combined.Headers, res.Combined.Rows
	case res.Normalized != nil:
		return res.Normalized.Header(), res.Normalized.Body()
	default:
		return res.Processed.Header(), res.Processed.Body()
	}
}

func writeWorkbook(path string, headers []string, rows [][]string) error {
	f := excelize.NewFile()
	defer f.Close()

	const sheetName = "OCR出力"
	if err := f.SetSheetName(f.GetSheetName(0), sheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	writeRow := func(rowIdx int, cells []string) error {
		addr, err := excelize.CoordinatesToCellName(1, rowIdx)
		if err != nil {
			return err
		}
		values := make([]any, len(cells))
		for i, c := range cells {
			values[i] = c
		}
		return f.SetSheetRow(sheetName, addr, &values)
	}

	if err := writeRow(1, headers); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, row := range rows {
		if err := writeRow(i+2, row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}
	return f.SaveAs(path)
}
