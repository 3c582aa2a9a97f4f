package publish

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"golang.org/x/sync/errgroup"

	"github.com/knagasawa/bidsheet/internal/event"
)

// CanonicalSheet is the sheet every output document writes its combined
// table to.
const CanonicalSheet = "OCR出力"

// EmptyGroup is the sheet title for rows whose grouping cell is blank.
const EmptyGroup = "(空)"

// Options selects the creation tiers and write behavior of one publisher.
type Options struct {
	// TemplateID enables the template-copy tier when non-empty.
	TemplateID string
	// FolderID files the created document into a folder when non-empty.
	FolderID string
	// ForceGenericCreate skips the native-create tier.
	ForceGenericCreate bool
	// GroupParallelism bounds concurrent per-group sheet writes. Zero or one
	// keeps the writes sequential.
	GroupParallelism int
}

// Job is one publication request.
type Job struct {
	Title   string
	Headers []string
	Rows    [][]string
	// GroupColumn is the index of the grouping column, or -1 to disable the
	// per-group fan-out.
	GroupColumn int
}

// Result identifies the created document.
type Result struct {
	DocumentID string
	Title      string
	URL        string
}

// Publisher creates one output document and writes the table into it,
// falling back through creation tiers and retrying transient host failures.
type Publisher struct {
	host    DocumentHost
	backoff Backoff
	sink    event.Sink
	logger  *slog.Logger
	opts    Options
}

func NewPublisher(host DocumentHost, backoff Backoff, sink event.Sink, logger *slog.Logger, opts Options) *Publisher {
	if sink == nil {
		sink = event.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{host: host, backoff: backoff, sink: sink, logger: logger, opts: opts}
}

// Publish acquires a document (template copy, then native create, then
// generic file create), writes the header and body, and fans out per-group
// sheets when a group column is set. A failure after the document exists
// surfaces the error without deleting the document; partial output is for
// the operator to inspect or clean up.
func (p *Publisher) Publish(ctx context.Context, job Job) (Result, error) {
	id, usedTemplate, err := p.acquireDocument(ctx, job.Title)
	if err != nil {
		return Result{}, err
	}
	p.sink.Debug(fmt.Sprintf("[PUBLISH] document created id=%s", id))

	if p.opts.FolderID != "" && !usedTemplate {
		if err := p.backoff.Do(ctx, "drive.move", func(ctx context.Context) error {
			return p.host.MoveToFolder(ctx, id, p.opts.FolderID)
		}); err != nil {
			// Best effort; the document is usable wherever it landed.
			p.sink.Debug(fmt.Sprintf("[WARN] move folder failed %v", err))
			p.logger.Warn("publish.move_folder_failed", "doc_id", id, "error", err)
		} else {
			p.sink.Debug(fmt.Sprintf("[PUBLISH] moved to folder %s", p.opts.FolderID))
		}
	}

	if err := p.writeTable(ctx, id, CanonicalSheet, job.Headers, job.Rows, "values.update"); err != nil {
		return Result{}, err
	}

	if job.GroupColumn >= 0 && len(job.Headers) > 0 && len(job.Rows) > 0 {
		p.writeGroupSheets(ctx, id, job)
	} else {
		p.sink.Debug(fmt.Sprintf("[PUBLISH] group fan-out skipped groupColumn=%d", job.GroupColumn))
	}

	p.sink.Progress("finalize")
	p.sink.Debug(fmt.Sprintf("[PUBLISH] values written headers=%d rows=%d", len(job.Headers), len(job.Rows)))
	return Result{DocumentID: id, Title: job.Title, URL: p.host.DocumentURL(id)}, nil
}

// acquireDocument walks the creation tiers and stops at the first success.
func (p *Publisher) acquireDocument(ctx context.Context, title string) (id string, usedTemplate bool, err error) {
	if p.opts.TemplateID != "" {
		p.sink.Progress("copy_template")
		id, err = DoValue(ctx, p.backoff, "drive.files.copy", func(ctx context.Context) (string, error) {
			return p.host.CopyTemplate(ctx, p.opts.TemplateID, title, p.opts.FolderID)
		})
		if err == nil {
			p.sink.Debug(fmt.Sprintf("[TEMPLATE] copied id=%s", id))
			return id, true, nil
		}
		p.sink.Debug(fmt.Sprintf("[TEMPLATE][ERROR] copy failed %v", err))
		p.logger.Warn("publish.template_copy_failed", "template_id", p.opts.TemplateID, "error", err)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", false, ctxErr
		}
	}

	if !p.opts.ForceGenericCreate {
		p.sink.Progress("sheets_create")
		id, err = DoValue(ctx, p.backoff, "sheets.create", func(ctx context.Context) (string, error) {
			return p.host.CreateNative(ctx, title, CanonicalSheet)
		})
		if err == nil {
			return id, false, nil
		}
		p.sink.Debug(fmt.Sprintf("[PUBLISH] sheets.create failed status=%d will fallback drive", StatusOf(err)))
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", false, ctxErr
		}
	}

	if p.opts.ForceGenericCreate {
		p.sink.Progress("drive_create(force)")
	} else {
		p.sink.Progress("drive_create")
	}
	id, err = DoValue(ctx, p.backoff, "drive.files.create", func(ctx context.Context) (string, error) {
		return p.host.CreateGenericFile(ctx, title, p.opts.FolderID)
	})
	if err != nil {
		p.sink.Debug(fmt.Sprintf("[FALLBACK-FAIL] drive.files.create %v", err))
		return "", false, fmt.Errorf("create document: %w", err)
	}
	p.sink.Debug(fmt.Sprintf("[PUBLISH] drive.files.create id=%s", id))

	if renameErr := p.backoff.Do(ctx, "sheets.batchUpdate.rename", func(ctx context.Context) error {
		return p.host.RenameDefaultSheet(ctx, id, CanonicalSheet)
	}); renameErr != nil {
		p.sink.Debug(fmt.Sprintf("[WARN] rename initial sheet failed %v", renameErr))
		p.logger.Warn("publish.rename_sheet_failed", "doc_id", id, "error", renameErr)
	}
	return id, false, nil
}

// writeTable writes the header to row 1 and the body starting at row 2 of
// one sheet. The header range spans exactly the header's column count.
func (p *Publisher) writeTable(ctx context.Context, id, sheet string, headers []string, rows [][]string, stagePrefix string) error {
	if len(headers) > 0 {
		if sheet == CanonicalSheet {
			p.sink.Progress("write_headers")
		}
		headerRange, err := headerRange(len(headers))
		if err != nil {
			return err
		}
		if err := p.backoff.Do(ctx, stagePrefix+".headers", func(ctx context.Context) error {
			return p.host.WriteRange(ctx, id, sheet, headerRange, [][]string{headers})
		}); err != nil {
			return fmt.Errorf("write headers: %w", err)
		}
	}
	if len(rows) > 0 {
		if sheet == CanonicalSheet {
			p.sink.Progress("write_rows")
		}
		if err := p.backoff.Do(ctx, stagePrefix+".rows", func(ctx context.Context) error {
			return p.host.WriteRange(ctx, id, sheet, "A2", rows)
		}); err != nil {
			return fmt.Errorf("write rows: %w", err)
		}
	}
	return nil
}

// writeGroupSheets partitions rows by the grouping column and writes each
// partition to its own sheet. Sheets are added in one batched call; group
// write failures are reported per group and do not fail the publish.
func (p *Publisher) writeGroupSheets(ctx context.Context, id string, job Job) {
	p.sink.Progress("group_rows")

	titles, groups := partitionRows(job.Rows, job.GroupColumn)
	if len(titles) == 0 {
		return
	}

	if err := p.backoff.Do(ctx, "sheets.batchUpdate.addSheet", func(ctx context.Context) error {
		return p.host.AddSheets(ctx, id, titles)
	}); err != nil {
		p.sink.Debug(fmt.Sprintf("[WARN] group sheet creation failed %v", err))
		p.logger.Warn("publish.add_sheets_failed", "doc_id", id, "error", err)
		return
	}

	limit := p.opts.GroupParallelism
	if limit < 1 {
		limit = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for _, title := range titles {
		rows := groups[title]
		g.Go(func() error {
			p.sink.Progress("maker_sheet:" + title)
			if err := p.writeTable(gctx, id, title, job.Headers, rows, "values.update.group"); err != nil {
				p.sink.Error(event.ErrorEvent{
					Stage:   "group_sheet",
					Message: fmt.Sprintf("シート %q への書き込みに失敗しました", title),
					Detail:  err.Error(),
					Status:  StatusOf(err),
				})
				p.logger.Warn("publish.group_write_failed", "doc_id", id, "sheet", title, "error", err)
			}
			// Group failures are visible but never abort the sibling groups.
			return nil
		})
	}
	_ = g.Wait()
	p.sink.Debug(fmt.Sprintf("[PUBLISH] group sheets written count=%d", len(titles)))
}

// partitionRows splits rows by the trimmed value of the group column,
// preserving first-appearance order. Blank cells fall into EmptyGroup.
// Returned titles are sanitized sheet names; distinct raw values that
// sanitize to the same title share one sheet.
func partitionRows(rows [][]string, col int) ([]string, map[string][][]string) {
	var titles []string
	groups := make(map[string][][]string)
	for _, row := range rows {
		key := ""
		if col < len(row) {
			key = strings.TrimSpace(row[col])
		}
		title := SanitizeSheetTitle(key)
		if _, ok := groups[title]; !ok {
			titles = append(titles, title)
		}
		groups[title] = append(groups[title], row)
	}
	return titles, groups
}

// SanitizeSheetTitle makes a grouping value usable as a sheet name: at most
// 90 runes, no characters the host rejects, never empty.
func SanitizeSheetTitle(v string) string {
	runes := []rune(v)
	if len(runes) > 90 {
		runes = []rune(string(runes[:90]))
	}
	s := strings.Map(func(r rune) rune {
		switch r {
		case '\\', '/', '?', '*', '[', ']':
			return ' '
		}
		return r
	}, string(runes))
	s = strings.TrimSpace(s)
	if s == "" {
		return EmptyGroup
	}
	return s
}

// Health creates a probe document and deletes it straight away, verifying
// credentials and API reachability end to end.
func (p *Publisher) Health(ctx context.Context) error {
	title := fmt.Sprintf("health-check-%d", time.Now().Unix())
	id, err := DoValue(ctx, p.backoff, "sheets.create", func(ctx context.Context) (string, error) {
		return p.host.CreateNative(ctx, title, CanonicalSheet)
	})
	if err != nil {
		return fmt.Errorf("health create: %w", err)
	}
	if err := p.backoff.Do(ctx, "drive.files.delete", func(ctx context.Context) error {
		return p.host.DeleteDocument(ctx, id)
	}); err != nil {
		return fmt.Errorf("health delete: %w", err)
	}
	return nil
}

// headerRange is the A1 range covering n header columns on row 1.
func headerRange(n int) (string, error) {
	last, err := excelize.ColumnNumberToName(n)
	if err != nil {
		return "", fmt.Errorf("header range for %d columns: %w", n, err)
	}
	return fmt.Sprintf("A1:%s1", last), nil
}
