package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/knagasawa/bidsheet/internal/event"
	"github.com/knagasawa/bidsheet/internal/publish"
	"github.com/knagasawa/bidsheet/internal/table"
	"github.com/knagasawa/bidsheet/internal/tenant"
)

// PublishRequest carries the table a client wants published.
type PublishRequest struct {
	CenterID string
	Headers  []string
	Rows     [][]string
}

// FinalURL is the terminal payload of a successful publication.
type FinalURL struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// PublishRunner resolves per-center publication settings and drives the
// publisher for one request.
type PublishRunner struct {
	Centers tenant.Provider
	Host    publish.DocumentHost
	Backoff publish.Backoff
	// Defaults apply when the center config does not override them.
	Defaults publish.Options
	Logger   *slog.Logger
	Now      func() time.Time
}

func (r *PublishRunner) logger() *slog.Logger {
	if r.Logger == nil {
		return slog.Default()
	}
	return r.Logger
}

func (r *PublishRunner) now() time.Time {
	if r.Now == nil {
		return time.Now()
	}
	return r.Now()
}

// Run publishes one table. The error return carries the already-categorized
// failure; an error event with remediation hints has been emitted by then.
func (r *PublishRunner) Run(ctx context.Context, req PublishRequest, sink event.Sink) (publish.Result, error) {
	if sink == nil {
		sink = event.Nop{}
	}

	sink.Debug(fmt.Sprintf("[STEP2] start center=%s rows=%d", req.CenterID, len(req.Rows)))

	displayName := req.CenterID
	opts := r.Defaults
	cfg, err := r.Centers.Load(ctx, req.CenterID)
	switch {
	case err == nil:
		if cfg.DisplayName != "" {
			displayName = cfg.DisplayName
		}
		if cfg.TemplateSpreadsheetID != "" {
			opts.TemplateID = cfg.TemplateSpreadsheetID
		}
	case errors.Is(err, tenant.ErrNotFound):
		sink.Debug(fmt.Sprintf("[WARN] center config not found: %s", req.CenterID))
	default:
		sink.Debug(fmt.Sprintf("[WARN] center config load failed: %v", err))
		r.logger().Warn("pipeline.center_config_failed", "center_id", req.CenterID, "error", err)
	}

	makerCol := table.DetectMakerColumn(req.Headers)
	sink.Debug(fmt.Sprintf("[STEP2] makerColIdx=%d", makerCol))

	backoff := r.Backoff
	backoff.Observe = func(stage string, attempt int, delay time.Duration, err error) {
		if err != nil && delay > 0 {
			sink.Debug(fmt.Sprintf("[RETRY][%s] attempt=%d sleep=%dms", stage, attempt, delay.Milliseconds()))
		}
	}

	pub := publish.NewPublisher(r.Host, backoff, sink, r.logger(), opts)
	job := publish.Job{
		Title:       fmt.Sprintf("%s-出力-%s", displayName, r.now().Format("2006-01-02")),
		Headers:     req.Headers,
		Rows:        req.Rows,
		GroupColumn: makerCol,
	}

	res, err := pub.Publish(ctx, job)
	if err != nil {
		category, suggestions := publish.Categorize(err)
		sink.Error(event.ErrorEvent{
			Stage:       "step2",
			Message:     err.Error(),
			Status:      publish.StatusOf(err),
			Category:    category,
			Suggestions: suggestions,
		})
		sink.Debug(fmt.Sprintf("[FATAL][STEP2] status=%d %v", publish.StatusOf(err), err))
		return publish.Result{}, err
	}

	sink.Table("final_url", FinalURL{Name: res.Title, URL: res.URL})
	sink.Debug("[STEP2] done")
	return res, nil
}
