package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// TokenSource supplies a bearer token for host calls. Credential management
// itself (service accounts, key rotation) lives outside this module.
type TokenSource func(ctx context.Context) (string, error)

const spreadsheetMimeType = "application/vnd.google-apps.spreadsheet"

// SheetsHost is the REST implementation of DocumentHost against the
// spreadsheet and file APIs of the hosting service.
type SheetsHost struct {
	sheetsBase string
	driveBase  string
	docBase    string
	token      TokenSource
	client     *http.Client
	logger     *slog.Logger
}

// NewSheetsHost builds a host against the public API endpoints. Base URLs
// are overridable for tests via the option funcs.
func NewSheetsHost(token TokenSource, client *http.Client, logger *slog.Logger, opts ...SheetsHostOption) *SheetsHost {
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	h := &SheetsHost{
		sheetsBase: "https://sheets.googleapis.com/v4",
		driveBase:  "https://www.googleapis.com/drive/v3",
		docBase:    "https://docs.google.com/spreadsheets/d",
		token:      token,
		client:     client,
		logger:     logger,
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

type SheetsHostOption func(*SheetsHost)

func WithBaseURLs(sheetsBase, driveBase, docBase string) SheetsHostOption {
	return func(h *SheetsHost) {
		h.sheetsBase = sheetsBase
		h.driveBase = driveBase
		h.docBase = docBase
	}
}

func (h *SheetsHost) CopyTemplate(ctx context.Context, templateID, title, folderID string) (string, error) {
	body := map[string]any{"name": title}
	if folderID != "" {
		body["parents"] = []string{folderID}
	}
	u := fmt.Sprintf("%s/files/%s/copy?supportsAllDrives=true&fields=id", h.driveBase, url.PathEscape(templateID))

	var out struct {
		ID string `json:"id"`
	}
	if err := h.call(ctx, http.MethodPost, u, body, &out, "drive.files.copy"); err != nil {
		return "", err
	}
	return out.ID, nil
}

func (h *SheetsHost) CreateNative(ctx context.Context, title, sheetTitle string) (string, error) {
	body := map[string]any{
		"properties": map[string]any{"title": title},
		"sheets": []any{
			map[string]any{"properties": map[string]any{"title": sheetTitle}},
		},
	}
	var out struct {
		SpreadsheetID string `json:"spreadsheetId"`
	}
	if err := h.call(ctx, http.MethodPost, h.sheetsBase+"/spreadsheets", body, &out, "sheets.create"); err != nil {
		return "", err
	}
	return out.SpreadsheetID, nil
}

func (h *SheetsHost) CreateGenericFile(ctx context.Context, title, folderID string) (string, error) {
	body := map[string]any{
		"name":     title,
		"mimeType": spreadsheetMimeType,
	}
	if folderID != "" {
		body["parents"] = []string{folderID}
	}
	var out struct {
		ID string `json:"id"`
	}
	u := h.driveBase + "/files?supportsAllDrives=true&fields=id"
	if err := h.call(ctx, http.MethodPost, u, body, &out, "drive.files.create"); err != nil {
		return "", err
	}
	return out.ID, nil
}

func (h *SheetsHost) RenameDefaultSheet(ctx context.Context, id, sheetTitle string) error {
	body := map[string]any{
		"requests": []any{
			map[string]any{
				"updateSheetProperties": map[string]any{
					"properties": map[string]any{"sheetId": 0, "title": sheetTitle},
					"fields":     "title",
				},
			},
		},
	}
	u := fmt.Sprintf("%s/spreadsheets/%s:batchUpdate", h.sheetsBase, url.PathEscape(id))
	return h.call(ctx, http.MethodPost, u, body, nil, "sheets.batchUpdate.rename")
}

func (h *SheetsHost) AddSheets(ctx context.Context, id string, titles []string) error {
	requests := make([]any, 0, len(titles))
	for _, t := range titles {
		requests = append(requests, map[string]any{
			"addSheet": map[string]any{"properties": map[string]any{"title": t}},
		})
	}
	body := map[string]any{"requests": requests}
	u := fmt.Sprintf("%s/spreadsheets/%s:batchUpdate", h.sheetsBase, url.PathEscape(id))
	return h.call(ctx, http.MethodPost, u, body, nil, "sheets.batchUpdate.addSheet")
}

func (h *SheetsHost) WriteRange(ctx context.Context, id, sheetTitle, a1Range string, values [][]string) error {
	rows := make([][]any, len(values))
	for i, r := range values {
		row := make([]any, len(r))
		for j, c := range r {
			row[j] = c
		}
		rows[i] = row
	}
	body := map[string]any{"values": rows}
	full := fmt.Sprintf("%s!%s", sheetTitle, a1Range)
	u := fmt.Sprintf("%s/spreadsheets/%s/values/%s?valueInputOption=RAW",
		h.sheetsBase, url.PathEscape(id), url.PathEscape(full))
	return h.call(ctx, http.MethodPut, u, body, nil, "values.update")
}

func (h *SheetsHost) MoveToFolder(ctx context.Context, id, folderID string) error {
	u := fmt.Sprintf("%s/files/%s?addParents=%s&supportsAllDrives=true",
		h.driveBase, url.PathEscape(id), url.QueryEscape(folderID))
	return h.call(ctx, http.MethodPatch, u, map[string]any{}, nil, "drive.files.update")
}

func (h *SheetsHost) DeleteDocument(ctx context.Context, id string) error {
	u := fmt.Sprintf("%s/files/%s?supportsAllDrives=true", h.driveBase, url.PathEscape(id))
	return h.call(ctx, http.MethodDelete, u, nil, nil, "drive.files.delete")
}

func (h *SheetsHost) DocumentURL(id string) string {
	return fmt.Sprintf("%s/%s/edit", h.docBase, url.PathEscape(id))
}

// call issues one JSON request and decodes the response into out (when
// non-nil). Non-2xx statuses become HostError so the backoff layer can
// classify them.
func (h *SheetsHost) call(ctx context.Context, method, u string, body, out any, op string) error {
	start := time.Now()

	var reader io.Reader
	if body != nil {
		bs, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode body: %w", op, err)
		}
		reader = bytes.NewReader(bs)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if h.token != nil {
		tok, err := h.token(ctx)
		if err != nil {
			return fmt.Errorf("%s: token: %w", op, err)
		}
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		h.logger.Error("host.call_error", "op", op, "error", err)
		return fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%s: read response: %w", op, err)
	}

	h.logger.Debug("host.call",
		"op", op,
		"status", resp.StatusCode,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode/100 != 2 {
		return &HostError{Status: resp.StatusCode, Op: op, Body: truncate(string(raw), 512)}
	}
	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("%s: decode response: %w", op, err)
		}
	}
	return nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "...(truncated)"
}
