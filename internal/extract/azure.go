package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

const (
	azureAPIVersion  = "2023-07-31"
	azureLayoutModel = "prebuilt-layout"
)

// AzureClient analyzes documents with the Document Intelligence layout
// model over its REST interface: submit bytes, then poll the returned
// operation until it settles.
type AzureClient struct {
	endpoint     string
	key          string
	client       *http.Client
	logger       *slog.Logger
	pollInterval time.Duration
}

// NewAzureClient validates configuration up front. An empty endpoint or key
// is a credentials error, surfaced once per batch rather than per document.
func NewAzureClient(endpoint, key string, client *http.Client, logger *slog.Logger) (*AzureClient, error) {
	if endpoint == "" || key == "" {
		return nil, ErrCredentialsMissing
	}
	if client == nil {
		client = &http.Client{Timeout: 90 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AzureClient{
		endpoint:     endpoint,
		key:          key,
		client:       client,
		logger:       logger,
		pollInterval: 1 * time.Second,
	}, nil
}

type azureAnalyzeResult struct {
	Status string `json:"status"`
	Error  *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	AnalyzeResult struct {
		Tables []struct {
			Cells []struct {
				RowIndex    int    `json:"rowIndex"`
				ColumnIndex int    `json:"columnIndex"`
				Content     string `json:"content"`
			} `json:"cells"`
		} `json:"tables"`
	} `json:"analyzeResult"`
}

func (c *AzureClient) AnalyzeLayout(ctx context.Context, doc []byte) ([]Table, error) {
	reqID := uuid.New().String()
	start := time.Now()

	opURL, err := c.submit(ctx, doc, reqID)
	if err != nil {
		return nil, err
	}

	res, err := c.poll(ctx, opURL, reqID)
	if err != nil {
		return nil, err
	}

	tables := make([]Table, 0, len(res.AnalyzeResult.Tables))
	for _, t := range res.AnalyzeResult.Tables {
		cells := make([]Cell, 0, len(t.Cells))
		for _, cl := range t.Cells {
			cells = append(cells, Cell{Row: cl.RowIndex, Col: cl.ColumnIndex, Content: cl.Content})
		}
		tables = append(tables, Table{Cells: cells})
	}

	c.logger.Info("extract.azure.ok",
		"req_id", reqID,
		"tables", len(tables),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return tables, nil
}

func (c *AzureClient) submit(ctx context.Context, doc []byte, reqID string) (string, error) {
	url := fmt.Sprintf("%s/formrecognizer/documentModels/%s:analyze?api-version=%s",
		c.endpoint, azureLayoutModel, azureAPIVersion)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(doc))
	if err != nil {
		return "", fmt.Errorf("build analyze request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("Ocp-Apim-Subscription-Key", c.key)

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Error("extract.azure.submit_error", "req_id", reqID, "error", err)
		return "", fmt.Errorf("submit document: %w", err)
	}
	defer drainClose(resp.Body, c.logger, reqID)

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return "", fmt.Errorf("analyze rejected with status %d: %w", resp.StatusCode, ErrCredentialsMissing)
	}
	if resp.StatusCode != http.StatusAccepted {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return "", fmt.Errorf("analyze submit: status %d: %s", resp.StatusCode, body)
	}

	opURL := resp.Header.Get("Operation-Location")
	if opURL == "" {
		return "", fmt.Errorf("analyze submit: missing Operation-Location header")
	}
	return opURL, nil
}

func (c *AzureClient) poll(ctx context.Context, opURL, reqID string) (*azureAnalyzeResult, error) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, opURL, nil)
		if err != nil {
			return nil, fmt.Errorf("build poll request: %w", err)
		}
		req.Header.Set("Ocp-Apim-Subscription-Key", c.key)

		resp, err := c.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("poll operation: %w", err)
		}
		raw, err := io.ReadAll(resp.Body)
		drainClose(resp.Body, c.logger, reqID)
		if err != nil {
			return nil, fmt.Errorf("read poll response: %w", err)
		}
		if resp.StatusCode/100 != 2 {
			return nil, fmt.Errorf("poll operation: status %d: %s", resp.StatusCode, raw)
		}

		var res azureAnalyzeResult
		if err := json.Unmarshal(raw, &res); err != nil {
			return nil, fmt.Errorf("decode poll response: %w", err)
		}

		switch res.Status {
		case "succeeded":
			return &res, nil
		case "failed":
			msg := "analysis failed"
			if res.Error != nil {
				msg = fmt.Sprintf("analysis failed: %s: %s", res.Error.Code, res.Error.Message)
			}
			return nil, fmt.Errorf("%s", msg)
		default:
			c.logger.Debug("extract.azure.poll", "req_id", reqID, "status", res.Status)
		}
	}
}

func drainClose(body io.ReadCloser, logger *slog.Logger, reqID string) {
	_, _ = io.Copy(io.Discard, body)
	if err := body.Close(); err != nil {
		logger.Warn("extract.azure.body_close_error", "req_id", reqID, "error", err)
	}
}
