package server

import (
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/knagasawa/bidsheet/internal/common"
	"github.com/knagasawa/bidsheet/internal/pipeline"
	"github.com/knagasawa/bidsheet/internal/publish"
)

const defaultCenterID = "default"

// handleStep1 runs extraction over the uploaded documents, streaming events.
// The done event is guaranteed even when a stage fails mid-stream.
func (s *Server) handleStep1(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(s.maxUpload); err != nil {
		writeError(w, http.StatusBadRequest, "multipart の解析に失敗しました: "+err.Error())
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	centerID := r.FormValue("centerId")
	if centerID == "" {
		centerID = defaultCenterID
	}
	sheet := r.FormValue("sheet")

	if err := common.NewValidator().
		Field("centerId", centerID, common.Required, common.MaxLength(64)).
		Error(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	docs, err := readUploads(r.MultipartForm.File["file"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "ファイルの読み込みに失敗しました: "+err.Error())
		return
	}
	ref, err := readOptionalUpload(r.MultipartForm.File["refSheetFile"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "参照ファイルの読み込みに失敗しました: "+err.Error())
		return
	}

	sink := newSSESink(w, s.log)
	defer sink.Done("ステップ1完了")

	ctx := common.WithCenterID(r.Context(), centerID)
	if _, err := s.extract.Run(ctx, pipeline.ExtractRequest{
		CenterID:  centerID,
		SheetKind: sheet,
		Documents: docs,
		Reference: ref,
	}, sink); err != nil {
		// Only cancellation reaches here; stage errors are already on the stream.
		s.log.Warn("step1.aborted",
			zap.String("request_id", common.RequestIDFromContext(r.Context())),
			zap.Error(err),
		)
	}
}

type step2Request struct {
	CenterID string     `json:"centerId"`
	Headers  []string   `json:"headers"`
	Rows     [][]string `json:"rows"`
}

// handleStep2 publishes a reconciled table to the document host.
func (s *Server) handleStep2(w http.ResponseWriter, r *http.Request) {
	var req step2Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "JSON の解析に失敗しました: "+err.Error())
		return
	}
	if req.CenterID == "" {
		req.CenterID = defaultCenterID
	}
	if err := common.NewValidator().
		Field("centerId", req.CenterID, common.Required, common.MaxLength(64)).
		Error(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	sink := newSSESink(w, s.log)
	defer sink.Done("ステップ2完了")

	ctx := common.WithCenterID(r.Context(), req.CenterID)
	if _, err := s.publish.Run(ctx, pipeline.PublishRequest{
		CenterID: req.CenterID,
		Headers:  req.Headers,
		Rows:     req.Rows,
	}, sink); err != nil {
		s.log.Warn("step2.failed",
			zap.String("request_id", common.RequestIDFromContext(r.Context())),
			zap.Error(err),
		)
	}
}

type healthResponse struct {
	OK          bool     `json:"ok"`
	DurationMs  int64    `json:"durationMs"`
	Error       string   `json:"error,omitempty"`
	Category    string   `json:"category,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`
}

// handleHostHealth creates and deletes a probe document against the host.
func (s *Server) handleHostHealth(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if err := s.health.Health(r.Context()); err != nil {
		category, suggestions := publish.Categorize(err)
		writeJSON(w, http.StatusServiceUnavailable, healthResponse{
			OK:          false,
			DurationMs:  time.Since(start).Milliseconds(),
			Error:       err.Error(),
			Category:    category,
			Suggestions: suggestions,
		})
		return
	}
	writeJSON(w, http.StatusOK, healthResponse{
		OK:         true,
		DurationMs: time.Since(start).Milliseconds(),
	})
}

func readUploads(headers []*multipart.FileHeader) ([]pipeline.Document, error) {
	docs := make([]pipeline.Document, 0, len(headers))
	for _, fh := range headers {
		doc, err := readUpload(fh)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func readOptionalUpload(headers []*multipart.FileHeader) (*pipeline.Document, error) {
	if len(headers) == 0 {
		return nil, nil
	}
	doc, err := readUpload(headers[0])
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func readUpload(fh *multipart.FileHeader) (pipeline.Document, error) {
	f, err := fh.Open()
	if err != nil {
		return pipeline.Document{}, err
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return pipeline.Document{}, err
	}
	return pipeline.Document{Name: fh.Filename, Data: data}, nil
}
