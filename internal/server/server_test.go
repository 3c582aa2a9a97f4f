package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/knagasawa/bidsheet/internal/event"
	"github.com/knagasawa/bidsheet/internal/pipeline"
	"github.com/knagasawa/bidsheet/internal/publish"
)

type stubExtract struct {
	gotReq pipeline.ExtractRequest
	err    error
}

func (s *stubExtract) Run(_ context.Context, req pipeline.ExtractRequest, sink event.Sink) (pipeline.ExtractResult, error) {
	s.gotReq = req
	sink.Debug("[STEP1] start")
	sink.Table("ocr_table", [][]string{{"品名"}, {"パン"}})
	return pipeline.ExtractResult{}, s.err
}

type stubPublish struct {
	err error
}

func (s *stubPublish) Run(_ context.Context, _ pipeline.PublishRequest, sink event.Sink) (publish.Result, error) {
	if s.err != nil {
		sink.Error(event.ErrorEvent{Stage: "step2", Message: s.err.Error(), Status: 403})
		return publish.Result{}, s.err
	}
	sink.Table("final_url", pipeline.FinalURL{Name: "t", URL: "u"})
	return publish.Result{DocumentID: "doc-1"}, nil
}

type stubHealth struct {
	err error
}

func (s *stubHealth) Health(context.Context) error { return s.err }

func newTestServer(ext *stubExtract, pub *stubPublish, hc *stubHealth) *Server {
	if ext == nil {
		ext = &stubExtract{}
	}
	if pub == nil {
		pub = &stubPublish{}
	}
	if hc == nil {
		hc = &stubHealth{}
	}
	return New(nil, ext, pub, hc, 0)
}

// decodeFrames splits an SSE body into its event envelopes in order.
func decodeFrames(t *testing.T, body string) []envelope {
	t.Helper()
	var out []envelope
	for _, frame := range strings.Split(body, "\n\n") {
		frame = strings.TrimSpace(frame)
		if frame == "" {
			continue
		}
		require.True(t, strings.HasPrefix(frame, "data: "), "frame %q", frame)
		var env envelope
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(frame, "data: ")), &env))
		out = append(out, env)
	}
	return out
}

func multipartBody(t *testing.T, fields map[string]string, files map[string][]byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for name, data := range files {
		fw, err := mw.CreateFormFile("file", name)
		require.NoError(t, err)
		_, err = fw.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestStep1StreamsEventsAndAlwaysEndsWithDone(t *testing.T) {
	ext := &stubExtract{}
	srv := newTestServer(ext, nil, nil)

	body, contentType := multipartBody(t,
		map[string]string{"centerId": "nishi", "sheet": "入札書"},
		map[string][]byte{"scan.pdf": []byte("pdf bytes")},
	)
	req := httptest.NewRequest(http.MethodPost, "/api/step1", body)
	req.Header.Set("Content-Type", contentType)
	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "text/event-stream")
	assert.NotEmpty(t, rr.Header().Get("X-Request-Id"))

	frames := decodeFrames(t, rr.Body.String())
	require.NotEmpty(t, frames)
	assert.Equal(t, "dbg", frames[0].Event)
	assert.Equal(t, "ocr_table", frames[1].Event)
	assert.Equal(t, "done", frames[len(frames)-1].Event)
	assert.Equal(t, "ステップ1完了", frames[len(frames)-1].Data)

	assert.Equal(t, "nishi", ext.gotReq.CenterID)
	assert.Equal(t, "入札書", ext.gotReq.SheetKind)
	require.Len(t, ext.gotReq.Documents, 1)
	assert.Equal(t, "scan.pdf", ext.gotReq.Documents[0].Name)
	assert.Equal(t, []byte("pdf bytes"), ext.gotReq.Documents[0].Data)
}

func TestStep1DefaultsCenterID(t *testing.T) {
	ext := &stubExtract{}
	srv := newTestServer(ext, nil, nil)

	body, contentType := multipartBody(t, map[string]string{}, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/step1", body)
	req.Header.Set("Content-Type", contentType)
	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, req)

	assert.Equal(t, "default", ext.gotReq.CenterID)
}

func TestStep1RejectsOverlongCenterID(t *testing.T) {
	srv := newTestServer(nil, nil, nil)

	body, contentType := multipartBody(t,
		map[string]string{"centerId": strings.Repeat("x", 65)}, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/step1", body)
	req.Header.Set("Content-Type", contentType)
	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")
}

func TestStep2ErrorStaysOnStream(t *testing.T) {
	pub := &stubPublish{err: errors.New("create document: forbidden")}
	srv := newTestServer(nil, pub, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/step2",
		strings.NewReader(`{"centerId":"nishi","headers":["品名"],"rows":[["パン"]]}`))
	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, req)

	// The stream is already open when publication fails; the failure is an
	// event, not an HTTP status.
	assert.Equal(t, http.StatusOK, rr.Code)
	frames := decodeFrames(t, rr.Body.String())
	require.Len(t, frames, 2)
	assert.Equal(t, "error", frames[0].Event)
	assert.Equal(t, "done", frames[1].Event)
	assert.Equal(t, "ステップ2完了", frames[1].Data)
}

func TestStep2RejectsMalformedJSON(t *testing.T) {
	srv := newTestServer(nil, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/step2", strings.NewReader("{not json"))
	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHostHealthOK(t *testing.T) {
	srv := newTestServer(nil, nil, &stubHealth{})

	req := httptest.NewRequest(http.MethodGet, "/api/health/host", nil)
	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var resp healthResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.True(t, resp.OK)
}

func TestHostHealthFailureCarriesCategory(t *testing.T) {
	srv := newTestServer(nil, nil, &stubHealth{
		err: &publish.HostError{Status: 403, Op: "sheets.create"},
	})

	req := httptest.NewRequest(http.MethodGet, "/api/health/host", nil)
	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, req)

	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
	var resp healthResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.False(t, resp.OK)
	assert.Equal(t, publish.CategoryForbidden, resp.Category)
	assert.NotEmpty(t, resp.Suggestions)
}
