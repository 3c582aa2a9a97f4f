package extract

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAzureClientRequiresCredentials(t *testing.T) {
	_, err := NewAzureClient("", "key", nil, nil)
	assert.ErrorIs(t, err, ErrCredentialsMissing)

	_, err = NewAzureClient("https://example", "", nil, nil)
	assert.ErrorIs(t, err, ErrCredentialsMissing)
}

func TestAzureClientAnalyzeLayout(t *testing.T) {
	polls := 0
	mux := http.NewServeMux()
	var srv *httptest.Server

	mux.HandleFunc("POST /formrecognizer/documentModels/prebuilt-layout:analyze", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "secret", r.Header.Get("Ocp-Apim-Subscription-Key"))
		w.Header().Set("Operation-Location", srv.URL+"/op/1")
		w.WriteHeader(http.StatusAccepted)
	})
	mux.HandleFunc("GET /op/1", func(w http.ResponseWriter, r *http.Request) {
		polls++
		if polls < 2 {
			_ = json.NewEncoder(w).Encode(map[string]any{"status": "running"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status": "succeeded",
			"analyzeResult": map[string]any{
				"tables": []any{map[string]any{
					"cells": []any{
						map[string]any{"rowIndex": 0, "columnIndex": 0, "content": "品名"},
						map[string]any{"rowIndex": 1, "columnIndex": 0, "content": "パン"},
					},
				}},
			},
		})
	})
	srv = httptest.NewServer(mux)
	defer srv.Close()

	c, err := NewAzureClient(srv.URL, "secret", srv.Client(), nil)
	require.NoError(t, err)
	c.pollInterval = time.Millisecond

	tables, err := c.AnalyzeLayout(context.Background(), []byte("%PDF"))
	require.NoError(t, err)
	require.Len(t, tables, 1)
	assert.Equal(t, Cell{Row: 0, Col: 0, Content: "品名"}, tables[0].Cells[0])
	assert.Equal(t, 2, polls)
}

func TestAzureClientRejectedKeyIsCredentialsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c, err := NewAzureClient(srv.URL, "bad", srv.Client(), nil)
	require.NoError(t, err)

	_, err = c.AnalyzeLayout(context.Background(), []byte("%PDF"))
	assert.ErrorIs(t, err, ErrCredentialsMissing)
}

func TestAzureClientFailedAnalysis(t *testing.T) {
	mux := http.NewServeMux()
	var srv *httptest.Server
	mux.HandleFunc("POST /formrecognizer/documentModels/prebuilt-layout:analyze", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Operation-Location", srv.URL+"/op/1")
		w.WriteHeader(http.StatusAccepted)
	})
	mux.HandleFunc("GET /op/1", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status": "failed",
			"error":  map[string]any{"code": "InvalidContent", "message": "unreadable"},
		})
	})
	srv = httptest.NewServer(mux)
	defer srv.Close()

	c, err := NewAzureClient(srv.URL, "secret", srv.Client(), nil)
	require.NoError(t, err)
	c.pollInterval = time.Millisecond

	_, err = c.AnalyzeLayout(context.Background(), []byte("%PDF"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "InvalidContent")
	assert.False(t, Fatal(err))
}
