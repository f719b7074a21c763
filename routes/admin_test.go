package routes

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/figma-chunkstore/chunkstore/internal/storage"
	"github.com/figma-chunkstore/chunkstore/services"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	fsCfg := storage.DefaultFilesystemConfig(t.TempDir())
	adapter, err := storage.NewFilesystemAdapter(fsCfg, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	manager := storage.NewManager(nil)
	manager.Register("fs", adapter, true)
	chunker := services.NewChunker(services.DefaultConfig(), nil, nil, nil)

	router := gin.New()
	SetupAdminRoutes(router, chunker, manager)
	return router
}

func doRequest(router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHealthEndpointReportsRegisteredAdapters(t *testing.T) {
	router := newTestRouter(t)
	w := doRequest(router, http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("expected status ok, got %v", body["status"])
	}
}

func TestAdminIngestListGetDeleteRoundTrip(t *testing.T) {
	router := newTestRouter(t)

	ingestReq := map[string]any{
		"fileKey": "fk-admin",
		"data":    map[string]any{"name": "doc", "version": "1"},
	}
	w := doRequest(router, http.MethodPost, "/admin/ingest", ingestReq)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var ingestResp struct {
		PrimaryChunkID string `json:"primaryChunkId"`
		ChunkCount     int    `json:"chunkCount"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &ingestResp); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ingestResp.ChunkCount == 0 || ingestResp.PrimaryChunkID == "" {
		t.Fatalf("expected at least one chunk with a primary id, got %+v", ingestResp)
	}

	w = doRequest(router, http.MethodGet, "/admin/chunks?fileKey=fk-admin", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var listResp struct {
		Total int `json:"total"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &listResp); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if listResp.Total != ingestResp.ChunkCount {
		t.Fatalf("expected %d listed chunks, got %d", ingestResp.ChunkCount, listResp.Total)
	}

	w = doRequest(router, http.MethodGet, "/admin/chunks/"+ingestResp.PrimaryChunkID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	w = doRequest(router, http.MethodGet, "/admin/chunks/"+ingestResp.PrimaryChunkID+"/summary", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	w = doRequest(router, http.MethodDelete, "/admin/chunks/"+ingestResp.PrimaryChunkID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	w = doRequest(router, http.MethodGet, "/admin/chunks/"+ingestResp.PrimaryChunkID, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d: %s", w.Code, w.Body.String())
	}
}

func TestAdminIngestRejectsMissingRequiredFields(t *testing.T) {
	router := newTestRouter(t)
	w := doRequest(router, http.MethodPost, "/admin/ingest", map[string]any{"fileKey": "fk"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a missing data field, got %d: %s", w.Code, w.Body.String())
	}
}

func TestAdminCleanupSweepsAllAdapters(t *testing.T) {
	router := newTestRouter(t)
	w := doRequest(router, http.MethodPost, "/admin/cleanup", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
}
