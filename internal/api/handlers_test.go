package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"

	"turnitinbot/internal/config"
	"turnitinbot/internal/storage"
)

func newTestRouter(t *testing.T) (*gin.Engine, *storage.DocumentStore, *storage.SubmissionStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dir := t.TempDir()
	cfg := &config.Config{
		Databases: map[string]config.DatabaseConfig{
			"sqlite3": {DSN: fmt.Sprintf("file:%s?_busy_timeout=10000", filepath.Join(dir, "api.db"))},
		},
	}
	db, err := storage.Open("sqlite3", cfg)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := storage.Migrate(db, "sqlite3"); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	docs, err := storage.NewDocumentStore(db, filepath.Join(dir, "uploads"))
	if err != nil {
		t.Fatalf("document store: %v", err)
	}
	subs := storage.NewSubmissionStore(db)

	router := gin.New()
	NewHandler(docs, subs, nil).RegisterRoutes(router)
	return router, docs, subs
}

func doRequest(t *testing.T, router *gin.Engine, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	router, _, _ := newTestRouter(t)
	rec := doRequest(t, router, http.MethodGet, "/healthz")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestGetDocument(t *testing.T) {
	router, docs, _ := newTestRouter(t)
	ctx := context.Background()

	stored, err := docs.Save(ctx, 7, []byte("%PDF-1.4 test"), "essay.pdf", "application/pdf")
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	rec := doRequest(t, router, http.MethodGet, "/api/documents/1")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var got struct {
		ID           int64  `json:"id"`
		OriginalName string `json:"original_name"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ID != stored.ID || got.OriginalName != "essay.pdf" {
		t.Fatalf("unexpected document: %+v", got)
	}

	if rec := doRequest(t, router, http.MethodGet, "/api/documents/99"); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for missing document, got %d", rec.Code)
	}
	if rec := doRequest(t, router, http.MethodGet, "/api/documents/abc"); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad id, got %d", rec.Code)
	}
}

func TestListDocuments(t *testing.T) {
	router, docs, _ := newTestRouter(t)
	ctx := context.Background()

	for _, name := range []string{"a.pdf", "b.pdf", "c.pdf"} {
		if _, err := docs.Save(ctx, 1, []byte("content"), name, "application/pdf"); err != nil {
			t.Fatalf("save %s: %v", name, err)
		}
	}

	rec := doRequest(t, router, http.MethodGet, "/api/documents?limit=2")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var got struct {
		Documents []json.RawMessage `json:"documents"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got.Documents) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(got.Documents))
	}

	if rec := doRequest(t, router, http.MethodGet, "/api/documents?limit=zero"); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad limit, got %d", rec.Code)
	}
}

func TestGetSubmissionLifecycle(t *testing.T) {
	router, docs, subs := newTestRouter(t)
	ctx := context.Background()

	stored, err := docs.Save(ctx, 7, []byte("content"), "essay.pdf", "application/pdf")
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	sub, err := subs.Create(ctx, stored.ID, 7, "vendor-1")
	if err != nil {
		t.Fatalf("create submission: %v", err)
	}

	rec := doRequest(t, router, http.MethodGet, "/api/submissions/1")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var got struct {
		Status    string `json:"status"`
		ReportURL string `json:"report_url"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Status != "pending" {
		t.Fatalf("expected pending, got %s", got.Status)
	}

	if err := subs.MarkReady(ctx, sub.ID, "https://reports.example/r/1"); err != nil {
		t.Fatalf("mark ready: %v", err)
	}
	rec = doRequest(t, router, http.MethodGet, "/api/submissions/1")
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Status != "ready" || got.ReportURL != "https://reports.example/r/1" {
		t.Fatalf("unexpected submission: %+v", got)
	}

	if rec := doRequest(t, router, http.MethodGet, "/api/submissions/42"); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestListDocumentSubmissions(t *testing.T) {
	router, docs, subs := newTestRouter(t)
	ctx := context.Background()

	stored, err := docs.Save(ctx, 7, []byte("content"), "essay.pdf", "application/pdf")
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := subs.Create(ctx, stored.ID, 7, "vendor-1"); err != nil {
		t.Fatalf("create submission: %v", err)
	}
	if _, err := subs.Create(ctx, stored.ID, 7, "vendor-2"); err != nil {
		t.Fatalf("create submission: %v", err)
	}

	rec := doRequest(t, router, http.MethodGet, "/api/documents/1/submissions")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var got struct {
		Submissions []json.RawMessage `json:"submissions"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got.Submissions) != 2 {
		t.Fatalf("expected 2 submissions, got %d", len(got.Submissions))
	}
}
