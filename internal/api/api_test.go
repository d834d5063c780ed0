package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gas-assistant/internal/config"
	"gas-assistant/internal/docstore"
	"gas-assistant/internal/ingest"
	"gas-assistant/internal/models"
	"gas-assistant/internal/orchestrator"
	"gas-assistant/internal/parser"
	"gas-assistant/internal/router"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAnswerer struct {
	query, data string
}

func (s *stubAnswerer) Run(_ context.Context, query string) orchestrator.Result {
	s.query = query
	return orchestrator.Result{Response: "**Réponse** experte", Category: router.DomainExpert}
}

func (s *stubAnswerer) Visualize(_ context.Context, query, data string) orchestrator.Result {
	s.query, s.data = query, data
	return orchestrator.Result{Response: "histogramme", Category: router.Visualization}
}

type stubSearch struct {
	query string
	limit int
}

func (s *stubSearch) Search(_ context.Context, query string, limit int) []models.SearchResult {
	s.query, s.limit = query, limit
	return []models.SearchResult{{Content: "extrait", Metadata: map[string]string{"title": "Guide"}, Score: 0.12}}
}

type fixture struct {
	handler  http.Handler
	answerer *stubAnswerer
	search   *stubSearch
	pipeline *ingest.Pipeline
}

func setup(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	store := docstore.NewJSONStore(filepath.Join(dir, "document_index.json"))
	extractor := parser.NewExtractor(config.OfficeConfig{SofficePath: "/nonexistent/soffice", ConvertTimeout: time.Second})
	f := &fixture{
		answerer: &stubAnswerer{},
		search:   &stubSearch{},
		pipeline: ingest.New(store, nil, extractor, parser.NewSplitter(200, 40), filepath.Join(dir, "uploads")),
	}
	f.handler = NewHandler(Deps{Answerer: f.answerer, Documents: f.pipeline, Search: f.search})
	return f
}

func (f *fixture) do(req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	f.handler.ServeHTTP(rr, req)
	return rr
}

func upload(t *testing.T, filename, content string, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, "/api/documents", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestQuery(t *testing.T) {
	f := setup(t)
	rr := f.do(httptest.NewRequest(http.MethodPost, "/api/query", strings.NewReader(`{"query":"Qu'est-ce qu'un PCE?"}`)))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var resp QueryResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "**Réponse** experte", resp.Response)
	assert.Equal(t, "expert_gaz", resp.Category)
	assert.False(t, resp.Degraded)
	assert.Equal(t, "Qu'est-ce qu'un PCE?", f.answerer.query)
}

func TestQuery_HTML(t *testing.T) {
	f := setup(t)
	rr := f.do(httptest.NewRequest(http.MethodPost, "/api/query?format=html", strings.NewReader(`{"query":"PCE"}`)))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rr.Body.String(), "<strong>Réponse</strong> experte")
}

func TestQuery_Invalid(t *testing.T) {
	f := setup(t)
	rr := f.do(httptest.NewRequest(http.MethodPost, "/api/query", strings.NewReader(`{"query":"  "}`)))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	rr = f.do(httptest.NewRequest(http.MethodPost, "/api/query", strings.NewReader(`not json`)))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestVisualize(t *testing.T) {
	f := setup(t)
	rr := f.do(httptest.NewRequest(http.MethodPost, "/api/visualize", strings.NewReader(`{"query":"graphique","data":"Jan: 10"}`)))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Jan: 10", f.answerer.data)
	assert.Contains(t, rr.Body.String(), `"category":"visualisation"`)
}

func TestSearch(t *testing.T) {
	f := setup(t)
	rr := f.do(httptest.NewRequest(http.MethodGet, "/api/search?q=compteur&limit=3", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var results []models.SearchResult
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &results))
	require.Len(t, results, 1)
	assert.Equal(t, "compteur", f.search.query)
	assert.Equal(t, 3, f.search.limit)

	rr = f.do(httptest.NewRequest(http.MethodGet, "/api/search?q=x&limit=abc", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	rr = f.do(httptest.NewRequest(http.MethodGet, "/api/search", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestDocumentsLifecycle(t *testing.T) {
	f := setup(t)

	rr := f.do(upload(t, "guide.txt", "Contrôle des installations.", map[string]string{"description": "Guide interne"}))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var rec models.DocumentRecord
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &rec))
	assert.Equal(t, "guide", rec.Title)
	assert.Equal(t, "texte", rec.DocumentType)
	assert.Equal(t, "Guide interne", rec.Description)
	assert.False(t, rec.Indexed)

	rr = f.do(httptest.NewRequest(http.MethodGet, "/api/documents", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var list []models.DocumentRecord
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &list))
	require.Len(t, list, 1)

	rr = f.do(httptest.NewRequest(http.MethodGet, "/api/documents/"+rec.ID, nil))
	require.Equal(t, http.StatusOK, rr.Code)

	rr = f.do(httptest.NewRequest(http.MethodPost, "/api/reindex", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var report ingest.ReindexReport
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &report))
	assert.Equal(t, 1, report.Attempted)
	assert.Equal(t, 1, report.Failed)

	rr = f.do(httptest.NewRequest(http.MethodDelete, "/api/documents/"+rec.ID, nil))
	assert.Equal(t, http.StatusNoContent, rr.Code)
	rr = f.do(httptest.NewRequest(http.MethodDelete, "/api/documents/"+rec.ID, nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
	rr = f.do(httptest.NewRequest(http.MethodGet, "/api/documents/"+rec.ID, nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestUpload_Unsupported(t *testing.T) {
	f := setup(t)
	rr := f.do(upload(t, "budget.xlsx", "x", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "unsupported")
}

func TestHealthAndMetrics(t *testing.T) {
	f := setup(t)
	rr := f.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	rr = f.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
}
