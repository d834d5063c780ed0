package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gas-assistant/internal/docstore"
	"gas-assistant/internal/ingest"
	"gas-assistant/internal/metrics"
	"gas-assistant/internal/models"
	"gas-assistant/internal/orchestrator"
	"gas-assistant/internal/parser"
	"gas-assistant/internal/render"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
)

const (
	maxRequestBodySize = 1 << 20  // 1MB
	maxUploadSize      = 64 << 20 // 64MB
)

// Answerer runs queries through the agent graph.
type Answerer interface {
	Run(ctx context.Context, query string) orchestrator.Result
	Visualize(ctx context.Context, query, data string) orchestrator.Result
}

// Documents manages the document collection.
type Documents interface {
	Ingest(ctx context.Context, path, title, documentType, description string) (models.DocumentRecord, error)
	Get(ctx context.Context, id string) (models.DocumentRecord, error)
	List(ctx context.Context) ([]models.DocumentRecord, error)
	Delete(ctx context.Context, id string) (bool, error)
	Reindex(ctx context.Context) (ingest.ReindexReport, error)
}

type Searcher interface {
	Search(ctx context.Context, query string, limit int) []models.SearchResult
}

type Deps struct {
	Answerer  Answerer
	Documents Documents
	Search    Searcher
}

type QueryRequest struct {
	Query string `json:"query"`
	Data  string `json:"data,omitempty"`
}

type QueryResponse struct {
	Response string  `json:"response"`
	Category string  `json:"category"`
	Degraded bool    `json:"degraded"`
	Seconds  float64 `json:"seconds"`
}

func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/query", handleQuery(deps))
		r.Post("/visualize", handleVisualize(deps))
		r.Get("/search", handleSearch(deps))
		r.Get("/documents", handleListDocuments(deps))
		r.Post("/documents", handleUpload(deps))
		r.Get("/documents/{id}", handleGetDocument(deps))
		r.Delete("/documents/{id}", handleDeleteDocument(deps))
		r.Post("/reindex", handleReindex(deps))
	})
	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}

func decodeQuery(w http.ResponseWriter, r *http.Request) (QueryRequest, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	defer r.Body.Close()

	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
		return req, false
	}
	if strings.TrimSpace(req.Query) == "" {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "query is required")
		return req, false
	}
	return req, true
}

func handleQuery(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, ok := decodeQuery(w, r)
		if !ok {
			return
		}
		writeAnswer(w, r, req.Query, deps.Answerer.Run(r.Context(), req.Query))
	}
}

func handleVisualize(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, ok := decodeQuery(w, r)
		if !ok {
			return
		}
		writeAnswer(w, r, req.Query, deps.Answerer.Visualize(r.Context(), req.Query, req.Data))
	}
}

// writeAnswer renders the answer as JSON, or as an HTML page with
// ?format=html.
func writeAnswer(w http.ResponseWriter, r *http.Request, query string, res orchestrator.Result) {
	if r.URL.Query().Get("format") == "html" {
		page, err := render.Page(query, res.Response)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "render answer: %v", err)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		io.WriteString(w, page)
		return
	}
	writeJSON(w, http.StatusOK, QueryResponse{
		Response: res.Response,
		Category: res.Category.String(),
		Degraded: res.Degraded,
		Seconds:  res.Duration.Seconds(),
	})
}

func handleSearch(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := strings.TrimSpace(r.URL.Query().Get("q"))
		if q == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "q is required")
			return
		}
		limit := 0
		if s := r.URL.Query().Get("limit"); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil || n < 0 {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid limit %q", s)
				return
			}
			limit = n
		}
		writeJSON(w, http.StatusOK, deps.Search.Search(r.Context(), q, limit))
	}
}

func handleListDocuments(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		docs, err := deps.Documents.List(r.Context())
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "list documents: %v", err)
			return
		}
		if docs == nil {
			docs = []models.DocumentRecord{}
		}
		writeJSON(w, http.StatusOK, docs)
	}
}

func handleGetDocument(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, err := deps.Documents.Get(r.Context(), chi.URLParam(r, "id"))
		if errors.Is(err, docstore.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found_error", "document not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "get document: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, rec)
	}
}

func handleDeleteDocument(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ok, err := deps.Documents.Delete(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "delete document: %v", err)
			return
		}
		if !ok {
			httpError(w, http.StatusNotFound, "not_found_error", "document not found")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// handleUpload takes a multipart form with a "file" part and optional
// title, document_type and description fields.
func handleUpload(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
		if err := r.ParseMultipartForm(maxUploadSize); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid multipart form: %v", err)
			return
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "file is required")
			return
		}
		defer file.Close()

		name := filepath.Base(header.Filename)
		if !parser.IsSupported(name) {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v: %s", parser.ErrUnsupportedFormat, filepath.Ext(name))
			return
		}

		tmp, err := os.MkdirTemp("", "upload-*")
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "create temp dir: %v", err)
			return
		}
		defer os.RemoveAll(tmp)
		path := filepath.Join(tmp, name)
		if err := saveUpload(path, file); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "save upload: %v", err)
			return
		}

		title := r.FormValue("title")
		if title == "" {
			title = strings.TrimSuffix(name, filepath.Ext(name))
		}
		docType := r.FormValue("document_type")
		if docType == "" {
			docType = parser.DocumentType(name)
		}

		rec, err := deps.Documents.Ingest(r.Context(), path, title, docType, r.FormValue("description"))
		if errors.Is(err, parser.ErrUnsupportedFormat) {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "ingest document: %v", err)
			return
		}
		writeJSON(w, http.StatusCreated, rec)
	}
}

func saveUpload(path string, src io.Reader) error {
	dst, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return err
	}
	return dst.Close()
}

func handleReindex(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report, err := deps.Documents.Reindex(r.Context())
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "reindex: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, report)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	writeJSON(w, code, map[string]any{
		"error": map[string]any{
			"message": fmt.Sprintf(format, args...),
			"type":    errType,
		},
	})
}
