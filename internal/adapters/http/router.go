package httpadapter

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/avpetrov/reportgen/internal/core/domain"
	"github.com/avpetrov/reportgen/internal/core/ports"
	"github.com/avpetrov/reportgen/internal/observability/metrics"
)

// Router binds the project pipeline use cases to the HTTP surface. Handlers
// stay thin: decode, delegate, map the error kind to a status code.
type Router struct {
	projects  ports.ProjectDirectory
	uploads   ports.DocumentUploader
	ingestor  ports.ProjectIngestor
	embedder  ports.ProjectEmbedder
	reports   ports.ReportOrchestrator
	retriever ports.ContextRetriever
	docs      ports.DocumentRepository
	reportsDB ports.ReportRepository

	metrics *metrics.HTTPServerMetrics
	logger  *slog.Logger
	service string
}

func NewRouter(
	projects ports.ProjectDirectory,
	uploads ports.DocumentUploader,
	ingestor ports.ProjectIngestor,
	embedder ports.ProjectEmbedder,
	reports ports.ReportOrchestrator,
	retriever ports.ContextRetriever,
	docs ports.DocumentRepository,
	reportsDB ports.ReportRepository,
	m *metrics.HTTPServerMetrics,
	logger *slog.Logger,
) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		projects:  projects,
		uploads:   uploads,
		ingestor:  ingestor,
		embedder:  embedder,
		reports:   reports,
		retriever: retriever,
		docs:      docs,
		reportsDB: reportsDB,
		metrics:   m,
		logger:    logger,
		service:   "api",
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	mux.HandleFunc("POST /v1/projects", rt.createProject)
	mux.HandleFunc("GET /v1/projects/{id}", rt.getProject)
	mux.HandleFunc("GET /v1/projects/{id}/documents", rt.listDocuments)
	mux.HandleFunc("POST /v1/projects/{id}/documents", rt.uploadDocuments)
	mux.HandleFunc("DELETE /v1/projects/{id}/documents/{docID}", rt.deleteDocument)
	mux.HandleFunc("POST /v1/projects/{id}/ingest", rt.ingestProject)
	mux.HandleFunc("POST /v1/projects/{id}/embed", rt.embedProject)
	mux.HandleFunc("POST /v1/projects/{id}/generate", rt.generateReport)
	mux.HandleFunc("POST /v1/projects/{id}/search", rt.search)
	mux.HandleFunc("GET /v1/projects/{id}/report", rt.getReport)
	mux.HandleFunc("GET /v1/projects/{id}/artifacts", rt.listArtifacts)
	mux.HandleFunc("POST /v1/projects/{id}/export", rt.exportReport)
	if rt.metrics != nil {
		mux.Handle("GET /metrics", rt.metrics.Handler())
	}

	var handler http.Handler = mux
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(rt.service, handler)
	}
	return requestIDMiddleware(accessLogMiddleware(rt.logger, handler))
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type createProjectRequest struct {
	Title         string            `json:"title"`
	Client        string            `json:"client"`
	Language      string            `json:"language"`
	Methodologies []string          `json:"methodologies"`
	RAG           domain.RAGOptions `json:"rag"`
}

func (rt *Router) createProject(w http.ResponseWriter, r *http.Request) {
	var req createProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid json"))
		return
	}

	project, err := rt.projects.CreateProject(r.Context(), &domain.Project{
		Title:         req.Title,
		Client:        req.Client,
		Language:      req.Language,
		Methodologies: req.Methodologies,
		RAG:           req.RAG,
	})
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, project)
}

func (rt *Router) getProject(w http.ResponseWriter, r *http.Request) {
	project, err := rt.projects.GetProject(r.Context(), r.PathValue("id"))
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, project)
}

func (rt *Router) listDocuments(w http.ResponseWriter, r *http.Request) {
	projectID := r.PathValue("id")
	if _, err := rt.projects.GetProject(r.Context(), projectID); err != nil {
		rt.writeError(w, r, err)
		return
	}
	docs, err := rt.docs.ListByProject(r.Context(), projectID)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

// uploadMemoryLimit bounds how much of the multipart body is buffered in
// memory; the rest spills to temp files.
const uploadMemoryLimit = 32 << 20

func (rt *Router) uploadDocuments(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(uploadMemoryLimit); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("multipart form is required"))
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		headers = r.MultipartForm.File["file"]
	}
	if len(headers) == 0 {
		writeJSON(w, http.StatusBadRequest, errorBody("multipart field 'files' is required"))
		return
	}

	files := make([]ports.UploadFile, 0, len(headers))
	opened := make([]interface{ Close() error }, 0, len(headers))
	defer func() {
		for _, f := range opened {
			_ = f.Close()
		}
	}()
	for _, header := range headers {
		body, err := header.Open()
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("unreadable multipart file "+header.Filename))
			return
		}
		opened = append(opened, body)
		files = append(files, ports.UploadFile{
			Meta: domain.FileUpload{
				Filename:  header.Filename,
				MimeType:  header.Header.Get("Content-Type"),
				SizeBytes: header.Size,
			},
			Body: body,
		})
	}

	outcomes, err := rt.uploads.UploadDocuments(r.Context(), r.PathValue("id"), files)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": outcomes})
}

func (rt *Router) deleteDocument(w http.ResponseWriter, r *http.Request) {
	err := rt.uploads.DeleteDocument(r.Context(), r.PathValue("id"), r.PathValue("docID"))
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) ingestProject(w http.ResponseWriter, r *http.Request) {
	result, err := rt.ingestor.IngestProject(r.Context(), r.PathValue("id"))
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) embedProject(w http.ResponseWriter, r *http.Request) {
	result, err := rt.embedder.EmbedProject(r.Context(), r.PathValue("id"))
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) generateReport(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	result, err := rt.reports.GenerateReport(r.Context(), r.PathValue("id"))
	if rt.metrics != nil {
		pending, citations := 0, 0
		if result != nil {
			pending = result.PendingSections
			citations = result.Citations
		}
		rt.metrics.RecordGeneration(rt.service, time.Since(start), pending, citations, err)
	}
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type searchRequest struct {
	Query         string  `json:"query"`
	TopK          int     `json:"top_k"`
	MinSimilarity float64 `json:"min_similarity"`
}

func (rt *Router) search(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid json"))
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query is required"))
		return
	}

	start := time.Now()
	chunks, err := rt.retriever.Retrieve(r.Context(), r.PathValue("id"), req.Query, req.TopK, req.MinSimilarity)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	if rt.metrics != nil {
		rt.metrics.RecordSearch(rt.service, len(chunks), time.Since(start))
	}
	if chunks == nil {
		chunks = []domain.RetrievedChunk{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"query": req.Query, "chunks": chunks})
}

func (rt *Router) getReport(w http.ResponseWriter, r *http.Request) {
	projectID := r.PathValue("id")
	report, err := rt.reportsDB.GetReport(r.Context(), projectID)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	citations, err := rt.reportsDB.ListCitations(r.Context(), projectID)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	if citations == nil {
		citations = []domain.Citation{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"report": report, "citations": citations})
}

func (rt *Router) listArtifacts(w http.ResponseWriter, r *http.Request) {
	artifacts, err := rt.reportsDB.ListArtifacts(r.Context(), r.PathValue("id"))
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	if artifacts == nil {
		artifacts = []domain.Artifact{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"artifacts": artifacts})
}

func (rt *Router) exportReport(w http.ResponseWriter, r *http.Request) {
	path, err := rt.reports.ExportReport(r.Context(), r.PathValue("id"))
	if rt.metrics != nil {
		rt.metrics.RecordExport(rt.service, err)
	}
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"export_path": path})
}

func (rt *Router) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := mapErrorToHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		rt.logger.Error("request failed",
			"request_id", requestIDFromContext(r.Context()),
			"path", r.URL.Path,
			"error", err,
		)
	}
	writeJSON(w, status, errorBody(publicMessage(err, status)))
}

// publicMessage keeps 5xx bodies generic; the full error goes to the log.
func publicMessage(err error, status int) string {
	if status >= http.StatusInternalServerError {
		return "internal error"
	}
	return err.Error()
}

func errorBody(message string) map[string]string {
	return map[string]string{"error": message}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
