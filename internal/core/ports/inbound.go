package ports

import (
	"context"
	"io"

	"github.com/avpetrov/reportgen/internal/core/domain"
)

// ProjectDirectory is the inbound contract for project lifecycle reads/writes.
type ProjectDirectory interface {
	CreateProject(ctx context.Context, p *domain.Project) (*domain.Project, error)
	GetProject(ctx context.Context, id string) (*domain.Project, error)
}

// UploadFile pairs the per-file metadata with its content stream.
type UploadFile struct {
	Meta domain.FileUpload
	Body io.Reader
}

// DocumentUploader is the inbound contract for the upload boundary.
type DocumentUploader interface {
	UploadDocuments(ctx context.Context, projectID string, files []UploadFile) ([]domain.UploadOutcome, error)
	DeleteDocument(ctx context.Context, projectID, documentID string) error
}

// ProjectIngestor runs the extraction+chunking stage for one project.
type ProjectIngestor interface {
	IngestProject(ctx context.Context, projectID string) (*domain.IngestResult, error)
}

// ProjectEmbedder runs the embedding stage for one project.
type ProjectEmbedder interface {
	EmbedProject(ctx context.Context, projectID string) (*domain.EmbedResult, error)
}

// ReportOrchestrator runs the generation stage and report export.
type ReportOrchestrator interface {
	GenerateReport(ctx context.Context, projectID string) (*domain.GenerateResult, error)
	ExportReport(ctx context.Context, projectID string) (string, error)
}

// ContextRetriever answers ad-hoc similarity queries over a project's corpus.
type ContextRetriever interface {
	Retrieve(ctx context.Context, projectID, query string, topK int, minSimilarity float64) ([]domain.RetrievedChunk, error)
}
