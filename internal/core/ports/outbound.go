package ports

import (
	"context"
	"io"
	"time"

	"github.com/avpetrov/reportgen/internal/core/domain"
)

// ProjectRepository persists project state. Status changes go exclusively
// through CompareAndSetStatus so no call site can skip a pipeline stage.
type ProjectRepository interface {
	Create(ctx context.Context, p *domain.Project) error
	GetByID(ctx context.Context, id string) (*domain.Project, error)
	// CompareAndSetStatus atomically moves id from `from` to `to`. It returns
	// domain.ErrStateConflict when the stored status no longer equals `from`.
	CompareAndSetStatus(ctx context.Context, id string, from, to domain.ProjectStatus) error
}

// DocumentRepository persists and reads document state.
type DocumentRepository interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	ListByProject(ctx context.Context, projectID string) ([]domain.Document, error)
	ExistsByFilename(ctx context.Context, projectID, filename string) (bool, error)
	UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, errMessage string) error
	MarkProcessed(ctx context.Context, id string, pageCount int) error
	// Delete removes the document row; chunks and embeddings cascade.
	Delete(ctx context.Context, id string) error
}

// ChunkRepository persists chunk sets. ReplaceForDocument deletes the
// document's previous chunks (embeddings cascade) and writes the new set in
// one transaction, so a partial chunk set is never observable.
type ChunkRepository interface {
	ReplaceForDocument(ctx context.Context, documentID string, chunks []domain.Chunk) error
	CountByProject(ctx context.Context, projectID string) (int, error)
	ListUnembedded(ctx context.Context, projectID string) ([]domain.Chunk, error)
}

// EmbeddedChunk is the joined read the retriever operates on.
type EmbeddedChunk struct {
	ChunkID    string
	DocumentID string
	Filename   string
	Locator    string
	Text       string
	Vector     []float32
}

// EmbeddingRepository stores chunk vectors in their binary-serialized form.
type EmbeddingRepository interface {
	Save(ctx context.Context, chunkID string, vector []float32) error
	DeleteByProject(ctx context.Context, projectID string) error
	CountByProject(ctx context.Context, projectID string) (int, error)
	ListEmbeddedChunks(ctx context.Context, projectID string) ([]EmbeddedChunk, error)
}

// ReportRepository upserts the project report and replaces citations and
// artifacts wholesale per generation run.
type ReportRepository interface {
	UpsertReport(ctx context.Context, report *domain.Report) error
	GetReport(ctx context.Context, projectID string) (*domain.Report, error)
	SetExportPath(ctx context.Context, projectID, path string) error
	ReplaceCitations(ctx context.Context, projectID string, citations []domain.Citation) error
	ListCitations(ctx context.Context, projectID string) ([]domain.Citation, error)
	ReplaceArtifacts(ctx context.Context, projectID string, artifacts []domain.Artifact) error
	ListArtifacts(ctx context.Context, projectID string) ([]domain.Artifact, error)
}

// ObjectStorage stores source documents and exported reports.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// PipelineJob is one queued pipeline run. PublishedAt lets the consumer
// report queue lag; a zero value means the publisher did not stamp the job.
type PipelineJob struct {
	ProjectID   string
	PublishedAt time.Time
}

// MessageQueue publishes/consumes pipeline run jobs.
type MessageQueue interface {
	PublishPipelineRun(ctx context.Context, projectID string) error
	SubscribePipelineRun(ctx context.Context, handler func(context.Context, PipelineJob) error) error
}

// TextExtractor converts a stored document into plain text plus metadata.
type TextExtractor interface {
	Extract(ctx context.Context, doc *domain.Document) (string, ExtractMeta, error)
}

// ExtractMeta is lightweight extraction metadata surfaced on the document.
type ExtractMeta struct {
	Pages    int
	Warnings []string
}

// Segment is one chunker output window with its source offsets.
type Segment struct {
	Index int
	Start int
	End   int
	Text  string
}

// Chunker splits extracted text into overlapping, boundary-aware segments.
type Chunker interface {
	Split(text string, maxSize, overlap int) []Segment
}

// Embedder builds fixed-dimensionality vectors for chunk and query text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// TextGenerator produces section prose from a prompt. Implementations are
// optional; the orchestrator falls back to static templates without one.
type TextGenerator interface {
	Generate(ctx context.Context, system, prompt string) (string, error)
}

// ReportExporter writes the report body and its data tables to durable files
// and returns the export path.
type ReportExporter interface {
	Export(ctx context.Context, project *domain.Project, report *domain.Report, artifacts []domain.Artifact) (string, error)
}
