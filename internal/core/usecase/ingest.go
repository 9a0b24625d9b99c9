package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/avpetrov/reportgen/internal/core/domain"
	"github.com/avpetrov/reportgen/internal/core/ports"
)

// IngestUseCase runs the extraction+chunking stage of one project. Documents
// are extracted in parallel, but all chunk-set writes for the project are
// serialized so a partially written chunk set is never observable.
type IngestUseCase struct {
	projects   ports.ProjectRepository
	docs       ports.DocumentRepository
	chunks     ports.ChunkRepository
	embeddings ports.EmbeddingRepository
	extractor  ports.TextExtractor
	chunker    ports.Chunker

	parallelism int
	docTimeout  time.Duration

	// writeMu serializes ReplaceForDocument calls across worker goroutines.
	writeMu sync.Mutex
}

func NewIngestUseCase(
	projects ports.ProjectRepository,
	docs ports.DocumentRepository,
	chunks ports.ChunkRepository,
	embeddings ports.EmbeddingRepository,
	extractor ports.TextExtractor,
	chunker ports.Chunker,
) *IngestUseCase {
	return &IngestUseCase{
		projects:    projects,
		docs:        docs,
		chunks:      chunks,
		embeddings:  embeddings,
		extractor:   extractor,
		chunker:     chunker,
		parallelism: 4,
		docTimeout:  2 * time.Minute,
	}
}

func (uc *IngestUseCase) IngestProject(ctx context.Context, projectID string) (*domain.IngestResult, error) {
	p, err := uc.projects.GetByID(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("fetch project: %w", err)
	}
	if !domain.CanTransition(p.Status, domain.StatusIngested) {
		return nil, domain.WrapError(domain.ErrStateConflict, "run ingest",
			fmt.Errorf("project status %s does not allow ingestion", p.Status))
	}

	allDocs, err := uc.docs.ListByProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	if len(allDocs) == 0 {
		return nil, domain.WrapError(domain.ErrUnsupportedInput, "run ingest",
			errors.New("project has no documents; upload documents first"))
	}

	// Idempotent over already processed documents.
	pending := make([]domain.Document, 0, len(allDocs))
	for _, doc := range allDocs {
		if doc.Status == domain.DocPending || doc.Status == domain.DocError {
			pending = append(pending, doc)
		}
	}

	result := &domain.IngestResult{
		ProjectID:        projectID,
		SkippedDocuments: len(allDocs) - len(pending),
	}
	if len(pending) == 0 {
		result.TotalChunks, err = uc.chunks.CountByProject(ctx, projectID)
		if err != nil {
			return nil, fmt.Errorf("count chunks: %w", err)
		}
		return result, nil
	}

	outcomes := make([]domain.DocumentOutcome, len(pending))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(uc.parallelism)
	for i, doc := range pending {
		group.Go(func() error {
			outcomes[i] = uc.processDocument(groupCtx, p, doc)
			return nil
		})
	}
	// Worker funcs never return an error: per-document failures are captured
	// in their outcome and must not abort sibling documents.
	_ = group.Wait()

	for _, outcome := range outcomes {
		result.Documents = append(result.Documents, outcome)
		if outcome.Processed {
			result.ProcessedDocuments++
		} else {
			result.ErrorDocuments++
		}
	}
	result.TotalChunks, err = uc.chunks.CountByProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("count chunks: %w", err)
	}

	if result.ProcessedDocuments > 0 {
		// The chunk set changed: discard the project's embeddings wholesale so
		// the retriever never sees vectors from a previous chunk generation.
		if err := uc.embeddings.DeleteByProject(ctx, projectID); err != nil {
			return nil, fmt.Errorf("discard stale embeddings: %w", err)
		}
		if err := uc.projects.CompareAndSetStatus(ctx, projectID, p.Status, domain.StatusIngested); err != nil {
			return nil, fmt.Errorf("mark project ingested: %w", err)
		}
		return result, nil
	}

	if err := uc.projects.CompareAndSetStatus(ctx, projectID, p.Status, domain.StatusError); err != nil {
		return nil, fmt.Errorf("mark project errored: %w", err)
	}
	return result, nil
}

func (uc *IngestUseCase) processDocument(ctx context.Context, p *domain.Project, doc domain.Document) domain.DocumentOutcome {
	outcome := domain.DocumentOutcome{DocumentID: doc.ID, Filename: doc.Filename}

	if err := uc.docs.UpdateStatus(ctx, doc.ID, domain.DocProcessing, ""); err != nil {
		outcome.Error = fmt.Sprintf("set status=processing: %v", err)
		return outcome
	}

	extractCtx, cancel := context.WithTimeout(ctx, uc.docTimeout)
	defer cancel()

	text, meta, err := uc.extractor.Extract(extractCtx, &doc)
	if err != nil {
		slog.Warn("extraction failed", "project_id", p.ID, "document_id", doc.ID, "error", err)
		outcome.Error = err.Error()
		if statusErr := uc.docs.UpdateStatus(ctx, doc.ID, domain.DocError, err.Error()); statusErr != nil {
			slog.Error("mark document errored failed", "document_id", doc.ID, "error", statusErr)
		}
		return outcome
	}

	opts := p.RAG.Normalize()
	segments := uc.chunker.Split(text, opts.ChunkSize, opts.ChunkOverlap)
	chunkSet := buildChunks(p.ID, doc, text, segments)

	uc.writeMu.Lock()
	err = uc.chunks.ReplaceForDocument(ctx, doc.ID, chunkSet)
	uc.writeMu.Unlock()
	if err != nil {
		outcome.Error = fmt.Sprintf("write chunks: %v", err)
		if statusErr := uc.docs.UpdateStatus(ctx, doc.ID, domain.DocError, outcome.Error); statusErr != nil {
			slog.Error("mark document errored failed", "document_id", doc.ID, "error", statusErr)
		}
		return outcome
	}

	if err := uc.docs.MarkProcessed(ctx, doc.ID, meta.Pages); err != nil {
		outcome.Error = fmt.Sprintf("mark processed: %v", err)
		return outcome
	}

	outcome.Processed = true
	outcome.Chunks = len(chunkSet)
	return outcome
}

func buildChunks(projectID string, doc domain.Document, text string, segments []ports.Segment) []domain.Chunk {
	now := time.Now().UTC()
	chunks := make([]domain.Chunk, 0, len(segments))
	for _, seg := range segments {
		chunks = append(chunks, domain.Chunk{
			ID:         uuid.NewString(),
			DocumentID: doc.ID,
			ProjectID:  projectID,
			Index:      seg.Index,
			Text:       seg.Text,
			Meta: map[string]string{
				domain.MetaFilename: doc.Filename,
				domain.MetaDocType:  strings.TrimPrefix(strings.ToLower(filepath.Ext(doc.Filename)), "."),
				domain.MetaPage:     locatorForSegment(text, seg),
			},
			CreatedAt: now,
		})
	}
	return chunks
}

var pageMarkerPattern = regexp.MustCompile(`\[page (\d+)\]`)

// locatorForSegment resolves the last page marker the extractor emitted up to
// the segment end, which covers markers at the segment start; non-paginated
// formats fall back to the segment ordinal.
func locatorForSegment(text string, seg ports.Segment) string {
	runes := []rune(text)
	prefix := string(runes[:min(seg.End, len(runes))])
	markers := pageMarkerPattern.FindAllStringSubmatch(prefix, -1)
	if len(markers) > 0 {
		return "p." + markers[len(markers)-1][1]
	}
	return fmt.Sprintf("part %d", seg.Index+1)
}
