package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/avpetrov/reportgen/internal/core/domain"
	"github.com/avpetrov/reportgen/internal/core/ports"
)

// EmbedConfig tunes the provider throttle. The inter-batch delay is a
// deliberate rate limit, not an accidental bottleneck.
type EmbedConfig struct {
	BatchSize     int
	BatchInterval time.Duration
	InputLimit    int
	CallTimeout   time.Duration
}

func (c EmbedConfig) normalize() EmbedConfig {
	out := c
	if out.BatchSize <= 0 {
		out.BatchSize = 16
	}
	if out.BatchInterval <= 0 {
		out.BatchInterval = 200 * time.Millisecond
	}
	if out.InputLimit <= 0 {
		out.InputLimit = 8000
	}
	if out.CallTimeout <= 0 {
		out.CallTimeout = 60 * time.Second
	}
	return out
}

// EmbedUseCase generates and persists vectors for every chunk of a project
// that does not carry one yet. A failed item is logged and left unembedded
// for the next run; it never aborts the batch.
type EmbedUseCase struct {
	projects   ports.ProjectRepository
	chunks     ports.ChunkRepository
	embeddings ports.EmbeddingRepository
	embedder   ports.Embedder

	cfg     EmbedConfig
	limiter *rate.Limiter
}

func NewEmbedUseCase(
	projects ports.ProjectRepository,
	chunks ports.ChunkRepository,
	embeddings ports.EmbeddingRepository,
	embedder ports.Embedder,
	cfg EmbedConfig,
) *EmbedUseCase {
	cfg = cfg.normalize()
	return &EmbedUseCase{
		projects:   projects,
		chunks:     chunks,
		embeddings: embeddings,
		embedder:   embedder,
		cfg:        cfg,
		limiter:    rate.NewLimiter(rate.Every(cfg.BatchInterval), 1),
	}
}

func (uc *EmbedUseCase) EmbedProject(ctx context.Context, projectID string) (*domain.EmbedResult, error) {
	p, err := uc.projects.GetByID(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("fetch project: %w", err)
	}
	if !domain.CanTransition(p.Status, domain.StatusEmbedded) {
		return nil, domain.WrapError(domain.ErrStateConflict, "run embed",
			fmt.Errorf("project status %s does not allow embedding", p.Status))
	}

	total, err := uc.chunks.CountByProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("count chunks: %w", err)
	}
	if total == 0 {
		return nil, domain.WrapError(domain.ErrStateConflict, "run embed",
			errors.New("project has no chunks; run ingest first"))
	}

	unembedded, err := uc.chunks.ListUnembedded(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("list unembedded chunks: %w", err)
	}

	result := &domain.EmbedResult{
		ProjectID:       projectID,
		AlreadyEmbedded: total - len(unembedded),
	}

	for start := 0; start < len(unembedded); start += uc.cfg.BatchSize {
		end := min(start+uc.cfg.BatchSize, len(unembedded))
		batch := unembedded[start:end]

		if err := uc.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("embed run cancelled: %w", err)
		}

		newly, failed, dims := uc.embedBatch(ctx, batch)
		result.NewlyEmbedded += newly
		result.Failed += failed
		if result.Dimensions == 0 {
			result.Dimensions = dims
		}
	}

	if result.NewlyEmbedded+result.AlreadyEmbedded > 0 {
		if err := uc.projects.CompareAndSetStatus(ctx, projectID, p.Status, domain.StatusEmbedded); err != nil {
			return nil, fmt.Errorf("mark project embedded: %w", err)
		}
		return result, nil
	}

	if err := uc.projects.CompareAndSetStatus(ctx, projectID, p.Status, domain.StatusError); err != nil {
		return nil, fmt.Errorf("mark project errored: %w", err)
	}
	return result, nil
}

// embedBatch submits one provider batch; on batch failure it degrades to
// per-item calls so a single bad input cannot sink its siblings.
func (uc *EmbedUseCase) embedBatch(ctx context.Context, batch []domain.Chunk) (newly, failed, dims int) {
	texts := make([]string, len(batch))
	for i, chunk := range batch {
		texts[i] = truncateRunes(chunk.Text, uc.cfg.InputLimit)
	}

	callCtx, cancel := context.WithTimeout(ctx, uc.cfg.CallTimeout)
	vectors, err := uc.embedder.Embed(callCtx, texts)
	cancel()

	if err != nil || len(vectors) != len(batch) {
		if err != nil {
			slog.Warn("embed batch failed, retrying items individually", "batch_size", len(batch), "error", err)
		} else {
			slog.Warn("embed batch size mismatch, retrying items individually", "want", len(batch), "got", len(vectors))
		}
		return uc.embedItems(ctx, batch, texts)
	}

	for i, chunk := range batch {
		if n, ok := uc.saveVector(ctx, chunk.ID, vectors[i]); ok {
			newly++
			dims = n
		} else {
			failed++
		}
	}
	return newly, failed, dims
}

func (uc *EmbedUseCase) embedItems(ctx context.Context, batch []domain.Chunk, texts []string) (newly, failed, dims int) {
	for i, chunk := range batch {
		callCtx, cancel := context.WithTimeout(ctx, uc.cfg.CallTimeout)
		vec, err := uc.embedder.EmbedQuery(callCtx, texts[i])
		cancel()
		if err != nil {
			slog.Warn("embed chunk failed", "chunk_id", chunk.ID, "error", err)
			failed++
			continue
		}
		if n, ok := uc.saveVector(ctx, chunk.ID, vec); ok {
			newly++
			dims = n
		} else {
			failed++
		}
	}
	return newly, failed, dims
}

func (uc *EmbedUseCase) saveVector(ctx context.Context, chunkID string, vec []float32) (int, bool) {
	if len(vec) == 0 {
		slog.Warn("provider returned empty vector", "chunk_id", chunkID)
		return 0, false
	}
	if err := uc.embeddings.Save(ctx, chunkID, vec); err != nil {
		slog.Warn("persist embedding failed", "chunk_id", chunkID, "error", err)
		return 0, false
	}
	return len(vec), true
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
