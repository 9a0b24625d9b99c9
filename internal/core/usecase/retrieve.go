package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/avpetrov/reportgen/internal/core/domain"
	"github.com/avpetrov/reportgen/internal/core/ports"
	"github.com/avpetrov/reportgen/internal/infrastructure/vector"
)

// NoRelevantContext is the sentinel FormatContext returns when a project has
// no embedded chunks or nothing scores above the threshold. Callers branch on
// it instead of checking for empty strings.
const NoRelevantContext = "No relevant context was found in the project documents."

// RetrieveUseCase scores every embedded chunk of a project against a query
// vector. The scan is intentionally linear: project corpora are a few hundred
// to a few thousand chunks, which needs no approximate index.
type RetrieveUseCase struct {
	embedder   ports.Embedder
	embeddings ports.EmbeddingRepository

	defaultTopK          int
	defaultMinSimilarity float64
}

func NewRetrieveUseCase(
	embedder ports.Embedder,
	embeddings ports.EmbeddingRepository,
	defaultTopK int,
	defaultMinSimilarity float64,
) *RetrieveUseCase {
	if defaultTopK <= 0 {
		defaultTopK = 5
	}
	if defaultMinSimilarity < 0 || defaultMinSimilarity >= 1 {
		defaultMinSimilarity = 0.25
	}
	return &RetrieveUseCase{
		embedder:             embedder,
		embeddings:           embeddings,
		defaultTopK:          defaultTopK,
		defaultMinSimilarity: defaultMinSimilarity,
	}
}

// Retrieve embeds the query with the ingestion provider and returns the
// ranked top-K above minSimilarity. A project mid-embedding simply matches
// over whatever subset currently carries vectors.
func (uc *RetrieveUseCase) Retrieve(ctx context.Context, projectID, query string, topK int, minSimilarity float64) ([]domain.RetrievedChunk, error) {
	if topK <= 0 {
		topK = uc.defaultTopK
	}
	if minSimilarity < 0 || minSimilarity >= 1 {
		minSimilarity = uc.defaultMinSimilarity
	}

	rows, err := uc.embeddings.ListEmbeddedChunks(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("list embedded chunks: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	queryVector, err := uc.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, domain.WrapError(domain.ErrProviderUnavailable, "embed query", err)
	}

	hits := make([]domain.RetrievedChunk, 0, len(rows))
	for _, row := range rows {
		similarity := vector.CosineSimilarity(queryVector, row.Vector)
		if similarity < minSimilarity {
			continue
		}
		hits = append(hits, domain.RetrievedChunk{
			ChunkID:    row.ChunkID,
			DocumentID: row.DocumentID,
			Filename:   row.Filename,
			Locator:    row.Locator,
			Text:       row.Text,
			Similarity: similarity,
		})
	}

	sortHits(hits)
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

// RetrieveBySection issues one retrieval per keyword with a proportionally
// divided budget, merges on first occurrence per chunk and re-ranks. Report
// sections are authored against keyword sets, not single queries.
func (uc *RetrieveUseCase) RetrieveBySection(ctx context.Context, projectID string, keywords []string, topK int, minSimilarity float64) ([]domain.RetrievedChunk, error) {
	if topK <= 0 {
		topK = uc.defaultTopK
	}
	if len(keywords) == 0 {
		return nil, nil
	}

	budget := topK / len(keywords)
	if budget < 1 {
		budget = 1
	}

	seen := make(map[string]bool)
	merged := make([]domain.RetrievedChunk, 0, topK)
	for _, keyword := range keywords {
		hits, err := uc.Retrieve(ctx, projectID, keyword, budget, minSimilarity)
		if err != nil {
			return nil, fmt.Errorf("retrieve for keyword %q: %w", keyword, err)
		}
		for _, hit := range hits {
			if seen[hit.ChunkID] {
				continue
			}
			seen[hit.ChunkID] = true
			merged = append(merged, hit)
		}
	}

	sortHits(merged)
	if len(merged) > topK {
		merged = merged[:topK]
	}
	return merged, nil
}

// sortHits orders by similarity descending with chunk id as the stable
// secondary key, so repeated calls over a fixed corpus return the same order.
func sortHits(hits []domain.RetrievedChunk) {
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Similarity != hits[j].Similarity {
			return hits[i].Similarity > hits[j].Similarity
		}
		return hits[i].ChunkID < hits[j].ChunkID
	})
}

// FormatContext renders retrieval results as ordinal-prefixed snippets with
// inline citation markers. Generation prompts instruct the provider to reuse
// the marker convention and citation extraction parses it back out, so the
// format here is a contract, not presentation.
func FormatContext(results []domain.RetrievedChunk) string {
	if len(results) == 0 {
		return NoRelevantContext
	}
	var sb strings.Builder
	for i, result := range results {
		sb.WriteString(fmt.Sprintf("[%d] %s (Source: %s, %s)\n", i+1, strings.TrimSpace(result.Text), result.Filename, result.Locator))
	}
	return sb.String()
}
