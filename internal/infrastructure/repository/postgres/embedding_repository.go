package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/avpetrov/reportgen/internal/core/domain"
	"github.com/avpetrov/reportgen/internal/core/ports"
	"github.com/avpetrov/reportgen/internal/infrastructure/vector"
)

// EmbeddingRepository stores chunk vectors as packed little-endian float32
// BYTEA. Retrieval loads the whole project corpus and scores it in process,
// so there is no server-side vector type to maintain.
type EmbeddingRepository struct {
	db *sql.DB
}

func NewEmbeddingRepository(db *sql.DB) *EmbeddingRepository {
	return &EmbeddingRepository{db: db}
}

func (r *EmbeddingRepository) Save(ctx context.Context, chunkID string, vec []float32) error {
	if len(vec) == 0 {
		return fmt.Errorf("save embedding: empty vector for chunk %s", chunkID)
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO embeddings (chunk_id, dimensions, vector, created_at)
VALUES ($1,$2,$3,$4)
ON CONFLICT (chunk_id) DO UPDATE SET dimensions = EXCLUDED.dimensions, vector = EXCLUDED.vector, created_at = EXCLUDED.created_at
`, chunkID, len(vec), vector.Encode(vec), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("upsert embedding: %w", err)
	}
	return nil
}

func (r *EmbeddingRepository) DeleteByProject(ctx context.Context, projectID string) error {
	_, err := r.db.ExecContext(ctx, `
DELETE FROM embeddings
WHERE chunk_id IN (SELECT id FROM chunks WHERE project_id = $1)
`, projectID)
	if err != nil {
		return fmt.Errorf("delete project embeddings: %w", err)
	}
	return nil
}

func (r *EmbeddingRepository) CountByProject(ctx context.Context, projectID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
SELECT COUNT(*)
FROM embeddings e
JOIN chunks c ON c.id = e.chunk_id
WHERE c.project_id = $1
`, projectID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count embeddings: %w", err)
	}
	return n, nil
}

func (r *EmbeddingRepository) ListEmbeddedChunks(ctx context.Context, projectID string) ([]ports.EmbeddedChunk, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT c.id, c.document_id, d.filename, COALESCE(c.meta->>'page', ''), c.content, e.dimensions, e.vector
FROM embeddings e
JOIN chunks c ON c.id = e.chunk_id
JOIN documents d ON d.id = c.document_id
WHERE c.project_id = $1
ORDER BY c.document_id, c.chunk_index
`, projectID)
	if err != nil {
		return nil, fmt.Errorf("query embedded chunks: %w", err)
	}
	defer rows.Close()

	var out []ports.EmbeddedChunk
	for rows.Next() {
		var (
			row  ports.EmbeddedChunk
			dims int
			raw  []byte
		)
		if err := rows.Scan(&row.ChunkID, &row.DocumentID, &row.Filename, &row.Locator,
			&row.Text, &dims, &raw); err != nil {
			return nil, fmt.Errorf("scan embedded chunk: %w", err)
		}
		vec, err := vector.Decode(raw, dims)
		if err != nil {
			return nil, domain.WrapError(domain.ErrTemporary, "decode embedding",
				fmt.Errorf("chunk %s: %w", row.ChunkID, err))
		}
		row.Vector = vec
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate embedded chunks: %w", err)
	}
	return out, nil
}
