package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/avpetrov/reportgen/internal/core/domain"
)

type ChunkRepository struct {
	db *sql.DB
}

func NewChunkRepository(db *sql.DB) *ChunkRepository {
	return &ChunkRepository{db: db}
}

// ReplaceForDocument swaps the document's chunk set in one transaction.
// Embeddings of the old chunks go with them through the FK cascade.
func (r *ChunkRepository) ReplaceForDocument(ctx context.Context, documentID string, chunks []domain.Chunk) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin chunk tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE document_id = $1`, documentID); err != nil {
		return fmt.Errorf("delete old chunks: %w", err)
	}

	for _, chunk := range chunks {
		meta, err := json.Marshal(chunk.Meta)
		if err != nil {
			return fmt.Errorf("marshal chunk meta: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
INSERT INTO chunks (id, document_id, project_id, chunk_index, content, meta, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
`,
			chunk.ID, chunk.DocumentID, chunk.ProjectID, chunk.Index, chunk.Text, meta, chunk.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert chunk: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit chunk tx: %w", err)
	}
	return nil
}

func (r *ChunkRepository) CountByProject(ctx context.Context, projectID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks WHERE project_id = $1`, projectID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count chunks: %w", err)
	}
	return n, nil
}

func (r *ChunkRepository) ListUnembedded(ctx context.Context, projectID string) ([]domain.Chunk, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT c.id, c.document_id, c.project_id, c.chunk_index, c.content, c.meta, c.created_at
FROM chunks c
LEFT JOIN embeddings e ON e.chunk_id = c.id
WHERE c.project_id = $1 AND e.chunk_id IS NULL
ORDER BY c.document_id, c.chunk_index
`, projectID)
	if err != nil {
		return nil, fmt.Errorf("query unembedded chunks: %w", err)
	}
	defer rows.Close()

	var chunks []domain.Chunk
	for rows.Next() {
		var (
			chunk   domain.Chunk
			metaRaw []byte
		)
		if err := rows.Scan(&chunk.ID, &chunk.DocumentID, &chunk.ProjectID, &chunk.Index,
			&chunk.Text, &metaRaw, &chunk.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		if err := json.Unmarshal(metaRaw, &chunk.Meta); err != nil {
			return nil, fmt.Errorf("unmarshal chunk meta: %w", err)
		}
		chunks = append(chunks, chunk)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chunks: %w", err)
	}
	return chunks, nil
}
