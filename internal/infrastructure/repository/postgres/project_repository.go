package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/avpetrov/reportgen/internal/core/domain"
)

type ProjectRepository struct {
	db *sql.DB
}

func NewProjectRepository(db *sql.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

func (r *ProjectRepository) Create(ctx context.Context, p *domain.Project) error {
	methodologies, err := json.Marshal(p.Methodologies)
	if err != nil {
		return fmt.Errorf("marshal methodologies: %w", err)
	}
	ragOptions, err := json.Marshal(p.RAG)
	if err != nil {
		return fmt.Errorf("marshal rag options: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO projects (id, title, client, language, methodologies, rag_options, status, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
`,
		p.ID, p.Title, p.Client, p.Language, methodologies, ragOptions,
		string(p.Status), p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert project: %w", err)
	}
	return nil
}

func (r *ProjectRepository) GetByID(ctx context.Context, id string) (*domain.Project, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, title, client, language, methodologies, rag_options, status, created_at, updated_at
FROM projects
WHERE id = $1
`, id)

	var (
		p                domain.Project
		methodologiesRaw []byte
		ragOptionsRaw    []byte
		status           string
	)
	err := row.Scan(&p.ID, &p.Title, &p.Client, &p.Language, &methodologiesRaw, &ragOptionsRaw,
		&status, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrNotFound, "fetch project", fmt.Errorf("project %s", id))
		}
		return nil, fmt.Errorf("scan project: %w", err)
	}

	if err := json.Unmarshal(methodologiesRaw, &p.Methodologies); err != nil {
		return nil, fmt.Errorf("unmarshal methodologies: %w", err)
	}
	if err := json.Unmarshal(ragOptionsRaw, &p.RAG); err != nil {
		return nil, fmt.Errorf("unmarshal rag options: %w", err)
	}
	p.Status = domain.ProjectStatus(status)
	return &p, nil
}

// CompareAndSetStatus moves the project from `from` to `to` in one guarded
// UPDATE. Zero affected rows means another run won the race (or the project
// is gone), reported as a state conflict after re-reading the row.
func (r *ProjectRepository) CompareAndSetStatus(ctx context.Context, id string, from, to domain.ProjectStatus) error {
	if !domain.CanTransition(from, to) {
		return domain.WrapError(domain.ErrStateConflict, "project status transition",
			fmt.Errorf("%s -> %s is not allowed", from, to))
	}

	result, err := r.db.ExecContext(ctx, `
UPDATE projects
SET status = $3, updated_at = $4
WHERE id = $1 AND status = $2
`, id, string(from), string(to), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update project status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return getErr
		}
		return domain.WrapError(domain.ErrStateConflict, "project status transition",
			fmt.Errorf("project %s is no longer %s", id, from))
	}
	return nil
}
