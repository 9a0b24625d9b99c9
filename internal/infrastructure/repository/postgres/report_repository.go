package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/avpetrov/reportgen/internal/core/domain"
)

type ReportRepository struct {
	db *sql.DB
}

func NewReportRepository(db *sql.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

func (r *ReportRepository) UpsertReport(ctx context.Context, report *domain.Report) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO reports (project_id, body, export_path, generated_at)
VALUES ($1,$2,$3,$4)
ON CONFLICT (project_id) DO UPDATE SET body = EXCLUDED.body, export_path = EXCLUDED.export_path, generated_at = EXCLUDED.generated_at
`, report.ProjectID, report.Body, report.ExportPath, report.GeneratedAt)
	if err != nil {
		return fmt.Errorf("upsert report: %w", err)
	}
	return nil
}

func (r *ReportRepository) GetReport(ctx context.Context, projectID string) (*domain.Report, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT project_id, body, export_path, generated_at
FROM reports
WHERE project_id = $1
`, projectID)

	var report domain.Report
	err := row.Scan(&report.ProjectID, &report.Body, &report.ExportPath, &report.GeneratedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrNotFound, "fetch report", fmt.Errorf("project %s", projectID))
		}
		return nil, fmt.Errorf("scan report: %w", err)
	}
	return &report, nil
}

func (r *ReportRepository) SetExportPath(ctx context.Context, projectID, path string) error {
	result, err := r.db.ExecContext(ctx, `
UPDATE reports
SET export_path = $2
WHERE project_id = $1
`, projectID, path)
	if err != nil {
		return fmt.Errorf("set export path: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrNotFound, "set export path", fmt.Errorf("project %s has no report", projectID))
	}
	return nil
}

func (r *ReportRepository) ReplaceCitations(ctx context.Context, projectID string, citations []domain.Citation) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin citation tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM citations WHERE project_id = $1`, projectID); err != nil {
		return fmt.Errorf("delete old citations: %w", err)
	}
	for _, c := range citations {
		_, err := tx.ExecContext(ctx, `
INSERT INTO citations (project_id, document_id, section, locator, snippet, confidence)
VALUES ($1,$2,$3,$4,$5,$6)
`, projectID, c.DocumentID, c.Section, c.Locator, c.Snippet, c.Confidence)
		if err != nil {
			return fmt.Errorf("insert citation: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit citation tx: %w", err)
	}
	return nil
}

func (r *ReportRepository) ListCitations(ctx context.Context, projectID string) ([]domain.Citation, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT project_id, document_id, section, locator, snippet, confidence
FROM citations
WHERE project_id = $1
ORDER BY id
`, projectID)
	if err != nil {
		return nil, fmt.Errorf("query citations: %w", err)
	}
	defer rows.Close()

	var citations []domain.Citation
	for rows.Next() {
		var c domain.Citation
		if err := rows.Scan(&c.ProjectID, &c.DocumentID, &c.Section, &c.Locator, &c.Snippet, &c.Confidence); err != nil {
			return nil, fmt.Errorf("scan citation: %w", err)
		}
		citations = append(citations, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate citations: %w", err)
	}
	return citations, nil
}

func (r *ReportRepository) ReplaceArtifacts(ctx context.Context, projectID string, artifacts []domain.Artifact) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin artifact tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM artifacts WHERE project_id = $1`, projectID); err != nil {
		return fmt.Errorf("delete old artifacts: %w", err)
	}
	for _, a := range artifacts {
		_, err := tx.ExecContext(ctx, `
INSERT INTO artifacts (project_id, family, kind, title, body, created_at)
VALUES ($1,$2,$3,$4,$5,$6)
`, projectID, string(a.Family), a.Kind, a.Title, a.Body, a.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert artifact: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit artifact tx: %w", err)
	}
	return nil
}

func (r *ReportRepository) ListArtifacts(ctx context.Context, projectID string) ([]domain.Artifact, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT project_id, family, kind, title, body, created_at
FROM artifacts
WHERE project_id = $1
ORDER BY family, kind
`, projectID)
	if err != nil {
		return nil, fmt.Errorf("query artifacts: %w", err)
	}
	defer rows.Close()

	var artifacts []domain.Artifact
	for rows.Next() {
		var (
			a      domain.Artifact
			family string
		)
		if err := rows.Scan(&a.ProjectID, &family, &a.Kind, &a.Title, &a.Body, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan artifact: %w", err)
		}
		a.Family = domain.ArtifactFamily(family)
		artifacts = append(artifacts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate artifacts: %w", err)
	}
	return artifacts, nil
}
