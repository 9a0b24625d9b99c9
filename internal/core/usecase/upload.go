package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/avpetrov/reportgen/internal/core/domain"
	"github.com/avpetrov/reportgen/internal/core/ports"
)

// UploadLimits is the upload boundary policy: extension allow-list and
// per-file size ceiling.
type UploadLimits struct {
	MaxBytes          int64
	AllowedExtensions []string
}

type UploadUseCase struct {
	projects ports.ProjectRepository
	docs     ports.DocumentRepository
	storage  ports.ObjectStorage
	queue    ports.MessageQueue
	limits   UploadLimits
}

func NewUploadUseCase(
	projects ports.ProjectRepository,
	docs ports.DocumentRepository,
	storage ports.ObjectStorage,
	queue ports.MessageQueue,
	limits UploadLimits,
) *UploadUseCase {
	return &UploadUseCase{
		projects: projects,
		docs:     docs,
		storage:  storage,
		queue:    queue,
		limits:   limits,
	}
}

func (uc *UploadUseCase) CreateProject(ctx context.Context, p *domain.Project) (*domain.Project, error) {
	if strings.TrimSpace(p.Title) == "" {
		return nil, domain.WrapError(domain.ErrUnsupportedInput, "create project", errors.New("title is required"))
	}
	now := time.Now().UTC()
	created := *p
	created.ID = uuid.NewString()
	created.RAG = p.RAG.Normalize()
	created.Status = domain.StatusDraft
	created.CreatedAt = now
	created.UpdatedAt = now
	if created.Methodologies == nil {
		created.Methodologies = []string{}
	}

	if err := uc.projects.Create(ctx, &created); err != nil {
		return nil, fmt.Errorf("create project: %w", err)
	}
	return &created, nil
}

func (uc *UploadUseCase) GetProject(ctx context.Context, id string) (*domain.Project, error) {
	p, err := uc.projects.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("fetch project: %w", err)
	}
	return p, nil
}

// UploadDocuments stores a batch of files for a project. Each file succeeds
// or fails on its own; a rejected or failed file never aborts the batch.
func (uc *UploadUseCase) UploadDocuments(ctx context.Context, projectID string, files []ports.UploadFile) ([]domain.UploadOutcome, error) {
	p, err := uc.projects.GetByID(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("fetch project: %w", err)
	}
	if len(files) == 0 {
		return nil, domain.WrapError(domain.ErrUnsupportedInput, "upload documents", errors.New("no files in request"))
	}
	if p.Status != domain.StatusUploading {
		if err := uc.projects.CompareAndSetStatus(ctx, p.ID, p.Status, domain.StatusUploading); err != nil {
			return nil, fmt.Errorf("enter uploading state: %w", err)
		}
	}

	outcomes := make([]domain.UploadOutcome, 0, len(files))
	accepted := 0
	for _, file := range files {
		outcome := uc.uploadOne(ctx, p.ID, file)
		if outcome.State == domain.UploadAccepted {
			accepted++
		}
		outcomes = append(outcomes, outcome)
	}

	if accepted > 0 {
		// Pipeline job failures are not upload failures: ingest can always be
		// triggered explicitly through its boundary.
		if err := uc.queue.PublishPipelineRun(ctx, p.ID); err != nil {
			slog.Warn("publish pipeline run failed", "project_id", p.ID, "error", err)
		}
	}
	return outcomes, nil
}

func (uc *UploadUseCase) uploadOne(ctx context.Context, projectID string, file ports.UploadFile) domain.UploadOutcome {
	filename := file.Meta.Filename
	if err := uc.checkLimits(file.Meta); err != nil {
		return domain.UploadOutcome{Filename: filename, State: domain.UploadError, Error: err.Error()}
	}

	exists, err := uc.docs.ExistsByFilename(ctx, projectID, filename)
	if err != nil {
		return domain.UploadOutcome{Filename: filename, State: domain.UploadError, Error: err.Error()}
	}
	if exists {
		return domain.UploadOutcome{Filename: filename, State: domain.UploadDuplicate}
	}

	id := uuid.NewString()
	storageKey := fmt.Sprintf("%s_%s", id, sanitizeFilename(filename))
	if err := uc.storage.Save(ctx, storageKey, file.Body); err != nil {
		return domain.UploadOutcome{Filename: filename, State: domain.UploadError, Error: fmt.Sprintf("store file: %v", err)}
	}

	doc := &domain.Document{
		ID:          id,
		ProjectID:   projectID,
		Filename:    filename,
		StoragePath: storageKey,
		SizeBytes:   file.Meta.SizeBytes,
		MimeType:    file.Meta.MimeType,
		Status:      domain.DocPending,
		UploadedAt:  time.Now().UTC(),
	}
	if err := uc.docs.Create(ctx, doc); err != nil {
		_ = uc.storage.Delete(ctx, storageKey)
		return domain.UploadOutcome{Filename: filename, State: domain.UploadError, Error: fmt.Sprintf("create document: %v", err)}
	}

	return domain.UploadOutcome{Filename: filename, State: domain.UploadAccepted, DocumentID: id}
}

func (uc *UploadUseCase) checkLimits(meta domain.FileUpload) error {
	if uc.limits.MaxBytes > 0 && meta.SizeBytes > uc.limits.MaxBytes {
		return domain.WrapError(domain.ErrUnsupportedInput, "check upload",
			fmt.Errorf("file exceeds size ceiling of %d bytes", uc.limits.MaxBytes))
	}
	if len(uc.limits.AllowedExtensions) == 0 {
		return nil
	}
	ext := strings.ToLower(filepath.Ext(meta.Filename))
	for _, allowed := range uc.limits.AllowedExtensions {
		if ext == allowed {
			return nil
		}
	}
	return domain.WrapError(domain.ErrUnsupportedInput, "check upload",
		fmt.Errorf("extension %q is not allowed", ext))
}

// DeleteDocument removes one document on explicit user request. Chunks and
// their embeddings cascade with the row.
func (uc *UploadUseCase) DeleteDocument(ctx context.Context, projectID, documentID string) error {
	doc, err := uc.docs.GetByID(ctx, documentID)
	if err != nil {
		return fmt.Errorf("fetch document: %w", err)
	}
	if doc.ProjectID != projectID {
		return domain.WrapError(domain.ErrNotFound, "delete document",
			fmt.Errorf("document %s does not belong to project %s", documentID, projectID))
	}
	if err := uc.docs.Delete(ctx, documentID); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if err := uc.storage.Delete(ctx, doc.StoragePath); err != nil {
		slog.Warn("delete stored object failed", "document_id", documentID, "error", err)
	}
	return nil
}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" {
		return "document.bin"
	}
	return base
}
