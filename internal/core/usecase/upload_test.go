package usecase

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/avpetrov/reportgen/internal/core/domain"
	"github.com/avpetrov/reportgen/internal/core/ports"
)

func uploadFixture(status domain.ProjectStatus) (*UploadUseCase, *projectRepoFake, *documentRepoFake, *storageFake, *queueFake) {
	project := &domain.Project{ID: "proj-1", Title: "Ops Review", Client: "Acme", Status: status}
	projects := newProjectRepoFake(project)
	documents := newDocumentRepoFake()
	storage := newStorageFake()
	queue := &queueFake{}
	uc := NewUploadUseCase(projects, documents, storage, queue, UploadLimits{
		MaxBytes:          1 << 20,
		AllowedExtensions: []string{".txt", ".md", ".pdf"},
	})
	return uc, projects, documents, storage, queue
}

func uploadFile(name, mime, body string) ports.UploadFile {
	return ports.UploadFile{
		Meta: domain.FileUpload{Filename: name, MimeType: mime, SizeBytes: int64(len(body))},
		Body: bytes.NewBufferString(body),
	}
}

func TestCreateProjectDefaults(t *testing.T) {
	uc, _, _, _, _ := uploadFixture(domain.StatusDraft)

	created, err := uc.CreateProject(context.Background(), &domain.Project{Title: "New Engagement", Client: "Acme"})
	if err != nil {
		t.Fatalf("CreateProject() error = %v", err)
	}
	if created.ID == "" {
		t.Fatalf("expected generated project id")
	}
	if created.Status != domain.StatusDraft {
		t.Fatalf("expected draft status, got %s", created.Status)
	}
	if created.RAG != domain.DefaultRAGOptions() {
		t.Fatalf("expected default RAG options, got %+v", created.RAG)
	}
	if created.CreatedAt.IsZero() {
		t.Fatalf("expected creation timestamp")
	}
}

func TestCreateProjectRequiresTitle(t *testing.T) {
	uc, _, _, _, _ := uploadFixture(domain.StatusDraft)

	_, err := uc.CreateProject(context.Background(), &domain.Project{Title: "  "})
	if !domain.IsKind(err, domain.ErrUnsupportedInput) {
		t.Fatalf("expected unsupported input error, got %v", err)
	}
}

func TestUploadDocumentsBatch(t *testing.T) {
	uc, projects, documents, storage, queue := uploadFixture(domain.StatusDraft)

	outcomes, err := uc.UploadDocuments(context.Background(), "proj-1", []ports.UploadFile{
		uploadFile("notes.txt", "text/plain", "hello"),
		uploadFile("binary.exe", "application/octet-stream", "MZ"),
		uploadFile("brief.md", "text/markdown", "# brief"),
	})
	if err != nil {
		t.Fatalf("UploadDocuments() error = %v", err)
	}
	if len(outcomes) != 3 {
		t.Fatalf("expected 3 outcomes, got %d", len(outcomes))
	}
	if outcomes[0].State != domain.UploadAccepted || outcomes[2].State != domain.UploadAccepted {
		t.Fatalf("expected txt and md accepted, got %s / %s", outcomes[0].State, outcomes[2].State)
	}
	if outcomes[1].State != domain.UploadError {
		t.Fatalf("expected exe rejected, got %s", outcomes[1].State)
	}

	if got := projects.status("proj-1"); got != domain.StatusUploading {
		t.Fatalf("expected project uploading, got %s", got)
	}
	docs, _ := documents.ListByProject(context.Background(), "proj-1")
	if len(docs) != 2 {
		t.Fatalf("expected 2 documents created, got %d", len(docs))
	}
	if len(storage.objects) != 2 {
		t.Fatalf("expected 2 stored objects, got %d", len(storage.objects))
	}
	if len(queue.published) != 1 || queue.published[0] != "proj-1" {
		t.Fatalf("expected one pipeline job for proj-1, got %v", queue.published)
	}
}

func TestUploadDocumentsDuplicateFilename(t *testing.T) {
	uc, _, documents, _, _ := uploadFixture(domain.StatusDraft)
	if err := documents.Create(context.Background(), &domain.Document{
		ID: "doc-existing", ProjectID: "proj-1", Filename: "notes.txt", Status: domain.DocProcessed,
	}); err != nil {
		t.Fatalf("seed document: %v", err)
	}

	outcomes, err := uc.UploadDocuments(context.Background(), "proj-1", []ports.UploadFile{
		uploadFile("notes.txt", "text/plain", "again"),
	})
	if err != nil {
		t.Fatalf("UploadDocuments() error = %v", err)
	}
	if outcomes[0].State != domain.UploadDuplicate {
		t.Fatalf("expected duplicate outcome, got %s", outcomes[0].State)
	}
}

func TestUploadDocumentsSizeLimit(t *testing.T) {
	uc, _, _, storage, queue := uploadFixture(domain.StatusDraft)

	outcomes, err := uc.UploadDocuments(context.Background(), "proj-1", []ports.UploadFile{
		{
			Meta: domain.FileUpload{Filename: "huge.txt", MimeType: "text/plain", SizeBytes: 2 << 20},
			Body: bytes.NewBufferString("..."),
		},
	})
	if err != nil {
		t.Fatalf("UploadDocuments() error = %v", err)
	}
	if outcomes[0].State != domain.UploadError || !strings.Contains(outcomes[0].Error, "exceeds") {
		t.Fatalf("expected size rejection, got %+v", outcomes[0])
	}
	if len(storage.objects) != 0 {
		t.Fatalf("rejected file must not be stored")
	}
	if len(queue.published) != 0 {
		t.Fatalf("batch with no accepted file must not queue a pipeline run")
	}
}

func TestUploadDocumentsQueueFailureIsNotFatal(t *testing.T) {
	uc, _, _, _, queue := uploadFixture(domain.StatusDraft)
	queue.publishErr = context.DeadlineExceeded

	outcomes, err := uc.UploadDocuments(context.Background(), "proj-1", []ports.UploadFile{
		uploadFile("notes.txt", "text/plain", "hello"),
	})
	if err != nil {
		t.Fatalf("UploadDocuments() error = %v", err)
	}
	if outcomes[0].State != domain.UploadAccepted {
		t.Fatalf("queue failure must not fail the upload, got %s", outcomes[0].State)
	}
}

func TestUploadDocumentsUnknownProject(t *testing.T) {
	uc, _, _, _, _ := uploadFixture(domain.StatusDraft)

	_, err := uc.UploadDocuments(context.Background(), "missing", []ports.UploadFile{
		uploadFile("notes.txt", "text/plain", "hello"),
	})
	if !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestDeleteDocumentChecksOwnership(t *testing.T) {
	uc, _, documents, _, _ := uploadFixture(domain.StatusDraft)
	if err := documents.Create(context.Background(), &domain.Document{
		ID: "doc-1", ProjectID: "other-project", Filename: "notes.txt",
	}); err != nil {
		t.Fatalf("seed document: %v", err)
	}

	err := uc.DeleteDocument(context.Background(), "proj-1", "doc-1")
	if !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected not found for foreign document, got %v", err)
	}
}

func TestSanitizeFilename(t *testing.T) {
	cases := map[string]string{
		"report 2024.pdf":      "report_2024.pdf",
		"../../etc/passwd":     "passwd",
		"ümlaut näme.txt":      "_mlaut_n_me.txt",
		"plain.txt":            "plain.txt",
	}
	for in, want := range cases {
		if got := sanitizeFilename(in); got != want {
			t.Fatalf("sanitizeFilename(%q) = %q, want %q", in, got, want)
		}
	}
}
