package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/avpetrov/reportgen/internal/core/domain"
	"github.com/avpetrov/reportgen/internal/infrastructure/vector"
)

func TestEmbeddingSaveUpserts(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()
	repo := &EmbeddingRepository{db: db}

	vec := []float32{0.1, 0.2, 0.3}
	mock.ExpectExec("INSERT INTO embeddings").
		WithArgs("chunk-1", 3, vector.Encode(vec), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Save(context.Background(), "chunk-1", vec); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestEmbeddingSaveRejectsEmptyVector(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()
	repo := &EmbeddingRepository{db: db}

	if err := repo.Save(context.Background(), "chunk-1", nil); err == nil {
		t.Fatalf("expected error for empty vector")
	}
}

func TestListEmbeddedChunksDecodesVectors(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()
	repo := &EmbeddingRepository{db: db}

	vec := []float32{1, 0, 0}
	rows := sqlmock.NewRows([]string{"id", "document_id", "filename", "locator", "content", "dimensions", "vector"}).
		AddRow("chunk-1", "doc-a", "notes.txt", "p.2", "chunk text", 3, vector.Encode(vec))
	mock.ExpectQuery("SELECT c.id, c.document_id, d.filename").
		WithArgs("proj-1").
		WillReturnRows(rows)

	out, err := repo.ListEmbeddedChunks(context.Background(), "proj-1")
	if err != nil {
		t.Fatalf("ListEmbeddedChunks() error = %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected 1 row, got %d", len(out))
	}
	got := out[0]
	if got.Filename != "notes.txt" || got.Locator != "p.2" {
		t.Fatalf("unexpected citation fields %+v", got)
	}
	if len(got.Vector) != 3 || got.Vector[0] != 1 {
		t.Fatalf("vector not decoded: %v", got.Vector)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestListEmbeddedChunksRejectsCorruptVector(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()
	repo := &EmbeddingRepository{db: db}

	rows := sqlmock.NewRows([]string{"id", "document_id", "filename", "locator", "content", "dimensions", "vector"}).
		AddRow("chunk-1", "doc-a", "notes.txt", "p.2", "chunk text", 3, []byte{0x01, 0x02})
	mock.ExpectQuery("SELECT c.id, c.document_id, d.filename").
		WithArgs("proj-1").
		WillReturnRows(rows)

	_, err = repo.ListEmbeddedChunks(context.Background(), "proj-1")
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary error for corrupt vector, got %v", err)
	}
}

func TestChunkReplaceForDocumentIsTransactional(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()
	repo := &ChunkRepository{db: db}

	now := time.Now().UTC()
	chunks := []domain.Chunk{
		{ID: "chunk-1", DocumentID: "doc-a", ProjectID: "proj-1", Index: 0, Text: "first", CreatedAt: now},
		{ID: "chunk-2", DocumentID: "doc-a", ProjectID: "proj-1", Index: 1, Text: "second", CreatedAt: now},
	}

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM chunks").WithArgs("doc-a").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO chunks").
		WithArgs("chunk-1", "doc-a", "proj-1", 0, "first", sqlmock.AnyArg(), now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO chunks").
		WithArgs("chunk-2", "doc-a", "proj-1", 1, "second", sqlmock.AnyArg(), now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := repo.ReplaceForDocument(context.Background(), "doc-a", chunks); err != nil {
		t.Fatalf("ReplaceForDocument() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
