package extractor

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/avpetrov/reportgen/internal/core/domain"
)

type storageFake struct {
	data map[string][]byte
}

func (f *storageFake) Save(_ context.Context, key string, data io.Reader) error {
	raw, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	if f.data == nil {
		f.data = map[string][]byte{}
	}
	f.data[key] = raw
	return nil
}

func (f *storageFake) Open(_ context.Context, key string) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader(string(f.data[key]))), nil
}

func (f *storageFake) Delete(_ context.Context, key string) error {
	delete(f.data, key)
	return nil
}

func newExtractorWithFile(filename, mime string, raw []byte) (*Extractor, *domain.Document) {
	storage := &storageFake{data: map[string][]byte{"key": raw}}
	doc := &domain.Document{ID: "doc-1", Filename: filename, MimeType: mime, StoragePath: "key"}
	return New(storage), doc
}

func TestExtractPlainText(t *testing.T) {
	e, doc := newExtractorWithFile("notes.txt", "text/plain; charset=utf-8", []byte("  hello world  "))
	text, _, err := e.Extract(context.Background(), doc)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if text != "hello world" {
		t.Fatalf("expected trimmed text, got %q", text)
	}
}

func TestExtractCSVJoinsFields(t *testing.T) {
	e, doc := newExtractorWithFile("table.csv", "text/csv", []byte("a,b,c\n1,2,3\n"))
	text, _, err := e.Extract(context.Background(), doc)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if !strings.Contains(text, "a | b | c") || !strings.Contains(text, "1 | 2 | 3") {
		t.Fatalf("expected joined rows, got %q", text)
	}
}

func TestExtractJSONFlattens(t *testing.T) {
	e, doc := newExtractorWithFile("data.json", "application/json", []byte(`{"company":{"name":"Acme","sites":[1,2]}}`))
	text, _, err := e.Extract(context.Background(), doc)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if !strings.Contains(text, "company.name: Acme") {
		t.Fatalf("expected flattened path, got %q", text)
	}
	if !strings.Contains(text, "company.sites[0]: 1") {
		t.Fatalf("expected flattened array path, got %q", text)
	}
}

func TestExtractMalformedJSONIsExtractionFailed(t *testing.T) {
	e, doc := newExtractorWithFile("data.json", "application/json", []byte(`{broken`))
	_, _, err := e.Extract(context.Background(), doc)
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrExtractionFailed) {
		t.Fatalf("expected ErrExtractionFailed, got %v", err)
	}
}

func TestExtractCorruptPDFIsExtractionFailed(t *testing.T) {
	e, doc := newExtractorWithFile("broken.pdf", "application/pdf", []byte("not a pdf at all"))
	_, _, err := e.Extract(context.Background(), doc)
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrExtractionFailed) {
		t.Fatalf("expected ErrExtractionFailed, got %v", err)
	}
}

func TestExtractEmptyContentSubstitutesPlaceholder(t *testing.T) {
	e, doc := newExtractorWithFile("empty.txt", "text/plain", []byte("   \n  "))
	text, meta, err := e.Extract(context.Background(), doc)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if !strings.Contains(text, "empty.txt") {
		t.Fatalf("expected placeholder naming the file, got %q", text)
	}
	if len(meta.Warnings) == 0 {
		t.Fatalf("expected a warning about empty content")
	}
}

func TestExtractUnknownTypeBestEffort(t *testing.T) {
	raw := append([]byte("readable"), 0x00, 0x01, 0x02)
	raw = append(raw, []byte(" tail")...)
	e, doc := newExtractorWithFile("blob.bin", "application/octet-stream", raw)
	text, meta, err := e.Extract(context.Background(), doc)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if !strings.Contains(text, "readable") || !strings.Contains(text, "tail") {
		t.Fatalf("expected readable runes preserved, got %q", text)
	}
	if len(meta.Warnings) == 0 {
		t.Fatalf("expected best-effort warning")
	}
}
