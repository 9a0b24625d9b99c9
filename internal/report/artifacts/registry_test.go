package artifacts

import (
	"strings"
	"testing"

	"github.com/avpetrov/reportgen/internal/core/domain"
)

func sampleData() ProjectData {
	return ProjectData{
		Project: domain.Project{
			ID:            "proj-1",
			Title:         "Operations Review",
			Client:        "Acme GmbH",
			Methodologies: []string{"SWOT", "Value Chain"},
		},
		Documents: []domain.Document{
			{ID: "doc-b", Filename: "b-findings.pdf", MimeType: "application/pdf", Status: domain.DocProcessed, PageCount: 12},
			{ID: "doc-a", Filename: "a-notes.txt", MimeType: "text/plain", Status: domain.DocError},
		},
		ChunkCount: 42,
		Citations: []domain.Citation{
			{Section: "findings", DocumentID: "doc-b", Locator: "p.3", Confidence: 0.91},
			{Section: "current_state", DocumentID: "doc-b", Locator: "p.1", Confidence: 0.77},
		},
	}
}

func TestRegistryKindsSortedAndComplete(t *testing.T) {
	r := NewRegistry()
	kinds := r.Kinds()
	if len(kinds) != 6 {
		t.Fatalf("expected 6 kinds, got %d: %v", len(kinds), kinds)
	}
	for i := 1; i < len(kinds); i++ {
		if kinds[i] <= kinds[i-1] {
			t.Fatalf("kinds not sorted: %v", kinds)
		}
	}
}

func TestGenerateUnknownKind(t *testing.T) {
	r := NewRegistry()
	_, err := r.Generate("nope", sampleData())
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrUnsupportedInput) {
		t.Fatalf("expected ErrUnsupportedInput, got %v", err)
	}
}

func TestGeneratorsAreDeterministic(t *testing.T) {
	r := NewRegistry()
	data := sampleData()
	for _, kind := range r.Kinds() {
		first, err := r.Generate(kind, data)
		if err != nil {
			t.Fatalf("Generate(%s) error = %v", kind, err)
		}
		second, err := r.Generate(kind, data)
		if err != nil {
			t.Fatalf("Generate(%s) second run error = %v", kind, err)
		}
		if first.Body != second.Body {
			t.Fatalf("generator %s is not deterministic", kind)
		}
		if first.Body == "" {
			t.Fatalf("generator %s produced empty body", kind)
		}
	}
}

func TestPipelineFlowCountsDocuments(t *testing.T) {
	r := NewRegistry()
	artifact, err := r.Generate("pipeline_flow", sampleData())
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if artifact.Family != domain.ArtifactDiagram {
		t.Fatalf("expected diagram family, got %s", artifact.Family)
	}
	if !strings.Contains(artifact.Body, "Uploads (2)") || !strings.Contains(artifact.Body, "Extracted (1)") {
		t.Fatalf("unexpected counts in body:\n%s", artifact.Body)
	}
	if !strings.Contains(artifact.Body, "Failed (1)") {
		t.Fatalf("expected failed branch in body:\n%s", artifact.Body)
	}
	if !strings.Contains(artifact.Body, "Chunks (42)") {
		t.Fatalf("expected chunk count in body:\n%s", artifact.Body)
	}
}

func TestDocumentInventorySortedByFilename(t *testing.T) {
	r := NewRegistry()
	artifact, err := r.Generate("document_inventory", sampleData())
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if artifact.Family != domain.ArtifactTable {
		t.Fatalf("expected table family, got %s", artifact.Family)
	}
	lines := strings.Split(strings.TrimSpace(artifact.Body), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header plus 2 rows, got %d lines", len(lines))
	}
	if !strings.HasPrefix(lines[1], "a-notes.txt") || !strings.HasPrefix(lines[2], "b-findings.pdf") {
		t.Fatalf("rows not sorted by filename:\n%s", artifact.Body)
	}
}

func TestCitationSummaryOrderedBySection(t *testing.T) {
	r := NewRegistry()
	artifact, err := r.Generate("citation_summary", sampleData())
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	lines := strings.Split(strings.TrimSpace(artifact.Body), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header plus 2 citations, got %d", len(lines))
	}
	if !strings.HasPrefix(lines[1], "current_state") {
		t.Fatalf("expected current_state first:\n%s", artifact.Body)
	}
}
