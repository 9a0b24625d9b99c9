package domain

import "time"

// Citation links a generated report section back to a source chunk. The full
// set is replaced on every regeneration of a project's report.
type Citation struct {
	ProjectID  string  `json:"project_id"`
	DocumentID string  `json:"document_id"`
	Section    string  `json:"section"`
	Locator    string  `json:"locator"`
	Snippet    string  `json:"snippet"`
	Confidence float64 `json:"confidence"`
}

// Report is the generated document for a project, at most one per project.
type Report struct {
	ProjectID   string    `json:"project_id"`
	Body        string    `json:"body"`
	GeneratedAt time.Time `json:"generated_at"`
	ExportPath  string    `json:"export_path,omitempty"`
}

type ArtifactFamily string

const (
	ArtifactDiagram ArtifactFamily = "diagram"
	ArtifactTable   ArtifactFamily = "table"
)

// Artifact is a generated diagram (mermaid text) or data table (TSV rows)
// attached to a project, keyed by kind. A generation run replaces all
// artifacts of the previous run.
type Artifact struct {
	ProjectID string         `json:"project_id"`
	Family    ArtifactFamily `json:"family"`
	Kind      string         `json:"kind"`
	Title     string         `json:"title"`
	Body      string         `json:"body"`
	CreatedAt time.Time      `json:"created_at"`
}
