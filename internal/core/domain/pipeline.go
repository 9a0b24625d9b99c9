package domain

// FileUpload is one file submitted through the upload boundary.
type FileUpload struct {
	Filename  string
	MimeType  string
	SizeBytes int64
}

type UploadState string

const (
	UploadAccepted  UploadState = "uploaded"
	UploadDuplicate UploadState = "duplicate"
	UploadError     UploadState = "error"
)

// UploadOutcome is the per-file result of an upload batch. A failed file never
// aborts the batch.
type UploadOutcome struct {
	Filename   string      `json:"filename"`
	State      UploadState `json:"state"`
	DocumentID string      `json:"document_id,omitempty"`
	Error      string      `json:"error,omitempty"`
}

// DocumentOutcome is the per-document result of an ingest run.
type DocumentOutcome struct {
	DocumentID string `json:"document_id"`
	Filename   string `json:"filename"`
	Processed  bool   `json:"processed"`
	Chunks     int    `json:"chunks"`
	Error      string `json:"error,omitempty"`
}

type IngestResult struct {
	ProjectID          string            `json:"project_id"`
	ProcessedDocuments int               `json:"processed_documents"`
	ErrorDocuments     int               `json:"error_documents"`
	SkippedDocuments   int               `json:"skipped_documents"`
	TotalChunks        int               `json:"total_chunks"`
	Documents          []DocumentOutcome `json:"documents"`
}

type EmbedResult struct {
	ProjectID       string `json:"project_id"`
	NewlyEmbedded   int    `json:"newly_embedded"`
	AlreadyEmbedded int    `json:"already_embedded"`
	Failed          int    `json:"failed"`
	Dimensions      int    `json:"dimensions"`
}

type GenerateResult struct {
	ProjectID       string `json:"project_id"`
	ReportLength    int    `json:"report_length"`
	Sections        int    `json:"sections"`
	PendingSections int    `json:"pending_sections"`
	Diagrams        int    `json:"diagrams"`
	Tables          int    `json:"tables"`
	Citations       int    `json:"citations"`
}
