package domain

import "time"

type DocumentStatus string

const (
	DocPending    DocumentStatus = "pending"
	DocProcessing DocumentStatus = "processing"
	DocProcessed  DocumentStatus = "processed"
	DocError      DocumentStatus = "error"
)

// Document is one uploaded source file. It is mutated only by the extractor
// stage and deleted only by explicit user action, which cascades its chunks.
type Document struct {
	ID          string         `json:"id"`
	ProjectID   string         `json:"project_id"`
	Filename    string         `json:"filename"`
	StoragePath string         `json:"storage_path"`
	SizeBytes   int64          `json:"size_bytes"`
	MimeType    string         `json:"mime_type"`
	Status      DocumentStatus `json:"status"`
	Error       string         `json:"error,omitempty"`
	PageCount   int            `json:"page_count,omitempty"`
	UploadedAt  time.Time      `json:"uploaded_at"`
	ProcessedAt *time.Time     `json:"processed_at,omitempty"`
}
