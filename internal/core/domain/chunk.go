package domain

import "time"

// Chunk is a contiguous slice of a document's extracted text, the unit of
// embedding and retrieval. Immutable once created: re-ingestion replaces a
// document's chunk set wholesale, never patches it.
type Chunk struct {
	ID         string            `json:"id"`
	DocumentID string            `json:"document_id"`
	ProjectID  string            `json:"project_id"`
	Index      int               `json:"index"`
	Text       string            `json:"text"`
	Meta       map[string]string `json:"meta,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
}

// Meta keys written by the ingest stage and read back for citations.
const (
	MetaPage     = "page"
	MetaDocType  = "doc_type"
	MetaFilename = "filename"
)

// RetrievedChunk is one ranked retrieval hit with the citation metadata the
// report orchestrator needs.
type RetrievedChunk struct {
	ChunkID    string  `json:"chunk_id"`
	DocumentID string  `json:"document_id"`
	Filename   string  `json:"filename"`
	Locator    string  `json:"locator"`
	Text       string  `json:"text"`
	Similarity float64 `json:"similarity"`
}
