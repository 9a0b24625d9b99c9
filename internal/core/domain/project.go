package domain

import "time"

// RAGOptions holds the per-project retrieval tuning knobs.
type RAGOptions struct {
	ChunkSize     int     `json:"chunk_size"`
	ChunkOverlap  int     `json:"chunk_overlap"`
	TopK          int     `json:"top_k"`
	MinSimilarity float64 `json:"min_similarity"`
}

func DefaultRAGOptions() RAGOptions {
	return RAGOptions{
		ChunkSize:     900,
		ChunkOverlap:  150,
		TopK:          5,
		MinSimilarity: 0.25,
	}
}

// Normalize clamps out-of-range option values to usable defaults so a project
// created with a partial payload still drives the pipeline correctly.
func (o RAGOptions) Normalize() RAGOptions {
	def := DefaultRAGOptions()
	out := o
	if out.ChunkSize <= 0 {
		out.ChunkSize = def.ChunkSize
	}
	if out.ChunkOverlap < 0 {
		out.ChunkOverlap = 0
	}
	if out.ChunkOverlap >= out.ChunkSize {
		out.ChunkOverlap = out.ChunkSize / 4
	}
	if out.TopK <= 0 {
		out.TopK = def.TopK
	}
	if out.MinSimilarity < 0 || out.MinSimilarity >= 1 {
		out.MinSimilarity = def.MinSimilarity
	}
	return out
}

// Project is the aggregate root. Its Status field is the single point of
// mutual exclusion between pipeline runs; it is only mutated through
// repository compare-and-set transitions validated by CanTransition.
type Project struct {
	ID            string        `json:"id"`
	Title         string        `json:"title"`
	Client        string        `json:"client"`
	Language      string        `json:"language"`
	Methodologies []string      `json:"methodologies"`
	RAG           RAGOptions    `json:"rag"`
	Status        ProjectStatus `json:"status"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}
