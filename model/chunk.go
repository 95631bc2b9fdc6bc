package model

import (
	"time"

	"github.com/google/uuid"
)

// Chunk represents a contiguous span of a document's raw text.
// ChunkIndex is 0-based and contiguous per document; together with
// DocumentID it forms the natural identity used for idempotent upserts.
// CharStart/CharEnd are offsets into the document's raw text and
// satisfy CharEnd > CharStart; offsets are non-decreasing across the
// chunk ordering.
type Chunk struct {
	ID          int       `json:"id"`
	RID         uuid.UUID `json:"rid"`
	DocumentID  int       `json:"document_id"`
	DocumentRID uuid.UUID `json:"document_rid"`
	ChunkIndex  int       `json:"chunk_index"`
	Content     string    `json:"content"`
	CharStart   int       `json:"char_start"`
	CharEnd     int       `json:"char_end"`
	Embedding   []float32 `json:"embedding,omitempty"`
	Metadata    Metadata  `json:"metadata,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	// Results
	Similarity float64 `json:"similarity,omitempty"`
}
