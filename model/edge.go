package model

import (
	"time"

	"github.com/google/uuid"
)

// EdgeType represents the type of a staged relationship edge
type EdgeType string

const (
	EdgeTypeDocumentProject  EdgeType = "document_project"
	EdgeTypeChunkDocument    EdgeType = "chunk_document"
	EdgeTypeMentionChunk     EdgeType = "mention_chunk"
	EdgeTypeMentionCanonical EdgeType = "mention_canonical"
)

// RelationshipEdge is a lightweight staged relationship between two
// pipeline records, written for downstream graph/analytics consumers.
// (DocumentID, SourceID, TargetID, EdgeType) is the natural identity.
type RelationshipEdge struct {
	ID         uuid.UUID `json:"id"`
	DocumentID int       `json:"document_id"`
	SourceID   uuid.UUID `json:"source_id"`
	TargetID   uuid.UUID `json:"target_id"`
	EdgeType   EdgeType  `json:"edge_type"`
	Metadata   Metadata  `json:"metadata,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
