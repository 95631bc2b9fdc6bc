package model

import (
	"time"

	"github.com/google/uuid"
)

// EntityMention is a single occurrence of a named entity inside one
// chunk. CanonicalEntityID stays nil until the resolution engine links
// the mention to its deduplicated canonical entity.
type EntityMention struct {
	ID                uuid.UUID  `json:"id"`
	ChunkID           int        `json:"chunk_id"`
	ChunkRID          uuid.UUID  `json:"chunk_rid"`
	DocumentID        int        `json:"document_id"`
	SurfaceText       string     `json:"surface_text"`
	NormalizedText    string     `json:"normalized_text,omitempty"`
	EntityType        string     `json:"entity_type"`
	CharStart         int        `json:"char_start"` // Offset within the chunk
	CharEnd           int        `json:"char_end"`
	Confidence        float64    `json:"confidence"`
	CanonicalEntityID *uuid.UUID `json:"canonical_entity_id,omitempty"`
	Metadata          Metadata   `json:"metadata,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}
