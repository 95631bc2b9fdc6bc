package model

import (
	"time"

	"github.com/google/uuid"
)

// Resolution method labels attached to canonical entities.
const (
	ResolutionMethodExact = "exact"
	ResolutionMethodFuzzy = "fuzzy"
)

// CanonicalEntity is a deduplicated real-world entity representing one
// or more mentions of the same type. Name is the longest observed
// surface form of its group; Aliases holds all distinct surface forms.
type CanonicalEntity struct {
	ID               uuid.UUID `json:"id"`
	DocumentID       int       `json:"document_id"`
	Name             string    `json:"name"`
	EntityType       string    `json:"entity_type"`
	Aliases          []string  `json:"aliases"`
	MentionCount     int       `json:"mention_count"`
	Confidence       float64   `json:"confidence"`
	ResolutionMethod string    `json:"resolution_method"`
	Metadata         Metadata  `json:"metadata,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}
