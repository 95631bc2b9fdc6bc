package retrieval

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rheinberg/docflow/database"
	"github.com/rheinberg/docflow/helper"
	"github.com/rheinberg/docflow/model"
)

const (
	// DefaultLimit is the default number of chunks returned per query
	DefaultLimit = 10
	// DefaultThreshold is the default minimum cosine similarity
	DefaultThreshold = 0.7
)

// QueryConfig configures a retrieval query
type QueryConfig struct {
	// Limit caps the number of returned chunks (DefaultLimit if <= 0)
	Limit int
	// Threshold is the minimum similarity for vector retrieval
	// (DefaultThreshold if <= 0)
	Threshold float64
	// DocumentRIDs restricts retrieval to the given documents
	DocumentRIDs []uuid.UUID
	// WithNeighbors additionally returns the chunks adjacent by index
	// to every vector hit
	WithNeighbors bool
}

// Result is one retrieved chunk with its score and provenance
type Result struct {
	Chunk *model.Chunk
	Score float64
	// Source names how the chunk was found: vector, neighbor or entity
	Source string
}

// Engine retrieves processed chunks by vector similarity and through
// the resolved entity layer
type Engine struct {
	chunks   database.ChunksDBHandlerFunctions
	mentions database.MentionsDBHandlerFunctions
	entities database.EntitiesDBHandlerFunctions
}

// NewEngine creates a retrieval engine on top of the database handlers
func NewEngine(
	chunks database.ChunksDBHandlerFunctions,
	mentions database.MentionsDBHandlerFunctions,
	entities database.EntitiesDBHandlerFunctions,
) *Engine {
	return &Engine{
		chunks:   chunks,
		mentions: mentions,
		entities: entities,
	}
}

func (c *QueryConfig) normalized() QueryConfig {
	normalized := QueryConfig{}
	if c != nil {
		normalized = *c
	}
	if normalized.Limit <= 0 {
		normalized.Limit = DefaultLimit
	}
	if normalized.Threshold <= 0 {
		normalized.Threshold = DefaultThreshold
	}
	return normalized
}

// VectorRetrieve returns the chunks most similar to the query
// embedding, optionally restricted to specific documents and expanded
// with index-adjacent neighbor chunks.
func (e *Engine) VectorRetrieve(ctx context.Context, embedding []float32, config *QueryConfig) ([]*Result, error) {
	if len(embedding) == 0 {
		return nil, helper.NewError("vector retrieve", fmt.Errorf("query embedding is empty"))
	}
	if err := ctx.Err(); err != nil {
		return nil, helper.NewError("vector retrieve", err)
	}

	query := config.normalized()

	chunks, err := e.chunks.SelectChunksBySimilarity(embedding, query.Limit, query.Threshold, query.DocumentRIDs)
	if err != nil {
		return nil, helper.NewError("similarity search", err)
	}

	results := make([]*Result, 0, len(chunks))
	for _, chunk := range chunks {
		results = append(results, &Result{Chunk: chunk, Score: chunk.Similarity, Source: "vector"})
	}

	if query.WithNeighbors {
		results, err = e.expandNeighbors(results)
		if err != nil {
			return nil, err
		}
	}

	return results, nil
}

// expandNeighbors appends the chunks adjacent by index to every hit,
// keeping hit scores and marking additions as neighbors
func (e *Engine) expandNeighbors(hits []*Result) ([]*Result, error) {
	seen := map[uuid.UUID]bool{}
	for _, hit := range hits {
		seen[hit.Chunk.RID] = true
	}

	byDocument := map[uuid.UUID][]*model.Chunk{}
	results := hits
	for _, hit := range hits {
		documentRID := hit.Chunk.DocumentRID
		siblings, ok := byDocument[documentRID]
		if !ok {
			var err error
			siblings, err = e.chunks.SelectChunksByDocument(documentRID)
			if err != nil {
				return nil, helper.NewError("select neighbor chunks", err)
			}
			byDocument[documentRID] = siblings
		}

		for _, sibling := range siblings {
			distance := sibling.ChunkIndex - hit.Chunk.ChunkIndex
			if distance != -1 && distance != 1 {
				continue
			}
			if seen[sibling.RID] {
				continue
			}
			seen[sibling.RID] = true
			results = append(results, &Result{Chunk: sibling, Score: hit.Score, Source: "neighbor"})
		}
	}

	return results, nil
}

// EntityRetrieve returns the chunks containing mentions resolved to
// the given canonical entity, most confident mention first
func (e *Engine) EntityRetrieve(ctx context.Context, entityID uuid.UUID, config *QueryConfig) ([]*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, helper.NewError("entity retrieve", err)
	}

	query := config.normalized()

	entity, err := e.entities.SelectCanonicalEntity(entityID)
	if err != nil {
		return nil, helper.NewError("select canonical entity", err)
	}

	mentions, err := e.mentions.SelectMentionsByDocument(entity.DocumentID)
	if err != nil {
		return nil, helper.NewError("select mentions", err)
	}

	var results []*Result
	seen := map[uuid.UUID]bool{}
	for _, mention := range mentions {
		if mention.CanonicalEntityID == nil || *mention.CanonicalEntityID != entityID {
			continue
		}
		if seen[mention.ChunkRID] {
			continue
		}
		seen[mention.ChunkRID] = true

		chunk, err := e.chunks.SelectChunk(mention.ChunkRID)
		if err != nil {
			return nil, helper.NewError("select chunk", err)
		}

		results = append(results, &Result{Chunk: chunk, Score: mention.Confidence, Source: "entity"})
		if len(results) >= query.Limit {
			break
		}
	}

	return results, nil
}
