package retrieval

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/rheinberg/docflow/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChunks struct {
	similarityHits []*model.Chunk
	byDocument     map[uuid.UUID][]*model.Chunk

	lastLimit        int
	lastThreshold    float64
	lastDocumentRIDs []uuid.UUID
}

func (f *fakeChunks) UpsertChunk(chunk *model.Chunk) error { return nil }

func (f *fakeChunks) SelectChunk(rid uuid.UUID) (*model.Chunk, error) {
	for _, chunks := range f.byDocument {
		for _, chunk := range chunks {
			if chunk.RID == rid {
				return chunk, nil
			}
		}
	}
	return nil, assert.AnError
}

func (f *fakeChunks) SelectChunksByDocument(documentRID uuid.UUID) ([]*model.Chunk, error) {
	return f.byDocument[documentRID], nil
}

func (f *fakeChunks) CountChunksByDocument(documentRID uuid.UUID) (int, error) {
	return len(f.byDocument[documentRID]), nil
}

func (f *fakeChunks) UpdateChunkEmbedding(chunk *model.Chunk) error { return nil }

func (f *fakeChunks) SelectChunksBySimilarity(embedding []float32, limit int, threshold float64, documentRIDs []uuid.UUID) ([]*model.Chunk, error) {
	f.lastLimit = limit
	f.lastThreshold = threshold
	f.lastDocumentRIDs = documentRIDs
	return f.similarityHits, nil
}

func (f *fakeChunks) DeleteChunksByDocument(documentRID uuid.UUID) error { return nil }

type fakeMentions struct {
	byDocument map[int][]*model.EntityMention
}

func (f *fakeMentions) UpsertMention(mention *model.EntityMention) error { return nil }

func (f *fakeMentions) SelectMentionsByDocument(documentID int) ([]*model.EntityMention, error) {
	return f.byDocument[documentID], nil
}

func (f *fakeMentions) SelectMentionsByChunk(chunkID int) ([]*model.EntityMention, error) {
	return nil, nil
}

func (f *fakeMentions) CountMentionsByDocument(documentID int) (int, error) {
	return len(f.byDocument[documentID]), nil
}

func (f *fakeMentions) LinkMentionCanonical(mentionID uuid.UUID, canonicalID uuid.UUID) error {
	return nil
}

func (f *fakeMentions) ClearCanonicalLinks(documentID int) error      { return nil }
func (f *fakeMentions) DeleteMentionsByDocument(documentID int) error { return nil }

type fakeEntities struct {
	byID map[uuid.UUID]*model.CanonicalEntity
}

func (f *fakeEntities) UpsertCanonicalEntity(entity *model.CanonicalEntity) error { return nil }

func (f *fakeEntities) SelectCanonicalEntity(id uuid.UUID) (*model.CanonicalEntity, error) {
	entity, ok := f.byID[id]
	if !ok {
		return nil, assert.AnError
	}
	return entity, nil
}

func (f *fakeEntities) SelectEntitiesByDocument(documentID int) ([]*model.CanonicalEntity, error) {
	return nil, nil
}

func (f *fakeEntities) CountEntitiesByDocument(documentID int) (int, error) { return 0, nil }
func (f *fakeEntities) DeleteEntitiesByDocument(documentID int) error       { return nil }

func testChunk(documentRID uuid.UUID, index int, similarity float64) *model.Chunk {
	return &model.Chunk{
		ID:          index + 1,
		RID:         uuid.New(),
		DocumentRID: documentRID,
		ChunkIndex:  index,
		Content:     "chunk content",
		Similarity:  similarity,
	}
}

func TestVectorRetrieve(t *testing.T) {
	ctx := context.Background()
	documentRID := uuid.New()

	chunks := []*model.Chunk{
		testChunk(documentRID, 0, 0),
		testChunk(documentRID, 1, 0),
		testChunk(documentRID, 2, 0),
		testChunk(documentRID, 3, 0),
	}
	hit := *chunks[1]
	hit.Similarity = 0.92

	fake := &fakeChunks{
		similarityHits: []*model.Chunk{&hit},
		byDocument:     map[uuid.UUID][]*model.Chunk{documentRID: chunks},
	}
	engine := NewEngine(fake, &fakeMentions{}, &fakeEntities{})

	t.Run("Returns similarity hits with scores", func(t *testing.T) {
		results, err := engine.VectorRetrieve(ctx, []float32{0.1, 0.2}, nil)
		require.NoError(t, err, "Expected VectorRetrieve to not return an error")

		require.Len(t, results, 1)
		assert.Equal(t, 0.92, results[0].Score)
		assert.Equal(t, "vector", results[0].Source)
	})

	t.Run("Applies defaults for limit and threshold", func(t *testing.T) {
		_, err := engine.VectorRetrieve(ctx, []float32{0.1, 0.2}, nil)
		require.NoError(t, err)

		assert.Equal(t, DefaultLimit, fake.lastLimit, "Expected default limit")
		assert.Equal(t, DefaultThreshold, fake.lastThreshold, "Expected default threshold")
	})

	t.Run("Passes the document filter through", func(t *testing.T) {
		_, err := engine.VectorRetrieve(ctx, []float32{0.1, 0.2}, &QueryConfig{DocumentRIDs: []uuid.UUID{documentRID}})
		require.NoError(t, err)

		assert.Equal(t, []uuid.UUID{documentRID}, fake.lastDocumentRIDs)
	})

	t.Run("Neighbor expansion adds index-adjacent chunks", func(t *testing.T) {
		results, err := engine.VectorRetrieve(ctx, []float32{0.1, 0.2}, &QueryConfig{WithNeighbors: true})
		require.NoError(t, err)

		require.Len(t, results, 3, "Expected the hit plus its two neighbors")
		assert.Equal(t, "vector", results[0].Source)

		indexes := map[int]string{}
		for _, result := range results[1:] {
			indexes[result.Chunk.ChunkIndex] = result.Source
		}
		assert.Equal(t, "neighbor", indexes[0])
		assert.Equal(t, "neighbor", indexes[2])
		assert.NotContains(t, indexes, 3, "Expected only directly adjacent chunks")
	})

	t.Run("Empty embedding is rejected", func(t *testing.T) {
		_, err := engine.VectorRetrieve(ctx, nil, nil)
		assert.Error(t, err, "Expected error for empty embedding")
	})

	t.Run("Cancelled context is rejected", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		_, err := engine.VectorRetrieve(cancelled, []float32{0.1}, nil)
		assert.Error(t, err, "Expected error for cancelled context")
	})
}

func TestEntityRetrieve(t *testing.T) {
	ctx := context.Background()
	documentRID := uuid.New()
	documentID := 7

	chunks := []*model.Chunk{
		testChunk(documentRID, 0, 0),
		testChunk(documentRID, 1, 0),
	}
	entityID := uuid.New()
	otherEntityID := uuid.New()

	mention := func(chunk *model.Chunk, canonicalID uuid.UUID, confidence float64) *model.EntityMention {
		id := canonicalID
		return &model.EntityMention{
			ID:                uuid.New(),
			ChunkID:           chunk.ID,
			ChunkRID:          chunk.RID,
			DocumentID:        documentID,
			SurfaceText:       "Acme Corporation",
			EntityType:        "ORG",
			Confidence:        confidence,
			CanonicalEntityID: &id,
		}
	}

	engine := NewEngine(
		&fakeChunks{byDocument: map[uuid.UUID][]*model.Chunk{documentRID: chunks}},
		&fakeMentions{byDocument: map[int][]*model.EntityMention{documentID: {
			mention(chunks[0], entityID, 0.95),
			mention(chunks[0], entityID, 0.90),
			mention(chunks[1], otherEntityID, 0.85),
		}}},
		&fakeEntities{byID: map[uuid.UUID]*model.CanonicalEntity{
			entityID:      {ID: entityID, DocumentID: documentID, Name: "Acme Corporation", EntityType: "ORG"},
			otherEntityID: {ID: otherEntityID, DocumentID: documentID, Name: "John Smith", EntityType: "PERSON"},
		}},
	)

	t.Run("Returns the chunks mentioning the entity once each", func(t *testing.T) {
		results, err := engine.EntityRetrieve(ctx, entityID, nil)
		require.NoError(t, err, "Expected EntityRetrieve to not return an error")

		require.Len(t, results, 1, "Expected the shared chunk once despite two mentions")
		assert.Equal(t, chunks[0].RID, results[0].Chunk.RID)
		assert.Equal(t, 0.95, results[0].Score, "Expected the first mention confidence as score")
		assert.Equal(t, "entity", results[0].Source)
	})

	t.Run("Mentions of other entities are ignored", func(t *testing.T) {
		results, err := engine.EntityRetrieve(ctx, otherEntityID, nil)
		require.NoError(t, err)

		require.Len(t, results, 1)
		assert.Equal(t, chunks[1].RID, results[0].Chunk.RID, "Expected only the chunk mentioning the entity")
	})

	t.Run("Unknown entity fails", func(t *testing.T) {
		_, err := engine.EntityRetrieve(ctx, uuid.New(), nil)
		assert.Error(t, err, "Expected unknown entity to fail")
	})
}
