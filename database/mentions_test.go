package database

import (
	"testing"

	"github.com/google/uuid"
	"github.com/rheinberg/docflow/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mentionFixture struct {
	documentsDbHandler *DocumentsDBHandler
	chunksDbHandler    *ChunksDBHandler
	mentionsDbHandler  *MentionsDBHandler
	doc                *model.Document
	chunk              *model.Chunk
}

func newMentionFixture(t *testing.T, title string) *mentionFixture {
	t.Helper()
	database := initDB(t)

	documentsDbHandler, err := NewDocumentsDBHandler(database, true)
	require.NoError(t, err)
	chunksDbHandler, err := NewChunksDBHandler(database, 384, true)
	require.NoError(t, err)
	mentionsDbHandler, err := NewMentionsDBHandler(database, true)
	require.NoError(t, err)

	doc := newTestDocument(t, documentsDbHandler, title)
	chunk := &model.Chunk{
		DocumentID: int(doc.ID),
		ChunkIndex: 0,
		Content:    "Acme Corporation signed the agreement with John Smith.",
		CharStart:  0,
		CharEnd:    55,
	}
	require.NoError(t, chunksDbHandler.UpsertChunk(chunk))

	return &mentionFixture{
		documentsDbHandler: documentsDbHandler,
		chunksDbHandler:    chunksDbHandler,
		mentionsDbHandler:  mentionsDbHandler,
		doc:                doc,
		chunk:              chunk,
	}
}

func (f *mentionFixture) cleanup() {
	f.documentsDbHandler.DeleteDocument(f.doc.RID)
}

func TestMentionsNewMentionsDBHandler(t *testing.T) {
	database := initDB(t)

	_, err := NewDocumentsDBHandler(database, true)
	require.NoError(t, err)
	_, err = NewChunksDBHandler(database, 384, true)
	require.NoError(t, err)

	t.Run("Valid call NewMentionsDBHandler", func(t *testing.T) {
		mentionsDbHandler, err := NewMentionsDBHandler(database, true)
		assert.NoError(t, err, "Expected NewMentionsDBHandler to not return an error")
		require.NotNil(t, mentionsDbHandler, "Expected NewMentionsDBHandler to return a non-nil instance")
	})

	t.Run("Invalid call NewMentionsDBHandler with nil database", func(t *testing.T) {
		_, err := NewMentionsDBHandler(nil, false)
		assert.Error(t, err, "Expected error when creating MentionsDBHandler with nil database")
	})
}

func TestMentionsUpsert(t *testing.T) {
	f := newMentionFixture(t, "Mention Upsert Document")
	defer f.cleanup()

	t.Run("Upsert new mention", func(t *testing.T) {
		mention := &model.EntityMention{
			ChunkID:        f.chunk.ID,
			DocumentID:     int(f.doc.ID),
			SurfaceText:    "Acme Corporation",
			NormalizedText: "acme corporation",
			EntityType:     "ORG",
			CharStart:      0,
			CharEnd:        16,
			Confidence:     0.98,
		}

		err := f.mentionsDbHandler.UpsertMention(mention)
		assert.NoError(t, err, "Expected UpsertMention to not return an error")
		assert.NotEqual(t, uuid.Nil, mention.ID, "Expected upserted mention to have an ID")
		assert.Equal(t, f.chunk.RID, mention.ChunkRID, "Expected chunk RID to be filled in")
		assert.Nil(t, mention.CanonicalEntityID, "Expected no canonical link before resolution")
	})

	t.Run("Upsert same span overwrites instead of duplicating", func(t *testing.T) {
		first := &model.EntityMention{
			ChunkID:     f.chunk.ID,
			DocumentID:  int(f.doc.ID),
			SurfaceText: "John Smith",
			EntityType:  "PERSON",
			CharStart:   44,
			CharEnd:     54,
			Confidence:  0.91,
		}
		require.NoError(t, f.mentionsDbHandler.UpsertMention(first))

		second := &model.EntityMention{
			ChunkID:     f.chunk.ID,
			DocumentID:  int(f.doc.ID),
			SurfaceText: "John Smith",
			EntityType:  "PERSON",
			CharStart:   44,
			CharEnd:     54,
			Confidence:  0.95,
		}
		require.NoError(t, f.mentionsDbHandler.UpsertMention(second))

		assert.Equal(t, first.ID, second.ID, "Expected the same row to be reused")
		assert.Equal(t, 0.95, second.Confidence, "Expected confidence to be updated")

		count, err := f.mentionsDbHandler.CountMentionsByDocument(int(f.doc.ID))
		require.NoError(t, err)
		assert.Equal(t, 2, count, "Expected two distinct mention spans")
	})
}

func TestMentionsSelect(t *testing.T) {
	f := newMentionFixture(t, "Mention Select Document")
	defer f.cleanup()

	spans := []struct {
		text      string
		charStart int
		charEnd   int
	}{
		{"Acme Corporation", 0, 16},
		{"John Smith", 44, 54},
	}
	for _, span := range spans {
		mention := &model.EntityMention{
			ChunkID:     f.chunk.ID,
			DocumentID:  int(f.doc.ID),
			SurfaceText: span.text,
			EntityType:  "MISC",
			CharStart:   span.charStart,
			CharEnd:     span.charEnd,
			Confidence:  0.9,
		}
		require.NoError(t, f.mentionsDbHandler.UpsertMention(mention))
	}

	t.Run("Select mentions by document in span order", func(t *testing.T) {
		mentions, err := f.mentionsDbHandler.SelectMentionsByDocument(int(f.doc.ID))
		assert.NoError(t, err, "Expected SelectMentionsByDocument to not return an error")
		require.Len(t, mentions, 2, "Expected all mentions of the document")
		assert.Equal(t, "Acme Corporation", mentions[0].SurfaceText, "Expected mentions ordered by span start")
	})

	t.Run("Select mentions by chunk", func(t *testing.T) {
		mentions, err := f.mentionsDbHandler.SelectMentionsByChunk(f.chunk.ID)
		assert.NoError(t, err, "Expected SelectMentionsByChunk to not return an error")
		assert.Len(t, mentions, 2, "Expected all mentions of the chunk")
	})
}

func TestMentionsCanonicalLinks(t *testing.T) {
	f := newMentionFixture(t, "Mention Link Document")
	defer f.cleanup()

	mention := &model.EntityMention{
		ChunkID:     f.chunk.ID,
		DocumentID:  int(f.doc.ID),
		SurfaceText: "Acme Corporation",
		EntityType:  "ORG",
		CharStart:   0,
		CharEnd:     16,
		Confidence:  0.98,
	}
	require.NoError(t, f.mentionsDbHandler.UpsertMention(mention))

	canonicalID := uuid.New()

	t.Run("Link mention to canonical entity", func(t *testing.T) {
		err := f.mentionsDbHandler.LinkMentionCanonical(mention.ID, canonicalID)
		assert.NoError(t, err, "Expected LinkMentionCanonical to not return an error")

		mentions, err := f.mentionsDbHandler.SelectMentionsByChunk(f.chunk.ID)
		require.NoError(t, err)
		require.Len(t, mentions, 1)
		require.NotNil(t, mentions[0].CanonicalEntityID, "Expected canonical link to be set")
		assert.Equal(t, canonicalID, *mentions[0].CanonicalEntityID, "Expected canonical link to match")
	})

	t.Run("Clear canonical links before re-resolution", func(t *testing.T) {
		err := f.mentionsDbHandler.ClearCanonicalLinks(int(f.doc.ID))
		assert.NoError(t, err, "Expected ClearCanonicalLinks to not return an error")

		mentions, err := f.mentionsDbHandler.SelectMentionsByChunk(f.chunk.ID)
		require.NoError(t, err)
		require.Len(t, mentions, 1)
		assert.Nil(t, mentions[0].CanonicalEntityID, "Expected canonical link to be cleared")
	})
}

func TestMentionsDeleteByDocument(t *testing.T) {
	f := newMentionFixture(t, "Mention Delete Document")
	defer f.cleanup()

	mention := &model.EntityMention{
		ChunkID:     f.chunk.ID,
		DocumentID:  int(f.doc.ID),
		SurfaceText: "Acme Corporation",
		EntityType:  "ORG",
		CharStart:   0,
		CharEnd:     16,
		Confidence:  0.98,
	}
	require.NoError(t, f.mentionsDbHandler.UpsertMention(mention))

	err := f.mentionsDbHandler.DeleteMentionsByDocument(int(f.doc.ID))
	assert.NoError(t, err, "Expected DeleteMentionsByDocument to not return an error")

	count, err := f.mentionsDbHandler.CountMentionsByDocument(int(f.doc.ID))
	require.NoError(t, err)
	assert.Equal(t, 0, count, "Expected no mentions after deletion")
}
