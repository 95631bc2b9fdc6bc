package database

import (
	"testing"

	"github.com/google/uuid"
	"github.com/rheinberg/docflow/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntitiesNewEntitiesDBHandler(t *testing.T) {
	database := initDB(t)

	_, err := NewDocumentsDBHandler(database, true)
	require.NoError(t, err)

	t.Run("Valid call NewEntitiesDBHandler", func(t *testing.T) {
		entitiesDbHandler, err := NewEntitiesDBHandler(database, true)
		assert.NoError(t, err, "Expected NewEntitiesDBHandler to not return an error")
		require.NotNil(t, entitiesDbHandler, "Expected NewEntitiesDBHandler to return a non-nil instance")
	})

	t.Run("Invalid call NewEntitiesDBHandler with nil database", func(t *testing.T) {
		_, err := NewEntitiesDBHandler(nil, false)
		assert.Error(t, err, "Expected error when creating EntitiesDBHandler with nil database")
	})
}

func TestEntitiesUpsert(t *testing.T) {
	database := initDB(t)

	documentsDbHandler, err := NewDocumentsDBHandler(database, true)
	require.NoError(t, err)
	entitiesDbHandler, err := NewEntitiesDBHandler(database, true)
	require.NoError(t, err)

	doc := newTestDocument(t, documentsDbHandler, "Entity Upsert Document")
	defer documentsDbHandler.DeleteDocument(doc.RID)

	t.Run("Upsert new canonical entity", func(t *testing.T) {
		entity := &model.CanonicalEntity{
			ID:               uuid.New(),
			DocumentID:       int(doc.ID),
			Name:             "Acme Corporation",
			EntityType:       "ORG",
			Aliases:          []string{"Acme Corporation", "Acme Corp"},
			MentionCount:     2,
			Confidence:       0.8,
			ResolutionMethod: model.ResolutionMethodFuzzy,
		}

		err := entitiesDbHandler.UpsertCanonicalEntity(entity)
		assert.NoError(t, err, "Expected UpsertCanonicalEntity to not return an error")
		assert.Equal(t, []string{"Acme Corporation", "Acme Corp"}, entity.Aliases, "Expected aliases to round-trip")
	})

	t.Run("Upsert same identity overwrites instead of duplicating", func(t *testing.T) {
		updated := &model.CanonicalEntity{
			ID:               uuid.New(),
			DocumentID:       int(doc.ID),
			Name:             "Acme Corporation",
			EntityType:       "ORG",
			Aliases:          []string{"Acme Corporation", "Acme Corp", "Acme Inc"},
			MentionCount:     3,
			Confidence:       0.8,
			ResolutionMethod: model.ResolutionMethodFuzzy,
		}

		err := entitiesDbHandler.UpsertCanonicalEntity(updated)
		assert.NoError(t, err, "Expected UpsertCanonicalEntity to not return an error")
		assert.Equal(t, 3, updated.MentionCount, "Expected mention count to be updated")

		count, err := entitiesDbHandler.CountEntitiesByDocument(int(doc.ID))
		require.NoError(t, err)
		assert.Equal(t, 1, count, "Expected a single canonical row for the identity")
	})
}

func TestEntitiesSelect(t *testing.T) {
	database := initDB(t)

	documentsDbHandler, err := NewDocumentsDBHandler(database, true)
	require.NoError(t, err)
	entitiesDbHandler, err := NewEntitiesDBHandler(database, true)
	require.NoError(t, err)

	doc := newTestDocument(t, documentsDbHandler, "Entity Select Document")
	defer documentsDbHandler.DeleteDocument(doc.RID)

	entities := []*model.CanonicalEntity{
		{DocumentID: int(doc.ID), Name: "John Smith", EntityType: "PERSON", Aliases: []string{"John Smith"}, MentionCount: 1, Confidence: 1.0, ResolutionMethod: model.ResolutionMethodExact},
		{DocumentID: int(doc.ID), Name: "Acme Corporation", EntityType: "ORG", Aliases: []string{"Acme Corporation"}, MentionCount: 1, Confidence: 1.0, ResolutionMethod: model.ResolutionMethodExact},
	}
	for _, entity := range entities {
		require.NoError(t, entitiesDbHandler.UpsertCanonicalEntity(entity))
	}

	t.Run("Select entity by ID", func(t *testing.T) {
		retrieved, err := entitiesDbHandler.SelectCanonicalEntity(entities[0].ID)
		assert.NoError(t, err, "Expected SelectCanonicalEntity to not return an error")
		assert.Equal(t, "John Smith", retrieved.Name, "Expected names to match")
		assert.Equal(t, model.ResolutionMethodExact, retrieved.ResolutionMethod, "Expected resolution method to round-trip")
	})

	t.Run("Select entities by document ordered by type and name", func(t *testing.T) {
		retrieved, err := entitiesDbHandler.SelectEntitiesByDocument(int(doc.ID))
		assert.NoError(t, err, "Expected SelectEntitiesByDocument to not return an error")
		require.Len(t, retrieved, 2, "Expected all entities of the document")
		assert.Equal(t, "ORG", retrieved[0].EntityType, "Expected ORG before PERSON")
	})
}

func TestEntitiesDeleteByDocument(t *testing.T) {
	database := initDB(t)

	documentsDbHandler, err := NewDocumentsDBHandler(database, true)
	require.NoError(t, err)
	entitiesDbHandler, err := NewEntitiesDBHandler(database, true)
	require.NoError(t, err)

	doc := newTestDocument(t, documentsDbHandler, "Entity Delete Document")
	defer documentsDbHandler.DeleteDocument(doc.RID)

	entity := &model.CanonicalEntity{
		DocumentID:       int(doc.ID),
		Name:             "Acme Corporation",
		EntityType:       "ORG",
		Aliases:          []string{"Acme Corporation"},
		MentionCount:     1,
		Confidence:       1.0,
		ResolutionMethod: model.ResolutionMethodExact,
	}
	require.NoError(t, entitiesDbHandler.UpsertCanonicalEntity(entity))

	err = entitiesDbHandler.DeleteEntitiesByDocument(int(doc.ID))
	assert.NoError(t, err, "Expected DeleteEntitiesByDocument to not return an error")

	count, err := entitiesDbHandler.CountEntitiesByDocument(int(doc.ID))
	require.NoError(t, err)
	assert.Equal(t, 0, count, "Expected no entities after deletion")
}
