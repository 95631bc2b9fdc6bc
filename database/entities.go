package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/rheinberg/docflow/helper"
	"github.com/rheinberg/docflow/model"
	"github.com/rheinberg/docflow/sql"
)

// EntitiesDBHandlerFunctions defines the interface for CanonicalEntities database operations.
type EntitiesDBHandlerFunctions interface {
	UpsertCanonicalEntity(entity *model.CanonicalEntity) error
	SelectCanonicalEntity(id uuid.UUID) (*model.CanonicalEntity, error)
	SelectEntitiesByDocument(documentID int) ([]*model.CanonicalEntity, error)
	CountEntitiesByDocument(documentID int) (int, error)
	DeleteEntitiesByDocument(documentID int) error
}

// EntitiesDBHandler handles canonical entity database operations
type EntitiesDBHandler struct {
	db *helper.Database
}

// NewEntitiesDBHandler creates a new entities database handler.
// It initializes the database connection and loads entity-related SQL functions.
// If force is true, it will reload the SQL functions even if they already exist.
func NewEntitiesDBHandler(db *helper.Database, force bool) (*EntitiesDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	entitiesDbHandler := &EntitiesDBHandler{
		db: db,
	}

	err := sql.LoadEntitiesSql(entitiesDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load entities sql", err)
	}

	err = entitiesDbHandler.CreateTable()
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized EntitiesDBHandler")

	return entitiesDbHandler, nil
}

// CreateTable creates the 'canonical_entities' table in the database.
// If the table already exists, it does not create it again.
func (h *EntitiesDBHandler) CreateTable() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_entities();`)
	if err != nil {
		log.Panicf("error initializing canonical_entities table: %#v", err)
	}

	h.db.Logger.Info("Checked/created table canonical_entities")

	return nil
}

// UpsertCanonicalEntity writes a canonical entity keyed by
// (document, type, name). Re-resolving overwrites the row.
func (h *EntitiesDBHandler) UpsertCanonicalEntity(entity *model.CanonicalEntity) error {
	var id interface{}
	if entity.ID != uuid.Nil {
		id = entity.ID
	}

	row := h.db.Instance.QueryRow(
		`SELECT * FROM upsert_canonical_entity($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		id,
		entity.DocumentID,
		entity.Name,
		entity.EntityType,
		pq.Array(entity.Aliases),
		entity.MentionCount,
		entity.Confidence,
		entity.ResolutionMethod,
		entity.Metadata,
	)

	err := scanCanonicalEntity(row, entity)
	if err != nil {
		return helper.NewError("scan", err)
	}

	return nil
}

// SelectCanonicalEntity retrieves a canonical entity by ID
func (h *EntitiesDBHandler) SelectCanonicalEntity(id uuid.UUID) (*model.CanonicalEntity, error) {
	entity := &model.CanonicalEntity{}
	row := h.db.Instance.QueryRow(
		`SELECT * FROM select_canonical_entity($1)`,
		id,
	)

	err := scanCanonicalEntity(row, entity)
	if err != nil {
		return nil, helper.NewError("scan", err)
	}

	return entity, nil
}

// SelectEntitiesByDocument retrieves all canonical entities of a
// document ordered by type and name
func (h *EntitiesDBHandler) SelectEntitiesByDocument(documentID int) ([]*model.CanonicalEntity, error) {
	rows, err := h.db.Instance.Query(
		`SELECT * FROM select_entities_by_document($1)`,
		documentID,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var entities []*model.CanonicalEntity
	for rows.Next() {
		entity := &model.CanonicalEntity{}
		err := scanCanonicalEntity(rows, entity)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}

		entities = append(entities, entity)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return entities, nil
}

// CountEntitiesByDocument counts the canonical entities of a document
func (h *EntitiesDBHandler) CountEntitiesByDocument(documentID int) (int, error) {
	var count int
	err := h.db.Instance.QueryRow(
		`SELECT count_entities_by_document($1)`,
		documentID,
	).Scan(&count)
	if err != nil {
		return 0, helper.NewError("scan", err)
	}

	return count, nil
}

// DeleteEntitiesByDocument deletes all canonical entities of a document
func (h *EntitiesDBHandler) DeleteEntitiesByDocument(documentID int) error {
	_, err := h.db.Instance.Exec(
		`SELECT delete_entities_by_document($1)`,
		documentID,
	)
	if err != nil {
		return helper.NewError("exec", err)
	}
	return nil
}

func scanCanonicalEntity(row scanner, entity *model.CanonicalEntity) error {
	return row.Scan(
		&entity.ID,
		&entity.DocumentID,
		&entity.Name,
		&entity.EntityType,
		pq.Array(&entity.Aliases),
		&entity.MentionCount,
		&entity.Confidence,
		&entity.ResolutionMethod,
		&entity.Metadata,
		&entity.CreatedAt,
	)
}
