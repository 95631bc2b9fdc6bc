package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/rheinberg/docflow/helper"
	"github.com/rheinberg/docflow/model"
	"github.com/rheinberg/docflow/sql"
)

// MentionsDBHandlerFunctions defines the interface for EntityMentions database operations.
type MentionsDBHandlerFunctions interface {
	UpsertMention(mention *model.EntityMention) error
	SelectMentionsByDocument(documentID int) ([]*model.EntityMention, error)
	SelectMentionsByChunk(chunkID int) ([]*model.EntityMention, error)
	CountMentionsByDocument(documentID int) (int, error)
	LinkMentionCanonical(mentionID uuid.UUID, canonicalID uuid.UUID) error
	ClearCanonicalLinks(documentID int) error
	DeleteMentionsByDocument(documentID int) error
}

// MentionsDBHandler handles entity mention database operations
type MentionsDBHandler struct {
	db *helper.Database
}

// NewMentionsDBHandler creates a new mentions database handler.
// It initializes the database connection and loads mention-related SQL functions.
// If force is true, it will reload the SQL functions even if they already exist.
func NewMentionsDBHandler(db *helper.Database, force bool) (*MentionsDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	mentionsDbHandler := &MentionsDBHandler{
		db: db,
	}

	err := sql.LoadMentionsSql(mentionsDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load mentions sql", err)
	}

	err = mentionsDbHandler.CreateTable()
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized MentionsDBHandler")

	return mentionsDbHandler, nil
}

// CreateTable creates the 'entity_mentions' table in the database.
// If the table already exists, it does not create it again.
func (h *MentionsDBHandler) CreateTable() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_mentions();`)
	if err != nil {
		log.Panicf("error initializing entity_mentions table: %#v", err)
	}

	h.db.Logger.Info("Checked/created table entity_mentions")

	return nil
}

// UpsertMention writes a mention keyed by its span within the chunk.
// Re-extracting a chunk overwrites existing spans instead of adding rows.
func (h *MentionsDBHandler) UpsertMention(mention *model.EntityMention) error {
	row := h.db.Instance.QueryRow(
		`SELECT * FROM upsert_mention($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		mention.ChunkID,
		mention.DocumentID,
		mention.SurfaceText,
		mention.NormalizedText,
		mention.EntityType,
		mention.CharStart,
		mention.CharEnd,
		mention.Confidence,
		mention.Metadata,
	)

	err := scanMention(row, mention)
	if err != nil {
		return helper.NewError("scan", err)
	}

	return nil
}

// SelectMentionsByDocument retrieves all mentions of a document in
// chunk and span order
func (h *MentionsDBHandler) SelectMentionsByDocument(documentID int) ([]*model.EntityMention, error) {
	rows, err := h.db.Instance.Query(
		`SELECT * FROM select_mentions_by_document($1)`,
		documentID,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var mentions []*model.EntityMention
	for rows.Next() {
		mention := &model.EntityMention{}
		err := scanMention(rows, mention)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}

		mentions = append(mentions, mention)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return mentions, nil
}

// SelectMentionsByChunk retrieves all mentions found in one chunk
func (h *MentionsDBHandler) SelectMentionsByChunk(chunkID int) ([]*model.EntityMention, error) {
	rows, err := h.db.Instance.Query(
		`SELECT * FROM select_mentions_by_chunk($1)`,
		chunkID,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var mentions []*model.EntityMention
	for rows.Next() {
		mention := &model.EntityMention{}
		err := scanMention(rows, mention)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}

		mentions = append(mentions, mention)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return mentions, nil
}

// CountMentionsByDocument counts the persisted mentions of a document
func (h *MentionsDBHandler) CountMentionsByDocument(documentID int) (int, error) {
	var count int
	err := h.db.Instance.QueryRow(
		`SELECT count_mentions_by_document($1)`,
		documentID,
	).Scan(&count)
	if err != nil {
		return 0, helper.NewError("scan", err)
	}

	return count, nil
}

// LinkMentionCanonical points a mention at its canonical entity
func (h *MentionsDBHandler) LinkMentionCanonical(mentionID uuid.UUID, canonicalID uuid.UUID) error {
	_, err := h.db.Instance.Exec(
		`SELECT link_mention_canonical($1, $2)`,
		mentionID,
		canonicalID,
	)
	if err != nil {
		return helper.NewError("exec", err)
	}
	return nil
}

// ClearCanonicalLinks unlinks all mentions of a document so resolution
// can rerun from a clean slate
func (h *MentionsDBHandler) ClearCanonicalLinks(documentID int) error {
	_, err := h.db.Instance.Exec(
		`SELECT clear_canonical_links($1)`,
		documentID,
	)
	if err != nil {
		return helper.NewError("exec", err)
	}
	return nil
}

// DeleteMentionsByDocument deletes all mentions of a document
func (h *MentionsDBHandler) DeleteMentionsByDocument(documentID int) error {
	_, err := h.db.Instance.Exec(
		`SELECT delete_mentions_by_document($1)`,
		documentID,
	)
	if err != nil {
		return helper.NewError("exec", err)
	}
	return nil
}

func scanMention(row scanner, mention *model.EntityMention) error {
	return row.Scan(
		&mention.ID,
		&mention.ChunkID,
		&mention.ChunkRID,
		&mention.DocumentID,
		&mention.SurfaceText,
		&mention.NormalizedText,
		&mention.EntityType,
		&mention.CharStart,
		&mention.CharEnd,
		&mention.Confidence,
		&mention.CanonicalEntityID,
		&mention.Metadata,
		&mention.CreatedAt,
	)
}
