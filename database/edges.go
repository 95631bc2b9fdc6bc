package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/rheinberg/docflow/helper"
	"github.com/rheinberg/docflow/model"
	"github.com/rheinberg/docflow/sql"
)

// EdgesDBHandlerFunctions defines the interface for RelationshipEdges database operations.
type EdgesDBHandlerFunctions interface {
	UpsertEdge(edge *model.RelationshipEdge) error
	SelectEdgesByDocument(documentID int) ([]*model.RelationshipEdge, error)
	CountEdgesByDocument(documentID int) (int, error)
	DeleteEdgesByDocument(documentID int) error
}

// EdgesDBHandler handles relationship edge database operations
type EdgesDBHandler struct {
	db *helper.Database
}

// NewEdgesDBHandler creates a new edges database handler.
// It initializes the database connection and loads edge-related SQL functions.
// If force is true, it will reload the SQL functions even if they already exist.
func NewEdgesDBHandler(db *helper.Database, force bool) (*EdgesDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	edgesDbHandler := &EdgesDBHandler{
		db: db,
	}

	err := sql.LoadEdgesSql(edgesDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load edges sql", err)
	}

	err = edgesDbHandler.CreateTable()
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized EdgesDBHandler")

	return edgesDbHandler, nil
}

// CreateTable creates the 'relationship_edges' table in the database.
// If the table already exists, it does not create it again.
func (h *EdgesDBHandler) CreateTable() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_edges();`)
	if err != nil {
		log.Panicf("error initializing relationship_edges table: %#v", err)
	}

	h.db.Logger.Info("Checked/created table relationship_edges")

	return nil
}

// UpsertEdge stages a relationship keyed by
// (document, source, target, type). Restaging keeps a single row.
func (h *EdgesDBHandler) UpsertEdge(edge *model.RelationshipEdge) error {
	row := h.db.Instance.QueryRow(
		`SELECT * FROM upsert_edge($1, $2, $3, $4, $5)`,
		edge.DocumentID,
		edge.SourceID,
		edge.TargetID,
		string(edge.EdgeType),
		edge.Metadata,
	)

	err := scanEdge(row, edge)
	if err != nil {
		return helper.NewError("scan", err)
	}

	return nil
}

// SelectEdgesByDocument retrieves all staged edges of a document
func (h *EdgesDBHandler) SelectEdgesByDocument(documentID int) ([]*model.RelationshipEdge, error) {
	rows, err := h.db.Instance.Query(
		`SELECT * FROM select_edges_by_document($1)`,
		documentID,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var edges []*model.RelationshipEdge
	for rows.Next() {
		edge := &model.RelationshipEdge{}
		err := scanEdge(rows, edge)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}

		edges = append(edges, edge)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return edges, nil
}

// CountEdgesByDocument counts the staged edges of a document
func (h *EdgesDBHandler) CountEdgesByDocument(documentID int) (int, error) {
	var count int
	err := h.db.Instance.QueryRow(
		`SELECT count_edges_by_document($1)`,
		documentID,
	).Scan(&count)
	if err != nil {
		return 0, helper.NewError("scan", err)
	}

	return count, nil
}

// DeleteEdgesByDocument deletes all staged edges of a document
func (h *EdgesDBHandler) DeleteEdgesByDocument(documentID int) error {
	_, err := h.db.Instance.Exec(
		`SELECT delete_edges_by_document($1)`,
		documentID,
	)
	if err != nil {
		return helper.NewError("exec", err)
	}
	return nil
}

func scanEdge(row scanner, edge *model.RelationshipEdge) error {
	return row.Scan(
		&edge.ID,
		&edge.DocumentID,
		&edge.SourceID,
		&edge.TargetID,
		&edge.EdgeType,
		&edge.Metadata,
		&edge.CreatedAt,
	)
}
