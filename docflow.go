package docflow

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/rheinberg/docflow/core/extract"
	"github.com/rheinberg/docflow/core/graph"
	"github.com/rheinberg/docflow/core/orchestrator"
	"github.com/rheinberg/docflow/core/retrieval"
	"github.com/rheinberg/docflow/database"
	"github.com/rheinberg/docflow/helper"
	"github.com/rheinberg/docflow/model"
	loadSql "github.com/rheinberg/docflow/sql"
)

// defaultExtractRetries bounds the retry attempts of the default
// extraction and embedding collaborators
const defaultExtractRetries = 3

// Docflow provides a unified interface to the document pipeline and
// all database handlers
type Docflow struct {
	DB        *helper.Database
	Documents *database.DocumentsDBHandler
	Chunks    *database.ChunksDBHandler
	Mentions  *database.MentionsDBHandler
	Entities  *database.EntitiesDBHandler
	Edges     *database.EdgesDBHandler
	States    orchestrator.StateStore
	Engine    *retrieval.Engine
	// Pipeline is set by UsePipeline or UseDefaultPipeline
	Pipeline *orchestrator.Orchestrator
	// Embedder is kept for query embedding when set
	Embedder extract.EmbedFunc
	// Logging
	log *slog.Logger
}

// New creates a Docflow instance with all handlers initialized
func New(config *helper.DatabaseConfiguration, embeddingDim int) (*Docflow, error) {
	// Logger
	opts := helper.PrettyHandlerOptions{
		SlogOpts: slog.HandlerOptions{
			Level: slog.LevelInfo,
		},
	}
	logger := slog.New(helper.NewPrettyHandler(os.Stdout, opts))

	// Initialize database
	db := helper.NewDatabase("docflow", config, logger)
	err := loadSql.Init(db.Instance)
	if err != nil {
		return nil, helper.NewError("initialize database extensions", err)
	}

	// Create all handlers, force=false to not reload if the SQL
	// functions already exist
	documents, err := database.NewDocumentsDBHandler(db, false)
	if err != nil {
		return nil, helper.NewError("create documents handler", err)
	}

	chunks, err := database.NewChunksDBHandler(db, embeddingDim, false)
	if err != nil {
		return nil, helper.NewError("create chunks handler", err)
	}

	mentions, err := database.NewMentionsDBHandler(db, false)
	if err != nil {
		return nil, helper.NewError("create mentions handler", err)
	}

	entities, err := database.NewEntitiesDBHandler(db, false)
	if err != nil {
		return nil, helper.NewError("create entities handler", err)
	}

	edges, err := database.NewEdgesDBHandler(db, false)
	if err != nil {
		return nil, helper.NewError("create edges handler", err)
	}

	// Create retrieval engine with database handlers
	engine := retrieval.NewEngine(chunks, mentions, entities)

	return &Docflow{
		DB:        db,
		Documents: documents,
		Chunks:    chunks,
		Mentions:  mentions,
		Entities:  entities,
		Edges:     edges,
		States:    orchestrator.NewDefaultStateStore(),
		Engine:    engine,
		log:       logger,
	}, nil
}

// Close closes the database connection
func (d *Docflow) Close() error {
	if d.DB != nil && d.DB.Instance != nil {
		return d.DB.Instance.Close()
	}
	return nil
}

// UsePipeline wires the processing pipeline with the given OCR service
// and extraction collaborators
func (d *Docflow) UsePipeline(ocr orchestrator.OCRService, extractor extract.ExtractFunc, embedder extract.EmbedFunc, config orchestrator.Config) error {
	pipeline, err := orchestrator.New(orchestrator.Dependencies{
		Documents: d.Documents,
		Chunks:    d.Chunks,
		Mentions:  d.Mentions,
		Entities:  d.Entities,
		Edges:     d.Edges,
		States:    d.States,
		OCR:       ocr,
		Extractor: extractor,
		Embedder:  embedder,
		Logger:    d.log,
	}, config)
	if err != nil {
		return helper.NewError("create pipeline", err)
	}

	d.Pipeline = pipeline
	d.Embedder = embedder
	return nil
}

// UseDefaultPipeline wires the pipeline with the default hugot-backed
// entity extractor (distilbert-NER) and embedder (all-MiniLM-L6-v2,
// 384 dimensions) and the default chunking/resolution parameters
func (d *Docflow) UseDefaultPipeline(ocr orchestrator.OCRService) error {
	extractor, err := extract.DefaultEntityExtractor()
	if err != nil {
		return helper.NewError("create default entity extractor", err)
	}

	embedder, err := extract.DefaultEmbedder()
	if err != nil {
		return helper.NewError("create default embedder", err)
	}

	return d.UsePipeline(ocr,
		extract.WithRetry(extractor, defaultExtractRetries),
		extract.WithEmbedRetry(embedder, defaultExtractRetries),
		orchestrator.DefaultConfig())
}

// ProcessDocument runs the full pipeline for one document. The call is
// idempotent and safe to repeat after a failure.
func (d *Docflow) ProcessDocument(ctx context.Context, documentRID uuid.UUID) error {
	if d.Pipeline == nil {
		return helper.NewError("process document", fmt.Errorf("pipeline not set, use UsePipeline() first"))
	}
	return d.Pipeline.ProcessDocument(ctx, documentRID)
}

// RunPhase runs a single pipeline phase for one document
func (d *Docflow) RunPhase(ctx context.Context, documentRID uuid.UUID, phase model.Phase) error {
	if d.Pipeline == nil {
		return helper.NewError("run phase", fmt.Errorf("pipeline not set, use UsePipeline() first"))
	}
	return d.Pipeline.RunPhase(ctx, documentRID, phase)
}

// State returns the pipeline state of a document, rebuilding it from
// the persisted records when the cache has no entry
func (d *Docflow) State(documentRID uuid.UUID) (*model.PipelineState, error) {
	if d.Pipeline == nil {
		return nil, helper.NewError("pipeline state", fmt.Errorf("pipeline not set, use UsePipeline() first"))
	}
	return d.Pipeline.State(documentRID)
}

// Search performs vector similarity search over processed chunks
func (d *Docflow) Search(ctx context.Context, query string, config *retrieval.QueryConfig) ([]*retrieval.Result, error) {
	if d.Embedder == nil {
		return nil, helper.NewError("vector search", fmt.Errorf("embedder not set, use UsePipeline() first"))
	}

	embedding, err := d.Embedder(query)
	if err != nil {
		return nil, helper.NewError("generate embedding", err)
	}

	return d.Engine.VectorRetrieve(ctx, embedding, config)
}

// EntitySearch returns the chunks mentioning a canonical entity
func (d *Docflow) EntitySearch(ctx context.Context, entityID uuid.UUID, config *retrieval.QueryConfig) ([]*retrieval.Result, error) {
	return d.Engine.EntityRetrieve(ctx, entityID, config)
}

// StagedGraph loads the staged relationship edges of a document into
// an in-memory graph for traversal
func (d *Docflow) StagedGraph(documentID int) (*graph.Graph, error) {
	edges, err := d.Edges.SelectEdgesByDocument(documentID)
	if err != nil {
		return nil, helper.NewError("select edges", err)
	}
	return graph.New(edges), nil
}

// ChangeIndexType changes the vector index type between HNSW and IVFFlat
func (d *Docflow) ChangeIndexType(ctx context.Context, indexType string, params map[string]interface{}) error {
	return d.Chunks.ChangeIndexType(ctx, indexType, params)
}
