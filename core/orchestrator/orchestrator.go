package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rheinberg/docflow/core/chunker"
	"github.com/rheinberg/docflow/core/extract"
	"github.com/rheinberg/docflow/core/resolution"
	"github.com/rheinberg/docflow/database"
	"github.com/rheinberg/docflow/helper"
	"github.com/rheinberg/docflow/model"
)

const defaultExtractWorkers = 4

// Config holds the tunable orchestrator parameters
type Config struct {
	ChunkConfig   model.ChunkConfig
	ResolveConfig model.ResolveConfig
	// ExtractWorkers bounds the per-chunk extraction concurrency
	ExtractWorkers int
}

// DefaultConfig returns the standard orchestrator parameters
func DefaultConfig() Config {
	return Config{
		ChunkConfig:    model.DefaultChunkConfig(),
		ResolveConfig:  model.DefaultResolveConfig(),
		ExtractWorkers: defaultExtractWorkers,
	}
}

// Dependencies collects everything the orchestrator drives: the
// persistence handlers, the state cache, and the recognition and
// extraction collaborators.
type Dependencies struct {
	Documents database.DocumentsDBHandlerFunctions
	Chunks    database.ChunksDBHandlerFunctions
	Mentions  database.MentionsDBHandlerFunctions
	Entities  database.EntitiesDBHandlerFunctions
	Edges     database.EdgesDBHandlerFunctions
	States    StateStore
	OCR       OCRService
	Extractor extract.ExtractFunc
	// Embedder is optional; without it chunks are stored unembedded
	Embedder extract.EmbedFunc
	Logger   *slog.Logger
}

// Orchestrator runs the per-document phase state machine. Every phase
// is idempotent: rerunning a completed pipeline reproduces the same
// persisted records without duplicates.
type Orchestrator struct {
	deps     Dependencies
	config   Config
	chunker  *chunker.Chunker
	resolver *resolution.Resolver
}

// New validates the dependencies and creates an orchestrator
func New(deps Dependencies, config Config) (*Orchestrator, error) {
	if deps.Documents == nil || deps.Chunks == nil || deps.Mentions == nil || deps.Entities == nil || deps.Edges == nil {
		return nil, helper.NewError("dependency validation", fmt.Errorf("all database handlers must be set"))
	}
	if deps.States == nil {
		return nil, helper.NewError("dependency validation", fmt.Errorf("state store must be set"))
	}
	if deps.OCR == nil {
		return nil, helper.NewError("dependency validation", fmt.Errorf("ocr service must be set"))
	}
	if deps.Extractor == nil {
		return nil, helper.NewError("dependency validation", fmt.Errorf("entity extractor must be set"))
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if config.ExtractWorkers <= 0 {
		config.ExtractWorkers = defaultExtractWorkers
	}

	return &Orchestrator{
		deps:     deps,
		config:   config,
		chunker:  chunker.New(config.ChunkConfig),
		resolver: resolution.New(config.ResolveConfig),
	}, nil
}

// ProcessDocument runs all pipeline phases for one document in order
// and marks the document completed at the end. Completed phases are
// skipped, so the call is safe to repeat after a failure.
func (o *Orchestrator) ProcessDocument(ctx context.Context, documentRID uuid.UUID) error {
	doc, err := o.deps.Documents.SelectDocument(documentRID)
	if err != nil {
		return helper.NewError("select document", err)
	}

	if doc.Status != model.DocumentStatusProcessing {
		doc.Status = model.DocumentStatusProcessing
		if err := o.deps.Documents.UpdateDocumentStatus(doc); err != nil {
			return helper.NewError("update document status", err)
		}
	}

	for _, phase := range model.Phases {
		if err := o.runPhase(ctx, doc, phase); err != nil {
			return err
		}
	}

	doc.Status = model.DocumentStatusCompleted
	if err := o.deps.Documents.UpdateDocumentStatus(doc); err != nil {
		return helper.NewError("update document status", err)
	}

	o.deps.Logger.Info("Document pipeline completed", "document", doc.RID)

	return nil
}

// RunPhase runs a single phase for one document. The phase is skipped
// if already completed and rejected if its predecessor has not
// completed yet.
func (o *Orchestrator) RunPhase(ctx context.Context, documentRID uuid.UUID, phase model.Phase) error {
	doc, err := o.deps.Documents.SelectDocument(documentRID)
	if err != nil {
		return helper.NewError("select document", err)
	}
	return o.runPhase(ctx, doc, phase)
}

func (o *Orchestrator) runPhase(ctx context.Context, doc *model.Document, phase model.Phase) error {
	state, err := o.currentState(doc.RID)
	if err != nil {
		return err
	}

	if state.PhaseCompleted(phase) {
		o.deps.Logger.Debug("Skipping completed phase", "document", doc.RID, "phase", phase)
		return nil
	}

	if pred := model.Predecessor(phase); pred != "" && !state.PhaseCompleted(pred) {
		return helper.NewError("phase precondition", fmt.Errorf("phase %v requires completed phase %v", phase, pred))
	}

	if err := o.deps.States.SetPhase(doc.RID, phase, model.PhaseRecord{
		Status:    model.PhaseStatusStarted,
		Timestamp: time.Now(),
	}); err != nil {
		return helper.NewError("set phase state", err)
	}

	o.deps.Logger.Info("Running phase", "document", doc.RID, "phase", phase)

	meta, err := o.dispatchPhase(ctx, doc, phase)
	if err != nil {
		o.deps.States.SetPhase(doc.RID, phase, model.PhaseRecord{
			Status:    model.PhaseStatusFailed,
			Timestamp: time.Now(),
		})
		o.failDocument(doc, phase, err)
		return helper.NewError(fmt.Sprintf("phase %v", phase), err)
	}

	if err := o.deps.States.SetPhase(doc.RID, phase, model.PhaseRecord{
		Status:    model.PhaseStatusCompleted,
		Timestamp: time.Now(),
		Metadata:  meta,
	}); err != nil {
		return helper.NewError("set phase state", err)
	}

	return nil
}

func (o *Orchestrator) dispatchPhase(ctx context.Context, doc *model.Document, phase model.Phase) (model.Metadata, error) {
	switch phase {
	case model.PhaseOCR:
		return o.runOCR(ctx, doc)
	case model.PhaseChunking:
		return o.runChunking(doc)
	case model.PhaseEntityExtraction:
		return o.runEntityExtraction(ctx, doc)
	case model.PhaseEntityResolution:
		return o.runEntityResolution(doc)
	case model.PhaseRelationshipStaging:
		return o.runRelationshipStaging(doc)
	default:
		return nil, fmt.Errorf("unknown phase %v", phase)
	}
}

// failDocument records a phase failure on the document itself so the
// reason survives a state cache loss
func (o *Orchestrator) failDocument(doc *model.Document, phase model.Phase, phaseErr error) {
	reason := fmt.Sprintf("phase %v: %v", phase, phaseErr)
	doc.Status = model.DocumentStatusFailed
	doc.FailureReason = &reason

	if err := o.deps.Documents.UpdateDocumentStatus(doc); err != nil {
		o.deps.Logger.Error("Failed to record document failure", "document", doc.RID, "error", err)
	}

	o.deps.Logger.Error("Phase failed", "document", doc.RID, "phase", phase, "error", phaseErr)
}

// currentState returns the cached state or rebuilds it from the
// persisted records when the cache has no entry
func (o *Orchestrator) currentState(documentRID uuid.UUID) (*model.PipelineState, error) {
	state, err := o.deps.States.GetState(documentRID)
	if err != nil {
		return nil, helper.NewError("get phase state", err)
	}
	if state != nil {
		return state, nil
	}
	return o.RebuildState(documentRID)
}

// RebuildState reconstructs the pipeline state of a document from the
// persisted records and caches it. The cache is never the system of
// record, so a lost entry only costs this reconstruction.
func (o *Orchestrator) RebuildState(documentRID uuid.UUID) (*model.PipelineState, error) {
	doc, err := o.deps.Documents.SelectDocument(documentRID)
	if err != nil {
		return nil, helper.NewError("select document", err)
	}

	state := model.NewPipelineState()
	now := time.Now()
	markCompleted := func(phase model.Phase, meta model.Metadata) {
		state.Phases[phase] = model.PhaseRecord{
			Status:    model.PhaseStatusCompleted,
			Timestamp: now,
			Metadata:  meta,
		}
	}

	if doc.RawText != nil {
		markCompleted(model.PhaseOCR, nil)
	}

	chunkCount, err := o.deps.Chunks.CountChunksByDocument(doc.RID)
	if err != nil {
		return nil, helper.NewError("count chunks", err)
	}
	if chunkCount > 0 {
		markCompleted(model.PhaseChunking, model.Metadata{"chunk_count": chunkCount})
	}

	mentionCount, err := o.deps.Mentions.CountMentionsByDocument(int(doc.ID))
	if err != nil {
		return nil, helper.NewError("count mentions", err)
	}
	if mentionCount > 0 {
		markCompleted(model.PhaseEntityExtraction, model.Metadata{"mention_count": mentionCount})
	}

	entityCount, err := o.deps.Entities.CountEntitiesByDocument(int(doc.ID))
	if err != nil {
		return nil, helper.NewError("count entities", err)
	}
	if entityCount > 0 {
		markCompleted(model.PhaseEntityResolution, model.Metadata{"canonical_count": entityCount})
	}

	edgeCount, err := o.deps.Edges.CountEdgesByDocument(int(doc.ID))
	if err != nil {
		return nil, helper.NewError("count edges", err)
	}
	if edgeCount > 0 {
		markCompleted(model.PhaseRelationshipStaging, model.Metadata{"edge_count": edgeCount})
	}

	state.RecomputeProgress()

	if err := o.deps.States.SetState(documentRID, state); err != nil {
		return nil, helper.NewError("set phase state", err)
	}

	o.deps.Logger.Info("Rebuilt pipeline state", "document", documentRID, "progress", state.Progress)

	return state, nil
}

// State returns the current pipeline state of a document, rebuilding
// it from the persisted records if necessary
func (o *Orchestrator) State(documentRID uuid.UUID) (*model.PipelineState, error) {
	return o.currentState(documentRID)
}

// runOCR recognizes the document and persists the raw text plus the
// structure guide for the chunking phase
func (o *Orchestrator) runOCR(ctx context.Context, doc *model.Document) (model.Metadata, error) {
	result, err := o.deps.OCR.Recognize(ctx, doc)
	if err != nil {
		return nil, err
	}
	if result.Text == "" {
		return nil, fmt.Errorf("recognition produced no text")
	}

	doc.RawText = &result.Text
	doc.Metadata = model.Metadata{
		metaStructureGuide: result.StructureGuide,
		metaOCRMethod:      result.Method,
		metaPageCount:      result.Pages,
	}

	if err := o.deps.Documents.UpdateDocumentRawText(doc); err != nil {
		return nil, err
	}

	return model.Metadata{
		"method":    result.Method,
		"pages":     result.Pages,
		"text_size": len(result.Text),
	}, nil
}

// runChunking aligns the structure guide against the raw text and
// persists the chunks into their index slots
func (o *Orchestrator) runChunking(doc *model.Document) (model.Metadata, error) {
	if doc.RawText == nil {
		return nil, fmt.Errorf("document has no raw text")
	}

	guide, _ := doc.Metadata[metaStructureGuide].(string)

	result, err := o.chunker.Chunk(guide, *doc.RawText)
	if err != nil {
		return nil, err
	}
	if len(result.Chunks) == 0 {
		return nil, fmt.Errorf("no chunks produced")
	}

	report := chunker.Validate(result.Chunks, *doc.RawText)
	o.deps.Logger.Info("Chunking validated",
		"document", doc.RID,
		"chunks", report.ChunkCount,
		"coverage", report.Coverage,
		"quality", report.QualityScore,
		"fallback", result.UsedFallback,
	)

	for i, c := range result.Chunks {
		chunk := &model.Chunk{
			DocumentID: int(doc.ID),
			ChunkIndex: i,
			Content:    c.Text,
			CharStart:  c.CharStart,
			CharEnd:    c.CharEnd,
			Metadata:   chunkMetadata(c),
		}

		if o.deps.Embedder != nil {
			embedding, err := o.deps.Embedder(c.Text)
			if err != nil {
				return nil, fmt.Errorf("embedding chunk %d: %w", i, err)
			}
			chunk.Embedding = embedding
		}

		if err := o.deps.Chunks.UpsertChunk(chunk); err != nil {
			return nil, fmt.Errorf("upserting chunk %d: %w", i, err)
		}
	}

	return model.Metadata{
		"chunk_count":   len(result.Chunks),
		"miss_count":    len(result.Misses),
		"used_fallback": result.UsedFallback,
		"quality_score": report.QualityScore,
	}, nil
}

func chunkMetadata(c chunker.Chunk) model.Metadata {
	meta := model.Metadata{}
	if c.Heading != nil {
		meta["heading"] = c.Heading.Text
		meta["heading_level"] = c.Heading.Level
	}
	if c.Combined {
		headings := make([]string, 0, len(c.CombinedHeadings))
		for _, h := range c.CombinedHeadings {
			headings = append(headings, h.Text)
		}
		meta["combined_headings"] = headings
	}
	if len(meta) == 0 {
		return nil
	}
	return meta
}

// runEntityExtraction extracts mentions from every chunk with a
// bounded worker pool. The phase only completes when every chunk
// succeeded; mentions written by successful workers stay and are
// overwritten on the rerun.
func (o *Orchestrator) runEntityExtraction(ctx context.Context, doc *model.Document) (model.Metadata, error) {
	chunks, err := o.deps.Chunks.SelectChunksByDocument(doc.RID)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("document has no chunks")
	}

	var (
		wg           sync.WaitGroup
		mu           sync.Mutex
		firstErr     error
		mentionCount int
	)
	sem := make(chan struct{}, o.config.ExtractWorkers)

	setErr := func(err error) {
		mu.Lock()
		defer mu.Unlock()
		if firstErr == nil {
			firstErr = err
		}
	}

	for _, chunk := range chunks {
		wg.Add(1)
		go func(chunk *model.Chunk) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if err := ctx.Err(); err != nil {
				setErr(err)
				return
			}

			spans, err := o.deps.Extractor(chunk.Content)
			if err != nil {
				setErr(fmt.Errorf("chunk %d: %w", chunk.ChunkIndex, err))
				return
			}

			for _, span := range spans {
				mention := &model.EntityMention{
					ChunkID:        chunk.ID,
					DocumentID:     int(doc.ID),
					SurfaceText:    span.Text,
					NormalizedText: extract.NormalizeText(span.Text),
					EntityType:     span.Type,
					CharStart:      span.Start,
					CharEnd:        span.End,
					Confidence:     span.Confidence,
				}
				if err := o.deps.Mentions.UpsertMention(mention); err != nil {
					setErr(fmt.Errorf("chunk %d: %w", chunk.ChunkIndex, err))
					return
				}
			}

			mu.Lock()
			mentionCount += len(spans)
			mu.Unlock()
		}(chunk)
	}

	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}

	return model.Metadata{
		"chunk_count":   len(chunks),
		"mention_count": mentionCount,
	}, nil
}

// runEntityResolution groups the document's mentions into canonical
// entities and links every mention to its canonical row. Previous
// resolution output is replaced wholesale, keeping reruns idempotent.
func (o *Orchestrator) runEntityResolution(doc *model.Document) (model.Metadata, error) {
	stored, err := o.deps.Mentions.SelectMentionsByDocument(int(doc.ID))
	if err != nil {
		return nil, err
	}

	mentions := make([]resolution.Mention, 0, len(stored))
	for _, m := range stored {
		mentions = append(mentions, resolution.Mention{
			ID:   m.ID,
			Text: m.SurfaceText,
			Type: m.EntityType,
		})
	}

	result, err := o.resolver.Resolve(mentions)
	if err != nil {
		return nil, err
	}

	if err := o.deps.Mentions.ClearCanonicalLinks(int(doc.ID)); err != nil {
		return nil, err
	}
	if err := o.deps.Entities.DeleteEntitiesByDocument(int(doc.ID)); err != nil {
		return nil, err
	}

	for _, canonical := range result.Canonicals {
		entity := &model.CanonicalEntity{
			ID:               canonical.ID,
			DocumentID:       int(doc.ID),
			Name:             canonical.Name,
			EntityType:       canonical.EntityType,
			Aliases:          canonical.Aliases,
			MentionCount:     len(canonical.MentionIDs),
			Confidence:       canonical.Confidence,
			ResolutionMethod: canonical.Method,
		}
		if err := o.deps.Entities.UpsertCanonicalEntity(entity); err != nil {
			return nil, err
		}

		for _, mentionID := range canonical.MentionIDs {
			if err := o.deps.Mentions.LinkMentionCanonical(mentionID, entity.ID); err != nil {
				return nil, err
			}
		}
	}

	return model.Metadata{
		"mention_count":      result.TotalMentions,
		"canonical_count":    result.TotalCanonical,
		"deduplication_rate": result.DeduplicationRate,
	}, nil
}

// runRelationshipStaging stages the structural edges of the document
// for downstream graph consumers
func (o *Orchestrator) runRelationshipStaging(doc *model.Document) (model.Metadata, error) {
	edgeCount := 0
	stage := func(sourceID uuid.UUID, targetID uuid.UUID, edgeType model.EdgeType) error {
		edge := &model.RelationshipEdge{
			DocumentID: int(doc.ID),
			SourceID:   sourceID,
			TargetID:   targetID,
			EdgeType:   edgeType,
		}
		if err := o.deps.Edges.UpsertEdge(edge); err != nil {
			return err
		}
		edgeCount++
		return nil
	}

	if doc.ProjectRID != nil {
		if err := stage(doc.RID, *doc.ProjectRID, model.EdgeTypeDocumentProject); err != nil {
			return nil, err
		}
	}

	chunks, err := o.deps.Chunks.SelectChunksByDocument(doc.RID)
	if err != nil {
		return nil, err
	}
	for _, chunk := range chunks {
		if err := stage(chunk.RID, doc.RID, model.EdgeTypeChunkDocument); err != nil {
			return nil, err
		}
	}

	mentions, err := o.deps.Mentions.SelectMentionsByDocument(int(doc.ID))
	if err != nil {
		return nil, err
	}
	for _, mention := range mentions {
		if err := stage(mention.ID, mention.ChunkRID, model.EdgeTypeMentionChunk); err != nil {
			return nil, err
		}
		if mention.CanonicalEntityID != nil {
			if err := stage(mention.ID, *mention.CanonicalEntityID, model.EdgeTypeMentionCanonical); err != nil {
				return nil, err
			}
		}
	}

	return model.Metadata{"edge_count": edgeCount}, nil
}
