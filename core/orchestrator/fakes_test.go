package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rheinberg/docflow/core/extract"
	"github.com/rheinberg/docflow/model"
)

// fakeDB implements all database handler interfaces in memory so the
// orchestrator can be exercised without a running database.
type fakeDB struct {
	mu          sync.Mutex
	nextDocID   int64
	nextChunkID int
	docs        map[uuid.UUID]*model.Document
	chunks      map[string]*model.Chunk
	mentions    map[string]*model.EntityMention
	entities    map[uuid.UUID]*model.CanonicalEntity
	edges       map[string]*model.RelationshipEdge
}

func newFakeDB() *fakeDB {
	return &fakeDB{
		docs:     map[uuid.UUID]*model.Document{},
		chunks:   map[string]*model.Chunk{},
		mentions: map[string]*model.EntityMention{},
		entities: map[uuid.UUID]*model.CanonicalEntity{},
		edges:    map[string]*model.RelationshipEdge{},
	}
}

func chunkKey(documentID int, chunkIndex int) string {
	return fmt.Sprintf("%d:%d", documentID, chunkIndex)
}

func mentionKey(m *model.EntityMention) string {
	return fmt.Sprintf("%d:%d:%d:%s", m.ChunkID, m.CharStart, m.CharEnd, m.EntityType)
}

func edgeKey(e *model.RelationshipEdge) string {
	return fmt.Sprintf("%d:%s:%s:%s", e.DocumentID, e.SourceID, e.TargetID, e.EdgeType)
}

func (f *fakeDB) InsertDocument(doc *model.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.nextDocID++
	doc.ID = f.nextDocID
	doc.RID = uuid.New()
	doc.Status = model.DocumentStatusPending
	doc.CreatedAt = time.Now()
	doc.UpdatedAt = doc.CreatedAt
	f.docs[doc.RID] = doc
	return nil
}

func (f *fakeDB) SelectDocument(rid uuid.UUID) (*model.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, ok := f.docs[rid]
	if !ok {
		return nil, fmt.Errorf("document %v not found", rid)
	}
	copied := *doc
	return &copied, nil
}

func (f *fakeDB) SelectAllDocuments(lastCreatedAt *time.Time, limit int) ([]*model.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var docs []*model.Document
	for _, doc := range f.docs {
		copied := *doc
		docs = append(docs, &copied)
	}
	return docs, nil
}

func (f *fakeDB) SelectDocumentsByStatus(status model.DocumentStatus, limit int) ([]*model.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var docs []*model.Document
	for _, doc := range f.docs {
		if doc.Status == status {
			copied := *doc
			docs = append(docs, &copied)
		}
	}
	return docs, nil
}

func (f *fakeDB) UpdateDocumentRawText(doc *model.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	stored, ok := f.docs[doc.RID]
	if !ok {
		return fmt.Errorf("document %v not found", doc.RID)
	}
	stored.RawText = doc.RawText
	if stored.Metadata == nil {
		stored.Metadata = model.Metadata{}
	}
	for k, v := range doc.Metadata {
		stored.Metadata[k] = v
	}
	stored.UpdatedAt = time.Now()
	doc.Metadata = stored.Metadata
	return nil
}

func (f *fakeDB) UpdateDocumentStatus(doc *model.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	stored, ok := f.docs[doc.RID]
	if !ok {
		return fmt.Errorf("document %v not found", doc.RID)
	}
	stored.Status = doc.Status
	switch doc.Status {
	case model.DocumentStatusFailed:
		stored.FailureReason = doc.FailureReason
	case model.DocumentStatusCompleted:
		now := time.Now()
		stored.CompletedAt = &now
		stored.FailureReason = nil
	default:
		stored.FailureReason = nil
	}
	stored.UpdatedAt = time.Now()
	*doc = *stored
	return nil
}

func (f *fakeDB) DeleteDocument(rid uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	delete(f.docs, rid)
	return nil
}

func (f *fakeDB) UpsertChunk(chunk *model.Chunk) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := chunkKey(chunk.DocumentID, chunk.ChunkIndex)
	if existing, ok := f.chunks[key]; ok {
		chunk.ID = existing.ID
		chunk.RID = existing.RID
		chunk.CreatedAt = existing.CreatedAt
	} else {
		f.nextChunkID++
		chunk.ID = f.nextChunkID
		chunk.RID = uuid.New()
		chunk.CreatedAt = time.Now()
	}

	for _, doc := range f.docs {
		if int(doc.ID) == chunk.DocumentID {
			chunk.DocumentRID = doc.RID
		}
	}

	copied := *chunk
	f.chunks[key] = &copied
	return nil
}

func (f *fakeDB) SelectChunk(rid uuid.UUID) (*model.Chunk, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, chunk := range f.chunks {
		if chunk.RID == rid {
			copied := *chunk
			return &copied, nil
		}
	}
	return nil, fmt.Errorf("chunk %v not found", rid)
}

func (f *fakeDB) SelectChunksByDocument(documentRID uuid.UUID) ([]*model.Chunk, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var chunks []*model.Chunk
	for _, chunk := range f.chunks {
		if chunk.DocumentRID == documentRID {
			copied := *chunk
			chunks = append(chunks, &copied)
		}
	}
	sort.Slice(chunks, func(i, j int) bool { return chunks[i].ChunkIndex < chunks[j].ChunkIndex })
	return chunks, nil
}

func (f *fakeDB) CountChunksByDocument(documentRID uuid.UUID) (int, error) {
	chunks, err := f.SelectChunksByDocument(documentRID)
	return len(chunks), err
}

func (f *fakeDB) UpdateChunkEmbedding(chunk *model.Chunk) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, stored := range f.chunks {
		if stored.RID == chunk.RID {
			stored.Embedding = chunk.Embedding
			return nil
		}
	}
	return fmt.Errorf("chunk %v not found", chunk.RID)
}

func (f *fakeDB) SelectChunksBySimilarity(embedding []float32, limit int, threshold float64, documentRIDs []uuid.UUID) ([]*model.Chunk, error) {
	return nil, nil
}

func (f *fakeDB) DeleteChunksByDocument(documentRID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for key, chunk := range f.chunks {
		if chunk.DocumentRID == documentRID {
			delete(f.chunks, key)
		}
	}
	return nil
}

func (f *fakeDB) UpsertMention(mention *model.EntityMention) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := mentionKey(mention)
	if existing, ok := f.mentions[key]; ok {
		mention.ID = existing.ID
		mention.CanonicalEntityID = existing.CanonicalEntityID
		mention.CreatedAt = existing.CreatedAt
	} else {
		mention.ID = uuid.New()
		mention.CreatedAt = time.Now()
	}

	for _, chunk := range f.chunks {
		if chunk.ID == mention.ChunkID {
			mention.ChunkRID = chunk.RID
		}
	}

	copied := *mention
	f.mentions[key] = &copied
	return nil
}

func (f *fakeDB) SelectMentionsByDocument(documentID int) ([]*model.EntityMention, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var mentions []*model.EntityMention
	for _, mention := range f.mentions {
		if mention.DocumentID == documentID {
			copied := *mention
			mentions = append(mentions, &copied)
		}
	}
	sort.Slice(mentions, func(i, j int) bool {
		if mentions[i].ChunkID != mentions[j].ChunkID {
			return mentions[i].ChunkID < mentions[j].ChunkID
		}
		return mentions[i].CharStart < mentions[j].CharStart
	})
	return mentions, nil
}

func (f *fakeDB) SelectMentionsByChunk(chunkID int) ([]*model.EntityMention, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var mentions []*model.EntityMention
	for _, mention := range f.mentions {
		if mention.ChunkID == chunkID {
			copied := *mention
			mentions = append(mentions, &copied)
		}
	}
	sort.Slice(mentions, func(i, j int) bool { return mentions[i].CharStart < mentions[j].CharStart })
	return mentions, nil
}

func (f *fakeDB) CountMentionsByDocument(documentID int) (int, error) {
	mentions, err := f.SelectMentionsByDocument(documentID)
	return len(mentions), err
}

func (f *fakeDB) LinkMentionCanonical(mentionID uuid.UUID, canonicalID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, mention := range f.mentions {
		if mention.ID == mentionID {
			id := canonicalID
			mention.CanonicalEntityID = &id
			return nil
		}
	}
	return fmt.Errorf("mention %v not found", mentionID)
}

func (f *fakeDB) ClearCanonicalLinks(documentID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, mention := range f.mentions {
		if mention.DocumentID == documentID {
			mention.CanonicalEntityID = nil
		}
	}
	return nil
}

func (f *fakeDB) DeleteMentionsByDocument(documentID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for key, mention := range f.mentions {
		if mention.DocumentID == documentID {
			delete(f.mentions, key)
		}
	}
	return nil
}

func (f *fakeDB) UpsertCanonicalEntity(entity *model.CanonicalEntity) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, existing := range f.entities {
		if existing.DocumentID == entity.DocumentID &&
			existing.EntityType == entity.EntityType &&
			existing.Name == entity.Name {
			entity.ID = existing.ID
			break
		}
	}
	if entity.ID == uuid.Nil {
		entity.ID = uuid.New()
	}
	if entity.CreatedAt.IsZero() {
		entity.CreatedAt = time.Now()
	}

	copied := *entity
	f.entities[entity.ID] = &copied
	return nil
}

func (f *fakeDB) SelectCanonicalEntity(id uuid.UUID) (*model.CanonicalEntity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	entity, ok := f.entities[id]
	if !ok {
		return nil, fmt.Errorf("entity %v not found", id)
	}
	copied := *entity
	return &copied, nil
}

func (f *fakeDB) SelectEntitiesByDocument(documentID int) ([]*model.CanonicalEntity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var entities []*model.CanonicalEntity
	for _, entity := range f.entities {
		if entity.DocumentID == documentID {
			copied := *entity
			entities = append(entities, &copied)
		}
	}
	sort.Slice(entities, func(i, j int) bool {
		if entities[i].EntityType != entities[j].EntityType {
			return entities[i].EntityType < entities[j].EntityType
		}
		return entities[i].Name < entities[j].Name
	})
	return entities, nil
}

func (f *fakeDB) CountEntitiesByDocument(documentID int) (int, error) {
	entities, err := f.SelectEntitiesByDocument(documentID)
	return len(entities), err
}

func (f *fakeDB) DeleteEntitiesByDocument(documentID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for id, entity := range f.entities {
		if entity.DocumentID == documentID {
			delete(f.entities, id)
		}
	}
	return nil
}

func (f *fakeDB) UpsertEdge(edge *model.RelationshipEdge) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := edgeKey(edge)
	if existing, ok := f.edges[key]; ok {
		edge.ID = existing.ID
		edge.CreatedAt = existing.CreatedAt
	} else {
		edge.ID = uuid.New()
		edge.CreatedAt = time.Now()
	}

	copied := *edge
	f.edges[key] = &copied
	return nil
}

func (f *fakeDB) SelectEdgesByDocument(documentID int) ([]*model.RelationshipEdge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var edges []*model.RelationshipEdge
	for _, edge := range f.edges {
		if edge.DocumentID == documentID {
			copied := *edge
			edges = append(edges, &copied)
		}
	}
	return edges, nil
}

func (f *fakeDB) CountEdgesByDocument(documentID int) (int, error) {
	edges, err := f.SelectEdgesByDocument(documentID)
	return len(edges), err
}

func (f *fakeDB) DeleteEdgesByDocument(documentID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for key, edge := range f.edges {
		if edge.DocumentID == documentID {
			delete(f.edges, key)
		}
	}
	return nil
}

// fakeOCR returns a canned recognition result
type fakeOCR struct {
	result *OCRResult
	err    error
	calls  int
}

func (f *fakeOCR) Recognize(ctx context.Context, doc *model.Document) (*OCRResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

// fakeSpan is one canned extraction result
type fakeSpan struct {
	text       string
	entityType string
}

// newFakeExtractor returns an extractor producing one span per canned
// entry found in the chunk text, at its real offset
func newFakeExtractor(spans []fakeSpan, failWith *error) extract.ExtractFunc {
	return func(text string) ([]extract.Span, error) {
		if failWith != nil && *failWith != nil {
			return nil, *failWith
		}

		var found []extract.Span
		for _, span := range spans {
			idx := indexOfSpan(text, span.text)
			if idx < 0 {
				continue
			}
			found = append(found, extract.Span{
				Text:       span.text,
				Type:       span.entityType,
				Start:      idx,
				End:        idx + len(span.text),
				Confidence: 0.95,
			})
		}
		return found, nil
	}
}

func indexOfSpan(text string, span string) int {
	for i := 0; i+len(span) <= len(text); i++ {
		if text[i:i+len(span)] == span {
			return i
		}
	}
	return -1
}
