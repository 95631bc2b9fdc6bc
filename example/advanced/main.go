package main

import (
	"context"
	"fmt"
	"log"

	"github.com/rheinberg/docflow"
	"github.com/rheinberg/docflow/core/orchestrator"
	"github.com/rheinberg/docflow/core/retrieval"
	"github.com/rheinberg/docflow/helper"
	"github.com/rheinberg/docflow/model"
)

const sampleText = `Introduction

Acme Corporation and Globex International entered a joint venture agreement on 2023-06-30.
The venture is led by Dr. Jane Doe, formerly of Globex Intl, together with John Smith of Acme Corp.

Terms

The parties agreed to share research facilities in Berlin and Boston.
Acme Corporation provides the laboratory equipment, while Globex International funds the staff.
All intellectual property created before 2024-01-01 remains with the originating party.

Termination

Either party may terminate the venture with six months notice.
Doe, Jane and Smith, John act as the designated arbiters in case of disputes.`

// structureGuide steers the semantic chunker; its headings survive as
// chunk metadata even though the raw text has no markup
const structureGuide = `# Introduction

Acme Corporation and Globex International entered a joint venture agreement.

# Terms

The parties agreed to share research facilities.

# Termination

Either party may terminate the venture.`

// guidedOCR serves the sample text together with its structure guide
type guidedOCR struct{}

func (o *guidedOCR) Recognize(ctx context.Context, doc *model.Document) (*orchestrator.OCRResult, error) {
	return &orchestrator.OCRResult{
		Text:           sampleText,
		StructureGuide: structureGuide,
		Method:         "static",
		Pages:          1,
	}, nil
}

func main() {
	// Start a test PostgreSQL container
	teardown, dbPort, err := helper.MustStartPostgresContainer()
	if err != nil {
		log.Fatalf("Failed to start PostgreSQL container: %v", err)
	}
	defer teardown(context.Background())

	dbConfig := &helper.DatabaseConfiguration{
		Host:     "localhost",
		Port:     dbPort,
		User:     "user",
		Password: "password",
		Database: "database",
		SSLMode:  "disable",
	}

	d, err := docflow.New(dbConfig, 384)
	if err != nil {
		log.Fatalf("Failed to create docflow: %v", err)
	}
	defer d.Close()

	// The default pipeline downloads the NER and embedding models on
	// first use (distilbert-NER and all-MiniLM-L6-v2)
	fmt.Println("Setting up the default pipeline (this may download models)...")
	if err := d.UseDefaultPipeline(&guidedOCR{}); err != nil {
		log.Fatalf("Failed to set up pipeline: %v", err)
	}

	doc := &model.Document{
		Title:   "Joint Venture Agreement",
		Source:  "advanced_example",
		DocType: "contract",
	}
	if err := d.Documents.InsertDocument(doc); err != nil {
		log.Fatalf("Failed to insert document: %v", err)
	}

	fmt.Println("Processing document...")
	if err := d.ProcessDocument(context.Background(), doc.RID); err != nil {
		log.Fatalf("Failed to process document: %v", err)
	}

	// Pipeline state straight from the cache
	state, err := d.State(doc.RID)
	if err != nil {
		log.Fatalf("Failed to read pipeline state: %v", err)
	}
	fmt.Printf("\nPipeline progress: %.0f%%\n", state.Progress*100)
	for _, phase := range model.Phases {
		if record, ok := state.Phases[phase]; ok {
			fmt.Printf("  %-21s %s\n", phase, record.Status)
		}
	}

	// Guided chunks carry their headings
	chunks, err := d.Chunks.SelectChunksByDocument(doc.RID)
	if err != nil {
		log.Fatalf("Failed to select chunks: %v", err)
	}
	fmt.Printf("\nChunked into %d sections:\n", len(chunks))
	for _, chunk := range chunks {
		heading := "-"
		if h, ok := chunk.Metadata["heading"].(string); ok {
			heading = h
		}
		fmt.Printf("  chunk %d (%s): chars %d-%d\n", chunk.ChunkIndex, heading, chunk.CharStart, chunk.CharEnd)
	}

	// Vector search over the embedded chunks
	queryText := "Who terminates the agreement?"
	fmt.Printf("\nQuerying: %s\n", queryText)

	results, err := d.Search(context.Background(), queryText, &retrieval.QueryConfig{
		Limit:         3,
		Threshold:     0.1,
		WithNeighbors: true,
	})
	if err != nil {
		log.Fatalf("Failed to search: %v", err)
	}

	fmt.Printf("Found %d results:\n", len(results))
	for i, result := range results {
		fmt.Printf("\n--- Result %d (%s, score %.4f) ---\n", i+1, result.Source, result.Score)
		fmt.Printf("%s\n", result.Chunk.Content)
	}

	// Traverse the staged relationship graph from the document
	staged, err := d.StagedGraph(int(doc.ID))
	if err != nil {
		log.Fatalf("Failed to load staged graph: %v", err)
	}
	reachable := staged.BFS(doc.RID, 3, nil, true)
	fmt.Printf("\nStaged graph: %d nodes reachable from the document\n", len(reachable))

	fmt.Println("\nAdvanced example completed successfully!")
}
