package main

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/rheinberg/docflow"
	"github.com/rheinberg/docflow/core/extract"
	"github.com/rheinberg/docflow/core/orchestrator"
	"github.com/rheinberg/docflow/helper"
	"github.com/rheinberg/docflow/model"
)

const sampleText = `Acme Corporation signed the settlement agreement with John Smith on 2024-01-15.
The agreement obliges Acme Corp to pay the agreed amount to Smith, John before the deadline.
Both parties confirmed the terms in the presence of their legal counsel.`

// staticOCR serves the sample text as recognized output
type staticOCR struct{}

func (o *staticOCR) Recognize(ctx context.Context, doc *model.Document) (*orchestrator.OCRResult, error) {
	return &orchestrator.OCRResult{
		Text:   sampleText,
		Method: "static",
		Pages:  1,
	}, nil
}

// dictionaryExtractor finds a fixed set of known entities in the text
func dictionaryExtractor() extract.ExtractFunc {
	known := []struct {
		text       string
		entityType string
	}{
		{"Acme Corporation", "ORG"},
		{"Acme Corp", "ORG"},
		{"John Smith", "PERSON"},
		{"Smith, John", "PERSON"},
		{"2024-01-15", "DATE"},
	}

	return func(text string) ([]extract.Span, error) {
		var spans []extract.Span
		for _, entry := range known {
			idx := strings.Index(text, entry.text)
			if idx < 0 {
				continue
			}
			spans = append(spans, extract.Span{
				Text:       entry.text,
				Type:       entry.entityType,
				Start:      idx,
				End:        idx + len(entry.text),
				Confidence: 1.0,
			})
		}
		return spans, nil
	}
}

func main() {
	// Start a test PostgreSQL container
	teardown, dbPort, err := helper.MustStartPostgresContainer()
	if err != nil {
		log.Fatalf("Failed to start PostgreSQL container: %v", err)
	}
	defer teardown(context.Background())

	// Create database configuration using the container port
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

	// Wire the pipeline with simple in-process collaborators, no
	// embeddings for this example
	err = d.UsePipeline(&staticOCR{}, dictionaryExtractor(), nil, orchestrator.DefaultConfig())
	if err != nil {
		log.Fatalf("Failed to set up pipeline: %v", err)
	}

	// Insert the document, content arrives through the OCR phase
	doc := &model.Document{
		Title:   "Settlement Agreement",
		Source:  "basic_example",
		DocType: "contract",
		Metadata: model.Metadata{
			"author": "Example Author",
		},
	}
	if err := d.Documents.InsertDocument(doc); err != nil {
		log.Fatalf("Failed to insert document: %v", err)
	}
	fmt.Printf("Inserted document %s\n", doc.RID)

	// Run all pipeline phases
	fmt.Println("Processing document...")
	if err := d.ProcessDocument(context.Background(), doc.RID); err != nil {
		log.Fatalf("Failed to process document: %v", err)
	}

	// Show what the pipeline produced
	mentions, err := d.Mentions.SelectMentionsByDocument(int(doc.ID))
	if err != nil {
		log.Fatalf("Failed to select mentions: %v", err)
	}
	fmt.Printf("\nExtracted %d entity mentions:\n", len(mentions))
	for _, mention := range mentions {
		fmt.Printf("  [%s] %q at %d-%d\n", mention.EntityType, mention.SurfaceText, mention.CharStart, mention.CharEnd)
	}

	entities, err := d.Entities.SelectEntitiesByDocument(int(doc.ID))
	if err != nil {
		log.Fatalf("Failed to select entities: %v", err)
	}
	fmt.Printf("\nResolved into %d canonical entities:\n", len(entities))
	for _, entity := range entities {
		fmt.Printf("  [%s] %q (%d mentions, aliases: %s)\n",
			entity.EntityType, entity.Name, entity.MentionCount, strings.Join(entity.Aliases, ", "))
	}

	edgeCount, err := d.Edges.CountEdgesByDocument(int(doc.ID))
	if err != nil {
		log.Fatalf("Failed to count edges: %v", err)
	}
	fmt.Printf("\nStaged %d relationship edges\n", edgeCount)

	fmt.Println("\nBasic example completed successfully!")
}
