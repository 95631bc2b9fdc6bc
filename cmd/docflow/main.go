// Package main provides the docflow CLI for running the document
// pipeline against a PostgreSQL database.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/rheinberg/docflow"
	"github.com/rheinberg/docflow/core/extract"
	"github.com/rheinberg/docflow/core/orchestrator"
	"github.com/rheinberg/docflow/core/retrieval"
	"github.com/rheinberg/docflow/helper"
	"github.com/rheinberg/docflow/model"
)

// Options is the YAML pipeline options file
type Options struct {
	ChunkSize      int     `yaml:"chunk_size"`
	Overlap        int     `yaml:"overlap"`
	MinChunkSize   int     `yaml:"min_chunk_size"`
	Threshold      float64 `yaml:"threshold"`
	ExtractWorkers int     `yaml:"extract_workers"`
	EmbeddingDim   int     `yaml:"embedding_dim"`
	WithEmbeddings bool    `yaml:"with_embeddings"`
}

// DefaultOptions returns the standard pipeline options
func DefaultOptions() Options {
	return Options{
		ChunkSize:      1000,
		Overlap:        200,
		MinChunkSize:   100,
		Threshold:      0.8,
		ExtractWorkers: 4,
		EmbeddingDim:   384,
	}
}

// LoadOptions reads the options file, falling back to defaults for
// unset values
func LoadOptions(path string) (Options, error) {
	options := DefaultOptions()
	if path == "" {
		return options, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return options, fmt.Errorf("read options file: %w", err)
	}
	if err := yaml.Unmarshal(data, &options); err != nil {
		return options, fmt.Errorf("parse options file: %w", err)
	}

	defaults := DefaultOptions()
	if options.ChunkSize <= 0 {
		options.ChunkSize = defaults.ChunkSize
	}
	if options.Overlap < 0 {
		options.Overlap = defaults.Overlap
	}
	if options.MinChunkSize <= 0 {
		options.MinChunkSize = defaults.MinChunkSize
	}
	if options.Threshold <= 0 {
		options.Threshold = defaults.Threshold
	}
	if options.ExtractWorkers <= 0 {
		options.ExtractWorkers = defaults.ExtractWorkers
	}
	if options.EmbeddingDim <= 0 {
		options.EmbeddingDim = defaults.EmbeddingDim
	}

	return options, nil
}

func (o Options) pipelineConfig() orchestrator.Config {
	return orchestrator.Config{
		ChunkConfig: model.ChunkConfig{
			ChunkSize:    o.ChunkSize,
			Overlap:      o.Overlap,
			MinChunkSize: o.MinChunkSize,
		},
		ResolveConfig: model.ResolveConfig{
			Threshold: o.Threshold,
		},
		ExtractWorkers: o.ExtractWorkers,
	}
}

// fileOCR serves recognized text from local files, for documents whose
// OCR output is already available on disk
type fileOCR struct {
	textPath  string
	guidePath string
}

func (f *fileOCR) Recognize(ctx context.Context, doc *model.Document) (*orchestrator.OCRResult, error) {
	text, err := os.ReadFile(f.textPath)
	if err != nil {
		return nil, fmt.Errorf("read text file: %w", err)
	}

	var guide []byte
	if f.guidePath != "" {
		guide, err = os.ReadFile(f.guidePath)
		if err != nil {
			return nil, fmt.Errorf("read structure guide file: %w", err)
		}
	}

	return &orchestrator.OCRResult{
		Text:           string(text),
		StructureGuide: string(guide),
		Method:         "file",
		Pages:          1,
	}, nil
}

var (
	optionsPath string
	guidePath   string
	projectRID  string
	docType     string
	limit       int
)

var rootCmd = &cobra.Command{
	Use:   "docflow",
	Short: "Document pipeline tool",
	Long: `CLI tool for running the docflow document pipeline: OCR intake,
semantic chunking, entity extraction, entity resolution and
relationship staging, persisted in PostgreSQL.

Environment variables:
  DB_HOST     PostgreSQL hostname (required)
  DB_PORT     PostgreSQL port (required)
  DB_USER     PostgreSQL user (required)
  DB_PASSWORD PostgreSQL password
  DB_NAME     PostgreSQL database name (required)
  DB_SSLMODE  PostgreSQL SSL mode (default: disable)`,
}

var processCmd = &cobra.Command{
	Use:   "process <text-file>",
	Short: "Run the full pipeline over a recognized text file",
	Long: `Inserts a document, runs all pipeline phases over the given
recognized text file and reports the resulting record counts. An
optional structure guide file steers the semantic chunker; without it
the fixed-window fallback is used.`,
	Args: cobra.ExactArgs(1),
	RunE: runProcess,
}

var statusCmd = &cobra.Command{
	Use:   "status <document-rid>",
	Short: "Show the pipeline state of a document",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search processed chunks by vector similarity",
	Args:  cobra.ExactArgs(1),
	RunE:  runSearch,
}

func init() {
	processCmd.Flags().StringVarP(&optionsPath, "options", "o", "", "YAML pipeline options file")
	processCmd.Flags().StringVarP(&guidePath, "guide", "g", "", "structure guide file for the chunker")
	processCmd.Flags().StringVarP(&projectRID, "project", "p", "", "project rid to link the document to")
	processCmd.Flags().StringVarP(&docType, "type", "t", "", "document type tag")
	searchCmd.Flags().StringVarP(&optionsPath, "options", "o", "", "YAML pipeline options file")
	searchCmd.Flags().IntVarP(&limit, "limit", "l", retrieval.DefaultLimit, "maximum number of results")

	rootCmd.AddCommand(processCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(searchCmd)
}

func main() {
	// Load .env file if present, envs may be set directly
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newDocflow(options Options) (*docflow.Docflow, error) {
	dbConfig, err := helper.NewDatabaseConfiguration()
	if err != nil {
		return nil, err
	}
	return docflow.New(dbConfig, options.EmbeddingDim)
}

func runProcess(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	options, err := LoadOptions(optionsPath)
	if err != nil {
		return err
	}

	d, err := newDocflow(options)
	if err != nil {
		return err
	}
	defer d.Close()

	extractor, err := extract.DefaultEntityExtractor()
	if err != nil {
		return fmt.Errorf("create entity extractor: %w", err)
	}

	var embedder extract.EmbedFunc
	if options.WithEmbeddings {
		embedder, err = extract.DefaultEmbedder()
		if err != nil {
			return fmt.Errorf("create embedder: %w", err)
		}
	}

	ocr := &fileOCR{textPath: args[0], guidePath: guidePath}
	if err := d.UsePipeline(ocr, extractor, embedder, options.pipelineConfig()); err != nil {
		return err
	}

	doc, err := model.NewDocumentFromFile(args[0], docType, nil)
	if err != nil {
		return fmt.Errorf("stat text file: %w", err)
	}
	if projectRID != "" {
		rid, err := uuid.Parse(projectRID)
		if err != nil {
			return fmt.Errorf("parse project rid: %w", err)
		}
		doc.ProjectRID = &rid
	}

	if err := d.Documents.InsertDocument(doc); err != nil {
		return err
	}
	fmt.Printf("Inserted document %s\n", doc.RID)

	if err := d.ProcessDocument(ctx, doc.RID); err != nil {
		return err
	}

	chunkCount, err := d.Chunks.CountChunksByDocument(doc.RID)
	if err != nil {
		return err
	}
	mentionCount, err := d.Mentions.CountMentionsByDocument(int(doc.ID))
	if err != nil {
		return err
	}
	entityCount, err := d.Entities.CountEntitiesByDocument(int(doc.ID))
	if err != nil {
		return err
	}
	edgeCount, err := d.Edges.CountEdgesByDocument(int(doc.ID))
	if err != nil {
		return err
	}

	fmt.Println()
	fmt.Printf("Document %s completed\n", doc.RID)
	fmt.Printf("  chunks:             %d\n", chunkCount)
	fmt.Printf("  entity mentions:    %d\n", mentionCount)
	fmt.Printf("  canonical entities: %d\n", entityCount)
	fmt.Printf("  staged edges:       %d\n", edgeCount)

	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	rid, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("parse document rid: %w", err)
	}

	d, err := newDocflow(DefaultOptions())
	if err != nil {
		return err
	}
	defer d.Close()

	doc, err := d.Documents.SelectDocument(rid)
	if err != nil {
		return err
	}

	fmt.Printf("Document %s (%s)\n", doc.RID, doc.Title)
	fmt.Printf("  status: %s\n", doc.Status)
	if doc.FailureReason != nil {
		fmt.Printf("  failure reason: %s\n", *doc.FailureReason)
	}
	if doc.CompletedAt != nil {
		fmt.Printf("  completed at: %s\n", doc.CompletedAt.Format("2006-01-02 15:04:05"))
	}

	// Phase view straight from the persisted records
	extractor := func(text string) ([]extract.Span, error) { return nil, nil }
	if err := d.UsePipeline(&fileOCR{}, extractor, nil, orchestrator.DefaultConfig()); err != nil {
		return err
	}

	state, err := d.State(rid)
	if err != nil {
		return err
	}

	fmt.Printf("  progress: %.0f%%\n", state.Progress*100)
	for _, phase := range model.Phases {
		record, ok := state.Phases[phase]
		if !ok {
			fmt.Printf("  %-21s -\n", phase)
			continue
		}
		fmt.Printf("  %-21s %s\n", phase, record.Status)
	}

	return nil
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	options, err := LoadOptions(optionsPath)
	if err != nil {
		return err
	}

	d, err := newDocflow(options)
	if err != nil {
		return err
	}
	defer d.Close()

	embedder, err := extract.DefaultEmbedder()
	if err != nil {
		return fmt.Errorf("create embedder: %w", err)
	}

	embedding, err := embedder(args[0])
	if err != nil {
		return fmt.Errorf("generate embedding: %w", err)
	}

	results, err := d.Engine.VectorRetrieve(ctx, embedding, &retrieval.QueryConfig{Limit: limit})
	if err != nil {
		return err
	}

	if len(results) == 0 {
		fmt.Println("No matching chunks found")
		return nil
	}

	for i, result := range results {
		content := result.Chunk.Content
		if len(content) > 160 {
			content = content[:160] + "..."
		}
		fmt.Printf("%d. [%.3f] document %s chunk %d\n   %s\n", i+1, result.Score, result.Chunk.DocumentRID, result.Chunk.ChunkIndex, content)
	}

	return nil
}
