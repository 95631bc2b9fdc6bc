package model

import (
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// DocumentStatus is the document-level lifecycle state.
// It is separate from the per-phase pipeline state: a document moves
// pending -> processing while phases run and ends in completed or failed.
type DocumentStatus string

const (
	DocumentStatusPending    DocumentStatus = "pending"
	DocumentStatusProcessing DocumentStatus = "processing"
	DocumentStatusCompleted  DocumentStatus = "completed"
	DocumentStatusFailed     DocumentStatus = "failed"
)

// Document represents a source document moving through the pipeline
type Document struct {
	ID            int64          `json:"id"`
	RID           uuid.UUID      `json:"rid"`
	ProjectRID    *uuid.UUID     `json:"project_rid,omitempty"`
	Title         string         `json:"title"`
	Source        string         `json:"source,omitempty"`
	DocType       string         `json:"doc_type,omitempty"`
	RawText       *string        `json:"raw_text,omitempty"` // Nil until OCR completes
	Status        DocumentStatus `json:"status"`
	FailureReason *string        `json:"failure_reason,omitempty"`
	CompletedAt   *time.Time     `json:"completed_at,omitempty"`
	Metadata      Metadata       `json:"metadata,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// NewDocumentFromFile creates a Document referencing a file on disk.
// The title defaults to the filename, and source to the file path.
// The file content is not read here; OCR fills RawText later.
func NewDocumentFromFile(filePath string, docType string, metadata Metadata) (*Document, error) {
	if _, err := os.Stat(filePath); err != nil {
		return nil, err
	}

	// Get filename without extension for default title
	filename := filepath.Base(filePath)
	title := filename[:len(filename)-len(filepath.Ext(filename))]
	if title == "" {
		title = filename
	}

	return &Document{
		Title:    title,
		Source:   filePath,
		DocType:  docType,
		Status:   DocumentStatusPending,
		Metadata: metadata,
	}, nil
}
