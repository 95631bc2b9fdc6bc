package orchestrator

import (
	"context"

	"github.com/rheinberg/docflow/model"
)

// OCRResult is the output of layout-aware text recognition: the raw
// text stream plus a markdown structure guide describing the document
// layout. The guide drives semantic chunking and may be empty when the
// OCR method cannot produce one.
type OCRResult struct {
	Text           string
	StructureGuide string
	Method         string
	Pages          int
}

// OCRService turns a source document into raw text. Implementations
// wrap external OCR engines; transient failures should be retried
// inside the implementation.
type OCRService interface {
	Recognize(ctx context.Context, doc *model.Document) (*OCRResult, error)
}

// Document metadata keys written by the OCR phase
const (
	metaStructureGuide = "structure_guide"
	metaOCRMethod      = "ocr_method"
	metaPageCount      = "page_count"
)
