package extract

// Span is one entity occurrence found in a chunk of text. Start and
// End are byte offsets into the text the extractor was given.
type Span struct {
	Text       string
	Type       string
	Start      int
	End        int
	Confidence float64
}

// ExtractFunc finds entity spans in a piece of text
type ExtractFunc func(text string) ([]Span, error)

// EmbedFunc generates an embedding vector for a piece of text
type EmbedFunc func(text string) ([]float32, error)
