package chunker

import (
	"fmt"
	"strings"

	"github.com/rheinberg/docflow/model"
)

// Heading is the structure metadata captured for a guide segment
type Heading struct {
	Level int    `json:"level"`
	Text  string `json:"text"`
}

// Chunk is one span of the document's raw text. CharStart/CharEnd are
// offsets into the raw text, not into the structure guide.
type Chunk struct {
	Text             string    `json:"text"`
	CharStart        int       `json:"char_start"`
	CharEnd          int       `json:"char_end"`
	Heading          *Heading  `json:"heading,omitempty"`
	Combined         bool      `json:"combined,omitempty"`
	CombinedHeadings []Heading `json:"combined_headings,omitempty"`
}

// Miss is a diagnostic for a guide segment whose normalized fragment
// could not be located in the raw text. Misses are non-fatal.
type Miss struct {
	Fragment string   `json:"fragment"`
	Heading  *Heading `json:"heading,omitempty"`
}

// Result holds the chunks plus alignment diagnostics
type Result struct {
	Chunks       []Chunk `json:"chunks"`
	Misses       []Miss  `json:"misses,omitempty"`
	UsedFallback bool    `json:"used_fallback"`
}

// Chunker converts a structure guide and a separately obtained raw
// text stream into ordered, non-overlapping chunks
type Chunker struct {
	config model.ChunkConfig
}

// New creates a chunker with the given configuration
func New(config model.ChunkConfig) *Chunker {
	return &Chunker{config: config}
}

// Chunk aligns the structure guide against the raw text:
//  1. Segment the guide at headings and paragraph breaks.
//  2. Normalize each segment to a plain-text fragment.
//  3. Search the raw text for each fragment with a monotonically
//     advancing cursor; a segment that cannot be found is skipped and
//     recorded as a miss without moving the cursor.
//  4. If alignment yields zero chunks, fall back to fixed windows.
//  5. Refine chunks below the minimum size by merging neighbors.
func (c *Chunker) Chunk(guide string, rawText string) (*Result, error) {
	if c.config.ChunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive")
	}
	if c.config.Overlap < 0 || c.config.Overlap >= c.config.ChunkSize {
		return nil, fmt.Errorf("overlap must be in [0, chunk size)")
	}
	if c.config.MinChunkSize < 0 {
		return nil, fmt.Errorf("min chunk size must not be negative")
	}

	result := &Result{}

	segments := segmentGuide(guide)
	result.Chunks, result.Misses = align(segments, rawText)

	// Guide absent or totally misaligned: fixed-window fallback over
	// the raw text replaces the whole result
	if len(result.Chunks) == 0 {
		result.Chunks = fixedWindow(rawText, c.config.ChunkSize, c.config.Overlap)
		result.UsedFallback = true
	}

	result.Chunks = refine(result.Chunks, c.config.MinChunkSize)

	return result, nil
}

// align searches the raw text for each normalized segment fragment.
// The cursor only advances on a successful match, so one miss does not
// cascade into later segments.
func align(segments []segment, rawText string) ([]Chunk, []Miss) {
	var chunks []Chunk
	var misses []Miss
	cursor := 0

	for _, seg := range segments {
		fragment := normalizeSegment(seg)
		// Empty after stripping markup, nothing to search for
		if fragment == "" {
			continue
		}

		idx := indexFrom(rawText, fragment, cursor)
		if idx < 0 {
			misses = append(misses, Miss{
				Fragment: fragmentPreview(fragment),
				Heading:  seg.heading,
			})
			continue
		}

		end := idx + len(fragment)
		chunks = append(chunks, Chunk{
			Text:      rawText[idx:end],
			CharStart: idx,
			CharEnd:   end,
			Heading:   seg.heading,
		})
		cursor = end
	}

	return chunks, misses
}

// fixedWindow chunks the raw text into windows of size chars advancing
// by size-overlap, with the final window clamped to end exactly at the
// end of the text.
func fixedWindow(rawText string, size int, overlap int) []Chunk {
	if len(rawText) == 0 {
		return nil
	}

	var chunks []Chunk
	step := size - overlap

	for start := 0; start < len(rawText); start += step {
		end := start + size
		if end >= len(rawText) {
			chunks = append(chunks, Chunk{
				Text:      rawText[start:],
				CharStart: start,
				CharEnd:   len(rawText),
			})
			break
		}

		chunks = append(chunks, Chunk{
			Text:      rawText[start:end],
			CharStart: start,
			CharEnd:   end,
		})
	}

	return chunks
}

// refine merges runs of undersized chunks until each merged chunk
// reaches minSize. The trailing accumulator is flushed regardless of
// size, so only the final chunk may stay below the minimum.
func refine(chunks []Chunk, minSize int) []Chunk {
	if minSize <= 0 || len(chunks) == 0 {
		return chunks
	}

	var refined []Chunk
	var current *Chunk

	for _, chunk := range chunks {
		if current == nil {
			merged := chunk
			current = &merged
		} else {
			absorb(current, chunk)
		}

		if len(current.Text) >= minSize {
			refined = append(refined, *current)
			current = nil
		}
	}

	if current != nil {
		refined = append(refined, *current)
	}

	return refined
}

// absorb merges src into dst, extending the span and collecting the
// heading metadata of every combined segment.
func absorb(dst *Chunk, src Chunk) {
	if dst.Text != "" && src.Text != "" {
		dst.Text = dst.Text + "\n\n" + src.Text
	} else {
		dst.Text += src.Text
	}
	dst.CharEnd = src.CharEnd

	if !dst.Combined {
		dst.Combined = true
		if dst.Heading != nil {
			dst.CombinedHeadings = append(dst.CombinedHeadings, *dst.Heading)
		}
	}
	if src.Heading != nil {
		dst.CombinedHeadings = append(dst.CombinedHeadings, *src.Heading)
	}
}

// indexFrom returns the index of the first occurrence of fragment in
// text at or after the cursor, or -1
func indexFrom(text string, fragment string, cursor int) int {
	if cursor > len(text) {
		return -1
	}
	idx := strings.Index(text[cursor:], fragment)
	if idx < 0 {
		return -1
	}
	return cursor + idx
}

const previewLength = 80

// fragmentPreview truncates a fragment for miss diagnostics
func fragmentPreview(fragment string) string {
	if len(fragment) <= previewLength {
		return fragment
	}
	return fragment[:previewLength]
}
