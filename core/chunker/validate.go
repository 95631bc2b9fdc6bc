package chunker

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// Report summarizes the quality of a chunking result
type Report struct {
	ChunkCount       int      `json:"chunk_count"`
	AvgSize          float64  `json:"avg_size"`
	MinSize          int      `json:"min_size"`
	MaxSize          int      `json:"max_size"`
	Coverage         float64  `json:"coverage"`
	EmptyChunks      int      `json:"empty_chunks"`
	VeryShortChunks  int      `json:"very_short_chunks"`
	IncompleteChunks int      `json:"incomplete_chunks"`
	OverlappingPairs int      `json:"overlapping_pairs"`
	QualityScore     float64  `json:"quality_score"`
	Issues           []string `json:"issues,omitempty"`
}

const veryShortThreshold = 50

var numberedLineRe = regexp.MustCompile(`^\d+[.)]`)

// Validate computes size statistics, coverage against the raw text,
// and a quality score in [0,1] for a chunking result.
func Validate(chunks []Chunk, rawText string) *Report {
	report := &Report{
		ChunkCount:   len(chunks),
		QualityScore: 1.0,
	}

	if len(chunks) == 0 {
		if len(rawText) > 0 {
			report.QualityScore = 0
			report.Issues = append(report.Issues, "no chunks produced for non-empty text")
		}
		return report
	}

	totalSize := 0
	report.MinSize = len(chunks[0].Text)

	for i, chunk := range chunks {
		size := len(chunk.Text)
		totalSize += size
		if size < report.MinSize {
			report.MinSize = size
		}
		if size > report.MaxSize {
			report.MaxSize = size
		}

		trimmed := strings.TrimSpace(chunk.Text)
		if trimmed == "" {
			report.EmptyChunks++
		} else if size < veryShortThreshold {
			report.VeryShortChunks++
		}

		if trimmed != "" && !endsComplete(trimmed) {
			report.IncompleteChunks++
		}

		if i > 0 && chunks[i-1].CharEnd > chunk.CharStart {
			report.OverlappingPairs++
		}
	}

	report.AvgSize = float64(totalSize) / float64(len(chunks))
	if len(rawText) > 0 {
		report.Coverage = float64(totalSize) / float64(len(rawText))
	}

	if report.Coverage < 0.95 || report.Coverage > 1.05 {
		report.QualityScore *= 0.7
		report.Issues = append(report.Issues, fmt.Sprintf("coverage %.2f outside [0.95, 1.05]", report.Coverage))
	}
	if report.EmptyChunks > 0 {
		report.QualityScore *= 1 - float64(report.EmptyChunks)/float64(report.ChunkCount)
		report.Issues = append(report.Issues, fmt.Sprintf("%d empty chunks", report.EmptyChunks))
	}
	if report.IncompleteChunks > 0 {
		// Half weight, incomplete endings are common in scanned text
		report.QualityScore *= 1 - 0.5*float64(report.IncompleteChunks)/float64(report.ChunkCount)
		report.Issues = append(report.Issues, fmt.Sprintf("%d chunks without terminal punctuation", report.IncompleteChunks))
	}
	if report.OverlappingPairs > 0 {
		report.Issues = append(report.Issues, fmt.Sprintf("%d overlapping chunk pairs", report.OverlappingPairs))
	}

	if report.QualityScore < 0 {
		report.QualityScore = 0
	}
	if report.QualityScore > 1 {
		report.QualityScore = 1
	}

	return report
}

// endsComplete reports whether a chunk ends in terminal punctuation.
// All-caps headings and numbered-list lines are exempt.
func endsComplete(text string) bool {
	if isAllCaps(text) || numberedLineRe.MatchString(text) {
		return true
	}
	last := text[len(text)-1]
	return last == '.' || last == '!' || last == '?'
}

// isAllCaps reports whether the text contains letters and none of
// them are lowercase
func isAllCaps(text string) bool {
	hasLetter := false
	for _, r := range text {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsLetter(r) {
			hasLetter = true
		}
	}
	return hasLetter
}
