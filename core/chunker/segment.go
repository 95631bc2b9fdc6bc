package chunker

import (
	"regexp"
	"strings"
)

// segment is a structural unit of the guide: a heading-introduced
// section or a paragraph. start/end are raw character offsets within
// the guide, not within the raw text.
type segment struct {
	lines   []string
	heading *Heading
	start   int
	end     int
}

var headingRe = regexp.MustCompile(`^(#{1,6})\s+(.+)$`)

// segmentGuide scans the structure guide line by line and opens a new
// segment at every heading line and at every blank line that
// immediately follows another blank line (paragraph break).
func segmentGuide(guide string) []segment {
	if guide == "" {
		return nil
	}

	var segments []segment
	current := segment{start: 0}
	pos := 0
	prevBlank := false

	flush := func(endPos int) {
		if len(current.lines) > 0 {
			current.end = endPos
			segments = append(segments, current)
		}
	}

	for _, line := range strings.Split(guide, "\n") {
		if m := headingRe.FindStringSubmatch(line); m != nil {
			flush(pos)
			current = segment{
				start: pos,
				heading: &Heading{
					Level: len(m[1]),
					Text:  strings.TrimSpace(m[2]),
				},
			}
			current.lines = append(current.lines, line)
			prevBlank = false
		} else if strings.TrimSpace(line) == "" {
			if prevBlank {
				flush(pos)
				current = segment{start: pos}
			} else {
				current.lines = append(current.lines, line)
			}
			prevBlank = true
		} else {
			current.lines = append(current.lines, line)
			prevBlank = false
		}

		pos += len(line) + 1 // Account for the newline
	}
	flush(pos)

	return segments
}

var (
	imageRe       = regexp.MustCompile(`!\[[^\]]*\]\([^)]*\)`)
	linkRe        = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)
	headingMarkRe = regexp.MustCompile(`^#{1,6}\s+`)
	boldRe        = regexp.MustCompile(`(\*\*|__)([^*_]+)(\*\*|__)`)
	italicRe      = regexp.MustCompile(`([*_])([^*_]+)([*_])`)
	mathRe        = regexp.MustCompile(`\$+([^$]*)\$+`)
	hruleRe       = regexp.MustCompile(`^\s*(-{3,}|\*{3,}|_{3,})\s*$`)
	tableSepRe    = regexp.MustCompile(`^\s*\|?[\s:\-|]+\|?\s*$`)
	multiSpaceRe  = regexp.MustCompile(` {2,}`)
)

// normalizeSegment strips guide-only markup from a segment so the
// remaining plain text can be searched for verbatim in the raw text.
// Fence markers are dropped but the fenced content is kept; table
// separator rows and horizontal rules disappear entirely.
func normalizeSegment(seg segment) string {
	var out []string
	inFence := false

	for _, line := range seg.lines {
		trimmed := strings.TrimSpace(line)

		if strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~") {
			inFence = !inFence
			continue
		}
		if inFence {
			out = append(out, line)
			continue
		}
		if hruleRe.MatchString(line) {
			continue
		}
		if strings.Contains(line, "|") && tableSepRe.MatchString(line) {
			continue
		}

		l := line
		l = imageRe.ReplaceAllString(l, "")
		l = linkRe.ReplaceAllString(l, "$1")
		l = headingMarkRe.ReplaceAllString(l, "")
		l = boldRe.ReplaceAllString(l, "$2")
		l = italicRe.ReplaceAllString(l, "$2")
		l = mathRe.ReplaceAllString(l, "$1")
		if strings.HasPrefix(strings.TrimSpace(l), "|") || strings.HasSuffix(strings.TrimSpace(l), "|") {
			l = strings.ReplaceAll(l, "|", " ")
		}
		l = multiSpaceRe.ReplaceAllString(l, " ")
		l = strings.TrimSpace(l)

		if l == "" {
			continue
		}
		out = append(out, l)
	}

	return strings.Join(out, "\n")
}
