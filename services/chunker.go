package services

import (
	"regexp"
	"strings"
)

// Chunker splits extracted text into overlapping, size-bounded passages.
// Splitting prefers paragraph boundaries, then sentence boundaries; a hard
// character cut is the last resort for a single oversized sentence. The same
// input and parameters always yield the same sequence.
type Chunker struct {
	maxChunkChars int
	overlapChars  int
	minChunkChars int

	sentenceRegex  *regexp.Regexp
	paragraphRegex *regexp.Regexp
}

// NewChunker creates a chunker. Zero or negative parameters fall back to the
// defaults used across the service (1000/200/100).
func NewChunker(maxChunkChars, overlapChars, minChunkChars int) *Chunker {
	if maxChunkChars <= 0 {
		maxChunkChars = 1000
	}
	if overlapChars < 0 || overlapChars >= maxChunkChars {
		overlapChars = maxChunkChars / 5
	}
	if minChunkChars <= 0 || minChunkChars > maxChunkChars {
		minChunkChars = maxChunkChars / 10
	}

	return &Chunker{
		maxChunkChars:  maxChunkChars,
		overlapChars:   overlapChars,
		minChunkChars:  minChunkChars,
		sentenceRegex:  regexp.MustCompile(`[.!?]+[\s]+`),
		paragraphRegex: regexp.MustCompile(`\n\n+`),
	}
}

// Split chunks text with overlap between adjacent chunks. Whitespace-only
// input yields no chunks; no produced chunk is ever empty.
func (c *Chunker) Split(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	units := c.semanticUnits(text)
	if len(units) == 0 {
		return nil
	}

	var chunks []string
	current := units[0]

	for _, unit := range units[1:] {
		// A chunk below the minimum keeps absorbing units even past the max;
		// fragments shorter than minChunkChars retrieve poorly.
		if len(current)+1+len(unit) <= c.maxChunkChars || len(current) < c.minChunkChars {
			current = current + " " + unit
			continue
		}

		chunks = append(chunks, current)

		// Seed the next chunk with the tail of the previous one so context
		// split across the boundary is not lost.
		tail := c.overlapTail(current)
		if tail != "" && len(tail)+1+len(unit) <= c.maxChunkChars {
			current = tail + " " + unit
		} else {
			current = unit
		}
	}

	chunks = append(chunks, current)
	return chunks
}

// semanticUnits breaks text into ordered pieces no longer than maxChunkChars:
// paragraphs where they fit, sentences otherwise, hard rune cuts as the
// final fallback.
func (c *Chunker) semanticUnits(text string) []string {
	var units []string

	for _, paragraph := range c.paragraphRegex.Split(text, -1) {
		paragraph = strings.TrimSpace(paragraph)
		if paragraph == "" {
			continue
		}
		if len(paragraph) <= c.maxChunkChars {
			units = append(units, paragraph)
			continue
		}

		for _, sentence := range c.splitSentences(paragraph) {
			if len(sentence) <= c.maxChunkChars {
				units = append(units, sentence)
				continue
			}
			units = append(units, hardCut(sentence, c.maxChunkChars)...)
		}
	}

	return units
}

// splitSentences splits a paragraph on sentence-ending punctuation, keeping
// the punctuation with the sentence it ends.
func (c *Chunker) splitSentences(paragraph string) []string {
	bounds := c.sentenceRegex.FindAllStringIndex(paragraph, -1)
	if len(bounds) == 0 {
		return []string{paragraph}
	}

	var sentences []string
	start := 0
	for _, b := range bounds {
		sentence := strings.TrimSpace(paragraph[start:b[1]])
		if sentence != "" {
			sentences = append(sentences, sentence)
		}
		start = b[1]
	}
	if rest := strings.TrimSpace(paragraph[start:]); rest != "" {
		sentences = append(sentences, rest)
	}
	return sentences
}

// overlapTail returns the last overlapChars characters of a chunk, trimmed so
// the seed never starts mid-whitespace.
func (c *Chunker) overlapTail(chunk string) string {
	if c.overlapChars <= 0 {
		return ""
	}
	runes := []rune(chunk)
	if len(runes) <= c.overlapChars {
		return chunk
	}
	return strings.TrimSpace(string(runes[len(runes)-c.overlapChars:]))
}

// hardCut slices an oversized unit into pieces of at most max runes.
func hardCut(s string, max int) []string {
	runes := []rune(s)
	var pieces []string
	for start := 0; start < len(runes); start += max {
		end := start + max
		if end > len(runes) {
			end = len(runes)
		}
		piece := strings.TrimSpace(string(runes[start:end]))
		if piece != "" {
			pieces = append(pieces, piece)
		}
	}
	return pieces
}

// CleanText normalizes extracted text before chunking: collapses whitespace
// runs inside lines while preserving paragraph breaks, and strips page
// markers left by extraction.
func CleanText(text string) string {
	text = pageMarkerRegex.ReplaceAllString(text, "\n\n")

	paragraphs := paragraphSplitRegex.Split(text, -1)
	cleaned := make([]string, 0, len(paragraphs))
	for _, p := range paragraphs {
		p = strings.Join(strings.Fields(p), " ")
		if p != "" {
			cleaned = append(cleaned, p)
		}
	}
	return strings.Join(cleaned, "\n\n")
}

var (
	pageMarkerRegex     = regexp.MustCompile(`(?m)^\s*-{2,}\s*PAGE\s+\d+\s*-{2,}\s*$|\f`)
	paragraphSplitRegex = regexp.MustCompile(`\n\s*\n`)
)
