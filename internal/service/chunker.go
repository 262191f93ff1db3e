package service

import (
	"math"
	"strings"
	"unicode"
)

// DefaultChunkSize and DefaultChunkOverlap are the fallback values
// used when the caller passes zero.
const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 100

	// sentenceBoundaryTolerance is the fraction of chunkSize the
	// chunker will search around a target cut point for a sentence
	// boundary before falling back to a hard cut.
	sentenceBoundaryTolerance = 0.15

	// paragraph merge/split thresholds, in words.
	minParagraphWords = 40
	maxParagraphWords = 400
)

// SplitIntoChunks splits text into overlapping chunks, preferring to
// cut on a sentence boundary (. ? ! followed by whitespace) within
// ±15% of size. Successive chunks overlap by exactly overlap
// characters copied from the tail of the previous chunk. Returns nil
// for empty or whitespace-only input.
func SplitIntoChunks(text string, size, overlap int) []string {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = DefaultChunkOverlap
	}
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var chunks []string
	tolerance := int(math.Ceil(float64(size) * sentenceBoundaryTolerance))
	pos := 0
	n := len(text)

	for pos < n {
		target := pos + size
		var end int
		if target >= n {
			end = n
		} else {
			end = findSentenceBoundary(text, pos, target, tolerance)
		}

		chunks = append(chunks, text[pos:end])

		if end >= n {
			break
		}

		next := end - overlap
		if next <= pos {
			next = end
		}
		pos = next
	}

	return chunks
}

// findSentenceBoundary looks for a ". ", "! " or "? " boundary near
// target, preferring the closest match within [target-tolerance,
// target+tolerance]. Falls back to a hard cut at target.
func findSentenceBoundary(text string, start, target, tolerance int) int {
	n := len(text)
	lo := target - tolerance
	if lo < start {
		lo = start
	}
	hi := target + tolerance
	if hi > n {
		hi = n
	}

	best := -1
	bestDist := tolerance + 1
	for i := lo; i < hi; i++ {
		c := text[i]
		if (c == '.' || c == '!' || c == '?') && i+1 < n && isSpace(text[i+1]) {
			cut := i + 1
			dist := abs(cut - target)
			if dist < bestDist {
				best = cut
				bestDist = dist
			}
		}
	}
	if best != -1 {
		return best
	}
	if target > n {
		return n
	}
	return target
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// SplitIntoParagraphs splits text on paragraph boundaries (two or
// more consecutive line terminators). Paragraphs shorter than 40
// words are merged forward into the next one; paragraphs longer than
// 400 words are split at sentence boundaries into pieces of at most
// 400 words. The last paragraph is kept verbatim even if short.
// Returns nil for empty or whitespace-only input.
func SplitIntoParagraphs(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	raw := splitParagraphBoundaries(text)
	if len(raw) == 0 {
		return nil
	}

	merged := mergeShortParagraphs(raw)

	var result []string
	for _, p := range merged {
		if wordCount(p) > maxParagraphWords {
			result = append(result, splitLongParagraph(p, maxParagraphWords)...)
		} else {
			result = append(result, p)
		}
	}
	return result
}

func splitParagraphBoundaries(text string) []string {
	var paragraphs []string
	var builder strings.Builder
	newlineRun := 0

	flush := func() {
		p := strings.TrimSpace(builder.String())
		if p != "" {
			paragraphs = append(paragraphs, p)
		}
		builder.Reset()
	}

	for _, r := range text {
		if r == '\n' {
			newlineRun++
			if newlineRun >= 2 {
				flush()
			}
			continue
		}
		if newlineRun == 1 {
			builder.WriteRune('\n')
		}
		newlineRun = 0
		builder.WriteRune(r)
	}
	flush()

	return paragraphs
}

// mergeShortParagraphs merges any paragraph with fewer than 40 words
// into the following paragraph, except the final paragraph, which is
// always kept verbatim.
func mergeShortParagraphs(paragraphs []string) []string {
	if len(paragraphs) <= 1 {
		return paragraphs
	}

	var result []string
	pending := ""

	for i, p := range paragraphs {
		last := i == len(paragraphs)-1
		combined := p
		if pending != "" {
			combined = pending + "\n\n" + p
		}

		if !last && wordCount(combined) < minParagraphWords {
			pending = combined
			continue
		}

		result = append(result, combined)
		pending = ""
	}

	if pending != "" {
		result = append(result, pending)
	}

	return result
}

// splitLongParagraph breaks a paragraph into pieces of at most
// maxWords words, cutting at sentence boundaries where possible.
func splitLongParagraph(p string, maxWords int) []string {
	sentences := splitSentences(p)
	if len(sentences) == 0 {
		return []string{p}
	}

	var pieces []string
	var current strings.Builder
	currentWords := 0

	for _, sent := range sentences {
		sw := wordCount(sent)
		if currentWords > 0 && currentWords+sw > maxWords {
			pieces = append(pieces, strings.TrimSpace(current.String()))
			current.Reset()
			currentWords = 0
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(sent)
		currentWords += sw
	}
	if current.Len() > 0 {
		pieces = append(pieces, strings.TrimSpace(current.String()))
	}
	return pieces
}

// splitSentences performs a basic sentence split on ". ", "! ", "? ".
func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	runes := []rune(text)
	for i, r := range runes {
		current.WriteRune(r)
		if (r == '.' || r == '!' || r == '?') && i+1 < len(runes) && unicode.IsSpace(runes[i+1]) {
			sentences = append(sentences, strings.TrimSpace(current.String()))
			current.Reset()
		}
	}
	if current.Len() > 0 {
		sentences = append(sentences, strings.TrimSpace(current.String()))
	}
	return sentences
}

func wordCount(text string) int {
	return len(strings.Fields(text))
}
