// Package chunker splits long text into bounded, sentence-aligned chunks for
// models with a limited input length.
package chunker

import (
	"strings"

	"github.com/loqalabs/file2text/internal/textnorm"
)

// Default chunking parameters.
const (
	// DefaultMaxLength is the chunk size, in runes, used by summarization.
	DefaultMaxLength = 1000

	// DefaultOverlap is kept for callers that size chunks by characters.
	// Overlap between chunks is always LookbackSentences sentences.
	DefaultOverlap = 200

	// LookbackSentences is how many trailing sentences of a closed chunk
	// seed the next one.
	LookbackSentences = 3
)

// Split returns text unchanged as a single chunk when it fits in maxLength
// runes. Otherwise sentences are accumulated greedily; when the next
// sentence would push the accumulated length past maxLength the chunk is
// closed and the next one starts with the last LookbackSentences sentences
// of the closed chunk followed by that sentence. Separators are not counted
// towards the length.
func Split(text string, maxLength, _ int) []string {
	if textnorm.Len(text) <= maxLength {
		return []string{text}
	}

	var (
		chunks  []string
		current []string
		length  int
	)
	for _, sentence := range textnorm.SplitSentences(text) {
		n := textnorm.Len(sentence)
		if length+n > maxLength && len(current) > 0 {
			chunks = append(chunks, join(current))

			start := len(current) - LookbackSentences
			if start < 0 {
				start = 0
			}
			seed := make([]string, 0, LookbackSentences+1)
			seed = append(seed, current[start:]...)
			current = append(seed, sentence)
			length = 0
			for _, s := range current {
				length += textnorm.Len(s)
			}
			continue
		}
		current = append(current, sentence)
		length += n
	}
	if len(current) > 0 {
		chunks = append(chunks, join(current))
	}
	return chunks
}

func join(sentences []string) string {
	out := strings.Join(sentences, ". ")
	if !textnorm.EndsWithTerminator(out) {
		out += "."
	}
	return out
}
