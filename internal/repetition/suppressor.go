// Package repetition removes the repetition artifacts that speech
// recognition and abstractive summarization leave in text.
package repetition

import (
	"strings"

	"github.com/dlclark/regexp2"
	"github.com/loqalabs/file2text/internal/textnorm"
)

// Suppressor applies an ordered list of transforms. It holds no mutable
// state and is safe for concurrent use.
type Suppressor struct {
	transforms []Transform
	summaryRun rewrite
}

// New builds a suppressor. Without transforms the default pipeline is used.
func New(transforms ...Transform) *Suppressor {
	if len(transforms) == 0 {
		transforms = DefaultTransforms(nil)
	}
	return &Suppressor{
		transforms: transforms,
		summaryRun: compile(`\b(\w+)(\s+\1){2,}\b`, "$1", regexp2.IgnoreCase),
	}
}

// NewWithInterjections builds the default pipeline over a custom
// interjection set.
func NewWithInterjections(tokens []string) *Suppressor {
	return New(DefaultTransforms(tokens)...)
}

// Transforms returns the names of the configured transforms in order.
func (s *Suppressor) Transforms() []string {
	names := make([]string, len(s.transforms))
	for i, t := range s.transforms {
		names[i] = t.Name()
	}
	return names
}

// Clean runs every transform over text. Empty input is returned unchanged.
func (s *Suppressor) Clean(text string) string {
	if text == "" {
		return text
	}
	for _, t := range s.transforms {
		text = t.Apply(text)
	}
	return text
}

// PostprocessSummary cleans summarizer output: Clean, then an exact
// duplicate sentence pass keyed on lowercase and folded whitespace, then a
// collapse of any word repeated three or more times down to one.
func (s *Suppressor) PostprocessSummary(text string) string {
	if text == "" {
		return text
	}
	text = s.Clean(text)

	seen := make(map[string]struct{})
	var unique []string
	for _, sentence := range textnorm.SplitSentences(text) {
		key := textnorm.Fold(sentence)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		unique = append(unique, sentence)
	}
	out := joinSentences(unique)
	out = s.summaryRun.apply(out)
	return strings.TrimSpace(out)
}

var std = New()

// Clean runs the default pipeline.
func Clean(text string) string { return std.Clean(text) }

// PostprocessSummary runs the default summary postprocessor.
func PostprocessSummary(text string) string { return std.PostprocessSummary(text) }
