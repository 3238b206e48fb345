package repetition

import (
	"fmt"
	"strings"
	"time"

	"github.com/dlclark/regexp2"
	"github.com/loqalabs/file2text/internal/textnorm"
)

// MatchTimeout bounds a single pattern evaluation. Backtracking patterns
// over pathological input give up instead of stalling the pipeline.
const MatchTimeout = 2 * time.Second

// MinSentenceLength is the rune count under which a sentence is dropped by
// the sentence dedup pass.
const MinSentenceLength = 5

// DefaultInterjections is the closed set of backchannel tokens collapsed by
// the interjection pass.
var DefaultInterjections = []string{"Ага", "Оке", "Окей", "Да", "Нет", "Угу", "М-м", "Хм"}

// Transform is one pure string rewrite of the cleaning pipeline.
type Transform interface {
	Name() string
	Apply(s string) string
}

// TransformFunc adapts a plain function to Transform.
type TransformFunc struct {
	name string
	fn   func(string) string
}

func NewTransformFunc(name string, fn func(string) string) TransformFunc {
	return TransformFunc{name: name, fn: fn}
}

func (t TransformFunc) Name() string          { return t.name }
func (t TransformFunc) Apply(s string) string { return t.fn(s) }

type rewrite struct {
	re   *regexp2.Regexp
	repl string
}

func compile(expr, repl string, opts regexp2.RegexOptions) rewrite {
	re := regexp2.MustCompile(expr, opts)
	re.MatchTimeout = MatchTimeout
	return rewrite{re: re, repl: repl}
}

// apply returns s unchanged when the engine fails.
func (r rewrite) apply(s string) string {
	out, err := r.re.Replace(s, r.repl, -1, -1)
	if err != nil {
		return s
	}
	return out
}

// patternTransform runs its rewrites in order.
type patternTransform struct {
	name     string
	rewrites []rewrite
}

func (p patternTransform) Name() string { return p.name }

func (p patternTransform) Apply(s string) string {
	if s == "" {
		return s
	}
	for _, r := range p.rewrites {
		s = r.apply(s)
	}
	return s
}

// Whitespace folds every whitespace run to one space and trims.
func Whitespace() Transform {
	return NewTransformFunc("whitespace", textnorm.CollapseSpace)
}

// Interjections collapses three or more consecutive occurrences of the same
// token, optionally separated by punctuation, into the first occurrence
// followed by a period. Matching is case-insensitive and the first
// occurrence keeps its literal casing.
func Interjections(tokens []string) Transform {
	if len(tokens) == 0 {
		tokens = DefaultInterjections
	}
	quoted := make([]string, len(tokens))
	for i, tok := range tokens {
		quoted[i] = regexp2.Escape(tok)
	}
	expr := `\b(` + strings.Join(quoted, "|") + `)\s*[.!?,]?\s*(\1\s*[.!?,]?\s*){2,}`
	return patternTransform{
		name:     "interjections",
		rewrites: []rewrite{compile(expr, "$1. ", regexp2.IgnoreCase)},
	}
}

// WordRuns collapses a word repeated three or more times in a row down to
// two occurrences.
func WordRuns() Transform {
	return patternTransform{
		name:     "word-runs",
		rewrites: []rewrite{compile(`\b(\w+)(\s+\1){2,}\b`, "$1 $1", regexp2.IgnoreCase)},
	}
}

// CommaRuns collapses a word repeated three or more times separated by
// commas down to one occurrence.
func CommaRuns() Transform {
	return patternTransform{
		name:     "comma-runs",
		rewrites: []rewrite{compile(`(\b\w+\b)(\s*,\s*\1){2,}`, "$1", regexp2.IgnoreCase)},
	}
}

// SentenceDedup drops sentences shorter than MinSentenceLength runes and
// every sentence whose normalized form was already seen. Survivors keep
// their original spelling and are joined with ". ". When nothing survives
// the input is returned unchanged.
func SentenceDedup() Transform {
	return NewTransformFunc("sentence-dedup", func(s string) string {
		seen := make(map[string]struct{})
		var kept []string
		for _, sentence := range textnorm.SplitSentences(s) {
			if textnorm.Len(sentence) < MinSentenceLength {
				continue
			}
			key := textnorm.Normalize(sentence)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			kept = append(kept, sentence)
		}
		if len(kept) == 0 {
			return s
		}
		return joinSentences(kept)
	})
}

// SubstringCollapse removes consecutive repeats of a span at several length
// scales. The first sweep looks at windows from 80 down to 10 runes with
// comma or period separators and needs at least three copies; the second
// looks at windows from 50 down to 15 runes with comma separators and
// needs two. Long windows run first so a long repeat is never partially
// consumed by a shorter one.
func SubstringCollapse() Transform {
	var rewrites []rewrite
	for length := 80; length >= 10; length -= 10 {
		expr := fmt.Sprintf(`([^.!?]{%d,%d})(\s*[,.]\s*\1){2,}`, length/2, length)
		rewrites = append(rewrites, compile(expr, "$1", regexp2.None))
	}
	for length := 50; length >= 15; length -= 5 {
		expr := fmt.Sprintf(`([^.!?]{%d,%d})(\s*,\s*\1)+`, length/2, length)
		rewrites = append(rewrites, compile(expr, "$1", regexp2.None))
	}
	return patternTransform{name: "substring-collapse", rewrites: rewrites}
}

// FinalNormalize folds whitespace and collapses runs of the same terminal
// punctuation mark.
func FinalNormalize() Transform {
	terminators := compile(`\s*([.!?])\s*\1+`, "$1", regexp2.None)
	return NewTransformFunc("final-normalize", func(s string) string {
		return terminators.apply(textnorm.CollapseSpace(s))
	})
}

// DefaultTransforms returns the cleaning pipeline in its fixed order.
func DefaultTransforms(interjections []string) []Transform {
	return []Transform{
		Whitespace(),
		Interjections(interjections),
		WordRuns(),
		CommaRuns(),
		SentenceDedup(),
		SubstringCollapse(),
		FinalNormalize(),
	}
}

func joinSentences(sentences []string) string {
	out := strings.Join(sentences, ". ")
	if out != "" && !textnorm.EndsWithTerminator(out) {
		out += "."
	}
	return out
}
