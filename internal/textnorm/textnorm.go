// Package textnorm canonicalizes text for equality comparisons. Nothing in
// this package produces text that is stored or emitted.
package textnorm

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Normalize lowercases s, strips every rune that is neither a letter, a
// number nor whitespace, collapses whitespace runs to one space and trims
// the ends.
func Normalize(s string) string {
	if s == "" {
		return ""
	}
	s = norm.NFC.String(s)
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case unicode.IsLetter(r), unicode.IsNumber(r):
			b.WriteRune(unicode.ToLower(r))
		case unicode.IsSpace(r):
			b.WriteByte(' ')
		}
	}
	return CollapseSpace(b.String())
}

// Fold lowercases s and collapses whitespace, keeping punctuation.
func Fold(s string) string {
	return CollapseSpace(strings.ToLower(s))
}

// CollapseSpace replaces every whitespace run with a single space and trims.
func CollapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Len returns the length of s in runes. Every length threshold in the
// pipeline is expressed in characters, not bytes.
func Len(s string) int {
	return utf8.RuneCountInString(s)
}

// Truncate returns the first n runes of s.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
