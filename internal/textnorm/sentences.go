package textnorm

import (
	"regexp"
	"strings"
)

var sentenceBoundary = regexp.MustCompile(`[.!?][\s\p{Z}]+`)

// SplitSentences splits s after every terminator that is followed by
// whitespace. Pieces are trimmed and empty pieces dropped; the terminator of
// the final piece is kept when no whitespace follows it.
func SplitSentences(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := sentenceBoundary.Split(s, -1)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// EndsWithTerminator reports whether s ends in '.', '!' or '?'.
func EndsWithTerminator(s string) bool {
	return strings.HasSuffix(s, ".") || strings.HasSuffix(s, "!") || strings.HasSuffix(s, "?")
}
