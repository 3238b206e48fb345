package vectorize

import (
	"context"
	"math"
	"sort"
)

// Match is one search hit.
type Match struct {
	Index int     `json:"index"`
	Text  string  `json:"text"`
	Score float64 `json:"score"`
}

// Cosine returns the cosine similarity of a and b, or 0 when either is a
// zero vector or their lengths differ.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// Search embeds query and texts and returns up to topK texts whose
// similarity to the query is at least threshold, best first.
func Search(ctx context.Context, v Vectorizer, query string, texts []string, topK int, threshold float64) ([]Match, error) {
	if len(texts) == 0 || topK <= 0 {
		return nil, nil
	}
	q, err := v.Vectorize(ctx, query)
	if err != nil {
		return nil, err
	}
	vectors, err := VectorizeBatch(ctx, v, texts)
	if err != nil {
		return nil, err
	}
	var matches []Match
	for i, vec := range vectors {
		score := Cosine(q, vec)
		if score >= threshold {
			matches = append(matches, Match{Index: i, Text: texts[i], Score: score})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}
