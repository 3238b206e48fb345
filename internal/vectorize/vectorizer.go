package vectorize

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"sync"

	"github.com/loqalabs/file2text/internal/config"
	"github.com/loqalabs/file2text/internal/execjson"
	"github.com/loqalabs/file2text/internal/fault"
	"github.com/loqalabs/file2text/internal/ollama"
	"github.com/loqalabs/file2text/internal/textnorm"
)

// Vectorizer abstracts embedding backends. Every vector it returns has
// Dimension elements.
type Vectorizer interface {
	Vectorize(ctx context.Context, text string) ([]float32, error)
	Dimension() int
	Model() string
}

// BatchVectorizer is implemented by backends that embed many texts per
// call.
type BatchVectorizer interface {
	VectorizeBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// FromConfig builds the backend selected by cfg.Mode.
func FromConfig(cfg config.VectorizationConfig) (Vectorizer, error) {
	switch cfg.Mode {
	case "", "mock":
		return NewMockVectorizer(cfg.Model, cfg.Dimension), nil
	case "exec":
		return NewExecVectorizer(cfg)
	case "ollama":
		return NewOllamaVectorizer(ollama.New(cfg.Endpoint, cfg.MaxRetries), cfg.Model, cfg.Dimension), nil
	default:
		return nil, fault.Configurationf("vectorization", "unknown mode %q", cfg.Mode)
	}
}

// VectorizeBatch embeds texts in order, using the backend's batch call when
// it has one.
func VectorizeBatch(ctx context.Context, v Vectorizer, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if bv, ok := v.(BatchVectorizer); ok {
		return bv.VectorizeBatch(ctx, texts)
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := v.Vectorize(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("vectorize text %d: %w", i, err)
		}
		out[i] = vec
	}
	return out, nil
}

// mockVectorizer hashes normalized tokens into a fixed number of buckets
// and L2-normalizes the result.
type mockVectorizer struct {
	model     string
	dimension int
}

func NewMockVectorizer(model string, dimension int) Vectorizer {
	if dimension <= 0 {
		dimension = 384
	}
	if model == "" {
		model = "mock"
	}
	return &mockVectorizer{model: model, dimension: dimension}
}

func (m *mockVectorizer) Dimension() int { return m.dimension }
func (m *mockVectorizer) Model() string  { return m.model }

func (m *mockVectorizer) Vectorize(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, m.dimension)
	for _, token := range strings.Fields(textnorm.Normalize(text)) {
		h := fnv.New64a()
		_, _ = h.Write([]byte(token))
		sum := h.Sum64()
		sign := float32(1)
		if sum&(1<<63) != 0 {
			sign = -1
		}
		vec[sum%uint64(m.dimension)] += sign
	}
	normalize(vec)
	return vec, nil
}

func normalize(vec []float32) {
	var norm float64
	for _, x := range vec {
		norm += float64(x) * float64(x)
	}
	if norm == 0 {
		return
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
}

// execVectorizer runs a helper that reads {"model", "texts"} and prints
// {"vectors": [[...]]}.
type execVectorizer struct {
	cmd       *execjson.Command
	model     string
	dimension int
	mu        sync.Mutex
}

type execRequest struct {
	Model string   `json:"model"`
	Texts []string `json:"texts"`
}

type execResponse struct {
	Vectors [][]float32 `json:"vectors"`
}

func NewExecVectorizer(cfg config.VectorizationConfig) (Vectorizer, error) {
	cmd, err := execjson.Parse(cfg.Command)
	if err != nil {
		return nil, fmt.Errorf("vectorization command: %w", err)
	}
	return &execVectorizer{cmd: cmd, model: cfg.Model, dimension: cfg.Dimension}, nil
}

func (v *execVectorizer) Dimension() int { return v.dimension }
func (v *execVectorizer) Model() string  { return v.model }

func (v *execVectorizer) Vectorize(ctx context.Context, text string) ([]float32, error) {
	out, err := v.VectorizeBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

func (v *execVectorizer) VectorizeBatch(ctx context.Context, texts []string) ([][]float32, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	var resp execResponse
	if err := v.cmd.Run(ctx, nil, execRequest{Model: v.model, Texts: texts}, &resp); err != nil {
		return nil, fmt.Errorf("vectorize: %w", err)
	}
	if err := checkShape(resp.Vectors, len(texts), v.dimension); err != nil {
		return nil, err
	}
	return resp.Vectors, nil
}

type ollamaVectorizer struct {
	client    *ollama.Client
	model     string
	dimension int
}

func NewOllamaVectorizer(client *ollama.Client, model string, dimension int) Vectorizer {
	return &ollamaVectorizer{client: client, model: model, dimension: dimension}
}

func (v *ollamaVectorizer) Dimension() int { return v.dimension }
func (v *ollamaVectorizer) Model() string  { return v.model }

func (v *ollamaVectorizer) Vectorize(ctx context.Context, text string) ([]float32, error) {
	out, err := v.VectorizeBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

func (v *ollamaVectorizer) VectorizeBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out, err := v.client.Embed(ctx, v.model, texts)
	if err != nil {
		return nil, fmt.Errorf("vectorize: %w", err)
	}
	if err := checkShape(out, len(texts), v.dimension); err != nil {
		return nil, err
	}
	return out, nil
}

func checkShape(vectors [][]float32, count, dimension int) error {
	if len(vectors) != count {
		return fmt.Errorf("backend returned %d vectors for %d texts", len(vectors), count)
	}
	for i, vec := range vectors {
		if dimension > 0 && len(vec) != dimension {
			return fault.Configurationf("vectorize", "vector %d has dimension %d, configured %d", i, len(vec), dimension)
		}
	}
	return nil
}
