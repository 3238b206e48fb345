package summarize

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/loqalabs/file2text/internal/config"
	"github.com/loqalabs/file2text/internal/execjson"
	"github.com/loqalabs/file2text/internal/fault"
	"github.com/loqalabs/file2text/internal/ollama"
	"github.com/loqalabs/file2text/internal/textnorm"
)

// Bounds limits the length of one summary, in characters.
type Bounds struct {
	MaxLength int `json:"max_length"`
	MinLength int `json:"min_length"`
}

// Summarizer abstracts abstractive summarization backends. One call
// summarizes one chunk of text.
type Summarizer interface {
	Summarize(ctx context.Context, text string, bounds Bounds) (string, error)
}

// FromConfig builds the backend selected by cfg.Mode.
func FromConfig(cfg config.SummarizationConfig) (Summarizer, error) {
	switch cfg.Mode {
	case "", "mock":
		return NewMockSummarizer(), nil
	case "exec":
		return NewExecSummarizer(cfg)
	case "ollama":
		return NewOllamaSummarizer(ollama.New(cfg.Endpoint, cfg.MaxRetries), cfg.Model, cfg.Temperature), nil
	default:
		return nil, fault.Configurationf("summarization", "unknown mode %q", cfg.Mode)
	}
}

// mockSummarizer is extractive: it keeps leading sentences up to the max
// length. Deterministic, for offline runs and tests.
type mockSummarizer struct{}

func NewMockSummarizer() Summarizer {
	return mockSummarizer{}
}

func (mockSummarizer) Summarize(_ context.Context, text string, bounds Bounds) (string, error) {
	var kept []string
	length := 0
	for _, s := range textnorm.SplitSentences(text) {
		n := textnorm.Len(s)
		if len(kept) > 0 && length+n > bounds.MaxLength {
			break
		}
		kept = append(kept, strings.TrimRight(s, ".!?"))
		length += n
	}
	if len(kept) == 0 {
		return "", nil
	}
	out := strings.Join(kept, ". ") + "."
	if bounds.MaxLength > 0 && textnorm.Len(out) > bounds.MaxLength {
		out = textnorm.Truncate(out, bounds.MaxLength)
	}
	return out, nil
}

// execSummarizer runs a helper that reads {"text", "model", "max_length",
// "min_length"} on stdin and prints {"summary"}.
type execSummarizer struct {
	cmd   *execjson.Command
	model string
	mu    sync.Mutex
}

type execRequest struct {
	Text      string `json:"text"`
	Model     string `json:"model,omitempty"`
	MaxLength int    `json:"max_length"`
	MinLength int    `json:"min_length"`
}

type execResponse struct {
	Summary string `json:"summary"`
}

func NewExecSummarizer(cfg config.SummarizationConfig) (Summarizer, error) {
	cmd, err := execjson.Parse(cfg.Command)
	if err != nil {
		return nil, fmt.Errorf("summarization command: %w", err)
	}
	return &execSummarizer{cmd: cmd, model: cfg.Model}, nil
}

func (s *execSummarizer) Summarize(ctx context.Context, text string, bounds Bounds) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var resp execResponse
	req := execRequest{Text: text, Model: s.model, MaxLength: bounds.MaxLength, MinLength: bounds.MinLength}
	if err := s.cmd.Run(ctx, nil, req, &resp); err != nil {
		return "", fmt.Errorf("summarize: %w", err)
	}
	return strings.TrimSpace(resp.Summary), nil
}

const ollamaSystemPrompt = "You summarize conversation transcripts. Answer with the summary only, " +
	"in the language of the transcript, without preamble."

type ollamaSummarizer struct {
	client      *ollama.Client
	model       string
	temperature float64
}

func NewOllamaSummarizer(client *ollama.Client, model string, temperature float64) Summarizer {
	return &ollamaSummarizer{client: client, model: model, temperature: temperature}
}

func (s *ollamaSummarizer) Summarize(ctx context.Context, text string, bounds Bounds) (string, error) {
	prompt := fmt.Sprintf("Summarize the following transcript in %d to %d characters.\n\n%s",
		bounds.MinLength, bounds.MaxLength, text)
	out, err := s.client.Generate(ctx, ollama.GenerateRequest{
		Model:       s.model,
		Prompt:      prompt,
		System:      ollamaSystemPrompt,
		Temperature: s.temperature,
		NumPredict:  bounds.MaxLength,
	})
	if err != nil {
		return "", fmt.Errorf("summarize: %w", err)
	}
	return strings.TrimSpace(out), nil
}
