// Package ollama talks to an Ollama server for generation and embeddings.
package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/loqalabs/file2text/internal/fault"
)

type Client struct {
	endpoint string
	http     *http.Client
	maxTries uint
	backoff  func() backoff.BackOff
}

// New returns a client for endpoint. Transient failures are retried up to
// maxRetries times with exponential backoff.
func New(endpoint string, maxRetries int) *Client {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &Client{
		endpoint: strings.TrimRight(endpoint, "/"),
		http:     &http.Client{Timeout: 10 * time.Minute},
		maxTries: uint(maxRetries) + 1,
		backoff: func() backoff.BackOff {
			return backoff.NewExponentialBackOff()
		},
	}
}

// WithHTTPClient replaces the HTTP client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.http = hc
	return c
}

// WithBackOff replaces the retry schedule.
func (c *Client) WithBackOff(factory func() backoff.BackOff) *Client {
	c.backoff = factory
	return c
}

type GenerateRequest struct {
	Model       string
	Prompt      string
	System      string
	Temperature float64
	NumPredict  int
}

type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	System  string          `json:"system,omitempty"`
	Stream  bool            `json:"stream"`
	Options generateOptions `json:"options"`
}

type generateOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type generateStreamResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error,omitempty"`
}

// Generate streams a completion and returns the accumulated text.
func (c *Client) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	body, err := json.Marshal(generateRequest{
		Model:  req.Model,
		Prompt: req.Prompt,
		System: req.System,
		Stream: true,
		Options: generateOptions{
			Temperature: req.Temperature,
			NumPredict:  req.NumPredict,
		},
	})
	if err != nil {
		return "", err
	}
	return retry(ctx, c, func() (string, error) {
		resp, err := c.post(ctx, "/api/generate", body)
		if err != nil {
			return "", err
		}
		defer resp.Body.Close()

		var b strings.Builder
		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
		for scanner.Scan() {
			line := scanner.Bytes()
			if len(bytes.TrimSpace(line)) == 0 {
				continue
			}
			var chunk generateStreamResponse
			if err := json.Unmarshal(line, &chunk); err != nil {
				return "", backoff.Permanent(fmt.Errorf("decode ollama stream: %w", err))
			}
			if chunk.Error != "" {
				return "", backoff.Permanent(classify(http.StatusInternalServerError, chunk.Error))
			}
			b.WriteString(chunk.Response)
			if chunk.Done {
				break
			}
		}
		if err := scanner.Err(); err != nil {
			return "", err
		}
		return b.String(), nil
	})
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// Embed returns one embedding per input, in order.
func (c *Client) Embed(ctx context.Context, model string, inputs []string) ([][]float32, error) {
	body, err := json.Marshal(embedRequest{Model: model, Input: inputs})
	if err != nil {
		return nil, err
	}
	return retry(ctx, c, func() ([][]float32, error) {
		resp, err := c.post(ctx, "/api/embed", body)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		var out embedResponse
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return nil, backoff.Permanent(fmt.Errorf("decode ollama embeddings: %w", err))
		}
		if len(out.Embeddings) != len(inputs) {
			return nil, backoff.Permanent(fmt.Errorf("ollama returned %d embeddings for %d inputs", len(out.Embeddings), len(inputs)))
		}
		return out.Embeddings, nil
	})
}

// post sends body and returns a response with a 2xx status. Other statuses
// are turned into errors, permanent unless the server may recover.
func (c *Client) post(ctx context.Context, path string, body []byte) (*http.Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, bytes.NewReader(body))
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, backoff.Permanent(ctx.Err())
		}
		return nil, err
	}
	if resp.StatusCode < 300 {
		return resp, nil
	}
	defer resp.Body.Close()
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	err = classify(resp.StatusCode, strings.TrimSpace(string(msg)))
	if resp.StatusCode >= 500 && !fault.Fatal(err) {
		return nil, err
	}
	return nil, backoff.Permanent(err)
}

func classify(status int, body string) error {
	lower := strings.ToLower(body)
	base := fmt.Errorf("ollama returned status %d: %s", status, body)
	switch {
	case strings.Contains(lower, "out of memory"), strings.Contains(lower, "requires more system memory"):
		return fault.Resource("ollama", base)
	case status == http.StatusNotFound && strings.Contains(lower, "model"):
		return fault.Configuration("ollama", base)
	}
	return base
}

func retry[T any](ctx context.Context, c *Client, op func() (T, error)) (T, error) {
	out, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(c.backoff()),
		backoff.WithMaxTries(c.maxTries),
	)
	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		err = perm.Unwrap()
	}
	return out, err
}
