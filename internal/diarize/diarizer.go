package diarize

import (
	"context"
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"
	"sync"

	"github.com/loqalabs/file2text/internal/config"
	"github.com/loqalabs/file2text/internal/execjson"
	"github.com/loqalabs/file2text/internal/fault"
	"github.com/loqalabs/file2text/internal/speakers"
)

// TokenEnv is the environment variable through which helpers receive the
// model hub credential.
const TokenEnv = "HUGGINGFACE_TOKEN"

// Diarizer abstracts speaker diarization backends.
type Diarizer interface {
	Diarize(ctx context.Context, audioPath string) ([]speakers.Turn, error)
}

// FromConfig builds the backend selected by cfg.Mode.
func FromConfig(cfg config.DiarizationConfig) (Diarizer, error) {
	switch cfg.Mode {
	case "", "mock":
		return NewMockDiarizer(), nil
	case "exec":
		return NewExecDiarizer(cfg)
	default:
		return nil, fault.Configurationf("diarization", "unknown mode %q", cfg.Mode)
	}
}

// mockDiarizer returns fixed turns. Without turns every segment belongs to
// SPEAKER_00.
type mockDiarizer struct {
	turns []speakers.Turn
}

func NewMockDiarizer(turns ...speakers.Turn) Diarizer {
	if len(turns) == 0 {
		turns = []speakers.Turn{{Start: 0, End: math.MaxFloat64, Speaker: "SPEAKER_00"}}
	}
	return &mockDiarizer{turns: turns}
}

func (m *mockDiarizer) Diarize(_ context.Context, audioPath string) ([]speakers.Turn, error) {
	if _, err := os.Stat(audioPath); err != nil {
		return nil, fault.NotFound("diarize", err)
	}
	return append([]speakers.Turn(nil), m.turns...), nil
}

// execDiarizer runs a helper wrapping a pyannote style pipeline. The helper
// prints {"turns": [{"start", "end", "speaker"}]}.
type execDiarizer struct {
	cmd *execjson.Command
	cfg config.DiarizationConfig
	mu  sync.Mutex
}

type execResult struct {
	Turns []speakers.Turn `json:"turns"`
}

// NewExecDiarizer fails with a configuration error when no access token is
// configured.
func NewExecDiarizer(cfg config.DiarizationConfig) (Diarizer, error) {
	if cfg.AuthToken == "" {
		return nil, fault.Configurationf("diarization", "%s is not set; diarization needs a model hub access token", TokenEnv)
	}
	cmd, err := execjson.Parse(cfg.Command)
	if err != nil {
		return nil, fault.Configuration("diarization", err)
	}
	return &execDiarizer{cmd: cmd.WithEnv(TokenEnv + "=" + cfg.AuthToken), cfg: cfg}, nil
}

func (d *execDiarizer) Diarize(ctx context.Context, audioPath string) ([]speakers.Turn, error) {
	if _, err := os.Stat(audioPath); err != nil {
		return nil, fault.NotFound("diarize", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	args := []string{"--audio", audioPath}
	if d.cfg.MinSpeakers > 0 {
		args = append(args, "--min-speakers", strconv.Itoa(d.cfg.MinSpeakers))
	}
	if d.cfg.MaxSpeakers > 0 {
		args = append(args, "--max-speakers", strconv.Itoa(d.cfg.MaxSpeakers))
	}

	var resp execResult
	if err := d.cmd.Run(ctx, args, nil, &resp); err != nil {
		return nil, fmt.Errorf("diarize %s: %w", audioPath, err)
	}
	return resp.Turns, nil
}

// Speakers lists the distinct labels of turns in first-appearance order.
func Speakers(turns []speakers.Turn) []string {
	seen := make(map[string]struct{})
	var labels []string
	for _, t := range turns {
		if _, ok := seen[t.Speaker]; ok {
			continue
		}
		seen[t.Speaker] = struct{}{}
		labels = append(labels, t.Speaker)
	}
	return labels
}

// SortByStart orders turns chronologically without changing the relative
// order of turns that start together.
func SortByStart(turns []speakers.Turn) []speakers.Turn {
	out := append([]speakers.Turn(nil), turns...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out
}
