package transcribe

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/loqalabs/file2text/internal/config"
	"github.com/loqalabs/file2text/internal/execjson"
	"github.com/loqalabs/file2text/internal/speakers"
)

// execTranscriber runs a helper such as a whisper wrapper script. The
// helper receives the audio path and model options as flags and prints
// {"text", "language", "segments": [{"start", "end", "text"}]}.
type execTranscriber struct {
	cmd *execjson.Command
	cfg config.TranscriptionConfig
	mu  sync.Mutex
}

type execResult struct {
	Text     string                       `json:"text"`
	Language string                       `json:"language"`
	Segments []speakers.TranscriptSegment `json:"segments"`
}

func NewExecTranscriber(cfg config.TranscriptionConfig) (Transcriber, error) {
	cmd, err := execjson.Parse(cfg.Command)
	if err != nil {
		return nil, fmt.Errorf("transcription command: %w", err)
	}
	return &execTranscriber{cmd: cmd, cfg: cfg}, nil
}

func (t *execTranscriber) Transcribe(ctx context.Context, audioPath, language string) (Transcript, error) {
	if err := checkAudio("transcribe", audioPath); err != nil {
		return Transcript{}, err
	}

	// one model instance at a time; helpers load the whole model into memory
	t.mu.Lock()
	defer t.mu.Unlock()

	language = languageOr(language, t.cfg.Language)
	args := []string{"--audio", audioPath, "--language", language}
	if t.cfg.Model != "" {
		args = append(args, "--model", t.cfg.Model)
	}
	if t.cfg.Device != "" {
		args = append(args, "--device", t.cfg.Device)
	}
	if t.cfg.InitialPrompt != "" {
		args = append(args, "--initial-prompt", t.cfg.InitialPrompt)
	}

	var resp execResult
	if err := t.cmd.Run(ctx, args, nil, &resp); err != nil {
		return Transcript{}, fmt.Errorf("transcribe %s: %w", audioPath, err)
	}

	text := strings.TrimSpace(resp.Text)
	if text == "" && len(resp.Segments) > 0 {
		parts := make([]string, 0, len(resp.Segments))
		for _, seg := range resp.Segments {
			if s := strings.TrimSpace(seg.Text); s != "" {
				parts = append(parts, s)
			}
		}
		text = strings.Join(parts, " ")
	}
	return Transcript{
		Text:     text,
		Segments: resp.Segments,
		Language: languageOr(resp.Language, language),
	}, nil
}
