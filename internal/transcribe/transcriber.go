package transcribe

import (
	"context"
	"fmt"
	"os"

	"github.com/loqalabs/file2text/internal/config"
	"github.com/loqalabs/file2text/internal/fault"
	"github.com/loqalabs/file2text/internal/speakers"
)

// DefaultLanguage is used when neither the caller nor the backend names a
// language.
const DefaultLanguage = "ru"

// Transcript captures recognizer output for one audio file.
type Transcript struct {
	Text     string                       `json:"text"`
	Segments []speakers.TranscriptSegment `json:"segments"`
	Language string                       `json:"language"`
}

// Transcriber abstracts speech-to-text backends.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath, language string) (Transcript, error)
}

// FromConfig builds the backend selected by cfg.Mode.
func FromConfig(cfg config.TranscriptionConfig) (Transcriber, error) {
	switch cfg.Mode {
	case "", "mock":
		return NewMockTranscriber(), nil
	case "exec":
		return NewExecTranscriber(cfg)
	case "deepgram":
		return NewDeepgramTranscriber(cfg)
	default:
		return nil, fault.Configurationf("transcription", "unknown mode %q", cfg.Mode)
	}
}

// BatchItem is the outcome of transcribing one file of a batch.
type BatchItem struct {
	Path       string
	Transcript Transcript
	Err        error
}

// TranscribeBatch transcribes every path in order. A failing file is
// reported in its item and does not stop the batch unless the failure is a
// configuration error.
func TranscribeBatch(ctx context.Context, t Transcriber, paths []string, language string) ([]BatchItem, error) {
	items := make([]BatchItem, 0, len(paths))
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return items, err
		}
		tr, err := t.Transcribe(ctx, path, language)
		if fault.AbortsRun(err) {
			return items, err
		}
		items = append(items, BatchItem{Path: path, Transcript: tr, Err: err})
	}
	return items, nil
}

func checkAudio(op, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fault.NotFound(op, fmt.Errorf("audio file %s: %w", path, err))
		}
		return fmt.Errorf("stat audio file: %w", err)
	}
	if info.IsDir() {
		return fault.NotFound(op, fmt.Errorf("audio path %s is a directory", path))
	}
	return nil
}

func languageOr(language, fallback string) string {
	if language != "" {
		return language
	}
	if fallback != "" {
		return fallback
	}
	return DefaultLanguage
}
