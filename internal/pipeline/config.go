package pipeline

import (
	"log/slog"

	"github.com/loqalabs/file2text/internal/config"
	"github.com/loqalabs/file2text/internal/diarize"
	"github.com/loqalabs/file2text/internal/media"
	"github.com/loqalabs/file2text/internal/repetition"
	"github.com/loqalabs/file2text/internal/summarize"
	"github.com/loqalabs/file2text/internal/transcribe"
	"github.com/loqalabs/file2text/internal/vectorize"
)

// FromConfig builds an orchestrator with the backends of every stage
// enabled in cfg.Pipeline. Backend construction errors, such as a missing
// diarization token, are returned before any file is touched.
func FromConfig(cfg config.Config, log *slog.Logger) (*Orchestrator, error) {
	deps := Deps{
		Media:      media.NewConverter(cfg.Media, cfg.Output.CacheDir),
		Suppressor: repetition.NewWithInterjections(cfg.Text.Interjections),
		Probe:      media.Probe,
		Logger:     log,
		Language:   cfg.Transcription.Language,
		FullBounds: summarize.Bounds{
			MaxLength: cfg.Summarization.FullMaxLength,
			MinLength: cfg.Summarization.FullMinLength,
		},
		SpeakerBounds: summarize.Bounds{
			MaxLength: cfg.Summarization.SpeakerMaxLength,
			MinLength: cfg.Summarization.SpeakerMinLength,
		},
	}

	var err error
	p := cfg.Pipeline
	if p.Transcribe {
		if deps.Transcriber, err = transcribe.FromConfig(cfg.Transcription); err != nil {
			return nil, err
		}
	}
	if p.Diarize {
		if deps.Diarizer, err = diarize.FromConfig(cfg.Diarization); err != nil {
			return nil, err
		}
	}
	if p.Summarize {
		if deps.Summarizer, err = summarize.FromConfig(cfg.Summarization); err != nil {
			return nil, err
		}
	}
	if p.Vectorize {
		if deps.Vectorizer, err = vectorize.FromConfig(cfg.Vectorization); err != nil {
			return nil, err
		}
	}
	return New(deps), nil
}

// OptionsFromConfig returns the stage selection configured in p.
func OptionsFromConfig(p config.PipelineConfig) Options {
	return Options{
		Transcribe: p.Transcribe,
		Diarize:    p.Diarize,
		Summarize:  p.Summarize,
		Vectorize:  p.Vectorize,
	}
}
