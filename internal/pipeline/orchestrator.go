// Package pipeline sequences the processing of one recording: audio
// preparation, transcription, diarization with speaker assignment,
// summarization and vectorization.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/loqalabs/file2text/internal/diarize"
	"github.com/loqalabs/file2text/internal/fault"
	"github.com/loqalabs/file2text/internal/media"
	"github.com/loqalabs/file2text/internal/repetition"
	"github.com/loqalabs/file2text/internal/speakers"
	"github.com/loqalabs/file2text/internal/summarize"
	"github.com/loqalabs/file2text/internal/transcribe"
	"github.com/loqalabs/file2text/internal/vectorize"
)

// Stage names used in spans, metrics and metadata keys.
const (
	StageMedia      = "media"
	StageTranscribe = "transcribe"
	StageDiarize    = "diarize"
	StageSummarize  = "summarize"
	StageVectorize  = "vectorize"
)

// AudioPreparer turns an input file into a WAV path the backends accept.
type AudioPreparer interface {
	Prepare(ctx context.Context, path string) (string, error)
}

// Options selects the stages of one run.
type Options struct {
	Language   string `json:"language,omitempty"`
	Transcribe bool   `json:"transcribe"`
	Diarize    bool   `json:"diarize"`
	Summarize  bool   `json:"summarize"`
	Vectorize  bool   `json:"vectorize"`
}

// Deps are the collaborators of an Orchestrator. Only the ones needed by
// the enabled stages must be set.
type Deps struct {
	Media       AudioPreparer
	Transcriber transcribe.Transcriber
	Diarizer    diarize.Diarizer
	Summarizer  summarize.Summarizer
	Vectorizer  vectorize.Vectorizer
	Suppressor  *repetition.Suppressor
	Probe       func(path string) (media.Info, error)
	Logger      *slog.Logger

	Language      string
	FullBounds    summarize.Bounds
	SpeakerBounds summarize.Bounds
}

var (
	DefaultFullBounds    = summarize.Bounds{MaxLength: 300, MinLength: 100}
	DefaultSpeakerBounds = summarize.Bounds{MaxLength: 200, MinLength: 50}
)

type Orchestrator struct {
	deps Deps
	log  *slog.Logger
	inst instruments
}

func New(deps Deps) *Orchestrator {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Suppressor == nil {
		deps.Suppressor = repetition.New()
	}
	if deps.FullBounds == (summarize.Bounds{}) {
		deps.FullBounds = DefaultFullBounds
	}
	if deps.SpeakerBounds == (summarize.Bounds{}) {
		deps.SpeakerBounds = DefaultSpeakerBounds
	}
	log := deps.Logger.With(slog.String("component", "pipeline"))
	return &Orchestrator{deps: deps, log: log, inst: newInstruments(log)}
}

// Check reports a configuration error when a stage in opts has no backend.
func (o *Orchestrator) Check(opts Options) error {
	var missing []error
	if opts.Transcribe && o.deps.Transcriber == nil {
		missing = append(missing, errors.New("transcription backend is not configured"))
	}
	if opts.Diarize && o.deps.Diarizer == nil {
		missing = append(missing, errors.New("diarization backend is not configured"))
	}
	if opts.Summarize && o.deps.Summarizer == nil {
		missing = append(missing, errors.New("summarization backend is not configured"))
	}
	if opts.Vectorize && o.deps.Vectorizer == nil {
		missing = append(missing, errors.New("vectorization backend is not configured"))
	}
	if len(missing) > 0 {
		return fault.Configuration("pipeline", errors.Join(missing...))
	}
	return nil
}

// Process runs the enabled stages over path. Preparation and transcription
// failures, and fatal errors from any stage, are returned. Other failures of
// the optional stages are logged, recorded in Metadata under
// "<stage>_error" and do not stop the remaining stages.
func (o *Orchestrator) Process(ctx context.Context, path string, opts Options) (*Result, error) {
	if err := o.Check(opts); err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	log := o.log.With(slog.String("run_id", runID), slog.String("path", path))
	res := &Result{AudioPath: path, Metadata: map[string]any{"run_id": runID, "original_path": path}}

	audio := path
	if o.deps.Media != nil {
		err := o.inst.stage(ctx, StageMedia, func(ctx context.Context) error {
			prepared, err := o.deps.Media.Prepare(ctx, path)
			if err != nil {
				return err
			}
			audio = prepared
			return nil
		})
		if err != nil {
			log.Error("audio preparation failed", slogError(err))
			return nil, fmt.Errorf("prepare %s: %w", path, err)
		}
		if audio != path {
			res.setMeta("converted_audio_path", audio)
		}
	}
	o.describeAudio(res, audio, log)

	if opts.Transcribe {
		err := o.inst.stage(ctx, StageTranscribe, func(ctx context.Context) error {
			tr, err := o.deps.Transcriber.Transcribe(ctx, audio, o.language(opts))
			if err != nil {
				return err
			}
			res.Text = tr.Text
			res.Segments = tr.Segments
			res.setMeta("language", tr.Language)
			return nil
		})
		if err != nil {
			log.Error("transcription failed", slogError(err))
			return nil, fmt.Errorf("transcribe %s: %w", path, err)
		}
		log.Info("transcribed", slog.Int("segments", len(res.Segments)))
	}

	if opts.Diarize && len(res.Segments) > 0 {
		err := o.inst.stage(ctx, StageDiarize, func(ctx context.Context) error {
			turns, err := o.deps.Diarizer.Diarize(ctx, audio)
			if err != nil {
				return err
			}
			res.SpeakerSegments = speakers.Assign(res.Segments, turns)
			res.Speakers = speakers.GroupBySpeaker(res.SpeakerSegments)
			return nil
		})
		if err := o.optional(res, StageDiarize, err, log); err != nil {
			return nil, err
		}
	}

	if opts.Summarize {
		err := o.inst.stage(ctx, StageSummarize, func(ctx context.Context) error {
			var errs []error
			if res.Text != "" {
				full, ferrs := o.summarize(ctx, res.Text, o.deps.FullBounds)
				res.Summary.Full = full
				errs = append(errs, ferrs...)
			}
			if len(res.Speakers) > 0 {
				bySpeaker, serrs := o.summarizeBySpeakers(ctx, res.Speakers)
				res.Summary.BySpeakers = bySpeaker
				errs = append(errs, serrs...)
			}
			if len(errs) > 0 {
				return fault.Stage(StageSummarize, errors.Join(errs...))
			}
			return nil
		})
		if err := o.optional(res, StageSummarize, err, log); err != nil {
			return nil, err
		}
	}

	if opts.Vectorize && res.Text != "" {
		err := o.inst.stage(ctx, StageVectorize, func(ctx context.Context) error {
			vec, err := o.deps.Vectorizer.Vectorize(ctx, res.Text)
			if err != nil {
				return err
			}
			res.Vectors = [][]float32{vec}
			res.setMeta("vector_model", o.deps.Vectorizer.Model())
			return nil
		})
		if err := o.optional(res, StageVectorize, err, log); err != nil {
			return nil, err
		}
	}

	return res, nil
}

// optional records a failed optional stage. It returns the error only when
// the unit cannot continue.
func (o *Orchestrator) optional(res *Result, stage string, err error, log *slog.Logger) error {
	if err == nil {
		return nil
	}
	if fault.Fatal(err) {
		log.Error("stage failed", slog.String("stage", stage), slogError(err))
		return fmt.Errorf("%s %s: %w", stage, res.AudioPath, err)
	}
	log.Warn("stage degraded", slog.String("stage", stage), slogError(err))
	res.setMeta(stage+"_error", err.Error())
	return nil
}

func (o *Orchestrator) describeAudio(res *Result, audio string, log *slog.Logger) {
	if o.deps.Probe == nil {
		return
	}
	info, err := o.deps.Probe(audio)
	if err != nil {
		log.Debug("audio probe skipped", slogError(err))
		return
	}
	res.setMeta("duration_seconds", info.Duration.Seconds())
	if info.Format != nil {
		res.setMeta("sample_rate", info.Format.SampleRate)
	}
}

func (o *Orchestrator) language(opts Options) string {
	if opts.Language != "" {
		return opts.Language
	}
	return o.deps.Language
}
