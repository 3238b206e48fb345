package capability

import (
	"strconv"

	"github.com/loqalabs/file2text/internal/config"
	"github.com/loqalabs/file2text/internal/pipeline"
	"github.com/loqalabs/file2text/internal/protocol"
)

// FromConfig describes the stages this node can run. Media preparation is
// always offered; the other stages only when enabled in the pipeline.
func FromConfig(cfg config.Config) []protocol.StageCapability {
	stages := []protocol.StageCapability{{
		Stage:   pipeline.StageMedia,
		Backend: "ffmpeg",
		Attributes: map[string]string{
			"sample_rate": strconv.Itoa(cfg.Media.SampleRate),
			"channels":    strconv.Itoa(cfg.Media.Channels),
		},
	}}
	p := cfg.Pipeline
	if p.Transcribe {
		stages = append(stages, protocol.StageCapability{
			Stage:   pipeline.StageTranscribe,
			Backend: cfg.Transcription.Mode,
			Attributes: map[string]string{
				"model":    cfg.Transcription.Model,
				"language": cfg.Transcription.Language,
			},
		})
	}
	if p.Diarize {
		stages = append(stages, protocol.StageCapability{Stage: pipeline.StageDiarize, Backend: cfg.Diarization.Mode})
	}
	if p.Summarize {
		stages = append(stages, protocol.StageCapability{
			Stage:      pipeline.StageSummarize,
			Backend:    cfg.Summarization.Mode,
			Attributes: map[string]string{"model": cfg.Summarization.Model},
		})
	}
	if p.Vectorize {
		stages = append(stages, protocol.StageCapability{
			Stage:   pipeline.StageVectorize,
			Backend: cfg.Vectorization.Mode,
			Attributes: map[string]string{
				"model":     cfg.Vectorization.Model,
				"dimension": strconv.Itoa(cfg.Vectorization.Dimension),
			},
		})
	}
	return stages
}

// Required lists the stages a node must serve to run a job with opts.
func Required(opts pipeline.Options) []string {
	stages := []string{pipeline.StageMedia}
	for _, s := range []struct {
		on   bool
		name string
	}{
		{opts.Transcribe, pipeline.StageTranscribe},
		{opts.Diarize, pipeline.StageDiarize},
		{opts.Summarize, pipeline.StageSummarize},
		{opts.Vectorize, pipeline.StageVectorize},
	} {
		if s.on {
			stages = append(stages, s.name)
		}
	}
	return stages
}
