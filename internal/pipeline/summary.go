package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/loqalabs/file2text/internal/chunker"
	"github.com/loqalabs/file2text/internal/fault"
	"github.com/loqalabs/file2text/internal/speakers"
	"github.com/loqalabs/file2text/internal/summarize"
	"github.com/loqalabs/file2text/internal/textnorm"
)

const (
	// MinSummaryInput is the shortest text worth sending to the summarizer.
	MinSummaryInput = 50
	// ChunkThreshold is the longest text summarized in a single call.
	ChunkThreshold = 1000
	// ChunkOverlap is passed to the chunker for long texts.
	ChunkOverlap = 200
	// ResummarizeThreshold triggers a second pass over the joined chunk
	// summaries.
	ResummarizeThreshold = 1500
	// FallbackExcerpt is the length of raw text kept for a failed chunk.
	FallbackExcerpt = 200
)

// Summarize condenses text within bounds. Backend failures never surface:
// a failed call degrades to the cleaned input or a raw excerpt.
func (o *Orchestrator) Summarize(ctx context.Context, text string, bounds summarize.Bounds) string {
	out, _ := o.summarize(ctx, text, bounds)
	return out
}

// SummarizeFull summarizes a whole conversation with the full-text bounds.
func (o *Orchestrator) SummarizeFull(ctx context.Context, text string) string {
	return o.Summarize(ctx, text, o.deps.FullBounds)
}

// SummarizeBySpeakers summarizes each speaker's text with the per-speaker
// bounds. Speakers with less than MinSummaryInput characters are left out.
func (o *Orchestrator) SummarizeBySpeakers(ctx context.Context, st speakers.SpeakersText) speakers.SpeakersText {
	out, _ := o.summarizeBySpeakers(ctx, st)
	return out
}

func (o *Orchestrator) summarizeBySpeakers(ctx context.Context, st speakers.SpeakersText) (speakers.SpeakersText, []error) {
	var out speakers.SpeakersText
	var errs []error
	for _, e := range st {
		if textnorm.Len(strings.TrimSpace(e.Text)) < MinSummaryInput {
			continue
		}
		summary, serrs := o.summarize(ctx, e.Text, o.deps.SpeakerBounds)
		for _, err := range serrs {
			errs = append(errs, fmt.Errorf("speaker %s: %w", e.Speaker, err))
		}
		out.Set(e.Speaker, summary)
	}
	return out, errs
}

// summarize returns the summary and the backend errors it recovered from.
func (o *Orchestrator) summarize(ctx context.Context, text string, bounds summarize.Bounds) (string, []error) {
	if textnorm.Len(strings.TrimSpace(text)) < MinSummaryInput {
		return text, nil
	}
	if o.deps.Summarizer == nil {
		return text, []error{fault.Configurationf(StageSummarize, "summarization backend is not configured")}
	}
	sup := o.deps.Suppressor
	cleaned := sup.Clean(text)
	if textnorm.Len(cleaned) < MinSummaryInput {
		return cleaned, nil
	}
	cleaned = textnorm.CollapseSpace(cleaned)

	if textnorm.Len(cleaned) <= ChunkThreshold {
		summary, err := o.deps.Summarizer.Summarize(ctx, cleaned, bounds)
		if err != nil {
			o.log.Warn("summarization failed, keeping cleaned text", slogError(err))
			return cleaned, []error{err}
		}
		return sup.PostprocessSummary(summary), nil
	}

	var errs []error
	chunks := chunker.Split(cleaned, ChunkThreshold, ChunkOverlap)
	parts := make([]string, 0, len(chunks))
	for i, chunk := range chunks {
		if textnorm.Len(chunk) < MinSummaryInput {
			continue
		}
		summary, err := o.deps.Summarizer.Summarize(ctx, chunk, bounds)
		if err != nil {
			o.log.Warn("chunk summarization failed, keeping excerpt", slog.Int("chunk", i), slogError(err))
			errs = append(errs, fmt.Errorf("chunk %d: %w", i, err))
			parts = append(parts, textnorm.Truncate(chunk, FallbackExcerpt)+"...")
			continue
		}
		parts = append(parts, sup.PostprocessSummary(summary))
	}
	combined := sup.PostprocessSummary(strings.Join(parts, " "))

	if textnorm.Len(combined) > ResummarizeThreshold {
		summary, err := o.deps.Summarizer.Summarize(ctx, combined, bounds)
		if err != nil {
			o.log.Warn("second summarization pass failed", slogError(err))
			return combined, append(errs, err)
		}
		combined = sup.PostprocessSummary(summary)
	}
	return combined, errs
}
