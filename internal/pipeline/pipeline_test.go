package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-audio/audio"
	"github.com/google/go-cmp/cmp"
	"github.com/loqalabs/file2text/internal/chunker"
	"github.com/loqalabs/file2text/internal/fault"
	"github.com/loqalabs/file2text/internal/media"
	"github.com/loqalabs/file2text/internal/repetition"
	"github.com/loqalabs/file2text/internal/speakers"
	"github.com/loqalabs/file2text/internal/summarize"
	"github.com/loqalabs/file2text/internal/textnorm"
	"github.com/loqalabs/file2text/internal/transcribe"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubPreparer struct{ out string }

func (s stubPreparer) Prepare(_ context.Context, path string) (string, error) {
	if s.out == "" {
		return path, nil
	}
	return s.out, nil
}

type stubTranscriber struct {
	tr    transcribe.Transcript
	err   error
	calls int
}

func (s *stubTranscriber) Transcribe(_ context.Context, _, language string) (transcribe.Transcript, error) {
	s.calls++
	if s.err != nil {
		return transcribe.Transcript{}, s.err
	}
	tr := s.tr
	if tr.Language == "" {
		tr.Language = language
	}
	return tr, nil
}

type stubDiarizer struct {
	turns []speakers.Turn
	err   error
}

func (s stubDiarizer) Diarize(context.Context, string) ([]speakers.Turn, error) {
	return s.turns, s.err
}

type stubSummarizer struct {
	mu     sync.Mutex
	fn     func(text string) (string, error)
	inputs []string
}

func (s *stubSummarizer) Summarize(_ context.Context, text string, _ summarize.Bounds) (string, error) {
	s.mu.Lock()
	s.inputs = append(s.inputs, text)
	s.mu.Unlock()
	return s.fn(text)
}

type stubVectorizer struct{ err error }

func (s stubVectorizer) Vectorize(context.Context, string) ([]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []float32{0.6, 0.8, 0}, nil
}
func (stubVectorizer) Dimension() int { return 3 }
func (stubVectorizer) Model() string  { return "stub" }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func identity(text string) (string, error) { return text, nil }

func greeting() *stubTranscriber {
	return &stubTranscriber{tr: transcribe.Transcript{
		Text: "Привет как дела",
		Segments: []speakers.TranscriptSegment{
			{Start: 0, End: 2, Text: "Привет"},
			{Start: 2, End: 4, Text: "как дела"},
		},
	}}
}

func longText(sentences int) string {
	var b strings.Builder
	for i := 0; i < sentences; i++ {
		fmt.Fprintf(&b, "Участник %d рассказал про задачу %d и её сроки. ", i, i*7)
	}
	return strings.TrimSpace(b.String())
}

func TestProcessAssignsSpeakers(t *testing.T) {
	o := New(Deps{
		Media:       stubPreparer{out: "/cache/call_16k.wav"},
		Transcriber: greeting(),
		Diarizer:    stubDiarizer{turns: []speakers.Turn{{Start: 0, End: 4, Speaker: "SPEAKER_00"}}},
		Summarizer:  &stubSummarizer{fn: identity},
		Probe: func(string) (media.Info, error) {
			return media.Info{Format: &audio.Format{SampleRate: 16000, NumChannels: 1}, Duration: 4 * time.Second}, nil
		},
		Logger:   discardLogger(),
		Language: "ru",
	})

	res, err := o.Process(context.Background(), "/in/call.mp3", Options{Transcribe: true, Diarize: true, Summarize: true})
	require.NoError(t, err)

	want := []speakers.SpeakerSegment{
		{Speaker: "SPEAKER_00", Text: "Привет", Start: 0, End: 2},
		{Speaker: "SPEAKER_00", Text: "как дела", Start: 2, End: 4},
	}
	if diff := cmp.Diff(want, res.SpeakerSegments); diff != "" {
		t.Fatalf("speaker segments mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, speakers.SpeakersText{{Speaker: "SPEAKER_00", Text: "Привет как дела"}}, res.Speakers)

	assert.Equal(t, "Привет как дела", res.Summary.Full)
	assert.Empty(t, res.Summary.BySpeakers)

	assert.Equal(t, "/in/call.mp3", res.Metadata["original_path"])
	assert.Equal(t, "/cache/call_16k.wav", res.Metadata["converted_audio_path"])
	assert.Equal(t, "ru", res.Metadata["language"])
	assert.Equal(t, 4.0, res.Metadata["duration_seconds"])
	assert.Equal(t, 16000, res.Metadata["sample_rate"])
	assert.NotEmpty(t, res.Metadata["run_id"])
}

func TestProcessSkipsDisabledStages(t *testing.T) {
	tr := greeting()
	o := New(Deps{Transcriber: tr, Logger: discardLogger()})

	res, err := o.Process(context.Background(), "a.wav", Options{Transcribe: true})
	require.NoError(t, err)
	assert.Equal(t, "Привет как дела", res.Text)
	assert.Empty(t, res.Speakers)
	assert.True(t, res.Summary.Empty())
	assert.Nil(t, res.Vectors)
	assert.NotContains(t, res.Metadata, "converted_audio_path")
}

func TestProcessDiarizationFailureDoesNotStopLaterStages(t *testing.T) {
	o := New(Deps{
		Transcriber: greeting(),
		Diarizer:    stubDiarizer{err: errors.New("pipeline crashed")},
		Summarizer:  &stubSummarizer{fn: identity},
		Vectorizer:  stubVectorizer{},
		Logger:      discardLogger(),
	})

	res, err := o.Process(context.Background(), "a.wav", Options{Transcribe: true, Diarize: true, Summarize: true, Vectorize: true})
	require.NoError(t, err)
	assert.Contains(t, res.Metadata["diarize_error"], "pipeline crashed")
	assert.Empty(t, res.Speakers)
	assert.Equal(t, "Привет как дела", res.Summary.Full)
	assert.Equal(t, [][]float32{{0.6, 0.8, 0}}, res.Vectors)
	assert.Equal(t, "stub", res.Metadata["vector_model"])
}

func TestProcessSummarizationFailureKeepsVectorization(t *testing.T) {
	text := longText(8)
	require.Greater(t, textnorm.Len(text), MinSummaryInput)

	o := New(Deps{
		Transcriber: &stubTranscriber{tr: transcribe.Transcript{Text: text}},
		Summarizer:  &stubSummarizer{fn: func(string) (string, error) { return "", fault.Resource("summarize", errors.New("CUDA out of memory")) }},
		Vectorizer:  stubVectorizer{},
		Logger:      discardLogger(),
	})

	res, err := o.Process(context.Background(), "a.wav", Options{Transcribe: true, Summarize: true, Vectorize: true})
	require.NoError(t, err)
	assert.Equal(t, textnorm.CollapseSpace(repetition.Clean(text)), res.Summary.Full)
	assert.Contains(t, res.Metadata["summarize_error"], "out of memory")
	assert.Len(t, res.Vectors, 1)
}

func TestProcessFatalErrors(t *testing.T) {
	tr := &stubTranscriber{err: fault.Resource("transcribe", errors.New("CUDA out of memory"))}
	o := New(Deps{Transcriber: tr, Logger: discardLogger()})
	res, err := o.Process(context.Background(), "a.wav", Options{Transcribe: true})
	assert.Nil(t, res)
	assert.ErrorIs(t, err, fault.ErrResource)

	o = New(Deps{
		Transcriber: greeting(),
		Diarizer:    stubDiarizer{err: fault.Configurationf("diarize", "token rejected")},
		Logger:      discardLogger(),
	})
	_, err = o.Process(context.Background(), "a.wav", Options{Transcribe: true, Diarize: true})
	assert.ErrorIs(t, err, fault.ErrConfiguration)
}

func TestProcessChecksBackendsBeforeWork(t *testing.T) {
	tr := greeting()
	o := New(Deps{Transcriber: tr, Logger: discardLogger()})

	_, err := o.Process(context.Background(), "a.wav", Options{Transcribe: true, Diarize: true})
	assert.ErrorIs(t, err, fault.ErrConfiguration)
	assert.Zero(t, tr.calls)
}

func TestSummarizeShortTextIsUnchanged(t *testing.T) {
	s := &stubSummarizer{fn: identity}
	o := New(Deps{Summarizer: s, Logger: discardLogger()})

	assert.Equal(t, "  коротко  ", o.Summarize(context.Background(), "  коротко  ", DefaultFullBounds))
	assert.Empty(t, s.inputs)
}

func TestSummarizeSingleCallPostprocesses(t *testing.T) {
	s := &stubSummarizer{fn: func(string) (string, error) {
		return "Итоги итоги итоги встречи. Итоги итоги итоги встречи.", nil
	}}
	o := New(Deps{Summarizer: s, Logger: discardLogger()})

	out := o.Summarize(context.Background(), longText(3), DefaultFullBounds)
	assert.Equal(t, "Итоги встречи.", out)
	require.Len(t, s.inputs, 1)
}

func TestSummarizeLongTextChunksAndResummarizes(t *testing.T) {
	text := longText(80)
	s := &stubSummarizer{fn: identity}
	o := New(Deps{Summarizer: s, Logger: discardLogger()})

	out, errs := o.summarize(context.Background(), text, DefaultFullBounds)
	assert.Empty(t, errs)
	assert.NotEmpty(t, out)

	chunks := chunker.Split(textnorm.CollapseSpace(repetition.Clean(text)), ChunkThreshold, ChunkOverlap)
	require.Greater(t, len(chunks), 1)
	require.Len(t, s.inputs, len(chunks)+1)
	assert.Greater(t, textnorm.Len(s.inputs[len(chunks)]), ResummarizeThreshold)
}

func TestSummarizeChunkFailureFallsBackToExcerpt(t *testing.T) {
	text := longText(40)
	s := &stubSummarizer{fn: func(string) (string, error) { return "", errors.New("timeout") }}
	o := New(Deps{Summarizer: s, Logger: discardLogger()})

	out, errs := o.summarize(context.Background(), text, DefaultFullBounds)
	chunks := chunker.Split(textnorm.CollapseSpace(repetition.Clean(text)), ChunkThreshold, ChunkOverlap)
	assert.Len(t, errs, len(chunks))
	assert.Len(t, s.inputs, len(chunks))
	assert.True(t, strings.HasPrefix(out, textnorm.Truncate(chunks[0], 40)))
}

func TestSummarizeBySpeakersSkipsShortSpeakers(t *testing.T) {
	s := &stubSummarizer{fn: func(text string) (string, error) { return "Кратко: " + textnorm.Truncate(text, 20) + ".", nil }}
	o := New(Deps{Summarizer: s, Logger: discardLogger()})

	st := speakers.SpeakersText{
		{Speaker: "A", Text: "да"},
		{Speaker: "B", Text: longText(2)},
	}
	out := o.SummarizeBySpeakers(context.Background(), st)
	assert.Equal(t, []string{"B"}, out.Labels())
	require.Len(t, s.inputs, 1)
}

func TestResultJSON(t *testing.T) {
	res := Result{
		AudioPath: "a.wav",
		Text:      "Привет",
		Speakers:  speakers.SpeakersText{{Speaker: "B", Text: "x"}, {Speaker: "A", Text: "y"}},
		Summary:   Summary{Full: "Привет"},
		Vectors:   [][]float32{{1, 2, 3}},
		Metadata:  map[string]any{"language": "ru"},
	}
	data, err := json.Marshal(res)
	require.NoError(t, err)

	assert.Contains(t, string(data), `"speakers":{"B":"x","A":"y"}`)
	assert.Contains(t, string(data), `"summary":{"full":"Привет"}`)
	assert.Contains(t, string(data), `"vectors_shape":[1,3]`)
	assert.NotContains(t, string(data), `"vectors":`)

	res.Vectors = nil
	data, err = json.Marshal(&res)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "vectors_shape")
}
