package artifact

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/loqalabs/file2text/internal/config"
	"github.com/loqalabs/file2text/internal/fault"
	"github.com/loqalabs/file2text/internal/pipeline"
	"github.com/loqalabs/file2text/internal/repetition"
	"github.com/loqalabs/file2text/internal/speakers"
	"github.com/loqalabs/file2text/internal/vectorize"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWriter(t *testing.T, writeJSON bool) *Writer {
	t.Helper()
	return NewWriter(config.OutputConfig{Dir: t.TempDir(), TextDir: "text", SummaryDir: "sumText"}, writeJSON)
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestSpeakerLines(t *testing.T) {
	got := SpeakerLines([]speakers.SpeakerSegment{
		{Speaker: "SPEAKER_00", Text: " Привет "},
		{Speaker: speakers.Unknown, Text: "как дела"},
	})
	assert.Equal(t, "Speaker SPEAKER_00: Привет\nSpeaker Unknown: как дела", got)
}

func TestSummaryFormats(t *testing.T) {
	by := speakers.SpeakersText{{Speaker: "A", Text: "Первый."}, {Speaker: "B", Text: "Второй."}}

	assert.Equal(t, "=== FULL-CONVERSATION SUMMARY ===\n\nИтог.", FullSummary("Итог."))
	assert.Equal(t,
		"=== PER-SPEAKER SUMMARY ===\n\n=== SPEAKER A ===\n\nПервый.\n\n=== SPEAKER B ===\n\nВторой.\n",
		SpeakerSummaries(by))

	combined := CombinedSummary("Итог.", by)
	assert.Equal(t,
		"=== OVERALL SUMMARY ===\n\nИтог.\n\n"+
			"==================================================\n\n"+
			"=== PER-SPEAKER SUMMARY ===\n\n=== SPEAKER A ===\n\nПервый.\n\n=== SPEAKER B ===\n\nВторой.\n",
		combined)
}

func TestParseSpeakerText(t *testing.T) {
	long := "Мы обсудили бюджет проекта и сроки сдачи первой версии."
	input := "Speaker A: " + long + "\n" +
		"not a speaker line\n" +
		"Speaker B: коротко\n" +
		"Спикер A:\tещё немного текста про проект.\n" +
		"Speaker : пусто\n" +
		"SpeakerC: склеено\n"

	got := ParseSpeakerText(input, nil)
	require.Equal(t, []string{"A"}, got.Labels())
	text, _ := got.Get("A")
	assert.Equal(t, repetition.Clean(long+" ещё немного текста про проект."), text)
}

func TestParseSpeakerTextRoundTrip(t *testing.T) {
	segs := []speakers.SpeakerSegment{
		{Speaker: "S1", Text: "Сегодня мы подводим итоги квартала и обсуждаем планы."},
		{Speaker: "S2", Text: "Да."},
		{Speaker: "S1", Text: "Выручка выросла на десять процентов."},
	}
	got := ParseSpeakerText(SpeakerLines(segs), repetition.New())
	assert.Equal(t, []string{"S1"}, got.Labels())
}

func TestWriterWritesEveryArtifact(t *testing.T) {
	w := newTestWriter(t, true)
	res := &pipeline.Result{
		AudioPath: "/in/call.mp3",
		Text:      "Привет как дела",
		SpeakerSegments: []speakers.SpeakerSegment{
			{Speaker: "SPEAKER_00", Text: "Привет", Start: 0, End: 2},
			{Speaker: "SPEAKER_00", Text: "как дела", Start: 2, End: 4},
		},
		Speakers: speakers.SpeakersText{{Speaker: "SPEAKER_00", Text: "Привет как дела"}},
		Summary: pipeline.Summary{
			Full:       "Приветствие.",
			BySpeakers: speakers.SpeakersText{{Speaker: "SPEAKER_00", Text: "Поздоровался."}},
		},
		Vectors:  [][]float32{{0.5, 0.5}},
		Metadata: map[string]any{"vector_model": "mini"},
	}

	paths, err := w.Write("call", res)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(w.TextDir(), "call_full.txt"), paths.FullText)
	assert.Equal(t, "Привет как дела", readFile(t, paths.FullText))
	assert.Equal(t, "Speaker SPEAKER_00: Привет\nSpeaker SPEAKER_00: как дела", readFile(t, paths.SpeakerText))
	assert.Equal(t, filepath.Join(w.SummaryDir(), "call_summary_full.txt"), paths.SummaryFull)
	assert.Equal(t, FullSummary("Приветствие."), readFile(t, paths.SummaryFull))
	assert.Equal(t, SpeakerSummaries(res.Summary.BySpeakers), readFile(t, paths.SummarySpeakers))
	assert.FileExists(t, paths.SummaryCombined)

	export, err := vectorize.LoadFile(paths.Vectors)
	require.NoError(t, err)
	assert.Equal(t, vectorize.Export{Model: "mini", Dimension: 2, Vectors: [][]float32{{0.5, 0.5}}}, export)

	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(readFile(t, paths.JSON)), &doc))
	assert.Equal(t, "/in/call.mp3", doc["audio_path"])
	assert.Equal(t, []any{1.0, 2.0}, doc["vectors_shape"])
}

func TestWriterSkipsMissingParts(t *testing.T) {
	w := newTestWriter(t, false)
	paths, err := w.Write("solo", &pipeline.Result{Text: "только текст"})
	require.NoError(t, err)
	assert.NotEmpty(t, paths.FullText)
	assert.Empty(t, paths.SpeakerText)
	assert.Empty(t, paths.SummaryFull)
	assert.Empty(t, paths.Vectors)
	assert.Empty(t, paths.JSON)
	assert.NoDirExists(t, w.SummaryDir())
}

func TestScan(t *testing.T) {
	w := newTestWriter(t, false)
	_, err := w.Scan()
	assert.ErrorIs(t, err, fault.ErrNotFound)

	_, err = w.Write("b", &pipeline.Result{Text: "b", SpeakerSegments: []speakers.SpeakerSegment{{Speaker: "X", Text: "b"}}})
	require.NoError(t, err)
	_, err = w.Write("a", &pipeline.Result{Text: "a"})
	require.NoError(t, err)

	sources, err := w.Scan()
	require.NoError(t, err)
	require.Len(t, sources, 2)
	assert.Equal(t, Source{Base: "a", FullText: filepath.Join(w.TextDir(), "a_full.txt")}, sources[0])
	assert.Equal(t, "b", sources[1].Base)
	assert.Equal(t, filepath.Join(w.TextDir(), "b.txt"), sources[1].SpeakerText)

	text, err := ReadText(sources[1].FullText)
	require.NoError(t, err)
	assert.Equal(t, "b", text)

	_, err = ReadText(filepath.Join(w.TextDir(), "missing.txt"))
	assert.ErrorIs(t, err, fault.ErrNotFound)
}
