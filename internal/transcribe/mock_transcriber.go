package transcribe

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/loqalabs/file2text/internal/speakers"
)

type mockTranscriber struct{}

func NewMockTranscriber() Transcriber {
	return &mockTranscriber{}
}

func (m *mockTranscriber) Transcribe(_ context.Context, audioPath, language string) (Transcript, error) {
	if err := checkAudio("mock transcribe", audioPath); err != nil {
		return Transcript{}, err
	}
	text := fmt.Sprintf("[transcript of %s]", filepath.Base(audioPath))
	return Transcript{
		Text:     text,
		Segments: []speakers.TranscriptSegment{{Start: 0, End: 1, Text: text}},
		Language: languageOr(language, ""),
	}, nil
}
