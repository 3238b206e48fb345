package transcribe

import (
	"context"
	"errors"
	"fmt"
	"strings"

	api "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/rest"
	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	listen "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"
	"github.com/loqalabs/file2text/internal/config"
	"github.com/loqalabs/file2text/internal/fault"
	"github.com/loqalabs/file2text/internal/speakers"
)

// deepgramTranscriber sends whole files to the Deepgram prerecorded API and
// builds segments from its utterances.
type deepgramTranscriber struct {
	client *api.Client
	cfg    config.TranscriptionConfig
}

func NewDeepgramTranscriber(cfg config.TranscriptionConfig) (Transcriber, error) {
	if cfg.APIKey == "" {
		return nil, fault.Configurationf("transcription", "deepgram api key is not set")
	}
	rest := listen.NewREST(cfg.APIKey, &interfaces.ClientOptions{})
	return &deepgramTranscriber{client: api.New(rest), cfg: cfg}, nil
}

func (t *deepgramTranscriber) Transcribe(ctx context.Context, audioPath, language string) (Transcript, error) {
	if err := checkAudio("transcribe", audioPath); err != nil {
		return Transcript{}, err
	}
	language = languageOr(language, t.cfg.Language)

	model := t.cfg.Model
	if model == "" || !strings.HasPrefix(model, "nova") {
		model = "nova-2"
	}
	options := &interfaces.PreRecordedTranscriptionOptions{
		Model:      model,
		Language:   language,
		Punctuate:  true,
		Utterances: true,
	}
	res, err := t.client.FromFile(ctx, audioPath, options)
	if err != nil {
		return Transcript{}, fmt.Errorf("deepgram transcribe %s: %w", audioPath, err)
	}
	if res == nil || res.Results == nil {
		return Transcript{}, errors.New("deepgram returned an empty response")
	}

	var out Transcript
	out.Language = language
	if channels := res.Results.Channels; len(channels) > 0 {
		if channels[0].DetectedLanguage != "" {
			out.Language = channels[0].DetectedLanguage
		}
		if alts := channels[0].Alternatives; len(alts) > 0 {
			out.Text = strings.TrimSpace(alts[0].Transcript)
		}
	}
	for _, u := range res.Results.Utterances {
		out.Segments = append(out.Segments, speakers.TranscriptSegment{
			Start: u.Start,
			End:   u.End,
			Text:  strings.TrimSpace(u.Transcript),
		})
	}
	return out, nil
}
