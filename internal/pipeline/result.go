package pipeline

import (
	"encoding/json"

	"github.com/loqalabs/file2text/internal/speakers"
)

// Summary holds the optional summaries of one unit.
type Summary struct {
	Full       string                `json:"full,omitempty"`
	BySpeakers speakers.SpeakersText `json:"by_speakers,omitempty"`
}

// Empty reports whether no summary was produced.
func (s Summary) Empty() bool {
	return s.Full == "" && len(s.BySpeakers) == 0
}

// Result is everything the orchestrator learned about one input file. It is
// filled stage by stage and not modified after Process returns it.
type Result struct {
	AudioPath       string                       `json:"audio_path"`
	Text            string                       `json:"text"`
	Segments        []speakers.TranscriptSegment `json:"segments,omitempty"`
	Speakers        speakers.SpeakersText        `json:"speakers"`
	SpeakerSegments []speakers.SpeakerSegment    `json:"speaker_segments,omitempty"`
	Summary         Summary                      `json:"summary"`
	Vectors         [][]float32                  `json:"-"`
	Metadata        map[string]any               `json:"metadata"`
}

// VectorsShape returns rows and dimension of Vectors, or nil when the unit
// was not vectorized.
func (r Result) VectorsShape() []int {
	if r.Vectors == nil {
		return nil
	}
	dim := 0
	if len(r.Vectors) > 0 {
		dim = len(r.Vectors[0])
	}
	return []int{len(r.Vectors), dim}
}

// MarshalJSON adds vectors_shape in place of the raw vectors, which are
// written to their own file.
func (r Result) MarshalJSON() ([]byte, error) {
	type plain Result
	return json.Marshal(struct {
		plain
		VectorsShape []int `json:"vectors_shape,omitempty"`
	}{plain: plain(r), VectorsShape: r.VectorsShape()})
}

func (r *Result) setMeta(key string, value any) {
	if r.Metadata == nil {
		r.Metadata = make(map[string]any)
	}
	r.Metadata[key] = value
}
