// Package speakers attributes time-stamped transcript segments to the
// speaker turns produced by diarization.
package speakers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Unknown labels a segment that falls inside no diarization turn.
const Unknown = "Unknown"

// TranscriptSegment is a time-stamped span of recognized text.
type TranscriptSegment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Turn is a diarization turn: a span of the timeline attributed to one
// speaker label. Turns may overlap.
type Turn struct {
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Speaker string  `json:"speaker"`
}

// SpeakerSegment is a transcript segment with its speaker attached. Start
// and End are copied from the source segment.
type SpeakerSegment struct {
	Speaker string  `json:"speaker"`
	Text    string  `json:"text"`
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
}

// Assign labels every segment with the first turn, in the order given,
// that contains the segment's start, contains its end, or lies entirely
// inside the segment. Segments matching no turn get Unknown. The result has
// one entry per segment in input order.
//
// The first matching turn wins even when a later turn overlaps the segment
// for longer.
func Assign(segments []TranscriptSegment, turns []Turn) []SpeakerSegment {
	out := make([]SpeakerSegment, 0, len(segments))
	for _, seg := range segments {
		speaker := Unknown
		for _, turn := range turns {
			if matches(seg, turn) {
				speaker = turn.Speaker
				break
			}
		}
		out = append(out, SpeakerSegment{
			Speaker: speaker,
			Text:    strings.TrimSpace(seg.Text),
			Start:   seg.Start,
			End:     seg.End,
		})
	}
	return out
}

func matches(seg TranscriptSegment, turn Turn) bool {
	switch {
	case turn.Start <= seg.Start && seg.Start <= turn.End:
		return true
	case turn.Start <= seg.End && seg.End <= turn.End:
		return true
	case seg.Start <= turn.Start && seg.End >= turn.End:
		return true
	}
	return false
}

// Entry is one speaker's concatenated text.
type Entry struct {
	Speaker string
	Text    string
}

// SpeakersText maps speaker labels to their concatenated text, keeping the
// order in which speakers first appear.
type SpeakersText []Entry

// GroupBySpeaker joins the trimmed text of every segment sharing a speaker
// label with a single space, in segment order. Labels whose text is empty
// get no entry.
func GroupBySpeaker(segments []SpeakerSegment) SpeakersText {
	index := make(map[string]int)
	var parts [][]string
	var labels []string
	for _, seg := range segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		i, ok := index[seg.Speaker]
		if !ok {
			i = len(labels)
			index[seg.Speaker] = i
			labels = append(labels, seg.Speaker)
			parts = append(parts, nil)
		}
		parts[i] = append(parts[i], text)
	}
	out := make(SpeakersText, len(labels))
	for i, label := range labels {
		out[i] = Entry{Speaker: label, Text: strings.Join(parts[i], " ")}
	}
	return out
}

// Get returns the text of a speaker.
func (st SpeakersText) Get(speaker string) (string, bool) {
	for _, e := range st {
		if e.Speaker == speaker {
			return e.Text, true
		}
	}
	return "", false
}

// Labels returns the speaker labels in first-appearance order.
func (st SpeakersText) Labels() []string {
	labels := make([]string, len(st))
	for i, e := range st {
		labels[i] = e.Speaker
	}
	return labels
}

// Set replaces a speaker's text or appends a new entry.
func (st *SpeakersText) Set(speaker, text string) {
	for i := range *st {
		if (*st)[i].Speaker == speaker {
			(*st)[i].Text = text
			return
		}
	}
	*st = append(*st, Entry{Speaker: speaker, Text: text})
}

// Join concatenates every speaker's text with a single space.
func (st SpeakersText) Join() string {
	texts := make([]string, len(st))
	for i, e := range st {
		texts[i] = e.Text
	}
	return strings.Join(texts, " ")
}

// MarshalJSON encodes the mapping as an object whose keys keep
// first-appearance order.
func (st SpeakersText) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range st {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(e.Speaker)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(e.Text)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes an object, keeping key order.
func (st *SpeakersText) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*st = nil
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("speakers text: expected object, got %v", tok)
	}
	var out SpeakersText
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := keyTok.(string)
		var value string
		if err := dec.Decode(&value); err != nil {
			return err
		}
		out = append(out, Entry{Speaker: key, Text: value})
	}
	*st = out
	return nil
}
