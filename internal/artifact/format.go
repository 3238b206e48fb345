package artifact

import (
	"strings"

	"github.com/loqalabs/file2text/internal/repetition"
	"github.com/loqalabs/file2text/internal/speakers"
	"github.com/loqalabs/file2text/internal/textnorm"
)

const (
	FullSummaryHeader     = "=== FULL-CONVERSATION SUMMARY ==="
	SpeakerSummaryHeader  = "=== PER-SPEAKER SUMMARY ==="
	CombinedSummaryHeader = "=== OVERALL SUMMARY ==="

	// MinSpeakerText is the shortest cleaned speaker text kept by
	// ParseSpeakerText.
	MinSpeakerText = 50
)

var combinedSeparator = strings.Repeat("=", 50)

// legacyLinePrefix is accepted when reading speaker files written by older
// Russian-language tooling.
const legacyLinePrefix = "Спикер"

// SpeakerLines renders one "Speaker <label>: <text>" line per segment.
func SpeakerLines(segments []speakers.SpeakerSegment) string {
	lines := make([]string, 0, len(segments))
	for _, seg := range segments {
		lines = append(lines, "Speaker "+seg.Speaker+": "+strings.TrimSpace(seg.Text))
	}
	return strings.Join(lines, "\n")
}

// FullSummary renders the full-conversation summary file.
func FullSummary(summary string) string {
	return FullSummaryHeader + "\n\n" + summary
}

// SpeakerSummaries renders the per-speaker summary file.
func SpeakerSummaries(bySpeaker speakers.SpeakersText) string {
	return SpeakerSummaryHeader + "\n\n" + speakerBlocks(bySpeaker)
}

// CombinedSummary renders the overall summary followed by the per-speaker
// summaries.
func CombinedSummary(full string, bySpeaker speakers.SpeakersText) string {
	var b strings.Builder
	b.WriteString(CombinedSummaryHeader + "\n\n")
	b.WriteString(full)
	b.WriteString("\n\n" + combinedSeparator + "\n\n")
	b.WriteString(SpeakerSummaries(bySpeaker))
	return b.String()
}

func speakerBlocks(bySpeaker speakers.SpeakersText) string {
	blocks := make([]string, 0, len(bySpeaker))
	for _, e := range bySpeaker {
		blocks = append(blocks, "=== SPEAKER "+e.Speaker+" ===\n\n"+e.Text+"\n")
	}
	return strings.Join(blocks, "\n")
}

// ParseSpeakerText reads a speaker file back into per-speaker text. Lines
// that are not speaker lines are ignored. Each speaker's lines are joined
// with a space and cleaned with sup; speakers left with fewer than
// MinSpeakerText characters are dropped.
func ParseSpeakerText(text string, sup *repetition.Suppressor) speakers.SpeakersText {
	if sup == nil {
		sup = repetition.New()
	}
	var segments []speakers.SpeakerSegment
	for _, line := range strings.Split(text, "\n") {
		label, body, ok := parseLine(strings.TrimSpace(line))
		if !ok {
			continue
		}
		segments = append(segments, speakers.SpeakerSegment{Speaker: label, Text: body})
	}

	var out speakers.SpeakersText
	for _, e := range speakers.GroupBySpeaker(segments) {
		cleaned := sup.Clean(e.Text)
		if textnorm.Len(strings.TrimSpace(cleaned)) < MinSpeakerText {
			continue
		}
		out.Set(e.Speaker, cleaned)
	}
	return out
}

func parseLine(line string) (label, body string, ok bool) {
	rest, found := strings.CutPrefix(line, "Speaker")
	if !found {
		if rest, found = strings.CutPrefix(line, legacyLinePrefix); !found {
			return "", "", false
		}
	}
	trimmed := strings.TrimLeft(rest, " \t")
	if len(trimmed) == len(rest) {
		return "", "", false
	}
	i := strings.IndexAny(trimmed, " \t")
	if i < 0 {
		return "", "", false
	}
	token := trimmed[:i]
	if len(token) < 2 || !strings.HasSuffix(token, ":") {
		return "", "", false
	}
	body = strings.TrimSpace(trimmed[i:])
	if body == "" {
		return "", "", false
	}
	return strings.TrimSuffix(token, ":"), body, true
}
