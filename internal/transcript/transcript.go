// Package transcript holds the timed-text document produced by the audio
// pipeline and the lexical search over it.
package transcript

import "strings"

// Segment is a single timed span of spoken text.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Transcript is the persisted output of the audio pipeline. Segments are
// ordered by non-decreasing start time and immutable once saved.
type Transcript struct {
	Language string    `json:"language"`
	Duration float64   `json:"duration"`
	Segments []Segment `json:"segments"`
}

// Clean trims segment text and drops segments that are empty after trimming.
// The upstream model does not guarantee non-empty text; persistence does.
func Clean(segments []Segment) []Segment {
	out := make([]Segment, 0, len(segments))
	for _, s := range segments {
		text := strings.TrimSpace(s.Text)
		if text == "" {
			continue
		}
		out = append(out, Segment{Start: s.Start, End: s.End, Text: text})
	}
	return out
}
