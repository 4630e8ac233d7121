package transcript

import (
	"sort"
	"strings"
)

// phraseBonus is added when the whole normalized query appears as a
// contiguous substring of the segment text.
const phraseBonus = 3

// Hit is a segment that matched a query, with its relevance score.
type Hit struct {
	Segment
	Score int `json:"score"`
}

// Search scores every segment against query and returns up to topK hits.
//
// Both sides are normalized (lowercased, whitespace collapsed). A segment
// scores one point per query token appearing as a substring of its text,
// plus phraseBonus when the entire query is a contiguous substring.
// Zero-scoring segments are excluded. Hits are sorted by descending score
// with a stable sort, so tied segments keep their original time order.
// The result is deterministic for identical input.
func Search(segments []Segment, query string, topK int) []Hit {
	if topK <= 0 {
		return nil
	}

	normQuery := normalize(query)
	if normQuery == "" {
		return nil
	}
	tokens := strings.Fields(normQuery)

	hits := make([]Hit, 0, len(segments))
	for _, seg := range segments {
		normText := normalize(seg.Text)

		score := 0
		for _, tok := range tokens {
			if strings.Contains(normText, tok) {
				score++
			}
		}
		if strings.Contains(normText, normQuery) {
			score += phraseBonus
		}

		if score > 0 {
			hits = append(hits, Hit{Segment: seg, Score: score})
		}
	}

	sort.SliceStable(hits, func(a, b int) bool {
		return hits[a].Score > hits[b].Score
	})

	if topK < len(hits) {
		hits = hits[:topK]
	}
	return hits
}

// normalize lowercases s and collapses runs of whitespace to single spaces.
// strings.ToLower is locale-independent, keeping scoring deterministic.
func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
