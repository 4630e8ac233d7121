package transcript

import (
	"reflect"
	"testing"
)

func TestSearchTokenAndPhraseScoring(t *testing.T) {
	segments := []Segment{
		{Start: 0, End: 2, Text: "hello there world"},
		{Start: 2, End: 4, Text: "goodbye"},
	}

	hits := Search(segments, "hello world", 5)
	if len(hits) != 1 {
		t.Fatalf("expected 1 hit, got %d", len(hits))
	}
	// Both tokens match but "hello world" is not a contiguous substring of
	// "hello there world", so no phrase bonus.
	if hits[0].Score != 2 {
		t.Errorf("expected score 2, got %d", hits[0].Score)
	}
	if hits[0].Start != 0 {
		t.Errorf("expected first segment, got start %f", hits[0].Start)
	}
}

func TestSearchPhraseBonus(t *testing.T) {
	segments := []Segment{
		{Start: 0, End: 2, Text: "say hello world to everyone"},
		{Start: 2, End: 4, Text: "hello around the world"},
	}

	hits := Search(segments, "hello world", 5)
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(hits))
	}
	// Segment 0 gets 2 token points + 3 phrase bonus = 5; segment 1 gets 2.
	if hits[0].Start != 0 || hits[0].Score != 5 {
		t.Errorf("expected phrase match first with score 5, got %+v", hits[0])
	}
	if hits[1].Score != 2 {
		t.Errorf("expected score 2 for token-only match, got %d", hits[1].Score)
	}
}

func TestSearchNormalization(t *testing.T) {
	segments := []Segment{
		{Start: 0, End: 2, Text: "  HELLO    World  "},
	}

	hits := Search(segments, "hello   world", 5)
	if len(hits) != 1 {
		t.Fatalf("expected 1 hit, got %d", len(hits))
	}
	// Collapsed whitespace makes the phrase contiguous: 2 tokens + bonus.
	if hits[0].Score != 5 {
		t.Errorf("expected score 5, got %d", hits[0].Score)
	}
}

func TestSearchTiesKeepTimeOrder(t *testing.T) {
	segments := []Segment{
		{Start: 10, End: 12, Text: "cats are great"},
		{Start: 0, End: 2, Text: "cats sleep a lot"},
		{Start: 5, End: 7, Text: "dogs bark"},
	}

	hits := Search(segments, "cats", 5)
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(hits))
	}
	// Equal scores: original sequence order (10 before 0 as given) preserved.
	if hits[0].Start != 10 || hits[1].Start != 0 {
		t.Errorf("tie order not preserved: %+v", hits)
	}
}

func TestSearchTopKLimit(t *testing.T) {
	segments := []Segment{
		{Start: 0, End: 1, Text: "go go go"},
		{Start: 1, End: 2, Text: "go again"},
		{Start: 2, End: 3, Text: "go once more"},
	}

	hits := Search(segments, "go", 2)
	if len(hits) != 2 {
		t.Errorf("expected topK=2 hits, got %d", len(hits))
	}
	if Search(segments, "go", 0) != nil {
		t.Error("topK=0 should return nothing")
	}
}

func TestSearchDeterministic(t *testing.T) {
	segments := []Segment{
		{Start: 0, End: 2, Text: "alpha beta gamma"},
		{Start: 2, End: 4, Text: "beta gamma delta"},
		{Start: 4, End: 6, Text: "gamma delta epsilon"},
	}

	first := Search(segments, "beta gamma", 3)
	for i := 0; i < 10; i++ {
		again := Search(segments, "beta gamma", 3)
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("search not deterministic: %+v vs %+v", first, again)
		}
	}
}

func TestClean(t *testing.T) {
	segments := []Segment{
		{Start: 0, End: 1, Text: "  keep me  "},
		{Start: 1, End: 2, Text: "   "},
		{Start: 2, End: 3, Text: ""},
		{Start: 3, End: 4, Text: "also kept"},
	}

	cleaned := Clean(segments)
	if len(cleaned) != 2 {
		t.Fatalf("expected 2 segments after cleaning, got %d", len(cleaned))
	}
	if cleaned[0].Text != "keep me" {
		t.Errorf("expected trimmed text, got %q", cleaned[0].Text)
	}
	if cleaned[1].Start != 3 {
		t.Errorf("expected timing preserved, got %+v", cleaned[1])
	}
}
