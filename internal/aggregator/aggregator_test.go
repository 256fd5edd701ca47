package aggregator

import (
	"testing"

	"call-outcomes-go/internal/types"
)

func TestStatsEmpty(t *testing.T) {
	s := Stats(nil)
	if s.Total() != 0 || s.AverageConfidence != 0 {
		t.Fatalf("expected zero stats, got %+v", s)
	}
	for _, c := range types.Categories() {
		if s.Count(c) != 0 {
			t.Fatalf("count for %s = %d", c, s.Count(c))
		}
	}
}

func TestStatsCountsAndAverage(t *testing.T) {
	results := []types.AnalysisResult{
		{Category: types.Lead, Confidence: 90},
		{Category: types.Lead, Confidence: 81},
		{Category: types.Voicemail, Confidence: 70},
		{Category: types.Category(42), Confidence: 10},
	}
	s := Stats(results)
	if s.Total() != len(results) {
		t.Fatalf("counts sum to %d, want %d", s.Total(), len(results))
	}
	if s.Count(types.Lead) != 2 || s.Count(types.Voicemail) != 1 || s.Count(types.Failed) != 1 {
		t.Fatalf("unexpected counts: %+v", s.Counts)
	}
	// (90+81+70+10)/4 = 62.75
	if s.AverageConfidence != 63 {
		t.Fatalf("average = %d, want 63", s.AverageConfidence)
	}
	if got := Share(s, types.Lead); got != 0.5 {
		t.Fatalf("lead share = %v, want 0.5", got)
	}
}
