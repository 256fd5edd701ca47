package aggregator

import (
	"math"

	"call-outcomes-go/internal/types"
)

// Stats counts results per category and averages their confidence. An empty
// slice yields all-zero stats.
func Stats(results []types.AnalysisResult) types.AnalysisStats {
	var s types.AnalysisStats
	if len(results) == 0 {
		return s
	}
	sum := 0
	for _, r := range results {
		cat := r.Category
		if !cat.Valid() {
			cat = types.Failed
		}
		s.Counts[cat]++
		sum += r.Confidence
	}
	s.AverageConfidence = int(math.Round(float64(sum) / float64(len(results))))
	return s
}

// Share is the fraction of results that landed in c.
func Share(s types.AnalysisStats, c types.Category) float64 {
	total := s.Total()
	if total == 0 {
		return 0
	}
	return float64(s.Count(c)) / float64(total)
}
