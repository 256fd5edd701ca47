package types

import (
	"bytes"
	"encoding/json"
)

// AnalysisStats aggregates a result set: a count for every category plus the
// rounded mean confidence.
type AnalysisStats struct {
	Counts            [categoryCount]int
	AverageConfidence int
}

func (s AnalysisStats) Count(c Category) int {
	if !c.Valid() {
		return 0
	}
	return s.Counts[c]
}

// Total is the number of results the stats were built from.
func (s AnalysisStats) Total() int {
	n := 0
	for _, v := range s.Counts {
		n += v
	}
	return n
}

// MarshalJSON writes a flat object keyed by category name in declaration
// order, followed by averageConfidence.
func (s AnalysisStats) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range categoryNames {
		key, _ := json.Marshal(name)
		buf.Write(key)
		buf.WriteByte(':')
		val, _ := json.Marshal(s.Counts[i])
		buf.Write(val)
		buf.WriteByte(',')
	}
	buf.WriteString(`"averageConfidence":`)
	avg, _ := json.Marshal(s.AverageConfidence)
	buf.Write(avg)
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
