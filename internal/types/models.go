package types

import "time"

// CallRecord is one observed call, normalized from the call platform.
type CallRecord struct {
	ID              string     `json:"id"`
	DisplayName     string     `json:"name"`
	Phone           string     `json:"phone"`
	Status          string     `json:"status"`
	DurationSeconds int        `json:"duration"`
	Transcript      string     `json:"transcript"`
	StartTime       *time.Time `json:"startTime"`

	// advisory platform metadata
	MessageCount   int    `json:"messageCount,omitempty"`
	CallSuccessful string `json:"callSuccessful,omitempty"`
	Direction      string `json:"direction,omitempty"`
	AgentName      string `json:"agentName,omitempty"`
}

// Model records which classifier produced a result.
type Model string

const (
	ModelGenerative Model = "generative"
	ModelFallback   Model = "fallback"
)

// AnalysisResult is a CallRecord plus its classification outcome.
type AnalysisResult struct {
	CallRecord
	Category       Category  `json:"category"`
	Comment        string    `json:"comment"`
	Confidence     int       `json:"confidence"` // 0-100
	AnalyzedAt     time.Time `json:"analyzedAt"`
	Model          Model     `json:"model"`
	FallbackReason string    `json:"fallbackReason,omitempty"`
}
