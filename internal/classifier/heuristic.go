package classifier

import (
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"call-outcomes-go/internal/types"
)

// keywords per category, indexed by types.Category. Matching is a
// case-insensitive substring test against the transcript.
var keywords = [...][]string{
	types.Failed:          {"error", "failed", "technical problem", "can't hear", "no se escucha", "se cortó"},
	types.Hangup:          {"hung up", "hang up", "colgó", "disconnected", "line went dead", "click"},
	types.Lead:            {"i'm interested", "me interesa", "send me information", "sounds good", "schedule", "appointment"},
	types.NoAnswer:        {"no answer", "nobody answered", "no contesta", "ringing", "silence", "no one picked up"},
	types.NonViableClient: {"not eligible", "doesn't qualify", "does not qualify", "no califica", "no budget", "can't afford"},
	types.NotInterested:   {"not interested", "no me interesa", "no thanks", "don't call", "remove me", "stop calling"},
	types.Recall:          {"call back", "call me later", "tomorrow", "llámame", "busy right now", "another time"},
	types.Voicemail:       {"voicemail", "leave a message", "after the tone", "buzón", "beep", "mailbox"},
	types.WrongNumber:     {"wrong number", "número equivocado", "no one by that name", "doesn't live here", "who is this", "equivocado"},
	types.Completed:       {"thank you", "completed", "confirmed", "gracias", "all set", "have a great day"},
}

type statusRule struct {
	category   types.Category
	confidence float64
	comment    string
}

// exact status -> outcome table
var statusRules = map[string]statusRule{
	"completed": {types.Completed, 0.9, "call completed according to the platform"},
	"no_answer": {types.NoAnswer, 0.9, "no answer according to the platform"},
	"busy":      {types.Failed, 0.8, "line busy"},
	"failed":    {types.Failed, 0.9, "call failed according to the platform"},
}

const (
	shortCallSeconds     = 5
	shortTranscriptChars = 10
	keywordThreshold     = 0.4
	keywordCap           = 0.95
)

// Heuristic is the deterministic, network-free classifier. Classify never
// fails.
type Heuristic struct {
	now func() time.Time
}

func NewHeuristic() *Heuristic {
	return &Heuristic{now: time.Now}
}

// Classify applies the rules in order; the first that matches wins.
func (h *Heuristic) Classify(call types.CallRecord) types.AnalysisResult {
	category, confidence, comment := h.decide(call)
	return types.AnalysisResult{
		CallRecord: call,
		Category:   category,
		Comment:    comment,
		Confidence: toPercent(confidence),
		AnalyzedAt: h.now().UTC(),
		Model:      types.ModelFallback,
	}
}

func (h *Heuristic) decide(call types.CallRecord) (types.Category, float64, string) {
	if call.DurationSeconds < shortCallSeconds {
		return types.NoAnswer, 0.8, "very short call, likely unanswered"
	}

	if rule, ok := statusRules[strings.ToLower(strings.TrimSpace(call.Status))]; ok {
		return rule.category, rule.confidence, rule.comment
	}

	transcript := strings.ToLower(strings.TrimSpace(call.Transcript))
	if cat, conf, ok := scoreKeywords(transcript); ok {
		return cat, conf, fmt.Sprintf("classified from transcript keywords (confidence %d%%)", toPercent(conf))
	}

	if transcript != "" && utf8.RuneCountInString(transcript) < shortTranscriptChars {
		return types.NoAnswer, 0.7, "transcript too short to classify, likely unanswered"
	}

	return types.Failed, 0.3, "could not classify automatically"
}

// scoreKeywords picks the category with the most keyword hits. Only a strictly
// higher score replaces the current best, so ties go to the category declared
// first.
func scoreKeywords(transcript string) (types.Category, float64, bool) {
	if transcript == "" {
		return 0, 0, false
	}
	best, bestScore := types.Failed, 0
	for _, cat := range types.Categories() {
		score := 0
		for _, kw := range keywords[cat] {
			if strings.Contains(transcript, strings.ToLower(kw)) {
				score++
			}
		}
		if score > bestScore {
			best, bestScore = cat, score
		}
	}
	if bestScore == 0 {
		return 0, 0, false
	}
	conf := math.Min(float64(bestScore)/float64(len(keywords[best])), keywordCap)
	if conf <= keywordThreshold {
		return 0, 0, false
	}
	return best, conf, true
}

// toPercent maps a 0-1 confidence onto the stored 0-100 integer scale.
func toPercent(c float64) int {
	p := int(math.Round(c * 100))
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
