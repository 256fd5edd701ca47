package actionable

import (
	"fmt"

	"call-outcomes-go/internal/aggregator"
	"call-outcomes-go/internal/types"
)

type ActionCard struct {
	Insight string `json:"insight"`
	Action  string `json:"action"`
	Impact  string `json:"impact"`
}

const (
	dominantShare     = 0.35
	strongLeadShare   = 0.20
	lowConfidenceMark = 50
)

// unfavorable outcomes and what to do when one dominates
var remedies = map[types.Category]string{
	types.NoAnswer:        "Shift dialing windows and retry unanswered numbers at a different time of day",
	types.Voicemail:       "Add a short voicemail script with a callback number",
	types.Hangup:          "Review the opening lines of the agent script; callers drop early",
	types.NotInterested:   "Refine targeting of the contact list before the next campaign",
	types.WrongNumber:     "Clean the contact list; numbers do not match the intended people",
	types.NonViableClient: "Pre-qualify contacts before dialing",
	types.Failed:          "Check platform and telephony health; many calls failed technically",
}

var unfavorable = []types.Category{
	types.Failed, types.Hangup, types.NoAnswer, types.NonViableClient,
	types.NotInterested, types.Voicemail, types.WrongNumber,
}

// Generate turns batch stats into one recommendation.
func Generate(stats types.AnalysisStats) ActionCard {
	if stats.Total() == 0 {
		return ActionCard{
			Insight: "No calls analyzed",
			Action:  "Widen the date range or check the platform agent configuration",
			Impact:  "None until calls are available",
		}
	}

	worst, highest := types.Failed, 0.0
	for _, c := range unfavorable {
		if share := aggregator.Share(stats, c); share > highest {
			worst, highest = c, share
		}
	}
	if highest >= dominantShare {
		return ActionCard{
			Insight: fmt.Sprintf("%s dominates outcomes (%.0f%%)", worst, highest*100),
			Action:  remedies[worst],
			Impact:  "Raise contact rate for the next campaign",
		}
	}

	if stats.AverageConfidence < lowConfidenceMark {
		return ActionCard{
			Insight: fmt.Sprintf("Low classification confidence (%d%%)", stats.AverageConfidence),
			Action:  "Spot-check transcripts and verify the inference service is healthy",
			Impact:  "More reliable outcome reporting",
		}
	}

	if lead := aggregator.Share(stats, types.Lead); lead >= strongLeadShare {
		return ActionCard{
			Insight: fmt.Sprintf("Strong lead rate (%.0f%%)", lead*100),
			Action:  "Route leads to sales follow-up within 24 hours",
			Impact:  "Convert interest while it is fresh",
		}
	}

	return ActionCard{
		Insight: "No strong outcome pattern detected",
		Action:  "Monitor and collect more data",
		Impact:  "Low immediate intervention",
	}
}
