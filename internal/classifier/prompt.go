package classifier

import (
	"fmt"
	"strings"

	"call-outcomes-go/internal/types"
)

var definitions = [...]string{
	types.Failed:          "the call failed technically",
	types.Hangup:          "the client hung up abruptly",
	types.Lead:            "the client showed genuine interest",
	types.NoAnswer:        "nobody answered",
	types.NonViableClient: "the client does not qualify for the product or service",
	types.NotInterested:   "the client clearly said they are not interested",
	types.Recall:          "the client asked to be contacted later",
	types.Voicemail:       "a voicemail message was left",
	types.WrongNumber:     "the number did not belong to the intended person",
	types.Completed:       "the call completed successfully",
}

const noTranscript = "no transcript available"

// BuildPrompt renders the classification prompt for one call.
func BuildPrompt(call types.CallRecord) string {
	var b strings.Builder
	b.WriteString("You are an expert analyst of outbound sales phone calls. ")
	b.WriteString("Classify the call below into exactly one of these categories:\n\n")
	for _, c := range types.Categories() {
		fmt.Fprintf(&b, "- %s: %s\n", c, definitions[c])
	}

	b.WriteString("\nCALL DATA:\n")
	fmt.Fprintf(&b, "- Name: %s\n", orNA(call.DisplayName))
	fmt.Fprintf(&b, "- Phone: %s\n", orNA(call.Phone))
	fmt.Fprintf(&b, "- Duration: %d seconds\n", call.DurationSeconds)
	fmt.Fprintf(&b, "- Status: %s\n", orNA(call.Status))
	transcript := strings.TrimSpace(call.Transcript)
	if transcript == "" {
		transcript = noTranscript
	}
	fmt.Fprintf(&b, "- Transcript: %s\n", transcript)

	b.WriteString(`
INSTRUCTIONS:
1. Read the transcript and its context carefully.
2. Take the call duration and status into account.
3. Pick the single category that best describes the outcome.
4. Write a specific comment of 10-50 words explaining the choice.
5. Rate your confidence from 0 to 1.

Respond ONLY with this JSON object:
{
  "category": "<one of the exact category names>",
  "comment": "<10-50 word explanation>",
  "confidence": <decimal between 0 and 1>
}

Do not include any text outside the JSON.`)
	return b.String()
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return "N/A"
	}
	return s
}
