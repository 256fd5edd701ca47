package types

import (
	"fmt"
	"strings"
)

// Category is the closed set of call outcomes.
type Category int

// Declaration order matters: keyword-score ties resolve to the earlier category.
const (
	Failed Category = iota
	Hangup
	Lead
	NoAnswer
	NonViableClient
	NotInterested
	Recall
	Voicemail
	WrongNumber
	Completed

	categoryCount = int(Completed) + 1
)

var categoryNames = [categoryCount]string{
	"Failed",
	"Hangup",
	"Lead",
	"No Answer",
	"Non-Viable Client",
	"Not Interested",
	"Recall",
	"Voicemail",
	"Wrong Number",
	"Completed",
}

// Categories returns every category in declaration order.
func Categories() []Category {
	out := make([]Category, categoryCount)
	for i := range out {
		out[i] = Category(i)
	}
	return out
}

// CategoryNames returns the display names in declaration order, for UI population.
func CategoryNames() []string {
	out := make([]string, categoryCount)
	copy(out, categoryNames[:])
	return out
}

func (c Category) Valid() bool {
	return c >= Failed && c <= Completed
}

func (c Category) String() string {
	if !c.Valid() {
		return fmt.Sprintf("Category(%d)", int(c))
	}
	return categoryNames[c]
}

// ParseCategory maps a display name onto the enum. Matching ignores case and
// surrounding whitespace; anything else is rejected.
func ParseCategory(s string) (Category, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "failed":
		return Failed, true
	case "hangup":
		return Hangup, true
	case "lead":
		return Lead, true
	case "no answer":
		return NoAnswer, true
	case "non-viable client":
		return NonViableClient, true
	case "not interested":
		return NotInterested, true
	case "recall":
		return Recall, true
	case "voicemail":
		return Voicemail, true
	case "wrong number":
		return WrongNumber, true
	case "completed":
		return Completed, true
	}
	return Failed, false
}

func (c Category) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("invalid category %d", int(c))
	}
	return []byte(categoryNames[c]), nil
}

func (c *Category) UnmarshalText(b []byte) error {
	parsed, ok := ParseCategory(string(b))
	if !ok {
		return fmt.Errorf("unknown category %q", string(b))
	}
	*c = parsed
	return nil
}
