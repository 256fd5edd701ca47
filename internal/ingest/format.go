package ingest

import (
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"call-outcomes-go/internal/types"
)

// ErrUnusableRecord marks a raw record the formatter cannot read at all.
var ErrUnusableRecord = errors.New("unusable conversation record")

// SyntheticIDPrefix marks IDs generated locally for records the platform
// sent without one.
const SyntheticIDPrefix = "local-"

// Field aliases, first match wins. The platform has renamed several of these
// across API versions.
var (
	idKeys           = []string{"conversation_id", "conversationId", "id"}
	nameKeys         = []string{"call_summary_title", "title", "name", "caller_name"}
	phoneKeys        = []string{"phone_number", "caller_number", "phone"}
	statusKeys       = []string{"status", "call_status"}
	durationKeys     = []string{"call_duration_secs", "duration_secs", "duration_seconds", "duration"}
	summaryKeys      = []string{"transcript_summary", "summary", "transcript"}
	startKeys        = []string{"start_time_unix_secs", "start_time", "started_at"}
	messageCountKeys = []string{"message_count", "messages_count"}
	successKeys      = []string{"call_successful", "successful"}
	directionKeys    = []string{"direction"}
	agentNameKeys    = []string{"agent_name", "agent"}
)

// IsSynthetic reports whether id was generated by FormatCall.
func IsSynthetic(id string) bool {
	return strings.HasPrefix(id, SyntheticIDPrefix)
}

// FormatCall normalizes one raw list record. Missing fields get defaults; a
// missing ID gets a synthetic one. Only input that is not a JSON object is
// rejected.
func FormatCall(raw json.RawMessage) (types.CallRecord, error) {
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return types.CallRecord{}, ErrUnusableRecord
	}

	rec := types.CallRecord{
		ID:              lookupString(fields, idKeys),
		DisplayName:     lookupString(fields, nameKeys),
		Phone:           lookupString(fields, phoneKeys),
		Status:          strings.ToLower(lookupString(fields, statusKeys)),
		DurationSeconds: lookupInt(fields, durationKeys),
		Transcript:      lookupString(fields, summaryKeys),
		StartTime:       lookupTime(fields, startKeys),
		MessageCount:    lookupInt(fields, messageCountKeys),
		CallSuccessful:  lookupString(fields, successKeys),
		Direction:       lookupString(fields, directionKeys),
		AgentName:       lookupString(fields, agentNameKeys),
	}
	if rec.ID == "" {
		rec.ID = SyntheticIDPrefix + uuid.New().String()
	}
	if rec.Status == "" {
		rec.Status = "unknown"
	}
	if rec.DurationSeconds < 0 {
		rec.DurationSeconds = 0
	}
	if rec.CallSuccessful == "" {
		rec.CallSuccessful = "unknown"
	}
	if rec.Direction == "" {
		rec.Direction = "unknown"
	}
	return rec, nil
}

func lookup(fields map[string]any, keys []string) (any, bool) {
	for _, k := range keys {
		if v, ok := fields[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func lookupString(fields map[string]any, keys []string) string {
	v, ok := lookup(fields, keys)
	if !ok {
		return ""
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	}
	return ""
}

func lookupInt(fields map[string]any, keys []string) int {
	v, ok := lookup(fields, keys)
	if !ok {
		return 0
	}
	switch t := v.(type) {
	case float64:
		return int(math.Round(t))
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0
		}
		return int(math.Round(f))
	}
	return 0
}

// lookupTime accepts unix seconds or an RFC3339 string.
func lookupTime(fields map[string]any, keys []string) *time.Time {
	v, ok := lookup(fields, keys)
	if !ok {
		return nil
	}
	var ts time.Time
	switch t := v.(type) {
	case float64:
		if t <= 0 {
			return nil
		}
		ts = time.Unix(int64(t), 0).UTC()
	case string:
		parsed, err := time.Parse(time.RFC3339, strings.TrimSpace(t))
		if err != nil {
			return nil
		}
		ts = parsed.UTC()
	default:
		return nil
	}
	return &ts
}
