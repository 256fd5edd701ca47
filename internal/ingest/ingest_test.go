package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"call-outcomes-go/internal/logger"
	"call-outcomes-go/internal/platform"
)

type fakePlatform struct {
	mu       sync.Mutex
	pages    []platform.Page
	listErr  error
	requests []platform.ListRequest
	details  map[string]platform.Conversation
	detailOK bool
}

func (f *fakePlatform) ListConversations(ctx context.Context, req platform.ListRequest) (platform.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.listErr != nil {
		return platform.Page{}, f.listErr
	}
	i := len(f.requests) - 1
	if i >= len(f.pages) {
		return platform.Page{}, errors.New("unexpected extra page request")
	}
	return f.pages[i], nil
}

func (f *fakePlatform) GetConversation(ctx context.Context, id string) (platform.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	conv, ok := f.details[id]
	if !ok {
		return platform.Conversation{}, platform.ErrNotFound
	}
	return conv, nil
}

func cursor(s string) *string { return &s }

// endlessPlatform always reports another page.
type endlessPlatform struct {
	mu       sync.Mutex
	requests int
}

func (e *endlessPlatform) ListConversations(ctx context.Context, req platform.ListRequest) (platform.Page, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.requests++
	return rawPage(fmt.Sprintf("p%d", e.requests), 2, cursor(fmt.Sprintf("more-%d", e.requests))), nil
}

func (e *endlessPlatform) GetConversation(ctx context.Context, id string) (platform.Conversation, error) {
	return platform.Conversation{}, platform.ErrNotFound
}

func rawPage(prefix string, n int, next *string) platform.Page {
	convs := make([]json.RawMessage, n)
	for i := range convs {
		convs[i] = json.RawMessage(fmt.Sprintf(
			`{"conversation_id":"%s-%03d","status":"done","call_duration_secs":%d,"transcript_summary":"summary %d"}`,
			prefix, i, 10+i, i))
	}
	return platform.Page{Conversations: convs, NextCursor: next}
}

func newIngestor(src Source, enrich bool) *Ingestor {
	return New(src, Options{EnrichTranscripts: enrich, EnrichConcurrency: 4, Logger: logger.Discard()})
}

func TestFetchCallsFollowsCursorUntilNull(t *testing.T) {
	src := &fakePlatform{pages: []platform.Page{
		rawPage("p1", 100, cursor("a")),
		rawPage("p2", 100, cursor("b")),
		rawPage("p3", 37, nil),
	}}
	calls, err := newIngestor(src, false).FetchCallsByDateRange(context.Background(), "2025-01-01", "2025-01-31")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(calls) != 237 {
		t.Fatalf("expected 237 calls, got %d", len(calls))
	}
	if len(src.requests) != 3 {
		t.Fatalf("expected 3 page requests, got %d", len(src.requests))
	}
	if calls[0].ID != "p1-000" || calls[100].ID != "p2-000" || calls[236].ID != "p3-036" {
		t.Fatalf("calls out of page order: %s %s %s", calls[0].ID, calls[100].ID, calls[236].ID)
	}
	wantCursors := []string{"", "a", "b"}
	for i, req := range src.requests {
		if req.Cursor != wantCursors[i] {
			t.Errorf("request %d cursor = %q, want %q", i, req.Cursor, wantCursors[i])
		}
		if req.PageSize != 100 {
			t.Errorf("request %d page size = %d", i, req.PageSize)
		}
	}
	first := src.requests[0]
	if !first.Start.Equal(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)) ||
		!first.End.Equal(time.Date(2025, 1, 31, 23, 59, 59, 0, time.UTC)) {
		t.Fatalf("unexpected bounds: %v - %v", first.Start, first.End)
	}
}

func TestFetchCallsStopsWhenHasMoreFalse(t *testing.T) {
	no := false
	page := rawPage("p1", 2, cursor("ignored"))
	page.HasMore = &no
	src := &fakePlatform{pages: []platform.Page{page}}
	calls, err := newIngestor(src, false).FetchCallsByDateRange(context.Background(), "2025-01-01", "2025-01-01")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(calls) != 2 || len(src.requests) != 1 {
		t.Fatalf("got %d calls over %d requests", len(calls), len(src.requests))
	}
}

func TestFetchCallsStopsAtPageCeiling(t *testing.T) {
	tests := []struct {
		name     string
		maxPages int
		want     int
	}{
		{"configured", 3, 3},
		{"default", 0, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := &endlessPlatform{}
			in := New(src, Options{MaxPages: tt.maxPages, Logger: logger.Discard()})
			calls, err := in.FetchCallsByDateRange(context.Background(), "2025-01-01", "2025-01-31")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if src.requests != tt.want {
				t.Fatalf("requests = %d, want %d", src.requests, tt.want)
			}
			if len(calls) != 2*tt.want {
				t.Fatalf("calls = %d, want %d", len(calls), 2*tt.want)
			}
		})
	}
}

func TestFetchCallsRejectsBadDatesBeforeCallingPlatform(t *testing.T) {
	tests := []struct{ start, end string }{
		{"2025-1-01", "2025-01-31"},
		{"2025-01-01", "31/01/2025"},
		{"", "2025-01-31"},
		{"2025-02-30", "2025-03-01"},
		{"2025-02-01", "2025-01-01"},
	}
	for _, tt := range tests {
		t.Run(tt.start+"_"+tt.end, func(t *testing.T) {
			src := &fakePlatform{}
			_, err := newIngestor(src, false).FetchCallsByDateRange(context.Background(), tt.start, tt.end)
			if !errors.Is(err, ErrInvalidDateRange) {
				t.Fatalf("err = %v, want ErrInvalidDateRange", err)
			}
			if len(src.requests) != 0 {
				t.Fatalf("platform was called %d times", len(src.requests))
			}
		})
	}
}

func TestFetchCallsWrapsPageFailure(t *testing.T) {
	src := &fakePlatform{listErr: errors.New("status 503")}
	calls, err := newIngestor(src, false).FetchCallsByDateRange(context.Background(), "2025-01-01", "2025-01-02")
	var ie *IngestionError
	if !errors.As(err, &ie) {
		t.Fatalf("err = %v, want *IngestionError", err)
	}
	if ie.Page != 1 || calls != nil {
		t.Fatalf("unexpected failure: page=%d calls=%v", ie.Page, calls)
	}
}

func TestFetchCallsSkipsUnusableAndDuplicateRecords(t *testing.T) {
	page := platform.Page{Conversations: []json.RawMessage{
		json.RawMessage(`{"conversation_id":"a","status":"done"}`),
		json.RawMessage(`"not an object"`),
		json.RawMessage(`{"conversation_id":"a","status":"done"}`),
		json.RawMessage(`{"status":"failed"}`),
	}}
	src := &fakePlatform{pages: []platform.Page{page}}
	calls, err := newIngestor(src, false).FetchCallsByDateRange(context.Background(), "2025-01-01", "2025-01-01")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(calls) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(calls))
	}
	if calls[0].ID != "a" || !IsSynthetic(calls[1].ID) {
		t.Fatalf("unexpected ids: %q %q", calls[0].ID, calls[1].ID)
	}
}

func TestEnrichmentReplacesSummaryAndKeepsItOnFailure(t *testing.T) {
	page := platform.Page{Conversations: []json.RawMessage{
		json.RawMessage(`{"conversation_id":"ok","transcript_summary":"short summary"}`),
		json.RawMessage(`{"conversation_id":"missing","transcript_summary":"kept summary"}`),
		json.RawMessage(`{"transcript_summary":"no id"}`),
	}}
	src := &fakePlatform{
		pages: []platform.Page{page},
		details: map[string]platform.Conversation{
			"ok": {Transcript: json.RawMessage(`[{"role":"agent","message":"Hello"},{"role":"user","message":"Call me tomorrow"}]`)},
		},
	}
	calls, err := newIngestor(src, true).FetchCallsByDateRange(context.Background(), "2025-01-01", "2025-01-01")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls[0].Transcript != "agent: Hello\n\nuser: Call me tomorrow" {
		t.Errorf("transcript = %q", calls[0].Transcript)
	}
	if calls[1].Transcript != "kept summary" {
		t.Errorf("summary not kept: %q", calls[1].Transcript)
	}
	if calls[2].Transcript != "no id" {
		t.Errorf("synthetic record changed: %q", calls[2].Transcript)
	}
}

func TestTranscriptText(t *testing.T) {
	tests := []struct {
		name string
		conv platform.Conversation
		want string
	}{
		{"string transcript", platform.Conversation{Transcript: json.RawMessage(`"  plain text  "`)}, "plain text"},
		{"message array", platform.Conversation{Transcript: json.RawMessage(`[{"role":"agent","message":"Hi"},{"role":"","message":"Who?"},{"role":"user","message":"  "}]`)}, "agent: Hi\n\nunknown: Who?"},
		{"messages with text field", platform.Conversation{Messages: []platform.Message{{Role: "user", Text: "hola"}}}, "user: hola"},
		{"empty string falls back to messages", platform.Conversation{Transcript: json.RawMessage(`""`), Messages: []platform.Message{{Role: "agent", Message: "hi"}}}, "agent: hi"},
		{"nothing", platform.Conversation{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TranscriptText(tt.conv); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseDateRangeUsesLocation(t *testing.T) {
	loc, err := time.LoadLocation("America/Bogota")
	if err != nil {
		t.Skip("tzdata not available")
	}
	start, end, err := ParseDateRange("2025-06-01", "2025-06-01", loc)
	if err != nil {
		t.Fatal(err)
	}
	if start.Location() != loc || end.Sub(start) != 24*time.Hour-time.Second {
		t.Fatalf("unexpected bounds %v - %v", start, end)
	}
	if !strings.HasPrefix(start.UTC().Format(time.RFC3339), "2025-06-01T05:00:00") {
		t.Fatalf("start in UTC = %v", start.UTC())
	}
}
