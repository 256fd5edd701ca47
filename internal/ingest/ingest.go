package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"call-outcomes-go/internal/logger"
	"call-outcomes-go/internal/metrics"
	"call-outcomes-go/internal/platform"
	"call-outcomes-go/internal/types"
)

const (
	maxPageSize = 100
	// runaway-loop guard, not a business limit
	maxPages = 100
)

// ErrInvalidDateRange is returned before any platform call when the dates are
// malformed or reversed.
var ErrInvalidDateRange = errors.New("invalid date range")

var dateRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// IngestionError reports a page that could not be fetched or decoded. No
// partial result accompanies it.
type IngestionError struct {
	Page   int
	Cursor string
	Err    error
}

func (e *IngestionError) Error() string {
	return fmt.Sprintf("ingestion failed on page %d: %v", e.Page, e.Err)
}

func (e *IngestionError) Unwrap() error { return e.Err }

// Source is the subset of the call platform the ingestor needs.
type Source interface {
	ListConversations(ctx context.Context, req platform.ListRequest) (platform.Page, error)
	GetConversation(ctx context.Context, id string) (platform.Conversation, error)
}

type Options struct {
	PageSize          int
	MaxPages          int
	Location          *time.Location
	EnrichTranscripts bool
	EnrichConcurrency int
	Logger            *logger.Logger
	Metrics           *metrics.Metrics
}

// Ingestor pages through the platform's conversation list.
type Ingestor struct {
	src  Source
	opts Options
	log  *logger.Logger
	m    *metrics.Metrics
}

func New(src Source, opts Options) *Ingestor {
	if opts.PageSize <= 0 || opts.PageSize > maxPageSize {
		opts.PageSize = maxPageSize
	}
	if opts.MaxPages <= 0 || opts.MaxPages > maxPages {
		opts.MaxPages = maxPages
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.EnrichConcurrency <= 0 {
		opts.EnrichConcurrency = 1
	}
	log := opts.Logger
	if log == nil {
		log = logger.New()
	}
	return &Ingestor{src: src, opts: opts, log: log.Component("ingest"), m: opts.Metrics}
}

// ParseDateRange validates YYYY-MM-DD strings and returns inclusive day
// bounds in loc: start at 00:00:00, end at 23:59:59.
func ParseDateRange(startDate, endDate string, loc *time.Location) (time.Time, time.Time, error) {
	if !dateRe.MatchString(startDate) || !dateRe.MatchString(endDate) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: dates must be YYYY-MM-DD", ErrInvalidDateRange)
	}
	start, err := time.ParseInLocation("2006-01-02", startDate, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: start date: %v", ErrInvalidDateRange, err)
	}
	endDay, err := time.ParseInLocation("2006-01-02", endDate, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: end date: %v", ErrInvalidDateRange, err)
	}
	if start.After(endDay) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: start date must not be after end date", ErrInvalidDateRange)
	}
	end := time.Date(endDay.Year(), endDay.Month(), endDay.Day(), 23, 59, 59, 0, loc)
	return start, end, nil
}

// FetchCallsByDateRange returns every call in the range in page order.
func (in *Ingestor) FetchCallsByDateRange(ctx context.Context, startDate, endDate string) ([]types.CallRecord, error) {
	start, end, err := ParseDateRange(startDate, endDate, in.opts.Location)
	if err != nil {
		return nil, err
	}
	began := time.Now()
	log := in.log.WithFields(logrus.Fields{"start_date": startDate, "end_date": endDate})
	log.Info("fetching calls")

	var (
		out    []types.CallRecord
		seen   = map[string]bool{}
		cursor string
	)
	for page := 1; ; page++ {
		if page > in.opts.MaxPages {
			log.WithField("max_pages", in.opts.MaxPages).Warn("page ceiling reached, stopping pagination")
			break
		}
		resp, err := in.src.ListConversations(ctx, platform.ListRequest{
			Start:    start,
			End:      end,
			PageSize: in.opts.PageSize,
			Cursor:   cursor,
		})
		if err != nil {
			return nil, &IngestionError{Page: page, Cursor: cursor, Err: err}
		}
		in.m.PageFetched()

		records := in.formatPage(resp.Conversations, seen, log.WithField("page", page))
		if in.opts.EnrichTranscripts {
			in.enrich(ctx, records)
		}
		out = append(out, records...)

		cursor = resp.Cursor()
		if cursor == "" {
			break
		}
	}

	in.m.CallsIngested(len(out))
	in.log.Performance("fetch calls by date range", began, logrus.Fields{"total_calls": len(out)})
	return out, nil
}

func (in *Ingestor) formatPage(raw []json.RawMessage, seen map[string]bool, log *logrus.Entry) []types.CallRecord {
	records := make([]types.CallRecord, 0, len(raw))
	for i, r := range raw {
		rec, err := FormatCall(r)
		if err != nil {
			log.WithField("index", i).Warn("skipping unusable record")
			in.m.RecordSkipped("unusable")
			continue
		}
		if seen[rec.ID] {
			log.WithField("call_id", rec.ID).Warn("skipping duplicate record")
			in.m.RecordSkipped("duplicate")
			continue
		}
		seen[rec.ID] = true
		records = append(records, rec)
	}
	return records
}

// enrich replaces each summary with the full transcript where one can be
// fetched. Failures keep the summary.
func (in *Ingestor) enrich(ctx context.Context, records []types.CallRecord) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(in.opts.EnrichConcurrency)
	for i := range records {
		if IsSynthetic(records[i].ID) {
			continue
		}
		g.Go(func() error {
			rec := &records[i]
			text, err := in.Transcript(gctx, rec.ID)
			switch {
			case err != nil:
				in.log.WithError(err).WithField("call_id", rec.ID).Warn("transcript fetch failed, keeping summary")
				in.m.TranscriptFetch("failed")
			case text == "":
				in.m.TranscriptFetch("empty")
			default:
				rec.Transcript = text
				in.m.TranscriptFetch("enriched")
			}
			return nil
		})
	}
	_ = g.Wait()
}

// Transcript fetches and flattens the full transcript of one conversation.
func (in *Ingestor) Transcript(ctx context.Context, id string) (string, error) {
	conv, err := in.src.GetConversation(ctx, id)
	if err != nil {
		return "", err
	}
	return TranscriptText(conv), nil
}

// TranscriptText renders a conversation detail as text. A string transcript
// is used as is; message arrays become one "<role>: <text>" paragraph each.
func TranscriptText(conv platform.Conversation) string {
	if len(conv.Transcript) > 0 {
		var s string
		if err := json.Unmarshal(conv.Transcript, &s); err == nil && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
		var msgs []platform.Message
		if err := json.Unmarshal(conv.Transcript, &msgs); err == nil && len(msgs) > 0 {
			return flatten(msgs)
		}
	}
	return flatten(conv.Messages)
}

func flatten(msgs []platform.Message) string {
	parts := make([]string, 0, len(msgs))
	for _, m := range msgs {
		body := strings.TrimSpace(m.Body())
		if body == "" {
			continue
		}
		role := strings.TrimSpace(m.Role)
		if role == "" {
			role = "unknown"
		}
		parts = append(parts, role+": "+body)
	}
	return strings.Join(parts, "\n\n")
}
