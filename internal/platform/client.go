package platform

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"call-outcomes-go/internal/logger"
)

// ErrNotFound is returned when the platform has no such conversation.
var ErrNotFound = errors.New("conversation not found")

// Client talks to the ElevenLabs conversational AI API.
type Client struct {
	baseURL      string
	apiKey       string
	agentID      string
	httpClient   *http.Client
	maxRetryTime time.Duration
	log          *logger.Logger
}

type Options struct {
	BaseURL      string
	APIKey       string
	AgentID      string
	Timeout      time.Duration
	MaxRetryTime time.Duration
	HTTPClient   *http.Client
	Logger       *logger.Logger
}

func NewClient(opts Options) *Client {
	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}
	log := opts.Logger
	if log == nil {
		log = logger.New()
	}
	return &Client{
		baseURL:      strings.TrimRight(opts.BaseURL, "/"),
		apiKey:       opts.APIKey,
		agentID:      opts.AgentID,
		httpClient:   hc,
		maxRetryTime: opts.MaxRetryTime,
		log:          log.Component("platform"),
	}
}

// ListRequest selects one page of conversations.
type ListRequest struct {
	Start    time.Time
	End      time.Time
	PageSize int
	Cursor   string
}

// Page is one list response. Conversations stay raw so that a single bad
// record can be skipped by the formatter instead of failing the page decode.
type Page struct {
	Conversations []json.RawMessage `json:"conversations"`
	NextCursor    *string           `json:"next_cursor"`
	HasMore       *bool             `json:"has_more"`
}

// Cursor returns the next cursor, or "" when the platform reported none.
func (p Page) Cursor() string {
	if p.NextCursor == nil {
		return ""
	}
	if p.HasMore != nil && !*p.HasMore {
		return ""
	}
	return *p.NextCursor
}

// Message is one turn of a conversation. The platform uses "message"; some
// exports use "text".
type Message struct {
	Role    string `json:"role"`
	Message string `json:"message"`
	Text    string `json:"text"`
}

func (m Message) Body() string {
	if m.Message != "" {
		return m.Message
	}
	return m.Text
}

// Conversation is the detail response. Transcript is either a plain string
// or an array of messages depending on the API version.
type Conversation struct {
	ID         string          `json:"conversation_id"`
	Transcript json.RawMessage `json:"transcript"`
	Messages   []Message       `json:"messages"`
}

// ListConversations fetches one page.
func (c *Client) ListConversations(ctx context.Context, lr ListRequest) (Page, error) {
	q := url.Values{}
	q.Set("agent_id", c.agentID)
	q.Set("start_time", strconv.FormatInt(lr.Start.Unix(), 10))
	q.Set("end_time", strconv.FormatInt(lr.End.Unix(), 10))
	q.Set("page_size", strconv.Itoa(lr.PageSize))
	if lr.Cursor != "" {
		q.Set("cursor", lr.Cursor)
	}
	endpoint := c.baseURL + "/convai/conversations?" + q.Encode()

	var page Page
	if err := c.getJSON(ctx, endpoint, &page); err != nil {
		return Page{}, err
	}
	if page.Conversations == nil {
		return Page{}, fmt.Errorf("malformed page envelope: missing conversations")
	}
	c.log.WithField("count", len(page.Conversations)).WithField("cursor", lr.Cursor).Debug("page received")
	return page, nil
}

// GetConversation fetches the detail record holding the full transcript.
func (c *Client) GetConversation(ctx context.Context, id string) (Conversation, error) {
	endpoint := c.baseURL + "/convai/conversations/" + url.PathEscape(id)
	var conv Conversation
	if err := c.getJSON(ctx, endpoint, &conv); err != nil {
		return Conversation{}, err
	}
	return conv, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, target any) error {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = c.maxRetryTime
	if c.maxRetryTime <= 0 {
		bo.MaxElapsedTime = 20 * time.Second
	}

	var lastErr error
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("xi-api-key", c.apiKey)
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			return err
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)

		switch {
		case resp.StatusCode == http.StatusNotFound:
			lastErr = ErrNotFound
			return backoff.Permanent(lastErr)
		case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
			lastErr = fmt.Errorf("platform error %d: %s", resp.StatusCode, truncate(body))
			return lastErr
		case resp.StatusCode >= 300:
			// client errors will not improve on retry
			lastErr = fmt.Errorf("platform error %d: %s", resp.StatusCode, truncate(body))
			return backoff.Permanent(lastErr)
		}
		if err := json.Unmarshal(body, target); err != nil {
			lastErr = fmt.Errorf("malformed platform response: %w", err)
			return backoff.Permanent(lastErr)
		}
		return nil
	}

	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		if lastErr == nil {
			lastErr = err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%w (last error: %v)", ctxErr, lastErr)
		}
		return lastErr
	}
	return nil
}

func truncate(b []byte) string {
	const max = 512
	if len(b) > max {
		return string(b[:max]) + "…"
	}
	return string(b)
}
