package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"call-outcomes-go/internal/logger"
)

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// SamplingOptions are passed through to the model.
type SamplingOptions struct {
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
}

// Client is an Ollama chat client.
type Client struct {
	host         string
	httpClient   *http.Client
	maxRetryTime time.Duration
	log          *logger.Logger
}

type Options struct {
	Host         string
	MaxRetryTime time.Duration
	HTTPClient   *http.Client
	Logger       *logger.Logger
}

func NewClient(opts Options) *Client {
	hc := opts.HTTPClient
	if hc == nil {
		// per-call deadlines come from the caller's context
		hc = &http.Client{}
	}
	log := opts.Logger
	if log == nil {
		log = logger.New()
	}
	return &Client{
		host:         strings.TrimRight(opts.Host, "/"),
		httpClient:   hc,
		maxRetryTime: opts.MaxRetryTime,
		log:          log.Component("inference"),
	}
}

type chatRequest struct {
	Model    string          `json:"model"`
	Messages []Message       `json:"messages"`
	Stream   bool            `json:"stream"`
	Options  SamplingOptions `json:"options"`
}

type chatResponse struct {
	Message Message `json:"message"`
	Error   string  `json:"error,omitempty"`
}

// Chat sends one non-streaming chat request and returns the reply content.
// Transport failures and 5xx responses are retried until MaxRetryTime or the
// context deadline, whichever comes first.
func (c *Client) Chat(ctx context.Context, model string, messages []Message, opts SamplingOptions) (string, error) {
	data, err := json.Marshal(chatRequest{Model: model, Messages: messages, Stream: false, Options: opts})
	if err != nil {
		return "", err
	}
	endpoint := c.host + "/api/chat"
	c.log.WithField("payload_len", len(data)).Debug("chat request")

	var content string
	var lastErr error
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			c.log.WithError(err).Warn("inference request failed")
			return err
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)

		if resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("inference server error %d: %s", resp.StatusCode, string(body))
			return lastErr
		}
		if resp.StatusCode >= 400 {
			// Permanent: don't retry on client errors
			lastErr = fmt.Errorf("inference request rejected %d: %s", resp.StatusCode, string(body))
			return backoff.Permanent(lastErr)
		}
		var parsed chatResponse
		if err := json.Unmarshal(body, &parsed); err != nil {
			lastErr = fmt.Errorf("decode chat response: %w", err)
			return backoff.Permanent(lastErr)
		}
		if parsed.Error != "" {
			lastErr = fmt.Errorf("inference error: %s", parsed.Error)
			return backoff.Permanent(lastErr)
		}
		content = parsed.Message.Content
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = c.maxRetryTime
	if c.maxRetryTime <= 0 {
		b.MaxElapsedTime = 10 * time.Second
	}
	if err := backoff.Retry(op, backoff.WithContext(b, ctx)); err != nil {
		if lastErr == nil {
			lastErr = err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", fmt.Errorf("%w (last error: %v)", ctxErr, lastErr)
		}
		return "", lastErr
	}
	return content, nil
}

// ModelInfo is one entry of the local model list.
type ModelInfo struct {
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	ModifiedAt time.Time `json:"modified_at"`
}

// Health reports whether the server is reachable and has model installed.
type Health struct {
	Status    string   `json:"status"` // healthy, model_not_found, unhealthy
	Model     string   `json:"model"`
	Available []string `json:"available,omitempty"`
	Error     string   `json:"error,omitempty"`
}

// Check lists local models and looks for model. Tags like ":latest" are
// ignored when matching.
func (c *Client) Check(ctx context.Context, model string) Health {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.host+"/api/tags", nil)
	if err != nil {
		return Health{Status: "unhealthy", Model: model, Error: err.Error()}
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Health{Status: "unhealthy", Model: model, Error: err.Error()}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Health{Status: "unhealthy", Model: model, Error: fmt.Sprintf("status %d", resp.StatusCode)}
	}
	var tags struct {
		Models []ModelInfo `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return Health{Status: "unhealthy", Model: model, Error: err.Error()}
	}
	names := make([]string, 0, len(tags.Models))
	for _, m := range tags.Models {
		names = append(names, m.Name)
		if m.Name == model || strings.TrimSuffix(m.Name, ":latest") == model {
			return Health{Status: "healthy", Model: model}
		}
	}
	return Health{Status: "model_not_found", Model: model, Available: names}
}
