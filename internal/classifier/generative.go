package classifier

import (
	"context"
	"errors"
	"fmt"
	"time"

	"call-outcomes-go/internal/inference"
	"call-outcomes-go/internal/logger"
	"call-outcomes-go/internal/types"
)

// Reason says why a generative classification was abandoned.
type Reason string

const (
	ReasonUnavailable          Reason = "unavailable"
	ReasonTimeout              Reason = "timeout"
	ReasonMalformed            Reason = "malformed_response"
	ReasonConfidenceOutOfRange Reason = "confidence_out_of_range"
	ReasonDisabled             Reason = "disabled"
)

// ClassificationError is the typed failure of the generative path.
type ClassificationError struct {
	Reason Reason
	Err    error
}

func (e *ClassificationError) Error() string {
	if e.Err == nil {
		return "classification failed: " + string(e.Reason)
	}
	return fmt.Sprintf("classification failed (%s): %v", e.Reason, e.Err)
}

func (e *ClassificationError) Unwrap() error { return e.Err }

// Chatter is the inference service boundary.
type Chatter interface {
	Chat(ctx context.Context, model string, messages []inference.Message, opts inference.SamplingOptions) (string, error)
}

type GenerativeOptions struct {
	Model    string
	Sampling inference.SamplingOptions
	Timeout  time.Duration
	Logger   *logger.Logger
}

// Generative classifies calls with a prompted model.
type Generative struct {
	chat     Chatter
	model    string
	sampling inference.SamplingOptions
	timeout  time.Duration
	now      func() time.Time
	log      *logger.Logger
}

func NewGenerative(chat Chatter, opts GenerativeOptions) *Generative {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	log := opts.Logger
	if log == nil {
		log = logger.New()
	}
	return &Generative{
		chat:     chat,
		model:    opts.Model,
		sampling: opts.Sampling,
		timeout:  opts.Timeout,
		now:      time.Now,
		log:      log.Component("classifier.generative"),
	}
}

// Attempt runs the generative path only. Every failure comes back as a
// *ClassificationError; falling back is the caller's decision.
func (g *Generative) Attempt(ctx context.Context, call types.CallRecord) (types.AnalysisResult, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	content, err := g.chat.Chat(ctx, g.model, []inference.Message{
		{Role: "user", Content: BuildPrompt(call)},
	}, g.sampling)
	if err != nil {
		reason := ReasonUnavailable
		if errors.Is(err, context.DeadlineExceeded) {
			reason = ReasonTimeout
		}
		return types.AnalysisResult{}, &ClassificationError{Reason: reason, Err: err}
	}

	verdict, err := ParseVerdict(content)
	if err != nil {
		reason := ReasonMalformed
		if errors.Is(err, ErrConfidenceOutOfRange) {
			reason = ReasonConfidenceOutOfRange
		}
		return types.AnalysisResult{}, &ClassificationError{Reason: reason, Err: err}
	}
	if verdict.Corrected {
		g.log.WithField("call_id", call.ID).Warn("model returned an invalid category")
	}

	return types.AnalysisResult{
		CallRecord: call,
		Category:   verdict.Category,
		Comment:    verdict.Comment,
		Confidence: toPercent(verdict.Confidence),
		AnalyzedAt: g.now().UTC(),
		Model:      types.ModelGenerative,
	}, nil
}
