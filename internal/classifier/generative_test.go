package classifier

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"call-outcomes-go/internal/inference"
	"call-outcomes-go/internal/logger"
	"call-outcomes-go/internal/types"
)

type fakeChat struct {
	reply string
	err   error
	block bool

	model    string
	messages []inference.Message
	opts     inference.SamplingOptions
}

func (f *fakeChat) Chat(ctx context.Context, model string, messages []inference.Message, opts inference.SamplingOptions) (string, error) {
	f.model, f.messages, f.opts = model, messages, opts
	if f.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return f.reply, f.err
}

func newTestGenerative(chat Chatter, timeout time.Duration) *Generative {
	return NewGenerative(chat, GenerativeOptions{
		Model:    "callAnalyser",
		Sampling: inference.SamplingOptions{Temperature: 0.3, TopP: 0.9},
		Timeout:  timeout,
		Logger:   logger.Discard(),
	})
}

func TestGenerativeAttemptSuccess(t *testing.T) {
	chat := &fakeChat{reply: `{"category":"Lead","comment":"asked for pricing details","confidence":0.856}`}
	g := newTestGenerative(chat, time.Second)

	call := types.CallRecord{ID: "c1", DisplayName: "Ana", Status: "done", DurationSeconds: 90, Transcript: "agent: hi\n\nuser: send me information"}
	res, err := g.Attempt(context.Background(), call)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Category != types.Lead || res.Confidence != 86 || res.Model != types.ModelGenerative {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.ID != "c1" || res.FallbackReason != "" {
		t.Fatalf("call fields not carried: %+v", res)
	}
	if chat.model != "callAnalyser" || chat.opts.Temperature != 0.3 {
		t.Fatalf("request not passed through: model=%q opts=%+v", chat.model, chat.opts)
	}
	if len(chat.messages) != 1 || !strings.Contains(chat.messages[0].Content, "send me information") {
		t.Fatalf("prompt missing transcript: %+v", chat.messages)
	}
}

func TestGenerativeAttemptFailures(t *testing.T) {
	tests := []struct {
		name   string
		chat   *fakeChat
		reason Reason
	}{
		{"service unavailable", &fakeChat{err: errors.New("connection refused")}, ReasonUnavailable},
		{"timeout", &fakeChat{block: true}, ReasonTimeout},
		{"not JSON", &fakeChat{reply: "I believe this was a lead."}, ReasonMalformed},
		{"broken JSON", &fakeChat{reply: `{"category": Lead}`}, ReasonMalformed},
		{"confidence out of range", &fakeChat{reply: `{"category":"Lead","comment":"x","confidence":7}`}, ReasonConfidenceOutOfRange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newTestGenerative(tt.chat, 20*time.Millisecond)
			_, err := g.Attempt(context.Background(), types.CallRecord{ID: "c1", DurationSeconds: 30})
			var ce *ClassificationError
			if !errors.As(err, &ce) {
				t.Fatalf("err = %v, want *ClassificationError", err)
			}
			if ce.Reason != tt.reason {
				t.Fatalf("reason = %q, want %q", ce.Reason, tt.reason)
			}
		})
	}
}

func TestGenerativeInvalidCategoryIsSoftCorrected(t *testing.T) {
	g := newTestGenerative(&fakeChat{reply: `{"category":"Spam","comment":"robocall","confidence":0.9}`}, time.Second)
	res, err := g.Attempt(context.Background(), types.CallRecord{ID: "c1", DurationSeconds: 30})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Category != types.Failed || res.Confidence != 30 || res.Model != types.ModelGenerative {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestBuildPrompt(t *testing.T) {
	p := BuildPrompt(types.CallRecord{DisplayName: "Ana", Phone: "+34600", DurationSeconds: 12, Status: "done"})
	for _, name := range types.CategoryNames() {
		if !strings.Contains(p, name) {
			t.Errorf("prompt missing category %q", name)
		}
	}
	for _, want := range []string{"Ana", "+34600", "12 seconds", "done", noTranscript, `"confidence"`} {
		if !strings.Contains(p, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}
