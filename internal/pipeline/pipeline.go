package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"call-outcomes-go/internal/actionable"
	"call-outcomes-go/internal/aggregator"
	"call-outcomes-go/internal/classifier"
	"call-outcomes-go/internal/logger"
	"call-outcomes-go/internal/metrics"
	"call-outcomes-go/internal/types"
)

// Attempter is the generative classification path.
type Attempter interface {
	Attempt(ctx context.Context, call types.CallRecord) (types.AnalysisResult, error)
}

// Fallback never fails.
type Fallback interface {
	Classify(call types.CallRecord) types.AnalysisResult
}

// NoPause disables the wait between chunks.
const NoPause time.Duration = -1

const (
	defaultBatchSize = 5
	defaultPause     = time.Second
)

type Options struct {
	// Generative may be nil, in which case every call goes straight to the
	// fallback with reason "disabled".
	Generative Attempter
	Fallback   Fallback
	BatchSize  int
	// Pause between chunks; zero means one second, negative means none.
	Pause   time.Duration
	Logger  *logger.Logger
	Metrics *metrics.Metrics
}

// Pipeline classifies calls in paced chunks.
type Pipeline struct {
	generative Attempter
	fallback   Fallback
	batchSize  int
	pause      time.Duration
	now        func() time.Time
	log        *logger.Logger
	metrics    *metrics.Metrics
}

func New(opts Options) *Pipeline {
	if opts.Fallback == nil {
		opts.Fallback = classifier.NewHeuristic()
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}
	switch {
	case opts.Pause == 0:
		opts.Pause = defaultPause
	case opts.Pause < 0:
		opts.Pause = 0
	}
	log := opts.Logger
	if log == nil {
		log = logger.New()
	}
	return &Pipeline{
		generative: opts.Generative,
		fallback:   opts.Fallback,
		batchSize:  opts.BatchSize,
		pause:      opts.Pause,
		now:        time.Now,
		log:        log.Component("pipeline"),
		metrics:    opts.Metrics,
	}
}

// Report is the outcome of one batch run.
type Report struct {
	Results    []types.AnalysisResult `json:"results"`
	Stats      types.AnalysisStats    `json:"stats"`
	TotalCalls int                    `json:"totalCalls"`
	AnalyzedAt time.Time              `json:"analyzedAt"`
	Insight    actionable.ActionCard  `json:"insight"`
}

// AnalyzeCall classifies one call. It always returns a result: a failed
// generative attempt is replaced by the fallback, and the reason is kept on
// the result.
func (p *Pipeline) AnalyzeCall(ctx context.Context, call types.CallRecord) types.AnalysisResult {
	if p.generative == nil {
		return p.useFallback(call, classifier.ReasonDisabled, nil)
	}
	res, err := p.generative.Attempt(ctx, call)
	if err != nil {
		reason := classifier.ReasonUnavailable
		var ce *classifier.ClassificationError
		if errors.As(err, &ce) {
			reason = ce.Reason
		}
		return p.useFallback(call, reason, err)
	}
	p.metrics.Classified(string(res.Model), res.Category.String())
	return res
}

func (p *Pipeline) useFallback(call types.CallRecord, reason classifier.Reason, cause error) types.AnalysisResult {
	res := p.fallback.Classify(call)
	res.Model = types.ModelFallback
	res.FallbackReason = string(reason)
	if reason != classifier.ReasonDisabled {
		p.log.WithError(cause).WithFields(logrus.Fields{
			"call_id": call.ID,
			"reason":  reason,
		}).Warn("generative classification failed, using fallback")
	}
	p.metrics.Fallback(string(reason))
	p.metrics.Classified(string(res.Model), res.Category.String())
	return res
}

// AnalyzeCalls classifies calls in chunks of BatchSize. Members of a chunk run
// concurrently; chunks run one after another with Pause in between. Results
// keep input order. If ctx is cancelled between chunks the results finished so
// far are returned together with ctx.Err().
func (p *Pipeline) AnalyzeCalls(ctx context.Context, calls []types.CallRecord) (Report, error) {
	start := time.Now()
	log := p.log.WithFields(logrus.Fields{"calls": len(calls), "batch_size": p.batchSize})
	log.Info("analysis started")

	results := make([]types.AnalysisResult, len(calls))
	done := 0
	for lo := 0; lo < len(calls); lo += p.batchSize {
		if lo > 0 {
			if err := p.wait(ctx); err != nil {
				log.WithField("analyzed", done).Warn("analysis cancelled")
				return p.report(results[:done]), err
			}
		}
		hi := min(lo+p.batchSize, len(calls))

		var g errgroup.Group
		for i := lo; i < hi; i++ {
			g.Go(func() error {
				results[i] = p.AnalyzeCall(ctx, calls[i])
				return nil
			})
		}
		_ = g.Wait()
		done = hi
		log.WithFields(logrus.Fields{"chunk_start": lo, "chunk_end": hi}).Debug("chunk analyzed")
	}

	p.metrics.ObserveBatch(time.Since(start).Seconds())
	p.log.Performance("analyze_calls", start, logrus.Fields{"calls": len(calls)})
	return p.report(results), nil
}

// wait sleeps for the inter-chunk pause unless ctx ends first.
func (p *Pipeline) wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.pause == 0 {
		return nil
	}
	t := time.NewTimer(p.pause)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (p *Pipeline) report(results []types.AnalysisResult) Report {
	stats := aggregator.Stats(results)
	return Report{
		Results:    results,
		Stats:      stats,
		TotalCalls: len(results),
		AnalyzedAt: p.now().UTC(),
		Insight:    actionable.Generate(stats),
	}
}
