package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"call-outcomes-go/internal/aggregator"
	"call-outcomes-go/internal/export"
	"call-outcomes-go/internal/inference"
	"call-outcomes-go/internal/ingest"
	"call-outcomes-go/internal/logger"
	"call-outcomes-go/internal/pipeline"
	"call-outcomes-go/internal/platform"
	"call-outcomes-go/internal/types"
)

const (
	defaultPageSize = 100
	maxPageSize     = 200
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// CallSource fetches calls and transcripts from the platform.
type CallSource interface {
	FetchCallsByDateRange(ctx context.Context, startDate, endDate string) ([]types.CallRecord, error)
	Transcript(ctx context.Context, id string) (string, error)
}

// Analyzer classifies calls.
type Analyzer interface {
	AnalyzeCall(ctx context.Context, call types.CallRecord) types.AnalysisResult
	AnalyzeCalls(ctx context.Context, calls []types.CallRecord) (pipeline.Report, error)
}

// HealthChecker reports on the inference service.
type HealthChecker interface {
	Check(ctx context.Context, model string) inference.Health
}

// WorkbookWriter renders results as a spreadsheet.
type WorkbookWriter interface {
	Write(w io.Writer, results []types.AnalysisResult, stats types.AnalysisStats, meta export.Meta) error
}

type Options struct {
	Calls              CallSource
	Analyzer           Analyzer
	Exporter           WorkbookWriter
	Inference          HealthChecker // optional
	Model              string
	MaxCallsPerRequest int
	Gatherer           prometheus.Gatherer
	Logger             *logger.Logger
}

// Router builds HTTP handlers for /api, /healthz and /metrics.
type Router struct {
	opts Options
	log  *logger.Logger
}

func NewRouter(opts Options) *Router {
	log := opts.Logger
	if log == nil {
		log = logger.New()
	}
	return &Router{opts: opts, log: log.Component("httpapi")}
}

func (r *Router) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", r.health)
	mux.HandleFunc("GET /api/calls/date-range", r.callsByDateRange)
	mux.HandleFunc("GET /api/calls/{id}/transcript", r.transcript)
	mux.HandleFunc("POST /api/analysis/analyze-calls", r.analyzeCalls)
	mux.HandleFunc("POST /api/analysis/analyze-single", r.analyzeSingle)
	mux.HandleFunc("GET /api/analysis/categories", r.categories)
	mux.HandleFunc("POST /api/export/excel", r.exportExcel)
	if r.opts.Gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(r.opts.Gatherer, promhttp.HandlerOpts{}))
	}
}

type envelope struct {
	Success   bool       `json:"success"`
	Data      any        `json:"data,omitempty"`
	DateRange *dateRange `json:"dateRange,omitempty"`
	Error     string     `json:"error,omitempty"`
	RequestID string     `json:"requestId,omitempty"`
}

type dateRange struct {
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

func (r *Router) health(w http.ResponseWriter, req *http.Request) {
	body := map[string]any{"status": "ok", "time": time.Now().UTC()}
	if r.opts.Inference != nil {
		ctx, cancel := context.WithTimeout(req.Context(), 5*time.Second)
		defer cancel()
		body["inference"] = r.opts.Inference.Check(ctx, r.opts.Model)
	}
	respondJSON(w, http.StatusOK, body)
}

func (r *Router) callsByDateRange(w http.ResponseWriter, req *http.Request) {
	log := r.log.WithRequest(req)
	rng := dateRange{StartDate: req.URL.Query().Get("startDate"), EndDate: req.URL.Query().Get("endDate")}
	if rng.StartDate == "" || rng.EndDate == "" {
		r.fail(w, req, http.StatusBadRequest, "startDate and endDate query parameters are required")
		return
	}
	calls, err := r.opts.Calls.FetchCallsByDateRange(req.Context(), rng.StartDate, rng.EndDate)
	if err != nil {
		log.WithError(err).Warn("fetch calls failed")
		r.fail(w, req, statusFor(err), err.Error())
		return
	}
	if calls == nil {
		calls = []types.CallRecord{}
	}
	respondJSON(w, http.StatusOK, envelope{
		Success:   true,
		Data:      map[string]any{"calls": calls, "total": len(calls)},
		DateRange: &rng,
	})
}

func (r *Router) transcript(w http.ResponseWriter, req *http.Request) {
	id := req.PathValue("id")
	if id == "" {
		r.fail(w, req, http.StatusBadRequest, "call id is required")
		return
	}
	text, err := r.opts.Calls.Transcript(req.Context(), id)
	if err != nil {
		r.log.WithRequest(req).WithError(err).WithField("call_id", id).Warn("transcript fetch failed")
		r.fail(w, req, statusFor(err), err.Error())
		return
	}
	respondJSON(w, http.StatusOK, envelope{Success: true, Data: map[string]any{"id": id, "transcript": text}})
}

type analyzeRequest struct {
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
	Page      int    `json:"page"`
	PageSize  int    `json:"pageSize"`
}

type analyzePage struct {
	pipeline.Report
	TotalCalls int  `json:"totalCalls"`
	Page       int  `json:"page"`
	PageSize   int  `json:"pageSize"`
	TotalPages int  `json:"totalPages"`
	HasMore    bool `json:"hasMore"`
}

func (r *Router) analyzeCalls(w http.ResponseWriter, req *http.Request) {
	start := time.Now()
	log := r.log.WithRequest(req)

	var body analyzeRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		r.fail(w, req, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if body.StartDate == "" || body.EndDate == "" {
		r.fail(w, req, http.StatusBadRequest, "startDate and endDate are required")
		return
	}
	page, pageSize := normalizePaging(body.Page, body.PageSize)
	rng := dateRange{StartDate: body.StartDate, EndDate: body.EndDate}
	log = log.WithFields(logrus.Fields{"start_date": rng.StartDate, "end_date": rng.EndDate})

	calls, err := r.opts.Calls.FetchCallsByDateRange(req.Context(), rng.StartDate, rng.EndDate)
	if err != nil {
		log.WithError(err).Warn("fetch calls failed")
		r.fail(w, req, statusFor(err), err.Error())
		return
	}
	if limit := r.opts.MaxCallsPerRequest; limit > 0 && len(calls) > limit {
		log.WithFields(logrus.Fields{"calls": len(calls), "max": limit}).Warn("call list capped")
		calls = calls[:limit]
	}

	total := len(calls)
	totalPages := max(1, (total+pageSize-1)/pageSize)
	page = min(page, totalPages)
	lo := min((page-1)*pageSize, total)
	hi := min(lo+pageSize, total)

	report, err := r.opts.Analyzer.AnalyzeCalls(req.Context(), calls[lo:hi])
	if err != nil {
		log.WithError(err).Warn("analysis interrupted")
		r.fail(w, req, http.StatusServiceUnavailable, err.Error())
		return
	}
	if report.Results == nil {
		report.Results = []types.AnalysisResult{}
	}
	r.log.Performance("analyze calls request", start, logrus.Fields{"total_calls": total, "page": page})

	respondJSON(w, http.StatusOK, envelope{
		Success: true,
		Data: analyzePage{
			Report:     report,
			TotalCalls: total,
			Page:       page,
			PageSize:   pageSize,
			TotalPages: totalPages,
			HasMore:    page < totalPages,
		},
		DateRange: &rng,
	})
}

func (r *Router) analyzeSingle(w http.ResponseWriter, req *http.Request) {
	var call types.CallRecord
	if err := json.NewDecoder(req.Body).Decode(&call); err != nil {
		r.fail(w, req, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if call.ID == "" {
		r.fail(w, req, http.StatusBadRequest, "call id is required")
		return
	}
	r.log.WithRequest(req).WithField("call_id", call.ID).Info("analyzing single call")
	res := r.opts.Analyzer.AnalyzeCall(req.Context(), call)
	respondJSON(w, http.StatusOK, envelope{Success: true, Data: res})
}

func (r *Router) categories(w http.ResponseWriter, req *http.Request) {
	names := types.CategoryNames()
	respondJSON(w, http.StatusOK, envelope{
		Success: true,
		Data:    map[string]any{"categories": names, "total": len(names)},
	})
}

type exportRequest struct {
	Results   []types.AnalysisResult `json:"results"`
	DateRange dateRange              `json:"dateRange"`
}

func (r *Router) exportExcel(w http.ResponseWriter, req *http.Request) {
	var body exportRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		r.fail(w, req, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(body.Results) == 0 {
		r.fail(w, req, http.StatusBadRequest, "results are required")
		return
	}
	stats := aggregator.Stats(body.Results)
	meta := export.Meta{
		StartDate:   body.DateRange.StartDate,
		EndDate:     body.DateRange.EndDate,
		GeneratedAt: time.Now(),
	}
	var buf bytes.Buffer
	if err := r.opts.Exporter.Write(&buf, body.Results, stats, meta); err != nil {
		r.log.WithRequest(req).WithError(err).Error("excel export failed")
		r.fail(w, req, http.StatusInternalServerError, "excel export failed")
		return
	}
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.Filename(meta.StartDate, meta.EndDate)+`"`)
	if _, err := buf.WriteTo(w); err != nil {
		r.log.WithRequest(req).WithError(err).Warn("write workbook")
	}
}

func (r *Router) fail(w http.ResponseWriter, req *http.Request, status int, msg string) {
	respondJSON(w, status, envelope{Error: msg, RequestID: logger.RequestID(req)})
}

func statusFor(err error) int {
	var ie *ingest.IngestionError
	switch {
	case errors.Is(err, ingest.ErrInvalidDateRange):
		return http.StatusBadRequest
	// a failed list page is an upstream problem even when it was a 404
	case errors.As(err, &ie):
		return http.StatusBadGateway
	case errors.Is(err, platform.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func normalizePaging(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	return page, min(pageSize, maxPageSize)
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logrus.WithError(err).Error("write json")
	}
}
