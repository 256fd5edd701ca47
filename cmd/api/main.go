package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"call-outcomes-go/internal/classifier"
	"call-outcomes-go/internal/config"
	"call-outcomes-go/internal/export"
	"call-outcomes-go/internal/httpapi"
	"call-outcomes-go/internal/inference"
	"call-outcomes-go/internal/ingest"
	"call-outcomes-go/internal/logger"
	"call-outcomes-go/internal/metrics"
	"call-outcomes-go/internal/pipeline"
	"call-outcomes-go/internal/platform"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewWithOptions(logger.Options{Environment: cfg.Environment, Level: cfg.LogLevel})
	log.WithField("service", "call-outcomes-go").Info("starting service")

	if err := cfg.Validate(); err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	platformClient := platform.NewClient(platform.Options{
		BaseURL:      cfg.Platform.BaseURL,
		APIKey:       cfg.Platform.APIKey,
		AgentID:      cfg.Platform.AgentID,
		Timeout:      cfg.Platform.Timeout,
		MaxRetryTime: cfg.Platform.MaxRetryTime,
		Logger:       log,
	})
	ingestor := ingest.New(platformClient, ingest.Options{
		PageSize:          cfg.Platform.PageSize,
		MaxPages:          cfg.Platform.MaxPages,
		Location:          cfg.Location(),
		EnrichTranscripts: cfg.Platform.EnrichTranscripts,
		EnrichConcurrency: cfg.Platform.EnrichConcurrency,
		Logger:            log,
		Metrics:           m,
	})

	llm := inference.NewClient(inference.Options{
		Host:         cfg.Inference.Host,
		MaxRetryTime: cfg.Inference.MaxRetryTime,
		Logger:       log,
	})
	opts := pipeline.Options{
		Fallback:  classifier.NewHeuristic(),
		BatchSize: cfg.Analysis.BatchSize,
		Pause:     cfg.Analysis.BatchPause,
		Logger:    log,
		Metrics:   m,
	}
	if cfg.Inference.Enabled {
		opts.Generative = classifier.NewGenerative(llm, classifier.GenerativeOptions{
			Model: cfg.Inference.Model,
			Sampling: inference.SamplingOptions{
				Temperature: cfg.Inference.Temperature,
				TopP:        cfg.Inference.TopP,
			},
			Timeout: cfg.Inference.Timeout,
			Logger:  log,
		})
	} else {
		log.Warn("generative classification disabled, using heuristic only")
	}
	analyzer := pipeline.New(opts)

	checkCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	health := llm.Check(checkCtx, cfg.Inference.Model)
	cancel()
	log.WithField("model", health.Model).WithField("status", health.Status).Info("inference service checked")

	mux := http.NewServeMux()
	httpapi.NewRouter(httpapi.Options{
		Calls:              ingestor,
		Analyzer:           analyzer,
		Exporter:           export.New(export.Options{MaxRows: cfg.Export.MaxRows, Location: cfg.Location(), Logger: log}),
		Inference:          llm,
		Model:              cfg.Inference.Model,
		MaxCallsPerRequest: cfg.Analysis.MaxCallsPerRequest,
		Gatherer:           reg,
		Logger:             log,
	}).Register(mux)

	addr := fmt.Sprintf(":%s", cfg.Port)
	srv := &http.Server{
		Addr:        addr,
		Handler:     mux,
		ReadTimeout: 15 * time.Second,
		// a full date range with paced batches takes minutes
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.WithField("addr", addr).Info("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server terminated")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("graceful shutdown failed")
	}
}
