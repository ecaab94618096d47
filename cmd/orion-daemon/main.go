// Copyright (C) 2023 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Command orion-daemon is a thin wrapper that re-runs the regression
// detection pipeline against a fixed configuration on a schedule,
// instead of the one-shot CI-hook invocation `cmd/orion` provides
// (SPEC_FULL.md §4: "thin daemon wrapper, non-core, optional").
// Grounded on cc-backend/internal/taskmanager's gocron scheduling
// idiom and cc-backend/cmd/cc-backend/main.go's signal-handling and
// gops-agent wiring.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/gops/agent"

	"github.com/cloud-bulldozer/orion-go/internal/assembler"
	"github.com/cloud-bulldozer/orion-go/internal/changepoint"
	"github.com/cloud-bulldozer/orion-go/internal/config"
	"github.com/cloud-bulldozer/orion-go/internal/coordinator"
	"github.com/cloud-bulldozer/orion-go/internal/indexclient"
	"github.com/cloud-bulldozer/orion-go/internal/postfilter"
	"github.com/cloud-bulldozer/orion-go/internal/report"
	"github.com/cloud-bulldozer/orion-go/pkg/log"
	"github.com/cloud-bulldozer/orion-go/pkg/schema"
)

var (
	flagConfig        string
	flagESServer      string
	flagMetadataIndex string
	flagSchedule      string
	flagAlgorithm     string
	flagHealthAddr    string
	flagGops          bool
	flagLogLevel      string
)

func init() {
	flag.StringVar(&flagConfig, "config", "", "Path to the YAML test configuration (required)")
	flag.StringVar(&flagESServer, "es-server", "", "OpenSearch/Elasticsearch URL (overridden by ES_SERVER)")
	flag.StringVar(&flagMetadataIndex, "metadata-index", "", "Metadata index name (required)")
	flag.StringVar(&flagSchedule, "schedule", "1h", "Re-run interval, a Go duration (e.g. 30m, 1h)")
	flag.StringVar(&flagAlgorithm, "algorithm", "edivisive", "Change-point algorithm: edivisive, isolation-forest, or cmr")
	flag.StringVar(&flagHealthAddr, "health-addr", ":8080", "Address to serve /healthz on")
	flag.BoolVar(&flagGops, "gops", false, "Listen via github.com/google/gops/agent (for debugging)")
	flag.StringVar(&flagLogLevel, "loglevel", "info", "Log level: debug, info, warn, error")
}

// lastRun is the most recently observed run outcome, read by the
// /healthz handler and written by the scheduled task.
type lastRun struct {
	at         atomic.Int64
	regression atomic.Bool
	failed     atomic.Bool
}

func main() {
	flag.Parse()

	level, err := log.ParseLevel(flagLogLevel)
	if err != nil {
		level = log.LevelInfo
	}
	logger := log.New(os.Stderr, level, true)

	if flagConfig == "" || flagMetadataIndex == "" {
		logger.Fatalf("orion-daemon: --config and --metadata-index are required")
	}
	interval, err := time.ParseDuration(flagSchedule)
	if err != nil {
		logger.Fatalf("orion-daemon: --schedule: %v", err)
	}

	// See https://github.com/google/gops (runtime overhead is almost zero).
	if flagGops {
		if err := agent.Listen(agent.Options{}); err != nil {
			logger.Fatalf("orion-daemon: gops/agent.Listen failed: %v", err)
		}
	}

	tag, err := changepoint.ParseTag(flagAlgorithm)
	if err != nil {
		logger.Fatalf("orion-daemon: --algorithm: %v", err)
	}

	esServer := flagESServer
	if v := os.Getenv("ES_SERVER"); v != "" {
		esServer = v
	}

	var run lastRun
	runOnce := func() {
		start := time.Now()
		logger.Debugf("orion-daemon: scheduled run started at %s", start.Format(time.RFC3339))
		regression, err := runPipeline(context.Background(), esServer, flagMetadataIndex, tag, logger)
		run.at.Store(time.Now().Unix())
		run.failed.Store(err != nil)
		run.regression.Store(regression)
		if err != nil {
			logger.Errorf("orion-daemon: scheduled run failed: %v", err)
			return
		}
		logger.Infof("orion-daemon: scheduled run completed in %s, regression=%v", time.Since(start), regression)
	}

	s, err := gocron.NewScheduler()
	if err != nil {
		logger.Fatalf("orion-daemon: could not create gocron scheduler: %v", err)
	}
	if _, err := s.NewJob(gocron.DurationJob(interval), gocron.NewTask(runOnce)); err != nil {
		logger.Fatalf("orion-daemon: could not register pipeline job: %v", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if run.failed.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprintln(w, "last run failed")
			return
		}
		w.WriteHeader(http.StatusOK)
		lastAt := run.at.Load()
		if lastAt == 0 {
			fmt.Fprintln(w, "ok: no run yet")
			return
		}
		fmt.Fprintf(w, "ok: last run at %s, regression=%v\n", time.Unix(lastAt, 0).Format(time.RFC3339), run.regression.Load())
	})
	healthServer := &http.Server{Addr: flagHealthAddr, Handler: mux, ReadTimeout: 10 * time.Second}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		logger.Infof("orion-daemon: serving /healthz on %s", flagHealthAddr)
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Errorf("orion-daemon: health server: %v", err)
		}
	}()

	s.Start()
	logger.Infof("orion-daemon: scheduled pipeline every %s", interval)
	// Run once immediately instead of waiting a full interval for the
	// first observation.
	go runOnce()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	logger.Infof("orion-daemon: shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	healthServer.Shutdown(ctx)
	if err := s.Shutdown(); err != nil {
		logger.Warnf("orion-daemon: scheduler shutdown: %v", err)
	}
	wg.Wait()
	logger.Infof("orion-daemon: graceful shutdown completed")
}

// runPipeline runs the full lookup → assemble → analyze → post-filter
// pipeline for every test in the config, with no lookback bound (the
// daemon always looks at the complete history on each tick). No ack
// file is loaded, so every surviving change point is reported again on
// each tick. It reports whether any test's metrics showed a surviving
// regression.
func runPipeline(ctx context.Context, esServer, metadataIndex string, tag changepoint.Tag, logger *log.Logger) (bool, error) {
	doc, err := config.Load(flagConfig, nil)
	if err != nil {
		return false, fmt.Errorf("orion-daemon: %w", err)
	}

	esConfig := indexclient.Config{Addresses: []string{esServer}}
	opts := changepoint.Options{SeriesAnalyzer: changepoint.NewReferenceSeriesAnalyzer()}

	var overallRegression bool
	for _, test := range doc.Tests {
		if test.MetadataIndex == "" {
			test.MetadataIndex = metadataIndex
		}
		if test.BenchmarkIndex == "" {
			test.BenchmarkIndex = test.MetadataIndex
		}

		analyze := func(ctx context.Context, test schema.Test) (*coordinator.AnalysisResult, error) {
			return analyzeTest(ctx, esConfig, test, tag, opts, logger)
		}

		pair, err := coordinator.Run(ctx, test, analyze, false)
		if err != nil {
			logger.Errorf("orion-daemon: test %q: %v", test.Name, err)
			continue
		}
		for _, variant := range []*coordinator.AnalysisResult{pair.Pull, pair.Periodic} {
			if variant == nil || variant.Table == nil {
				continue
			}
			if variant.Regression {
				overallRegression = true
				records := report.Build(variant.Table, variant.Survivors, variant.Test.Metrics)
				for _, mr := range records {
					logger.Warnf("orion-daemon: test %q: regression flagged with %d metric(s)", test.Name, len(mr.Metrics))
				}
			}
		}
	}
	return overallRegression, nil
}

func analyzeTest(ctx context.Context, esConfig indexclient.Config, test schema.Test, tag changepoint.Tag, opts changepoint.Options, logger *log.Logger) (*coordinator.AnalysisResult, error) {
	idx, err := indexclient.New(esConfig, test.MetadataIndex, test.BenchmarkIndex, logger)
	if err != nil {
		return nil, err
	}
	runs, err := idx.Lookup(ctx, test.Metadata, test, "", 10000)
	if err != nil {
		return nil, fmt.Errorf("lookup %q: %w", test.Name, err)
	}
	if len(runs) == 0 {
		return &coordinator.AnalysisResult{Test: test}, nil
	}

	table, err := assembler.Assemble(ctx, idx, runs, test, logger, assembler.Options{})
	if err != nil {
		return nil, fmt.Errorf("assemble %q: %w", test.Name, err)
	}
	if table.RowCount() == 0 {
		return &coordinator.AnalysisResult{Test: test}, nil
	}

	analyzer, err := changepoint.NewAnalyzer(tag, opts)
	if err != nil {
		return nil, err
	}
	candidates, err := analyzer.Analyze(table, test.Metrics)
	if err != nil {
		return nil, fmt.Errorf("analyze %q: %w", test.Name, err)
	}

	result := postfilter.Run(ctx, table, test.Metrics, candidates, postfilter.Options{}, logger)
	return &coordinator.AnalysisResult{
		Test:       test,
		Table:      table,
		Survivors:  result.Survivors,
		Regression: result.Regression,
	}, nil
}
