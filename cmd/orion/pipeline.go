// Copyright (C) 2023 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package main

import (
	"context"
	"fmt"
	"time"

	"github.com/cloud-bulldozer/orion-go/internal/assembler"
	"github.com/cloud-bulldozer/orion-go/internal/changepoint"
	"github.com/cloud-bulldozer/orion-go/internal/coordinator"
	"github.com/cloud-bulldozer/orion-go/internal/enrich"
	"github.com/cloud-bulldozer/orion-go/internal/indexclient"
	"github.com/cloud-bulldozer/orion-go/internal/lookback"
	"github.com/cloud-bulldozer/orion-go/internal/postfilter"
	"github.com/cloud-bulldozer/orion-go/pkg/log"
	"github.com/cloud-bulldozer/orion-go/pkg/schema"
)

// pipelineEnv carries the wiring every test's analysis needs, built
// once in main() and threaded into each per-variant Analyze closure.
// Grounded on orion/run_test.py's per-test driver loop.
type pipelineEnv struct {
	esConfig       indexclient.Config
	algorithmTag   changepoint.Tag
	algorithmOpts  changepoint.Options
	initialWindow  lookback.Window
	maxRows        int
	acks           []schema.AckEntry
	noAck          bool
	convertTinyURL bool
	shortener      enrich.Shortener
	jobFilter      bool
	log            *log.Logger
}

// analyzeOnce runs lookup → (optional job filter) → assemble →
// change-point analysis for one test variant against one window, the
// operation both the Coordinator's top-level Analyze and the
// Post-Filter Pipeline's Expander are built from (spec §4.5, §4.4
// step 5).
func (e pipelineEnv) analyzeOnce(ctx context.Context, test schema.Test, window lookback.Window, maxRows int) (*schema.Table, map[string][]schema.ChangePoint, error) {
	idx, err := indexclient.New(e.esConfig, test.MetadataIndex, test.BenchmarkIndex, e.log)
	if err != nil {
		return nil, nil, fmt.Errorf("pipeline: %w", err)
	}

	runs, err := idx.Lookup(ctx, test.Metadata, test, window.ISODate(), maxRows)
	if err != nil {
		return nil, nil, fmt.Errorf("pipeline: lookup %q: %w", test.Name, err)
	}
	if len(runs) == 0 {
		return nil, nil, nil
	}

	// JobFilter only applies to kube-burner-style benchmarks, identified
	// by a configured benchmark_index (the index job-summary documents
	// live in), and only when the operator hasn't disabled it via
	// --node-count (spec §4.1).
	if e.jobFilter && test.BenchmarkIndex != "" {
		runs, err = filterByJobIterations(ctx, idx, runs, test.UUIDFieldOrDefault())
		if err != nil {
			return nil, nil, fmt.Errorf("pipeline: job filter %q: %w", test.Name, err)
		}
		if len(runs) == 0 {
			return nil, nil, nil
		}
	}

	table, err := assembler.Assemble(ctx, idx, runs, test, e.log, assembler.Options{
		ConvertTinyURL: e.convertTinyURL,
		Shortener:      e.shortener,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("pipeline: assemble %q: %w", test.Name, err)
	}
	if table.RowCount() == 0 {
		return nil, nil, nil
	}

	analyzer, err := changepoint.NewAnalyzer(e.algorithmTag, e.algorithmOpts)
	if err != nil {
		return nil, nil, fmt.Errorf("pipeline: %w", err)
	}
	candidates, err := analyzer.Analyze(table, test.Metrics)
	if err != nil {
		return nil, nil, fmt.Errorf("pipeline: analyze %q: %w", test.Name, err)
	}
	return table, candidates, nil
}

// filterByJobIterations narrows runs to the subset the Index Client's
// kube-burner job-iteration filter keeps, preserving each surviving
// run's original descriptor (spec §4.1: JobFilter, gated by the
// absence of --node-count).
func filterByJobIterations(ctx context.Context, idx *indexclient.Client, runs []schema.RunDescriptor, uuidField string) ([]schema.RunDescriptor, error) {
	ids := make([]schema.RunID, len(runs))
	for i, r := range runs {
		ids[i] = r.RunID
	}
	kept, err := idx.JobFilter(ctx, ids, uuidField)
	if err != nil {
		return nil, err
	}
	keepSet := make(map[schema.RunID]bool, len(kept))
	for _, id := range kept {
		keepSet[id] = true
	}
	filtered := make([]schema.RunDescriptor, 0, len(runs))
	for _, r := range runs {
		if keepSet[r.RunID] {
			filtered = append(filtered, r)
		}
	}
	return filtered, nil
}

// Analyze is the function the Coordinator submits to its pull/
// periodic tasks: run the base analysis, then apply the Post-Filter
// Pipeline with an Expander that re-invokes analyzeOnce at an enlarged
// look-back (spec §4.4 step 5, §4.5).
func (e pipelineEnv) Analyze(ctx context.Context, test schema.Test) (*coordinator.AnalysisResult, error) {
	table, candidates, err := e.analyzeOnce(ctx, test, e.initialWindow, e.maxRows)
	if err != nil {
		return nil, err
	}
	if table == nil {
		return &coordinator.AnalysisResult{Test: test}, nil
	}

	var acks []schema.AckEntry
	if !e.noAck {
		acks = e.acks
	}

	expand := func(ctx context.Context, incrementDays, expandedMaxRows int) (*schema.Table, map[string][]schema.ChangePoint, error) {
		window := e.initialWindow.Expand(time.Duration(incrementDays)*24*time.Hour, time.Now())
		return e.analyzeOnce(ctx, test, window, expandedMaxRows)
	}

	result := postfilter.Run(ctx, table, test.Metrics, candidates, postfilter.Options{
		Acks:   acks,
		Expand: expand,
	}, e.log)

	return &coordinator.AnalysisResult{
		Test:       test,
		Table:      table,
		Survivors:  result.Survivors,
		Regression: result.Regression,
	}, nil
}
