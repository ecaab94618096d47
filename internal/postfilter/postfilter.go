// Copyright (C) 2023 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package postfilter is the Post-Filter Pipeline (C4): direction, ack,
// relative-magnitude threshold, correlation gate, early-boundary
// expansion, and insufficient-future-data filters, applied in the
// order fixed by spec §4.4. This is a from-spec implementation: the
// python original's equivalent logic lives inside the external
// "hunter" library, out of scope per spec §1.
package postfilter

import (
	"context"

	"github.com/cloud-bulldozer/orion-go/pkg/log"
	"github.com/cloud-bulldozer/orion-go/pkg/schema"
)

// Early and MinFuture are the default boundary-handling tunables
// named in spec §4.4; both are overridable per Options.
const (
	DefaultEarly     = 5
	DefaultMinFuture = 5
	lookbackIncrement = 10 // days
	maxRowsIncrement  = 5
)

// Expander re-runs the lookup-through-analyze sub-pipeline with an
// expanded look-back window, returning the new table and the raw
// (pre-filter) change points for the same metrics. It is supplied by
// the Coordinator (C5), which owns the index client and analyzer used
// to produce it (spec §4.4 step 5).
type Expander func(ctx context.Context, lookbackDays int, maxRows int) (*schema.Table, map[string][]schema.ChangePoint, error)

// Options configures one Run call.
type Options struct {
	Early     int // 0 selects DefaultEarly; a negative value disables early-boundary expansion
	MinFuture int
	Acks      []schema.AckEntry
	Expand    Expander
}

func (o Options) earlyOrDefault() int {
	if o.Early == 0 {
		return DefaultEarly
	}
	return o.Early
}

func (o Options) minFutureOrDefault() int {
	if o.MinFuture <= 0 {
		return DefaultMinFuture
	}
	return o.MinFuture
}

// Result is the outcome of one post-filter run.
type Result struct {
	Survivors  map[string][]schema.ChangePoint
	Regression bool
}

// Run applies the full pipeline to candidates produced by a
// Change-Point Engine over table, for the given metric specs.
func Run(ctx context.Context, table *schema.Table, metrics []schema.MetricSpec, candidates map[string][]schema.ChangePoint, opts Options, logger *log.Logger) Result {
	byColumn := make(map[string]schema.MetricSpec, len(metrics))
	byName := make(map[string]schema.MetricSpec, len(metrics))
	for _, m := range metrics {
		byColumn[m.ColumnName()] = m
		byName[m.Name] = m
	}

	stage := make(map[string][]schema.ChangePoint, len(candidates))
	for col, points := range candidates {
		spec := byColumn[col]
		stage[col] = applyDirection(points, spec.Direction)
	}

	ackSet := buildAckSet(table, opts.Acks)
	for col, points := range stage {
		stage[col] = applyAck(points, col, table, ackSet)
	}

	for col, points := range stage {
		spec := byColumn[col]
		stage[col] = applyThreshold(points, spec.Threshold)
	}

	for col, points := range stage {
		spec := byColumn[col]
		if spec.Correlation == "" {
			continue
		}
		correlated, ok := byName[spec.Correlation]
		if !ok {
			continue
		}
		stage[col] = applyCorrelation(points, stage[correlated.ColumnName()], spec.ContextOrDefault())
	}

	early := opts.earlyOrDefault()
	rowCount := table.RowCount()
	effectiveRowCount := make(map[string]int, len(stage))
	for col, points := range stage {
		effectiveRowCount[col] = rowCount
		kept, needsExpansion := splitEarly(points, early)
		if len(needsExpansion) == 0 {
			stage[col] = kept
			continue
		}
		if early == 0 || opts.Expand == nil {
			stage[col] = kept
			continue
		}
		expanded, expandedRowCount, survived := tryExpand(ctx, opts.Expand, col, rowCount, logger)
		if survived {
			kept = append(kept, expanded...)
			effectiveRowCount[col] = expandedRowCount
		}
		stage[col] = kept
	}

	minFuture := opts.minFutureOrDefault()
	for col, points := range stage {
		stage[col] = applyFutureWindow(points, effectiveRowCount[col], early, minFuture)
	}

	return Result{Survivors: stage, Regression: regressionFlag(stage)}
}

func regressionFlag(survivors map[string][]schema.ChangePoint) bool {
	for _, points := range survivors {
		if len(points) > 0 {
			return true
		}
	}
	return false
}

// applyDirection drops candidates whose observed movement contradicts
// the metric's configured direction (spec §4.4 step 1).
func applyDirection(points []schema.ChangePoint, direction schema.Direction) []schema.ChangePoint {
	if direction == schema.DirectionAny {
		return points
	}
	var kept []schema.ChangePoint
	for _, p := range points {
		if direction == schema.DirectionUp && p.Stats.MeanBefore > p.Stats.MeanAfter {
			continue
		}
		if direction == schema.DirectionDown && p.Stats.MeanBefore < p.Stats.MeanAfter {
			continue
		}
		kept = append(kept, p)
	}
	return kept
}

type ackKey struct {
	runID  schema.RunID
	metric string
}

// buildAckSet collects every ack entry as a (RunID, metric) key;
// applyAck maps each candidate's row index to its RunID through the
// table and looks that key up (spec §4.4 step 2).
func buildAckSet(table *schema.Table, acks []schema.AckEntry) map[ackKey]bool {
	set := make(map[ackKey]bool, len(acks))
	for _, a := range acks {
		set[ackKey{runID: a.UUID, metric: a.Metric}] = true
	}
	return set
}

func applyAck(points []schema.ChangePoint, column string, table *schema.Table, ackSet map[ackKey]bool) []schema.ChangePoint {
	var kept []schema.ChangePoint
	for _, p := range points {
		runID := table.RunIDAt(p.Index)
		if ackSet[ackKey{runID: runID, metric: column}] {
			continue
		}
		kept = append(kept, p)
	}
	return kept
}

// applyThreshold discards candidates whose relative magnitude change
// falls below the metric's configured threshold (spec §4.4 step 3).
func applyThreshold(points []schema.ChangePoint, threshold float64) []schema.ChangePoint {
	if threshold <= 0 {
		return points
	}
	var kept []schema.ChangePoint
	for _, p := range points {
		if p.Stats.MeanBefore == 0 {
			continue
		}
		diff := p.Stats.MeanAfter - p.Stats.MeanBefore
		if diff < 0 {
			diff = -diff
		}
		base := p.Stats.MeanBefore
		if base < 0 {
			base = -base
		}
		pct := diff / base * 100
		if pct < threshold {
			continue
		}
		kept = append(kept, p)
	}
	return kept
}

// applyCorrelation keeps a candidate at index i only if the correlated
// metric's own surviving list has a change point within ±context of i
// (spec §4.4 step 4).
func applyCorrelation(points, correlated []schema.ChangePoint, context int) []schema.ChangePoint {
	var kept []schema.ChangePoint
	for _, p := range points {
		for _, c := range correlated {
			if c.Index >= p.Index-context && c.Index <= p.Index+context {
				kept = append(kept, p)
				break
			}
		}
	}
	return kept
}

// splitEarly separates candidates sitting at index < early (requiring
// expansion) from those that do not.
func splitEarly(points []schema.ChangePoint, early int) (kept, needsExpansion []schema.ChangePoint) {
	if early <= 0 {
		return points, nil
	}
	for _, p := range points {
		if p.Index < early {
			needsExpansion = append(needsExpansion, p)
		} else {
			kept = append(kept, p)
		}
	}
	return kept, needsExpansion
}

// tryExpand requests an expanded re-run (look-back +10 days, maxRows =
// currentRowCount+5) and reports whether the expanded analysis still
// yields a change point for column AND returned strictly more rows
// than before (spec §4.4 step 5).
func tryExpand(ctx context.Context, expand Expander, column string, rowCount int, logger *log.Logger) ([]schema.ChangePoint, int, bool) {
	table, candidates, err := expand(ctx, lookbackIncrement, rowCount+maxRowsIncrement)
	if err != nil {
		logger.Warnf("postfilter: expansion for %q failed: %v", column, err)
		return nil, 0, false
	}
	expandedRowCount := table.RowCount()
	if expandedRowCount <= rowCount {
		return nil, 0, false
	}
	points := candidates[column]
	if len(points) == 0 {
		return nil, 0, false
	}
	return points, expandedRowCount, true
}

// applyFutureWindow discards any remaining candidate whose index has
// fewer than minFuture rows following it, unless it was already in
// the early region (already handled by the expansion step above)
// (spec §4.4 step 6).
func applyFutureWindow(points []schema.ChangePoint, rowCount, early, minFuture int) []schema.ChangePoint {
	var kept []schema.ChangePoint
	for _, p := range points {
		if p.Index < early {
			kept = append(kept, p)
			continue
		}
		if rowCount-p.Index-1 < minFuture {
			continue
		}
		kept = append(kept, p)
	}
	return kept
}
