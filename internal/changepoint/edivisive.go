// Copyright (C) 2023 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package changepoint

import (
	"fmt"

	"gonum.org/v1/gonum/stat"

	statutil "github.com/cloud-bulldozer/orion-go/internal/stat"
	"github.com/cloud-bulldozer/orion-go/pkg/schema"
)

// SeriesPoint is one row's worth of input the external series
// analyzer consumes: a timestamp and the full set of metric values
// for that row (spec §4.3: "parallel arrays of time, per-metric
// values, and per-run attributes").
type SeriesPoint struct {
	Time   int64
	Values map[string]float64
}

// SeriesAnalyzer is the pluggable external E-Divisive contract (spec
// §1 lists "the specific statistical E-Divisive routine" as an
// out-of-scope external collaborator, treated as a pluggable service).
// A production deployment wires in a real E-Divisive implementation;
// NewReferenceSeriesAnalyzer below is a default adapter, not a claim
// of matching any particular published E-Divisive routine's numerics.
type SeriesAnalyzer interface {
	Analyze(points []SeriesPoint, metric string) ([]schema.ChangePoint, error)
}

type eDivisive struct {
	series SeriesAnalyzer
}

// NewEDivisive constructs the E-Divisive Analyzer. series must not be
// nil; the engine delegates to it unchanged and hands the result to
// the Post-Filter Pipeline as-is (spec §4.3).
func NewEDivisive(series SeriesAnalyzer) Analyzer {
	return &eDivisive{series: series}
}

func (e *eDivisive) Analyze(table *schema.Table, metrics []schema.MetricSpec) (map[string][]schema.ChangePoint, error) {
	if e.series == nil {
		return nil, fmt.Errorf("changepoint: edivisive requires a SeriesAnalyzer")
	}
	if err := normalizeTimestamps(table); err != nil {
		return nil, err
	}

	points := make([]SeriesPoint, len(table.Rows))
	for i, row := range table.Rows {
		values := make(map[string]float64, len(row.Metrics))
		for col, v := range row.Metrics {
			if v != nil {
				values[col] = *v
			}
		}
		points[i] = SeriesPoint{Time: row.Timestamp, Values: values}
	}

	result := make(map[string][]schema.ChangePoint, len(metrics))
	for _, spec := range metrics {
		col := spec.ColumnName()
		cps, err := e.series.Analyze(points, col)
		if err != nil {
			return nil, fmt.Errorf("changepoint: edivisive metric %q: %w", col, err)
		}
		result[col] = cps
	}
	return result, nil
}

// referenceSeriesAnalyzer is a minimal, self-contained stand-in for a
// real E-Divisive library: it flags the single largest mean shift in
// the series using a two-sided sliding split, reporting at most one
// change point per metric. It exists so the pipeline is runnable
// end-to-end without an external dependency wired in, not as a
// faithful E-Divisive port (spec §1 Non-goals: "implementing its own
// statistical library").
type referenceSeriesAnalyzer struct {
	minSplit int
}

// NewReferenceSeriesAnalyzer returns the default SeriesAnalyzer used
// when no external E-Divisive service is configured.
func NewReferenceSeriesAnalyzer() SeriesAnalyzer {
	return &referenceSeriesAnalyzer{minSplit: 2}
}

func (r *referenceSeriesAnalyzer) Analyze(points []SeriesPoint, metric string) ([]schema.ChangePoint, error) {
	n := len(points)
	if n < 2*r.minSplit {
		return nil, nil
	}
	values := make([]float64, 0, n)
	present := make([]int, 0, n)
	for i, p := range points {
		if v, ok := p.Values[metric]; ok {
			values = append(values, v)
			present = append(present, i)
		}
	}
	if len(values) < 2*r.minSplit {
		return nil, nil
	}

	bestSplit := -1
	bestStat := 0.0
	for split := r.minSplit; split <= len(values)-r.minSplit; split++ {
		before := values[:split]
		after := values[split:]
		meanBefore := stat.Mean(before, nil)
		meanAfter := stat.Mean(after, nil)
		diff := meanAfter - meanBefore
		if diff < 0 {
			diff = -diff
		}
		if diff > bestStat {
			bestStat = diff
			bestSplit = split
		}
	}
	if bestSplit < 0 {
		return nil, nil
	}

	before := values[:bestSplit]
	after := values[bestSplit:]
	meanBefore := stat.Mean(before, nil)
	meanAfter := stat.Mean(after, nil)
	stdBefore := statutil.StdDev(before, meanBefore)
	stdAfter := statutil.StdDev(after, meanAfter)

	index := present[bestSplit]
	return []schema.ChangePoint{{
		Metric: metric,
		Index:  index,
		Time:   points[index].Time,
		Stats: schema.Stats{
			MeanBefore: meanBefore,
			MeanAfter:  meanAfter,
			StdBefore:  stdBefore,
			StdAfter:   stdAfter,
			PValue:     referencePValue(bestStat, stdBefore, stdAfter),
		},
	}}, nil
}

// referencePValue is a rough two-sample significance proxy: larger
// mean separations relative to pooled variance yield smaller values.
// Not a substitute for a real statistical test; see package doc.
func referencePValue(meanDiff, stdBefore, stdAfter float64) float64 {
	pooled := stdBefore + stdAfter
	if pooled == 0 {
		if meanDiff == 0 {
			return 1
		}
		return 0
	}
	ratio := meanDiff / pooled
	p := 1 / (1 + ratio)
	return clamp01(p)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
