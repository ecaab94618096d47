// Copyright (C) 2023 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package changepoint_test

import (
	"testing"

	"github.com/cloud-bulldozer/orion-go/internal/changepoint"
	"github.com/cloud-bulldozer/orion-go/pkg/schema"
)

func ptr(v float64) *float64 { return &v }

func buildTable(values []float64, column string) *schema.Table {
	rows := make([]schema.Row, len(values))
	for i, v := range values {
		rows[i] = schema.Row{
			RunID:     schema.RunID("run-" + string(rune('a'+i))),
			Timestamp: int64(1700000000 + i*3600),
			Version:   "1.0",
			Metrics:   map[string]*float64{column: ptr(v)},
		}
	}
	return &schema.Table{Columns: []string{column}, Rows: rows}
}

func TestNewAnalyzerFactory(t *testing.T) {
	if _, err := changepoint.NewAnalyzer("bogus", changepoint.Options{}); err == nil {
		t.Fatal("expected error for unknown tag")
	}

	a, err := changepoint.NewAnalyzer(changepoint.TagCMR, changepoint.Options{})
	if err != nil {
		t.Fatal(err)
	}
	if a == nil {
		t.Fatal("expected non-nil CMR analyzer")
	}

	if _, err := changepoint.NewAnalyzer(changepoint.TagEDivisive, changepoint.Options{}); err != nil {
		t.Fatal("edivisive factory should not itself validate SeriesAnalyzer presence")
	}
}

func TestParseTag(t *testing.T) {
	for _, tag := range []changepoint.Tag{changepoint.TagEDivisive, changepoint.TagIsolationForest, changepoint.TagCMR} {
		got, err := changepoint.ParseTag(string(tag))
		if err != nil || got != tag {
			t.Fatalf("ParseTag(%q) = %v, %v", tag, got, err)
		}
	}
	if _, err := changepoint.ParseTag("nonsense"); err == nil {
		t.Fatal("expected error for unknown algorithm name")
	}
}

func TestCMRAnalyzeFlagsShift(t *testing.T) {
	metrics := []schema.MetricSpec{{Name: "throughput", MetricOfInterest: "value"}}
	column := metrics[0].ColumnName()
	table := buildTable([]float64{100, 101, 99, 100, 200}, column)

	analyzer := changepoint.NewCMR()
	result, err := analyzer.Analyze(table, metrics)
	if err != nil {
		t.Fatal(err)
	}
	points := result[column]
	if len(points) != 1 {
		t.Fatalf("expected exactly one change point, got %d", len(points))
	}
	cp := points[0]
	if cp.Index != 1 {
		t.Fatalf("CMR always reports index 1 on its two-row collapse, got %d", cp.Index)
	}
	if cp.Stats.MeanAfter != 200 {
		t.Fatalf("MeanAfter = %v, want 200", cp.Stats.MeanAfter)
	}
	wantBefore := (100.0 + 101 + 99 + 100) / 4
	if cp.Stats.MeanBefore != wantBefore {
		t.Fatalf("MeanBefore = %v, want %v", cp.Stats.MeanBefore, wantBefore)
	}
}

func TestCMRAnalyzeTooFewRows(t *testing.T) {
	metrics := []schema.MetricSpec{{Name: "throughput", MetricOfInterest: "value"}}
	column := metrics[0].ColumnName()
	table := buildTable([]float64{100}, column)

	result, err := changepoint.NewCMR().Analyze(table, metrics)
	if err != nil {
		t.Fatal(err)
	}
	if len(result[column]) != 0 {
		t.Fatalf("expected no change points with a single row, got %v", result[column])
	}
}

func TestIsolationForestFlagsLargeSpike(t *testing.T) {
	metrics := []schema.MetricSpec{{Name: "latency", MetricOfInterest: "value", Direction: schema.DirectionUp}}
	column := metrics[0].ColumnName()
	values := []float64{10, 11, 9, 10, 11, 10, 9, 10, 11, 10, 500}
	table := buildTable(values, column)

	analyzer := changepoint.NewIsolationForest(0, 0)
	result, err := analyzer.Analyze(table, metrics)
	if err != nil {
		t.Fatal(err)
	}
	points := result[column]
	var flaggedLast bool
	for _, p := range points {
		if p.Index == len(values)-1 {
			flaggedLast = true
		}
	}
	if !flaggedLast {
		t.Fatalf("expected the final spike (index %d) to be flagged, got %+v", len(values)-1, points)
	}
}

func TestIsolationForestNoMetrics(t *testing.T) {
	table := buildTable(nil, "x")
	analyzer := changepoint.NewIsolationForest(5, 10)
	result, err := analyzer.Analyze(table, []schema.MetricSpec{{Name: "x", MetricOfInterest: "value"}})
	if err != nil {
		t.Fatal(err)
	}
	if len(result["x_value"]) != 0 {
		t.Fatal("expected no change points on an empty table")
	}
}

type stubSeriesAnalyzer struct {
	calls []string
}

func (s *stubSeriesAnalyzer) Analyze(points []changepoint.SeriesPoint, metric string) ([]schema.ChangePoint, error) {
	s.calls = append(s.calls, metric)
	if len(points) == 0 {
		return nil, nil
	}
	return []schema.ChangePoint{{Metric: metric, Index: len(points) - 1, Time: points[len(points)-1].Time}}, nil
}

func TestEDivisiveDelegatesToSeriesAnalyzer(t *testing.T) {
	metrics := []schema.MetricSpec{{Name: "cpu", MetricOfInterest: "value"}}
	column := metrics[0].ColumnName()
	table := buildTable([]float64{1, 2, 3}, column)

	stub := &stubSeriesAnalyzer{}
	analyzer := changepoint.NewEDivisive(stub)
	result, err := analyzer.Analyze(table, metrics)
	if err != nil {
		t.Fatal(err)
	}
	if len(stub.calls) != 1 || stub.calls[0] != column {
		t.Fatalf("expected one call for column %q, got %v", column, stub.calls)
	}
	if len(result[column]) != 1 {
		t.Fatalf("expected one change point passed through, got %v", result[column])
	}
}

func TestEDivisiveRequiresSeriesAnalyzer(t *testing.T) {
	analyzer := changepoint.NewEDivisive(nil)
	_, err := analyzer.Analyze(buildTable([]float64{1, 2}, "x_value"), []schema.MetricSpec{{Name: "x", MetricOfInterest: "value"}})
	if err == nil {
		t.Fatal("expected error when no SeriesAnalyzer is configured")
	}
}

func TestReferenceSeriesAnalyzerFindsMeanShift(t *testing.T) {
	analyzer := changepoint.NewReferenceSeriesAnalyzer()
	points := []changepoint.SeriesPoint{
		{Time: 1, Values: map[string]float64{"v": 10}},
		{Time: 2, Values: map[string]float64{"v": 11}},
		{Time: 3, Values: map[string]float64{"v": 9}},
		{Time: 4, Values: map[string]float64{"v": 50}},
		{Time: 5, Values: map[string]float64{"v": 51}},
		{Time: 6, Values: map[string]float64{"v": 49}},
	}
	cps, err := analyzer.Analyze(points, "v")
	if err != nil {
		t.Fatal(err)
	}
	if len(cps) != 1 {
		t.Fatalf("expected exactly one change point, got %d", len(cps))
	}
	if cps[0].Index != 3 {
		t.Fatalf("expected the shift at index 3, got %d", cps[0].Index)
	}
	if cps[0].Stats.PValue < 0 || cps[0].Stats.PValue > 1 {
		t.Fatalf("PValue out of [0,1]: %v", cps[0].Stats.PValue)
	}
}

func TestReferenceSeriesAnalyzerTooShort(t *testing.T) {
	analyzer := changepoint.NewReferenceSeriesAnalyzer()
	cps, err := analyzer.Analyze([]changepoint.SeriesPoint{{Time: 1, Values: map[string]float64{"v": 1}}}, "v")
	if err != nil {
		t.Fatal(err)
	}
	if cps != nil {
		t.Fatalf("expected nil for too-short series, got %v", cps)
	}
}
