// Copyright (C) 2023 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package assembler_test

import (
	"context"
	"testing"

	"github.com/cloud-bulldozer/orion-go/internal/assembler"
	"github.com/cloud-bulldozer/orion-go/internal/indexclient"
	"github.com/cloud-bulldozer/orion-go/pkg/log"
	"github.com/cloud-bulldozer/orion-go/pkg/schema"
)

// fakeIndex serves canned per-metric points keyed by metric name, so
// tests can exercise the outer join without a real search index.
type fakeIndex struct {
	points map[string][]indexclient.MetricPoint
}

func (f *fakeIndex) MetricValues(ctx context.Context, runIDs []schema.RunID, spec schema.MetricSpec, uuidField, timestampField string) ([]indexclient.MetricPoint, error) {
	return f.points[spec.Name], nil
}

func (f *fakeIndex) AggregatedMetricValues(ctx context.Context, runIDs []schema.RunID, spec schema.MetricSpec, uuidField, timestampField string) ([]indexclient.MetricPoint, error) {
	return f.points[spec.Name], nil
}

func runs(ids ...schema.RunID) []schema.RunDescriptor {
	out := make([]schema.RunDescriptor, len(ids))
	for i, id := range ids {
		out[i] = schema.RunDescriptor{RunID: id, Version: "4.15", BuildURL: "http://build/" + string(id)}
	}
	return out
}

func TestAssembleOuterJoinKeepsUnionOfRunIDs(t *testing.T) {
	// latency was only observed on run-1 and run-2; throughput only on
	// run-2 and run-3 (a metric added later in a test's history must
	// not retroactively shrink it, spec §4.2 rationale).
	idx := &fakeIndex{points: map[string][]indexclient.MetricPoint{
		"latency":    {{RunID: "run-1", Timestamp: 100, Value: 10}, {RunID: "run-2", Timestamp: 200, Value: 20}},
		"throughput": {{RunID: "run-2", Timestamp: 200, Value: 500}, {RunID: "run-3", Timestamp: 300, Value: 600}},
	}}
	test := schema.Test{
		Name: "t1",
		Metrics: []schema.MetricSpec{
			{Name: "latency", MetricOfInterest: "value"},
			{Name: "throughput", MetricOfInterest: "value"},
		},
	}
	tbl, err := assembler.Assemble(context.Background(), idx, runs("run-1", "run-2", "run-3"), test, log.NewDefault(), assembler.Options{})
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if tbl.RowCount() != 3 {
		t.Fatalf("expected 3 rows from the union of RunIDs, got %d", tbl.RowCount())
	}
	for _, row := range tbl.Rows {
		if row.RunID == "run-1" {
			if _, ok := row.Value("throughput_value"); ok {
				t.Fatalf("run-1 has no throughput observation, expected a null cell")
			}
		}
	}
}

func TestAssembleIsOrderIndependentModuloColumnOrder(t *testing.T) {
	idx := &fakeIndex{points: map[string][]indexclient.MetricPoint{
		"latency":    {{RunID: "run-1", Timestamp: 100, Value: 10}, {RunID: "run-2", Timestamp: 200, Value: 20}},
		"throughput": {{RunID: "run-1", Timestamp: 100, Value: 500}, {RunID: "run-2", Timestamp: 200, Value: 600}},
	}}
	a := schema.MetricSpec{Name: "latency", MetricOfInterest: "value"}
	b := schema.MetricSpec{Name: "throughput", MetricOfInterest: "value"}

	forward := schema.Test{Name: "t1", Metrics: []schema.MetricSpec{a, b}}
	backward := schema.Test{Name: "t1", Metrics: []schema.MetricSpec{b, a}}

	t1, err := assembler.Assemble(context.Background(), idx, runs("run-1", "run-2"), forward, log.NewDefault(), assembler.Options{})
	if err != nil {
		t.Fatalf("Assemble forward: %v", err)
	}
	t2, err := assembler.Assemble(context.Background(), idx, runs("run-1", "run-2"), backward, log.NewDefault(), assembler.Options{})
	if err != nil {
		t.Fatalf("Assemble backward: %v", err)
	}
	if t1.RowCount() != t2.RowCount() {
		t.Fatalf("row count differs by metric-spec order: %d vs %d", t1.RowCount(), t2.RowCount())
	}
	byID := func(tbl *schema.Table) map[schema.RunID]schema.Row {
		m := make(map[schema.RunID]schema.Row, tbl.RowCount())
		for _, r := range tbl.Rows {
			m[r.RunID] = r
		}
		return m
	}
	m1, m2 := byID(t1), byID(t2)
	for id, row1 := range m1 {
		row2, ok := m2[id]
		if !ok {
			t.Fatalf("run %q missing from backward-ordered assembly", id)
		}
		v1, _ := row1.Value("latency_value")
		v2, _ := row2.Value("latency_value")
		if v1 != v2 {
			t.Fatalf("latency_value differs for %q depending on metric-spec order: %v vs %v", id, v1, v2)
		}
	}
}

func TestAssembleDeduplicatesByRunID(t *testing.T) {
	// MetricValues should already de-duplicate first-wins on RunID (C1
	// contract), but the assembler's join must not resurrect a second
	// row for the same RunID even if a per-metric frame repeats it.
	idx := &fakeIndex{points: map[string][]indexclient.MetricPoint{
		"latency": {
			{RunID: "run-1", Timestamp: 100, Value: 10},
			{RunID: "run-1", Timestamp: 100, Value: 999},
		},
	}}
	test := schema.Test{Name: "t1", Metrics: []schema.MetricSpec{{Name: "latency", MetricOfInterest: "value"}}}
	tbl, err := assembler.Assemble(context.Background(), idx, runs("run-1"), test, log.NewDefault(), assembler.Options{})
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if tbl.RowCount() != 1 {
		t.Fatalf("expected exactly one row per RunID, got %d", tbl.RowCount())
	}
}

func TestAssembleSortsByTimestampAscending(t *testing.T) {
	idx := &fakeIndex{points: map[string][]indexclient.MetricPoint{
		"latency": {
			{RunID: "run-3", Timestamp: 300, Value: 30},
			{RunID: "run-1", Timestamp: 100, Value: 10},
			{RunID: "run-2", Timestamp: 200, Value: 20},
		},
	}}
	test := schema.Test{Name: "t1", Metrics: []schema.MetricSpec{{Name: "latency", MetricOfInterest: "value"}}}
	tbl, err := assembler.Assemble(context.Background(), idx, runs("run-1", "run-2", "run-3"), test, log.NewDefault(), assembler.Options{})
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	var last int64 = -1
	for _, row := range tbl.Rows {
		if row.Timestamp < last {
			t.Fatalf("rows are not sorted ascending by timestamp: %+v", tbl.Rows)
		}
		last = row.Timestamp
	}
}

func TestAssembleEmptyJoinReturnsNilTable(t *testing.T) {
	idx := &fakeIndex{points: map[string][]indexclient.MetricPoint{}}
	test := schema.Test{Name: "t1", Metrics: []schema.MetricSpec{{Name: "latency", MetricOfInterest: "value"}}}
	tbl, err := assembler.Assemble(context.Background(), idx, nil, test, log.NewDefault(), assembler.Options{})
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if tbl != nil {
		t.Fatalf("expected a nil table for zero matched rows, got %+v", tbl)
	}
}
