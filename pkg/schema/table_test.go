// Copyright (C) 2023 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package schema_test

import (
	"testing"

	"github.com/cloud-bulldozer/orion-go/pkg/schema"
)

func TestRowValueReturnsFalseForNullOrMissingCell(t *testing.T) {
	row := schema.Row{Metrics: map[string]*float64{"latency_value": nil}}
	if _, ok := row.Value("latency_value"); ok {
		t.Fatal("expected a null cell to report ok=false")
	}
	if _, ok := row.Value("missing_col"); ok {
		t.Fatal("expected a missing column to report ok=false")
	}
}

func TestTableColumnAlignsWithRows(t *testing.T) {
	v := 42.0
	tbl := &schema.Table{Rows: []schema.Row{
		{Metrics: map[string]*float64{"latency_value": &v}},
		{Metrics: map[string]*float64{}},
	}}
	col := tbl.Column("latency_value")
	if len(col) != 2 || col[0] == nil || *col[0] != 42 || col[1] != nil {
		t.Fatalf("unexpected column alignment: %+v", col)
	}
}

func TestTableRunIDAtBoundsChecked(t *testing.T) {
	tbl := &schema.Table{Rows: []schema.Row{{RunID: "run-1"}}}
	if tbl.RunIDAt(0) != "run-1" {
		t.Fatal("expected RunIDAt(0) to return the first row's RunID")
	}
	if tbl.RunIDAt(-1) != "" || tbl.RunIDAt(5) != "" {
		t.Fatal("expected out-of-range indices to return the empty RunID")
	}
}

func TestPercentageChangeZeroBaseline(t *testing.T) {
	s := schema.Stats{MeanBefore: 0, MeanAfter: 100}
	if pct := s.PercentageChange(); pct != 0 {
		t.Fatalf("expected a zero-baseline percentage change to be 0, got %v", pct)
	}
}

func TestPercentageChangeHandlesNegativeBaseline(t *testing.T) {
	s := schema.Stats{MeanBefore: -50, MeanAfter: -25}
	pct := s.PercentageChange()
	if pct != 50 {
		t.Fatalf("expected |mean_before| normalization to give +50%%, got %v", pct)
	}
}

func TestNilTableRowCountIsZero(t *testing.T) {
	var tbl *schema.Table
	if tbl.RowCount() != 0 {
		t.Fatal("expected a nil table to report zero rows")
	}
}
