// Copyright (C) 2023 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package report is the Report Formatter (C6): records (JSON-shaped),
// text (tabular), and JUnit XML output from one shared record shape.
// Grounded on orion/utils.py:json_to_junit/generate_tabular_output and
// orion/algorithms/algorithm.py:output_json/output_text/output_junit.
package report

import (
	"github.com/cloud-bulldozer/orion-go/internal/enrich"
	"github.com/cloud-bulldozer/orion-go/internal/tableutil"
	"github.com/cloud-bulldozer/orion-go/pkg/schema"
)

// MetricRecord is one metric's reported value on one row.
type MetricRecord struct {
	Value            float64           `json:"value"`
	PercentageChange float64           `json:"percentage_change"`
	Labels           map[string]string `json:"labels,omitempty"`
}

// Record is the shared shape every formatter renders from: one object
// per row, per spec §4.6.
type Record struct {
	RunID          schema.RunID            `json:"uuid"`
	Timestamp      string                  `json:"timestamp"`
	BuildURL       string                  `json:"buildUrl"`
	Version        string                  `json:"version"`
	Metrics        map[string]MetricRecord `json:"metrics"`
	IsChangePoint  bool                    `json:"is_changepoint"`
	GitHubContext  *enrich.GitHubContext   `json:"github_context,omitempty"`
	Display        map[string]string       `json:"display,omitempty"`
}

// Build assembles the shared Record slice from table and the
// post-filtered survivors, one Record per row in table order. metrics
// supplies each column's configured Labels (spec §4.6 record shape).
func Build(table *schema.Table, survivors map[string][]schema.ChangePoint, metrics []schema.MetricSpec) []Record {
	if table == nil {
		return nil
	}
	changeAt := changePointsByIndex(survivors)
	labelsByColumn := make(map[string]map[string]string, len(metrics))
	for _, m := range metrics {
		labelsByColumn[m.ColumnName()] = m.Labels
	}

	records := make([]Record, len(table.Rows))
	for i, row := range table.Rows {
		rowMetrics := make(map[string]MetricRecord, len(table.Columns))
		isChangePoint := false
		for _, col := range table.Columns {
			value, _ := row.Value(col)
			pct := 0.0
			if cp, ok := changeAt[rowMetricKey{i, col}]; ok {
				pct = cp.Stats.PercentageChange()
				isChangePoint = true
			}
			rowMetrics[col] = MetricRecord{Value: value, PercentageChange: pct, Labels: labelsByColumn[col]}
		}
		records[i] = Record{
			RunID:         row.RunID,
			Timestamp:     tableutil.DisplayString(row.Timestamp),
			BuildURL:      row.BuildURL,
			Version:       row.Version,
			Metrics:       rowMetrics,
			IsChangePoint: isChangePoint,
			Display:       row.Display,
		}
	}
	return records
}

type rowMetricKey struct {
	index  int
	column string
}

func changePointsByIndex(survivors map[string][]schema.ChangePoint) map[rowMetricKey]schema.ChangePoint {
	out := make(map[rowMetricKey]schema.ChangePoint)
	for col, points := range survivors {
		for _, p := range points {
			out[rowMetricKey{p.Index, col}] = p
		}
	}
	return out
}

// Collapse retains only change-point rows and their immediate ±1
// neighbors, for the --collapse CLI option (spec §4.6).
func Collapse(records []Record) []Record {
	keep := make([]bool, len(records))
	for i, r := range records {
		if r.IsChangePoint {
			for j := i - 1; j <= i+1; j++ {
				if j >= 0 && j < len(records) {
					keep[j] = true
				}
			}
		}
	}
	var out []Record
	for i, r := range records {
		if keep[i] {
			out = append(out, r)
		}
	}
	return out
}
