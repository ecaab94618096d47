// Copyright (C) 2023 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package changepoint

import (
	"github.com/cloud-bulldozer/orion-go/internal/stat"
	"github.com/cloud-bulldozer/orion-go/pkg/schema"
)

// cmr is the Comparative-Mean algorithm: collapse all rows except the
// last into a single averaged row, then emit exactly one change point
// per metric comparing that aggregated baseline to the latest
// observation. Grounded on orion/algorithms/cmr/cmr.py.
type cmr struct{}

// NewCMR constructs the comparative-mean Analyzer.
func NewCMR() Analyzer {
	return &cmr{}
}

func (c *cmr) Analyze(table *schema.Table, metrics []schema.MetricSpec) (map[string][]schema.ChangePoint, error) {
	if err := normalizeTimestamps(table); err != nil {
		return nil, err
	}

	result := make(map[string][]schema.ChangePoint, len(metrics))
	if table.RowCount() < 2 {
		for _, m := range metrics {
			result[m.ColumnName()] = nil
		}
		return result, nil
	}

	latest := table.Rows[len(table.Rows)-1]
	history := table.Rows[:len(table.Rows)-1]

	for _, m := range metrics {
		col := m.ColumnName()
		var values []float64
		for _, row := range history {
			if v, ok := row.Value(col); ok {
				values = append(values, v)
			}
		}
		if len(values) == 0 {
			result[col] = nil
			continue
		}
		meanBefore, _ := stat.Mean(values)
		meanAfter, ok := latest.Value(col)
		if !ok {
			result[col] = nil
			continue
		}
		// index=1 matches the python original's ChangePoint(index=1,...):
		// the collapsed table always has exactly two rows (baseline,
		// latest), so the change sits at the second row.
		result[col] = []schema.ChangePoint{{
			Metric: col,
			Index:  1,
			Time:   latest.Timestamp,
			Stats: schema.Stats{
				MeanBefore: meanBefore,
				MeanAfter:  meanAfter,
				StdBefore:  0,
				StdAfter:   0,
				PValue:     1,
			},
		}}
	}
	return result, nil
}
