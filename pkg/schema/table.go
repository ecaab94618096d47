// Copyright (C) 2023 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package schema

// Row is one entry of an assembled Table: the fixed header fields
// named in spec §3 plus the open-ended metric-column map. A nil entry
// in Metrics means that metric was null for this RunID — the column
// is retained, not dropped (spec §4.2 edge cases).
type Row struct {
	RunID     RunID
	Timestamp int64 // seconds since epoch, normalized per NormalizeTimestamp
	Version   string
	BuildURL  string
	Metrics   map[string]*float64
	Display   map[string]string
}

// Value returns the metric value for col, or (0, false) if the cell is
// null or the column does not exist on this row.
func (r Row) Value(col string) (float64, bool) {
	v, ok := r.Metrics[col]
	if !ok || v == nil {
		return 0, false
	}
	return *v, true
}

// Table is the assembled, joined dataset handed to the Change-Point
// Engine. It is immutable once built within one analysis cycle: the
// adaptive-expansion path in the Post-Filter Pipeline builds a new
// Table rather than mutating this one (spec §3 Lifecycle).
type Table struct {
	Columns []string // metric column names, in metric-spec order
	Rows    []Row
}

// RowCount returns the number of rows, the denominator used by every
// boundary invariant in the Post-Filter Pipeline.
func (t *Table) RowCount() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Column extracts one metric column as a dense []*float64 aligned with
// t.Rows, for algorithms that operate on a single series at a time.
func (t *Table) Column(name string) []*float64 {
	out := make([]*float64, len(t.Rows))
	for i, row := range t.Rows {
		out[i] = row.Metrics[name]
	}
	return out
}

// RunIDAt returns the RunID of the row at index, used by the
// Acknowledgement filter to resolve (index, metric) pairs back to
// (RunID, metric) for ack matching.
func (t *Table) RunIDAt(index int) RunID {
	if index < 0 || index >= len(t.Rows) {
		return ""
	}
	return t.Rows[index].RunID
}

// Stats carries the comparative statistics the Change-Point Engine
// attaches to every change point (spec §3).
type Stats struct {
	MeanBefore float64
	MeanAfter  float64
	StdBefore  float64
	StdAfter   float64
	PValue     float64
}

// PercentageChange is (MeanAfter - MeanBefore) / |MeanBefore| * 100,
// the figure the Relative-Magnitude Threshold filter and every report
// formatter compare against. Returns 0 when MeanBefore is 0, matching
// the "no baseline to compare against" convention used throughout the
// post-filter pipeline.
func (s Stats) PercentageChange() float64 {
	if s.MeanBefore == 0 {
		return 0
	}
	return (s.MeanAfter - s.MeanBefore) / absFloat(s.MeanBefore) * 100
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// ChangePoint is one candidate produced by a Change-Point Engine
// algorithm for one metric column, before post-filtering.
type ChangePoint struct {
	Metric string
	Index  int
	Time   int64
	Stats  Stats
}
