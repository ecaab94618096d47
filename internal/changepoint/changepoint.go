// Copyright (C) 2023 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package changepoint is the Change-Point Engine (C3): three
// interchangeable algorithms behind one Analyzer interface, producing
// a uniform mapping of metric column to candidate change points.
// Grounded on orion/algorithms/algorithm.py's base contract and the
// per-algorithm files under pkg/algorithms and orion/algorithms/cmr.
package changepoint

import (
	"fmt"

	"github.com/cloud-bulldozer/orion-go/internal/tableutil"
	"github.com/cloud-bulldozer/orion-go/pkg/schema"
)

// Analyzer is the interface capability set spec.md's design notes
// call for: one method producing a uniform list of change points per
// metric column.
type Analyzer interface {
	// Analyze runs the algorithm over table for the given metric
	// specs and returns the candidate change points keyed by column
	// name, before any post-filtering.
	Analyze(table *schema.Table, metrics []schema.MetricSpec) (map[string][]schema.ChangePoint, error)
}

// Tag names one of the three algorithm variants named in spec §4.3.
type Tag string

const (
	TagEDivisive       Tag = "edivisive"
	TagIsolationForest Tag = "isolation-forest"
	TagCMR             Tag = "cmr"
)

// NewAnalyzer is the factory: a tag-to-constructor mapping, per
// spec.md's design notes ("the factory is a tag-to-constructor
// mapping").
func NewAnalyzer(tag Tag, opts Options) (Analyzer, error) {
	switch tag {
	case TagEDivisive:
		return NewEDivisive(opts.SeriesAnalyzer), nil
	case TagIsolationForest:
		return NewIsolationForest(opts.AnomalyWindow, opts.MinAnomalyPercent), nil
	case TagCMR:
		return NewCMR(), nil
	default:
		return nil, fmt.Errorf("changepoint: unknown algorithm tag %q", tag)
	}
}

// ParseTag maps the daemon's --algorithm flag value onto a Tag,
// accepting the same names NewAnalyzer's tag constants use.
func ParseTag(s string) (Tag, error) {
	switch Tag(s) {
	case TagEDivisive, TagIsolationForest, TagCMR:
		return Tag(s), nil
	default:
		return "", fmt.Errorf("changepoint: unknown algorithm %q", s)
	}
}

// Options carries every algorithm's tunables so the factory has a
// single call shape regardless of which tag is selected.
type Options struct {
	SeriesAnalyzer    SeriesAnalyzer // required for TagEDivisive
	AnomalyWindow     int            // isolation-forest moving-average window, default 5
	MinAnomalyPercent float64        // isolation-forest threshold, default 10
}

// normalizeTimestamps ensures every row's Timestamp field is integer
// seconds, converting in place once before analysis (spec §4.3).
func normalizeTimestamps(table *schema.Table) error {
	for i, row := range table.Rows {
		normalized, err := tableutil.NormalizeTimestamp(row.Timestamp)
		if err != nil {
			return fmt.Errorf("changepoint: row %d: %w", i, err)
		}
		table.Rows[i].Timestamp = normalized
	}
	return nil
}

// RegressionFlag reports whether at least one change point survives
// for at least one metric — the caller applies this after
// post-filtering, not to the engine's raw output (spec §4.4).
func RegressionFlag(survivors map[string][]schema.ChangePoint) bool {
	for _, points := range survivors {
		if len(points) > 0 {
			return true
		}
	}
	return false
}
