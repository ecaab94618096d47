// Copyright (C) 2023 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package assembler is the Metric Assembler (C2): it fetches each
// metric in a test's metric-spec list, outer-joins the per-metric
// frames on RunID, collapses timestamps, attaches version and
// build-URL, and sorts the result into one schema.Table. Grounded on
// orion/utils.py:process_test, translated from the pandas
// reduce(merge, how="outer") pipeline into an explicit Go row-map
// join (no dataframe library appears anywhere in the example pack).
package assembler

import (
	"context"
	"fmt"
	"sort"

	"github.com/cloud-bulldozer/orion-go/internal/indexclient"
	"github.com/cloud-bulldozer/orion-go/internal/enrich"
	"github.com/cloud-bulldozer/orion-go/pkg/log"
	"github.com/cloud-bulldozer/orion-go/pkg/schema"
)

// IndexClient is the narrow slice of indexclient.Client the assembler
// needs; defined locally so tests can substitute a fake.
type IndexClient interface {
	MetricValues(ctx context.Context, runIDs []schema.RunID, spec schema.MetricSpec, uuidField, timestampField string) ([]indexclient.MetricPoint, error)
	AggregatedMetricValues(ctx context.Context, runIDs []schema.RunID, spec schema.MetricSpec, uuidField, timestampField string) ([]indexclient.MetricPoint, error)
}

// Options configures one Assemble call.
type Options struct {
	ConvertTinyURL bool
	Shortener      enrich.Shortener
}

type runRow struct {
	timestamp int64
	haveTS    bool
	metrics   map[string]*float64
}

// Assemble builds the joined table for test from the run descriptors
// resolved by the Index Client's Lookup, per spec §4.2.
func Assemble(ctx context.Context, idx IndexClient, runs []schema.RunDescriptor, test schema.Test, logger *log.Logger, opts Options) (*schema.Table, error) {
	runIDs := make([]schema.RunID, len(runs))
	byRunID := make(map[schema.RunID]schema.RunDescriptor, len(runs))
	for i, r := range runs {
		runIDs[i] = r.RunID
		byRunID[r.RunID] = r
	}

	uuidField := test.UUIDFieldOrDefault()
	timestampField := test.TimestampOrDefault()

	rows := make(map[schema.RunID]*runRow)
	ensure := func(id schema.RunID) *runRow {
		r, ok := rows[id]
		if !ok {
			r = &runRow{metrics: map[string]*float64{}}
			rows[id] = r
		}
		return r
	}

	columns := make([]string, 0, len(test.Metrics))
	for _, spec := range test.Metrics {
		col := spec.ColumnName()
		columns = append(columns, col)

		var points []indexclient.MetricPoint
		var err error
		if spec.Agg != nil {
			points, err = idx.AggregatedMetricValues(ctx, runIDs, spec, uuidField, timestampField)
		} else {
			points, err = idx.MetricValues(ctx, runIDs, spec, uuidField, timestampField)
		}
		if err != nil {
			return nil, fmt.Errorf("assembler: metric %q: %w", spec.Name, err)
		}

		for _, p := range points {
			row := ensure(p.RunID)
			value := p.Value
			row.metrics[col] = &value
			if !row.haveTS && p.Timestamp != 0 {
				row.timestamp = p.Timestamp
				row.haveTS = true
			}
		}
	}

	if len(rows) == 0 {
		logger.Infof("assembler: test %q produced zero rows after join", test.Name)
		return nil, nil
	}

	table := &schema.Table{Columns: columns}
	for runID, r := range rows {
		desc, known := byRunID[runID]
		ts := r.timestamp
		if !r.haveTS && known {
			ts = desc.Timestamp
		}
		buildURL := desc.BuildURL
		if opts.ConvertTinyURL && opts.Shortener != nil && buildURL != "" {
			if short, err := opts.Shortener.Shorten(ctx, buildURL); err == nil {
				buildURL = short
			} else {
				logger.Warnf("assembler: shorten %q: %v", buildURL, err)
			}
		}
		table.Rows = append(table.Rows, schema.Row{
			RunID:     runID,
			Timestamp: ts,
			Version:   desc.Version,
			BuildURL:  buildURL,
			Metrics:   r.metrics,
		})
	}

	sort.SliceStable(table.Rows, func(i, j int) bool {
		return table.Rows[i].Timestamp < table.Rows[j].Timestamp
	})

	return table, nil
}
