// Copyright (C) 2023 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package report

import (
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"
)

// Text renders records as a fixed-width table for metricName, with
// any configured display columns appended and change-point rows
// marked inline. Grounded on
// orion/utils.py:generate_tabular_output's column layout and
// inline "-- changepoint" marker.
func Text(records []Record, metricName string, displayColumns []string) string {
	var b strings.Builder
	w := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)

	header := []string{"uuid", "timestamp", "buildUrl", metricName, "is_changepoint", "percentage_change"}
	header = append(header, displayColumns...)
	fmt.Fprintln(w, strings.Join(header, "\t"))

	for _, r := range records {
		m := r.Metrics[metricName]
		cols := []string{
			string(r.RunID),
			r.Timestamp,
			r.BuildURL,
			fmt.Sprintf("%v", m.Value),
			fmt.Sprintf("%v", m.PercentageChange != 0),
			fmt.Sprintf("%v", m.PercentageChange),
		}
		for _, d := range displayColumns {
			cols = append(cols, r.Display[d])
		}
		line := strings.Join(cols, "\t")
		if m.PercentageChange != 0 {
			line += "\t-- changepoint"
		}
		fmt.Fprintln(w, line)
	}
	w.Flush()
	return b.String()
}

// MetricNames returns the sorted set of metric columns present across
// records, the iteration order every multi-metric text/JUnit report
// uses for determinism (testable property #8: idempotence).
func MetricNames(records []Record) []string {
	set := map[string]bool{}
	for _, r := range records {
		for col := range r.Metrics {
			set[col] = true
		}
	}
	names := make([]string, 0, len(set))
	for n := range set {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
