// Copyright (C) 2023 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package tableutil holds the timestamp helpers shared by the Index
// Client, Change-Point Engine, and Report Formatter: timestamp
// normalization and ISO-8601 display rendering. Grounded on the
// several ms-vs-second detection variants observed across
// orion/utils.py and orion/matcher.py, standardized once here per
// spec §9's open question.
package tableutil

import (
	"encoding/json"
	"fmt"
	"time"
)

// millisecondThreshold is the boundary above which an integer
// timestamp is assumed to be milliseconds rather than seconds.
const millisecondThreshold = 1e12

// NormalizeTimestamp accepts an integer-seconds, integer-milliseconds,
// or ISO-8601 string timestamp and returns the normalized 64-bit
// seconds-since-epoch value used for joining throughout the pipeline.
func NormalizeTimestamp(v any) (int64, error) {
	switch t := v.(type) {
	case nil:
		return 0, fmt.Errorf("tableutil: nil timestamp")
	case int64:
		return normalizeNumeric(float64(t)), nil
	case int:
		return normalizeNumeric(float64(t)), nil
	case float64:
		return normalizeNumeric(t), nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return 0, fmt.Errorf("tableutil: timestamp %q is not numeric: %w", t, err)
		}
		return normalizeNumeric(f), nil
	case string:
		return normalizeString(t)
	default:
		return 0, fmt.Errorf("tableutil: unsupported timestamp type %T", v)
	}
}

func normalizeNumeric(f float64) int64 {
	if f > millisecondThreshold {
		return int64(f) / 1000
	}
	return int64(f)
}

func normalizeString(s string) (int64, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05Z", "2006-01-02T15:04:05.999999999Z07:00"} {
		if parsed, err := time.Parse(layout, s); err == nil {
			return parsed.Unix(), nil
		}
	}
	var numeric float64
	if _, err := fmt.Sscanf(s, "%f", &numeric); err == nil {
		return normalizeNumeric(numeric), nil
	}
	return 0, fmt.Errorf("tableutil: cannot parse timestamp %q", s)
}

// DisplayString renders a normalized seconds value as the ISO-8601 UTC
// string used by report formatters (spec §4.1: "normalized ... to an
// ISO-8601 UTC string for display").
func DisplayString(seconds int64) string {
	return time.Unix(seconds, 0).UTC().Format(time.RFC3339)
}
