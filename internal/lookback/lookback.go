// Copyright (C) 2023 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package lookback computes the time-bounded window the Index
// Client's lookup uses, combining the `XdYh` relative duration flag
// with an optional absolute `--since` date (SPEC_FULL.md §4:
// "--since date-bounded window combined with --lookback"). Grounded
// on orion/utils.py:get_subtracted_timestamp.
package lookback

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

var durationPattern = regexp.MustCompile(`^(?:(\d+)d)?(?:(\d+)h)?$`)

// ParseDuration parses a time_duration in "XdYh" format (either part
// optional), per orion/utils.py:get_subtracted_timestamp.
func ParseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	m := durationPattern.FindStringSubmatch(s)
	if m == nil || (m[1] == "" && m[2] == "") {
		return 0, fmt.Errorf("lookback: %q is not in XdYh format", s)
	}
	var days, hours int
	if m[1] != "" {
		days, _ = strconv.Atoi(m[1])
	}
	if m[2] != "" {
		hours, _ = strconv.Atoi(m[2])
	}
	return time.Duration(days)*24*time.Hour + time.Duration(hours)*time.Hour, nil
}

// Window is the resolved lower bound the Index Client's lookup applies
// as a range filter on the timestamp field. It has no upper bound. A
// zero Start means unbounded.
type Window struct {
	Start time.Time
}

// Resolve turns --lookback and --since into one window: with --since
// set, Start is since and the --lookback value is only validated, not
// applied; with only --lookback set, Start is now-lookback; with
// neither, the window is unbounded.
func Resolve(lookback, since string, now time.Time) (Window, error) {
	dur, err := ParseDuration(lookback)
	if err != nil {
		return Window{}, err
	}

	if since == "" {
		if dur == 0 {
			return Window{}, nil
		}
		return Window{Start: now.Add(-dur)}, nil
	}

	sinceTime, err := time.Parse("2006-01-02", since)
	if err != nil {
		return Window{}, fmt.Errorf("lookback: --since %q is not YYYY-MM-DD: %w", since, err)
	}
	return Window{Start: sinceTime}, nil
}

// Expand returns a new Window whose Start is increment earlier than
// w.Start (or now-increment if w is unbounded), the adaptive-expansion
// step used by the Post-Filter Pipeline's early-boundary handler
// (spec §4.4 step 5).
func (w Window) Expand(increment time.Duration, now time.Time) Window {
	base := w.Start
	if base.IsZero() {
		base = now
	}
	return Window{Start: base.Add(-increment)}
}

// ISODate renders w.Start as the date string the Index Client's range
// filter compares against, or "" when unbounded.
func (w Window) ISODate() string {
	if w.Start.IsZero() {
		return ""
	}
	return w.Start.UTC().Format(time.RFC3339)
}
