// Copyright (C) 2023 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package coordinator is the Pull/Periodic Coordinator (C5): it
// splits a test into a pull-request variant and a periodic variant
// when the test's metadata declares a pull number, runs both through
// the full lookup-assemble-analyze-filter pipeline with a degree of
// parallelism of 2, and merges the results. Grounded on
// orion/run_test.py's per-test loop and the WaitGroup + buffered
// error channel concurrency idiom used by the teacher's
// pkg/metricstore/metricstore.go background goroutines.
package coordinator

import (
	"context"
	"fmt"
	"sync"

	"github.com/cloud-bulldozer/orion-go/pkg/schema"
)

// AnalysisResult is one variant's outcome.
type AnalysisResult struct {
	Test       schema.Test
	Table      *schema.Table
	Survivors  map[string][]schema.ChangePoint
	Regression bool
	PullNumber int
}

// Pair is the return shape of Run: a pull-variant result (empty if the
// test was not a pull test) and a periodic-variant result.
type Pair struct {
	Pull     *AnalysisResult
	Periodic *AnalysisResult
}

// Analyze runs the lookup-through-postfilter sub-pipeline for one
// variant of a test. The Coordinator supplies this function; it is
// responsible for constructing its own index client per spec §4.5's
// "no shared mutable state between the two analyses" rule.
type Analyze func(ctx context.Context, test schema.Test) (*AnalysisResult, error)

// PullNumber extracts the pull-request number from a test's metadata,
// returning 0 if absent or not an int, int64 or float64; a float64 is
// truncated toward zero and a negative number is returned as is.
func PullNumber(meta map[string]any) int {
	raw, ok := meta["pull_number"]
	if !ok {
		return 0
	}
	switch v := raw.(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

// periodicVariant returns a copy of test, its metadata (nested maps
// included) deep-copied, with jobType=periodic,
// pullNumber cleared, and organization/repository cleared so the
// fingerprint joins with the general periodic fleet (spec §4.5).
func periodicVariant(test schema.Test) schema.Test {
	periodic := test
	periodic.Metadata = cloneMetadata(test.Metadata)
	delete(periodic.Metadata, "pull_number")
	delete(periodic.Metadata, "organization")
	delete(periodic.Metadata, "repository")
	periodic.Metadata["jobType"] = string(schema.JobTypePeriodic)
	return periodic
}

// pullVariant returns a copy of test with jobType=pull, metadata
// otherwise preserved (spec §4.5).
func pullVariant(test schema.Test) schema.Test {
	pull := test
	pull.Metadata = cloneMetadata(test.Metadata)
	pull.Metadata["jobType"] = string(schema.JobTypePull)
	return pull
}

func cloneMetadata(meta map[string]any) map[string]any {
	out := make(map[string]any, len(meta))
	for k, v := range meta {
		if nested, ok := v.(map[string]any); ok {
			v = cloneMetadata(nested)
		}
		out[k] = v
	}
	return out
}

// Run splits test into pull/periodic variants (if applicable) and
// runs both concurrently, degree of parallelism 2. If test is not a
// pull test, a single analysis is performed and Pair.Pull is nil
// (spec §4.5).
func Run(ctx context.Context, test schema.Test, analyze Analyze, forcePullSplit bool) (Pair, error) {
	pullNumber := PullNumber(test.Metadata)
	if pullNumber == 0 && !forcePullSplit {
		result, err := analyze(ctx, test)
		if err != nil {
			return Pair{}, fmt.Errorf("coordinator: %w", err)
		}
		return Pair{Periodic: result}, nil
	}

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	var pair Pair

	wg.Add(1)
	go func() {
		defer wg.Done()
		result, err := analyze(ctx, pullVariant(test))
		if err != nil {
			errs <- fmt.Errorf("coordinator: pull variant: %w", err)
			return
		}
		result.PullNumber = pullNumber
		pair.Pull = result
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		result, err := analyze(ctx, periodicVariant(test))
		if err != nil {
			errs <- fmt.Errorf("coordinator: periodic variant: %w", err)
			return
		}
		pair.Periodic = result
	}()

	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			return Pair{}, err
		}
	}
	return pair, nil
}

// Regression reports whether either variant of the Pair flagged a
// regression.
func (p Pair) Regression() bool {
	if p.Pull != nil && p.Pull.Regression {
		return true
	}
	if p.Periodic != nil && p.Periodic.Regression {
		return true
	}
	return false
}
