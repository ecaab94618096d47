// Copyright (C) 2023 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package coordinator_test

import (
	"context"
	"testing"

	"github.com/cloud-bulldozer/orion-go/internal/coordinator"
	"github.com/cloud-bulldozer/orion-go/pkg/schema"
)

func TestRunNonPullTestSkipsSplit(t *testing.T) {
	test := schema.Test{Name: "periodic-only", Metadata: map[string]any{"platform": "aws"}}
	var seen []schema.Test
	analyze := func(ctx context.Context, t schema.Test) (*coordinator.AnalysisResult, error) {
		seen = append(seen, t)
		return &coordinator.AnalysisResult{Test: t}, nil
	}
	pair, err := coordinator.Run(context.Background(), test, analyze, false)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if pair.Pull != nil {
		t.Fatalf("expected an empty pull slot for a non-pull test, got %+v", pair.Pull)
	}
	if pair.Periodic == nil {
		t.Fatal("expected a periodic result")
	}
	if len(seen) != 1 {
		t.Fatalf("expected exactly one analysis for a non-pull test, got %d", len(seen))
	}
}

func TestRunPullTestSplitsIndependently(t *testing.T) {
	test := schema.Test{
		Name: "my-test",
		Metadata: map[string]any{
			"pull_number":  42,
			"organization": "openshift",
			"repository":   "origin",
			"platform":     "aws",
		},
	}
	analyze := func(ctx context.Context, t schema.Test) (*coordinator.AnalysisResult, error) {
		return &coordinator.AnalysisResult{Test: t}, nil
	}
	pair, err := coordinator.Run(context.Background(), test, analyze, false)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if pair.Pull == nil || pair.Periodic == nil {
		t.Fatalf("expected both variants for a pull test, got %+v", pair)
	}
	if pair.Pull.PullNumber != 42 {
		t.Fatalf("expected the PR number attached to the pull variant, got %d", pair.Pull.PullNumber)
	}
	if got := pair.Pull.Test.Metadata["jobType"]; got != string(schema.JobTypePull) {
		t.Fatalf("expected pull variant jobType=pull, got %v", got)
	}
	if got := pair.Periodic.Test.Metadata["jobType"]; got != string(schema.JobTypePeriodic) {
		t.Fatalf("expected periodic variant jobType=periodic, got %v", got)
	}

	// Property: mutating the periodic branch's metadata must not alter
	// the pull branch's metadata, and vice versa (spec §8 property 10).
	if _, ok := pair.Periodic.Test.Metadata["organization"]; ok {
		t.Fatal("expected organization cleared on the periodic variant")
	}
	if _, ok := pair.Periodic.Test.Metadata["repository"]; ok {
		t.Fatal("expected repository cleared on the periodic variant")
	}
	if _, ok := pair.Periodic.Test.Metadata["pull_number"]; ok {
		t.Fatal("expected pull_number cleared on the periodic variant")
	}
	if got := pair.Pull.Test.Metadata["organization"]; got != "openshift" {
		t.Fatalf("expected organization preserved on the pull variant, got %v", got)
	}
	if got := pair.Pull.Test.Metadata["pull_number"]; got != 42 {
		t.Fatalf("expected pull_number preserved on the pull variant, got %v", got)
	}

	pair.Periodic.Test.Metadata["platform"] = "mutated"
	if pair.Pull.Test.Metadata["platform"] == "mutated" {
		t.Fatal("periodic-branch metadata mutation leaked into the pull branch")
	}
}

func TestRunPropagatesVariantErrors(t *testing.T) {
	test := schema.Test{Name: "err-test", Metadata: map[string]any{"pull_number": 7}}
	analyze := func(ctx context.Context, t schema.Test) (*coordinator.AnalysisResult, error) {
		if t.Metadata["jobType"] == string(schema.JobTypePull) {
			return nil, context.DeadlineExceeded
		}
		return &coordinator.AnalysisResult{Test: t}, nil
	}
	if _, err := coordinator.Run(context.Background(), test, analyze, false); err == nil {
		t.Fatal("expected an error when one variant's analysis fails")
	}
}
