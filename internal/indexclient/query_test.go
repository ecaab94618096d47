// Copyright (C) 2023 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package indexclient

import (
	"testing"

	"github.com/cloud-bulldozer/orion-go/internal/fingerprint"
)

func TestLookupBodyBuildsMustMustNotAndWildcardFilter(t *testing.T) {
	c := fingerprint.Classification{
		Must:     []fingerprint.Field{{Kind: fingerprint.KindExact, Key: "platform", Value: "aws"}},
		MustNot:  []fingerprint.Field{{Kind: fingerprint.KindNegative, Key: "infraNodesType", Value: "spot"}},
		Wildcard: fingerprint.Field{Kind: fingerprint.KindWildcard, Key: "ocpVersion", Value: "4.15"},
	}
	body := lookupBody(c, "timestamp", "now-15d", 50)

	query := body["query"].(map[string]any)["bool"].(map[string]any)
	must := query["must"].([]map[string]any)
	if len(must) != 1 || must[0]["match"].(map[string]any)["platform"] != "aws" {
		t.Fatalf("expected a must match clause on platform=aws, got %+v", must)
	}
	mustNot := query["must_not"].([]map[string]any)
	if len(mustNot) != 1 || mustNot[0]["match"].(map[string]any)["infraNodesType"] != "spot" {
		t.Fatalf("expected a must_not match clause on infraNodesType=spot, got %+v", mustNot)
	}
	filter := query["filter"].([]map[string]any)
	if len(filter) != 2 {
		t.Fatalf("expected wildcard + range filters when a lookback date is set, got %d", len(filter))
	}
	wildcard := filter[0]["wildcard"].(map[string]any)["ocpVersion"].(map[string]any)
	if wildcard["value"] != "4.15*" {
		t.Fatalf("expected a trailing-wildcard version match, got %v", wildcard["value"])
	}
	rng := filter[1]["range"].(map[string]any)["timestamp"].(map[string]any)
	if rng["gt"] != "now-15d" {
		t.Fatalf("expected a range filter on the configured timestamp field, got %v", rng)
	}
	if body["size"] != 50 {
		t.Fatalf("expected size=50, got %v", body["size"])
	}
}

func TestLookupBodyOmitsRangeFilterWithoutLookback(t *testing.T) {
	c := fingerprint.Classification{Wildcard: fingerprint.Field{Key: "ocpVersion", Value: "4.15"}}
	body := lookupBody(c, "timestamp", "", 10)
	filter := body["query"].(map[string]any)["bool"].(map[string]any)["filter"].([]map[string]any)
	if len(filter) != 1 {
		t.Fatalf("expected only the wildcard filter with no lookback bound, got %d clauses", len(filter))
	}
}

func TestMetricValuesBodyScopesToRunIDsAndSelectors(t *testing.T) {
	body := metricValuesBody("uuid", []string{"run-1", "run-2"}, map[string]string{"metricName": "podReadyLatency"}, nil, 1000)
	must := body["query"].(map[string]any)["bool"].(map[string]any)["must"].([]map[string]any)
	if len(must) != 2 {
		t.Fatalf("expected a terms clause plus the metric selector bool, got %d", len(must))
	}
	terms := must[0]["terms"].(map[string]any)["uuid.keyword"].([]any)
	if len(terms) != 2 || terms[0] != "run-1" {
		t.Fatalf("expected both RunIDs in the terms filter, got %+v", terms)
	}
}

func TestAggregatedMetricValuesBodyAddsTwoLevelBuckets(t *testing.T) {
	body := aggregatedMetricValuesBody("uuid", []string{"run-1"}, nil, nil, "timestamp", "value", "avg", "avg", 10)
	aggs := body["aggs"].(map[string]any)
	if _, ok := aggs["time"]; !ok {
		t.Fatal("expected a parallel average-of-timestamp bucket")
	}
	if _, ok := aggs["uuid"]; !ok {
		t.Fatal("expected an outer bucket by uuid")
	}
	uuidBucket := aggs["uuid"].(map[string]any)
	inner := uuidBucket["aggs"].(map[string]any)["avg"].(map[string]any)["avg"].(map[string]any)
	if inner["field"] != "value" {
		t.Fatalf("expected the inner aggregation over metric_of_interest, got %+v", inner)
	}
}

func TestJobFilterBodyExcludesGarbageCollection(t *testing.T) {
	body := jobFilterBody("uuid", []string{"run-1"}, 5)
	query := body["query"].(map[string]any)["bool"].(map[string]any)
	mustNot := query["must_not"].([]map[string]any)
	if len(mustNot) != 1 || mustNot[0]["match"].(map[string]any)["jobConfig.name"] != "garbage-collection" {
		t.Fatalf("expected garbage-collection excluded, got %+v", mustNot)
	}
}

func TestSearchAfterBodyAppendsCursorWithoutMutatingOriginal(t *testing.T) {
	base := map[string]any{"size": 10}
	next := searchAfterBody(base, []any{1690000000, "run-9"})
	if _, ok := base["search_after"]; ok {
		t.Fatal("expected the original body left untouched")
	}
	cursor, ok := next["search_after"].([]any)
	if !ok || len(cursor) != 2 {
		t.Fatalf("expected a two-element search_after cursor, got %+v", next["search_after"])
	}
}

func TestSearchAfterBodyNoopOnEmptyCursor(t *testing.T) {
	base := map[string]any{"size": 10}
	next := searchAfterBody(base, nil)
	if _, ok := next["search_after"]; ok {
		t.Fatal("expected no search_after key when the cursor is empty")
	}
}
