// Copyright (C) 2023 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package indexclient

import (
	"github.com/cloud-bulldozer/orion-go/internal/fingerprint"
)

// Search DSL bodies are built as plain map[string]any trees and
// marshaled by encoding/json, matching how every opensearch-go caller
// in the example pack constructs request bodies (no query-builder
// library applies to a JSON document DSL the way Masterminds/squirrel
// applies to SQL placeholders).

func matchClause(field, value string) map[string]any {
	return map[string]any{"match": map[string]any{field: value}}
}

func wildcardClause(field, value string) map[string]any {
	return map[string]any{"wildcard": map[string]any{field: map[string]any{"value": value + "*"}}}
}

func rangeGTClause(field, value string) map[string]any {
	return map[string]any{"range": map[string]any{field: map[string]any{"gt": value}}}
}

func termsClause(field string, values []string) map[string]any {
	anyValues := make([]any, len(values))
	for i, v := range values {
		anyValues[i] = v
	}
	return map[string]any{"terms": map[string]any{field: anyValues}}
}

// lookupBody builds the bool query of orion/matcher.py:get_uuid_by_metadata:
// must clauses from every metadata field (except reserved ones),
// must_not from the "not" subtree, and a wildcard filter on the
// version field, optionally combined with a lookback range filter.
func lookupBody(c fingerprint.Classification, timestampField, lookbackDate string, size int) map[string]any {
	must := make([]map[string]any, 0, len(c.Must))
	for _, f := range c.Must {
		must = append(must, matchClause(f.Key, f.Value))
	}
	mustNot := make([]map[string]any, 0, len(c.MustNot))
	for _, f := range c.MustNot {
		mustNot = append(mustNot, matchClause(f.Key, f.Value))
	}
	filter := []map[string]any{wildcardClause(c.Wildcard.Key, c.Wildcard.Value)}
	if lookbackDate != "" {
		filter = append(filter, rangeGTClause(timestampField, lookbackDate))
	}

	body := map[string]any{
		"query": map[string]any{
			"bool": map[string]any{
				"must":     must,
				"must_not": mustNot,
				"filter":   filter,
			},
		},
		"sort": []map[string]any{
			{timestampField: map[string]any{"order": "desc"}},
		},
		"size": size,
	}
	return body
}

// metricValuesBody builds the query of orion/matcher.py:get_results:
// a terms-in-set filter on the uuid field combined with the metric's
// own selector clauses (every key besides name/metric_of_interest/not/agg/timestamp).
func metricValuesBody(uuidField string, runIDs []string, selectors map[string]string, notSelectors map[string]string, size int) map[string]any {
	metricMust := make([]map[string]any, 0, len(selectors))
	for k, v := range selectors {
		metricMust = append(metricMust, matchClause(k, v))
	}
	metricMustNot := make([]map[string]any, 0, len(notSelectors))
	for k, v := range notSelectors {
		metricMustNot = append(metricMustNot, matchClause(k, v))
	}
	metricQuery := map[string]any{
		"bool": map[string]any{
			"must":     metricMust,
			"must_not": metricMustNot,
		},
	}
	return map[string]any{
		"query": map[string]any{
			"bool": map[string]any{
				"must": []map[string]any{
					termsClause(uuidField+".keyword", runIDs),
					metricQuery,
				},
			},
		},
		"size": size,
	}
}

// aggregatedMetricValuesBody builds the two-level bucket aggregation of
// orion/matcher.py:get_agg_metric_query: an outer bucket by uuid with
// a parallel average-of-timestamp metric, and a second uuid bucket
// with the configured aggregation over metric_of_interest.
func aggregatedMetricValuesBody(uuidField string, runIDs []string, selectors, notSelectors map[string]string, timestampField, metricOfInterest, aggValue, aggType string, size int) map[string]any {
	body := metricValuesBody(uuidField, runIDs, selectors, notSelectors, 0)
	body["aggs"] = map[string]any{
		"time": map[string]any{
			"terms":  map[string]any{"field": uuidField + ".keyword", "size": size},
			"aggs":   map[string]any{"time": map[string]any{"avg": map[string]any{"field": timestampField}}},
		},
		"uuid": map[string]any{
			"terms": map[string]any{"field": uuidField + ".keyword", "size": size},
			"aggs":  map[string]any{aggValue: map[string]any{aggType: map[string]any{"field": metricOfInterest}}},
		},
	}
	return body
}

// jobFilterBody builds the match_kube_burner query: terms on uuid,
// a match on metricName=jobSummary, and a must_not excluding the
// garbage-collection job config.
func jobFilterBody(uuidField string, runIDs []string, size int) map[string]any {
	return map[string]any{
		"query": map[string]any{
			"bool": map[string]any{
				"filter": []map[string]any{
					termsClause(uuidField+".keyword", runIDs),
					matchClause("metricName", "jobSummary"),
				},
				"must_not": []map[string]any{
					matchClause("jobConfig.name", "garbage-collection"),
				},
			},
		},
		"size": size,
	}
}

// searchAfterBody appends a search_after continuation cursor to body,
// for pagination beyond the first page of hits.
func searchAfterBody(body map[string]any, sortKey []any) map[string]any {
	if len(sortKey) == 0 {
		return body
	}
	next := make(map[string]any, len(body))
	for k, v := range body {
		next[k] = v
	}
	next["search_after"] = sortKey
	return next
}
