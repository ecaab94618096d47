// Copyright (C) 2023 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package indexclient is the Index Client (C1): metadata-to-run-id
// lookup, per-metric value retrieval, aggregated retrieval, and
// kube-burner-style job filtering against an OpenSearch/Elasticsearch
// compatible index. Grounded on orion/matcher.py, wired to
// github.com/opensearch-project/opensearch-go the way
// AMD-AGI-Primus-SaFE/Lens/modules/core/pkg/clientsets/storage.go
// constructs and calls its OpenSearch client.
package indexclient

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	opensearch "github.com/opensearch-project/opensearch-go"

	"github.com/cloud-bulldozer/orion-go/internal/fingerprint"
	"github.com/cloud-bulldozer/orion-go/internal/tableutil"
	"github.com/cloud-bulldozer/orion-go/pkg/log"
	"github.com/cloud-bulldozer/orion-go/pkg/schema"
)

// defaultPageSize mirrors orion/matcher.py's self.search_size.
const defaultPageSize = 10000

// Config configures one Client; each analysis constructs its own,
// per spec §4.5's "each constructs its own index client" concurrency
// rule and §9's ownership note (the index client exclusively owns its
// transport).
type Config struct {
	Addresses          []string
	Username           string
	Password           string
	Timeout            time.Duration
	MaxRetries         int
	InsecureSkipVerify bool
}

// Client wraps an *opensearch.Client bound to one metadata/benchmark
// index pair.
type Client struct {
	es             *opensearch.Client
	metadataIndex  string
	benchmarkIndex string
	log            *log.Logger
}

// New constructs a Client with its own connection-pooled transport
// (pool size 5, 30s timeout, bounded retry), per spec §5.
func New(cfg Config, metadataIndex, benchmarkIndex string, logger *log.Logger) (*Client, error) {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	maxRetries := cfg.MaxRetries
	if maxRetries == 0 {
		maxRetries = 3
	}
	transport := &http.Transport{MaxIdleConnsPerHost: 5, ResponseHeaderTimeout: timeout}
	if cfg.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	es, err := opensearch.NewClient(opensearch.Config{
		Addresses:     cfg.Addresses,
		Username:      cfg.Username,
		Password:      cfg.Password,
		Transport:     transport,
		RetryOnStatus: []int{502, 503, 504},
		MaxRetries:    maxRetries,
	})
	if err != nil {
		return nil, fmt.Errorf("indexclient: opensearch client: %w", err)
	}
	return &Client{es: es, metadataIndex: metadataIndex, benchmarkIndex: benchmarkIndex, log: logger}, nil
}

func (c *Client) search(ctx context.Context, index string, body map[string]any) (map[string]any, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return nil, fmt.Errorf("indexclient: encode query: %w", err)
	}
	c.log.Debugf("indexclient: searching %s: %s", index, buf.String())
	res, err := c.es.Search(
		c.es.Search.WithContext(ctx),
		c.es.Search.WithIndex(index),
		c.es.Search.WithBody(&buf),
		c.es.Search.WithTrackTotalHits(false),
	)
	if err != nil {
		return nil, fmt.Errorf("indexclient: transport error: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("indexclient: read response: %w", err)
	}
	if res.IsError() {
		return nil, fmt.Errorf("indexclient: %s returned %s: %s", index, res.Status(), raw)
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("indexclient: decode response: %w", err)
	}
	return decoded, nil
}

// ErrNotFound is returned by search when the index itself is missing;
// Lookup treats this as an empty result rather than an error (spec §4.1
// failure semantics).
var ErrNotFound = fmt.Errorf("indexclient: index not found")

func hits(decoded map[string]any) []map[string]any {
	outer, _ := decoded["hits"].(map[string]any)
	rawHits, _ := outer["hits"].([]any)
	out := make([]map[string]any, 0, len(rawHits))
	for _, h := range rawHits {
		if hit, ok := h.(map[string]any); ok {
			out = append(out, hit)
		}
	}
	return out
}

func source(hit map[string]any) map[string]any {
	src, _ := hit["_source"].(map[string]any)
	return src
}

func sortKey(hit map[string]any) []any {
	s, _ := hit["sort"].([]any)
	return s
}

// Lookup resolves a test's metadata fingerprint into an ordered
// sequence of run descriptors, paginating with search_after until
// exhaustion or maxRows is reached (spec §4.1).
func (c *Client) Lookup(ctx context.Context, meta map[string]any, test schema.Test, lookbackDate string, maxRows int) ([]schema.RunDescriptor, error) {
	classification, err := fingerprint.Classify(meta, test.VersionFieldOrDefault())
	if err != nil {
		return nil, fmt.Errorf("indexclient: %w", err)
	}
	timestampField := test.TimestampOrDefault()
	uuidField := test.UUIDFieldOrDefault()
	versionField := test.VersionFieldOrDefault()

	var runs []schema.RunDescriptor
	var cursor []any
	pageSize := defaultPageSize
	if maxRows > 0 && maxRows < pageSize {
		pageSize = maxRows
	}

	for {
		body := lookupBody(classification, timestampField, lookbackDate, pageSize)
		body = searchAfterBody(body, cursor)
		decoded, err := c.search(ctx, c.metadataIndex, body)
		if err != nil {
			if err == ErrNotFound {
				return runs, nil
			}
			return nil, err
		}
		page := hits(decoded)
		if len(page) == 0 {
			break
		}
		for _, hit := range page {
			src := source(hit)
			uuid, ok := fingerprint.ExtractPathString(src, uuidField)
			if !ok {
				continue
			}
			version, _ := fingerprint.ExtractPathString(src, versionField)
			buildURL := schema.BogusBuildURL
			if u, ok := src["buildUrl"]; ok {
				buildURL = fmt.Sprintf("%v", u)
			} else if u, ok := src["build_url"]; ok {
				buildURL = fmt.Sprintf("%v", u)
			}
			ts, _ := fingerprint.ExtractPath(src, timestampField)
			seconds, _ := tableutil.NormalizeTimestamp(ts)
			runs = append(runs, schema.RunDescriptor{
				RunID:     schema.RunID(uuid),
				Version:   version,
				BuildURL:  buildURL,
				Timestamp: seconds,
			})
			if maxRows > 0 && len(runs) >= maxRows {
				return runs, nil
			}
		}
		last := page[len(page)-1]
		cursor = sortKey(last)
		if len(cursor) == 0 || len(page) < pageSize {
			break
		}
	}
	return runs, nil
}

// metricSelectors splits a MetricSpec's raw metadata (stored by the
// config loader alongside the typed fields) into must/must-not
// selector clauses, excluding the reserved keys per spec §4.1.
func metricSelectors(raw map[string]any) (must, mustNot map[string]string) {
	must = map[string]string{}
	mustNot = map[string]string{}
	reserved := map[string]bool{"name": true, "metric_of_interest": true, "not": true, "agg": true, "timestamp": true}
	for k, v := range raw {
		if reserved[k] {
			continue
		}
		must[k] = fmt.Sprintf("%v", v)
	}
	if notRaw, ok := raw["not"].(map[string]any); ok {
		for k, v := range notRaw {
			mustNot[k] = fmt.Sprintf("%v", v)
		}
	}
	return must, mustNot
}

// MetricValues retrieves standard (non-aggregated) per-run values for
// one metric, deduplicating on RunID, first-wins (spec §4.1).
func (c *Client) MetricValues(ctx context.Context, runIDs []schema.RunID, spec schema.MetricSpec, uuidField, timestampField string) ([]MetricPoint, error) {
	ids := runIDsToStrings(runIDs)
	must, mustNot := metricSelectors(spec.Extra)
	body := metricValuesBody(uuidField, ids, must, mustNot, defaultPageSize)
	decoded, err := c.search(ctx, c.benchmarkIndex, body)
	if err != nil {
		if err == ErrNotFound {
			return nil, nil
		}
		return nil, err
	}
	seen := map[schema.RunID]bool{}
	var points []MetricPoint
	for _, hit := range hits(decoded) {
		src := source(hit)
		uuid, ok := fingerprint.ExtractPathString(src, uuidField)
		if !ok || seen[schema.RunID(uuid)] {
			continue
		}
		value, ok := fingerprint.ExtractPath(src, spec.MetricOfInterest)
		if !ok {
			continue
		}
		f, ok := toFloat(value)
		if !ok {
			continue
		}
		rawTS, _ := fingerprint.ExtractPath(src, timestampField)
		ts, _ := tableutil.NormalizeTimestamp(rawTS)
		seen[schema.RunID(uuid)] = true
		points = append(points, MetricPoint{RunID: schema.RunID(uuid), Timestamp: ts, Value: f})
	}
	return points, nil
}

// AggregatedMetricValues retrieves one representative (timestamp,
// aggregated-value) pair per RunID using a two-level bucket
// aggregation (spec §4.1). A RunID whose bucket carries no aggregated
// value gets no point in the result.
func (c *Client) AggregatedMetricValues(ctx context.Context, runIDs []schema.RunID, spec schema.MetricSpec, uuidField, timestampField string) ([]MetricPoint, error) {
	if spec.Agg == nil {
		return nil, fmt.Errorf("indexclient: AggregatedMetricValues called without an agg clause on metric %q", spec.Name)
	}
	ids := runIDsToStrings(runIDs)
	must, mustNot := metricSelectors(spec.Extra)
	body := aggregatedMetricValuesBody(uuidField, ids, must, mustNot, timestampField, spec.MetricOfInterest, spec.Agg.Value, string(spec.Agg.AggType), defaultPageSize)
	decoded, err := c.search(ctx, c.benchmarkIndex, body)
	if err != nil {
		if err == ErrNotFound {
			return nil, nil
		}
		return nil, err
	}
	aggs, _ := decoded["aggregations"].(map[string]any)
	timeBuckets := bucketsOf(aggs, "time")
	uuidBuckets := bucketsOf(aggs, "uuid")

	valueByKey := map[string]*float64{}
	for _, b := range uuidBuckets {
		key := fmt.Sprintf("%v", b["key"])
		if metric, ok := b[spec.Agg.Value].(map[string]any); ok {
			if v, ok := toFloat(metric["value"]); ok {
				vv := v
				valueByKey[key] = &vv
			}
		}
	}

	var points []MetricPoint
	for _, b := range timeBuckets {
		key := fmt.Sprintf("%v", b["key"])
		var ts int64
		if inner, ok := b["time"].(map[string]any); ok {
			if v, ok := toFloat(inner["value"]); ok {
				ts, _ = tableutil.NormalizeTimestamp(v)
			}
		}
		v := valueByKey[key]
		if v == nil {
			continue
		}
		points = append(points, MetricPoint{RunID: schema.RunID(key), Timestamp: ts, Value: *v})
	}
	return points, nil
}

func bucketsOf(aggs map[string]any, name string) []map[string]any {
	agg, _ := aggs[name].(map[string]any)
	raw, _ := agg["buckets"].([]any)
	out := make([]map[string]any, 0, len(raw))
	for _, b := range raw {
		if m, ok := b.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

// JobFilter keeps only RunIDs whose jobConfig.jobIterations equals
// that of the first document, per orion/matcher.py:filter_runs. Used
// only for kube-burner-style benchmarks (spec §4.1).
func (c *Client) JobFilter(ctx context.Context, runIDs []schema.RunID, uuidField string) ([]schema.RunID, error) {
	ids := runIDsToStrings(runIDs)
	body := jobFilterBody(uuidField, ids, defaultPageSize)
	decoded, err := c.search(ctx, c.benchmarkIndex, body)
	if err != nil {
		if err == ErrNotFound {
			return nil, nil
		}
		return nil, err
	}
	docs := hits(decoded)
	if len(docs) == 0 {
		return nil, nil
	}
	baseline, _ := fingerprint.ExtractPath(source(docs[0]), "jobConfig.jobIterations")
	var kept []schema.RunID
	for _, hit := range docs {
		src := source(hit)
		iterations, _ := fingerprint.ExtractPath(src, "jobConfig.jobIterations")
		if fmt.Sprintf("%v", iterations) != fmt.Sprintf("%v", baseline) {
			continue
		}
		uuid, ok := fingerprint.ExtractPathString(src, uuidField)
		if !ok {
			continue
		}
		kept = append(kept, schema.RunID(uuid))
	}
	return kept, nil
}

// MetricPoint is one (RunID, timestamp, value) tuple returned by
// MetricValues and AggregatedMetricValues.
type MetricPoint struct {
	RunID     schema.RunID
	Timestamp int64
	Value     float64
}

func runIDsToStrings(ids []schema.RunID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
