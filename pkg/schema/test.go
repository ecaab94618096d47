// Copyright (C) 2023 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package schema holds the data model shared by every component of the
// regression-detection pipeline: the configured test, its metric specs,
// the metadata fingerprint, run descriptors, the assembled table and
// its change points, and acknowledgements.
package schema

// RunID is an opaque identifier unique to one benchmark execution. It
// is always the raw value of the run document's uuid field (the test's
// uuid_field, `uuid` by default), never re-derived.
type RunID string

// AggType names a bucket-aggregation metric function.
type AggType string

const (
	AggAvg AggType = "avg"
	AggSum AggType = "sum"
	AggMin AggType = "min"
	AggMax AggType = "max"
)

// Direction encodes the expected sign of a regression for a metric.
// +1 means "higher is worse", -1 means "lower is worse", 0 means any
// change in either direction is reportable.
type Direction int

const (
	DirectionDown Direction = -1
	DirectionAny  Direction = 0
	DirectionUp   Direction = 1
)

// Agg is the optional aggregation clause of a MetricSpec.
type Agg struct {
	Value   string  `yaml:"value" json:"value"`
	AggType AggType `yaml:"agg_type" json:"agg_type"`
}

// MetricSpec describes one metric of interest within a Test, per
// spec §3: name, the field path to read, optional aggregation,
// expected direction, reporting threshold, an optional correlated
// metric, and the context window used by the correlation gate.
type MetricSpec struct {
	Name             string            `yaml:"name" json:"name"`
	MetricOfInterest string            `yaml:"metric_of_interest" json:"metric_of_interest"`
	Agg              *Agg              `yaml:"agg,omitempty" json:"agg,omitempty"`
	Direction        Direction         `yaml:"direction" json:"direction"`
	Threshold        float64           `yaml:"threshold" json:"threshold"`
	Labels           map[string]string `yaml:"labels,omitempty" json:"labels,omitempty"`
	Correlation      string            `yaml:"correlation,omitempty" json:"correlation,omitempty"`
	Context          int               `yaml:"context,omitempty" json:"context,omitempty"`
	Timestamp        string            `yaml:"timestamp,omitempty" json:"timestamp,omitempty"`

	// Extra captures any additional keys on the metric entry beyond the
	// fields above: each becomes an extra match-clause selector on the
	// Index Client's metric-value query, the way orion/matcher.py's
	// get_results treats every metric dict key besides
	// name/metric_of_interest/not/agg as a query field.
	Extra map[string]any `yaml:",inline" json:"-"`
}

// DefaultContext is the correlation-gate window used when a MetricSpec
// does not set one.
const DefaultContext = 5

// ContextOrDefault returns m.Context, falling back to DefaultContext.
func (m MetricSpec) ContextOrDefault() int {
	if m.Context <= 0 {
		return DefaultContext
	}
	return m.Context
}

// ColumnName returns the stable column identifier for this metric,
// per spec §3: "<name>_<agg_type>" when aggregated, else
// "<name>_<metric_of_interest>".
func (m MetricSpec) ColumnName() string {
	if m.Agg != nil {
		return m.Name + "_" + string(m.Agg.AggType)
	}
	return m.Name + "_" + m.MetricOfInterest
}

// Test is one configured entry of the `tests` sequence in the YAML
// configuration document (spec §6).
type Test struct {
	Name           string            `yaml:"name" json:"name"`
	Metadata       map[string]any    `yaml:"metadata" json:"metadata"`
	MetadataIndex  string            `yaml:"metadata_index,omitempty" json:"metadata_index,omitempty"`
	BenchmarkIndex string            `yaml:"benchmark_index,omitempty" json:"benchmark_index,omitempty"`
	VersionField   string            `yaml:"version_field,omitempty" json:"version_field,omitempty"`
	UUIDField      string            `yaml:"uuid_field,omitempty" json:"uuid_field,omitempty"`
	Timestamp      string            `yaml:"timestamp,omitempty" json:"timestamp,omitempty"`
	Threshold      float64           `yaml:"threshold,omitempty" json:"threshold,omitempty"`
	Metrics        []MetricSpec      `yaml:"metrics" json:"metrics"`
	ParentConfig   string            `yaml:"parentConfig,omitempty" json:"parentConfig,omitempty"`
	MetricsFile    string            `yaml:"metricsFile,omitempty" json:"metricsFile,omitempty"`
	Display        []string          `yaml:"display,omitempty" json:"display,omitempty"`
}

const (
	DefaultVersionField = "ocpVersion"
	DefaultUUIDField    = "uuid"
	DefaultTimestamp    = "timestamp"
)

// VersionFieldOrDefault returns t.VersionField, falling back to
// DefaultVersionField.
func (t Test) VersionFieldOrDefault() string {
	if t.VersionField == "" {
		return DefaultVersionField
	}
	return t.VersionField
}

// UUIDFieldOrDefault returns t.UUIDField, falling back to
// DefaultUUIDField.
func (t Test) UUIDFieldOrDefault() string {
	if t.UUIDField == "" {
		return DefaultUUIDField
	}
	return t.UUIDField
}

// TimestampOrDefault returns t.Timestamp, falling back to
// DefaultTimestamp.
func (t Test) TimestampOrDefault() string {
	if t.Timestamp == "" {
		return DefaultTimestamp
	}
	return t.Timestamp
}

// JobType distinguishes the pull-request and periodic analysis
// variants produced by the Pull/Periodic Coordinator (C5).
type JobType string

const (
	JobTypePull     JobType = "pull"
	JobTypePeriodic JobType = "periodic"
)

// BogusBuildURL is the placeholder used when a run document carries
// neither `buildUrl` nor `build_url` (spec §3).
const BogusBuildURL = "http://bogus-url"

// RunDescriptor is one matched run, as returned by the Index Client's
// lookup operation.
type RunDescriptor struct {
	RunID     RunID
	Version   string
	BuildURL  string
	Timestamp int64 // seconds since epoch
	Display   map[string]string
}

// AckEntry is one operator-supplied acknowledgement: a known,
// accepted regression on (RunID, metric column).
type AckEntry struct {
	UUID   RunID  `yaml:"uuid" json:"uuid"`
	Metric string `yaml:"metric" json:"metric"`
}

// AckDocument is the top-level shape of an acknowledgement YAML file.
type AckDocument struct {
	Ack []AckEntry `yaml:"ack" json:"ack"`
}
