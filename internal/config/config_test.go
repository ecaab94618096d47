// Copyright (C) 2023 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cloud-bulldozer/orion-go/internal/config"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

func TestRenderTemplateSubstitutesVars(t *testing.T) {
	out, err := config.RenderTemplate("es_server: {{ .es_server }}", map[string]string{"es_server": "https://es.example.com"})
	if err != nil {
		t.Fatalf("RenderTemplate: %v", err)
	}
	if out != "es_server: https://es.example.com" {
		t.Fatalf("unexpected render: %q", out)
	}
}

func TestRenderTemplateFailsOnUndefinedVar(t *testing.T) {
	if _, err := config.RenderTemplate("es_server: {{ .missing }}", map[string]string{}); err == nil {
		t.Fatal("expected an error referencing an undefined template variable")
	}
}

func TestLoadResolvesParentConfigAndMetricsFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "parent.yaml", "metadata:\n  platform: aws\n  clusterType: self-managed\n")
	writeFile(t, dir, "metrics.yaml", "- name: throughput\n  metric_of_interest: value\n  direction: 1\n  threshold: 5\n")
	cfgPath := writeFile(t, dir, "config.yaml", `
tests:
  - name: my-test
    parentConfig: parent.yaml
    metricsFile: metrics.yaml
    metadata:
      platform: gcp
    metrics:
      - name: latency
        metric_of_interest: value
        direction: 1
        threshold: 5
`)
	doc, err := config.Load(cfgPath, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(doc.Tests) != 1 {
		t.Fatalf("expected one test, got %d", len(doc.Tests))
	}
	test := doc.Tests[0]
	// The test's own metadata.platform overrides the parent's.
	if test.Metadata["platform"] != "gcp" {
		t.Fatalf("expected child metadata to override the parent, got %v", test.Metadata["platform"])
	}
	// clusterType only exists on the parent and should be inherited.
	if test.Metadata["clusterType"] != "self-managed" {
		t.Fatalf("expected inherited parent metadata field, got %v", test.Metadata["clusterType"])
	}
	if len(test.Metrics) != 2 {
		t.Fatalf("expected the test's own metric plus the inherited one, got %d", len(test.Metrics))
	}
}

func TestLoadMetricsFileDoesNotOverrideOwnMetric(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "metrics.yaml", "- name: latency\n  metric_of_interest: value\n  direction: -1\n  threshold: 99\n")
	cfgPath := writeFile(t, dir, "config.yaml", `
tests:
  - name: my-test
    metricsFile: metrics.yaml
    metadata:
      platform: aws
      ocpVersion: "4.15"
    metrics:
      - name: latency
        metric_of_interest: value
        direction: 1
        threshold: 5
`)
	doc, err := config.Load(cfgPath, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(doc.Tests[0].Metrics) != 1 {
		t.Fatalf("expected the test's own metric to win over the metricsFile entry by name, got %+v", doc.Tests[0].Metrics)
	}
	if doc.Tests[0].Metrics[0].Threshold != 5 {
		t.Fatalf("expected the test's own threshold to survive, got %v", doc.Tests[0].Metrics[0].Threshold)
	}
}

func TestLoadAcksUnionsMultipleFiles(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "ack-a.yaml", "ack:\n  - uuid: run-1\n    metric: latency_value\n")
	b := writeFile(t, dir, "ack-b.yaml", "ack:\n  - uuid: run-2\n    metric: throughput_value\n")
	entries, err := config.LoadAcks([]string{a, b})
	if err != nil {
		t.Fatalf("LoadAcks: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected the union of both ack files, got %+v", entries)
	}
}

func TestLoadAcksRejectsMissingTopLevelKey(t *testing.T) {
	dir := t.TempDir()
	bad := writeFile(t, dir, "bad.yaml", "not_ack: []\n")
	if _, err := config.LoadAcks([]string{bad}); err == nil {
		t.Fatal("expected an error for an ack file missing the top-level 'ack' key")
	}
}
