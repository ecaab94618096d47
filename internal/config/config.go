// Copyright (C) 2023 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package config loads the YAML test-configuration document (spec
// §6): template expansion, parentConfig/metricsFile inheritance, and
// acknowledgement-file loading/merging. Grounded on orion/config.py,
// with the Jinja2+StrictUndefined rendering replaced by
// text/template+sprig per SPEC_FULL.md §2.2.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cloud-bulldozer/orion-go/pkg/schema"
)

// Document is the top-level shape of the YAML configuration file.
type Document struct {
	Tests []schema.Test `yaml:"tests"`
}

// Load reads path, expands it as a template against vars (environment
// variables lower-cased, overridden by vars), resolves parentConfig/
// metricsFile inheritance relative to path's directory, and returns
// the fully merged set of tests. Grounded on
// orion/config.py:load_config.
func Load(path string, vars map[string]string) (Document, error) {
	env := environmentVars()
	for k, v := range vars {
		env[k] = v
	}

	raw, err := readFile(path)
	if err != nil {
		return Document{}, err
	}
	rendered, err := RenderTemplate(raw, env)
	if err != nil {
		return Document{}, fmt.Errorf("config: render %s: %w", path, err)
	}

	var generic any
	if err := yaml.Unmarshal([]byte(rendered), &generic); err != nil {
		return Document{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := schema.ValidateConfig(generic); err != nil {
		return Document{}, fmt.Errorf("config: %s: %w", path, err)
	}

	var doc struct {
		Tests        []schema.Test `yaml:"tests"`
		ParentConfig string        `yaml:"parentConfig"`
		MetricsFile  string        `yaml:"metricsFile"`
	}
	if err := yaml.Unmarshal([]byte(rendered), &doc); err != nil {
		return Document{}, fmt.Errorf("config: parse %s: %w", path, err)
	}

	configDir := filepath.Dir(path)

	var parentMeta map[string]any
	if doc.ParentConfig != "" {
		parent, err := loadParentConfig(resolvePath(configDir, doc.ParentConfig), env)
		if err != nil {
			return Document{}, err
		}
		parentMeta = parent
	}

	var inheritedMetrics []schema.MetricSpec
	if doc.MetricsFile != "" {
		metrics, err := loadMetricsFile(resolvePath(configDir, doc.MetricsFile), env)
		if err != nil {
			return Document{}, err
		}
		inheritedMetrics = metrics
	}

	for i := range doc.Tests {
		testParent, testMetrics := parentMeta, inheritedMetrics
		if p := doc.Tests[i].ParentConfig; p != "" {
			if testParent, err = loadParentConfig(resolvePath(configDir, p), env); err != nil {
				return Document{}, err
			}
		}
		if f := doc.Tests[i].MetricsFile; f != "" {
			if testMetrics, err = loadMetricsFile(resolvePath(configDir, f), env); err != nil {
				return Document{}, err
			}
		}
		if testParent != nil {
			doc.Tests[i].Metadata = mergeMetadata(doc.Tests[i].Metadata, testParent)
		}
		if testMetrics != nil {
			doc.Tests[i].Metrics = mergeMetrics(doc.Tests[i].Metrics, testMetrics)
		}
	}

	return Document{Tests: doc.Tests}, nil
}

// loadParentConfig loads and renders path, returning only its
// top-level "metadata" mapping — the only piece of a parent config
// that participates in test inheritance (spec §6).
func loadParentConfig(path string, env map[string]string) (map[string]any, error) {
	raw, err := readFile(path)
	if err != nil {
		return nil, err
	}
	rendered, err := RenderTemplate(raw, env)
	if err != nil {
		return nil, fmt.Errorf("config: render parentConfig %s: %w", path, err)
	}
	var parent struct {
		Metadata map[string]any `yaml:"metadata"`
	}
	if err := yaml.Unmarshal([]byte(rendered), &parent); err != nil {
		return nil, fmt.Errorf("config: parse parentConfig %s: %w", path, err)
	}
	return parent.Metadata, nil
}

// loadMetricsFile loads and renders path as a bare list of metric
// specs, appended to a test's own metrics when absent by name (spec §6).
func loadMetricsFile(path string, env map[string]string) ([]schema.MetricSpec, error) {
	raw, err := readFile(path)
	if err != nil {
		return nil, err
	}
	rendered, err := RenderTemplate(raw, env)
	if err != nil {
		return nil, fmt.Errorf("config: render metricsFile %s: %w", path, err)
	}
	var metrics []schema.MetricSpec
	if err := yaml.Unmarshal([]byte(rendered), &metrics); err != nil {
		return nil, fmt.Errorf("config: parse metricsFile %s: %w", path, err)
	}
	return metrics, nil
}

// mergeMetadata merges a test's own metadata over the parent's,
// per-key, config taking precedence (orion/config.py:merge_configs).
func mergeMetadata(own, parent map[string]any) map[string]any {
	merged := make(map[string]any, len(own)+len(parent))
	for k, v := range parent {
		merged[k] = v
	}
	for k, v := range own {
		merged[k] = v
	}
	return merged
}

// mergeMetrics appends any inherited metric absent from own (matched
// by Name), own's entries take precedence
// (orion/config.py:merge_lists).
func mergeMetrics(own, inherited []schema.MetricSpec) []schema.MetricSpec {
	seen := make(map[string]bool, len(own))
	for _, m := range own {
		seen[m.Name] = true
	}
	merged := make([]schema.MetricSpec, len(own), len(own)+len(inherited))
	copy(merged, own)
	for _, m := range inherited {
		if !seen[m.Name] {
			merged = append(merged, m)
			seen[m.Name] = true
		}
	}
	return merged
}

func resolvePath(configDir, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(configDir, path)
}

func readFile(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("config: read %s: %w", path, err)
	}
	return string(raw), nil
}

// environmentVars returns the process environment as a lower-cased
// key map, the base layer --input-vars overrides (spec §6).
func environmentVars() map[string]string {
	out := map[string]string{}
	for _, kv := range os.Environ() {
		parts := strings.SplitN(kv, "=", 2)
		if len(parts) != 2 {
			continue
		}
		out[strings.ToLower(parts[0])] = parts[1]
	}
	return out
}
