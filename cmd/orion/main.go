// Copyright (C) 2023 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Command orion is the command-line front end for the regression
// detection pipeline (spec §1: out-of-core "external collaborator").
// Grounded on cc-backend/cmd/cc-backend/main.go's flag-parse →
// wire-components → run → exit-code shape.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/cloud-bulldozer/orion-go/internal/changepoint"
	"github.com/cloud-bulldozer/orion-go/internal/config"
	"github.com/cloud-bulldozer/orion-go/internal/coordinator"
	"github.com/cloud-bulldozer/orion-go/internal/enrich"
	"github.com/cloud-bulldozer/orion-go/internal/indexclient"
	"github.com/cloud-bulldozer/orion-go/internal/lookback"
	"github.com/cloud-bulldozer/orion-go/internal/report"
	"github.com/cloud-bulldozer/orion-go/pkg/log"
	"github.com/cloud-bulldozer/orion-go/pkg/schema"
)

// Exit codes per spec §6.
const (
	exitSuccess       = 0
	exitConfigOrIO    = 1
	exitRegression    = 2
	exitNoDataForTest = 3
)

func main() {
	cliInit()
	logLevel, err := log.ParseLevel(flagLogLevel)
	if err != nil {
		logLevel = log.LevelInfo
	}
	logger := log.New(os.Stderr, logLevel, flagLogDateTime)

	if err := validateFlags(); err != nil {
		logger.Errorf("configuration error: %v", err)
		os.Exit(exitConfigOrIO)
	}

	code, err := run(logger)
	if err != nil {
		logger.Errorf("%v", err)
		os.Exit(exitConfigOrIO)
	}
	os.Exit(code)
}

func run(logger *log.Logger) (int, error) {
	ctx := context.Background()

	vars, err := parseInputVars(flagInputVars)
	if err != nil {
		return exitConfigOrIO, fmt.Errorf("orion: %w", err)
	}
	doc, err := config.Load(flagConfig, vars)
	if err != nil {
		return exitConfigOrIO, fmt.Errorf("orion: %w", err)
	}

	var acks []schema.AckEntry
	if flagAck != "" && !flagNoAck {
		acks, err = config.LoadAcks(splitCSV(flagAck))
		if err != nil {
			return exitConfigOrIO, fmt.Errorf("orion: %w", err)
		}
	}

	tag, err := algorithmTag()
	if err != nil {
		return exitConfigOrIO, fmt.Errorf("orion: %w", err)
	}

	window, err := lookback.Resolve(flagLookback, flagSince, time.Now())
	if err != nil {
		return exitConfigOrIO, fmt.Errorf("orion: %w", err)
	}

	esConfig := indexclient.Config{Addresses: []string{esServer()}}

	var githubClient enrich.GitHubClient
	var repos []string
	if flagGitHubRepos != "" {
		repos = splitCSV(flagGitHubRepos)
		githubClient = enrich.NewGitHubClient(ctx, githubToken())
	}
	var prdiff enrich.PRDiffService
	if flagSippyPRSearch {
		prdiff = enrich.NewSippyPRDiffService(os.Getenv("SIPPY_URL"))
	}
	var shortener enrich.Shortener
	if flagConvertTinyURL {
		shortener = enrich.NewTinyURLShortener()
	}

	env := pipelineEnv{
		esConfig: esConfig,
		algorithmTag: tag,
		algorithmOpts: changepoint.Options{
			SeriesAnalyzer:    changepoint.NewReferenceSeriesAnalyzer(),
			AnomalyWindow:     flagAnomalyWindow,
			MinAnomalyPercent: flagMinAnomalyPercent,
		},
		initialWindow:  window,
		maxRows:        flagLookbackSize,
		acks:           acks,
		noAck:          flagNoAck,
		convertTinyURL: flagConvertTinyURL,
		shortener:      shortener,
		jobFilter:      !flagNodeCount,
		log:            logger,
	}

	displayColumns := splitCSV(flagDisplay)

	var overallRegression bool
	var anyNoData bool
	var allRecords []report.Record
	var builder strings.Builder
	var junitSuites [][]byte

	for _, test := range doc.Tests {
		if test.MetadataIndex == "" {
			test.MetadataIndex = flagMetadataIndex
		}
		if test.BenchmarkIndex == "" {
			test.BenchmarkIndex = test.MetadataIndex
		}

		pair, err := coordinator.Run(ctx, test, env.Analyze, flagPRAnalysis)
		if err != nil {
			return exitConfigOrIO, fmt.Errorf("orion: test %q: %w", test.Name, err)
		}

		pullEmpty := pair.Pull == nil || pair.Pull.Table == nil
		periodicEmpty := pair.Periodic == nil || pair.Periodic.Table == nil
		if pullEmpty && periodicEmpty {
			anyNoData = true
			logger.Warnf("test %q: no data matched its fingerprint", test.Name)
			continue
		}

		for _, variant := range []*coordinator.AnalysisResult{pair.Pull, pair.Periodic} {
			if variant == nil || variant.Table == nil {
				continue
			}
			if variant.Regression {
				overallRegression = true
			}
			records := report.Build(variant.Table, variant.Survivors, variant.Test.Metrics)
			if githubClient != nil && len(repos) > 0 {
				timestamps := make([]int64, len(variant.Table.Rows))
				for i, row := range variant.Table.Rows {
					timestamps[i] = row.Timestamp
				}
				report.EnrichGitHub(ctx, githubClient, repos, records, timestamps)
			}
			if flagCollapse {
				records = report.Collapse(records)
			}
			allRecords = append(allRecords, records...)

			switch flagOutputFormat {
			case "text":
				for _, metric := range test.Metrics {
					builder.WriteString(fmt.Sprintf("=== %s: %s ===\n", test.Name, metric.ColumnName()))
					builder.WriteString(report.Text(records, metric.ColumnName(), displayColumns))
				}
			case "junit":
				xml, err := report.JUnit(test.Name, records, metricLabels(test.Metrics), displayColumns, time.Now().Unix())
				if err != nil {
					return exitConfigOrIO, fmt.Errorf("orion: junit %q: %w", test.Name, err)
				}
				junitSuites = append(junitSuites, xml)
			}

			if prdiff != nil {
				// Wired per SPEC_FULL.md §4: the sippy PR-diff service
				// is asked for the PRs shipped between the previous and
				// current version, and their count is logged; the
				// report records are left unchanged.
				for col, points := range variant.Survivors {
					for _, p := range points {
						idx := p.Index
						if idx <= 0 || idx >= len(variant.Table.Rows) {
							continue
						}
						prev := variant.Table.Rows[idx-1].Version
						cur := variant.Table.Rows[idx].Version
						prs, err := prdiff.Diff(ctx, prev, cur)
						if err != nil {
							logger.Warnf("orion: sippy diff for %q/%s: %v", test.Name, col, err)
							continue
						}
						if len(prs) > 0 {
							logger.Infof("test %q metric %s: %d PR(s) shipped between %s and %s", test.Name, col, len(prs), prev, cur)
						}
					}
				}
			}
		}
	}

	output, err := renderOutput(builder.String(), allRecords, junitSuites)
	if err != nil {
		return exitConfigOrIO, fmt.Errorf("orion: %w", err)
	}

	if err := writeOutput(output); err != nil {
		return exitConfigOrIO, fmt.Errorf("orion: %w", err)
	}

	if prowJobID := os.Getenv("PROW_JOB_ID"); prowJobID != "" {
		if err := writeRecordsSideArtifact(allRecords); err != nil {
			logger.Warnf("orion: PROW_JOB_ID side artifact: %v", err)
		}
	}

	switch {
	case overallRegression:
		return exitRegression, nil
	case anyNoData:
		return exitNoDataForTest, nil
	default:
		return exitSuccess, nil
	}
}

func algorithmTag() (changepoint.Tag, error) {
	switch {
	case flagHunterAnalyze:
		return changepoint.TagEDivisive, nil
	case flagAnomalyDetection:
		return changepoint.TagIsolationForest, nil
	case flagCMR:
		return changepoint.TagCMR, nil
	default:
		return "", errors.New("no algorithm selected: pass one of --hunter-analyze, --anomaly-detection, --cmr")
	}
}

func renderOutput(text string, records []report.Record, junitSuites [][]byte) (string, error) {
	switch flagOutputFormat {
	case "text":
		return text, nil
	case "json":
		raw, err := json.MarshalIndent(records, "", "  ")
		if err != nil {
			return "", err
		}
		return string(raw), nil
	case "junit":
		var b strings.Builder
		for _, suite := range junitSuites {
			b.Write(suite)
			b.WriteByte('\n')
		}
		return b.String(), nil
	default:
		return "", fmt.Errorf("unknown output format %q", flagOutputFormat)
	}
}

func writeOutput(output string) error {
	if flagSaveOutputPath == "" {
		fmt.Println(output)
		return nil
	}
	return os.WriteFile(flagSaveOutputPath, []byte(output), 0o644)
}

// writeRecordsSideArtifact writes the records (JSON) form of the
// report alongside the primary output when PROW_JOB_ID is set, per
// spec §6 Environment / SPEC_FULL.md §4.
func writeRecordsSideArtifact(records []report.Record) error {
	raw, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return err
	}
	path := "orion-records.json"
	if flagSaveOutputPath != "" {
		path = flagSaveOutputPath + ".records.json"
	}
	return os.WriteFile(path, raw, 0o644)
}

func parseInputVars(raw string) (map[string]string, error) {
	out := map[string]string{}
	if raw == "" {
		return out, nil
	}
	var decoded map[string]any
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return nil, fmt.Errorf("--input-vars is not valid JSON: %w", err)
	}
	for k, v := range decoded {
		out[strings.ToLower(k)] = fmt.Sprintf("%v", v)
	}
	return out, nil
}

// metricLabels reduces each metric's label map to one representative
// string for the JUnit test-case name prefix (spec §4.6), taking the
// label map's lexicographically first key for determinism.
func metricLabels(metrics []schema.MetricSpec) map[string]string {
	out := make(map[string]string, len(metrics))
	for _, m := range metrics {
		if len(m.Labels) == 0 {
			continue
		}
		keys := make([]string, 0, len(m.Labels))
		for k := range m.Labels {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out[m.ColumnName()] = m.Labels[keys[0]]
	}
	return out
}

func splitCSV(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
