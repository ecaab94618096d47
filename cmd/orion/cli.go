// Copyright (C) 2023 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package main

import (
	"flag"
	"fmt"
	"os"
)

var (
	flagConfig, flagESServer, flagMetadataIndex                     string
	flagLookback, flagSince, flagOutputFormat, flagSaveOutputPath   string
	flagAck, flagGitHubRepos, flagDisplay, flagInputVars            string
	flagLookbackSize, flagAnomalyWindow                             int
	flagMinAnomalyPercent                                           float64
	flagHunterAnalyze, flagAnomalyDetection, flagCMR                bool
	flagNoAck, flagConvertTinyURL, flagCollapse                     bool
	flagSippyPRSearch, flagPRAnalysis, flagNodeCount                bool
	flagLogLevel                                                    string
	flagLogDateTime                                                 bool
)

func cliInit() {
	flag.StringVar(&flagConfig, "config", "", "Path to the YAML test configuration (required)")
	flag.StringVar(&flagESServer, "es-server", "", "OpenSearch/Elasticsearch URL (required, overridden by ES_SERVER)")
	flag.StringVar(&flagMetadataIndex, "metadata-index", "", "Metadata index name (required)")

	flag.BoolVar(&flagHunterAnalyze, "hunter-analyze", false, "Use the E-Divisive change-point algorithm")
	flag.BoolVar(&flagAnomalyDetection, "anomaly-detection", false, "Use the isolation-forest-with-moving-average algorithm")
	flag.BoolVar(&flagCMR, "cmr", false, "Use the comparative-mean algorithm")

	flag.StringVar(&flagLookback, "lookback", "", "Relative lookback window in XdYh format")
	flag.StringVar(&flagSince, "since", "", "Absolute lookback start date, YYYY-MM-DD")
	flag.IntVar(&flagLookbackSize, "lookback-size", 10000, "Maximum number of rows to retrieve per test")

	flag.StringVar(&flagOutputFormat, "output-format", "text", "Output format: json, text, or junit")
	flag.StringVar(&flagSaveOutputPath, "save-output-path", "", "File path to write the rendered report to (stdout if empty)")

	flag.IntVar(&flagAnomalyWindow, "anomaly-window", 0, "Isolation-forest moving-average window (default 5)")
	flag.Float64Var(&flagMinAnomalyPercent, "min-anomaly-percent", 0, "Isolation-forest minimum percent change to flag (default 10)")

	flag.StringVar(&flagDisplay, "display", "", "Comma-separated display column names added to the text and JUnit reports; no component fills their values, so the cells are empty")

	flag.StringVar(&flagAck, "ack", "", "Comma-separated paths to acknowledgement YAML files")
	flag.BoolVar(&flagNoAck, "no-ack", false, "Disable ack-file filtering even if --ack is set")
	flag.BoolVar(&flagConvertTinyURL, "convert-tinyurl", false, "Shorten build URLs via TinyURL")
	flag.BoolVar(&flagCollapse, "collapse", false, "Only report change-point rows and their immediate neighbors")
	flag.BoolVar(&flagSippyPRSearch, "sippy-pr-search", false, "Enrich change points via the sippy PR-diff service")
	flag.BoolVar(&flagPRAnalysis, "pr-analysis", false, "Force the pull/periodic split even without a pull_number in metadata")
	flag.BoolVar(&flagNodeCount, "node-count", false, "Disable kube-burner job-iteration filtering")
	flag.StringVar(&flagGitHubRepos, "github-repos", "", "Comma-separated org/repo pairs for GitHub enrichment")

	flag.StringVar(&flagInputVars, "input-vars", "", "JSON object of template variables for config rendering")

	flag.StringVar(&flagLogLevel, "loglevel", "info", "Log level: debug, info, warn, error")
	flag.BoolVar(&flagLogDateTime, "logdate", false, "Prefix log lines with date/time")

	flag.Parse()
}

// validateFlags enforces the mutually-exclusive algorithm selection
// and required-flag rules of spec §6/§7 (configuration errors fail
// fast, exit 1).
func validateFlags() error {
	if flagConfig == "" {
		return fmt.Errorf("--config is required")
	}
	if esServer() == "" {
		return fmt.Errorf("--es-server is required (or set ES_SERVER)")
	}
	if flagMetadataIndex == "" {
		return fmt.Errorf("--metadata-index is required")
	}
	selected := 0
	for _, v := range []bool{flagHunterAnalyze, flagAnomalyDetection, flagCMR} {
		if v {
			selected++
		}
	}
	if selected > 1 {
		return fmt.Errorf("--hunter-analyze, --anomaly-detection, and --cmr are mutually exclusive")
	}
	switch flagOutputFormat {
	case "json", "text", "junit":
	default:
		return fmt.Errorf("--output-format must be one of json, text, junit")
	}
	return nil
}

// esServer resolves the configured ES server, with ES_SERVER
// overriding --es-server (spec §6 Environment).
func esServer() string {
	if v := os.Getenv("ES_SERVER"); v != "" {
		return v
	}
	return flagESServer
}

func githubToken() string {
	if v := os.Getenv("GITHUB_TOKEN"); v != "" {
		return v
	}
	return os.Getenv("GH_TOKEN")
}
