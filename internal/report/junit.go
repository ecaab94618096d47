// Copyright (C) 2023 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package report

import (
	"encoding/xml"
)

// JUnit test-report types, grounded on
// orion/utils.py:json_to_junit's testsuite/testcase/failure shape.

type junitTestSuites struct {
	XMLName xml.Name        `xml:"testsuites"`
	Suites  []junitTestSuite `xml:"testsuite"`
}

type junitTestSuite struct {
	Name     string          `xml:"name,attr"`
	Tests    int             `xml:"tests,attr"`
	Failures int             `xml:"failures,attr"`
	Cases    []junitTestCase `xml:"testcase"`
}

type junitTestCase struct {
	Name      string        `xml:"name,attr"`
	Timestamp int64         `xml:"timestamp,attr"`
	Failure   *junitFailure `xml:"failure,omitempty"`
}

type junitFailure struct {
	Text string `xml:",chardata"`
}

// JUnit renders one testsuite for testName, one testcase per metric;
// a testcase is a failure iff any row has a nonzero percentage change
// for that metric, with the tabular rendering embedded in the failure
// text (spec §4.6).
func JUnit(testName string, records []Record, labelsByMetric map[string]string, displayColumns []string, timestamp int64) ([]byte, error) {
	metrics := MetricNames(records)
	suite := junitTestSuite{Name: testName + " nightly compare", Tests: len(metrics)}

	for _, metric := range metrics {
		name := metric + " regression detection"
		if label := labelsByMetric[metric]; label != "" {
			name = label + " " + name
		}
		testcase := junitTestCase{Name: name, Timestamp: timestamp}

		hasChange := false
		for _, r := range records {
			if r.Metrics[metric].PercentageChange != 0 {
				hasChange = true
				break
			}
		}
		if hasChange {
			suite.Failures++
			testcase.Failure = &junitFailure{Text: "\n" + Text(records, metric, displayColumns) + "\n"}
		}
		suite.Cases = append(suite.Cases, testcase)
	}

	doc := junitTestSuites{Suites: []junitTestSuite{suite}}
	out, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), out...), nil
}
