// Copyright (C) 2023 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package report

import (
	"context"

	"github.com/cloud-bulldozer/orion-go/internal/enrich"
	"github.com/cloud-bulldozer/orion-go/internal/tableutil"
)

// EnrichGitHub augments every change-point row's GitHubContext with
// releases and commits whose timestamps fall strictly between the
// previous row's timestamp and the change point's timestamp, for
// every repo in repos (spec §4.6). Failures from client are swallowed
// per the enricher contract (spec §4.7, §7).
func EnrichGitHub(ctx context.Context, client enrich.GitHubClient, repos []string, records []Record, rowTimestamps []int64) {
	if client == nil || len(repos) == 0 {
		return
	}
	for i := range records {
		if !records[i].IsChangePoint {
			continue
		}
		var prevTS int64
		if i > 0 {
			prevTS = rowTimestamps[i-1]
		}
		curTS := rowTimestamps[i]
		for _, repo := range repos {
			context, err := client.GetChangeContext(ctx, repo, prevTS, curTS, "", "")
			if err != nil || context == nil {
				continue
			}
			if records[i].GitHubContext == nil {
				records[i].GitHubContext = &enrich.GitHubContext{}
			}
			merged := records[i].GitHubContext
			merged.Releases = append(merged.Releases, context.Releases...)
			merged.Commits = append(merged.Commits, context.Commits...)
		}
	}
}

// rowTimestampsFromDisplay recovers row timestamps from DisplayString-formatted
// records for callers that only have the rendered Record slice, not
// the original Table.
func rowTimestampsFromDisplay(records []Record) []int64 {
	out := make([]int64, len(records))
	for i, r := range records {
		out[i] = parseDisplayTimestamp(r.Timestamp)
	}
	return out
}

func parseDisplayTimestamp(display string) int64 {
	seconds, err := tableutil.NormalizeTimestamp(display)
	if err != nil {
		return 0
	}
	return seconds
}
