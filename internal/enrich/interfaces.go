// Copyright (C) 2023 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package enrich declares the External Enricher Contracts (C7) and
// their concrete adapters. No enricher failure fails the analysis
// (spec §4.7, §7 propagation policy): the Shortener and PRDiff adapters
// return their errors, which callers log and skip, while a GitHub
// lookup failure yields an empty context rather than an error.
package enrich

import "context"

// Shortener shortens a URL. A failed shorten must not fail the
// pipeline; callers fall back to the original URL (spec §4.7).
type Shortener interface {
	Shorten(ctx context.Context, url string) (string, error)
}

// GitHubContext is the optional enrichment attached to a change point
// when GitHub repositories are configured (spec §4.6).
type GitHubContext struct {
	Releases []string
	Commits  []string
}

// GitHubClient resolves release/commit context between two timestamps
// and a pull request's creation date. Rate-limit responses degrade to
// a nil result, never an error, per spec §4.7.
type GitHubClient interface {
	GetChangeContext(ctx context.Context, repo string, prevTS, curTS int64, prevVersion, curVersion string) (*GitHubContext, error)
	GetPullRequestCreationDate(ctx context.Context, org, repo string, number int) (int64, bool, error)
}

// PRDiffService looks up the pull requests that shipped between two
// versions. An empty list is a valid outcome (spec §4.7).
type PRDiffService interface {
	Diff(ctx context.Context, prevVersion, curVersion string) ([]string, error)
}
