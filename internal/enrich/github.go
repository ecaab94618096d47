// Copyright (C) 2023 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package enrich

import (
	"context"
	"fmt"
	"strings"
	"time"

	gogithub "github.com/google/go-github/v32/github"
	"github.com/patrickmn/go-cache"
	"golang.org/x/oauth2"
)

// githubClient is the concrete GitHubClient adapter: releases,
// commits, and pull-request creation-date lookup, with a per-process
// cache keyed by (repo, from-ts, to-ts) per spec §4.6. Grounded on
// orion/github_client.py's caching and graceful-degradation behavior.
type githubClient struct {
	api   *gogithub.Client
	cache *cache.Cache
}

// NewGitHubClient constructs a GitHubClient. token may be empty for
// unauthenticated (rate-limited) access.
func NewGitHubClient(ctx context.Context, token string) GitHubClient {
	var api *gogithub.Client
	if token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		api = gogithub.NewClient(oauth2.NewClient(ctx, ts))
	} else {
		api = gogithub.NewClient(nil)
	}
	return &githubClient{
		api:   api,
		cache: cache.New(30*time.Minute, time.Hour),
	}
}

type cacheKey struct {
	repo   string
	fromTS int64
	toTS   int64
}

func (k cacheKey) String() string {
	return fmt.Sprintf("%s|%d|%d", k.repo, k.fromTS, k.toTS)
}

// GetChangeContext returns releases and commits for repo whose
// timestamps fall strictly between prevTS and curTS. Rate-limit and
// not-found responses degrade to (nil, nil) rather than an error,
// per spec §4.7.
func (c *githubClient) GetChangeContext(ctx context.Context, repo string, prevTS, curTS int64, prevVersion, curVersion string) (*GitHubContext, error) {
	key := cacheKey{repo: repo, fromTS: prevTS, toTS: curTS}.String()
	if cached, ok := c.cache.Get(key); ok {
		ghCtx, _ := cached.(*GitHubContext)
		return ghCtx, nil
	}

	owner, name, ok := splitRepo(repo)
	if !ok {
		return nil, nil
	}

	from := time.Unix(prevTS, 0).UTC()
	to := time.Unix(curTS, 0).UTC()

	var releaseNames []string
	releases, resp, err := c.api.Repositories.ListReleases(ctx, owner, name, &gogithub.ListOptions{PerPage: 50})
	if err == nil && resp != nil && resp.StatusCode < 500 {
		for _, r := range releases {
			if r.CreatedAt == nil {
				continue
			}
			if r.CreatedAt.After(from) && r.CreatedAt.Before(to) {
				releaseNames = append(releaseNames, r.GetName())
			}
		}
	}

	var commitMessages []string
	commits, resp, err := c.api.Repositories.ListCommits(ctx, owner, name, &gogithub.CommitsListOptions{
		Since: from,
		Until: to,
	})
	if err == nil && resp != nil && resp.StatusCode < 500 {
		for _, cm := range commits {
			if cm.Commit != nil && cm.Commit.Message != nil {
				commitMessages = append(commitMessages, *cm.Commit.Message)
			}
		}
	}

	if len(releaseNames) == 0 && len(commitMessages) == 0 {
		c.cache.Set(key, (*GitHubContext)(nil), cache.DefaultExpiration)
		return nil, nil
	}
	ghCtx := &GitHubContext{Releases: releaseNames, Commits: commitMessages}
	c.cache.Set(key, ghCtx, cache.DefaultExpiration)
	return ghCtx, nil
}

// GetPullRequestCreationDate returns the PR's creation timestamp, or
// (0, false, nil) when the lookup fails or rate-limits (spec §4.5,
// §4.7).
func (c *githubClient) GetPullRequestCreationDate(ctx context.Context, org, repo string, number int) (int64, bool, error) {
	pr, resp, err := c.api.PullRequests.Get(ctx, org, repo, number)
	if err != nil || resp == nil || resp.StatusCode >= 400 {
		return 0, false, nil
	}
	if pr.CreatedAt == nil {
		return 0, false, nil
	}
	return pr.CreatedAt.Unix(), true, nil
}

func splitRepo(repo string) (owner, name string, ok bool) {
	parts := strings.SplitN(repo, "/", 2)
	if len(parts) != 2 {
		return "", "", false
	}
	return parts[0], parts[1], true
}
