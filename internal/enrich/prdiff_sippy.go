// Copyright (C) 2023 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// sippyPRDiffService is a resty-backed client for the sippy
// pull-request diff/search service, grounded on
// orion/utils.py:sippy_pr_diff / sippy_pr_search.
type sippyPRDiffService struct {
	http    *resty.Client
	baseURL string
}

// NewSippyPRDiffService constructs a PRDiffService against baseURL
// (the sippy instance's API root).
func NewSippyPRDiffService(baseURL string) PRDiffService {
	return &sippyPRDiffService{
		http:    resty.New().SetTimeout(20 * time.Second),
		baseURL: baseURL,
	}
}

type sippyPRDiffResponse struct {
	PullRequests []struct {
		URL string `json:"url"`
	} `json:"pull_requests"`
}

func (s *sippyPRDiffService) Diff(ctx context.Context, prevVersion, curVersion string) ([]string, error) {
	if s.baseURL == "" {
		return nil, nil
	}
	resp, err := s.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{"from": prevVersion, "to": curVersion}).
		Get(s.baseURL + "/api/pr_diff")
	if err != nil {
		return nil, fmt.Errorf("enrich: sippy pr diff: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("enrich: sippy pr diff returned %s", resp.Status())
	}
	var decoded sippyPRDiffResponse
	if err := json.Unmarshal(resp.Body(), &decoded); err != nil {
		return nil, fmt.Errorf("enrich: decode sippy pr diff response: %w", err)
	}
	urls := make([]string, 0, len(decoded.PullRequests))
	for _, pr := range decoded.PullRequests {
		urls = append(urls, pr.URL)
	}
	return urls, nil
}
