// Copyright (C) 2023 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package enrich

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// tinyURLShortener is a resty-backed adapter over TinyURL's create-api
// endpoint, grounded on orion/utils.py:shorten_url's pyshorteners use
// and idiomatically built the way
// AMD-AGI-Primus-SaFE/Lens/modules/core/pkg/github/client.go
// constructs its resty client.
type tinyURLShortener struct {
	http *resty.Client
}

// NewTinyURLShortener constructs a Shortener backed by TinyURL.
func NewTinyURLShortener() Shortener {
	client := resty.New().SetTimeout(10 * time.Second)
	return &tinyURLShortener{http: client}
}

func (s *tinyURLShortener) Shorten(ctx context.Context, url string) (string, error) {
	if url == "" {
		return url, nil
	}
	resp, err := s.http.R().
		SetContext(ctx).
		SetQueryParam("url", url).
		Get("https://tinyurl.com/api-create.php")
	if err != nil {
		return url, fmt.Errorf("enrich: shorten %q: %w", url, err)
	}
	if resp.IsError() {
		return url, fmt.Errorf("enrich: shorten %q: tinyurl returned %s", url, resp.Status())
	}
	short := string(resp.Body())
	if short == "" {
		return url, nil
	}
	return short, nil
}
