// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil provides HTTP helpers shared across stages: rate-limit
// aware retries for the citation graph APIs and a fixed-interval pacer for
// the enricher.
package httputil

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// RetryBaseDelay is the first backoff when a throttled response carries no
// usable Retry-After header. Tests override this to avoid real sleeps.
var RetryBaseDelay = 10 * time.Second

// MaxRetryAfter caps the wait a server may request through Retry-After.
var MaxRetryAfter = 2 * time.Minute

const defaultMaxRetries = 5

// DoWithRetry executes req and retries while the server is throttling:
// HTTP 429 always, HTTP 503 only when it carries a Retry-After header.
// The wait is the server's Retry-After when given in seconds (capped at
// MaxRetryAfter), else RetryBaseDelay doubled on each attempt.
//
// When maxRetries is 0 the default (5) is used. The throttled response
// body is drained and closed before waiting. If ctx is cancelled during a
// wait the function returns ctx.Err(). After exhausting retries the last
// throttled response is returned so the caller can inspect it.
func DoWithRetry(ctx context.Context, client *http.Client, req *http.Request, maxRetries int) (*http.Response, error) {
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}

	for attempt := 0; ; attempt++ {
		resp, err := client.Do(req.Clone(ctx))
		if err != nil {
			return nil, err
		}

		wait, throttled := backoff(resp, attempt)
		if !throttled || attempt >= maxRetries {
			return resp, nil
		}

		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		slog.Debug("httputil: rate limited, backing off",
			"url", req.URL.String(), "status", resp.StatusCode, "backoff", wait,
			"attempt", attempt+1, "max", maxRetries)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

// backoff reports whether resp is a throttling response and how long to
// wait before the next attempt.
func backoff(resp *http.Response, attempt int) (time.Duration, bool) {
	after, hasAfter := retryAfter(resp.Header.Get("Retry-After"))
	switch resp.StatusCode {
	case http.StatusTooManyRequests:
	case http.StatusServiceUnavailable:
		if !hasAfter {
			return 0, false
		}
	default:
		return 0, false
	}
	if hasAfter {
		return after, true
	}
	return RetryBaseDelay << attempt, true
}

// retryAfter parses a delay-seconds Retry-After value. HTTP-date values
// are not supported and fall back to exponential backoff.
func retryAfter(v string) (time.Duration, bool) {
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs < 0 {
		return 0, false
	}
	d := time.Duration(secs) * time.Second
	if d > MaxRetryAfter {
		d = MaxRetryAfter
	}
	return d, true
}
