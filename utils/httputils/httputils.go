// Copyright 2025 The Danmarkskort Authors
// SPDX-License-Identifier: Apache-2.0

// Package httputils provides the HTTP plumbing shared by the location-source
// adapters and the marker-store client: request tracing, default headers and
// a cookie jar that enforces expiration on session cookies.
package httputils

import (
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httputil"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"
)

// ClientOptions configures NewClient.
type ClientOptions struct {
	// UserAgent is sent on every request.
	UserAgent string

	// Timeout for whole requests; zero means 30 seconds.
	Timeout time.Duration

	// SessionTTL caps the lifetime of session cookies that come without an
	// expiration date. Zero disables the jar entirely (stateless clients).
	SessionTTL time.Duration

	// TraceWriter enables light request/response tracing when non-nil.
	TraceWriter io.Writer

	// TraceBody includes response bodies in the trace.
	TraceBody bool
}

// NewClient builds an HTTP client with the transport stack the adapters use:
// conservative connection limits, default headers, optional tracing and an
// expiring cookie jar for session-cookie authenticated stores.
func NewClient(opts ClientOptions) (*http.Client, error) {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = "danmarkskort/unknown"
	}

	var transport http.RoundTripper = &http.Transport{
		MaxIdleConns:          10,
		MaxIdleConnsPerHost:   4,
		MaxConnsPerHost:       4,
		IdleConnTimeout:       30 * time.Second,
		ResponseHeaderTimeout: timeout,
	}

	transport = &LoggingRoundTripper{
		Writer:    opts.TraceWriter,
		DumpBody:  opts.TraceBody,
		Transport: transport,
	}

	transport = &AppendRequestHeadersRoundTripper{
		Headers: map[string]string{
			"User-Agent": userAgent,
			"Accept":     "application/json",
		},
		Transport: transport,
	}

	client := &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}

	if opts.SessionTTL > 0 {
		jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
		if err != nil {
			return nil, fmt.Errorf("creating cookie jar: %w", err)
		}

		// Some stores issue session cookies without an expiration even
		// though the server side forgets them; cap them locally.
		client.Jar = &EnforceExpirationCookieJar{
			Target:   jar,
			Duration: opts.SessionTTL,
		}
	}

	return client, nil
}

// LoggingRoundTripper adds a very primitive trace of the HTTP transaction.
type LoggingRoundTripper struct {
	Transport http.RoundTripper
	Writer    io.Writer
	DumpBody  bool
}

// abbreviate prefixes and truncates dump lines so traces stay readable.
func abbreviate(lines []string, prefix rune) []string {
	const maxLines, maxChars = 2048, 512

	for i, line := range lines {
		if i >= maxLines {
			break
		}

		lines[i] = fmt.Sprintf("%c %s", prefix, line)
	}

	if len(lines) > maxLines {
		lines = lines[:maxLines]
		lines = append(lines, "…")
	}

	for i, line := range lines {
		if len(line) > maxChars {
			lines[i] = line[0:maxChars] + "…"
		}
	}

	return lines
}

// RoundTrip implements the http.RoundTripper interface.
func (t *LoggingRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.Writer == nil {
		return t.Transport.RoundTrip(req)
	}

	dump, err := httputil.DumpRequestOut(req, true)
	if err != nil {
		return nil, fmt.Errorf("tracing HTTP request: %w", err)
	}

	lines := abbreviate(strings.Split(string(dump), "\n"), '>')
	if _, err := fmt.Fprint(t.Writer, strings.Join(append(lines, ""), "\n")); err != nil {
		return nil, err
	}

	start := time.Now()

	resp, err := t.Transport.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	dump, err = httputil.DumpResponse(resp, t.DumpBody)
	if err != nil {
		return nil, fmt.Errorf("tracing HTTP response: %w", err)
	}

	if _, err := fmt.Fprintf(t.Writer, "< RESPONSE: [%v]\n", time.Since(start)); err != nil {
		return nil, err
	}

	lines = abbreviate(strings.Split(string(dump), "\n"), '<')
	if _, err := fmt.Fprint(t.Writer, strings.Join(append(lines, ""), "\n")); err != nil {
		return nil, err
	}

	return resp, nil
}

// AppendRequestHeadersRoundTripper adds headers to the request.
type AppendRequestHeadersRoundTripper struct {
	Transport http.RoundTripper
	Headers   map[string]string
}

// RoundTrip implements the http.RoundTripper interface.
func (t *AppendRequestHeadersRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	for k, v := range t.Headers {
		if req.Header.Get(k) == "" {
			req.Header.Set(k, v)
		}
	}

	return t.Transport.RoundTrip(req)
}

// EnforceExpirationCookieJar wraps a cookie jar and stamps an expiration on
// cookies that arrive without one.
type EnforceExpirationCookieJar struct {
	Target   http.CookieJar
	Duration time.Duration
}

// SetCookies sets the cookies, enforcing an expiration date where missing.
func (t *EnforceExpirationCookieJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	now := time.Now()

	for _, cookie := range cookies {
		if cookie.Expires.IsZero() && cookie.MaxAge == 0 {
			cookie.Expires = now.Add(t.Duration)
		}
	}

	t.Target.SetCookies(u, cookies)
}

// Cookies returns the cookies for the URL.
func (t *EnforceExpirationCookieJar) Cookies(u *url.URL) []*http.Cookie {
	return t.Target.Cookies(u)
}
