// Copyright 2025 The Danmarkskort Authors
// SPDX-License-Identifier: Apache-2.0

package geosearch

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType classifies search failures so callers can decide between
// retrying, backing off, and giving up.
type ErrorType int

const (
	// ErrorTypeUnknown is an unclassified error.
	ErrorTypeUnknown ErrorType = iota

	// ErrorTypeRateLimit indicates the source rejected the request
	// because a usage quota was exhausted.
	ErrorTypeRateLimit

	// ErrorTypeAuth indicates the request was rejected for credential
	// reasons (missing or invalid token).
	ErrorTypeAuth

	// ErrorTypeNetwork indicates a transport-level failure (DNS, timeout,
	// connection refused).
	ErrorTypeNetwork

	// ErrorTypeBadRequest indicates the source rejected the query itself.
	ErrorTypeBadRequest

	// ErrorTypeServer indicates a 5xx from the source.
	ErrorTypeServer
)

func (t ErrorType) String() string {
	switch t {
	case ErrorTypeRateLimit:
		return "rate_limit"
	case ErrorTypeAuth:
		return "auth"
	case ErrorTypeNetwork:
		return "network"
	case ErrorTypeBadRequest:
		return "bad_request"
	case ErrorTypeServer:
		return "server"
	default:
		return "unknown"
	}
}

// SearchError is a classified failure from a source adapter.
type SearchError struct {
	Type    ErrorType
	Source  string
	Message string
	Err     error
}

func (e *SearchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %s: %v", e.Source, e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s: %s", e.Source, e.Type, e.Message)
}

func (e *SearchError) Unwrap() error {
	return e.Err
}

// NewSearchError builds a classified error for the given source.
func NewSearchError(errorType ErrorType, source, message string, err error) *SearchError {
	return &SearchError{
		Type:    errorType,
		Source:  source,
		Message: message,
		Err:     err,
	}
}

// IsRateLimitError reports whether err is a quota rejection.
func IsRateLimitError(err error) bool {
	var se *SearchError
	return errors.As(err, &se) && se.Type == ErrorTypeRateLimit
}

// IsAuthError reports whether err is a credential rejection.
func IsAuthError(err error) bool {
	var se *SearchError
	return errors.As(err, &se) && se.Type == ErrorTypeAuth
}

// IsNetworkError reports whether err is a transport-level failure.
func IsNetworkError(err error) bool {
	var se *SearchError
	return errors.As(err, &se) && se.Type == ErrorTypeNetwork
}

// ClassifyHTTPStatus maps a non-2xx response to a SearchError.
func ClassifyHTTPStatus(source string, statusCode int, body string) *SearchError {
	switch {
	case statusCode == http.StatusTooManyRequests:
		return NewSearchError(ErrorTypeRateLimit, source,
			fmt.Sprintf("quota exhausted (HTTP %d): %s", statusCode, body), nil)
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return NewSearchError(ErrorTypeAuth, source,
			fmt.Sprintf("request rejected (HTTP %d): %s", statusCode, body), nil)
	case statusCode >= 500:
		return NewSearchError(ErrorTypeServer, source,
			fmt.Sprintf("upstream failure (HTTP %d): %s", statusCode, body), nil)
	case statusCode >= 400:
		return NewSearchError(ErrorTypeBadRequest, source,
			fmt.Sprintf("query rejected (HTTP %d): %s", statusCode, body), nil)
	default:
		return NewSearchError(ErrorTypeUnknown, source,
			fmt.Sprintf("unexpected status (HTTP %d): %s", statusCode, body), nil)
	}
}
