// Copyright 2025 The Danmarkskort Authors
// SPDX-License-Identifier: Apache-2.0

package geosearch

import (
	"net/http"
	"strconv"
	"sync"
	"time"
)

// Quota is a point-in-time snapshot of a metered source's remaining budget,
// taken from the rate-limit headers of its most recent response.
type Quota struct {
	Remaining  int
	Limit      int
	Reset      time.Time
	ObservedAt time.Time
}

// Exhausted reports whether the snapshot shows no remaining budget.
func (q Quota) Exhausted() bool {
	return q.Limit > 0 && q.Remaining <= 0
}

// ParseQuota extracts a quota snapshot from X-Ratelimit-* response headers.
// It returns false when the headers carry no usable remaining count.
func ParseQuota(h http.Header) (Quota, bool) {
	remaining := h.Get("X-Ratelimit-Remaining")
	if remaining == "" {
		return Quota{}, false
	}
	rem, err := strconv.Atoi(remaining)
	if err != nil {
		return Quota{}, false
	}
	q := Quota{Remaining: rem, ObservedAt: time.Now()}
	if limit, err := strconv.Atoi(h.Get("X-Ratelimit-Limit")); err == nil {
		q.Limit = limit
	}
	if reset, err := strconv.ParseInt(h.Get("X-Ratelimit-Reset"), 10, 64); err == nil {
		q.Reset = time.Unix(reset, 0)
	}
	return q, true
}

// QuotaTracker remembers the latest quota snapshot per source. Safe for
// concurrent use; absent or malformed headers leave the last snapshot intact.
type QuotaTracker struct {
	mu   sync.Mutex
	seen map[string]Quota
}

// NewQuotaTracker returns an empty tracker.
func NewQuotaTracker() *QuotaTracker {
	return &QuotaTracker{seen: make(map[string]Quota)}
}

// Record parses the rate-limit headers of a response and stores the snapshot
// under the given source name.
func (t *QuotaTracker) Record(source string, h http.Header) {
	q, ok := ParseQuota(h)
	if !ok {
		return
	}
	t.mu.Lock()
	t.seen[source] = q
	t.mu.Unlock()
}

// Last returns the most recent snapshot for the source, if any.
func (t *QuotaTracker) Last(source string) (Quota, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	q, ok := t.seen[source]
	return q, ok
}
