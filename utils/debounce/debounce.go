// Copyright 2025 The Danmarkskort Authors
// SPDX-License-Identifier: Apache-2.0

// Package debounce coalesces rapid repeated triggers into a single delayed
// action, keyed by entity identity. Scheduling the same key again resets the
// pending timer instead of stacking a second one.
package debounce

import (
	"sync"
	"time"
)

// Scheduler owns one pending timer per key.
type Scheduler struct {
	delay time.Duration

	mu     sync.Mutex
	timers map[string]*time.Timer
}

// NewScheduler creates a scheduler firing actions after the given delay.
func NewScheduler(delay time.Duration) *Scheduler {
	return &Scheduler{
		delay:  delay,
		timers: make(map[string]*time.Timer),
	}
}

// Schedule arranges for action to run after the scheduler's delay. A pending
// action for the same key is dropped and its timer reset; only the last
// scheduled action runs. The action runs on the timer goroutine, so it must
// perform its own liveness check: the entity it targets may be gone by the
// time it fires.
func (s *Scheduler) Schedule(key string, action func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.timers[key]; ok {
		t.Stop()
	}

	s.timers[key] = time.AfterFunc(s.delay, func() {
		s.mu.Lock()
		delete(s.timers, key)
		s.mu.Unlock()

		action()
	})
}

// Cancel drops any pending action for the key.
func (s *Scheduler) Cancel(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.timers[key]; ok {
		t.Stop()
		delete(s.timers, key)
	}
}

// Stop drops every pending action.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, t := range s.timers {
		t.Stop()
		delete(s.timers, key)
	}
}

// Pending reports whether the key has an action waiting to fire.
func (s *Scheduler) Pending(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.timers[key]

	return ok
}
