// Copyright 2025 The Danmarkskort Authors
// SPDX-License-Identifier: Apache-2.0

// Package marker tracks map markers through their lifecycle, from a
// transient search result pin to a remotely persisted marker.
package marker

import (
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/AndersKabel/danmarkskort/spatial"
)

// Mode is a marker's lifecycle stage.
type Mode int

const (
	// ModeTransient markers come from search results and vanish when the
	// next search replaces them.
	ModeTransient Mode = iota
	// ModeRetained markers survive search turnover but live only in this
	// process.
	ModeRetained
	// ModePersisted markers are mirrored to the remote store.
	ModePersisted
)

func (m Mode) String() string {
	switch m {
	case ModeTransient:
		return "transient"
	case ModeRetained:
		return "retained"
	case ModePersisted:
		return "persisted"
	default:
		return "unknown"
	}
}

// Marker is one pin on the map. Handle identifies it within this process;
// StableID identifies the spot across processes and restarts.
type Marker struct {
	Handle      string
	StableID    string
	Workspace   string
	MapID       string
	Coord       spatial.Point
	Title       string
	Note        string
	Mode        Mode
	Highlighted bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewHandle mints a process-local marker handle. Handles are lexically
// sortable by creation time.
func NewHandle() string {
	return ulid.Make().String()
}
