// Copyright 2025 The Danmarkskort Authors
// SPDX-License-Identifier: Apache-2.0

package marker

import (
	"fmt"

	"github.com/AndersKabel/danmarkskort/spatial"
)

// StableID derives a marker's durable identity from its workspace, map and
// coordinate. The coordinate is rounded to five decimals first, so two
// placements of the same spot always produce the same id regardless of
// floating-point jitter in the inputs.
func StableID(workspace, mapID string, p spatial.Point) string {
	return fmt.Sprintf("%s|%s|%.5f|%.5f",
		workspace, mapID, spatial.Round5(p.Lat), spatial.Round5(p.Lng))
}
