// Copyright 2025 The Danmarkskort Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"github.com/AndersKabel/danmarkskort/cmd"
)

var Version = "development"

func main() {
	cmd.Execute(Version)
}
