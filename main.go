// Copyright 2026 The Ridemap Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"github.com/ridemap/ridemap/cmd"
)

var Version = "development"

func main() {
	cmd.Execute(Version)
}
