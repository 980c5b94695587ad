// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Perigee Space Systems
//
// Vela - host-side controller and ground tooling for the satellite
// payload link.

package main

import (
	"os"

	"github.com/perigee-space/vela/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
