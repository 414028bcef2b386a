// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// Telemgen - Telemetry and command code generator
//
// Generates firmware telemetry packers, command dispatch tables, simulation
// tables and Go packet decoders from CSV schemas, and decodes captured
// packets with the same layout.

package main

import (
	"os"

	"github.com/Thermoquad/telemgen/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
