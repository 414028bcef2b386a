// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package schema

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Test case columns. Every other column is a data column named by the
// firmware variable it overrides.
const (
	ColEntryType   = "type"
	ColDuration    = "duration"
	ColDescription = "description"
)

// argColumn names the n-th command argument column of a test case.
func argColumn(n int) string {
	return "arg" + strconv.Itoa(n)
}

func isReservedTestColumn(c string) bool {
	switch c {
	case ColEntryType, ColDuration, ColDescription, ColFunctionName:
		return true
	}
	for i := range MaxCommandArgs {
		if c == argColumn(i) {
			return true
		}
	}
	return false
}

func parseEntryKind(raw string) (EntryKind, bool) {
	switch strings.ToLower(raw) {
	case "d", "data":
		return EntryData, true
	case "c", "cmd", "command":
		return EntryCommand, true
	case "s", "skip":
		return EntrySkip, true
	}
	return 0, false
}

// ReadTestCase parses a simulation test case table. Skip entries are
// dropped; data cells are kept raw so the simulation builder can forward-fill
// and type-check them against the packet layout.
func ReadTestCase(r io.Reader, source string) (*TestCase, error) {
	t, err := readTable(r, source)
	if err != nil {
		return nil, err
	}
	if err := t.require(ColEntryType, ColDuration); err != nil {
		return nil, err
	}

	tc := &TestCase{Source: source}
	for _, col := range t.columns {
		if isReservedTestColumn(col) {
			continue
		}
		if len(t.occurrences[col]) > 1 {
			return nil, &SchemaFormatError{Source: source, Row: 1, Column: col, Message: "data column appears more than once"}
		}
		tc.Columns = append(tc.Columns, col)
	}

	var argCols []string
	for i := range MaxCommandArgs {
		if t.has(argColumn(i)) {
			argCols = append(argCols, argColumn(i))
		}
	}

	var errs []error
	for _, row := range t.rows {
		if row.blank() {
			continue
		}
		rawKind := t.cell(row, ColEntryType)
		kind, ok := parseEntryKind(rawKind)
		if !ok {
			errs = append(errs, t.formatError(row, ColEntryType, "entry type must be d (data), c (cmd) or s (skip), got %q", rawKind))
			continue
		}
		if kind == EntrySkip {
			continue
		}

		rawDuration := t.cell(row, ColDuration)
		if rawDuration == "" {
			errs = append(errs, t.formatError(row, ColDuration, "duration must be specified"))
			continue
		}
		duration, err := strconv.ParseUint(rawDuration, 10, 32)
		if err != nil || duration == 0 {
			errs = append(errs, t.formatError(row, ColDuration, "duration must be a positive integer, got %q", rawDuration))
			continue
		}

		entry := TestEntry{Row: row.line, Kind: kind, Duration: uint32(duration)}
		switch kind {
		case EntryData:
			entry.Values = make(map[string]string, len(tc.Columns))
			for _, col := range tc.Columns {
				entry.Values[col] = t.cell(row, col)
			}
		case EntryCommand:
			entry.Function = t.cell(row, ColFunctionName)
			if entry.Function == "" {
				errs = append(errs, t.formatError(row, ColFunctionName, "command function name not specified"))
				continue
			}
			for _, col := range argCols {
				entry.Args = append(entry.Args, t.cell(row, col))
			}
		}
		tc.Entries = append(tc.Entries, entry)
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return tc, nil
}

// LoadTestCase reads a simulation test case from disk.
func LoadTestCase(path string) (*TestCase, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open test case: %w", err)
	}
	defer f.Close()
	return ReadTestCase(f, path)
}
