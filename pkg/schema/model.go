// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package schema reads the CSV schemas that describe telemetry fields,
// remote commands and simulation test cases, and validates them against the
// fixed firmware type table.
package schema

import (
	"fmt"
	"strings"
)

// Display types accepted in the display_type column
const (
	DisplayFloat = "float"
	DisplayInt   = "int"
	DisplayBool  = "bool"
)

// MaxCommandArgs is the largest argument count a command may declare.
const MaxCommandArgs = 4

// Field is one row of a data schema.
type Field struct {
	Row      int
	Name     string
	Variable string
	Min      float64
	Max      float64
	HasMin   bool
	HasMax   bool
	Unit     string
	Type     string
	Scale    float64
	Generate bool

	DisplayNameOverride string
	DisplayType         string
}

// DisplayName is the key the field is decoded under on the ground station.
func (f Field) DisplayName() string {
	if f.DisplayNameOverride != "" {
		return f.DisplayNameOverride
	}
	return f.Variable
}

// ArrayRef splits an indexed variable such as "ivlv[3]" into its array name
// and index. ok is false for plain scalars.
func (f Field) ArrayRef() (name string, index int, ok bool, err error) {
	return ParseVariable(f.Variable)
}

// ParseVariable validates a firmware variable and splits off its array index.
func ParseVariable(v string) (name string, index int, indexed bool, err error) {
	open := strings.IndexByte(v, '[')
	if open == -1 {
		if !IsIdentifier(v) {
			return "", 0, false, fmt.Errorf("%q is not a valid C identifier", v)
		}
		return v, 0, false, nil
	}

	name = v[:open]
	if !IsIdentifier(name) {
		return "", 0, false, fmt.Errorf("%q is not a valid C identifier", name)
	}
	closing := strings.IndexByte(v, ']')
	if closing != len(v)-1 || closing < open+2 {
		return "", 0, false, fmt.Errorf("array items must be written as name[index], got %q", v)
	}
	digits := v[open+1 : closing]
	if len(digits) > 1 && digits[0] == '0' {
		return "", 0, false, fmt.Errorf("array index %q has a leading zero", digits)
	}
	index = 0
	for _, c := range digits {
		if c < '0' || c > '9' {
			return "", 0, false, fmt.Errorf("array index %q is not a decimal number", digits)
		}
		index = index*10 + int(c-'0')
		if index > 1<<16 {
			return "", 0, false, fmt.Errorf("array index %q is too large", digits)
		}
	}
	return name, index, true, nil
}

// IsIdentifier reports whether s is a valid C identifier.
func IsIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, c := range s {
		switch {
		case c == '_', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

// Arg is one typed argument of a command.
type Arg struct {
	Name  string
	Type  string
	Scale float64
}

// Command is one row of a command schema.
type Command struct {
	Row     int
	Name    string
	Targets []int
	Args    []Arg
}

// SupportsTarget reports whether the command is built for the given board.
func (c Command) SupportsTarget(id int) bool {
	for _, t := range c.Targets {
		if t == id {
			return true
		}
	}
	return false
}

// EntryKind classifies a test case entry
type EntryKind int

const (
	EntryData EntryKind = iota
	EntryCommand
	EntrySkip
)

func (k EntryKind) String() string {
	switch k {
	case EntryData:
		return "data"
	case EntryCommand:
		return "command"
	default:
		return "skip"
	}
}

// TestEntry is one time step of a simulation test case. Values holds the raw
// cell text of every data column; empty cells are forward-filled later.
type TestEntry struct {
	Row      int
	Kind     EntryKind
	Duration uint32
	Values   map[string]string
	Function string
	Args     []string
}

// TestCase is a parsed simulation test case table.
type TestCase struct {
	Source  string
	Columns []string // data columns, in table order
	Entries []TestEntry
}
