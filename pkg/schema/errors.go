// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package schema

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Sentinel errors for each schema error kind. The typed errors below match
// their sentinel through errors.Is.
var (
	ErrSchemaFormat   = errors.New("schema: malformed schema")
	ErrUnknownType    = errors.New("schema: unknown firmware type")
	ErrRange          = errors.New("schema: value out of wire range")
	ErrTypeConflict   = errors.New("schema: array type conflict")
	ErrIncompleteInit = errors.New("schema: incomplete simulation init")
	ErrArgumentCount  = errors.New("schema: wrong argument count")
)

// location renders "file:row" prefixes shared by every row error.
func location(source string, row int) string {
	var b strings.Builder
	if source != "" {
		b.WriteString(source)
	}
	if row > 0 {
		if b.Len() > 0 {
			b.WriteString(" ")
		}
		b.WriteString("[row ")
		b.WriteString(strconv.Itoa(row))
		b.WriteString("]")
	}
	if b.Len() > 0 {
		b.WriteString(" ")
	}
	return b.String()
}

// SchemaFormatError reports a missing column or a malformed cell.
type SchemaFormatError struct {
	Source  string
	Row     int
	Column  string
	Message string
}

// Error implements the error interface.
func (e *SchemaFormatError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("%sschema error in column %q: %s", location(e.Source, e.Row), e.Column, e.Message)
	}
	return fmt.Sprintf("%sschema error: %s", location(e.Source, e.Row), e.Message)
}

// Is reports whether target is ErrSchemaFormat.
func (e *SchemaFormatError) Is(target error) bool {
	return target == ErrSchemaFormat
}

// UnknownTypeError reports a firmware type that is not in the type table.
type UnknownTypeError struct {
	Source string
	Row    int
	Type   string
}

// Error implements the error interface.
func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("%sunknown firmware type %q (valid types: %s)",
		location(e.Source, e.Row), e.Type, strings.Join(TypeNames(), ", "))
}

// Is reports whether target is ErrUnknownType.
func (e *UnknownTypeError) Is(target error) bool {
	return target == ErrUnknownType
}

// RangeError reports a scaled bound that does not fit the wire type.
type RangeError struct {
	Source string
	Row    int
	Item   string
	Bound  string // "min" or "max", or "value" for simulation cells
	Scaled float64
	Type   string
	Limit  float64
}

// Error implements the error interface.
func (e *RangeError) Error() string {
	return fmt.Sprintf("%s%s: %s %s does not fit %s (limit %s)",
		location(e.Source, e.Row), e.Item, e.Bound,
		formatNumber(e.Scaled), e.Type, formatNumber(e.Limit))
}

// Is reports whether target is ErrRange.
func (e *RangeError) Is(target error) bool {
	return target == ErrRange
}

// TypeConflictError reports array members declared with different types.
type TypeConflictError struct {
	Source string
	Row    int
	Array  string
	Want   string
	Got    string
}

// Error implements the error interface.
func (e *TypeConflictError) Error() string {
	return fmt.Sprintf("%sarray %s: all items must share one type, got %s after %s",
		location(e.Source, e.Row), e.Array, e.Got, e.Want)
}

// Is reports whether target is ErrTypeConflict.
func (e *TypeConflictError) Is(target error) bool {
	return target == ErrTypeConflict
}

// IncompleteInitError reports a first data entry that leaves a field empty.
type IncompleteInitError struct {
	Source string
	Row    int
	Field  string
}

// Error implements the error interface.
func (e *IncompleteInitError) Error() string {
	return fmt.Sprintf("%sfirst data entry must initialize every field, %s is empty",
		location(e.Source, e.Row), e.Field)
}

// Is reports whether target is ErrIncompleteInit.
func (e *IncompleteInitError) Is(target error) bool {
	return target == ErrIncompleteInit
}

// ArgumentCountError reports a command invocation with the wrong arity.
type ArgumentCountError struct {
	Source  string
	Row     int
	Command string
	Want    int
	Got     int
}

// Error implements the error interface.
func (e *ArgumentCountError) Error() string {
	return fmt.Sprintf("%s%s requires %d arguments, got %d",
		location(e.Source, e.Row), e.Command, e.Want, e.Got)
}

// Is reports whether target is ErrArgumentCount.
func (e *ArgumentCountError) Is(target error) bool {
	return target == ErrArgumentCount
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
