// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package schema

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"slices"
	"strconv"
	"strings"
)

// Data schema columns
const (
	ColName                = "name"
	ColFirmwareVariable    = "firmware_variable"
	ColMinVal              = "min_val"
	ColMaxVal              = "max_val"
	ColUnit                = "unit"
	ColFirmwareType        = "firmware_type"
	ColTransmitScale       = "transmit_scale"
	ColShouldGenerate      = "should_generate"
	ColDisplayNameOverride = "display_name_override"
	ColDisplayType         = "display_type"
)

// Command schema columns. The arg_name, arg_type and transmit_scale columns
// repeat once per argument and are paired by occurrence.
const (
	ColFunctionName       = "function_name"
	ColNumArgs            = "num_args"
	ColSupportedTargetIDs = "supported_target_ids"
	ColArgName            = "arg_name"
	ColArgType            = "arg_type"
)

// DataColumns lists the columns every data schema must carry.
var DataColumns = []string{
	ColName, ColFirmwareVariable, ColMinVal, ColMaxVal, ColUnit,
	ColFirmwareType, ColTransmitScale, ColShouldGenerate,
	ColDisplayNameOverride, ColDisplayType,
}

// CommandColumns lists the fixed columns every command schema must carry.
var CommandColumns = []string{ColFunctionName, ColNumArgs, ColSupportedTargetIDs}

const (
	generateYes = "y"
	generateNo  = "n"
)

// table is a header-addressed view of a CSV document.
type table struct {
	source      string
	columns     []string
	occurrences map[string][]int
	rows        []tableRow
}

type tableRow struct {
	line  int
	cells []string
}

func readTable(r io.Reader, source string) (*table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, &SchemaFormatError{Source: source, Row: 1, Message: "empty schema, expected a header row"}
	}
	if err != nil {
		return nil, &SchemaFormatError{Source: source, Message: err.Error()}
	}

	t := &table{source: source, occurrences: make(map[string][]int)}
	for i, h := range header {
		h = strings.TrimSpace(h)
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		if h == "" {
			continue
		}
		t.columns = append(t.columns, h)
		t.occurrences[h] = append(t.occurrences[h], i)
	}

	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				return nil, &SchemaFormatError{Source: source, Row: perr.Line, Message: perr.Err.Error()}
			}
			return nil, &SchemaFormatError{Source: source, Message: err.Error()}
		}
		line, _ := cr.FieldPos(0)
		t.rows = append(t.rows, tableRow{line: line, cells: record})
	}

	return t, nil
}

// require reports every listed column absent from the header.
func (t *table) require(columns ...string) error {
	var errs []error
	for _, c := range columns {
		if len(t.occurrences[c]) == 0 {
			errs = append(errs, &SchemaFormatError{Source: t.source, Row: 1, Column: c, Message: "required column is missing"})
		}
	}
	return errors.Join(errs...)
}

func (t *table) has(column string) bool {
	return len(t.occurrences[column]) > 0
}

// cell returns the trimmed value of the first column with the given name.
func (t *table) cell(row tableRow, column string) string {
	return t.cellN(row, column, 0)
}

// cellN returns the trimmed value of the n-th column with the given name.
func (t *table) cellN(row tableRow, column string, n int) string {
	idx := t.occurrences[column]
	if n >= len(idx) || idx[n] >= len(row.cells) {
		return ""
	}
	return strings.TrimSpace(row.cells[idx[n]])
}

func (row tableRow) blank() bool {
	for _, c := range row.cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func (t *table) formatError(row tableRow, column, format string, args ...any) error {
	return &SchemaFormatError{Source: t.source, Row: row.line, Column: column, Message: fmt.Sprintf(format, args...)}
}

// shouldGenerate parses the y/n gate.
func (t *table) shouldGenerate(row tableRow) (bool, error) {
	switch strings.ToLower(t.cell(row, ColShouldGenerate)) {
	case generateYes:
		return true, nil
	case generateNo:
		return false, nil
	default:
		return false, t.formatError(row, ColShouldGenerate, "should_generate can only be 'y' or 'n', got %q", t.cell(row, ColShouldGenerate))
	}
}

// number parses an optional numeric cell.
func (t *table) number(row tableRow, column string, n int) (float64, bool, error) {
	raw := t.cellN(row, column, n)
	if raw == "" {
		return 0, false, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false, t.formatError(row, column, "%q is not a number", raw)
	}
	return v, true, nil
}

// scale parses a transmit scale, defaulting to 1 when empty.
func (t *table) scale(row tableRow, column string, n int) (float64, error) {
	v, ok, err := t.number(row, column, n)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 1, nil
	}
	if v <= 0 {
		return 0, t.formatError(row, column, "transmit scale must be positive, got %s", formatNumber(v))
	}
	return v, nil
}

// ReadFields parses a data schema. Rows whose should_generate is 'n' are
// skipped; every row error is reported, joined.
func ReadFields(r io.Reader, source string) ([]Field, error) {
	t, err := readTable(r, source)
	if err != nil {
		return nil, err
	}
	if err := t.require(DataColumns...); err != nil {
		return nil, err
	}

	var fields []Field
	var errs []error
	for _, row := range t.rows {
		if row.blank() {
			continue
		}
		gen, err := t.shouldGenerate(row)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !gen {
			continue
		}

		f := Field{
			Row:                 row.line,
			Name:                t.cell(row, ColName),
			Variable:            t.cell(row, ColFirmwareVariable),
			Unit:                t.cell(row, ColUnit),
			Type:                t.cell(row, ColFirmwareType),
			Generate:            true,
			DisplayNameOverride: t.cell(row, ColDisplayNameOverride),
			DisplayType:         strings.ToLower(t.cell(row, ColDisplayType)),
		}
		var rowErrs []error
		if f.Min, f.HasMin, err = t.number(row, ColMinVal, 0); err != nil {
			rowErrs = append(rowErrs, err)
		}
		if f.Max, f.HasMax, err = t.number(row, ColMaxVal, 0); err != nil {
			rowErrs = append(rowErrs, err)
		}
		if f.Scale, err = t.scale(row, ColTransmitScale, 0); err != nil {
			rowErrs = append(rowErrs, err)
		}
		if len(rowErrs) > 0 {
			errs = append(errs, rowErrs...)
			continue
		}
		fields = append(fields, f)
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return fields, nil
}

// ReadCommands parses a command schema. Rows with an empty function_name are
// skipped, as are rows gated off by an optional should_generate column.
func ReadCommands(r io.Reader, source string) ([]Command, error) {
	t, err := readTable(r, source)
	if err != nil {
		return nil, err
	}
	if err := t.require(CommandColumns...); err != nil {
		return nil, err
	}

	triples := len(t.occurrences[ColArgName])
	if len(t.occurrences[ColArgType]) != triples || len(t.occurrences[ColTransmitScale]) != triples {
		return nil, &SchemaFormatError{Source: source, Row: 1, Message: fmt.Sprintf(
			"argument columns must come in (arg_name, arg_type, transmit_scale) triples, got %d/%d/%d",
			triples, len(t.occurrences[ColArgType]), len(t.occurrences[ColTransmitScale]))}
	}
	maxArgs := min(triples, MaxCommandArgs)

	var cmds []Command
	var errs []error
	for _, row := range t.rows {
		name := t.cell(row, ColFunctionName)
		if row.blank() || name == "" {
			continue
		}
		if t.has(ColShouldGenerate) {
			gen, err := t.shouldGenerate(row)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			if !gen {
				continue
			}
		}

		cmd := Command{Row: row.line, Name: name}

		rawArgs := t.cell(row, ColNumArgs)
		numArgs, err := strconv.Atoi(rawArgs)
		if rawArgs == "" {
			numArgs, err = 0, nil
		}
		if err != nil || numArgs < 0 {
			errs = append(errs, t.formatError(row, ColNumArgs, "%q is not an argument count", rawArgs))
			continue
		}
		if numArgs > maxArgs {
			errs = append(errs, t.formatError(row, ColNumArgs, "%s declares %d arguments, at most %d are supported", name, numArgs, maxArgs))
			continue
		}

		targets, err := ParseTargets(t.cell(row, ColSupportedTargetIDs))
		if err != nil {
			errs = append(errs, t.formatError(row, ColSupportedTargetIDs, "%v", err))
			continue
		}
		cmd.Targets = targets

		failed := false
		for i := range numArgs {
			scale, err := t.scale(row, ColTransmitScale, i)
			if err != nil {
				errs = append(errs, err)
				failed = true
				continue
			}
			cmd.Args = append(cmd.Args, Arg{
				Name:  t.cellN(row, ColArgName, i),
				Type:  t.cellN(row, ColArgType, i),
				Scale: scale,
			})
		}
		if failed {
			continue
		}
		cmds = append(cmds, cmd)
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return cmds, nil
}

// ParseTargets parses a supported_target_ids cell into a sorted id set.
// Ids may be separated by commas, semicolons, pipes or whitespace.
func ParseTargets(raw string) ([]int, error) {
	parts := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ';' || r == '|' || r == ' ' || r == '\t'
	})
	seen := make(map[int]bool, len(parts))
	var ids []int
	for _, p := range parts {
		id, err := strconv.Atoi(p)
		if err != nil || id < 0 {
			return nil, fmt.Errorf("%q is not a target id", p)
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

// LoadFields reads a data schema from disk.
func LoadFields(path string) ([]Field, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open data schema: %w", err)
	}
	defer f.Close()
	return ReadFields(f, path)
}

// LoadCommands reads a command schema from disk.
func LoadCommands(path string) ([]Command, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open command schema: %w", err)
	}
	defer f.Close()
	return ReadCommands(f, path)
}
