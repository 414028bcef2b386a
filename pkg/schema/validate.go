// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package schema

import (
	"errors"
	"fmt"
)

// ValidateField checks a single field against the type table: the type must
// be known and the scaled bounds must fit the wire type.
func ValidateField(f Field, source string) error {
	var errs []error

	if _, _, _, err := ParseVariable(f.Variable); err != nil {
		errs = append(errs, &SchemaFormatError{Source: source, Row: f.Row, Column: ColFirmwareVariable, Message: err.Error()})
	}

	switch f.DisplayType {
	case "", DisplayFloat, DisplayInt, DisplayBool:
	default:
		errs = append(errs, &SchemaFormatError{Source: source, Row: f.Row, Column: ColDisplayType,
			Message: fmt.Sprintf("display type must be float, int or bool, got %q", f.DisplayType)})
	}

	if f.HasMin && f.HasMax && f.Min > f.Max {
		errs = append(errs, &SchemaFormatError{Source: source, Row: f.Row, Column: ColMinVal,
			Message: fmt.Sprintf("min_val %s is greater than max_val %s", formatNumber(f.Min), formatNumber(f.Max))})
	}

	t, ok := LookupType(f.Type)
	if !ok {
		errs = append(errs, &UnknownTypeError{Source: source, Row: f.Row, Type: f.Type})
		return errors.Join(errs...)
	}

	if f.HasMin {
		if scaled := f.Min * f.Scale; scaled < t.Min {
			errs = append(errs, &RangeError{Source: source, Row: f.Row, Item: f.Variable, Bound: "min", Scaled: scaled, Type: t.Name, Limit: t.Min})
		}
	}
	if f.HasMax {
		if scaled := f.Max * f.Scale; scaled > t.Max {
			errs = append(errs, &RangeError{Source: source, Row: f.Row, Item: f.Variable, Bound: "max", Scaled: scaled, Type: t.Name, Limit: t.Max})
		}
	}

	return errors.Join(errs...)
}

// ValidateFields validates every field and rejects duplicated variables or
// display names. All failures are returned, joined.
func ValidateFields(fields []Field, source string) error {
	var errs []error
	variables := make(map[string]int)
	displays := make(map[string]int)

	for _, f := range fields {
		if err := ValidateField(f, source); err != nil {
			errs = append(errs, err)
		}
		if row, dup := variables[f.Variable]; dup {
			errs = append(errs, &SchemaFormatError{Source: source, Row: f.Row, Column: ColFirmwareVariable,
				Message: fmt.Sprintf("%s is already declared on row %d", f.Variable, row)})
		} else {
			variables[f.Variable] = f.Row
		}
		if row, dup := displays[f.DisplayName()]; dup {
			errs = append(errs, &SchemaFormatError{Source: source, Row: f.Row, Column: ColDisplayNameOverride,
				Message: fmt.Sprintf("display name %s is already used on row %d", f.DisplayName(), row)})
		} else {
			displays[f.DisplayName()] = f.Row
		}
	}

	return errors.Join(errs...)
}

// reservedArgNames are the parameter names of every generated command stub.
var reservedArgNames = map[string]bool{"data": true, "status": true}

// ValidateCommands checks function and argument names and argument types.
func ValidateCommands(cmds []Command, source string) error {
	var errs []error
	names := make(map[string]int)

	for _, c := range cmds {
		if !IsIdentifier(c.Name) {
			errs = append(errs, &SchemaFormatError{Source: source, Row: c.Row, Column: ColFunctionName,
				Message: fmt.Sprintf("%q is not a valid C identifier", c.Name)})
		}
		if row, dup := names[c.Name]; dup {
			errs = append(errs, &SchemaFormatError{Source: source, Row: c.Row, Column: ColFunctionName,
				Message: fmt.Sprintf("%s is already declared on row %d", c.Name, row)})
		} else {
			names[c.Name] = c.Row
		}

		args := make(map[string]bool, len(c.Args))
		for i, a := range c.Args {
			switch {
			case !IsIdentifier(a.Name):
				errs = append(errs, &SchemaFormatError{Source: source, Row: c.Row, Column: ColArgName,
					Message: fmt.Sprintf("argument %d of %s: %q is not a valid C identifier", i, c.Name, a.Name)})
			case reservedArgNames[a.Name]:
				errs = append(errs, &SchemaFormatError{Source: source, Row: c.Row, Column: ColArgName,
					Message: fmt.Sprintf("argument %d of %s: %q is reserved", i, c.Name, a.Name)})
			case args[a.Name]:
				errs = append(errs, &SchemaFormatError{Source: source, Row: c.Row, Column: ColArgName,
					Message: fmt.Sprintf("argument %s of %s is declared twice", a.Name, c.Name)})
			}
			args[a.Name] = true

			if _, ok := LookupType(a.Type); !ok {
				errs = append(errs, &UnknownTypeError{Source: source, Row: c.Row, Type: a.Type})
			}
		}
		// Stubs unpack each argument through a <name>_raw local.
		for _, a := range c.Args {
			if args[a.Name+"_raw"] {
				errs = append(errs, &SchemaFormatError{Source: source, Row: c.Row, Column: ColArgName,
					Message: fmt.Sprintf("argument %s_raw of %s clashes with the unpacked bytes of %s", a.Name, c.Name, a.Name)})
			}
		}
	}

	return errors.Join(errs...)
}
