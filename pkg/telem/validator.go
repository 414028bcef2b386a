// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package telem

import (
	"fmt"
	"math"
)

// AnomalyType represents different types of frame anomalies
type AnomalyType int

const (
	AnomalyLengthMismatch AnomalyType = iota
	AnomalyBelowMin
	AnomalyAboveMax
	AnomalyNotFinite
)

func (a AnomalyType) String() string {
	switch a {
	case AnomalyLengthMismatch:
		return "length mismatch"
	case AnomalyBelowMin:
		return "below min"
	case AnomalyAboveMax:
		return "above max"
	case AnomalyNotFinite:
		return "not finite"
	default:
		return fmt.Sprintf("anomaly(%d)", int(a))
	}
}

// ValidationError represents a frame validation failure
type ValidationError struct {
	Type    AnomalyType
	Item    string
	Message string
	Details map[string]interface{}
}

// Error implements the error interface
func (v *ValidationError) Error() string {
	return v.Message
}

// ValidateFrame checks decoded values against the schema's min/max bounds
// Returns a slice of validation errors (empty if the frame is valid)
func ValidateFrame(f *Frame) []ValidationError {
	errors := []ValidationError{}

	slots := f.codec.layout.Slots
	if len(f.Values) != len(slots) {
		return []ValidationError{{
			Type:    AnomalyLengthMismatch,
			Message: fmt.Sprintf("frame has %d values (expected %d)", len(f.Values), len(slots)),
			Details: map[string]interface{}{"length": len(f.Values), "expected": len(slots)},
		}}
	}

	for i, s := range slots {
		v := f.Values[i]
		name := f.codec.names[i]

		if math.IsNaN(v) || math.IsInf(v, 0) {
			errors = append(errors, ValidationError{
				Type:    AnomalyNotFinite,
				Item:    name,
				Message: fmt.Sprintf("%s is %v", name, v),
				Details: map[string]interface{}{"value": v},
			})
			continue
		}
		if s.Field.HasMin && v < s.Field.Min {
			errors = append(errors, ValidationError{
				Type:    AnomalyBelowMin,
				Item:    name,
				Message: fmt.Sprintf("%s=%s below min %s", name, formatValue(v), formatValue(s.Field.Min)),
				Details: map[string]interface{}{"value": v, "min": s.Field.Min},
			})
		}
		if s.Field.HasMax && v > s.Field.Max {
			errors = append(errors, ValidationError{
				Type:    AnomalyAboveMax,
				Item:    name,
				Message: fmt.Sprintf("%s=%s above max %s", name, formatValue(v), formatValue(s.Field.Max)),
				Details: map[string]interface{}{"value": v, "max": s.Field.Max},
			})
		}
	}

	return errors
}
