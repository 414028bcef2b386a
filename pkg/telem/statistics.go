// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package telem

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Statistics tracks frame statistics and error rates
type Statistics struct {
	StartTime      time.Time
	LastUpdateTime time.Time

	// Counters
	TotalFrames      uint64
	ValidFrames      uint64
	ShortFrames      uint64
	DecodeErrors     uint64
	LengthMismatches uint64
	AnomalousValues  uint64
	BelowMin         uint64
	AboveMax         uint64
	NotFinite        uint64

	// Rates (calculated)
	FrameRate float64 // frames/sec
	ErrorRate float64 // errors/sec

	now func() time.Time
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	s := &Statistics{now: time.Now}
	s.Reset()
	return s
}

// Update updates statistics based on a decode result and its anomalies
func (s *Statistics) Update(decodeErr error, anomalies []ValidationError) {
	s.TotalFrames++
	s.LastUpdateTime = s.now()

	if decodeErr != nil {
		switch {
		case errors.Is(decodeErr, ErrShortFrame):
			s.ShortFrames++
		case errors.Is(decodeErr, ErrFrameLength):
			s.LengthMismatches++
		default:
			s.DecodeErrors++
		}
		return
	}

	if len(anomalies) == 0 {
		s.ValidFrames++
		return
	}

	s.AnomalousValues++
	for _, a := range anomalies {
		switch a.Type {
		case AnomalyLengthMismatch:
			s.LengthMismatches++
		case AnomalyBelowMin:
			s.BelowMin++
		case AnomalyAboveMax:
			s.AboveMax++
		case AnomalyNotFinite:
			s.NotFinite++
		}
	}
}

// CalculateRates calculates frame and error rates
func (s *Statistics) CalculateRates() {
	elapsed := s.now().Sub(s.StartTime).Seconds()
	if elapsed > 0 {
		s.FrameRate = float64(s.TotalFrames) / elapsed
		errorCount := s.ShortFrames + s.DecodeErrors + s.LengthMismatches + s.AnomalousValues
		s.ErrorRate = float64(errorCount) / elapsed
	}
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	s.CalculateRates()

	percent := func(n uint64) float64 {
		if s.TotalFrames == 0 {
			return 0
		}
		return float64(n) * 100.0 / float64(s.TotalFrames)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "=== Statistics (%.0f seconds) ===\n", s.now().Sub(s.StartTime).Seconds())
	fmt.Fprintf(&b, "Total Frames:    %8d\n", s.TotalFrames)
	fmt.Fprintf(&b, "Valid Frames:    %8d (%.1f%%)\n", s.ValidFrames, percent(s.ValidFrames))

	if s.ShortFrames > 0 {
		fmt.Fprintf(&b, "Short Frames:    %8d (%.1f%%)\n", s.ShortFrames, percent(s.ShortFrames))
	}
	if s.DecodeErrors > 0 {
		fmt.Fprintf(&b, "Decode Errors:   %8d (%.1f%%)\n", s.DecodeErrors, percent(s.DecodeErrors))
	}
	if s.LengthMismatches > 0 {
		fmt.Fprintf(&b, "Length Mismatch: %8d (%.1f%%)\n", s.LengthMismatches, percent(s.LengthMismatches))
	}
	if s.AnomalousValues > 0 {
		fmt.Fprintf(&b, "Anomalous:       %8d (%.1f%%)\n", s.AnomalousValues, percent(s.AnomalousValues))
		if s.BelowMin > 0 {
			fmt.Fprintf(&b, "  Below Min:      %5d\n", s.BelowMin)
		}
		if s.AboveMax > 0 {
			fmt.Fprintf(&b, "  Above Max:      %5d\n", s.AboveMax)
		}
		if s.NotFinite > 0 {
			fmt.Fprintf(&b, "  Not Finite:     %5d\n", s.NotFinite)
		}
	}

	fmt.Fprintf(&b, "Frame Rate:      %8.1f frames/sec\n", s.FrameRate)
	fmt.Fprintf(&b, "Error Rate:      %8.1f errors/sec\n", s.ErrorRate)
	b.WriteString("================================\n")

	return b.String()
}

// Reset resets all statistics counters
func (s *Statistics) Reset() {
	now := s.now
	*s = Statistics{now: now}
	s.StartTime = now()
	s.LastUpdateTime = s.StartTime
}
