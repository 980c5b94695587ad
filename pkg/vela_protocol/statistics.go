// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Perigee Space Systems

package vela_protocol

import (
	"fmt"
	"time"
)

// LinkStatistics tracks frame counts and error rates on the payload link.
// The monitor command keeps one and prints it at a fixed interval.
type LinkStatistics struct {
	StartTime      time.Time
	LastUpdateTime time.Time

	TotalFrames   uint64
	ValidFrames   uint64
	AckFrames     uint64
	DataFrames    uint64
	CRCErrors     uint64
	SizeErrors    uint64
	DecodeErrors  uint64

	FrameRate float64 // frames/sec
	ErrorRate float64 // errors/sec
}

// NewLinkStatistics creates a statistics tracker.
func NewLinkStatistics() *LinkStatistics {
	now := time.Now()
	return &LinkStatistics{
		StartTime:      now,
		LastUpdateTime: now,
	}
}

// Update records the outcome of decoding one frame.
func (s *LinkStatistics) Update(frame []byte, resp *Response, code ErrorCode) {
	s.TotalFrames++
	s.LastUpdateTime = time.Now()

	if resp != nil {
		s.ValidFrames++
		if resp.Ack {
			s.AckFrames++
		} else {
			s.DataFrames++
		}
		return
	}

	switch {
	case code != ErrInvalidPacket:
		s.DecodeErrors++
	case len(frame) != AckFrameSize && len(frame) != DataFrameSize:
		s.SizeErrors++
	default:
		s.CRCErrors++
	}
}

// CalculateRates recomputes the frame and error rates.
func (s *LinkStatistics) CalculateRates() {
	elapsed := time.Since(s.StartTime).Seconds()
	if elapsed > 0 {
		s.FrameRate = float64(s.TotalFrames) / elapsed
		errorCount := s.CRCErrors + s.SizeErrors + s.DecodeErrors
		s.ErrorRate = float64(errorCount) / elapsed
	}
}

// String returns a formatted statistics summary.
func (s *LinkStatistics) String() string {
	s.CalculateRates()

	var validPercent float64
	if s.TotalFrames > 0 {
		validPercent = float64(s.ValidFrames) * 100.0 / float64(s.TotalFrames)
	}

	elapsed := time.Since(s.StartTime)

	result := fmt.Sprintf("=== Link Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	result += fmt.Sprintf("Total Frames:   %8d\n", s.TotalFrames)
	result += fmt.Sprintf("Valid Frames:   %8d (%.1f%%)\n", s.ValidFrames, validPercent)
	result += fmt.Sprintf("  Acks:         %8d\n", s.AckFrames)
	result += fmt.Sprintf("  Data:         %8d\n", s.DataFrames)
	if s.CRCErrors > 0 {
		result += fmt.Sprintf("CRC Errors:     %8d\n", s.CRCErrors)
	}
	if s.SizeErrors > 0 {
		result += fmt.Sprintf("Size Errors:    %8d\n", s.SizeErrors)
	}
	if s.DecodeErrors > 0 {
		result += fmt.Sprintf("Decode Errors:  %8d\n", s.DecodeErrors)
	}
	result += fmt.Sprintf("Frame Rate:     %8.1f frames/sec\n", s.FrameRate)
	result += fmt.Sprintf("Error Rate:     %8.1f errors/sec\n", s.ErrorRate)
	result += "=====================================\n"

	return result
}

// Reset clears all counters.
func (s *LinkStatistics) Reset() {
	now := time.Now()
	*s = LinkStatistics{StartTime: now, LastUpdateTime: now}
}
