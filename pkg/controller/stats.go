// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Perigee Space Systems

package controller

import "fmt"

// TransferStats tracks retry and degradation counters for one file transfer.
// PacketRetryCount is transient (reset whenever a packet finally lands); the
// rest are cumulative over the transfer and reported at its end so ground
// operators can judge data integrity after the fact.
type TransferStats struct {
	PacketRetryCount int

	CRCFailures          uint32
	TotalPacketsReceived uint32
	TotalPacketsRetried  uint32
	PacketsSkipped       uint32 // placeholders stored after max retries
}

// Reset clears all counters. Called at the start and end of each transfer.
func (s *TransferStats) Reset() {
	*s = TransferStats{}
}

// String returns a one-line transfer summary for the end-of-transfer log.
func (s *TransferStats) String() string {
	return fmt.Sprintf("received=%d retried=%d crc_failures=%d skipped=%d",
		s.TotalPacketsReceived, s.TotalPacketsRetried, s.CRCFailures, s.PacketsSkipped)
}
