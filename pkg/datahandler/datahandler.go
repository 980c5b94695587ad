// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Perigee Space Systems

// Package datahandler persists data received from the payload: file transfer
// chunks and telemetry snapshots. The controller only sees the DataHandler
// interface; mass-storage details stay behind it.
package datahandler

import "github.com/perigee-space/vela/pkg/vela_protocol"

// DataHandler is the storage collaborator consumed by the payload controller.
type DataHandler interface {
	// LogFile appends one chunk to the in-progress file for the given tag.
	LogFile(tag string, chunk []byte) error
	// FileCompleted marks the in-progress file for the tag as complete.
	FileCompleted(tag string) error
	// FileProcessExists reports whether a data process is registered for tag.
	FileProcessExists(tag string) bool
	// LogTelemetry appends a payload telemetry snapshot.
	LogTelemetry(tm *vela_protocol.TelemetrySnapshot) error
}
