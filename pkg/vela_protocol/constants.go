// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Perigee Space Systems

// Package vela_protocol implements the Vela payload wire protocol.
//
// Vela is the fixed-format binary protocol spoken between the flight
// computer and the companion vision/compute unit over a half-duplex UART.
// This package provides command encoding, response frame decoding, CRC
// validation, and telemetry parsing. It performs no I/O: the transport
// layer moves bytes, this package interprets them.
package vela_protocol

// CommandID identifies an operation the host may request from the payload.
type CommandID uint8

// Command identifiers (host → payload). The same byte leads every response
// frame, which is how the controller correlates responses to requests.
const (
	CmdPing                  CommandID = 0x00
	CmdShutdown              CommandID = 0x01
	CmdSynchronizeTime       CommandID = 0x02
	CmdRequestTelemetry      CommandID = 0x03
	CmdEnableCameras         CommandID = 0x04
	CmdDisableCameras        CommandID = 0x05
	CmdCaptureImages         CommandID = 0x06
	CmdStoredImages          CommandID = 0x07
	CmdClearStorage          CommandID = 0x08
	CmdRequestImage          CommandID = 0x09
	CmdRequestNextFilePacket CommandID = 0x0A
	CmdRunOrbitDetermination CommandID = 0x0B
	CmdPingODStatus          CommandID = 0x0C
)

// Frame geometry. Response frames come in exactly two fixed sizes: a 6-byte
// acknowledgment and a 247-byte data frame. Anything else is line noise.
const (
	HeaderSize = 5 // cmd_id(1) + seq(2) + data_len(2), big-endian

	AckFrameSize  = 6
	DataFrameSize = 247

	DataFieldSize  = 240 // payload region of a data frame, zero padded
	MaxCommandSize = 32  // outbound command scratch buffer

	// File packets nest a 2-byte big-endian length record inside the data
	// field. The companion unit double-wraps length on file transfers; the
	// framing is preserved as-is on the wire.
	InnerLengthSize  = 2
	MaxFileChunkSize = DataFieldSize - InnerLengthSize
)

// CRC-16-CCITT configuration
const (
	crcPolynomial = 0x1021
	crcInitial    = 0xFFFF
)

// Acknowledgment status bytes (payload → host).
const (
	AckSuccess = 0x0A
	AckError   = 0x0B

	// PingValue is the fixed status byte carried by a ping acknowledgment.
	PingValue = 0x60
)

// ErrorCode is the host-side result taxonomy. These are not wire bytes: they
// classify the outcome of a command round trip for the controller.
type ErrorCode int

const (
	ErrNoResponse ErrorCode = iota
	ErrOK
	ErrInvalidCommand
	ErrCommandExecutionFailed
	ErrInvalidPacket
	ErrInvalidResponse
	ErrTimeoutShutdown
	ErrFileNotAvailable
	ErrNoMoreFilePacket
	ErrTimeoutBoot
)

// String returns the error code name for logs and telemetry.
func (e ErrorCode) String() string {
	switch e {
	case ErrNoResponse:
		return "NO_RESPONSE"
	case ErrOK:
		return "OK"
	case ErrInvalidCommand:
		return "INVALID_COMMAND"
	case ErrCommandExecutionFailed:
		return "COMMAND_EXECUTION_FAILED"
	case ErrInvalidPacket:
		return "INVALID_PACKET"
	case ErrInvalidResponse:
		return "INVALID_RESPONSE"
	case ErrTimeoutShutdown:
		return "TIMEOUT_SHUTDOWN"
	case ErrFileNotAvailable:
		return "FILE_NOT_AVAILABLE"
	case ErrNoMoreFilePacket:
		return "NO_MORE_FILE_PACKET"
	case ErrTimeoutBoot:
		return "TIMEOUT_BOOT"
	default:
		return "UNKNOWN"
	}
}

// IsValidCommand reports whether id is part of the closed command table.
func IsValidCommand(id CommandID) bool {
	return id <= CmdPingODStatus
}
