// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Perigee Space Systems

package vela_protocol

import "encoding/binary"

// Response is the decoded form of one inbound frame. Cmd, Seq and Status are
// always set; Telemetry, Chunk and StoredCount are populated per command.
type Response struct {
	Cmd     CommandID
	Seq     uint16
	DataLen uint16
	Ack     bool // 6-byte acknowledgment rather than a data frame
	Status  byte // ack status byte, valid when Ack

	Telemetry    TelemetrySnapshot
	HasTelemetry bool

	// Chunk is the file chunk extracted from a REQUEST_NEXT_FILE_PACKET data
	// frame after the inner length record is stripped. It aliases the caller's
	// frame buffer.
	Chunk []byte

	StoredCount uint16 // STORED_IMAGES answer
}

// Decode parses and validates one inbound frame.
//
// Only the two fixed frame sizes are accepted: a 6-byte acknowledgment
// (trusted, no CRC) and a 247-byte data frame, which must leave a zero
// CRC-16-CCITT residue when the checksum is run over the entire frame
// including its own trailing CRC bytes. Everything else is ErrInvalidPacket.
//
// On success the returned code is ErrOK or one of the success-shaped protocol
// results (ErrNoMoreFilePacket). Any failure returns a nil Response.
func Decode(frame []byte) (*Response, ErrorCode) {
	switch len(frame) {
	case AckFrameSize, DataFrameSize:
	default:
		return nil, ErrInvalidPacket
	}

	resp := &Response{
		Cmd:     CommandID(frame[0]),
		Seq:     binary.BigEndian.Uint16(frame[1:3]),
		DataLen: binary.BigEndian.Uint16(frame[3:5]),
	}

	if len(frame) == AckFrameSize {
		// A short fixed frame with one status byte is accepted on trust.
		if resp.DataLen != 1 {
			return nil, ErrInvalidPacket
		}
		resp.Ack = true
		resp.Status = frame[5]
	} else {
		if resp.DataLen > DataFieldSize {
			return nil, ErrInvalidPacket
		}
		if CalculateCRC(frame) != 0 {
			return nil, ErrInvalidPacket
		}
	}

	if !IsValidCommand(resp.Cmd) {
		return nil, ErrInvalidCommand
	}

	code := decodeBody(resp, frame)
	if code != ErrOK && code != ErrNoMoreFilePacket {
		return nil, code
	}
	return resp, code
}

// decodeBody interprets the data region per command.
func decodeBody(resp *Response, frame []byte) ErrorCode {
	data := []byte(nil)
	if !resp.Ack {
		data = frame[HeaderSize : HeaderSize+int(resp.DataLen)]
	}

	switch resp.Cmd {
	case CmdPing:
		// The payload answers ping with a fixed magic status, not a plain ACK.
		if !resp.Ack {
			return ErrInvalidResponse
		}
		if resp.Status != PingValue {
			return ErrInvalidResponse
		}
		return ErrOK

	case CmdRequestTelemetry:
		if resp.Ack {
			return ackStatus(resp.Status)
		}
		if !parseTelemetry(data, &resp.Telemetry) {
			return ErrInvalidPacket
		}
		resp.HasTelemetry = true
		return ErrOK

	case CmdRequestImage:
		if !resp.Ack {
			return ErrInvalidResponse
		}
		switch resp.Status {
		case AckSuccess:
			return ErrOK
		case AckError:
			return ErrFileNotAvailable
		default:
			return ErrInvalidResponse
		}

	case CmdRequestNextFilePacket:
		if resp.Ack {
			// The payload acks instead of sending data once the file is
			// exhausted.
			if resp.Status == AckError {
				return ErrNoMoreFilePacket
			}
			return ErrInvalidResponse
		}
		return decodeFilePacket(resp, data)

	case CmdStoredImages:
		if resp.Ack {
			return ackStatus(resp.Status)
		}
		if len(data) != 2 {
			return ErrInvalidPacket
		}
		resp.StoredCount = binary.BigEndian.Uint16(data)
		return ErrOK

	default:
		// Everything else is a plain acknowledged command.
		if !resp.Ack {
			return ErrInvalidResponse
		}
		return ackStatus(resp.Status)
	}
}

// decodeFilePacket strips the inner 2-byte length record the companion unit
// wraps around every file chunk before handing it to its serial layer.
func decodeFilePacket(resp *Response, data []byte) ErrorCode {
	if len(data) < InnerLengthSize {
		return ErrInvalidPacket
	}
	innerLen := int(binary.BigEndian.Uint16(data[0:2]))
	if innerLen > len(data)-InnerLengthSize {
		return ErrInvalidPacket
	}
	if innerLen == 0 {
		return ErrNoMoreFilePacket
	}
	resp.Chunk = data[InnerLengthSize : InnerLengthSize+innerLen]
	return ErrOK
}

func ackStatus(status byte) ErrorCode {
	switch status {
	case AckSuccess:
		return ErrOK
	case AckError:
		return ErrCommandExecutionFailed
	default:
		return ErrInvalidResponse
	}
}
