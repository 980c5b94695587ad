// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Perigee Space Systems

package vela_protocol

import "encoding/binary"

// Frame builders for the payload → host direction. Flight code never sends
// these; they exist for the SIL emulator and for tests that need bit-exact
// response frames.

// BuildAckFrame assembles a 6-byte acknowledgment frame. Acks carry a single
// status byte and no CRC.
func BuildAckFrame(id CommandID, seq uint16, status byte) []byte {
	frame := make([]byte, AckFrameSize)
	frame[0] = byte(id)
	binary.BigEndian.PutUint16(frame[1:3], seq)
	binary.BigEndian.PutUint16(frame[3:5], 1)
	frame[5] = status
	return frame
}

// BuildDataFrame assembles a 247-byte data frame around the given data bytes
// (at most 240). The data region is zero padded and the CRC-16-CCITT of the
// first 245 bytes is appended big-endian, so that running the CRC over the
// whole frame leaves the zero residue the decoder checks for.
func BuildDataFrame(id CommandID, seq uint16, data []byte) []byte {
	if len(data) > DataFieldSize {
		data = data[:DataFieldSize]
	}

	frame := make([]byte, DataFrameSize)
	frame[0] = byte(id)
	binary.BigEndian.PutUint16(frame[1:3], seq)
	binary.BigEndian.PutUint16(frame[3:5], uint16(len(data)))
	copy(frame[HeaderSize:], data)

	crc := CalculateCRC(frame[:DataFrameSize-2])
	binary.BigEndian.PutUint16(frame[DataFrameSize-2:], crc)
	return frame
}

// BuildFilePacketFrame assembles a data frame carrying one file chunk in the
// nested wire layout: a 2-byte big-endian inner length followed by the chunk.
func BuildFilePacketFrame(seq uint16, chunk []byte) []byte {
	if len(chunk) > MaxFileChunkSize {
		chunk = chunk[:MaxFileChunkSize]
	}

	data := make([]byte, InnerLengthSize+len(chunk))
	binary.BigEndian.PutUint16(data[0:2], uint16(len(chunk)))
	copy(data[InnerLengthSize:], chunk)
	return BuildDataFrame(CmdRequestNextFilePacket, seq, data)
}
