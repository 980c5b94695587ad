// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Perigee Space Systems

package vela_protocol

import "encoding/binary"

// TelemetryBlobSize is the exact length of the telemetry record inside a
// REQUEST_TELEMETRY data frame: 3x u32, three groups of 4x u8, 8x u8, 3x u16.
const TelemetryBlobSize = 38

// TelemetrySnapshot is the payload health record decoded from a telemetry
// response. It is a plain value type: the decoder fills one in and the
// controller keeps the latest copy for the rest of the flight software.
type TelemetrySnapshot struct {
	SystemTime uint32 // payload wall clock, unix seconds
	Uptime     uint32 // seconds since payload boot
	BootCount  uint32

	PayloadState  uint8
	ActiveCameras uint8
	CaptureMode   uint8
	ErrorCount    uint8

	RAMUsage  uint8 // percent
	DiskUsage uint8
	CPULoad   uint8
	GPULoad   uint8

	CameraStatus [4]uint8
	LastErrors   [8]uint8 // ring of the payload's most recent error codes

	CPUTemp   uint16 // deci-degrees C
	GPUTemp   uint16
	BoardTemp uint16
}

// parseTelemetry decodes a 38-byte big-endian telemetry blob.
// Returns false if the blob has the wrong length.
func parseTelemetry(data []byte, tm *TelemetrySnapshot) bool {
	if len(data) != TelemetryBlobSize {
		return false
	}

	tm.SystemTime = binary.BigEndian.Uint32(data[0:4])
	tm.Uptime = binary.BigEndian.Uint32(data[4:8])
	tm.BootCount = binary.BigEndian.Uint32(data[8:12])

	tm.PayloadState = data[12]
	tm.ActiveCameras = data[13]
	tm.CaptureMode = data[14]
	tm.ErrorCount = data[15]

	tm.RAMUsage = data[16]
	tm.DiskUsage = data[17]
	tm.CPULoad = data[18]
	tm.GPULoad = data[19]

	copy(tm.CameraStatus[:], data[20:24])
	copy(tm.LastErrors[:], data[24:32])

	tm.CPUTemp = binary.BigEndian.Uint16(data[32:34])
	tm.GPUTemp = binary.BigEndian.Uint16(data[34:36])
	tm.BoardTemp = binary.BigEndian.Uint16(data[36:38])
	return true
}

// MarshalTelemetry serializes a snapshot back into the 38-byte wire layout.
// The SIL emulator uses this to answer telemetry requests.
func MarshalTelemetry(tm *TelemetrySnapshot) []byte {
	data := make([]byte, TelemetryBlobSize)

	binary.BigEndian.PutUint32(data[0:4], tm.SystemTime)
	binary.BigEndian.PutUint32(data[4:8], tm.Uptime)
	binary.BigEndian.PutUint32(data[8:12], tm.BootCount)

	data[12] = tm.PayloadState
	data[13] = tm.ActiveCameras
	data[14] = tm.CaptureMode
	data[15] = tm.ErrorCount

	data[16] = tm.RAMUsage
	data[17] = tm.DiskUsage
	data[18] = tm.CPULoad
	data[19] = tm.GPULoad

	copy(data[20:24], tm.CameraStatus[:])
	copy(data[24:32], tm.LastErrors[:])

	binary.BigEndian.PutUint16(data[32:34], tm.CPUTemp)
	binary.BigEndian.PutUint16(data[34:36], tm.GPUTemp)
	binary.BigEndian.PutUint16(data[36:38], tm.BoardTemp)
	return data
}
