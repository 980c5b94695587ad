// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Perigee Space Systems

package vela_protocol

// Encoder serializes outbound commands. Commands are short fixed-width
// invocations (1-5 bytes, cmd_id plus big-endian arguments); the transport
// frames them, no CRC is appended on this direction.
//
// The encoder reuses one scratch buffer across calls so a command send never
// allocates. The returned slice aliases that buffer and is only valid until
// the next encode call, which matches how the controller uses it: encode,
// hand to the transport, done.
type Encoder struct {
	buf [MaxCommandSize]byte
}

// NewEncoder creates a command encoder.
func NewEncoder() *Encoder {
	return &Encoder{}
}

func (e *Encoder) simple(id CommandID) []byte {
	e.buf[0] = byte(id)
	return e.buf[:1]
}

// Ping encodes a PING command.
func (e *Encoder) Ping() []byte {
	return e.simple(CmdPing)
}

// Shutdown encodes a SHUTDOWN command.
func (e *Encoder) Shutdown() []byte {
	return e.simple(CmdShutdown)
}

// SynchronizeTime encodes a SYNCHRONIZE_TIME command carrying the flight
// computer's unix time.
func (e *Encoder) SynchronizeTime(unixTime uint32) []byte {
	e.buf[0] = byte(CmdSynchronizeTime)
	e.buf[1] = byte(unixTime >> 24)
	e.buf[2] = byte(unixTime >> 16)
	e.buf[3] = byte(unixTime >> 8)
	e.buf[4] = byte(unixTime)
	return e.buf[:5]
}

// RequestTelemetry encodes a REQUEST_TELEMETRY command.
func (e *Encoder) RequestTelemetry() []byte {
	return e.simple(CmdRequestTelemetry)
}

// EnableCameras encodes an ENABLE_CAMERAS command.
func (e *Encoder) EnableCameras() []byte {
	return e.simple(CmdEnableCameras)
}

// DisableCameras encodes a DISABLE_CAMERAS command.
func (e *Encoder) DisableCameras() []byte {
	return e.simple(CmdDisableCameras)
}

// CaptureImages encodes a CAPTURE_IMAGES command.
func (e *Encoder) CaptureImages() []byte {
	return e.simple(CmdCaptureImages)
}

// StoredImages encodes a STORED_IMAGES query.
func (e *Encoder) StoredImages() []byte {
	return e.simple(CmdStoredImages)
}

// ClearStorage encodes a CLEAR_STORAGE command.
func (e *Encoder) ClearStorage() []byte {
	return e.simple(CmdClearStorage)
}

// RequestImage encodes a REQUEST_IMAGE command. The payload answers with an
// acknowledgment and then serves the image through file packets.
func (e *Encoder) RequestImage() []byte {
	return e.simple(CmdRequestImage)
}

// RequestNextFilePacket encodes a REQUEST_NEXT_FILE_PACKET command for the
// given packet index. The companion unit numbers the first packet 1.
func (e *Encoder) RequestNextFilePacket(packetNb uint16) []byte {
	e.buf[0] = byte(CmdRequestNextFilePacket)
	e.buf[1] = byte(packetNb >> 8)
	e.buf[2] = byte(packetNb)
	return e.buf[:3]
}

// RunOrbitDetermination encodes a RUN_OD command.
func (e *Encoder) RunOrbitDetermination() []byte {
	return e.simple(CmdRunOrbitDetermination)
}

// PingODStatus encodes a PING_OD_STATUS query.
func (e *Encoder) PingODStatus() []byte {
	return e.simple(CmdPingODStatus)
}
