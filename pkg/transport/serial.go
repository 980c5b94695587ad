// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Perigee Space Systems

package transport

import (
	"encoding/binary"
	"fmt"
	"time"

	"go.bug.st/serial"
)

// Frame geometry shared with the protocol layer. Duplicated here so the
// transport can split a byte stream into frames without importing the codec.
const (
	frameHeaderSize = 5
	ackFrameSize    = 6
	dataFrameSize   = 247

	// rxChunkSize bounds one poll's read from the port.
	rxChunkSize = 512
)

// SerialTransport drives the payload over a UART. The wire carries raw Vela
// frames back to back; since both inbound frame shapes are fixed-size, the
// reassembler only needs the header to know how many bytes to wait for.
type SerialTransport struct {
	portName string
	baudRate int

	port      serial.Port
	connected bool

	rxBuf   []byte
	scratch [rxChunkSize]byte
}

// NewSerialTransport creates a transport for the given port. Nothing is
// opened until Connect.
func NewSerialTransport(portName string, baudRate int) *SerialTransport {
	return &SerialTransport{portName: portName, baudRate: baudRate}
}

// Connect opens the port 8N1 at the configured baud rate. The read timeout is
// set very short so Receive behaves as a poll rather than a blocking read.
func (t *SerialTransport) Connect() error {
	if t.connected {
		return nil
	}

	mode := &serial.Mode{
		BaudRate: t.baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(t.portName, mode)
	if err != nil {
		return fmt.Errorf("open serial port %s: %w", t.portName, err)
	}
	if err := port.SetReadTimeout(time.Millisecond); err != nil {
		port.Close()
		return fmt.Errorf("set read timeout on %s: %w", t.portName, err)
	}

	t.port = port
	t.connected = true
	t.rxBuf = t.rxBuf[:0]
	return nil
}

// Disconnect closes the port. Safe to call when already closed.
func (t *SerialTransport) Disconnect() error {
	if !t.connected {
		return nil
	}
	t.connected = false
	t.rxBuf = nil
	return t.port.Close()
}

// IsConnected reports whether the port is open.
func (t *SerialTransport) IsConnected() bool {
	return t.connected
}

// Send writes one command frame to the port.
func (t *SerialTransport) Send(pckt []byte) error {
	if !t.connected {
		return fmt.Errorf("serial port %s not open", t.portName)
	}
	if _, err := t.port.Write(pckt); err != nil {
		return fmt.Errorf("write to %s: %w", t.portName, err)
	}
	return nil
}

// Receive drains whatever bytes the port has and returns at most one complete
// frame, or nil when none has fully arrived yet.
func (t *SerialTransport) Receive() []byte {
	if !t.connected {
		return nil
	}

	// The short read timeout makes this a bounded poll.
	n, err := t.port.Read(t.scratch[:])
	if err == nil && n > 0 {
		t.rxBuf = append(t.rxBuf, t.scratch[:n]...)
	}

	frame, rest := splitFrame(t.rxBuf)
	t.rxBuf = rest
	return frame
}

// FlushRxBuffer drops everything pending on the receive side, both in the
// driver and in the reassembly buffer.
func (t *SerialTransport) FlushRxBuffer() {
	if t.connected {
		t.port.ResetInputBuffer()
	}
	t.rxBuf = t.rxBuf[:0]
}

// splitFrame extracts one complete frame from the front of buf. The header's
// length field distinguishes the two fixed shapes: length 1 means a 6-byte
// acknowledgment, anything else a full 247-byte data frame. This relies on a
// protocol constraint: data frames never carry a one-byte data field, so a
// length of 1 is unambiguous. A future command that produced a data_len of 1
// would be misframed here and must use a different length. Returns the frame
// (or nil) and the remaining bytes.
func splitFrame(buf []byte) ([]byte, []byte) {
	if len(buf) < ackFrameSize {
		return nil, buf
	}

	want := dataFrameSize
	if binary.BigEndian.Uint16(buf[3:frameHeaderSize]) == 1 {
		want = ackFrameSize
	}
	if len(buf) < want {
		return nil, buf
	}

	frame := make([]byte, want)
	copy(frame, buf[:want])
	return frame, buf[want:]
}
