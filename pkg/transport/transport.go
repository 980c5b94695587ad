// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Perigee Space Systems

// Package transport provides the byte transports the payload controller can
// be wired to: the flight UART, a named-pipe loopback for software-in-the-loop
// runs, and a WebSocket bridge for remote ground testing. The controller is
// transport-agnostic; implementations are selected once at construction time.
package transport

// Transport moves whole frames between the flight computer and the payload.
//
// Receive is a non-blocking poll: it returns one complete inbound frame if
// available, or an empty slice. The controller owns the pacing (it polls in
// a bounded loop inside its tick), so implementations must never block in
// Receive.
//
// Stream transports reframe on the header's data_len field: 1 marks the
// 6-byte acknowledgment shape, everything else the 247-byte data frame. Data
// frames with a data_len of 1 therefore cannot exist on the wire; no current
// command produces one.
type Transport interface {
	// Connect brings the link up. Called when the payload is powered on.
	Connect() error
	// Disconnect tears the link down. Called when payload power is cut.
	Disconnect() error

	Send(pckt []byte) error
	Receive() []byte
	IsConnected() bool
	// FlushRxBuffer drops any buffered inbound bytes. The controller flushes
	// before each file packet request so a stale response from a previous
	// command cannot alias with the new one.
	FlushRxBuffer()
}
