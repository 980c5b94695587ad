// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Perigee Space Systems

package vela_protocol

import (
	"bytes"
	"testing"
)

func TestEncoder_SimpleCommands(t *testing.T) {
	e := NewEncoder()

	tests := []struct {
		name     string
		encode   func() []byte
		expected []byte
	}{
		{"ping", e.Ping, []byte{0x00}},
		{"shutdown", e.Shutdown, []byte{0x01}},
		{"request telemetry", e.RequestTelemetry, []byte{0x03}},
		{"enable cameras", e.EnableCameras, []byte{0x04}},
		{"disable cameras", e.DisableCameras, []byte{0x05}},
		{"capture images", e.CaptureImages, []byte{0x06}},
		{"stored images", e.StoredImages, []byte{0x07}},
		{"clear storage", e.ClearStorage, []byte{0x08}},
		{"request image", e.RequestImage, []byte{0x09}},
		{"run od", e.RunOrbitDetermination, []byte{0x0B}},
		{"ping od status", e.PingODStatus, []byte{0x0C}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.encode()
			if !bytes.Equal(got, tt.expected) {
				t.Errorf("expected % X, got % X", tt.expected, got)
			}
		})
	}
}

func TestEncoder_RequestNextFilePacket(t *testing.T) {
	e := NewEncoder()

	got := e.RequestNextFilePacket(0x0102)
	expected := []byte{byte(CmdRequestNextFilePacket), 0x01, 0x02}
	if !bytes.Equal(got, expected) {
		t.Errorf("expected % X, got % X", expected, got)
	}

	// First packet of a transfer is 1, not 0.
	got = e.RequestNextFilePacket(1)
	if got[1] != 0x00 || got[2] != 0x01 {
		t.Errorf("packet 1 should encode as 00 01, got % X", got[1:])
	}
}

func TestEncoder_SynchronizeTime(t *testing.T) {
	e := NewEncoder()
	got := e.SynchronizeTime(0xDEADBEEF)
	expected := []byte{byte(CmdSynchronizeTime), 0xDE, 0xAD, 0xBE, 0xEF}
	if !bytes.Equal(got, expected) {
		t.Errorf("expected % X, got % X", expected, got)
	}
}

func TestEncoder_ScratchBufferReuse(t *testing.T) {
	// Encoded commands alias the encoder's scratch buffer; a later encode may
	// overwrite an earlier slice. The controller sends each command before
	// encoding the next, so aliasing is the contract, not a bug.
	e := NewEncoder()
	first := e.RequestNextFilePacket(0x1234)
	_ = e.Ping()
	if first[0] != byte(CmdPing) {
		t.Error("expected the scratch buffer to be reused across encodes")
	}
}
