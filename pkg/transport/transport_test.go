// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Perigee Space Systems

package transport

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func ackFrame(cmd byte, status byte) []byte {
	frame := make([]byte, ackFrameSize)
	frame[0] = cmd
	binary.BigEndian.PutUint16(frame[3:5], 1)
	frame[5] = status
	return frame
}

func dataFrame(cmd byte, dataLen uint16) []byte {
	frame := make([]byte, dataFrameSize)
	frame[0] = cmd
	binary.BigEndian.PutUint16(frame[3:5], dataLen)
	return frame
}

func TestSplitFrame_Ack(t *testing.T) {
	buf := ackFrame(0x00, 0x60)
	frame, rest := splitFrame(buf)
	if !bytes.Equal(frame, buf) {
		t.Errorf("got frame %v, want %v", frame, buf)
	}
	if len(rest) != 0 {
		t.Errorf("expected empty remainder, got %d bytes", len(rest))
	}
}

func TestSplitFrame_Data(t *testing.T) {
	want := dataFrame(0x0A, 240)
	frame, rest := splitFrame(want)
	if !bytes.Equal(frame, want) {
		t.Error("data frame not extracted")
	}
	if len(rest) != 0 {
		t.Errorf("expected empty remainder, got %d bytes", len(rest))
	}
}

func TestSplitFrame_Incomplete(t *testing.T) {
	cases := []struct {
		name string
		buf  []byte
	}{
		{"empty", nil},
		{"short of header", []byte{0x00, 0x00, 0x00}},
		{"partial data frame", dataFrame(0x0A, 240)[:100]},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			frame, rest := splitFrame(tc.buf)
			if frame != nil {
				t.Errorf("expected nil frame for incomplete input, got %d bytes", len(frame))
			}
			if !bytes.Equal(rest, tc.buf) {
				t.Error("incomplete input must be kept intact")
			}
		})
	}
}

func TestSplitFrame_BackToBack(t *testing.T) {
	first := ackFrame(0x00, 0x60)
	second := dataFrame(0x0A, 100)
	buf := append(append([]byte{}, first...), second...)

	frame, rest := splitFrame(buf)
	if !bytes.Equal(frame, first) {
		t.Fatal("first frame not extracted")
	}
	frame, rest = splitFrame(rest)
	if !bytes.Equal(frame, second) {
		t.Fatal("second frame not extracted")
	}
	if len(rest) != 0 {
		t.Errorf("expected empty remainder, got %d bytes", len(rest))
	}
}

// A data frame arriving in driver-sized slices must reassemble.
func TestSplitFrame_FragmentedArrival(t *testing.T) {
	want := dataFrame(0x0A, 64)
	var buf []byte
	for i := 0; i < len(want); i += 50 {
		end := i + 50
		if end > len(want) {
			end = len(want)
		}
		buf = append(buf, want[i:end]...)
		frame, rest := splitFrame(buf)
		if end < len(want) {
			if frame != nil {
				t.Fatalf("frame returned after only %d bytes", end)
			}
		} else if !bytes.Equal(frame, want) {
			t.Fatal("reassembled frame does not match")
		} else if len(rest) != 0 {
			t.Fatalf("expected empty remainder, got %d bytes", len(rest))
		}
		buf = rest
	}
}

func TestASCIIFrame_RoundTrip(t *testing.T) {
	frames := [][]byte{
		{0x00},
		{0x03, 0xFF, 0x00, 0x80},
		bytes.Repeat([]byte{0xAB}, 247),
	}
	for _, want := range frames {
		line := encodeASCIIFrame(want)
		if line[len(line)-1] != '\n' {
			t.Fatal("encoded frame must end with a newline")
		}
		got, err := decodeASCIIFrame(line[:len(line)-1])
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if !bytes.Equal(got, want) {
			t.Errorf("round trip mismatch: got %v, want %v", got, want)
		}
	}
}

func TestASCIIFrame_Encoding(t *testing.T) {
	got := encodeASCIIFrame([]byte{0x03})
	if got != "3\n" {
		t.Errorf("got %q, want %q", got, "3\n")
	}
	got = encodeASCIIFrame([]byte{0x09, 0x00, 0xFF})
	if got != "9 0 255\n" {
		t.Errorf("got %q, want %q", got, "9 0 255\n")
	}
}

func TestASCIIFrame_DecodeRejects(t *testing.T) {
	cases := []string{"", "   ", "256", "-1", "12 abc", "0x10"}
	for _, line := range cases {
		if _, err := decodeASCIIFrame(line); err == nil {
			t.Errorf("expected decode error for %q", line)
		}
	}
}

func TestIPCTransport_RoundTrip(t *testing.T) {
	dir := t.TempDir()

	host := NewIPCTransport(dir)
	payload := NewPayloadIPCTransport(dir)

	if err := host.Connect(); err != nil {
		t.Fatalf("host connect: %v", err)
	}
	defer host.Disconnect()
	if err := payload.Connect(); err != nil {
		t.Fatalf("payload connect: %v", err)
	}
	defer payload.Disconnect()

	cmd := []byte{0x09}
	if err := host.Send(cmd); err != nil {
		t.Fatalf("host send: %v", err)
	}
	got := payload.Receive()
	if !bytes.Equal(got, cmd) {
		t.Fatalf("payload received %v, want %v", got, cmd)
	}

	reply := ackFrame(0x09, 0x0A)
	if err := payload.Send(reply); err != nil {
		t.Fatalf("payload send: %v", err)
	}
	got = host.Receive()
	if !bytes.Equal(got, reply) {
		t.Fatalf("host received %v, want %v", got, reply)
	}
}

func TestIPCTransport_FlushDiscardsPending(t *testing.T) {
	dir := t.TempDir()

	host := NewIPCTransport(dir)
	payload := NewPayloadIPCTransport(dir)
	if err := host.Connect(); err != nil {
		t.Fatalf("host connect: %v", err)
	}
	defer host.Disconnect()
	if err := payload.Connect(); err != nil {
		t.Fatalf("payload connect: %v", err)
	}
	defer payload.Disconnect()

	if err := payload.Send(ackFrame(0x00, 0x60)); err != nil {
		t.Fatalf("send: %v", err)
	}
	host.FlushRxBuffer()
	if got := host.Receive(); got != nil {
		t.Errorf("expected nothing after flush, got %v", got)
	}
}

func TestIPCTransport_ReceiveWhenIdle(t *testing.T) {
	dir := t.TempDir()
	tr := NewIPCTransport(dir)
	if err := tr.Connect(); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer tr.Disconnect()

	if got := tr.Receive(); got != nil {
		t.Errorf("expected nil on idle pipe, got %v", got)
	}
}

func TestIPCTransport_SendWhileDisconnected(t *testing.T) {
	tr := NewIPCTransport(t.TempDir())
	if err := tr.Send([]byte{0x00}); err == nil {
		t.Error("expected an error sending while disconnected")
	}
	if tr.IsConnected() {
		t.Error("transport should report disconnected")
	}
}
