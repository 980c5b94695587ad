// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Perigee Space Systems

package transport

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// FIFO names inside the IPC directory. The emulator opens the same pair with
// the roles swapped.
const (
	FIFOIn  = "payload_fifo_in"  // host writes, payload reads
	FIFOOut = "payload_fifo_out" // payload writes, host reads
)

// IPCTransport carries frames over a pair of named pipes for
// software-in-the-loop runs without UART hardware. Frames cross the pipe as
// space-separated decimal byte values terminated by a newline, so they can be
// produced and inspected with plain shell tools during a test campaign.
type IPCTransport struct {
	dir string

	// asPayload swaps the pipe roles; the SIL emulator sets it.
	asPayload bool

	tx *os.File

	// rx is a raw nonblocking descriptor. Going through os.File would hand
	// the fd to the runtime poller, whose Read blocks until data arrives;
	// the controller needs a true poll.
	rx int

	connected bool
	rxBuf     []byte
}

// NewIPCTransport creates a host-side IPC transport rooted at dir.
func NewIPCTransport(dir string) *IPCTransport {
	return &IPCTransport{dir: dir}
}

// NewPayloadIPCTransport creates the payload side of the pipe pair, reading
// where the host writes and vice versa. Used by the SIL emulator.
func NewPayloadIPCTransport(dir string) *IPCTransport {
	return &IPCTransport{dir: dir, asPayload: true}
}

// Connect creates the FIFOs if needed and opens both ends. The write side is
// opened read-write so the open never blocks waiting for a peer.
func (t *IPCTransport) Connect() error {
	if t.connected {
		return nil
	}

	txPath := filepath.Join(t.dir, FIFOIn)
	rxPath := filepath.Join(t.dir, FIFOOut)
	if t.asPayload {
		txPath, rxPath = rxPath, txPath
	}

	for _, p := range []string{txPath, rxPath} {
		if err := syscall.Mkfifo(p, 0o666); err != nil && !os.IsExist(err) {
			return fmt.Errorf("create fifo %s: %w", p, err)
		}
	}

	tx, err := os.OpenFile(txPath, os.O_RDWR, 0)
	if err != nil {
		return fmt.Errorf("open fifo %s: %w", txPath, err)
	}
	rx, err := syscall.Open(rxPath, syscall.O_RDONLY|syscall.O_NONBLOCK, 0)
	if err != nil {
		tx.Close()
		return fmt.Errorf("open fifo %s: %w", rxPath, err)
	}

	t.tx = tx
	t.rx = rx
	t.connected = true
	t.rxBuf = t.rxBuf[:0]
	return nil
}

// Disconnect closes both pipe ends.
func (t *IPCTransport) Disconnect() error {
	if !t.connected {
		return nil
	}
	t.connected = false
	t.rxBuf = nil
	err := t.tx.Close()
	if cerr := syscall.Close(t.rx); err == nil {
		err = cerr
	}
	return err
}

// IsConnected reports whether the pipe pair is open.
func (t *IPCTransport) IsConnected() bool {
	return t.connected
}

// Send writes one frame as an ASCII line.
func (t *IPCTransport) Send(pckt []byte) error {
	if !t.connected {
		return fmt.Errorf("ipc transport not connected")
	}
	if _, err := t.tx.WriteString(encodeASCIIFrame(pckt)); err != nil {
		return fmt.Errorf("write fifo: %w", err)
	}
	return nil
}

// Receive polls the read pipe and returns at most one decoded frame, or nil
// when no complete line has arrived. Lines that fail to parse are dropped.
func (t *IPCTransport) Receive() []byte {
	if !t.connected {
		return nil
	}

	var chunk [1024]byte
	n, err := syscall.Read(t.rx, chunk[:])
	if err == nil && n > 0 {
		t.rxBuf = append(t.rxBuf, chunk[:n]...)
	}

	for {
		nl := bytes.IndexByte(t.rxBuf, '\n')
		if nl < 0 {
			return nil
		}
		line := string(t.rxBuf[:nl])
		t.rxBuf = t.rxBuf[nl+1:]

		frame, err := decodeASCIIFrame(line)
		if err != nil {
			continue
		}
		return frame
	}
}

// FlushRxBuffer drops any buffered and pending input.
func (t *IPCTransport) FlushRxBuffer() {
	if !t.connected {
		return
	}
	t.rxBuf = t.rxBuf[:0]
	var chunk [1024]byte
	for {
		n, err := syscall.Read(t.rx, chunk[:])
		if err != nil || n <= 0 {
			return
		}
	}
}

// encodeASCIIFrame renders a frame as space-separated decimal byte values
// with a trailing newline.
func encodeASCIIFrame(pckt []byte) string {
	var sb strings.Builder
	for i, b := range pckt {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(strconv.Itoa(int(b)))
	}
	sb.WriteByte('\n')
	return sb.String()
}

// decodeASCIIFrame parses one line of space-separated decimal byte values.
func decodeASCIIFrame(line string) ([]byte, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil, fmt.Errorf("empty frame line")
	}
	frame := make([]byte, len(fields))
	for i, f := range fields {
		v, err := strconv.Atoi(f)
		if err != nil || v < 0 || v > 255 {
			return nil, fmt.Errorf("invalid byte value %q", f)
		}
		frame[i] = byte(v)
	}
	return frame, nil
}
