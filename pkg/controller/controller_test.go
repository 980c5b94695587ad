// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Perigee Space Systems

package controller

import (
	"bytes"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/perigee-space/vela/pkg/logger"
	"github.com/perigee-space/vela/pkg/vela_protocol"
)

// ============================================================
// Test doubles
// ============================================================

// fakeClock advances only when the controller sleeps or the test says so.
type fakeClock struct {
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1767225600, 0)}
}

func (c *fakeClock) Now() time.Time        { return c.now }
func (c *fakeClock) Sleep(d time.Duration) { c.now = c.now.Add(d) }
func (c *fakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

// scriptTransport answers each sent command through a responder function and
// records everything the controller does to it.
type scriptTransport struct {
	connected bool
	sent      [][]byte
	queue     [][]byte
	flushes   int

	// responder maps a sent command frame to zero or more response frames.
	responder func(sent []byte) [][]byte

	// sendFailures makes that many upcoming Send calls fail.
	sendFailures int
}

func (tr *scriptTransport) Connect() error    { tr.connected = true; return nil }
func (tr *scriptTransport) Disconnect() error { tr.connected = false; return nil }
func (tr *scriptTransport) IsConnected() bool { return tr.connected }

func (tr *scriptTransport) Send(pckt []byte) error {
	if tr.sendFailures > 0 {
		tr.sendFailures--
		return errors.New("write: input/output error")
	}
	cp := make([]byte, len(pckt))
	copy(cp, pckt)
	tr.sent = append(tr.sent, cp)
	if tr.responder != nil {
		tr.queue = append(tr.queue, tr.responder(cp)...)
	}
	return nil
}

func (tr *scriptTransport) Receive() []byte {
	if len(tr.queue) == 0 {
		return nil
	}
	frame := tr.queue[0]
	tr.queue = tr.queue[1:]
	return frame
}

func (tr *scriptTransport) FlushRxBuffer() {
	tr.flushes++
	tr.queue = nil
}

func (tr *scriptTransport) sentCommands() []vela_protocol.CommandID {
	ids := make([]vela_protocol.CommandID, len(tr.sent))
	for i, frame := range tr.sent {
		ids[i] = vela_protocol.CommandID(frame[0])
	}
	return ids
}

// memStore is an in-memory DataHandler.
type memStore struct {
	chunks    [][]byte
	completed []string
	telemetry []vela_protocol.TelemetrySnapshot
}

func (s *memStore) LogFile(tag string, chunk []byte) error {
	cp := make([]byte, len(chunk))
	copy(cp, chunk)
	s.chunks = append(s.chunks, cp)
	return nil
}

func (s *memStore) FileCompleted(tag string) error {
	s.completed = append(s.completed, tag)
	return nil
}

func (s *memStore) FileProcessExists(tag string) bool { return true }

func (s *memStore) LogTelemetry(tm *vela_protocol.TelemetrySnapshot) error {
	s.telemetry = append(s.telemetry, *tm)
	return nil
}

// ============================================================
// Helpers
// ============================================================

func pingAck() []byte {
	return vela_protocol.BuildAckFrame(vela_protocol.CmdPing, 0, vela_protocol.PingValue)
}

func telemetryFrame() []byte {
	tm := vela_protocol.TelemetrySnapshot{Uptime: 120, BootCount: 3, CPUTemp: 451}
	return vela_protocol.BuildDataFrame(vela_protocol.CmdRequestTelemetry, 0, vela_protocol.MarshalTelemetry(&tm))
}

// corruptFilePacket builds a file packet frame with its CRC smashed.
func corruptFilePacket(seq uint16) []byte {
	frame := vela_protocol.BuildFilePacketFrame(seq, []byte{1, 2, 3})
	frame[vela_protocol.DataFrameSize-1] ^= 0xFF
	return frame
}

// baseResponder answers pings and telemetry requests, which is enough to
// boot the controller into READY and keep it there.
func baseResponder(sent []byte) [][]byte {
	switch vela_protocol.CommandID(sent[0]) {
	case vela_protocol.CmdPing:
		return [][]byte{pingAck()}
	case vela_protocol.CmdRequestTelemetry:
		return [][]byte{telemetryFrame()}
	}
	return nil
}

func newTestController(responder func([]byte) [][]byte) (*PayloadController, *scriptTransport, *memStore, *fakeClock) {
	tr := &scriptTransport{responder: responder}
	st := &memStore{}
	clk := newFakeClock()
	log := logger.NewWithOutput(io.Discard)
	return New(tr, st, log, clk), tr, st, clk
}

// newReadyController boots a controller into READY with one telemetry pass
// already behind it.
func newReadyController(t *testing.T, responder func([]byte) [][]byte) (*PayloadController, *scriptTransport, *memStore, *fakeClock) {
	t.Helper()
	pc, tr, st, clk := newTestController(responder)

	pc.AddRequest(ReqTurnOn)
	pc.Tick() // power on, ping answered
	if pc.State() != StateReady {
		t.Fatalf("expected READY after successful ping, got %s", pc.State())
	}
	pc.Tick() // initial telemetry pass
	return pc, tr, st, clk
}

// ============================================================
// State machine lifecycle
// ============================================================

func TestController_BootToReady(t *testing.T) {
	pc, tr, _, _ := newTestController(baseResponder)

	if pc.State() != StateOff {
		t.Fatalf("expected OFF at construction, got %s", pc.State())
	}

	pc.AddRequest(ReqTurnOn)
	pc.Tick()

	if pc.State() != StateReady {
		t.Fatalf("expected READY, got %s", pc.State())
	}
	if !tr.connected {
		t.Error("transport should be connected after power on")
	}
	if pc.MustReAttemptBoot() {
		t.Error("must_re_attempt_boot should be clear after a good boot")
	}
	if got := tr.sentCommands()[0]; got != vela_protocol.CmdPing {
		t.Errorf("first command should be PING, got %s", vela_protocol.FormatCommandID(got))
	}
}

func TestController_BootTimeout(t *testing.T) {
	pc, tr, _, clk := newTestController(nil) // payload never answers

	pc.AddRequest(ReqTurnOn)
	pc.Tick()
	if pc.State() != StatePoweringOn {
		t.Fatalf("expected POWERING_ON, got %s", pc.State())
	}

	clk.Advance(TimeoutBoot + time.Second)
	pc.Tick()

	if pc.State() != StateOff {
		t.Fatalf("expected OFF after boot timeout, got %s", pc.State())
	}
	if !pc.MustReAttemptBoot() {
		t.Error("expected must_re_attempt_boot set")
	}
	if pc.LastError() != vela_protocol.ErrTimeoutBoot {
		t.Errorf("expected TIMEOUT_BOOT, got %s", pc.LastError())
	}
	if tr.connected {
		t.Error("transport should be disconnected after power off")
	}
}

func TestController_GracefulShutdown(t *testing.T) {
	responder := func(sent []byte) [][]byte {
		if vela_protocol.CommandID(sent[0]) == vela_protocol.CmdShutdown {
			return [][]byte{vela_protocol.BuildAckFrame(vela_protocol.CmdShutdown, 0, vela_protocol.AckSuccess)}
		}
		return baseResponder(sent)
	}
	pc, tr, _, _ := newReadyController(t, responder)

	pc.AddRequest(ReqTurnOff)
	pc.Tick() // shutdown sent and confirmed
	if pc.State() != StateShuttingDown {
		t.Fatalf("expected SHUTTING_DOWN, got %s", pc.State())
	}

	pc.Tick() // confirmation consumed, power cut
	if pc.State() != StateOff {
		t.Fatalf("expected OFF, got %s", pc.State())
	}
	if tr.connected {
		t.Error("transport should be disconnected")
	}
}

func TestController_ShutdownTimeout(t *testing.T) {
	pc, _, _, clk := newReadyController(t, baseResponder)

	pc.AddRequest(ReqTurnOff)
	pc.Tick()
	if pc.State() != StateShuttingDown {
		t.Fatalf("expected SHUTTING_DOWN, got %s", pc.State())
	}

	clk.Advance(TimeoutShutdown + time.Second)
	pc.Tick()

	if pc.State() != StateOff {
		t.Fatalf("expected OFF after shutdown timeout, got %s", pc.State())
	}
	if pc.LastError() != vela_protocol.ErrTimeoutShutdown {
		t.Errorf("expected TIMEOUT_SHUTDOWN, got %s", pc.LastError())
	}
}

func TestController_Reboot(t *testing.T) {
	responder := func(sent []byte) [][]byte {
		if vela_protocol.CommandID(sent[0]) == vela_protocol.CmdShutdown {
			return [][]byte{vela_protocol.BuildAckFrame(vela_protocol.CmdShutdown, 0, vela_protocol.AckSuccess)}
		}
		return baseResponder(sent)
	}
	pc, _, _, _ := newReadyController(t, responder)

	pc.AddRequest(ReqReboot)
	pc.Tick() // shutdown sent and confirmed
	pc.Tick() // power cut, straight back into POWERING_ON
	if pc.State() != StatePoweringOn {
		t.Fatalf("expected POWERING_ON after reboot power cut, got %s", pc.State())
	}

	pc.Tick() // ping answered
	if pc.State() != StateReady {
		t.Fatalf("expected READY after reboot, got %s", pc.State())
	}
}

func TestController_ForcePowerOff(t *testing.T) {
	pc, tr, _, _ := newReadyController(t, baseResponder)

	pc.AddRequest(ReqForcePowerOff)
	pc.Tick()

	if pc.State() != StateOff {
		t.Fatalf("expected OFF, got %s", pc.State())
	}
	if tr.connected {
		t.Error("transport should be disconnected")
	}
}

// ============================================================
// Telemetry polling
// ============================================================

func TestController_TelemetryPoll(t *testing.T) {
	pc, _, st, clk := newReadyController(t, baseResponder)

	tm, ok := pc.Telemetry()
	if !ok {
		t.Fatal("expected a telemetry snapshot after the first READY tick")
	}
	if tm.Uptime != 120 || tm.CPUTemp != 451 {
		t.Errorf("unexpected snapshot: %+v", tm)
	}
	if len(st.telemetry) != 1 {
		t.Fatalf("expected 1 logged snapshot, got %d", len(st.telemetry))
	}

	// Within the period: no new request.
	pc.Tick()
	if len(st.telemetry) != 1 {
		t.Error("telemetry requested before the period elapsed")
	}

	// After the period: one more poll.
	clk.Advance(TelemetryPeriod)
	pc.Tick()
	if len(st.telemetry) != 2 {
		t.Errorf("expected 2 logged snapshots, got %d", len(st.telemetry))
	}
}

func TestController_TelemetryNoResponse(t *testing.T) {
	answered := false
	responder := func(sent []byte) [][]byte {
		if vela_protocol.CommandID(sent[0]) == vela_protocol.CmdRequestTelemetry {
			if !answered {
				answered = true
				return [][]byte{telemetryFrame()}
			}
			return nil // silence
		}
		return baseResponder(sent)
	}
	pc, _, _, clk := newReadyController(t, responder)

	clk.Advance(TelemetryPeriod)
	pc.Tick()

	if pc.LastError() != vela_protocol.ErrNoResponse {
		t.Errorf("expected NO_RESPONSE, got %s", pc.LastError())
	}
	if pc.State() != StateReady {
		t.Errorf("a missed telemetry poll must not leave READY, got %s", pc.State())
	}
}

// ============================================================
// Response correlation
// ============================================================

func TestController_DiscardsMismatchedFrames(t *testing.T) {
	responder := func(sent []byte) [][]byte {
		if vela_protocol.CommandID(sent[0]) == vela_protocol.CmdRequestTelemetry {
			// Two stale frames ahead of the real answer.
			return [][]byte{
				pingAck(),
				vela_protocol.BuildAckFrame(vela_protocol.CmdShutdown, 0, vela_protocol.AckSuccess),
				telemetryFrame(),
			}
		}
		return baseResponder(sent)
	}
	pc, _, st, _ := newTestController(responder)

	pc.AddRequest(ReqTurnOn)
	pc.Tick()
	pc.Tick() // telemetry pass with stale frames in front

	if len(st.telemetry) != 1 {
		t.Fatalf("expected the telemetry frame to be found behind stale frames, got %d snapshots", len(st.telemetry))
	}
	if pc.State() != StateReady {
		t.Errorf("stale shutdown ack must not be applied, got state %s", pc.State())
	}
}

// ============================================================
// File transfer
// ============================================================

func TestController_ImageTransferHappyPath(t *testing.T) {
	chunkA := bytes.Repeat([]byte{0x11}, 238)
	chunkB := bytes.Repeat([]byte{0x22}, 100)

	responder := func(sent []byte) [][]byte {
		switch vela_protocol.CommandID(sent[0]) {
		case vela_protocol.CmdRequestImage:
			return [][]byte{vela_protocol.BuildAckFrame(vela_protocol.CmdRequestImage, 0, vela_protocol.AckSuccess)}
		case vela_protocol.CmdRequestNextFilePacket:
			packetNb := uint16(sent[1])<<8 | uint16(sent[2])
			switch packetNb {
			case 1:
				return [][]byte{vela_protocol.BuildFilePacketFrame(1, chunkA)}
			case 2:
				return [][]byte{vela_protocol.BuildFilePacketFrame(2, chunkB)}
			default:
				return [][]byte{vela_protocol.BuildAckFrame(vela_protocol.CmdRequestNextFilePacket, 0, vela_protocol.AckError)}
			}
		}
		return baseResponder(sent)
	}
	pc, tr, st, _ := newReadyController(t, responder)

	pc.AddRequest(ReqRequestImage)
	pc.Tick() // REQUEST_IMAGE acked, transfer starts
	if !pc.FileTransferInProgress() {
		t.Fatal("expected transfer in progress")
	}
	if pc.Transfer().PacketNb != 1 {
		t.Fatalf("expected packet_nb 1, got %d", pc.Transfer().PacketNb)
	}

	pc.Tick() // packet 1
	pc.Tick() // packet 2
	pc.Tick() // end of file

	if pc.FileTransferInProgress() {
		t.Fatal("expected transfer complete")
	}
	if len(st.chunks) != 2 {
		t.Fatalf("expected 2 chunks stored, got %d", len(st.chunks))
	}
	if !bytes.Equal(st.chunks[0], chunkA) || !bytes.Equal(st.chunks[1], chunkB) {
		t.Error("stored chunks do not match the transmitted ones")
	}
	if len(st.completed) != 1 || st.completed[0] != ImageTag {
		t.Errorf("expected file completion for %q, got %v", ImageTag, st.completed)
	}
	if tr.flushes == 0 {
		t.Error("expected the rx buffer to be flushed before packet requests")
	}
	if pc.Transfer().LastTransferType != TransferImage {
		t.Errorf("expected last transfer type IMAGE, got %s", pc.Transfer().LastTransferType)
	}
}

func TestController_RetryBound(t *testing.T) {
	responder := func(sent []byte) [][]byte {
		switch vela_protocol.CommandID(sent[0]) {
		case vela_protocol.CmdRequestImage:
			return [][]byte{vela_protocol.BuildAckFrame(vela_protocol.CmdRequestImage, 0, vela_protocol.AckSuccess)}
		case vela_protocol.CmdRequestNextFilePacket:
			// Every packet response arrives corrupted.
			return [][]byte{corruptFilePacket(1)}
		}
		return baseResponder(sent)
	}
	pc, _, st, _ := newReadyController(t, responder)

	pc.AddRequest(ReqRequestImage)
	pc.Tick()

	for i := 0; i < MaxPacketRetries-1; i++ {
		pc.Tick()
		if got := pc.Transfer().PacketNb; got != 1 {
			t.Fatalf("retry %d must not advance packet_nb, got %d", i+1, got)
		}
		if len(st.chunks) != 0 {
			t.Fatalf("retry %d must not store anything", i+1)
		}
	}

	pc.Tick() // third consecutive failure: placeholder and advance

	if got := pc.Transfer().PacketNb; got != 2 {
		t.Fatalf("expected packet_nb advanced to 2 after max retries, got %d", got)
	}
	if len(st.chunks) != 1 {
		t.Fatalf("expected one placeholder chunk, got %d", len(st.chunks))
	}
	if len(st.chunks[0]) != vela_protocol.DataFieldSize {
		t.Errorf("placeholder should be %d bytes, got %d", vela_protocol.DataFieldSize, len(st.chunks[0]))
	}
	for _, b := range st.chunks[0] {
		if b != 0 {
			t.Fatal("placeholder must be zero filled")
		}
	}

	stats := pc.Stats()
	if stats.PacketRetryCount != 0 {
		t.Errorf("retry count should reset after the skip, got %d", stats.PacketRetryCount)
	}
	if stats.PacketsSkipped != 1 {
		t.Errorf("expected 1 skipped packet, got %d", stats.PacketsSkipped)
	}
	if stats.CRCFailures != MaxPacketRetries {
		t.Errorf("expected %d CRC failures, got %d", MaxPacketRetries, stats.CRCFailures)
	}
}

// Three malformed frames for packet 1, then a clean one: the transfer
// degrades with one placeholder, then keeps going.
func TestController_TransferDegradation(t *testing.T) {
	failures := 0
	goodChunk := bytes.Repeat([]byte{0x5A}, 64)

	responder := func(sent []byte) [][]byte {
		switch vela_protocol.CommandID(sent[0]) {
		case vela_protocol.CmdRequestImage:
			return [][]byte{vela_protocol.BuildAckFrame(vela_protocol.CmdRequestImage, 0, vela_protocol.AckSuccess)}
		case vela_protocol.CmdRequestNextFilePacket:
			if failures < MaxPacketRetries {
				failures++
				return [][]byte{corruptFilePacket(1)}
			}
			return [][]byte{vela_protocol.BuildFilePacketFrame(2, goodChunk)}
		}
		return baseResponder(sent)
	}
	pc, _, st, _ := newReadyController(t, responder)

	pc.AddRequest(ReqRequestImage)
	pc.Tick()
	for i := 0; i < MaxPacketRetries; i++ {
		pc.Tick()
	}
	pc.Tick() // clean frame for the next packet

	stats := pc.Stats()
	if stats.TotalPacketsRetried != MaxPacketRetries {
		t.Errorf("expected %d retried packets, got %d", MaxPacketRetries, stats.TotalPacketsRetried)
	}
	if stats.TotalPacketsReceived != 1 {
		t.Errorf("expected exactly 1 successful chunk, got %d", stats.TotalPacketsReceived)
	}
	if len(st.chunks) != 2 { // placeholder + good chunk
		t.Fatalf("expected 2 stored chunks, got %d", len(st.chunks))
	}
	if !bytes.Equal(st.chunks[1], goodChunk) {
		t.Error("good chunk not stored after degradation")
	}
	if got := pc.Transfer().PacketNb; got != 3 {
		t.Errorf("expected packet_nb 3, got %d", got)
	}
}

func TestController_ImageNotAvailable(t *testing.T) {
	responder := func(sent []byte) [][]byte {
		if vela_protocol.CommandID(sent[0]) == vela_protocol.CmdRequestImage {
			return [][]byte{vela_protocol.BuildAckFrame(vela_protocol.CmdRequestImage, 0, vela_protocol.AckError)}
		}
		return baseResponder(sent)
	}
	pc, _, _, _ := newReadyController(t, responder)

	pc.AddRequest(ReqRequestImage)
	pc.Tick()

	if pc.FileTransferInProgress() {
		t.Error("no transfer should start")
	}
	if pc.LastError() != vela_protocol.ErrFileNotAvailable {
		t.Errorf("expected FILE_NOT_AVAILABLE, got %s", pc.LastError())
	}
}

// ============================================================
// Send failure recovery
// ============================================================

// A transient transport write error must not stop the periodic telemetry
// poll: the next due tick retries the request.
func TestController_TelemetryResumesAfterSendError(t *testing.T) {
	pc, tr, st, clk := newReadyController(t, baseResponder)

	clk.Advance(TelemetryPeriod)
	tr.sendFailures = 1
	pc.Tick() // request never leaves the transport

	if pc.LastError() != vela_protocol.ErrNoResponse {
		t.Errorf("expected NO_RESPONSE after send error, got %s", pc.LastError())
	}
	if len(st.telemetry) != 1 {
		t.Fatalf("no snapshot should arrive on the failed tick, got %d", len(st.telemetry))
	}

	pc.Tick() // still due, transport healthy again
	if len(st.telemetry) != 2 {
		t.Fatalf("telemetry poll did not resume after a send error, got %d snapshots", len(st.telemetry))
	}

	clk.Advance(TelemetryPeriod)
	pc.Tick()
	if len(st.telemetry) != 3 {
		t.Errorf("periodic polling broken after a send error, got %d snapshots", len(st.telemetry))
	}
}

// A transient write error mid transfer must not stall the transfer: the same
// packet is requested again on the next tick.
func TestController_TransferResumesAfterSendError(t *testing.T) {
	chunkA := bytes.Repeat([]byte{0x11}, 238)
	chunkB := bytes.Repeat([]byte{0x22}, 100)

	responder := func(sent []byte) [][]byte {
		switch vela_protocol.CommandID(sent[0]) {
		case vela_protocol.CmdRequestImage:
			return [][]byte{vela_protocol.BuildAckFrame(vela_protocol.CmdRequestImage, 0, vela_protocol.AckSuccess)}
		case vela_protocol.CmdRequestNextFilePacket:
			switch uint16(sent[1])<<8 | uint16(sent[2]) {
			case 1:
				return [][]byte{vela_protocol.BuildFilePacketFrame(1, chunkA)}
			case 2:
				return [][]byte{vela_protocol.BuildFilePacketFrame(2, chunkB)}
			default:
				return [][]byte{vela_protocol.BuildAckFrame(vela_protocol.CmdRequestNextFilePacket, 0, vela_protocol.AckError)}
			}
		}
		return baseResponder(sent)
	}
	pc, tr, st, _ := newReadyController(t, responder)

	pc.AddRequest(ReqRequestImage)
	pc.Tick() // transfer starts
	pc.Tick() // packet 1 stored

	tr.sendFailures = 1
	pc.Tick() // request for packet 2 fails to send

	if !pc.FileTransferInProgress() {
		t.Fatal("transfer must survive a send error")
	}
	if pc.awaitingFilePacket {
		t.Fatal("a failed send must not leave a packet request outstanding")
	}
	if got := pc.Transfer().PacketNb; got != 2 {
		t.Fatalf("expected packet_nb still 2, got %d", got)
	}

	pc.Tick() // packet 2 requested again, stored
	pc.Tick() // end of file

	if pc.FileTransferInProgress() {
		t.Fatal("expected transfer complete after recovery")
	}
	if len(st.chunks) != 2 {
		t.Fatalf("expected 2 chunks stored, got %d", len(st.chunks))
	}
	if !bytes.Equal(st.chunks[1], chunkB) {
		t.Error("second chunk not stored after recovery")
	}
}

// ============================================================
// Request arbitration
// ============================================================

func TestController_AddRequestValidation(t *testing.T) {
	pc, _, _, _ := newTestController(nil)

	if pc.AddRequest(ExternalRequest(99)) {
		t.Error("out-of-range request should be rejected")
	}
	if pc.AddRequest(ExternalRequest(-1)) {
		t.Error("negative request should be rejected")
	}
	if !pc.AddRequest(ReqTurnOn) {
		t.Error("valid request should be accepted")
	}
}

func TestController_RequestOverwrite(t *testing.T) {
	pc, tr, _, _ := newTestController(baseResponder)

	pc.AddRequest(ReqTurnOff)
	pc.AddRequest(ReqTurnOn) // latest caller wins
	pc.Tick()

	if pc.State() != StateReady {
		t.Fatalf("expected READY, got %s", pc.State())
	}
	if len(tr.sent) == 0 {
		t.Fatal("expected a ping to have been sent")
	}
}

func TestController_CancelCurrentRequest(t *testing.T) {
	pc, _, _, _ := newTestController(baseResponder)

	pc.AddRequest(ReqTurnOn)
	if !pc.CancelCurrentRequest() {
		t.Error("cancel should succeed while OFF")
	}
	pc.Tick()
	if pc.State() != StateOff {
		t.Errorf("cancelled request must not run, got %s", pc.State())
	}

	pc.AddRequest(ReqTurnOn)
	pc.Tick()
	if pc.State() != StateReady {
		t.Fatalf("expected READY, got %s", pc.State())
	}
	if pc.CancelCurrentRequest() {
		t.Error("cancel must refuse while READY")
	}
}
