// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Perigee Space Systems

// Package controller implements the host-side payload controller: the state
// machine that powers the companion compute unit on and off, polls its
// telemetry, and pulls files from it over the Vela protocol.
//
// The controller is strictly single threaded and cooperative. The task
// scheduler calls Tick once per period; everything, including the bounded
// wait for a response, happens synchronously inside that call. One controller
// instance owns its transport and storage collaborators for the mission life.
package controller

import (
	"time"

	"github.com/perigee-space/vela/pkg/datahandler"
	"github.com/perigee-space/vela/pkg/logger"
	"github.com/perigee-space/vela/pkg/transport"
	"github.com/perigee-space/vela/pkg/vela_protocol"
)

// PayloadState is the lifecycle state of the companion unit as the host
// sees it.
type PayloadState int

const (
	StateOff PayloadState = iota
	StatePoweringOn
	StateReady
	StateShuttingDown
)

// String returns the state name.
func (s PayloadState) String() string {
	switch s {
	case StateOff:
		return "OFF"
	case StatePoweringOn:
		return "POWERING_ON"
	case StateReady:
		return "READY"
	case StateShuttingDown:
		return "SHUTTING_DOWN"
	default:
		return "UNKNOWN"
	}
}

// ExternalRequest is a one-shot command from the rest of the flight software.
// The pending slot has depth 1: the latest caller wins.
type ExternalRequest int

const (
	ReqNoAction ExternalRequest = iota
	ReqTurnOn
	ReqTurnOff
	ReqReboot
	ReqRequestImage
	ReqClearStorage
	ReqForcePowerOff
)

// String returns the request name.
func (r ExternalRequest) String() string {
	switch r {
	case ReqNoAction:
		return "NO_ACTION"
	case ReqTurnOn:
		return "TURN_ON"
	case ReqTurnOff:
		return "TURN_OFF"
	case ReqReboot:
		return "REBOOT"
	case ReqRequestImage:
		return "REQUEST_IMAGE"
	case ReqClearStorage:
		return "CLEAR_STORAGE"
	case ReqForcePowerOff:
		return "FORCE_POWER_OFF"
	default:
		return "UNKNOWN"
	}
}

// Timing and retry policy.
const (
	TimeoutBoot     = 120 * time.Second
	TimeoutShutdown = 10 * time.Second
	TelemetryPeriod = 10 * time.Second

	// Bounded receive window inside one tick. A voluntary latency budget,
	// not asynchronous I/O: the tick blocks for at most ResponseWindow.
	ResponseWindow       = 15 * time.Millisecond
	ResponsePollInterval = time.Millisecond

	MaxPacketRetries = 3
)

// ImageTag is the data process tag file chunks are stored under.
const ImageTag = "img"

// PayloadController drives the Vela link. Exactly one instance exists per
// satellite; it is owned by the payload task and never shared across tasks.
type PayloadController struct {
	transport transport.Transport
	storage   datahandler.DataHandler
	log       *logger.Logger
	clock     Clock

	enc *vela_protocol.Encoder

	state   PayloadState
	request ExternalRequest

	// At most one command is ever outstanding.
	cmdSent     int
	lastCmdSent vela_protocol.CommandID

	lastError vela_protocol.ErrorCode

	telemetry         vela_protocol.TelemetrySnapshot
	telemetryValid    bool
	lastTelemetryTime time.Time
	awaitingTelemetry bool

	transfer           FileTransfer
	awaitingFilePacket bool
	stats              TransferStats

	bootStart         time.Time
	shutdownStart     time.Time
	mustReAttemptBoot bool
	attemptingReboot  bool
	shutdownConfirmed bool
}

// New creates a payload controller in the OFF state. The transport and
// storage collaborators are injected once and treated as exclusive-access
// singletons for the controller's lifetime.
func New(tr transport.Transport, dh datahandler.DataHandler, log *logger.Logger, clock Clock) *PayloadController {
	return &PayloadController{
		transport: tr,
		storage:   dh,
		log:       log,
		clock:     clock,
		enc:       vela_protocol.NewEncoder(),
		state:     StateOff,
		request:   ReqNoAction,
		lastError: vela_protocol.ErrOK,
	}
}

// State returns the current lifecycle state.
func (pc *PayloadController) State() PayloadState {
	return pc.state
}

// LastError returns the most recent caller-visible failure.
func (pc *PayloadController) LastError() vela_protocol.ErrorCode {
	return pc.lastError
}

// Telemetry returns the latest telemetry snapshot and whether one has been
// received since boot.
func (pc *PayloadController) Telemetry() (vela_protocol.TelemetrySnapshot, bool) {
	return pc.telemetry, pc.telemetryValid
}

// FileTransferInProgress reports whether a file transfer is active.
func (pc *PayloadController) FileTransferInProgress() bool {
	return pc.transfer.InProgress
}

// Transfer returns a copy of the file transfer tracker.
func (pc *PayloadController) Transfer() FileTransfer {
	return pc.transfer
}

// Stats returns a copy of the current transfer statistics.
func (pc *PayloadController) Stats() TransferStats {
	return pc.stats
}

// MustReAttemptBoot reports whether the last boot attempt timed out.
func (pc *PayloadController) MustReAttemptBoot() bool {
	return pc.mustReAttemptBoot
}

// AddRequest queues an external request, overwriting any pending one.
// Returns false for values outside the request table.
func (pc *PayloadController) AddRequest(req ExternalRequest) bool {
	if req < ReqNoAction || req > ReqForcePowerOff {
		return false
	}
	if req == ReqNoAction {
		return true
	}
	pc.request = req
	return true
}

// CancelCurrentRequest clears the pending request slot. It refuses while
// READY: execution may already have started, so a cancel there is not safe.
func (pc *PayloadController) CancelCurrentRequest() bool {
	if pc.state == StateReady {
		return false
	}
	pc.request = ReqNoAction
	return true
}

// Tick runs one iteration of the control logic. The scheduler must not call
// it again before the previous call returns.
func (pc *PayloadController) Tick() {
	pc.serviceRequest()

	switch pc.state {
	case StateOff:
		// Nothing to do until somebody asks for power.
	case StatePoweringOn:
		pc.tickPoweringOn()
	case StateReady:
		pc.tickReady()
	case StateShuttingDown:
		pc.tickShuttingDown()
	}
}

// serviceRequest handles at most one pending external request per tick.
func (pc *PayloadController) serviceRequest() {
	switch pc.request {
	case ReqNoAction:
		return

	case ReqForcePowerOff:
		pc.request = ReqNoAction
		pc.log.Warn("payload force power off")
		pc.attemptingReboot = false
		pc.powerOff()

	case ReqTurnOn:
		pc.request = ReqNoAction
		if pc.state != StateOff {
			pc.log.Warn("TURN_ON ignored in state %s", pc.state)
			return
		}
		pc.beginPowerOn()

	case ReqTurnOff:
		pc.request = ReqNoAction
		if pc.state != StateReady {
			pc.log.Warn("TURN_OFF ignored in state %s", pc.state)
			return
		}
		pc.beginShutdown(false)

	case ReqReboot:
		pc.request = ReqNoAction
		if pc.state != StateReady {
			pc.log.Warn("REBOOT ignored in state %s", pc.state)
			return
		}
		pc.beginShutdown(true)

	case ReqRequestImage:
		if pc.state != StateReady {
			pc.request = ReqNoAction
			pc.log.Warn("REQUEST_IMAGE ignored in state %s", pc.state)
			return
		}
		if pc.cmdSent != 0 || pc.transfer.InProgress {
			// Stay pending until the link is free.
			return
		}
		pc.request = ReqNoAction
		pc.sendCommand(vela_protocol.CmdRequestImage, pc.enc.RequestImage())

	case ReqClearStorage:
		if pc.state != StateReady {
			pc.request = ReqNoAction
			pc.log.Warn("CLEAR_STORAGE ignored in state %s", pc.state)
			return
		}
		if pc.cmdSent != 0 {
			return
		}
		pc.request = ReqNoAction
		pc.sendCommand(vela_protocol.CmdClearStorage, pc.enc.ClearStorage())
	}
}

func (pc *PayloadController) beginPowerOn() {
	pc.log.Info("payload powering on")
	if err := pc.transport.Connect(); err != nil {
		pc.log.Error("payload transport connect: %v", err)
	}
	pc.state = StatePoweringOn
	pc.bootStart = pc.clock.Now()
	pc.cmdSent = 0
}

func (pc *PayloadController) beginShutdown(reboot bool) {
	if pc.transfer.InProgress {
		pc.log.Warn("shutdown requested mid transfer, aborting transfer at packet %d", pc.transfer.PacketNb)
		pc.transfer.Reset()
		pc.stats.Reset()
		pc.awaitingFilePacket = false
	}
	pc.log.Info("payload shutting down (reboot=%v)", reboot)
	pc.state = StateShuttingDown
	pc.shutdownStart = pc.clock.Now()
	pc.shutdownConfirmed = false
	pc.attemptingReboot = reboot
	pc.cmdSent = 0
}

// powerOff cuts payload power. If a reboot was requested the controller goes
// straight back into POWERING_ON.
func (pc *PayloadController) powerOff() {
	if err := pc.transport.Disconnect(); err != nil {
		pc.log.Error("payload transport disconnect: %v", err)
	}
	pc.cmdSent = 0
	pc.shutdownConfirmed = false
	pc.awaitingTelemetry = false
	pc.awaitingFilePacket = false
	pc.transfer.Reset()
	pc.stats.Reset()
	pc.state = StateOff
	pc.log.Info("payload off")

	if pc.attemptingReboot {
		pc.beginPowerOn()
	}
}

func (pc *PayloadController) enterReady() {
	pc.state = StateReady
	pc.mustReAttemptBoot = false
	pc.attemptingReboot = false
	pc.shutdownConfirmed = false
	pc.bootStart = time.Time{}
	pc.lastTelemetryTime = time.Time{}
	pc.lastError = vela_protocol.ErrOK
	pc.log.Info("payload ready")
}

func (pc *PayloadController) tickPoweringOn() {
	if pc.clock.Now().Sub(pc.bootStart) > TimeoutBoot {
		pc.log.Error("payload boot timed out after %s", TimeoutBoot)
		pc.lastError = vela_protocol.ErrTimeoutBoot
		pc.mustReAttemptBoot = true
		pc.attemptingReboot = false
		pc.powerOff()
		return
	}

	if pc.cmdSent == 0 {
		pc.sendCommand(vela_protocol.CmdPing, pc.enc.Ping())
	}
	pc.receiveResponse()
}

func (pc *PayloadController) tickReady() {
	now := pc.clock.Now()

	if pc.cmdSent == 0 && !pc.transfer.InProgress && !pc.awaitingTelemetry &&
		now.Sub(pc.lastTelemetryTime) >= TelemetryPeriod {
		// Only mark the poll in flight once the request actually left the
		// transport, otherwise a failed send would block polling for good.
		pc.awaitingTelemetry = pc.sendCommand(vela_protocol.CmdRequestTelemetry, pc.enc.RequestTelemetry())
	} else if pc.cmdSent == 0 && pc.transfer.InProgress && !pc.awaitingFilePacket {
		// A stale response from a previous command must not alias with the
		// packet we are about to request.
		pc.transport.FlushRxBuffer()
		pc.awaitingFilePacket = pc.sendCommand(vela_protocol.CmdRequestNextFilePacket,
			pc.enc.RequestNextFilePacket(uint16(pc.transfer.PacketNb)))
	}

	pc.receiveResponse()
}

func (pc *PayloadController) tickShuttingDown() {
	if pc.shutdownConfirmed {
		pc.powerOff()
		return
	}
	if pc.clock.Now().Sub(pc.shutdownStart) > TimeoutShutdown {
		pc.log.Warn("payload shutdown timed out after %s, cutting power", TimeoutShutdown)
		pc.lastError = vela_protocol.ErrTimeoutShutdown
		pc.powerOff()
		return
	}

	if pc.cmdSent == 0 {
		pc.sendCommand(vela_protocol.CmdShutdown, pc.enc.Shutdown())
	}
	pc.receiveResponse()
}

// sendCommand writes one command frame and reports whether it was sent. On a
// send failure no command is outstanding; the caller's state machine retries
// on a later tick.
func (pc *PayloadController) sendCommand(id vela_protocol.CommandID, frame []byte) bool {
	if !pc.transport.IsConnected() {
		pc.log.Error("send %s: transport not connected", vela_protocol.FormatCommandID(id))
		pc.lastError = vela_protocol.ErrNoResponse
		return false
	}
	if err := pc.transport.Send(frame); err != nil {
		pc.log.Error("send %s: %v", vela_protocol.FormatCommandID(id), err)
		pc.lastError = vela_protocol.ErrNoResponse
		return false
	}
	pc.cmdSent = 1
	pc.lastCmdSent = id
	return true
}

// receiveResponse polls the transport for up to ResponseWindow, discarding
// any frame whose leading command id byte does not match the outstanding
// command. Runs synchronously inside the tick.
func (pc *PayloadController) receiveResponse() {
	if pc.cmdSent == 0 {
		return
	}

	deadline := pc.clock.Now().Add(ResponseWindow)
	for {
		raw := pc.transport.Receive()
		if len(raw) == 0 {
			if !pc.clock.Now().Before(deadline) {
				break
			}
			pc.clock.Sleep(ResponsePollInterval)
			continue
		}

		if vela_protocol.CommandID(raw[0]) != pc.lastCmdSent {
			// Stale or aliased response from an earlier command.
			pc.log.Debug("discarding frame for 0x%02X while waiting on %s",
				raw[0], vela_protocol.FormatCommandID(pc.lastCmdSent))
			if !pc.clock.Now().Before(deadline) {
				break
			}
			continue
		}

		resp, code := vela_protocol.Decode(raw)
		pc.cmdSent = 0
		pc.handleResult(pc.lastCmdSent, resp, code)
		return
	}

	pc.cmdSent = 0
	pc.handleResult(pc.lastCmdSent, nil, vela_protocol.ErrNoResponse)
}

// handleResult applies one decoded (command, result) pair to controller state.
func (pc *PayloadController) handleResult(cmd vela_protocol.CommandID, resp *vela_protocol.Response, code vela_protocol.ErrorCode) {
	switch cmd {
	case vela_protocol.CmdPing:
		if code == vela_protocol.ErrOK && pc.state == StatePoweringOn {
			pc.enterReady()
			return
		}
		// No answer yet; keep pinging until the boot timeout fires.
		if code == vela_protocol.ErrNoResponse {
			return
		}

	case vela_protocol.CmdRequestTelemetry:
		pc.awaitingTelemetry = false
		if code == vela_protocol.ErrOK {
			pc.lastTelemetryTime = pc.clock.Now()
			pc.telemetry = resp.Telemetry
			pc.telemetryValid = true
			if err := pc.storage.LogTelemetry(&resp.Telemetry); err != nil {
				pc.log.Error("log telemetry: %v", err)
			}
			return
		}

	case vela_protocol.CmdRequestImage:
		if code == vela_protocol.ErrOK {
			if pc.storage.FileProcessExists(ImageTag) {
				pc.log.Debug("data process %q already exists, chunks will append", ImageTag)
			}
			pc.transfer.StartTransfer(TransferImage)
			pc.stats.Reset()
			pc.awaitingFilePacket = false
			pc.log.Info("image transfer started")
			return
		}
		if code == vela_protocol.ErrFileNotAvailable {
			pc.log.Warn("no image available on payload")
			pc.lastError = code
			return
		}

	case vela_protocol.CmdRequestNextFilePacket:
		pc.handleFilePacketResult(resp, code)
		return

	case vela_protocol.CmdShutdown:
		if code == vela_protocol.ErrOK {
			pc.shutdownConfirmed = true
			return
		}
		// Keep resending until the shutdown timeout fires.
		if code == vela_protocol.ErrNoResponse {
			return
		}

	default:
		if code == vela_protocol.ErrOK {
			return
		}
	}

	// Anything else is a caller-visible failure, surfaced but not retried.
	pc.lastError = code
	pc.log.Warn("unexpected result for %s: %s", vela_protocol.FormatCommandID(cmd), code)
}

// handleFilePacketResult implements the retry and degradation policy for
// file transfers: up to MaxPacketRetries attempts per packet, then a
// zero-filled placeholder so data loss is explicit rather than silent.
func (pc *PayloadController) handleFilePacketResult(resp *vela_protocol.Response, code vela_protocol.ErrorCode) {
	pc.awaitingFilePacket = false

	if !pc.transfer.InProgress {
		pc.log.Warn("file packet result with no transfer in progress")
		return
	}

	switch code {
	case vela_protocol.ErrOK:
		if err := pc.storage.LogFile(ImageTag, resp.Chunk); err != nil {
			pc.log.Error("store chunk %d: %v", pc.transfer.PacketNb, err)
		}
		pc.transfer.AckPacket()
		pc.stats.PacketRetryCount = 0
		pc.stats.TotalPacketsReceived++

	case vela_protocol.ErrNoMoreFilePacket:
		pc.transfer.StopTransfer()
		if err := pc.storage.FileCompleted(ImageTag); err != nil {
			pc.log.Error("complete file: %v", err)
		}
		pc.log.Info("file transfer complete: %s", pc.stats.String())
		pc.stats.Reset()

	case vela_protocol.ErrInvalidPacket, vela_protocol.ErrNoResponse:
		pc.stats.PacketRetryCount++
		pc.stats.TotalPacketsRetried++
		if code == vela_protocol.ErrInvalidPacket {
			pc.stats.CRCFailures++
		}
		if pc.stats.PacketRetryCount < MaxPacketRetries {
			// Same packet index again next tick.
			return
		}
		// Retries exhausted: mark the loss explicitly and move on.
		pc.log.Warn("packet %d failed %d times, storing placeholder", pc.transfer.PacketNb, MaxPacketRetries)
		placeholder := make([]byte, vela_protocol.DataFieldSize)
		if err := pc.storage.LogFile(ImageTag, placeholder); err != nil {
			pc.log.Error("store placeholder: %v", err)
		}
		pc.transfer.AckPacket()
		pc.stats.PacketRetryCount = 0
		pc.stats.PacketsSkipped++

	default:
		pc.lastError = code
		pc.log.Warn("unexpected file packet result: %s", code)
	}
}
