// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Perigee Space Systems

// Package emulator speaks the payload side of the Vela protocol for
// software-in-the-loop runs. It answers the host's commands the way the real
// companion computer does, serves a synthetic image over the file transfer
// path, and can inject link faults at configurable rates to exercise the
// controller's retry policy.
package emulator

import (
	"math/rand"

	"github.com/perigee-space/vela/pkg/logger"
	"github.com/perigee-space/vela/pkg/vela_protocol"
)

// Config tunes the emulated payload.
type Config struct {
	// ImageSize is the synthetic image length in bytes.
	ImageSize int

	// CorruptRate is the probability that a data frame is sent with a
	// smashed CRC. DropRate is the probability that a response is not sent
	// at all. Both in [0, 1].
	CorruptRate float64
	DropRate    float64

	// Seed drives both the image content and the fault pattern, so a run
	// can be replayed exactly.
	Seed int64
}

// Emulator holds the payload-side state for one SIL session.
type Emulator struct {
	cfg Config
	log *logger.Logger
	rng *rand.Rand

	image        []byte
	transferOpen bool

	uptime    uint32
	bootCount uint32
	powered   bool
}

// New creates an emulator with a deterministic synthetic image.
func New(cfg Config, log *logger.Logger) *Emulator {
	if cfg.ImageSize <= 0 {
		cfg.ImageSize = 4 * 1024
	}
	rng := rand.New(rand.NewSource(cfg.Seed))
	image := make([]byte, cfg.ImageSize)
	rng.Read(image)

	return &Emulator{
		cfg:       cfg,
		log:       log,
		rng:       rng,
		image:     image,
		bootCount: 1,
		powered:   true,
	}
}

// Image returns the synthetic image the emulator serves.
func (e *Emulator) Image() []byte {
	return e.image
}

// Handle processes one inbound command frame and returns the response frame
// to send, or nil when the response is dropped (fault injection) or the
// command takes no response.
func (e *Emulator) Handle(cmd []byte) []byte {
	if len(cmd) == 0 {
		return nil
	}

	resp := e.dispatch(cmd)
	if resp == nil {
		return nil
	}

	if e.rng.Float64() < e.cfg.DropRate {
		e.log.Debug("fault injection: dropping response")
		return nil
	}
	if len(resp) == vela_protocol.DataFrameSize && e.rng.Float64() < e.cfg.CorruptRate {
		e.log.Debug("fault injection: corrupting CRC")
		resp[vela_protocol.DataFrameSize-1] ^= 0xFF
	}
	return resp
}

func (e *Emulator) dispatch(cmd []byte) []byte {
	id := vela_protocol.CommandID(cmd[0])

	switch id {
	case vela_protocol.CmdPing:
		// Count every ping as one second of uptime; close enough for a
		// synthetic clock.
		e.uptime++
		return vela_protocol.BuildAckFrame(id, 0, vela_protocol.PingValue)

	case vela_protocol.CmdShutdown:
		e.powered = false
		e.transferOpen = false
		return vela_protocol.BuildAckFrame(id, 0, vela_protocol.AckSuccess)

	case vela_protocol.CmdRequestTelemetry:
		e.uptime++
		tm := e.telemetry()
		return vela_protocol.BuildDataFrame(id, 0, vela_protocol.MarshalTelemetry(&tm))

	case vela_protocol.CmdRequestImage:
		if len(e.image) == 0 {
			return vela_protocol.BuildAckFrame(id, 0, vela_protocol.AckError)
		}
		e.transferOpen = true
		return vela_protocol.BuildAckFrame(id, 0, vela_protocol.AckSuccess)

	case vela_protocol.CmdRequestNextFilePacket:
		return e.filePacket(cmd)

	case vela_protocol.CmdClearStorage:
		e.image = nil
		e.transferOpen = false
		return vela_protocol.BuildAckFrame(id, 0, vela_protocol.AckSuccess)

	case vela_protocol.CmdStoredImages:
		count := uint16(0)
		if len(e.image) > 0 {
			count = 1
		}
		return vela_protocol.BuildDataFrame(id, 0, []byte{byte(count >> 8), byte(count)})

	default:
		if vela_protocol.IsValidCommand(id) {
			return vela_protocol.BuildAckFrame(id, 0, vela_protocol.AckSuccess)
		}
		e.log.Warn("unknown command 0x%02X", cmd[0])
		return vela_protocol.BuildAckFrame(id, 0, vela_protocol.AckError)
	}
}

// filePacket serves the chunk for a 1-based packet index, or an error ack
// once the image is exhausted.
func (e *Emulator) filePacket(cmd []byte) []byte {
	id := vela_protocol.CommandID(cmd[0])
	if !e.transferOpen || len(cmd) < 3 {
		return vela_protocol.BuildAckFrame(id, 0, vela_protocol.AckError)
	}

	packetNb := int(cmd[1])<<8 | int(cmd[2])
	if packetNb < 1 {
		return vela_protocol.BuildAckFrame(id, 0, vela_protocol.AckError)
	}

	start := (packetNb - 1) * vela_protocol.MaxFileChunkSize
	if start >= len(e.image) {
		e.transferOpen = false
		return vela_protocol.BuildAckFrame(id, 0, vela_protocol.AckError)
	}
	end := start + vela_protocol.MaxFileChunkSize
	if end > len(e.image) {
		end = len(e.image)
	}
	return vela_protocol.BuildFilePacketFrame(uint16(packetNb), e.image[start:end])
}

func (e *Emulator) telemetry() vela_protocol.TelemetrySnapshot {
	tm := vela_protocol.TelemetrySnapshot{
		SystemTime:    1767225600 + e.uptime,
		Uptime:        e.uptime,
		BootCount:     e.bootCount,
		PayloadState:  1,
		ActiveCameras: 4,
		RAMUsage:      uint8(30 + e.rng.Intn(10)),
		DiskUsage:     42,
		CPULoad:       uint8(20 + e.rng.Intn(30)),
		CPUTemp:       450 + uint16(e.rng.Intn(20)),
		GPUTemp:       480,
		BoardTemp:     310,
	}
	if len(e.image) > 0 {
		tm.CameraStatus = [4]uint8{1, 1, 1, 1}
	}
	return tm
}
