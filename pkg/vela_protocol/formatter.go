// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Perigee Space Systems

package vela_protocol

import (
	"fmt"
	"strings"
)

// FormatCommandID returns the wire protocol name of a command.
func FormatCommandID(id CommandID) string {
	switch id {
	case CmdPing:
		return "PING"
	case CmdShutdown:
		return "SHUTDOWN"
	case CmdSynchronizeTime:
		return "SYNCHRONIZE_TIME"
	case CmdRequestTelemetry:
		return "REQUEST_TELEMETRY"
	case CmdEnableCameras:
		return "ENABLE_CAMERAS"
	case CmdDisableCameras:
		return "DISABLE_CAMERAS"
	case CmdCaptureImages:
		return "CAPTURE_IMAGES"
	case CmdStoredImages:
		return "STORED_IMAGES"
	case CmdClearStorage:
		return "CLEAR_STORAGE"
	case CmdRequestImage:
		return "REQUEST_IMAGE"
	case CmdRequestNextFilePacket:
		return "REQUEST_NEXT_FILE_PACKET"
	case CmdRunOrbitDetermination:
		return "RUN_OD"
	case CmdPingODStatus:
		return "PING_OD_STATUS"
	default:
		return "UNKNOWN"
	}
}

// FormatResponse renders a decoded response in human-readable form for the
// monitor command.
func FormatResponse(resp *Response) string {
	var b strings.Builder

	kind := "DATA"
	if resp.Ack {
		kind = "ACK"
	}
	fmt.Fprintf(&b, "%s (0x%02X) %s seq=%d len=%d\n",
		FormatCommandID(resp.Cmd), byte(resp.Cmd), kind, resp.Seq, resp.DataLen)

	switch {
	case resp.Ack:
		fmt.Fprintf(&b, "  Status: 0x%02X\n", resp.Status)
	case resp.HasTelemetry:
		b.WriteString(FormatTelemetry(&resp.Telemetry))
	case resp.Chunk != nil:
		fmt.Fprintf(&b, "  File chunk: %d bytes\n", len(resp.Chunk))
	case resp.Cmd == CmdStoredImages:
		fmt.Fprintf(&b, "  Stored images: %d\n", resp.StoredCount)
	}

	return b.String()
}

// FormatTelemetry renders a telemetry snapshot as an indented block.
func FormatTelemetry(tm *TelemetrySnapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "  Time: %d  Uptime: %ds  Boots: %d\n", tm.SystemTime, tm.Uptime, tm.BootCount)
	fmt.Fprintf(&b, "  State: 0x%02X  Cameras: %d  Mode: 0x%02X  Errors: %d\n",
		tm.PayloadState, tm.ActiveCameras, tm.CaptureMode, tm.ErrorCount)
	fmt.Fprintf(&b, "  RAM: %d%%  Disk: %d%%  CPU: %d%%  GPU: %d%%\n",
		tm.RAMUsage, tm.DiskUsage, tm.CPULoad, tm.GPULoad)
	fmt.Fprintf(&b, "  Temps: CPU %.1fC  GPU %.1fC  Board %.1fC\n",
		float64(tm.CPUTemp)/10.0, float64(tm.GPUTemp)/10.0, float64(tm.BoardTemp)/10.0)
	return b.String()
}

// FormatFrameHex renders a raw frame as a wrapped hex dump.
func FormatFrameHex(frame []byte) string {
	var b strings.Builder
	b.WriteString("  Raw: ")
	for i, by := range frame {
		if i > 0 && i%16 == 0 {
			b.WriteString("\n       ")
		}
		fmt.Fprintf(&b, "%02X ", by)
	}
	b.WriteString("\n")
	return b.String()
}
