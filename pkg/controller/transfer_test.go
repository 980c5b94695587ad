// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Perigee Space Systems

package controller

import "testing"

func TestFileTransfer_StartsAtPacketOne(t *testing.T) {
	var ft FileTransfer
	ft.StartTransfer(TransferImage)

	if !ft.InProgress {
		t.Fatal("expected transfer in progress")
	}
	// The companion unit numbers the first packet 1, not 0.
	if ft.PacketNb != 1 {
		t.Errorf("expected packet_nb 1, got %d", ft.PacketNb)
	}
	if ft.Type != TransferImage {
		t.Errorf("expected IMAGE transfer, got %s", ft.Type)
	}
}

func TestFileTransfer_AckAdvances(t *testing.T) {
	var ft FileTransfer
	ft.StartTransfer(TransferImage)

	const n = 17
	for i := 0; i < n; i++ {
		if !ft.AckPacket() {
			t.Fatalf("ack %d failed", i)
		}
	}
	if ft.PacketNb != 1+n {
		t.Errorf("expected packet_nb %d, got %d", 1+n, ft.PacketNb)
	}
}

func TestFileTransfer_AckOutsideTransferIsNoop(t *testing.T) {
	var ft FileTransfer
	if ft.AckPacket() {
		t.Error("ack outside a transfer should report failure")
	}
	if ft.PacketNb != 0 {
		t.Errorf("packet_nb should stay 0, got %d", ft.PacketNb)
	}
}

func TestFileTransfer_StopRemembersType(t *testing.T) {
	var ft FileTransfer
	ft.StartTransfer(TransferImage)
	ft.AckPacket()
	ft.StopTransfer()

	if ft.InProgress {
		t.Error("expected transfer stopped")
	}
	if ft.PacketNb != 0 {
		t.Errorf("expected packet_nb reset to 0, got %d", ft.PacketNb)
	}
	if ft.LastTransferType != TransferImage {
		t.Errorf("expected last transfer type IMAGE, got %s", ft.LastTransferType)
	}
	if ft.Type != TransferNone {
		t.Errorf("expected current type NONE, got %s", ft.Type)
	}
}
