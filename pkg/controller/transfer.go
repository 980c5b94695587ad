// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Perigee Space Systems

package controller

// TransferType distinguishes what kind of file is being pulled from the
// payload.
type TransferType int

const (
	TransferNone TransferType = iota
	TransferImage
)

// String returns the transfer type name.
func (tt TransferType) String() string {
	switch tt {
	case TransferImage:
		return "IMAGE"
	default:
		return "NONE"
	}
}

// FileTransfer tracks an in-progress file transfer. The packet index is the
// one the host asks for next; the companion unit numbers the first packet of
// every file 1, so a fresh transfer starts there, not at 0.
type FileTransfer struct {
	InProgress bool
	PacketNb   uint32
	Type       TransferType

	LastTransferType TransferType
}

// StartTransfer begins tracking a new transfer of the given kind.
func (ft *FileTransfer) StartTransfer(kind TransferType) {
	ft.InProgress = true
	ft.PacketNb = 1
	ft.Type = kind
}

// AckPacket advances to the next packet after the current one was stored.
// Calling it outside a transfer is a logic error; flight code logs and moves
// on rather than panicking, so the caller checks InProgress and this is a
// plain no-op guard.
func (ft *FileTransfer) AckPacket() bool {
	if !ft.InProgress {
		return false
	}
	ft.PacketNb++
	return true
}

// StopTransfer ends the transfer, remembering its kind in LastTransferType.
func (ft *FileTransfer) StopTransfer() {
	ft.LastTransferType = ft.Type
	ft.Reset()
}

// Reset clears the tracker without recording the transfer kind.
func (ft *FileTransfer) Reset() {
	ft.InProgress = false
	ft.PacketNb = 0
	ft.Type = TransferNone
}
