// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Perigee Space Systems

package cmd

import (
	"github.com/spf13/cobra"
)

var (
	// Serial connection flags
	portName string
	baudRate int

	// WebSocket bridge flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool

	// FIFO IPC flags (software-in-the-loop)
	fifoDir string

	// Storage
	dataDir string
)

var rootCmd = &cobra.Command{
	Use:   "vela",
	Short: "Vela payload link controller",
	Long: `Vela - host-side controller and ground tooling for the satellite payload link.

Drives the companion compute unit over its command/response protocol: power
sequencing, telemetry polling, image downlink, and link diagnostics.

Connection modes:
  Serial:    --port /dev/ttyUSB0 [--baud 115200]
  WebSocket: --url ws://host/path [--username user]
  FIFO IPC:  --fifo-dir /tmp (software-in-the-loop)

For WebSocket authentication, the password is read from the VELA_PASSWORD
environment variable, or prompted interactively if not set. The --password
flag is intentionally not provided to avoid leaking credentials in shell history.`,
	Version: "1.2.0",
}

func init() {
	// Serial connection flags
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Serial port device")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", 115200, "Baud rate (serial only)")

	// WebSocket bridge flags
	rootCmd.PersistentFlags().StringVarP(&wsURL, "url", "u", "", "WebSocket URL (ws:// or wss://)")
	rootCmd.PersistentFlags().StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	// FIFO IPC flags
	rootCmd.PersistentFlags().StringVar(&fifoDir, "fifo-dir", "", "Directory holding the SIL FIFO pair")

	// Storage
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "vela-data", "Directory for downloaded files and telemetry logs")
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
