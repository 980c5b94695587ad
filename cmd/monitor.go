// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Perigee Space Systems

package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/perigee-space/vela/pkg/vela_protocol"
)

var monitorHexDump bool

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Passively decode and log inbound payload frames",
	Long: `Monitor the payload link without driving it.

Every inbound frame is decoded and printed with a timestamp, along with
running link statistics. Useful for watching another controller's session or
diagnosing a noisy link.

Press Ctrl+C to stop and print a statistics summary.`,
	RunE: runMonitor,
}

func init() {
	monitorCmd.Flags().BoolVar(&monitorHexDump, "hex", false, "Also print raw frame bytes")
	rootCmd.AddCommand(monitorCmd)
}

func runMonitor(cmd *cobra.Command, args []string) error {
	tr, connInfo, err := OpenTransport()
	if err != nil {
		return err
	}
	if err := tr.Connect(); err != nil {
		return err
	}
	defer tr.Disconnect()

	fmt.Printf("Monitoring %s (Ctrl+C to stop)\n\n", connInfo)

	stats := vela_protocol.NewLinkStatistics()
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	for {
		select {
		case <-sigChan:
			stats.CalculateRates()
			fmt.Printf("\n%s\n", stats.String())
			return nil
		default:
		}

		frame := tr.Receive()
		if frame == nil {
			time.Sleep(time.Millisecond)
			continue
		}

		resp, code := vela_protocol.Decode(frame)
		stats.Update(frame, resp, code)

		timestamp := time.Now().Format("15:04:05.000")
		if resp != nil {
			fmt.Printf("[%s] %s", timestamp, vela_protocol.FormatResponse(resp))
		} else {
			fmt.Printf("[%s] %d bytes: %s\n", timestamp, len(frame), code)
		}
		if monitorHexDump {
			fmt.Print(vela_protocol.FormatFrameHex(frame))
		}
	}
}
