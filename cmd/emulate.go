// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Perigee Space Systems

package cmd

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/perigee-space/vela/pkg/emulator"
	"github.com/perigee-space/vela/pkg/logger"
	"github.com/perigee-space/vela/pkg/transport"
)

var (
	emulateImageSize   int
	emulateCorruptRate float64
	emulateDropRate    float64
	emulateSeed        int64
	emulateListen      string
)

var emulateCmd = &cobra.Command{
	Use:   "emulate",
	Short: "Emulate the payload for software-in-the-loop testing",
	Long: `Speak the payload side of the protocol without hardware.

The emulator answers pings and telemetry requests and serves a synthetic
image over the file transfer path. Fault injection flags corrupt or drop
responses at a configurable rate to exercise the controller's retry policy.

By default the emulator sits behind the FIFO pair in --fifo-dir; with
--listen it serves the link as binary WebSocket messages instead, one frame
per message, so a remote controller can attach with --url.`,
	RunE: runEmulate,
}

func init() {
	emulateCmd.Flags().IntVar(&emulateImageSize, "image-size", 64*1024, "Synthetic image size in bytes")
	emulateCmd.Flags().Float64Var(&emulateCorruptRate, "corrupt-rate", 0, "Probability of corrupting a data frame CRC")
	emulateCmd.Flags().Float64Var(&emulateDropRate, "drop-rate", 0, "Probability of dropping a response")
	emulateCmd.Flags().Int64Var(&emulateSeed, "seed", 1, "Seed for image content and fault pattern")
	emulateCmd.Flags().StringVar(&emulateListen, "listen", "", "Serve the link over WebSocket on this address (e.g. :8765)")
	rootCmd.AddCommand(emulateCmd)
}

func runEmulate(cmd *cobra.Command, args []string) error {
	log := logger.New()
	emu := emulator.New(emulator.Config{
		ImageSize:   emulateImageSize,
		CorruptRate: emulateCorruptRate,
		DropRate:    emulateDropRate,
		Seed:        emulateSeed,
	}, log)

	if emulateListen != "" {
		return emulateWebSocket(emu, log)
	}
	if fifoDir == "" {
		return fmt.Errorf("either --fifo-dir or --listen must be specified")
	}
	return emulateFIFO(emu, log)
}

// emulateFIFO serves the payload side of the SIL pipe pair.
func emulateFIFO(emu *emulator.Emulator, log *logger.Logger) error {
	tr := transport.NewPayloadIPCTransport(fifoDir)
	if err := tr.Connect(); err != nil {
		return err
	}
	defer tr.Disconnect()

	log.Info("payload emulator on FIFO pair in %s", fifoDir)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	for {
		select {
		case <-sigChan:
			log.Info("emulator stopping")
			return nil
		default:
		}

		cmdFrame := tr.Receive()
		if cmdFrame == nil {
			time.Sleep(time.Millisecond)
			continue
		}

		if resp := emu.Handle(cmdFrame); resp != nil {
			if err := tr.Send(resp); err != nil {
				log.Error("send response: %v", err)
			}
		}
	}
}

// emulateWebSocket serves the link as one-frame-per-message binary WebSocket.
func emulateWebSocket(emu *emulator.Emulator, log *logger.Logger) error {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}

	// The emulated payload has a single UART: one session at a time.
	var sessionMu sync.Mutex

	http.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Error("upgrade: %v", err)
			return
		}
		defer conn.Close()

		sessionMu.Lock()
		defer sessionMu.Unlock()
		log.Info("controller attached from %s", r.RemoteAddr)

		for {
			messageType, cmdFrame, err := conn.ReadMessage()
			if err != nil {
				log.Info("controller detached: %v", err)
				return
			}
			if messageType != websocket.BinaryMessage {
				continue
			}
			resp := emu.Handle(cmdFrame)
			if resp == nil {
				continue
			}
			if err := conn.WriteMessage(websocket.BinaryMessage, resp); err != nil {
				log.Error("write response: %v", err)
				return
			}
		}
	})

	log.Info("payload emulator listening on %s", emulateListen)
	return http.ListenAndServe(emulateListen, nil)
}
