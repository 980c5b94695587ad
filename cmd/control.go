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

	"github.com/perigee-space/vela/pkg/controller"
	"github.com/perigee-space/vela/pkg/datahandler"
	"github.com/perigee-space/vela/pkg/logger"
	"github.com/perigee-space/vela/pkg/vela_protocol"
)

var (
	controlTickPeriod time.Duration
	controlFetchImage bool
	controlUseTUI     bool
)

var controlCmd = &cobra.Command{
	Use:   "control",
	Short: "Run the payload control loop",
	Long: `Run the cooperative payload control loop against the selected transport.

The controller powers the payload on, polls telemetry every 10 seconds, and
logs everything under the data directory. With --image it downloads one image
once the payload is ready. With --tui an interactive dashboard replaces the
log output; its keys map to controller requests:

  o  power on         i  request image
  s  graceful off     c  clear payload storage
  r  reboot           f  force power off
  q  quit (powers the payload off first)

On SIGINT the headless loop requests a graceful shutdown; a second SIGINT
cuts power immediately.`,
	RunE: runControl,
}

func init() {
	controlCmd.Flags().DurationVar(&controlTickPeriod, "tick", 100*time.Millisecond, "Control loop tick period")
	controlCmd.Flags().BoolVar(&controlFetchImage, "image", false, "Download one image, then exit")
	controlCmd.Flags().BoolVar(&controlUseTUI, "tui", false, "Interactive dashboard")
	rootCmd.AddCommand(controlCmd)
}

func runControl(cmd *cobra.Command, args []string) error {
	tr, connInfo, err := OpenTransport()
	if err != nil {
		return err
	}

	store, err := datahandler.NewFileStore(dataDir)
	if err != nil {
		return err
	}

	if controlUseTUI {
		return runControlTUI(tr, store, connInfo)
	}

	log := logger.New()
	pc := controller.New(tr, store, log, controller.NewRealClock())

	log.Info("payload link: %s", connInfo)
	pc.AddRequest(controller.ReqTurnOn)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	ticker := time.NewTicker(controlTickPeriod)
	defer ticker.Stop()

	imageRequested := false
	shuttingDown := false

	for {
		select {
		case <-sigChan:
			if shuttingDown {
				log.Warn("second interrupt, cutting payload power")
				pc.AddRequest(controller.ReqForcePowerOff)
				pc.Tick()
				return nil
			}
			shuttingDown = true
			log.Info("interrupt, shutting payload down")
			pc.AddRequest(controller.ReqTurnOff)

		case <-ticker.C:
			pc.Tick()

			if shuttingDown && pc.State() == controller.StateOff {
				return nil
			}
			if pc.MustReAttemptBoot() {
				return fmt.Errorf("payload failed to boot within %s", controller.TimeoutBoot)
			}

			if controlFetchImage && !shuttingDown && pc.State() == controller.StateReady {
				switch {
				case !imageRequested:
					imageRequested = true
					pc.AddRequest(controller.ReqRequestImage)
				case !pc.FileTransferInProgress() && pc.Transfer().LastTransferType == controller.TransferImage:
					shuttingDown = true
					pc.AddRequest(controller.ReqTurnOff)
				case pc.LastError() == vela_protocol.ErrFileNotAvailable:
					return fmt.Errorf("payload has no image to download")
				}
			}
		}
	}
}
