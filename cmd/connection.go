// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Perigee Space Systems

package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"

	"golang.org/x/term"

	"github.com/perigee-space/vela/pkg/transport"
)

// GetPassword retrieves the bridge password from the environment or prompts
// the user without echo.
func GetPassword() (string, error) {
	if pw := os.Getenv("VELA_PASSWORD"); pw != "" {
		return pw, nil
	}

	fmt.Fprint(os.Stderr, "Password: ")

	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		// Fallback to regular input if terminal functions fail
		reader := bufio.NewReader(os.Stdin)
		password, err := reader.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("failed to read password: %v", err)
		}
		fmt.Fprintln(os.Stderr)
		return strings.TrimSpace(password), nil
	}

	fmt.Fprintln(os.Stderr)
	return string(passwordBytes), nil
}

// OpenTransport builds the payload transport selected by the root flags.
// Nothing is connected yet; the controller owns the connection lifecycle.
func OpenTransport() (transport.Transport, string, error) {
	if wsURL != "" {
		password := ""
		if wsUsername != "" {
			var err error
			password, err = GetPassword()
			if err != nil {
				return nil, "", err
			}
		}
		tr := transport.NewWebSocketTransport(transport.WebSocketConfig{
			URL:           wsURL,
			Username:      wsUsername,
			Password:      password,
			SkipSSLVerify: wsNoSSLVerify,
		})
		return tr, fmt.Sprintf("WebSocket: %s", wsURL), nil
	}

	if portName != "" {
		tr := transport.NewSerialTransport(portName, baudRate)
		return tr, fmt.Sprintf("Serial: %s @ %d baud", portName, baudRate), nil
	}

	if fifoDir != "" {
		tr := transport.NewIPCTransport(fifoDir)
		return tr, fmt.Sprintf("FIFO IPC: %s", fifoDir), nil
	}

	return nil, "", fmt.Errorf("one of --port, --url or --fifo-dir must be specified")
}
