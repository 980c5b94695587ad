// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Perigee Space Systems

package transport

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
)

// WebSocketConfig holds the connection parameters for a bridged payload link.
type WebSocketConfig struct {
	URL           string
	Username      string
	Password      string
	SkipSSLVerify bool
}

// WebSocketTransport reaches a payload behind a ground-segment bridge that
// re-exposes the serial link as binary WebSocket messages, one frame per
// message. A reader goroutine feeds an internal queue so Receive stays a
// non-blocking poll like the other transports.
type WebSocketTransport struct {
	cfg WebSocketConfig

	conn      *websocket.Conn
	rxQueue   chan []byte
	connected bool
}

// NewWebSocketTransport creates a transport for the given bridge endpoint.
func NewWebSocketTransport(cfg WebSocketConfig) *WebSocketTransport {
	return &WebSocketTransport{cfg: cfg}
}

// Connect dials the bridge with HTTP Basic auth and starts the reader.
func (t *WebSocketTransport) Connect() error {
	if t.connected {
		return nil
	}

	u, err := url.Parse(t.cfg.URL)
	if err != nil {
		return fmt.Errorf("invalid bridge URL: %w", err)
	}
	switch u.Scheme {
	case "ws", "wss":
	default:
		return fmt.Errorf("unsupported URL scheme %q (use ws:// or wss://)", u.Scheme)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}
	if u.Scheme == "wss" {
		dialer.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: t.cfg.SkipSSLVerify,
		}
	}

	headers := http.Header{}
	if t.cfg.Username != "" && t.cfg.Password != "" {
		credentials := base64.StdEncoding.EncodeToString([]byte(t.cfg.Username + ":" + t.cfg.Password))
		headers.Set("Authorization", "Basic "+credentials)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	conn, resp, err := dialer.DialContext(ctx, t.cfg.URL, headers)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("bridge connection failed (HTTP %d): %w", resp.StatusCode, err)
		}
		return fmt.Errorf("bridge connection failed: %w", err)
	}

	t.conn = conn
	t.rxQueue = make(chan []byte, 64)
	t.connected = true
	go t.readLoop(conn, t.rxQueue)
	return nil
}

// readLoop pulls binary messages off the socket until it fails or closes.
func (t *WebSocketTransport) readLoop(conn *websocket.Conn, queue chan<- []byte) {
	defer close(queue)
	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if messageType != websocket.BinaryMessage {
			continue
		}
		select {
		case queue <- data:
		default:
			// Queue full; the oldest frames are already stale, drop this one.
		}
	}
}

// Disconnect closes the socket; the reader goroutine exits on the read error.
func (t *WebSocketTransport) Disconnect() error {
	if !t.connected {
		return nil
	}
	t.connected = false
	return t.conn.Close()
}

// IsConnected reports whether the socket is open.
func (t *WebSocketTransport) IsConnected() bool {
	return t.connected
}

// Send writes one frame as a single binary message.
func (t *WebSocketTransport) Send(pckt []byte) error {
	if !t.connected {
		return fmt.Errorf("websocket transport not connected")
	}
	if err := t.conn.WriteMessage(websocket.BinaryMessage, pckt); err != nil {
		return fmt.Errorf("write to bridge: %w", err)
	}
	return nil
}

// Receive returns the next queued frame, or nil when none is pending.
func (t *WebSocketTransport) Receive() []byte {
	if !t.connected {
		return nil
	}
	select {
	case frame, ok := <-t.rxQueue:
		if !ok {
			return nil
		}
		return frame
	default:
		return nil
	}
}

// FlushRxBuffer drains every queued frame.
func (t *WebSocketTransport) FlushRxBuffer() {
	if !t.connected {
		return
	}
	for {
		select {
		case _, ok := <-t.rxQueue:
			if !ok {
				return
			}
		default:
			return
		}
	}
}
