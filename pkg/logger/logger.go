// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Perigee Space Systems

// Package logger provides the leveled logger used across the flight software.
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"time"
)

// Logger is a small leveled wrapper around the standard library logger.
type Logger struct {
	*log.Logger
}

// New creates a logger writing timestamped lines to stdout.
func New() *Logger {
	return NewWithOutput(os.Stdout)
}

// NewWithOutput creates a logger writing to the given writer. The TUI uses
// this to redirect controller output into its event log.
func NewWithOutput(w io.Writer) *Logger {
	logger := log.New(&timestampWriter{out: w}, "", 0)
	return &Logger{Logger: logger}
}

type timestampWriter struct {
	out io.Writer
}

func (w *timestampWriter) Write(p []byte) (n int, err error) {
	timestamp := time.Now().Format("2006/01/02 15:04:05.000")
	formatted := fmt.Sprintf("%s %s", timestamp, string(p))
	return w.out.Write([]byte(formatted))
}

func (l *Logger) Info(format string, v ...interface{}) {
	l.Printf("[INFO] "+format, v...)
}

func (l *Logger) Warn(format string, v ...interface{}) {
	l.Printf("[WARN] "+format, v...)
}

func (l *Logger) Error(format string, v ...interface{}) {
	l.Printf("[ERROR] "+format, v...)
}

func (l *Logger) Debug(format string, v ...interface{}) {
	l.Printf("[DEBUG] "+format, v...)
}
