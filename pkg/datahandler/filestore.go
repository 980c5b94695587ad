// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Perigee Space Systems

package datahandler

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/perigee-space/vela/pkg/vela_protocol"
)

// partName is the in-progress file every chunk is appended to. A crash leaves
// the partial behind under this name, so an operator can tell a truncated
// download from a finished one.
const partName = "inbound.part"

// telemetryDir is the tag directory telemetry records are appended under.
const telemetryDir = "telemetry"

// TelemetryRecord is one stored telemetry sample. Records are appended to the
// log as a CBOR sequence, one encoded map per sample.
type TelemetryRecord struct {
	ReceivedAt int64                           `cbor:"received_at"`
	Snapshot   vela_protocol.TelemetrySnapshot `cbor:"snapshot"`
}

// FileStore is the on-disk DataHandler. Each tag owns a directory under the
// root; chunks accumulate in a part file that is renamed into place on
// completion, so any file without the part suffix is whole.
type FileStore struct {
	root string

	enc cbor.EncMode

	// now is swapped out by tests.
	now func() time.Time
}

// NewFileStore creates the store root if needed.
func NewFileStore(root string) (*FileStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create data root %s: %w", root, err)
	}
	enc, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		return nil, fmt.Errorf("cbor encoder: %w", err)
	}
	return &FileStore{root: root, enc: enc, now: time.Now}, nil
}

func (s *FileStore) tagDir(tag string) string {
	return filepath.Join(s.root, tag)
}

// LogFile appends one chunk to the tag's part file, creating the tag
// directory on first use.
func (s *FileStore) LogFile(tag string, chunk []byte) error {
	dir := s.tagDir(tag)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create tag dir %s: %w", dir, err)
	}

	path := filepath.Join(dir, partName)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	if _, err := f.Write(chunk); err != nil {
		return fmt.Errorf("append chunk to %s: %w", path, err)
	}
	return nil
}

// FileCompleted renames the tag's part file to a timestamped final name.
func (s *FileStore) FileCompleted(tag string) error {
	part := filepath.Join(s.tagDir(tag), partName)
	final := filepath.Join(s.tagDir(tag), fmt.Sprintf("%s_%d.bin", tag, s.now().Unix()))
	if err := os.Rename(part, final); err != nil {
		return fmt.Errorf("finalize %s: %w", part, err)
	}
	return nil
}

// FileProcessExists reports whether the tag has a directory under the root.
func (s *FileStore) FileProcessExists(tag string) bool {
	info, err := os.Stat(s.tagDir(tag))
	return err == nil && info.IsDir()
}

// LogTelemetry appends one CBOR-encoded record to the telemetry log.
func (s *FileStore) LogTelemetry(tm *vela_protocol.TelemetrySnapshot) error {
	dir := s.tagDir(telemetryDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create telemetry dir %s: %w", dir, err)
	}

	record, err := s.enc.Marshal(TelemetryRecord{
		ReceivedAt: s.now().Unix(),
		Snapshot:   *tm,
	})
	if err != nil {
		return fmt.Errorf("encode telemetry record: %w", err)
	}

	path := filepath.Join(dir, "telemetry.cbor")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	if _, err := f.Write(record); err != nil {
		return fmt.Errorf("append telemetry record: %w", err)
	}
	return nil
}

// ReadTelemetryLog decodes every record in the tag's telemetry log. Intended
// for ground tooling and tests, not the flight path.
func (s *FileStore) ReadTelemetryLog() ([]TelemetryRecord, error) {
	path := filepath.Join(s.tagDir(telemetryDir), "telemetry.cbor")
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	var records []TelemetryRecord
	dec := cbor.NewDecoder(f)
	for {
		var rec TelemetryRecord
		if err := dec.Decode(&rec); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("decode telemetry record: %w", err)
		}
		records = append(records, rec)
	}
	return records, nil
}
