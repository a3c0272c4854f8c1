// Package eventlog reads the newline-delimited JSON log the compiler cache appends to
// during a build.
//
// The log is written by a separate process, so it may end in a torn line or contain
// garbage. Decoding is done per line: a line either yields a Record or is dropped.
package eventlog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// DecodeLine decodes a single log line. ok is false for blank, malformed or unknown lines.
func DecodeLine(line []byte) (rec Record, ok bool) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return Record{}, false
	}

	if err := json.Unmarshal(line, &rec); err != nil {
		return Record{}, false
	}

	if !rec.Result.Valid() || rec.ElapsedMillis < 0 || rec.SizeBytes < 0 {
		return Record{}, false
	}

	return rec, true
}

// Parse decodes every line of data in order, skipping lines DecodeLine rejects.
// Returns nil when nothing could be decoded, which callers treat as "no run data".
func Parse(data []byte) []Record {
	var records []Record

	for _, line := range bytes.Split(data, []byte("\n")) {
		if rec, ok := DecodeLine(line); ok {
			records = append(records, rec)
		}
	}

	return records
}

// ReadFile parses the log at path. A missing file is not an error and yields nil.
func ReadFile(path string) ([]Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to read event log: %w", err)
	}

	return Parse(data), nil
}

// Reset truncates the log at path, creating it if needed, so that only the
// activity of the coming build is captured
func Reset(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create event log directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to truncate event log: %w", err)
	}

	return f.Close()
}
