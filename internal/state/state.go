// Package state carries the handoff between the start and finish invocations of a run.
package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/Norgate-AV/cachestat/internal/cachekey"
)

// ErrNotFound is returned by Load when no state file exists
var ErrNotFound = errors.New("state file not found")

// State is written once by start and read once by finish
type State struct {
	// RunID correlates the two halves of a run in logs
	RunID string `json:"run_id"`

	Key cachekey.Descriptor `json:"key"`

	// RestoredKey is the key the store was restored from, empty on a cold start
	RestoredKey string `json:"restored_key"`

	// Backend is the persistence backend in effect (local, remote or none)
	Backend string `json:"backend"`

	StartedAt time.Time `json:"started_at"`
}

// New creates a state for a run starting now
func New(key cachekey.Descriptor, backend string, now time.Time) State {
	return State{
		RunID:     uuid.NewString(),
		Key:       key,
		Backend:   backend,
		StartedAt: now.UTC(),
	}
}

// WithRestoredKey returns a copy of s recording the restored key
func (s State) WithRestoredKey(key string) State {
	s.RestoredKey = key
	return s
}

// Elapsed returns whole seconds between StartedAt and now, 0 when unknown
func (s State) Elapsed(now time.Time) int64 {
	if s.StartedAt.IsZero() {
		return 0
	}

	d := now.Sub(s.StartedAt)
	if d < 0 {
		return 0
	}

	return int64(d / time.Second)
}

// Save writes s to path atomically
func Save(path string, s State) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".state-*")
	if err != nil {
		return fmt.Errorf("failed to create state file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write state file: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace state file: %w", err)
	}

	return nil
}

// Load reads the state written by Save
func Load(path string) (State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return State{}, ErrNotFound
		}

		return State{}, fmt.Errorf("failed to read state file: %w", err)
	}

	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return State{}, fmt.Errorf("failed to decode state file: %w", err)
	}

	return s, nil
}
