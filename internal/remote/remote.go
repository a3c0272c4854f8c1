// Package remote drives the object storage synchronisation of the cache store.
//
// The transfer itself is done by an external command configured as sync_command.
// It is invoked as "<sync_command> pull <key>" and "<sync_command> push <key>".
// Exit status 0 means the transfer happened. A pull exits with MissExitCode when
// nothing is stored under the key; that is reported as ErrNotFound without retrying.
// Any other non-zero status is a failure and is retried.
package remote

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
)

const maxRetries = 2

// MissExitCode is the exit status of a pull that found nothing under the key
const MissExitCode = 3

var (
	// ErrNotConfigured is returned when no sync command is set
	ErrNotConfigured = errors.New("remote sync command not configured")

	// ErrNotFound is returned by Pull when the key is not in object storage
	ErrNotFound = errors.New("key not found in remote storage")
)

// exitCoder is satisfied by *exec.ExitError
type exitCoder interface {
	ExitCode() int
}

// Commander interface for testing
type Commander interface {
	Run() error
}

// Syncer pulls and pushes the store through the sync command
type Syncer struct {
	command     []string
	logger      zerolog.Logger
	execCommand func(ctx context.Context, name string, args ...string) Commander
	newBackOff  func() backoff.BackOff
}

// New creates a syncer for command, split on whitespace
func New(command string, logger zerolog.Logger) *Syncer {
	return &Syncer{
		command: strings.Fields(command),
		logger:  logger,
		execCommand: func(ctx context.Context, name string, args ...string) Commander {
			cmd := exec.CommandContext(ctx, name, args...)
			// keep stdout free for the tool's own output
			cmd.Stdout = os.Stderr
			cmd.Stderr = os.Stderr
			return cmd
		},
		newBackOff: func() backoff.BackOff {
			return backoff.NewExponentialBackOff(backoff.WithInitialInterval(2 * time.Second))
		},
	}
}

// Configured reports whether a sync command is set
func (s *Syncer) Configured() bool {
	return len(s.command) > 0
}

// Pull downloads the store for key
func (s *Syncer) Pull(ctx context.Context, key string) error {
	return s.run(ctx, "pull", key)
}

// Push uploads the store under key
func (s *Syncer) Push(ctx context.Context, key string) error {
	return s.run(ctx, "push", key)
}

func (s *Syncer) run(ctx context.Context, op, key string) error {
	if !s.Configured() {
		return ErrNotConfigured
	}

	args := append(append([]string{}, s.command[1:]...), op, key)
	attempt := 0

	err := backoff.Retry(func() error {
		attempt++
		s.logger.Debug().Str("op", op).Str("key", key).Int("attempt", attempt).Msg("Running sync command")

		err := s.execCommand(ctx, s.command[0], args...).Run()

		var exitErr exitCoder
		if op == "pull" && errors.As(err, &exitErr) && exitErr.ExitCode() == MissExitCode {
			return backoff.Permanent(ErrNotFound)
		}

		return err
	}, backoff.WithContext(backoff.WithMaxRetries(s.newBackOff(), maxRetries), ctx))
	if errors.Is(err, ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("sync %s failed after %d attempts: %w", op, attempt, err)
	}

	return nil
}
