// Package backend selects how the compiler cache store is carried between runs.
package backend

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/Norgate-AV/cachestat/internal/cachekey"
	"github.com/Norgate-AV/cachestat/internal/config"
	"github.com/Norgate-AV/cachestat/internal/remote"
	"github.com/Norgate-AV/cachestat/internal/store"
)

// Backend restores the store at the start of a run and saves it at the end
type Backend interface {
	// Name is the label shown in reports
	Name() string

	// Restore returns the key that was restored, or "" when nothing matched
	Restore(ctx context.Context, key cachekey.Descriptor) (string, error)

	// Save persists the store under key. Saving an existing key is not an error.
	Save(ctx context.Context, key string) error

	Close() error
}

// Syncer transfers the store to and from object storage
type Syncer interface {
	Pull(ctx context.Context, key string) error
	Push(ctx context.Context, key string) error
}

// Open creates the backend configured in cfg
func Open(cfg *config.Config, logger zerolog.Logger) (Backend, error) {
	switch cfg.Backend {
	case config.BackendLocal:
		s, err := store.Open(cfg.StoreDir)
		if err != nil {
			return nil, err
		}

		return NewLocal(s, cfg.CachePaths, logger), nil
	case config.BackendRemote:
		syncer := remote.New(cfg.SyncCommand, logger)
		if !syncer.Configured() {
			logger.Info().Msg("Remote backend selected but no sync_command set, continuing without persistence")
			return None{}, nil
		}

		return NewRemote(syncer), nil
	case config.BackendNone, "":
		return None{}, nil
	}

	return nil, fmt.Errorf("invalid backend: %s", cfg.Backend)
}

// Local persists the store with the bbolt-backed local snapshot store
type Local struct {
	store  *store.Store
	paths  []string
	logger zerolog.Logger
}

// NewLocal creates a local backend saving and restoring paths
func NewLocal(s *store.Store, paths []string, logger zerolog.Logger) *Local {
	return &Local{store: s, paths: paths, logger: logger}
}

func (l *Local) Name() string {
	return config.BackendLocal
}

func (l *Local) Restore(_ context.Context, key cachekey.Descriptor) (string, error) {
	return l.store.Restore(l.paths, key.PrimaryKey, key.FallbackPrefixes)
}

func (l *Local) Save(_ context.Context, key string) error {
	err := l.store.Save(l.paths, key)
	if errors.Is(err, store.ErrExists) {
		l.logger.Debug().Str("key", key).Msg("Snapshot already saved, leaving it untouched")
		return nil
	}
	if err != nil {
		return err
	}

	if entries, size, err := l.store.Stats(); err == nil {
		l.logger.Debug().Int("entries", entries).Int64("bytes", size).Msg("Local store")
	}

	return nil
}

func (l *Local) Close() error {
	return l.store.Close()
}

// Remote persists the store through the object storage sync command.
// The sync protocol has no prefix lookup, so only the primary key is pulled.
// A pull reporting remote.ErrNotFound is a cold start, not a failure.
type Remote struct {
	syncer Syncer
}

// NewRemote creates a remote backend
func NewRemote(syncer Syncer) *Remote {
	return &Remote{syncer: syncer}
}

func (r *Remote) Name() string {
	return config.BackendRemote
}

func (r *Remote) Restore(ctx context.Context, key cachekey.Descriptor) (string, error) {
	err := r.syncer.Pull(ctx, key.PrimaryKey)
	if errors.Is(err, remote.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}

	return key.PrimaryKey, nil
}

func (r *Remote) Save(ctx context.Context, key string) error {
	return r.syncer.Push(ctx, key)
}

func (r *Remote) Close() error {
	return nil
}

// None is used when no persistence is configured
type None struct{}

func (None) Name() string {
	return config.BackendNone
}

func (None) Restore(context.Context, cachekey.Descriptor) (string, error) {
	return "", nil
}

func (None) Save(context.Context, string) error {
	return nil
}

func (None) Close() error {
	return nil
}
