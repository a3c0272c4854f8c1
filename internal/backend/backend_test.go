package backend

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Norgate-AV/cachestat/internal/cachekey"
	"github.com/Norgate-AV/cachestat/internal/config"
	"github.com/Norgate-AV/cachestat/internal/remote"
	"github.com/Norgate-AV/cachestat/internal/store"
)

type fakeSyncer struct {
	pulled  []string
	pushed  []string
	pullErr error
}

func (f *fakeSyncer) Pull(_ context.Context, key string) error {
	f.pulled = append(f.pulled, key)
	return f.pullErr
}

func (f *fakeSyncer) Push(_ context.Context, key string) error {
	f.pushed = append(f.pushed, key)
	return nil
}

func TestOpen(t *testing.T) {
	tests := []struct {
		name     string
		cfg      *config.Config
		wantName string
		wantErr  bool
	}{
		{name: "none", cfg: &config.Config{Backend: config.BackendNone}, wantName: "none"},
		{name: "empty", cfg: &config.Config{}, wantName: "none"},
		{name: "remote without command", cfg: &config.Config{Backend: config.BackendRemote}, wantName: "none"},
		{name: "remote", cfg: &config.Config{Backend: config.BackendRemote, SyncCommand: "sync"}, wantName: "remote"},
		{name: "local", cfg: &config.Config{Backend: config.BackendLocal, StoreDir: filepath.Join(t.TempDir(), "store")}, wantName: "local"},
		{name: "local without dir", cfg: &config.Config{Backend: config.BackendLocal}, wantErr: true},
		{name: "unknown", cfg: &config.Config{Backend: "ftp"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := Open(tt.cfg, zerolog.Nop())
			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			defer b.Close()
			assert.Equal(t, tt.wantName, b.Name())
		})
	}
}

func TestLocal_RoundTrip(t *testing.T) {
	s, err := store.Open(filepath.Join(t.TempDir(), "store"))
	require.NoError(t, err)

	cacheDir := filepath.Join(t.TempDir(), "sccache")
	require.NoError(t, os.MkdirAll(cacheDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(cacheDir, "obj"), []byte("compiled"), 0o644))

	b := NewLocal(s, []string{cacheDir}, zerolog.Nop())
	defer b.Close()

	key := cachekey.Descriptor{PrimaryKey: "p-1-linux-aaaa", FallbackPrefixes: []string{"p-1-linux-"}}

	restored, err := b.Restore(context.Background(), key)
	require.NoError(t, err)
	assert.Empty(t, restored, "Cold store restores nothing")

	require.NoError(t, b.Save(context.Background(), key.PrimaryKey))
	require.NoError(t, b.Save(context.Background(), key.PrimaryKey), "Saving twice is a silent skip")

	require.NoError(t, os.RemoveAll(cacheDir))

	next := cachekey.Descriptor{PrimaryKey: "p-1-linux-bbbb", FallbackPrefixes: []string{"p-1-linux-"}}
	restored, err = b.Restore(context.Background(), next)
	require.NoError(t, err)
	assert.Equal(t, "p-1-linux-aaaa", restored)

	data, err := os.ReadFile(filepath.Join(cacheDir, "obj"))
	require.NoError(t, err)
	assert.Equal(t, "compiled", string(data))
}

func TestRemote(t *testing.T) {
	syncer := &fakeSyncer{}
	b := NewRemote(syncer)

	key := cachekey.Descriptor{PrimaryKey: "k", FallbackPrefixes: []string{"p-"}}

	restored, err := b.Restore(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, "k", restored)

	require.NoError(t, b.Save(context.Background(), "k"))
	assert.Equal(t, []string{"k"}, syncer.pulled)
	assert.Equal(t, []string{"k"}, syncer.pushed)

	syncer.pullErr = remote.ErrNotFound
	restored, err = b.Restore(context.Background(), key)
	require.NoError(t, err, "A remote miss is a cold start")
	assert.Empty(t, restored)

	syncer.pullErr = errors.New("network down")
	restored, err = b.Restore(context.Background(), key)
	assert.Error(t, err)
	assert.Empty(t, restored)
}

func TestNone(t *testing.T) {
	var b Backend = None{}

	restored, err := b.Restore(context.Background(), cachekey.Descriptor{PrimaryKey: "k"})
	require.NoError(t, err)
	assert.Empty(t, restored)
	assert.NoError(t, b.Save(context.Background(), "k"))
	assert.NoError(t, b.Close())
}
