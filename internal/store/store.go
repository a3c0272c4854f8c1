// Package store is the local persistence backend for the compiler cache directory.
//
// Snapshots are saved as gzip'd tar archives on the filesystem while their metadata
// lives in BoltDB, keyed by cache key:
//
//  1. Save is write-once: a key that already exists is never overwritten
//  2. Restore tries the exact key, then each fallback prefix in order
//  3. A prefix match picks the newest entry sharing that prefix
//
// The store directory itself is expected to be carried between runs by the CI
// platform (a mounted volume or the platform's own cache step).
package store

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
)

const (
	// bucketName is the BoltDB bucket name for snapshot entries
	bucketName = "snapshots"

	archiveDir = "archives"
)

// ErrExists is returned by Save when the key already holds a snapshot
var ErrExists = errors.New("cache key already saved")

// Store manages snapshot archives and their metadata
type Store struct {
	db   *bbolt.DB
	root string
	now  func() time.Time
}

// Open opens or creates a store rooted at dir
func Open(dir string) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("store directory not specified")
	}

	if err := os.MkdirAll(filepath.Join(dir, archiveDir), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	db, err := bbolt.Open(filepath.Join(dir, "store.db"), 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open store database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create store bucket: %w", err)
	}

	return &Store{db: db, root: dir, now: time.Now}, nil
}

// Close closes the store database
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}

	return nil
}

// Restore extracts the best matching snapshot into paths and returns its key.
// An empty key with a nil error means nothing matched.
func (s *Store) Restore(paths []string, key string, fallbacks []string) (string, error) {
	entry, err := s.lookup(key, fallbacks)
	if err != nil || entry == nil {
		return "", err
	}

	if len(entry.Paths) != len(paths) {
		return "", fmt.Errorf("snapshot %s holds %d paths, %d requested", entry.Key, len(entry.Paths), len(paths))
	}

	if err := extractArchive(filepath.Join(s.root, entry.Archive), paths); err != nil {
		return "", err
	}

	return entry.Key, nil
}

// lookup finds the exact key or the newest entry matching a fallback prefix
func (s *Store) lookup(key string, fallbacks []string) (*Entry, error) {
	var found *Entry

	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))

		if data := b.Get([]byte(key)); data != nil {
			var e Entry
			if err := json.Unmarshal(data, &e); err != nil {
				return fmt.Errorf("failed to decode entry %s: %w", key, err)
			}

			found = &e
			return nil
		}

		for _, prefix := range fallbacks {
			if prefix == "" {
				continue
			}

			if e := newestWithPrefix(b, []byte(prefix)); e != nil {
				found = e
				return nil
			}
		}

		return nil
	})

	return found, err
}

func newestWithPrefix(b *bbolt.Bucket, prefix []byte) *Entry {
	var newest *Entry

	c := b.Cursor()
	for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
		var e Entry
		if err := json.Unmarshal(v, &e); err != nil {
			continue // a corrupt entry is never a usable match
		}

		if newest == nil || e.CreatedAt.After(newest.CreatedAt) {
			newest = &e
		}
	}

	return newest
}

// Save archives paths under key. Saving an existing key returns ErrExists.
func (s *Store) Save(paths []string, key string) error {
	if key == "" {
		return fmt.Errorf("cache key must not be empty")
	}

	exists, err := s.has(key)
	if err != nil {
		return err
	}

	if exists {
		return ErrExists
	}

	archive := filepath.Join(archiveDir, archiveName(key))
	dst := filepath.Join(s.root, archive)

	if err := writeArchive(dst, paths); err != nil {
		os.Remove(dst)
		return err
	}

	info, err := os.Stat(dst)
	if err != nil {
		return fmt.Errorf("failed to stat archive: %w", err)
	}

	entry := Entry{
		Key:       key,
		Paths:     paths,
		Archive:   archive,
		Size:      info.Size(),
		CreatedAt: s.now().UTC(),
	}

	err = s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))

		// another run may have saved the key while we were archiving
		if b.Get([]byte(key)) != nil {
			return ErrExists
		}

		data, err := json.Marshal(entry)
		if err != nil {
			return err
		}

		return b.Put([]byte(key), data)
	})
	if errors.Is(err, ErrExists) {
		return err
	}

	if err != nil {
		return fmt.Errorf("failed to store entry: %w", err)
	}

	return nil
}

func (s *Store) has(key string) (bool, error) {
	var exists bool

	err := s.db.View(func(tx *bbolt.Tx) error {
		exists = tx.Bucket([]byte(bucketName)).Get([]byte(key)) != nil
		return nil
	})

	return exists, err
}

// Stats returns the number of snapshots and their total archive size
func (s *Store) Stats() (int, int64, error) {
	var count int
	var totalSize int64

	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).ForEach(func(_, v []byte) error {
			var e Entry
			if err := json.Unmarshal(v, &e); err != nil {
				return nil // skip corrupt entries
			}

			count++
			totalSize += e.Size

			return nil
		})
	})
	if err != nil {
		return 0, 0, err
	}

	return count, totalSize, nil
}

// archiveName turns a cache key into a unique, filesystem-safe file name
func archiveName(key string) string {
	safe := make([]byte, 0, len(key))
	for i := 0; i < len(key); i++ {
		c := key[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '.', c == '_':
			safe = append(safe, c)
		default:
			safe = append(safe, '_')
		}
	}

	sum := sha256.Sum256([]byte(key))

	return string(safe) + "-" + hex.EncodeToString(sum[:4]) + ".tar.gz"
}
