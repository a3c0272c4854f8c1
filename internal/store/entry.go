package store

import "time"

// Entry describes one saved snapshot of the cache paths
type Entry struct {
	// Key is the cache key the snapshot was saved under
	Key string `json:"key"`

	// Paths are the directories archived, in archive index order
	Paths []string `json:"paths"`

	// Archive is the archive file name relative to the store root
	Archive string `json:"archive"`

	// Size of the archive in bytes
	Size int64 `json:"size"`

	// CreatedAt is used to pick the newest entry on a prefix match
	CreatedAt time.Time `json:"created_at"`
}
