// Package cache tracks the state of files at the end of the last successful persisting
// run, so later runs can skip files which have not changed since.
package cache

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io/fs"
	"time"

	"github.com/adrg/xdg"
	"github.com/charmbracelet/log"
	"github.com/vmihailenco/msgpack/v5"
	bolt "go.etcd.io/bbolt"
)

const pathsBucket = "paths"

// Entry records the last seen size and modified time for a file path.
type Entry struct {
	Size     int64
	Modified time.Time
}

type Cache struct {
	db  *bolt.DB
	log *log.Logger
}

// Open creates a Cache for a given treeRoot path. If clear is true any existing data is
// removed first.
//
// The database lives at `XDG_CACHE_DIR/codefmt/eval-cache/<id>.db`, where <id> is derived
// by hashing treeRoot. This associates a given tree root with a given instance of the cache.
func Open(treeRoot string, clear bool) (*Cache, error) {
	// determine a unique and consistent db name for the tree root
	h := sha1.New()
	h.Write([]byte(treeRoot))
	name := hex.EncodeToString(h.Sum(nil))

	path, err := xdg.CacheFile(fmt.Sprintf("codefmt/eval-cache/%v.db", name))
	if err != nil {
		return nil, fmt.Errorf("could not resolve local path for the cache: %w", err)
	}

	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if clear {
			if err := tx.DeleteBucket([]byte(pathsBucket)); err != nil && err != bolt.ErrBucketNotFound {
				return fmt.Errorf("failed to clear paths bucket: %w", err)
			}
		}

		if _, err := tx.CreateBucketIfNotExists([]byte(pathsBucket)); err != nil {
			return fmt.Errorf("failed to create paths bucket: %w", err)
		}

		return nil
	})
	if err != nil {
		_ = db.Close()

		return nil, err
	}

	return &Cache{db: db, log: log.WithPrefix("cache")}, nil
}

// Unchanged reports whether path's current stat matches its entry from the last
// successful run. Unknown paths are never unchanged.
//
// Mod times are compared at second precision. POSIX only specifies EPOCH time for mod
// times, and some filesystems offer more precision than others.
func (c *Cache) Unchanged(path string, info fs.FileInfo) bool {
	var entry *Entry

	err := c.db.View(func(tx *bolt.Tx) error {
		var err error
		entry, err = getEntry(tx.Bucket([]byte(pathsBucket)), path)

		return err
	})
	if err != nil {
		c.log.Warnf("failed to read entry for %s: %v", path, err)

		return false
	}

	if entry == nil {
		return false
	}

	return entry.Size == info.Size() &&
		entry.Modified.Truncate(time.Second).Equal(info.ModTime().Truncate(time.Second))
}

// Update records the given path stats in a single transaction.
func (c *Cache) Update(entries map[string]fs.FileInfo) error {
	if len(entries) == 0 {
		return nil
	}

	err := c.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(pathsBucket))

		for path, info := range entries {
			entry := &Entry{
				Size:     info.Size(),
				Modified: info.ModTime(),
			}

			if err := putEntry(bucket, path, entry); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to update cache: %w", err)
	}

	return nil
}

func (c *Cache) Close() error {
	if err := c.db.Close(); err != nil {
		return fmt.Errorf("failed to close cache: %w", err)
	}

	return nil
}

func getEntry(bucket *bolt.Bucket, path string) (*Entry, error) {
	value := bucket.Get([]byte(path))
	if value == nil {
		return nil, nil
	}

	var entry Entry
	if err := msgpack.Unmarshal(value, &entry); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cache entry for %s: %w", path, err)
	}

	return &entry, nil
}

func putEntry(bucket *bolt.Bucket, path string, entry *Entry) error {
	value, err := msgpack.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal cache entry for %s: %w", path, err)
	}

	if err = bucket.Put([]byte(path), value); err != nil {
		return fmt.Errorf("failed to put cache entry for %s: %w", path, err)
	}

	return nil
}
