package extract

import (
	"encoding/binary"
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/cockroachdb/pebble/v2"
	"github.com/cockroachdb/pebble/v2/vfs"
)

// PersistentCache stores decoded code object bytes keyed by object_base so
// a later run against the same image reuses prior decode work instead of
// re-running the bit-level decoder. It is a pure enrichment: nothing in
// this package requires one to be configured, and every codepath that uses
// one also works against the in-memory pebble instance PersistentCache
// falls back to.
type PersistentCache struct {
	db *pebble.DB
}

// OpenPersistentCache opens (creating if necessary) a pebble store at dir.
// An empty dir opens an in-memory store instead, so callers that never
// configure a cache directory still exercise this codepath.
func OpenPersistentCache(dir string) (*PersistentCache, error) {
	opts := &pebble.Options{}
	if dir == "" {
		opts.FS = vfs.NewMem()
		dir = "mem-decode-cache"
	}
	db, err := pebble.Open(dir, opts)
	if err != nil {
		return nil, fmt.Errorf("extract: opening persistent cache: %w", err)
	}
	return &PersistentCache{db: db}, nil
}

// Close releases the underlying pebble store.
func (c *PersistentCache) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

// persistentKey is derived from object_base alone: two aliased code objects
// (same object_base, different partition/object name) must collide on this
// key, since the alias-dedup invariant guarantees they decode to
// byte-identical output. partitionName/objectName are accepted only so
// callers can log them alongside a miss; they never enter the key.
func persistentKey(objectBase int64) []byte {
	h := xxhash.New()
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(objectBase))
	h.Write(buf[:])
	digest := h.Sum64()

	key := fmt.Sprintf("%016x", digest)
	return []byte(key)
}

// Get returns previously decoded bytes for the given code object, if any.
// partitionName/objectName identify the caller's object for logging only.
func (c *PersistentCache) Get(objectBase int64, partitionName, objectName string) ([]byte, bool) {
	if c == nil || c.db == nil {
		return nil, false
	}
	v, closer, err := c.db.Get(persistentKey(objectBase))
	if err != nil {
		return nil, false
	}
	defer closer.Close()
	out := make([]byte, len(v))
	copy(out, v)
	return out, true
}

// Put stores decoded bytes for the given code object. partitionName/
// objectName identify the caller's object for logging only.
func (c *PersistentCache) Put(objectBase int64, partitionName, objectName string, data []byte) error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Set(persistentKey(objectBase), data, pebble.Sync)
}
