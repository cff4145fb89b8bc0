package extract

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
	tinylfu "github.com/dgryski/go-tinylfu"
)

// objectKey hashes the absolute base offset a code object's data starts at
// into a stable cache key. Per the alias idempotence invariant, equal
// object_base implies byte-identical decoded output regardless of which
// partition or name refers to it, so the key is deliberately this thin.
func objectKey(objectBase int64) uint64 {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(objectBase))
	return xxhash.Sum64(buf[:])
}

// identityHash is the tinylfu hasher for objectCache: the key is already an
// xxhash digest, so spreading it again would only waste cycles.
func identityHash(k uint64) uint64 { return k }

// objectCache is the in-process, per-run alias-dedup cache: an object_base
// seen once yields its decoded bytes to every later code object sharing
// that base without re-running the decoder.
type objectCache struct {
	t *tinylfu.T[uint64, []byte]
}

func newObjectCache(size int) *objectCache {
	return &objectCache{t: tinylfu.New[uint64, []byte](size, size*10, identityHash)}
}

func (c *objectCache) get(objectBase int64) ([]byte, bool) {
	return c.t.Get(objectKey(objectBase))
}

func (c *objectCache) put(objectBase int64, data []byte) {
	c.t.Add(objectKey(objectBase), data)
}
