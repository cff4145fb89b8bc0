// Package extract orchestrates the container parsers and the page decoder
// into whole-image and whole-object extraction, with alias dedup and an
// optional cross-run persistent cache.
package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/go-csme/unpack/internal/cpimage"
	"github.com/go-csme/unpack/internal/huffcode"
)

// ErrNoFPT is returned when no `$FPT` magic can be found anywhere in the
// input.
var ErrNoFPT = errors.New("extract: no FPT found in input")

// CodeObject is one decoded module, or a record of why decoding it failed.
// A non-nil Err means Data holds only the bytes decoded before the failure
// (possibly none), per the "partial output preserved" failure semantics of
// a fatal no-matching-code error.
type CodeObject struct {
	Partition string
	Name      string
	Data      []byte
	Err       error

	// AliasOf is the partition/name of the code object that first claimed
	// the same absolute base offset, set on every other code object sharing
	// that base. Such an alias is resolved only after the first one has
	// finished, so its Data normally comes from the dedup cache.
	AliasOf string
}

// ExtractionDriver orchestrates scanning an image, enumerating its
// Huffman-compressed code objects, and decoding each one.
type ExtractionDriver struct {
	Codebook   *huffcode.Codebook
	Persistent *PersistentCache

	cache   *objectCache
	cacheMu sync.Mutex

	// Concurrency bounds the number of code objects decoded in parallel.
	// Pages within one object are always sequential (each advances a
	// shared output offset); only independent objects can overlap.
	Concurrency int
}

// NewExtractionDriver builds a driver around an immutable codebook, shared
// read-only by every concurrent decode. persistent may be nil to disable
// the cross-run cache.
func NewExtractionDriver(cb *huffcode.Codebook, persistent *PersistentCache) *ExtractionDriver {
	return &ExtractionDriver{
		Codebook:    cb,
		Persistent:  persistent,
		cache:       newObjectCache(512),
		Concurrency: 4,
	}
}

// aliasRef identifies the first code object decoded for a given
// object_base, so later aliases can report what they're a copy of.
type aliasRef struct {
	partition, name string
}

// Extract scans src starting at begin, enumerates every Huffman-compressed
// code object across every code partition, and decodes them. onlyNames,
// when non-empty, restricts extraction to objects whose name is present.
func (d *ExtractionDriver) Extract(ctx context.Context, src io.ReaderAt, begin int64, onlyNames map[string]bool) ([]CodeObject, error) {
	hit, err := cpimage.FindFPT(src, begin)
	if err != nil {
		return nil, fmt.Errorf("extract: scanning for FPT: %w", err)
	}
	if hit == nil {
		return nil, ErrNoFPT
	}
	slog.Info("found FPT", "offset", hit.Offset, "num_entries", hit.NumEntries)

	partitions, err := cpimage.ReadPartitions(src, hit.Offset)
	if err != nil {
		return nil, fmt.Errorf("extract: reading partitions: %w", err)
	}

	type job struct {
		partition cpimage.CodePartitionDescriptor
		object    cpimage.CodeObjectEntry
	}
	var jobs []job
	for _, part := range partitions {
		objects, err := cpimage.ReadCodeObjects(src, part)
		if err != nil {
			slog.Warn("skipping partition, could not read code objects", "partition", part.Name, "error", err)
			continue
		}
		for _, obj := range cpimage.HuffmanCompressedOnly(objects) {
			if len(onlyNames) > 0 && !onlyNames[obj.Name] {
				continue
			}
			jobs = append(jobs, job{partition: part, object: obj})
		}
	}

	results := make([]CodeObject, len(jobs))
	aliasOwner := make(map[int64]aliasRef)
	ownerDone := make(map[int64]chan struct{})
	var aliasMu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, d.Concurrency))

	for i, j := range jobs {
		i, j := i, j
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return nil
			}
			objectBase := j.partition.OffsetOfCDTHeader + int64(j.object.RelativeOffset)

			aliasMu.Lock()
			owner, seen := aliasOwner[objectBase]
			done := ownerDone[objectBase]
			if !seen {
				aliasOwner[objectBase] = aliasRef{partition: j.partition.Name, name: j.object.Name}
				done = make(chan struct{})
				ownerDone[objectBase] = done
			}
			aliasMu.Unlock()
			if seen {
				// Wait for the first claimant so this alias is served from
				// the dedup cache instead of being decoded a second time.
				<-done
			}

			data, decErr := d.decodeObject(src, j.partition, j.object, objectBase)
			if !seen {
				close(done)
			}
			results[i] = CodeObject{
				Partition: j.partition.Name,
				Name:      j.object.Name,
				Data:      data,
				Err:       decErr,
			}
			if seen {
				results[i].AliasOf = fmt.Sprintf("%s/%s", owner.partition, owner.name)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}

// decodeObject resolves a single code object's bytes, consulting the
// in-process alias cache and the optional persistent cache before falling
// through to an actual page-by-page decode.
func (d *ExtractionDriver) decodeObject(src io.ReaderAt, part cpimage.CodePartitionDescriptor, obj cpimage.CodeObjectEntry, objectBase int64) ([]byte, error) {
	d.cacheMu.Lock()
	if cached, ok := d.cache.get(objectBase); ok {
		d.cacheMu.Unlock()
		return cached, nil
	}
	if cached, ok := d.Persistent.Get(objectBase, part.Name, obj.Name); ok {
		d.cache.put(objectBase, cached)
		d.cacheMu.Unlock()
		return cached, nil
	}
	d.cacheMu.Unlock()

	data, err := d.decodePages(src, obj, objectBase)

	// Cache whatever was produced even on a fatal no-matching-code error:
	// the partial output is deterministic for this object_base and is
	// cheaper to hand back than to re-derive.
	d.cacheMu.Lock()
	d.cache.put(objectBase, data)
	d.cacheMu.Unlock()
	if err == nil {
		if perr := d.Persistent.Put(objectBase, part.Name, obj.Name, data); perr != nil {
			slog.Warn("persistent cache write failed", "partition", part.Name, "object", obj.Name, "error", perr)
		}
	}
	return data, err
}

// decodePages reads obj's embedded LUT and decodes every page in sequence,
// re-seeking the input for each page per the stateless-cursor contract.
func (d *ExtractionDriver) decodePages(src io.ReaderAt, obj cpimage.CodeObjectEntry, objectBase int64) ([]byte, error) {
	lutReader := io.NewSectionReader(src, objectBase, int64(obj.Size/huffcode.PageMax)*4+4)
	lut, err := cpimage.ReadEmbeddedLUT(lutReader, obj.Size)
	if err != nil {
		return nil, fmt.Errorf("extract: reading LUT for %q: %w", obj.Name, err)
	}

	lutByteLen := int64(obj.Size/huffcode.PageMax) * 4
	pagesBase := objectBase + lutByteLen

	decoder := huffcode.NewPageDecoder(d.Codebook)
	out := make([]byte, 0, obj.Size)

	for i, entry := range lut {
		sizeBound := entry.PageSize
		if sizeBound == 0 {
			sizeBound = huffcode.PageMax
		}
		pageStart := pagesBase + int64(entry.CompressedOffset)
		pageSrc := io.NewSectionReader(src, pageStart, int64(sizeBound))

		var pageBuf bytes.Buffer
		_, decErr := decoder.Decode(pageSrc, entry.PageSize, entry.DictionarySelector, &pageBuf)
		out = append(out, pageBuf.Bytes()...)
		if decErr != nil {
			return out, fmt.Errorf("extract: decoding page %d/%d of %q: %w", i+1, len(lut), obj.Name, decErr)
		}
	}
	return out, nil
}
