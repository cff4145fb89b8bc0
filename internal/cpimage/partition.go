package cpimage

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
)

// fptHeaderSize and fptEntrySize are fixed across the header/entry versions
// this package understands; only the 32-byte layout has been observed in
// the wild.
const (
	fptHeaderSize = 32
	fptEntrySize  = 32
)

// CodePartitionDescriptor is one code-type entry from the Firmware
// Partition Table: a named region of the image whose own Code Partition
// Directory starts at OffsetOfCDTHeader.
type CodePartitionDescriptor struct {
	Name              string
	OffsetOfCDTHeader int64
	Size              uint32
}

// ReadPartitions reads the FPT header at fptOffset and every entry that
// follows it, keeping only entries that name a code partition (type 0,
// not marked invalid). Entries of any other type (data, boot, etc.) are
// outside this package's scope and are dropped without an error; each
// skipped entry, invalid or non-code, is logged at debug level.
func ReadPartitions(r io.ReaderAt, fptOffset int64) ([]CodePartitionDescriptor, error) {
	var hdr [fptHeaderSize]byte
	if _, err := r.ReadAt(hdr[:], fptOffset); err != nil {
		return nil, fmt.Errorf("cpimage: reading FPT header: %w", err)
	}
	if !bytes.Equal(hdr[:4], fptMagic[:]) {
		return nil, ErrBadFPT
	}
	numEntries := binary.LittleEndian.Uint32(hdr[4:8])

	var out []CodePartitionDescriptor
	for i := uint32(0); i < numEntries; i++ {
		entOffset := fptOffset + fptHeaderSize + int64(i)*fptEntrySize
		var ent [fptEntrySize]byte
		if _, err := r.ReadAt(ent[:], entOffset); err != nil {
			return nil, fmt.Errorf("cpimage: reading FPT entry %d: %w", i, err)
		}

		flags := binary.LittleEndian.Uint32(ent[28:32])
		partType := flags & 0x7F
		invalid := (flags>>24)&0xFF == 0xFF
		if partType != 0 {
			slog.Debug("fpt entry is not a code partition, skipping", "index", i, "type", partType)
			continue
		}
		if invalid {
			slog.Debug("fpt entry marked invalid, skipping", "index", i)
			continue
		}

		out = append(out, CodePartitionDescriptor{
			Name:              trimName(ent[0:4]),
			OffsetOfCDTHeader: int64(binary.LittleEndian.Uint32(ent[8:12])),
			Size:              binary.LittleEndian.Uint32(ent[12:16]),
		})
	}

	if len(out) == 0 {
		return nil, ErrNoCodePartitions
	}
	return out, nil
}
