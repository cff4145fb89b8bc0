package cpimage

import (
	"encoding/binary"
	"fmt"
	"io"
)

const (
	cpdFixedHeaderSize = 11
	cpdEntrySize        = 24

	// relativeOffsetMask and huffmanFlag split the packed 32-bit field at
	// byte 12 of each code object entry: low 25 bits are the offset within
	// the partition, bit 25 marks Huffman compression.
	relativeOffsetMask = 0x01FFFFFF
	huffmanFlag        = 0x02000000
)

// CodeObjectEntry is one module listed in a partition's Code Partition
// Directory.
type CodeObjectEntry struct {
	Partition         CodePartitionDescriptor
	Name              string
	RelativeOffset    uint32
	Size              uint32
	HuffmanCompressed bool
}

// ReadCodeObjects reads part's Code Partition Directory header and every
// entry it lists. The header is either 16 or 20 bytes; byte 10 carries its
// actual length, so the first 11 bytes are always read, then the remainder
// if any.
func ReadCodeObjects(r io.ReaderAt, part CodePartitionDescriptor) ([]CodeObjectEntry, error) {
	var fixed [cpdFixedHeaderSize]byte
	if _, err := r.ReadAt(fixed[:], part.OffsetOfCDTHeader); err != nil {
		return nil, fmt.Errorf("cpimage: reading CPD header of %q: %w", part.Name, err)
	}
	headerLength := int(fixed[10])
	if headerLength < cpdFixedHeaderSize {
		return nil, fmt.Errorf("cpimage: CPD header of %q reports length %d, too small", part.Name, headerLength)
	}

	hdr := make([]byte, headerLength)
	copy(hdr, fixed[:])
	if headerLength > cpdFixedHeaderSize {
		if _, err := r.ReadAt(hdr[cpdFixedHeaderSize:], part.OffsetOfCDTHeader+cpdFixedHeaderSize); err != nil {
			return nil, fmt.Errorf("cpimage: reading CPD header tail of %q: %w", part.Name, err)
		}
	}
	numObjects := binary.LittleEndian.Uint32(hdr[4:8])

	base := part.OffsetOfCDTHeader + int64(headerLength)
	entries := make([]CodeObjectEntry, 0, numObjects)
	for i := uint32(0); i < numObjects; i++ {
		var buf [cpdEntrySize]byte
		off := base + int64(i)*cpdEntrySize
		if _, err := r.ReadAt(buf[:], off); err != nil {
			return nil, fmt.Errorf("cpimage: reading CPD entry %d of %q: %w", i, part.Name, err)
		}

		packed := binary.LittleEndian.Uint32(buf[12:16])
		entries = append(entries, CodeObjectEntry{
			Partition:         part,
			Name:              trimName(buf[0:12]),
			RelativeOffset:    packed & relativeOffsetMask,
			Size:              binary.LittleEndian.Uint32(buf[16:20]),
			HuffmanCompressed: packed&huffmanFlag != 0,
		})
	}

	if len(entries) == 0 {
		return nil, ErrNoCodeObjects
	}
	return entries, nil
}

// HuffmanCompressedOnly filters entries down to those actually carrying
// Huffman-compressed payload; everything downstream of the LUT reader only
// makes sense for these.
func HuffmanCompressedOnly(entries []CodeObjectEntry) []CodeObjectEntry {
	out := make([]CodeObjectEntry, 0, len(entries))
	for _, e := range entries {
		if e.HuffmanCompressed {
			out = append(out, e)
		}
	}
	return out
}
