package cpimage

import (
	"fmt"
	"io"
	"log/slog"
)

// huffmanPageSize is PageMax from internal/huffcode, duplicated here to
// keep container parsing free of a dependency on the codec package; the
// two must stay in lockstep since it's the unit the LUT is sized in.
const huffmanPageSize = 4096

// LutEntry is one 4-byte Page Lookup Table entry: where a page's compressed
// bytes start and which of the codebook's two dictionaries it decodes
// through. PageSize is filled in from the following entry's offset and is
// 0 for the last entry, a sentinel meaning "decode until the page cap is
// hit or input runs out".
type LutEntry struct {
	CompressedOffset   uint32
	DictionarySelector int
	PageSize           int
}

// ReadLUT reads byteCount bytes of 4-byte LUT entries from r. reversed
// selects the byte order of each entry: true for a LUT embedded in a
// firmware image, false for a standalone LUT file. An entry whose top two
// selector bits are neither 0b11 nor 0b01 is malformed; it is logged and
// skipped rather than treated as fatal, since a single corrupt entry
// shouldn't sink every page around it.
func ReadLUT(r io.Reader, byteCount int, reversed bool) ([]LutEntry, error) {
	entries := make([]LutEntry, 0, byteCount/4)
	var buf [4]byte
	read := 0

	for read < byteCount {
		n, err := io.ReadFull(r, buf[:])
		read += n
		if err != nil {
			return nil, fmt.Errorf("cpimage: reading LUT entry at byte %d: %w", read, err)
		}

		selIdx := 0
		if reversed {
			selIdx = 3
		}
		top2 := buf[selIdx] & 0xC0

		var sel int
		switch top2 {
		case 0xC0:
			sel = 1
		case 0x40:
			sel = 0
		default:
			slog.Warn("lut entry has invalid dictionary selector, skipping", "byte_offset", read-4)
			continue
		}

		var offset uint32
		if reversed {
			offset = uint32(buf[3]&0x3F)<<24 | uint32(buf[2])<<16 | uint32(buf[1])<<8 | uint32(buf[0])
		} else {
			offset = uint32(buf[0]&0x3F)<<24 | uint32(buf[1])<<16 | uint32(buf[2])<<8 | uint32(buf[3])
		}

		if len(entries) > 0 {
			prev := &entries[len(entries)-1]
			prev.PageSize = int(offset) - int(prev.CompressedOffset)
		}
		entries = append(entries, LutEntry{CompressedOffset: offset, DictionarySelector: sel})
	}

	return entries, nil
}

// ReadStandaloneLUT reads a bare LUT file in its own non-reversed byte
// order, consuming it in full.
func ReadStandaloneLUT(r io.Reader, totalBytes int) ([]LutEntry, error) {
	return ReadLUT(r, totalBytes, false)
}

// ReadEmbeddedLUT reads the LUT that precedes a Huffman-compressed code
// object's page data inside a firmware image. Its entry count is derived
// from the object's declared uncompressed size: one entry per page, and
// that size is always a whole multiple of huffmanPageSize for Huffman
// compressed objects.
func ReadEmbeddedLUT(r io.Reader, uncompressedSize uint32) ([]LutEntry, error) {
	numPages := uncompressedSize / huffmanPageSize
	return ReadLUT(r, int(numPages)*4, true)
}
