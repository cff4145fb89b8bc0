package cpimage

import (
	"bytes"
	"testing"
)

func reversedEntry(offset uint32, selTop2 byte) []byte {
	b := make([]byte, 4)
	b[0] = byte(offset)
	b[1] = byte(offset >> 8)
	b[2] = byte(offset >> 16)
	b[3] = selTop2<<6 | byte(offset>>24)&0x3F
	return b
}

func TestReadLUTReversed(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(reversedEntry(0, 0b11))      // dict2
	buf.Write(reversedEntry(4096, 0b01))   // dict1
	buf.Write(reversedEntry(8192, 0b11))   // dict2, final (sentinel page size)

	entries, err := ReadLUT(&buf, 12, true)
	if err != nil {
		t.Fatalf("ReadLUT: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("len(entries) = %d, want 3", len(entries))
	}
	if entries[0].CompressedOffset != 0 || entries[0].DictionarySelector != 1 || entries[0].PageSize != 4096 {
		t.Fatalf("unexpected entry 0: %+v", entries[0])
	}
	if entries[1].CompressedOffset != 4096 || entries[1].DictionarySelector != 0 || entries[1].PageSize != 4096 {
		t.Fatalf("unexpected entry 1: %+v", entries[1])
	}
	if entries[2].CompressedOffset != 8192 || entries[2].PageSize != 0 {
		t.Fatalf("unexpected entry 2 (expected sentinel page size 0): %+v", entries[2])
	}
	for i := 1; i < len(entries); i++ {
		if entries[i].CompressedOffset <= entries[i-1].CompressedOffset {
			t.Fatalf("LUT monotonicity violated at %d: %+v", i, entries)
		}
	}
}

func TestReadLUTInvalidSelectorSkipped(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(reversedEntry(0, 0b11))
	buf.Write(reversedEntry(100, 0b00)) // invalid selector bits, skipped
	buf.Write(reversedEntry(200, 0b01))

	entries, err := ReadLUT(&buf, 12, true)
	if err != nil {
		t.Fatalf("ReadLUT: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("len(entries) = %d, want 2 (middle entry skipped): %+v", len(entries), entries)
	}
	if entries[0].CompressedOffset != 0 || entries[1].CompressedOffset != 200 {
		t.Fatalf("unexpected entries: %+v", entries)
	}
}

func TestReadLUTNonReversed(t *testing.T) {
	// Non-reversed: top bits live in r[0], offset assembled (r0&0x3F)<<24 | r1<<16 | r2<<8 | r3.
	entry := []byte{0b01_000000, 0x00, 0x10, 0x00} // selector 0, offset 0x001000
	entries, err := ReadLUT(bytes.NewReader(entry), 4, false)
	if err != nil {
		t.Fatalf("ReadLUT: %v", err)
	}
	if len(entries) != 1 || entries[0].DictionarySelector != 0 || entries[0].CompressedOffset != 0x1000 {
		t.Fatalf("unexpected entries: %+v", entries)
	}
}

func TestReadEmbeddedLUTSizing(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(reversedEntry(0, 0b11))
	buf.Write(reversedEntry(4096, 0b01))

	entries, err := ReadEmbeddedLUT(&buf, 2*huffmanPageSize)
	if err != nil {
		t.Fatalf("ReadEmbeddedLUT: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("len(entries) = %d, want 2", len(entries))
	}
}
