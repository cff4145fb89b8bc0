package cpimage

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func makeFPTHeader(numEntries uint32, headerVersion, entryVersion uint8) []byte {
	hdr := make([]byte, 10)
	copy(hdr[0:4], fptMagic[:])
	binary.LittleEndian.PutUint32(hdr[4:8], numEntries)
	hdr[8] = headerVersion
	hdr[9] = entryVersion
	return hdr
}

func TestFindFPT(t *testing.T) {
	buf := make([]byte, 0x30)
	copy(buf[0x10:], makeFPTHeader(13, 0x20, 0x10))

	hit, err := FindFPT(bytes.NewReader(buf), 0)
	if err != nil {
		t.Fatalf("FindFPT: %v", err)
	}
	if hit == nil {
		t.Fatal("expected a hit")
	}
	if hit.Offset != 0x10 || hit.NumEntries != 13 || hit.HeaderVersion != 0x20 || hit.EntryVersion != 0x10 {
		t.Fatalf("unexpected hit: %+v", hit)
	}
}

func TestFindFPTNotFound(t *testing.T) {
	buf := bytes.Repeat([]byte{0xAA}, 200)
	hit, err := FindFPT(bytes.NewReader(buf), 0)
	if err != nil {
		t.Fatalf("FindFPT: %v", err)
	}
	if hit != nil {
		t.Fatalf("expected no hit, got %+v", hit)
	}
}

func TestFindFPTAcrossChunkBoundary(t *testing.T) {
	buf := make([]byte, scanChunkSize+8)
	at := scanChunkSize - 2
	copy(buf[at:], makeFPTHeader(1, 1, 1))

	hit, err := FindFPT(bytes.NewReader(buf), 0)
	if err != nil {
		t.Fatalf("FindFPT: %v", err)
	}
	if hit == nil || hit.Offset != int64(at) {
		t.Fatalf("unexpected hit: %+v", hit)
	}
}

func TestFindAll(t *testing.T) {
	buf := make([]byte, 0x100)
	copy(buf[0x10:], makeFPTHeader(1, 1, 1))
	copy(buf[0x80:], makeFPTHeader(2, 2, 2))

	hits, err := FindAll(bytes.NewReader(buf), 0)
	if err != nil {
		t.Fatalf("FindAll: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("len(hits) = %d, want 2", len(hits))
	}
	if hits[0].Offset != 0x10 || hits[1].Offset != 0x80 {
		t.Fatalf("unexpected hits: %+v", hits)
	}
}
