package cpimage

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func makeFPTEntry(name string, cdtOffset, cdtSize uint32, flags uint32) []byte {
	e := make([]byte, fptEntrySize)
	copy(e[0:4], name)
	binary.LittleEndian.PutUint32(e[8:12], cdtOffset)
	binary.LittleEndian.PutUint32(e[12:16], cdtSize)
	binary.LittleEndian.PutUint32(e[28:32], flags)
	return e
}

func TestReadPartitions(t *testing.T) {
	const fptOffset = 0x10
	buf := make([]byte, fptOffset+fptHeaderSize+3*fptEntrySize)
	copy(buf[fptOffset:], makeFPTHeader(3, 0x20, 0x10))

	entriesStart := fptOffset + fptHeaderSize
	copy(buf[entriesStart:], makeFPTEntry("FTPR", 4096, 1241088, 0))
	copy(buf[entriesStart+fptEntrySize:], makeFPTEntry("DATA", 0, 0, 1)) // type != 0, dropped
	copy(buf[entriesStart+2*fptEntrySize:], makeFPTEntry("BAD1", 0, 0, 0xFF000000)) // invalid, dropped

	parts, err := ReadPartitions(bytes.NewReader(buf), fptOffset)
	if err != nil {
		t.Fatalf("ReadPartitions: %v", err)
	}
	if len(parts) != 1 {
		t.Fatalf("len(parts) = %d, want 1: %+v", len(parts), parts)
	}
	if parts[0].Name != "FTPR" || parts[0].OffsetOfCDTHeader != 4096 || parts[0].Size != 1241088 {
		t.Fatalf("unexpected partition: %+v", parts[0])
	}
}

func TestReadPartitionsBadMagic(t *testing.T) {
	buf := make([]byte, fptHeaderSize)
	_, err := ReadPartitions(bytes.NewReader(buf), 0)
	if err != ErrBadFPT {
		t.Fatalf("err = %v, want ErrBadFPT", err)
	}
}

func TestReadPartitionsNoneValid(t *testing.T) {
	buf := make([]byte, fptHeaderSize+fptEntrySize)
	copy(buf[0:], makeFPTHeader(1, 0, 0))
	copy(buf[fptHeaderSize:], makeFPTEntry("NONE", 0, 0, 1))

	_, err := ReadPartitions(bytes.NewReader(buf), 0)
	if err != ErrNoCodePartitions {
		t.Fatalf("err = %v, want ErrNoCodePartitions", err)
	}
}
