package cpimage

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// FPTHit is one `$FPT` magic occurrence found in an image, with the fields
// of its 10-byte prefix decoded.
type FPTHit struct {
	Offset        int64
	NumEntries    uint32
	HeaderVersion uint8
	EntryVersion  uint8
}

const scanChunkSize = 1 << 16

// FindFPT scans r for the first `$FPT` magic at or after begin, matching at
// any byte offset (the magic is not required to be aligned to any
// boundary). It returns nil, nil if no occurrence is found before EOF.
func FindFPT(r io.ReaderAt, begin int64) (*FPTHit, error) {
	var carry []byte
	pos := begin
	buf := make([]byte, scanChunkSize)

	for {
		n, rerr := r.ReadAt(buf, pos)
		if n <= 0 {
			if rerr != nil && rerr != io.EOF {
				return nil, fmt.Errorf("cpimage: scanning for FPT magic: %w", rerr)
			}
			return nil, nil
		}

		window := append(carry, buf[:n]...)
		if idx := bytes.Index(window, fptMagic[:]); idx >= 0 {
			hitOffset := pos - int64(len(carry)) + int64(idx)
			return readFPTHit(r, hitOffset)
		}

		if len(window) >= len(fptMagic)-1 {
			carry = append(carry[:0], window[len(window)-(len(fptMagic)-1):]...)
		} else {
			carry = append(carry[:0], window...)
		}
		pos += int64(n)

		if rerr == io.EOF {
			return nil, nil
		}
	}
}

// FindAll returns every `$FPT` occurrence at or after begin, in ascending
// offset order. Multi-FPT images arise from recovery/backup firmware
// regions living alongside the primary one.
func FindAll(r io.ReaderAt, begin int64) ([]FPTHit, error) {
	var hits []FPTHit
	next := begin
	for {
		hit, err := FindFPT(r, next)
		if err != nil {
			return hits, err
		}
		if hit == nil {
			return hits, nil
		}
		hits = append(hits, *hit)
		next = hit.Offset + 1
	}
}

func readFPTHit(r io.ReaderAt, offset int64) (*FPTHit, error) {
	var hdr [10]byte
	if _, err := r.ReadAt(hdr[:], offset); err != nil {
		return nil, fmt.Errorf("cpimage: reading FPT magic hit at %d: %w", offset, err)
	}
	return &FPTHit{
		Offset:        offset,
		NumEntries:    binary.LittleEndian.Uint32(hdr[4:8]),
		HeaderVersion: hdr[8],
		EntryVersion:  hdr[9],
	}, nil
}
