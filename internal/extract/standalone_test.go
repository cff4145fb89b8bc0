package extract

import (
	"bytes"
	"strings"
	"testing"

	"github.com/go-csme/unpack/internal/huffcode"
)

func TestDecodeStandalone(t *testing.T) {
	cb, err := huffcode.LoadTable(strings.NewReader(testTable))
	if err != nil {
		t.Fatalf("LoadTable: %v", err)
	}

	// Non-reversed standalone LUT: one entry, selector 0b01 (dict1), offset 0.
	// Its page_size stays the sentinel 0 (no following entry), so the
	// decoder treats it as a full PageMax-byte compressed page; providing
	// exactly PageMax bytes of valid code lets decoding finish by hitting
	// the output cap rather than running out of input mid-refill.
	var lutBuf bytes.Buffer
	lutBuf.Write([]byte{0b01_000000, 0x00, 0x00, 0x00})

	data := bytes.Repeat([]byte{0x01}, huffcode.PageMax) // all code 0x01 -> 'B'

	out, err := DecodeStandalone(cb, &lutBuf, 4, bytes.NewReader(data))
	if err != nil {
		t.Fatalf("DecodeStandalone: %v", err)
	}
	if string(out) != strings.Repeat("B", huffcode.PageMax) {
		t.Fatalf("got %d bytes, want %d B's", len(out), huffcode.PageMax)
	}
}
