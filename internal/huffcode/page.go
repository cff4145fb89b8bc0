package huffcode

import (
	"errors"
	"fmt"
	"io"
)

// PageMax is the fixed uncompressed size of a CSME Huffman page. Decoding
// always stops once this many bytes have been emitted, even mid-code.
const PageMax = 4096

// ErrNoMatchingCode is returned when no candidate bit length between
// MinBits and MaxBits of the codebook matches the bits at the front of the
// register, while input remains in the page. It is fatal for the page: the
// caller receives the bytes decoded so far alongside the error.
var ErrNoMatchingCode = errors.New("huffcode: no matching code for current bit pattern")

// errEmptyCodebook guards against decoding with a zero-value Codebook.
var errEmptyCodebook = errors.New("huffcode: codebook has no entries")

// PageDecoder consumes one compressed page through a bit shift-register and
// a shared, immutable Codebook, emitting up to PageMax decoded bytes.
type PageDecoder struct {
	cb *Codebook
}

// NewPageDecoder builds a decoder bound to cb. cb is read-only from this
// point on and may be shared by multiple PageDecoders decoding disjoint
// pages concurrently.
func NewPageDecoder(cb *Codebook) *PageDecoder {
	return &PageDecoder{cb: cb}
}

// Decode reads one compressed page from src (already positioned at the
// page's first byte) and writes its decoded bytes to dst.
//
// pageSize is the compressed byte length of the page as recorded by the
// LUT entry; 0 is the final-entry sentinel and is treated as PageMax
// compressed bytes available, relying on the PageMax output cap to
// terminate decoding (see the end-of-page decision in DESIGN.md).
// dictSelector chooses which of the codebook's two parallel dictionaries
// (0 or 1) each matched code emits.
//
// It returns the number of bytes written. A codebook with no entries is
// rejected up front. Any other non-nil error besides ErrNoMatchingCode
// indicates the input page ended before pageSize bytes (PageMax for the
// sentinel) could be read (a truncated/structural input). On ErrNoMatchingCode the
// bytes decoded up to the failing code are still written to dst; the
// caller decides whether to keep or discard that partial output.
func (d *PageDecoder) Decode(src io.Reader, pageSize int, dictSelector int, dst io.Writer) (int, error) {
	if d.cb == nil || d.cb.MaxBits() == 0 || d.cb.MinBits() == 0 {
		return 0, errEmptyCodebook
	}

	effSize := pageSize
	if effSize == 0 {
		effSize = PageMax
	}

	readPos := 0
	readPage := func(want int) ([]byte, error) {
		want = min(want, effSize-readPos)
		if want <= 0 {
			return nil, nil
		}
		buf := make([]byte, want)
		n, err := io.ReadFull(src, buf)
		readPos += n
		if err != nil {
			return buf[:n], fmt.Errorf("huffcode: reading compressed page: %w", err)
		}
		return buf, nil
	}

	reg := &bitShiftRegister{}
	bytesForLongest := (d.cb.MaxBits() + 7) / 8
	topoffBits := d.cb.MaxBits() * 10
	topoffBytes := (topoffBits + 7) / 8

	initial, err := readPage(bytesForLongest)
	if err != nil {
		return 0, err
	}
	reg.append(initial)

	out := make([]byte, 0, PageMax)
	written := 0

	match := func() (entry, int, bool) {
		longest := min(d.cb.MaxBits(), reg.len())
		for k := longest; k >= d.cb.MinBits(); k-- {
			if e, ok := d.cb.lookup(reg.peek(k), k); ok {
				return e, k, true
			}
		}
		return entry{}, 0, false
	}

	emit := func(e entry) {
		if dictSelector == 1 {
			out = append(out, e.dict2...)
			written += len(e.dict2)
		} else {
			out = append(out, e.dict1...)
			written += len(e.dict1)
		}
	}

	for readPos < effSize {
		e, k, ok := match()
		if !ok {
			dst.Write(out)
			return written, ErrNoMatchingCode
		}
		emit(e)
		reg.discard(k)
		if written >= PageMax {
			dst.Write(out)
			return written, nil
		}
		if reg.len() < d.cb.MaxBits() {
			more, err := readPage(topoffBytes)
			if err != nil {
				dst.Write(out)
				return written, err
			}
			reg.append(more)
		}
	}

	// Tail: input exhausted, keep matching whatever bits remain. A miss
	// here is trailing junk/padding, not an error.
	for reg.len() >= d.cb.MinBits() {
		e, k, ok := match()
		if !ok {
			break
		}
		emit(e)
		reg.discard(k)
		if written >= PageMax {
			break
		}
	}

	dst.Write(out)
	return written, nil
}
