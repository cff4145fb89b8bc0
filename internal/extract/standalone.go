package extract

import (
	"bytes"
	"fmt"
	"io"

	"github.com/go-csme/unpack/internal/cpimage"
	"github.com/go-csme/unpack/internal/huffcode"
)

// DecodeStandalone decodes a compressed blob given only a standalone LUT
// file and the matching data file, with no FPT/CPD container at all. This
// mirrors the original tool's single-file mode, where a LUT produced
// alongside a "standalone" binary is the only container structure present.
//
// lutFile is read in full (standalone LUTs use non-reversed byte order and
// span the whole file); data must support random access to each page in
// turn, since pages are not necessarily read in a single pass.
func DecodeStandalone(cb *huffcode.Codebook, lutFile io.Reader, lutByteCount int, data io.ReaderAt) ([]byte, error) {
	lut, err := cpimage.ReadStandaloneLUT(lutFile, lutByteCount)
	if err != nil {
		return nil, fmt.Errorf("extract: reading standalone LUT: %w", err)
	}

	decoder := huffcode.NewPageDecoder(cb)
	out := make([]byte, 0, len(lut)*huffcode.PageMax)

	for i, entry := range lut {
		sizeBound := entry.PageSize
		if sizeBound == 0 {
			sizeBound = huffcode.PageMax
		}
		pageSrc := io.NewSectionReader(data, int64(entry.CompressedOffset), int64(sizeBound))

		var pageBuf bytes.Buffer
		_, decErr := decoder.Decode(pageSrc, entry.PageSize, entry.DictionarySelector, &pageBuf)
		out = append(out, pageBuf.Bytes()...)
		if decErr != nil {
			return out, fmt.Errorf("extract: decoding standalone page %d/%d: %w", i+1, len(lut), decErr)
		}
	}
	return out, nil
}
