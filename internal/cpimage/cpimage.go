// Package cpimage locates and parses the container structures of a CSME
// firmware image: the Firmware Partition Table (FPT), the Code Partition
// Directories (CPD) it points at, and the per-page Lookup Tables (LUT) that
// precede each Huffman-compressed code object's data.
//
// No integrity checks are performed beyond the structural ones spec.md
// calls for: a wrong offset anywhere in this chain yields garbage
// descriptors that only manifest as decode failures further downstream.
package cpimage

import (
	"errors"
	"strings"
	"unicode"
)

var fptMagic = [4]byte{'$', 'F', 'P', 'T'}

// Sentinel errors for the structural-mismatch failure class of spec.md §7.
var (
	ErrBadFPT           = errors.New("cpimage: not a valid FPT at the given offset")
	ErrNoCodePartitions = errors.New("cpimage: FPT contains no valid code partitions")
	ErrNoCodeObjects    = errors.New("cpimage: code partition directory contains no code objects")
)

// trimName strips whitespace and NUL padding from a fixed-width ASCII name
// field, the way both FPT entry names (4 bytes) and CPD entry names
// (12 bytes) are stored.
func trimName(b []byte) string {
	return strings.TrimFunc(string(b), func(r rune) bool {
		return r == 0 || unicode.IsSpace(r)
	})
}
