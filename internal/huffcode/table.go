// Package huffcode implements the CSME dual-dictionary Huffman code table and
// the page-level decode loop that consumes it.
//
// The word "dictionary" here never means a key/value mapping: it names one of
// the two parallel emission tables attached to each code. We spell that out
// as dict1/dict2 throughout to keep it from colliding with Go's own map type.
package huffcode

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math/big"
	"strconv"
	"strings"
)

// ErrEmptyTable is returned by LoadTable when no line in the input could be
// parsed as a table row.
var ErrEmptyTable = errors.New("huffcode: table contained no parseable rows")

// entry is one row of the loaded table: a Huffman code of entry.bits bits,
// and the two same-length byte sequences it can decode to.
type entry struct {
	dict1, dict2 []byte
	bits         int
	decodedLen   int
}

// Codebook is an immutable, prefix-free Huffman code table. Build it once
// with LoadTable and share it read-only; lookup does not mutate any state.
type Codebook struct {
	// byBits is indexed by code length in bits; byBits[n] holds every code
	// of exactly n bits. A per-length map means a lookup at length n never
	// probes entries of a different length, matching the prefix-first-match
	// order the page decoder relies on.
	byBits  []map[uint32]entry
	minBits int
	maxBits int
	count   int
}

// LoadTable parses the whitespace-separated, line-oriented textual code
// table: dict1_hex ref1 dict2_hex ref2 length_decimal depth_decimal code_bits.
// Lines that don't parse as seven well-formed fields (headers, comments,
// blank lines) are silently skipped, matching the source format's lack of a
// comment marker.
func LoadTable(r io.Reader) (*Codebook, error) {
	cb := &Codebook{}
	sc := bufio.NewScanner(r)
	// table lines are short; the default scanner buffer is already generous,
	// but a future table with longer dict hex columns shouldn't truncate.
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		cb.addLine(sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("huffcode: reading table: %w", err)
	}
	if cb.count == 0 {
		return nil, ErrEmptyTable
	}
	return cb, nil
}

func (cb *Codebook) addLine(line string) {
	fields := strings.Fields(line)
	if len(fields) < 7 {
		return
	}
	dict1Int, ok1 := new(big.Int).SetString(fields[0], 16)
	dict2Int, ok2 := new(big.Int).SetString(fields[2], 16)
	length, lenErr := strconv.Atoi(fields[4])
	depth, depthErr := strconv.Atoi(fields[5])
	code := fields[6]
	if !ok1 || !ok2 || lenErr != nil || depthErr != nil || length <= 0 || depth <= 0 || len(code) != depth {
		return
	}
	bits, err := strconv.ParseUint(code, 2, 32)
	if err != nil {
		return
	}

	e := entry{
		// FillBytes writes big-endian, left-padded with zeros: the literal
		// table value, independent of host endianness.
		dict1:      dict1Int.FillBytes(make([]byte, length)),
		dict2:      dict2Int.FillBytes(make([]byte, length)),
		bits:       depth,
		decodedLen: length,
	}
	cb.insert(uint32(bits), e)
}

func (cb *Codebook) insert(bits uint32, e entry) {
	for len(cb.byBits) <= e.bits {
		cb.byBits = append(cb.byBits, nil)
	}
	m := cb.byBits[e.bits]
	if m == nil {
		m = make(map[uint32]entry)
		cb.byBits[e.bits] = m
	}
	// Insertion overwrites any prior entry for the same bit pattern: tables
	// are assumed prefix-free, duplicates are a malformed-table signal but
	// not fatal.
	if _, dup := m[bits]; !dup {
		cb.count++
	}
	m[bits] = e

	if cb.minBits == 0 || e.bits < cb.minBits {
		cb.minBits = e.bits
	}
	if e.bits > cb.maxBits {
		cb.maxBits = e.bits
	}
}

// lookup returns the entry whose code is the `length`-bit pattern bits, if
// any. bits is used as the key unmasked, so it must not have bits set above
// position length.
func (cb *Codebook) lookup(bits uint32, length int) (entry, bool) {
	if length <= 0 || length >= len(cb.byBits) {
		return entry{}, false
	}
	m := cb.byBits[length]
	if m == nil {
		return entry{}, false
	}
	e, ok := m[bits]
	return e, ok
}

// MinBits is the shortest code length (in bits) present in the table.
func (cb *Codebook) MinBits() int { return cb.minBits }

// MaxBits is the longest code length (in bits) present in the table.
func (cb *Codebook) MaxBits() int { return cb.maxBits }

// Len is the number of distinct bit patterns loaded.
func (cb *Codebook) Len() int { return cb.count }

// global holds the process-wide table used by callers that don't want to
// thread a *Codebook through every call. It is never mutated except through
// LoadGlobal/ClearGlobal, so concurrent read-only use is safe once loaded.
var global *Codebook

// LoadGlobal loads r into the process-wide table, replacing whatever was
// there before.
func LoadGlobal(r io.Reader) error {
	cb, err := LoadTable(r)
	if err != nil {
		return err
	}
	global = cb
	return nil
}

// Global returns the process-wide table, or nil if none has been loaded.
func Global() *Codebook { return global }

// ClearGlobal resets the process-wide table. It exists purely so tests can
// isolate themselves from table state left behind by an earlier test.
func ClearGlobal() { global = nil }
