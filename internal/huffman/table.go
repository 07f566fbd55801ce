package huffman

import "github.com/mandeep/goexr/internal/bitio"

// canonicalCodes assigns canonical codes to a set of code lengths: codes
// of the same length are consecutive integers, and a shorter code is
// never a prefix of a longer one. This is a two-pass sweep over
// a per-length counter table — first a reverse pass computing the first
// code of each length, then a forward pass handing out consecutive codes
// to the symbols of each length in index order.
func canonicalCodes(lengths []uint8) []code {
	var n [MaxCodeLength + 1]uint64
	for _, l := range lengths {
		if l > 0 {
			n[l]++
		}
	}

	c := uint64(0)
	for l := MaxCodeLength; l >= 1; l-- {
		nc := (c + n[l]) >> 1
		n[l] = c
		c = nc
	}

	codes := make([]code, len(lengths))
	for i, l := range lengths {
		if l == 0 {
			continue
		}
		codes[i] = packCode(int(l), n[l])
		n[l]++
	}
	return codes
}

// packTable serializes lengths (indexed 0..iMax-iMin, for symbols
// iMin..iMax) as a sequence of 6-bit values, run-length-encoding runs of
// unused (zero-length) symbols with the Short/LongZeroCodeRun escapes.
func packTable(lengths []uint8, iMin, iMax int) []byte {
	w := bitio.NewWriter(len(lengths))
	n := len(lengths)

	for j := 0; j < n; {
		if lengths[j] != 0 {
			w.WriteBits(uint64(lengths[j]), 6)
			j++
			continue
		}

		run := 1
		for j+run < n && lengths[j+run] == 0 && run < LongestLongRun {
			run++
		}

		switch {
		case run < ShortestLongRun:
			// run is 1..ShortestLongRun-1; a lone zero is its own
			// literal, runs of 2..ShortestLongRun-1 use the short escape.
			if run == 1 {
				w.WriteBits(0, 6)
				j++
				continue
			}
			w.WriteBits(uint64(ShortZeroCodeRun+run-2), 6)
		default:
			w.WriteBits(uint64(LongZeroCodeRun), 6)
			w.WriteBits(uint64(run-ShortestLongRun), 8)
		}
		j += run
	}

	return w.Bytes()
}

// unpackTable reverses packTable, reconstructing the per-symbol code
// lengths for iMin..iMax.
func unpackTable(data []byte, iMin, iMax int) ([]uint8, error) {
	n := iMax - iMin + 1
	lengths := make([]uint8, n)
	r := bitio.NewReader(data)

	j := 0
	for j < n {
		v, err := r.ReadBits(6)
		if err != nil {
			return nil, ErrTruncated
		}

		switch {
		case v >= ShortZeroCodeRun && v < LongZeroCodeRun:
			run := int(v) - ShortZeroCodeRun + 2
			if j+run > n {
				return nil, ErrBadRun
			}
			j += run
		case v == LongZeroCodeRun:
			count, err := r.ReadBits(8)
			if err != nil {
				return nil, ErrTruncated
			}
			run := int(count) + ShortestLongRun
			if j+run > n {
				return nil, ErrBadRun
			}
			j += run
		default:
			lengths[j] = uint8(v)
			j++
		}
	}
	return lengths, nil
}

// decodeEntry is one slot of the decode table's root index.
type decodeEntry struct {
	length int // 0: unused slot; -1: consult long; >0: short code length
	symbol int
}

type longCode struct {
	value  uint64
	length int
	symbol int
}

// decodeTable is the two-tier lookup structure used by decodeSymbols:
// codes of at most DecodeBits bits resolve in one slot lookup; longer
// codes share a slot keyed by their leading DecodeBits and are
// disambiguated by a short linear scan.
type decodeTable struct {
	short []decodeEntry
	long  map[int][]longCode
}

func buildDecodeTable(lengths []uint8, codes []code, iMin, iMax int) *decodeTable {
	t := &decodeTable{short: make([]decodeEntry, 1<<DecodeBits)}

	for i, l := range lengths {
		if l == 0 {
			continue
		}
		sym := iMin + i
		c := codes[i]
		length := c.length()
		value := c.value()

		if length <= DecodeBits {
			shift := uint(DecodeBits - length)
			prefix := int(value << shift)
			for k := 0; k < 1<<shift; k++ {
				t.short[prefix+k] = decodeEntry{length: length, symbol: sym}
			}
			continue
		}

		top := int(value >> uint(length-DecodeBits))
		if t.long == nil {
			t.long = make(map[int][]longCode)
		}
		t.long[top] = append(t.long[top], longCode{value: value, length: length, symbol: sym})
		t.short[top] = decodeEntry{length: -1}
	}
	return t
}

// lookup decodes exactly one symbol from r using t. The peek is
// zero-padded so the table stays usable at the stream tail, where fewer
// bits remain than the fixed prefix width; a matched code longer than the
// real remaining bits is a truncated stream.
func (t *decodeTable) lookup(r *bitio.Reader) (int, error) {
	prefix, avail := r.PeekBitsPadded(DecodeBits)
	if avail == 0 {
		return 0, ErrOverrun
	}
	entry := t.short[prefix]

	if entry.length > 0 {
		if entry.length > avail {
			return 0, ErrOverrun
		}
		if err := r.SkipBits(entry.length); err != nil {
			return 0, err
		}
		return entry.symbol, nil
	}

	if entry.length < 0 {
		for _, cand := range t.long[int(prefix)] {
			bits, candAvail := r.PeekBitsPadded(cand.length)
			if bits == cand.value && cand.length <= candAvail {
				if err := r.SkipBits(cand.length); err != nil {
					return 0, err
				}
				return cand.symbol, nil
			}
		}
	}

	return 0, ErrOverrun
}

const (
	minRunLength = 3
	maxRunLength = 258 // minRunLength + 255, the largest 8-bit count can express
)

// encodeSymbols writes symbols to w using codes, collapsing runs of three
// or more identical consecutive symbols into one literal code followed by
// the run pseudo-symbol and an 8-bit repeat count.
func encodeSymbols(w *bitio.Writer, symbols []uint16, codes []code, iMin, runSymbol int) {
	i := 0
	for i < len(symbols) {
		s := symbols[i]
		run := 1
		for i+run < len(symbols) && symbols[i+run] == s && run < maxRunLength {
			run++
		}

		c := codes[int(s)-iMin]
		w.WriteBits(c.value(), c.length())

		if run >= minRunLength {
			rc := codes[runSymbol-iMin]
			w.WriteBits(rc.value(), rc.length())
			w.WriteBits(uint64(run-minRunLength), 8)
		} else {
			for k := 1; k < run; k++ {
				w.WriteBits(c.value(), c.length())
			}
		}
		i += run
	}
}

// decodeSymbols reverses encodeSymbols, filling result with exactly
// len(result) decoded symbols.
func decodeSymbols(symBytes []byte, nBits int, table *decodeTable, runSymbol int, result []uint16) error {
	r := bitio.NewReader(symBytes)
	out := 0
	var prev uint16

	for out < len(result) {
		sym, err := table.lookup(r)
		if err != nil {
			return ErrOverrun
		}

		if sym == runSymbol {
			count, err := r.ReadBits(8)
			if err != nil {
				return ErrOverrun
			}
			run := int(count) + minRunLength - 1 // one copy already emitted before the escape
			if out+run > len(result) {
				return ErrOverrun
			}
			for k := 0; k < run; k++ {
				result[out] = prev
				out++
			}
			continue
		}

		result[out] = uint16(sym)
		prev = uint16(sym)
		out++
	}
	return nil
}
