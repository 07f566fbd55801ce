// Package huffman implements the 16-bit canonical Huffman codec used by
// the PIZ compression method: run-length-encoded code-length tables,
// canonical code assignment, and a two-tier decode table keyed by the
// leading bits of the bitstream. It interacts with the rest of the block
// pipeline only through Encode/Decode's byte-in/byte-out contract, so it
// can be exercised and tested independently of PIZ's wavelet stage (which
// is out of scope here).
package huffman

import (
	"encoding/binary"
	"errors"

	"github.com/mandeep/goexr/internal/bitio"
)

const (
	// EncodeBits is the bit width of a literal symbol value.
	EncodeBits = 16
	// DecodeBits is the width of the two-tier decode table's root index.
	DecodeBits = 14
	// EncodeSize is the alphabet size: every 16-bit value plus one
	// pseudo-symbol reserved for run-length encoding.
	EncodeSize = (1 << EncodeBits) + 1
	// MaxCodeLength is the longest canonical code this codec will ever
	// produce or accept.
	MaxCodeLength = 58

	// ShortZeroCodeRun and LongZeroCodeRun are the two run-length escapes
	// used when packing a code-length table: any 6-bit table value in
	// [ShortZeroCodeRun, LongZeroCodeRun) encodes a short run of
	// zero-length symbols; LongZeroCodeRun itself is followed by an 8-bit
	// count for longer runs.
	ShortZeroCodeRun = 59
	LongZeroCodeRun  = 63
	// ShortestLongRun is the shortest run representable via
	// LongZeroCodeRun (shorter runs always fit in the short-run escape).
	ShortestLongRun = 2 + LongZeroCodeRun - ShortZeroCodeRun
	// LongestLongRun is the longest run representable via
	// LongZeroCodeRun's 8-bit count field.
	LongestLongRun = 255 + ShortestLongRun
)

// Errors returned by Encode/Decode. All are data-invalid errors: malformed
// tables, truncated input, or decode overruns never panic.
var (
	ErrShortHeader   = errors.New("huffman: input shorter than 20-byte header")
	ErrTableRange    = errors.New("huffman: iMin/iMax out of range")
	ErrTruncated     = errors.New("huffman: truncated table or symbol stream")
	ErrBadRun        = errors.New("huffman: zero-run overruns table range")
	ErrOverrun       = errors.New("huffman: decode overran the symbol stream")
	ErrCodeTooLong   = errors.New("huffman: canonical code exceeds MaxCodeLength")
	ErrEmptyAlphabet = errors.New("huffman: no symbols to encode")
	ErrBadTable      = errors.New("huffman: code lengths do not form a valid prefix code")
)

// chunkHeaderSize is the fixed 20-byte wire header preceding every
// Huffman-compressed chunk body.
const chunkHeaderSize = 20

type chunkHeader struct {
	iMin, iMax, tableLength, nBits, room uint32
}

func (h chunkHeader) encode() []byte {
	buf := make([]byte, chunkHeaderSize)
	binary.LittleEndian.PutUint32(buf[0:4], h.iMin)
	binary.LittleEndian.PutUint32(buf[4:8], h.iMax)
	binary.LittleEndian.PutUint32(buf[8:12], h.tableLength)
	binary.LittleEndian.PutUint32(buf[12:16], h.nBits)
	binary.LittleEndian.PutUint32(buf[16:20], h.room)
	return buf
}

func decodeChunkHeader(buf []byte) chunkHeader {
	return chunkHeader{
		iMin:        binary.LittleEndian.Uint32(buf[0:4]),
		iMax:        binary.LittleEndian.Uint32(buf[4:8]),
		tableLength: binary.LittleEndian.Uint32(buf[8:12]),
		nBits:       binary.LittleEndian.Uint32(buf[12:16]),
		room:        binary.LittleEndian.Uint32(buf[16:20]),
	}
}

// code packs a canonical code length (low 6 bits) and code value (upper
// bits) into a single encoding-table slot.
type code uint64

func packCode(length int, value uint64) code { return code(uint64(length)&63 | value<<6) }
func (c code) length() int                   { return int(c & 63) }
func (c code) value() uint64                 { return uint64(c) >> 6 }

// Encode builds a canonical Huffman encoding of symbols and returns the
// complete wire chunk (20-byte header, packed code-length table, packed
// symbol stream). An empty input encodes to an empty output.
func Encode(symbols []uint16) ([]byte, error) {
	if len(symbols) == 0 {
		return nil, nil
	}

	freq := make([]uint64, EncodeSize)
	for _, s := range symbols {
		freq[s]++
	}

	iMin, iMax := -1, -1
	for i, f := range freq {
		if f > 0 {
			if iMin == -1 {
				iMin = i
			}
			iMax = i
		}
	}
	if iMin == -1 {
		return nil, ErrEmptyAlphabet
	}

	// Reserve a pseudo-symbol one past the real alphabet for the
	// run-length escape used by encodeSymbols/decodeSymbols.
	runSymbol := iMax + 1
	freq[runSymbol] = 1

	lengths, err := buildCodeLengths(freq, iMin, runSymbol)
	if err != nil {
		return nil, err
	}
	codes := canonicalCodes(lengths)

	tableBytes := packTable(lengths, iMin, runSymbol)

	symWriter := bitio.NewWriter(len(symbols) * 2)
	encodeSymbols(symWriter, symbols, codes, iMin, runSymbol)
	nBits := symWriter.NumBits()
	symBytes := symWriter.Bytes()

	hdr := chunkHeader{
		iMin:        uint32(iMin),
		iMax:        uint32(runSymbol),
		tableLength: uint32(len(tableBytes)),
		nBits:       uint32(nBits),
	}

	out := make([]byte, 0, chunkHeaderSize+len(tableBytes)+len(symBytes))
	out = append(out, hdr.encode()...)
	out = append(out, tableBytes...)
	out = append(out, symBytes...)
	return out, nil
}

// Decode reverses Encode, writing exactly len(result) symbols into result.
// A compressed input shorter than the 20-byte header is a no-op when
// result is empty, and an error otherwise.
func Decode(compressed []byte, result []uint16) error {
	if len(compressed) < chunkHeaderSize {
		if len(result) == 0 {
			return nil
		}
		return ErrShortHeader
	}

	hdr := decodeChunkHeader(compressed)
	iMin, iMax := int(hdr.iMin), int(hdr.iMax)
	if iMin < 0 || iMax <= iMin || iMax >= EncodeSize {
		return ErrTableRange
	}

	body := compressed[chunkHeaderSize:]
	if uint32(len(body)) < hdr.tableLength {
		return ErrTruncated
	}
	tableBytes := body[:hdr.tableLength]
	symBody := body[hdr.tableLength:]

	if uint64(hdr.nBits) > 8*uint64(len(symBody)) {
		return ErrTruncated
	}
	symBytes := symBody[:(hdr.nBits+7)/8]

	lengths, err := unpackTable(tableBytes, iMin, iMax)
	if err != nil {
		return err
	}
	codes := canonicalCodes(lengths)
	for i, c := range codes {
		if lengths[i] > 0 && c.value()>>uint(c.length()) != 0 {
			return ErrBadTable
		}
	}

	table := buildDecodeTable(lengths, codes, iMin, iMax)
	return decodeSymbols(symBytes, int(hdr.nBits), table, iMax, result)
}
