package huffman

import (
	"math/rand"
	"testing"
)

func roundTrip(t *testing.T, symbols []uint16) {
	t.Helper()
	compressed, err := Encode(symbols)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	got := make([]uint16, len(symbols))
	if err := Decode(compressed, got); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	for i := range symbols {
		if got[i] != symbols[i] {
			t.Fatalf("mismatch at %d: want %d got %d", i, symbols[i], got[i])
		}
	}
}

func TestRoundTripEmpty(t *testing.T) {
	compressed, err := Encode(nil)
	if err != nil || len(compressed) != 0 {
		t.Fatalf("Encode(nil) = %v, %v; want empty, nil", compressed, err)
	}
	if err := Decode(compressed, nil); err != nil {
		t.Fatalf("Decode of empty input with empty result: %v", err)
	}
}

func TestRoundTripSingleSymbol(t *testing.T) {
	roundTrip(t, []uint16{42, 42, 42, 42, 42})
}

func TestRoundTripSmallAlphabet(t *testing.T) {
	roundTrip(t, []uint16{1, 2, 3, 1, 2, 1, 1, 1, 3, 2})
}

func TestRoundTripLongRun(t *testing.T) {
	symbols := make([]uint16, 1000)
	for i := range symbols {
		symbols[i] = 7
	}
	roundTrip(t, symbols)
}

// TestRoundTripSparseAlphabet exercises the long-zero-run table escape: a
// wide gap of unused symbol values between the two values actually used
// forces packTable to emit a LongZeroCodeRun entry.
func TestRoundTripSparseAlphabet(t *testing.T) {
	symbols := make([]uint16, 0, 40)
	for i := 0; i < 20; i++ {
		symbols = append(symbols, 10)
	}
	for i := 0; i < 20; i++ {
		symbols = append(symbols, 10000)
	}
	roundTrip(t, symbols)
}

func TestRoundTripRandom(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	symbols := make([]uint16, 5000)
	for i := range symbols {
		symbols[i] = uint16(rng.Intn(300))
	}
	roundTrip(t, symbols)
}

func TestRoundTripWideAlphabet(t *testing.T) {
	// Exercises an iMin/iMax span covering almost the entire 16-bit range
	// without requiring every one of the 65536 possible values present.
	symbols := make([]uint16, 0, 4096)
	for v := 0; v < 2048; v++ {
		symbols = append(symbols, uint16(v*32), uint16(v*32))
	}
	roundTrip(t, symbols)
}

func TestPackUnpackTableZeroRuns(t *testing.T) {
	lengths := make([]uint8, 300)
	lengths[0] = 5
	lengths[299] = 3
	// lengths[1..298] all zero: a run far longer than ShortestLongRun,
	// forcing the LongZeroCodeRun escape.
	packed := packTable(lengths, 0, 299)
	unpacked, err := unpackTable(packed, 0, 299)
	if err != nil {
		t.Fatalf("unpackTable: %v", err)
	}
	for i := range lengths {
		if unpacked[i] != lengths[i] {
			t.Fatalf("index %d: want %d got %d", i, lengths[i], unpacked[i])
		}
	}
}

func TestDecodeShortInputNoOp(t *testing.T) {
	if err := Decode([]byte{1, 2, 3}, nil); err != nil {
		t.Fatalf("short input with empty result should be a no-op: %v", err)
	}
	if err := Decode([]byte{1, 2, 3}, make([]uint16, 1)); err == nil {
		t.Fatalf("short input with non-empty result should error")
	}
}

func TestCanonicalCodesNoPrefixCollision(t *testing.T) {
	lengths := []uint8{2, 2, 3, 3, 3, 3}
	codes := canonicalCodes(lengths)
	seen := map[uint64]bool{}
	for _, c := range codes {
		l := c.length()
		v := c.value()
		// left-justify to MaxCodeLength bits so prefixes compare directly
		key := v << uint(MaxCodeLength-l)
		seen[key] = true
	}
	if len(seen) != len(lengths) {
		t.Fatalf("expected %d distinct left-justified codes, got %d", len(lengths), len(seen))
	}
}

// TestEncodeRunOfZeros: a stream of identical symbols must collapse to a
// single literal plus the run escape, and the header's nBits field must
// agree exactly with the emitted symbol-stream length.
func TestEncodeRunOfZeros(t *testing.T) {
	symbols := []uint16{0, 0, 0, 0, 0, 0, 0, 0}
	compressed, err := Encode(symbols)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(compressed) < chunkHeaderSize {
		t.Fatalf("compressed output shorter than its header: %d bytes", len(compressed))
	}

	hdr := decodeChunkHeader(compressed)
	body := compressed[chunkHeaderSize+int(hdr.tableLength):]
	if want := (int(hdr.nBits) + 7) / 8; len(body) != want {
		t.Fatalf("nBits %d implies %d body bytes, got %d", hdr.nBits, want, len(body))
	}
	// One literal code, one run escape code, one 8-bit count: with both
	// codes one bit long that is 10 bits.
	if hdr.nBits != 10 {
		t.Fatalf("expected 10 symbol-stream bits, got %d", hdr.nBits)
	}

	got := make([]uint16, len(symbols))
	if err := Decode(compressed, got); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	for i, s := range got {
		if s != 0 {
			t.Fatalf("symbol %d: want 0 got %d", i, s)
		}
	}
}

// TestCanonicalCodeOrdering: left-justified to a common width, a shorter
// code must always compare numerically greater than any longer code.
func TestCanonicalCodeOrdering(t *testing.T) {
	lengths := []uint8{1, 3, 3, 4, 4, 4, 4}
	codes := canonicalCodes(lengths)
	for i, ci := range codes {
		for j, cj := range codes {
			li, lj := ci.length(), cj.length()
			if li == 0 || lj == 0 || li >= lj {
				continue
			}
			vi := ci.value() << uint(MaxCodeLength-li)
			vj := cj.value() << uint(MaxCodeLength-lj)
			if vi <= vj {
				t.Fatalf("code %d (len %d) not above code %d (len %d): %x vs %x", i, li, j, lj, vi, vj)
			}
		}
	}
}

// TestDecodeTailShorterThanPrefix: a valid stream whose final codes leave
// fewer live bits than the decode table's fixed prefix width must still
// decode; the zero padding of the last byte is never mistaken for data.
func TestDecodeTailShorterThanPrefix(t *testing.T) {
	// Ten symbols over a three-value alphabet produce a symbol stream of
	// ~20 bits, so the final lookups run inside the last two bytes.
	roundTrip(t, []uint16{1, 2, 3, 3, 2, 1, 1, 2, 3, 1})
}

// TestDecodeTruncatedSymbolStream: dropping the final body byte must fail
// (the header's nBits no longer fits the body), not return bad data or hang.
func TestDecodeTruncatedSymbolStream(t *testing.T) {
	symbols := make([]uint16, 64)
	for i := range symbols {
		symbols[i] = uint16(i % 7)
	}
	compressed, err := Encode(symbols)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	truncated := compressed[:len(compressed)-1]
	if err := Decode(truncated, make([]uint16, len(symbols))); err == nil {
		t.Fatal("expected an error decoding a truncated stream")
	}
}

// TestRoundTripSkewedDepths builds a Fibonacci-like frequency skew so the
// code-length spread exceeds DecodeBits, forcing the decoder through the
// long-code slots of its two-tier table.
func TestRoundTripSkewedDepths(t *testing.T) {
	var symbols []uint16
	a, b := 1, 1
	for v := 0; v < 20; v++ {
		for i := 0; i < a; i++ {
			symbols = append(symbols, uint16(v))
		}
		a, b = b, a+b
	}
	roundTrip(t, symbols)
}
