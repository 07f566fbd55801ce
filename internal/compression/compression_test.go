package compression

import (
	"bytes"
	"testing"

	"github.com/mandeep/goexr/internal/meta"
)

func roundTrip(t *testing.T, method meta.Compression, raw []byte) {
	t.Helper()
	c, err := For(method)
	if err != nil {
		t.Fatalf("For(%v): %v", method, err)
	}
	compressed, err := c.Compress(raw)
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}
	got, err := c.Decompress(compressed, len(raw))
	if err != nil {
		t.Fatalf("Decompress: %v", err)
	}
	if !bytes.Equal(got, raw) {
		t.Fatalf("round trip mismatch: want %v got %v", raw, got)
	}
}

func TestUncompressedRoundTrip(t *testing.T) {
	roundTrip(t, meta.Uncompressed, []byte{1, 2, 3, 4, 5})
}

func TestRLERoundTripRuns(t *testing.T) {
	raw := append(bytes.Repeat([]byte{9}, 50), bytes.Repeat([]byte{1, 2, 3}, 10)...)
	roundTrip(t, meta.RLE, raw)
}

func TestRLERoundTripEmpty(t *testing.T) {
	roundTrip(t, meta.RLE, nil)
}

func TestRLERoundTripAllLiteral(t *testing.T) {
	raw := make([]byte, 300)
	for i := range raw {
		raw[i] = byte(i * 37)
	}
	roundTrip(t, meta.RLE, raw)
}

func TestZIPRoundTrip(t *testing.T) {
	raw := make([]byte, 4096)
	for i := range raw {
		raw[i] = byte(i / 16)
	}
	roundTrip(t, meta.ZIP, raw)
}

func TestZIPSRoundTripSmall(t *testing.T) {
	roundTrip(t, meta.ZIPS, []byte{0, 0, 0, 0, 1, 1, 1, 1})
}

func TestPIZRoundTrip(t *testing.T) {
	raw := make([]byte, 4096)
	for i := range raw {
		raw[i] = byte(i / 64)
	}
	roundTrip(t, meta.PIZ, raw)
}

func TestPIZRoundTripSmallStoresRaw(t *testing.T) {
	// An 8-byte chunk can never shrink past the 20-byte Huffman header,
	// so it must fall back to the store-raw convention.
	raw := []byte{1, 0, 2, 0, 3, 0, 4, 0}
	c, _ := For(meta.PIZ)
	compressed, err := c.Compress(raw)
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}
	if len(compressed) != len(raw) {
		t.Fatalf("expected store-raw fallback, got %d bytes for %d raw", len(compressed), len(raw))
	}
	roundTrip(t, meta.PIZ, raw)
}

func TestCompressNeverAliasesInput(t *testing.T) {
	for _, method := range []meta.Compression{meta.Uncompressed, meta.RLE, meta.ZIP, meta.PIZ} {
		c, err := For(method)
		if err != nil {
			t.Fatalf("For(%v): %v", method, err)
		}
		raw := []byte{5, 5, 5, 5, 5, 5, 5, 5}
		compressed, err := c.Compress(raw)
		if err != nil {
			t.Fatalf("%v Compress: %v", method, err)
		}
		raw[0] = 99
		got, err := c.Decompress(compressed, len(raw))
		if err != nil {
			t.Fatalf("%v Decompress: %v", method, err)
		}
		if got[0] != 5 {
			t.Fatalf("%v: compressed output aliases the input buffer", method)
		}
	}
}

func TestForUnsupportedMethod(t *testing.T) {
	if _, err := For(meta.PXR24); err != ErrUnsupportedMethod {
		t.Fatalf("expected ErrUnsupportedMethod for PXR24, got %v", err)
	}
	if _, err := For(meta.DWAA); err != ErrUnsupportedMethod {
		t.Fatalf("expected ErrUnsupportedMethod for DWAA, got %v", err)
	}
}
