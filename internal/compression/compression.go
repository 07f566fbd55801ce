// Package compression implements the per-chunk compressors used by the
// block pipeline: a uniform Compressor interface mapping a chunk's raw
// bytes to compressed bytes and back, for the methods the pipeline can
// exercise today (Uncompressed, RLE, ZIP/ZIPS, and PIZ's Huffman stage).
// PXR24/B44/B44A/DWAA/DWAB are recognized but return ErrUnsupportedMethod.
package compression

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"

	"github.com/klauspost/compress/zlib"

	"github.com/mandeep/goexr/internal/huffman"
	"github.com/mandeep/goexr/internal/meta"
)

// ErrUnsupportedMethod is wrapped into any error returned for a
// compression method this package does not implement.
var ErrUnsupportedMethod = errors.New("compression: method not implemented")

// Compressor compresses and decompresses one chunk's worth of
// uncompressed interleaved channel bytes.
type Compressor interface {
	// Compress returns a compressed encoding of raw in a buffer the caller
	// owns. When compression would not shrink raw, the result is a copy of
	// raw unchanged (the format's "store raw if compression grew it"
	// convention); the result never aliases the input, so raw can be
	// recycled as soon as Compress returns.
	Compress(raw []byte) ([]byte, error)
	// Decompress inverts Compress, expanding into exactly uncompressedSize
	// bytes.
	Decompress(data []byte, uncompressedSize int) ([]byte, error)
}

// For reports the Compressor implementing method, or ErrUnsupportedMethod
// if method's payload body is out of scope.
func For(method meta.Compression) (Compressor, error) {
	switch method {
	case meta.Uncompressed:
		return uncompressed{}, nil
	case meta.RLE:
		return rleCompressor{}, nil
	case meta.ZIP, meta.ZIPS:
		return zipCompressor{}, nil
	case meta.PIZ:
		return pizCompressor{}, nil
	default:
		return nil, ErrUnsupportedMethod
	}
}

// storeRaw is the fallback shared by every method for the case where
// compressing grew the data: the chunk stores the raw bytes verbatim, and
// Decompress detects that by the payload length matching the expected
// uncompressed size exactly.
func storeRaw(raw []byte) []byte {
	return append([]byte(nil), raw...)
}

type uncompressed struct{}

func (uncompressed) Compress(raw []byte) ([]byte, error) { return storeRaw(raw), nil }
func (uncompressed) Decompress(data []byte, uncompressedSize int) ([]byte, error) {
	if len(data) != uncompressedSize {
		return nil, errors.New("compression: uncompressed chunk size mismatch")
	}
	return data, nil
}

// zipCompressor implements both ZIP (16 scanlines/block) and ZIPS (1
// scanline/block): they differ only in LinesPerBlock, not in payload
// format. Both apply a byte-delta-then-deinterleave predictor (see
// reorderForward) before handing the result to DEFLATE, which is what makes the method
// effective on floating-point pixel data.
type zipCompressor struct{}

func (zipCompressor) Compress(raw []byte) ([]byte, error) {
	predicted := make([]byte, len(raw))
	reorderForward(raw, predicted)

	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	if _, err := w.Write(predicted); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	if buf.Len() >= len(raw) {
		return storeRaw(raw), nil
	}
	return buf.Bytes(), nil
}

func (zipCompressor) Decompress(data []byte, uncompressedSize int) ([]byte, error) {
	if len(data) == uncompressedSize {
		return data, nil
	}
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()

	predicted := make([]byte, uncompressedSize)
	if _, err := io.ReadFull(r, predicted); err != nil {
		return nil, err
	}
	raw := make([]byte, uncompressedSize)
	reorderInverse(predicted, raw)
	return raw, nil
}

// reorderForward applies OpenEXR's ZIP predictor: a delta filter across
// the byte stream, then a split into the low-byte and high-byte halves of
// each pair, which concentrates the near-zero deltas of smooth pixel data
// where DEFLATE can exploit them.
func reorderForward(raw, out []byte) {
	n := len(raw)
	delta := make([]byte, n)
	var prev byte
	for i, b := range raw {
		d := b - prev
		delta[i] = d
		prev = b
	}

	half := (n + 1) / 2
	for i := 0; i < n; i++ {
		if i%2 == 0 {
			out[i/2] = delta[i]
		} else {
			out[half+i/2] = delta[i]
		}
	}
}

func reorderInverse(predicted, out []byte) {
	n := len(out)
	half := (n + 1) / 2
	delta := make([]byte, n)
	for i := 0; i < n; i++ {
		if i%2 == 0 {
			delta[i] = predicted[i/2]
		} else {
			delta[i] = predicted[half+i/2]
		}
	}

	var prev byte
	for i, d := range delta {
		b := prev + d
		out[i] = b
		prev = b
	}
}

// rleCompressor implements OpenEXR's byte run-length encoding: runs of 3
// to 130 identical bytes are stored as a (negative) count plus the byte;
// runs of otherwise-dissimilar bytes are stored as a (positive) count
// plus that many literal bytes.
type rleCompressor struct{}

const (
	rleMinRun     = 3
	rleMaxRun     = 127 + rleMinRun
	rleMaxLiteral = 128
)

func (rleCompressor) Compress(raw []byte) ([]byte, error) {
	var out bytes.Buffer
	i := 0
	for i < len(raw) {
		run := 1
		for i+run < len(raw) && raw[i+run] == raw[i] && run < rleMaxRun {
			run++
		}
		if run >= rleMinRun {
			out.WriteByte(byte(int8(-(run - rleMinRun + 1))))
			out.WriteByte(raw[i])
			i += run
			continue
		}

		start := i
		i++
		for i < len(raw) && (i-start) < rleMaxLiteral {
			// stop the literal run one byte before a run of >= rleMinRun
			// identical bytes begins, so that run can be encoded on the
			// next iteration.
			if i+rleMinRun-1 < len(raw) && raw[i] == raw[i+1] && raw[i] == raw[i+2] {
				break
			}
			i++
		}
		litLen := i - start
		out.WriteByte(byte(int8(litLen - 1)))
		out.Write(raw[start:i])
	}

	if out.Len() >= len(raw) {
		return storeRaw(raw), nil
	}
	return out.Bytes(), nil
}

func (rleCompressor) Decompress(data []byte, uncompressedSize int) ([]byte, error) {
	if len(data) == uncompressedSize {
		return data, nil
	}
	out := make([]byte, 0, uncompressedSize)
	i := 0
	for i < len(data) {
		n := int(int8(data[i]))
		i++
		switch {
		case n < 0:
			if i >= len(data) {
				return nil, errors.New("compression: truncated RLE run")
			}
			run := -n + rleMinRun - 1
			b := data[i]
			i++
			for k := 0; k < run; k++ {
				out = append(out, b)
			}
		default:
			litLen := n + 1
			if i+litLen > len(data) {
				return nil, errors.New("compression: truncated RLE literal")
			}
			out = append(out, data[i:i+litLen]...)
			i += litLen
		}
	}
	if len(out) != uncompressedSize {
		return nil, errors.New("compression: RLE decompressed size mismatch")
	}
	return out, nil
}

// pizCompressor carries a PIZ chunk body through its Huffman stage: the
// chunk's bytes are reinterpreted as little-endian 16-bit symbols and
// entropy-coded by internal/huffman. The wavelet prediction pass that the
// full PIZ method layers between the pixel data and the Huffman kernel is
// intentionally absent here; chunks written by this compressor decode back
// bit-exactly through the same stage.
type pizCompressor struct{}

func (pizCompressor) Compress(raw []byte) ([]byte, error) {
	symbols := make([]uint16, len(raw)/2)
	for i := range symbols {
		symbols[i] = binary.LittleEndian.Uint16(raw[i*2:])
	}
	out, err := huffman.Encode(symbols)
	if err != nil {
		return nil, err
	}
	if len(raw)%2 != 0 {
		// Channel sample sizes are 2 or 4 bytes, so an odd chunk never
		// happens for real headers; carry the stray byte verbatim anyway.
		out = append(out, raw[len(raw)-1])
	}
	if len(out) >= len(raw) {
		return storeRaw(raw), nil
	}
	return out, nil
}

func (pizCompressor) Decompress(data []byte, uncompressedSize int) ([]byte, error) {
	if len(data) == uncompressedSize {
		return data, nil
	}
	symbols := make([]uint16, uncompressedSize/2)
	if err := huffman.Decode(data, symbols); err != nil {
		return nil, err
	}
	out := make([]byte, uncompressedSize)
	for i, s := range symbols {
		binary.LittleEndian.PutUint16(out[i*2:], s)
	}
	if uncompressedSize%2 != 0 {
		if len(data) == 0 {
			return nil, errors.New("compression: truncated PIZ chunk")
		}
		out[uncompressedSize-1] = data[len(data)-1]
	}
	return out, nil
}
