package exr

import "github.com/mandeep/goexr/internal/meta"

// LineAddress pairs a LineIndex with the byte range, relative to the
// owning block's buffer, that holds its samples.
type LineAddress struct {
	ByteStart, ByteEnd int
	Index              LineIndex
}

// LineIndices returns, in the canonical block interleave, every line
// address within b: for each absolute row y in the block, for each
// channel in header order, one entry, provided that row is actually
// sampled for that channel: a channel with SamplingY == 2 only
// contributes a row every other y, and SamplingX divides the row's
// sample count. The returned slice is freshly computed on every call, so the
// sequence is deterministic and restartable.
func (b BlockIndex) LineIndices(h *meta.Header) []LineAddress {
	var addrs []LineAddress
	offset := 0

	y0, h0 := b.PixelPosition.Y, b.PixelSize.Y
	x0, w0 := b.PixelPosition.X, b.PixelSize.X

	for y := y0; y < y0+h0; y++ {
		for ci, ch := range h.Channels.List {
			sy := ch.SamplingY
			if sy < 1 {
				sy = 1
			}
			if y%sy != 0 {
				continue
			}
			sx := ch.SamplingX
			if sx < 1 {
				sx = 1
			}
			sampleCount := w0 / sx

			size := sampleCount * ch.Type.BytesPerSample()
			addrs = append(addrs, LineAddress{
				ByteStart: offset,
				ByteEnd:   offset + size,
				Index: LineIndex{
					LayerIndex:  b.LayerIndex,
					Channel:     ci,
					Level:       b.Level,
					Position:    meta.Vec2{X: x0, Y: y},
					SampleCount: sampleCount,
				},
			})
			offset += size
		}
	}
	return addrs
}

// BlockByteSize returns the exact uncompressed byte size of b's buffer
// under h — the sum of every entry LineIndices would produce.
func (b BlockIndex) BlockByteSize(h *meta.Header) int {
	total := 0
	for _, a := range b.LineIndices(h) {
		total += a.ByteEnd - a.ByteStart
	}
	return total
}
