package exr

import (
	"testing"

	"github.com/mandeep/goexr/internal/meta"
)

// TestLineIndicesCoverBlockExactly: the byte ranges yielded for a block
// must tile [0, BlockByteSize) contiguously, in row-major order with
// channels interleaved per row in header order.
func TestLineIndicesCoverBlockExactly(t *testing.T) {
	header := &meta.Header{
		DataWindowSize: meta.Vec2{X: 4, Y: 2},
		Channels: meta.ChannelList{List: []meta.Channel{
			{Name: "A", Type: meta.Half, SamplingX: 1, SamplingY: 1},
			{Name: "B", Type: meta.Float, SamplingX: 1, SamplingY: 1},
		}},
		Blocks: meta.Blocks{Kind: meta.ScanLines},
	}
	b := BlockIndex{PixelSize: meta.Vec2{X: 4, Y: 2}}

	addrs := b.LineIndices(header)
	if len(addrs) != 4 { // 2 rows x 2 channels
		t.Fatalf("expected 4 lines, got %d", len(addrs))
	}

	offset := 0
	for i, a := range addrs {
		if a.ByteStart != offset {
			t.Fatalf("line %d: starts at %d, want %d", i, a.ByteStart, offset)
		}
		wantLen := a.Index.SampleCount * header.Channels.List[a.Index.Channel].Type.BytesPerSample()
		if a.ByteEnd-a.ByteStart != wantLen {
			t.Fatalf("line %d: %d bytes, want %d", i, a.ByteEnd-a.ByteStart, wantLen)
		}
		wantChannel := i % 2
		wantY := i / 2
		if a.Index.Channel != wantChannel || a.Index.Position.Y != wantY {
			t.Fatalf("line %d: channel %d y %d, want channel %d y %d", i, a.Index.Channel, a.Index.Position.Y, wantChannel, wantY)
		}
		offset = a.ByteEnd
	}
	if offset != b.BlockByteSize(header) {
		t.Fatalf("lines cover %d bytes, BlockByteSize is %d", offset, b.BlockByteSize(header))
	}
	// 2 rows x (4 half samples + 4 float samples) = 2 * (8 + 16).
	if offset != 48 {
		t.Fatalf("expected 48 bytes total, got %d", offset)
	}
}

// TestLineIndicesSubsampledChannel: a channel sampled every other row and
// column contributes half-width lines on even rows only.
func TestLineIndicesSubsampledChannel(t *testing.T) {
	header := &meta.Header{
		DataWindowSize: meta.Vec2{X: 4, Y: 2},
		Channels: meta.ChannelList{List: []meta.Channel{
			{Name: "Y", Type: meta.Half, SamplingX: 1, SamplingY: 1},
			{Name: "C", Type: meta.Half, SamplingX: 2, SamplingY: 2},
		}},
		Blocks: meta.Blocks{Kind: meta.ScanLines},
	}
	b := BlockIndex{PixelSize: meta.Vec2{X: 4, Y: 2}}

	addrs := b.LineIndices(header)
	// Row 0: both channels; row 1: only the fully sampled one.
	if len(addrs) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(addrs))
	}
	if addrs[1].Index.Channel != 1 || addrs[1].Index.SampleCount != 2 {
		t.Fatalf("subsampled line: channel %d, %d samples, want channel 1 with 2 samples", addrs[1].Index.Channel, addrs[1].Index.SampleCount)
	}
	if addrs[2].Index.Position.Y != 1 || addrs[2].Index.Channel != 0 {
		t.Fatalf("row 1 should only carry channel 0, got %+v", addrs[2].Index)
	}
}
