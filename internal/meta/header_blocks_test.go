package meta

import "testing"

func scanlineHeader(w, h int, comp Compression, order LineOrder) Header {
	return Header{
		DataWindowSize: Vec2{w, h},
		Channels:       ChannelList{List: []Channel{{Name: "Y", Type: Half, SamplingX: 1, SamplingY: 1}}},
		Compression:    comp,
		LineOrder:      order,
		Blocks:         Blocks{Kind: ScanLines},
	}
}

func TestEnumerateOrderedBlocksIncreasing(t *testing.T) {
	h := scanlineHeader(4, 4, Uncompressed, Increasing)
	blocks := h.EnumerateOrderedBlocks()
	if len(blocks) != 4 {
		t.Fatalf("expected 4 scanline blocks, got %d", len(blocks))
	}
	for i, b := range blocks {
		if b.Tile.Y != i {
			t.Fatalf("block %d: expected row %d, got %d", i, i, b.Tile.Y)
		}
	}
}

func TestEnumerateOrderedBlocksDecreasing(t *testing.T) {
	h := scanlineHeader(4, 4, Uncompressed, Decreasing)
	blocks := h.EnumerateOrderedBlocks()
	for i, b := range blocks {
		want := len(blocks) - 1 - i
		if b.Tile.Y != want {
			t.Fatalf("block %d: expected row %d, got %d", i, want, b.Tile.Y)
		}
	}
}

func TestGetAbsoluteBlockIndicesScanline(t *testing.T) {
	h := scanlineHeader(4, 4, ZIP, Increasing) // 16 lines/block, but only 4 rows total
	h.DataPosition = Vec2{10, 100}
	blocks := h.EnumerateOrderedBlocks()
	if len(blocks) != 1 {
		t.Fatalf("expected 1 block (4 rows < 16 lines/block), got %d", len(blocks))
	}
	rect := h.GetAbsoluteBlockIndices(blocks[0])
	if rect.Position != (Vec2{10, 100}) || rect.Size != (Vec2{4, 4}) {
		t.Fatalf("unexpected rect: %+v", rect)
	}
}

func TestTiledMipLevels(t *testing.T) {
	h := Header{
		DataWindowSize: Vec2{8, 8},
		Channels:       ChannelList{List: []Channel{{Name: "Y", Type: Half, SamplingX: 1, SamplingY: 1}}},
		Compression:    PIZ,
		LineOrder:      Increasing,
		Blocks: Blocks{
			Kind: Tiles,
			Tiles: TileDescription{
				TileSize: Vec2{4, 4},
				Levels:   Levels{Mode: MipmapLevels, Rounding: RoundDown},
			},
		},
	}
	nx, ny := h.NumLevels()
	if nx != 3 || ny != 3 {
		t.Fatalf("expected 3 mip levels, got %d,%d", nx, ny)
	}
	blocks := h.EnumerateOrderedBlocks()
	// level 0: 8x8 -> 2x2 tiles = 4; level 1: 4x4 -> 1 tile; level 2: 2x2 -> 1 tile.
	if len(blocks) != 6 {
		t.Fatalf("expected 6 tiles total, got %d", len(blocks))
	}
}

func TestMaxBlockByteSize(t *testing.T) {
	h := scanlineHeader(4, 4, Uncompressed, Increasing)
	if got := h.MaxBlockByteSize(); got != 4*2*1 {
		t.Fatalf("got %d", got)
	}
}

func TestBlocksIncreasingYOrderIgnoresLineOrder(t *testing.T) {
	h := scanlineHeader(4, 4, Uncompressed, Decreasing)
	blocks := h.BlocksIncreasingYOrder()
	for i, b := range blocks {
		if b.Tile.Y != i {
			t.Fatalf("block %d: expected row %d, got %d", i, i, b.Tile.Y)
		}
	}
}
