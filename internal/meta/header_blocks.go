package meta

// BlockCoordinates identifies one chunk's position within a header, before
// it has been resolved to absolute pixel coordinates: a resolution level
// plus a tile index (for scanline headers, Tile.Y is the scanline-block
// row and Tile.X is always 0).
type BlockCoordinates struct {
	Level Vec2
	Tile  Vec2
}

// Rect is an absolute pixel rectangle: Position is its top-left corner in
// image-absolute coordinates, Size is its width/height.
type Rect struct {
	Position Vec2
	Size     Vec2
}

// numLevels counts the mip chain for one axis: the full resolution plus
// one level per halving down to size 2. An axis of size 8 has levels
// 8, 4, 2.
func numLevels(size int) int {
	n := 0
	for size > 1 {
		size >>= 1
		n++
	}
	if n == 0 {
		n = 1
	}
	return n
}

func roundedLevelSize(full, level int, rounding LevelRounding) int {
	var size int
	if rounding == RoundUp {
		size = (full + (1 << uint(level)) - 1) >> uint(level)
	} else {
		size = full >> uint(level)
	}
	if size < 1 {
		size = 1
	}
	return size
}

// NumLevels returns the number of levels along X and Y. Scanline headers
// and OneLevel tiled headers always report (1, 1).
func (h *Header) NumLevels() (nx, ny int) {
	if h.Blocks.Kind != Tiles || h.Blocks.Tiles.Levels.Mode == OneLevel {
		return 1, 1
	}
	nx = numLevels(h.DataWindowSize.X)
	ny = numLevels(h.DataWindowSize.Y)
	if h.Blocks.Tiles.Levels.Mode == MipmapLevels {
		n := nx
		if ny > n {
			n = ny
		}
		return n, n
	}
	return nx, ny
}

// LevelSize returns the pixel width/height of the given resolution level.
func (h *Header) LevelSize(level Vec2) Vec2 {
	rounding := RoundDown
	if h.Blocks.Kind == Tiles {
		rounding = h.Blocks.Tiles.Levels.Rounding
	}
	return Vec2{
		X: roundedLevelSize(h.DataWindowSize.X, level.X, rounding),
		Y: roundedLevelSize(h.DataWindowSize.Y, level.Y, rounding),
	}
}

// EnumerateOrderedBlocks returns every chunk's geometry for this header,
// in the exact order its chunks appear in the file, honoring LineOrder.
// Offset tables are NOT indexed by this order; see
// BlocksIncreasingYOrder.
func (h *Header) EnumerateOrderedBlocks() []BlockCoordinates {
	return h.allBlocks(true)
}

// BlocksIncreasingYOrder returns every chunk's geometry in increasing-row
// order regardless of LineOrder. Index i in the returned slice is the
// chunk's slot in this header's offset table: the table is always laid
// out by block position, even when a Decreasing line order reverses the
// chunks' order of appearance in the file.
func (h *Header) BlocksIncreasingYOrder() []BlockCoordinates {
	return h.allBlocks(false)
}

func (h *Header) allBlocks(ordered bool) []BlockCoordinates {
	var blocks []BlockCoordinates
	nx, ny := h.NumLevels()

	for ly := 0; ly < ny; ly++ {
		for lx := 0; lx < nx; lx++ {
			if h.Blocks.Kind == Tiles && h.Blocks.Tiles.Levels.Mode == MipmapLevels && lx != ly {
				continue
			}
			level := Vec2{lx, ly}
			rows := h.levelBlocks(level)
			if ordered && h.LineOrder == Decreasing {
				reverseBlocks(rows)
			}
			blocks = append(blocks, rows...)
		}
	}
	return blocks
}

// levelBlocks returns every tile/scanline-block coordinate within a single
// resolution level, in increasing-row order.
func (h *Header) levelBlocks(level Vec2) []BlockCoordinates {
	size := h.LevelSize(level)
	var rows []BlockCoordinates

	if h.Blocks.Kind == Tiles {
		tw, th := h.Blocks.Tiles.TileSize.X, h.Blocks.Tiles.TileSize.Y
		tilesX := (size.X + tw - 1) / tw
		tilesY := (size.Y + th - 1) / th
		for ty := 0; ty < tilesY; ty++ {
			for tx := 0; tx < tilesX; tx++ {
				rows = append(rows, BlockCoordinates{Level: level, Tile: Vec2{tx, ty}})
			}
		}
	} else {
		linesPerBlock := h.Compression.LinesPerBlock()
		blockRows := (size.Y + linesPerBlock - 1) / linesPerBlock
		for by := 0; by < blockRows; by++ {
			rows = append(rows, BlockCoordinates{Level: level, Tile: Vec2{0, by}})
		}
	}
	return rows
}

func reverseBlocks(b []BlockCoordinates) {
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
}

// GetAbsoluteBlockIndices resolves a BlockCoordinates value to an absolute
// pixel rectangle, clamped to the level's own bounds at the data window's
// edges, and offset by DataPosition into image-absolute coordinates.
func (h *Header) GetAbsoluteBlockIndices(bc BlockCoordinates) Rect {
	levelSize := h.LevelSize(bc.Level)

	if h.Blocks.Kind == Tiles {
		tw, th := h.Blocks.Tiles.TileSize.X, h.Blocks.Tiles.TileSize.Y
		x0 := bc.Tile.X * tw
		y0 := bc.Tile.Y * th
		w := tw
		if x0+w > levelSize.X {
			w = levelSize.X - x0
		}
		hgt := th
		if y0+hgt > levelSize.Y {
			hgt = levelSize.Y - y0
		}
		return Rect{
			Position: h.DataPosition.Add(Vec2{x0, y0}),
			Size:     Vec2{w, hgt},
		}
	}

	linesPerBlock := h.Compression.LinesPerBlock()
	y0 := bc.Tile.Y * linesPerBlock
	hgt := linesPerBlock
	if y0+hgt > levelSize.Y {
		hgt = levelSize.Y - y0
	}
	return Rect{
		Position: h.DataPosition.Add(Vec2{0, y0}),
		Size:     Vec2{levelSize.X, hgt},
	}
}

// MaxBlockByteSize returns the largest possible uncompressed byte size any
// single chunk of this header can require, used to size the growable block
// buffer during writing without ever over-allocating beyond the true
// worst case.
func (h *Header) MaxBlockByteSize() int {
	bpp := h.Channels.BytesPerPixel()
	if h.Blocks.Kind == Tiles {
		return bpp * h.Blocks.Tiles.TileSize.Area()
	}
	return bpp * h.DataWindowSize.X * h.Compression.LinesPerBlock()
}

// ChunkCount returns the total number of chunks this header contributes to
// the file — the length of EnumerateOrderedBlocks(), and thus the length
// of this header's offset table.
func (h *Header) ChunkCount() int {
	return len(h.EnumerateOrderedBlocks())
}
