package exr

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/mandeep/goexr/internal/compression"
	"github.com/mandeep/goexr/internal/meta"
	"github.com/mandeep/goexr/internal/pool"
)

// ChunkKind selects a Chunk's on-disk framing.
type ChunkKind int

const (
	ScanLineChunk ChunkKind = iota
	TileChunk
	DeepScanLineChunk
	DeepTileChunk
)

// Chunk is a layer-tagged, on-disk unit of compressed pixel data. Deep
// variants are recognized but always rejected as Unsupported (deep data
// is out of scope).
type Chunk struct {
	LayerIndex int
	Kind       ChunkKind

	Y int // ScanLineChunk only

	TX, TY, LX, LY int // TileChunk only

	Bytes []byte // compressed payload
}

// DecompressChunk resolves c's owning header, converts its on-disk
// coordinates to an absolute pixel rectangle, validates it against the
// layer's data window, and dispatches to the compression method's
// decoder.
func DecompressChunk(c Chunk, md *meta.MetaData) (*UncompressedBlock, error) {
	if c.LayerIndex < 0 || c.LayerIndex >= len(md.Headers) {
		return nil, invalidErr("DecompressChunk", fmt.Errorf("layer index %d out of range", c.LayerIndex))
	}
	header := &md.Headers[c.LayerIndex]

	if c.Kind == DeepScanLineChunk || c.Kind == DeepTileChunk {
		return nil, &Error{Kind: KindUnsupported, Op: "DecompressChunk", Err: fmt.Errorf("deep data chunks are not supported")}
	}

	bc, err := chunkCoordinates(c, header)
	if err != nil {
		return nil, err
	}
	rect := header.GetAbsoluteBlockIndices(bc)
	if err := validateRect(header, rect); err != nil {
		return nil, err
	}

	blockIndex := BlockIndex{
		LayerIndex:    c.LayerIndex,
		Level:         bc.Level,
		PixelPosition: rect.Position,
		PixelSize:     rect.Size,
	}
	uncompressedSize := blockIndex.BlockByteSize(header)

	compressor, err := compression.For(header.Compression)
	if err != nil {
		return nil, &Error{Kind: KindUnsupported, Op: "DecompressChunk", Err: err}
	}
	raw, err := compressor.Decompress(c.Bytes, uncompressedSize)
	if err != nil {
		return nil, invalidErr("DecompressChunk", err)
	}

	return &UncompressedBlock{Index: blockIndex, Bytes: raw}, nil
}

func chunkCoordinates(c Chunk, header *meta.Header) (meta.BlockCoordinates, error) {
	if header.Blocks.Kind == meta.Tiles {
		if c.Kind != TileChunk {
			return meta.BlockCoordinates{}, invalidErr("DecompressChunk", fmt.Errorf("tiled header received a scanline chunk"))
		}
		return meta.BlockCoordinates{Level: meta.Vec2{X: c.LX, Y: c.LY}, Tile: meta.Vec2{X: c.TX, Y: c.TY}}, nil
	}

	if c.Kind != ScanLineChunk {
		return meta.BlockCoordinates{}, invalidErr("DecompressChunk", fmt.Errorf("scanline header received a tile chunk"))
	}
	row := c.Y - header.DataPosition.Y
	linesPerBlock := header.Compression.LinesPerBlock()
	if row < 0 || linesPerBlock == 0 {
		return meta.BlockCoordinates{}, invalidErr("DecompressChunk", fmt.Errorf("scanline y %d out of range", c.Y))
	}
	return meta.BlockCoordinates{Tile: meta.Vec2{X: 0, Y: row / linesPerBlock}}, nil
}

func validateRect(header *meta.Header, rect meta.Rect) error {
	rel := rect.Position.Sub(header.DataPosition)
	if rel.X < 0 || rel.Y < 0 || rel.X >= header.DataWindowSize.X || rel.Y >= header.DataWindowSize.Y {
		return invalidErr("DecompressChunk", fmt.Errorf("block position %+v outside data window", rect.Position))
	}
	return nil
}

// CompressToChunk is the inverse of DecompressChunk. A buffer whose
// length disagrees with the channel layout's expectation is a programmer
// error in the caller's block construction, not a data error, and panics
// rather than returning one.
func CompressToChunk(block *UncompressedBlock, md *meta.MetaData) (*Chunk, error) {
	header := &md.Headers[block.Index.LayerIndex]
	want := block.Index.BlockByteSize(header)
	if len(block.Bytes) != want {
		panic(fmt.Sprintf("exr: CompressToChunk: block buffer is %d bytes, channel layout requires %d", len(block.Bytes), want))
	}

	compressor, err := compression.For(header.Compression)
	if err != nil {
		return nil, &Error{Kind: KindUnsupported, Op: "CompressToChunk", Err: err}
	}
	compressed, err := compressor.Compress(block.Bytes)
	if err != nil {
		return nil, invalidErr("CompressToChunk", err)
	}

	if header.Blocks.Kind == meta.Tiles {
		rel := block.Index.PixelPosition.Sub(header.DataPosition)
		tw, th := header.Blocks.Tiles.TileSize.X, header.Blocks.Tiles.TileSize.Y
		return &Chunk{
			LayerIndex: block.Index.LayerIndex,
			Kind:       TileChunk,
			TX:         rel.X / tw,
			TY:         rel.Y / th,
			LX:         block.Index.Level.X,
			LY:         block.Index.Level.Y,
			Bytes:      compressed,
		}, nil
	}

	return &Chunk{
		LayerIndex: block.Index.LayerIndex,
		Kind:       ScanLineChunk,
		Y:          block.Index.PixelPosition.Y,
		Bytes:      compressed,
	}, nil
}

// readChunkFrame reads one chunk's on-disk framing from r. headers
// supplies each layer's Blocks.Kind, needed to know whether to expect
// scanline or tile coordinates once the layer index (if present) is
// known.
func readChunkFrame(r io.Reader, multiPart bool, headers []meta.Header) (Chunk, error) {
	var c Chunk
	if multiPart {
		var layer uint32
		if err := binary.Read(r, binary.LittleEndian, &layer); err != nil {
			return c, err
		}
		c.LayerIndex = int(layer)
	}
	if c.LayerIndex < 0 || c.LayerIndex >= len(headers) {
		return c, fmt.Errorf("exr: chunk layer index %d out of range", c.LayerIndex)
	}

	if headers[c.LayerIndex].Blocks.Kind == meta.Tiles {
		var coords [4]int32
		if err := binary.Read(r, binary.LittleEndian, &coords); err != nil {
			return c, err
		}
		c.Kind = TileChunk
		c.TX, c.TY, c.LX, c.LY = int(coords[0]), int(coords[1]), int(coords[2]), int(coords[3])
	} else {
		var y int32
		if err := binary.Read(r, binary.LittleEndian, &y); err != nil {
			return c, err
		}
		c.Kind = ScanLineChunk
		c.Y = int(y)
	}

	var size uint32
	if err := binary.Read(r, binary.LittleEndian, &size); err != nil {
		return c, err
	}
	c.Bytes = pool.Get(int(size))
	if _, err := io.ReadFull(r, c.Bytes); err != nil {
		return c, err
	}
	return c, nil
}

// writeChunkFrame writes c's on-disk framing to w and returns the number
// of bytes written.
func writeChunkFrame(w io.Writer, multiPart bool, c Chunk) (int64, error) {
	var n int64
	if multiPart {
		if err := binary.Write(w, binary.LittleEndian, uint32(c.LayerIndex)); err != nil {
			return n, err
		}
		n += 4
	}

	if c.Kind == TileChunk {
		coords := [4]int32{int32(c.TX), int32(c.TY), int32(c.LX), int32(c.LY)}
		if err := binary.Write(w, binary.LittleEndian, coords); err != nil {
			return n, err
		}
		n += 16
	} else {
		if err := binary.Write(w, binary.LittleEndian, int32(c.Y)); err != nil {
			return n, err
		}
		n += 4
	}

	if err := binary.Write(w, binary.LittleEndian, uint32(len(c.Bytes))); err != nil {
		return n, err
	}
	n += 4
	written, err := w.Write(c.Bytes)
	n += int64(written)
	return n, err
}
