// Package meta holds the in-memory shape of an EXR header and image
// geometry: channel layout, compression method, tiling/mip description,
// and data window placement. Attribute parsing and on-disk header
// serialization are out of scope; MetaData is treated as an opaque value
// supplied to the block pipeline, and this package implements only the
// slice of that value the pipeline needs to address blocks and chunks.
package meta

import "fmt"

// Vec2 is an integer 2D point or size, used throughout for pixel
// positions, level indices, and tile coordinates.
type Vec2 struct {
	X, Y int
}

// Add returns the component-wise sum of v and o.
func (v Vec2) Add(o Vec2) Vec2 { return Vec2{v.X + o.X, v.Y + o.Y} }

// Sub returns the component-wise difference v - o.
func (v Vec2) Sub(o Vec2) Vec2 { return Vec2{v.X - o.X, v.Y - o.Y} }

// Area returns X*Y.
func (v Vec2) Area() int { return v.X * v.Y }

// SampleType identifies the in-memory representation of one channel's
// samples.
type SampleType int

const (
	Half SampleType = iota
	Float
	Uint
)

// BytesPerSample returns the on-disk/in-memory size of one sample of this
// type: 2 bytes for Half (f16), 4 for Float and Uint.
func (s SampleType) BytesPerSample() int {
	switch s {
	case Half:
		return 2
	case Float, Uint:
		return 4
	default:
		panic(fmt.Sprintf("meta: unknown sample type %d", s))
	}
}

func (s SampleType) String() string {
	switch s {
	case Half:
		return "half"
	case Float:
		return "float"
	case Uint:
		return "uint"
	default:
		return "unknown"
	}
}

// Channel describes one image channel: its name, its sample type, and its
// horizontal/vertical subsampling factors. SamplingX/SamplingY are almost
// always 1; the line-addressing iterator in block.go divides the block
// width by SamplingX and skips non-sampled rows by SamplingY.
type Channel struct {
	Name                 string
	Type                 SampleType
	SamplingX, SamplingY int
}

// ChannelList is the ordered list of channels in a header. Order matters:
// it defines the interleave of every uncompressed block.
type ChannelList struct {
	List []Channel
}

// BytesPerPixel returns the sum of each channel's per-sample byte size,
// ignoring subsampling (i.e. the byte cost of one fully-sampled pixel
// column). It is used to size the worst-case block buffer
// (MaxBlockByteSize) and to estimate a read's total pixel bytes.
func (c ChannelList) BytesPerPixel() int {
	total := 0
	for _, ch := range c.List {
		total += ch.Type.BytesPerSample()
	}
	return total
}

// Compression identifies the per-chunk compression method.
type Compression int

const (
	Uncompressed Compression = iota
	RLE
	ZIPS // single scanline per block
	ZIP  // 16 scanlines per block
	PIZ  // 32 scanlines per block, wavelet + Huffman
	PXR24
	B44
	B44A
	DWAA
	DWAB
)

func (c Compression) String() string {
	switch c {
	case Uncompressed:
		return "uncompressed"
	case RLE:
		return "rle"
	case ZIPS:
		return "zips"
	case ZIP:
		return "zip"
	case PIZ:
		return "piz"
	case PXR24:
		return "pxr24"
	case B44:
		return "b44"
	case B44A:
		return "b44a"
	case DWAA:
		return "dwaa"
	case DWAB:
		return "dwab"
	default:
		return "unknown"
	}
}

// LinesPerBlock returns the number of scanlines grouped into one scanline
// chunk for this compression method, matching the OpenEXR reference
// values. Tiled headers ignore this; it only applies to Blocks.ScanLines.
func (c Compression) LinesPerBlock() int {
	switch c {
	case Uncompressed, RLE, ZIPS:
		return 1
	case ZIP, PXR24:
		return 16
	case PIZ, B44, B44A, DWAA:
		return 32
	case DWAB:
		return 256
	default:
		return 1
	}
}

// LineOrder controls the on-disk ordering of a header's chunks.
type LineOrder int

const (
	Increasing LineOrder = iota
	Decreasing
	Unspecified
)

func (l LineOrder) String() string {
	switch l {
	case Increasing:
		return "increasing"
	case Decreasing:
		return "decreasing"
	case Unspecified:
		return "unspecified"
	default:
		return "unknown"
	}
}

// LevelMode selects whether a tiled header has one resolution level, a
// mipmap pyramid (isotropic, lx == ly at every level), or a ripmap
// (independent horizontal/vertical level counts).
type LevelMode int

const (
	OneLevel LevelMode = iota
	MipmapLevels
	RipmapLevels
)

// LevelRounding controls how a level's pixel size is derived from the
// full-resolution size when it doesn't divide evenly by 2^level.
type LevelRounding int

const (
	RoundDown LevelRounding = iota
	RoundUp
)

// Levels describes a tiled header's resolution pyramid. Scanline headers
// are always implicitly OneLevel.
type Levels struct {
	Mode     LevelMode
	Rounding LevelRounding
}

// TileDescription is the tile geometry of a tiled header.
type TileDescription struct {
	TileSize Vec2
	Levels   Levels
}

// BlocksKind selects between scanline and tiled chunk framing.
type BlocksKind int

const (
	ScanLines BlocksKind = iota
	Tiles
)

// Blocks describes how a header's chunks are framed.
type Blocks struct {
	Kind  BlocksKind
	Tiles TileDescription
}

// Header is the in-memory subset of an EXR part header needed to address
// blocks and chunks: channel layout, compression, tiling, line order, and
// data window placement.
type Header struct {
	// DataWindowSize is the pixel width/height of this layer's data window
	// at full resolution (level 0).
	DataWindowSize Vec2

	// DataPosition is the data window's top-left corner in image-absolute
	// coordinates; block/chunk y-coordinates and tile positions are offset
	// by this value when converted to absolute coordinates.
	DataPosition Vec2

	Channels    ChannelList
	Compression Compression
	LineOrder   LineOrder
	Blocks      Blocks
}

// MetaData is the ordered collection of headers (parts/layers) describing
// an EXR file. Attribute parsing is out of scope; a MetaData value is
// supplied to the pipeline by the caller.
type MetaData struct {
	Headers []Header

	// MultiPart reports whether each chunk on disk is prefixed with its
	// owning layer index. Single-part files never carry this prefix
	// even though Headers always has at least one entry.
	MultiPart bool
}
