package exr

import (
	"encoding/binary"
	"math"

	"github.com/mandeep/goexr/internal/meta"
)

// BlockIndex globally identifies one pixel rectangle: a layer, a
// resolution level, and a pixel-absolute position and size.
type BlockIndex struct {
	LayerIndex    int
	Level         meta.Vec2
	PixelPosition meta.Vec2
	PixelSize     meta.Vec2
}

// UncompressedBlock is a BlockIndex plus its pixel bytes, laid out
// row-major by scanline with each scanline's channels contiguous, in
// header order — the canonical EXR block interleave.
type UncompressedBlock struct {
	Index BlockIndex
	Bytes []byte
}

// LineIndex addresses a single pixel row of a single channel within a
// block.
type LineIndex struct {
	LayerIndex  int
	Channel     int // index into the header's ChannelList
	Level       meta.Vec2
	Position    meta.Vec2 // (x, y), image-absolute
	SampleCount int
}

// LineRef is an immutable view of one line's sample bytes.
type LineRef struct {
	Index LineIndex
	Bytes []byte
}

// LineRefMut is a mutable view of one line's sample bytes, handed to a
// write-side line producer.
type LineRefMut struct {
	Index LineIndex
	Bytes []byte
}

// ReadHalfSamples decodes every sample of l as a half-precision float
// widened to float32, into dst. len(dst) must equal l.Index.SampleCount.
func (l LineRef) ReadHalfSamples(dst []float32) {
	for i := range dst {
		dst[i] = ReadHalf(l.Bytes, i)
	}
}

// ReadFloatSamples decodes every sample of l as a float32, into dst.
func (l LineRef) ReadFloatSamples(dst []float32) {
	for i := range dst {
		dst[i] = ReadFloat32(l.Bytes, i)
	}
}

// ReadUintSamples decodes every sample of l as a uint32, into dst.
func (l LineRef) ReadUintSamples(dst []uint32) {
	for i := range dst {
		dst[i] = ReadUint32(l.Bytes, i)
	}
}

// WriteHalfSamplesFromSlice encodes src as half-precision floats into l.
// len(src) must equal l.Index.SampleCount.
func (l LineRefMut) WriteHalfSamplesFromSlice(src []float32) {
	for i, v := range src {
		WriteHalf(l.Bytes, i, v)
	}
}

// WriteFloatSamplesFromSlice encodes src as float32s into l.
func (l LineRefMut) WriteFloatSamplesFromSlice(src []float32) {
	for i, v := range src {
		WriteFloat32(l.Bytes, i, v)
	}
}

// WriteUintSamplesFromSlice encodes src as uint32s into l.
func (l LineRefMut) WriteUintSamplesFromSlice(src []uint32) {
	for i, v := range src {
		WriteUint32(l.Bytes, i, v)
	}
}

// WriteHalfSamples fills l by calling get for each sample index from left
// to right, encoding the result as a half-precision float. Use
// WriteHalfSamplesFromSlice if the samples already live in a slice.
func (l LineRefMut) WriteHalfSamples(get func(i int) float32) {
	for i := 0; i < l.Index.SampleCount; i++ {
		WriteHalf(l.Bytes, i, get(i))
	}
}

// WriteFloatSamples fills l by calling get for each sample index from left
// to right, encoding the result as a float32.
func (l LineRefMut) WriteFloatSamples(get func(i int) float32) {
	for i := 0; i < l.Index.SampleCount; i++ {
		WriteFloat32(l.Bytes, i, get(i))
	}
}

// WriteUintSamples fills l by calling get for each sample index from left
// to right, encoding the result as a uint32.
func (l LineRefMut) WriteUintSamples(get func(i int) uint32) {
	for i := 0; i < l.Index.SampleCount; i++ {
		WriteUint32(l.Bytes, i, get(i))
	}
}

// ReadHalf reinterprets the i'th sample of a line as an IEEE 754
// half-precision float, widened to float32.
func ReadHalf(b []byte, i int) float32 {
	return half(binary.LittleEndian.Uint16(b[i*2:])).toFloat32()
}

// WriteHalf writes v, rounded to half precision, as the i'th sample of a
// line.
func WriteHalf(b []byte, i int, v float32) {
	binary.LittleEndian.PutUint16(b[i*2:], uint16(fromFloat32(v)))
}

// ReadFloat32 reinterprets the i'th sample of a line as an IEEE 754
// single-precision float.
func ReadFloat32(b []byte, i int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
}

// WriteFloat32 writes v as the i'th sample of a line.
func WriteFloat32(b []byte, i int, v float32) {
	binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(v))
}

// ReadUint32 reinterprets the i'th sample of a line as an unsigned
// 32-bit integer.
func ReadUint32(b []byte, i int) uint32 {
	return binary.LittleEndian.Uint32(b[i*4:])
}

// WriteUint32 writes v as the i'th sample of a line.
func WriteUint32(b []byte, i int, v uint32) {
	binary.LittleEndian.PutUint32(b[i*4:], v)
}

// half is the bit pattern of an IEEE 754 half-precision float,
// hand-rolled here as a narrowly-scoped bit manipulation routine.
type half uint16

func (h half) toFloat32() float32 {
	sign := uint32(h&0x8000) << 16
	exp := uint32(h&0x7c00) >> 10
	mant := uint32(h & 0x3ff)

	switch exp {
	case 0:
		if mant == 0 {
			return math.Float32frombits(sign)
		}
		// Subnormal half: normalize by shifting until the implicit bit
		// appears, adjusting the float32 exponent accordingly.
		e := int32(0)
		for mant&0x400 == 0 {
			mant <<= 1
			e--
		}
		mant &= 0x3ff
		bits := sign | uint32(int32(127-15+1)+e)<<23 | mant<<13
		return math.Float32frombits(bits)
	case 0x1f:
		bits := sign | 0xff<<23 | mant<<13
		return math.Float32frombits(bits)
	default:
		bits := sign | (exp-15+127)<<23 | mant<<13
		return math.Float32frombits(bits)
	}
}

func fromFloat32(f float32) half {
	bits := math.Float32bits(f)
	sign := uint16((bits >> 16) & 0x8000)
	exp := int32((bits>>23)&0xff) - 127 + 15
	mant := bits & 0x7fffff

	switch {
	case (bits>>23)&0xff == 0xff:
		// Inf or NaN: preserve, collapsing any mantissa to a single
		// quiet-NaN bit if the value was NaN.
		if mant != 0 {
			return half(sign | 0x7c00 | 0x200)
		}
		return half(sign | 0x7c00)
	case exp >= 0x1f:
		// Overflow rounds to infinity.
		return half(sign | 0x7c00)
	case exp <= 0:
		if exp < -10 {
			return half(sign)
		}
		// Subnormal half: shift the implicit 1 in along with the
		// mantissa, rounding to the nearest representable value.
		mant |= 0x800000
		shift := uint(14 - exp)
		m := mant >> shift
		if mant&(1<<(shift-1)) != 0 {
			m++
		}
		return half2(sign, m)
	default:
		m := uint16(exp)<<10 | uint16(mant>>13)
		if mant&0x1000 != 0 {
			m++
		}
		return half2(sign, uint32(m))
	}
}

func half2(sign uint16, bits uint32) half { return half(sign | uint16(bits)) }
