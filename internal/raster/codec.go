package raster

import (
	"encoding/binary"
	"math"
)

// decodeInto reads w*h little-endian samples of type T out of data,
// whatever the host's byte order. The gtiff driver does not come through
// here: it decodes each sample itself in the file's own byte order.
func decodeInto[T Numeric](t PixelType, w, h int, data []byte) *TypedArray[T] {
	a := NewTypedArray[T](t, w, h)
	size := t.Size()
	for i := range a.Pixels {
		off := i * size
		a.Pixels[i] = decodeSample[T](t, data[off:off+size])
	}
	return a
}

func decodeSample[T Numeric](t PixelType, b []byte) T {
	switch t {
	case Byte:
		return T(b[0])
	case Int16:
		return T(int16(binary.LittleEndian.Uint16(b)))
	case UInt16:
		return T(binary.LittleEndian.Uint16(b))
	case Int32:
		return T(int32(binary.LittleEndian.Uint32(b)))
	case UInt32:
		return T(binary.LittleEndian.Uint32(b))
	case Float32:
		return T(math.Float32frombits(binary.LittleEndian.Uint32(b)))
	case Float64:
		return T(math.Float64frombits(binary.LittleEndian.Uint64(b)))
	default:
		var zero T
		return zero
	}
}

// encodeNative serializes a typed pixel slice to little-endian bytes, the
// sample layout the gtiff Writer compresses into its little-endian ("II")
// tiles.
func encodeNative[T Numeric](t PixelType, pixels []T) []byte {
	size := t.Size()
	out := make([]byte, len(pixels)*size)
	for i, v := range pixels {
		off := i * size
		encodeSample(t, out[off:off+size], v)
	}
	return out
}

func encodeSample[T Numeric](t PixelType, dst []byte, v T) {
	switch t {
	case Byte:
		dst[0] = byte(v)
	case Int16:
		binary.LittleEndian.PutUint16(dst, uint16(int16(v)))
	case UInt16:
		binary.LittleEndian.PutUint16(dst, uint16(v))
	case Int32:
		binary.LittleEndian.PutUint32(dst, uint32(int32(v)))
	case UInt32:
		binary.LittleEndian.PutUint32(dst, uint32(v))
	case Float32:
		binary.LittleEndian.PutUint32(dst, math.Float32bits(float32(v)))
	case Float64:
		binary.LittleEndian.PutUint64(dst, math.Float64bits(float64(v)))
	}
}
