// Package raster defines the abstract raster driver interface (C1) and the
// pixel-type machinery the mosaicing engine dispatches on. Concrete drivers
// (currently only GTiff, internal/raster/gtiff) implement Driver.
package raster

import "fmt"

// PixelType tags the native numeric type of a band's samples. The engine
// never assumes a fixed type — it carries this tag at runtime and dispatches
// fill/paste/merge kernels on it, per the source's dynamic-dtype design.
type PixelType int

const (
	Byte PixelType = iota
	Int16
	UInt16
	Int32
	UInt32
	Float32
	Float64
)

// String renders the pixel type the way GDAL names its GDALDataType values,
// since that is the vocabulary input file metadata and error messages use.
func (t PixelType) String() string {
	switch t {
	case Byte:
		return "Byte"
	case Int16:
		return "Int16"
	case UInt16:
		return "UInt16"
	case Int32:
		return "Int32"
	case UInt32:
		return "UInt32"
	case Float32:
		return "Float32"
	case Float64:
		return "Float64"
	default:
		return fmt.Sprintf("PixelType(%d)", int(t))
	}
}

// Size returns the number of bytes one sample of this type occupies.
func (t PixelType) Size() int {
	switch t {
	case Byte:
		return 1
	case Int16, UInt16:
		return 2
	case Int32, UInt32, Float32:
		return 4
	case Float64:
		return 8
	default:
		return 0
	}
}

// tiffSampleFormat mirrors the TIFF SampleFormat tag values (339): 1 =
// unsigned integer, 2 = signed integer, 3 = IEEE float.
const (
	tiffSampleUint  = 1
	tiffSampleInt   = 2
	tiffSampleFloat = 3
)

// FromTIFFSample maps a TIFF (BitsPerSample, SampleFormat) pair to a
// PixelType. SampleFormat 0 is treated as unsigned, matching the TIFF spec's
// "format not specified" default.
func FromTIFFSample(bitsPerSample int, sampleFormat int) (PixelType, error) {
	switch sampleFormat {
	case tiffSampleFloat:
		switch bitsPerSample {
		case 32:
			return Float32, nil
		case 64:
			return Float64, nil
		}
	case tiffSampleInt:
		switch bitsPerSample {
		case 16:
			return Int16, nil
		case 32:
			return Int32, nil
		}
	default: // unspecified or explicit unsigned
		switch bitsPerSample {
		case 8:
			return Byte, nil
		case 16:
			return UInt16, nil
		case 32:
			return UInt32, nil
		}
	}
	return 0, fmt.Errorf("unsupported sample layout: %d bits, format %d", bitsPerSample, sampleFormat)
}
