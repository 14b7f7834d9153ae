package raster

import "context"

// Transform is the 6-parameter affine geotransform
// (xOrigin, xRes, 0, yOrigin, 0, -yRes).
type Transform [6]float64

// OriginX, PixelWidth, and PixelHeight read the transform the way callers
// actually use it: the rotation terms (index 2 and 4) are always zero for
// the co-gridded inputs this engine handles.
func (t Transform) OriginX() float64     { return t[0] }
func (t Transform) OriginY() float64     { return t[3] }
func (t Transform) PixelWidth() float64  { return t[1] }
func (t Transform) PixelHeight() float64 { return -t[5] }

// Metadata is everything the engine needs about a raster file without
// reading any pixels.
type Metadata struct {
	Projection string // opaque identifier (EPSG code as string, or WKT-ish GeoKey dump)
	Transform  Transform
	Width      int
	Height     int
	Bands      int
	Type       PixelType
	NullValue  float64
	HasNull    bool
}

// BoundsXY returns (xMin, xMax, yMin, yMax) derived from the transform and
// pixel dimensions.
func (m Metadata) BoundsXY() (xMin, xMax, yMin, yMax float64) {
	xMin = m.Transform.OriginX()
	xMax = xMin + float64(m.Width)*m.Transform.PixelWidth()
	yMax = m.Transform.OriginY()
	yMin = yMax - float64(m.Height)*m.Transform.PixelHeight()
	return
}

// Handle is an open read handle on one band of one input file, returned by
// Driver.OpenRead. It is owned by exactly one reader goroutine.
type Handle interface {
	// ReadBlock reads a rectangle of pixel coordinates (left, top, xsize,
	// ysize) from the given 1-based band number as a dense Array of the
	// band's native pixel type. The driver clips silently to the valid
	// pixel domain: callers are expected to have already clipped
	// left/top/xsize/ysize to [0,Width]×[0,Height] themselves (the reader
	// pool does this) but a driver must not fault on a rectangle that is
	// already within bounds.
	ReadBlock(ctx context.Context, band, left, top, xsize, ysize int) (Array, error)
	Close() error
}

// CreateOptions configures Driver.Create.
type CreateOptions struct {
	Width, Height  int
	Bands          int
	Type           PixelType
	CreationOption []string // GDAL-style "NAME=VALUE" strings; replaces defaults entirely when non-empty
	// TileSize is the physical tile/block size a tiled driver should use,
	// matching the planner's BlockSize (every WriteBlock call delivers
	// exactly one output tile's worth of pixels, so the file's on-disk
	// tile grid must line up with it exactly — see planner.BuildBlockList
	// and §4.1's write guarantee). Zero lets the driver pick its own
	// default.
	TileSize int
}

// Writer is an open output raster, owned exclusively by the writer loop:
// the output raster handle is touched only by the writer goroutine.
type Writer interface {
	// WriteBlock writes arr at pixel offset (left, top) of the given
	// 1-based band. arr's shape must lie within the output extent.
	WriteBlock(ctx context.Context, band, left, top int, arr Array) error
	SetGeoTransform(t Transform) error
	SetProjection(proj string) error
	SetNullValue(band int, null float64) error
	// BuildOverviews builds overview pyramids at the given scale factors
	// (e.g. [4,8,16,32,64,128,256,512]). A driver that cannot build
	// overviews may treat this as a no-op.
	BuildOverviews(ctx context.Context, scales []int) error
	Close() error
}

// Driver is the abstract raster I/O boundary. Everything above this
// package is decoupled from the on-disk raster format.
type Driver interface {
	// Name identifies the driver ("GTiff"), used for config validation and
	// error messages.
	Name() string
	// Stat reads just the metadata of a file (used to populate the image
	// info catalog), without necessarily holding it open afterward.
	Stat(ctx context.Context, path string) (Metadata, error)
	// OpenRead opens path for repeated band reads. The returned Handle is
	// cached by internal/handlecache and closed when the reader's
	// remaining-work count for that file reaches zero.
	OpenRead(ctx context.Context, path string) (Handle, error)
	// Create creates an output raster at path, replacing any file already
	// there: the driver deletes a pre-existing path itself first.
	Create(ctx context.Context, path string, opts CreateOptions) (Writer, error)
}

// CreationDefaults is a table of sensible per-driver creation option
// defaults, used when the caller supplies no explicit creation options.
// Only "GTiff" has a working Driver implementation in this module (see
// DESIGN.md); the other entries are documented for completeness.
var CreationDefaults = map[string][]string{
	"GTiff": {"COMPRESS=DEFLATE", "TILED=YES", "BIGTIFF=IF_SAFER", "INTERLEAVE=BAND"},
	"KEA":   {},
	"HFA":   {"COMPRESS=YES", "IGNORE_UTM=TRUE"},
}
