package gtiff

import (
	"bytes"
	"compress/zlib"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/neilflood/moamosaic/internal/raster"
	"github.com/neilflood/moamosaic/internal/vfs"
)

// Driver implements raster.Driver over local (mmap-backed) or
// vfs-abstracted GeoTIFF/BigTIFF files. It returns a dense native-pixel-type
// rectangle of an arbitrary band, assembled from however many tiles or
// strips the rectangle overlaps.
type Driver struct{}

func NewDriver() *Driver { return &Driver{} }

func (d *Driver) Name() string { return "GTiff" }

func (d *Driver) Stat(ctx context.Context, path string) (raster.Metadata, error) {
	h, err := d.OpenRead(ctx, path)
	if err != nil {
		return raster.Metadata{}, err
	}
	defer h.Close()
	return h.(*handle).metadata, nil
}

// OpenRead resolves path through internal/vfs (staging it locally first if
// it names a remote object-store URL) and mmaps the result, so every
// caller above this package works with plain filenames/URLs regardless of
// where the bytes actually live.
func (d *Driver) OpenRead(ctx context.Context, path string) (raster.Handle, error) {
	resolved, err := vfs.Resolve(ctx, path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(resolved.LocalPath)
	if err != nil {
		resolved.Close()
		return nil, fmt.Errorf("gtiff: opening %s: %w", path, err)
	}

	data, err := mmapFile(f)
	if err != nil {
		f.Close()
		resolved.Close()
		return nil, err
	}

	ifds, bo, err := parseTIFF(bytes.NewReader(data))
	if err != nil {
		munmapFile(data)
		f.Close()
		resolved.Close()
		return nil, fmt.Errorf("gtiff: parsing %s: %w", path, err)
	}
	if len(ifds) == 0 {
		munmapFile(data)
		f.Close()
		resolved.Close()
		return nil, fmt.Errorf("gtiff: %s has no image directories", path)
	}

	ifd := ifds[0]
	if !ifd.isTiled() && ifd.StripOffsets == nil {
		munmapFile(data)
		f.Close()
		resolved.Close()
		return nil, fmt.Errorf("gtiff: %s has neither tile nor strip layout", path)
	}

	switch ifd.Compression {
	case 0, compNone, compLZW, compDeflate, compDeflate2:
	default:
		munmapFile(data)
		f.Close()
		resolved.Close()
		return nil, fmt.Errorf("gtiff: %s: unsupported compression %d", path, ifd.Compression)
	}

	pixType, err := raster.FromTIFFSample(ifd.bitsPerSampleFor(0), ifd.sampleFormatFor(0))
	if err != nil {
		munmapFile(data)
		f.Close()
		resolved.Close()
		return nil, fmt.Errorf("gtiff: %s: %w", path, err)
	}

	geo := parseGeoInfo(&ifd)
	if geo.pixelWidth == 0 {
		if tfwPath := findTFW(resolved.LocalPath); tfwPath != "" {
			if w, err := parseTFW(tfwPath); err == nil {
				geo = w.toGeoInfo()
			}
		}
	}

	null, hasNull := 0.0, false
	if ifd.NoDataSet {
		var v float64
		if _, err := fmt.Sscanf(ifd.NoData, "%g", &v); err == nil {
			null, hasNull = v, true
		}
	}

	md := raster.Metadata{
		Projection: epsgString(geo.epsg),
		Transform:  raster.Transform{geo.originX, geo.pixelWidth, 0, geo.originY, 0, -geo.pixelHeight},
		Width:      int(ifd.Width),
		Height:     int(ifd.Height),
		Bands:      int(ifd.SamplesPerPixel),
		Type:       pixType,
		NullValue:  null,
		HasNull:    hasNull,
	}

	return &handle{
		f:        f,
		data:     data,
		bo:       bo,
		ifd:      ifd,
		pixType:  pixType,
		path:     path,
		metadata: md,
		resolved: resolved,
	}, nil
}

type handle struct {
	f        *os.File
	data     []byte
	bo       binary.ByteOrder
	ifd      IFD
	pixType  raster.PixelType
	path     string
	metadata raster.Metadata
	resolved vfs.Resolved
}

func (h *handle) Close() error {
	munmapErr := munmapFile(h.data)
	closeErr := h.f.Close()
	h.resolved.Close()
	if munmapErr != nil {
		return munmapErr
	}
	return closeErr
}

// ReadBlock assembles a (left,top,xsize,ysize) rectangle of the given
// 1-based band by iterating every tile (or strip) the rectangle overlaps,
// decompressing each once, and copying the overlapping samples out.
// Callers are expected to have already clipped the rectangle to the
// image's valid pixel domain (see raster.Handle's doc comment).
func (h *handle) ReadBlock(ctx context.Context, band, left, top, xsize, ysize int) (raster.Array, error) {
	if band < 1 || band > int(h.ifd.SamplesPerPixel) {
		return nil, fmt.Errorf("gtiff: %s: band %d out of range [1,%d]", h.path, band, h.ifd.SamplesPerPixel)
	}

	out := raster.NewArray(h.pixType, xsize, ysize)

	if h.ifd.isTiled() {
		if err := h.readTiled(out, band, left, top, xsize, ysize); err != nil {
			return nil, err
		}
	} else {
		if err := h.readStriped(out, band, left, top, xsize, ysize); err != nil {
			return nil, err
		}
	}

	return out, nil
}

// planar reports whether samples are stored as separate single-band
// planes (PlanarConfig 2) rather than interleaved per pixel (PlanarConfig
// 1, the default). This driver's own Writer always emits planar tiles
// (see writer.go), so ReadBlock must handle both layouts to read back
// files it wrote itself as well as chunky third-party GeoTIFFs.
func (h *handle) planar() bool { return h.ifd.PlanarConfig == 2 }

func (h *handle) readTiled(out raster.Array, band, left, top, xsize, ysize int) error {
	tw, th := int(h.ifd.TileWidth), int(h.ifd.TileHeight)
	tilesAcross := h.ifd.tilesAcross()
	tilesPerBand := tilesAcross * h.ifd.tilesDown()

	firstTileCol := left / tw
	lastTileCol := (left + xsize - 1) / tw
	firstTileRow := top / th
	lastTileRow := (top + ysize - 1) / th

	planeBand := 1
	bandOffset := 0
	if h.planar() {
		bandOffset = (band - 1) * tilesPerBand
	} else {
		planeBand = band
	}

	for tr := firstTileRow; tr <= lastTileRow; tr++ {
		for tc := firstTileCol; tc <= lastTileCol; tc++ {
			idx := bandOffset + tr*tilesAcross + tc
			if idx < 0 || idx >= len(h.ifd.TileOffsets) {
				continue
			}
			raw, err := h.decompressChunk(h.ifd.TileOffsets[idx], h.ifd.TileByteCounts[idx], tw, th)
			if err != nil {
				return fmt.Errorf("gtiff: %s: tile %d: %w", h.path, idx, err)
			}

			tileOriginRow := tr * th
			tileOriginCol := tc * tw
			h.copyBand(out, raw, planeBand, tw, th, tileOriginRow-top, tileOriginCol-left, tw, th)
		}
	}
	return nil
}

func (h *handle) readStriped(out raster.Array, band, left, top, xsize, ysize int) error {
	rps := int(h.ifd.rowsPerStrip())
	width := int(h.ifd.Width)
	stripsPerBand := h.ifd.numStrips()

	firstStrip := top / rps
	lastStrip := (top + ysize - 1) / rps

	planeBand := 1
	bandOffset := 0
	if h.planar() {
		bandOffset = (band - 1) * stripsPerBand
	} else {
		planeBand = band
	}

	for s := firstStrip; s <= lastStrip; s++ {
		idx := bandOffset + s
		if idx < 0 || idx >= len(h.ifd.StripOffsets) {
			continue
		}
		stripRows := rps
		if (s+1)*rps > int(h.ifd.Height) {
			stripRows = int(h.ifd.Height) - s*rps
		}
		raw, err := h.decompressChunk(h.ifd.StripOffsets[idx], h.ifd.StripByteCounts[idx], width, stripRows)
		if err != nil {
			return fmt.Errorf("gtiff: %s: strip %d: %w", h.path, idx, err)
		}

		stripOriginRow := s * rps
		h.copyBand(out, raw, planeBand, width, stripRows, stripOriginRow-top, -left, width, stripRows)
	}
	return nil
}

// chunkChannels is the number of interleaved samples per pixel stored in
// one tile/strip: 1 for planar (band-separate) layout, SamplesPerPixel for
// the default chunky layout.
func (h *handle) chunkChannels() int {
	if h.planar() {
		return 1
	}
	return int(h.ifd.SamplesPerPixel)
}

// decompressChunk returns the raw (post-predictor) bytes for one tile or
// strip, w×h samples of chunkChannels() channels each.
func (h *handle) decompressChunk(offset, byteCount uint64, w, hgt int) ([]byte, error) {
	if offset+byteCount > uint64(len(h.data)) {
		return nil, fmt.Errorf("chunk out of bounds")
	}
	chunk := h.data[offset : offset+byteCount]

	sampleSize := h.pixType.Size()
	channels := h.chunkChannels()
	wantSize := w * hgt * channels * sampleSize

	var raw []byte
	var err error
	switch h.ifd.Compression {
	case 0, compNone:
		raw = chunk
	case compDeflate, compDeflate2:
		raw, err = decompressDeflate(chunk)
	case compLZW:
		raw, err = decompressTIFFLZW(chunk)
	default:
		return nil, fmt.Errorf("unsupported compression %d", h.ifd.Compression)
	}
	if err != nil {
		return nil, err
	}

	if len(raw) < wantSize {
		padded := make([]byte, wantSize)
		copy(padded, raw)
		raw = padded
	}

	if h.ifd.Predictor == 2 && sampleSize == 1 {
		rowBytes := w * channels
		for r := 0; r < hgt; r++ {
			row := raw[r*rowBytes : (r+1)*rowBytes]
			undoHorizontalDifferencing(row, channels)
		}
	}

	return raw, nil
}

func decompressDeflate(data []byte) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return io.ReadAll(zr)
}

// copyBand extracts one band's samples from a raw chunk — band-interleaved
// for chunky layout, or the chunk's only band for planar layout — and
// pastes the overlapping region into out at (chunkRowOff, chunkColOff)
// relative to out's origin. band is already plane-local: callers pass 1
// for planar chunks, which only ever hold one band's samples.
func (h *handle) copyBand(out raster.Array, raw []byte, band, chunkW, chunkH, rowOff, colOff, srcW, srcH int) {
	samplesPerPixel := h.chunkChannels()
	sampleSize := h.pixType.Size()
	outW, outH := out.Width(), out.Height()

	for r := 0; r < srcH; r++ {
		dstRow := rowOff + r
		if dstRow < 0 || dstRow >= outH {
			continue
		}
		for c := 0; c < srcW; c++ {
			dstCol := colOff + c
			if dstCol < 0 || dstCol >= outW {
				continue
			}
			pixelIdx := r*chunkW + c
			byteOff := pixelIdx*samplesPerPixel*sampleSize + (band-1)*sampleSize
			if byteOff+sampleSize > len(raw) {
				continue
			}
			v := decodeSampleFloat(h.pixType, h.bo, raw[byteOff:byteOff+sampleSize])
			out.SetFloat(dstRow, dstCol, v)
		}
	}
}

// decodeSampleFloat decodes one TIFF sample into a float64, the common
// currency raster.Array.SetFloat accepts, honoring the file's own byte
// order (bo) rather than assuming little-endian — a big-endian ("MM")
// input GeoTIFF otherwise decodes every multi-byte sample wrong even
// though parseTIFF correctly tracked bo for every IFD field.
func decodeSampleFloat(t raster.PixelType, bo binary.ByteOrder, b []byte) float64 {
	switch t {
	case raster.Byte:
		return float64(b[0])
	case raster.Int16:
		return float64(int16(bo.Uint16(b)))
	case raster.UInt16:
		return float64(bo.Uint16(b))
	case raster.Int32:
		return float64(int32(bo.Uint32(b)))
	case raster.UInt32:
		return float64(bo.Uint32(b))
	case raster.Float32:
		return float64(math.Float32frombits(bo.Uint32(b)))
	case raster.Float64:
		return math.Float64frombits(bo.Uint64(b))
	default:
		return 0
	}
}
