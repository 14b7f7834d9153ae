package gtiff

import (
	"bytes"
	"compress/zlib"
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"sync"

	"github.com/neilflood/moamosaic/internal/raster"
)

// defaultTileSize matches the block size the planner hands the writer loop
// by default, so the common case writes exactly one tile per WriteBlock
// call.
const defaultTileSize = 1024

// bigTiffHeaderSize is the fixed 16-byte BigTIFF header: byte order (2),
// magic 43 (2), bytesize-of-offsets/8 (2), constant 0 (2), first IFD
// offset (8).
const bigTiffHeaderSize = 16

// Create opens path for writing a new tiled BigTIFF, always using BigTIFF
// offsets (a simplification of the original's BIGTIFF=IF_SAFER, which only
// switches to 8-byte offsets once a file would otherwise overflow 4GB; see
// DESIGN.md).
func (d *Driver) Create(ctx context.Context, path string, opts raster.CreateOptions) (raster.Writer, error) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("gtiff: removing existing %s: %w", path, err)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("gtiff: creating %s: %w", path, err)
	}

	tw, th := opts.TileSize, opts.TileSize
	if tw <= 0 {
		tw, th = defaultTileSize, defaultTileSize
	}
	tilesAcross := (opts.Width + tw - 1) / tw
	tilesDown := (opts.Height + th - 1) / th
	tilesPerBand := tilesAcross * tilesDown

	w := &Writer{
		f:            f,
		path:         path,
		width:        opts.Width,
		height:       opts.Height,
		bands:        opts.Bands,
		pixType:      opts.Type,
		tileWidth:    tw,
		tileHeight:   th,
		tilesAcross:  tilesAcross,
		tilesDown:    tilesDown,
		tileOffsets:  make([]uint64, opts.Bands*tilesPerBand),
		tileByteCounts: make([]uint64, opts.Bands*tilesPerBand),
		cursor:       bigTiffHeaderSize,
		nullValues:   make([]float64, opts.Bands),
		hasNull:      make([]bool, opts.Bands),
	}

	if _, err := f.Write(make([]byte, bigTiffHeaderSize)); err != nil {
		f.Close()
		return nil, err
	}

	return w, nil
}

// Writer is a tiled BigTIFF output raster: tile data is written as it
// arrives (the writer loop never holds the whole raster in memory); the
// IFD is assembled and appended once at Close, since tile byte counts are
// only known after compression.
type Writer struct {
	mu sync.Mutex

	f    *os.File
	path string

	width, height int
	bands         int
	pixType       raster.PixelType

	tileWidth, tileHeight   int
	tilesAcross, tilesDown  int
	tileOffsets             []uint64
	tileByteCounts          []uint64

	cursor uint64

	transform  raster.Transform
	haveTransform bool
	projection string
	nullValues []float64
	hasNull    []bool
}

func (w *Writer) tileIndex(band, tileRow, tileCol int) int {
	tilesPerBand := w.tilesAcross * w.tilesDown
	return (band-1)*tilesPerBand + tileRow*w.tilesAcross + tileCol
}

// WriteBlock writes arr — expected to be exactly one tile's worth of
// pixels, per the planner's block sizing — at (left, top) of the given
// band, padding to the fixed physical tile size if arr is a right/bottom
// edge remainder block.
func (w *Writer) WriteBlock(ctx context.Context, band, left, top int, arr raster.Array) error {
	if band < 1 || band > w.bands {
		return fmt.Errorf("gtiff: write band %d out of range [1,%d]", band, w.bands)
	}

	tileCol := left / w.tileWidth
	tileRow := top / w.tileHeight

	full := arr
	if arr.Width() != w.tileWidth || arr.Height() != w.tileHeight {
		full = raster.NewArray(w.pixType, w.tileWidth, w.tileHeight)
		if w.hasNull[band-1] {
			full.Fill(w.nullValues[band-1])
		}
		full.PasteFrom(arr, 0, 0)
	}

	raw := full.Bytes()

	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(raw); err != nil {
		zw.Close()
		return fmt.Errorf("gtiff: compressing tile: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("gtiff: compressing tile: %w", err)
	}
	compressed := buf.Bytes()

	w.mu.Lock()
	defer w.mu.Unlock()

	offset := w.cursor
	if _, err := w.f.WriteAt(compressed, int64(offset)); err != nil {
		return fmt.Errorf("gtiff: writing tile at %d: %w", offset, err)
	}
	w.cursor += uint64(len(compressed))

	idx := w.tileIndex(band, tileRow, tileCol)
	w.tileOffsets[idx] = offset
	w.tileByteCounts[idx] = uint64(len(compressed))

	return nil
}

func (w *Writer) SetGeoTransform(t raster.Transform) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.transform = t
	w.haveTransform = true
	return nil
}

func (w *Writer) SetProjection(proj string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.projection = proj
	return nil
}

func (w *Writer) SetNullValue(band int, null float64) error {
	if band < 1 || band > w.bands {
		return fmt.Errorf("gtiff: null value band %d out of range [1,%d]", band, w.bands)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.nullValues[band-1] = null
	w.hasNull[band-1] = true
	return nil
}

// BuildOverviews is a no-op: this driver does not implement overview
// pyramids (see DESIGN.md — Writer.BuildOverviews is documented as
// optional for exactly this reason).
func (w *Writer) BuildOverviews(ctx context.Context, scales []int) error {
	return nil
}

func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	ifdOffset, err := w.writeIFD()
	if err != nil {
		w.f.Close()
		return err
	}

	var header [bigTiffHeaderSize]byte
	binary.LittleEndian.PutUint16(header[0:2], 0x4949) // "II"
	binary.LittleEndian.PutUint16(header[2:4], 43)
	binary.LittleEndian.PutUint16(header[4:6], 8)
	binary.LittleEndian.PutUint16(header[6:8], 0)
	binary.LittleEndian.PutUint64(header[8:16], ifdOffset)
	if _, err := w.f.WriteAt(header[:], 0); err != nil {
		w.f.Close()
		return err
	}

	return w.f.Close()
}

type bigEntry struct {
	tag, dtype uint16
	count      uint64
	inlineVal  uint64 // used when the value fits in 8 bytes
	extData    []byte // used otherwise
}

// writeIFD serializes every tag this driver tracks, placing values over 8
// bytes in an external block immediately following the fixed-size entry
// list (standard TIFF/BigTIFF two-pass layout), and returns the absolute
// file offset of the IFD.
func (w *Writer) writeIFD() (uint64, error) {
	var entries []bigEntry

	entries = append(entries, shortEntry(tagImageWidth, uint64(w.width)))
	entries = append(entries, shortEntry(tagImageLength, uint64(w.height)))
	entries = append(entries, shortEntry(tagTileWidth, uint64(w.tileWidth)))
	entries = append(entries, shortEntry(tagTileLength, uint64(w.tileHeight)))
	entries = append(entries, shortEntry(tagSamplesPerPixel, uint64(w.bands)))
	entries = append(entries, shortEntry(tagCompression, compDeflate))
	entries = append(entries, shortEntry(tagPhotometric, 1)) // BlackIsZero; bands are independent planes
	entries = append(entries, shortEntry(tagPlanarConfig, 2))

	bits := make([]uint16, w.bands)
	formats := make([]uint16, w.bands)
	for i := range bits {
		bits[i] = uint16(w.pixType.Size() * 8)
		formats[i] = sampleFormatOf(w.pixType)
	}
	entries = append(entries, shortSliceEntry(tagBitsPerSample, bits))
	entries = append(entries, shortSliceEntry(tagSampleFormat, formats))

	entries = append(entries, longSliceEntry(tagTileOffsets, w.tileOffsets))
	entries = append(entries, longSliceEntry(tagTileByteCounts, w.tileByteCounts))

	if w.haveTransform {
		entries = append(entries, doubleSliceEntry(tagModelPixelScaleTag,
			[]float64{w.transform.PixelWidth(), w.transform.PixelHeight(), 0}))
		entries = append(entries, doubleSliceEntry(tagModelTiepointTag,
			[]float64{0, 0, 0, w.transform.OriginX(), w.transform.OriginY(), 0}))
	}

	for b := 1; b <= w.bands; b++ {
		if w.hasNull[b-1] {
			entries = append(entries, asciiEntry(tagGDALNoData, fmt.Sprintf("%v", w.nullValues[b-1])))
			break // GDAL_NODATA is a whole-file tag in practice; first band's value wins
		}
	}

	return serializeBigIFD(w.f, w.cursor, entries)
}

func sampleFormatOf(t raster.PixelType) uint16 {
	switch t {
	case raster.Float32, raster.Float64:
		return tiffSampleFloat
	case raster.Int16, raster.Int32:
		return tiffSampleInt
	default:
		return tiffSampleUint
	}
}

func shortEntry(tag uint16, v uint64) bigEntry {
	return bigEntry{tag: tag, dtype: dtShort, count: 1, inlineVal: v}
}

func shortSliceEntry(tag uint16, vs []uint16) bigEntry {
	if len(vs) == 1 {
		return bigEntry{tag: tag, dtype: dtShort, count: 1, inlineVal: uint64(vs[0])}
	}
	buf := make([]byte, len(vs)*2)
	for i, v := range vs {
		binary.LittleEndian.PutUint16(buf[i*2:], v)
	}
	return bigEntry{tag: tag, dtype: dtShort, count: uint64(len(vs)), extData: buf}
}

func longSliceEntry(tag uint16, vs []uint64) bigEntry {
	buf := make([]byte, len(vs)*8)
	for i, v := range vs {
		binary.LittleEndian.PutUint64(buf[i*8:], v)
	}
	return bigEntry{tag: tag, dtype: dtLong8, count: uint64(len(vs)), extData: buf}
}

func doubleSliceEntry(tag uint16, vs []float64) bigEntry {
	buf := make([]byte, len(vs)*8)
	for i, v := range vs {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(v))
	}
	return bigEntry{tag: tag, dtype: dtDouble, count: uint64(len(vs)), extData: buf}
}

func asciiEntry(tag uint16, s string) bigEntry {
	b := append([]byte(s), 0)
	return bigEntry{tag: tag, dtype: dtASCII, count: uint64(len(b)), extData: b}
}

// serializeBigIFD writes [count][entries...][next=0] starting at offset,
// storing any value of 8 bytes or fewer inline in its entry and every
// larger value in an external block right after the entry list. Each
// entry's offset into that block is filled in as the entry list is built;
// the list and the external block are then written with one WriteAt each.
func serializeBigIFD(f *os.File, offset uint64, entries []bigEntry) (uint64, error) {
	const entrySize = 20
	headerLen := 8 + uint64(len(entries))*entrySize + 8
	externalBase := offset + headerLen

	buf := new(bytes.Buffer)
	binary.Write(buf, binary.LittleEndian, uint64(len(entries)))

	extOffset := externalBase
	var external bytes.Buffer
	for _, e := range entries {
		binary.Write(buf, binary.LittleEndian, e.tag)
		binary.Write(buf, binary.LittleEndian, e.dtype)
		binary.Write(buf, binary.LittleEndian, e.count)

		if e.extData == nil {
			var valBuf [8]byte
			binary.LittleEndian.PutUint64(valBuf[:], e.inlineVal)
			buf.Write(valBuf[:])
		} else if len(e.extData) <= 8 {
			var valBuf [8]byte
			copy(valBuf[:], e.extData)
			buf.Write(valBuf[:])
		} else {
			var valBuf [8]byte
			binary.LittleEndian.PutUint64(valBuf[:], extOffset)
			buf.Write(valBuf[:])
			external.Write(e.extData)
			extOffset += uint64(len(e.extData))
		}
	}
	binary.Write(buf, binary.LittleEndian, uint64(0)) // next IFD offset: none

	if _, err := f.WriteAt(buf.Bytes(), int64(offset)); err != nil {
		return 0, err
	}
	if external.Len() > 0 {
		if _, err := f.WriteAt(external.Bytes(), int64(externalBase)); err != nil {
			return 0, err
		}
	}

	return offset, nil
}
