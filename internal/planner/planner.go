// Package planner builds the output grid and per-block work lists the
// reader pool and writer loop consume.
package planner

import (
	"math"

	"github.com/neilflood/moamosaic/internal/imginfo"
	"github.com/neilflood/moamosaic/internal/raster"
)

// Grid describes the output raster's pixel grid: origin, resolution (taken
// from the first input file, per the original — mosaicing never resamples,
// so every input must already share this resolution), and dimensions.
type Grid struct {
	Transform     raster.Transform
	Width, Height int
}

// BlockSpec is one tile of the output grid, in output pixel coordinates.
type BlockSpec struct {
	Left, Top, XSize, YSize int
}

func (b BlockSpec) right() int  { return b.Left + b.XSize - 1 }
func (b BlockSpec) bottom() int { return b.Top + b.YSize - 1 }

// BlockReadingSpec is one (input file, output block) pairing the reader
// pool must service: the clipped source rectangle to read, and where in
// the block's full-size buffer it lands once padded for any part of the
// block the file doesn't cover.
type BlockReadingSpec struct {
	BlockIndex int
	Block      BlockSpec
	FileIndex  int
	SrcLeft    int
	SrcTop     int
	SrcXSize   int
	SrcYSize   int
	RowOffset  int // offset into the padded block buffer
	ColOffset  int
}

// BuildGrid computes the union output grid from a catalog, using the
// first input's pixel resolution (resampling is out of scope, so every
// input is assumed to already share it).
func BuildGrid(cat *imginfo.Catalog) Grid {
	first := cat.Images[0].Metadata
	xRes := first.Transform.PixelWidth()
	yRes := first.Transform.PixelHeight()

	width := int(math.Round((cat.Bounds.XMax - cat.Bounds.XMin) / xRes))
	height := int(math.Round((cat.Bounds.YMax - cat.Bounds.YMin) / yRes))

	return Grid{
		Transform: raster.Transform{cat.Bounds.XMin, xRes, 0, cat.Bounds.YMax, 0, -yRes},
		Width:     width,
		Height:    height,
	}
}

// BuildBlockList tiles the grid row-major into blockSize×blockSize tiles,
// clipping the rightmost/bottommost row to whatever remainder is left —
// the same layout as makeOutputBlockList.
func BuildBlockList(grid Grid, blockSize int) []BlockSpec {
	var blocks []BlockSpec
	for top := 0; top < grid.Height; top += blockSize {
		ySize := blockSize
		if top+ySize > grid.Height {
			ySize = grid.Height - top
		}
		for left := 0; left < grid.Width; left += blockSize {
			xSize := blockSize
			if left+xSize > grid.Width {
				xSize = grid.Width - left
			}
			blocks = append(blocks, BlockSpec{Left: left, Top: top, XSize: xSize, YSize: ySize})
		}
	}
	return blocks
}

// filePixelBounds returns a file's footprint in output-grid pixel
// coordinates.
func filePixelBounds(grid Grid, md raster.Metadata) (left, top, right, bottom int) {
	xMin, _, _, yMax := md.BoundsXY()
	left = int(math.Round((xMin - grid.Transform.OriginX()) / grid.Transform.PixelWidth()))
	top = int(math.Round((grid.Transform.OriginY() - yMax) / grid.Transform.PixelHeight()))
	right = left + md.Width - 1
	bottom = top + md.Height - 1
	return
}

// InputsForBlock reports which catalog file indices intersect block. The
// "+1" tolerance on the lower bound (fileRight+1 >= blockLeft, rather than
// fileRight >= blockLeft) is carried over unchanged from findInputsPerBlock
// in the original; it treats a file whose last pixel lands exactly one
// short of the block's first pixel as still touching, which only matters
// at exact tile-boundary alignment and is kept rather than "fixed" per
// DESIGN.md's Open Question decision.
func InputsForBlock(grid Grid, cat *imginfo.Catalog, block BlockSpec) []int {
	var matches []int
	for _, img := range cat.Images {
		left, top, right, bottom := filePixelBounds(grid, img.Metadata)
		if (right+1) >= block.Left && (bottom+1) >= block.Top &&
			left <= (block.right()+1) && top <= (block.bottom()+1) {
			matches = append(matches, img.Index)
		}
	}
	return matches
}

// BuildReadingList expands every block's matching inputs into concrete
// BlockReadingSpecs, clipping each file's read rectangle to the block (and
// to the file's own valid pixel domain), and records the offset that
// clipped read lands at within the block's full buffer — mirroring
// readFunc's rowoffset/coloffset padding math in the original.
func BuildReadingList(grid Grid, cat *imginfo.Catalog, blocks []BlockSpec, inputsPerBlock map[int][]int) []BlockReadingSpec {
	var list []BlockReadingSpec
	for blockIdx, block := range blocks {
		for _, fileIdx := range inputsPerBlock[blockIdx] {
			md := cat.Images[fileIdx].Metadata
			fLeft, fTop, fRight, fBottom := filePixelBounds(grid, md)

			srcLeft := max(block.Left, fLeft)
			srcTop := max(block.Top, fTop)
			srcRight := min(block.right(), fRight)
			srcBottom := min(block.bottom(), fBottom)
			if srcLeft > srcRight || srcTop > srcBottom {
				continue
			}

			list = append(list, BlockReadingSpec{
				BlockIndex: blockIdx,
				Block:     block,
				FileIndex: fileIdx,
				SrcLeft:   srcLeft - fLeft,
				SrcTop:    srcTop - fTop,
				SrcXSize:  srcRight - srcLeft + 1,
				SrcYSize:  srcBottom - srcTop + 1,
				RowOffset: srcTop - block.Top,
				ColOffset: srcLeft - block.Left,
			})
		}
	}
	return list
}

// InputsPerBlock computes InputsForBlock for every block at once, keyed by
// block index (the index into the blocks slice BuildBlockList returned).
func InputsPerBlock(grid Grid, cat *imginfo.Catalog, blocks []BlockSpec) map[int][]int {
	result := make(map[int][]int, len(blocks))
	for i, b := range blocks {
		result[i] = InputsForBlock(grid, cat, b)
	}
	return result
}

// CoverageGaps returns the blocks no input touches — not an error, since
// such blocks are simply written all-null, but a diagnostic the
// orchestrator can log.
func CoverageGaps(blocks []BlockSpec, inputsPerBlock map[int][]int) []BlockSpec {
	var gaps []BlockSpec
	for i, b := range blocks {
		if len(inputsPerBlock[i]) == 0 {
			gaps = append(gaps, b)
		}
	}
	return gaps
}

// DivideByStride splits list across numThreads workers using the same
// stride partition as divideBlocksByThread (list[i::numThreads]), which is
// what makes output ordering independent of how many threads are used —
// each worker still processes the same relative slice of work, just more
// or fewer of them run concurrently.
func DivideByStride(list []BlockReadingSpec, numThreads int) [][]BlockReadingSpec {
	if numThreads < 1 {
		numThreads = 1
	}
	out := make([][]BlockReadingSpec, numThreads)
	for i, spec := range list {
		w := i % numThreads
		out[w] = append(out[w], spec)
	}
	return out
}
