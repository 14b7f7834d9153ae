package planner

import (
	"reflect"
	"testing"

	"github.com/neilflood/moamosaic/internal/imginfo"
	"github.com/neilflood/moamosaic/internal/raster"
)

func fileMeta(xMin, yMax float64, w, h int) raster.Metadata {
	return raster.Metadata{
		Transform: raster.Transform{xMin, 10, 0, yMax, 0, -10},
		Width:     w,
		Height:    h,
		Bands:     1,
		Type:      raster.Byte,
	}
}

func TestBuildGrid(t *testing.T) {
	cat := &imginfo.Catalog{
		Images: []imginfo.ImageInfo{{Path: "a.tif", Index: 0, Metadata: fileMeta(0, 100, 10, 10)}},
		Bounds: imginfo.Bounds{XMin: 0, XMax: 100, YMin: 0, YMax: 100},
	}
	grid := BuildGrid(cat)
	if grid.Width != 10 || grid.Height != 10 {
		t.Errorf("grid size = %dx%d, want 10x10", grid.Width, grid.Height)
	}
	if grid.Transform.OriginX() != 0 || grid.Transform.OriginY() != 100 {
		t.Errorf("origin = (%v,%v), want (0,100)", grid.Transform.OriginX(), grid.Transform.OriginY())
	}
	if grid.Transform.PixelWidth() != 10 || grid.Transform.PixelHeight() != 10 {
		t.Errorf("pixel size = (%v,%v), want (10,10)", grid.Transform.PixelWidth(), grid.Transform.PixelHeight())
	}
}

func TestBuildBlockListClipsRemainder(t *testing.T) {
	grid := Grid{Transform: raster.Transform{0, 10, 0, 100, 0, -10}, Width: 10, Height: 10}
	blocks := BuildBlockList(grid, 6)

	want := []BlockSpec{
		{Left: 0, Top: 0, XSize: 6, YSize: 6},
		{Left: 6, Top: 0, XSize: 4, YSize: 6},
		{Left: 0, Top: 6, XSize: 6, YSize: 4},
		{Left: 6, Top: 6, XSize: 4, YSize: 4},
	}
	if !reflect.DeepEqual(blocks, want) {
		t.Errorf("BuildBlockList = %+v, want %+v", blocks, want)
	}
}

func TestInputsForBlockFullCoverage(t *testing.T) {
	grid := Grid{Transform: raster.Transform{0, 10, 0, 100, 0, -10}, Width: 10, Height: 10}
	cat := &imginfo.Catalog{Images: []imginfo.ImageInfo{
		{Path: "a.tif", Index: 0, Metadata: fileMeta(0, 100, 10, 10)},
	}}
	block := BlockSpec{Left: 6, Top: 6, XSize: 4, YSize: 4}
	got := InputsForBlock(grid, cat, block)
	if !reflect.DeepEqual(got, []int{0}) {
		t.Errorf("InputsForBlock = %v, want [0]", got)
	}
}

func TestInputsForBlockAdjacencyTolerance(t *testing.T) {
	// Unit-pixel grid so file bounds land directly in pixel coordinates.
	grid := Grid{Transform: raster.Transform{0, 1, 0, 0, 0, -1}, Width: 10, Height: 10}
	block := BlockSpec{Left: 5, Top: 0, XSize: 5, YSize: 5}

	// File ending at column 4 is directly adjacent to the block (no gap):
	// the "+1" tolerance is required for this to register as touching.
	adjacent := &imginfo.Catalog{Images: []imginfo.ImageInfo{
		{Index: 0, Metadata: fileMeta(0, 0, 5, 5)}, // right = 4
	}}
	if got := InputsForBlock(grid, adjacent, block); !reflect.DeepEqual(got, []int{0}) {
		t.Errorf("adjacent file: InputsForBlock = %v, want [0]", got)
	}

	// File ending at column 3 leaves a genuine one-pixel gap and must not match.
	gapped := &imginfo.Catalog{Images: []imginfo.ImageInfo{
		{Index: 0, Metadata: fileMeta(0, 0, 4, 5)}, // right = 3
	}}
	if got := InputsForBlock(grid, gapped, block); len(got) != 0 {
		t.Errorf("gapped file: InputsForBlock = %v, want empty", got)
	}
}

func TestBuildReadingListClipsToBlockAndFile(t *testing.T) {
	grid := Grid{Transform: raster.Transform{0, 10, 0, 100, 0, -10}, Width: 10, Height: 10}
	// File covers only the left half of the grid (x[0,50], y[0,100]).
	cat := &imginfo.Catalog{Images: []imginfo.ImageInfo{
		{Index: 0, Metadata: fileMeta(0, 100, 5, 10)},
	}}
	blocks := BuildBlockList(grid, 6)
	inputsPerBlock := InputsPerBlock(grid, cat, blocks)
	list := BuildReadingList(grid, cat, blocks, inputsPerBlock)

	// Block 1 ({6,0,4,6}) does not overlap the file at all (file spans
	// grid columns 0-4; block spans columns 6-9, a one-column gap at 5) —
	// so block 1 should have no reading spec from file 0.
	for _, spec := range list {
		if spec.BlockIndex == 1 {
			t.Errorf("expected no reading spec for block 1 (no overlap), got %+v", spec)
		}
	}

	// Block 0 ({0,0,6,6}) overlaps file columns 0-4 fully.
	foundBlock0 := false
	for _, spec := range list {
		if spec.BlockIndex == 0 {
			foundBlock0 = true
			if spec.SrcXSize != 5 || spec.SrcYSize != 6 {
				t.Errorf("block 0 spec size = %dx%d, want 5x6", spec.SrcXSize, spec.SrcYSize)
			}
			if spec.RowOffset != 0 || spec.ColOffset != 0 {
				t.Errorf("block 0 spec offset = (%d,%d), want (0,0)", spec.RowOffset, spec.ColOffset)
			}
		}
	}
	if !foundBlock0 {
		t.Error("expected a reading spec for block 0")
	}
}

func TestCoverageGaps(t *testing.T) {
	blocks := []BlockSpec{{Left: 0, Top: 0, XSize: 1, YSize: 1}, {Left: 1, Top: 0, XSize: 1, YSize: 1}}
	inputsPerBlock := map[int][]int{0: {0}, 1: {}}
	gaps := CoverageGaps(blocks, inputsPerBlock)
	if len(gaps) != 1 || gaps[0] != blocks[1] {
		t.Errorf("CoverageGaps = %+v, want [%+v]", gaps, blocks[1])
	}
}

func TestDivideByStride(t *testing.T) {
	list := make([]BlockReadingSpec, 7)
	for i := range list {
		list[i] = BlockReadingSpec{BlockIndex: i}
	}
	out := DivideByStride(list, 3)
	if len(out) != 3 {
		t.Fatalf("len(out) = %d, want 3", len(out))
	}
	// list[i::numThreads] partitioning: worker 0 gets indices 0,3,6.
	want0 := []int{0, 3, 6}
	var got0 []int
	for _, s := range out[0] {
		got0 = append(got0, s.BlockIndex)
	}
	if !reflect.DeepEqual(got0, want0) {
		t.Errorf("out[0] block indices = %v, want %v", got0, want0)
	}
}

func TestDivideByStrideZeroThreadsDefaultsToOne(t *testing.T) {
	list := []BlockReadingSpec{{BlockIndex: 0}, {BlockIndex: 1}}
	out := DivideByStride(list, 0)
	if len(out) != 1 || len(out[0]) != 2 {
		t.Errorf("DivideByStride with numThreads=0 = %+v, want single worker with both items", out)
	}
}
