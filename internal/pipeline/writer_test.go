package pipeline

import (
	"context"
	"testing"

	"github.com/neilflood/moamosaic/internal/planner"
	"github.com/neilflood/moamosaic/internal/raster"
)

type writtenBlock struct {
	band, left, top int
	values          [][]float64
}

type fakeWriter struct {
	blocks []writtenBlock
}

func snapshot(a raster.Array) [][]float64 {
	out := make([][]float64, a.Height())
	for r := range out {
		out[r] = make([]float64, a.Width())
		for c := range out[r] {
			out[r][c] = a.GetFloat(r, c)
		}
	}
	return out
}

func (w *fakeWriter) WriteBlock(ctx context.Context, band, left, top int, arr raster.Array) error {
	w.blocks = append(w.blocks, writtenBlock{band: band, left: left, top: top, values: snapshot(arr)})
	return nil
}
func (w *fakeWriter) SetGeoTransform(t raster.Transform) error { return nil }
func (w *fakeWriter) SetProjection(proj string) error          { return nil }
func (w *fakeWriter) SetNullValue(band int, null float64) error { return nil }
func (w *fakeWriter) BuildOverviews(ctx context.Context, scales []int) error { return nil }
func (w *fakeWriter) Close() error { return nil }

const writerTestNull = -1.0

func TestWriterLoopWritesAllNullForUncoveredBlocks(t *testing.T) {
	out := &fakeWriter{}
	q := NewQueue(4)
	cache := NewBlockCache()
	pool := NewBufPool()
	w := NewWriterLoop(q, cache, pool, out, 1, raster.Int16, writerTestNull, nil, nil)

	blocks := []planner.BlockSpec{{Left: 0, Top: 0, XSize: 2, YSize: 2}}
	inputsPerBlock := map[int][]int{0: {}}

	q.Close()
	if err := w.Run(context.Background(), blocks, inputsPerBlock); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(out.blocks) != 1 {
		t.Fatalf("len(blocks written) = %d, want 1", len(out.blocks))
	}
	for _, row := range out.blocks[0].values {
		for _, v := range row {
			if v != writerTestNull {
				t.Errorf("uncovered block value = %v, want null %v", v, writerTestNull)
			}
		}
	}
}

func TestWriterLoopMergesCompleteBlockFromQueue(t *testing.T) {
	out := &fakeWriter{}
	q := NewQueue(4)
	cache := NewBlockCache()
	pool := NewBufPool()
	w := NewWriterLoop(q, cache, pool, out, 1, raster.Int16, writerTestNull, nil, nil)

	block := planner.BlockSpec{Left: 0, Top: 0, XSize: 1, YSize: 1}
	blocks := []planner.BlockSpec{block}
	inputsPerBlock := map[int][]int{0: {0, 1}}

	a0 := raster.NewArray(raster.Int16, 1, 1)
	a0.SetFloat(0, 0, writerTestNull)
	a1 := raster.NewArray(raster.Int16, 1, 1)
	a1.SetFloat(0, 0, 42)

	if err := q.Put(context.Background(), BlockReadResult{BlockIndex: 0, FileIndex: 0, Block: block, Data: a0}); err != nil {
		t.Fatal(err)
	}
	if err := q.Put(context.Background(), BlockReadResult{BlockIndex: 0, FileIndex: 1, Block: block, Data: a1}); err != nil {
		t.Fatal(err)
	}
	q.Close()

	if err := w.Run(context.Background(), blocks, inputsPerBlock); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(out.blocks) != 1 {
		t.Fatalf("len(blocks written) = %d, want 1", len(out.blocks))
	}
	if got := out.blocks[0].values[0][0]; got != 42 {
		t.Errorf("merged value = %v, want 42 (file 1's non-null value)", got)
	}

	min, max, ok := w.MinMax()
	if !ok || min != 42 || max != 42 {
		t.Errorf("MinMax = (%v,%v,%v), want (42,42,true)", min, max, ok)
	}
}

func TestWriterLoopProgressCallback(t *testing.T) {
	out := &fakeWriter{}
	q := NewQueue(4)
	cache := NewBlockCache()
	pool := NewBufPool()

	var calls []int
	w := NewWriterLoop(q, cache, pool, out, 1, raster.Int16, writerTestNull, func(done, total int) {
		calls = append(calls, done)
	}, nil)

	blocks := []planner.BlockSpec{
		{Left: 0, Top: 0, XSize: 1, YSize: 1},
		{Left: 1, Top: 0, XSize: 1, YSize: 1},
	}
	inputsPerBlock := map[int][]int{0: {}, 1: {}}

	q.Close()
	if err := w.Run(context.Background(), blocks, inputsPerBlock); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(calls) != 2 || calls[0] != 1 || calls[1] != 2 {
		t.Errorf("progress calls = %v, want [1 2]", calls)
	}
}

func TestWriterLoopWritesInRowMajorOrderDespiteArrivalOrder(t *testing.T) {
	out := &fakeWriter{}
	q := NewQueue(4)
	cache := NewBlockCache()
	pool := NewBufPool()
	w := NewWriterLoop(q, cache, pool, out, 1, raster.Int16, writerTestNull, nil, nil)

	blocks := []planner.BlockSpec{
		{Left: 0, Top: 0, XSize: 1, YSize: 1},
		{Left: 1, Top: 0, XSize: 1, YSize: 1},
	}
	inputsPerBlock := map[int][]int{0: {0}, 1: {0}}

	a1 := raster.NewArray(raster.Int16, 1, 1)
	a1.SetFloat(0, 0, 2)
	a0 := raster.NewArray(raster.Int16, 1, 1)
	a0.SetFloat(0, 0, 1)

	// Block 1's contribution arrives before block 0's.
	if err := q.Put(context.Background(), BlockReadResult{BlockIndex: 1, FileIndex: 0, Block: blocks[1], Data: a1}); err != nil {
		t.Fatal(err)
	}
	if err := q.Put(context.Background(), BlockReadResult{BlockIndex: 0, FileIndex: 0, Block: blocks[0], Data: a0}); err != nil {
		t.Fatal(err)
	}
	q.Close()

	if err := w.Run(context.Background(), blocks, inputsPerBlock); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(out.blocks) != 2 {
		t.Fatalf("len(blocks written) = %d, want 2", len(out.blocks))
	}
	if got := out.blocks[0].left; got != 0 {
		t.Errorf("first block written has left=%d, want 0 (row-major order, not arrival order)", got)
	}
	if got := out.blocks[1].left; got != 1 {
		t.Errorf("second block written has left=%d, want 1", got)
	}
}

// TestWriterLoopObservesGauges pins onGauge to the block cache and queue's
// live sizes (spec.md §4.8 step 4's "update min/max gauges for block-cache
// size and queue depth"), fired once per Run iteration rather than left
// unobserved for the whole run.
func TestWriterLoopObservesGauges(t *testing.T) {
	out := &fakeWriter{}
	q := NewQueue(4)
	cache := NewBlockCache()
	pool := NewBufPool()

	var cacheSizes, queueDepths []int
	w := NewWriterLoop(q, cache, pool, out, 1, raster.Int16, writerTestNull, nil,
		func(cacheSize, queueDepth int) {
			cacheSizes = append(cacheSizes, cacheSize)
			queueDepths = append(queueDepths, queueDepth)
		})

	blocks := []planner.BlockSpec{
		{Left: 0, Top: 0, XSize: 1, YSize: 1},
		{Left: 1, Top: 0, XSize: 1, YSize: 1},
	}
	inputsPerBlock := map[int][]int{0: {}, 1: {}}

	q.Close()
	if err := w.Run(context.Background(), blocks, inputsPerBlock); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(cacheSizes) != 2 || len(queueDepths) != 2 {
		t.Fatalf("gauge calls = %d cache, %d queue, want 2 each (one per block)", len(cacheSizes), len(queueDepths))
	}
}

func TestWriterLoopQueueClosedWithPendingWorkErrors(t *testing.T) {
	out := &fakeWriter{}
	q := NewQueue(4)
	cache := NewBlockCache()
	pool := NewBufPool()
	w := NewWriterLoop(q, cache, pool, out, 1, raster.Int16, writerTestNull, nil, nil)

	blocks := []planner.BlockSpec{{Left: 0, Top: 0, XSize: 1, YSize: 1}}
	inputsPerBlock := map[int][]int{0: {0}} // wants 1 contribution, never arrives

	q.Close()
	if err := w.Run(context.Background(), blocks, inputsPerBlock); err == nil {
		t.Fatal("expected error when the queue closes with a block still pending")
	}
}
