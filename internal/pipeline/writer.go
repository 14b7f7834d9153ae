package pipeline

import (
	"context"
	"fmt"

	"github.com/neilflood/moamosaic/internal/planner"
	"github.com/neilflood/moamosaic/internal/raster"
)

// WriterLoop is the sole owner of the output raster.Writer for one band.
// It drains the block queue, accumulates each block's contributions in
// the block cache, merges a block once it is complete — in ascending
// file-index order regardless of the arrival order reader goroutines
// produced — and writes blocks in strict row-major order (see Run). Blocks
// no input touches are written all-null when their turn comes, without
// waiting on the queue.
//
// It blocks on Queue.Get, which returns ctx.Err() the moment a reader
// goroutine's errgroup context is canceled, so a reader fault propagates
// here without any separate polling or side-channel error check.
type WriterLoop struct {
	queue   *BlockCache
	q       *Queue
	pool    *BufPool
	out     raster.Writer
	band    int
	pixType raster.PixelType

	nullValue float64

	minSeen, maxSeen float64
	haveMinMax       bool

	onBlockDone func(done, total int)
	onGauge     func(cacheSize, queueDepth int)
}

// NewWriterLoop builds a WriterLoop writing into out's given band.
// onGauge, if non-nil, is called once per iteration of Run's main loop
// with the block cache's current size and the queue's current depth —
// the min/max gauges spec.md §3/§6/§4.8 step 4 calls for, updated only
// here since the writer is the sole place monitoring gauges change
// (spec.md §5's "written only by the writer thread").
func NewWriterLoop(q *Queue, cache *BlockCache, pool *BufPool, out raster.Writer, band int, pixType raster.PixelType, nullValue float64, onBlockDone func(done, total int), onGauge func(cacheSize, queueDepth int)) *WriterLoop {
	return &WriterLoop{queue: cache, q: q, pool: pool, out: out, band: band, pixType: pixType, nullValue: nullValue, onBlockDone: onBlockDone, onGauge: onGauge}
}

func (w *WriterLoop) observeGauges() {
	if w.onGauge != nil {
		w.onGauge(w.queue.Size(), w.q.Len())
	}
}

// Run writes every block in blocks in strict row-major order (spec.md
// §4.8/§5: "output tiles are written in row-major order"). next is the
// index of the block the loop is currently waiting to emit; a block that
// completes out of turn is held in readyAhead until next catches up to
// it, rather than written the instant it completes — that's what keeps
// the write sequence deterministic and independent of which reader
// happens to finish a given tile first.
func (w *WriterLoop) Run(ctx context.Context, blocks []planner.BlockSpec, inputsPerBlock map[int][]int) error {
	total := len(blocks)
	done := 0
	readyAhead := make(map[int]raster.Array)

	for i, want := range inputsPerBlock {
		if n := len(want); n > 0 {
			w.queue.SetWant(i, n)
		}
	}

	next := 0
	for next < total {
		w.observeGauges()

		if len(inputsPerBlock[next]) == 0 {
			if err := w.writeAllNull(ctx, blocks[next]); err != nil {
				return err
			}
			next++
			done++
			if w.onBlockDone != nil {
				w.onBlockDone(done, total)
			}
			continue
		}

		if merged, ok := readyAhead[next]; ok {
			delete(readyAhead, next)
			if err := w.writeBlock(ctx, blocks[next], merged); err != nil {
				return err
			}
			w.pool.Put(merged.Type(), blocks[next].XSize, blocks[next].YSize, merged)
			next++
			done++
			if w.onBlockDone != nil {
				w.onBlockDone(done, total)
			}
			continue
		}

		result, ok, err := w.q.Get(ctx)
		if err != nil {
			return fmt.Errorf("pipeline: writer loop: %w", err)
		}
		if !ok {
			return fmt.Errorf("pipeline: block queue closed with block %d still pending", next)
		}

		complete := w.queue.Add(result.BlockIndex, result.FileIndex, result.Data)
		if !complete {
			continue
		}

		merged, err := w.queue.Merge(result.BlockIndex, w.nullValue)
		if err != nil {
			return err
		}
		readyAhead[result.BlockIndex] = merged
	}

	return nil
}

func (w *WriterLoop) writeAllNull(ctx context.Context, block planner.BlockSpec) error {
	arr := w.pool.Get(w.pixType, block.XSize, block.YSize)
	arr.Fill(w.nullValue)
	defer w.pool.Put(arr.Type(), block.XSize, block.YSize, arr)
	return w.out.WriteBlock(ctx, w.band, block.Left, block.Top, arr)
}

func (w *WriterLoop) writeBlock(ctx context.Context, block planner.BlockSpec, arr raster.Array) error {
	w.trackMinMax(arr)
	return w.out.WriteBlock(ctx, w.band, block.Left, block.Top, arr)
}

// trackMinMax feeds the Monitoring component's gauge range (C9), updated
// here rather than by a second pass over written pixels.
func (w *WriterLoop) trackMinMax(arr raster.Array) {
	hw, hh := arr.Width(), arr.Height()
	for r := 0; r < hh; r++ {
		for c := 0; c < hw; c++ {
			v := arr.GetFloat(r, c)
			if v == w.nullValue {
				continue
			}
			if !w.haveMinMax {
				w.minSeen, w.maxSeen = v, v
				w.haveMinMax = true
				continue
			}
			if v < w.minSeen {
				w.minSeen = v
			}
			if v > w.maxSeen {
				w.maxSeen = v
			}
		}
	}
}

// MinMax returns the minimum and maximum non-null sample value written so
// far, and whether any non-null sample has been seen at all.
func (w *WriterLoop) MinMax() (min, max float64, ok bool) {
	return w.minSeen, w.maxSeen, w.haveMinMax
}
