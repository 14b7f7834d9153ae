package pipeline

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/neilflood/moamosaic/internal/handlecache"
	"github.com/neilflood/moamosaic/internal/planner"
	"github.com/neilflood/moamosaic/internal/raster"
)

// RunReaders runs the reader pool: one goroutine per stride-partitioned
// work list (planner.DivideByStride), each reading its assigned blocks in
// turn and putting a padded, block-shaped contribution on queue. Each
// goroutine owns its own handlecache.Cache, never shared with the others
// (spec.md §4.4/§5: a handle cache belongs to exactly one reader) — a file
// that lands in more than one partition is opened once per reader that
// needs it, never more than once per reader. A single reader fault cancels
// every other reader via errgroup's shared context, failing fast rather
// than letting the rest run to completion against a mosaic that's already
// doomed.
func RunReaders(
	ctx context.Context,
	drv raster.Driver,
	queue *Queue,
	pool *BufPool,
	paths []string,
	band int,
	pixType raster.PixelType,
	nullValue float64,
	work [][]planner.BlockReadingSpec,
) error {
	g, gctx := errgroup.WithContext(ctx)

	for _, workerList := range work {
		workerList := workerList
		g.Go(func() error {
			cache := handlecache.New(drv)
			for _, spec := range workerList {
				cache.SetRemaining(paths[spec.FileIndex], 1)
			}
			defer cache.CloseAll()

			for _, spec := range workerList {
				if err := gctx.Err(); err != nil {
					return err
				}

				path := paths[spec.FileIndex]
				h, err := cache.Acquire(gctx, path)
				if err != nil {
					return err
				}

				clipped, err := h.ReadBlock(gctx, band, spec.SrcLeft, spec.SrcTop, spec.SrcXSize, spec.SrcYSize)
				if err != nil {
					cache.Release(path)
					return fmt.Errorf("pipeline: reading block %d from %s: %w", spec.BlockIndex, path, err)
				}

				padded := pool.Get(pixType, spec.Block.XSize, spec.Block.YSize)
				padded.Fill(nullValue)
				padded.PasteFrom(clipped, spec.RowOffset, spec.ColOffset)

				if err := cache.Release(path); err != nil {
					return err
				}

				result := BlockReadResult{
					BlockIndex: spec.BlockIndex,
					FileIndex:  spec.FileIndex,
					Block:      spec.Block,
					Data:       padded,
				}
				if err := queue.Put(gctx, result); err != nil {
					return err
				}
			}
			return nil
		})
	}

	return g.Wait()
}
