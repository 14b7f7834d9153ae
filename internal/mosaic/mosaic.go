// Package mosaic implements the Orchestrator (C10): the sequence that
// turns a list of input rasters into one mosaicked output raster.
// Grounded on original_source/moamosaic/mosaic.py's doMosaic.
package mosaic

import (
	"context"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/neilflood/moamosaic/internal/imginfo"
	"github.com/neilflood/moamosaic/internal/monitor"
	"github.com/neilflood/moamosaic/internal/pipeline"
	"github.com/neilflood/moamosaic/internal/planner"
	"github.com/neilflood/moamosaic/internal/raster"
	"github.com/neilflood/moamosaic/internal/raster/gtiff"
	"github.com/neilflood/moamosaic/internal/reproj"
)

var gtiffDriver = gtiff.NewDriver()

// Default tuning parameters, matching original_source/moamosaic/mosaic.py's
// DFLT_NUMTHREADS / DFLT_BLOCKSIZE / DFLT_DRIVER.
const (
	DefaultNumThreads = 4
	DefaultBlockSize  = 1024
	DefaultDriver     = "GTiff"
)

// Options configures a mosaic run (spec.md §6's input configuration,
// original_source's getCmdargs): a plain struct, defaulted and validated
// when Run starts, matching the teacher's tile.Config shape — command-line parsing itself
// is cmd/moamosaic's concern, not this package's.
type Options struct {
	InputFiles      []string
	OutputFile      string
	NumThreads      int
	BlockSize       int
	DriverName      string
	CreationOptions []string
	NullValue       float64
	HasNullValue    bool
	OmitPyramids    bool
	Reprojector     reproj.Reprojector // defaults to reproj.Passthrough{} when nil

	// Registerer, if non-nil, registers moamosaic's Prometheus gauges
	// against it (see monitor.NewMetrics) — for embedding the engine
	// inside a long-running process that already exposes a /metrics
	// endpoint. A nil Registerer (the default for one-shot CLI runs)
	// still builds an inert Metrics handle, just an unregistered one.
	Registerer prometheus.Registerer
}

func (o *Options) setDefaults() {
	if o.NumThreads < 1 {
		o.NumThreads = DefaultNumThreads
	}
	if o.BlockSize < 1 {
		o.BlockSize = DefaultBlockSize
	}
	if o.DriverName == "" {
		o.DriverName = DefaultDriver
	}
	if o.Reprojector == nil {
		o.Reprojector = reproj.Passthrough{}
	}
}

func (o Options) validate() error {
	if len(o.InputFiles) == 0 {
		return fmt.Errorf("mosaic: no input files given")
	}
	if o.OutputFile == "" {
		return fmt.Errorf("mosaic: no output file given")
	}
	return nil
}

// driverFor resolves a driver name to a concrete raster.Driver. Only
// "GTiff" has a working implementation in this module; other entries in
// raster.CreationDefaults document defaults without a driver behind them.
func driverFor(name string) (raster.Driver, error) {
	switch name {
	case "GTiff":
		return gtiffDriver, nil
	default:
		return nil, fmt.Errorf("mosaic: unsupported driver %q (only GTiff is implemented)", name)
	}
}

// Run sequences the full mosaicing pipeline and returns the accumulated
// monitoring report.
func Run(ctx context.Context, opts Options, log *monitor.Logger) (monitor.Report, error) {
	opts.setDefaults()
	if err := opts.validate(); err != nil {
		return monitor.Report{}, err
	}

	mon := monitor.New()
	mon.Params["numThreads"] = opts.NumThreads
	mon.Params["blockSize"] = opts.BlockSize
	mon.Params["driver"] = opts.DriverName

	drv, err := driverFor(opts.DriverName)
	if err != nil {
		return monitor.Report{}, err
	}

	// Step 2: catalog.
	endCatalog := mon.StartPhase(monitor.PhaseImgInfoDict)
	cat, err := imginfo.BuildCatalog(ctx, opts.InputFiles, drv)
	endCatalog()
	if err != nil {
		return monitor.Report{}, err
	}

	// Step 3: reprojection / co-gridding assertion.
	endProj := mon.StartPhase(monitor.PhaseProjection)
	alignedPaths, tmpDir, err := opts.Reprojector.Align(ctx, opts.InputFiles, cat)
	endProj()
	if err != nil {
		return monitor.Report{}, err
	}
	if tmpDir != "" {
		defer os.RemoveAll(tmpDir)
	}

	// Step 4: planning.
	endPlan := mon.StartPhase(monitor.PhaseAnalysis)
	grid := planner.BuildGrid(cat)
	blocks := planner.BuildBlockList(grid, opts.BlockSize)
	inputsPerBlock := planner.InputsPerBlock(grid, cat, blocks)
	readingList := planner.BuildReadingList(grid, cat, blocks, inputsPerBlock)
	work := planner.DivideByStride(readingList, opts.NumThreads)
	endPlan()

	if gaps := planner.CoverageGaps(blocks, inputsPerBlock); len(gaps) > 0 && log != nil {
		log.Warnf("mosaic: %d of %d output blocks have no covering input and will be written all-null",
			len(gaps), len(blocks))
	}

	metrics := monitor.NewMetrics(opts.Registerer)

	// At orchestrator start (before any band runs): sanity-check the
	// queue's worst-case footprint against detected system RAM.
	first := cat.Images[0].Metadata
	queueCapacity := 2 * len(work)
	blockBytes := opts.BlockSize * opts.BlockSize * first.Type.Size()
	if log != nil {
		monitor.CheckMemoryBudget(log, queueCapacity, blockBytes, monitor.DefaultMemoryPressureFraction)
	}

	// Step 5: create output.
	creationOpts := opts.CreationOptions
	if len(creationOpts) == 0 {
		creationOpts = raster.CreationDefaults[opts.DriverName]
	}
	out, err := drv.Create(ctx, opts.OutputFile, raster.CreateOptions{
		Width:          grid.Width,
		Height:         grid.Height,
		Bands:          first.Bands,
		Type:           first.Type,
		CreationOption: creationOpts,
		TileSize:       opts.BlockSize,
	})
	if err != nil {
		return monitor.Report{}, fmt.Errorf("mosaic: creating output: %w", err)
	}

	nullValue := first.NullValue
	if opts.HasNullValue {
		nullValue = opts.NullValue
	}

	// Step 6: per-band mosaicing (sequential across bands — no
	// cross-band parallelism, spec.md §1/§5).
	endDomosaic := mon.StartPhase(monitor.PhaseDoMosaic)
	for band := 1; band <= first.Bands; band++ {
		if err := runBand(ctx, band, alignedPaths, grid, blocks, inputsPerBlock, work, drv, out, first.Type, nullValue, mon, metrics, log); err != nil {
			out.Close()
			endDomosaic()
			return monitor.Report{}, err
		}
		if err := out.SetNullValue(band, nullValue); err != nil {
			out.Close()
			endDomosaic()
			return monitor.Report{}, err
		}
	}
	endDomosaic()

	if err := out.SetGeoTransform(grid.Transform); err != nil {
		out.Close()
		return monitor.Report{}, err
	}
	if err := out.SetProjection(first.Projection); err != nil {
		out.Close()
		return monitor.Report{}, err
	}

	// Step 7: overviews.
	endPyramids := mon.StartPhase(monitor.PhasePyramids)
	if !opts.OmitPyramids {
		if err := out.BuildOverviews(ctx, []int{4, 8, 16, 32, 64, 128, 256, 512}); err != nil {
			out.Close()
			endPyramids()
			return monitor.Report{}, err
		}
	}
	endPyramids()

	if err := out.Close(); err != nil {
		return monitor.Report{}, err
	}

	return mon.Report(), nil
}

// runBand drives one band's Reader Pool + Writer Loop to completion.
func runBand(
	ctx context.Context,
	band int,
	paths []string,
	grid planner.Grid,
	blocks []planner.BlockSpec,
	inputsPerBlock map[int][]int,
	work [][]planner.BlockReadingSpec,
	drv raster.Driver,
	out raster.Writer,
	pixType raster.PixelType,
	nullValue float64,
	mon *monitor.Monitoring,
	metrics *monitor.Metrics,
	log *monitor.Logger,
) error {
	queue := pipeline.NewQueue(2 * len(work))
	blockCache := pipeline.NewBlockCache()
	pool := pipeline.NewBufPool()

	progress := monitor.NewProgressBar(fmt.Sprintf("band %d", band), int64(len(blocks)))
	defer progress.Finish()

	lastDone := 0
	writerLoop := pipeline.NewWriterLoop(queue, blockCache, pool, out, band, pixType, nullValue,
		func(done, total int) {
			progress.Set(int64(done))
			mon.Observe(fmt.Sprintf("band%d_blocksWritten", band), float64(done))
			for ; lastDone < done; lastDone++ {
				metrics.IncBlocksWritten()
			}
		},
		func(cacheSize, queueDepth int) {
			mon.Observe("blockCacheSize", float64(cacheSize))
			mon.Observe("blockQueueSize", float64(queueDepth))
			metrics.SetBlockCacheSize(cacheSize)
			metrics.SetBlockQueueSize(queueDepth)
		},
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := pipeline.RunReaders(gctx, drv, queue, pool, paths, band, pixType, nullValue, work)
		queue.Close()
		return err
	})
	g.Go(func() error {
		return writerLoop.Run(gctx, blocks, inputsPerBlock)
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("mosaic: band %d: %w", band, err)
	}

	if min, max, ok := writerLoop.MinMax(); ok {
		mon.Observe(fmt.Sprintf("band%d_pixelvalue_min", band), min)
		mon.Observe(fmt.Sprintf("band%d_pixelvalue_max", band), max)
	}

	return nil
}
