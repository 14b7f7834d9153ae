// Package reproj defines the Reprojector interface the orchestrator calls
// between building the catalog and planning the output grid. Actual
// reprojection is out of scope (spec.md §1 Non-goals: mosaicing assumes
// co-gridded inputs) — this package only ships the interface and the
// passthrough implementation that enforces that assumption.
package reproj

import (
	"context"
	"fmt"
	"math"

	"github.com/neilflood/moamosaic/internal/imginfo"
	"github.com/neilflood/moamosaic/internal/raster"
)

const pixelSizeTolerance = 1e-9

// Reprojector aligns a catalog's inputs onto one shared projection and
// pixel size before the planner builds the output grid, returning the
// (possibly rewritten) file list to mosaic and a temp directory the
// orchestrator removes once the run finishes.
type Reprojector interface {
	Align(ctx context.Context, paths []string, cat *imginfo.Catalog) (aligned []string, tmpDir string, err error)
}

// Passthrough is the only Reprojector this module ships: it asserts every
// input already shares one projection and pixel size, and returns the
// input list unchanged. A real reprojecting implementation needs a warp
// kernel, which is out of scope here (spec.md §1) and not grounded in any
// example repo in the retrieval pack — none of them reprojects rasters.
type Passthrough struct{}

func (Passthrough) Align(ctx context.Context, paths []string, cat *imginfo.Catalog) ([]string, string, error) {
	if len(cat.Images) == 0 {
		return paths, "", nil
	}

	first := cat.Images[0].Metadata
	for _, img := range cat.Images[1:] {
		if img.Metadata.Projection != first.Projection {
			return nil, "", fmt.Errorf(
				"reproj: %s has projection %q, expected %q (inputs must already share one projection)",
				img.Path, img.Metadata.Projection, first.Projection)
		}
		if !samePixelSize(img.Metadata, first) {
			return nil, "", fmt.Errorf(
				"reproj: %s has pixel size (%g,%g), expected (%g,%g) (inputs must already be co-gridded)",
				img.Path,
				img.Metadata.Transform.PixelWidth(), img.Metadata.Transform.PixelHeight(),
				first.Transform.PixelWidth(), first.Transform.PixelHeight())
		}
	}

	return paths, "", nil
}

func samePixelSize(a, b raster.Metadata) bool {
	return math.Abs(a.Transform.PixelWidth()-b.Transform.PixelWidth()) < pixelSizeTolerance &&
		math.Abs(a.Transform.PixelHeight()-b.Transform.PixelHeight()) < pixelSizeTolerance
}
