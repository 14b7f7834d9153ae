package reproj

import (
	"context"
	"testing"

	"github.com/neilflood/moamosaic/internal/imginfo"
	"github.com/neilflood/moamosaic/internal/raster"
)

func metaWith(proj string, pixelSize float64) raster.Metadata {
	return raster.Metadata{
		Projection: proj,
		Transform:  raster.Transform{0, pixelSize, 0, 0, 0, -pixelSize},
	}
}

func TestPassthroughAlignAcceptsMatchingInputs(t *testing.T) {
	cat := &imginfo.Catalog{Images: []imginfo.ImageInfo{
		{Path: "a.tif", Metadata: metaWith("EPSG:4326", 10)},
		{Path: "b.tif", Metadata: metaWith("EPSG:4326", 10)},
	}}
	paths := []string{"a.tif", "b.tif"}

	got, tmpDir, err := (Passthrough{}).Align(context.Background(), paths, cat)
	if err != nil {
		t.Fatalf("Align: %v", err)
	}
	if tmpDir != "" {
		t.Errorf("tmpDir = %q, want empty", tmpDir)
	}
	if len(got) != 2 || got[0] != "a.tif" || got[1] != "b.tif" {
		t.Errorf("Align returned %v, want input list unchanged", got)
	}
}

func TestPassthroughAlignRejectsMismatchedProjection(t *testing.T) {
	cat := &imginfo.Catalog{Images: []imginfo.ImageInfo{
		{Path: "a.tif", Metadata: metaWith("EPSG:4326", 10)},
		{Path: "b.tif", Metadata: metaWith("EPSG:3857", 10)},
	}}
	if _, _, err := (Passthrough{}).Align(context.Background(), []string{"a.tif", "b.tif"}, cat); err == nil {
		t.Fatal("expected error for mismatched projections")
	}
}

func TestPassthroughAlignRejectsMismatchedPixelSize(t *testing.T) {
	cat := &imginfo.Catalog{Images: []imginfo.ImageInfo{
		{Path: "a.tif", Metadata: metaWith("EPSG:4326", 10)},
		{Path: "b.tif", Metadata: metaWith("EPSG:4326", 30)},
	}}
	if _, _, err := (Passthrough{}).Align(context.Background(), []string{"a.tif", "b.tif"}, cat); err == nil {
		t.Fatal("expected error for mismatched pixel size")
	}
}

func TestPassthroughAlignEmptyCatalog(t *testing.T) {
	cat := &imginfo.Catalog{}
	got, _, err := (Passthrough{}).Align(context.Background(), []string{}, cat)
	if err != nil {
		t.Fatalf("Align: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Align = %v, want empty", got)
	}
}

func TestSamePixelSizeWithinTolerance(t *testing.T) {
	a := metaWith("EPSG:4326", 10)
	b := metaWith("EPSG:4326", 10+1e-12)
	if !samePixelSize(a, b) {
		t.Error("samePixelSize = false for a difference well under tolerance")
	}
}
