package main

import (
	"context"
	"fmt"
	"os"

	"github.com/neilflood/moamosaic/internal/raster/gtiff"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: imginfo <file.tif> [file.tif...]\n")
		os.Exit(1)
	}

	drv := gtiff.NewDriver()
	ctx := context.Background()

	status := 0
	for _, path := range os.Args[1:] {
		md, err := drv.Stat(ctx, path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
			status = 1
			continue
		}

		xMin, xMax, yMin, yMax := md.BoundsXY()
		fmt.Printf("File: %s\n", path)
		fmt.Printf("  Projection: %s\n", md.Projection)
		fmt.Printf("  Size: %d x %d, %d band(s), type %s\n", md.Width, md.Height, md.Bands, md.Type)
		fmt.Printf("  Pixel size: %g x %g\n", md.Transform.PixelWidth(), md.Transform.PixelHeight())
		fmt.Printf("  Origin: X=%g, Y=%g\n", md.Transform.OriginX(), md.Transform.OriginY())
		fmt.Printf("  Bounds: X=[%g, %g], Y=[%g, %g]\n", xMin, xMax, yMin, yMax)
		if md.HasNull {
			fmt.Printf("  Null value: %g\n", md.NullValue)
		} else {
			fmt.Printf("  Null value: (none)\n")
		}
		fmt.Println()
	}

	os.Exit(status)
}
