package gtiff

import (
	"bufio"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// tfw holds a parsed 6-line world file, used as the georeferencing fallback
// when a TIFF carries no GeoKey directory or ModelTiepoint/ModelPixelScale
// tags.
type tfw struct {
	pixelWidth   float64
	rotationY    float64
	rotationX    float64
	pixelHeight  float64
	originX      float64
	originY      float64
}

// findTFW looks for the sidecar world file next to path, trying the
// conventional suffixes in order.
func findTFW(path string) string {
	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)
	candidates := []string{base + ".tfw", base + ".tifw", path + "w"}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c
		}
	}
	return ""
}

func parseTFW(path string) (tfw, error) {
	f, err := os.Open(path)
	if err != nil {
		return tfw{}, err
	}
	defer f.Close()

	var vals [6]float64
	scanner := bufio.NewScanner(f)
	for i := 0; i < 6 && scanner.Scan(); i++ {
		v, err := strconv.ParseFloat(strings.TrimSpace(scanner.Text()), 64)
		if err != nil {
			return tfw{}, err
		}
		vals[i] = v
	}
	if err := scanner.Err(); err != nil {
		return tfw{}, err
	}

	return tfw{
		pixelWidth:  vals[0],
		rotationY:   vals[1],
		rotationX:   vals[2],
		pixelHeight: vals[3],
		originX:     vals[4],
		originY:     vals[5],
	}, nil
}

func (w tfw) toGeoInfo() geoInfo {
	return geoInfo{
		originX:     w.originX - w.pixelWidth/2,
		originY:     w.originY - w.pixelHeight/2,
		pixelWidth:  w.pixelWidth,
		pixelHeight: -w.pixelHeight,
		epsg:        inferEPSG(w.originX, w.originY),
	}
}

// inferEPSG guesses a CRS from the coordinate ranges a world file's origin
// falls in, for inputs that carry no other georeferencing at all. This is a
// heuristic of last resort: a missing EPSG surfaces to the caller as
// Metadata.Projection == "" either way.
func inferEPSG(x, y float64) int {
	switch {
	case x >= -180 && x <= 180 && y >= -90 && y <= 90:
		return 4326 // WGS84 geographic
	case x >= 2480000 && x <= 2840000 && y >= 1070000 && y <= 1300000:
		return 2056 // Swiss LV95
	case x >= -20037508 && x <= 20037508 && y >= -20037508 && y <= 20037508:
		return 3857 // Web Mercator
	default:
		return 0
	}
}
