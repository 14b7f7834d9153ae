package gtiff

import "strconv"

// geoInfo is the georeferencing this driver can recover from a GeoTIFF IFD
// or a .tfw sidecar.
type geoInfo struct {
	originX, originY float64
	pixelWidth       float64
	pixelHeight      float64
	epsg             int
}

// GeoKey directory layout: header is 4 uint16s (KeyDirectoryVersion,
// KeyRevision, MinorRevision, NumberOfKeys), followed by NumberOfKeys
// (KeyID, TIFFTagLocation, Count, Value_Offset) quadruples.
const (
	geoKeyProjectedCSType  = 3072
	geoKeyGeographicType   = 2048
	geoKeyDirHeaderLen     = 4
)

func parseGeoInfo(ifd *IFD) geoInfo {
	var g geoInfo

	if len(ifd.ModelPixelScale) >= 2 && len(ifd.ModelTiepoint) >= 6 {
		g.pixelWidth = ifd.ModelPixelScale[0]
		g.pixelHeight = ifd.ModelPixelScale[1]
		// Tiepoint is (I,J,K, X,Y,Z): raster point (I,J) maps to model (X,Y).
		i, j := ifd.ModelTiepoint[0], ifd.ModelTiepoint[1]
		x, y := ifd.ModelTiepoint[3], ifd.ModelTiepoint[4]
		g.originX = x - i*g.pixelWidth
		g.originY = y + j*g.pixelHeight
	}

	g.epsg = parseEPSG(ifd.GeoKeys)
	return g
}

// parseEPSG walks the GeoKey directory for a projected or geographic CRS
// code, returning 0 if neither key is present or the key is a "user
// defined" sentinel (32767).
func parseEPSG(geoKeys []uint16) int {
	if len(geoKeys) < geoKeyDirHeaderLen {
		return 0
	}
	numKeys := int(geoKeys[3])
	for k := 0; k < numKeys; k++ {
		base := geoKeyDirHeaderLen + k*4
		if base+3 >= len(geoKeys) {
			break
		}
		keyID := geoKeys[base]
		tagLoc := geoKeys[base+1]
		value := geoKeys[base+3]
		if tagLoc != 0 {
			continue // value lives in GeoDoubleParams/GeoAsciiParams, not needed for EPSG
		}
		if (keyID == geoKeyProjectedCSType || keyID == geoKeyGeographicType) && value != 32767 {
			return int(value)
		}
	}
	return 0
}

// epsgString renders an EPSG code the way Metadata.Projection stores it:
// "EPSG:<code>", or "" when unknown.
func epsgString(code int) string {
	if code == 0 {
		return ""
	}
	return "EPSG:" + strconv.Itoa(code)
}
