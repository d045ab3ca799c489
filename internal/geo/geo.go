package geo

import (
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/OCAP2/navscore/pkg/core"
	"github.com/wroge/wgs84"
)

// ErrInvalidCoordinates is returned when the coordinates are invalid
var ErrInvalidCoordinates = errors.New("invalid coordinates provided")

// Position3DFromString parses a "x,y" or "x,y,z" string into a core.Position3D.
// Surrounding brackets are accepted, so "[x,y,z]" arrays coming straight from the simulator parse as well.
// NaN and infinite components are rejected.
func Position3DFromString(coords string) (core.Position3D, error) {
	coords = strings.TrimSpace(coords)
	coords = strings.TrimPrefix(coords, "[")
	coords = strings.TrimSuffix(coords, "]")

	parts := strings.Split(coords, ",")
	if len(parts) < 2 {
		return core.Position3D{}, ErrInvalidCoordinates
	}
	if len(parts) > 3 {
		parts = parts[:3]
	}
	var v [3]float64
	for i, part := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return core.Position3D{}, ErrInvalidCoordinates
		}
		v[i] = f
	}
	return core.Position3D{X: v[0], Y: v[1], Z: v[2]}, nil
}

// Position3857From4326 projects a WGS84 longitude/latitude (EPSG:4326) to Web Mercator (EPSG:3857) metres.
// The elevation is carried through unchanged.
func Position3857From4326(longitude, latitude, elevation float64) core.Position3D {
	f := wgs84.EPSG().Transform(4326, 3857)
	x, y, _ := f(longitude, latitude, 0)
	return core.Position3D{X: x, Y: y, Z: elevation}
}
