package geo

import (
	"fmt"

	"github.com/OCAP2/navscore/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
)

// GateSegment builds the line string between the two markers of a gate.
// Markers sharing an XY position have no segment and return an error.
func GateSegment(left, right core.Position3D) (geom.LineString, error) {
	seq := geom.NewSequence([]float64{
		left.X, left.Y, left.Z,
		right.X, right.Y, right.Z,
	}, geom.DimXYZ)
	ls, err := geom.NewLineString(seq)
	if err != nil {
		return geom.LineString{}, fmt.Errorf("creating gate segment: %w", err)
	}
	return ls, nil
}

// GateSegmentWKT returns the gate segment as WKT, the format stored in the database.
func GateSegmentWKT(left, right core.Position3D) (string, error) {
	ls, err := GateSegment(left, right)
	if err != nil {
		return "", err
	}
	return ls.AsText(), nil
}

// PointWKT returns a position as a WKT point.
func PointWKT(p core.Position3D) (string, error) {
	pt, err := geom.NewPoint(geom.Coordinates{
		XY:   geom.XY{X: p.X, Y: p.Y},
		Z:    p.Z,
		Type: geom.DimXYZ,
	})
	if err != nil {
		return "", fmt.Errorf("creating point: %w", err)
	}
	return pt.AsText(), nil
}
