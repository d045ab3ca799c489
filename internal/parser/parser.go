// Package parser converts raw command arguments into world updates.
package parser

import (
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/OCAP2/navscore/internal/config"
	"github.com/OCAP2/navscore/internal/geo"
	"github.com/OCAP2/navscore/internal/util"
	"github.com/OCAP2/navscore/pkg/core"
)

// MarkerPosition is a position report for one gate marker.
type MarkerPosition struct {
	Name     string
	Position core.Position3D
}

// VehiclePose is a pose report for one vehicle.
type VehiclePose struct {
	Name string
	Pose core.Pose
}

// Parser provides pure []string -> model struct conversion.
// It has zero external dependencies beyond a logger.
type Parser struct {
	logger *slog.Logger
	frame  string
}

// NewParser creates a parser for positions given in frame (config.FrameLocal or config.FrameWGS84).
func NewParser(logger *slog.Logger, frame string) *Parser {
	if frame == "" {
		frame = config.FrameLocal
	}
	return &Parser{
		logger: logger,
		frame:  frame,
	}
}

// fixArgs undoes the quoting applied by the sender.
func fixArgs(data []string) {
	for i, v := range data {
		data[i] = util.FixEscapeQuotes(util.TrimQuotes(strings.TrimSpace(v)))
	}
}

func (p *Parser) position(s string) (core.Position3D, error) {
	pos, err := geo.Position3DFromString(s)
	if err != nil {
		return pos, err
	}
	if p.frame == config.FrameWGS84 {
		// x,y,z arrive as lon,lat,elevation
		pos = geo.Position3857From4326(pos.X, pos.Y, pos.Z)
		if math.IsInf(pos.X, 0) || math.IsInf(pos.Y, 0) || math.IsNaN(pos.X) || math.IsNaN(pos.Y) {
			return core.Position3D{}, geo.ErrInvalidCoordinates
		}
	}
	return pos, nil
}

// ParseMarkerPosition parses [name, "[x,y,z]"].
func (p *Parser) ParseMarkerPosition(data []string) (MarkerPosition, error) {
	var result MarkerPosition
	if len(data) < 2 {
		return result, fmt.Errorf("expected 2 args, got %d", len(data))
	}
	fixArgs(data)

	result.Name = data[0]
	if result.Name == "" {
		return result, fmt.Errorf("empty marker name")
	}

	pos, err := p.position(data[1])
	if err != nil {
		return result, fmt.Errorf("error parsing marker position: %w", err)
	}
	result.Position = pos

	return result, nil
}

// ParseVehiclePose parses [name, "[x,y,z]", yaw]. Yaw is in degrees counter-clockwise
// from +X and may be omitted, in which case the pose carries no heading.
func (p *Parser) ParseVehiclePose(data []string) (VehiclePose, error) {
	var result VehiclePose
	if len(data) < 2 {
		return result, fmt.Errorf("expected at least 2 args, got %d", len(data))
	}
	fixArgs(data)

	result.Name = data[0]
	if result.Name == "" {
		return result, fmt.Errorf("empty vehicle name")
	}

	pos, err := p.position(data[1])
	if err != nil {
		return result, fmt.Errorf("error parsing vehicle position: %w", err)
	}
	result.Pose.Position = pos

	result.Pose.Yaw = math.NaN()
	if len(data) > 2 && data[2] != "" {
		deg, err := strconv.ParseFloat(data[2], 64)
		switch {
		case err != nil:
			p.logger.Warn("Error parsing vehicle yaw", "vehicle", result.Name, "error", err)
		case math.IsInf(deg, 0) || math.IsNaN(deg):
			p.logger.Warn("Ignoring non-finite vehicle yaw", "vehicle", result.Name, "yaw", data[2])
		default:
			result.Pose.Yaw = util.DegToRad(deg)
		}
	}

	return result, nil
}

// ParseGateDefinition parses [name, leftMarker, rightMarker].
func (p *Parser) ParseGateDefinition(data []string) (config.GateConfig, error) {
	var gate config.GateConfig
	if len(data) < 3 {
		return gate, fmt.Errorf("expected 3 args, got %d", len(data))
	}
	fixArgs(data)

	gate = config.GateConfig{
		Name:        data[0],
		LeftMarker:  data[1],
		RightMarker: data[2],
	}
	if gate.LeftMarker == "" || gate.RightMarker == "" {
		return gate, fmt.Errorf("gate %q: %w", gate.Name, config.ErrMissingMarker)
	}
	return gate, nil
}
