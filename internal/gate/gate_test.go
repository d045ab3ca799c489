package gate

import (
	"math"
	"testing"

	"github.com/OCAP2/navscore/pkg/core"
	"github.com/stretchr/testify/assert"
)

func TestRecompute_AxisAligned(t *testing.T) {
	// Left marker at +Y, right at -Y: up x (left - right) points along -X.
	g := Recompute(core.Position3D{Y: 5}, core.Position3D{Y: -5})

	assert.InDelta(t, 0, g.Pose.Position.X, 1e-12)
	assert.InDelta(t, 0, g.Pose.Position.Y, 1e-12)
	assert.InDelta(t, 10, g.Width, 1e-12)
	assert.InDelta(t, math.Pi, math.Abs(g.Pose.Yaw), 1e-12)
}

func TestRecompute_Center(t *testing.T) {
	g := Recompute(core.Position3D{X: 2, Y: 4, Z: 1}, core.Position3D{X: 6, Y: 8, Z: 3})

	assert.Equal(t, core.Position3D{X: 4, Y: 6, Z: 2}, g.Pose.Position)
	assert.InDelta(t, math.Sqrt(16+16+4), g.Width, 1e-12)
}

func TestRecompute_ForwardIsUpCrossLeftToRight(t *testing.T) {
	tests := []struct {
		name        string
		left, right core.Position3D
		wantYaw     float64
	}{
		{"left north of right", core.Position3D{Y: -1}, core.Position3D{Y: 1}, 0},
		{"left east of right", core.Position3D{X: 1}, core.Position3D{X: -1}, math.Pi / 2},
		{"left west of right", core.Position3D{X: -1}, core.Position3D{X: 1}, -math.Pi / 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := Recompute(tt.left, tt.right)
			assert.InDelta(t, tt.wantYaw, g.Pose.Yaw, 1e-12)
		})
	}
}

func TestRecompute_HeightDoesNotTiltHeading(t *testing.T) {
	flat := Recompute(core.Position3D{X: 0, Y: -3}, core.Position3D{X: 0, Y: 3})
	tilted := Recompute(core.Position3D{X: 0, Y: -3, Z: 4}, core.Position3D{X: 0, Y: 3, Z: -4})

	assert.InDelta(t, flat.Pose.Yaw, tilted.Pose.Yaw, 1e-12)
}

func TestRecompute_SwapMarkers(t *testing.T) {
	pairs := [][2]core.Position3D{
		{{X: 1, Y: 2, Z: 0}, {X: 4, Y: 6, Z: 0}},
		{{X: -10, Y: 3, Z: 2}, {X: 7, Y: -1, Z: 0.5}},
		{{X: 0, Y: 5}, {X: 0, Y: -5}},
	}

	for _, p := range pairs {
		a := Recompute(p[0], p[1])
		b := Recompute(p[1], p[0])

		assert.InDelta(t, a.Width, b.Width, 1e-12, "width is symmetric")
		assert.InDelta(t, a.Pose.Position.X, b.Pose.Position.X, 1e-12)
		assert.InDelta(t, a.Pose.Position.Y, b.Pose.Position.Y, 1e-12)

		diff := math.Remainder(a.Pose.Yaw-b.Pose.Yaw, 2*math.Pi)
		assert.InDelta(t, math.Pi, math.Abs(diff), 1e-9, "heading flips by 180 degrees")
	}
}

func TestRecompute_CoincidentMarkers(t *testing.T) {
	p := core.Position3D{X: 3, Y: 3, Z: 3}

	assert.NotPanics(t, func() {
		g := Recompute(p, p)
		assert.Equal(t, 0.0, g.Width)
		assert.True(t, math.IsNaN(g.Pose.Yaw))
		assert.Equal(t, p, g.Pose.Position)
		assert.True(t, g.Degenerate())
	})
}

func TestGeometry_Degenerate(t *testing.T) {
	g := Recompute(core.Position3D{X: 1}, core.Position3D{X: -1})
	assert.False(t, g.Degenerate())
	assert.InDelta(t, math.Pi/2, g.Pose.Yaw, 1e-12)
}
