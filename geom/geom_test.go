package geom

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAngleDifferenceWrapsToShortestArc(t *testing.T) {
	cases := []struct {
		a, b, want float64
	}{
		{0, 10, 10},
		{10, 0, -10},
		{350, 10, 20},
		{10, 350, -20},
		{0, 180, 180},
		{0, -180, 180},
		{-170, 170, -20},
	}
	for _, c := range cases {
		assert.InDelta(t, c.want, AngleDifference(c.a, c.b), 1e-9, "a=%v b=%v", c.a, c.b)
	}
}

func TestAngleWrappingHandlesHugeAndNonFiniteInput(t *testing.T) {
	assert.InDelta(t, 180.0, AngleDifference(0, 540), 1e-9)
	assert.InDelta(t, 180.0, AngleDifference(0, -540), 1e-9)
	assert.InDelta(t, 80.0, AngleDifference(0, 360*1e7+80), 1e-6)

	for _, huge := range []float64{1e300, -1e300, math.MaxFloat64} {
		d := AngleDifference(0, huge)
		assert.Greater(t, d, -180.0, "b=%v", huge)
		assert.LessOrEqual(t, d, 180.0, "b=%v", huge)

		n := NormalizeAngle(huge)
		assert.GreaterOrEqual(t, n, 0.0, "deg=%v", huge)
		assert.Less(t, n, 360.0, "deg=%v", huge)
	}

	assert.Zero(t, AngleDifference(0, math.Inf(1)))
	assert.Zero(t, AngleDifference(math.NaN(), 0))
	assert.Zero(t, NormalizeAngle(math.Inf(-1)))
	assert.InDelta(t, 350.0, NormalizeAngle(-10), 1e-9)
	assert.InDelta(t, 10.0, NormalizeAngle(730), 1e-9)
	assert.Zero(t, NormalizeAngle(-1e-20))
}

func TestRotateAndAngleRoundTrip(t *testing.T) {
	v := Vec2{X: 1}.Rotate(90)
	assert.InDelta(t, 0, v.X, 1e-9)
	assert.InDelta(t, 1, v.Y, 1e-9)
	assert.InDelta(t, 90, v.ToAngle(), 1e-9)

	f := FromAngle(-45)
	assert.InDelta(t, math.Sqrt2/2, f.X, 1e-9)
	assert.InDelta(t, -math.Sqrt2/2, f.Y, 1e-9)
}

func TestNormalizeZeroVector(t *testing.T) {
	assert.Equal(t, Vec2{}, Vec2{}.Normalize())
	assert.InDelta(t, 1, Vec2{X: 3, Y: 4}.Normalize().Length(), 1e-12)
}

func TestLineLineIntersection(t *testing.T) {
	p, ok := LineLineIntersection(Vec2{X: 0, Y: 0}, Vec2{X: 1, Y: 0}, Vec2{X: 5, Y: -5}, Vec2{X: 5, Y: 5})
	require.True(t, ok)
	assert.InDelta(t, 5, p.X, 1e-9)
	assert.InDelta(t, 0, p.Y, 1e-9)

	_, ok = LineLineIntersection(Vec2{}, Vec2{X: 1}, Vec2{Y: 1}, Vec2{X: 1, Y: 1})
	assert.False(t, ok)
}
