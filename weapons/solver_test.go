package weapons

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bridgesim/geom"
)

func TestSolveInterceptRequiresTurningProjectile(t *testing.T) {
	bearing, ok := SolveIntercept(FiringProblem{
		TargetPosition: geom.Vec2{X: 1500},
		TargetRadius:   40,
		Speed:          500,
		TurnRate:       0,
	})

	assert.False(t, ok)
	assert.True(t, math.IsInf(bearing, 1))
}

func TestSolveInterceptStationaryTargetAhead(t *testing.T) {
	bearing, ok := SolveIntercept(FiringProblem{
		TargetPosition: geom.Vec2{X: 1500},
		TargetRadius:   40,
		Speed:          200,
		TurnRate:       10,
	})

	require.True(t, ok)
	assert.InDelta(t, 0, bearing, 1e-9)
}

func TestSolveInterceptStationaryTargetOffAxis(t *testing.T) {
	p := FiringProblem{
		TargetPosition: geom.Vec2{X: 0, Y: 3000},
		TargetRadius:   60,
		Speed:          200,
		TurnRate:       10,
	}
	bearing, ok := SolveIntercept(p)

	require.True(t, ok)
	miss := simulateIntercept(p, bearing, 60)
	assert.Less(t, miss, p.TargetRadius)
}

func TestSolveInterceptMovingPerpendicularTarget(t *testing.T) {
	p := FiringProblem{
		TargetPosition: geom.Vec2{X: 2000},
		TargetVelocity: geom.Vec2{Y: 100},
		TargetRadius:   50,
		Speed:          200,
		TurnRate:       10,
	}
	bearing, ok := SolveIntercept(p)

	require.True(t, ok)
	assert.False(t, math.IsInf(bearing, 0))
	assert.Greater(t, bearing, 0.0, "leads the target")

	miss := simulateIntercept(p, bearing, 40)
	assert.Less(t, miss, p.TargetRadius)
}

func TestSolveInterceptIsPure(t *testing.T) {
	p := FiringProblem{
		ExitBearing:    30,
		TargetPosition: geom.Vec2{X: 1200, Y: -400},
		TargetVelocity: geom.Vec2{X: -40, Y: 60},
		TargetRadius:   50,
		Speed:          200,
		TurnRate:       10,
	}
	a, okA := SolveIntercept(p)
	b, okB := SolveIntercept(p)

	assert.Equal(t, okA, okB)
	assert.Equal(t, a, b)
}

// simulateIntercept 以固定步长让弹体按最大转速转向 bearing 后直飞，
// 返回弹体与目标中心的最小距离
func simulateIntercept(p FiringProblem, bearing, seconds float64) float64 {
	const dt = 0.005
	pos := p.Origin
	heading := p.ExitBearing
	target := p.TargetPosition
	best := math.Inf(1)
	for tm := 0.0; tm < seconds; tm += dt {
		diff := geom.AngleDifference(heading, bearing)
		step := math.Min(math.Abs(diff), p.TurnRate*dt)
		heading += math.Copysign(step, diff)
		pos = pos.Add(geom.FromAngle(heading).Scale(p.Speed * dt))
		target = target.Add(p.TargetVelocity.Scale(dt))
		if d := pos.Distance(target); d < best {
			best = d
		}
	}
	return best
}
