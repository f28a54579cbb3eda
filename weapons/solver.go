package weapons

import (
	"math"

	"bridgesim/geom"
)

// NoSolution 无拦截解时的方位哨兵值，调用方不得当作 0 度使用
var NoSolution = math.Inf(1)

// 固定迭代次数：以有界的单 Tick 开销换取收敛保证，每个 Tick 会用新的目标位置重算
const solverIterations = 10

// 目标速度低于该值（单位/秒）时按静止目标处理
const stationarySpeed = 1.0

// FiringProblem 拦截解算输入
type FiringProblem struct {
	Origin         geom.Vec2
	ExitBearing    float64 // 弹体离管时的世界朝向（度）
	TargetPosition geom.Vec2
	TargetVelocity geom.Vec2
	TargetRadius   float64
	Speed          float64 // 弹体速度
	TurnRate       float64 // 度/秒
}

// SolveIntercept 迭代求发射方位：弹体先以最大转速转到候选方位，再直线飞行。
// 每轮按转弯出口重新瞄准，命中窗口内即接受；10 轮未收敛返回 NoSolution, false
func SolveIntercept(p FiringProblem) (float64, bool) {
	if p.TurnRate == 0 || p.Speed <= 0 {
		return NoSolution, false
	}
	turnRate := math.Abs(p.TurnRate)
	targetSpeed := p.TargetVelocity.Length()
	missileAngle := p.TargetPosition.Sub(p.Origin).ToAngle()
	turnRadius := (360 / turnRate) * p.Speed / (2 * math.Pi)

	for i := 0; i < solverIterations; i++ {
		angleDiff := geom.AngleDifference(missileAngle, p.ExitBearing)

		side := 90.0
		if angleDiff > 0 {
			side = -90
		}
		turnCenter := p.Origin.Add(geom.FromAngle(p.ExitBearing + side).Scale(turnRadius))
		turnExit := turnCenter.Add(geom.FromAngle(missileAngle - side).Scale(turnRadius))

		if targetSpeed < stationarySpeed {
			timeMissile := turnExit.Distance(p.TargetPosition) / p.Speed
			interception := turnExit.Add(geom.FromAngle(missileAngle).Scale(p.Speed * timeMissile))
			if interception.Distance(p.TargetPosition) < p.TargetRadius/2 {
				return missileAngle, true
			}
			missileAngle = p.TargetPosition.Sub(turnExit).ToAngle()
			continue
		}

		missileVelocity := geom.FromAngle(missileAngle).Scale(p.Speed)
		turnTime := math.Abs(angleDiff) / turnRate
		intersection, ok := geom.LineLineIntersection(
			p.TargetPosition, p.TargetPosition.Add(p.TargetVelocity),
			turnExit, turnExit.Add(missileVelocity),
		)
		if !ok {
			// 两条航迹平行：以目标当前位置估算，继续下一轮修正
			intersection = p.TargetPosition
		}
		timeTarget := p.TargetPosition.Distance(intersection) / targetSpeed
		timeMissile := turnExit.Distance(intersection)/p.Speed + turnTime
		// 目标半径一半扫过交点所需时间，即可接受的到达时间差
		timeRadius := (p.TargetRadius / 2) / targetSpeed
		if ok && math.Abs(timeTarget-timeMissile) < timeRadius {
			return missileAngle, true
		}

		guessedImpact := timeTarget*targetSpeed/(targetSpeed+p.Speed) + timeMissile*p.Speed/(targetSpeed+p.Speed)
		predicted := p.TargetPosition.Add(p.TargetVelocity.Scale(guessedImpact))
		missileAngle = predicted.Sub(turnExit).ToAngle()
	}
	return NoSolution, false
}
