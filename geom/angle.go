package geom

import "math"

// AngleDifference 返回从 a 转到 b 的有符号最小角差，范围 (-180, 180]；
// 非有限输入返回 0
func AngleDifference(a, b float64) float64 {
	d := math.Remainder(b-a, 360)
	if math.IsNaN(d) {
		return 0
	}
	if d <= -180 {
		d += 360
	}
	return d
}

// NormalizeAngle 将角度归一到 [0, 360)；非有限输入返回 0
func NormalizeAngle(deg float64) float64 {
	m := math.Mod(deg, 360)
	if math.IsNaN(m) {
		return 0
	}
	if m < 0 {
		m += 360
	}
	// 极小负数加 360 后可能舍入为 360
	if m >= 360 {
		m = 0
	}
	return m
}

// LineLineIntersection 求直线 a1-a2 与 b1-b2 的交点；平行（含重合）时 ok=false
func LineLineIntersection(a1, a2, b1, b2 Vec2) (Vec2, bool) {
	d := (a1.X-a2.X)*(b1.Y-b2.Y) - (a1.Y-a2.Y)*(b1.X-b2.X)
	if d == 0 {
		return Vec2{}, false
	}
	pre := a1.X*a2.Y - a1.Y*a2.X
	post := b1.X*b2.Y - b1.Y*b2.X
	x := (pre*(b1.X-b2.X) - (a1.X-a2.X)*post) / d
	y := (pre*(b1.Y-b2.Y) - (a1.Y-a2.Y)*post) / d
	return Vec2{X: x, Y: y}, true
}
