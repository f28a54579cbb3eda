package geom

import "math"

// Vec2 平面向量（世界坐标，单位与服务端距离一致）
type Vec2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Vec3 挂点等三维偏移（Z 仅用于客户端渲染高度）
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// XY 投影到平面
func (v Vec3) XY() Vec2 { return Vec2{X: v.X, Y: v.Y} }

func (a Vec2) Add(b Vec2) Vec2 { return Vec2{X: a.X + b.X, Y: a.Y + b.Y} }
func (a Vec2) Sub(b Vec2) Vec2 { return Vec2{X: a.X - b.X, Y: a.Y - b.Y} }
func (a Vec2) Scale(k float64) Vec2 { return Vec2{X: a.X * k, Y: a.Y * k} }
func (a Vec2) Dot(b Vec2) float64 { return a.X*b.X + a.Y*b.Y }
func (a Vec2) Length() float64 { return math.Hypot(a.X, a.Y) }
func (a Vec2) Distance(b Vec2) float64 { return a.Sub(b).Length() }

// Normalize 返回单位向量；零向量原样返回，避免除零
func (a Vec2) Normalize() Vec2 {
	l := a.Length()
	if l == 0 {
		return a
	}
	return Vec2{X: a.X / l, Y: a.Y / l}
}

// Rotate 按角度（度）逆时针旋转
func (a Vec2) Rotate(deg float64) Vec2 {
	s, c := math.Sincos(deg * math.Pi / 180)
	return Vec2{X: a.X*c - a.Y*s, Y: a.X*s + a.Y*c}
}

// ToAngle 向量方向角（度），atan2 语义
func (a Vec2) ToAngle() float64 {
	return math.Atan2(a.Y, a.X) * 180 / math.Pi
}

// FromAngle 单位方向向量
func FromAngle(deg float64) Vec2 {
	s, c := math.Sincos(deg * math.Pi / 180)
	return Vec2{X: c, Y: s}
}
