package weapons

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Munition 发射管可装填的弹药种类
type Munition int

const (
	MunitionNone Munition = iota
	Homing
	Nuke
	Mine
	EMP
	HVLI
	munitionCount
)

var munitionNames = [...]string{"none", "homing", "nuke", "mine", "emp", "hvli"}

func (m Munition) String() string {
	if m < 0 || m >= munitionCount {
		return fmt.Sprintf("munition(%d)", int(m))
	}
	return munitionNames[m]
}

// Valid 是否是可装填的弹药（None 不算）
func (m Munition) Valid() bool { return m > MunitionNone && m < munitionCount }

// MarshalJSON 以名字下发给客户端
func (m Munition) MarshalJSON() ([]byte, error) { return json.Marshal(m.String()) }

// ParseMunition 名字转弹药；未知名称返回 MunitionNone, false
func ParseMunition(name string) (Munition, bool) {
	for i, n := range munitionNames {
		if i > 0 && n == name {
			return Munition(i), true
		}
	}
	return MunitionNone, false
}

// Munitions 全部可装填弹药，按枚举顺序
func Munitions() []Munition {
	out := make([]Munition, 0, munitionCount-1)
	for m := Homing; m < munitionCount; m++ {
		out = append(out, m)
	}
	return out
}

// MunitionData 弹药飞行参数
type MunitionData struct {
	Speed    float64 // 单位/秒
	TurnRate float64 // 度/秒；0 表示不可转向
	Lifetime float64 // 秒
	Damage   float64
}

var munitionData = map[Munition]MunitionData{
	Homing: {Speed: 200, TurnRate: 10, Lifetime: 27, Damage: 35},
	Nuke:   {Speed: 200, TurnRate: 10, Lifetime: 27, Damage: 160},
	Mine:   {Speed: 100, TurnRate: 10, Lifetime: 1, Damage: 160},
	EMP:    {Speed: 200, TurnRate: 10, Lifetime: 27, Damage: 160},
	HVLI:   {Speed: 500, TurnRate: 0, Lifetime: 13.5, Damage: 7},
}

// DataFor 未知或 None 返回零值（不可转向，因此无拦截解）
func DataFor(m Munition) MunitionData { return munitionData[m] }

// MunitionSet 允许装填的弹药集合
type MunitionSet struct {
	m map[Munition]struct{}
}

// NewMunitionSet 以给定弹药构造集合，忽略无效值
func NewMunitionSet(ms ...Munition) MunitionSet {
	s := MunitionSet{m: make(map[Munition]struct{}, len(ms))}
	for _, m := range ms {
		s.Allow(m)
	}
	return s
}

// AllMunitions 允许全部弹药的集合
func AllMunitions() MunitionSet { return NewMunitionSet(Munitions()...) }

// Has 成员测试；None 与越界值永远不在集合中
func (s MunitionSet) Has(m Munition) bool {
	if !m.Valid() {
		return false
	}
	_, ok := s.m[m]
	return ok
}

// OnlyAllows 集合恰好只包含 m
func (s MunitionSet) OnlyAllows(m Munition) bool {
	return len(s.m) == 1 && s.Has(m)
}

func (s *MunitionSet) Allow(m Munition) {
	if !m.Valid() {
		return
	}
	if s.m == nil {
		s.m = make(map[Munition]struct{})
	}
	s.m[m] = struct{}{}
}

func (s *MunitionSet) Disallow(m Munition) { delete(s.m, m) }

func (s MunitionSet) Len() int { return len(s.m) }

// List 按枚举顺序返回
func (s MunitionSet) List() []Munition {
	out := make([]Munition, 0, len(s.m))
	for m := range s.m {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// SizeClass 发射管口径，影响弹药伤害倍率
type SizeClass int

const (
	SizeSmall SizeClass = iota
	SizeMedium
	SizeLarge
)

// CategoryModifier 小 0.5 / 中 1 / 大 2
func (s SizeClass) CategoryModifier() float64 {
	switch s {
	case SizeSmall:
		return 0.5
	case SizeLarge:
		return 2.0
	}
	return 1.0
}

// ParseSizeClass 空字符串与未知值按中口径处理
func ParseSizeClass(name string) SizeClass {
	switch name {
	case "small":
		return SizeSmall
	case "large":
		return SizeLarge
	}
	return SizeMedium
}
