// Package weapons 实现舰船武器挂点：连续光束发射器（BeamHardpoint）与
// 离散弹药发射管（Launcher），以及制导弹药的拦截解算。
//
// 挂点状态只在模拟协程中被修改；所有跨实体的副作用（扣能量、加热、伤害）
// 都是同步调用，一发射击要么全部生效，要么什么都不发生。
package weapons

import (
	"encoding/json"
	"math"

	"bridgesim/geom"
	"bridgesim/replication"
)

// System 舰船子系统
type System int

const (
	SystemNone System = iota - 1
	Reactor
	BeamWeapons
	MissileSystem
	Maneuver
	Impulse
	Warp
	FrontShield
	RearShield
	SystemCount
)

var systemNames = [...]string{"reactor", "beamweapons", "missilesystem", "maneuver", "impulse", "warp", "frontshield", "rearshield"}

func (s System) String() string {
	if s < 0 || s >= SystemCount {
		return "none"
	}
	return systemNames[s]
}

func (s System) MarshalJSON() ([]byte, error) { return json.Marshal(s.String()) }

// ParseSystem 未知名称返回 SystemNone
func ParseSystem(name string) System {
	for i, n := range systemNames {
		if n == name {
			return System(i)
		}
	}
	return SystemNone
}

// DamageType 伤害类型
type DamageType int

const (
	DamageEnergy DamageType = iota
	DamageKinetic
	DamageEMP
)

func (d DamageType) String() string {
	switch d {
	case DamageEnergy:
		return "energy"
	case DamageKinetic:
		return "kinetic"
	case DamageEMP:
		return "emp"
	}
	return "unknown"
}

// DockingState 停靠状态；非 NotDocking 时禁止开火
type DockingState int

const (
	NotDocking DockingState = iota
	Docking
	Docked
)

var dockingNames = [...]string{"none", "docking", "docked"}

func (d DockingState) String() string {
	if d < 0 || int(d) >= len(dockingNames) {
		return "unknown"
	}
	return dockingNames[d]
}

func (d DockingState) MarshalJSON() ([]byte, error) { return json.Marshal(d.String()) }

// DamageInfo 交给目标伤害管线的描述
type DamageInfo struct {
	SourceID     string
	Type         DamageType
	Location     geom.Vec2
	Frequency    int
	SystemTarget System
}

// BeamEffect 光束视觉/音效，由客户端渲染
type BeamEffect struct {
	SourceID       string    `json:"sourceId"`
	Mount          int       `json:"mount"`
	SourceOffset   geom.Vec3 `json:"sourceOffset"`
	TargetID       string    `json:"targetId"`
	HitLocation    geom.Vec2 `json:"hit"`
	Texture        string    `json:"texture"`
	FireSound      string    `json:"sound"`
	FireSoundPower float64   `json:"soundPower"`
	Damage         float64   `json:"damage"`
	Frequency      int       `json:"frequency"`
	SystemTarget   System    `json:"systemTarget"`
}

// Projectile 发射管抛出的弹体描述，实体本身由所在扇区创建和推进
type Projectile struct {
	Munition         Munition  `json:"munition"`
	OwnerID          string    `json:"ownerId"`
	Tube             int       `json:"tube"`
	Faction          string    `json:"faction"`
	TargetID         string    `json:"targetId,omitempty"`
	Position         geom.Vec2 `json:"position"`
	Rotation         float64   `json:"rotation"`
	TargetAngle      float64   `json:"targetAngle"`
	CategoryModifier float64   `json:"categoryModifier"`
	Ejected          bool      `json:"ejected,omitempty"`
}

// EffectSink 接收光束效果
type EffectSink interface {
	SpawnBeam(BeamEffect)
}

// ProjectileSink 接收新弹体
type ProjectileSink interface {
	SpawnProjectile(Projectile)
}

// Env 一次 Tick 的显式上下文，替代全局的“是否服务端”等状态
type Env struct {
	Authoritative bool
	Effects       EffectSink
	Projectiles   ProjectileSink
}

// Target 可被攻击的实体
type Target interface {
	ID() string
	Position() geom.Vec2
	Velocity() geom.Vec2
	Radius() float64
	TakeDamage(amount float64, info DamageInfo)
}

// Owner 挂点所属的舰船。挂点只持有非拥有引用，用于读取状态与扣减资源
type Owner interface {
	ID() string
	Faction() string
	Position() geom.Vec2
	Rotation() float64
	Target() Target
	IsEnemy(t Target) bool
	SystemEffectiveness(s System) float64
	UseEnergy(amount float64) bool
	AddHeat(s System, amount float64)
	DockingState() DockingState
	CurrentWarp() float64
	BeamFrequency() int
	BeamSystemTarget() System
	DidAnOffensiveAction()
	TakeMunition(m Munition) bool
	ReturnMunition(m Munition)
	Replication() *replication.Registry
}

// Mount 两种挂点的公共能力；两者状态机互不合并
type Mount interface {
	Index() int
	SetIndex(i int)
	SetParent(o Owner)
	Update(delta float64, env Env)
	MountName() string
}

// mountName 按朝向给挂点起名，供舰桥界面显示
func mountName(direction float64) string {
	switch {
	case math.Abs(geom.AngleDifference(0, direction)) <= 45:
		return "Front"
	case math.Abs(geom.AngleDifference(90, direction)) < 45:
		return "Right"
	case math.Abs(geom.AngleDifference(-90, direction)) < 45:
		return "Left"
	case math.Abs(geom.AngleDifference(180, direction)) <= 45:
		return "Rear"
	}
	return "?"
}
