// Package ship 服务端权威的舰船实体：持有武器挂点、能量池、子系统与弹仓，
// 同时作为挂点的 Owner 和其他挂点的 Target。
package ship

import (
	"fmt"
	"math"
	"sort"

	"bridgesim/geom"
	"bridgesim/replication"
	"bridgesim/weapons"
)

const (
	MaxFrequency = 20

	// 每秒反应堆回充（按反应堆效能缩放）
	reactorRecharge   = 3.0
	warpSpeedPerLevel = 1000.0

	// 命中指定子系统时的子系统伤害倍率；能量武器再乘 energySystemFactor
	systemDamageFactor = 2.0
	energySystemFactor = 3.0

	// 护盾频率与光束频率一致时能量伤害减半
	matchedFrequencyFactor = 0.5
)

// Resolver 按 ID 查找目标，由所在扇区注入
type Resolver func(id string) weapons.Target

type factioned interface {
	Faction() string
}

// Ship 舰船实体，全部方法只在扇区 Tick 协程中调用
type Ship struct {
	id       string
	callsign string
	faction  string
	template string

	position geom.Vec2
	velocity geom.Vec2
	rotation float64
	radius   float64

	targetRotation float64
	impulse        float64
	maxSpeed       float64
	turnSpeed      float64
	warp           float64
	docking        weapons.DockingState

	energy    float64
	maxEnergy float64
	systems   [weapons.SystemCount]SystemState

	hull          float64
	maxHull       float64
	frontShield   float64
	rearShield    float64
	maxShield     float64
	shieldFreq    int
	beamFrequency int
	beamSysTarget weapons.System
	targetID      string
	revealed      bool
	destroyed     bool
	magazine      map[weapons.Munition]int
	magazineMax   map[weapons.Munition]int
	beams         []*weapons.BeamHardpoint
	tubes         []*weapons.Launcher
	mounts        []weapons.Mount
	resolve       Resolver
	replication   *replication.Registry
}

func newShip(id, callsign, faction string) *Ship {
	s := &Ship{
		id:            id,
		callsign:      callsign,
		faction:       faction,
		systems:       defaultSystems(),
		beamSysTarget: weapons.SystemNone,
		magazine:      make(map[weapons.Munition]int),
		magazineMax:   make(map[weapons.Munition]int),
		replication:   replication.NewRegistry(),
	}
	return s
}

// registerReplication 注册舰船自身的同步字段
func (s *Ship) registerReplication() {
	r := s.replication
	replication.Register(r, "position", &s.position, replication.WithMaxInterval(0.1))
	replication.Register(r, "rotation", &s.rotation, replication.WithMaxInterval(0.1))
	replication.Register(r, "hull", &s.hull)
	replication.Register(r, "front_shield", &s.frontShield)
	replication.Register(r, "rear_shield", &s.rearShield)
	replication.Register(r, "energy", &s.energy, replication.WithMaxInterval(0.5))
	replication.Register(r, "warp", &s.warp)
	replication.Register(r, "docking", &s.docking)
	replication.Register(r, "target", &s.targetID)
	replication.Register(r, "beam_frequency", &s.beamFrequency)
	replication.Register(r, "beam_system_target", &s.beamSysTarget)
	replication.Register(r, "revealed", &s.revealed)
	for i := range s.systems {
		name := weapons.System(i).String()
		replication.Register(r, "system."+name+".health", &s.systems[i].Health)
		replication.Register(r, "system."+name+".power", &s.systems[i].Power)
		replication.Register(r, "system."+name+".heat", &s.systems[i].Heat, replication.WithMaxInterval(0.5))
	}
}

func (s *Ship) ID() string { return s.id }
func (s *Ship) Callsign() string { return s.callsign }
func (s *Ship) Faction() string { return s.faction }
func (s *Ship) TemplateName() string { return s.template }
func (s *Ship) Position() geom.Vec2 { return s.position }
func (s *Ship) Velocity() geom.Vec2 { return s.velocity }
func (s *Ship) Rotation() float64 { return s.rotation }
func (s *Ship) Radius() float64 { return s.radius }
func (s *Ship) Energy() float64 { return s.energy }
func (s *Ship) Hull() float64 { return s.hull }
func (s *Ship) FrontShield() float64 { return s.frontShield }
func (s *Ship) RearShield() float64 { return s.rearShield }
func (s *Ship) Destroyed() bool { return s.destroyed }
func (s *Ship) Revealed() bool { return s.revealed }
func (s *Ship) TargetID() string { return s.targetID }
func (s *Ship) DockingState() weapons.DockingState { return s.docking }
func (s *Ship) CurrentWarp() float64 { return s.warp }
func (s *Ship) BeamFrequency() int { return s.beamFrequency }
func (s *Ship) BeamSystemTarget() weapons.System { return s.beamSysTarget }
func (s *Ship) Replication() *replication.Registry { return s.replication }
func (s *Ship) Beams() []*weapons.BeamHardpoint { return s.beams }
func (s *Ship) Tubes() []*weapons.Launcher { return s.tubes }
func (s *Ship) DidAnOffensiveAction() { s.revealed = true }

// System 子系统状态副本
func (s *Ship) System(sys weapons.System) SystemState {
	if sys < 0 || sys >= weapons.SystemCount {
		return SystemState{}
	}
	return s.systems[sys]
}

// Tube 按下标取发射管
func (s *Ship) Tube(i int) (*weapons.Launcher, bool) {
	if i < 0 || i >= len(s.tubes) {
		return nil, false
	}
	return s.tubes[i], true
}

// Magazine 弹仓库存副本
func (s *Ship) Magazine() map[weapons.Munition]int {
	out := make(map[weapons.Munition]int, len(s.magazine))
	for k, v := range s.magazine {
		out[k] = v
	}
	return out
}

// SetResolver 注入目标查找；未注入时 Target 永远为空
func (s *Ship) SetResolver(r Resolver) { s.resolve = r }

func (s *Ship) SetPosition(p geom.Vec2) { s.position = p }
func (s *Ship) SetVelocity(v geom.Vec2) { s.velocity = v }
func (s *Ship) SetRotation(deg float64) {
	s.rotation = geom.NormalizeAngle(deg)
	s.targetRotation = s.rotation
}

// SetTargetRotation 目标朝向归一到 [0, 360)
func (s *Ship) SetTargetRotation(deg float64) { s.targetRotation = geom.NormalizeAngle(deg) }

func (s *Ship) SetTargetID(id string) { s.targetID = id }
func (s *Ship) SetDockingState(d weapons.DockingState) { s.docking = d }
func (s *Ship) SetShieldFrequency(f int) { s.shieldFreq = clampFrequency(f) }
func (s *Ship) SetBeamFrequency(f int) { s.beamFrequency = clampFrequency(f) }
func (s *Ship) SetBeamSystemTarget(sys weapons.System) { s.beamSysTarget = sys }
func (s *Ship) SetEnergy(e float64) { s.energy = math.Max(0, math.Min(e, s.maxEnergy)) }

// SetImpulse 推进请求 -1..1
func (s *Ship) SetImpulse(v float64) { s.impulse = math.Max(-1, math.Min(1, v)) }

// SetWarp 跃迁等级 0..4；跃迁期间武器全部停火
func (s *Ship) SetWarp(level float64) { s.warp = math.Max(0, math.Min(4, level)) }

// SetSystemPower 功率 0..3
func (s *Ship) SetSystemPower(sys weapons.System, p float64) {
	if sys < 0 || sys >= weapons.SystemCount {
		return
	}
	s.systems[sys].Power = math.Max(0, math.Min(maxSystemPower, p))
}

// SetSystemHealth 供脚本与测试直接设置耐久
func (s *Ship) SetSystemHealth(sys weapons.System, h float64) {
	if sys < 0 || sys >= weapons.SystemCount {
		return
	}
	s.systems[sys].Health = h
	s.systems[sys].clampHealth()
}

func clampFrequency(f int) int {
	if f < 0 {
		return 0
	}
	if f > MaxFrequency {
		return MaxFrequency
	}
	return f
}

// Target 当前目标；无目标或目标已不存在时返回 nil
func (s *Ship) Target() weapons.Target {
	if s.targetID == "" || s.resolve == nil {
		return nil
	}
	t := s.resolve(s.targetID)
	if t == nil {
		return nil
	}
	return t
}

// IsEnemy 不同阵营即为敌对；没有阵营的物体（残骸、小行星）不算
func (s *Ship) IsEnemy(t weapons.Target) bool {
	f, ok := t.(factioned)
	if !ok {
		return false
	}
	return f.Faction() != "" && s.faction != "" && f.Faction() != s.faction
}

// SystemEffectiveness 子系统效能
func (s *Ship) SystemEffectiveness(sys weapons.System) float64 {
	if sys < 0 || sys >= weapons.SystemCount {
		return 1
	}
	return s.systems[sys].Effectiveness()
}

// UseEnergy 整额扣除；不足时不扣并返回 false
func (s *Ship) UseEnergy(amount float64) bool {
	if s.energy < amount {
		return false
	}
	s.energy -= amount
	return true
}

// AddHeat 给子系统加热，热量上限为 1
func (s *Ship) AddHeat(sys weapons.System, amount float64) {
	if sys < 0 || sys >= weapons.SystemCount {
		return
	}
	s.systems[sys].Heat = math.Max(0, math.Min(1, s.systems[sys].Heat+amount))
}

// TakeMunition 从弹仓取一发
func (s *Ship) TakeMunition(m weapons.Munition) bool {
	if s.magazine[m] <= 0 {
		return false
	}
	s.magazine[m]--
	return true
}

// ReturnMunition 退回一发，不超过弹仓上限
func (s *Ship) ReturnMunition(m weapons.Munition) {
	if s.magazine[m] < s.magazineMax[m] {
		s.magazine[m]++
	}
}

// TakeDamage 伤害管线：先按命中方向扣前/后护盾，余量扣船体；
// 指定子系统时子系统受额外伤害，船体伤害减半
func (s *Ship) TakeDamage(amount float64, info weapons.DamageInfo) {
	if s.destroyed || amount <= 0 {
		return
	}

	front := math.Abs(geom.AngleDifference(s.rotation, info.Location.Sub(s.position).ToAngle())) < 90
	shield := &s.rearShield
	if front {
		shield = &s.frontShield
	}
	if *shield > 0 {
		absorb := amount
		if info.Type == weapons.DamageEnergy && info.Frequency == s.shieldFreq {
			absorb *= matchedFrequencyFactor
		}
		if absorb <= *shield {
			*shield -= absorb
			return
		}
		// 护盾击穿后按未吸收的比例继续结算
		amount *= (absorb - *shield) / absorb
		*shield = 0
	}

	if info.SystemTarget >= 0 && info.SystemTarget < weapons.SystemCount && s.maxHull > 0 {
		sysDamage := amount / s.maxHull * systemDamageFactor
		if info.Type == weapons.DamageEnergy {
			sysDamage *= energySystemFactor
		}
		s.systems[info.SystemTarget].Health -= sysDamage
		s.systems[info.SystemTarget].clampHealth()
		amount *= 0.5
	}

	s.hull -= amount
	if s.hull <= 0 {
		s.hull = 0
		s.destroyed = true
	}
}

// Update 推进一个 Tick：机动、子系统热量、能量回充，最后按挂点下标依次更新武器
func (s *Ship) Update(delta float64, env weapons.Env) {
	if s.destroyed {
		return
	}
	if env.Authoritative && delta > 0 {
		s.move(delta)
		for i := range s.systems {
			s.systems[i].update(delta)
		}
		s.energy = math.Min(s.maxEnergy, s.energy+reactorRecharge*s.SystemEffectiveness(weapons.Reactor)*delta)
	}
	for _, m := range s.mounts {
		m.Update(delta, env)
	}
}

func (s *Ship) move(delta float64) {
	if s.docking == weapons.Docked {
		s.velocity = geom.Vec2{}
		return
	}
	diff := geom.AngleDifference(s.rotation, s.targetRotation)
	step := s.turnSpeed * s.SystemEffectiveness(weapons.Maneuver) * delta
	if math.Abs(diff) <= step {
		s.rotation = s.targetRotation
	} else {
		s.rotation = geom.NormalizeAngle(s.rotation + math.Copysign(step, diff))
	}

	speed := s.impulse * s.maxSpeed * s.SystemEffectiveness(weapons.Impulse)
	if s.warp > 0 {
		speed += s.warp * warpSpeedPerLevel * s.SystemEffectiveness(weapons.Warp)
	}
	s.velocity = geom.FromAngle(s.rotation).Scale(speed)
	s.position = s.position.Add(s.velocity.Scale(delta))
}

// attach 设置下标并绑定挂点，每个挂点只调用一次
func (s *Ship) attach(m weapons.Mount, index int) {
	m.SetIndex(index)
	m.SetParent(s)
	s.mounts = append(s.mounts, m)
}

// sortMounts 光束在前，发射管在后，各自按下标
func (s *Ship) sortMounts() {
	sort.SliceStable(s.mounts, func(i, j int) bool {
		_, bi := s.mounts[i].(*weapons.BeamHardpoint)
		_, bj := s.mounts[j].(*weapons.BeamHardpoint)
		if bi != bj {
			return bi
		}
		return s.mounts[i].Index() < s.mounts[j].Index()
	})
}

var (
	_ weapons.Owner  = (*Ship)(nil)
	_ weapons.Target = (*Ship)(nil)
)

func (s *Ship) String() string {
	return fmt.Sprintf("%s(%s/%s)", s.callsign, s.id, s.faction)
}
