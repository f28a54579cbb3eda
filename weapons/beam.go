package weapons

import (
	"fmt"
	"math"

	"bridgesim/geom"
	"bridgesim/replication"
)

const (
	// 目标进入 range*trackingRangeFactor 后炮塔开始跟踪
	trackingRangeFactor = 1.3
	// cooldown 同步节流：每秒最多两次
	cooldownReplicationInterval = 0.5

	beamFireSound = "sfx/laser_fire.wav"
	// 音量按伤害缩放的分母
	beamSoundDamageScale = 6.0
)

// BeamHardpoint 光束武器挂点。每个 Tick 由所属舰船调用 Update，
// 连续地完成冷却、炮塔跟踪与开火判定，而非离散状态机
type BeamHardpoint struct {
	parent Owner
	index  int

	arc                float64
	direction          float64
	rng                float64
	turretArc          float64
	turretDirection    float64
	turretRotationRate float64
	cycleTime          float64
	cooldown           float64

	damage        float64
	energyPerFire float64
	heatPerFire   float64
	position      geom.Vec3
	beamTexture   string
}

// NewBeamHardpoint 默认值：6 秒循环、1 点伤害、每发 3 能量与 0.02 热量
func NewBeamHardpoint() *BeamHardpoint {
	return &BeamHardpoint{
		cycleTime:     6.0,
		damage:        1.0,
		energyPerFire: 3.0,
		heatPerFire:   0.02,
	}
}

// SetParent 绑定舰船并注册同步字段，只允许调用一次
func (b *BeamHardpoint) SetParent(o Owner) {
	if b.parent != nil {
		panic(fmt.Sprintf("weapons: beam %d already bound to %s", b.index, b.parent.ID()))
	}
	if o == nil {
		panic("weapons: nil owner")
	}
	b.parent = o

	reg := o.Replication()
	key := func(f string) string { return fmt.Sprintf("beam.%d.%s", b.index, f) }
	replication.Register(reg, key("arc"), &b.arc)
	replication.Register(reg, key("direction"), &b.direction)
	replication.Register(reg, key("range"), &b.rng)
	replication.Register(reg, key("turret_arc"), &b.turretArc)
	replication.Register(reg, key("turret_direction"), &b.turretDirection)
	replication.Register(reg, key("turret_rotation_rate"), &b.turretRotationRate)
	replication.Register(reg, key("cycle_time"), &b.cycleTime)
	replication.Register(reg, key("cooldown"), &b.cooldown, replication.WithMaxInterval(cooldownReplicationInterval))
}

func (b *BeamHardpoint) Parent() Owner { return b.parent }
func (b *BeamHardpoint) Index() int { return b.index }
func (b *BeamHardpoint) SetIndex(i int) { b.index = i }

func (b *BeamHardpoint) Arc() float64 { return b.arc }
func (b *BeamHardpoint) SetArc(v float64) { b.arc = v }
func (b *BeamHardpoint) Direction() float64 { return b.direction }
func (b *BeamHardpoint) SetDirection(v float64) { b.direction = v }
func (b *BeamHardpoint) Range() float64 { return b.rng }
func (b *BeamHardpoint) SetRange(v float64) { b.rng = v }
func (b *BeamHardpoint) TurretArc() float64 { return b.turretArc }
func (b *BeamHardpoint) SetTurretArc(v float64) { b.turretArc = v }
func (b *BeamHardpoint) TurretDirection() float64 { return b.turretDirection }
func (b *BeamHardpoint) SetTurretDirection(v float64) { b.turretDirection = v }
func (b *BeamHardpoint) TurretRotationRate() float64 { return b.turretRotationRate }
func (b *BeamHardpoint) SetTurretRotationRate(v float64) { b.turretRotationRate = v }
func (b *BeamHardpoint) CycleTime() float64 { return b.cycleTime }
func (b *BeamHardpoint) SetCycleTime(v float64) { b.cycleTime = v }
func (b *BeamHardpoint) Cooldown() float64 { return b.cooldown }
func (b *BeamHardpoint) Damage() float64 { return b.damage }
func (b *BeamHardpoint) SetDamage(v float64) { b.damage = v }
func (b *BeamHardpoint) EnergyPerFire() float64 { return b.energyPerFire }
func (b *BeamHardpoint) SetEnergyPerFire(v float64) { b.energyPerFire = v }
func (b *BeamHardpoint) HeatPerFire() float64 { return b.heatPerFire }
func (b *BeamHardpoint) SetHeatPerFire(v float64) { b.heatPerFire = v }
func (b *BeamHardpoint) Position() geom.Vec3 { return b.position }
func (b *BeamHardpoint) SetPosition(v geom.Vec3) { b.position = v }
func (b *BeamHardpoint) BeamTexture() string { return b.beamTexture }
func (b *BeamHardpoint) SetBeamTexture(v string) { b.beamTexture = v }
func (b *BeamHardpoint) MountName() string { return mountName(b.direction) }

// turreted 可转动的炮塔
func (b *BeamHardpoint) turreted() bool {
	return b.turretArc > 0 && b.turretRotationRate > 0
}

// WorldPosition 光束发射点：舰船位置加上随舰船旋转后的挂点偏移
func (b *BeamHardpoint) WorldPosition() geom.Vec2 {
	return b.parent.Position().Add(b.position.XY().Rotate(b.parent.Rotation()))
}

// Update 推进一个 Tick
func (b *BeamHardpoint) Update(delta float64, env Env) {
	p := b.parent
	eff := p.SystemEffectiveness(BeamWeapons)
	if b.cooldown > 0 {
		b.cooldown -= delta * eff
	}

	if env.Authoritative && b.rng > 0 && delta > 0 && p.CurrentWarp() == 0 && p.DockingState() == NotDocking {
		if target := p.Target(); target != nil && p.IsEnemy(target) && b.engage(env, target, eff) {
			return
		}
	}

	// 没有有效目标时炮塔回到静止朝向，不停留在过期方位上
	if env.Authoritative && b.rng > 0 && delta > 0 && b.turreted() && b.direction != b.turretDirection {
		b.rotateToward(b.turretDirection, eff)
	}
}

// engage 目标在跟踪范围内时处理炮塔与开火，返回 false 表示目标超出跟踪范围
func (b *BeamHardpoint) engage(env Env, target Target, eff float64) bool {
	p := b.parent
	diff := target.Position().Sub(b.WorldPosition())
	// 按目标半径的一半放宽距离判定
	distance := diff.Length() - target.Radius()/2
	if distance >= b.rng*trackingRangeFactor {
		return false
	}

	angle := diff.ToAngle()
	rotation := p.Rotation()
	angleDiff := geom.AngleDifference(b.direction+rotation, angle)

	if b.turreted() {
		if math.Abs(geom.AngleDifference(b.turretDirection+rotation, angle)) <= b.turretArc/2 {
			b.rotateToward(angle-rotation, eff)
		} else {
			b.rotateToward(b.turretDirection, eff)
		}
	}

	if b.arc > 0 && distance <= b.rng && b.cooldown <= 0 && math.Abs(angleDiff) <= b.arc/2 && p.UseEnergy(b.energyPerFire) {
		p.AddHeat(BeamWeapons, b.heatPerFire)
		b.Fire(env, target, p.BeamSystemTarget())
	}
	return true
}

// rotateToward 以 turretRotationRate*eff 为上限把 direction 转向舰船相对角 goal。
// 在炮塔弧内按线性偏移转动，避免穿越弧外的死区
func (b *BeamHardpoint) rotateToward(goal, eff float64) {
	maxStep := b.turretRotationRate * eff
	if maxStep <= 0 {
		return
	}
	var delta float64
	if b.turretArc >= 360 {
		delta = geom.AngleDifference(b.direction, goal)
	} else {
		delta = geom.AngleDifference(b.turretDirection, goal) - geom.AngleDifference(b.turretDirection, b.direction)
	}
	if delta == 0 {
		return
	}
	b.direction += math.Copysign(math.Min(maxStep, math.Abs(delta)), delta)
	b.clampToTurretArc()
}

func (b *BeamHardpoint) clampToTurretArc() {
	if b.turretArc >= 360 {
		return
	}
	half := b.turretArc / 2
	off := geom.AngleDifference(b.turretDirection, b.direction)
	switch {
	case off > half:
		b.direction = b.turretDirection + half
	case off < -half:
		b.direction = b.turretDirection - half
	}
}

// Fire 立即对 target 开火。调用方已校验距离、射界与冷却；
// 停靠或跃迁中静默放弃
func (b *BeamHardpoint) Fire(env Env, target Target, system System) {
	p := b.parent
	if p.DockingState() != NotDocking || p.CurrentWarp() > 0 {
		return
	}

	p.DidAnOffensiveAction()
	b.cooldown = b.cycleTime

	tp := target.Position()
	hit := tp.Sub(tp.Sub(p.Position()).Normalize().Scale(target.Radius()))

	if env.Effects != nil {
		env.Effects.SpawnBeam(BeamEffect{
			SourceID:       p.ID(),
			Mount:          b.index,
			SourceOffset:   b.position,
			TargetID:       target.ID(),
			HitLocation:    hit,
			Texture:        b.beamTexture,
			FireSound:      beamFireSound,
			FireSoundPower: b.damage / beamSoundDamageScale,
			Damage:         b.damage,
			Frequency:      p.BeamFrequency(),
			SystemTarget:   system,
		})
	}

	target.TakeDamage(b.damage, DamageInfo{
		SourceID:     p.ID(),
		Type:         DamageEnergy,
		Location:     hit,
		Frequency:    p.BeamFrequency(),
		SystemTarget: system,
	})
}
