package weapons

import (
	"encoding/json"
	"fmt"

	"bridgesim/geom"
	"bridgesim/replication"
)

// LauncherState 发射管状态
type LauncherState int

const (
	LauncherEmpty LauncherState = iota
	LauncherLoading
	LauncherLoaded
	LauncherUnloading
	LauncherFiring
)

var launcherStateNames = [...]string{"empty", "loading", "loaded", "unloading", "firing"}

func (s LauncherState) String() string {
	if s < 0 || int(s) >= len(launcherStateNames) {
		return "unknown"
	}
	return launcherStateNames[s]
}

func (s LauncherState) MarshalJSON() ([]byte, error) { return json.Marshal(s.String()) }

const (
	defaultLoadTime = 8.0
	// 齐射中相邻两发的间隔（秒）
	salvoInterval = 1.5
)

// Launcher 离散弹药发射管：装填 → 就绪 → 发射/卸载。
// 与 BeamHardpoint 共享 Mount 能力，但状态机独立
type Launcher struct {
	parent Owner
	index  int

	direction float64
	position  geom.Vec3
	size      SizeClass
	loadTime  float64
	allowed   MunitionSet

	state     LauncherState
	loaded    Munition
	delay     float64
	fireCount int
	fireAngle float64
}

// NewLauncher 默认允许全部弹药、中口径、8 秒装填
func NewLauncher() *Launcher {
	return &Launcher{
		size:     SizeMedium,
		loadTime: defaultLoadTime,
		allowed:  AllMunitions(),
	}
}

// SetParent 绑定舰船并注册同步字段，只允许调用一次
func (l *Launcher) SetParent(o Owner) {
	if l.parent != nil {
		panic(fmt.Sprintf("weapons: launcher %d already bound to %s", l.index, l.parent.ID()))
	}
	if o == nil {
		panic("weapons: nil owner")
	}
	l.parent = o

	reg := o.Replication()
	key := func(f string) string { return fmt.Sprintf("tube.%d.%s", l.index, f) }
	replication.Register(reg, key("direction"), &l.direction)
	replication.Register(reg, key("load_time"), &l.loadTime)
	replication.Register(reg, key("state"), &l.state)
	replication.Register(reg, key("loaded"), &l.loaded)
}

func (l *Launcher) Parent() Owner { return l.parent }
func (l *Launcher) Index() int { return l.index }
func (l *Launcher) SetIndex(i int) { l.index = i }
func (l *Launcher) Direction() float64 { return l.direction }
func (l *Launcher) SetDirection(v float64) { l.direction = v }
func (l *Launcher) Position() geom.Vec3 { return l.position }
func (l *Launcher) SetPosition(v geom.Vec3) { l.position = v }
func (l *Launcher) Size() SizeClass { return l.size }
func (l *Launcher) SetSize(v SizeClass) { l.size = v }
func (l *Launcher) LoadTime() float64 { return l.loadTime }
func (l *Launcher) SetLoadTime(v float64) { l.loadTime = v }
func (l *Launcher) State() LauncherState { return l.state }
func (l *Launcher) Loaded() Munition { return l.loaded }
func (l *Launcher) MountName() string { return mountName(l.direction) }

// Allowed 返回允许集合的指针，可直接 Allow/Disallow
func (l *Launcher) Allowed() *MunitionSet { return &l.allowed }

func (l *Launcher) CanLoad(m Munition) bool { return l.allowed.Has(m) }
func (l *Launcher) CanOnlyLoad(m Munition) bool { return l.allowed.OnlyAllows(m) }

func (l *Launcher) IsEmpty() bool { return l.state == LauncherEmpty }
func (l *Launcher) IsLoaded() bool { return l.state == LauncherLoaded }
func (l *Launcher) IsLoading() bool { return l.state == LauncherLoading }
func (l *Launcher) IsUnloading() bool { return l.state == LauncherUnloading }
func (l *Launcher) IsFiring() bool { return l.state == LauncherFiring }

// LoadProgress 装填进度 0..1
func (l *Launcher) LoadProgress() float64 {
	if l.loadTime <= 0 {
		return 1
	}
	return clamp01(1 - l.delay/l.loadTime)
}

// UnloadProgress 卸载剩余比例 1..0
func (l *Launcher) UnloadProgress() float64 {
	if l.loadTime <= 0 {
		return 0
	}
	return clamp01(l.delay / l.loadTime)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Load 从弹仓取一发 m 开始装填；不允许、非空管或弹仓无货时返回 false
func (l *Launcher) Load(m Munition) bool {
	if !l.CanLoad(m) || l.state != LauncherEmpty {
		return false
	}
	if !l.parent.TakeMunition(m) {
		return false
	}
	l.state = LauncherLoading
	l.delay = l.loadTime
	l.loaded = m
	return true
}

// Unload 开始卸载已装填的弹药，完成后退回弹仓
func (l *Launcher) Unload() bool {
	if l.state != LauncherLoaded {
		return false
	}
	l.state = LauncherUnloading
	l.delay = l.loadTime
	return true
}

// ForceUnload 立即清空发射管并尽量退回弹药（例如舰船被缴械）
func (l *Launcher) ForceUnload() {
	if l.state == LauncherEmpty || l.loaded == MunitionNone {
		return
	}
	l.parent.ReturnMunition(l.loaded)
	l.clear()
}

func (l *Launcher) clear() {
	l.state = LauncherEmpty
	l.loaded = MunitionNone
	l.delay = 0
	l.fireCount = 0
}

// Fire 以 targetAngle 立即发射已装填的弹药。停靠或跃迁中静默放弃
func (l *Launcher) Fire(env Env, targetAngle float64) bool {
	p := l.parent
	if p.DockingState() != NotDocking || p.CurrentWarp() > 0 {
		return false
	}
	if l.state != LauncherLoaded {
		return false
	}
	p.DidAnOffensiveAction()
	l.spawn(env, targetAngle)
	l.clear()
	return true
}

// StartSalvo 连续发射至多 count 发同种弹药，每发间隔 salvoInterval，由 Update 推进
func (l *Launcher) StartSalvo(count int, targetAngle float64) bool {
	p := l.parent
	if count <= 0 || l.state != LauncherLoaded {
		return false
	}
	if p.DockingState() != NotDocking || p.CurrentWarp() > 0 {
		return false
	}
	p.DidAnOffensiveAction()
	l.state = LauncherFiring
	l.fireCount = count
	l.fireAngle = targetAngle
	l.delay = 0
	return true
}

// Update 推进装填/卸载/齐射计时；计时速度受导弹系统效能影响
func (l *Launcher) Update(delta float64, env Env) {
	if !env.Authoritative {
		return
	}
	if l.delay > 0 {
		l.delay -= delta * l.parent.SystemEffectiveness(MissileSystem)
		return
	}
	switch l.state {
	case LauncherLoading:
		l.state = LauncherLoaded
		l.delay = 0
	case LauncherUnloading:
		l.parent.ReturnMunition(l.loaded)
		l.clear()
	case LauncherFiring:
		l.spawn(env, l.fireAngle)
		l.fireCount--
		// 首发用装填的那一发，之后每发都从弹仓再取；弹仓空则齐射提前结束
		if l.fireCount > 0 && l.parent.TakeMunition(l.loaded) {
			l.delay = salvoInterval
		} else {
			l.clear()
		}
	}
}

// spawn 构造弹体交给扇区
func (l *Launcher) spawn(env Env, targetAngle float64) {
	p := l.parent
	heading := p.Rotation() + l.direction
	pr := Projectile{
		Munition:         l.loaded,
		OwnerID:          p.ID(),
		Tube:             l.index,
		Faction:          p.Faction(),
		Position:         p.Position().Add(l.position.XY().Rotate(p.Rotation())),
		Rotation:         heading,
		TargetAngle:      targetAngle,
		CategoryModifier: l.size.CategoryModifier(),
	}
	switch l.loaded {
	case Homing, Nuke, EMP:
		if t := p.Target(); t != nil {
			pr.TargetID = t.ID()
		}
	case Mine:
		pr.Ejected = true
		pr.TargetAngle = heading
		pr.CategoryModifier = 1
	case HVLI:
		pr.TargetAngle = heading
	default:
		return
	}
	if env.Projectiles != nil {
		env.Projectiles.SpawnProjectile(pr)
	}
}

// CalculateFiringSolution 为已装填弹药计算发射方位；无解时返回 NoSolution, false
func (l *Launcher) CalculateFiringSolution(target Target) (float64, bool) {
	if target == nil || l.parent == nil {
		return NoSolution, false
	}
	data := DataFor(l.loaded)
	return SolveIntercept(FiringProblem{
		Origin:         l.parent.Position(),
		ExitBearing:    l.parent.Rotation() + l.direction,
		TargetPosition: target.Position(),
		TargetVelocity: target.Velocity(),
		TargetRadius:   target.Radius(),
		Speed:          data.Speed,
		TurnRate:       data.TurnRate,
	})
}
