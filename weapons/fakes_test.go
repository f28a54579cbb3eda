package weapons

import (
	"bridgesim/geom"
	"bridgesim/replication"
)

type fakeShip struct {
	id        string
	faction   string
	pos       geom.Vec2
	rot       float64
	target    Target
	energy    float64
	heat      map[System]float64
	eff       float64
	docking   DockingState
	warp      float64
	frequency int
	sysTarget System
	revealed  int
	magazine  map[Munition]int
	reg       *replication.Registry
}

func newFakeShip() *fakeShip {
	return &fakeShip{
		id:        "player-1",
		faction:   "human",
		energy:    1000,
		heat:      make(map[System]float64),
		eff:       1,
		sysTarget: SystemNone,
		magazine:  map[Munition]int{Homing: 4, Nuke: 1, Mine: 2, EMP: 1, HVLI: 10},
		reg:       replication.NewRegistry(),
	}
}

func (s *fakeShip) ID() string { return s.id }
func (s *fakeShip) Faction() string { return s.faction }
func (s *fakeShip) Position() geom.Vec2 { return s.pos }
func (s *fakeShip) Rotation() float64 { return s.rot }
func (s *fakeShip) Target() Target { return s.target }
func (s *fakeShip) SystemEffectiveness(System) float64 { return s.eff }
func (s *fakeShip) AddHeat(sys System, amount float64) { s.heat[sys] += amount }
func (s *fakeShip) DockingState() DockingState { return s.docking }
func (s *fakeShip) CurrentWarp() float64 { return s.warp }
func (s *fakeShip) BeamFrequency() int { return s.frequency }
func (s *fakeShip) BeamSystemTarget() System { return s.sysTarget }
func (s *fakeShip) DidAnOffensiveAction() { s.revealed++ }
func (s *fakeShip) Replication() *replication.Registry { return s.reg }
func (s *fakeShip) ReturnMunition(m Munition) { s.magazine[m]++ }

func (s *fakeShip) IsEnemy(t Target) bool {
	if ft, ok := t.(*fakeTarget); ok {
		return ft.faction != s.faction
	}
	return false
}

func (s *fakeShip) UseEnergy(amount float64) bool {
	if s.energy < amount {
		return false
	}
	s.energy -= amount
	return true
}

func (s *fakeShip) TakeMunition(m Munition) bool {
	if s.magazine[m] <= 0 {
		return false
	}
	s.magazine[m]--
	return true
}

type hit struct {
	amount float64
	info   DamageInfo
}

type fakeTarget struct {
	id      string
	faction string
	pos     geom.Vec2
	vel     geom.Vec2
	radius  float64
	hits    []hit
}

func (t *fakeTarget) ID() string { return t.id }
func (t *fakeTarget) Position() geom.Vec2 { return t.pos }
func (t *fakeTarget) Velocity() geom.Vec2 { return t.vel }
func (t *fakeTarget) Radius() float64 { return t.radius }
func (t *fakeTarget) TakeDamage(amount float64, info DamageInfo) {
	t.hits = append(t.hits, hit{amount: amount, info: info})
}

type sinks struct {
	beams       []BeamEffect
	projectiles []Projectile
}

func (s *sinks) SpawnBeam(e BeamEffect) { s.beams = append(s.beams, e) }
func (s *sinks) SpawnProjectile(p Projectile) { s.projectiles = append(s.projectiles, p) }

func (s *sinks) env() Env {
	return Env{Authoritative: true, Effects: s, Projectiles: s}
}

// enemyAt 以舰船为原点、给定方位和距离放置一个敌方目标
func enemyAt(bearing, distance float64) *fakeTarget {
	return &fakeTarget{
		id:      "enemy-1",
		faction: "kraylor",
		pos:     geom.FromAngle(bearing).Scale(distance),
	}
}
