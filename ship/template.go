package ship

import (
	"errors"
	"fmt"
	"math"

	"bridgesim/geom"
	"bridgesim/weapons"
)

var (
	ErrUnknownTemplate = errors.New("unknown ship template")
	ErrInvalidTemplate = errors.New("invalid ship template")
	ErrInvalidMount    = errors.New("invalid weapon mount")
)

// BeamMount 光束挂点配置；CycleTime/Damage/EnergyPerFire/HeatPerFire 为 0 时沿用默认值
type BeamMount struct {
	Arc                float64   `mapstructure:"arc" json:"arc"`
	Direction          float64   `mapstructure:"direction" json:"direction"`
	Range              float64   `mapstructure:"range" json:"range"`
	TurretArc          float64   `mapstructure:"turretArc" json:"turretArc"`
	TurretDirection    float64   `mapstructure:"turretDirection" json:"turretDirection"`
	TurretRotationRate float64   `mapstructure:"turretRotationRate" json:"turretRotationRate"`
	CycleTime          float64   `mapstructure:"cycleTime" json:"cycleTime"`
	Damage             float64   `mapstructure:"damage" json:"damage"`
	EnergyPerFire      float64   `mapstructure:"energyPerFire" json:"energyPerFire"`
	HeatPerFire        float64   `mapstructure:"heatPerFire" json:"heatPerFire"`
	Position           geom.Vec3 `mapstructure:"position" json:"position"`
	Texture            string    `mapstructure:"texture" json:"texture"`
}

// TubeMount 发射管配置；Allowed 为空表示全部弹药
type TubeMount struct {
	Direction float64   `mapstructure:"direction" json:"direction"`
	Position  geom.Vec3 `mapstructure:"position" json:"position"`
	Size      string    `mapstructure:"size" json:"size"`
	LoadTime  float64   `mapstructure:"loadTime" json:"loadTime"`
	Allowed   []string  `mapstructure:"allowed" json:"allowed"`
}

// Template 舰船模板
type Template struct {
	Name      string         `mapstructure:"name" json:"name"`
	Radius    float64        `mapstructure:"radius" json:"radius"`
	Hull      float64        `mapstructure:"hull" json:"hull"`
	Shield    float64        `mapstructure:"shield" json:"shield"`
	Energy    float64        `mapstructure:"energy" json:"energy"`
	Speed     float64        `mapstructure:"speed" json:"speed"`
	TurnSpeed float64        `mapstructure:"turnSpeed" json:"turnSpeed"`
	Magazine  map[string]int `mapstructure:"magazine" json:"magazine"`
	Beams     []BeamMount    `mapstructure:"beams" json:"beams"`
	Tubes     []TubeMount    `mapstructure:"tubes" json:"tubes"`
}

// Validate 检查整体数值与每个挂点；错误包装 ErrInvalidTemplate 或 ErrInvalidMount
func (t Template) Validate() error {
	if t.Name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidTemplate)
	}
	if t.Radius <= 0 || t.Hull <= 0 {
		return fmt.Errorf("%w: %s: radius and hull must be positive", ErrInvalidTemplate, t.Name)
	}
	if t.Shield < 0 || t.Energy < 0 || t.Speed < 0 || t.TurnSpeed < 0 {
		return fmt.Errorf("%w: %s: negative stat", ErrInvalidTemplate, t.Name)
	}
	for name, n := range t.Magazine {
		if _, ok := weapons.ParseMunition(name); !ok {
			return fmt.Errorf("%w: %s: unknown munition %q", ErrInvalidTemplate, t.Name, name)
		}
		if n < 0 {
			return fmt.Errorf("%w: %s: negative magazine size for %s", ErrInvalidTemplate, t.Name, name)
		}
	}
	for i, b := range t.Beams {
		if err := b.validate(); err != nil {
			return fmt.Errorf("%s beam %d: %w", t.Name, i, err)
		}
	}
	for i, tb := range t.Tubes {
		if err := tb.validate(); err != nil {
			return fmt.Errorf("%s tube %d: %w", t.Name, i, err)
		}
	}
	return nil
}

func (b BeamMount) validate() error {
	if b.Arc < 0 || b.Arc > 360 || b.Range < 0 {
		return fmt.Errorf("%w: arc must be 0..360 and range non-negative", ErrInvalidMount)
	}
	if b.TurretArc < 0 || b.TurretArc > 360 || b.TurretRotationRate < 0 {
		return fmt.Errorf("%w: turret arc must be 0..360 and rotation rate non-negative", ErrInvalidMount)
	}
	if b.TurretArc > 0 && b.TurretRotationRate > 0 && b.TurretArc < 360 {
		if math.Abs(geom.AngleDifference(b.TurretDirection, b.Direction)) > b.TurretArc/2 {
			return fmt.Errorf("%w: direction %.1f outside turret arc", ErrInvalidMount, b.Direction)
		}
	}
	if b.CycleTime < 0 || b.Damage < 0 || b.EnergyPerFire < 0 || b.HeatPerFire < 0 {
		return fmt.Errorf("%w: negative beam cost", ErrInvalidMount)
	}
	return nil
}

func (t TubeMount) validate() error {
	switch t.Size {
	case "", "small", "medium", "large":
	default:
		return fmt.Errorf("%w: unknown size %q", ErrInvalidMount, t.Size)
	}
	if t.LoadTime < 0 {
		return fmt.Errorf("%w: negative load time", ErrInvalidMount)
	}
	for _, name := range t.Allowed {
		if _, ok := weapons.ParseMunition(name); !ok {
			return fmt.Errorf("%w: unknown munition %q", ErrInvalidMount, name)
		}
	}
	return nil
}

// Build 按模板造船：校验 → 设置数值与弹仓 → 逐个配置挂点并绑定 → 注册同步字段
func Build(t Template, id, callsign, faction string) (*Ship, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}

	s := newShip(id, callsign, faction)
	s.template = t.Name
	s.radius = t.Radius
	s.hull, s.maxHull = t.Hull, t.Hull
	s.frontShield, s.rearShield, s.maxShield = t.Shield, t.Shield, t.Shield
	s.energy, s.maxEnergy = t.Energy, t.Energy
	s.maxSpeed = t.Speed
	s.turnSpeed = t.TurnSpeed
	for name, n := range t.Magazine {
		m, _ := weapons.ParseMunition(name)
		s.magazine[m] = n
		s.magazineMax[m] = n
	}

	// 先注册舰船字段，挂点字段追加在后
	s.registerReplication()

	for i, cfg := range t.Beams {
		b := newBeam(cfg)
		s.beams = append(s.beams, b)
		s.attach(b, i)
	}
	for i, cfg := range t.Tubes {
		l := newTube(cfg)
		s.tubes = append(s.tubes, l)
		s.attach(l, i)
	}
	s.sortMounts()
	return s, nil
}

func newBeam(cfg BeamMount) *weapons.BeamHardpoint {
	b := weapons.NewBeamHardpoint()
	b.SetArc(cfg.Arc)
	b.SetDirection(cfg.Direction)
	b.SetRange(cfg.Range)
	b.SetTurretArc(cfg.TurretArc)
	b.SetTurretDirection(cfg.TurretDirection)
	b.SetTurretRotationRate(cfg.TurretRotationRate)
	b.SetPosition(cfg.Position)
	b.SetBeamTexture(cfg.Texture)
	if cfg.CycleTime > 0 {
		b.SetCycleTime(cfg.CycleTime)
	}
	if cfg.Damage > 0 {
		b.SetDamage(cfg.Damage)
	}
	if cfg.EnergyPerFire > 0 {
		b.SetEnergyPerFire(cfg.EnergyPerFire)
	}
	if cfg.HeatPerFire > 0 {
		b.SetHeatPerFire(cfg.HeatPerFire)
	}
	return b
}

func newTube(cfg TubeMount) *weapons.Launcher {
	l := weapons.NewLauncher()
	l.SetDirection(cfg.Direction)
	l.SetPosition(cfg.Position)
	l.SetSize(weapons.ParseSizeClass(cfg.Size))
	if cfg.LoadTime > 0 {
		l.SetLoadTime(cfg.LoadTime)
	}
	if len(cfg.Allowed) > 0 {
		allowed := l.Allowed()
		for _, m := range weapons.Munitions() {
			allowed.Disallow(m)
		}
		for _, name := range cfg.Allowed {
			m, _ := weapons.ParseMunition(name)
			allowed.Allow(m)
		}
	}
	return l
}

// Catalog 按名字索引的模板集合
type Catalog map[string]Template

// NewCatalog 校验并收录模板；同名模板后者覆盖前者
func NewCatalog(ts ...Template) (Catalog, error) {
	c := make(Catalog, len(ts))
	for _, t := range ts {
		if err := t.Validate(); err != nil {
			return nil, err
		}
		c[t.Name] = t
	}
	return c, nil
}

// Build 按模板名造船
func (c Catalog) Build(name, id, callsign, faction string) (*Ship, error) {
	t, ok := c[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTemplate, name)
	}
	return Build(t, id, callsign, faction)
}

// DefaultTemplates 配置文件未提供模板时使用的内置舰型
func DefaultTemplates() []Template {
	return []Template{
		{
			Name:      "Phobos T3",
			Radius:    200,
			Hull:      200,
			Shield:    100,
			Energy:    1000,
			Speed:     90,
			TurnSpeed: 10,
			Magazine:  map[string]int{"homing": 8, "nuke": 2, "mine": 4, "emp": 2, "hvli": 12},
			Beams: []BeamMount{
				{Arc: 90, Direction: -15, Range: 1200, CycleTime: 8, Damage: 6, Position: geom.Vec3{X: 40, Y: -10}, Texture: "texture/beam_orange.png"},
				{Arc: 90, Direction: 15, Range: 1200, CycleTime: 8, Damage: 6, Position: geom.Vec3{X: 40, Y: 10}, Texture: "texture/beam_orange.png"},
			},
			Tubes: []TubeMount{
				{Direction: -1, Size: "medium", LoadTime: 10},
				{Direction: 1, Size: "medium", LoadTime: 10},
				{Direction: 180, Size: "medium", LoadTime: 10, Allowed: []string{"mine"}},
			},
		},
		{
			Name:      "Atlantis X23",
			Radius:    400,
			Hull:      250,
			Shield:    200,
			Energy:    1200,
			Speed:     30,
			TurnSpeed: 3.5,
			Magazine:  map[string]int{"homing": 4, "hvli": 20},
			Beams: []BeamMount{
				{Arc: 30, Direction: 0, Range: 1500, TurretArc: 180, TurretDirection: 0, TurretRotationRate: 6, CycleTime: 6, Damage: 8, Texture: "texture/beam_blue.png"},
				{Arc: 30, Direction: 180, Range: 1500, TurretArc: 180, TurretDirection: 180, TurretRotationRate: 6, CycleTime: 6, Damage: 8, Texture: "texture/beam_blue.png"},
				{Arc: 60, Direction: 90, Range: 1000, CycleTime: 6, Damage: 4},
				{Arc: 60, Direction: -90, Range: 1000, CycleTime: 6, Damage: 4},
			},
			Tubes: []TubeMount{
				{Direction: 0, Size: "large", LoadTime: 12, Allowed: []string{"homing", "hvli"}},
			},
		},
	}
}
