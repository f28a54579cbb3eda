package server

import (
	"encoding/json"
	"math/rand"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"bridgesim/geom"
	"bridgesim/replication"
	"bridgesim/ship"
	"bridgesim/storage"
	"bridgesim/weapons"
)

const (
	// 新舰船按黄金角排布在扇区中心周围
	spawnRadius = 3000.0
	spawnStep   = 137.5
	// 请求停靠后经过多少秒进入 Docked
	dockingTime = 3.0
)

// SectorSettings 可由管理接口热更新的 Tick 参数
type SectorSettings struct {
	MaxInputsPerTick int     `json:"maxInputsPerTick"`
	SimulateDropProb float64 `json:"simulateDropProb"`
	Paused           bool    `json:"paused"`
}

// CombatRecorder 战斗记录出口；入队失败只计数，不影响 Tick
type CombatRecorder interface {
	RecordShot(rec storage.ShotRecord) bool
	RecordLaunch(rec storage.LaunchRecord) bool
}

// Sector 扇区世界：权威状态维护在内存，单线程 Tick 推进。
// ships/crews 等字段只在 Tick 协程中读写，其他协程通过通道投递请求
type Sector struct {
	ID string

	ships      map[string]*ship.Ship
	order      []string // 按 ID 排序，保证更新顺序稳定
	crews      map[CrewID]*Crew
	dockTimers map[string]float64

	inputChan chan Input
	joinChan  chan JoinRequest
	leaveChan chan leaveRequest
	stopChan  chan struct{}
	stopOnce  sync.Once

	catalog         ship.Catalog
	defaultTemplate string
	recorder        CombatRecorder
	metrics         *SectorMetrics
	log             *zap.SugaredLogger
	rng             *rand.Rand

	settingsMu sync.RWMutex
	settings   SectorSettings

	ticksPerSecond int
	flushEvery     uint64
	tickSeq        atomic.Uint64
	shipCount      atomic.Int64
	spawned        int
	now            float64
	inputsThisTick int

	beams       []weapons.BeamEffect
	projectiles []weapons.Projectile
	destroyed   []string

	tickerStarted bool
}

// NewSector 创建扇区，初始化数据结构
func NewSector(id string, opts SectorOptions) *Sector {
	opts = opts.withDefaults()
	flushEvery := opts.TicksPerSecond / opts.FlushHz
	if flushEvery < 1 {
		flushEvery = 1
	}
	return &Sector{
		ID:              id,
		ships:           make(map[string]*ship.Ship),
		crews:           make(map[CrewID]*Crew),
		dockTimers:      make(map[string]float64),
		inputChan:       make(chan Input, 256), // 足够缓冲，避免网络读阻塞影响 Tick
		joinChan:        make(chan JoinRequest, 32),
		leaveChan:       make(chan leaveRequest, 64),
		stopChan:        make(chan struct{}),
		catalog:         opts.Catalog,
		defaultTemplate: opts.DefaultTemplate,
		recorder:        opts.Recorder,
		metrics:         newSectorMetrics(id),
		log:             Log.With("sector", id),
		rng:             rand.New(rand.NewSource(opts.Seed)),
		settings:        SectorSettings{MaxInputsPerTick: opts.MaxInputsPerTick},
		ticksPerSecond:  opts.TicksPerSecond,
		flushEvery:      uint64(flushEvery),
	}
}

func (s *Sector) Metrics() *SectorMetrics { return s.metrics }
func (s *Sector) TickSeq() uint64 { return s.tickSeq.Load() }
func (s *Sector) ShipCount() int { return int(s.shipCount.Load()) }

func (s *Sector) Settings() SectorSettings {
	s.settingsMu.RLock()
	defer s.settingsMu.RUnlock()
	return s.settings
}

// UpdateSettings 在锁内修改设置，可从任意协程调用
func (s *Sector) UpdateSettings(fn func(*SectorSettings)) SectorSettings {
	s.settingsMu.Lock()
	defer s.settingsMu.Unlock()
	fn(&s.settings)
	return s.settings
}

// OnInput 入站输入（不立即改变状态），仅记录意图，等下一次 Tick 处理
func (s *Sector) OnInput(in Input) {
	select {
	case s.inputChan <- in:
	default:
		s.metrics.IncChanFullDiscarded()
	}
}

// RequestJoin 请求在 Tick 协程中接入岗位；扇区已停止时关闭连接
func (s *Sector) RequestJoin(req JoinRequest) {
	select {
	case s.joinChan <- req:
	case <-s.stopChan:
		if req.Conn != nil {
			req.Conn.Close()
		}
	}
}

type leaveRequest struct {
	crew CrewID
	conn Sender
}

// RequestLeave 请求在 Tick 协程中移除岗位，避免并发改动扇区状态。
// 只有 conn 仍是该岗位的当前连接时才会移除，重连后的旧连接不会踢掉新连接
func (s *Sector) RequestLeave(id CrewID, conn Sender) {
	select {
	case s.leaveChan <- leaveRequest{crew: id, conn: conn}:
	case <-s.stopChan:
	}
}

// SpawnShip 按模板放入一艘新船；只能在 Tick 协程中或 StartTicker 之前调用
func (s *Sector) SpawnShip(template, id, callsign, faction string, pos geom.Vec2) (*ship.Ship, error) {
	if template == "" {
		template = s.defaultTemplate
	}
	sh, err := s.catalog.Build(template, id, callsign, faction)
	if err != nil {
		return nil, err
	}
	sh.SetPosition(pos)
	s.addShip(sh)
	return sh, nil
}

// Ship 按 ID 取舰船；只能在 Tick 协程中或 StartTicker 之前调用
func (s *Sector) Ship(id string) (*ship.Ship, bool) {
	sh, ok := s.ships[id]
	return sh, ok
}

func (s *Sector) addShip(sh *ship.Ship) {
	sh.SetResolver(s.resolve)
	s.ships[sh.ID()] = sh
	i := sort.SearchStrings(s.order, sh.ID())
	s.order = append(s.order, "")
	copy(s.order[i+1:], s.order[i:])
	s.order[i] = sh.ID()
	s.spawned++
	s.shipCount.Store(int64(len(s.ships)))
	s.log.Infow("ship spawned", "ship", sh.ID(), "template", sh.TemplateName(), "faction", sh.Faction())
}

func (s *Sector) removeShip(id string) {
	delete(s.ships, id)
	delete(s.dockTimers, id)
	if i := sort.SearchStrings(s.order, id); i < len(s.order) && s.order[i] == id {
		s.order = append(s.order[:i], s.order[i+1:]...)
	}
	s.shipCount.Store(int64(len(s.ships)))
}

// resolve 供舰船查找目标；已击毁或不存在返回 nil
func (s *Sector) resolve(id string) weapons.Target {
	sh, ok := s.ships[id]
	if !ok || sh.Destroyed() {
		return nil
	}
	return sh
}

func (s *Sector) spawnPosition() geom.Vec2 {
	if s.spawned == 0 {
		return geom.Vec2{}
	}
	return geom.FromAngle(float64(s.spawned) * spawnStep).Scale(spawnRadius)
}

// BeginTick 同一 Tick 时间线：推进序号、重置帧内计数
func (s *Sector) BeginTick() {
	s.tickSeq.Add(1)
	s.inputsThisTick = 0
}

// ProcessInputs 先处理接入，再处理离开与当前帧的所有指令（非阻塞 drain）
func (s *Sector) ProcessInputs() {
	settings := s.Settings()
	for joined := true; joined; {
		select {
		case req := <-s.joinChan:
			s.join(req)
		default:
			joined = false
		}
	}
	for {
		select {
		case req := <-s.leaveChan:
			s.leave(req)
		case in := <-s.inputChan:
			s.handleInput(in, settings)
		default:
			return
		}
	}
}

func (s *Sector) handleInput(in Input, settings SectorSettings) {
	crew, ok := s.crews[in.Crew]
	if !ok {
		s.metrics.IncRejected()
		return
	}
	if settings.MaxInputsPerTick > 0 && s.inputsThisTick >= settings.MaxInputsPerTick {
		s.metrics.IncRateLimited()
		return
	}
	if settings.SimulateDropProb > 0 && s.rng.Float64() < settings.SimulateDropProb {
		s.metrics.IncDropsSimulated()
		return
	}
	if in.Msg.Seq > 0 {
		if in.Msg.Seq <= crew.lastSeq {
			s.metrics.IncOldSeqIgnored()
			return
		}
		crew.lastSeq = in.Msg.Seq
	}
	s.inputsThisTick++

	if err := s.applyInput(crew, in.Msg); err != nil {
		s.metrics.IncRejected()
		s.send(crew, errorReply{Type: "error", Command: in.Msg.Command, Seq: in.Msg.Seq, Message: err.Error()})
		return
	}
	s.metrics.IncAccepted()
}

func (s *Sector) join(req JoinRequest) {
	if req.Station == StationNone {
		s.reject(req, "unknown station")
		return
	}
	if _, ok := s.ships[req.ShipID]; !ok {
		callsign := req.Callsign
		if callsign == "" {
			callsign = req.ShipID
		}
		if _, err := s.SpawnShip(req.Template, req.ShipID, callsign, req.Faction, s.spawnPosition()); err != nil {
			s.log.Warnw("join rejected", "crew", req.Crew, "ship", req.ShipID, "err", err)
			s.reject(req, err.Error())
			return
		}
	}
	if old, ok := s.crews[req.Crew]; ok && old.Conn != nil {
		old.Conn.Close()
	}
	crew := &Crew{ID: req.Crew, ShipID: req.ShipID, Station: req.Station, Conn: req.Conn}
	s.crews[req.Crew] = crew
	s.sendSnapshot(crew)
	s.log.Infow("crew joined", "crew", req.Crew, "ship", req.ShipID, "station", req.Station.String())
}

func (s *Sector) reject(req JoinRequest, msg string) {
	if req.Conn == nil {
		return
	}
	b, _ := json.Marshal(errorReply{Type: "error", Command: "join", Message: msg})
	req.Conn.Enqueue(b)
	req.Conn.Close()
}

// leave 将岗位移出扇区；舰船保留
func (s *Sector) leave(req leaveRequest) {
	c, ok := s.crews[req.crew]
	if !ok || c.Conn != req.conn {
		return
	}
	if c.Conn != nil {
		c.Conn.Close()
	}
	delete(s.crews, req.crew)
	s.log.Infow("crew left", "crew", req.crew)
}

func (s *Sector) env() weapons.Env {
	return weapons.Env{Authoritative: true, Effects: s, Projectiles: s}
}

// UpdateWorld 推进所有舰船，然后结算停靠与击毁
func (s *Sector) UpdateWorld(delta float64) {
	env := s.env()
	for _, id := range s.order {
		s.ships[id].Update(delta, env)
	}
	s.now += delta

	for id, left := range s.dockTimers {
		left -= delta
		if left > 0 {
			s.dockTimers[id] = left
			continue
		}
		delete(s.dockTimers, id)
		if sh, ok := s.ships[id]; ok && sh.DockingState() == weapons.Docking {
			sh.SetDockingState(weapons.Docked)
		}
	}

	for _, id := range append([]string(nil), s.order...) {
		if s.ships[id].Destroyed() {
			s.removeShip(id)
			s.destroyed = append(s.destroyed, id)
			s.metrics.IncDestroyed()
			s.log.Infow("ship destroyed", "ship", id, "tick", s.TickSeq())
		}
	}
}

// SpawnBeam 实现 weapons.EffectSink
func (s *Sector) SpawnBeam(e weapons.BeamEffect) {
	s.beams = append(s.beams, e)
	s.metrics.AddShot(e.Damage)
	s.log.Debugw("beam fired", "ship", e.SourceID, "mount", e.Mount, "target", e.TargetID, "damage", e.Damage)
	if s.recorder != nil {
		s.recorder.RecordShot(storage.ShotRecord{
			Sector:       s.ID,
			ShipID:       e.SourceID,
			TargetID:     e.TargetID,
			Mount:        e.Mount,
			Damage:       e.Damage,
			Frequency:    e.Frequency,
			SystemTarget: e.SystemTarget.String(),
			HitX:         e.HitLocation.X,
			HitY:         e.HitLocation.Y,
			Tick:         s.TickSeq(),
			FiredAt:      time.Now(),
		})
	}
}

// SpawnProjectile 实现 weapons.ProjectileSink；弹体飞行由客户端按参数外推
func (s *Sector) SpawnProjectile(p weapons.Projectile) {
	s.projectiles = append(s.projectiles, p)
	s.metrics.AddLaunch()
	s.log.Debugw("projectile launched", "ship", p.OwnerID, "tube", p.Tube, "munition", p.Munition.String(), "target", p.TargetID)
	if s.recorder != nil {
		s.recorder.RecordLaunch(storage.LaunchRecord{
			Sector:      s.ID,
			ShipID:      p.OwnerID,
			TargetID:    p.TargetID,
			Munition:    p.Munition.String(),
			TargetAngle: p.TargetAngle,
			Modifier:    p.CategoryModifier,
			Tick:        s.TickSeq(),
			LaunchedAt:  time.Now(),
		})
	}
}

type eventsMessage struct {
	Type        string               `json:"type"`
	Tick        uint64               `json:"tick"`
	Beams       []weapons.BeamEffect `json:"beams,omitempty"`
	Projectiles []weapons.Projectile `json:"projectiles,omitempty"`
	Destroyed   []string             `json:"destroyed,omitempty"`
}

type shipsMessage struct {
	Type  string                          `json:"type"`
	Tick  uint64                          `json:"tick"`
	Ship  string                          `json:"ship,omitempty"`
	Ships map[string][]replication.Change `json:"ships"`
}

type errorReply struct {
	Type    string `json:"type"`
	Command string `json:"command"`
	Seq     int64  `json:"seq,omitempty"`
	Message string `json:"message"`
}

// BroadcastEvents 本帧的开火、发射与击毁事件立即下发给所有岗位
func (s *Sector) BroadcastEvents() {
	if len(s.beams)+len(s.projectiles)+len(s.destroyed) == 0 {
		return
	}
	s.broadcast(eventsMessage{
		Type:        "events",
		Tick:        s.TickSeq(),
		Beams:       s.beams,
		Projectiles: s.projectiles,
		Destroyed:   s.destroyed,
	})
	s.beams = nil
	s.projectiles = nil
	s.destroyed = nil
}

// BroadcastDelta 收集各舰船的同步字段变化量并下发
func (s *Sector) BroadcastDelta() {
	ships := make(map[string][]replication.Change)
	for _, id := range s.order {
		if changes := s.ships[id].Replication().Collect(s.now); len(changes) > 0 {
			ships[id] = changes
		}
	}
	if len(ships) == 0 {
		return
	}
	s.broadcast(shipsMessage{Type: "delta", Tick: s.TickSeq(), Ships: ships})
}

// sendSnapshot 新接入岗位先收到全量状态
func (s *Sector) sendSnapshot(c *Crew) {
	ships := make(map[string][]replication.Change, len(s.order))
	for _, id := range s.order {
		ships[id] = s.ships[id].Replication().Snapshot()
	}
	s.send(c, shipsMessage{Type: "snapshot", Tick: s.TickSeq(), Ship: c.ShipID, Ships: ships})
}

func (s *Sector) broadcast(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		s.log.Errorw("marshal broadcast", "err", err)
		return
	}
	for _, c := range s.crews {
		if c.Conn != nil {
			c.Conn.Enqueue(b)
		}
	}
}

func (s *Sector) send(c *Crew, v any) {
	if c.Conn == nil {
		return
	}
	b, err := json.Marshal(v)
	if err != nil {
		s.log.Errorw("marshal reply", "err", err)
		return
	}
	c.Conn.Enqueue(b)
}
