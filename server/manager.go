package server

import (
	"context"
	"sort"
	"sync"

	"bridgesim/ship"
	"bridgesim/storage"
)

// ShotHistory 管理接口查询历史命中
type ShotHistory interface {
	Shots(ctx context.Context, shipID string) ([]storage.ShotRecord, error)
}

// SectorOptions 新扇区共用的参数
type SectorOptions struct {
	TicksPerSecond   int
	FlushHz          int
	MaxInputsPerTick int
	DefaultSector    string
	DefaultTemplate  string
	Catalog          ship.Catalog
	Recorder         CombatRecorder
	History          ShotHistory
	Seed             int64
}

func (o SectorOptions) withDefaults() SectorOptions {
	if o.TicksPerSecond <= 0 {
		o.TicksPerSecond = 20
	}
	if o.FlushHz <= 0 {
		o.FlushHz = 10
	}
	if o.DefaultSector == "" {
		o.DefaultSector = "alpha"
	}
	if o.Catalog == nil {
		o.Catalog, _ = ship.NewCatalog(ship.DefaultTemplates()...)
		if o.DefaultTemplate == "" {
			o.DefaultTemplate = ship.DefaultTemplates()[0].Name
		}
	}
	return o
}

// SectorManager 管理多个扇区的生命周期
type SectorManager struct {
	mu      sync.RWMutex
	sectors map[string]*Sector
	opts    SectorOptions
}

var (
	defaultManager *SectorManager
	once           sync.Once
)

// InitSectorManager 以 opts 初始化单例；之后的调用直接返回已有实例
func InitSectorManager(opts SectorOptions) *SectorManager {
	once.Do(func() {
		defaultManager = NewSectorManager(opts)
	})
	return defaultManager
}

// GetSectorManager 单例扇区管理器；未初始化时使用默认参数
func GetSectorManager() *SectorManager {
	return InitSectorManager(SectorOptions{})
}

func NewSectorManager(opts SectorOptions) *SectorManager {
	return &SectorManager{sectors: make(map[string]*Sector), opts: opts.withDefaults()}
}

func (m *SectorManager) DefaultSector() string { return m.opts.DefaultSector }

// GetOrCreateSector 获取或创建扇区，并确保开始 Tick
func (m *SectorManager) GetOrCreateSector(id string) *Sector {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sectors[id]
	if !ok {
		s = NewSector(id, m.opts)
		m.sectors[id] = s
		s.StartTicker()
		Log.Infow("sector created", "sector", id, "tps", m.opts.TicksPerSecond)
	}
	return s
}

// Sector 只查找，不创建
func (m *SectorManager) Sector(id string) (*Sector, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sectors[id]
	return s, ok
}

func (m *SectorManager) SectorIDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.sectors))
	for id := range m.sectors {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// StopAll 停止所有扇区的 Tick 循环
func (m *SectorManager) StopAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sectors {
		s.Stop()
	}
}
