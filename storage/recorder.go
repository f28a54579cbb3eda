// Package storage 战斗记录：光束命中与弹药发射写入 SQLite，供赛后复盘与管理接口查询。
// 模拟协程只做非阻塞入队，落库由独立的写协程批量完成。
package storage

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const writeBatch = 128

// ShotRecord 一次光束命中
type ShotRecord struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Sector       string    `gorm:"index" json:"sector"`
	ShipID       string    `gorm:"index" json:"shipId"`
	TargetID     string    `gorm:"index" json:"targetId"`
	Mount        int       `json:"mount"`
	Damage       float64   `json:"damage"`
	Frequency    int       `json:"frequency"`
	SystemTarget string    `json:"systemTarget"`
	HitX         float64   `json:"hitX"`
	HitY         float64   `json:"hitY"`
	Tick         uint64    `json:"tick"`
	FiredAt      time.Time `json:"firedAt"`
}

// LaunchRecord 一次发射管出弹
type LaunchRecord struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Sector      string    `gorm:"index" json:"sector"`
	ShipID      string    `gorm:"index" json:"shipId"`
	TargetID    string    `json:"targetId"`
	Munition    string    `json:"munition"`
	TargetAngle float64   `json:"targetAngle"`
	Modifier    float64   `json:"modifier"`
	Tick        uint64    `json:"tick"`
	LaunchedAt  time.Time `json:"launchedAt"`
}

// Open 打开（或创建）记录库并迁移表结构；path 为空时使用内存库
func Open(path string) (*gorm.DB, error) {
	dsn := path
	if dsn == "" {
		dsn = "file::memory:?cache=shared"
	}
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
		CreateBatchSize:        writeBatch,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open combat db %q: %w", path, err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA synchronous = NORMAL;",
	}
	for _, pragma := range pragmas {
		if err := db.Exec(pragma).Error; err != nil {
			return nil, fmt.Errorf("error setting PRAGMA: %w", err)
		}
	}

	if err := db.AutoMigrate(&ShotRecord{}, &LaunchRecord{}); err != nil {
		return nil, fmt.Errorf("migrate combat db: %w", err)
	}
	return db, nil
}

// Recorder 有界队列 + 单写协程
type Recorder struct {
	db  *gorm.DB
	log *zap.SugaredLogger

	mu        sync.RWMutex
	closed    bool
	queue     chan any
	done      chan struct{}
	startOnce sync.Once

	written atomic.Uint64
	dropped atomic.Uint64
}

func NewRecorder(db *gorm.DB, queueSize int, log *zap.SugaredLogger) *Recorder {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if queueSize <= 0 {
		queueSize = 1
	}
	return &Recorder{
		db:    db,
		log:   log,
		queue: make(chan any, queueSize),
		done:  make(chan struct{}),
	}
}

// Start 启动写协程；重复调用无效
func (r *Recorder) Start() {
	r.startOnce.Do(func() { go r.writeLoop() })
}

// RecordShot 非阻塞入队；队列满或已关闭时丢弃并计数
func (r *Recorder) RecordShot(rec ShotRecord) bool { return r.enqueue(&rec) }

// RecordLaunch 同 RecordShot
func (r *Recorder) RecordLaunch(rec LaunchRecord) bool { return r.enqueue(&rec) }

func (r *Recorder) enqueue(v any) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		r.dropped.Add(1)
		return false
	}
	select {
	case r.queue <- v:
		return true
	default:
		r.dropped.Add(1)
		return false
	}
}

func (r *Recorder) Written() uint64 { return r.written.Load() }
func (r *Recorder) Dropped() uint64 { return r.dropped.Load() }

func (r *Recorder) writeLoop() {
	defer close(r.done)
	for v := range r.queue {
		shots, launches := collect(nil, nil, v)
	drain:
		for len(shots)+len(launches) < writeBatch {
			select {
			case next, ok := <-r.queue:
				if !ok {
					break drain
				}
				shots, launches = collect(shots, launches, next)
			default:
				break drain
			}
		}
		r.flush(shots, launches)
	}
}

func collect(shots []ShotRecord, launches []LaunchRecord, v any) ([]ShotRecord, []LaunchRecord) {
	switch rec := v.(type) {
	case *ShotRecord:
		shots = append(shots, *rec)
	case *LaunchRecord:
		launches = append(launches, *rec)
	}
	return shots, launches
}

func (r *Recorder) flush(shots []ShotRecord, launches []LaunchRecord) {
	if len(shots) > 0 {
		if err := r.db.CreateInBatches(shots, writeBatch).Error; err != nil {
			r.log.Errorw("write shots failed", "count", len(shots), "err", err)
		} else {
			r.written.Add(uint64(len(shots)))
		}
	}
	if len(launches) > 0 {
		if err := r.db.CreateInBatches(launches, writeBatch).Error; err != nil {
			r.log.Errorw("write launches failed", "count", len(launches), "err", err)
		} else {
			r.written.Add(uint64(len(launches)))
		}
	}
}

// Close 停止接收、写完队列中剩余记录后关闭数据库
func (r *Recorder) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	close(r.queue)
	r.mu.Unlock()

	r.Start()
	<-r.done
	sqlDB, err := r.db.DB()
	if err != nil {
		return fmt.Errorf("failed to access sql interface: %w", err)
	}
	return sqlDB.Close()
}

// Shots 按时间顺序返回某艘船的命中记录
func (r *Recorder) Shots(ctx context.Context, shipID string) ([]ShotRecord, error) {
	var out []ShotRecord
	err := r.db.WithContext(ctx).Where("ship_id = ?", shipID).Order("id").Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("query shots for %s: %w", shipID, err)
	}
	return out, nil
}

// Launches 按时间顺序返回某艘船的发射记录
func (r *Recorder) Launches(ctx context.Context, shipID string) ([]LaunchRecord, error) {
	var out []LaunchRecord
	err := r.db.WithContext(ctx).Where("ship_id = ?", shipID).Order("id").Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("query launches for %s: %w", shipID, err)
	}
	return out, nil
}
