package server

import (
	"context"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "bridgesim/server"

// SectorMetrics 记录扇区运行期的关键指标（用于监控与调试）
type SectorMetrics struct {
	TickCount         int64 // 统计的 Tick 次数
	TotalTickNs       int64 // Tick 累计耗时（纳秒）
	InputsAccepted    int64 // 被接受的输入数
	InputsRejected    int64 // 岗位不符、舰船不存在或参数非法的输入数
	RateLimited       int64 // 因同帧限流被拒绝的输入数
	OldSeqIgnored     int64 // 因旧序列被忽略的输入数
	DropsSimulated    int64 // 因模拟丢包被丢弃的输入数
	ChanFullDiscarded int64 // 因通道满被丢弃的输入数
	ShotsFired        int64 // 光束命中次数
	MissilesLaunched  int64 // 出膛弹体数
	DamageMilli       int64 // 光束伤害累计（千分之一单位）
	ShipsDestroyed    int64

	attrs metric.MeasurementOption
}

func newSectorMetrics(sectorID string) *SectorMetrics {
	return &SectorMetrics{attrs: metric.WithAttributes(attribute.String("sector", sectorID))}
}

func (m *SectorMetrics) IncAccepted() { atomic.AddInt64(&m.InputsAccepted, 1) }
func (m *SectorMetrics) IncRejected() { atomic.AddInt64(&m.InputsRejected, 1) }
func (m *SectorMetrics) IncRateLimited() { atomic.AddInt64(&m.RateLimited, 1) }
func (m *SectorMetrics) IncOldSeqIgnored() { atomic.AddInt64(&m.OldSeqIgnored, 1) }
func (m *SectorMetrics) IncDropsSimulated() { atomic.AddInt64(&m.DropsSimulated, 1) }
func (m *SectorMetrics) IncChanFullDiscarded() { atomic.AddInt64(&m.ChanFullDiscarded, 1) }

func (m *SectorMetrics) AddTick(ns int64) {
	atomic.AddInt64(&m.TickCount, 1)
	atomic.AddInt64(&m.TotalTickNs, ns)
	inst := instruments()
	inst.ticks.Add(context.Background(), 1, m.attrs)
	inst.tickDuration.Record(context.Background(), float64(ns)/1e6, m.attrs)
}

func (m *SectorMetrics) AddShot(damage float64) {
	atomic.AddInt64(&m.ShotsFired, 1)
	atomic.AddInt64(&m.DamageMilli, int64(damage*1000))
	inst := instruments()
	inst.shots.Add(context.Background(), 1, m.attrs)
	inst.damage.Add(context.Background(), damage, m.attrs)
}

func (m *SectorMetrics) AddLaunch() {
	atomic.AddInt64(&m.MissilesLaunched, 1)
	instruments().launches.Add(context.Background(), 1, m.attrs)
}

func (m *SectorMetrics) IncDestroyed() { atomic.AddInt64(&m.ShipsDestroyed, 1) }

// Snapshot 返回只读副本，便于 HTTP 输出
func (m *SectorMetrics) Snapshot() map[string]any {
	tick := atomic.LoadInt64(&m.TickCount)
	total := atomic.LoadInt64(&m.TotalTickNs)
	var avgMs float64
	if tick > 0 {
		avgMs = float64(total) / float64(tick) / 1e6
	}
	return map[string]any{
		"tick_count":          tick,
		"avg_tick_ms":         avgMs,
		"inputs_accepted":     atomic.LoadInt64(&m.InputsAccepted),
		"inputs_rejected":     atomic.LoadInt64(&m.InputsRejected),
		"rate_limited":        atomic.LoadInt64(&m.RateLimited),
		"old_seq_ignored":     atomic.LoadInt64(&m.OldSeqIgnored),
		"drops_simulated":     atomic.LoadInt64(&m.DropsSimulated),
		"chan_full_discarded": atomic.LoadInt64(&m.ChanFullDiscarded),
		"shots_fired":         atomic.LoadInt64(&m.ShotsFired),
		"missiles_launched":   atomic.LoadInt64(&m.MissilesLaunched),
		"damage_dealt":        float64(atomic.LoadInt64(&m.DamageMilli)) / 1000,
		"ships_destroyed":     atomic.LoadInt64(&m.ShipsDestroyed),
	}
}

// otel 仪表从全局 MeterProvider 获取；未配置 provider 时为 no-op
type otelInstruments struct {
	ticks        metric.Int64Counter
	tickDuration metric.Float64Histogram
	shots        metric.Int64Counter
	launches     metric.Int64Counter
	damage       metric.Float64Counter
}

var (
	instOnce sync.Once
	inst     *otelInstruments
)

func instruments() *otelInstruments {
	instOnce.Do(func() {
		m := otel.Meter(instrumentationName)
		inst = &otelInstruments{}
		var err error
		if inst.ticks, err = m.Int64Counter("sector.ticks",
			metric.WithDescription("Simulation ticks executed")); err != nil {
			Log.Warnw("otel instrument", "name", "sector.ticks", "err", err)
		}
		if inst.tickDuration, err = m.Float64Histogram("sector.tick.duration",
			metric.WithDescription("Wall time spent per tick"),
			metric.WithUnit("ms")); err != nil {
			Log.Warnw("otel instrument", "name", "sector.tick.duration", "err", err)
		}
		if inst.shots, err = m.Int64Counter("weapons.beam.shots",
			metric.WithDescription("Beam shots that reached a target")); err != nil {
			Log.Warnw("otel instrument", "name", "weapons.beam.shots", "err", err)
		}
		if inst.launches, err = m.Int64Counter("weapons.tube.launches",
			metric.WithDescription("Projectiles launched from tubes")); err != nil {
			Log.Warnw("otel instrument", "name", "weapons.tube.launches", "err", err)
		}
		if inst.damage, err = m.Float64Counter("weapons.beam.damage",
			metric.WithDescription("Beam damage dealt before shields")); err != nil {
			Log.Warnw("otel instrument", "name", "weapons.beam.damage", "err", err)
		}
	})
	return inst
}
