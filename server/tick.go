package server

import "time"

// StartTicker 启动扇区的 Tick 循环（单线程推进世界），直到 Stop
func (s *Sector) StartTicker() {
	if s.tickerStarted {
		return
	}
	s.tickerStarted = true
	interval := time.Second / time.Duration(s.ticksPerSecond)
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-s.stopChan:
				s.closeCrews()
				return
			case <-ticker.C:
				s.Tick()
			}
		}
	}()
}

// Stop 结束 Tick 循环并断开所有岗位；可重复调用
func (s *Sector) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
}

// Tick 推进一帧：处理输入 → 更新世界 → 广播事件，按下发频率广播同步增量。
// 模拟使用固定步长，与墙钟抖动无关
func (s *Sector) Tick() {
	start := time.Now()
	s.BeginTick()
	s.ProcessInputs()
	if !s.Settings().Paused {
		s.UpdateWorld(1 / float64(s.ticksPerSecond))
	}
	s.BroadcastEvents()
	if s.TickSeq()%s.flushEvery == 0 {
		s.BroadcastDelta()
	}
	s.metrics.AddTick(time.Since(start).Nanoseconds())
}

func (s *Sector) closeCrews() {
	for id, c := range s.crews {
		if c.Conn != nil {
			c.Conn.Close()
		}
		delete(s.crews, id)
	}
}
