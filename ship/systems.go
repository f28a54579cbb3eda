package ship

import "bridgesim/weapons"

const (
	maxSystemPower = 3.0
	// 每秒自然散热
	heatDissipation = 0.05
	// 功率超过 1 时每秒额外产热（每单位超额功率）
	heatPerExtraPower = 0.08
	// 过热时每秒损失的耐久
	overheatDamageRate = 0.2
)

// SystemState 单个子系统的耐久、功率与热量
type SystemState struct {
	Health float64 `json:"health"` // -1..1，负数表示严重损坏
	Power  float64 `json:"power"`  // 0..3，默认 1
	Heat   float64 `json:"heat"`   // 0..1，到 1 开始损耗耐久
}

// Effectiveness 功率乘以耐久，不低于 0
func (s SystemState) Effectiveness() float64 {
	e := s.Power * s.Health
	if e < 0 {
		return 0
	}
	return e
}

func (s *SystemState) update(delta float64) {
	if s.Power > 1 {
		s.Heat += (s.Power - 1) * heatPerExtraPower * delta
	}
	s.Heat -= heatDissipation * delta
	if s.Heat < 0 {
		s.Heat = 0
	}
	if s.Heat >= 1 {
		s.Heat = 1
		s.Health -= overheatDamageRate * delta
	}
	s.clampHealth()
}

func (s *SystemState) clampHealth() {
	if s.Health < -1 {
		s.Health = -1
	}
	if s.Health > 1 {
		s.Health = 1
	}
}

func defaultSystems() [weapons.SystemCount]SystemState {
	var out [weapons.SystemCount]SystemState
	for i := range out {
		out[i] = SystemState{Health: 1, Power: 1}
	}
	return out
}
