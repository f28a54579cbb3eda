package server

import (
	"encoding/json"
	"net/http"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (m *SectorManager) sectorFromQuery(r *http.Request) string {
	id := r.URL.Query().Get("sector")
	if id == "" {
		id = m.DefaultSector()
	}
	return id
}

// HandleAdminConfig 提供扇区 Tick 参数的读取与更新（热更新）
// GET /admin/config?sector=alpha  返回当前配置
// POST /admin/config?sector=alpha 以 JSON 载荷更新部分字段
func (m *SectorManager) HandleAdminConfig(w http.ResponseWriter, r *http.Request) {
	sectorID := m.sectorFromQuery(r)
	sector := m.GetOrCreateSector(sectorID)

	type patch struct {
		MaxInputsPerTick *int     `json:"maxInputsPerTick,omitempty"`
		SimulateDropProb *float64 `json:"simulateDropProb,omitempty"`
		Paused           *bool    `json:"paused,omitempty"`
	}

	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, sector.Settings())
	case http.MethodPost:
		var body patch
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if body.MaxInputsPerTick != nil && *body.MaxInputsPerTick < 0 {
			http.Error(w, "maxInputsPerTick must be >= 0", http.StatusBadRequest)
			return
		}
		if body.SimulateDropProb != nil && (*body.SimulateDropProb < 0 || *body.SimulateDropProb > 1) {
			http.Error(w, "simulateDropProb must be within [0,1]", http.StatusBadRequest)
			return
		}
		cur := sector.UpdateSettings(func(s *SectorSettings) {
			if body.MaxInputsPerTick != nil {
				s.MaxInputsPerTick = *body.MaxInputsPerTick
			}
			if body.SimulateDropProb != nil {
				s.SimulateDropProb = *body.SimulateDropProb
			}
			if body.Paused != nil {
				s.Paused = *body.Paused
			}
		})
		Log.Infow("config updated", "sector", sectorID,
			"maxInputsPerTick", cur.MaxInputsPerTick, "drop", cur.SimulateDropProb, "paused", cur.Paused)
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "settings": cur})
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleMetrics 输出指定扇区的运行指标；不带 sector 时列出全部扇区
// GET /metrics?sector=alpha
func (m *SectorManager) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("sector")
	if id == "" {
		out := make(map[string]any)
		for _, sid := range m.SectorIDs() {
			if s, ok := m.Sector(sid); ok {
				out[sid] = sectorMetricsPayload(s)
			}
		}
		writeJSON(w, http.StatusOK, out)
		return
	}
	s, ok := m.Sector(id)
	if !ok {
		http.Error(w, "unknown sector", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, sectorMetricsPayload(s))
}

func sectorMetricsPayload(s *Sector) map[string]any {
	return map[string]any{
		"sector":  s.ID,
		"tick":    s.TickSeq(),
		"ships":   s.ShipCount(),
		"metrics": s.Metrics().Snapshot(),
	}
}

// HandleShots 查询某艘船的历史光束命中（需要启用战斗记录）
// GET /admin/shots?ship=p1
func (m *SectorManager) HandleShots(w http.ResponseWriter, r *http.Request) {
	if m.opts.History == nil {
		http.Error(w, "combat recorder disabled", http.StatusServiceUnavailable)
		return
	}
	shipID := r.URL.Query().Get("ship")
	if shipID == "" {
		http.Error(w, "missing ship query", http.StatusBadRequest)
		return
	}
	shots, err := m.opts.History.Shots(r.Context(), shipID)
	if err != nil {
		Log.Errorw("query shots", "ship", shipID, "err", err)
		http.Error(w, "query failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ship": shipID, "shots": shots})
}

// HandleHealthz 存活探针
func HandleHealthz(w http.ResponseWriter, _ *http.Request) {
	_, _ = w.Write([]byte("ok"))
}

// Routes 注册全部 HTTP 接口
func (m *SectorManager) Routes(mux *http.ServeMux) {
	mux.HandleFunc("/ws", m.HandleWS)
	mux.HandleFunc("/admin/config", m.HandleAdminConfig)
	mux.HandleFunc("/admin/shots", m.HandleShots)
	mux.HandleFunc("/metrics", m.HandleMetrics)
	mux.HandleFunc("/healthz", HandleHealthz)
}
