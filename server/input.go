package server

// Input 岗位指令（意图），由服务端在 Tick 中解释并驱动舰船状态
type Input struct {
	Crew CrewID
	Msg  InputMessage
}

// InputMessage 入站指令的 JSON 结构（WebSocket 文本消息），type 必须与连接的岗位一致。
// 示例：{"type":"helm","command":"impulse","value":0.5,"seq":3}
//
//	{"type":"weapons","command":"load","tube":0,"munition":"homing"}
//	{"type":"engineering","command":"power","system":"beamweapons","value":1.5}
type InputMessage struct {
	Type      string  `json:"type"`
	Command   string  `json:"command"`
	Seq       int64   `json:"seq,omitempty"` // 客户端本地序列号，用于去重
	Value     float64 `json:"value,omitempty"`
	Target    string  `json:"target,omitempty"`
	Tube      int     `json:"tube,omitempty"`
	Munition  string  `json:"munition,omitempty"`
	System    string  `json:"system,omitempty"`
	Frequency int     `json:"frequency,omitempty"`
	Count     int     `json:"count,omitempty"`
}

// JoinRequest 岗位接入请求；舰船不存在时按模板新建
type JoinRequest struct {
	Crew     CrewID
	ShipID   string
	Station  Station
	Template string
	Callsign string
	Faction  string
	Conn     Sender
}

// 岗位指令
const (
	CmdHeading = "heading"
	CmdImpulse = "impulse"
	CmdWarp    = "warp"
	CmdDock    = "dock"
	CmdUndock  = "undock"

	CmdTarget        = "target"
	CmdBeamFrequency = "beam_frequency"
	CmdBeamSystem    = "beam_system"
	CmdLoad          = "load"
	CmdUnload        = "unload"
	CmdFire          = "fire"
	CmdSalvo         = "salvo"
	CmdAim           = "aim"

	CmdPower           = "power"
	CmdShieldFrequency = "shield_frequency"
)
