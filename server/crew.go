package server

import "strings"

// CrewID 表示一个岗位连接的唯一标识
type CrewID string

// Station 舰桥岗位（服务端据此决定连接可以下达哪些指令）
type Station int

const (
	StationNone Station = iota
	StationHelm
	StationWeapons
	StationEngineering
)

var stationNames = [...]string{"none", "helm", "weapons", "engineering"}

func (s Station) String() string {
	if s < 0 || int(s) >= len(stationNames) {
		return "none"
	}
	return stationNames[s]
}

// ParseStation 未知岗位返回 StationNone
func ParseStation(name string) Station {
	for i, n := range stationNames {
		if i > 0 && n == strings.ToLower(name) {
			return Station(i)
		}
	}
	return StationNone
}

// Sender 连接的发送端；ClientConn 是唯一的生产实现
type Sender interface {
	Enqueue(b []byte)
	Close()
}

// Crew 扇区内的一个岗位连接；状态只在 Tick 协程中读写
type Crew struct {
	ID      CrewID
	ShipID  string
	Station Station
	Conn    Sender

	lastSeq int64
}
