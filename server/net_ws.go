package server

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 5 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// ClientConn 负责发送（写）数据到客户端的轻量包装
type ClientConn struct {
	ws   *websocket.Conn
	send chan []byte
}

func NewClientConn(ws *websocket.Conn) *ClientConn {
	return &ClientConn{
		ws:   ws,
		send: make(chan []byte, 64),
	}
}

// Enqueue 将要发送的消息压入队列（非阻塞，满则丢弃）；只在 Tick 协程中调用
func (c *ClientConn) Enqueue(b []byte) {
	select {
	case c.send <- b:
	default:
		// 为了实时性，丢弃消息（防止阻塞 Tick）
	}
}

// Close 关闭发送队列；写协程写完剩余消息后关闭连接
func (c *ClientConn) Close() {
	if c.send != nil {
		close(c.send)
		c.send = nil
	}
}

// writePump 独立协程，负责从 send 队列写出到 WS，并定时发送 ping
func (c *ClientConn) writePump(send <-chan []byte) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()
	for {
		select {
		case msg, ok := <-send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump 读取岗位指令，转换为 Input 注入扇区
func (c *ClientConn) readPump(sector *Sector, crewID CrewID) {
	defer c.ws.Close()
	// 读泵退出时，通知扇区在 Tick 协程中移除该岗位
	defer sector.RequestLeave(crewID, c)
	c.ws.SetReadLimit(64 << 10)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error { return c.ws.SetReadDeadline(time.Now().Add(pongWait)) })

	for {
		_, payload, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				sector.log.Debugw("read error", "crew", crewID, "err", err)
			}
			return
		}
		var im InputMessage
		if err := json.Unmarshal(payload, &im); err != nil {
			sector.metrics.IncRejected()
			continue
		}
		im.Type = strings.ToLower(im.Type)
		im.Command = strings.ToLower(im.Command)
		sector.OnInput(Input{Crew: crewID, Msg: im})
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// 舰桥客户端与服务端可能不同源
		return true
	},
}

// HandleWS WebSocket 接入：?sector=alpha&ship=p1&station=helm[&crew=&template=&faction=&callsign=]
func (m *SectorManager) HandleWS(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	sectorID := q.Get("sector")
	if sectorID == "" {
		sectorID = m.DefaultSector()
	}
	shipID := q.Get("ship")
	if shipID == "" {
		http.Error(w, "missing ship query", http.StatusBadRequest)
		return
	}
	station := ParseStation(q.Get("station"))
	if station == StationNone {
		http.Error(w, "missing or unknown station", http.StatusBadRequest)
		return
	}
	crewID := CrewID(q.Get("crew"))
	if crewID == "" {
		crewID = CrewID(shipID + "/" + station.String())
	}
	faction := q.Get("faction")
	if faction == "" {
		faction = "human"
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		Log.Warnw("upgrade error", "err", err)
		return
	}

	sector := m.GetOrCreateSector(sectorID)
	client := NewClientConn(ws)
	send := client.send
	// 先投递接入请求，保证它在同一连接的离开请求之前被处理
	sector.RequestJoin(JoinRequest{
		Crew:     crewID,
		ShipID:   shipID,
		Station:  station,
		Template: q.Get("template"),
		Callsign: q.Get("callsign"),
		Faction:  faction,
		Conn:     client,
	})

	go client.writePump(send)
	go client.readPump(sector, crewID)
}
