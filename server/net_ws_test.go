package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialStation(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?" + query
	ws, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

// readUntil 读取消息直到出现指定类型
func readUntil(t *testing.T, ws *websocket.Conn, typ string) map[string]any {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		_, payload, err := ws.ReadMessage()
		require.NoError(t, err)
		var m map[string]any
		require.NoError(t, json.Unmarshal(payload, &m))
		if m["type"] == typ {
			return m
		}
	}
}

func TestWebSocketStationSession(t *testing.T) {
	m, mux := newTestManager(t, SectorOptions{TicksPerSecond: 50, FlushHz: 50})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	helm := dialStation(t, srv, "ship=p1&station=helm")
	snap := readUntil(t, helm, "snapshot")
	assert.Equal(t, "p1", snap["ship"])

	require.NoError(t, helm.WriteJSON(map[string]any{"type": "Helm", "command": "IMPULSE", "value": 1, "seq": 1}))
	require.NoError(t, helm.WriteJSON(map[string]any{"type": "weapons", "command": "fire", "seq": 2}))
	reply := readUntil(t, helm, "error")
	assert.Equal(t, "fire", reply["command"])

	s, ok := m.Sector("alpha")
	require.True(t, ok)
	assert.Eventually(t, func() bool {
		return s.Metrics().Snapshot()["inputs_accepted"] == int64(1)
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWebSocketRejectsBadQuery(t *testing.T) {
	_, mux := newTestManager(t, SectorOptions{})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	for _, q := range []string{"station=helm", "ship=p1", "ship=p1&station=captain"} {
		url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?" + q
		_, resp, err := websocket.DefaultDialer.Dial(url, nil)
		require.Error(t, err, q)
		require.NotNil(t, resp, q)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, q)
	}
}
