package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// wsTransport WebSocket 传输：每条二进制消息承载一个完整信封，无需长度前缀
type wsTransport struct {
	ws *websocket.Conn
}

func NewWSTransport(ws *websocket.Conn) Transport {
	ws.SetReadLimit(MaxPacketSize)
	return &wsTransport{ws: ws}
}

func (t *wsTransport) ReadEnvelope() ([]byte, error) {
	for {
		kind, payload, err := t.ws.ReadMessage()
		if err != nil {
			return nil, err
		}
		if kind != websocket.BinaryMessage {
			// 文本帧不属于协议，跳过
			continue
		}
		if len(payload) == 0 {
			return nil, ErrZeroLength
		}
		return payload, nil
	}
}

func (t *wsTransport) WriteEnvelope(b []byte) error {
	if len(b) > MaxPacketSize {
		return fmt.Errorf("%w: %d bytes (max %d)", ErrPacketTooLarge, len(b), MaxPacketSize)
	}
	_ = t.ws.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return t.ws.WriteMessage(websocket.BinaryMessage, b)
}

func (t *wsTransport) SetReadDeadline(d time.Time) error { return t.ws.SetReadDeadline(d) }

func (t *wsTransport) RemoteAddr() string {
	if a := t.ws.RemoteAddr(); a != nil {
		return a.String()
	}
	return ""
}

func (t *wsTransport) Close() error { return t.ws.Close() }

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// 浏览器客户端跨域接入
		return true
	},
}

// HandleWS WebSocket 接入：升级后与 TCP 连接走同一套 Session 流程
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		Log.Warnf("upgrade error: %v", err)
		return
	}
	s := h.NewSession(NewWSTransport(ws))
	go s.Run()
}
