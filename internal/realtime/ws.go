package realtime

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/washpoint/washpoint-backend/pkg/logger"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// origin policy is enforced by the CORS middleware in front
		return true
	},
}

// ServeWS upgrades the request and streams hub events for the given topics
// until the client disconnects.
func ServeWS(hub *Hub, logg *logger.Logger, w http.ResponseWriter, r *http.Request, topics []Topic) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		if logg != nil {
			logg.Warn(r.Context(), "websocket upgrade failed: "+err.Error())
		}
		return
	}

	sub := hub.Subscribe(topics...)
	defer sub.Close()
	defer conn.Close()

	done := make(chan struct{})
	go readLoop(conn, done)
	writeLoop(r.Context(), conn, sub, done)
}

// readLoop drains client frames so pong handlers fire and close frames are
// seen promptly. Inbound payloads are ignored, the stream is one-way.
func readLoop(conn *websocket.Conn, done chan struct{}) {
	defer close(done)
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func writeLoop(ctx context.Context, conn *websocket.Conn, sub *Subscription, done chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-sub.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteJSON(event); err != nil {
				return
			}

		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-done:
			return

		case <-ctx.Done():
			return
		}
	}
}
