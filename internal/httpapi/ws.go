package httpapi

import (
	"net/http"
	"time"

	"example.com/wordmint/internal/game"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleWS streams instance state to the owning player.
// Requires the credential: /ws?instanceId=xxx&token=yyy
func (h *Handler) handleWS(w http.ResponseWriter, r *http.Request) {
	instanceID := r.URL.Query().Get("instanceId")
	token := r.URL.Query().Get("token")

	inst, found, err := h.Games.GetOrLoad(r.Context(), instanceID)
	if err != nil {
		h.Log.Warn("ws instance lookup failed", "instanceId", instanceID, "err", err)
	}
	stored := ""
	if found {
		stored = inst.Credential()
	}
	if !h.Auth.Verify(token, stored) || !found {
		writeUnauthorized(w)
		return
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	cc := game.NewClientConn(ws)
	inst.Subscribe(cc)
	defer func() {
		inst.Unsubscribe(cc)
		cc.Close()
	}()

	// writer loop
	go func() {
		ticker := time.NewTicker(25 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case msg, ok := <-cc.Send():
				if !ok {
					return
				}
				_ = ws.WriteMessage(websocket.TextMessage, msg)
			case <-ticker.C:
				_ = ws.WriteMessage(websocket.PingMessage, []byte{})
			}
		}
	}()

	// reader loop; the stream is one-way, reads only detect disconnect
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			return
		}
	}
}
