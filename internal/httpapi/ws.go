package httpapi

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/gmorelli/aria/internal/auth"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsPongTimeout  = 120 * time.Second
	wsPingInterval = 30 * time.Second
)

// handleWS streams session events to the panel. Each connection gets
// its own bounded subscription; a slow tab loses old events, not the
// connection.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	owner, _ := auth.OwnerFromContext(r.Context())

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	events, cancel := s.hub.Subscribe(owner)
	defer cancel()
	s.log.Debug().Str("owner", owner).Msg("panel connected")

	done := make(chan struct{})

	// The panel sends nothing we act on; the read loop only notices
	// disconnects and keeps the pong handler serviced.
	go func() {
		defer close(done)
		conn.SetReadLimit(4 << 10)
		_ = conn.SetReadDeadline(time.Now().Add(wsPongTimeout))
		conn.SetPongHandler(func(string) error {
			_ = conn.SetReadDeadline(time.Now().Add(wsPongTimeout))
			return nil
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(wsPingInterval)
	defer ping.Stop()

	for {
		select {
		case <-done:
			return
		case <-r.Context().Done():
			return
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case ev, ok := <-events:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(ev); err != nil {
				s.log.Debug().Str("owner", owner).Err(err).Msg("panel write failed")
				return
			}
		}
	}
}
