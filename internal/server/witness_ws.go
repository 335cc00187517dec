package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Telemetry is observational; same-origin policy is left to the
	// reverse proxy in front of this service.
	CheckOrigin: func(r *http.Request) bool { return true },
}

const witnessWriteTimeout = 10 * time.Second

// handleWitness upgrades the connection and streams turn events until
// the client goes away. Events a slow client misses are dropped by the
// witness, never queued against the pipeline.
func (s *Server) handleWitness(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("witness upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	events, cancel := s.orch.Witness().Subscribe()
	defer cancel()

	// Reader loop exists only to detect client close.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(witnessWriteTimeout))
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
