package server

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"go.aimuz.me/hark/dictation"
	"go.aimuz.me/hark/internal/types"
)

// wsEvent is one message pushed to a websocket client.
type wsEvent struct {
	Type   string                    `json:"type"`
	Status *types.Status             `json:"status,omitempty"`
	Line   *dictation.TranscriptLine `json:"line,omitempty"`
}

// handleWS upgrades the connection, sends a hello with the current
// status, and pushes every finalized line until the client leaves.
// All writes happen on this goroutine; a client that cannot keep up
// loses lines rather than stalling the capture loop.
func (s *Server) handleWS(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Error("ws upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	out := make(chan dictation.TranscriptLine, 64)
	id := s.svc.Subscribe(func(line dictation.TranscriptLine) {
		select {
		case out <- line:
		default:
		}
	})
	defer s.svc.Unsubscribe(id)

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	st := s.svc.Status()
	if err := conn.WriteJSON(wsEvent{Type: "hello", Status: &st}); err != nil {
		return
	}

	for {
		select {
		case line := <-out:
			if err := conn.WriteJSON(wsEvent{Type: "line", Line: &line}); err != nil {
				return
			}
		case <-closed:
			return
		}
	}
}
