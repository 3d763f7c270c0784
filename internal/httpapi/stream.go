package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
)

const streamWriteTimeout = 5 * time.Second

// handleStream upgrades to a websocket and forwards the student's plan
// events until either side goes away.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	studentID := r.PathValue("id")
	if err := s.validate.Var(studentID, "required,max=128"); err != nil {
		writeError(w, r, err)
		return
	}
	if s.events == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "live events are not configured"})
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		slog.Warn("websocket accept failed", "student_id", studentID, "error", err)
		return
	}
	defer func() { _ = conn.CloseNow() }()

	// Client messages are ignored; CloseRead cancels ctx when the peer leaves.
	ctx := conn.CloseRead(r.Context())
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	events, err := s.events.Subscribe(ctx, s.channel(studentID))
	if err != nil {
		slog.Error("event subscription failed", "student_id", studentID, "error", err)
		_ = conn.Close(websocket.StatusInternalError, "subscription failed")
		return
	}

	slog.Debug("event stream opened", "student_id", studentID)
	for {
		select {
		case <-ctx.Done():
			return
		case payload, ok := <-events:
			if !ok {
				_ = conn.Close(websocket.StatusNormalClosure, "")
				return
			}
			wctx, wcancel := context.WithTimeout(ctx, streamWriteTimeout)
			err := conn.Write(wctx, websocket.MessageText, payload)
			wcancel()
			if err != nil {
				slog.Debug("event stream closed", "student_id", studentID, "error", err)
				return
			}
		}
	}
}
