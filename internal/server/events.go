package server

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/jaki95/timeline-editor/internal/progress"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// exportEvents streams progress events of an export over a websocket until
// the job reaches a terminal stage or the client goes away. Updates are
// coalesced: a slow client always receives the latest state.
func (s *Server) exportEvents(c *gin.Context) {
	jobID := c.Param("id")
	tracker, err := s.jobs.Tracker(jobID)
	if err != nil {
		s.respondError(c, err)
		return
	}

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("WebSocket upgrade failed", "job", jobID, "error", err)
		return
	}
	defer conn.Close()

	changed := make(chan struct{}, 1)
	remove := tracker.AddListener(func(progress.Event) {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	defer remove()

	closed := make(chan struct{})
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					s.logger.Debug("WebSocket closed", "job", jobID, "error", err)
				}
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	var last *progress.Event
	send := func() (done bool) {
		event := tracker.GetCurrentState()
		if last == nil || !sameState(*last, event) {
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(event); err != nil {
				return true
			}
			last = &event
		}
		if event.Stage.Terminal() {
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, string(event.Stage)))
			return true
		}
		return false
	}

	if send() {
		return
	}
	for {
		select {
		case <-changed:
			if send() {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-closed:
			return
		}
	}
}

func sameState(a, b progress.Event) bool {
	if a.Stage != b.Stage || a.Progress != b.Progress || a.Message != b.Message || a.Error != b.Error {
		return false
	}
	if (a.Step == nil) != (b.Step == nil) {
		return false
	}
	return a.Step == nil || *a.Step == *b.Step
}
