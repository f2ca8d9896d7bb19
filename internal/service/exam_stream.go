package service

import (
	"context"
	"net/http"
	"schoolhub_backend/pkg/logger"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	streamWriteWait = 10 * time.Second
	streamPongWait  = 60 * time.Second
	streamPingEvery = (streamPongWait * 9) / 10
)

var streamUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// ExamStreamService pushes a SessionView snapshot to the student once per
// second over a websocket, so the client timer cannot drift from the
// server-side countdown.
type ExamStreamService struct {
	Sessions *ExamSessionService
}

func NewExamStreamService(sessions *ExamSessionService) *ExamStreamService {
	return &ExamStreamService{Sessions: sessions}
}

// Serve upgrades the request and streams snapshots until the submission
// closes, the client disconnects, or the request context ends. A disconnect
// while the attempt is still in progress tears the live session down; the
// persisted submission survives and LoadSession resumes it later.
func (svc *ExamStreamService) Serve(w http.ResponseWriter, r *http.Request, testID string, studentID uint) error {
	session, err := svc.Sessions.LoadSession(r.Context(), testID, studentID)
	if err != nil {
		return err
	}

	conn, err := streamUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	done := make(chan struct{})
	go readPump(conn, done)
	svc.writePump(r.Context(), conn, session, done)

	if session.Status() == SessionInProgress {
		svc.Sessions.Teardown(testID, studentID)
	}
	return nil
}

// readPump drains the connection so control frames are processed, and closes
// done when the client goes away.
func readPump(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)

	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(streamPongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(streamPongWait))
		return nil
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Log.Debug("exam stream read error", zap.Error(err))
			}
			return
		}
	}
}

func (svc *ExamStreamService) writePump(ctx context.Context, conn *websocket.Conn, session *ExamSession, done <-chan struct{}) {
	ticker := time.NewTicker(time.Second)
	pinger := time.NewTicker(streamPingEvery)
	defer func() {
		ticker.Stop()
		pinger.Stop()
		conn.Close()
	}()

	// Send the initial snapshot immediately rather than waiting a tick.
	if !svc.push(conn, session) {
		return
	}

	for {
		select {
		case <-ctx.Done():
			conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
			return
		case <-done:
			return
		case <-pinger.C:
			conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-ticker.C:
			if !svc.push(conn, session) {
				return
			}
		}
	}
}

// push writes one snapshot. Returns false when the stream should end, either
// because the write failed or because the attempt reached a terminal state.
func (svc *ExamStreamService) push(conn *websocket.Conn, session *ExamSession) bool {
	view := session.Snapshot()

	conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
	if err := conn.WriteJSON(view); err != nil {
		return false
	}

	if view.Status == SessionSubmitted || view.Status == SessionUnavailable {
		conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, string(view.Status)))
		return false
	}
	return true
}
