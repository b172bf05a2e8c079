package devserver

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/architech-studio/architech/pkg/api"
	"github.com/architech-studio/architech/pkg/logging"
	"github.com/architech-studio/architech/pkg/pubsub"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// handleWebSocket serves realtime simulation events. A client that has not
// subscribed to any simulation receives every event; once subscribed it
// only receives events of its rooms.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.WarnContext(r.Context(), "websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()
	ctx = logging.WithRequestID(ctx, logging.GetRequestID(r.Context()))

	session := pubsub.NewSession(ctx, s.broker)
	defer session.Close()
	if err := session.Join(pubsub.BroadcastTopic); err != nil {
		return
	}
	logging.InfoContext(ctx, "websocket client connected", "remoteAddr", r.RemoteAddr)

	done := make(chan struct{})
	go func() {
		defer close(done)
		defer conn.Close() // unblocks readCommands
		s.writeEvents(ctx, conn, session)
	}()

	s.readCommands(ctx, conn, session)
	cancel()
	<-done
	logging.InfoContext(ctx, "websocket client disconnected")
}

// readCommands handles subscribe and unsubscribe messages until the client goes away
func (s *Server) readCommands(ctx context.Context, conn *websocket.Conn, session *pubsub.Session) {
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg api.ClientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logging.WarnContext(ctx, "websocket read failed", "error", err)
			}
			return
		}
		if msg.SimulationID == "" {
			continue
		}

		topic := pubsub.SimulationTopic(msg.SimulationID)
		switch msg.Type {
		case api.MessageSubscribe:
			if err := session.Join(topic); err != nil {
				return
			}
			session.Leave(pubsub.BroadcastTopic)
			logging.InfoContext(ctx, "client subscribed", "simulationID", msg.SimulationID)
		case api.MessageUnsubscribe:
			session.Leave(topic)
			if len(session.Rooms()) == 0 {
				if err := session.Join(pubsub.BroadcastTopic); err != nil {
					return
				}
			}
			logging.InfoContext(ctx, "client unsubscribed", "simulationID", msg.SimulationID)
		default:
			logging.DebugContext(ctx, "ignoring websocket message", "type", msg.Type)
		}
	}
}

// writeEvents forwards session events and keeps the connection alive with pings
func (s *Server) writeEvents(ctx context.Context, conn *websocket.Conn, session *pubsub.Session) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			writeClose(conn)
			return
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case event, ok := <-session.Events():
			if !ok {
				writeClose(conn)
				return
			}
			var simEvent api.SimulationEvent
			if err := json.Unmarshal(event.Data, &simEvent); err != nil {
				logging.ErrorContext(ctx, "malformed simulation event", "topic", event.Topic, "error", err)
				continue
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(api.ServerMessage{Type: api.MessageEvent, Event: simEvent}); err != nil {
				logging.DebugContext(ctx, "websocket write failed", "error", err)
				return
			}
		}
	}
}

func writeClose(conn *websocket.Conn) {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}
