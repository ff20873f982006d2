package server

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"pattern-bot/internal/session"
	"pattern-bot/internal/symbol"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Stream control messages; anything else is parsed as a symbol.
const (
	streamPredict = "predict"
	streamStats   = "stats"
)

const streamIdleTimeout = 5 * time.Minute

// handleStream upgrades to a WebSocket on which every text frame is a symbol
// to push. Each frame is answered with the push outcome as JSON. Once the
// session is deleted or evicted the next frame gets an error reply and the
// stream is closed.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	sess, err := s.manager.Get(r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Str("session", sess.ID()).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	if s.metrics != nil {
		s.metrics.WSConnections().Add(1)
		defer s.metrics.WSConnections().Add(-1)
	}

	conn.SetReadLimit(s.readLimit)
	log.Info().Str("session", sess.ID()).Str("remote", r.RemoteAddr).Msg("stream opened")

	for {
		conn.SetReadDeadline(time.Now().Add(streamIdleTimeout))
		kind, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn().Err(err).Str("session", sess.ID()).Msg("stream read failed")
			}
			break
		}
		if kind != websocket.TextMessage {
			continue
		}

		reply, open := s.streamReply(sess, string(data))
		if err := conn.WriteJSON(reply); err != nil {
			log.Warn().Err(err).Str("session", sess.ID()).Msg("stream write failed")
			break
		}
		if !open {
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed")
			_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
			break
		}
	}

	log.Info().Str("session", sess.ID()).Msg("stream closed")
}

// streamReply answers one frame. open is false once the session is gone.
func (s *Server) streamReply(sess *session.Session, msg string) (reply any, open bool) {
	if sess.Closed() {
		return s.streamError(fmt.Errorf("%w: %s", session.ErrSessionNotFound, sess.ID())), false
	}
	sess.Touch()

	switch strings.ToLower(strings.TrimSpace(msg)) {
	case streamPredict:
		return predictResponse(sess), true
	case streamStats:
		return sess.Stats(), true
	}

	in, err := symbol.Parse(msg)
	if err != nil {
		return s.streamError(err), true
	}
	out, err := sess.Push(in)
	if err != nil {
		return s.streamError(err), false
	}
	return out, true
}

func (s *Server) streamError(err error) ErrorResponse {
	if s.metrics != nil {
		s.metrics.Errors().Inc()
	}
	return ErrorResponse{Error: err.Error()}
}
