package httpapi

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/widechat/widechat/internal/protocol"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsReadTimeout  = 120 * time.Second
	wsReadLimit    = 1 << 20
	wsSendBuffer   = 256
)

// wsConn adapts one websocket to the registry's connection handle. Send is
// called from router goroutines and must never block: events are queued for
// the single writer goroutine and dropped when the queue is full or the
// connection is closing.
type wsConn struct {
	id       string
	outbound chan any
	done     chan struct{}
	once     sync.Once
}

func newWSConn() *wsConn {
	return &wsConn{
		id:       uuid.NewString(),
		outbound: make(chan any, wsSendBuffer),
		done:     make(chan struct{}),
	}
}

func (c *wsConn) ID() string { return c.id }

func (c *wsConn) Send(event any) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.outbound <- event:
		return true
	default:
		return false
	}
}

func (c *wsConn) close() {
	c.once.Do(func() { close(c.done) })
}

// handleWS is the realtime gateway. The transport-level token authenticates
// the subject; the join frame then binds the connection to that user in the
// registry. Everything after join is presence, typing and call signaling.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimSpace(r.URL.Query().Get("token"))
	if token == "" {
		respondError(w, http.StatusUnauthorized, "missing_token", "query parameter token is required")
		return
	}
	subject, err := s.issuer.Verify(token)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "invalid_token", "token rejected")
		return
	}

	sock, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer sock.Close()

	conn := newWSConn()
	defer conn.close()

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for {
			select {
			case <-conn.done:
				return
			case msg := <-conn.outbound:
				_ = sock.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
				if err := sock.WriteJSON(msg); err != nil {
					conn.close()
					return
				}
				if t, ok := protocol.TypeOf(msg); ok && s.metrics != nil {
					s.metrics.WSMessages.WithLabelValues("outbound", string(t)).Inc()
				}
			}
		}
	}()

	sock.SetReadLimit(wsReadLimit)
	_ = sock.SetReadDeadline(time.Now().Add(wsReadTimeout))
	sock.SetPongHandler(func(string) error {
		_ = sock.SetReadDeadline(time.Now().Add(wsReadTimeout))
		return nil
	})

	joined := false
	for {
		msgType, data, err := sock.ReadMessage()
		if err != nil {
			break
		}
		_ = sock.SetReadDeadline(time.Now().Add(wsReadTimeout))
		if msgType != websocket.TextMessage {
			continue
		}

		parsed, err := protocol.ParseClientFrame(data)
		if err != nil {
			conn.Send(protocol.ErrorEvent{
				Type:   protocol.TypeErrorEvent,
				Code:   "invalid_frame",
				Detail: err.Error(),
			})
			continue
		}

		switch frame := parsed.(type) {
		case protocol.JoinFrame:
			if frame.UserID != subject {
				conn.Send(protocol.ErrorEvent{
					Type:   protocol.TypeErrorEvent,
					Code:   "subject_mismatch",
					Detail: "join user_id does not match the authenticated user",
				})
				continue
			}
			s.registry.Activate(subject, conn)
			joined = true
			s.countInbound(protocol.FrameJoin)
		case protocol.HeartbeatFrame:
			if !joined {
				continue
			}
			s.registry.Touch(subject)
			s.countInbound(protocol.FrameHeartbeat)
		case protocol.TypingFrame:
			if !joined {
				continue
			}
			s.relay.Typing(subject, frame)
			s.countInbound(protocol.FrameTyping)
		case protocol.SignalFrame:
			if !joined {
				continue
			}
			s.relay.Signal(subject, frame)
			s.countInbound(protocol.FrameWebRTCSignal)
		case protocol.ScreenShareFrame:
			if !joined {
				continue
			}
			s.relay.ScreenShare(subject, frame)
			s.countInbound(protocol.FrameScreenShare)
		}
	}

	if joined {
		// Only unbinds when this handle still owns the user's session; a
		// newer connection for the same user is left alone.
		s.registry.DeactivateConn(conn.ID())
	}
	conn.close()
	<-writerDone
}

func (s *Server) countInbound(t protocol.FrameType) {
	if s.metrics != nil {
		s.metrics.WSMessages.WithLabelValues("inbound", string(t)).Inc()
	}
}
