package relay

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/opd-ai/threshold-relay/noise"
	"github.com/opd-ai/threshold-relay/wire"
	"github.com/sirupsen/logrus"
)

// wsOutbound adapts a gorilla/websocket connection to the Outbound
// interface, serialising writes through a buffered channel so concurrent
// senders (the read loop replying, the reaper broadcasting a timeout) never
// interleave frames on the same socket.
type wsOutbound struct {
	conn   *websocket.Conn
	outbox chan []byte
	closed chan struct{}
}

func newWSOutbound(conn *websocket.Conn) *wsOutbound {
	w := &wsOutbound{conn: conn, outbox: make(chan []byte, 64), closed: make(chan struct{})}
	go w.writeLoop()
	return w
}

func (w *wsOutbound) writeLoop() {
	for {
		select {
		case frame, ok := <-w.outbox:
			if !ok {
				return
			}
			if err := w.conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
				return
			}
		case <-w.closed:
			return
		}
	}
}

// WriteFrame queues frame for the write loop. It never blocks the caller
// on socket I/O directly.
func (w *wsOutbound) WriteFrame(frame []byte) error {
	select {
	case w.outbox <- frame:
		return nil
	case <-w.closed:
		return fmt.Errorf("relay: connection closed")
	}
}

func (w *wsOutbound) Close() error {
	select {
	case <-w.closed:
	default:
		close(w.closed)
	}
	return w.conn.Close()
}

// Server wraps a State with an HTTP upgrade handler and a reaper goroutine.
type Server struct {
	state    *State
	reaper   *Reaper
	upgrader websocket.Upgrader
}

// NewServer builds a relay Server that expires sessions and rooms every
// interval, tearing down entries idle for longer than timeout.
func NewServer(interval, timeout time.Duration) *Server {
	state := NewState()
	reaper := NewReaper(state.Sessions, state.Meetings, interval, timeout)
	reaper.OnSessionExpired(func(sessionID wire.SessionId) {
		logrus.WithFields(logrus.Fields{"session_id": sessionID}).Info("relay: notifying participants of session timeout")
	})
	return &Server{
		state:  state,
		reaper: reaper,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Run starts the reaper goroutine. Call once before serving traffic.
func (s *Server) Run() { go s.reaper.Run() }

// Stop halts the reaper goroutine.
func (s *Server) Stop() { s.reaper.Stop() }

// ServeHTTP upgrades an incoming request to a WebSocket and runs its
// connection's read loop until the socket closes.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logrus.WithError(err).Warn("relay: websocket upgrade failed")
		return
	}
	s.handleConnection(conn)
}

func (s *Server) handleConnection(conn *websocket.Conn) {
	out := newWSOutbound(conn)
	relayConn, err := s.state.Registry.Add(noise.Responder, out)
	if err != nil {
		logrus.WithError(err).Error("relay: failed to initialize connection state")
		out.Close()
		return
	}
	defer func() {
		s.state.DisconnectCaller(relayConn)
		out.Close()
	}()

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if msgType != websocket.BinaryMessage {
			continue
		}
		if err := s.state.HandleFrame(relayConn, data, time.Now()); err != nil {
			logrus.WithFields(logrus.Fields{
				"conn_id": relayConn.ID,
				"error":   err.Error(),
			}).Debug("relay: frame handling error")
		}
	}
}
