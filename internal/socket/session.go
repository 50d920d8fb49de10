// Package socket implements the per-connection protocol machine: decoding client frames, maintaining the heartbeat,
// forwarding decoded events to the Hub, and serializing outgoing frames onto the WebSocket.
package socket

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fasthttp/websocket"
	"github.com/rs/zerolog"

	"github.com/pusherd/pusherd/internal/frame"
	"github.com/pusherd/pusherd/internal/hub"
	"github.com/pusherd/pusherd/internal/socketid"
)

const (
	// writeWait is the time allowed to write a single message to the peer.
	writeWait = 10 * time.Second

	// activityTimeoutSeconds is advertised to the client as activity_timeout in connection_established. It is fixed and
	// independent of pongTimeout, which is the inactivity deadline heartbeatLoop enforces.
	activityTimeoutSeconds = 30

	// dispatchTimeout bounds how long a single ClientEvent dispatch may block resolving the app from the repository.
	dispatchTimeout = 3 * time.Second
)

// Session represents a single WebSocket connection. It runs two goroutines (writePump and a heartbeat loop) plus the
// caller's goroutine for readPump, forwards decoded client frames to the Hub via the Hub's ClientEvent method, and
// queues outbound frames on its send channel.
type Session struct {
	hub   *hub.Hub
	appID int64
	conn  *websocket.Conn
	log   zerolog.Logger

	pingInterval  time.Duration
	pongTimeout   time.Duration
	maxFrameBytes int64

	send chan []byte

	// done is closed exactly once to signal shutdown. writePump, the heartbeat loop, and Send all select on it.
	done      chan struct{}
	closeOnce sync.Once

	sid          socketid.ID
	lastActivity atomic.Int64 // unix nanoseconds
}

// New constructs a Session bound to conn. Call Serve to run it.
func New(conn *websocket.Conn, h *hub.Hub, appID int64, pingInterval, pongTimeout time.Duration, maxFrameBytes int64, outboxSize int, logger zerolog.Logger) *Session {
	s := &Session{
		hub:           h,
		appID:         appID,
		conn:          conn,
		log:           logger,
		pingInterval:  pingInterval,
		pongTimeout:   pongTimeout,
		maxFrameBytes: maxFrameBytes,
		send:          make(chan []byte, outboxSize),
		done:          make(chan struct{}),
	}
	s.touch()
	return s
}

// Send implements namespace.Outbox. It is safe to call from any goroutine, including the Hub's dispatch path.
func (s *Session) Send(raw []byte) {
	select {
	case <-s.done:
		return
	default:
	}

	select {
	case s.send <- raw:
	case <-s.done:
	default:
		s.log.Warn().Msg("session outbox full, closing connection")
		s.closeWithCode(websocket.ClosePolicyViolation, "send buffer full")
	}
}

// Serve runs the session to completion: it performs the handshake with the Hub, starts the write and heartbeat
// pumps, and blocks reading inbound frames until the connection closes for any reason. It must be called from its
// own goroutine by the caller (typically the fiber WebSocket upgrade handler).
func (s *Session) Serve(ctx context.Context) {
	defer func() { _ = s.conn.Close() }()

	connectCtx, cancel := context.WithTimeout(ctx, dispatchTimeout)
	sid, err := s.hub.Connect(connectCtx, s.appID, s)
	cancel()
	if err != nil {
		s.rejectConnect(err)
		return
	}
	s.sid = sid
	defer s.hub.Disconnect(s.appID, sid)

	established, err := frame.NewConnectionEstablished(sid, activityTimeoutSeconds)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to build connection_established frame")
		return
	}
	if err := s.writeDirect(established); err != nil {
		return
	}

	s.conn.SetReadLimit(s.maxFrameBytes)
	s.conn.SetPongHandler(func(string) error {
		s.touch()
		return nil
	})

	go s.writePump()
	go s.heartbeatLoop()
	defer s.closeSend()

	s.readPump()
}

// rejectConnect sends the fatal pusher:error frame and closes with the matching code when the Hub refuses to accept
// the connection (unknown app, over capacity).
func (s *Session) rejectConnect(err error) {
	code, message := frame.CloseCodeAndMessage(err)
	if f, ferr := frame.NewError(code, message); ferr == nil {
		_ = s.writeDirect(f)
	}
	s.closeWithCode(code, message)
}

// readPump reads and dispatches inbound frames until the connection errors or closes.
func (s *Session) readPump() {
	for {
		_, message, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Debug().Err(err).Msg("websocket read error")
			}
			return
		}
		s.touch()

		var f frame.Frame
		if err := json.Unmarshal(message, &f); err != nil {
			s.log.Debug().Err(err).Msg("dropping frame: invalid JSON")
			continue
		}

		s.dispatch(f)
	}
}

// dispatch routes one decoded inbound frame per the event table: pusher:ping never reaches the Hub, subscribe and
// unsubscribe carry their channel inside data, client-* events carry it at the top level.
func (s *Session) dispatch(f frame.Frame) {
	switch {
	case f.Event == frame.EventPing:
		if pong, err := frame.NewPong(); err == nil {
			s.Send(pong)
		}

	case f.Event == frame.EventSubscribe:
		var payload struct {
			Channel     string `json:"channel"`
			Auth        string `json:"auth"`
			ChannelData string `json:"channel_data"`
		}
		if err := json.Unmarshal(frame.Normalize(f.Data), &payload); err != nil {
			s.log.Debug().Err(err).Msg("dropping malformed subscribe frame")
			return
		}
		s.forward(hub.ClientEvt{Kind: hub.EventSubscribe, Channel: payload.Channel, Auth: payload.Auth, ChannelData: payload.ChannelData})

	case f.Event == frame.EventUnsubscribe:
		var payload struct {
			Channel string `json:"channel"`
		}
		if err := json.Unmarshal(frame.Normalize(f.Data), &payload); err != nil {
			s.log.Debug().Err(err).Msg("dropping malformed unsubscribe frame")
			return
		}
		s.forward(hub.ClientEvt{Kind: hub.EventUnsubscribe, Channel: payload.Channel})

	case frame.IsClientEvent(f.Event):
		inline := frame.Normalize(f.Data)
		stringified, err := frame.Stringify(inline)
		if err != nil {
			s.log.Debug().Err(err).Msg("dropping client event: cannot stringify data")
			return
		}
		s.forward(hub.ClientEvt{Kind: hub.EventBroadcast, Channel: f.Channel, Event: f.Event, Data: stringified})

	default:
		s.log.Debug().Str("event", f.Event).Msg("dropping unrecognized event")
	}
}

func (s *Session) forward(evt hub.ClientEvt) {
	ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
	defer cancel()
	s.hub.ClientEvent(ctx, s.appID, s.sid, evt)
}

// heartbeatLoop pings the peer on every tick and disconnects it if no inbound activity (including WS-level pongs)
// has been observed within pongTimeout.
func (s *Session) heartbeatLoop() {
	ticker := time.NewTicker(s.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if time.Since(s.lastActivityTime()) > s.pongTimeout {
				s.log.Debug().Msg("closing connection after inactivity")
				s.closeWithCode(frame.CloseClosedAfterInactivity, "Connection closed after inactivity")
				return
			}
			if err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-s.done:
			return
		}
	}
}

// writePump writes messages from the send channel to the connection. It exits once done is closed, draining any
// buffered messages first so the peer receives them before the socket is torn down.
func (s *Session) writePump() {
	for {
		select {
		case msg := <-s.send:
			if err := s.writeDirect(msg); err != nil {
				return
			}
		case <-s.done:
			for {
				select {
				case msg := <-s.send:
					if err := s.writeDirect(msg); err != nil {
						return
					}
				default:
					return
				}
			}
		}
	}
}

func (s *Session) writeDirect(msg []byte) error {
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteMessage(websocket.TextMessage, msg)
}

func (s *Session) closeWithCode(code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
	s.closeSend()
	_ = s.conn.Close()
}

func (s *Session) closeSend() {
	s.closeOnce.Do(func() { close(s.done) })
}

func (s *Session) touch() {
	s.lastActivity.Store(time.Now().UnixNano())
}

func (s *Session) lastActivityTime() time.Time {
	return time.Unix(0, s.lastActivity.Load())
}
