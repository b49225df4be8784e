package ws

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"platform-fighter/server/internal/net/proto"
	"platform-fighter/server/internal/telemetry"
)

// SessionConfig bounds one websocket session.
type SessionConfig struct {
	SendBuffer   int
	WriteWait    time.Duration
	PongWait     time.Duration
	PingPeriod   time.Duration
	MaxFrameSize int64
}

// DefaultSessionConfig mirrors gorilla's chat example timings.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		SendBuffer:   64,
		WriteWait:    10 * time.Second,
		PongWait:     60 * time.Second,
		PingPeriod:   54 * time.Second,
		MaxFrameSize: 4096,
	}
}

func (c SessionConfig) withDefaults() SessionConfig {
	def := DefaultSessionConfig()
	if c.SendBuffer <= 0 {
		c.SendBuffer = def.SendBuffer
	}
	if c.WriteWait <= 0 {
		c.WriteWait = def.WriteWait
	}
	if c.PongWait <= 0 {
		c.PongWait = def.PongWait
	}
	if c.PingPeriod <= 0 || c.PingPeriod >= c.PongWait {
		c.PingPeriod = c.PongWait * 9 / 10
	}
	if c.MaxFrameSize <= 0 {
		c.MaxFrameSize = def.MaxFrameSize
	}
	return c
}

// session owns one websocket. Frames queued by Send are written by a single
// writer goroutine; Send never blocks the simulation.
type session struct {
	id     string
	conn   *websocket.Conn
	codec  proto.Codec
	cfg    SessionConfig
	logger telemetry.Logger

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
	written   chan struct{}
}

func newSession(conn *websocket.Conn, codec proto.Codec, cfg SessionConfig, logger telemetry.Logger) *session {
	return &session{
		id:      uuid.NewString(),
		conn:    conn,
		codec:   codec,
		cfg:     cfg,
		logger:  logger,
		send:    make(chan []byte, cfg.SendBuffer),
		done:    make(chan struct{}),
		written: make(chan struct{}),
	}
}

func (s *session) ID() string         { return s.id }
func (s *session) Codec() proto.Codec { return s.codec }

// Send queues data. It reports false when the session is closed or its
// buffer is full; the frame is dropped either way.
func (s *session) Send(data []byte) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.send <- data:
		return true
	default:
		return false
	}
}

// Close asks the writer to send a close frame and release the socket.
func (s *session) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

func (s *session) messageType() int {
	if s.codec.Binary() {
		return websocket.BinaryMessage
	}
	return websocket.TextMessage
}

func (s *session) writePump() {
	ticker := time.NewTicker(s.cfg.PingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
		close(s.written)
	}()
	kind := s.messageType()
	for {
		select {
		case data := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteWait))
			if err := s.conn.WriteMessage(kind, data); err != nil {
				s.Close()
				return
			}
		case <-ticker.C:
			if err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(s.cfg.WriteWait)); err != nil {
				s.Close()
				return
			}
		case <-s.done:
			s.flush(kind)
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(s.cfg.WriteWait))
			return
		}
	}
}

// flush writes whatever is already queued so a final response or notice
// reaches the client before the close frame.
func (s *session) flush(kind int) {
	for {
		select {
		case data := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteWait))
			if err := s.conn.WriteMessage(kind, data); err != nil {
				return
			}
		default:
			return
		}
	}
}

// readPump decodes frames until the socket fails or the session closes.
// deliver returns false to stop reading.
func (s *session) readPump(deliver func(proto.ClientMessage) bool) string {
	s.conn.SetReadLimit(s.cfg.MaxFrameSize)
	s.conn.SetReadDeadline(time.Now().Add(s.cfg.PongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(s.cfg.PongWait))
	})
	for {
		_, payload, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				s.logger.Printf("[ws] session %s read failed: %v", s.id, err)
				return "read_error"
			}
			return "closed"
		}
		msg, err := s.codec.Decode(payload)
		if err != nil {
			s.logger.Printf("[ws] discarding malformed frame on %s: %v", s.id, err)
			continue
		}
		if !deliver(msg) {
			return "replaced"
		}
	}
}
