// Package websocket exposes the gateway over a WebSocket endpoint using
// gorilla/websocket. Each accepted connection gets a session with a single
// writer goroutine behind a bounded outbound queue, so one slow client can
// never stall the dispatcher.
package websocket

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/simobotlist/gateway/internal/runtime/envelope"
	errspkg "github.com/simobotlist/gateway/internal/runtime/errors"
	"github.com/simobotlist/gateway/internal/runtime/ids"
	"github.com/simobotlist/gateway/internal/runtime/jsoncodec"
	"github.com/simobotlist/gateway/internal/runtime/logging"
	"github.com/simobotlist/gateway/transport"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 32 * 1024

	// DefaultQueueSize bounds the per-session outbound queue. When the
	// queue is full the oldest pending envelope is dropped so the sender
	// never blocks.
	DefaultQueueSize = 64
)

// Options tunes the WebSocket handler. Zero values fall back to defaults.
type Options struct {
	QueueSize        int
	Logger           logging.ServiceLogger
	CheckOrigin      func(r *http.Request) bool
	OnDrop           func(sessionID string)
	ReadLimit        int64
	HandshakeTimeout time.Duration
}

// NewHTTPHandler returns an http.Handler that upgrades requests and hands
// the resulting session to the gateway handler.
func NewHTTPHandler(handler transport.Handler, opts Options) http.Handler {
	if handler == nil {
		panic("websocket: session handler is required")
	}
	log := opts.Logger
	if log == nil {
		log = logging.Nop()
	}
	queueSize := opts.QueueSize
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	readLimit := opts.ReadLimit
	if readLimit <= 0 {
		readLimit = maxMessageSize
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:   4096,
		WriteBufferSize:  4096,
		HandshakeTimeout: opts.HandshakeTimeout,
		CheckOrigin:      opts.CheckOrigin,
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Debug("websocket upgrade failed", logging.LogFields{"error": err.Error(), "remote": r.RemoteAddr})
			return
		}

		session := newSession(conn, queueSize, log, opts.OnDrop)
		session.readLimit = readLimit
		session.start()
		defer session.Close()

		handler(r.Context(), session)
	})
}

// Session is a WebSocket-backed transport.Session.
type Session struct {
	id        string
	conn      *websocket.Conn
	log       logging.ServiceLogger
	readLimit int64

	outbound chan []byte
	onDrop   func(sessionID string)

	mu        sync.Mutex
	open      bool
	closeOnce sync.Once
	done      chan struct{}
}

var _ transport.Session = (*Session)(nil)

func newSession(conn *websocket.Conn, queueSize int, log logging.ServiceLogger, onDrop func(string)) *Session {
	return &Session{
		id:        ids.NewULID(),
		conn:      conn,
		log:       log,
		readLimit: maxMessageSize,
		outbound:  make(chan []byte, queueSize),
		onDrop:    onDrop,
		open:      true,
		done:      make(chan struct{}),
	}
}

func (s *Session) start() {
	s.conn.SetReadLimit(s.readLimit)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	go s.writeLoop()
}

func (s *Session) ID() string { return s.id }

// Receive reads frames until one parses as a login message. Frames that
// are not valid JSON objects are skipped; the protocol has no other
// inbound message type.
func (s *Session) Receive() (transport.Message, error) {
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			s.markClosed()
			return transport.Message{}, err
		}

		var msg transport.Message
		if err := jsoncodec.Unmarshal(data, &msg); err != nil {
			s.log.Debug("discarding unparseable frame", logging.LogFields{
				"session_id": s.id,
				"error":      err.Error(),
			})
			continue
		}
		return msg, nil
	}
}

// Send marshals the envelope and enqueues it for the writer goroutine.
// When the queue is full the oldest pending envelope is evicted first.
func (s *Session) Send(env envelope.Envelope) error {
	if !s.IsOpen() {
		return errspkg.ErrSessionClosed
	}

	data, err := jsoncodec.Marshal(env)
	if err != nil {
		return err
	}

	for {
		select {
		case s.outbound <- data:
			return nil
		case <-s.done:
			return errspkg.ErrSessionClosed
		default:
		}

		// Queue full: evict the oldest frame and retry.
		select {
		case <-s.outbound:
			if s.onDrop != nil {
				s.onDrop(s.id)
			}
			s.log.Debug("outbound queue full, dropping oldest envelope", logging.LogFields{"session_id": s.id})
		default:
		}
	}
}

func (s *Session) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.markClosed()
		close(s.done)
		_ = s.conn.Close()
	})
	return nil
}

func (s *Session) markClosed() {
	s.mu.Lock()
	s.open = false
	s.mu.Unlock()
}

func (s *Session) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.Close()
	}()

	for {
		select {
		case data := <-s.outbound:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				s.log.Debug("websocket write failed", logging.LogFields{
					"session_id": s.id,
					"error":      err.Error(),
				})
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-s.done:
			return
		}
	}
}
