package net

import (
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/tilerealm/server/internal/core/ecs"
	"github.com/tilerealm/server/internal/net/packet"
)

// Conn is the part of a websocket connection a Session uses.
// *websocket.Conn satisfies it.
type Conn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetReadLimit(limit int64)
	RemoteAddr() net.Addr
	Close() error
}

// SessionConfig holds the per-connection limits.
type SessionConfig struct {
	InQueueSize      int
	OutQueueSize     int
	PacketsPerSecond int // 0 = unlimited
	MaxMessageSize   int64
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
}

// Session represents a single client connection. Network I/O runs in
// dedicated goroutines; game state is accessed only from the game loop.
type Session struct {
	ID    uint64
	conn  Conn
	codec Codec
	cfg   SessionConfig
	state atomic.Int32 // packet.SessionState stored as int32

	InQueue  chan *packet.Reader // game loop reads messages from here
	OutQueue chan []byte         // writer goroutine reads frames from here

	IP       string
	Username string    // set at login, game loop only
	Player   ecs.ID    // zero until the player enters the world
	Joined   time.Time // game loop only

	outBuf []packet.Message // flushed once per tick by the output system

	closeCh   chan struct{}
	closeOnce sync.Once
	closed    atomic.Bool
	onClose   func(id uint64)

	// set by CloseFlush; the writer owns the final close from then on
	flushCh   chan struct{}
	flushOnce sync.Once
	flushing  atomic.Bool
	started   atomic.Bool

	// readLoop goroutine only
	pktCount   int
	pktResetAt int64

	log *zap.Logger
}

func NewSession(conn Conn, id uint64, codec Codec, cfg SessionConfig, log *zap.Logger) *Session {
	if cfg.InQueueSize <= 0 {
		cfg.InQueueSize = 1
	}
	if cfg.OutQueueSize <= 0 {
		cfg.OutQueueSize = 1
	}
	s := &Session{
		ID:       id,
		conn:     conn,
		codec:    codec,
		cfg:      cfg,
		InQueue:  make(chan *packet.Reader, cfg.InQueueSize),
		OutQueue: make(chan []byte, cfg.OutQueueSize),
		closeCh:  make(chan struct{}),
		flushCh:  make(chan struct{}),
		log:      log.With(zap.Uint64("session", id)),
	}
	if addr := conn.RemoteAddr(); addr != nil {
		s.IP = addr.String()
	}
	s.state.Store(int32(packet.StateConnected))
	return s
}

func (s *Session) State() packet.SessionState {
	return packet.SessionState(s.state.Load())
}

func (s *Session) SetState(st packet.SessionState) {
	s.state.Store(int32(st))
}

// OnClose registers fn to run once when the session closes. Must be set
// before Start.
func (s *Session) OnClose(fn func(id uint64)) { s.onClose = fn }

// Start launches the reader and writer goroutines.
func (s *Session) Start() {
	if s.cfg.MaxMessageSize > 0 {
		s.conn.SetReadLimit(s.cfg.MaxMessageSize)
	}
	s.started.Store(true)
	go s.readLoop()
	go s.writeLoop()
}

// Send buffers a message. Nothing reaches the socket until FlushOutput.
// Game loop only.
func (s *Session) Send(msg packet.Message) {
	if s.closed.Load() {
		return
	}
	s.outBuf = append(s.outBuf, msg)
}

// Pending returns the number of buffered messages.
func (s *Session) Pending() int { return len(s.outBuf) }

// FlushOutput encodes the buffered messages into one frame and hands it to
// the writer. A full OutQueue disconnects the session.
func (s *Session) FlushOutput() {
	if len(s.outBuf) == 0 {
		return
	}
	frame, err := s.codec.Encode(s.outBuf)
	s.outBuf = s.outBuf[:0]
	if err != nil {
		s.log.Error("encode frame", zap.Error(err))
		return
	}
	select {
	case s.OutQueue <- frame:
	default:
		s.log.Warn("output queue full, dropping slow client")
		s.Close()
	}
}

// CloseFlush delivers everything buffered, including messages sent this
// tick, then closes the connection. The session reports closed at once;
// the socket stays open until the writer has drained OutQueue or a write
// fails. Game loop only.
func (s *Session) CloseFlush() {
	if s.closed.Load() {
		return
	}
	s.FlushOutput()
	if s.closed.Load() {
		return
	}
	s.flushing.Store(true)
	s.closed.Store(true)
	s.SetState(packet.StateDisconnecting)
	if !s.started.Load() {
		s.drain()
		s.shutdown()
		return
	}
	s.flushOnce.Do(func() { close(s.flushCh) })
}

// Close shuts the session down. Safe to call from any goroutine. A pending
// CloseFlush is left to finish.
func (s *Session) Close() {
	if s.flushing.Load() && s.started.Load() {
		return
	}
	s.shutdown()
}

func (s *Session) shutdown() {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.SetState(packet.StateDisconnecting)
		close(s.closeCh)
		s.conn.Close()
		if s.onClose != nil {
			s.onClose(s.ID)
		}
	})
}

func (s *Session) IsClosed() bool {
	return s.closed.Load()
}

// Done is closed when the session closes.
func (s *Session) Done() <-chan struct{} { return s.closeCh }

// allow counts one inbound frame against the per-second budget.
func (s *Session) allow(now int64) bool {
	if s.cfg.PacketsPerSecond <= 0 {
		return true
	}
	if now != s.pktResetAt {
		s.pktCount = 0
		s.pktResetAt = now
	}
	s.pktCount++
	return s.pktCount <= s.cfg.PacketsPerSecond
}

func (s *Session) readLoop() {
	defer s.Close()

	for {
		if s.cfg.ReadTimeout > 0 {
			s.conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		}
		_, frame, err := s.conn.ReadMessage()
		if err != nil {
			if !s.closed.Load() && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Debug("read failed", zap.Error(err))
			}
			return
		}

		if !s.allow(time.Now().Unix()) {
			s.log.Warn("packet rate exceeded, disconnecting", zap.Int("pps", s.pktCount))
			return
		}

		msgs, err := s.codec.Decode(frame)
		if err != nil {
			// Malformed input is dropped; the connection stays up.
			s.log.Debug("malformed frame", zap.Error(err), zap.Int("len", len(frame)))
			continue
		}

		for _, m := range msgs {
			// Block rather than drop so movement steps are never lost.
			select {
			case s.InQueue <- m:
			case <-s.closeCh:
				return
			}
		}
	}
}

func (s *Session) writeLoop() {
	defer s.shutdown()

	for {
		select {
		case frame := <-s.OutQueue:
			if err := s.write(frame); err != nil {
				if !s.closed.Load() && !errors.Is(err, websocket.ErrCloseSent) {
					s.log.Debug("write failed", zap.Error(err))
				}
				return
			}
		case <-s.flushCh:
			s.drain()
			return
		case <-s.closeCh:
			return
		}
	}
}

// drain writes whatever is left in OutQueue and says goodbye.
func (s *Session) drain() {
	for {
		select {
		case frame := <-s.OutQueue:
			if err := s.write(frame); err != nil {
				s.log.Debug("final write failed", zap.Error(err))
				return
			}
		default:
			if s.cfg.WriteTimeout > 0 {
				s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			}
			s.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

func (s *Session) write(frame []byte) error {
	if s.cfg.WriteTimeout > 0 {
		s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
	}
	return s.conn.WriteMessage(s.codec.MessageType(), frame)
}
