package net

import (
	"net/http"
	"sync/atomic"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/tilerealm/server/internal/config"
)

// Server upgrades HTTP requests to websocket sessions.
// New/dead sessions are communicated to the game loop via channels.
type Server struct {
	upgrader websocket.Upgrader
	codec    Codec
	cfg      SessionConfig
	nextID   atomic.Uint64
	newConns chan *Session
	deadCh   chan uint64 // session IDs of dead sessions
	closing  atomic.Bool
	log      *zap.Logger
}

func NewServer(cfg config.NetworkConfig, log *zap.Logger) (*Server, error) {
	codec, err := NewCodec(cfg.Codec)
	if err != nil {
		return nil, err
	}
	s := &Server{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		codec: codec,
		cfg: SessionConfig{
			InQueueSize:      cfg.InQueueSize,
			OutQueueSize:     cfg.OutQueueSize,
			PacketsPerSecond: cfg.PacketsPerSecond,
			MaxMessageSize:   cfg.MaxMessageSize,
			ReadTimeout:      cfg.ReadTimeout,
			WriteTimeout:     cfg.WriteTimeout,
		},
		newConns: make(chan *Session, 64),
		deadCh:   make(chan uint64, 256),
		log:      log,
	}
	return s, nil
}

func (s *Server) Codec() Codec { return s.codec }

// ServeHTTP upgrades the request and queues the session for the game loop.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if s.closing.Load() {
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug("websocket upgrade failed", zap.Error(err), zap.String("ip", r.RemoteAddr))
		return
	}

	id := s.nextID.Add(1)
	sess := NewSession(conn, id, s.codec, s.cfg, s.log)
	sess.OnClose(s.NotifyDead)

	select {
	case s.newConns <- sess:
		sess.Start()
		s.log.Info("client connected", zap.Uint64("session", id), zap.String("ip", sess.IP))
	default:
		s.log.Warn("connection queue full, rejecting client", zap.String("ip", sess.IP))
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "server busy"))
		sess.Close()
	}
}

// NewSessions returns the channel of newly connected sessions.
func (s *Server) NewSessions() <-chan *Session {
	return s.newConns
}

// NotifyDead reports a dead session ID to the game loop.
func (s *Server) NotifyDead(sessionID uint64) {
	select {
	case s.deadCh <- sessionID:
	default:
		s.log.Warn("dead session queue full", zap.Uint64("session", sessionID))
	}
}

// DeadSessions returns the channel of dead session IDs.
func (s *Server) DeadSessions() <-chan uint64 {
	return s.deadCh
}

// Shutdown stops accepting new connections.
func (s *Server) Shutdown() {
	s.closing.Store(true)
}
