package system

import (
	"time"

	"go.uber.org/zap"

	coresys "github.com/tilerealm/server/internal/core/system"
	"github.com/tilerealm/server/internal/game"
	"github.com/tilerealm/server/internal/net"
	"github.com/tilerealm/server/internal/net/packet"
	"github.com/tilerealm/server/internal/world"
)

// Listener hands new and dead connections to the game loop.
// *net.Server satisfies it.
type Listener interface {
	NewSessions() <-chan *net.Session
	DeadSessions() <-chan uint64
}

// Saver persists snapshots off the game loop.
type Saver interface {
	Enqueue(snap world.Snapshot) bool
}

// InputSystem accepts sessions, drains their packet queues through the
// registry, runs posted world tasks and tears down closed connections.
// Phase Input.
type InputSystem struct {
	listener   Listener
	hub        *net.Hub
	registry   *packet.Registry
	world      *game.World
	saver      Saver
	maxPerTick int
	log        *zap.Logger
}

func NewInputSystem(listener Listener, hub *net.Hub, registry *packet.Registry, w *game.World, saver Saver, maxPerTick int, log *zap.Logger) *InputSystem {
	if maxPerTick <= 0 {
		maxPerTick = 32
	}
	return &InputSystem{
		listener:   listener,
		hub:        hub,
		registry:   registry,
		world:      w,
		saver:      saver,
		maxPerTick: maxPerTick,
		log:        log,
	}
}

func (s *InputSystem) Phase() coresys.Phase { return coresys.PhaseInput }

func (s *InputSystem) Update(_ time.Duration) {
	s.accept()

	// Tasks first so a login completed off-tick is visible to this tick's packets.
	s.world.RunTasks()

	s.hub.Each(func(sess *net.Session) {
		if sess.IsClosed() {
			return
		}
		s.drain(sess)
	})

	for _, id := range s.hub.Closed() {
		s.disconnect(id)
	}
}

func (s *InputSystem) accept() {
	for {
		select {
		case sess := <-s.listener.NewSessions():
			s.hub.Add(sess)
		case id := <-s.listener.DeadSessions():
			s.disconnect(id)
		default:
			return
		}
	}
}

func (s *InputSystem) drain(sess *net.Session) {
	for i := 0; i < s.maxPerTick; i++ {
		select {
		case r := <-sess.InQueue:
			if err := s.registry.Dispatch(sess, sess.State(), r); err != nil {
				s.log.Debug("dispatch failed", zap.Uint64("session", sess.ID), zap.Error(err))
			}
		default:
			return
		}
	}
}

// disconnect removes the session and its player, saving the snapshot
// without waiting for the result.
func (s *InputSystem) disconnect(id uint64) {
	sess := s.hub.Remove(id)
	if sess == nil {
		return
	}
	sess.Close()

	p := s.world.PlayerBySession(id)
	if p == nil {
		s.log.Debug("session closed", zap.Uint64("session", id))
		return
	}
	snap := s.world.RemovePlayer(p)
	if s.saver != nil {
		s.saver.Enqueue(snap)
	}
	s.log.Info("client disconnected",
		zap.Uint64("session", id),
		zap.String("player", p.Name()),
		zap.Duration("online", s.world.Now().Sub(sess.Joined)),
	)
}

// SessionCount returns the current number of tracked sessions.
func (s *InputSystem) SessionCount() int { return s.hub.Len() }
