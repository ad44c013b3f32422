package net

import (
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/tilerealm/server/internal/net/packet"
)

// Hub tracks the live sessions. Game loop only.
type Hub struct {
	sessions map[uint64]*Session
	log      *zap.Logger
}

func NewHub(log *zap.Logger) *Hub {
	return &Hub{sessions: make(map[uint64]*Session), log: log}
}

func (h *Hub) Add(s *Session) { h.sessions[s.ID] = s }

// Remove drops the session and returns it, or nil if unknown.
func (h *Hub) Remove(id uint64) *Session {
	s, ok := h.sessions[id]
	if !ok {
		return nil
	}
	delete(h.sessions, id)
	return s
}

func (h *Hub) Get(id uint64) *Session { return h.sessions[id] }

func (h *Hub) Len() int { return len(h.sessions) }

// Each visits sessions in ascending id order.
func (h *Hub) Each(fn func(*Session)) {
	for _, id := range h.ids() {
		fn(h.sessions[id])
	}
}

// Send buffers msg on the session. Unknown or closed sessions are ignored.
func (h *Hub) Send(session uint64, msg packet.Message) {
	if s, ok := h.sessions[session]; ok {
		s.Send(msg)
	}
}

// Disconnect delivers pending output, then closes the session. The input
// system tears the player down on the next tick.
func (h *Hub) Disconnect(id uint64) {
	if s, ok := h.sessions[id]; ok {
		s.CloseFlush()
	}
}

// FlushAll hands every session's buffered messages to its writer.
func (h *Hub) FlushAll() {
	for _, s := range h.sessions {
		s.FlushOutput()
	}
}

// Closed returns the ids of sessions that have closed but are still tracked.
func (h *Hub) Closed() []uint64 {
	var out []uint64
	for _, id := range h.ids() {
		if h.sessions[id].IsClosed() {
			out = append(out, id)
		}
	}
	return out
}

// ShutdownNotice is the last message every client gets when the server stops.
const ShutdownNotice = "You have been disconnected from the server."

// CloseAll tells every client the server is going away and closes the
// sessions, waiting up to timeout for their final frames to go out.
func (h *Hub) CloseAll(timeout time.Duration) {
	for _, s := range h.sessions {
		s.Send(packet.Notify(ShutdownNotice))
		s.CloseFlush()
	}
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	for _, id := range h.ids() {
		select {
		case <-h.sessions[id].Done():
		case <-deadline.C:
			h.log.Warn("sessions still flushing at shutdown", zap.Int("sessions", len(h.sessions)))
			return
		}
	}
}

func (h *Hub) ids() []uint64 {
	ids := make([]uint64, 0, len(h.sessions))
	for id := range h.sessions {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
