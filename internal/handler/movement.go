package handler

import (
	"go.uber.org/zap"

	"github.com/tilerealm/server/internal/net"
	"github.com/tilerealm/server/internal/net/packet"
	"github.com/tilerealm/server/internal/world"
)

// HandleMovement applies one movement sub-message. Positions are validated
// by the world; rejected steps snap the client back.
func HandleMovement(sess *net.Session, p *world.Player, r *packet.Reader, deps *Deps) {
	var req packet.MovementRequest
	if err := r.Decode(&req); err != nil {
		deps.Log.Warn("malformed movement", zap.Uint64("session", sess.ID), zap.Error(err))
		return
	}

	w := deps.World
	switch req.Opcode {
	case packet.MoveStarted:
		w.MovementStarted(p, req.X, req.Y)
	case packet.MoveStep:
		w.MovementStep(p, req.X, req.Y)
	case packet.MoveStop:
		w.MovementStop(p, req.X, req.Y, req.Target)
	case packet.MoveEntity:
		w.MoveFollower(p, req.Instance, req.X, req.Y)
	case packet.MoveOrientate:
		w.Orientate(p, req.Orientation)
	default:
		deps.Log.Debug("unknown movement opcode",
			zap.String("player", p.Name()),
			zap.Uint8("opcode", uint8(req.Opcode)),
		)
	}
}
