package handler

import (
	"errors"

	"go.uber.org/zap"

	"github.com/tilerealm/server/internal/game"
	"github.com/tilerealm/server/internal/net"
	"github.com/tilerealm/server/internal/net/packet"
	"github.com/tilerealm/server/internal/world"
)

// HandleTarget processes the player's choice of target: talking to an npc,
// attacking a character, clearing the target or using a map object.
func HandleTarget(sess *net.Session, p *world.Player, r *packet.Reader, deps *Deps) {
	var req packet.TargetRequest
	if err := r.Decode(&req); err != nil {
		deps.Log.Warn("malformed target", zap.Uint64("session", sess.ID), zap.Error(err))
		return
	}

	w := deps.World
	switch req.Opcode {
	case packet.TargetTalk:
		if n := w.NPC(req.Instance); n != nil {
			w.Talk(p, n)
		}
	case packet.TargetAttack:
		if !w.Attack(p, req.Instance) {
			deps.Log.Debug("attack refused",
				zap.String("player", p.Name()),
				zap.Stringer("target", req.Instance),
			)
		}
	case packet.TargetNone:
		w.Combat().Stop(p)
		p.ClearTarget()
	case packet.TargetObject:
		err := w.CutTree(p, req.X, req.Y)
		if err != nil && !errors.Is(err, game.ErrNoSpace) {
			deps.Log.Debug("tree not cut",
				zap.String("player", p.Name()),
				zap.Int("x", req.X),
				zap.Int("y", req.Y),
				zap.Error(err),
			)
		}
	}
}

// HandleProjectile reports a client-side projectile impact.
func HandleProjectile(sess *net.Session, p *world.Player, r *packet.Reader, deps *Deps) {
	var req packet.ProjectileRequest
	if err := r.Decode(&req); err != nil {
		deps.Log.Warn("malformed projectile", zap.Uint64("session", sess.ID), zap.Error(err))
		return
	}
	if req.Opcode != packet.ProjectileImpact {
		return
	}
	deps.World.ReportImpact(p, req.Instance)
}

// HandleWho answers a spawn request for specific instances.
func HandleWho(sess *net.Session, p *world.Player, r *packet.Reader, deps *Deps) {
	var req packet.WhoRequest
	if err := r.Decode(&req); err != nil {
		deps.Log.Warn("malformed who", zap.Uint64("session", sess.ID), zap.Error(err))
		return
	}
	deps.World.Who(p, req.Instances)
}

// HandleRespawn brings a dead player back at the spawn point.
func HandleRespawn(_ *net.Session, p *world.Player, _ *packet.Reader, deps *Deps) {
	if !p.IsDead() {
		return
	}
	deps.World.RespawnPlayer(p)
}

// HandleChest opens a chest the player stands next to.
func HandleChest(sess *net.Session, p *world.Player, r *packet.Reader, deps *Deps) {
	var req packet.ChestRequest
	if err := r.Decode(&req); err != nil {
		deps.Log.Warn("malformed chest", zap.Uint64("session", sess.ID), zap.Error(err))
		return
	}
	if c := deps.World.Chest(req.Instance); c != nil {
		deps.World.OpenChest(p, c)
	}
}
