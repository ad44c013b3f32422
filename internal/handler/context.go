package handler

import (
	"go.uber.org/zap"

	"github.com/tilerealm/server/internal/config"
	"github.com/tilerealm/server/internal/game"
	"github.com/tilerealm/server/internal/net"
	"github.com/tilerealm/server/internal/net/packet"
	"github.com/tilerealm/server/internal/persist"
	"github.com/tilerealm/server/internal/region"
	"github.com/tilerealm/server/internal/world"
)

// ProtocolVersion is announced in the handshake.
const ProtocolVersion = 1

// Deps holds shared dependencies injected into all packet handlers.
type Deps struct {
	Config *config.Config
	World  *game.World
	Store  persist.Store
	Out    region.Outbox
	Log    *zap.Logger
}

// RegisterAll registers all packet handlers into the registry.
func RegisterAll(reg *packet.Registry, deps *Deps) {
	// Handshake and login
	reg.Register(packet.OpHandshake,
		[]packet.SessionState{packet.StateConnected},
		func(sess any, r *packet.Reader) {
			HandleHandshake(sess.(*net.Session), r, deps)
		},
	)
	reg.Register(packet.OpLogin,
		[]packet.SessionState{packet.StateConnected},
		func(sess any, r *packet.Reader) {
			HandleLogin(sess.(*net.Session), r, deps)
		},
	)
	reg.Register(packet.OpReady,
		[]packet.SessionState{packet.StateLoaded},
		func(sess any, r *packet.Reader) {
			HandleReady(sess.(*net.Session), r, deps)
		},
	)

	inWorld := []packet.SessionState{packet.StateInWorld}
	in := func(op packet.Opcode, fn func(*net.Session, *world.Player, *packet.Reader, *Deps)) {
		reg.Register(op, inWorld, func(sess any, r *packet.Reader) {
			s := sess.(*net.Session)
			p := deps.World.PlayerBySession(s.ID)
			if p == nil {
				return
			}
			fn(s, p, r, deps)
		})
	}
	in(packet.OpMovement, HandleMovement)
	in(packet.OpTarget, HandleTarget)
	in(packet.OpProjectile, HandleProjectile)
	in(packet.OpWho, HandleWho)
	in(packet.OpChat, HandleChat)
	in(packet.OpRespawn, HandleRespawn)
	in(packet.OpChest, HandleChest)
}

// notify sends a text notification to p.
func notify(deps *Deps, p *world.Player, text string) {
	deps.Out.Send(p.Session(), packet.Notify(text))
}
