package game

import (
	"time"

	"github.com/tilerealm/server/internal/net/packet"
	"github.com/tilerealm/server/internal/world"
)

const defaultProjectile = "arrow"

// CreateProjectile launches a ranged hit from attacker at target. The hit
// lands when a client reports the impact or, failing that, when the flight
// time runs out.
func (w *World) CreateProjectile(attacker, target world.Fighter, hit world.Hit) {
	key := attacker.Char().Projectile()
	if key == "" {
		key = defaultProjectile
	}
	pr := world.NewProjectile(w.reg.Create(), key, attacker, target, hit)
	w.addEntity(pr)
	flight := time.Duration(attacker.Core().Distance(target)*pr.Speed())*time.Millisecond + time.Second
	pr.SetExpiry(w.wheel.After(flight, func() {
		pr.SetExpiry(0)
		w.ImpactProjectile(pr)
	}))
}

// ImpactProjectile resolves a projectile's hit and removes it.
func (w *World) ImpactProjectile(pr *world.Projectile) {
	if !pr.Attached() {
		return
	}
	if h := pr.Expiry(); h != 0 {
		w.wheel.Stop(h)
		pr.SetExpiry(0)
	}
	w.removeEntity(pr, true)

	owner := w.Fighter(pr.Owner())
	target := w.Fighter(pr.Target())
	if owner == nil || target == nil || target.Char().IsDead() {
		return
	}
	w.bridge.PushToSurrounding(target.Core().Region(), packet.CombatHitMsg(owner.Core().Instance(), target.Core().Instance(), pr.Hit()))
	w.combat.Apply(owner, target, pr.Hit())
}

// ReportImpact handles a client impact report. Only the shooter or the
// target may report.
func (w *World) ReportImpact(p *world.Player, id world.Instance) bool {
	pr := w.Projectile(id)
	if pr == nil || (pr.Owner() != p.Instance() && pr.Target() != p.Instance()) {
		return false
	}
	w.ImpactProjectile(pr)
	return true
}

// trackProjectiles keeps in-flight projectiles aimed at a moving target.
func (w *World) trackProjectiles(e world.Entity) {
	if w.projectiles.Len() == 0 {
		return
	}
	id := e.Core().Instance()
	x, y := e.Core().Position()
	w.projectiles.Each(func(_ world.Instance, pr *world.Projectile) {
		if pr.Target() == id {
			pr.SetDestination(x, y)
		}
	})
}
