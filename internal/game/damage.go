package game

import (
	"sort"

	"go.uber.org/zap"

	"github.com/tilerealm/server/internal/core/event"
	"github.com/tilerealm/server/internal/data"
	"github.com/tilerealm/server/internal/net/packet"
	"github.com/tilerealm/server/internal/world"
)

// HandleDamage is the single place hit points go down. A non-positive
// amount, a dead or detached target, or an invincible target is ignored.
// attacker may equal target for self-inflicted damage (poison), which earns
// no kill credit.
func (w *World) HandleDamage(attacker, target world.Fighter, damage int) {
	if target == nil || attacker == nil || damage <= 0 {
		return
	}
	tc := target.Char()
	if tc.IsDead() || !target.Core().Attached() || tc.Invincible() {
		return
	}
	tc.Damage(damage)
	w.bridge.PushToSurrounding(target.Core().Region(), packet.Points(target))
	if p, ok := target.(*world.Player); ok {
		p.MarkDirty()
	}
	if tc.HitPoints() > 0 {
		return
	}

	var killer world.Fighter
	if attacker != target {
		killer = attacker
	}
	if p, ok := killer.(*world.Player); ok {
		if m, ok := target.(*world.Mob); ok {
			w.AwardExperience(p, m.Experience())
		}
	}
	if killer != nil {
		w.bridge.PushToSurrounding(target.Core().Region(),
			packet.CombatFinished(killer.Core().Instance(), target.Core().Instance()))
	}
	w.HandleDeath(target, false, killer)
}

// AwardExperience credits exp and applies any level up.
func (w *World) AwardExperience(p *world.Player, exp int) {
	if exp <= 0 {
		return
	}
	levelUp := p.AddExperience(exp)
	if levelUp {
		p.SetMaxHitPoints(w.combat.Formulas().MaxHitPoints(p.Level()))
		p.SetHitPoints(p.MaxHitPoints())
		w.bridge.PushToSurrounding(p.Region(), packet.Points(p))
	}
	w.bridge.PushToSurrounding(p.Region(), packet.Experience(p, exp, levelUp))
	p.MarkDirty()
}

// HandleDeath removes a dead character from play. killer may be nil.
func (w *World) HandleDeath(c world.Fighter, ignoreDrops bool, killer world.Fighter) {
	switch v := c.(type) {
	case *world.Mob:
		w.killMob(v, ignoreDrops, killer)
	case *world.Player:
		w.killPlayer(v, killer)
	}
}

func (w *World) killMob(m *world.Mob, ignoreDrops bool, killer world.Fighter) {
	if !m.Attached() {
		return
	}
	var killerID world.Instance
	if killer != nil {
		killerID = killer.Core().Instance()
		m.SetLastAttacker(killerID)
	}
	w.combat.Clean(m)
	w.combat.Cure(m)
	m.SetHitPoints(0)
	m.SetDead(true)
	if h := m.RoamTimer(); h != 0 {
		w.wheel.Stop(h)
		m.SetRoamTimer(0)
	}
	w.leaveChestArea(m)

	x, y := m.Position()
	event.Emit(w.bus, event.MobKilled{
		Mob:    m.Instance(),
		Key:    m.Key(),
		Level:  m.Level(),
		Killer: killerID,
		X:      x,
		Y:      y,
	})

	w.removeEntity(m, !m.IsStatic())
	if m.IsStatic() {
		w.wheel.After(m.Template().RespawnDelay(), func() { w.respawnMob(m) })
	}
	if !ignoreDrops {
		w.dropLoot(m, x, y)
	}
}

func (w *World) killPlayer(p *world.Player, killer world.Fighter) {
	if !p.Attached() {
		return
	}
	w.combat.Clean(p)
	w.combat.Cure(p)
	p.SetHitPoints(0)
	p.SetDead(true)
	p.AddDeath()
	p.MarkDirty()

	var killerID world.Instance
	if killer != nil {
		killerID = killer.Core().Instance()
	}
	event.Emit(w.bus, event.PlayerDied{Player: p.Instance(), Name: p.Name(), Killer: killerID})

	w.bridge.PushToSurrounding(p.Region(), packet.Death(p.Instance()))
	w.bridge.Remove(p)
	p.SetAttached(false)
}

// RespawnPlayer brings a dead player back at the world spawn.
func (w *World) RespawnPlayer(p *world.Player) bool {
	if !p.IsDead() || p.Attached() {
		return false
	}
	p.SetDead(false)
	p.SetHitPoints(p.MaxHitPoints())
	p.ResetRegions()
	p.Core().SetPosition(w.cfg.World.SpawnX, w.cfg.World.SpawnY)
	p.SetAttached(true)
	w.bridge.Add(p)
	w.bridge.SendRegion(p, true)
	w.checkAreas(p)
	w.bridge.SendTo(p, packet.Respawned(p))
	w.bridge.PushToSurrounding(p.Region(), packet.Points(p))
	p.MarkDirty()
	return true
}

// dropLoot picks one candidate from the mob's drop table and keeps it with
// probability threshold/drop_probability. Gold scales with the mob level.
func (w *World) dropLoot(m *world.Mob, x, y int) {
	drops := m.Drops()
	if len(drops) == 0 {
		return
	}
	keys := make([]string, 0, len(drops))
	for k := range drops {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	key := keys[w.rng.Intn(len(keys))]
	if w.rng.Intn(w.cfg.Combat.DropProbability) >= drops[key] {
		return
	}
	count := 1
	if key == data.GoldKey {
		count = randInt(w.rng, m.Level(), m.Level()*5)
	}
	w.DropItem(key, x, y, count)
}

// respawnMob brings a static mob back at its spawn point at full health.
func (w *World) respawnMob(m *world.Mob) {
	if m.Attached() {
		return
	}
	m.Reset()
	w.addEntity(m)
	w.enterChestArea(m)
	if m.IsRoaming() {
		w.scheduleRoam(m)
	}
	w.log.Debug("mob respawned", zap.String("mob", m.Key()), zap.Stringer("instance", m.Instance()))
}

// Kill drops c to zero hit points through the normal damage path.
func (w *World) Kill(c world.Fighter) {
	if c == nil || c.Char().IsDead() {
		return
	}
	c.Char().SetInvincible(false)
	w.HandleDamage(c, c, c.Char().HitPoints())
}
