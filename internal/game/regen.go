package game

import (
	"github.com/tilerealm/server/internal/net/packet"
	"github.com/tilerealm/server/internal/world"
)

// regenAmount is 1% of max hit points rounded up, at least 1.
func regenAmount(maxHP int) int {
	n := (maxHP + 99) / 100
	if n < 1 {
		n = 1
	}
	return n
}

func (w *World) regenerate(c world.Fighter) bool {
	ch := c.Char()
	if !c.Core().Attached() || ch.IsDead() || ch.FullHealth() {
		return false
	}
	if ch.HasTarget() || ch.Combat().HasAttackers() {
		return false
	}
	if ch.Heal(regenAmount(ch.MaxHitPoints())) == 0 {
		return false
	}
	w.bridge.PushToSurrounding(c.Core().Region(), packet.Points(c))
	return true
}

// Regenerate heals every idle character a little. Returns how many healed.
func (w *World) Regenerate() int {
	n := 0
	for _, p := range w.players.Sorted() {
		if w.regenerate(p) {
			p.MarkDirty()
			n++
		}
	}
	for _, m := range w.mobs.Sorted() {
		if w.regenerate(m) {
			n++
		}
	}
	return n
}
