package world

import (
	"time"

	"github.com/tilerealm/server/internal/core/timer"
)

// CombatState is the per-character bookkeeping the combat engine drives.
// Attackers are weak references: only instances are kept and every use must
// resolve them through the world again.
type CombatState struct {
	attackers []Instance
	queue     []Hit
	started   bool

	lastAction time.Time
	lastHit    time.Time

	attackLoop timer.Handle
	followLoop timer.Handle
	checkLoop  timer.Handle
}

func (c *CombatState) Started() bool { return c.started }

// SetLoops records the three periodic handles and marks combat started.
func (c *CombatState) SetLoops(attack, follow, check timer.Handle) {
	c.attackLoop, c.followLoop, c.checkLoop = attack, follow, check
	c.started = true
}

// TakeLoops clears and returns the handles, marking combat stopped.
func (c *CombatState) TakeLoops() (attack, follow, check timer.Handle) {
	attack, follow, check = c.attackLoop, c.followLoop, c.checkLoop
	c.attackLoop, c.followLoop, c.checkLoop = 0, 0, 0
	c.started = false
	return
}

func (c *CombatState) LastAction() time.Time    { return c.lastAction }
func (c *CombatState) Touch(now time.Time)      { c.lastAction = now }
func (c *CombatState) LastHit() time.Time       { return c.lastHit }
func (c *CombatState) SetLastHit(now time.Time) { c.lastHit = now }

// AddAttacker is a no-op for an instance already present.
func (c *CombatState) AddAttacker(id Instance) {
	if id.IsZero() || c.HasAttacker(id) {
		return
	}
	c.attackers = append(c.attackers, id)
}

// RemoveAttacker reports whether id was present.
func (c *CombatState) RemoveAttacker(id Instance) bool {
	for i, a := range c.attackers {
		if a == id {
			c.attackers = append(c.attackers[:i], c.attackers[i+1:]...)
			return true
		}
	}
	return false
}

func (c *CombatState) HasAttacker(id Instance) bool {
	for _, a := range c.attackers {
		if a == id {
			return true
		}
	}
	return false
}

func (c *CombatState) HasAttackers() bool { return len(c.attackers) > 0 }
func (c *CombatState) AttackerCount() int { return len(c.attackers) }

// Attackers returns a copy safe to iterate while the set changes.
func (c *CombatState) Attackers() []Instance {
	out := make([]Instance, len(c.attackers))
	copy(out, c.attackers)
	return out
}

func (c *CombatState) ClearAttackers() { c.attackers = c.attackers[:0] }

func (c *CombatState) Enqueue(h Hit) { c.queue = append(c.queue, h) }

// Dequeue pops the oldest pending hit.
func (c *CombatState) Dequeue() (Hit, bool) {
	if len(c.queue) == 0 {
		return Hit{}, false
	}
	h := c.queue[0]
	c.queue = c.queue[1:]
	return h, true
}

func (c *CombatState) QueueLen() int { return len(c.queue) }
func (c *CombatState) ClearQueue()   { c.queue = c.queue[:0] }
