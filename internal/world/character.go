package world

import (
	"time"

	"github.com/tilerealm/server/internal/core/timer"
)

// Fighter is implemented by every entity that owns a Character.
type Fighter interface {
	Entity
	Char() *Character
}

// Character is an entity that has health and can fight.
type Character struct {
	Base

	hitPoints    int
	maxHitPoints int
	level        int
	attack       int
	defense      int

	attackRange   int
	attackRate    time.Duration
	movementSpeed time.Duration
	projectile    string

	target     Instance
	dead       bool
	invincible bool
	retaliate  bool

	stunned   bool
	stunTimer timer.Handle

	poison      *Poison
	poisonTimer timer.Handle

	moving       bool
	lastMovement time.Time

	combat CombatState
}

func (c *Character) initStats(hp, level, attackRange int, rate, speed time.Duration) {
	c.maxHitPoints = hp
	c.hitPoints = hp
	c.level = level
	c.attackRange = attackRange
	c.attackRate = rate
	c.movementSpeed = speed
}

func (c *Character) Char() *Character { return c }

func (c *Character) Combat() *CombatState { return &c.combat }

func (c *Character) HitPoints() int    { return c.hitPoints }
func (c *Character) MaxHitPoints() int { return c.maxHitPoints }

// SetHitPoints clamps into [0, max].
func (c *Character) SetHitPoints(hp int) {
	c.hitPoints = clamp(hp, 0, c.maxHitPoints)
}

// SetMaxHitPoints also clamps current health to the new maximum.
func (c *Character) SetMaxHitPoints(max int) {
	if max < 1 {
		max = 1
	}
	c.maxHitPoints = max
	if c.hitPoints > max {
		c.hitPoints = max
	}
}

// Damage subtracts without clamping. Health may go below zero until death
// processing settles it.
func (c *Character) Damage(amount int) {
	if amount <= 0 {
		return
	}
	c.hitPoints -= amount
}

// Heal adds health up to the maximum and returns the amount actually healed.
func (c *Character) Heal(amount int) int {
	if amount <= 0 || c.dead {
		return 0
	}
	before := c.hitPoints
	c.SetHitPoints(c.hitPoints + amount)
	return c.hitPoints - before
}

func (c *Character) FullHealth() bool { return c.hitPoints >= c.maxHitPoints }

func (c *Character) Level() int     { return c.level }
func (c *Character) SetLevel(l int) { c.level = l }

func (c *Character) AttackStat() int  { return c.attack }
func (c *Character) DefenseStat() int { return c.defense }

func (c *Character) SetStats(attack, defense int) {
	c.attack, c.defense = attack, defense
}

func (c *Character) AttackRange() int              { return c.attackRange }
func (c *Character) SetAttackRange(r int)          { c.attackRange = r }
func (c *Character) AttackRate() time.Duration     { return c.attackRate }
func (c *Character) SetAttackRate(d time.Duration) { c.attackRate = d }
func (c *Character) MovementSpeed() time.Duration  { return c.movementSpeed }
func (c *Character) Projectile() string            { return c.projectile }
func (c *Character) SetProjectile(key string)      { c.projectile = key }

// IsRanged is true for characters that attack from more than one tile away.
func (c *Character) IsRanged() bool { return c.attackRange > 1 }

func (c *Character) Target() Instance      { return c.target }
func (c *Character) HasTarget() bool       { return !c.target.IsZero() }
func (c *Character) SetTarget(id Instance) { c.target = id }
func (c *Character) ClearTarget()          { c.target = 0 }

func (c *Character) IsDead() bool { return c.dead }

func (c *Character) SetDead(dead bool) {
	c.dead = dead
	if dead {
		c.target = 0
	}
}

func (c *Character) Invincible() bool     { return c.invincible }
func (c *Character) SetInvincible(v bool) { c.invincible = v }
func (c *Character) Retaliates() bool     { return c.retaliate }
func (c *Character) SetRetaliate(v bool)  { c.retaliate = v }

func (c *Character) Stunned() bool           { return c.stunned }
func (c *Character) StunTimer() timer.Handle { return c.stunTimer }

func (c *Character) SetStun(v bool, h timer.Handle) {
	c.stunned = v
	c.stunTimer = h
}

func (c *Character) Poison() *Poison { return c.poison }

func (c *Character) PoisonTimer() timer.Handle { return c.poisonTimer }

func (c *Character) SetPoison(p *Poison, h timer.Handle) {
	c.poison = p
	c.poisonTimer = h
}

func (c *Character) Moving() bool { return c.moving }

// SetMoving records the movement state change time as the last movement.
func (c *Character) SetMoving(moving bool, now time.Time) {
	c.moving = moving
	c.lastMovement = now
}

func (c *Character) LastMovement() time.Time { return c.lastMovement }

func (c *Character) SpawnInfo() SpawnInfo {
	info := c.Base.SpawnInfo()
	info.HitPoints = c.hitPoints
	info.MaxHitPoints = c.maxHitPoints
	info.Level = c.level
	info.AttackRange = c.attackRange
	info.MovementSpeed = int(c.movementSpeed.Milliseconds())
	return info
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
