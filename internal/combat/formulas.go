package combat

import (
	"math/rand"

	"github.com/tilerealm/server/internal/world"
)

// Formulas computes combat numbers. The Lua scripting engine implements it;
// Default is the compiled fallback.
type Formulas interface {
	Damage(attacker, target world.Fighter, critical bool) int
	AoEDamage(attacker, target world.Fighter) int
	MaxHitPoints(level int) int
}

// Default rolls damage from attack and level against half the defense.
type Default struct {
	Rand *rand.Rand
}

func (d Default) roll(n int) int {
	if n <= 0 {
		return 0
	}
	if d.Rand == nil {
		return rand.Intn(n)
	}
	return d.Rand.Intn(n)
}

func (d Default) Damage(attacker, target world.Fighter, critical bool) int {
	a, t := attacker.Char(), target.Char()
	max := 1 + a.AttackStat() + a.Level()
	dmg := d.roll(max+1) - t.DefenseStat()/2
	if critical {
		dmg = dmg * 3 / 2
	}
	if dmg < 0 {
		return 0
	}
	return dmg
}

func (d Default) AoEDamage(attacker, target world.Fighter) int {
	return d.Damage(attacker, target, false) / 2
}

func (Default) MaxHitPoints(level int) int {
	if level < 1 {
		level = 1
	}
	return 90 + level*10
}

// Fixed always deals the same damage. Used by tests and admin tooling.
type Fixed struct {
	Amount int
	HP     int
}

func (f Fixed) Damage(world.Fighter, world.Fighter, bool) int { return f.Amount }
func (f Fixed) AoEDamage(world.Fighter, world.Fighter) int    { return f.Amount }

func (f Fixed) MaxHitPoints(level int) int {
	if f.HP > 0 {
		return f.HP
	}
	return Default{}.MaxHitPoints(level)
}
