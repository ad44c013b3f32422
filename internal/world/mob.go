package world

import (
	"math"
	"time"

	"github.com/tilerealm/server/internal/core/timer"
	"github.com/tilerealm/server/internal/data"
)

// Mob is a hostile, AI-driven character spawned from a template.
type Mob struct {
	Character

	tpl            *data.MobTemplate
	spawnX, spawnY int
	static         bool
	roaming        bool
	area           int

	lastAttacker Instance
	owner        Instance
	minions      bool
	cooldown     time.Time

	roamTimer timer.Handle
}

func NewMob(id Instance, tpl *data.MobTemplate, x, y int) *Mob {
	m := &Mob{
		tpl:     tpl,
		spawnX:  x,
		spawnY:  y,
		roaming: tpl.Roaming,
		area:    -1,
	}
	m.bind(m, id, KindMob, tpl.Key, x, y)
	m.name = tpl.Name
	m.initStats(tpl.HitPoints, tpl.Level, tpl.AttackRange, tpl.AttackRate(), tpl.MovementSpeed())
	m.SetStats(tpl.Attack, tpl.Defense)
	m.projectile = tpl.Projectile
	m.retaliate = true
	return m
}

func (m *Mob) Template() *data.MobTemplate { return m.tpl }

func (m *Mob) SpawnPoint() (int, int) { return m.spawnX, m.spawnY }

// IsAtSpawn reports whether the mob stands on its spawn tile.
func (m *Mob) IsAtSpawn() bool { return m.x == m.spawnX && m.y == m.spawnY }

// SpawnDistance is the Chebyshev distance from the spawn tile.
func (m *Mob) SpawnDistance() int { return m.DistanceTo(m.spawnX, m.spawnY) }

// IsStatic mobs came from the map and respawn after death.
func (m *Mob) IsStatic() bool        { return m.static }
func (m *Mob) SetStatic(v bool)      { m.static = v }
func (m *Mob) IsRoaming() bool       { return m.roaming }
func (m *Mob) SetRoaming(v bool)     { m.roaming = v }
func (m *Mob) Experience() int       { return m.tpl.Experience }
func (m *Mob) AggroRange() int       { return m.tpl.AggroRange }
func (m *Mob) Behaviour() string     { return m.tpl.Combat }
func (m *Mob) Drops() map[string]int { return m.tpl.Drops }

// Area is the chest area index the mob belongs to, -1 for none.
func (m *Mob) Area() int        { return m.area }
func (m *Mob) SetArea(area int) { m.area = area }

func (m *Mob) LastAttacker() Instance      { return m.lastAttacker }
func (m *Mob) SetLastAttacker(id Instance) { m.lastAttacker = id }

// Owner is the summoner of a minion.
func (m *Mob) Owner() Instance      { return m.owner }
func (m *Mob) SetOwner(id Instance) { m.owner = id }

func (m *Mob) MinionsSpawned() bool { return m.minions }
func (m *Mob) SetMinionsSpawned()   { m.minions = true }

// CooldownReady reports whether a behaviour cooldown has elapsed.
func (m *Mob) CooldownReady(now time.Time) bool { return !now.Before(m.cooldown) }
func (m *Mob) SetCooldown(until time.Time)      { m.cooldown = until }
func (m *Mob) RoamTimer() timer.Handle          { return m.roamTimer }
func (m *Mob) SetRoamTimer(h timer.Handle)      { m.roamTimer = h }

// CanAggro decides whether the mob should start combat against p on its own.
// A mob aggroes only players at most floor(level*1.5) unless it is always
// aggressive, and only while the player's aggression timer is running.
func (m *Mob) CanAggro(p *Player, now time.Time, aggressionTimeout time.Duration) bool {
	if m.HasTarget() || m.dead || p.IsDead() {
		return false
	}
	if !m.tpl.Aggressive {
		return false
	}
	if int(math.Floor(float64(m.level)*1.5)) < p.Level() && !m.tpl.AlwaysAggressive {
		return false
	}
	if !p.HasAggressionTimer(now, aggressionTimeout) {
		return false
	}
	if p.IsInvisibleTo(m) {
		return false
	}
	return m.IsNear(p, m.tpl.AggroRange)
}

// Reset restores the mob to its freshly spawned state at its spawn point.
// It does not run move hooks; the caller re-adds the mob to the world.
func (m *Mob) Reset() {
	m.dead = false
	m.hitPoints = m.maxHitPoints
	m.target = 0
	m.stunned = false
	m.stunTimer = 0
	m.poison = nil
	m.poisonTimer = 0
	m.lastAttacker = 0
	m.minions = false
	m.x, m.y = m.spawnX, m.spawnY
	m.oldX, m.oldY = m.spawnX, m.spawnY
	m.combat = CombatState{}
}
