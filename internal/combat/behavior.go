package combat

import (
	"time"

	"github.com/tilerealm/server/internal/world"
)

// Behavior is a special mob combat archetype layered on the default loops.
type Behavior interface {
	// OnAttack runs on every attack-loop step that has a target in reach.
	OnAttack(e *Engine, m *world.Mob, target world.Fighter)
	// OnHit runs after m takes a hit and survives it.
	OnHit(e *Engine, m *world.Mob, attacker world.Fighter)
}

const (
	teleportChance   = 20 // percent
	teleportCooldown = 5 * time.Second
	teleportDistance = 3

	aoeOneIn  = 4
	aoeRadius = 2

	minionCount = 2
)

// Teleporter blinks to a point around its spawn when hit.
type Teleporter struct{}

func (Teleporter) OnAttack(*Engine, *world.Mob, world.Fighter) {}

func (Teleporter) OnHit(e *Engine, m *world.Mob, _ world.Fighter) {
	now := e.now()
	if !m.CooldownReady(now) || e.rng.Intn(100) >= teleportChance {
		return
	}
	sx, sy := m.SpawnPoint()
	offsets := [4][2]int{{teleportDistance, 0}, {-teleportDistance, 0}, {0, teleportDistance}, {0, -teleportDistance}}
	start := e.rng.Intn(len(offsets))
	for i := range offsets {
		o := offsets[(start+i)%len(offsets)]
		x, y := sx+o[0], sy+o[1]
		if e.world.IsColliding(x, y) {
			continue
		}
		e.world.Teleport(m, x, y)
		m.SetCooldown(now.Add(teleportCooldown))
		return
	}
}

// AreaAttacker occasionally slams everything around it.
type AreaAttacker struct{}

func (AreaAttacker) OnAttack(e *Engine, m *world.Mob, _ world.Fighter) {
	if e.rng.Intn(aoeOneIn) != 0 {
		return
	}
	e.DealAoE(m, aoeRadius, true)
}

func (AreaAttacker) OnHit(*Engine, *world.Mob, world.Fighter) {}

// Summoner calls two minions the first time it drops below half health.
type Summoner struct{}

func (Summoner) OnAttack(*Engine, *world.Mob, world.Fighter) {}

func (Summoner) OnHit(e *Engine, m *world.Mob, attacker world.Fighter) {
	if m.MinionsSpawned() || m.HitPoints()*2 >= m.MaxHitPoints() {
		return
	}
	key := m.Template().Minion
	if key == "" {
		return
	}
	m.SetMinionsSpawned()
	x, y := m.Position()
	spawned := 0
	for _, d := range cardinals {
		if spawned == minionCount {
			break
		}
		nx, ny := x+d[0], y+d[1]
		if e.world.IsColliding(nx, ny) {
			continue
		}
		if minion := e.world.SpawnMinion(m, key, nx, ny); minion != nil {
			spawned++
			e.Begin(minion, attacker)
		}
	}
}
