package combat

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tilerealm/server/internal/config"
	"github.com/tilerealm/server/internal/core/ecs"
	"github.com/tilerealm/server/internal/core/timer"
	"github.com/tilerealm/server/internal/data"
	"github.com/tilerealm/server/internal/net/packet"
	"github.com/tilerealm/server/internal/world"
)

type damageEvent struct {
	attacker, target world.Instance
	amount           int
	at               time.Time
}

type fakeWorld struct {
	clock       *timer.ManualClock
	fighters    map[world.Instance]world.Fighter
	damage      []damageEvent
	projectiles []world.Hit
	teleports   int
	homes       []world.Instance
	walls       map[[2]int]bool
	next        uint32
}

func (w *fakeWorld) Fighter(id world.Instance) world.Fighter {
	f := w.fighters[id]
	if f == nil || !f.Core().Attached() {
		return nil
	}
	return f
}

func (w *fakeWorld) HandleDamage(attacker, target world.Fighter, amount int) {
	w.damage = append(w.damage, damageEvent{attacker.Core().Instance(), target.Core().Instance(), amount, w.clock.Now()})
	target.Char().Damage(amount)
	if target.Char().HitPoints() < 1 {
		target.Char().SetDead(true)
	}
}

func (w *fakeWorld) CreateProjectile(_, _ world.Fighter, hit world.Hit) {
	w.projectiles = append(w.projectiles, hit)
}

func (w *fakeWorld) MoveCharacter(c world.Fighter, x, y int) { c.Core().SetPosition(x, y) }

func (w *fakeWorld) Teleport(c world.Fighter, x, y int) {
	w.teleports++
	c.Core().SetPosition(x, y)
}

func (w *fakeWorld) IsColliding(x, y int) bool { return w.walls[[2]int{x, y}] }

func (w *fakeWorld) SpawnMinion(_ *world.Mob, key string, x, y int) *world.Mob {
	return w.mob(&data.MobTemplate{Key: key, HitPoints: 10, Level: 1, AttackRange: 1, AttackRateMs: 1000}, x, y)
}

func (w *fakeWorld) SendHome(m *world.Mob) {
	w.homes = append(w.homes, m.Instance())
	x, y := m.SpawnPoint()
	m.SetPosition(x, y)
}

func (w *fakeWorld) add(f world.Fighter) {
	f.Core().SetAttached(true)
	w.fighters[f.Core().Instance()] = f
}

func (w *fakeWorld) mob(tpl *data.MobTemplate, x, y int) *world.Mob {
	w.next++
	m := world.NewMob(ecs.NewID(w.next, 1), tpl, x, y)
	w.add(m)
	return m
}

func (w *fakeWorld) player(x, y int) *world.Player {
	w.next++
	p := world.NewPlayer(ecs.NewID(w.next, 1), uint64(w.next), "p", "P", 10)
	p.SetPosition(x, y)
	p.SetMaxHitPoints(1000)
	p.SetHitPoints(1000)
	w.add(p)
	return p
}

func (w *fakeWorld) hitsBy(id world.Instance) []damageEvent {
	var out []damageEvent
	for _, d := range w.damage {
		if d.attacker == id && d.target != id {
			out = append(out, d)
		}
	}
	return out
}

type fakeBridge struct {
	w      *fakeWorld
	pushed []packet.Message
	direct []packet.Message
}

func (b *fakeBridge) PushToSurrounding(_ world.RegionID, msg packet.Message, _ ...world.Instance) {
	b.pushed = append(b.pushed, msg)
}

func (b *fakeBridge) SendTo(_ *world.Player, msg packet.Message) { b.direct = append(b.direct, msg) }

func (b *fakeBridge) Nearby(e world.Entity, radius int) []world.Entity {
	var out []world.Entity
	for _, f := range b.w.fighters {
		if f.Core().Instance() != e.Core().Instance() && e.Core().Distance(f) <= radius {
			out = append(out, f)
		}
	}
	return out
}

func (b *fakeBridge) count(op packet.Opcode, sub packet.CombatOp) int {
	n := 0
	for _, m := range b.pushed {
		if d, ok := m.Data.(packet.CombatData); ok && m.Op == op && d.Opcode == sub {
			n++
		}
	}
	return n
}

type harness struct {
	clock  *timer.ManualClock
	wheel  *timer.Wheel
	world  *fakeWorld
	bridge *fakeBridge
	engine *Engine
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	clock := timer.NewManualClock(time.Unix(1_700_000_000, 0))
	wheel := timer.NewWheel(clock)
	w := &fakeWorld{clock: clock, fighters: make(map[world.Instance]world.Fighter), walls: make(map[[2]int]bool)}
	b := &fakeBridge{w: w}
	e := NewEngine(w, b, wheel, Fixed{Amount: 1}, config.Default().Combat, rand.New(rand.NewSource(1)), zap.NewNop())
	return &harness{clock: clock, wheel: wheel, world: w, bridge: b, engine: e}
}

// run advances the clock in steps, firing due timers each step.
func (h *harness) run(total, step time.Duration) {
	for elapsed := time.Duration(0); elapsed < total; elapsed += step {
		h.clock.Advance(step)
		h.wheel.Advance()
	}
}

func ratTemplate() *data.MobTemplate {
	return &data.MobTemplate{Key: "rat", Name: "Rat", HitPoints: 1000, Level: 1, AttackRange: 1, AttackRateMs: 1000}
}

func TestEngine_MeleeCadence(t *testing.T) {
	h := newHarness(t)
	p := h.world.player(10, 10)
	m := h.world.mob(ratTemplate(), 11, 10)

	h.engine.Begin(p, m)
	hits := h.world.hitsBy(p.Instance())
	require.Len(t, hits, 1, "first hit lands immediately")
	assert.True(t, p.Combat().Started())
	assert.GreaterOrEqual(t, h.bridge.count(packet.OpCombat, packet.CombatHit), 1)

	assert.False(t, h.engine.Hit(p, m, world.NewHit(world.HitDamage, 5)), "hit right after a hit is rate limited")

	h.run(900*time.Millisecond, 100*time.Millisecond)
	assert.Len(t, h.world.hitsBy(p.Instance()), 1)

	h.run(100*time.Millisecond, 100*time.Millisecond)
	hits = h.world.hitsBy(p.Instance())
	require.Len(t, hits, 2)
	assert.GreaterOrEqual(t, hits[1].at.Sub(hits[0].at), time.Second)
}

func TestEngine_CanHitProperty(t *testing.T) {
	tolerance := config.Default().Combat.HitTolerance
	for _, rate := range []time.Duration{250 * time.Millisecond, 700 * time.Millisecond, time.Second, 1300 * time.Millisecond} {
		t.Run(rate.String(), func(t *testing.T) {
			h := newHarness(t)
			p := h.world.player(10, 10)
			p.SetAttackRate(rate)
			m := h.world.mob(ratTemplate(), 10, 11)
			m.SetRetaliate(false)

			h.engine.Begin(p, m)
			for i := 0; i < 200; i++ {
				h.clock.Advance(37 * time.Millisecond)
				h.wheel.Advance()
				h.engine.Hit(p, m, world.NewHit(world.HitDamage, 1))
			}
			hits := h.world.hitsBy(p.Instance())
			require.Greater(t, len(hits), 2)
			for i := 1; i < len(hits); i++ {
				assert.GreaterOrEqual(t, hits[i].at.Sub(hits[i-1].at), rate-tolerance)
			}
		})
	}
}

func TestEngine_Staleness(t *testing.T) {
	tests := []struct {
		name  string
		start func(h *harness, p *world.Player, m *world.Mob)
	}{
		{"begin", func(h *harness, p *world.Player, m *world.Mob) { h.engine.Begin(p, m) }},
		{"start", func(h *harness, p *world.Player, m *world.Mob) {
			p.SetTarget(m.Instance())
			h.engine.Start(p)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			p := h.world.player(10, 10)
			m := h.world.mob(ratTemplate(), 11, 10)
			m.SetRetaliate(false)
			tt.start(h, p, m)
			m.SetPosition(30, 30) // out of reach, nothing more happens

			h.run(7*time.Second, 500*time.Millisecond)
			assert.True(t, p.Combat().Started())

			h.run(2*time.Second, 500*time.Millisecond)
			assert.False(t, p.Combat().Started())
			assert.False(t, p.HasTarget())
			assert.Equal(t, 1, h.bridge.count(packet.OpCombat, packet.CombatFinish))
		})
	}
}

func TestEngine_StopIsIdempotent(t *testing.T) {
	h := newHarness(t)
	p := h.world.player(10, 10)
	m := h.world.mob(ratTemplate(), 11, 10)
	h.engine.Begin(p, m)
	before := h.wheel.Len()

	h.engine.Stop(p)
	assert.False(t, p.Combat().Started())
	assert.Equal(t, before-3, h.wheel.Len())
	h.engine.Stop(p)
	assert.Equal(t, before-3, h.wheel.Len())

	h.engine.Start(p)
	h.engine.Start(p)
	assert.Equal(t, before, h.wheel.Len(), "start while running adds nothing")
}

func TestEngine_InProximity(t *testing.T) {
	tests := []struct {
		name     string
		rng      int
		tx, ty   int
		expected bool
	}{
		{"ranged in range", 5, 14, 10, true},
		{"ranged diagonal in range", 5, 14, 14, true},
		{"ranged out of range", 5, 16, 10, false},
		{"melee distance 4 diagonal", 1, 14, 14, false},
		{"melee diagonal neighbour", 1, 11, 11, false},
		{"melee cardinal neighbour", 1, 10, 11, true},
		{"melee two tiles", 1, 12, 10, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			p := h.world.player(10, 10)
			p.SetAttackRange(tt.rng)
			m := h.world.mob(ratTemplate(), tt.tx, tt.ty)
			assert.Equal(t, tt.expected, h.engine.InProximity(p, m))
		})
	}
}

func TestEngine_RangedFiresProjectile(t *testing.T) {
	h := newHarness(t)
	p := h.world.player(10, 10)
	p.SetAttackRange(5)
	m := h.world.mob(ratTemplate(), 13, 12)
	m.SetRetaliate(false)

	h.engine.Begin(p, m)
	require.Len(t, h.world.projectiles, 1)
	assert.True(t, h.world.projectiles[0].Ranged)
	assert.Empty(t, h.world.hitsBy(p.Instance()), "damage waits for impact")
}

func TestEngine_Stun(t *testing.T) {
	h := newHarness(t)
	p := h.world.player(10, 10)
	m := h.world.mob(ratTemplate(), 11, 10)

	h.engine.Stun(m)
	assert.True(t, m.Stunned())
	h.run(2*time.Second, 100*time.Millisecond)

	h.engine.Stun(m) // replaces the timer
	h.run(1500*time.Millisecond, 100*time.Millisecond)
	assert.True(t, m.Stunned(), "re-stun restarts the window")

	h.engine.Begin(m, p)
	assert.Empty(t, h.world.hitsBy(m.Instance()), "stunned characters do not attack")

	h.run(1600*time.Millisecond, 100*time.Millisecond)
	assert.False(t, m.Stunned())
}

func TestEngine_Retaliation(t *testing.T) {
	h := newHarness(t)
	p := h.world.player(10, 10)
	m := h.world.mob(ratTemplate(), 11, 10)

	h.engine.Begin(p, m)
	assert.Equal(t, p.Instance(), m.Target(), "idle mob strikes back")
	assert.Len(t, h.world.hitsBy(m.Instance()), 1)
	assert.True(t, m.Combat().HasAttacker(p.Instance()))
	assert.True(t, p.Combat().HasAttacker(m.Instance()))

	tests := []struct {
		name  string
		setup func(c *world.Mob)
		want  bool
	}{
		{"idle", func(*world.Mob) {}, true},
		{"has target", func(c *world.Mob) { c.SetTarget(p.Instance()) }, false},
		{"retaliation off", func(c *world.Mob) { c.SetRetaliate(false) }, false},
		{"moved recently", func(c *world.Mob) { c.SetMoving(false, h.clock.Now().Add(-time.Second)) }, false},
		{"moved long ago", func(c *world.Mob) { c.SetMoving(false, h.clock.Now().Add(-2*time.Second)) }, true},
		{"moving", func(c *world.Mob) { c.SetMoving(true, h.clock.Now().Add(-time.Hour)) }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := h.world.mob(ratTemplate(), 40, 40)
			tt.setup(c)
			assert.Equal(t, tt.want, h.engine.IsRetaliating(c))
		})
	}
}

func TestEngine_CleanDetachesEveryone(t *testing.T) {
	h := newHarness(t)
	p := h.world.player(10, 10)
	tpl := ratTemplate()
	m := h.world.mob(tpl, 11, 10)
	h.engine.Begin(p, m)
	require.True(t, m.Combat().Started())
	m.SetPosition(12, 10) // off spawn

	h.engine.Clean(p)
	assert.False(t, p.Combat().Started())
	assert.False(t, p.Combat().HasAttackers())
	assert.False(t, m.Combat().HasAttacker(p.Instance()))
	assert.False(t, m.HasTarget())
	assert.False(t, m.Combat().Started())
	assert.Equal(t, []world.Instance{m.Instance()}, h.world.homes)
}

func TestEngine_DetachedIsNoop(t *testing.T) {
	h := newHarness(t)
	p := h.world.player(10, 10)
	m := h.world.mob(ratTemplate(), 11, 10)
	p.SetAttached(false)

	h.engine.Begin(p, m)
	h.engine.Start(p)
	h.engine.Stun(p)
	assert.False(t, p.Combat().Started())
	assert.False(t, p.Stunned())
	assert.Empty(t, h.world.damage)
}

func TestEngine_DeadTargetClearsQueue(t *testing.T) {
	h := newHarness(t)
	p := h.world.player(10, 10)
	m := h.world.mob(ratTemplate(), 11, 10)
	m.SetRetaliate(false)
	h.engine.Begin(p, m)
	p.Combat().Enqueue(world.NewHit(world.HitDamage, 3))

	m.SetDead(true)
	h.engine.Attack(p)
	assert.Equal(t, 0, p.Combat().QueueLen())
	assert.False(t, p.HasTarget())
}

func TestEngine_Poison(t *testing.T) {
	h := newHarness(t)
	p := h.world.player(10, 10)

	h.engine.Poison(p, world.NewPoison(h.clock.Now(), 3*time.Second, 4))
	h.run(5*time.Second, 250*time.Millisecond)

	ticks := 0
	for _, d := range h.world.damage {
		if d.target == p.Instance() {
			ticks++
			assert.Equal(t, 4, d.amount)
		}
	}
	assert.Equal(t, 3, ticks)
	assert.Nil(t, p.Poison())
	assert.False(t, h.wheel.Active(p.PoisonTimer()))
}

func TestEngine_DealAoE(t *testing.T) {
	h := newHarness(t)
	boss := h.world.mob(ratTemplate(), 10, 10)
	near := h.world.player(11, 11)
	far := h.world.player(15, 10)
	other := h.world.mob(ratTemplate(), 10, 11)

	h.engine.DealAoE(boss, 2, true)
	hit := h.world.hitsBy(boss.Instance())
	require.Len(t, hit, 1)
	assert.Equal(t, near.Instance(), hit[0].target)
	for _, d := range h.world.damage {
		assert.NotEqual(t, far.Instance(), d.target)
		assert.NotEqual(t, other.Instance(), d.target)
	}
}

func TestEngine_AoEBystanderIsReleasedWhenBossDies(t *testing.T) {
	h := newHarness(t)
	boss := h.world.mob(ratTemplate(), 10, 10)
	bystander := h.world.player(11, 10)
	bystander.SetMoving(true, h.clock.Now())

	h.engine.DealAoE(boss, 2, false)
	require.True(t, bystander.Combat().HasAttacker(boss.Instance()))
	assert.True(t, boss.Combat().HasAttacker(bystander.Instance()))
	assert.False(t, bystander.Combat().Started(), "walking players do not strike back")

	boss.SetDead(true)
	h.engine.Clean(boss)
	assert.False(t, bystander.Combat().HasAttackers())
}

func TestEngine_StalenessReleasesOpponent(t *testing.T) {
	h := newHarness(t)
	p := h.world.player(10, 10)
	m := h.world.mob(ratTemplate(), 11, 10)
	m.SetRetaliate(false)
	h.engine.Begin(p, m)
	require.True(t, m.Combat().HasAttacker(p.Instance()))
	m.SetPosition(30, 30)

	h.run(10*time.Second, 500*time.Millisecond)
	assert.False(t, p.Combat().Started())
	assert.False(t, m.Combat().HasAttacker(p.Instance()))
}

func TestEngine_FollowStepsTowardTarget(t *testing.T) {
	h := newHarness(t)
	p := h.world.player(15, 10)
	m := h.world.mob(ratTemplate(), 10, 10)
	h.engine.Begin(m, p)

	h.engine.Follow(m)
	x, y := m.Position()
	assert.Equal(t, 11, x)
	assert.Equal(t, 10, y)

	h.world.walls[[2]int{12, 10}] = true
	p.SetPosition(15, 12)
	h.engine.Follow(m)
	x, y = m.Position()
	assert.Equal(t, [2]int{11, 11}, [2]int{x, y}, "blocked axis falls back to the other one")
}

func TestEngine_PlayerFollowIsClientSide(t *testing.T) {
	h := newHarness(t)
	p := h.world.player(10, 10)
	m := h.world.mob(ratTemplate(), 14, 10)
	m.SetRetaliate(false)
	h.engine.Begin(p, m)

	h.engine.Follow(p)
	require.Len(t, h.bridge.direct, 1)
	assert.Equal(t, packet.OpMovement, h.bridge.direct[0].Op)
	x, _ := p.Position()
	assert.Equal(t, 10, x)
}

func TestEngine_CanAttack(t *testing.T) {
	h := newHarness(t)
	a := h.world.player(1, 1)
	b := h.world.player(2, 1)
	m1 := h.world.mob(ratTemplate(), 3, 1)
	m2 := h.world.mob(ratTemplate(), 4, 1)

	assert.True(t, h.engine.CanAttack(a, m1))
	assert.True(t, h.engine.CanAttack(m1, a))
	assert.False(t, h.engine.CanAttack(m1, m2))
	assert.False(t, h.engine.CanAttack(a, a))
	assert.False(t, h.engine.CanAttack(a, b))
	a.SetPVP(true)
	b.SetPVP(true)
	assert.True(t, h.engine.CanAttack(a, b))
}

func TestSummoner(t *testing.T) {
	h := newHarness(t)
	p := h.world.player(10, 10)
	tpl := ratTemplate()
	tpl.Combat = "summoner"
	tpl.Minion = "imp"
	boss := h.world.mob(tpl, 11, 10)
	boss.SetRetaliate(false)

	Summoner{}.OnHit(h.engine, boss, p)
	assert.Len(t, h.world.fighters, 2, "healthy summoners do not summon")

	boss.SetHitPoints(400)
	Summoner{}.OnHit(h.engine, boss, p)
	assert.Len(t, h.world.fighters, 4)
	assert.True(t, boss.MinionsSpawned())

	Summoner{}.OnHit(h.engine, boss, p)
	assert.Len(t, h.world.fighters, 4, "only once")
}

func TestTeleporter(t *testing.T) {
	h := newHarness(t)
	p := h.world.player(10, 10)
	tpl := ratTemplate()
	tpl.Combat = "teleporter"
	m := h.world.mob(tpl, 20, 20)

	for i := 0; i < 100 && h.world.teleports == 0; i++ {
		h.clock.Advance(6 * time.Second)
		Teleporter{}.OnHit(h.engine, m, p)
	}
	require.Equal(t, 1, h.world.teleports)
	x, y := m.Position()
	assert.Equal(t, 3, m.Core().DistanceTo(20, 20))
	assert.True(t, x == 20 || y == 20)

	for i := 0; i < 50; i++ {
		Teleporter{}.OnHit(h.engine, m, p)
	}
	assert.Equal(t, 1, h.world.teleports, "cooldown blocks repeated teleports")
}
