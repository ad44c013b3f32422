// Package combat drives per-character fighting: the attack, follow and
// staleness loops, hit delivery and its rate limit, stuns, poison and the
// special mob archetypes.
package combat

import (
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/tilerealm/server/internal/config"
	"github.com/tilerealm/server/internal/core/timer"
	"github.com/tilerealm/server/internal/net/packet"
	"github.com/tilerealm/server/internal/world"
)

const (
	criticalChance = 5 // percent
	poisonChance   = 10

	poisonDuration = 15 * time.Second
	poisonDamage   = 5
	poisonInterval = time.Second
)

// World is what the engine needs from the orchestrator.
type World interface {
	// Fighter resolves a live character, or nil.
	Fighter(id world.Instance) world.Fighter
	HandleDamage(attacker, target world.Fighter, damage int)
	CreateProjectile(attacker, target world.Fighter, hit world.Hit)
	MoveCharacter(c world.Fighter, x, y int)
	Teleport(c world.Fighter, x, y int)
	IsColliding(x, y int) bool
	SpawnMinion(owner *world.Mob, key string, x, y int) *world.Mob
	SendHome(m *world.Mob)
}

// Broadcaster is the part of the region bridge the engine pushes through.
type Broadcaster interface {
	PushToSurrounding(id world.RegionID, msg packet.Message, ignore ...world.Instance)
	SendTo(p *world.Player, msg packet.Message)
	Nearby(e world.Entity, radius int) []world.Entity
}

// Engine runs combat for every character. Game loop only.
type Engine struct {
	world    World
	bridge   Broadcaster
	wheel    *timer.Wheel
	formulas Formulas
	cfg      config.CombatConfig
	rng      *rand.Rand

	behaviors map[string]Behavior
	log       *zap.Logger
}

func NewEngine(w World, bridge Broadcaster, wheel *timer.Wheel, formulas Formulas, cfg config.CombatConfig, rng *rand.Rand, log *zap.Logger) *Engine {
	if formulas == nil {
		formulas = Default{Rand: rng}
	}
	e := &Engine{
		world:     w,
		bridge:    bridge,
		wheel:     wheel,
		formulas:  formulas,
		cfg:       cfg,
		rng:       rng,
		behaviors: make(map[string]Behavior),
		log:       log,
	}
	e.RegisterBehavior("teleporter", Teleporter{})
	e.RegisterBehavior("aoe", AreaAttacker{})
	e.RegisterBehavior("summoner", Summoner{})
	return e
}

// RegisterBehavior makes a mob combat archetype selectable by name.
func (e *Engine) RegisterBehavior(name string, b Behavior) { e.behaviors[name] = b }

func (e *Engine) Formulas() Formulas { return e.formulas }

func (e *Engine) now() time.Time { return e.wheel.Now() }

func attached(c world.Fighter) bool {
	return c != nil && c.Core().Attached()
}

func (e *Engine) push(c world.Entity, msg packet.Message, ignore ...world.Instance) {
	e.bridge.PushToSurrounding(c.Core().Region(), msg, ignore...)
}

func (e *Engine) behavior(c world.Fighter) Behavior {
	m, ok := c.(*world.Mob)
	if !ok {
		return nil
	}
	return e.behaviors[m.Behaviour()]
}

// target resolves c's current target, clearing it when it is gone or dead.
func (e *Engine) target(c world.Fighter) world.Fighter {
	ch := c.Char()
	if !ch.HasTarget() {
		return nil
	}
	t := e.world.Fighter(ch.Target())
	if t == nil || t.Char().IsDead() {
		ch.ClearTarget()
		ch.Combat().ClearQueue()
		return nil
	}
	return t
}

// CanAttack reports whether c may fight t at all.
func (e *Engine) CanAttack(c, t world.Fighter) bool {
	if c == nil || t == nil || c == t {
		return false
	}
	if c.Char().IsDead() || t.Char().IsDead() {
		return false
	}
	cp, cIsPlayer := c.(*world.Player)
	tp, tIsPlayer := t.(*world.Player)
	switch {
	case cIsPlayer && tIsPlayer:
		return cp.PVP() && tp.PVP()
	case !cIsPlayer && !tIsPlayer:
		return false
	}
	return true
}

// Begin engages c against t: mutual attacker registration, loops started and
// an immediate attack attempt.
func (e *Engine) Begin(c, t world.Fighter) {
	if !attached(c) || !attached(t) || !e.CanAttack(c, t) {
		return
	}
	ch, tc := c.Char(), t.Char()
	cid, tid := c.Core().Instance(), t.Core().Instance()
	if ch.Target() != tid {
		ch.Combat().ClearQueue()
	}
	ch.SetTarget(tid)
	ch.Combat().AddAttacker(tid)
	tc.Combat().AddAttacker(cid)
	ch.Combat().Touch(e.now())

	e.push(c, packet.CombatStart(cid, tid))
	e.Start(c)
	e.Attack(c)
}

// Start launches the attack, follow and staleness loops. No-op when running.
func (e *Engine) Start(c world.Fighter) {
	if !attached(c) {
		return
	}
	cs := c.Char().Combat()
	if cs.Started() {
		return
	}
	cs.Touch(e.now())
	attack := e.wheel.Every(c.Char().AttackRate(), func() { e.Attack(c) })
	follow := e.wheel.Every(e.cfg.FollowInterval, func() { e.Follow(c) })
	check := e.wheel.Every(e.cfg.CheckInterval, func() { e.Check(c) })
	cs.SetLoops(attack, follow, check)
}

// Stop cancels all three loops. Idempotent.
func (e *Engine) Stop(c world.Fighter) {
	if c == nil {
		return
	}
	cs := c.Char().Combat()
	if !cs.Started() {
		return
	}
	attack, follow, check := cs.TakeLoops()
	e.wheel.Stop(attack)
	e.wheel.Stop(follow)
	e.wheel.Stop(check)
}

// Forget drops c's target, its attackers and any queued hits. Every
// character engaged with c stops listing and targeting it.
func (e *Engine) Forget(c world.Fighter) {
	if c == nil {
		return
	}
	ch := c.Char()
	cid := c.Core().Instance()
	for _, id := range ch.Combat().Attackers() {
		if other := e.world.Fighter(id); other != nil {
			release(other, cid)
		}
	}
	ch.ClearTarget()
	ch.Combat().ClearAttackers()
	ch.Combat().ClearQueue()
}

// release removes id from c's attackers and target without touching c's loops.
func release(c world.Fighter, id world.Instance) {
	ch := c.Char()
	ch.Combat().RemoveAttacker(id)
	if ch.Target() == id {
		ch.ClearTarget()
		ch.Combat().ClearQueue()
	}
}

// Attack is one attack-loop step: queue a hit when the target is in reach,
// then deliver the oldest queued hit if the rate limit allows.
func (e *Engine) Attack(c world.Fighter) {
	if !attached(c) || c.Char().IsDead() {
		return
	}
	t := e.target(c)
	if t == nil {
		return
	}
	ch := c.Char()
	if ch.Stunned() || !e.InProximity(c, t) {
		return
	}
	cs := ch.Combat()
	if cs.QueueLen() == 0 {
		cs.Enqueue(e.CreateHit(c, t))
	}
	if b := e.behavior(c); b != nil {
		b.OnAttack(e, c.(*world.Mob), t)
		if e.target(c) == nil {
			return
		}
	}
	if !e.CanHit(c) {
		return
	}
	if hit, ok := cs.Dequeue(); ok {
		e.Hit(c, t, hit)
	}
}

// CreateHit rolls the next hit c deals to t.
func (e *Engine) CreateHit(c, t world.Fighter) world.Hit {
	critical := e.rng.Intn(100) < criticalChance
	dmg := e.formulas.Damage(c, t, critical)
	if critical {
		return world.NewHit(world.HitCritical, dmg)
	}
	return world.NewHit(world.HitDamage, dmg)
}

// CanHit is the server side cadence check: at least attackRate (less a small
// tolerance) since the last delivered hit.
func (e *Engine) CanHit(c world.Fighter) bool {
	ch := c.Char()
	last := ch.Combat().LastHit()
	if last.IsZero() {
		return true
	}
	return e.now().Sub(last) >= ch.AttackRate()-e.cfg.HitTolerance
}

// Hit delivers hit from c to t. Ranged characters fire a projectile that
// applies the damage on impact; melee damage applies immediately. It returns
// false when the rate limit rejected the hit.
func (e *Engine) Hit(c, t world.Fighter, hit world.Hit) bool {
	if !attached(c) || !attached(t) || t.Char().IsDead() {
		return false
	}
	if !e.CanHit(c) {
		return false
	}
	now := e.now()
	cs := c.Char().Combat()
	cs.SetLastHit(now)
	cs.Touch(now)

	if c.Char().IsRanged() {
		hit.Ranged = true
		e.world.CreateProjectile(c, t, hit)
		return true
	}

	e.push(t, packet.CombatHitMsg(c.Core().Instance(), t.Core().Instance(), hit))
	e.Apply(c, t, hit)
	return true
}

// Apply lands an already delivered hit: damage, stun, poison and the
// target's hit-received hook. Projectile impacts land through here.
func (e *Engine) Apply(c, t world.Fighter, hit world.Hit) {
	if t == nil || t.Char().IsDead() {
		return
	}
	e.world.HandleDamage(c, t, hit.Amount())
	if t.Char().IsDead() {
		return
	}
	if hit.Type == world.HitStun {
		e.Stun(t)
	}
	if m, ok := c.(*world.Mob); ok && m.Template().Poisonous && t.Char().Poison() == nil && e.rng.Intn(100) < poisonChance {
		e.Poison(t, world.NewPoison(e.now(), poisonDuration, poisonDamage))
	}
	e.OnHit(t, c, hit)
}

// InProximity: ranged characters reach anything within attackRange tiles,
// melee needs a cardinal neighbour.
func (e *Engine) InProximity(c, t world.Fighter) bool {
	ch := c.Char()
	if ch.IsRanged() {
		return c.Core().Distance(t) <= ch.AttackRange()
	}
	return c.Core().IsNonDiagonal(t)
}

// Stun freezes t for the stun window. Re-stunning replaces the timer.
func (e *Engine) Stun(t world.Fighter) {
	if !attached(t) {
		return
	}
	tc := t.Char()
	if tc.Stunned() {
		e.wheel.Stop(tc.StunTimer())
	}
	id := t.Core().Instance()
	h := e.wheel.After(e.cfg.StunDuration, func() {
		tc.SetStun(false, 0)
		e.push(t, packet.Stunned(id, false))
	})
	tc.SetStun(true, h)
	e.push(t, packet.Stunned(id, true))
}

// Poison starts (or replaces) a poison ticking on t every second.
func (e *Engine) Poison(t world.Fighter, p *world.Poison) {
	if !attached(t) || p == nil {
		return
	}
	tc := t.Char()
	e.wheel.Stop(tc.PoisonTimer())
	h := e.wheel.Every(poisonInterval, func() { e.poisonTick(t) })
	tc.SetPoison(p, h)
}

// Cure removes t's poison.
func (e *Engine) Cure(t world.Fighter) {
	tc := t.Char()
	e.wheel.Stop(tc.PoisonTimer())
	tc.SetPoison(nil, 0)
}

func (e *Engine) poisonTick(t world.Fighter) {
	tc := t.Char()
	p := tc.Poison()
	if p == nil || p.Expired(e.now()) || tc.IsDead() || !attached(t) {
		e.Cure(t)
		return
	}
	hit := world.NewHit(world.HitPoison, p.TickDamage)
	id := t.Core().Instance()
	e.push(t, packet.CombatHitMsg(id, id, hit))
	// Self-inflicted: no kill credit.
	e.world.HandleDamage(t, t, hit.Amount())
}

// DealAoE hits every opposing character within radius of c.
func (e *Engine) DealAoE(c world.Fighter, radius int, terror bool) {
	if !attached(c) {
		return
	}
	cid := c.Core().Instance()
	for _, o := range e.bridge.Nearby(c, radius) {
		t, ok := o.(world.Fighter)
		if !ok || !e.CanAttack(c, t) {
			continue
		}
		hit := world.Hit{Type: world.HitDamage, Damage: e.formulas.AoEDamage(c, t), AoE: true, Terror: terror}
		e.push(t, packet.CombatHitMsg(cid, t.Core().Instance(), hit))
		e.Apply(c, t, hit)
	}
}

// IsRetaliating: an idle character that has stood still long enough strikes
// back when hit.
func (e *Engine) IsRetaliating(c world.Fighter) bool {
	ch := c.Char()
	if ch.HasTarget() || !ch.Retaliates() || ch.Moving() || ch.IsDead() {
		return false
	}
	return e.now().Sub(ch.LastMovement()) >= e.cfg.RetaliationIdle
}

// OnHit is t's hit-received hook.
func (e *Engine) OnHit(t, attacker world.Fighter, hit world.Hit) {
	if !attached(t) || !attached(attacker) || attacker == t {
		return
	}
	tc := t.Char()
	aid := attacker.Core().Instance()
	// Both sides list each other so either one's teardown reaches the other.
	tc.Combat().AddAttacker(aid)
	attacker.Char().Combat().AddAttacker(t.Core().Instance())
	tc.Combat().Touch(e.now())
	if m, ok := t.(*world.Mob); ok {
		m.SetLastAttacker(aid)
	}
	if e.IsRetaliating(t) {
		e.Begin(t, attacker)
	}
	if b := e.behavior(t); b != nil {
		b.OnHit(e, t.(*world.Mob), attacker)
	}
}

// Check is the staleness step: no action for the threshold stops and forgets.
func (e *Engine) Check(c world.Fighter) {
	cs := c.Char().Combat()
	if e.now().Sub(cs.LastAction()) <= e.cfg.LastActionThreshold {
		return
	}
	target := c.Char().Target()
	e.Stop(c)
	e.Forget(c)
	e.push(c, packet.CombatFinished(c.Core().Instance(), target))
	if m, ok := c.(*world.Mob); ok && !m.IsAtSpawn() && !m.IsDead() {
		e.world.SendHome(m)
	}
}

// Follow is one follow-loop step. Mobs walk one tile toward their target;
// players are told to follow a target that is out of reach.
func (e *Engine) Follow(c world.Fighter) {
	if !attached(c) || c.Char().Stunned() || c.Char().IsDead() {
		return
	}
	t := e.target(c)
	if t == nil {
		return
	}
	switch v := c.(type) {
	case *world.Mob:
		e.followMob(v, t)
	case *world.Player:
		if !e.InProximity(c, t) {
			e.bridge.SendTo(v, packet.Follow(v.Instance(), t.Core().Instance()))
		}
	}
}

var cardinals = [4][2]int{{0, -1}, {0, 1}, {-1, 0}, {1, 0}}

func (e *Engine) followMob(m *world.Mob, t world.Fighter) {
	if e.InProximity(m, t) {
		return
	}
	mx, my := m.Position()
	tx, ty := t.Core().Position()
	if mx == tx && my == ty {
		// Standing on the target: shuffle to any free neighbour.
		start := e.rng.Intn(len(cardinals))
		for i := range cardinals {
			d := cardinals[(start+i)%len(cardinals)]
			if !e.world.IsColliding(mx+d[0], my+d[1]) {
				e.world.MoveCharacter(m, mx+d[0], my+d[1])
				return
			}
		}
		return
	}
	dx, dy := sign(tx-mx), sign(ty-my)
	steps := [][2]int{{dx, 0}, {0, dy}}
	if abs(ty-my) > abs(tx-mx) {
		steps[0], steps[1] = steps[1], steps[0]
	}
	for _, s := range steps {
		if s == [2]int{0, 0} {
			continue
		}
		nx, ny := mx+s[0], my+s[1]
		if nx == tx && ny == ty {
			continue
		}
		if !e.world.IsColliding(nx, ny) {
			e.world.MoveCharacter(m, nx, ny)
			return
		}
	}
}

// RemoveAttacker detaches attacker from c. A mob left with nobody attacking
// it stops fighting and walks home.
func (e *Engine) RemoveAttacker(c, attacker world.Fighter) {
	ch := c.Char()
	release(c, attacker.Core().Instance())
	if ch.Combat().HasAttackers() || ch.HasTarget() {
		return
	}
	e.Stop(c)
	if m, ok := c.(*world.Mob); ok && !m.IsDead() && !m.IsAtSpawn() {
		e.world.SendHome(m)
	}
}

// Clean tears down all of c's combat, used on death and disconnect. Every
// character engaged with c lets go of it.
func (e *Engine) Clean(c world.Fighter) {
	if c == nil {
		return
	}
	e.Stop(c)
	ch := c.Char()
	for _, id := range ch.Combat().Attackers() {
		if other := e.world.Fighter(id); other != nil {
			e.RemoveAttacker(other, c)
		}
	}
	e.Forget(c)
	if ch.Stunned() {
		e.wheel.Stop(ch.StunTimer())
		ch.SetStun(false, 0)
	}
}

// Sync pushes c's authoritative position and health to everyone who sees it.
func (e *Engine) Sync(c world.Fighter) {
	if !attached(c) {
		return
	}
	e.push(c, packet.CombatSyncMsg(c))
	e.push(c, packet.Points(c))
}

func sign(v int) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
