// Package game is the world orchestrator: the single owner of every live
// entity and the only place entities are created, destroyed or damaged.
package game

import (
	"errors"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/tilerealm/server/internal/combat"
	"github.com/tilerealm/server/internal/config"
	"github.com/tilerealm/server/internal/core/ecs"
	"github.com/tilerealm/server/internal/core/event"
	"github.com/tilerealm/server/internal/core/timer"
	"github.com/tilerealm/server/internal/data"
	"github.com/tilerealm/server/internal/net/packet"
	"github.com/tilerealm/server/internal/region"
	"github.com/tilerealm/server/internal/world"
)

var (
	ErrWorldFull       = errors.New("world is full")
	ErrAlreadyOnline   = errors.New("player already online")
	ErrUnknownMob      = errors.New("unknown mob")
	ErrUnknownItem     = errors.New("unknown item")
	ErrNoSpace         = errors.New("not enough inventory space")
	ErrOutOfBounds     = errors.New("position out of bounds")
	ErrTreeNotFound    = errors.New("no tree at position")
	ErrTreeUnavailable = errors.New("tree already cut")
)

// Disconnector closes a client connection.
type Disconnector interface {
	Disconnect(session uint64)
}

// Deps holds everything the world is built from.
type Deps struct {
	Config   *config.Config
	Map      *data.Map
	Mobs     *data.MobTable
	Items    *data.ItemTable
	Npcs     *data.NpcTable
	Trees    *data.TreeTable
	Wheel    *timer.Wheel
	Bus      *event.Bus
	Outbox   region.Outbox
	Kicker   Disconnector
	Formulas combat.Formulas
	Rand     *rand.Rand
	Log      *zap.Logger
}

// World owns all live entities. Accessed only from the game loop goroutine,
// except Post which is safe from any goroutine.
type World struct {
	cfg   *config.Config
	m     *data.Map
	mobT  *data.MobTable
	itemT *data.ItemTable
	npcT  *data.NpcTable
	treeT *data.TreeTable

	wheel  *timer.Wheel
	bus    *event.Bus
	rng    *rand.Rand
	kicker Disconnector
	log    *zap.Logger

	reg         *ecs.Registry
	players     *ecs.Store[world.Player]
	mobs        *ecs.Store[world.Mob]
	npcs        *ecs.Store[world.NPC]
	items       *ecs.Store[world.Item]
	chests      *ecs.Store[world.Chest]
	projectiles *ecs.Store[world.Projectile]
	entities    map[world.Instance]world.Entity
	hooked      map[world.Instance]struct{}
	sessions    map[uint64]world.Instance

	grid   *world.Grid
	bridge *region.Bridge
	combat *combat.Engine

	trees *treeState
	areas []*chestArea

	tasks chan func()
}

func NewWorld(d Deps) *World {
	cfg := d.Config
	if d.Rand == nil {
		d.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if d.Bus == nil {
		d.Bus = event.NewBus()
	}
	w := &World{
		cfg:         cfg,
		m:           d.Map,
		mobT:        d.Mobs,
		itemT:       d.Items,
		npcT:        d.Npcs,
		treeT:       d.Trees,
		wheel:       d.Wheel,
		bus:         d.Bus,
		rng:         d.Rand,
		kicker:      d.Kicker,
		log:         d.Log,
		reg:         ecs.NewRegistry(),
		players:     ecs.NewStore[world.Player](),
		mobs:        ecs.NewStore[world.Mob](),
		npcs:        ecs.NewStore[world.NPC](),
		items:       ecs.NewStore[world.Item](),
		chests:      ecs.NewStore[world.Chest](),
		projectiles: ecs.NewStore[world.Projectile](),
		entities:    make(map[world.Instance]world.Entity),
		hooked:      make(map[world.Instance]struct{}),
		sessions:    make(map[uint64]world.Instance),
		trees:       newTreeState(),
		tasks:       make(chan func(), 1024),
	}
	w.reg.Register(w.players)
	w.reg.Register(w.mobs)
	w.reg.Register(w.npcs)
	w.reg.Register(w.items)
	w.reg.Register(w.chests)
	w.reg.Register(w.projectiles)

	wc := cfg.World
	w.grid = world.NewGrid(d.Map.Width(), d.Map.Height(), wc.RegionWidth, wc.RegionHeight, wc.RegionOffset)
	for _, door := range d.Map.Doors() {
		from := w.grid.RegionAt(door.X, door.Y)
		to := w.grid.RegionAt(door.ToX, door.ToY)
		w.grid.Link(from, to)
		w.grid.Link(to, from)
	}
	w.bridge = region.NewBridge(w.grid, d.Map, d.Outbox, d.Log)
	w.bridge.SetOverlay(w)
	w.combat = combat.NewEngine(w, w.bridge, d.Wheel, d.Formulas, cfg.Combat, d.Rand, d.Log)

	for i, a := range d.Map.ChestAreas() {
		w.areas = append(w.areas, &chestArea{index: i, def: a, mobs: make(map[world.Instance]struct{})})
	}

	event.Subscribe(w.bus, w.onMobKilled)
	event.Subscribe(w.bus, w.onPlayerDied)
	event.Subscribe(w.bus, func(ev event.PlayerLoggedIn) {
		w.log.Info("player entered world", zap.String("player", ev.Name), zap.Stringer("instance", ev.Player))
	})
	event.Subscribe(w.bus, func(ev event.PlayerLoggedOut) {
		w.log.Info("player left world", zap.String("player", ev.Name), zap.Uint64("session", ev.SessionID))
	})
	return w
}

func (w *World) Config() *config.Config { return w.cfg }
func (w *World) Map() *data.Map         { return w.m }
func (w *World) Grid() *world.Grid      { return w.grid }
func (w *World) Bridge() *region.Bridge { return w.bridge }
func (w *World) Combat() *combat.Engine { return w.combat }
func (w *World) Wheel() *timer.Wheel    { return w.wheel }
func (w *World) Bus() *event.Bus        { return w.bus }
func (w *World) Items() *data.ItemTable { return w.itemT }
func (w *World) Mobs() *data.MobTable   { return w.mobT }
func (w *World) Now() time.Time         { return w.wheel.Now() }
func (w *World) Rand() *rand.Rand       { return w.rng }
func (w *World) Log() *zap.Logger       { return w.log }
func (w *World) PlayerCount() int       { return w.players.Len() }
func (w *World) MobCount() int          { return w.mobs.Len() }
func (w *World) EntityCount() int       { return len(w.entities) }

// Post queues fn to run on the game loop. Safe from any goroutine.
func (w *World) Post(fn func()) { w.tasks <- fn }

// RunTasks runs the callbacks posted since the last call.
func (w *World) RunTasks() int {
	n := 0
	for {
		select {
		case fn := <-w.tasks:
			fn()
			n++
		default:
			return n
		}
	}
}

// Entity returns any live entity by instance.
func (w *World) Entity(id world.Instance) world.Entity {
	return w.entities[id]
}

// Fighter resolves a live, attached character.
func (w *World) Fighter(id world.Instance) world.Fighter {
	if p, ok := w.players.Get(id); ok && p.Attached() {
		return p
	}
	if m, ok := w.mobs.Get(id); ok && m.Attached() {
		return m
	}
	return nil
}

func (w *World) Player(id world.Instance) *world.Player {
	p, _ := w.players.Get(id)
	return p
}

func (w *World) Mob(id world.Instance) *world.Mob {
	m, _ := w.mobs.Get(id)
	return m
}

func (w *World) Item(id world.Instance) *world.Item {
	it, _ := w.items.Get(id)
	return it
}

func (w *World) Chest(id world.Instance) *world.Chest {
	c, _ := w.chests.Get(id)
	return c
}

func (w *World) NPC(id world.Instance) *world.NPC {
	n, _ := w.npcs.Get(id)
	return n
}

func (w *World) Projectile(id world.Instance) *world.Projectile {
	pr, _ := w.projectiles.Get(id)
	return pr
}

// PlayerBySession returns the player bound to a connection, or nil.
func (w *World) PlayerBySession(session uint64) *world.Player {
	id, ok := w.sessions[session]
	if !ok {
		return nil
	}
	return w.Player(id)
}

// PlayerByName finds an online player by username or display name.
func (w *World) PlayerByName(name string) *world.Player {
	name = FormatUsername(name)
	for _, p := range w.players.Sorted() {
		if FormatUsername(p.Username()) == name || p.Name() == name {
			return p
		}
	}
	return nil
}

// Players returns every logged in player ordered by instance.
func (w *World) Players() []*world.Player { return w.players.Sorted() }

// AllMobs returns every live mob ordered by instance.
func (w *World) AllMobs() []*world.Mob { return w.mobs.Sorted() }

// AllItems returns every item on the ground ordered by instance.
func (w *World) AllItems() []*world.Item { return w.items.Sorted() }

// AllChests returns every chest ordered by instance.
func (w *World) AllChests() []*world.Chest { return w.chests.Sorted() }

// AllProjectiles returns every projectile in flight ordered by instance.
func (w *World) AllProjectiles() []*world.Projectile { return w.projectiles.Sorted() }

// IsColliding reports tiles nothing may stand on.
func (w *World) IsColliding(x, y int) bool { return w.m.IsColliding(x, y) }

// addEntity registers e in the instance map, its kind store and the region
// index. The move hook is wired the first time an instance is seen.
func (w *World) addEntity(e world.Entity) {
	core := e.Core()
	id := core.Instance()
	w.entities[id] = e
	switch v := e.(type) {
	case *world.Player:
		w.players.Set(id, v)
	case *world.Mob:
		w.mobs.Set(id, v)
	case *world.NPC:
		w.npcs.Set(id, v)
	case *world.Item:
		w.items.Set(id, v)
	case *world.Chest:
		w.chests.Set(id, v)
	case *world.Projectile:
		w.projectiles.Set(id, v)
	}
	if _, ok := w.hooked[id]; !ok {
		core.OnMove(w.onMove)
		w.hooked[id] = struct{}{}
	}
	core.SetAttached(true)
	w.bridge.Add(e)
}

// removeEntity drops e from every index at once. With release the instance
// is retired for good; otherwise it is kept for a later addEntity.
func (w *World) removeEntity(e world.Entity, release bool) {
	core := e.Core()
	id := core.Instance()
	if _, ok := w.entities[id]; !ok {
		return
	}
	w.bridge.Remove(e)
	core.SetAttached(false)
	delete(w.entities, id)
	if release {
		delete(w.hooked, id)
		w.reg.Destroy(id)
		return
	}
	switch e.(type) {
	case *world.Player:
		w.players.Remove(id)
	case *world.Mob:
		w.mobs.Remove(id)
	case *world.Chest:
		w.chests.Remove(id)
	case *world.Item:
		w.items.Remove(id)
	}
}

func (w *World) onMove(e world.Entity) {
	if !e.Core().Attached() {
		return
	}
	changed := w.bridge.Update(e)
	switch v := e.(type) {
	case *world.Player:
		if changed {
			v.SetLastRegionChange(w.Now())
			w.bridge.SendRegion(v, false)
		}
		w.checkAreas(v)
		w.trackProjectiles(v)
		w.aggroAround(v)
	case *world.Mob:
		w.trackProjectiles(v)
		w.leash(v)
	}
}

// leash returns a mob that strayed too far from its spawn.
func (w *World) leash(m *world.Mob) {
	if m.IsDead() || m.SpawnDistance() <= w.cfg.Combat.SpawnDistance {
		return
	}
	w.SendHome(m)
}

// MoveCharacter walks c one step and tells everyone who sees it.
func (w *World) MoveCharacter(c world.Fighter, x, y int) {
	if !w.m.InBounds(x, y) {
		return
	}
	c.Char().SetMoving(false, w.Now())
	c.Core().SetPosition(x, y)
	if c.Core().Attached() {
		w.bridge.PushRegions(c, packet.Move(c, false))
	}
}

// Teleport snaps c to (x,y).
func (w *World) Teleport(c world.Fighter, x, y int) {
	if !w.m.InBounds(x, y) {
		return
	}
	c.Char().SetMoving(false, w.Now())
	c.Core().SetPosition(x, y)
	if c.Core().Attached() {
		w.bridge.PushRegions(c, packet.Teleport(c))
	}
}

// SendHome drops a mob's fight and returns it to its spawn at full health.
func (w *World) SendHome(m *world.Mob) {
	if m.IsDead() {
		return
	}
	w.combat.Stop(m)
	w.combat.Forget(m)
	x, y := m.SpawnPoint()
	m.Core().SetPosition(x, y)
	m.SetHitPoints(m.MaxHitPoints())
	if m.Attached() {
		w.bridge.PushRegions(m, packet.Move(m, true))
		w.bridge.PushToSurrounding(m.Region(), packet.Points(m))
	}
}

func (w *World) onMobKilled(ev event.MobKilled) {
	if p := w.Player(ev.Killer); p != nil {
		p.AddKill()
		p.MarkDirty()
	}
	w.log.Debug("mob killed", zap.String("mob", ev.Key), zap.Stringer("killer", ev.Killer))
}

func (w *World) onPlayerDied(ev event.PlayerDied) {
	w.log.Info("player died", zap.String("player", ev.Name), zap.Stringer("killer", ev.Killer))
}

func randInt(rng *rand.Rand, lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + rng.Intn(hi-lo+1)
}
