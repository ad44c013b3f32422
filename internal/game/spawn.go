package game

import (
	"time"

	"go.uber.org/zap"

	"github.com/tilerealm/server/internal/core/timer"
	"github.com/tilerealm/server/internal/data"
	"github.com/tilerealm/server/internal/net/packet"
	"github.com/tilerealm/server/internal/world"
)

const (
	itemBlinkDelay   = 20 * time.Second
	itemDespawnDelay = 24 * time.Second
	itemRespawnDelay = 30 * time.Second
	chestRespawn     = 25 * time.Second
	roamMin          = 10 * time.Second
	roamMax          = 20 * time.Second
)

// LoadEntities places every static spawn listed in the map.
func (w *World) LoadEntities() {
	mobs, items, chests, npcs := 0, 0, 0, 0
	for _, s := range w.m.MobSpawns() {
		m, err := w.SpawnMob(s.Key, s.X, s.Y)
		if err != nil {
			w.log.Warn("skipping mob spawn", zap.String("mob", s.Key), zap.Int("x", s.X), zap.Int("y", s.Y), zap.Error(err))
			continue
		}
		m.SetStatic(true)
		if s.Roaming && !m.IsRoaming() {
			m.SetRoaming(true)
			w.scheduleRoam(m)
		}
		mobs++
	}
	for _, s := range w.m.ItemSpawns() {
		it, err := w.SpawnItem(s.Key, s.X, s.Y, s.Count)
		if err != nil {
			w.log.Warn("skipping item spawn", zap.String("item", s.Key), zap.Error(err))
			continue
		}
		it.SetStatic(true)
		items++
	}
	for _, s := range w.m.ChestSpawns() {
		loot, err := data.ParseLootList(s.Items)
		if err != nil {
			w.log.Warn("skipping chest spawn", zap.Int("x", s.X), zap.Int("y", s.Y), zap.Error(err))
			continue
		}
		c := w.SpawnChest(loot, s.X, s.Y)
		c.SetStatic(true)
		chests++
	}
	for _, s := range w.m.NpcSpawns() {
		if w.SpawnNPC(s.Key, s.X, s.Y) != nil {
			npcs++
		}
	}
	w.log.Info("entities loaded",
		zap.Int("mobs", mobs),
		zap.Int("items", items),
		zap.Int("chests", chests),
		zap.Int("npcs", npcs),
		zap.Int("chest_areas", len(w.areas)),
	)
}

// SpawnMob creates a live mob of kind key at (x,y).
func (w *World) SpawnMob(key string, x, y int) (*world.Mob, error) {
	tpl := w.mobT.Get(key)
	if tpl == nil {
		return nil, ErrUnknownMob
	}
	if !w.m.InBounds(x, y) {
		return nil, ErrOutOfBounds
	}
	m := world.NewMob(w.reg.Create(), tpl, x, y)
	w.addEntity(m)
	w.enterChestArea(m)
	if m.IsRoaming() {
		w.scheduleRoam(m)
	}
	return m, nil
}

// SpawnMinion summons a non-static mob owned by another.
func (w *World) SpawnMinion(owner *world.Mob, key string, x, y int) *world.Mob {
	m, err := w.SpawnMob(key, x, y)
	if err != nil {
		w.log.Debug("minion spawn failed", zap.String("mob", key), zap.Error(err))
		return nil
	}
	m.SetOwner(owner.Instance())
	return m
}

// SpawnItem places an item that stays until picked up.
func (w *World) SpawnItem(key string, x, y, count int) (*world.Item, error) {
	if !w.itemT.Exists(key) {
		return nil, ErrUnknownItem
	}
	if !w.m.InBounds(x, y) {
		return nil, ErrOutOfBounds
	}
	it := world.NewItem(w.reg.Create(), key, x, y, count)
	w.addEntity(it)
	return it, nil
}

// DropItem places an item that blinks and then disappears on its own.
func (w *World) DropItem(key string, x, y, count int) *world.Item {
	it, err := w.SpawnItem(key, x, y, count)
	if err != nil {
		w.log.Debug("drop failed", zap.String("item", key), zap.Error(err))
		return nil
	}
	it.SetDropped(true)
	blink := w.wheel.After(itemBlinkDelay, func() {
		w.bridge.PushToSurrounding(it.Region(), packet.Blink(it.Instance()))
	})
	despawn := w.wheel.After(itemDespawnDelay, func() {
		it.TakeTimers()
		w.removeEntity(it, true)
	})
	it.SetTimers(blink, despawn)
	return it
}

// SpawnChest places a chest holding loot.
func (w *World) SpawnChest(loot []data.Loot, x, y int) *world.Chest {
	c := world.NewChest(w.reg.Create(), x, y, loot)
	w.addEntity(c)
	return c
}

// SpawnNPC places a talking character. Unknown kinds are skipped.
func (w *World) SpawnNPC(key string, x, y int) *world.NPC {
	tpl := w.npcT.Get(key)
	if tpl == nil {
		w.log.Warn("unknown npc", zap.String("npc", key))
		return nil
	}
	n := world.NewNPC(w.reg.Create(), tpl, x, y)
	w.addEntity(n)
	return n
}

// PickUp moves a ground item into p's inventory. p must stand on it.
func (w *World) PickUp(p *world.Player, it *world.Item) error {
	if !it.Attached() || it.X() != p.X() || it.Y() != p.Y() {
		return ErrOutOfBounds
	}
	tpl := w.itemT.Get(it.Key())
	stackable := tpl != nil && tpl.Stackable
	if !p.Inventory().Add(it.Key(), it.Count(), stackable) {
		w.bridge.SendTo(p, packet.Notify("You do not have enough space in your inventory."))
		return ErrNoSpace
	}
	p.MarkDirty()
	w.bridge.SendTo(p, packet.InventoryAdded(it.Key(), it.Count()))

	blink, despawn := it.TakeTimers()
	w.wheel.Stop(blink)
	w.wheel.Stop(despawn)
	w.removeEntity(it, true)
	if it.IsStatic() {
		key, x, y, count := it.Key(), it.X(), it.Y(), it.Count()
		w.wheel.After(itemRespawnDelay, func() {
			if respawned, err := w.SpawnItem(key, x, y, count); err == nil {
				respawned.SetStatic(true)
			}
		})
	}
	return nil
}

// OpenChest breaks a chest open next to p and drops one rolled item.
func (w *World) OpenChest(p *world.Player, c *world.Chest) bool {
	if !c.Attached() || p.Distance(c) > 1 {
		return false
	}
	x, y := c.Position()
	w.removeEntity(c, true)
	if a := w.area(c.Area()); a != nil && a.chest == c {
		a.chest = nil
	}
	if l, ok := c.Roll(w.rng); ok {
		w.DropItem(l.Key, x, y, l.Count)
	}
	if c.IsStatic() {
		loot := c.Loot()
		w.wheel.After(chestRespawn, func() {
			w.SpawnChest(loot, x, y).SetStatic(true)
		})
	}
	return true
}

// scheduleRoam arms the next idle wander of m.
func (w *World) scheduleRoam(m *world.Mob) {
	if h := m.RoamTimer(); h != 0 {
		w.wheel.Stop(h)
	}
	d := roamMin + time.Duration(w.rng.Int63n(int64(roamMax-roamMin)))
	m.SetRoamTimer(w.wheel.After(d, func() { w.roam(m) }))
}

func (w *World) roam(m *world.Mob) {
	m.SetRoamTimer(0)
	if !m.Attached() || m.IsDead() {
		return
	}
	defer w.scheduleRoam(m)
	if m.HasTarget() || m.Combat().HasAttackers() {
		return
	}
	sx, sy := m.SpawnPoint()
	r := w.cfg.Combat.SpawnDistance
	x := sx + w.rng.Intn(2*r+1) - r
	y := sy + w.rng.Intn(2*r+1) - r
	if (x == m.X() && y == m.Y()) || !w.m.InBounds(x, y) || w.IsColliding(x, y) {
		return
	}
	w.MoveCharacter(m, x, y)
}

// chestArea is a map rectangle whose chest appears once every mob inside
// has been killed.
type chestArea struct {
	index   int
	def     data.Area
	mobs    map[world.Instance]struct{}
	chest   *world.Chest
	pending timer.Handle
}

func (w *World) area(i int) *chestArea {
	if i < 0 || i >= len(w.areas) {
		return nil
	}
	return w.areas[i]
}

func (w *World) enterChestArea(m *world.Mob) {
	x, y := m.Position()
	for _, a := range w.areas {
		if !a.def.Contains(x, y) {
			continue
		}
		m.SetArea(a.index)
		a.mobs[m.Instance()] = struct{}{}
		if a.pending != 0 {
			w.wheel.Stop(a.pending)
			a.pending = 0
		}
		if a.chest != nil {
			w.removeEntity(a.chest, true)
			a.chest = nil
		}
		return
	}
}

func (w *World) leaveChestArea(m *world.Mob) {
	a := w.area(m.Area())
	if a == nil {
		return
	}
	delete(a.mobs, m.Instance())
	m.SetArea(-1)
	if len(a.mobs) > 0 || a.chest != nil || a.pending != 0 {
		return
	}
	delay := time.Duration(a.def.SpawnMs) * time.Millisecond
	a.pending = w.wheel.After(delay, func() { w.spawnAreaChest(a) })
}

func (w *World) spawnAreaChest(a *chestArea) {
	a.pending = 0
	if len(a.mobs) > 0 || a.chest != nil {
		return
	}
	loot, err := data.ParseLootList(a.def.Items)
	if err != nil {
		w.log.Warn("bad chest area loot", zap.Int("area", a.index), zap.Error(err))
		return
	}
	a.chest = w.SpawnChest(loot, a.def.ChestX, a.def.ChestY)
	a.chest.SetArea(a.index)
}
