// Package region keeps the zone index in sync with entity movement and
// decides which players hear about what.
package region

import (
	"sort"

	"go.uber.org/zap"

	"github.com/tilerealm/server/internal/data"
	"github.com/tilerealm/server/internal/net/packet"
	"github.com/tilerealm/server/internal/world"
)

// Outbox delivers a message to one connection's per-tick buffer.
type Outbox interface {
	Send(session uint64, msg packet.Message)
}

// Overlay supplies dynamic tile data that replaces the static map for one
// player: cut trees, doors the player has opened.
type Overlay interface {
	DynamicTiles(p *world.Player, id world.RegionID) map[int][]int
}

type viewPair struct {
	viewer, entity world.Instance
}

type zone struct {
	entities map[world.Instance]world.Entity // everything whose surroundings include this zone
	players  []world.Instance                // players whose home zone this is
	incoming []world.Instance                // arrived this tick
}

// Bridge owns the zone index. Game loop only, no locks.
type Bridge struct {
	grid    *world.Grid
	m       *data.Map
	zones   []zone
	entity  map[world.Instance]world.Entity
	players map[world.Instance]*world.Player

	// origin holds each moved entity's zone as of the last ParseRegions.
	origin map[world.Instance]world.RegionID
	// spawned records moving entities a player's own view diff already
	// spawned this tick, so ParseRegions does not announce them again.
	spawned map[viewPair]struct{}

	out     Outbox
	overlay Overlay
	log     *zap.Logger
}

func NewBridge(grid *world.Grid, m *data.Map, out Outbox, log *zap.Logger) *Bridge {
	b := &Bridge{
		grid:    grid,
		m:       m,
		zones:   make([]zone, grid.Count()),
		entity:  make(map[world.Instance]world.Entity),
		players: make(map[world.Instance]*world.Player),
		origin:  make(map[world.Instance]world.RegionID),
		spawned: make(map[viewPair]struct{}),
		out:     out,
		log:     log,
	}
	for i := range b.zones {
		b.zones[i].entities = make(map[world.Instance]world.Entity)
	}
	return b
}

// SetOverlay installs the dynamic tile provider used by SendRegion.
func (b *Bridge) SetOverlay(o Overlay) { b.overlay = o }

func (b *Bridge) Grid() *world.Grid { return b.grid }

func (b *Bridge) zone(id world.RegionID) *zone {
	if !b.grid.Valid(id) {
		return nil
	}
	return &b.zones[id]
}

// Add places e in the index at its current position.
func (b *Bridge) Add(e world.Entity) {
	core := e.Core()
	b.entity[core.Instance()] = e
	if p, ok := e.(*world.Player); ok {
		b.players[core.Instance()] = p
	}
	core.SetRegion(world.NoRegion)
	core.ClearRecentRegions()
	b.Update(e)
}

// Update re-derives e's zone from its position. It returns true when the zone
// changed. Repeated calls without movement are no-ops.
func (b *Bridge) Update(e world.Entity) bool {
	core := e.Core()
	id := core.Instance()
	if _, ok := b.entity[id]; !ok {
		return false
	}
	old := core.Region()
	next := b.grid.RegionAt(core.X(), core.Y())
	if next == old {
		return false
	}
	if _, seen := b.origin[id]; !seen {
		b.origin[id] = old
	}

	b.unindex(e, old)
	core.SetRegion(next)
	if z := b.zone(next); z != nil {
		z.incoming = append(z.incoming, id)
		for _, r := range b.grid.Surrounding(next) {
			b.zones[r].entities[id] = e
		}
		if core.IsPlayer() {
			z.players = append(z.players, id)
		}
	}
	core.SetRecentRegions(world.RegionDiff(b.grid.Surrounding(b.origin[id]), b.grid.Surrounding(next)))

	if p, ok := e.(*world.Player); ok {
		b.sendViewDiff(p, old, next)
	}
	return true
}

func (b *Bridge) unindex(e world.Entity, from world.RegionID) {
	if !b.grid.Valid(from) {
		return
	}
	id := e.Core().Instance()
	for _, r := range b.grid.Surrounding(from) {
		delete(b.zones[r].entities, id)
	}
	z := &b.zones[from]
	z.players = removeInstance(z.players, id)
	z.incoming = removeInstance(z.incoming, id)
}

// sendViewDiff tells a player that changed zone about entities that came into
// and went out of view.
func (b *Bridge) sendViewDiff(p *world.Player, old, next world.RegionID) {
	var before, after map[world.Instance]world.Entity
	if z := b.zone(old); z != nil {
		before = z.entities
	}
	if z := b.zone(next); z != nil {
		after = z.entities
	}
	self := p.Instance()
	for _, id := range sortedKeys(before) {
		if _, still := after[id]; still || id == self {
			continue
		}
		b.out.Send(p.Session(), packet.Despawn(id))
	}
	for _, id := range sortedKeys(after) {
		if _, had := before[id]; had || id == self {
			continue
		}
		e := after[id]
		if e.Core().IsInvisibleTo(p) {
			continue
		}
		if _, moving := b.origin[id]; moving {
			b.spawned[viewPair{self, id}] = struct{}{}
		}
		b.out.Send(p.Session(), spawnMessage(e))
	}
}

// Remove drops e from every index and tells the players who could see it.
func (b *Bridge) Remove(e world.Entity) {
	core := e.Core()
	id := core.Instance()
	if _, ok := b.entity[id]; !ok {
		return
	}
	region := core.Region()
	b.PushToSurrounding(region, packet.Despawn(id), id)
	if recent := core.RecentRegions(); len(recent) > 0 {
		b.pushToRegions(recent, packet.Despawn(id), id)
	}
	b.unindex(e, region)
	delete(b.entity, id)
	delete(b.players, id)
	delete(b.origin, id)
	core.SetRegion(world.NoRegion)
	core.ClearRecentRegions()
}

// ParseRegions flushes the zone transitions recorded since the last call:
// spawns go to players that newly see an entity, despawns to players that
// no longer do. Runs once per tick.
func (b *Bridge) ParseRegions() {
	for i := range b.zones {
		z := &b.zones[i]
		if len(z.incoming) == 0 {
			continue
		}
		for _, id := range z.incoming {
			e, ok := b.entity[id]
			if !ok || e.Core().Region() != world.RegionID(i) {
				continue
			}
			b.announce(e, b.origin[id])
		}
		z.incoming = z.incoming[:0]
	}

	for _, id := range sortedKeys(b.origin) {
		if e, ok := b.entity[id]; ok {
			core := e.Core()
			if recent := core.RecentRegions(); len(recent) > 0 {
				b.pushToRegions(recent, packet.Despawn(id), id)
			}
			core.ClearRecentRegions()
		}
		delete(b.origin, id)
	}
	clear(b.spawned)
}

func (b *Bridge) announce(e world.Entity, from world.RegionID) {
	core := e.Core()
	msg := spawnMessage(e)
	before := b.grid.Surrounding(from)
	for _, r := range b.grid.Surrounding(core.Region()) {
		if containsRegion(before, r) {
			continue
		}
		for _, pid := range b.zones[r].players {
			p := b.players[pid]
			if p == nil || pid == core.Instance() || core.IsInvisibleTo(p) {
				continue
			}
			if _, told := b.spawned[viewPair{pid, core.Instance()}]; told {
				continue
			}
			b.out.Send(p.Session(), msg)
		}
	}
}

func spawnMessage(e world.Entity) packet.Message {
	if pr, ok := e.(*world.Projectile); ok {
		return packet.ProjectileCreated(pr)
	}
	return packet.Spawn(e)
}

// SendRegion sends tile data for every zone around the player that it has
// not loaded yet, or all of them when force is set.
func (b *Bridge) SendRegion(p *world.Player, force bool) {
	if force {
		p.ResetRegions()
	}
	var tiles []packet.Tile
	for _, r := range b.grid.Surrounding(p.Region()) {
		if p.RegionLoaded(r) {
			continue
		}
		tiles = append(tiles, b.regionTiles(p, r)...)
		p.MarkRegionLoaded(r)
	}
	if len(tiles) == 0 {
		return
	}
	b.out.Send(p.Session(), packet.RegionRenderMsg(tiles))
}

func (b *Bridge) regionTiles(p *world.Player, r world.RegionID) []packet.Tile {
	minX, minY, maxX, maxY, ok := b.grid.Bounds(r)
	if !ok {
		return nil
	}
	var dynamic map[int][]int
	if b.overlay != nil {
		dynamic = b.overlay.DynamicTiles(p, r)
	}
	var tiles []packet.Tile
	for y := minY; y < maxY; y++ {
		for x := minX; x < maxX; x++ {
			if !b.m.InBounds(x, y) {
				continue
			}
			idx := b.m.Index(x, y)
			if d, ok := dynamic[idx]; ok {
				tiles = append(tiles, b.TileFrom(idx, d))
				continue
			}
			t := packet.Tile{Index: idx, Data: b.m.TileAt(idx), Collision: b.m.IsColliding(x, y)}
			if len(t.Data) == 0 && !t.Collision {
				continue
			}
			tiles = append(tiles, t)
		}
	}
	return tiles
}

// TileFrom builds a render tile from replacement data.
func (b *Bridge) TileFrom(index int, ids []int) packet.Tile {
	t := packet.Tile{Index: index, Data: ids}
	for _, id := range ids {
		if b.m.IsCollisionTile(id) {
			t.Collision = true
			break
		}
	}
	return t
}

// ModifyTiles pushes changed tiles to everyone who can see region id.
func (b *Bridge) ModifyTiles(id world.RegionID, tiles []packet.Tile) {
	if len(tiles) == 0 {
		return
	}
	b.PushToSurrounding(id, packet.RegionModifyMsg(tiles))
}

// Broadcast sends msg to every player.
func (b *Bridge) Broadcast(msg packet.Message) {
	b.BroadcastExcept(msg)
}

// BroadcastExcept sends msg to every player not in ignore.
func (b *Bridge) BroadcastExcept(msg packet.Message, ignore ...world.Instance) {
	for _, id := range sortedKeys(b.players) {
		if containsInstance(ignore, id) {
			continue
		}
		b.out.Send(b.players[id].Session(), msg)
	}
}

// SendTo sends msg to one player.
func (b *Bridge) SendTo(p *world.Player, msg packet.Message) {
	if p == nil {
		return
	}
	b.out.Send(p.Session(), msg)
}

// SendToNames sends msg to the named players that are online.
func (b *Bridge) SendToNames(names []string, msg packet.Message) {
	for _, n := range names {
		if p := b.PlayerByName(n); p != nil {
			b.out.Send(p.Session(), msg)
		}
	}
}

// PlayerByName finds an indexed player by username or display name.
func (b *Bridge) PlayerByName(name string) *world.Player {
	for _, id := range sortedKeys(b.players) {
		p := b.players[id]
		if p.Username() == name || p.Name() == name {
			return p
		}
	}
	return nil
}

// PushToRegion sends msg to players whose home zone is id.
func (b *Bridge) PushToRegion(id world.RegionID, msg packet.Message, ignore ...world.Instance) {
	b.pushToRegions([]world.RegionID{id}, msg, ignore...)
}

// PushToSurrounding sends msg to every player that can see zone id.
func (b *Bridge) PushToSurrounding(id world.RegionID, msg packet.Message, ignore ...world.Instance) {
	b.pushToRegions(b.grid.Surrounding(id), msg, ignore...)
}

// PushToOldRegions sends msg to players in the zones e has just left.
func (b *Bridge) PushToOldRegions(e world.Entity, msg packet.Message, ignore ...world.Instance) {
	b.pushToRegions(e.Core().RecentRegions(), msg, ignore...)
}

// PushRegions sends msg about e to everyone that sees it now or saw it before
// its last zone change.
func (b *Bridge) PushRegions(e world.Entity, msg packet.Message, ignore ...world.Instance) {
	core := e.Core()
	b.pushToRegions(append(b.grid.Surrounding(core.Region()), core.RecentRegions()...), msg, ignore...)
}

func (b *Bridge) pushToRegions(ids []world.RegionID, msg packet.Message, ignore ...world.Instance) {
	for _, r := range ids {
		z := b.zone(r)
		if z == nil {
			continue
		}
		for _, pid := range z.players {
			if containsInstance(ignore, pid) {
				continue
			}
			if p := b.players[pid]; p != nil {
				b.out.Send(p.Session(), msg)
			}
		}
	}
}

// Visible returns the entities a player homed in id can see, ordered by
// instance.
func (b *Bridge) Visible(id world.RegionID) []world.Entity {
	z := b.zone(id)
	if z == nil {
		return nil
	}
	out := make([]world.Entity, 0, len(z.entities))
	for _, inst := range sortedKeys(z.entities) {
		out = append(out, z.entities[inst])
	}
	return out
}

// Nearby returns entities within radius tiles of e, e excluded.
func (b *Bridge) Nearby(e world.Entity, radius int) []world.Entity {
	var out []world.Entity
	self := e.Core()
	for _, o := range b.Visible(self.Region()) {
		if o.Core().Instance() == self.Instance() {
			continue
		}
		if self.Distance(o) <= radius {
			out = append(out, o)
		}
	}
	return out
}

// PlayersIn returns the players whose home zone is id.
func (b *Bridge) PlayersIn(id world.RegionID) []world.Instance {
	z := b.zone(id)
	if z == nil {
		return nil
	}
	return append([]world.Instance(nil), z.players...)
}

// Contains reports whether zone id indexes the entity.
func (b *Bridge) Contains(id world.RegionID, inst world.Instance) bool {
	z := b.zone(id)
	if z == nil {
		return false
	}
	_, ok := z.entities[inst]
	return ok
}

// Players returns every indexed player ordered by instance.
func (b *Bridge) Players() []*world.Player {
	out := make([]*world.Player, 0, len(b.players))
	for _, id := range sortedKeys(b.players) {
		out = append(out, b.players[id])
	}
	return out
}

func (b *Bridge) PlayerCount() int { return len(b.players) }

// ResetRegions forgets which zones p has loaded and re-sends its view.
func (b *Bridge) ResetRegions(p *world.Player) {
	b.SendRegion(p, true)
}

func removeInstance(list []world.Instance, id world.Instance) []world.Instance {
	for i, v := range list {
		if v == id {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}

func containsInstance(list []world.Instance, id world.Instance) bool {
	for _, v := range list {
		if v == id {
			return true
		}
	}
	return false
}

func containsRegion(list []world.RegionID, id world.RegionID) bool {
	for _, r := range list {
		if r == id {
			return true
		}
	}
	return false
}

func sortedKeys[V any](m map[world.Instance]V) []world.Instance {
	ids := make([]world.Instance, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
