package game

import (
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/tilerealm/server/internal/core/event"
	"github.com/tilerealm/server/internal/data"
	"github.com/tilerealm/server/internal/net/packet"
	"github.com/tilerealm/server/internal/world"
)

var titleCaser = cases.Title(language.English)

// FormatUsername normalises a username for display and lookups.
func FormatUsername(name string) string {
	return titleCaser.String(strings.ToLower(strings.TrimSpace(name)))
}

// AddPlayer creates the player for a logged in session. It is not visible
// to anyone until ReadyPlayer. A nil snapshot creates a fresh character at
// the world spawn.
func (w *World) AddPlayer(session uint64, username string, snap *world.Snapshot, admin bool) (*world.Player, error) {
	if limit := w.cfg.Server.MaxPlayers; limit > 0 && w.players.Len() >= limit {
		return nil, ErrWorldFull
	}
	for _, other := range w.players.Sorted() {
		if strings.EqualFold(other.Username(), username) {
			return nil, ErrAlreadyOnline
		}
	}

	id := w.reg.Create()
	p := world.NewPlayer(id, session, username, FormatUsername(username), w.cfg.World.InventorySize)
	if snap != nil {
		if err := p.Restore(*snap, w.Now()); err != nil {
			w.reg.Destroy(id)
			return nil, err
		}
	} else {
		p.SetMaxHitPoints(w.combat.Formulas().MaxHitPoints(1))
		p.SetHitPoints(p.MaxHitPoints())
		p.MarkDirty()
	}
	if x, y := p.Position(); snap == nil || !w.m.InBounds(x, y) || w.IsColliding(x, y) {
		p.Core().SetPosition(w.cfg.World.SpawnX, w.cfg.World.SpawnY)
	}
	p.SetAdmin(admin)

	w.entities[id] = p
	w.players.Set(id, p)
	w.sessions[session] = id
	return p, nil
}

// ReadyPlayer places a logged in player into the world.
func (w *World) ReadyPlayer(p *world.Player) {
	if p.Ready() {
		return
	}
	p.SetReady(true)
	w.bridge.SendTo(p, packet.Welcome(p))
	w.bridge.SendTo(p, packet.InventoryList(p.Inventory()))

	w.addEntity(p)
	p.SetLastRegionChange(w.Now())
	w.bridge.SendRegion(p, false)
	w.checkAreas(p)
	w.bridge.PushToSurrounding(p.Region(), packet.Points(p))

	if poison := p.Poison(); poison != nil {
		w.combat.Poison(p, poison)
	}
	p.SetStatusTimer(w.wheel.Every(w.cfg.AntiCheat.DecayInterval, p.DecayCheatScore))

	event.Emit(w.bus, event.PlayerLoggedIn{Player: p.Instance(), Name: p.Name()})
	w.aggroAround(p)
}

// RemovePlayer tears a player out of the world in one step: combat with
// every opponent, timers and region presence. The returned snapshot is taken
// before teardown.
func (w *World) RemovePlayer(p *world.Player) world.Snapshot {
	snap := p.Snapshot()

	w.combat.Clean(p)
	w.combat.Cure(p)
	if h := p.StatusTimer(); h != 0 {
		w.wheel.Stop(h)
		p.SetStatusTimer(0)
	}
	w.npcs.Each(func(_ world.Instance, n *world.NPC) { n.Forget(p.Instance()) })

	if _, ok := w.entities[p.Instance()]; ok {
		w.bridge.Remove(p)
		p.SetAttached(false)
		delete(w.entities, p.Instance())
		delete(w.hooked, p.Instance())
		w.reg.Destroy(p.Instance())
	}
	delete(w.sessions, p.Session())

	event.Emit(w.bus, event.PlayerLoggedOut{Player: p.Instance(), Name: p.Name(), SessionID: p.Session()})
	return snap
}

// rejectMove snaps the client back to the server position.
func (w *World) rejectMove(p *world.Player) {
	w.bridge.SendTo(p, packet.Move(p, true))
	w.bridge.SendTo(p, packet.Notify("You cannot go there."))
}

func (w *World) walkable(x, y int) bool {
	return w.m.InBounds(x, y) && !w.IsColliding(x, y)
}

// MovementStarted records the start of a client path from (x,y).
func (w *World) MovementStarted(p *world.Player, x, y int) bool {
	if p.IsDead() || !p.Attached() {
		return false
	}
	if p.Stunned() || x != p.X() || y != p.Y() {
		w.bridge.SendTo(p, packet.Move(p, true))
		return false
	}
	p.StartMovement(w.Now())
	return true
}

// MovementStep applies an intermediate tile of a path.
func (w *World) MovementStep(p *world.Player, x, y int) bool {
	if p.IsDead() || !p.Attached() || p.Stunned() {
		return false
	}
	if !w.walkable(x, y) {
		w.rejectMove(p)
		return false
	}
	p.Core().SetPosition(x, y)
	w.bridge.PushRegions(p, packet.Move(p, false), p.Instance())
	return true
}

// MovementStop ends a path on (x,y). target names the entity the player
// walked to, if any.
func (w *World) MovementStop(p *world.Player, x, y int, target world.Instance) bool {
	if p.IsDead() || !p.Attached() {
		return false
	}
	now := w.Now()
	started, ok := p.EndMovement(now)
	switch {
	case !ok:
		w.IncrementCheatScore(p, 1)
	case now.Sub(started) < p.MovementSpeed():
		w.IncrementCheatScore(p, 1)
	}
	if !w.walkable(x, y) {
		w.rejectMove(p)
		return false
	}
	if x != p.X() || y != p.Y() {
		p.Core().SetPosition(x, y)
		w.bridge.PushRegions(p, packet.Move(p, false), p.Instance())
	}

	if !target.IsZero() {
		w.interact(p, target)
		return true
	}
	if door := w.m.Door(x, y); door != nil {
		w.useDoor(p, door)
	}
	return true
}

func (w *World) interact(p *world.Player, id world.Instance) {
	if it := w.Item(id); it != nil {
		_ = w.PickUp(p, it)
		return
	}
	if c := w.Chest(id); c != nil {
		w.OpenChest(p, c)
		return
	}
	if n := w.NPC(id); n != nil {
		w.Talk(p, n)
	}
}

// MoveFollower applies a client-reported position for a mob chasing p.
func (w *World) MoveFollower(p *world.Player, id world.Instance, x, y int) bool {
	m := w.Mob(id)
	if m == nil || !m.Attached() || m.IsDead() || m.Target() != p.Instance() {
		return false
	}
	if m.DistanceTo(x, y) > 1 || !w.walkable(x, y) {
		return false
	}
	m.Core().SetPosition(x, y)
	w.bridge.PushRegions(m, packet.Move(m, false), p.Instance())
	return true
}

// Orientate turns p to face o.
func (w *World) Orientate(p *world.Player, o world.Orientation) {
	if o > world.OrientationRight {
		return
	}
	p.SetOrientation(o)
	w.bridge.PushToSurrounding(p.Region(), packet.Orientate(p.Instance(), o), p.Instance())
}

func (w *World) useDoor(p *world.Player, door *data.Door) {
	if door.Locked && !p.HasDoor(door.Key) {
		if !p.Inventory().Has(door.Key) {
			w.bridge.SendTo(p, packet.Notify("This door is locked."))
			return
		}
		p.UnlockDoor(door.Key)
		p.MarkDirty()
		idx := w.m.Index(door.X, door.Y)
		if d, ok := w.DynamicTiles(p, p.Region())[idx]; ok {
			w.bridge.SendTo(p, packet.RegionModifyMsg([]packet.Tile{w.bridge.TileFrom(idx, d)}))
		}
	}
	if door.Orientation >= 0 && door.Orientation <= int(world.OrientationRight) {
		p.SetOrientation(world.Orientation(door.Orientation))
	}
	w.Teleport(p, door.ToX, door.ToY)
}

// IncrementCheatScore adds suspicion to p. Ignored while p is fighting;
// crossing the threshold disconnects the player.
func (w *World) IncrementCheatScore(p *world.Player, n int) {
	if p.Combat().Started() {
		return
	}
	score := p.AddCheatScore(n)
	if score <= w.cfg.AntiCheat.Threshold {
		return
	}
	w.log.Warn("cheat threshold exceeded",
		zap.String("player", p.Name()),
		zap.Uint64("session", p.Session()),
		zap.Int("score", score),
	)
	w.bridge.SendTo(p, packet.Notify("You have been disconnected for suspicious activity (timeout)."))
	if w.kicker != nil {
		w.kicker.Disconnect(p.Session())
	}
}

// Attack engages p against the character id.
func (w *World) Attack(p *world.Player, id world.Instance) bool {
	t := w.Fighter(id)
	if !p.Attached() || !w.combat.CanAttack(p, t) {
		return false
	}
	w.combat.Begin(p, t)
	return true
}

// Talk sends p the next line of an npc's dialogue.
func (w *World) Talk(p *world.Player, n *world.NPC) {
	if !n.Attached() || p.Distance(n) > 1 {
		return
	}
	if text := n.Talk(p.Instance()); text != "" {
		w.bridge.SendTo(p, packet.NPCTalk(n.Instance(), text))
	}
}

// Who answers a spawn request for specific instances p can see.
func (w *World) Who(p *world.Player, ids []world.Instance) int {
	sent := 0
	for _, id := range ids {
		e := w.entities[id]
		if e == nil || id == p.Instance() || !e.Core().Attached() {
			continue
		}
		if !w.bridge.Contains(p.Region(), id) || e.Core().IsInvisibleTo(p) {
			continue
		}
		w.bridge.SendTo(p, packet.Spawn(e))
		sent++
	}
	return sent
}

// aggroAround lets aggressive mobs that can see p attack it.
func (w *World) aggroAround(p *world.Player) {
	if !p.Attached() || p.IsDead() || p.Invincible() {
		return
	}
	now, timeout := w.Now(), w.cfg.World.AggressionTimeout
	for _, e := range w.bridge.Visible(p.Region()) {
		m, ok := e.(*world.Mob)
		if !ok || !m.CanAggro(p, now, timeout) {
			continue
		}
		w.combat.Begin(m, p)
	}
}

// ScanAggro runs the aggro check for every player.
func (w *World) ScanAggro() {
	for _, p := range w.bridge.Players() {
		w.aggroAround(p)
	}
}

// checkAreas applies PVP, music, overlay and camera areas, messaging the
// client only on change.
func (w *World) checkAreas(p *world.Player) {
	x, y := p.Position()

	pvp := findArea(w.m.PVPAreas(), x, y) >= 0
	if pvp != p.PVP() {
		p.SetPVP(pvp)
		w.bridge.SendTo(p, packet.PVP(pvp))
	}

	song := ""
	if i := findArea(w.m.MusicAreas(), x, y); i >= 0 {
		song = w.m.MusicAreas()[i].Song
	}
	if song != p.Music() {
		p.SetMusic(song)
		w.bridge.SendTo(p, packet.Audio(song))
	}

	overlays := w.m.OverlayAreas()
	overlay := findArea(overlays, x, y)
	if overlay != p.Overlay() {
		p.SetOverlay(overlay)
		if overlay < 0 {
			w.bridge.SendTo(p, packet.OverlayOff())
		} else {
			w.bridge.SendTo(p, packet.OverlayOn(overlays[overlay].Darkness, overlays[overlay].Type))
		}
	}

	cameras := w.m.CameraAreas()
	camera := findArea(cameras, x, y)
	if camera != p.Camera() {
		p.SetCamera(camera)
		kind := ""
		if camera >= 0 {
			kind = cameras[camera].Type
		}
		w.bridge.SendTo(p, packet.Camera(kind))
	}
}

func findArea(areas []data.Area, x, y int) int {
	for i := range areas {
		if areas[i].Contains(x, y) {
			return i
		}
	}
	return -1
}
