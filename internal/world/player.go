package world

import (
	"time"

	"github.com/tilerealm/server/internal/core/timer"
	"github.com/tilerealm/server/internal/data"
)

// PlayerKey is the template key shared by every player.
const PlayerKey = "player"

// Player is a character controlled through a client connection.
type Player struct {
	Character

	session  uint64
	username string
	admin    bool

	experience int
	kills      int
	deaths     int

	cheatScore int
	pvp        bool
	music      string
	overlay    int
	camera     int

	inventory     *Inventory
	doors         map[string]bool
	loadedRegions map[RegionID]struct{}

	lastRegionChange time.Time
	ready            bool

	moveStarted bool
	moveStart   time.Time

	statusTimer timer.Handle
	dirty       bool
}

func NewPlayer(id Instance, session uint64, username, display string, inventorySize int) *Player {
	p := &Player{
		session:       session,
		username:      username,
		inventory:     NewInventory(inventorySize),
		doors:         make(map[string]bool),
		loadedRegions: make(map[RegionID]struct{}),
		overlay:       -1,
		camera:        -1,
	}
	p.bind(p, id, KindPlayer, PlayerKey, 0, 0)
	p.name = display
	p.initStats(100, 1, 1, time.Second, 250*time.Millisecond)
	p.retaliate = true
	return p
}

func (p *Player) Session() uint64  { return p.session }
func (p *Player) Username() string { return p.username }
func (p *Player) IsAdmin() bool    { return p.admin }
func (p *Player) SetAdmin(v bool)  { p.admin = v }

func (p *Player) Experience() int { return p.experience }

// AddExperience adds exp and recomputes the level. It returns true when the
// level went up.
func (p *Player) AddExperience(exp int) bool {
	if exp <= 0 {
		return false
	}
	p.experience += exp
	p.dirty = true
	level := levelFor(p.experience)
	if level > p.level {
		p.level = level
		return true
	}
	return false
}

func levelFor(exp int) int { return data.LevelForExp(exp) }

func (p *Player) Kills() int  { return p.kills }
func (p *Player) Deaths() int { return p.deaths }

func (p *Player) AddKill() {
	p.kills++
	p.dirty = true
}

func (p *Player) AddDeath() {
	p.deaths++
	p.dirty = true
}

func (p *Player) CheatScore() int { return p.cheatScore }

// AddCheatScore returns the new score.
func (p *Player) AddCheatScore(n int) int {
	p.cheatScore += n
	return p.cheatScore
}

// DecayCheatScore lowers the score by one, never below zero.
func (p *Player) DecayCheatScore() {
	if p.cheatScore > 0 {
		p.cheatScore--
	}
}

func (p *Player) PVP() bool               { return p.pvp }
func (p *Player) SetPVP(v bool)           { p.pvp = v }
func (p *Player) Music() string           { return p.music }
func (p *Player) SetMusic(song string)    { p.music = song }
func (p *Player) Overlay() int            { return p.overlay }
func (p *Player) SetOverlay(area int)     { p.overlay = area }
func (p *Player) Camera() int             { return p.camera }
func (p *Player) SetCamera(area int)      { p.camera = area }
func (p *Player) Inventory() *Inventory   { return p.inventory }
func (p *Player) HasDoor(key string) bool { return p.doors[key] }

func (p *Player) UnlockDoor(key string) {
	p.doors[key] = true
	p.dirty = true
}

func (p *Player) RegionLoaded(id RegionID) bool {
	_, ok := p.loadedRegions[id]
	return ok
}

func (p *Player) MarkRegionLoaded(id RegionID) { p.loadedRegions[id] = struct{}{} }

// ResetRegions forgets which zones the client has rendered.
func (p *Player) ResetRegions() {
	for k := range p.loadedRegions {
		delete(p.loadedRegions, k)
	}
}

func (p *Player) LastRegionChange() time.Time       { return p.lastRegionChange }
func (p *Player) SetLastRegionChange(now time.Time) { p.lastRegionChange = now }

// HasAggressionTimer is true while the player changed zone recently enough
// for mobs to still aggro on them.
func (p *Player) HasAggressionTimer(now time.Time, timeout time.Duration) bool {
	return now.Sub(p.lastRegionChange) < timeout
}

func (p *Player) Ready() bool     { return p.ready }
func (p *Player) SetReady(v bool) { p.ready = v }

// StartMovement records a client-declared movement start.
func (p *Player) StartMovement(now time.Time) {
	p.moveStarted = true
	p.moveStart = now
	p.SetMoving(true, now)
}

// EndMovement clears the movement and returns when it started. ok is false
// when no movement was started.
func (p *Player) EndMovement(now time.Time) (started time.Time, ok bool) {
	started, ok = p.moveStart, p.moveStarted
	p.moveStarted = false
	p.SetMoving(false, now)
	return
}

func (p *Player) StatusTimer() timer.Handle     { return p.statusTimer }
func (p *Player) SetStatusTimer(h timer.Handle) { p.statusTimer = h }

func (p *Player) Dirty() bool { return p.dirty }
func (p *Player) MarkDirty()  { p.dirty = true }
func (p *Player) ClearDirty() { p.dirty = false }

func (p *Player) SpawnInfo() SpawnInfo {
	info := p.Character.SpawnInfo()
	info.PVP = p.pvp
	return info
}
